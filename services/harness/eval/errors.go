// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package eval

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrNilContext is returned when a nil context is provided.
	ErrNilContext = errors.New("context must not be nil")

	// ErrConfiguration matches every ConfigurationError.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrMeasurement matches every MeasurementFailure.
	ErrMeasurement = errors.New("measurement failed")
)

// ConfigurationError reports an invalid runner input.
//
// Description:
//
//	Returned before any measurement begins when an iteration count,
//	duration, worker count or callable is unusable. errors.Is(err,
//	ErrConfiguration) reports true for every ConfigurationError.
//
// Thread Safety: Immutable after creation.
type ConfigurationError struct {
	// Field names the offending input, e.g. "iterations".
	Field string

	// Value is the rejected value.
	Value any

	// Reason is a short human-readable explanation.
	Reason string
}

// NewConfigurationError builds a ConfigurationError.
func NewConfigurationError(field string, value any, reason string) *ConfigurationError {
	return &ConfigurationError{Field: field, Value: value, Reason: reason}
}

// Error implements error.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// Is reports whether target is ErrConfiguration.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// MeasurementFailure reports an unexpected failure inside a measured block.
//
// Description:
//
//	Wraps the underlying cause together with the scenario and phase in
//	which it happened. errors.Is(err, ErrMeasurement) reports true, and
//	errors.Is/As also see through to Err.
//
// Thread Safety: Immutable after creation.
type MeasurementFailure struct {
	// Scenario is the name of the scenario that failed.
	Scenario string

	// Phase identifies where the failure happened, e.g. "candidate", "worker".
	Phase string

	// Err is the underlying cause. Never nil.
	Err error
}

// NewMeasurementFailure builds a MeasurementFailure.
func NewMeasurementFailure(scenario, phase string, err error) *MeasurementFailure {
	return &MeasurementFailure{Scenario: scenario, Phase: phase, Err: err}
}

// Error implements error.
func (e *MeasurementFailure) Error() string {
	return fmt.Sprintf("scenario %q failed during %s: %v", e.Scenario, e.Phase, e.Err)
}

// Is reports whether target is ErrMeasurement.
func (e *MeasurementFailure) Is(target error) bool {
	return target == ErrMeasurement
}

// Unwrap returns the underlying cause.
func (e *MeasurementFailure) Unwrap() error {
	return e.Err
}

// PanicError carries a recovered panic value.
type PanicError struct {
	Value any
}

// Error implements error.
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// -----------------------------------------------------------------------------
// Failure kinds
// -----------------------------------------------------------------------------

// FailureKind enumerates the recoverable failures the failure counter can tally.
type FailureKind int

const (
	// FailureNone means the call completed normally.
	FailureNone FailureKind = iota

	// FailureNilDereference is a runtime nil pointer dereference.
	FailureNilDereference

	// FailureIndexOutOfRange is a runtime slice or array bounds violation.
	FailureIndexOutOfRange

	// FailureAbsentValue is an explicit unwrap of an empty Optional.
	FailureAbsentValue
)

// String returns the snake_case name of the kind.
func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureNilDereference:
		return "nil_dereference"
	case FailureIndexOutOfRange:
		return "index_out_of_range"
	case FailureAbsentValue:
		return "absent_value"
	default:
		return "unknown"
	}
}

// ParseFailureKind is the inverse of FailureKind.String.
func ParseFailureKind(s string) (FailureKind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return FailureNone, true
	case "nil_dereference":
		return FailureNilDereference, true
	case "index_out_of_range":
		return FailureIndexOutOfRange, true
	case "absent_value":
		return FailureAbsentValue, true
	default:
		return FailureNone, false
	}
}

// ExpectedFailure is the signal a variant raises for a designated failure kind.
//
// Description:
//
//	Variants may either return an *ExpectedFailure as an error or panic
//	with one. The failure counter recovers it and counts it; it never
//	surfaces past the counter.
type ExpectedFailure struct {
	Kind FailureKind
}

// Error implements error.
func (e *ExpectedFailure) Error() string {
	return "expected failure: " + e.Kind.String()
}

// ClassifyPanic maps a recovered panic value to a FailureKind.
//
// Description:
//
//	Recognizes *ExpectedFailure values and the runtime errors raised for
//	nil dereferences and bounds violations. Any other value is reported
//	as unclassified.
//
// Inputs:
//   - r: The value returned by recover(). May be nil.
//
// Outputs:
//   - FailureKind: The recognized kind, FailureNone when unclassified.
//   - bool: True when the value maps to a known kind.
func ClassifyPanic(r any) (FailureKind, bool) {
	switch v := r.(type) {
	case nil:
		return FailureNone, false
	case *ExpectedFailure:
		return v.Kind, v.Kind != FailureNone
	case runtime.Error:
		msg := v.Error()
		switch {
		case strings.Contains(msg, "nil pointer dereference"):
			return FailureNilDereference, true
		case strings.Contains(msg, "index out of range"), strings.Contains(msg, "slice bounds out of range"):
			return FailureIndexOutOfRange, true
		}
	case error:
		var ef *ExpectedFailure
		if errors.As(v, &ef) {
			return ef.Kind, ef.Kind != FailureNone
		}
	}
	return FailureNone, false
}

// -----------------------------------------------------------------------------
// Modes
// -----------------------------------------------------------------------------

// Mode selects how a failure-rate variant signals absence.
type Mode int

const (
	// ModeUnchecked variants may raise the designated failure kind.
	ModeUnchecked Mode = iota

	// ModeChecked variants encode absence in their result and never raise.
	ModeChecked
)

// String returns "unchecked" or "checked".
func (m Mode) String() string {
	switch m {
	case ModeUnchecked:
		return "unchecked"
	case ModeChecked:
		return "checked"
	default:
		return "unknown"
	}
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unchecked":
		return ModeUnchecked, true
	case "checked":
		return ModeChecked, true
	default:
		return ModeUnchecked, false
	}
}
