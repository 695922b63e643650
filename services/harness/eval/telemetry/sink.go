// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry forwards harness results to metrics and tracing backends.
//
// Sinks receive each result entry as it is appended to the result set. They
// never influence measurement: a sink error is logged by the caller and the
// run continues.
package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/AleutianAI/pairbench/services/harness/eval"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrNilData is returned when nil data is passed to a recording method.
	ErrNilData = errors.New("data must not be nil")

	// ErrSinkClosed is returned when a closed sink is used.
	ErrSinkClosed = errors.New("sink has been closed")

	// ErrNoSinks is returned when a composite sink has no children.
	ErrNoSinks = errors.New("at least one sink is required")

	// ErrInvalidConfig is returned when a sink configuration is invalid.
	ErrInvalidConfig = errors.New("invalid sink configuration")
)

// -----------------------------------------------------------------------------
// Sink
// -----------------------------------------------------------------------------

// Sink receives harness results.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Sink interface {
	// RecordEntry records one result entry of any family.
	//
	// Inputs:
	//   - ctx: Must not be nil.
	//   - entry: Must not be nil.
	//
	// Outputs:
	//   - error: Non-nil if recording fails or the sink is closed.
	RecordEntry(ctx context.Context, entry eval.Entry) error

	// RecordError records a scenario that could not be measured.
	RecordError(ctx context.Context, data *ErrorData) error

	// Flush exports buffered data.
	Flush(ctx context.Context) error

	// Close releases resources. After Close, recording methods return
	// ErrSinkClosed. Idempotent.
	Close() error
}

// ErrorData describes a failed scenario.
type ErrorData struct {
	Timestamp time.Time

	// Scenario is the scenario name.
	Scenario string

	// Family is the result family the scenario would have produced.
	Family eval.Family

	// ErrorType is one of "configuration", "panic", "measurement", "internal".
	ErrorType string

	Message string
}

// NewErrorData builds ErrorData for a failed scenario and classifies err.
func NewErrorData(scenario string, family eval.Family, err error) *ErrorData {
	d := &ErrorData{
		Timestamp: time.Now(),
		Scenario:  scenario,
		Family:    family,
		ErrorType: ErrorType(err),
	}
	if err != nil {
		d.Message = err.Error()
	}
	return d
}

// ErrorType maps an error to a low-cardinality label value.
func ErrorType(err error) string {
	var pe *eval.PanicError
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, eval.ErrConfiguration):
		return "configuration"
	case errors.As(err, &pe):
		return "panic"
	case errors.Is(err, eval.ErrMeasurement):
		return "measurement"
	default:
		return "internal"
	}
}

// -----------------------------------------------------------------------------
// CompositeSink
// -----------------------------------------------------------------------------

// CompositeSink fans every call out to its children and joins their errors.
//
// Thread Safety: Safe for concurrent use.
type CompositeSink struct {
	sinks  []Sink
	mu     sync.RWMutex
	closed bool
}

// NewCompositeSink creates a composite of the non-nil sinks given.
//
// Outputs:
//   - *CompositeSink: The composite.
//   - error: ErrNoSinks if no non-nil sink was given.
func NewCompositeSink(sinks ...Sink) (*CompositeSink, error) {
	valid := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return nil, ErrNoSinks
	}
	return &CompositeSink{sinks: valid}, nil
}

// Len returns the number of child sinks.
func (c *CompositeSink) Len() int {
	return len(c.sinks)
}

func (c *CompositeSink) children() ([]Sink, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrSinkClosed
	}
	return c.sinks, nil
}

func (c *CompositeSink) each(fn func(Sink) error) error {
	sinks, err := c.children()
	if err != nil {
		return err
	}
	var errs []error
	for _, s := range sinks {
		if err := fn(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordEntry forwards entry to every child.
func (c *CompositeSink) RecordEntry(ctx context.Context, entry eval.Entry) error {
	if ctx == nil {
		return eval.ErrNilContext
	}
	if entry == nil {
		return ErrNilData
	}
	return c.each(func(s Sink) error { return s.RecordEntry(ctx, entry) })
}

// RecordError forwards data to every child.
func (c *CompositeSink) RecordError(ctx context.Context, data *ErrorData) error {
	if ctx == nil {
		return eval.ErrNilContext
	}
	if data == nil {
		return ErrNilData
	}
	return c.each(func(s Sink) error { return s.RecordError(ctx, data) })
}

// Flush flushes every child concurrently.
func (c *CompositeSink) Flush(ctx context.Context) error {
	if ctx == nil {
		return eval.ErrNilContext
	}
	sinks, err := c.children()
	if err != nil {
		return err
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, s := range sinks {
		wg.Go(func() {
			if err := s.Flush(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		})
	}
	wg.Wait()
	return errors.Join(errs...)
}

// Close closes every child once.
func (c *CompositeSink) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	sinks := c.sinks
	c.mu.Unlock()

	var errs []error
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// -----------------------------------------------------------------------------
// NoOpSink
// -----------------------------------------------------------------------------

// NoOpSink validates its inputs and discards them.
type NoOpSink struct{}

// NewNoOpSink creates a NoOpSink.
func NewNoOpSink() *NoOpSink {
	return &NoOpSink{}
}

func (n *NoOpSink) RecordEntry(ctx context.Context, entry eval.Entry) error {
	if ctx == nil {
		return eval.ErrNilContext
	}
	if entry == nil {
		return ErrNilData
	}
	return nil
}

func (n *NoOpSink) RecordError(ctx context.Context, data *ErrorData) error {
	if ctx == nil {
		return eval.ErrNilContext
	}
	if data == nil {
		return ErrNilData
	}
	return nil
}

func (n *NoOpSink) Flush(ctx context.Context) error {
	if ctx == nil {
		return eval.ErrNilContext
	}
	return nil
}

func (n *NoOpSink) Close() error {
	return nil
}

var (
	_ Sink = (*CompositeSink)(nil)
	_ Sink = (*NoOpSink)(nil)
)
