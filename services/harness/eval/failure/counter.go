// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package failure tallies designated failures of a variant over a time budget.
package failure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/pairbench/services/harness/eval"
	"github.com/AleutianAI/pairbench/services/harness/eval/probe"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const tracerName = "harness.eval.failure"

// Variant is one side of a failure-rate comparison.
//
// Description:
//
//	Mode is data, not code: an unchecked variant may raise Kind (by
//	panicking with it, by a runtime fault of that kind, or by returning an
//	*eval.ExpectedFailure), and each occurrence is tallied. A checked
//	variant encodes absence in its own result and must never raise; any
//	panic or error from it is a measurement failure.
type Variant struct {
	Name string
	Mode eval.Mode
	Kind eval.FailureKind
	Call func() error
}

// Option configures a Counter.
type Option func(*Counter)

// WithMaxCalls stops a run after n calls even if the duration has not
// elapsed. Non-positive values mean no limit.
func WithMaxCalls(n int64) Option {
	return func(c *Counter) {
		if n > 0 {
			c.maxCalls = n
		} else {
			c.maxCalls = 0
		}
	}
}

// WithProgressInterval sets how often progress is logged at debug level.
func WithProgressInterval(d time.Duration) Option {
	return func(c *Counter) {
		if d > 0 {
			c.progressInterval = d
		}
	}
}

// Counter runs a variant repeatedly and counts designated failures.
//
// Thread Safety: Safe for concurrent use; each run keeps its tallies local.
type Counter struct {
	maxCalls         int64
	progressInterval time.Duration
	logger           *slog.Logger
}

// NewCounter creates a failure counter.
func NewCounter(opts ...Option) *Counter {
	c := &Counter{
		progressInterval: 5 * time.Second,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetLogger replaces the counter's logger. Nil values are ignored.
func (c *Counter) SetLogger(logger *slog.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// RunForDuration invokes the variant until duration has elapsed.
//
// Description:
//
//	The elapsed time is checked against the monotonic clock before every
//	call. TotalCalls is incremented for every call; FailureCount whenever
//	the call signals the variant's designated kind.
//
// Inputs:
//   - ctx: Context for tracing. Must not be nil.
//   - duration: Time budget. Must be positive.
//   - v: The variant. Call must be set; an unchecked variant must name a Kind.
//
// Outputs:
//   - eval.FailureStats: Tallies and derived rates.
//   - error: *eval.ConfigurationError before the loop starts, or
//     *eval.MeasurementFailure for an undesignated failure.
//
// Example:
//
//	stats, err := failure.NewCounter().RunForDuration(ctx, 10*time.Second, variant)
func (c *Counter) RunForDuration(ctx context.Context, duration time.Duration, v Variant) (eval.FailureStats, error) {
	if ctx == nil {
		return eval.FailureStats{}, eval.ErrNilContext
	}

	_, span := otel.Tracer(tracerName).Start(ctx, "failure.Counter.RunForDuration",
		trace.WithAttributes(
			attribute.String("failure.name", v.Name),
			attribute.String("failure.mode", v.Mode.String()),
			attribute.String("failure.kind", v.Kind.String()),
			attribute.Int64("failure.duration_ms", duration.Milliseconds()),
		),
	)
	defer span.End()

	if err := validate(duration, v); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid configuration")
		return eval.FailureStats{}, err
	}

	var total, failures int64
	progress := rate.Sometimes{Interval: c.progressInterval}

	sw := probe.Start()
	for !sw.Reached(duration) {
		if c.maxCalls > 0 && total >= c.maxCalls {
			break
		}
		total++
		failed, err := c.invoke(v)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "undesignated failure")
			return eval.FailureStats{}, err
		}
		if failed {
			failures++
		}
		progress.Do(func() {
			c.logger.Debug("failure counter progress",
				slog.String("scenario", v.Name),
				slog.Int64("calls", total),
				slog.Int64("failures", failures),
			)
		})
	}
	elapsed := sw.Elapsed()

	stats := eval.NewFailureStats(v.Name, v.Mode, v.Kind, total, failures, elapsed)

	span.SetAttributes(
		attribute.Int64("failure.total_calls", total),
		attribute.Int64("failure.failure_count", failures),
		attribute.Float64("failure.rate_percent", stats.FailureRatePercent),
	)
	span.SetStatus(codes.Ok, "failure run completed")

	return stats, nil
}

func validate(duration time.Duration, v Variant) error {
	switch {
	case duration <= 0:
		return eval.NewConfigurationError("duration", duration, "must be positive")
	case v.Call == nil:
		return eval.NewConfigurationError("variant", v.Name, "call must be set")
	case v.Mode != eval.ModeChecked && v.Mode != eval.ModeUnchecked:
		return eval.NewConfigurationError("mode", int(v.Mode), "unknown mode")
	case v.Mode == eval.ModeUnchecked && v.Kind == eval.FailureNone:
		return eval.NewConfigurationError("kind", v.Kind, "unchecked variants need a designated failure kind")
	}
	return nil
}

// invoke makes one call and reports whether it signalled the designated kind.
func (c *Counter) invoke(v Variant) (failed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			if kind, ok := eval.ClassifyPanic(r); ok && c.designated(v, kind) {
				failed = true
				return
			}
			err = eval.NewMeasurementFailure(v.Name, v.Mode.String(), &eval.PanicError{Value: r})
		}
	}()

	callErr := v.Call()
	if callErr == nil {
		return false, nil
	}
	var ef *eval.ExpectedFailure
	if errors.As(callErr, &ef) && c.designated(v, ef.Kind) {
		return true, nil
	}
	return false, eval.NewMeasurementFailure(v.Name, v.Mode.String(), fmt.Errorf("call: %w", callErr))
}

func (c *Counter) designated(v Variant, kind eval.FailureKind) bool {
	return v.Mode == eval.ModeUnchecked && kind == v.Kind
}
