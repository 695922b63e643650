// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package churn drives a short-lived allocation workload for a fixed time
// and reports allocator and collector activity.
package churn

import (
	"context"
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

const tracerName = "harness.eval.churn"

// Workload performs one batch of allocations and returns the number of
// objects it created.
type Workload func() int64

// Runner measures churn workloads.
//
// Thread Safety: Safe for concurrent use, but concurrent runs share the
// process heap and disturb each other's samples.
type Runner struct {
	memory           *probe.MemoryProbe
	progressInterval time.Duration
	logger           *slog.Logger
}

// NewRunner creates a churn runner. A nil probe uses probe.DefaultGrace.
func NewRunner(memory *probe.MemoryProbe) *Runner {
	if memory == nil {
		memory = probe.NewMemoryProbe(probe.DefaultGrace)
	}
	return &Runner{
		memory:           memory,
		progressInterval: 5 * time.Second,
		logger:           slog.Default(),
	}
}

// SetLogger replaces the runner's logger. Nil values are ignored.
func (r *Runner) SetLogger(logger *slog.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// RunForDuration calls work repeatedly until duration has elapsed.
//
// Description:
//
//	Takes a settled sample, runs batches until the monotonic clock passes
//	duration, then samples again without settling so the delta includes
//	the garbage the workload left behind.
//
// Inputs:
//   - ctx: Context for tracing. Must not be nil.
//   - name: Scenario name recorded in the result.
//   - duration: Time budget. Must be positive.
//   - work: The workload. Must not be nil.
//
// Outputs:
//   - eval.ChurnResult: Objects created, elapsed time and memory delta.
//   - error: *eval.ConfigurationError or *eval.MeasurementFailure.
func (r *Runner) RunForDuration(ctx context.Context, name string, duration time.Duration, work Workload) (eval.ChurnResult, error) {
	if ctx == nil {
		return eval.ChurnResult{}, eval.ErrNilContext
	}

	_, span := otel.Tracer(tracerName).Start(ctx, "churn.Runner.RunForDuration",
		trace.WithAttributes(
			attribute.String("churn.name", name),
			attribute.Int64("churn.duration_ms", duration.Milliseconds()),
		),
	)
	defer span.End()

	var cfgErr error
	switch {
	case duration <= 0:
		cfgErr = eval.NewConfigurationError("duration", duration, "must be positive")
	case work == nil:
		cfgErr = eval.NewConfigurationError("workload", name, "must not be nil")
	}
	if cfgErr != nil {
		span.RecordError(cfgErr)
		span.SetStatus(codes.Error, "invalid configuration")
		return eval.ChurnResult{}, cfgErr
	}

	progress := rate.Sometimes{Interval: r.progressInterval}
	var objects int64

	before := r.memory.SettledSample()
	sw := probe.Start()
	for !sw.Reached(duration) {
		n, err := r.batch(name, work)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "workload failed")
			return eval.ChurnResult{}, err
		}
		objects += n
		progress.Do(func() {
			r.logger.Debug("churn progress",
				slog.String("scenario", name),
				slog.Int64("objects", objects),
			)
		})
	}
	elapsed := sw.Elapsed()
	after := r.memory.Sample()

	result := eval.ChurnResult{
		Name:           name,
		ObjectsCreated: objects,
		Elapsed:        elapsed,
		Memory:         eval.Delta(before, after),
	}

	span.SetAttributes(
		attribute.Int64("churn.objects", objects),
		attribute.Int64("churn.allocated_bytes", int64(result.Memory.AllocatedBytes)),
		attribute.Int64("churn.gc_cycles", int64(result.Memory.GCCycles)),
	)
	span.SetStatus(codes.Ok, "churn run completed")

	return result, nil
}

func (r *Runner) batch(name string, work Workload) (n int64, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = eval.NewMeasurementFailure(name, "churn", &eval.PanicError{Value: p})
		}
	}()
	return work(), nil
}
