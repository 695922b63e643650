// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package stress generates worker contention against shared atomic state.
package stress

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"

	"github.com/AleutianAI/pairbench/services/harness/eval"
	"github.com/AleutianAI/pairbench/services/harness/eval/probe"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "harness.eval.stress"

// Operation is one unit of work against the shared counter.
//
// It must update the counter atomically. A returned error aborts the run.
type Operation func(counter *atomic.Int64) error

// Increment adds one to the counter.
func Increment(counter *atomic.Int64) error {
	counter.Add(1)
	return nil
}

// Option configures a Runner.
type Option func(*Runner)

// WithPoolSize sets the number of workers executing tasks concurrently.
// Non-positive values are ignored.
func WithPoolSize(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.poolSize = n
		}
	}
}

// WithYield toggles the scheduler yield between operations.
func WithYield(enabled bool) Option {
	return func(r *Runner) {
		r.yield = enabled
	}
}

// Runner executes a fixed-size worker pool over submitted tasks.
//
// Description:
//
//	Each of workerCount tasks performs opsPerWorker operations against one
//	shared atomic counter, yielding to the scheduler between operations to
//	maximize interleaving. At most poolSize tasks run at once. The counter
//	is read only after the completion barrier releases.
//
// Thread Safety: Safe for concurrent use; each Run owns its own counter.
//
// Limitations:
//   - There is no cancellation or timeout for an in-flight run. A stalled
//     operation stalls the whole measurement.
type Runner struct {
	poolSize int
	yield    bool
	logger   *slog.Logger
}

// NewRunner creates a stress runner sized to runtime.NumCPU().
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		poolSize: runtime.NumCPU(),
		yield:    true,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetLogger replaces the runner's logger. Nil values are ignored.
func (r *Runner) SetLogger(logger *slog.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// PoolSize returns the number of concurrent workers.
func (r *Runner) PoolSize() int {
	return r.poolSize
}

// Run executes workerCount tasks of opsPerWorker operations each.
//
// Description:
//
//	Tasks are submitted to an errgroup limited to the pool size; Wait is
//	the completion barrier. Elapsed time spans from the first submission to
//	barrier release. Throughput = operations*1000/elapsedMillis. Once a
//	task fails, tasks that have not started are skipped; tasks already
//	running finish their operations.
//
// Inputs:
//   - ctx: Context for tracing. Must not be nil. Not used for cancellation.
//   - name: Scenario name recorded in the result.
//   - workerCount: Number of tasks. Must be positive.
//   - opsPerWorker: Operations per task. Must be positive.
//   - op: The operation. If nil, Increment is used.
//
// Outputs:
//   - eval.ThroughputResult: Counter total and derived rates.
//   - error: *eval.ConfigurationError for invalid counts; *eval.MeasurementFailure
//     when any operation fails or panics. The failure is returned only
//     after every started task has finished.
//
// Example:
//
//	result, err := stress.NewRunner().Run(ctx, "atomic increment", 1000, 10_000, stress.Increment)
func (r *Runner) Run(ctx context.Context, name string, workerCount, opsPerWorker int, op Operation) (eval.ThroughputResult, error) {
	if ctx == nil {
		return eval.ThroughputResult{}, eval.ErrNilContext
	}

	_, span := otel.Tracer(tracerName).Start(ctx, "stress.Runner.Run",
		trace.WithAttributes(
			attribute.String("stress.name", name),
			attribute.Int("stress.workers", workerCount),
			attribute.Int("stress.ops_per_worker", opsPerWorker),
			attribute.Int("stress.pool_size", r.poolSize),
		),
	)
	defer span.End()

	var cfgErr error
	switch {
	case workerCount <= 0:
		cfgErr = eval.NewConfigurationError("workers", workerCount, "must be positive")
	case opsPerWorker <= 0:
		cfgErr = eval.NewConfigurationError("ops_per_worker", opsPerWorker, "must be positive")
	}
	if cfgErr != nil {
		span.RecordError(cfgErr)
		span.SetStatus(codes.Error, "invalid configuration")
		return eval.ThroughputResult{}, cfgErr
	}
	if op == nil {
		op = Increment
	}

	var counter atomic.Int64

	// The group context is cancelled only by a failing task; caller
	// cancellation does not reach a run in flight.
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(r.poolSize)

	sw := probe.Start()
	for w := 0; w < workerCount; w++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			return r.work(name, w, opsPerWorker, op, &counter)
		})
	}
	err := g.Wait()
	elapsed := sw.Elapsed()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "worker failed")
		r.logger.Error("stress run failed",
			slog.String("scenario", name),
			slog.String("error", err.Error()),
		)
		return eval.ThroughputResult{}, err
	}

	total := counter.Load()
	elapsedMillis := float64(elapsed.Nanoseconds()) / 1e6

	result := eval.ThroughputResult{
		Name:            name,
		Workers:         workerCount,
		OpsPerWorker:    opsPerWorker,
		PoolSize:        r.poolSize,
		TotalOperations: total,
		ElapsedMillis:   elapsedMillis,
	}
	if elapsedMillis > 0 {
		result.OperationsPerSecond = float64(total) * 1000 / elapsedMillis
	}
	if total > 0 {
		result.PerOperationCostMillis = elapsedMillis / float64(total)
	}

	span.SetAttributes(
		attribute.Int64("stress.total_operations", total),
		attribute.Float64("stress.ops_per_second", result.OperationsPerSecond),
	)
	span.SetStatus(codes.Ok, "stress run completed")

	return result, nil
}

// work is one task. A panic is converted to a MeasurementFailure so the
// barrier still releases.
func (r *Runner) work(name string, worker, ops int, op Operation, counter *atomic.Int64) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = eval.NewMeasurementFailure(name, fmt.Sprintf("worker %d", worker), &eval.PanicError{Value: p})
		}
	}()

	for i := 0; i < ops; i++ {
		if r.yield {
			runtime.Gosched()
		}
		if opErr := op(counter); opErr != nil {
			return eval.NewMeasurementFailure(name, fmt.Sprintf("worker %d", worker), opErr)
		}
	}
	return nil
}
