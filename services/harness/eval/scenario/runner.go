// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scenario runs paired timing and allocation comparisons.
package scenario

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/AleutianAI/pairbench/services/harness/eval"
	"github.com/AleutianAI/pairbench/services/harness/eval/probe"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "harness.eval.scenario"

// -----------------------------------------------------------------------------
// Runner Options
// -----------------------------------------------------------------------------

// Config holds per-run settings.
type Config struct {
	// Warmup is the number of discarded calls made to each variant
	// immediately before its measured pass.
	Warmup int

	// PreSettle settles the heap before the candidate pass as well as
	// between the two passes.
	PreSettle bool
}

// DefaultConfig returns the settings used when no option is given.
func DefaultConfig() *Config {
	return &Config{
		Warmup:    0,
		PreSettle: false,
	}
}

// RunOption configures a single Run.
//
// Options are applied in order, so later options override earlier ones.
type RunOption func(*Config)

// WithWarmup sets the number of warm-up calls per variant.
//
// Inputs:
//   - n: Discarded calls. Negative values are ignored.
//
// Example:
//
//	runner.Run(ctx, pair, 10_000_000, scenario.WithWarmup(500_000))
func WithWarmup(n int) RunOption {
	return func(c *Config) {
		if n >= 0 {
			c.Warmup = n
		}
	}
}

// WithPreSettle enables a settle before the candidate pass.
func WithPreSettle(enabled bool) RunOption {
	return func(c *Config) {
		c.PreSettle = enabled
	}
}

// -----------------------------------------------------------------------------
// Runner
// -----------------------------------------------------------------------------

// Runner measures VariantPairs and AllocationPairs.
//
// Description:
//
//	Execution order is fixed: the candidate is measured first, the heap is
//	settled, then the baseline is measured. Any systematic bias from that
//	order (cache warmth, heap state) is therefore the same on every run.
//
// Thread Safety: Safe for concurrent use, but concurrent runs disturb each
// other's timings and heap samples.
type Runner struct {
	memory *probe.MemoryProbe
	logger *slog.Logger
}

// NewRunner creates a scenario runner.
//
// Inputs:
//   - memory: Probe used for settling and heap samples. If nil, a probe
//     with probe.DefaultGrace is used.
//
// Outputs:
//   - *Runner: The runner. Never nil.
func NewRunner(memory *probe.MemoryProbe) *Runner {
	if memory == nil {
		memory = probe.NewMemoryProbe(probe.DefaultGrace)
	}
	return &Runner{
		memory: memory,
		logger: slog.Default(),
	}
}

// SetLogger replaces the runner's logger. Nil values are ignored.
func (r *Runner) SetLogger(logger *slog.Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Run measures both variants of pair over the given number of iterations.
//
// Description:
//
//	Runs the candidate for iterations calls while folding every result into
//	a checksum, settles, then does the same for the baseline. The relative
//	improvement is baseline/candidate*100 - 100.
//
// Inputs:
//   - ctx: Context for tracing. Must not be nil. The measured passes have no
//     suspension points and are not cancellable.
//   - pair: The variants to compare. Must not be nil.
//   - iterations: Calls per variant. Must be positive; callers should use at
//     least 1e5 to amortize clock resolution.
//   - opts: Optional run settings.
//
// Outputs:
//   - eval.TimingResult: The comparison. Zero value on error.
//   - error: *eval.ConfigurationError before measurement for invalid input;
//     *eval.MeasurementFailure if a variant panics.
//
// Example:
//
//	result, err := runner.Run(ctx, workloads.SimpleArithmetic(), 10_000_000)
//	if err != nil {
//	    return fmt.Errorf("simple arithmetic: %w", err)
//	}
//
// Limitations:
//   - Timings include the checksum fold and the indirect call of each variant.
func (r *Runner) Run(ctx context.Context, pair eval.Pair, iterations int, opts ...RunOption) (eval.TimingResult, error) {
	if ctx == nil {
		return eval.TimingResult{}, eval.ErrNilContext
	}
	if pair == nil {
		return eval.TimingResult{}, eval.NewConfigurationError("pair", nil, "must not be nil")
	}
	v, checkable := pair.(interface{ Valid() bool })
	if checkable && !v.Valid() {
		return eval.TimingResult{}, eval.NewConfigurationError("pair", pair.ScenarioName(), "candidate, baseline, input and digest must be set")
	}

	name := pair.ScenarioName()
	_, span := otel.Tracer(tracerName).Start(ctx, "scenario.Runner.Run",
		trace.WithAttributes(
			attribute.String("scenario.name", name),
			attribute.Int("scenario.iterations", iterations),
		),
	)
	defer span.End()

	if iterations <= 0 {
		err := eval.NewConfigurationError("iterations", iterations, "must be positive")
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid iterations")
		return eval.TimingResult{}, err
	}

	config := DefaultConfig()
	for _, opt := range opts {
		opt(config)
	}
	span.SetAttributes(attribute.Int("scenario.warmup", config.Warmup))

	if config.PreSettle {
		r.memory.Settle()
	}

	candidateNanos, candidateSum, err := r.timed(name, "candidate", config.Warmup, iterations, pair.RunCandidate)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "candidate failed")
		return eval.TimingResult{}, err
	}

	r.memory.Settle()

	baselineNanos, baselineSum, err := r.timed(name, "baseline", config.Warmup, iterations, pair.RunBaseline)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "baseline failed")
		return eval.TimingResult{}, err
	}

	result := eval.TimingResult{
		Name:                       name,
		Iterations:                 iterations,
		Warmup:                     config.Warmup,
		CandidateTimeNanos:         candidateNanos,
		BaselineTimeNanos:          baselineNanos,
		RelativeImprovementPercent: eval.RelativeImprovementPercent(baselineNanos, candidateNanos),
		CandidateChecksum:          candidateSum,
		BaselineChecksum:           baselineSum,
	}

	if !result.ChecksumsMatch() {
		r.logger.Warn("variant checksums differ",
			slog.String("scenario", name),
			slog.Uint64("candidate_checksum", candidateSum),
			slog.Uint64("baseline_checksum", baselineSum),
		)
	}

	span.SetAttributes(
		attribute.Int64("scenario.candidate_ns", candidateNanos),
		attribute.Int64("scenario.baseline_ns", baselineNanos),
		attribute.Float64("scenario.improvement_percent", result.RelativeImprovementPercent),
	)
	span.SetStatus(codes.Ok, "scenario completed")

	return result, nil
}

// timed runs the warm-up calls and then one measured pass of run.
func (r *Runner) timed(name, phase string, warmup, iterations int, run func(int) uint64) (nanos int64, sum uint64, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = eval.NewMeasurementFailure(name, phase, &eval.PanicError{Value: p})
		}
	}()

	if warmup > 0 {
		_ = run(warmup)
	}
	nanos = probe.MeasureNanos(func() {
		sum = run(iterations)
	})
	return nanos, sum, nil
}

// RunAllocation measures the heap footprint of both variants of pair.
//
// Description:
//
//	For each variant, candidate first: settle, sample, build, sample again
//	while the built value is still reachable. The next settle releases it.
//	Deltas are best-effort estimates.
//
// Inputs:
//   - ctx: Context for tracing. Must not be nil.
//   - pair: The constructions to compare. Both callables must be set.
//
// Outputs:
//   - eval.AllocationResult: Per-variant memory deltas.
//   - error: *eval.ConfigurationError or *eval.MeasurementFailure.
func (r *Runner) RunAllocation(ctx context.Context, pair eval.AllocationPair) (eval.AllocationResult, error) {
	if ctx == nil {
		return eval.AllocationResult{}, eval.ErrNilContext
	}

	_, span := otel.Tracer(tracerName).Start(ctx, "scenario.Runner.RunAllocation",
		trace.WithAttributes(attribute.String("scenario.name", pair.Name)),
	)
	defer span.End()

	if pair.Candidate == nil || pair.Baseline == nil {
		err := eval.NewConfigurationError("pair", pair.Name, "candidate and baseline must be set")
		span.RecordError(err)
		span.SetStatus(codes.Error, "incomplete pair")
		return eval.AllocationResult{}, err
	}

	candidate, err := r.allocate(pair.Name, "candidate", pair.Candidate)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "candidate failed")
		return eval.AllocationResult{}, err
	}
	baseline, err := r.allocate(pair.Name, "baseline", pair.Baseline)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "baseline failed")
		return eval.AllocationResult{}, err
	}

	r.memory.Settle()

	span.SetAttributes(
		attribute.Int64("scenario.candidate_heap_bytes", candidate.HeapBytes),
		attribute.Int64("scenario.baseline_heap_bytes", baseline.HeapBytes),
	)
	span.SetStatus(codes.Ok, "allocation scenario completed")

	return eval.AllocationResult{
		Name:      pair.Name,
		Candidate: candidate,
		Baseline:  baseline,
	}, nil
}

func (r *Runner) allocate(name, phase string, build func() any) (delta eval.MemoryDelta, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = eval.NewMeasurementFailure(name, phase, &eval.PanicError{Value: p})
		}
	}()

	before := r.memory.SettledSample()
	kept := build()
	after := r.memory.Sample()
	runtime.KeepAlive(kept)

	return eval.Delta(before, after), nil
}
