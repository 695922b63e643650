// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package suite executes a plan of scenarios in a fixed order and owns the
// resulting ResultSet.
package suite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/AleutianAI/pairbench/services/harness/eval"
	"github.com/AleutianAI/pairbench/services/harness/eval/churn"
	"github.com/AleutianAI/pairbench/services/harness/eval/failure"
	"github.com/AleutianAI/pairbench/services/harness/eval/probe"
	"github.com/AleutianAI/pairbench/services/harness/eval/scenario"
	"github.com/AleutianAI/pairbench/services/harness/eval/stress"
	"github.com/AleutianAI/pairbench/services/harness/eval/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "harness.suite"

// Option configures a Suite.
type Option func(*Suite)

// WithSink forwards every entry to sink. Nil values are ignored.
func WithSink(sink telemetry.Sink) Option {
	return func(s *Suite) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithLogger sets the logger for the suite and its runners. Nil values are
// ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Suite) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Suite runs scenarios in plan order.
//
// Description:
//
//	Each scenario is dispatched to the runner of its kind. A scenario that
//	fails is recorded as an eval.FailedResult in its slot and the next
//	scenario still runs, so the set always holds one entry per scenario in
//	invocation order.
//
// Thread Safety: Not safe for concurrent Run calls; concurrent runs would
// disturb each other's measurements.
type Suite struct {
	plan Plan

	timing   *scenario.Runner
	stress   *stress.Runner
	failures *failure.Counter
	churn    *churn.Runner

	sink   telemetry.Sink
	logger *slog.Logger
}

// New creates a suite for plan. Warm-up sweeps are expanded here, so Plan
// reports the scenarios that Run executes.
func New(plan Plan, opts ...Option) *Suite {
	s := &Suite{
		plan:   plan.Expand(),
		sink:   telemetry.NewNoOpSink(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	memory := probe.NewMemoryProbe(plan.Settle)
	s.timing = scenario.NewRunner(memory)
	s.stress = stress.NewRunner(stress.WithPoolSize(plan.PoolSize))
	s.failures = failure.NewCounter()
	s.churn = churn.NewRunner(memory)

	s.timing.SetLogger(s.logger)
	s.stress.SetLogger(s.logger)
	s.failures.SetLogger(s.logger)
	s.churn.SetLogger(s.logger)
	return s
}

// Plan returns the expanded plan the suite runs.
func (s *Suite) Plan() Plan {
	return s.plan
}

// Run executes every scenario and returns the populated set.
//
// Inputs:
//   - ctx: Context for tracing. Must not be nil. Checked between scenarios;
//     a cancelled context stops the run before the next scenario starts.
//
// Outputs:
//   - *eval.ResultSet: One entry per executed scenario. Never nil unless ctx
//     is nil.
//   - error: The scenario failures joined with errors.Join, or the context
//     error. Nil when every scenario succeeded.
func (s *Suite) Run(ctx context.Context) (*eval.ResultSet, error) {
	if ctx == nil {
		return nil, eval.ErrNilContext
	}

	set := eval.NewResultSet()
	logger := s.logger.With(slog.String("run_id", set.RunID.String()))

	ctx, span := otel.Tracer(tracerName).Start(ctx, "suite.Suite.Run",
		trace.WithAttributes(
			attribute.String("suite.run_id", set.RunID.String()),
			attribute.Int("suite.scenarios", len(s.plan.Scenarios)),
		),
	)
	defer span.End()

	logger.Info("benchmark suite starting", slog.Int("scenarios", len(s.plan.Scenarios)))

	var errs []error
	for i, sc := range s.plan.Scenarios {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		logger.Info("running scenario",
			slog.Int("index", i),
			slog.String("scenario", sc.Name),
			slog.String("kind", string(sc.Kind)),
		)

		entry, err := s.runScenario(ctx, sc)
		if err != nil {
			logger.Error("scenario failed",
				slog.String("scenario", sc.Name),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("scenario %q: %w", sc.Name, err))
			entry = eval.FailedResult{Name: sc.Name, Intended: sc.Kind.Family(), Err: err}
			s.forward(logger, func() error {
				return s.sink.RecordError(ctx, telemetry.NewErrorData(sc.Name, sc.Kind.Family(), err))
			})
		}

		set.Append(entry)
		s.forward(logger, func() error { return s.sink.RecordEntry(ctx, entry) })
	}

	err := errors.Join(errs...)
	span.SetAttributes(attribute.Int("suite.failed", len(set.Failed())))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "scenarios failed")
	} else {
		span.SetStatus(codes.Ok, "suite completed")
	}
	logger.Info("benchmark suite finished",
		slog.Int("entries", set.Len()),
		slog.Int("failed", len(set.Failed())),
	)
	return set, err
}

// forward calls a sink method and logs its error. Sink errors never fail
// the run.
func (s *Suite) forward(logger *slog.Logger, call func() error) {
	if err := call(); err != nil {
		logger.Warn("telemetry sink rejected record", slog.String("error", err.Error()))
	}
}

func (s *Suite) runScenario(ctx context.Context, sc Scenario) (eval.Entry, error) {
	switch sc.Kind {
	case KindTiming:
		if sc.Warmup < 0 {
			return nil, eval.NewConfigurationError("warmup", sc.Warmup, "must not be negative")
		}
		pair, err := timingPair(sc)
		if err != nil {
			return nil, err
		}
		return s.timing.Run(ctx, pair, sc.Iterations, scenario.WithWarmup(sc.Warmup))

	case KindAllocation:
		pair, err := allocationPair(sc)
		if err != nil {
			return nil, err
		}
		return s.timing.RunAllocation(ctx, pair)

	case KindThroughput:
		op, err := stressOperation(sc)
		if err != nil {
			return nil, err
		}
		return s.stress.Run(ctx, sc.Name, sc.Workers, sc.OpsPerWorker, op)

	case KindFailure:
		v, err := failureVariant(sc)
		if err != nil {
			return nil, err
		}
		return s.failures.RunForDuration(ctx, sc.Duration, v)

	case KindChurn:
		work, err := churnWorkload(sc)
		if err != nil {
			return nil, err
		}
		return s.churn.RunForDuration(ctx, sc.Name, sc.Duration, work)

	default:
		return nil, eval.NewConfigurationError("kind", string(sc.Kind), "unknown scenario kind")
	}
}
