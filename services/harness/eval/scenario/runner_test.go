// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scenario

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/AleutianAI/pairbench/services/harness/eval"
	"github.com/AleutianAI/pairbench/services/harness/eval/probe"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newTestRunner() *Runner {
	return NewRunner(probe.NewMemoryProbe(0))
}

func TestNewRunner(t *testing.T) {
	runner := NewRunner(nil)
	if runner == nil {
		t.Fatal("NewRunner returned nil")
	}
	if runner.memory.Grace() != probe.DefaultGrace {
		t.Errorf("default grace = %v, want %v", runner.memory.Grace(), probe.DefaultGrace)
	}

	runner.SetLogger(nil)
	if runner.logger == nil {
		t.Error("SetLogger(nil) should keep the existing logger")
	}
}

func TestRunOptions(t *testing.T) {
	t.Run("WithWarmup", func(t *testing.T) {
		config := DefaultConfig()
		WithWarmup(500)(config)
		if config.Warmup != 500 {
			t.Errorf("Warmup = %d, want 500", config.Warmup)
		}
	})

	t.Run("WithWarmup ignores negative", func(t *testing.T) {
		config := DefaultConfig()
		WithWarmup(-1)(config)
		if config.Warmup != 0 {
			t.Errorf("Warmup = %d, want 0", config.Warmup)
		}
	})

	t.Run("WithPreSettle", func(t *testing.T) {
		config := DefaultConfig()
		WithPreSettle(true)(config)
		if !config.PreSettle {
			t.Error("PreSettle should be true")
		}
	})
}

func TestRunner_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("nil context", func(t *testing.T) {
		runner := newTestRunner()
		//nolint:staticcheck // nil context is the case under test
		_, err := runner.Run(nil, eval.NewIntPair("x", identity, identity), 10)
		if !errors.Is(err, eval.ErrNilContext) {
			t.Errorf("err = %v, want ErrNilContext", err)
		}
	})

	t.Run("nil pair", func(t *testing.T) {
		runner := newTestRunner()
		_, err := runner.Run(ctx, nil, 10)
		if !errors.Is(err, eval.ErrConfiguration) {
			t.Errorf("err = %v, want ErrConfiguration", err)
		}
	})

	t.Run("zero iterations fails before measuring", func(t *testing.T) {
		runner := newTestRunner()
		calls := 0
		count := func(v int) int { calls++; return v }
		result, err := runner.Run(ctx, eval.NewIntPair("zero", count, count), 0)

		if !errors.Is(err, eval.ErrConfiguration) {
			t.Fatalf("err = %v, want ErrConfiguration", err)
		}
		var ce *eval.ConfigurationError
		if !errors.As(err, &ce) || ce.Field != "iterations" {
			t.Errorf("ConfigurationError field = %v, want iterations", ce)
		}
		if calls != 0 {
			t.Errorf("variants called %d times, want 0", calls)
		}
		if result != (eval.TimingResult{}) {
			t.Errorf("result = %+v, want zero value", result)
		}
	})

	t.Run("typed nil pair", func(t *testing.T) {
		runner := newTestRunner()
		var pair *eval.VariantPair[int, int]
		_, err := runner.Run(ctx, pair, 10)
		if !errors.Is(err, eval.ErrConfiguration) {
			t.Errorf("err = %v, want ErrConfiguration", err)
		}
	})

	t.Run("incomplete pair", func(t *testing.T) {
		runner := newTestRunner()
		_, err := runner.Run(ctx, eval.NewIntPair("half", identity, nil), 10)
		if !errors.Is(err, eval.ErrConfiguration) {
			t.Errorf("err = %v, want ErrConfiguration", err)
		}
	})

	t.Run("measures candidate then baseline", func(t *testing.T) {
		runner := newTestRunner()
		var order []string
		candidate := func(v int) int {
			if len(order) == 0 || order[len(order)-1] != "candidate" {
				order = append(order, "candidate")
			}
			return v * 3
		}
		baseline := func(v int) int {
			if len(order) == 0 || order[len(order)-1] != "baseline" {
				order = append(order, "baseline")
			}
			return v + v + v
		}

		result, err := runner.Run(ctx, eval.NewIntPair("triple", candidate, baseline), 1000)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}

		if strings.Join(order, ",") != "candidate,baseline" {
			t.Errorf("order = %v, want [candidate baseline]", order)
		}
		if result.Name != "triple" || result.Iterations != 1000 {
			t.Errorf("result = %+v", result)
		}
		if result.CandidateTimeNanos < 0 || result.BaselineTimeNanos < 0 {
			t.Errorf("negative timings: %+v", result)
		}
		if !result.ChecksumsMatch() {
			t.Errorf("checksums differ: %d vs %d", result.CandidateChecksum, result.BaselineChecksum)
		}
		// sum of 3*i for i in [0,1000)
		if result.CandidateChecksum != 3*999*1000/2 {
			t.Errorf("CandidateChecksum = %d, want %d", result.CandidateChecksum, 3*999*1000/2)
		}
		want := eval.RelativeImprovementPercent(result.BaselineTimeNanos, result.CandidateTimeNanos)
		if result.RelativeImprovementPercent != want {
			t.Errorf("RelativeImprovementPercent = %v, want %v", result.RelativeImprovementPercent, want)
		}
	})

	t.Run("warmup calls are made before each pass", func(t *testing.T) {
		runner := newTestRunner()
		candidateCalls, baselineCalls := 0, 0
		pair := eval.NewIntPair("warm",
			func(v int) int { candidateCalls++; return v },
			func(v int) int { baselineCalls++; return v },
		)

		result, err := runner.Run(ctx, pair, 100, WithWarmup(25), WithPreSettle(true))
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if candidateCalls != 125 || baselineCalls != 125 {
			t.Errorf("calls = %d/%d, want 125/125", candidateCalls, baselineCalls)
		}
		if result.Warmup != 25 {
			t.Errorf("Warmup = %d, want 25", result.Warmup)
		}
	})

	t.Run("panicking variant is a measurement failure", func(t *testing.T) {
		runner := newTestRunner()
		pair := eval.NewIntPair("boom", identity, func(v int) int { panic("baseline exploded") })

		_, err := runner.Run(ctx, pair, 10)
		if !errors.Is(err, eval.ErrMeasurement) {
			t.Fatalf("err = %v, want ErrMeasurement", err)
		}
		var mf *eval.MeasurementFailure
		if !errors.As(err, &mf) || mf.Phase != "baseline" {
			t.Errorf("MeasurementFailure = %+v, want phase baseline", mf)
		}
	})

	t.Run("differing checksums are logged", func(t *testing.T) {
		var buf bytes.Buffer
		runner := newTestRunner()
		runner.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))

		pair := eval.NewIntPair("skew", identity, func(v int) int { return v + 1 })
		result, err := runner.Run(ctx, pair, 10)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if result.ChecksumsMatch() {
			t.Error("checksums should differ")
		}
		if !strings.Contains(buf.String(), "variant checksums differ") {
			t.Errorf("log = %q, want checksum warning", buf.String())
		}
	})
}

func TestRunner_Run_Span(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		otel.SetTracerProvider(previous)
		_ = tp.Shutdown(context.Background())
	}()

	runner := newTestRunner()
	if _, err := runner.Run(context.Background(), eval.NewIntPair("traced", identity, identity), 10); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "scenario.Runner.Run" {
		t.Errorf("Span name = %s, want scenario.Runner.Run", spans[0].Name())
	}
}

var sinkRetained []byte

func TestRunner_RunAllocation(t *testing.T) {
	ctx := context.Background()

	t.Run("measures both variants", func(t *testing.T) {
		runner := newTestRunner()
		pair := eval.AllocationPair{
			Name:      "slices",
			Candidate: func() any { return make([]byte, 1<<20) },
			Baseline:  func() any { return make([]byte, 4<<20) },
		}

		result, err := runner.RunAllocation(ctx, pair)
		if err != nil {
			t.Fatalf("RunAllocation failed: %v", err)
		}
		if result.Name != "slices" {
			t.Errorf("Name = %q, want slices", result.Name)
		}
		if result.Candidate.AllocatedBytes < 1<<20 {
			t.Errorf("candidate AllocatedBytes = %d, want >= 1MiB", result.Candidate.AllocatedBytes)
		}
		if result.Baseline.AllocatedBytes < 4<<20 {
			t.Errorf("baseline AllocatedBytes = %d, want >= 4MiB", result.Baseline.AllocatedBytes)
		}
	})

	t.Run("missing variant", func(t *testing.T) {
		runner := newTestRunner()
		_, err := runner.RunAllocation(ctx, eval.AllocationPair{Name: "x"})
		if !errors.Is(err, eval.ErrConfiguration) {
			t.Errorf("err = %v, want ErrConfiguration", err)
		}
	})

	t.Run("panicking variant", func(t *testing.T) {
		runner := newTestRunner()
		pair := eval.AllocationPair{
			Name:      "panics",
			Candidate: func() any { panic("no memory for you") },
			Baseline:  func() any { return sinkRetained },
		}
		_, err := runner.RunAllocation(ctx, pair)
		if !errors.Is(err, eval.ErrMeasurement) {
			t.Errorf("err = %v, want ErrMeasurement", err)
		}
	})
}

func identity(v int) int { return v }
