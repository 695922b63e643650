// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package suite

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/AleutianAI/pairbench/services/harness/eval"
	"github.com/AleutianAI/pairbench/services/harness/eval/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	telemetry.NoOpSink
	mu      sync.Mutex
	entries []string
	errors  []string
}

func (c *captureSink) RecordEntry(_ context.Context, e eval.Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e.ScenarioName())
	return nil
}

func (c *captureSink) RecordError(_ context.Context, d *telemetry.ErrorData) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, d.Scenario+":"+d.ErrorType)
	return nil
}

// quickPlan is DefaultPlan scaled down for tests.
func quickPlan() Plan {
	p := DefaultPlan()
	p.Settle = 0
	p.PoolSize = 2
	for i := range p.Scenarios {
		sc := &p.Scenarios[i]
		switch sc.Kind {
		case KindTiming:
			sc.Iterations = 1000
			sc.WarmupBatchSize = 10
		case KindAllocation:
			sc.Iterations = 100
		case KindThroughput:
			sc.Workers = 4
			sc.OpsPerWorker = 100
		case KindFailure, KindChurn:
			sc.Duration = 10 * time.Millisecond
		}
	}
	return p
}

func TestDefaultPlan(t *testing.T) {
	p := DefaultPlan()
	require.Len(t, p.Scenarios, 12)

	seen := make(map[string]bool)
	for _, sc := range p.Scenarios {
		assert.False(t, seen[sc.Name], "duplicate scenario %q", sc.Name)
		seen[sc.Name] = true
		assert.Contains(t, Workloads(sc.Kind), sc.Workload, "scenario %q", sc.Name)
	}
	assert.Equal(t, KindTiming, p.Scenarios[0].Kind)
	assert.Equal(t, KindChurn, p.Scenarios[len(p.Scenarios)-1].Kind)

	sweep := p.Scenarios[6]
	assert.Equal(t, KindTiming, sweep.Kind)
	assert.Equal(t, []int{0, 1, 2, 5, 10}, sweep.WarmupBatches)
	assert.Equal(t, DefaultWarmupBatchSize, sweep.WarmupBatchSize)
}

func TestSuite_Run_AllScenarios(t *testing.T) {
	plan := quickPlan()
	sink := &captureSink{}
	s := New(plan, WithSink(sink), WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))

	set, err := s.Run(context.Background())
	require.NoError(t, err)

	invoked := s.Plan().Scenarios
	require.Len(t, invoked, len(plan.Scenarios)+4, "one sweep of five runs replaces one scenario")
	require.Equal(t, len(invoked), set.Len())

	entries := set.Entries()
	for i, sc := range invoked {
		assert.Equal(t, sc.Name, entries[i].ScenarioName())
		assert.Equal(t, sc.Kind.Family(), entries[i].Family())
	}
	assert.Equal(t, s.Plan().Names(), sink.entries)
	assert.Empty(t, sink.errors)
	assert.Empty(t, set.Failed())

	for i, batches := range DefaultWarmupSweep() {
		timing := entries[6+i].(eval.TimingResult)
		assert.Equal(t, batches*10, timing.Warmup, timing.Name)
	}

	checked := entries[14].(eval.FailureStats)
	assert.Equal(t, eval.ModeChecked, checked.Mode)
	assert.Zero(t, checked.FailureCount)

	stress := entries[12].(eval.ThroughputResult)
	assert.Equal(t, int64(400), stress.TotalOperations)
}

func TestSuite_Run_FailureIsolation(t *testing.T) {
	plan := Plan{
		Scenarios: []Scenario{
			{Name: "first", Kind: KindTiming, Workload: WorkloadSimpleArithmetic, Iterations: 100},
			{Name: "zero iterations", Kind: KindTiming, Workload: WorkloadSimpleArithmetic, Iterations: 0},
			{Name: "bad workload", Kind: KindChurn, Workload: "bogus", Duration: time.Millisecond},
			{Name: "bad kind", Kind: Kind("latency")},
			{Name: "no workers", Kind: KindThroughput, Workload: WorkloadAtomicIncrement, Workers: 0, OpsPerWorker: 1},
			{Name: "negative warmup", Kind: KindTiming, Workload: WorkloadSimpleArithmetic, Iterations: 100, Warmup: -1},
			{Name: "last", Kind: KindTiming, Workload: WorkloadNestedCalls, Iterations: 100},
		},
	}
	sink := &captureSink{}
	set, err := New(plan, WithSink(sink)).Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, eval.ErrConfiguration)
	require.Equal(t, 7, set.Len())

	entries := set.Entries()
	assert.Equal(t, eval.FamilyTiming, entries[0].Family())
	assert.Equal(t, eval.FamilyTiming, entries[6].Family())
	for _, e := range entries[1:6] {
		assert.Equal(t, eval.FamilyFailed, e.Family(), e.ScenarioName())
	}

	failed := set.Failed()
	require.Len(t, failed, 5)
	assert.Equal(t, eval.FamilyTiming, failed[0].Intended)
	assert.Equal(t, eval.FamilyThroughput, failed[3].Intended)
	assert.Equal(t, eval.FamilyTiming, failed[4].Intended)
	assert.Len(t, sink.errors, 5)
	assert.Contains(t, sink.errors, "zero iterations:configuration")
}

func TestSuite_Run_FailureCountedOnce(t *testing.T) {
	registry := prometheus.NewRegistry()
	cfg := telemetry.DefaultPrometheusConfig()
	cfg.Registry = registry
	sink, err := telemetry.NewPrometheusSink(cfg)
	require.NoError(t, err)
	defer sink.Close()

	plan := Plan{Scenarios: []Scenario{
		{Name: "Broken", Kind: KindTiming, Workload: WorkloadSimpleArithmetic, Iterations: 0},
	}}
	set, err := New(plan, WithSink(sink)).Run(context.Background())
	require.Error(t, err)
	require.Len(t, set.Failed(), 1)

	families, err := registry.Gather()
	require.NoError(t, err)

	values := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			values[mf.GetName()] += m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, values["pairbench_eval_scenario_failures_total"])
	assert.Equal(t, 1.0, values["pairbench_eval_entries_total"])
}

func TestSuite_Run_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	set, err := New(quickPlan()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, set.Len())

	//nolint:staticcheck // nil context is the case under test
	_, err = New(quickPlan()).Run(nil)
	assert.ErrorIs(t, err, eval.ErrNilContext)
}

func TestPlan_Only(t *testing.T) {
	p := DefaultPlan()

	t.Run("keeps plan order", func(t *testing.T) {
		got, err := p.Only([]string{"string churn", "Simple Arithmetic"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Simple Arithmetic", "String Churn"}, got.Names())
		assert.Len(t, p.Scenarios, 12, "receiver plan untouched")
	})

	t.Run("empty list", func(t *testing.T) {
		got, err := p.Only(nil)
		require.NoError(t, err)
		assert.Equal(t, p.Names(), got.Names())
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := p.Only([]string{"Simple Arithmetic", "warp drive"})
		var ce *eval.ConfigurationError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "only", ce.Field)
		assert.Equal(t, "warp drive", ce.Value)
	})
}

func TestPlan_Expand(t *testing.T) {
	p := Plan{Settle: time.Second, Scenarios: []Scenario{
		{Name: "Before", Kind: KindChurn, Workload: WorkloadStringChurn},
		{Name: "Sweep", Kind: KindTiming, Workload: WorkloadNestedCalls, Iterations: 50, WarmupBatches: []int{0, 3}, WarmupBatchSize: 7},
		{Name: "Default Size", Kind: KindTiming, Workload: WorkloadSimpleArithmetic, Iterations: 50, WarmupBatches: []int{2}},
		{Name: "Not Timing", Kind: KindChurn, Workload: WorkloadStringChurn, WarmupBatches: []int{1}},
	}}

	got := p.Expand()
	assert.Equal(t, time.Second, got.Settle)
	assert.Equal(t, []string{
		"Before",
		"Sweep (warm-up 0)",
		"Sweep (warm-up 3)",
		"Default Size (warm-up 2)",
		"Not Timing",
	}, got.Names())

	assert.Equal(t, 0, got.Scenarios[1].Warmup)
	assert.Equal(t, 21, got.Scenarios[2].Warmup)
	assert.Equal(t, 50, got.Scenarios[2].Iterations)
	assert.Equal(t, WorkloadNestedCalls, got.Scenarios[2].Workload)
	assert.Equal(t, 2*DefaultWarmupBatchSize, got.Scenarios[3].Warmup)
	assert.Nil(t, got.Scenarios[1].WarmupBatches)

	assert.Len(t, p.Scenarios, 4, "receiver plan untouched")
	assert.Equal(t, got.Names(), got.Expand().Names(), "expanding twice changes nothing")
}

func TestFailureVariant(t *testing.T) {
	tests := []struct {
		workload string
		mode     eval.Mode
		kind     eval.FailureKind
	}{
		{WorkloadNullableLookup, eval.ModeUnchecked, eval.FailureNilDereference},
		{WorkloadNullableLookup, eval.ModeChecked, eval.FailureNone},
		{WorkloadOptionalUnwrap, eval.ModeUnchecked, eval.FailureAbsentValue},
		{WorkloadOptionalUnwrap, eval.ModeChecked, eval.FailureNone},
	}
	for _, tt := range tests {
		v, err := failureVariant(Scenario{Name: "x", Workload: tt.workload, Mode: tt.mode, AbsentProbability: 0.5})
		require.NoError(t, err)
		assert.Equal(t, tt.kind, v.Kind, "%s/%s", tt.workload, tt.mode)
		assert.NotNil(t, v.Call)
	}

	_, err := failureVariant(Scenario{Workload: "nope"})
	assert.ErrorIs(t, err, eval.ErrConfiguration)
}

func TestKind_Family(t *testing.T) {
	assert.Equal(t, eval.FamilyChurn, KindChurn.Family())
	assert.Equal(t, eval.FamilyFailed, Kind("other").Family())
	assert.Empty(t, Workloads(Kind("other")))
	assert.Len(t, Workloads(KindTiming), 6)
}
