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
	"fmt"
	"strings"
	"time"

	"github.com/AleutianAI/pairbench/services/harness/eval"
	"github.com/AleutianAI/pairbench/services/harness/eval/probe"
	"github.com/AleutianAI/pairbench/services/harness/workloads"
)

// Kind selects the runner for a scenario.
type Kind string

const (
	KindTiming     Kind = "timing"
	KindAllocation Kind = "allocation"
	KindThroughput Kind = "throughput"
	KindFailure    Kind = "failure"
	KindChurn      Kind = "churn"
)

// Family returns the result family a scenario of this kind produces.
func (k Kind) Family() eval.Family {
	switch k {
	case KindTiming:
		return eval.FamilyTiming
	case KindAllocation:
		return eval.FamilyAllocation
	case KindThroughput:
		return eval.FamilyThroughput
	case KindFailure:
		return eval.FamilyFailure
	case KindChurn:
		return eval.FamilyChurn
	default:
		return eval.FamilyFailed
	}
}

// Scenario is one step of a plan. Only the fields of its Kind are read.
type Scenario struct {
	Name     string
	Kind     Kind
	Workload string

	// Timing and allocation.
	Iterations int
	Warmup     int

	// WarmupBatches turns a timing scenario into a sweep: one timing run per
	// entry, each preceded by that many warm-up batches of WarmupBatchSize
	// calls. Warmup is ignored when set.
	WarmupBatches   []int
	WarmupBatchSize int

	// Throughput.
	Workers      int
	OpsPerWorker int

	// Failure and churn.
	Duration time.Duration

	// Failure.
	Mode              eval.Mode
	AbsentProbability float64
	Seed              uint64

	// Churn.
	Batch int
}

// Plan is the ordered list of scenarios a Suite executes.
type Plan struct {
	// Settle is the grace window after each forced collection.
	Settle time.Duration

	// PoolSize is the stress worker pool size. Zero means runtime.NumCPU().
	PoolSize int

	Scenarios []Scenario
}

// Default durations and sizes.
const (
	DefaultTimingIterations = 10_000_000
	DefaultLoopIterations   = 1_000_000
	DefaultClosureCount     = 1_000_000
	DefaultStressWorkers    = 1000
	DefaultStressOps        = 10_000
	DefaultWarmupBatchSize  = 500_000
	DefaultFailureDuration  = 10 * time.Second
	DefaultChurnDuration    = 10 * time.Second
	DefaultChurnBatch       = 1000
	DefaultSeed             = 1
)

// DefaultPlan returns the built-in scenario sequence.
func DefaultPlan() Plan {
	timing := func(name, workload string, iterations int) Scenario {
		return Scenario{Name: name, Kind: KindTiming, Workload: workload, Iterations: iterations}
	}
	return Plan{
		Settle: probe.DefaultGrace,
		Scenarios: []Scenario{
			timing(workloads.NameSimpleArithmetic, WorkloadSimpleArithmetic, DefaultTimingIterations),
			timing(workloads.NameHigherOrder, WorkloadHigherOrder, DefaultTimingIterations),
			timing(workloads.NameCallsInLoop, WorkloadCallsInLoop, DefaultLoopIterations),
			timing(workloads.NameNestedCalls, WorkloadNestedCalls, DefaultLoopIterations),
			timing(workloads.NameComplexCondition, WorkloadComplexCondition, DefaultTimingIterations),
			timing(workloads.NameGenericCall, WorkloadGenericCall, DefaultTimingIterations),
			{
				Name:            workloads.NameSimpleArithmetic + " Warm-up",
				Kind:            KindTiming,
				Workload:        WorkloadSimpleArithmetic,
				Iterations:      DefaultTimingIterations,
				WarmupBatches:   DefaultWarmupSweep(),
				WarmupBatchSize: DefaultWarmupBatchSize,
			},
			{
				Name:       workloads.NameClosureAllocation,
				Kind:       KindAllocation,
				Workload:   WorkloadClosureAllocation,
				Iterations: DefaultClosureCount,
			},
			{
				Name:         "Atomic Increment",
				Kind:         KindThroughput,
				Workload:     WorkloadAtomicIncrement,
				Workers:      DefaultStressWorkers,
				OpsPerWorker: DefaultStressOps,
			},
			{
				Name:              workloads.NameUncheckedLookup,
				Kind:              KindFailure,
				Workload:          WorkloadNullableLookup,
				Mode:              eval.ModeUnchecked,
				Duration:          DefaultFailureDuration,
				AbsentProbability: 0.5,
				Seed:              DefaultSeed,
			},
			{
				Name:              workloads.NameCheckedLookup,
				Kind:              KindFailure,
				Workload:          WorkloadNullableLookup,
				Mode:              eval.ModeChecked,
				Duration:          DefaultFailureDuration,
				AbsentProbability: 0.5,
				Seed:              DefaultSeed,
			},
			{
				Name:     workloads.NameStringChurn,
				Kind:     KindChurn,
				Workload: WorkloadStringChurn,
				Duration: DefaultChurnDuration,
				Batch:    DefaultChurnBatch,
			},
		},
	}
}

// DefaultWarmupSweep returns the warm-up batch counts of the default sweep.
func DefaultWarmupSweep() []int {
	return []int{0, 1, 2, 5, 10}
}

// Expand returns a copy of p with every warm-up sweep replaced by one timing
// scenario per batch count, in sweep order. Each expanded scenario is named
// "<name> (warm-up N)" and warms up for N*WarmupBatchSize calls; a
// non-positive batch size uses DefaultWarmupBatchSize.
func (p Plan) Expand() Plan {
	out := p
	out.Scenarios = make([]Scenario, 0, len(p.Scenarios))
	for _, sc := range p.Scenarios {
		if sc.Kind != KindTiming || len(sc.WarmupBatches) == 0 {
			out.Scenarios = append(out.Scenarios, sc)
			continue
		}
		size := sc.WarmupBatchSize
		if size <= 0 {
			size = DefaultWarmupBatchSize
		}
		for _, batches := range sc.WarmupBatches {
			step := sc
			step.Name = fmt.Sprintf("%s (warm-up %d)", sc.Name, batches)
			step.Warmup = batches * size
			step.WarmupBatches = nil
			step.WarmupBatchSize = 0
			out.Scenarios = append(out.Scenarios, step)
		}
	}
	return out
}

// Names returns the scenario names in plan order.
func (p Plan) Names() []string {
	names := make([]string, len(p.Scenarios))
	for i, sc := range p.Scenarios {
		names[i] = sc.Name
	}
	return names
}

// Only returns a copy of p restricted to the named scenarios, keeping plan
// order. Names match case-insensitively; an unknown name is a
// *eval.ConfigurationError. An empty list returns p unchanged.
func (p Plan) Only(names []string) (Plan, error) {
	if len(names) == 0 {
		return p, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			wanted[n] = false
		}
	}

	out := p
	out.Scenarios = nil
	for _, sc := range p.Scenarios {
		key := strings.ToLower(sc.Name)
		if _, ok := wanted[key]; ok {
			wanted[key] = true
			out.Scenarios = append(out.Scenarios, sc)
		}
	}
	for _, n := range names {
		key := strings.ToLower(strings.TrimSpace(n))
		if matched, ok := wanted[key]; ok && !matched {
			return Plan{}, eval.NewConfigurationError("only", n, "no such scenario")
		}
	}
	return out, nil
}
