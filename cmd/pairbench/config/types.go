// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config holds the YAML form of a benchmark plan.
package config

import (
	"slices"
	"time"

	"github.com/AleutianAI/pairbench/services/harness/eval"
	"github.com/AleutianAI/pairbench/services/harness/eval/probe"
	"github.com/AleutianAI/pairbench/services/harness/suite"
)

// Plan is the on-disk plan.
type Plan struct {
	// Settle is the grace window after each forced collection, e.g. "500ms".
	// Omitted means probe.DefaultGrace; "0s" disables the wait.
	Settle string `yaml:"settle,omitempty" validate:"omitempty,duration"`

	// PoolSize is the stress worker pool size; 0 means one per CPU.
	PoolSize int `yaml:"pool_size,omitempty" validate:"gte=0"`

	Scenarios []ScenarioConfig `yaml:"scenarios" validate:"required,min=1,unique=Name,dive"`
}

// ScenarioConfig is one plan step. Fields that do not apply to Kind are
// ignored. Positivity of counts and durations is checked by the runners so
// that a bad value fails only its own scenario.
type ScenarioConfig struct {
	Name     string `yaml:"name" validate:"required,scenario_name"`
	Kind     string `yaml:"kind" validate:"required,oneof=timing allocation throughput failure churn"`
	Workload string `yaml:"workload" validate:"required,workload_id"`

	Iterations int `yaml:"iterations,omitempty"`
	Warmup     int `yaml:"warmup,omitempty"`

	WarmupBatches   []int `yaml:"warmup_batches,omitempty" validate:"omitempty,dive,gte=0"`
	WarmupBatchSize int   `yaml:"warmup_batch_size,omitempty"`

	Workers      int `yaml:"workers,omitempty"`
	OpsPerWorker int `yaml:"ops_per_worker,omitempty"`

	Duration string `yaml:"duration,omitempty" validate:"omitempty,duration"`

	Mode              string  `yaml:"mode,omitempty" validate:"omitempty,oneof=checked unchecked"`
	AbsentProbability float64 `yaml:"absent_probability,omitempty" validate:"gte=0,lte=1"`
	Seed              uint64  `yaml:"seed,omitempty"`

	Batch int `yaml:"batch,omitempty"`
}

// DefaultPlan returns the built-in plan in YAML form.
func DefaultPlan() Plan {
	return FromSuite(suite.DefaultPlan())
}

// FromSuite converts a runtime plan to its YAML form.
func FromSuite(p suite.Plan) Plan {
	out := Plan{PoolSize: p.PoolSize, Settle: p.Settle.String()}
	for _, sc := range p.Scenarios {
		c := ScenarioConfig{
			Name:            sc.Name,
			Kind:            string(sc.Kind),
			Workload:        sc.Workload,
			Iterations:      sc.Iterations,
			Warmup:          sc.Warmup,
			WarmupBatches:   slices.Clone(sc.WarmupBatches),
			WarmupBatchSize: sc.WarmupBatchSize,
			Workers:         sc.Workers,
			OpsPerWorker:    sc.OpsPerWorker,
			Seed:            sc.Seed,
			Batch:           sc.Batch,
		}
		if sc.Duration != 0 {
			c.Duration = sc.Duration.String()
		}
		if sc.Kind == suite.KindFailure {
			c.Mode = sc.Mode.String()
			c.AbsentProbability = sc.AbsentProbability
		}
		out.Scenarios = append(out.Scenarios, c)
	}
	return out
}

// ToSuite converts a validated plan to its runtime form.
//
// Outputs:
//   - suite.Plan: The runtime plan.
//   - error: ErrInvalidPlan if the plan does not validate.
func (p Plan) ToSuite() (suite.Plan, error) {
	if err := p.Validate(); err != nil {
		return suite.Plan{}, err
	}

	out := suite.Plan{PoolSize: p.PoolSize, Settle: probe.DefaultGrace}
	if p.Settle != "" {
		out.Settle, _ = parseDuration(p.Settle)
	}

	for _, c := range p.Scenarios {
		sc := suite.Scenario{
			Name:              c.Name,
			Kind:              suite.Kind(c.Kind),
			Workload:          c.Workload,
			Iterations:        c.Iterations,
			Warmup:            c.Warmup,
			WarmupBatches:     slices.Clone(c.WarmupBatches),
			WarmupBatchSize:   c.WarmupBatchSize,
			Workers:           c.Workers,
			OpsPerWorker:      c.OpsPerWorker,
			AbsentProbability: c.AbsentProbability,
			Seed:              c.Seed,
			Batch:             c.Batch,
		}
		sc.Duration, _ = parseDuration(c.Duration)
		if mode, ok := eval.ParseMode(c.Mode); ok {
			sc.Mode = mode
		}
		out.Scenarios = append(out.Scenarios, sc)
	}
	return out, nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}
