// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/AleutianAI/pairbench/services/harness/eval"
	"github.com/prometheus/client_golang/prometheus"
)

// otherLabel replaces label values beyond the cardinality limit.
const otherLabel = "_other"

// PrometheusConfig configures a PrometheusSink.
type PrometheusConfig struct {
	// Namespace is the metrics namespace. Required.
	Namespace string

	// Subsystem is the metrics subsystem. Required.
	Subsystem string

	// Registry receives the collectors. If nil, prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// CostBuckets are the histogram buckets for per-operation cost in
	// nanoseconds. If nil, defaults are used.
	CostBuckets []float64

	// MaxLabelCardinality caps distinct scenario names; further names are
	// recorded as "_other". Default: 1000.
	MaxLabelCardinality int
}

// DefaultPrometheusConfig returns the default configuration.
func DefaultPrometheusConfig() *PrometheusConfig {
	return &PrometheusConfig{
		Namespace:           "pairbench",
		Subsystem:           "eval",
		CostBuckets:         prometheus.ExponentialBuckets(0.25, 4, 12),
		MaxLabelCardinality: 1000,
	}
}

// Validate checks required fields.
func (c *PrometheusConfig) Validate() error {
	if c.Namespace == "" {
		return errors.New("namespace is required")
	}
	if c.Subsystem == "" {
		return errors.New("subsystem is required")
	}
	return nil
}

// PrometheusSink exposes harness results as Prometheus metrics.
//
// Description:
//
//	Each family maps to its own collectors. Gauges hold the latest value
//	per scenario and variant; counters accumulate across runs that share
//	a registry.
//
// Thread Safety: Safe for concurrent use.
type PrometheusSink struct {
	config   PrometheusConfig
	registry prometheus.Registerer

	variantNanos     *prometheus.GaugeVec
	improvement      *prometheus.GaugeVec
	allocatedBytes   *prometheus.GaugeVec
	heapDeltaBytes   *prometheus.GaugeVec
	throughput       *prometheus.GaugeVec
	operationCost    *prometheus.HistogramVec
	failureRate      *prometheus.GaugeVec
	calls            *prometheus.CounterVec
	churnObjects     *prometheus.CounterVec
	gcCycles         *prometheus.CounterVec
	entries          *prometheus.CounterVec
	scenarioFailures *prometheus.CounterVec

	collectors []prometheus.Collector

	mu     sync.RWMutex
	closed bool

	labelMu    sync.Mutex
	seenLabels map[string]struct{}
}

// NewPrometheusSink creates the collectors and registers them.
//
// Inputs:
//   - config: Must not be nil and must validate.
//
// Outputs:
//   - *PrometheusSink: The sink.
//   - error: ErrInvalidConfig, or a registration error. A collector that is
//     already registered is tolerated.
func NewPrometheusSink(config *PrometheusConfig) (*PrometheusSink, error) {
	if config == nil {
		return nil, ErrInvalidConfig
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	cfg := *config
	if cfg.CostBuckets == nil {
		cfg.CostBuckets = DefaultPrometheusConfig().CostBuckets
	}
	if cfg.MaxLabelCardinality <= 0 {
		cfg.MaxLabelCardinality = 1000
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	gauge := func(name, help string, labels ...string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem, Name: name, Help: help,
		}, labels)
	}
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem, Name: name, Help: help,
		}, labels)
	}

	s := &PrometheusSink{
		config:         cfg,
		registry:       registry,
		seenLabels:     make(map[string]struct{}),
		variantNanos:   gauge("variant_time_nanoseconds", "Measured time of one variant pass", "scenario", "variant"),
		improvement:    gauge("relative_improvement_percent", "Baseline over candidate time, as a percentage above 100", "scenario"),
		allocatedBytes: gauge("allocated_bytes", "Bytes allocated while building a variant's value", "scenario", "variant"),
		heapDeltaBytes: gauge("heap_delta_bytes", "Live heap change across a variant or churn run", "scenario", "variant"),
		throughput:     gauge("throughput_operations_per_second", "Operations per second under contention", "scenario"),
		operationCost: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace, Subsystem: cfg.Subsystem,
			Name:    "operation_cost_nanoseconds",
			Help:    "Per-operation cost under contention",
			Buckets: cfg.CostBuckets,
		}, []string{"scenario"}),
		failureRate:      gauge("failure_rate_percent", "Designated failures as a share of calls", "scenario", "mode"),
		calls:            counter("calls_total", "Calls made by failure-rate runs", "scenario", "outcome"),
		churnObjects:     counter("churn_objects_total", "Objects created by churn workloads", "scenario"),
		gcCycles:         counter("gc_cycles_total", "Garbage collections observed during runs", "scenario"),
		entries:          counter("entries_total", "Result entries recorded", "family"),
		scenarioFailures: counter("scenario_failures_total", "Scenarios that could not be measured", "scenario", "error_type"),
	}

	s.collectors = []prometheus.Collector{
		s.variantNanos, s.improvement, s.allocatedBytes, s.heapDeltaBytes,
		s.throughput, s.operationCost, s.failureRate, s.calls,
		s.churnObjects, s.gcCycles, s.entries, s.scenarioFailures,
	}
	for _, c := range s.collectors {
		if err := registry.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return nil, fmt.Errorf("registering collector: %w", err)
			}
		}
	}

	return s, nil
}

func (s *PrometheusSink) open() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}
	return nil
}

// RecordEntry updates the collectors of the entry's family. A FailedResult
// only counts towards entries_total; the failure itself is counted by
// RecordError.
func (s *PrometheusSink) RecordEntry(ctx context.Context, entry eval.Entry) error {
	if ctx == nil {
		return eval.ErrNilContext
	}
	if entry == nil {
		return ErrNilData
	}
	if err := s.open(); err != nil {
		return err
	}

	name := s.scenarioLabel(entry.ScenarioName())
	s.entries.WithLabelValues(string(entry.Family())).Inc()

	switch e := entry.(type) {
	case eval.TimingResult:
		s.variantNanos.WithLabelValues(name, "candidate").Set(float64(e.CandidateTimeNanos))
		s.variantNanos.WithLabelValues(name, "baseline").Set(float64(e.BaselineTimeNanos))
		s.improvement.WithLabelValues(name).Set(e.RelativeImprovementPercent)
	case eval.AllocationResult:
		s.allocatedBytes.WithLabelValues(name, "candidate").Set(float64(e.Candidate.AllocatedBytes))
		s.allocatedBytes.WithLabelValues(name, "baseline").Set(float64(e.Baseline.AllocatedBytes))
		s.heapDeltaBytes.WithLabelValues(name, "candidate").Set(float64(e.Candidate.HeapBytes))
		s.heapDeltaBytes.WithLabelValues(name, "baseline").Set(float64(e.Baseline.HeapBytes))
	case eval.ThroughputResult:
		s.throughput.WithLabelValues(name).Set(e.OperationsPerSecond)
		s.operationCost.WithLabelValues(name).Observe(e.PerOperationCostMillis * 1e6)
	case eval.FailureStats:
		s.failureRate.WithLabelValues(name, e.Mode.String()).Set(e.FailureRatePercent)
		s.calls.WithLabelValues(name, "ok").Add(float64(e.TotalCalls - e.FailureCount))
		s.calls.WithLabelValues(name, "failed").Add(float64(e.FailureCount))
	case eval.ChurnResult:
		s.churnObjects.WithLabelValues(name).Add(float64(e.ObjectsCreated))
		s.gcCycles.WithLabelValues(name).Add(float64(e.Memory.GCCycles))
		s.heapDeltaBytes.WithLabelValues(name, "churn").Set(float64(e.Memory.HeapBytes))
	}
	return nil
}

// RecordError counts a scenario failure.
func (s *PrometheusSink) RecordError(ctx context.Context, data *ErrorData) error {
	if ctx == nil {
		return eval.ErrNilContext
	}
	if data == nil {
		return ErrNilData
	}
	if err := s.open(); err != nil {
		return err
	}

	errorType := data.ErrorType
	if errorType == "" {
		errorType = "internal"
	}
	s.scenarioFailures.WithLabelValues(s.scenarioLabel(data.Scenario), errorType).Inc()
	return nil
}

// Flush is a no-op; Prometheus is pull-based.
func (s *PrometheusSink) Flush(ctx context.Context) error {
	if ctx == nil {
		return eval.ErrNilContext
	}
	return s.open()
}

// Close marks the sink closed and unregisters its collectors when the
// registry is a *prometheus.Registry.
func (s *PrometheusSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if reg, ok := s.registry.(*prometheus.Registry); ok {
		for _, c := range s.collectors {
			reg.Unregister(c)
		}
	}
	return nil
}

// scenarioLabel bounds the number of distinct scenario label values.
func (s *PrometheusSink) scenarioLabel(name string) string {
	if name == "" {
		name = "unknown"
	}
	s.labelMu.Lock()
	defer s.labelMu.Unlock()
	if _, ok := s.seenLabels[name]; ok {
		return name
	}
	if len(s.seenLabels) >= s.config.MaxLabelCardinality {
		return otherLabel
	}
	s.seenLabels[name] = struct{}{}
	return name
}

var _ Sink = (*PrometheusSink)(nil)
