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
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/AleutianAI/pairbench/services/harness/eval/telemetry"

// OTelConfig configures an OTelSink.
type OTelConfig struct {
	// ServiceName is required.
	ServiceName string

	// ServiceVersion is recorded as the instrumentation version.
	ServiceVersion string

	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider

	// MeterProvider defaults to the global provider.
	MeterProvider metric.MeterProvider

	// TraceEnabled emits one span per recorded entry.
	TraceEnabled bool

	// MetricsEnabled records instruments per entry.
	MetricsEnabled bool
}

// DefaultOTelConfig returns the default configuration.
func DefaultOTelConfig() *OTelConfig {
	return &OTelConfig{
		ServiceName:    "pairbench",
		ServiceVersion: "0.1.0",
		TraceEnabled:   true,
		MetricsEnabled: true,
	}
}

// Validate checks required fields.
func (c *OTelConfig) Validate() error {
	if c.ServiceName == "" {
		return errors.New("service name is required")
	}
	return nil
}

// OTelSink records harness results as OpenTelemetry spans and instruments.
//
// The sink does not own its providers; Flush and Close leave them running.
//
// Thread Safety: Safe for concurrent use.
type OTelSink struct {
	config OTelConfig
	tracer trace.Tracer
	meter  metric.Meter

	variantTime  metric.Int64Gauge
	improvement  metric.Float64Gauge
	allocated    metric.Int64Histogram
	throughput   metric.Float64Gauge
	failureRate  metric.Float64Gauge
	calls        metric.Int64Counter
	churnObjects metric.Int64Counter
	failures     metric.Int64Counter

	mu     sync.RWMutex
	closed bool
}

// NewOTelSink creates a sink from config.
func NewOTelSink(config *OTelConfig) (*OTelSink, error) {
	if config == nil {
		return nil, ErrInvalidConfig
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidConfig, err)
	}

	cfg := *config
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	mp := cfg.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	s := &OTelSink{
		config: cfg,
		tracer: tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(cfg.ServiceVersion)),
		meter:  mp.Meter(instrumentationName, metric.WithInstrumentationVersion(cfg.ServiceVersion)),
	}
	if cfg.MetricsEnabled {
		if err := s.initInstruments(); err != nil {
			return nil, fmt.Errorf("creating instruments: %w", err)
		}
	}
	return s, nil
}

func (s *OTelSink) initInstruments() error {
	var err error
	if s.variantTime, err = s.meter.Int64Gauge("pairbench.variant.time",
		metric.WithDescription("Measured time of one variant pass"),
		metric.WithUnit("ns")); err != nil {
		return err
	}
	if s.improvement, err = s.meter.Float64Gauge("pairbench.relative_improvement",
		metric.WithDescription("Baseline over candidate time, as a percentage above 100"),
		metric.WithUnit("%")); err != nil {
		return err
	}
	if s.allocated, err = s.meter.Int64Histogram("pairbench.allocated",
		metric.WithDescription("Bytes allocated while building a variant's value"),
		metric.WithUnit("By")); err != nil {
		return err
	}
	if s.throughput, err = s.meter.Float64Gauge("pairbench.throughput",
		metric.WithDescription("Operations per second under contention"),
		metric.WithUnit("{operation}/s")); err != nil {
		return err
	}
	if s.failureRate, err = s.meter.Float64Gauge("pairbench.failure.rate",
		metric.WithDescription("Designated failures as a share of calls"),
		metric.WithUnit("%")); err != nil {
		return err
	}
	if s.calls, err = s.meter.Int64Counter("pairbench.failure.calls",
		metric.WithDescription("Calls made by failure-rate runs"),
		metric.WithUnit("{call}")); err != nil {
		return err
	}
	if s.churnObjects, err = s.meter.Int64Counter("pairbench.churn.objects",
		metric.WithDescription("Objects created by churn workloads"),
		metric.WithUnit("{object}")); err != nil {
		return err
	}
	s.failures, err = s.meter.Int64Counter("pairbench.scenario.failures",
		metric.WithDescription("Scenarios that could not be measured"),
		metric.WithUnit("{scenario}"))
	return err
}

func (s *OTelSink) open() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}
	return nil
}

// RecordEntry emits a "pairbench.entry" span and updates instruments.
// Failed entries get an error span but are counted only by RecordError.
func (s *OTelSink) RecordEntry(ctx context.Context, entry eval.Entry) error {
	if ctx == nil {
		return eval.ErrNilContext
	}
	if entry == nil {
		return ErrNilData
	}
	if err := s.open(); err != nil {
		return err
	}

	base := []attribute.KeyValue{
		attribute.String("scenario", entry.ScenarioName()),
		attribute.String("family", string(entry.Family())),
	}
	detail := entryAttributes(entry)

	if s.config.TraceEnabled {
		_, span := s.tracer.Start(ctx, "pairbench.entry", trace.WithAttributes(append(base, detail...)...))
		if f, ok := entry.(eval.FailedResult); ok && f.Err != nil {
			span.SetStatus(codes.Error, f.Err.Error())
		}
		span.End()
	}

	if s.config.MetricsEnabled {
		s.recordInstruments(ctx, entry, base)
	}
	return nil
}

func (s *OTelSink) recordInstruments(ctx context.Context, entry eval.Entry, base []attribute.KeyValue) {
	with := func(extra ...attribute.KeyValue) metric.MeasurementOption {
		return metric.WithAttributes(append(append([]attribute.KeyValue{}, base...), extra...)...)
	}
	switch e := entry.(type) {
	case eval.TimingResult:
		s.variantTime.Record(ctx, e.CandidateTimeNanos, with(attribute.String("variant", "candidate")))
		s.variantTime.Record(ctx, e.BaselineTimeNanos, with(attribute.String("variant", "baseline")))
		s.improvement.Record(ctx, e.RelativeImprovementPercent, with())
	case eval.AllocationResult:
		s.allocated.Record(ctx, int64(e.Candidate.AllocatedBytes), with(attribute.String("variant", "candidate")))
		s.allocated.Record(ctx, int64(e.Baseline.AllocatedBytes), with(attribute.String("variant", "baseline")))
	case eval.ThroughputResult:
		s.throughput.Record(ctx, e.OperationsPerSecond, with())
	case eval.FailureStats:
		s.failureRate.Record(ctx, e.FailureRatePercent, with(attribute.String("mode", e.Mode.String())))
		s.calls.Add(ctx, e.TotalCalls, with(attribute.String("mode", e.Mode.String())))
	case eval.ChurnResult:
		s.churnObjects.Add(ctx, e.ObjectsCreated, with())
	}
}

// entryAttributes flattens the family-specific fields of entry.
func entryAttributes(entry eval.Entry) []attribute.KeyValue {
	switch e := entry.(type) {
	case eval.TimingResult:
		return []attribute.KeyValue{
			attribute.Int("timing.iterations", e.Iterations),
			attribute.Int64("timing.candidate_ns", e.CandidateTimeNanos),
			attribute.Int64("timing.baseline_ns", e.BaselineTimeNanos),
			attribute.Float64("timing.improvement_percent", e.RelativeImprovementPercent),
			attribute.Bool("timing.checksums_match", e.ChecksumsMatch()),
		}
	case eval.AllocationResult:
		return []attribute.KeyValue{
			attribute.Int64("allocation.candidate_bytes", int64(e.Candidate.AllocatedBytes)),
			attribute.Int64("allocation.baseline_bytes", int64(e.Baseline.AllocatedBytes)),
			attribute.Int64("allocation.candidate_heap_delta", e.Candidate.HeapBytes),
			attribute.Int64("allocation.baseline_heap_delta", e.Baseline.HeapBytes),
		}
	case eval.ThroughputResult:
		return []attribute.KeyValue{
			attribute.Int("throughput.workers", e.Workers),
			attribute.Int("throughput.ops_per_worker", e.OpsPerWorker),
			attribute.Int64("throughput.total_operations", e.TotalOperations),
			attribute.Float64("throughput.ops_per_second", e.OperationsPerSecond),
		}
	case eval.FailureStats:
		return []attribute.KeyValue{
			attribute.String("failure.mode", e.Mode.String()),
			attribute.String("failure.kind", e.Kind.String()),
			attribute.Int64("failure.total_calls", e.TotalCalls),
			attribute.Int64("failure.count", e.FailureCount),
			attribute.Float64("failure.rate_percent", e.FailureRatePercent),
		}
	case eval.ChurnResult:
		return []attribute.KeyValue{
			attribute.Int64("churn.objects", e.ObjectsCreated),
			attribute.Int64("churn.allocated_bytes", int64(e.Memory.AllocatedBytes)),
			attribute.Int64("churn.gc_cycles", int64(e.Memory.GCCycles)),
		}
	case eval.FailedResult:
		return []attribute.KeyValue{
			attribute.String("failed.intended", string(e.Intended)),
			attribute.String("failed.error_type", ErrorType(e.Err)),
		}
	}
	return nil
}

// RecordError emits a "pairbench.error" span and counts the failure.
func (s *OTelSink) RecordError(ctx context.Context, data *ErrorData) error {
	if ctx == nil {
		return eval.ErrNilContext
	}
	if data == nil {
		return ErrNilData
	}
	if err := s.open(); err != nil {
		return err
	}

	attrs := []attribute.KeyValue{
		attribute.String("scenario", data.Scenario),
		attribute.String("family", string(data.Family)),
		attribute.String("error_type", data.ErrorType),
	}
	if s.config.TraceEnabled {
		_, span := s.tracer.Start(ctx, "pairbench.error",
			trace.WithAttributes(attrs...),
			trace.WithTimestamp(data.Timestamp),
		)
		span.SetStatus(codes.Error, data.Message)
		span.End()
	}
	if s.config.MetricsEnabled {
		s.failures.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	return nil
}

// Flush is a no-op; flushing belongs to the provider owner.
func (s *OTelSink) Flush(ctx context.Context) error {
	if ctx == nil {
		return eval.ErrNilContext
	}
	return s.open()
}

// Close marks the sink closed. Providers are left running.
func (s *OTelSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ Sink = (*OTelSink)(nil)
