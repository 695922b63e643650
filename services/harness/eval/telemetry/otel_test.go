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
	"testing"
	"time"

	"github.com/AleutianAI/pairbench/services/harness/eval"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type otelHarness struct {
	sink   *OTelSink
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
}

func newOTelHarness(t *testing.T) *otelHarness {
	t.Helper()
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		_ = mp.Shutdown(context.Background())
	})

	cfg := DefaultOTelConfig()
	cfg.TracerProvider = tp
	cfg.MeterProvider = mp
	sink, err := NewOTelSink(cfg)
	if err != nil {
		t.Fatalf("NewOTelSink: %v", err)
	}
	return &otelHarness{sink: sink, spans: spans, reader: reader}
}

func (h *otelHarness) metricNames(t *testing.T) map[string]bool {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := h.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	names := make(map[string]bool)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			names[m.Name] = true
		}
	}
	return names
}

func TestOTelConfig(t *testing.T) {
	cfg := DefaultOTelConfig()
	if cfg.ServiceName != "pairbench" || !cfg.TraceEnabled || !cfg.MetricsEnabled {
		t.Errorf("DefaultOTelConfig() = %+v", cfg)
	}
	cfg.ServiceName = ""
	if _, err := NewOTelSink(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
	if _, err := NewOTelSink(nil); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestOTelSink_RecordEntry(t *testing.T) {
	h := newOTelHarness(t)
	ctx := context.Background()

	entries := []eval.Entry{
		testTiming(),
		eval.AllocationResult{Name: "Closure Allocation", Candidate: eval.MemoryDelta{AllocatedBytes: 10}},
		eval.ThroughputResult{Name: "Atomic Increment", OperationsPerSecond: 10},
		eval.NewFailureStats("Checked Lookup", eval.ModeChecked, eval.FailureNone, 10, 0, time.Second),
		eval.ChurnResult{Name: "String Churn", ObjectsCreated: 5},
		eval.FailedResult{Name: "Broken", Intended: eval.FamilyChurn, Err: errors.New("no")},
	}
	for _, e := range entries {
		if err := h.sink.RecordEntry(ctx, e); err != nil {
			t.Fatalf("RecordEntry(%s): %v", e.ScenarioName(), err)
		}
	}

	ended := h.spans.Ended()
	if len(ended) != len(entries) {
		t.Fatalf("spans = %d, want %d", len(ended), len(entries))
	}
	first := ended[0]
	if first.Name() != "pairbench.entry" {
		t.Errorf("span name = %q", first.Name())
	}
	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range first.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if attrs["scenario"].AsString() != "Simple Arithmetic" {
		t.Errorf("scenario attr = %v", attrs["scenario"])
	}
	if attrs["timing.baseline_ns"].AsInt64() != 2500 {
		t.Errorf("baseline attr = %v", attrs["timing.baseline_ns"])
	}
	if last := ended[len(ended)-1]; last.Status().Code != codes.Error {
		t.Errorf("failed entry status = %v, want Error", last.Status().Code)
	}

	names := h.metricNames(t)
	for _, want := range []string{
		"pairbench.variant.time",
		"pairbench.relative_improvement",
		"pairbench.allocated",
		"pairbench.throughput",
		"pairbench.failure.rate",
		"pairbench.failure.calls",
		"pairbench.churn.objects",
	} {
		if !names[want] {
			t.Errorf("metric %q not recorded", want)
		}
	}
	if names["pairbench.scenario.failures"] {
		t.Error("failed entry counted as a scenario failure; only RecordError counts it")
	}
}

func TestOTelSink_RecordError(t *testing.T) {
	h := newOTelHarness(t)
	data := NewErrorData("Broken", eval.FamilyTiming, eval.NewConfigurationError("iterations", 0, "must be positive"))
	if err := h.sink.RecordError(context.Background(), data); err != nil {
		t.Fatalf("RecordError: %v", err)
	}

	ended := h.spans.Ended()
	if len(ended) != 1 || ended[0].Name() != "pairbench.error" {
		t.Fatalf("spans = %v", ended)
	}
	if ended[0].Status().Code != codes.Error {
		t.Errorf("status = %v, want Error", ended[0].Status().Code)
	}
	if !h.metricNames(t)["pairbench.scenario.failures"] {
		t.Error("failure counter not recorded")
	}
}

func TestOTelSink_Disabled(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	cfg := DefaultOTelConfig()
	cfg.TracerProvider = tp
	cfg.TraceEnabled = false
	cfg.MetricsEnabled = false
	sink, err := NewOTelSink(cfg)
	if err != nil {
		t.Fatalf("NewOTelSink: %v", err)
	}
	if err := sink.RecordEntry(context.Background(), testTiming()); err != nil {
		t.Fatalf("RecordEntry: %v", err)
	}
	if n := len(spans.Ended()); n != 0 {
		t.Errorf("spans = %d, want 0", n)
	}
}

func TestOTelSink_Close(t *testing.T) {
	h := newOTelHarness(t)
	ctx := context.Background()
	if err := h.sink.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if err := h.sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := h.sink.RecordEntry(ctx, testTiming()); !errors.Is(err, ErrSinkClosed) {
		t.Errorf("err = %v, want ErrSinkClosed", err)
	}
	if err := h.sink.RecordError(ctx, &ErrorData{}); !errors.Is(err, ErrSinkClosed) {
		t.Errorf("err = %v, want ErrSinkClosed", err)
	}
	if err := h.sink.Flush(ctx); !errors.Is(err, ErrSinkClosed) {
		t.Errorf("err = %v, want ErrSinkClosed", err)
	}
}
