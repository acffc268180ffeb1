// Copyright (C) 2025 Noetic Systems (engineering@noetic.systems)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution requirements.

package telemetry

import (
	"context"
	"errors"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ServiceName != "causeway-ledger" {
		t.Errorf("ServiceName = %q, want causeway-ledger", cfg.ServiceName)
	}
	if cfg.SampleRatio != 1.0 {
		t.Errorf("SampleRatio = %v, want 1.0", cfg.SampleRatio)
	}
	if cfg.TraceExporter == "" || cfg.MetricExporter == "" {
		t.Error("Exporters must default to non-empty values")
	}
}

func TestInit_NilContext(t *testing.T) {
	//nolint:staticcheck // Passing nil is the case under test.
	_, err := Init(nil, DefaultConfig())
	if !errors.Is(err, ErrNilContext) {
		t.Errorf("Init(nil, cfg) error = %v, want %v", err, ErrNilContext)
	}
}

func TestInit_StdoutTraces(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "stdout"
	cfg.MetricExporter = "none"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if shutdown == nil {
		t.Fatal("Init returned nil shutdown")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestInit_PrometheusMetrics(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "prometheus"

	shutdown, err := Init(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	}()

	if MetricsHandler() == nil {
		t.Error("MetricsHandler() = nil with prometheus exporter active")
	}
}

func TestInit_UnknownExporters(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TraceExporter = "carrier-pigeon"
	if _, err := Init(context.Background(), cfg); !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("trace exporter error = %v, want %v", err, ErrUnknownExporter)
	}

	cfg = DefaultConfig()
	cfg.TraceExporter = "none"
	cfg.MetricExporter = "carrier-pigeon"
	if _, err := Init(context.Background(), cfg); !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("metric exporter error = %v, want %v", err, ErrUnknownExporter)
	}
}

func TestSpanHelpers_NilSafe(t *testing.T) {
	// None of these may panic on nil spans or empty contexts.
	RecordError(nil, errors.New("boom"))
	SetSpanOK(nil)
	AddSpanEvent(nil, "event")

	if id := TraceID(context.Background()); id != "" {
		t.Errorf("TraceID on empty context = %q, want empty", id)
	}
}

func TestStartSpan(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "causeway/test", "test.Operation")
	if span == nil {
		t.Fatal("StartSpan returned nil span")
	}
	defer span.End()

	if got := SpanFromContext(ctx); got == nil {
		t.Error("SpanFromContext returned nil inside an active span")
	}
	RecordError(span, errors.New("recorded"))
	SetSpanOK(span)
	AddSpanEvent(span, "checkpoint")
}
