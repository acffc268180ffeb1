// Copyright (C) 2025 Noetic Systems (engineering@noetic.systems)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution requirements.

package logging

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"
)

func sampleEntry(msg string) LogEntry {
	return LogEntry{
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Level:     LevelInfo,
		Message:   msg,
		Service:   "ledger",
		Attrs:     map[string]any{"epoch_number": 4},
	}
}

func TestNopExporter(t *testing.T) {
	e := &NopExporter{}
	ctx := context.Background()

	if err := e.Export(ctx, sampleEntry("dropped")); err != nil {
		t.Errorf("Export() error = %v", err)
	}
	if err := e.Flush(ctx); err != nil {
		t.Errorf("Flush() error = %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestBufferedExporter_CollectsInOrder(t *testing.T) {
	e := NewBufferedExporter()
	ctx := context.Background()

	for _, msg := range []string{"first", "second", "third"} {
		if err := e.Export(ctx, sampleEntry(msg)); err != nil {
			t.Fatalf("Export() error = %v", err)
		}
	}

	entries := e.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Message != "first" || entries[2].Message != "third" {
		t.Errorf("entries out of order: %v", entries)
	}
}

func TestBufferedExporter_EntriesReturnsCopy(t *testing.T) {
	e := NewBufferedExporter()
	if err := e.Export(context.Background(), sampleEntry("original")); err != nil {
		t.Fatal(err)
	}

	first := e.Entries()
	first[0].Message = "mutated"

	second := e.Entries()
	if second[0].Message != "original" {
		t.Error("mutating the returned slice changed the buffer")
	}
}

func TestBufferedExporter_ConcurrentAccess(t *testing.T) {
	e := NewBufferedExporter()
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = e.Export(ctx, sampleEntry("concurrent"))
				_ = e.Entries()
			}
		}()
	}
	wg.Wait()

	if got := len(e.Entries()); got != 800 {
		t.Errorf("expected 800 entries, got %d", got)
	}
}

func TestWriterExporter_WritesOneLine(t *testing.T) {
	var buf bytes.Buffer
	e := NewWriterExporter(&buf)

	if err := e.Export(context.Background(), sampleEntry("shipped")); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	line := buf.String()
	if !strings.HasSuffix(line, "\n") {
		t.Errorf("expected newline-terminated output, got %q", line)
	}
	for _, want := range []string{"INFO", "shipped", "epoch_number"} {
		if !strings.Contains(line, want) {
			t.Errorf("output missing %q: %q", want, line)
		}
	}
}

func TestWriterExporter_FlushAndClose(t *testing.T) {
	var buf bytes.Buffer
	e := NewWriterExporter(&buf)

	if err := e.Flush(context.Background()); err != nil {
		t.Errorf("Flush() error = %v", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestWriterExporter_ConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	e := NewWriterExporter(&buf)
	ctx := context.Background()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = e.Export(ctx, sampleEntry("racing"))
			}
		}()
	}
	wg.Wait()

	lines := strings.Count(buf.String(), "\n")
	if lines != 400 {
		t.Errorf("expected 400 lines, got %d", lines)
	}
}
