// Copyright (C) 2025 Noetic Systems (engineering@noetic.systems)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution requirements.

package branch

import (
	"context"
	"fmt"
	"sync"
)

// MemoryOption configures a MemoryBranch.
type MemoryOption func(*MemoryBranch)

// WithEventLimit bounds the event log to the most recent n entries.
// Zero (the default) keeps everything.
func WithEventLimit(n int) MemoryOption {
	return func(b *MemoryBranch) {
		b.eventLimit = n
	}
}

// MemoryBranch is an in-memory Branch.
//
// # Description
//
// Holds an append-only event log and a vector set behind one mutex.
// With an event limit set the log behaves like a ring: appending past
// the limit drops the oldest entries. Snapshot returns copies, so
// callers can hold results across later writes.
//
// # Thread Safety
//
// Safe for concurrent use.
type MemoryBranch struct {
	name       string
	eventLimit int

	mu      sync.RWMutex
	events  []Event
	vectors []VectorRecord
	byID    map[string]int
	closed  bool
}

var _ Branch = (*MemoryBranch)(nil)

// NewMemoryBranch creates an open branch with the given name.
func NewMemoryBranch(name string, opts ...MemoryOption) (*MemoryBranch, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidBranchName)
	}
	b := &MemoryBranch{
		name: name,
		byID: make(map[string]int),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Name returns the branch name.
func (b *MemoryBranch) Name() string {
	return b.name
}

// AppendEvent records one event.
//
// # Inputs
//
//   - ev: The event. Kind must be set.
//
// # Outputs
//
//   - error: ErrInvalidEvent for a missing kind, ErrBranchClosed after
//     Close.
func (b *MemoryBranch) AppendEvent(ev Event) error {
	if ev.Kind == "" {
		return fmt.Errorf("%w: missing kind", ErrInvalidEvent)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("%w: %s", ErrBranchClosed, b.name)
	}
	b.events = append(b.events, ev)
	if b.eventLimit > 0 && len(b.events) > b.eventLimit {
		overflow := len(b.events) - b.eventLimit
		b.events = append(b.events[:0:0], b.events[overflow:]...)
	}
	return nil
}

// AddVector stores a vector record, replacing any record with the same
// id.
//
// # Inputs
//
//   - rec: The record. ID and Values must be set.
//
// # Outputs
//
//   - error: ErrInvalidVector for a missing id or empty values,
//     ErrBranchClosed after Close.
func (b *MemoryBranch) AddVector(rec VectorRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidVector)
	}
	if len(rec.Values) == 0 {
		return fmt.Errorf("%w: %s has no values", ErrInvalidVector, rec.ID)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("%w: %s", ErrBranchClosed, b.name)
	}

	stored := rec
	stored.Values = append([]float32(nil), rec.Values...)
	if i, ok := b.byID[rec.ID]; ok {
		b.vectors[i] = stored
		return nil
	}
	b.byID[rec.ID] = len(b.vectors)
	b.vectors = append(b.vectors, stored)
	return nil
}

// Snapshot returns copies of the current events and vectors.
//
// # Description
//
// The copy is taken under one read lock, so entries appended while the
// snapshot is being consumed do not appear in it. A closed branch can
// still be snapshotted; only writes are refused.
func (b *MemoryBranch) Snapshot(ctx context.Context) ([]Event, []VectorRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("snapshot of %s: %w", b.name, err)
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	events := make([]Event, len(b.events))
	copy(events, b.events)

	vectors := make([]VectorRecord, len(b.vectors))
	for i, rec := range b.vectors {
		vectors[i] = rec
		vectors[i].Values = append([]float32(nil), rec.Values...)
	}
	return events, vectors, nil
}

// Len reports the current event and vector counts.
func (b *MemoryBranch) Len() (events, vectors int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events), len(b.vectors)
}

// Close refuses further writes. Closing twice is a no-op.
func (b *MemoryBranch) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}
