// Copyright (C) 2025 Noetic Systems (engineering@noetic.systems)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution requirements.

// Package branch defines the per-branch state feeds that epoch snapshots
// capture.
//
// A branch is any named component that can report its events and vector
// records on demand. The projection service snapshots every registered
// branch in parallel when it creates an epoch.
package branch

import (
	"context"
	"errors"
)

var (
	// ErrInvalidBranchName is returned for empty or unusable names.
	ErrInvalidBranchName = errors.New("invalid branch name")

	// ErrInvalidEvent is returned for events without a kind.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrInvalidVector is returned for vector records without an id or
	// values.
	ErrInvalidVector = errors.New("invalid vector record")

	// ErrBranchClosed is returned for writes after Close.
	ErrBranchClosed = errors.New("branch is closed")
)

// Event is one timestamped occurrence on a branch.
type Event struct {
	// Timestamp is Unix milliseconds.
	Timestamp int64 `json:"timestamp"`

	// Kind classifies the event.
	Kind string `json:"kind"`

	// Detail is optional free-form context.
	Detail string `json:"detail,omitempty"`
}

// VectorRecord is one embedding held by a branch.
type VectorRecord struct {
	// ID identifies the record within its branch.
	ID string `json:"id"`

	// Values is the embedding itself.
	Values []float32 `json:"values"`

	// Source names where the embedding came from.
	Source string `json:"source,omitempty"`
}

// Branch is a named state feed the projector can snapshot.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use: Snapshot runs
// concurrently with writes and with snapshots of other branches.
type Branch interface {
	// Name returns the branch's unique name.
	Name() string

	// Snapshot returns consistent copies of the branch's events and
	// vectors. The caller owns the returned slices.
	Snapshot(ctx context.Context) ([]Event, []VectorRecord, error)
}
