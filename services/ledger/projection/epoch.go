// Copyright (C) 2025 Noetic Systems (engineering@noetic.systems)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution requirements.

package projection

import (
	"context"

	"github.com/NoeticSystems/Causeway/services/ledger/branch"
)

// BranchSnapshot is one branch's contribution to an epoch.
type BranchSnapshot struct {
	// Name is the branch name.
	Name string `json:"name"`

	// Events are the branch's events at capture time.
	Events []branch.Event `json:"events"`

	// Vectors are the branch's vector records at capture time.
	Vectors []branch.VectorRecord `json:"vectors"`
}

// EpochSnapshot is one durable, numbered capture of every registered
// branch.
//
// Epoch numbers are monotonic per Service and are never reused, even
// when persistence fails after a number was handed out. EpochID is
// globally unique and survives export and import; the number alone does
// not, because two ledgers can both have an epoch 3.
type EpochSnapshot struct {
	// EpochNumber orders epochs within one service instance.
	EpochNumber uint64 `json:"epoch_number"`

	// EpochID uniquely identifies the epoch across instances.
	EpochID string `json:"epoch_id"`

	// CreatedAt is Unix milliseconds at capture.
	CreatedAt int64 `json:"created_at"`

	// Branches holds one snapshot per registered branch, ordered by
	// branch name.
	Branches []BranchSnapshot `json:"branches"`

	// Metadata carries caller-supplied labels.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Metrics summarizes a Service's history without copying it.
type Metrics struct {
	// EpochCount is how many epochs the service holds.
	EpochCount int `json:"epoch_count"`

	// LastEpochNumber is the highest epoch number present, 0 when none.
	LastEpochNumber uint64 `json:"last_epoch_number"`

	// LastCreatedAt is the capture time of the newest epoch, nil when
	// the history is empty.
	LastCreatedAt *int64 `json:"last_created_at,omitempty"`

	// BranchCount sums branch snapshots across all held epochs. A
	// branch captured in three epochs counts three times, and
	// unregistering it later does not shrink the count.
	BranchCount int `json:"branch_count"`

	// TotalEvents sums event counts across all held epochs.
	TotalEvents int `json:"total_events"`

	// AvgEventsPerBranch is TotalEvents over BranchCount, 0 when no
	// branch was ever captured.
	AvgEventsPerBranch float64 `json:"avg_events_per_branch"`

	// TotalVectors sums vector counts across all held epochs.
	TotalVectors int `json:"total_vectors"`

	// SaveFailures counts epochs whose persistence failed. Their
	// numbers stay burned.
	SaveFailures uint64 `json:"save_failures"`
}

// EpochStore persists epochs. Implementations must be safe for
// concurrent use.
type EpochStore interface {
	// SaveEpoch writes one epoch durably.
	SaveEpoch(ctx context.Context, epoch *EpochSnapshot) error

	// LoadEpochs returns all stored epochs, ascending by number.
	LoadEpochs(ctx context.Context) ([]*EpochSnapshot, error)

	// Close releases the store.
	Close() error
}
