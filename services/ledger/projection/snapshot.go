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
	"sync/atomic"
	"time"

	"github.com/NoeticSystems/Causeway/services/ledger/dag"
)

// Snapshot is one point-in-time statistical view of the transition
// graph.
type Snapshot struct {
	// Epoch numbers snapshots from this projector, starting at 1.
	Epoch uint64 `json:"epoch"`

	// CreatedAt is Unix milliseconds at capture.
	CreatedAt int64 `json:"created_at"`

	// NodeCount is the total number of nodes.
	NodeCount int `json:"node_count"`

	// EdgeCount is the total number of edges.
	EdgeCount int `json:"edge_count"`

	// NodesByType counts nodes per type name.
	NodesByType map[string]int `json:"nodes_by_type"`

	// EdgesByOperation counts edges per operation name.
	EdgesByOperation map[string]int `json:"edges_by_operation"`

	// MeanConfidence averages the confidence of edges that carry one.
	// Nil when no edge does.
	MeanConfidence *float64 `json:"mean_confidence,omitempty"`

	// TotalDurationMs sums the durations of edges that carry one.
	TotalDurationMs int64 `json:"total_duration_ms"`

	// Metadata carries projector-level labels.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// StatsSource is the single-pass statistics surface the projector reads,
// usually a *dag.MerkleDag.
type StatsSource interface {
	Aggregate() dag.Aggregate
}

var _ StatsSource = (*dag.MerkleDag)(nil)

// ProjectorOption configures a Projector.
type ProjectorOption func(*Projector)

// WithProjectorClock replaces the wall clock, mainly for tests.
func WithProjectorClock(clock func() time.Time) ProjectorOption {
	return func(p *Projector) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithProjectorMetadata stamps the given labels into every snapshot.
func WithProjectorMetadata(meta map[string]string) ProjectorOption {
	return func(p *Projector) {
		if len(meta) == 0 {
			return
		}
		p.metadata = make(map[string]string, len(meta))
		for k, v := range meta {
			p.metadata[k] = v
		}
	}
}

// Projector derives statistics snapshots from a StatsSource.
//
// Description:
//
//	Each snapshot is built from one consistent pass over the source, so
//	its counts, mean confidence and duration total all describe the same
//	instant even while writers are active. Snapshot numbers increase by
//	one per call and are never reused.
//
// Thread Safety: Safe for concurrent use.
type Projector struct {
	source   StatsSource
	clock    func() time.Time
	metadata map[string]string
	counter  atomic.Uint64
}

// NewProjector creates a projector over the given source.
func NewProjector(source StatsSource, opts ...ProjectorOption) (*Projector, error) {
	if source == nil {
		return nil, ErrNilSource
	}
	p := &Projector{
		source: source,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// CreateSnapshot captures the current graph statistics.
//
// Outputs:
//
//	Snapshot - Fresh snapshot with the next epoch number. MeanConfidence
//	is nil when no edge carries a confidence value; edges without one do
//	not drag the mean down.
func (p *Projector) CreateSnapshot() Snapshot {
	agg := p.source.Aggregate()

	snap := Snapshot{
		Epoch:            p.counter.Add(1),
		CreatedAt:        p.clock().UnixMilli(),
		NodeCount:        agg.NodeCount,
		EdgeCount:        agg.EdgeCount,
		NodesByType:      agg.NodesByType,
		EdgesByOperation: agg.EdgesByOperation,
		TotalDurationMs:  agg.DurationMsTotal,
	}
	if agg.ConfidenceCount > 0 {
		mean := agg.ConfidenceSum / float64(agg.ConfidenceCount)
		snap.MeanConfidence = &mean
	}
	if len(p.metadata) > 0 {
		snap.Metadata = make(map[string]string, len(p.metadata))
		for k, v := range p.metadata {
			snap.Metadata[k] = v
		}
	}
	snapshotsCreated.Inc()
	return snap
}

// LastSnapshotNumber returns the most recently issued snapshot number,
// 0 before the first snapshot.
func (p *Projector) LastSnapshotNumber() uint64 {
	return p.counter.Load()
}
