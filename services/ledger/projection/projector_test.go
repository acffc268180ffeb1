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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NoeticSystems/Causeway/services/ledger/dag"
)

// buildGraph assembles a small graph: two raw nodes parsed into one
// merged node, with mixed optional fields on the edges.
func buildGraph(t *testing.T) *dag.MerkleDag {
	t.Helper()
	d := dag.New()

	a := dag.NewMonadNode("raw", []byte("a"), nil, time.UnixMilli(1000))
	b := dag.NewMonadNode("raw", []byte("b"), nil, time.UnixMilli(1001))
	m := dag.NewMonadNode("merged", []byte("m"), nil, time.UnixMilli(1002))
	for _, n := range []*dag.MonadNode{a, b, m} {
		require.NoError(t, d.AddNode(n))
	}

	e1 := dag.NewTransitionEdge([]string{a.ID}, m.ID, "merge", time.UnixMilli(2000),
		dag.WithConfidence(0.5), dag.WithDurationMs(100))
	e2 := dag.NewTransitionEdge([]string{b.ID}, m.ID, "merge", time.UnixMilli(2001),
		dag.WithConfidence(0.9))
	for _, e := range []*dag.TransitionEdge{e1, e2} {
		require.NoError(t, d.AddEdge(e))
	}
	return d
}

func TestNewProjector_NilSource(t *testing.T) {
	_, err := NewProjector(nil)
	assert.ErrorIs(t, err, ErrNilSource)
}

func TestProjector_EmptyGraph(t *testing.T) {
	p, err := NewProjector(dag.New())
	require.NoError(t, err)

	snap := p.CreateSnapshot()
	assert.Equal(t, uint64(1), snap.Epoch)
	assert.Equal(t, 0, snap.NodeCount)
	assert.Equal(t, 0, snap.EdgeCount)
	assert.Nil(t, snap.MeanConfidence)
	assert.Equal(t, int64(0), snap.TotalDurationMs)
}

func TestProjector_CreateSnapshot(t *testing.T) {
	d := buildGraph(t)
	p, err := NewProjector(d, WithProjectorClock(func() time.Time {
		return time.UnixMilli(5000)
	}))
	require.NoError(t, err)

	snap := p.CreateSnapshot()

	assert.Equal(t, uint64(1), snap.Epoch)
	assert.Equal(t, int64(5000), snap.CreatedAt)
	assert.Equal(t, 3, snap.NodeCount)
	assert.Equal(t, 2, snap.EdgeCount)
	assert.Equal(t, map[string]int{"raw": 2, "merged": 1}, snap.NodesByType)
	assert.Equal(t, map[string]int{"merge": 2}, snap.EdgesByOperation)
	require.NotNil(t, snap.MeanConfidence)
	assert.InDelta(t, 0.7, *snap.MeanConfidence, 1e-9)
	assert.Equal(t, int64(100), snap.TotalDurationMs)
}

// TestProjector_MeanIgnoresAbsentConfidence checks edges without a
// confidence value do not drag the mean toward zero.
func TestProjector_MeanIgnoresAbsentConfidence(t *testing.T) {
	d := dag.New()
	a := dag.NewMonadNode("raw", []byte("a"), nil, time.UnixMilli(1000))
	b := dag.NewMonadNode("out", []byte("b"), nil, time.UnixMilli(1001))
	c := dag.NewMonadNode("out", []byte("c"), nil, time.UnixMilli(1002))
	for _, n := range []*dag.MonadNode{a, b, c} {
		require.NoError(t, d.AddNode(n))
	}
	require.NoError(t, d.AddEdge(dag.NewTransitionEdge([]string{a.ID}, b.ID, "op", time.UnixMilli(2000),
		dag.WithConfidence(0.8))))
	require.NoError(t, d.AddEdge(dag.NewTransitionEdge([]string{a.ID}, c.ID, "op", time.UnixMilli(2001))))

	p, err := NewProjector(d)
	require.NoError(t, err)

	snap := p.CreateSnapshot()
	require.NotNil(t, snap.MeanConfidence)
	assert.InDelta(t, 0.8, *snap.MeanConfidence, 1e-9)
}

func TestProjector_CounterIsMonotonic(t *testing.T) {
	p, err := NewProjector(dag.New())
	require.NoError(t, err)

	assert.Equal(t, uint64(0), p.LastSnapshotNumber())
	for want := uint64(1); want <= 5; want++ {
		snap := p.CreateSnapshot()
		assert.Equal(t, want, snap.Epoch)
	}
	assert.Equal(t, uint64(5), p.LastSnapshotNumber())
}

func TestProjector_ConcurrentSnapshotsGetDistinctNumbers(t *testing.T) {
	p, err := NewProjector(buildGraph(t))
	require.NoError(t, err)

	const n = 32
	numbers := make(chan uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			numbers <- p.CreateSnapshot().Epoch
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[uint64]bool, n)
	for num := range numbers {
		assert.False(t, seen[num], "number %d issued twice", num)
		seen[num] = true
	}
	assert.Len(t, seen, n)
	assert.Equal(t, uint64(n), p.LastSnapshotNumber())
}

func TestProjector_Metadata(t *testing.T) {
	labels := map[string]string{"site": "fairbanks"}
	p, err := NewProjector(dag.New(), WithProjectorMetadata(labels))
	require.NoError(t, err)

	// Later mutation of the caller's map must not leak in.
	labels["site"] = "mutated"

	snap := p.CreateSnapshot()
	assert.Equal(t, map[string]string{"site": "fairbanks"}, snap.Metadata)
}
