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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMemoryBranch(t *testing.T) {
	t.Run("valid name", func(t *testing.T) {
		b, err := NewMemoryBranch("policy")
		require.NoError(t, err)
		assert.Equal(t, "policy", b.Name())
	})

	t.Run("empty name", func(t *testing.T) {
		_, err := NewMemoryBranch("")
		assert.ErrorIs(t, err, ErrInvalidBranchName)
	})
}

func TestMemoryBranch_AppendEvent(t *testing.T) {
	b, err := NewMemoryBranch("policy")
	require.NoError(t, err)

	require.NoError(t, b.AppendEvent(Event{Timestamp: 1000, Kind: "observed"}))
	require.NoError(t, b.AppendEvent(Event{Timestamp: 2000, Kind: "applied", Detail: "rule-7"}))

	events, _, err := b.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "observed", events[0].Kind)
	assert.Equal(t, "rule-7", events[1].Detail)
}

func TestMemoryBranch_AppendEvent_MissingKind(t *testing.T) {
	b, err := NewMemoryBranch("policy")
	require.NoError(t, err)

	assert.ErrorIs(t, b.AppendEvent(Event{Timestamp: 1000}), ErrInvalidEvent)
}

func TestMemoryBranch_EventLimit(t *testing.T) {
	b, err := NewMemoryBranch("policy", WithEventLimit(3))
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, b.AppendEvent(Event{Timestamp: int64(i), Kind: fmt.Sprintf("k%d", i)}))
	}

	events, _, err := b.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 3)
	// Oldest two were dropped.
	assert.Equal(t, "k2", events[0].Kind)
	assert.Equal(t, "k4", events[2].Kind)
}

func TestMemoryBranch_AddVector(t *testing.T) {
	b, err := NewMemoryBranch("embeddings")
	require.NoError(t, err)

	require.NoError(t, b.AddVector(VectorRecord{ID: "v1", Values: []float32{0.1, 0.2}, Source: "encoder"}))
	require.NoError(t, b.AddVector(VectorRecord{ID: "v2", Values: []float32{0.3}}))

	t.Run("replaces by id", func(t *testing.T) {
		require.NoError(t, b.AddVector(VectorRecord{ID: "v1", Values: []float32{0.9}}))

		_, vectors, err := b.Snapshot(context.Background())
		require.NoError(t, err)
		require.Len(t, vectors, 2)
		assert.Equal(t, []float32{0.9}, vectors[0].Values)
	})

	t.Run("missing id", func(t *testing.T) {
		assert.ErrorIs(t, b.AddVector(VectorRecord{Values: []float32{1}}), ErrInvalidVector)
	})

	t.Run("empty values", func(t *testing.T) {
		assert.ErrorIs(t, b.AddVector(VectorRecord{ID: "v3"}), ErrInvalidVector)
	})
}

func TestMemoryBranch_SnapshotIsACopy(t *testing.T) {
	b, err := NewMemoryBranch("policy")
	require.NoError(t, err)
	require.NoError(t, b.AppendEvent(Event{Timestamp: 1000, Kind: "observed"}))
	require.NoError(t, b.AddVector(VectorRecord{ID: "v1", Values: []float32{0.5}}))

	events, vectors, err := b.Snapshot(context.Background())
	require.NoError(t, err)

	events[0].Kind = "mutated"
	vectors[0].Values[0] = 99

	events2, vectors2, err := b.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "observed", events2[0].Kind)
	assert.Equal(t, float32(0.5), vectors2[0].Values[0])
}

func TestMemoryBranch_Close(t *testing.T) {
	b, err := NewMemoryBranch("policy")
	require.NoError(t, err)
	require.NoError(t, b.AppendEvent(Event{Timestamp: 1000, Kind: "observed"}))

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	assert.ErrorIs(t, b.AppendEvent(Event{Timestamp: 2000, Kind: "late"}), ErrBranchClosed)
	assert.ErrorIs(t, b.AddVector(VectorRecord{ID: "v", Values: []float32{1}}), ErrBranchClosed)

	// Reads still work on a closed branch.
	events, _, err := b.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestMemoryBranch_SnapshotCancellation(t *testing.T) {
	b, err := NewMemoryBranch("policy")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = b.Snapshot(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryBranch_ConcurrentAccess(t *testing.T) {
	b, err := NewMemoryBranch("policy")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = b.AppendEvent(Event{Timestamp: int64(i), Kind: "tick"})
				_ = b.AddVector(VectorRecord{ID: fmt.Sprintf("w%d-%d", w, i), Values: []float32{float32(i)}})
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_, _, _ = b.Snapshot(context.Background())
				_, _ = b.Len()
			}
		}()
	}
	wg.Wait()

	events, vectors := b.Len()
	assert.Equal(t, 800, events)
	assert.Equal(t, 800, vectors)
}
