// Copyright (C) 2025 Noetic Systems (engineering@noetic.systems)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution requirements.

package badger

import (
	"context"
	"fmt"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NoeticSystems/Causeway/services/ledger/branch"
	"github.com/NoeticSystems/Causeway/services/ledger/projection"
)

func newTestStore(t *testing.T) *EpochStore {
	t.Helper()
	store, err := OpenEpochStore(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func storedEpoch(number uint64) *projection.EpochSnapshot {
	return &projection.EpochSnapshot{
		EpochNumber: number,
		EpochID:     fmt.Sprintf("ep-%04d", number),
		CreatedAt:   int64(number) * 1_000,
		Branches: []projection.BranchSnapshot{
			{
				Name:    "embeddings",
				Events:  []branch.Event{{Timestamp: int64(number) * 1_000, Kind: "ingest"}},
				Vectors: []branch.VectorRecord{},
			},
		},
	}
}

func TestEpochStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Save out of numeric order; the load must come back sorted.
	for _, n := range []uint64{2, 1, 3} {
		require.NoError(t, store.SaveEpoch(ctx, storedEpoch(n)))
	}

	loaded, err := store.LoadEpochs(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	assert.Equal(t, uint64(1), loaded[0].EpochNumber)
	assert.Equal(t, uint64(2), loaded[1].EpochNumber)
	assert.Equal(t, uint64(3), loaded[2].EpochNumber)
	assert.Equal(t, storedEpoch(2), loaded[1])
}

func TestEpochStore_Empty(t *testing.T) {
	store := newTestStore(t)

	loaded, err := store.LoadEpochs(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, loaded)
	assert.Empty(t, loaded)
}

func TestEpochStore_RefusesOverwrite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveEpoch(ctx, storedEpoch(5)))

	err := store.SaveEpoch(ctx, storedEpoch(5))
	assert.ErrorIs(t, err, ErrEpochExists)

	loaded, err := store.LoadEpochs(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestEpochStore_RejectsInvalidEpoch(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, store.SaveEpoch(ctx, nil), projection.ErrInvalidEpoch)

	bad := storedEpoch(1)
	bad.EpochID = ""
	assert.ErrorIs(t, store.SaveEpoch(ctx, bad), projection.ErrInvalidEpoch)
}

func TestEpochStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := InMemoryConfig()
	cfg.InMemory = false
	cfg.Path = dir

	store, err := OpenEpochStore(cfg)
	require.NoError(t, err)
	require.NoError(t, store.SaveEpoch(context.Background(), storedEpoch(1)))
	require.NoError(t, store.SaveEpoch(context.Background(), storedEpoch(2)))
	require.NoError(t, store.Close())

	reopened, err := OpenEpochStore(cfg)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.LoadEpochs(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "ep-0001", loaded[0].EpochID)
	assert.Equal(t, "ep-0002", loaded[1].EpochID)
}

func TestEpochStore_CorruptDocumentAbortsLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveEpoch(ctx, storedEpoch(1)))
	err := store.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(epochKey(2), []byte("{not an epoch"))
	})
	require.NoError(t, err)

	_, err = store.LoadEpochs(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, projection.ErrInvalidEpoch)
}

func TestEpochStore_StoresVersionedDocuments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveEpoch(ctx, storedEpoch(1)))

	err := store.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(epochKey(1))
		require.NoError(t, err)
		return item.Value(func(val []byte) error {
			assert.Contains(t, string(val), `"schema_version"`)
			assert.Contains(t, string(val), projection.SchemaVersion)
			return nil
		})
	})
	require.NoError(t, err)
}

func TestEpochStore_ContextCancelled(t *testing.T) {
	store := newTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.SaveEpoch(ctx, storedEpoch(1))
	assert.ErrorIs(t, err, context.Canceled)

	_, err = store.LoadEpochs(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewEpochStore_SharedDB(t *testing.T) {
	db, err := OpenDB(InMemoryConfig())
	require.NoError(t, err)
	defer db.Close()

	store, err := NewEpochStore(db)
	require.NoError(t, err)
	require.NoError(t, store.SaveEpoch(context.Background(), storedEpoch(1)))

	// Closing a store over a shared database must leave the database
	// usable for its owner.
	require.NoError(t, store.Close())
	again, err := NewEpochStore(db)
	require.NoError(t, err)
	loaded, err := again.LoadEpochs(context.Background())
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
}

func TestNewEpochStore_NilDB(t *testing.T) {
	_, err := NewEpochStore(nil)
	assert.Error(t, err)
}
