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
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/NoeticSystems/Causeway/services/ledger/projection"
)

// ErrEpochExists indicates a save targeted an epoch number that is
// already stored. The epoch history is append-only; a key is never
// rewritten.
var ErrEpochExists = errors.New("epoch already stored")

// epochKeyPrefix namespaces epoch documents within the database.
const epochKeyPrefix = "epoch:"

// epochKey builds the key for an epoch number. Fixed-width decimal keeps
// lexicographic key order equal to numeric epoch order, so an ascending
// prefix scan replays history in sequence.
func epochKey(number uint64) []byte {
	return []byte(fmt.Sprintf("%s%016d", epochKeyPrefix, number))
}

// EpochStore persists epoch snapshots as versioned JSON documents in
// BadgerDB, one key per epoch number.
//
// Description:
//
//	Implements projection.EpochStore. Each epoch is encoded with
//	projection.EncodeEpoch, so stored documents carry a schema version
//	and survive round-trips through export files unchanged.
//
// Thread Safety: Safe for concurrent use; BadgerDB transactions provide
// isolation.
type EpochStore struct {
	db     *DB
	ownsDB bool
}

var _ projection.EpochStore = (*EpochStore)(nil)

// NewEpochStore creates a store over an already-open database.
//
// Description:
//
//	Wraps the given database. Close() on the returned store does NOT
//	close the database; the caller that opened it keeps that
//	responsibility.
//
// Inputs:
//
//	db - The managed database. Must not be nil.
//
// Outputs:
//
//	*EpochStore - The store.
//	error - Non-nil if db is nil.
func NewEpochStore(db *DB) (*EpochStore, error) {
	if db == nil {
		return nil, errors.New("db must not be nil")
	}
	return &EpochStore{db: db}, nil
}

// OpenEpochStore opens a database and wraps it in a store.
//
// Description:
//
//	Convenience for the common case where the epoch store is the only
//	consumer of the database. Close() on the returned store closes the
//	database too.
//
// Inputs:
//
//	cfg - Database configuration.
//
// Outputs:
//
//	*EpochStore - The store. Call Close() when done.
//	error - Non-nil if the database cannot be opened.
func OpenEpochStore(cfg Config) (*EpochStore, error) {
	db, err := OpenDB(cfg)
	if err != nil {
		return nil, err
	}
	return &EpochStore{db: db, ownsDB: true}, nil
}

// SaveEpoch writes one epoch durably.
//
// Description:
//
//	Encodes the epoch and stores it under its number. Refuses to
//	overwrite an existing number: the history is append-only and the
//	projection service never reissues numbers, so a collision means two
//	writers share one database.
//
// Inputs:
//
//	ctx - Context for cancellation.
//	epoch - The epoch to store. Must pass projection validation.
//
// Outputs:
//
//	error - ErrEpochExists on a number collision, projection.ErrInvalidEpoch
//	        for malformed epochs, or the underlying storage error.
func (s *EpochStore) SaveEpoch(ctx context.Context, epoch *projection.EpochSnapshot) error {
	data, err := projection.EncodeEpoch(epoch)
	if err != nil {
		return err
	}

	key := epochKey(epoch.EpochNumber)
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return fmt.Errorf("%w: number %d", ErrEpochExists, epoch.EpochNumber)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check epoch %d: %w", epoch.EpochNumber, err)
		}
		return txn.Set(key, data)
	})
}

// LoadEpochs returns all stored epochs, ascending by number.
//
// Description:
//
//	Scans the epoch keyspace in key order, which equals numeric order,
//	and decodes every document. A document that fails to decode aborts
//	the load; a partially loaded history would silently burn its missing
//	numbers on the next save.
//
// Inputs:
//
//	ctx - Context for cancellation, checked between documents.
//
// Outputs:
//
//	[]*projection.EpochSnapshot - Stored epochs, oldest first. Empty
//	                              slice when the store is empty.
//	error - Non-nil on decode failure or storage error.
func (s *EpochStore) LoadEpochs(ctx context.Context) ([]*projection.EpochSnapshot, error) {
	epochs := []*projection.EpochSnapshot{}
	prefix := []byte(epochKeyPrefix)

	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("load aborted after %d epochs: %w", len(epochs), err)
			}

			item := it.Item()
			err := item.Value(func(val []byte) error {
				epoch, err := projection.DecodeEpoch(val)
				if err != nil {
					return fmt.Errorf("decode %s: %w", item.Key(), err)
				}
				epochs = append(epochs, epoch)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return epochs, nil
}

// Close releases the store, closing the database only when this store
// opened it.
func (s *EpochStore) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}
