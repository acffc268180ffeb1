// Copyright (C) 2025 Noetic Systems (engineering@noetic.systems)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution requirements.

package retention

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NoeticSystems/Causeway/services/ledger/branch"
	"github.com/NoeticSystems/Causeway/services/ledger/projection"
)

func epochFixture(number uint64, id string, createdAt int64) *projection.EpochSnapshot {
	return &projection.EpochSnapshot{
		EpochNumber: number,
		EpochID:     id,
		CreatedAt:   createdAt,
		Branches: []projection.BranchSnapshot{
			{
				Name:    "embeddings",
				Events:  []branch.Event{{Timestamp: createdAt, Kind: "ingest"}},
				Vectors: []branch.VectorRecord{{ID: "v1", Values: []float32{0.25}}},
			},
			{
				Name:    "policy",
				Events:  []branch.Event{},
				Vectors: []branch.VectorRecord{},
			},
		},
	}
}

func TestFromEpochs_BuildsOneRecordPerBranch(t *testing.T) {
	epochs := []*projection.EpochSnapshot{
		epochFixture(1, "ep-one", 4_000),
		epochFixture(2, "ep-two", 9_000),
	}

	records, err := FromEpochs(epochs)
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, "ep-one/embeddings", records[0].ID)
	assert.Equal(t, "embeddings", records[0].BranchName)
	assert.Equal(t, int64(4_000), records[0].CreatedAt)
	assert.Regexp(t, hexDigest, records[0].Hash)
	assert.Greater(t, records[0].SizeBytes, int64(0))

	assert.Equal(t, "ep-one/policy", records[1].ID)
	assert.Equal(t, "ep-two/embeddings", records[2].ID)
	assert.Equal(t, "ep-two/policy", records[3].ID)
	assert.Equal(t, int64(9_000), records[2].CreatedAt)
}

func TestFromEpochs_IdenticalContentHashesAgree(t *testing.T) {
	records, err := FromEpochs([]*projection.EpochSnapshot{
		epochFixture(1, "ep-one", 4_000),
		epochFixture(2, "ep-two", 4_000),
	})
	require.NoError(t, err)
	require.Len(t, records, 4)

	// Same branch content under different epochs digests the same, which
	// is what lets a dedupe pass spot unchanged branches.
	assert.Equal(t, records[0].Hash, records[2].Hash)
	assert.Equal(t, records[1].Hash, records[3].Hash)
	assert.NotEqual(t, records[0].Hash, records[1].Hash)
}

func TestFromEpochs_DisambiguatesRepeatedIDs(t *testing.T) {
	same := epochFixture(1, "ep-one", 4_000)
	records, err := FromEpochs([]*projection.EpochSnapshot{same, same})
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, "ep-one/embeddings", records[0].ID)
	assert.Equal(t, "ep-one/embeddings#1", records[2].ID)
	assert.Equal(t, "ep-one/policy#1", records[3].ID)
}

func TestFromEpochs_SkipsNilEpochs(t *testing.T) {
	records, err := FromEpochs([]*projection.EpochSnapshot{nil, epochFixture(1, "ep-one", 4_000), nil})
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestFromEpochs_PropagatesEncodingFailures(t *testing.T) {
	bad := epochFixture(1, "ep-one", 4_000)
	bad.Branches[0].Vectors[0].Values[0] = float32(math.NaN())
	_, err := FromEpochs([]*projection.EpochSnapshot{bad})
	assert.Error(t, err)
}

func TestFromEpochs_Empty(t *testing.T) {
	records, err := FromEpochs(nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}
