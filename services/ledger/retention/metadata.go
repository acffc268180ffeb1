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
	"fmt"

	"github.com/NoeticSystems/Causeway/services/ledger/projection"
)

// SnapshotMetadata describes one branch snapshot for retention purposes
// without carrying its payload.
type SnapshotMetadata struct {
	// ID uniquely identifies the record, "<epoch_id>/<branch_name>".
	ID string `json:"id"`

	// BranchName is the branch the snapshot belongs to.
	BranchName string `json:"branch_name"`

	// CreatedAt is the owning epoch's capture time, Unix milliseconds.
	CreatedAt int64 `json:"created_at"`

	// Hash fingerprints the snapshot content.
	Hash string `json:"hash"`

	// SizeBytes is the canonical encoded size of the content.
	SizeBytes int64 `json:"size_bytes"`
}

// FromEpochs flattens epochs into one retention record per captured
// branch.
//
// # Description
//
// Record ids combine the epoch id and branch name. Feeding the same
// epoch twice would collide, so later duplicates get a "#n" suffix
// instead of silently shadowing the first record. Nil epochs are
// skipped.
//
// # Outputs
//
//   - []SnapshotMetadata: One record per branch snapshot, in input
//     order.
//   - error: Non-nil when a snapshot's content cannot be fingerprinted.
func FromEpochs(epochs []*projection.EpochSnapshot) ([]SnapshotMetadata, error) {
	var out []SnapshotMetadata
	seen := make(map[string]int)

	for _, epoch := range epochs {
		if epoch == nil {
			continue
		}
		for _, bs := range epoch.Branches {
			base := epoch.EpochID + "/" + bs.Name
			id := base
			if n := seen[base]; n > 0 {
				id = fmt.Sprintf("%s#%d", base, n)
			}
			seen[base]++

			eventsJSON, vectorsJSON, err := canonicalBranchJSON(bs.Events, bs.Vectors)
			if err != nil {
				return nil, fmt.Errorf("epoch %s branch %s: %w", epoch.EpochID, bs.Name, err)
			}
			out = append(out, SnapshotMetadata{
				ID:         id,
				BranchName: bs.Name,
				CreatedAt:  epoch.CreatedAt,
				Hash:       hashBranchSegments(bs.Name, eventsJSON, vectorsJSON),
				SizeBytes:  int64(len(eventsJSON) + len(vectorsJSON)),
			})
		}
	}
	return out, nil
}
