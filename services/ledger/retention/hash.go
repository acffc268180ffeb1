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
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/NoeticSystems/Causeway/services/ledger/branch"
)

// ComputeBranchHash fingerprints one branch's snapshot content.
//
// # Description
//
// The digest covers the branch name and the canonical JSON encodings of
// its events and vectors, each segment prefixed with its big-endian
// 32-bit length so segment boundaries cannot shift. Nil and empty
// slices hash identically. The same content always produces the same
// hex digest, which lets retention tooling detect duplicate snapshots
// across epochs without holding the payloads.
//
// # Outputs
//
//   - string: 64-character hex SHA-256 digest.
//   - error: Non-nil only when the content cannot be marshaled, such as
//     NaN vector values.
func ComputeBranchHash(name string, events []branch.Event, vectors []branch.VectorRecord) (string, error) {
	eventsJSON, vectorsJSON, err := canonicalBranchJSON(events, vectors)
	if err != nil {
		return "", err
	}
	return hashBranchSegments(name, eventsJSON, vectorsJSON), nil
}

// canonicalBranchJSON marshals the payload with nil slices normalized
// to empty, so presence in memory and presence on the wire agree.
func canonicalBranchJSON(events []branch.Event, vectors []branch.VectorRecord) ([]byte, []byte, error) {
	if events == nil {
		events = []branch.Event{}
	}
	if vectors == nil {
		vectors = []branch.VectorRecord{}
	}
	eventsJSON, err := json.Marshal(events)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal events: %w", err)
	}
	vectorsJSON, err := json.Marshal(vectors)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal vectors: %w", err)
	}
	return eventsJSON, vectorsJSON, nil
}

func hashBranchSegments(name string, segments ...[]byte) string {
	h := sha256.New()
	var lenBuf [4]byte

	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(name)))
	h.Write(lenBuf[:])
	h.Write([]byte(name))

	for _, seg := range segments {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(seg)))
		h.Write(lenBuf[:])
		h.Write(seg)
	}
	return hex.EncodeToString(h.Sum(nil))
}
