// Copyright (C) 2025 Noetic Systems (engineering@noetic.systems)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution requirements.

package dag

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
	"sort"
)

// Content hashing for nodes and edges.
//
// Identifiers are SHA-256 digests over a canonical byte sequence, encoded
// as lowercase hex. The encoding rules keep the sequence unambiguous and
// independent of runtime representation:
//
//   - every variable-length field is prefixed with its byte length as a
//     4-byte big-endian unsigned integer
//   - every list is prefixed with its element count, same encoding
//   - fixed-width integers are big-endian
//   - optional fields contribute a 1-byte presence marker, followed by
//     the encoded value when present
//   - map-valued metadata is encoded in ascending key order, so the hash
//     is independent of insertion order
//
// Verification recomputes these digests bit-for-bit, so any change to the
// rules here is a breaking format change.

// NodeHash computes the content hash for a node's fields.
//
// Inputs:
//
//	typeName - Tag identifying what kind of state the node holds.
//	payload - Opaque serialized content. May be empty.
//	parentIDs - Ordered informational ancestry. Order is significant.
//	createdAt - Creation time in Unix milliseconds.
//
// Outputs:
//
//	string - Lowercase hex SHA-256 digest (64 characters).
//
// Thread Safety: Safe for concurrent use.
func NodeHash(typeName string, payload []byte, parentIDs []string, createdAt int64) string {
	d := newDigest()
	d.writeString(typeName)
	d.writeBytes(payload)
	d.writeCount(len(parentIDs))
	for _, p := range parentIDs {
		d.writeString(p)
	}
	d.writeInt64(createdAt)
	return d.hex()
}

// EdgeHash computes the content hash for an edge's fields.
//
// Inputs:
//
//	inputIDs - Ordered input node ids. Order is significant.
//	outputID - The produced node id.
//	operationName - Name of the transition operation.
//	metadata - Key/value annotations; hashed in sorted key order.
//	confidence - Optional confidence in [0,1]; nil when absent.
//	durationMs - Optional duration in milliseconds; nil when absent.
//	createdAt - Creation time in Unix milliseconds.
//
// Outputs:
//
//	string - Lowercase hex SHA-256 digest (64 characters).
//
// Thread Safety: Safe for concurrent use.
func EdgeHash(inputIDs []string, outputID, operationName string, metadata map[string]string, confidence *float64, durationMs *int64, createdAt int64) string {
	d := newDigest()
	d.writeCount(len(inputIDs))
	for _, in := range inputIDs {
		d.writeString(in)
	}
	d.writeString(outputID)
	d.writeString(operationName)

	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	d.writeCount(len(keys))
	for _, k := range keys {
		d.writeString(k)
		d.writeString(metadata[k])
	}

	d.writeOptionalFloat64(confidence)
	d.writeOptionalInt64(durationMs)
	d.writeInt64(createdAt)
	return d.hex()
}

// digest accumulates the canonical byte sequence into a SHA-256 state.
type digest struct {
	h   hash.Hash
	buf [8]byte
}

func newDigest() *digest {
	return &digest{h: sha256.New()}
}

func (d *digest) writeBytes(b []byte) {
	binary.BigEndian.PutUint32(d.buf[:4], uint32(len(b)))
	d.h.Write(d.buf[:4])
	d.h.Write(b)
}

func (d *digest) writeString(s string) {
	d.writeBytes([]byte(s))
}

func (d *digest) writeCount(n int) {
	binary.BigEndian.PutUint32(d.buf[:4], uint32(n))
	d.h.Write(d.buf[:4])
}

func (d *digest) writeInt64(v int64) {
	binary.BigEndian.PutUint64(d.buf[:8], uint64(v))
	d.h.Write(d.buf[:8])
}

func (d *digest) writeOptionalFloat64(v *float64) {
	if v == nil {
		d.h.Write([]byte{0})
		return
	}
	d.h.Write([]byte{1})
	binary.BigEndian.PutUint64(d.buf[:8], math.Float64bits(*v))
	d.h.Write(d.buf[:8])
}

func (d *digest) writeOptionalInt64(v *int64) {
	if v == nil {
		d.h.Write([]byte{0})
		return
	}
	d.h.Write([]byte{1})
	d.writeInt64(*v)
}

func (d *digest) hex() string {
	return hex.EncodeToString(d.h.Sum(nil))
}
