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
	"time"
)

// MonadNode is an immutable, content-addressed state vertex.
//
// Description:
//
//	The node's ID is derived from its own canonical content (NodeHash over
//	TypeName, Payload, ordered ParentIDs, and CreatedAt), so identical
//	content always yields the identical id and any field change yields a
//	different one. ParentIDs record informational ancestry only; causal
//	structure lives in TransitionEdge.
//
// Thread Safety: Values are plain data. The MerkleDag copies nodes on
// insert and on read, so a stored node is never shared mutable state.
type MonadNode struct {
	// ID is the content hash, and the primary key within a MerkleDag.
	ID string `json:"id"`

	// TypeName tags what kind of state this node holds.
	TypeName string `json:"type_name"`

	// Payload is opaque serialized content. The store never inspects it.
	Payload []byte `json:"payload"`

	// ParentIDs is the ordered list of provenance node ids. These are
	// informational ancestry, not DAG edges.
	ParentIDs []string `json:"parent_ids,omitempty"`

	// CreatedAt is the creation time in Unix milliseconds.
	CreatedAt int64 `json:"created_at"`
}

// NewMonadNode builds a node from its fields and stamps the content hash.
//
// Description:
//
//	The supplied time is truncated to millisecond precision before
//	hashing; the truncated value is what gets stored and serialized, so a
//	node survives a serialization round trip hash-intact.
//
// Inputs:
//
//	typeName - Tag identifying the node's kind of state.
//	payload - Opaque serialized content. Copied.
//	parentIDs - Ordered provenance ids. Copied; may be nil.
//	at - Creation time.
//
// Outputs:
//
//	*MonadNode - Node with ID populated.
func NewMonadNode(typeName string, payload []byte, parentIDs []string, at time.Time) *MonadNode {
	n := &MonadNode{
		TypeName:  typeName,
		Payload:   append([]byte(nil), payload...),
		ParentIDs: copyStrings(parentIDs),
		CreatedAt: at.UnixMilli(),
	}
	n.ID = NodeHash(n.TypeName, n.Payload, n.ParentIDs, n.CreatedAt)
	return n
}

// NodeFromPayload builds a node stamped with the current time.
//
// Convenience constructor for producers that don't care about explicit
// timestamps.
func NodeFromPayload(typeName string, payload []byte, parentIDs ...string) *MonadNode {
	return NewMonadNode(typeName, payload, parentIDs, time.Now())
}

// Clone returns a deep copy of the node.
func (n *MonadNode) Clone() *MonadNode {
	if n == nil {
		return nil
	}
	return &MonadNode{
		ID:        n.ID,
		TypeName:  n.TypeName,
		Payload:   append([]byte(nil), n.Payload...),
		ParentIDs: copyStrings(n.ParentIDs),
		CreatedAt: n.CreatedAt,
	}
}

// RecomputeHash returns the hash derived from the node's current fields.
//
// Used by verification; equal to ID for every untampered node.
func (n *MonadNode) RecomputeHash() string {
	return NodeHash(n.TypeName, n.Payload, n.ParentIDs, n.CreatedAt)
}

func copyStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
