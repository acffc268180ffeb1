// Copyright (C) 2025 Noetic Systems (engineering@noetic.systems)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution requirements.

// Package dag implements the content-addressed transition DAG: an
// append-only store of immutable state nodes and the causal edges that
// connect them.
//
// # Ownership Model
//
// A MerkleDag exclusively owns every node and edge it has accepted.
// Values are copied on insert and on read, so callers can neither mutate
// stored entities nor observe later internal changes through previously
// returned pointers.
//
// # Thread Safety
//
// All MerkleDag methods are safe for concurrent use. Mutating operations
// (AddNode, AddEdge) are serialized by a single writer lock per instance;
// read operations share a read lock and observe a consistent view.
//
// # Lifecycle
//
// The store is append-only. Nodes and edges are never deleted or updated
// once accepted; history is retired only at the epoch level by the
// retention machinery, never entity-by-entity here.
package dag

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by MerkleDag operations.
//
// All errors wrap these sentinels, so callers should use errors.Is:
//
//	if errors.Is(err, dag.ErrMissingParent) {
//	    // submit the parent first, then retry
//	}
var (
	// ErrInvalidNode indicates a nil or structurally malformed node.
	ErrInvalidNode = errors.New("invalid node")

	// ErrDuplicateNode indicates the node id is already present.
	ErrDuplicateNode = errors.New("duplicate node")

	// ErrMissingParent indicates a declared parent id is not in the store.
	ErrMissingParent = errors.New("missing parent")

	// ErrHashMismatch indicates a stored id does not match the hash
	// recomputed from the entity's content.
	ErrHashMismatch = errors.New("content hash mismatch")

	// ErrInvalidEdge indicates a nil or structurally malformed edge.
	ErrInvalidEdge = errors.New("invalid edge")

	// ErrDuplicateEdge indicates the edge id is already present.
	ErrDuplicateEdge = errors.New("duplicate edge")

	// ErrUnknownNode indicates an edge references a node id that is not
	// in the store.
	ErrUnknownNode = errors.New("unknown node")

	// ErrNodeNotFound indicates a lookup for an id that is not stored.
	ErrNodeNotFound = errors.New("node not found")

	// ErrCycle indicates an edge insertion would violate acyclicity.
	// Returned wrapped inside a *CycleError.
	ErrCycle = errors.New("edge would create a cycle")

	// ErrMaxNodesExceeded indicates the configured node capacity is reached.
	ErrMaxNodesExceeded = errors.New("max nodes exceeded")

	// ErrMaxEdgesExceeded indicates the configured edge capacity is reached.
	ErrMaxEdgesExceeded = errors.New("max edges exceeded")
)

// CycleError reports an edge whose insertion would close a cycle.
//
// OutputID is the rejected edge's output; InputID is the input whose
// ancestry already contains OutputID.
type CycleError struct {
	OutputID string
	InputID  string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("edge would create a cycle: output %s is an ancestor of input %s", e.OutputID, e.InputID)
}

// Unwrap lets errors.Is(err, ErrCycle) succeed.
func (e *CycleError) Unwrap() error {
	return ErrCycle
}

// ViolationKind classifies an integrity violation found by VerifyIntegrity.
type ViolationKind string

const (
	// ViolationNodeHashMismatch means a node's stored id does not match
	// the hash recomputed from its fields.
	ViolationNodeHashMismatch ViolationKind = "node_hash_mismatch"

	// ViolationEdgeHashMismatch means an edge's stored id does not match
	// the hash recomputed from its fields.
	ViolationEdgeHashMismatch ViolationKind = "edge_hash_mismatch"

	// ViolationMissingParent means a node declares a parent id that is
	// not in the store.
	ViolationMissingParent ViolationKind = "missing_parent"

	// ViolationMissingInput means an edge references an input id that is
	// not in the store.
	ViolationMissingInput ViolationKind = "missing_input"

	// ViolationMissingOutput means an edge references an output id that
	// is not in the store.
	ViolationMissingOutput ViolationKind = "missing_output"
)

// IntegrityViolation describes one problem found during verification.
//
// VerifyIntegrity collects every violation it finds rather than stopping
// at the first, so a single pass reports all damage.
type IntegrityViolation struct {
	// Kind classifies the violation.
	Kind ViolationKind `json:"kind"`

	// EntityID is the id of the node or edge carrying the violation.
	EntityID string `json:"entity_id"`

	// Ref is the dangling reference for missing_* kinds, empty otherwise.
	Ref string `json:"ref,omitempty"`

	// Detail is a human-readable description.
	Detail string `json:"detail"`
}

// String returns a one-line description of the violation.
func (v IntegrityViolation) String() string {
	if v.Ref != "" {
		return fmt.Sprintf("%s: %s -> %s: %s", v.Kind, v.EntityID, v.Ref, v.Detail)
	}
	return fmt.Sprintf("%s: %s: %s", v.Kind, v.EntityID, v.Detail)
}
