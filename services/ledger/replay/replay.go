// Copyright (C) 2025 Noetic Systems (engineering@noetic.systems)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution requirements.

// Package replay reconstructs the chain of transitions that produced a
// node.
//
// # Ownership Model
//
// The Engine owns nothing. It reads from a Provenance source, usually a
// *dag.MerkleDag, and returns freshly built paths the caller may keep.
//
// # Thread Safety
//
// An Engine is safe for concurrent use whenever its Provenance source
// is; it carries no mutable state of its own.
package replay

import (
	"context"
	"errors"
	"fmt"

	"github.com/NoeticSystems/Causeway/services/ledger/dag"
)

var (
	// ErrNilProvenance is returned by NewEngine for a nil source.
	ErrNilProvenance = errors.New("nil provenance source")

	// ErrNoPath is returned when backward traversal cannot reach a root,
	// which only happens on a corrupted source.
	ErrNoPath = errors.New("no path to a root node")
)

// Provenance is the read surface the engine traverses.
//
// ProducingEdges must return the edges whose output is the given node,
// earliest recorded first, and an empty slice for roots and unknown ids.
type Provenance interface {
	HasNode(id string) bool
	ProducingEdges(id string) []*dag.TransitionEdge
}

var _ Provenance = (*dag.MerkleDag)(nil)

// Engine replays transition history out of a Provenance source.
type Engine struct {
	source Provenance
}

// NewEngine creates a replay engine over the given source.
func NewEngine(source Provenance) (*Engine, error) {
	if source == nil {
		return nil, ErrNilProvenance
	}
	return &Engine{source: source}, nil
}

// PathToNode returns the ordered list of edges that leads from a root to
// the given node.
//
// Description:
//
//	Starting at the target, the engine repeatedly selects the producing
//	edge with the earliest creation timestamp (insertion order breaking
//	ties) and steps to that edge's primary input, the first entry of its
//	input list, until it stands on a root. The collected edges are
//	returned root-first, so replaying them in order rebuilds the node.
//
//	For a root node the path is empty. Fan-in joins contribute only
//	their primary input to the path; sibling inputs have their own
//	histories.
//
// Inputs:
//
//	ctx - Cancels a deep traversal between steps.
//	nodeID - The node whose history to reconstruct.
//
// Outputs:
//
//	[]*dag.TransitionEdge - The path, earliest transition first. Empty,
//	non-nil for roots.
//	error - Wraps dag.ErrNodeNotFound for an unknown id, ErrNoPath when
//	a corrupted source prevents the walk from reaching a root, or the
//	ctx error on cancellation.
//
// Thread Safety: Safe for concurrent use.
func (e *Engine) PathToNode(ctx context.Context, nodeID string) ([]*dag.TransitionEdge, error) {
	if !e.source.HasNode(nodeID) {
		return nil, fmt.Errorf("%w: %s", dag.ErrNodeNotFound, nodeID)
	}

	path := []*dag.TransitionEdge{}
	visited := map[string]bool{nodeID: true}
	current := nodeID

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("replay of %s interrupted: %w", nodeID, err)
		}

		producing := e.source.ProducingEdges(current)
		if len(producing) == 0 {
			break
		}

		step := earliest(producing)
		path = append(path, step)

		if len(step.InputIDs) == 0 {
			return nil, fmt.Errorf("%w: edge %s has no inputs", ErrNoPath, step.ID)
		}
		next := step.InputIDs[0]
		if !e.source.HasNode(next) {
			return nil, fmt.Errorf("%w: input %s of edge %s is not stored", ErrNoPath, next, step.ID)
		}
		if visited[next] {
			return nil, fmt.Errorf("%w: revisited %s while walking from %s", ErrNoPath, next, nodeID)
		}
		visited[next] = true
		current = next
	}

	reverse(path)
	return path, nil
}

// earliest picks the edge with the smallest creation timestamp, keeping
// the first seen on ties.
func earliest(edges []*dag.TransitionEdge) *dag.TransitionEdge {
	best := edges[0]
	for _, e := range edges[1:] {
		if e.CreatedAt < best.CreatedAt {
			best = e
		}
	}
	return best
}

func reverse(edges []*dag.TransitionEdge) {
	for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
		edges[i], edges[j] = edges[j], edges[i]
	}
}
