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
	"fmt"
	"sort"
	"sync"
)

// Option configures a MerkleDag at construction.
type Option func(*options)

type options struct {
	maxNodes int
	maxEdges int
}

// WithMaxNodes caps the number of nodes the store accepts.
// Zero (the default) means unlimited.
func WithMaxNodes(n int) Option {
	return func(o *options) {
		o.maxNodes = n
	}
}

// WithMaxEdges caps the number of edges the store accepts.
// Zero (the default) means unlimited.
func WithMaxEdges(n int) Option {
	return func(o *options) {
		o.maxEdges = n
	}
}

// MerkleDag is the authoritative append-only store of nodes and edges.
//
// Description:
//
//	Nodes and edges are validated on insert: content hashes must match,
//	references must resolve, and no edge may close a cycle. Alongside the
//	primary id-indexed maps the store maintains secondary indexes that
//	make classification and ancestry queries incremental:
//
//	  - nodesByType: type name -> nodes, insertion order
//	  - producedBy: output id -> producing edges, insertion order
//	  - consumedBy: input id -> consuming edges, insertion order
//
//	A node with no producedBy entry is a root; a node with no consumedBy
//	entry is a leaf. Cycle checks reverse-traverse producedBy from the
//	candidate inputs toward the roots instead of re-walking the full
//	graph on every insert.
//
// Thread Safety: Safe for concurrent use. One writer at a time; readers
// share a read lock and observe a consistent view.
type MerkleDag struct {
	mu sync.RWMutex

	nodes     map[string]*MonadNode
	nodeOrder []string

	edges     map[string]*TransitionEdge
	edgeOrder []string

	nodesByType map[string][]*MonadNode
	producedBy  map[string][]*TransitionEdge
	consumedBy  map[string][]*TransitionEdge

	opts options
}

// New creates an empty MerkleDag.
func New(opts ...Option) *MerkleDag {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &MerkleDag{
		nodes:       make(map[string]*MonadNode),
		edges:       make(map[string]*TransitionEdge),
		nodesByType: make(map[string][]*MonadNode),
		producedBy:  make(map[string][]*TransitionEdge),
		consumedBy:  make(map[string][]*TransitionEdge),
		opts:        o,
	}
}

// AddNode validates and stores a node.
//
// Description:
//
//	Rejects duplicate ids, nodes whose declared parents are not already
//	present, and nodes whose id does not match the hash recomputed from
//	their content. On success the store keeps a defensive copy; the
//	caller's value is never retained.
//
// Inputs:
//
//	node - The node to store. Must be non-nil with id and type name set.
//
// Outputs:
//
//	error - nil on success; otherwise wraps ErrInvalidNode,
//	ErrDuplicateNode, ErrMissingParent, ErrHashMismatch, or
//	ErrMaxNodesExceeded.
//
// Thread Safety: Safe for concurrent use; serialized with other writes.
func (d *MerkleDag) AddNode(node *MonadNode) error {
	if node == nil {
		return fmt.Errorf("%w: nil node", ErrInvalidNode)
	}
	if node.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidNode)
	}
	if node.TypeName == "" {
		return fmt.Errorf("%w: empty type name for %s", ErrInvalidNode, node.ID)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.opts.maxNodes > 0 && len(d.nodes) >= d.opts.maxNodes {
		nodeRejects.WithLabelValues("node", "capacity").Inc()
		return fmt.Errorf("%w: limit %d", ErrMaxNodesExceeded, d.opts.maxNodes)
	}
	if _, exists := d.nodes[node.ID]; exists {
		nodeRejects.WithLabelValues("node", "duplicate").Inc()
		return fmt.Errorf("%w: %s", ErrDuplicateNode, node.ID)
	}
	for _, parent := range node.ParentIDs {
		if _, ok := d.nodes[parent]; !ok {
			nodeRejects.WithLabelValues("node", "missing_parent").Inc()
			return fmt.Errorf("%w: node %s declares parent %s", ErrMissingParent, node.ID, parent)
		}
	}
	if recomputed := node.RecomputeHash(); recomputed != node.ID {
		nodeRejects.WithLabelValues("node", "hash_mismatch").Inc()
		return fmt.Errorf("%w: node %s recomputes to %s", ErrHashMismatch, node.ID, recomputed)
	}

	stored := node.Clone()
	d.nodes[stored.ID] = stored
	d.nodeOrder = append(d.nodeOrder, stored.ID)
	d.nodesByType[stored.TypeName] = append(d.nodesByType[stored.TypeName], stored)
	nodesAdded.Inc()
	return nil
}

// AddEdge validates and stores an edge, updating the reverse-adjacency
// indexes.
//
// Description:
//
//	Rejects edges referencing unknown nodes, duplicate edge ids, ids that
//	do not match the recomputed content hash, and edges that would close
//	a cycle. The cycle rule: the edge is rejected iff its output id is
//	already a transitive ancestor of any of its inputs, where a node's
//	ancestors are found by reverse-traversing producing edges toward the
//	roots. An edge whose output appears among its own inputs is the
//	trivial cycle.
//
// Inputs:
//
//	edge - The edge to store. InputIDs must be non-empty; Confidence,
//	when present, must lie in [0,1]; DurationMs, when present, must be
//	non-negative.
//
// Outputs:
//
//	error - nil on success; otherwise wraps ErrInvalidEdge,
//	ErrDuplicateEdge, ErrUnknownNode, ErrHashMismatch,
//	ErrMaxEdgesExceeded, or is a *CycleError wrapping ErrCycle.
//
// Thread Safety: Safe for concurrent use; serialized with other writes.
func (d *MerkleDag) AddEdge(edge *TransitionEdge) error {
	if edge == nil {
		return fmt.Errorf("%w: nil edge", ErrInvalidEdge)
	}
	if edge.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidEdge)
	}
	if len(edge.InputIDs) == 0 {
		return fmt.Errorf("%w: edge %s has no inputs", ErrInvalidEdge, edge.ID)
	}
	if edge.OutputID == "" {
		return fmt.Errorf("%w: edge %s has no output", ErrInvalidEdge, edge.ID)
	}
	if edge.Confidence != nil && (*edge.Confidence < 0 || *edge.Confidence > 1) {
		return fmt.Errorf("%w: edge %s confidence %v outside [0,1]", ErrInvalidEdge, edge.ID, *edge.Confidence)
	}
	if edge.DurationMs != nil && *edge.DurationMs < 0 {
		return fmt.Errorf("%w: edge %s negative duration", ErrInvalidEdge, edge.ID)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.opts.maxEdges > 0 && len(d.edges) >= d.opts.maxEdges {
		nodeRejects.WithLabelValues("edge", "capacity").Inc()
		return fmt.Errorf("%w: limit %d", ErrMaxEdgesExceeded, d.opts.maxEdges)
	}
	if _, exists := d.edges[edge.ID]; exists {
		nodeRejects.WithLabelValues("edge", "duplicate").Inc()
		return fmt.Errorf("%w: %s", ErrDuplicateEdge, edge.ID)
	}
	for _, in := range edge.InputIDs {
		if _, ok := d.nodes[in]; !ok {
			nodeRejects.WithLabelValues("edge", "unknown_node").Inc()
			return fmt.Errorf("%w: edge %s input %s", ErrUnknownNode, edge.ID, in)
		}
	}
	if _, ok := d.nodes[edge.OutputID]; !ok {
		nodeRejects.WithLabelValues("edge", "unknown_node").Inc()
		return fmt.Errorf("%w: edge %s output %s", ErrUnknownNode, edge.ID, edge.OutputID)
	}
	if recomputed := edge.RecomputeHash(); recomputed != edge.ID {
		nodeRejects.WithLabelValues("edge", "hash_mismatch").Inc()
		return fmt.Errorf("%w: edge %s recomputes to %s", ErrHashMismatch, edge.ID, recomputed)
	}
	if offending, cyclic := d.findCycle(edge.InputIDs, edge.OutputID); cyclic {
		cycleRejections.Inc()
		nodeRejects.WithLabelValues("edge", "cycle").Inc()
		return &CycleError{OutputID: edge.OutputID, InputID: offending}
	}

	stored := edge.Clone()
	d.edges[stored.ID] = stored
	d.edgeOrder = append(d.edgeOrder, stored.ID)
	d.producedBy[stored.OutputID] = append(d.producedBy[stored.OutputID], stored)
	for _, in := range stored.InputIDs {
		d.consumedBy[in] = append(d.consumedBy[in], stored)
	}
	edgesAdded.Inc()
	return nil
}

// findCycle reports whether outputID is a transitive ancestor of any of
// the inputs, returning the first offending input. Caller holds the lock.
func (d *MerkleDag) findCycle(inputIDs []string, outputID string) (string, bool) {
	for _, in := range inputIDs {
		if d.isAncestor(outputID, in) {
			return in, true
		}
	}
	return "", false
}

// isAncestor reports whether target appears in the ancestry of start,
// following producing edges backwards. A node counts as its own ancestor
// here, which rejects the trivial self-loop. Caller holds the lock.
func (d *MerkleDag) isAncestor(target, start string) bool {
	visited := make(map[string]bool)
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == target {
			return true
		}
		if visited[cur] {
			continue
		}
		visited[cur] = true
		for _, producing := range d.producedBy[cur] {
			for _, in := range producing.InputIDs {
				if !visited[in] {
					queue = append(queue, in)
				}
			}
		}
	}
	return false
}

// HasNode reports whether a node id is stored.
func (d *MerkleDag) HasNode(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.nodes[id]
	return ok
}

// GetNode returns a copy of the node with the given id.
func (d *MerkleDag) GetNode(id string) (*MonadNode, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	node, ok := d.nodes[id]
	if !ok {
		return nil, false
	}
	return node.Clone(), true
}

// GetEdge returns a copy of the edge with the given id.
func (d *MerkleDag) GetEdge(id string) (*TransitionEdge, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	edge, ok := d.edges[id]
	if !ok {
		return nil, false
	}
	return edge.Clone(), true
}

// GetRootNodes returns every node that no edge lists as its output,
// sorted by id for deterministic results.
func (d *MerkleDag) GetRootNodes() []*MonadNode {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var roots []*MonadNode
	for id, node := range d.nodes {
		if len(d.producedBy[id]) == 0 {
			roots = append(roots, node.Clone())
		}
	}
	sortNodesByID(roots)
	return roots
}

// GetLeafNodes returns every node that no edge lists among its inputs,
// sorted by id for deterministic results.
func (d *MerkleDag) GetLeafNodes() []*MonadNode {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var leaves []*MonadNode
	for id, node := range d.nodes {
		if len(d.consumedBy[id]) == 0 {
			leaves = append(leaves, node.Clone())
		}
	}
	sortNodesByID(leaves)
	return leaves
}

// GetNodesByType returns copies of all nodes with the given type name,
// in insertion order.
func (d *MerkleDag) GetNodesByType(typeName string) []*MonadNode {
	d.mu.RLock()
	defer d.mu.RUnlock()

	indexed := d.nodesByType[typeName]
	if len(indexed) == 0 {
		return nil
	}
	out := make([]*MonadNode, len(indexed))
	for i, node := range indexed {
		out[i] = node.Clone()
	}
	return out
}

// ProducingEdges returns copies of the edges whose output is the given
// node, earliest inserted first. Empty for roots and unknown ids.
func (d *MerkleDag) ProducingEdges(nodeID string) []*TransitionEdge {
	d.mu.RLock()
	defer d.mu.RUnlock()

	producing := d.producedBy[nodeID]
	if len(producing) == 0 {
		return nil
	}
	out := make([]*TransitionEdge, len(producing))
	for i, edge := range producing {
		out[i] = edge.Clone()
	}
	return out
}

// Nodes returns copies of all nodes in insertion order.
func (d *MerkleDag) Nodes() []*MonadNode {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*MonadNode, 0, len(d.nodeOrder))
	for _, id := range d.nodeOrder {
		out = append(out, d.nodes[id].Clone())
	}
	return out
}

// Edges returns copies of all edges in insertion order.
func (d *MerkleDag) Edges() []*TransitionEdge {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*TransitionEdge, 0, len(d.edgeOrder))
	for _, id := range d.edgeOrder {
		out = append(out, d.edges[id].Clone())
	}
	return out
}

// NodeCount returns the number of stored nodes.
func (d *MerkleDag) NodeCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.nodes)
}

// EdgeCount returns the number of stored edges.
func (d *MerkleDag) EdgeCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.edges)
}

// Aggregate holds the results of one read-only statistics pass.
type Aggregate struct {
	// NodeCount is the total number of nodes.
	NodeCount int

	// EdgeCount is the total number of edges.
	EdgeCount int

	// NodesByType counts nodes per type name.
	NodesByType map[string]int

	// EdgesByOperation counts edges per operation name.
	EdgesByOperation map[string]int

	// ConfidenceSum is the sum of all present confidence values.
	ConfidenceSum float64

	// ConfidenceCount is how many edges carry a confidence value.
	ConfidenceCount int

	// DurationMsTotal is the sum of all present durations.
	DurationMsTotal int64
}

// Aggregate computes graph-wide statistics in a single pass under one
// read lock, so the result reflects a consistent point-in-time view.
//
// Thread Safety: Safe for concurrent use; never mutates the store.
func (d *MerkleDag) Aggregate() Aggregate {
	d.mu.RLock()
	defer d.mu.RUnlock()

	agg := Aggregate{
		NodeCount:        len(d.nodes),
		EdgeCount:        len(d.edges),
		NodesByType:      make(map[string]int, len(d.nodesByType)),
		EdgesByOperation: make(map[string]int),
	}
	for typeName, nodes := range d.nodesByType {
		agg.NodesByType[typeName] = len(nodes)
	}
	for _, id := range d.edgeOrder {
		edge := d.edges[id]
		agg.EdgesByOperation[edge.OperationName]++
		if edge.Confidence != nil {
			agg.ConfidenceSum += *edge.Confidence
			agg.ConfidenceCount++
		}
		if edge.DurationMs != nil {
			agg.DurationMsTotal += *edge.DurationMs
		}
	}
	return agg
}

func sortNodesByID(nodes []*MonadNode) {
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].ID < nodes[j].ID
	})
}
