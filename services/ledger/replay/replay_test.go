// Copyright (C) 2025 Noetic Systems (engineering@noetic.systems)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution requirements.

package replay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NoeticSystems/Causeway/services/ledger/dag"
)

func newNode(t *testing.T, d *dag.MerkleDag, typeName, payload string) *dag.MonadNode {
	t.Helper()
	node := dag.NodeFromPayload(typeName, []byte(payload))
	require.NoError(t, d.AddNode(node))
	return node
}

func newEdge(t *testing.T, d *dag.MerkleDag, op string, inputs []string, output string, atMs int64) *dag.TransitionEdge {
	t.Helper()
	edge := dag.NewTransitionEdge(inputs, output, op, time.UnixMilli(atMs))
	require.NoError(t, d.AddEdge(edge))
	return edge
}

func TestNewEngine_NilSource(t *testing.T) {
	_, err := NewEngine(nil)
	assert.ErrorIs(t, err, ErrNilProvenance)
}

func TestPathToNode_LinearChain(t *testing.T) {
	d := dag.New()
	a := newNode(t, d, "raw", "a")
	b := newNode(t, d, "parsed", "b")
	c := newNode(t, d, "aggregated", "c")
	parse := newEdge(t, d, "parse", []string{a.ID}, b.ID, 1000)
	aggregate := newEdge(t, d, "aggregate", []string{b.ID}, c.ID, 2000)

	engine, err := NewEngine(d)
	require.NoError(t, err)

	t.Run("full chain, root first", func(t *testing.T) {
		path, err := engine.PathToNode(context.Background(), c.ID)
		require.NoError(t, err)
		require.Len(t, path, 2)
		assert.Equal(t, parse.ID, path[0].ID)
		assert.Equal(t, aggregate.ID, path[1].ID)
	})

	t.Run("middle of the chain", func(t *testing.T) {
		path, err := engine.PathToNode(context.Background(), b.ID)
		require.NoError(t, err)
		require.Len(t, path, 1)
		assert.Equal(t, parse.ID, path[0].ID)
	})

	t.Run("root has an empty path", func(t *testing.T) {
		path, err := engine.PathToNode(context.Background(), a.ID)
		require.NoError(t, err)
		assert.NotNil(t, path)
		assert.Empty(t, path)
	})
}

func TestPathToNode_UnknownNode(t *testing.T) {
	engine, err := NewEngine(dag.New())
	require.NoError(t, err)

	_, err = engine.PathToNode(context.Background(), "no-such-node")
	assert.ErrorIs(t, err, dag.ErrNodeNotFound)
}

// TestPathToNode_FanIn checks that a join contributes only its primary
// input to the path.
func TestPathToNode_FanIn(t *testing.T) {
	d := dag.New()
	a := newNode(t, d, "raw", "a")
	b := newNode(t, d, "parsed", "b")
	c := newNode(t, d, "parsed", "c")
	merged := newNode(t, d, "merged", "m")
	ab := newEdge(t, d, "parse", []string{a.ID}, b.ID, 1000)
	newEdge(t, d, "parse", []string{a.ID}, c.ID, 1500)
	join := newEdge(t, d, "join", []string{b.ID, c.ID}, merged.ID, 2000)

	engine, err := NewEngine(d)
	require.NoError(t, err)

	path, err := engine.PathToNode(context.Background(), merged.ID)
	require.NoError(t, err)
	require.Len(t, path, 2)
	assert.Equal(t, ab.ID, path[0].ID)
	assert.Equal(t, join.ID, path[1].ID)
}

// TestPathToNode_EarliestProducerWins builds a node with two producing
// edges and checks the older one is followed.
func TestPathToNode_EarliestProducerWins(t *testing.T) {
	d := dag.New()
	a := newNode(t, d, "raw", "a")
	b := newNode(t, d, "raw", "b")
	z := newNode(t, d, "derived", "z")
	early := newEdge(t, d, "derive", []string{a.ID}, z.ID, 1000)
	newEdge(t, d, "rederive", []string{b.ID}, z.ID, 2000)

	engine, err := NewEngine(d)
	require.NoError(t, err)

	path, err := engine.PathToNode(context.Background(), z.ID)
	require.NoError(t, err)
	require.Len(t, path, 1)
	assert.Equal(t, early.ID, path[0].ID)
}

// fakeProvenance lets tests hand the engine a corrupted view that the
// append-only store itself can never produce.
type fakeProvenance struct {
	nodes     map[string]bool
	producing map[string][]*dag.TransitionEdge
}

func (f *fakeProvenance) HasNode(id string) bool { return f.nodes[id] }

func (f *fakeProvenance) ProducingEdges(id string) []*dag.TransitionEdge {
	return f.producing[id]
}

func TestPathToNode_CyclicSource(t *testing.T) {
	fake := &fakeProvenance{
		nodes: map[string]bool{"x": true, "y": true},
		producing: map[string][]*dag.TransitionEdge{
			"x": {{ID: "e1", InputIDs: []string{"y"}, OutputID: "x", CreatedAt: 1000}},
			"y": {{ID: "e2", InputIDs: []string{"x"}, OutputID: "y", CreatedAt: 2000}},
		},
	}
	engine, err := NewEngine(fake)
	require.NoError(t, err)

	_, err = engine.PathToNode(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoPath)
}

func TestPathToNode_DanglingInput(t *testing.T) {
	fake := &fakeProvenance{
		nodes: map[string]bool{"x": true},
		producing: map[string][]*dag.TransitionEdge{
			"x": {{ID: "e1", InputIDs: []string{"ghost"}, OutputID: "x", CreatedAt: 1000}},
		},
	}
	engine, err := NewEngine(fake)
	require.NoError(t, err)

	_, err = engine.PathToNode(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoPath)
}

func TestPathToNode_Cancellation(t *testing.T) {
	d := dag.New()
	a := newNode(t, d, "raw", "a")
	b := newNode(t, d, "parsed", "b")
	newEdge(t, d, "parse", []string{a.ID}, b.ID, 1000)

	engine, err := NewEngine(d)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = engine.PathToNode(ctx, b.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
