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
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/NoeticSystems/Causeway/services/ledger/telemetry"
)

// checkEvery is how many entities the verifier scans between context
// cancellation checks.
const checkEvery = 1024

// VerifyIntegrity re-validates every stored node and edge and returns
// all violations found, not just the first.
//
// Description:
//
//	The scan runs under one read lock so it sees a consistent view even
//	while writers queue behind it. Four classes of violation are
//	reported: node content no longer matching its id, edge content no
//	longer matching its id, node parents that do not resolve, and edge
//	endpoints that do not resolve. On a store that only ever accepted
//	writes through AddNode and AddEdge the report is empty; a non-empty
//	report means external corruption.
//
// Inputs:
//
//	ctx - Cancels a long scan between batches of entities.
//
// Outputs:
//
//	[]IntegrityViolation - All violations found, nil when the store is
//	intact. Ordered nodes first then edges, each in insertion order.
//	error - Non-nil only when ctx is cancelled before the scan finishes.
//
// Thread Safety: Safe for concurrent use.
func (d *MerkleDag) VerifyIntegrity(ctx context.Context) ([]IntegrityViolation, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "dag.VerifyIntegrity")
	defer span.End()

	start := time.Now()

	d.mu.RLock()
	defer d.mu.RUnlock()

	span.SetAttributes(
		attribute.Int("dag.node_count", len(d.nodes)),
		attribute.Int("dag.edge_count", len(d.edges)),
	)

	var violations []IntegrityViolation
	scanned := 0

	checkCtx := func() error {
		scanned++
		if scanned%checkEvery != 0 {
			return nil
		}
		return ctx.Err()
	}

	for _, id := range d.nodeOrder {
		if err := checkCtx(); err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("verify aborted after %d entities: %w", scanned, err)
		}
		node := d.nodes[id]
		if recomputed := node.RecomputeHash(); recomputed != node.ID {
			violations = append(violations, IntegrityViolation{
				Kind:     ViolationNodeHashMismatch,
				EntityID: node.ID,
				Detail:   fmt.Sprintf("content recomputes to %s", recomputed),
			})
		}
		for _, parent := range node.ParentIDs {
			if _, ok := d.nodes[parent]; !ok {
				violations = append(violations, IntegrityViolation{
					Kind:     ViolationMissingParent,
					EntityID: node.ID,
					Ref:      parent,
					Detail:   "declared parent is not stored",
				})
			}
		}
	}

	for _, id := range d.edgeOrder {
		if err := checkCtx(); err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("verify aborted after %d entities: %w", scanned, err)
		}
		edge := d.edges[id]
		if recomputed := edge.RecomputeHash(); recomputed != edge.ID {
			violations = append(violations, IntegrityViolation{
				Kind:     ViolationEdgeHashMismatch,
				EntityID: edge.ID,
				Detail:   fmt.Sprintf("content recomputes to %s", recomputed),
			})
		}
		for _, in := range edge.InputIDs {
			if _, ok := d.nodes[in]; !ok {
				violations = append(violations, IntegrityViolation{
					Kind:     ViolationMissingInput,
					EntityID: edge.ID,
					Ref:      in,
					Detail:   "input node is not stored",
				})
			}
		}
		if _, ok := d.nodes[edge.OutputID]; !ok {
			violations = append(violations, IntegrityViolation{
				Kind:     ViolationMissingOutput,
				EntityID: edge.ID,
				Ref:      edge.OutputID,
				Detail:   "output node is not stored",
			})
		}
	}

	verifyDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("dag.violations", len(violations)))
	telemetry.SetSpanOK(span)
	return violations, nil
}
