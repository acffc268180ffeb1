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

// TransitionEdge is an immutable, content-addressed causal transition
// from one or more input nodes to a single output node.
//
// Description:
//
//	InputIDs is ordered and non-empty; the first entry is the edge's
//	primary input, the convention replay follows when walking provenance
//	backwards through fan-in transitions. Metadata is hashed in sorted
//	key order, so edge identity is independent of map insertion order.
//
// Thread Safety: Values are plain data. The MerkleDag copies edges on
// insert and on read.
type TransitionEdge struct {
	// ID is the content hash of the edge's fields.
	ID string `json:"id"`

	// InputIDs is the ordered, non-empty list of consumed node ids.
	InputIDs []string `json:"input_ids"`

	// OutputID is the single produced node id.
	OutputID string `json:"output_id"`

	// OperationName names the transition that produced the output.
	OperationName string `json:"operation_name"`

	// Metadata carries key/value annotations about the transition.
	Metadata map[string]string `json:"metadata,omitempty"`

	// Confidence, when present, is the producer's confidence in [0,1].
	Confidence *float64 `json:"confidence,omitempty"`

	// DurationMs, when present, is how long the transition took.
	DurationMs *int64 `json:"duration_ms,omitempty"`

	// CreatedAt is the creation time in Unix milliseconds.
	CreatedAt int64 `json:"created_at"`
}

// EdgeOption configures optional TransitionEdge fields at construction.
type EdgeOption func(*TransitionEdge)

// WithMetadata sets the edge's metadata. The map is copied.
func WithMetadata(metadata map[string]string) EdgeOption {
	return func(e *TransitionEdge) {
		e.Metadata = copyMetadata(metadata)
	}
}

// WithConfidence sets the edge's confidence score.
func WithConfidence(confidence float64) EdgeOption {
	return func(e *TransitionEdge) {
		c := confidence
		e.Confidence = &c
	}
}

// WithDurationMs sets the edge's duration in milliseconds.
func WithDurationMs(durationMs int64) EdgeOption {
	return func(e *TransitionEdge) {
		d := durationMs
		e.DurationMs = &d
	}
}

// NewTransitionEdge builds an edge from its fields and stamps the
// content hash.
//
// Description:
//
//	Options are applied before hashing, so the id covers metadata,
//	confidence, and duration. The supplied time is truncated to
//	millisecond precision, matching node construction.
//
// Inputs:
//
//	inputIDs - Ordered consumed node ids. Copied; must be non-empty for
//	the edge to be accepted by a MerkleDag.
//	outputID - Produced node id.
//	operationName - Name of the transition.
//	at - Creation time.
//	opts - Optional metadata, confidence, duration.
//
// Outputs:
//
//	*TransitionEdge - Edge with ID populated.
func NewTransitionEdge(inputIDs []string, outputID, operationName string, at time.Time, opts ...EdgeOption) *TransitionEdge {
	e := &TransitionEdge{
		InputIDs:      copyStrings(inputIDs),
		OutputID:      outputID,
		OperationName: operationName,
		CreatedAt:     at.UnixMilli(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ID = EdgeHash(e.InputIDs, e.OutputID, e.OperationName, e.Metadata, e.Confidence, e.DurationMs, e.CreatedAt)
	return e
}

// NewSimpleEdge builds a single-input edge stamped with the current time.
//
// Convenience constructor for the common one-to-one transition.
func NewSimpleEdge(inputID, outputID, operationName string) *TransitionEdge {
	return NewTransitionEdge([]string{inputID}, outputID, operationName, time.Now())
}

// Clone returns a deep copy of the edge.
func (e *TransitionEdge) Clone() *TransitionEdge {
	if e == nil {
		return nil
	}
	out := &TransitionEdge{
		ID:            e.ID,
		InputIDs:      copyStrings(e.InputIDs),
		OutputID:      e.OutputID,
		OperationName: e.OperationName,
		Metadata:      copyMetadata(e.Metadata),
		CreatedAt:     e.CreatedAt,
	}
	if e.Confidence != nil {
		c := *e.Confidence
		out.Confidence = &c
	}
	if e.DurationMs != nil {
		d := *e.DurationMs
		out.DurationMs = &d
	}
	return out
}

// RecomputeHash returns the hash derived from the edge's current fields.
//
// Used by verification; equal to ID for every untampered edge.
func (e *TransitionEdge) RecomputeHash() string {
	return EdgeHash(e.InputIDs, e.OutputID, e.OperationName, e.Metadata, e.Confidence, e.DurationMs, e.CreatedAt)
}

func copyMetadata(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
