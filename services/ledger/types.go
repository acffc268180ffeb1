// Copyright (C) 2025 Noetic Systems (engineering@noetic.systems)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution requirements.

package ledger

import (
	"fmt"
	"time"

	"github.com/NoeticSystems/Causeway/services/ledger/dag"
	"github.com/NoeticSystems/Causeway/services/ledger/projection"
	"github.com/NoeticSystems/Causeway/services/ledger/retention"
)

// AddNodeRequest is the request body for POST /v1/nodes.
type AddNodeRequest struct {
	// TypeName tags what kind of state the node holds. Required.
	TypeName string `json:"type_name" binding:"required"`

	// Payload is the node's opaque content, base64 in JSON.
	Payload []byte `json:"payload"`

	// ParentIDs is the ordered provenance ancestry.
	ParentIDs []string `json:"parent_ids"`

	// CreatedAt is Unix milliseconds. Zero means the server's clock.
	CreatedAt int64 `json:"created_at"`

	// ID, when set, must equal the server-computed content hash.
	// Used when replicating nodes between instances.
	ID string `json:"id"`
}

// NodeResponse is the response for POST /v1/nodes.
type NodeResponse struct {
	// Node is the recorded node, hash stamped.
	Node *dag.MonadNode `json:"node"`
}

// AddEdgeRequest is the request body for POST /v1/edges.
type AddEdgeRequest struct {
	// InputIDs is the ordered, non-empty list of consumed node ids.
	// Required.
	InputIDs []string `json:"input_ids" binding:"required"`

	// OutputID is the single produced node id. Required.
	OutputID string `json:"output_id" binding:"required"`

	// OperationName names the transition. Required.
	OperationName string `json:"operation_name" binding:"required"`

	// Metadata carries key/value annotations.
	Metadata map[string]string `json:"metadata"`

	// Confidence, when present, is the producer's confidence in [0,1].
	Confidence *float64 `json:"confidence"`

	// DurationMs, when present, is how long the transition took.
	DurationMs *int64 `json:"duration_ms"`

	// CreatedAt is Unix milliseconds. Zero means the server's clock.
	CreatedAt int64 `json:"created_at"`

	// ID, when set, must equal the server-computed content hash.
	ID string `json:"id"`
}

// EdgeResponse is the response for POST /v1/edges.
type EdgeResponse struct {
	// Edge is the recorded edge, hash stamped.
	Edge *dag.TransitionEdge `json:"edge"`
}

// NodesResponse is the response for the node listing endpoints.
type NodesResponse struct {
	// Nodes is sorted by id.
	Nodes []*dag.MonadNode `json:"nodes"`

	// Count is len(Nodes).
	Count int `json:"count"`
}

// VerifyResponse is the response for GET /v1/dag/verify.
type VerifyResponse struct {
	// Clean is true when the scan found no violations.
	Clean bool `json:"clean"`

	// Violations lists every violation found, in deterministic order.
	Violations []dag.IntegrityViolation `json:"violations"`

	// NodeCount is the store's node count at scan time.
	NodeCount int `json:"node_count"`

	// EdgeCount is the store's edge count at scan time.
	EdgeCount int `json:"edge_count"`
}

// ReplayResponse is the response for GET /v1/dag/replay/:node_id.
type ReplayResponse struct {
	// NodeID is the node whose history was reconstructed.
	NodeID string `json:"node_id"`

	// Path is the producing edges, earliest transition first. Empty for
	// root nodes.
	Path []*dag.TransitionEdge `json:"path"`

	// Length is len(Path).
	Length int `json:"length"`
}

// CreateBranchRequest is the request body for POST /v1/branches.
type CreateBranchRequest struct {
	// Name is the branch's unique name. Required.
	Name string `json:"name" binding:"required"`
}

// BranchInfo describes one registered branch.
type BranchInfo struct {
	// Name is the branch name.
	Name string `json:"name"`

	// EventCount is the branch's current event count.
	EventCount int `json:"event_count"`

	// VectorCount is the branch's current vector count.
	VectorCount int `json:"vector_count"`
}

// BranchesResponse is the response for GET /v1/branches.
type BranchesResponse struct {
	// Branches is sorted by name.
	Branches []BranchInfo `json:"branches"`

	// Count is len(Branches).
	Count int `json:"count"`
}

// AppendEventRequest is the request body for POST /v1/branches/:name/events.
type AppendEventRequest struct {
	// Kind classifies the event. Required.
	Kind string `json:"kind" binding:"required"`

	// Detail is optional free-form context.
	Detail string `json:"detail"`

	// Timestamp is Unix milliseconds. Zero means the server's clock.
	Timestamp int64 `json:"timestamp"`
}

// AddVectorRequest is the request body for POST /v1/branches/:name/vectors.
type AddVectorRequest struct {
	// ID identifies the record within its branch. Required.
	ID string `json:"id" binding:"required"`

	// Values is the embedding. Required, non-empty.
	Values []float32 `json:"values" binding:"required"`

	// Source names where the embedding came from.
	Source string `json:"source"`
}

// CreateEpochRequest is the request body for POST /v1/epochs.
type CreateEpochRequest struct {
	// Metadata carries caller-supplied labels onto the epoch.
	Metadata map[string]string `json:"metadata"`
}

// EpochsResponse is the response for GET /v1/epochs.
type EpochsResponse struct {
	// Epochs is in ascending number order.
	Epochs []*projection.EpochSnapshot `json:"epochs"`

	// Count is len(Epochs).
	Count int `json:"count"`
}

// ImportEpochResponse is the response for POST /v1/epochs/import.
type ImportEpochResponse struct {
	// EpochNumber is the imported epoch's number.
	EpochNumber uint64 `json:"epoch_number"`

	// EpochID is the imported epoch's globally unique id.
	EpochID string `json:"epoch_id"`
}

// RetentionRequest is the request body for POST /v1/retention/evaluate.
type RetentionRequest struct {
	// Kind selects the rule: "by_age", "by_count", or "combined".
	// Required.
	Kind string `json:"kind" binding:"required"`

	// MaxAgeMs is the age cutoff in milliseconds, for by_age and
	// combined.
	MaxAgeMs int64 `json:"max_age_ms"`

	// MaxCount is the per-branch keep count, for by_count and combined.
	MaxCount int `json:"max_count"`

	// DryRun labels the returned plan; evaluation never deletes either
	// way.
	DryRun bool `json:"dry_run"`
}

// Policy converts the request into a retention policy.
func (r RetentionRequest) Policy() (retention.Policy, error) {
	switch r.Kind {
	case "by_age":
		return retention.ByAge(time.Duration(r.MaxAgeMs) * time.Millisecond), nil
	case "by_count":
		return retention.ByCount(r.MaxCount), nil
	case "combined":
		return retention.Combined(time.Duration(r.MaxAgeMs)*time.Millisecond, r.MaxCount), nil
	default:
		return retention.Policy{}, fmt.Errorf("%w: unknown kind %q", retention.ErrInvalidPolicy, r.Kind)
	}
}

// HealthResponse is the response for GET /v1/ledger/health.
type HealthResponse struct {
	// Status is "healthy" or "degraded".
	Status string `json:"status"`

	// Version is the service version.
	Version string `json:"version"`

	// NodeCount is the transition store's node count.
	NodeCount int `json:"node_count"`

	// EdgeCount is the transition store's edge count.
	EdgeCount int `json:"edge_count"`

	// EpochCount is the recorded epoch count.
	EpochCount int `json:"epoch_count"`

	// BranchCount is the registered branch count.
	BranchCount int `json:"branch_count"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code (optional).
	Code string `json:"code,omitempty"`

	// Details provides additional error context (optional).
	Details string `json:"details,omitempty"`
}
