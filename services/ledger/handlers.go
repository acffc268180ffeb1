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
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/NoeticSystems/Causeway/services/ledger/branch"
	"github.com/NoeticSystems/Causeway/services/ledger/dag"
	"github.com/NoeticSystems/Causeway/services/ledger/projection"
	"github.com/NoeticSystems/Causeway/services/ledger/replay"
	"github.com/NoeticSystems/Causeway/services/ledger/retention"
)

// Handlers holds the HTTP handlers for the ledger service.
type Handlers struct {
	svc *Service

	// epochLimiter throttles epoch creation; captures are full scans of
	// every registered branch.
	epochLimiter *rate.Limiter
}

// NewHandlers creates handlers for the service.
func NewHandlers(svc *Service) *Handlers {
	limit := rate.Limit(svc.config.EpochRate)
	if svc.config.EpochRate <= 0 {
		limit = rate.Inf
	}
	return &Handlers{
		svc:          svc,
		epochLimiter: rate.NewLimiter(limit, svc.config.EpochBurst),
	}
}

// getOrCreateRequestID gets or creates a request ID.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// timeAt converts an optional Unix-millisecond timestamp, falling back
// to the server clock when the caller sent none.
func timeAt(unixMilli int64) time.Time {
	if unixMilli == 0 {
		return time.Now()
	}
	return time.UnixMilli(unixMilli)
}

// HandleAddNode handles POST /v1/nodes.
//
// Description:
//
//	Builds a node from the request fields, stamps its content hash, and
//	records it. A caller replicating a node from another instance may
//	send id and created_at; a mismatched id is rejected before the
//	store is touched.
//
// Response:
//
//	200 OK: NodeResponse
//	400 Bad Request: Malformed body or invalid node
//	409 Conflict: A node with this content already exists
//	422 Unprocessable Entity: Hash mismatch, missing parent, or store
//	limit reached
func (h *Handlers) HandleAddNode(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAddNode")

	var req AddNodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	node, err := h.svc.AddNode(req.TypeName, req.Payload, req.ParentIDs, timeAt(req.CreatedAt), req.ID)
	if err != nil {
		h.rejectNodeWrite(c, logger, err)
		return
	}

	logger.Info("Node recorded", "node_id", node.ID, "type_name", node.TypeName)

	c.JSON(http.StatusOK, NodeResponse{Node: node})
}

// rejectNodeWrite maps node write failures onto status codes.
func (h *Handlers) rejectNodeWrite(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, dag.ErrHashMismatch):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: err.Error(),
			Code:  "HASH_MISMATCH",
		})
	case errors.Is(err, dag.ErrMissingParent):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: err.Error(),
			Code:  "MISSING_PARENT",
		})
	case errors.Is(err, dag.ErrDuplicateNode):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: err.Error(),
			Code:  "DUPLICATE_NODE",
		})
	case errors.Is(err, dag.ErrMaxNodesExceeded):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: err.Error(),
			Code:  "LIMIT_EXCEEDED",
		})
	case errors.Is(err, dag.ErrInvalidNode):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_NODE",
		})
	default:
		logger.Error("Node write failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "WRITE_FAILED",
		})
	}
}

// HandleAddEdge handles POST /v1/edges.
//
// Description:
//
//	Builds a transition edge, stamps its content hash, and records it.
//	Both endpoints must already be stored, and the edge must not close
//	a cycle.
//
// Response:
//
//	200 OK: EdgeResponse
//	400 Bad Request: Malformed body or invalid edge
//	409 Conflict: Duplicate edge, or the edge would create a cycle
//	422 Unprocessable Entity: Unknown endpoint, hash mismatch, or store
//	limit reached
func (h *Handlers) HandleAddEdge(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAddEdge")

	var req AddEdgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	var opts []dag.EdgeOption
	if req.Metadata != nil {
		opts = append(opts, dag.WithMetadata(req.Metadata))
	}
	if req.Confidence != nil {
		opts = append(opts, dag.WithConfidence(*req.Confidence))
	}
	if req.DurationMs != nil {
		opts = append(opts, dag.WithDurationMs(*req.DurationMs))
	}

	edge, err := h.svc.AddEdge(req.InputIDs, req.OutputID, req.OperationName, timeAt(req.CreatedAt), req.ID, opts...)
	if err != nil {
		h.rejectEdgeWrite(c, logger, err)
		return
	}

	logger.Info("Edge recorded",
		"edge_id", edge.ID,
		"operation_name", edge.OperationName,
		"output_id", edge.OutputID)

	c.JSON(http.StatusOK, EdgeResponse{Edge: edge})
}

// rejectEdgeWrite maps edge write failures onto status codes.
func (h *Handlers) rejectEdgeWrite(c *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, dag.ErrCycle):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: err.Error(),
			Code:  "CYCLE",
		})
	case errors.Is(err, dag.ErrHashMismatch):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: err.Error(),
			Code:  "HASH_MISMATCH",
		})
	case errors.Is(err, dag.ErrUnknownNode):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: err.Error(),
			Code:  "UNKNOWN_NODE",
		})
	case errors.Is(err, dag.ErrDuplicateEdge):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: err.Error(),
			Code:  "DUPLICATE_EDGE",
		})
	case errors.Is(err, dag.ErrMaxEdgesExceeded):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: err.Error(),
			Code:  "LIMIT_EXCEEDED",
		})
	case errors.Is(err, dag.ErrInvalidEdge):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_EDGE",
		})
	default:
		logger.Error("Edge write failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "WRITE_FAILED",
		})
	}
}

// HandleRoots handles GET /v1/nodes/roots.
func (h *Handlers) HandleRoots(c *gin.Context) {
	nodes := h.svc.Roots()
	c.JSON(http.StatusOK, NodesResponse{Nodes: nodes, Count: len(nodes)})
}

// HandleLeaves handles GET /v1/nodes/leaves.
func (h *Handlers) HandleLeaves(c *gin.Context) {
	nodes := h.svc.Leaves()
	c.JSON(http.StatusOK, NodesResponse{Nodes: nodes, Count: len(nodes)})
}

// HandleNodesByType handles GET /v1/nodes.
//
// Query Parameters:
//
//	type_name: Type to filter on (required)
//
// Response:
//
//	200 OK: NodesResponse (may be empty)
//	400 Bad Request: Missing type_name
func (h *Handlers) HandleNodesByType(c *gin.Context) {
	typeName := c.Query("type_name")
	if typeName == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid query parameters: type_name is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	nodes := h.svc.NodesByType(typeName)
	c.JSON(http.StatusOK, NodesResponse{Nodes: nodes, Count: len(nodes)})
}

// HandleVerify handles GET /v1/dag/verify.
//
// Description:
//
//	Runs a full integrity scan and reports every violation found.
//	Concurrent requests share one scan. A clean store yields an empty
//	violation list, not an error; violations are findings, and the
//	request itself succeeded.
//
// Response:
//
//	200 OK: VerifyResponse
//	500 Internal Server Error: Scan aborted (cancellation)
func (h *Handlers) HandleVerify(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleVerify")

	violations, err := h.svc.Verify(c.Request.Context())
	if err != nil {
		logger.Error("Integrity scan aborted", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "VERIFY_ABORTED",
		})
		return
	}

	agg := h.svc.Aggregate()
	logger.Info("Integrity scan complete",
		"violations", len(violations),
		"node_count", agg.NodeCount,
		"edge_count", agg.EdgeCount)

	c.JSON(http.StatusOK, VerifyResponse{
		Clean:      len(violations) == 0,
		Violations: violations,
		NodeCount:  agg.NodeCount,
		EdgeCount:  agg.EdgeCount,
	})
}

// HandleReplay handles GET /v1/dag/replay/:node_id.
//
// Description:
//
//	Reconstructs the transition path from a root to the given node,
//	earliest transition first. Roots yield an empty path.
//
// Response:
//
//	200 OK: ReplayResponse
//	404 Not Found: Unknown node id
//	500 Internal Server Error: Corrupted store prevented the walk
func (h *Handlers) HandleReplay(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleReplay")

	nodeID := c.Param("node_id")

	path, err := h.svc.Replay(c.Request.Context(), nodeID)
	if err != nil {
		switch {
		case errors.Is(err, dag.ErrNodeNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: err.Error(),
				Code:  "NODE_NOT_FOUND",
			})
		case errors.Is(err, replay.ErrNoPath):
			logger.Error("Replay found corrupted history", "node_id", nodeID, "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error: err.Error(),
				Code:  "NO_PATH",
			})
		default:
			logger.Error("Replay failed", "node_id", nodeID, "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error: err.Error(),
				Code:  "REPLAY_FAILED",
			})
		}
		return
	}

	logger.Info("Replay complete", "node_id", nodeID, "path_length", len(path))

	c.JSON(http.StatusOK, ReplayResponse{
		NodeID: nodeID,
		Path:   path,
		Length: len(path),
	})
}

// HandleSnapshot handles POST /v1/snapshots.
//
// Description:
//
//	Captures a numbered statistics snapshot of the transition store.
//	Snapshot numbers are monotonic per server instance.
//
// Response:
//
//	200 OK: projection.Snapshot
func (h *Handlers) HandleSnapshot(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleSnapshot")

	snap := h.svc.Snapshot()

	logger.Info("Snapshot captured",
		"epoch", snap.Epoch,
		"node_count", snap.NodeCount,
		"edge_count", snap.EdgeCount)

	c.JSON(http.StatusOK, snap)
}

// HandleCreateBranch handles POST /v1/branches.
//
// Response:
//
//	200 OK: BranchInfo
//	400 Bad Request: Malformed body or invalid name
//	409 Conflict: Name already registered
func (h *Handlers) HandleCreateBranch(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleCreateBranch")

	var req CreateBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	if _, err := h.svc.CreateBranch(req.Name); err != nil {
		switch {
		case errors.Is(err, projection.ErrDuplicateBranch):
			c.JSON(http.StatusConflict, ErrorResponse{
				Error: err.Error(),
				Code:  "DUPLICATE_BRANCH",
			})
		case errors.Is(err, branch.ErrInvalidBranchName):
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: err.Error(),
				Code:  "INVALID_BRANCH_NAME",
			})
		default:
			logger.Error("Branch creation failed", "name", req.Name, "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error: err.Error(),
				Code:  "BRANCH_FAILED",
			})
		}
		return
	}

	logger.Info("Branch created", "name", req.Name)

	c.JSON(http.StatusOK, BranchInfo{Name: req.Name})
}

// HandleListBranches handles GET /v1/branches.
func (h *Handlers) HandleListBranches(c *gin.Context) {
	branches := h.svc.Branches()
	c.JSON(http.StatusOK, BranchesResponse{Branches: branches, Count: len(branches)})
}

// HandleAppendEvent handles POST /v1/branches/:name/events.
//
// Response:
//
//	200 OK: BranchInfo (updated sizes)
//	400 Bad Request: Malformed body or invalid event
//	404 Not Found: No such branch
//	409 Conflict: Branch is closed
func (h *Handlers) HandleAppendEvent(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAppendEvent")

	name := c.Param("name")

	var req AppendEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	ev := branch.Event{
		Timestamp: timeAt(req.Timestamp).UnixMilli(),
		Kind:      req.Kind,
		Detail:    req.Detail,
	}
	if err := h.svc.AppendEvent(name, ev); err != nil {
		h.rejectBranchWrite(c, logger, name, err, "INVALID_EVENT")
		return
	}

	logger.Info("Event appended", "branch", name, "kind", req.Kind)

	c.JSON(http.StatusOK, h.branchInfo(name))
}

// HandleAddVector handles POST /v1/branches/:name/vectors.
//
// Response:
//
//	200 OK: BranchInfo (updated sizes)
//	400 Bad Request: Malformed body or invalid vector
//	404 Not Found: No such branch
//	409 Conflict: Branch is closed
func (h *Handlers) HandleAddVector(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleAddVector")

	name := c.Param("name")

	var req AddVectorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	rec := branch.VectorRecord{
		ID:     req.ID,
		Values: req.Values,
		Source: req.Source,
	}
	if err := h.svc.AddVector(name, rec); err != nil {
		h.rejectBranchWrite(c, logger, name, err, "INVALID_VECTOR")
		return
	}

	logger.Info("Vector added", "branch", name, "vector_id", req.ID)

	c.JSON(http.StatusOK, h.branchInfo(name))
}

// rejectBranchWrite maps branch write failures onto status codes.
// invalidCode is the code for the write's own validation sentinel.
func (h *Handlers) rejectBranchWrite(c *gin.Context, logger *slog.Logger, name string, err error, invalidCode string) {
	switch {
	case errors.Is(err, projection.ErrUnknownBranch):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: err.Error(),
			Code:  "UNKNOWN_BRANCH",
		})
	case errors.Is(err, branch.ErrBranchClosed):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: err.Error(),
			Code:  "BRANCH_CLOSED",
		})
	case errors.Is(err, branch.ErrInvalidEvent) || errors.Is(err, branch.ErrInvalidVector):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  invalidCode,
		})
	default:
		logger.Error("Branch write failed", "branch", name, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "BRANCH_FAILED",
		})
	}
}

func (h *Handlers) branchInfo(name string) BranchInfo {
	for _, info := range h.svc.Branches() {
		if info.Name == name {
			return info
		}
	}
	return BranchInfo{Name: name}
}

// HandleCreateEpoch handles POST /v1/epochs.
//
// Description:
//
//	Captures every registered branch into a new durable epoch. Capture
//	is all-or-nothing: any branch failure abandons the epoch, and its
//	number stays burned. Creation is rate-limited because each capture
//	scans every branch.
//
// Response:
//
//	200 OK: projection.EpochSnapshot
//	429 Too Many Requests: Rate limit exceeded
//	500 Internal Server Error: Capture or persistence failure
func (h *Handlers) HandleCreateEpoch(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleCreateEpoch")

	if !h.epochLimiter.Allow() {
		logger.Warn("Epoch creation rate limit exceeded")
		c.Header("Retry-After", "1")
		c.JSON(http.StatusTooManyRequests, ErrorResponse{
			Error: "epoch creation rate limit exceeded",
			Code:  "RATE_LIMITED",
		})
		return
	}

	// An empty body is a valid request: an epoch without metadata.
	var req CreateEpochRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warn("Invalid request body", "error", err)
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "Invalid request body",
				Code:  "INVALID_REQUEST",
			})
			return
		}
	}

	epoch, err := h.svc.CreateEpoch(c.Request.Context(), req.Metadata)
	if err != nil {
		if errors.Is(err, projection.ErrBranchSnapshot) {
			logger.Error("Branch capture failed", "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error: err.Error(),
				Code:  "BRANCH_SNAPSHOT_FAILED",
			})
			return
		}

		logger.Error("Epoch creation failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "EPOCH_FAILED",
		})
		return
	}

	logger.Info("Epoch created",
		"epoch_number", epoch.EpochNumber,
		"epoch_id", epoch.EpochID,
		"branches", len(epoch.Branches))

	c.JSON(http.StatusOK, epoch)
}

// HandleListEpochs handles GET /v1/epochs.
func (h *Handlers) HandleListEpochs(c *gin.Context) {
	epochs := h.svc.Epochs()
	c.JSON(http.StatusOK, EpochsResponse{Epochs: epochs, Count: len(epochs)})
}

// HandleLatestEpoch handles GET /v1/epochs/latest.
//
// Response:
//
//	200 OK: projection.EpochSnapshot
//	404 Not Found: No epochs recorded yet
func (h *Handlers) HandleLatestEpoch(c *gin.Context) {
	epoch, err := h.svc.GetLatestEpoch()
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: err.Error(),
			Code:  "NO_EPOCHS",
		})
		return
	}
	c.JSON(http.StatusOK, epoch)
}

// HandleGetEpoch handles GET /v1/epochs/:number.
//
// Response:
//
//	200 OK: projection.EpochSnapshot
//	400 Bad Request: Malformed number
//	404 Not Found: No epoch with that number
func (h *Handlers) HandleGetEpoch(c *gin.Context) {
	number, ok := epochNumberParam(c)
	if !ok {
		return
	}

	epoch, err := h.svc.GetEpoch(number)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: err.Error(),
			Code:  "EPOCH_NOT_FOUND",
		})
		return
	}
	c.JSON(http.StatusOK, epoch)
}

// HandleExportEpoch handles GET /v1/epochs/:number/export.
//
// Description:
//
//	Returns the epoch as a versioned epoch document, the interchange
//	format the import endpoint and the archive tooling consume.
//
// Response:
//
//	200 OK: Epoch document JSON
//	400 Bad Request: Malformed number
//	404 Not Found: No epoch with that number
func (h *Handlers) HandleExportEpoch(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleExportEpoch")

	number, ok := epochNumberParam(c)
	if !ok {
		return
	}

	doc, err := h.svc.ExportEpochDocument(number)
	if err != nil {
		if errors.Is(err, projection.ErrEpochNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: err.Error(),
				Code:  "EPOCH_NOT_FOUND",
			})
			return
		}

		logger.Error("Epoch export failed", "epoch_number", number, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "EXPORT_FAILED",
		})
		return
	}

	logger.Info("Epoch exported", "epoch_number", number, "bytes", len(doc))

	c.Data(http.StatusOK, "application/json", doc)
}

// HandleImportEpoch handles POST /v1/epochs/import.
//
// Description:
//
//	Accepts an epoch document produced by the export endpoint or the
//	archive exporter and records it. The epoch keeps its number and id;
//	future local allocations skip past the imported number.
//
// Response:
//
//	200 OK: ImportEpochResponse
//	400 Bad Request: Not an epoch document, or an unsupported schema
//	version
//	409 Conflict: Epoch number or id already present
func (h *Handlers) HandleImportEpoch(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleImportEpoch")

	data, err := c.GetRawData()
	if err != nil {
		logger.Warn("Unreadable request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Unreadable request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	epoch, err := projection.DecodeEpoch(data)
	if err != nil {
		code := "INVALID_EPOCH"
		if errors.Is(err, projection.ErrSchemaVersion) {
			code = "SCHEMA_VERSION"
		}
		logger.Warn("Rejected epoch document", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  code,
		})
		return
	}

	if err := h.svc.ImportEpoch(c.Request.Context(), epoch); err != nil {
		switch {
		case errors.Is(err, projection.ErrDuplicateEpoch):
			c.JSON(http.StatusConflict, ErrorResponse{
				Error: err.Error(),
				Code:  "DUPLICATE_EPOCH",
			})
		case errors.Is(err, projection.ErrInvalidEpoch):
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: err.Error(),
				Code:  "INVALID_EPOCH",
			})
		default:
			logger.Error("Epoch import failed", "epoch_id", epoch.EpochID, "error", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error: err.Error(),
				Code:  "IMPORT_FAILED",
			})
		}
		return
	}

	logger.Info("Epoch imported",
		"epoch_number", epoch.EpochNumber,
		"epoch_id", epoch.EpochID)

	c.JSON(http.StatusOK, ImportEpochResponse{
		EpochNumber: epoch.EpochNumber,
		EpochID:     epoch.EpochID,
	})
}

// epochNumberParam parses the :number path parameter, writing the error
// response itself when the value is malformed.
func epochNumberParam(c *gin.Context) (uint64, bool) {
	raw := c.Param("number")
	number, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid epoch number: " + raw,
			Code:  "INVALID_NUMBER",
		})
		return 0, false
	}
	return number, true
}

// HandleProjectionMetrics handles GET /v1/projection/metrics.
func (h *Handlers) HandleProjectionMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Metrics())
}

// HandleRetentionEvaluate handles POST /v1/retention/evaluate.
//
// Description:
//
//	Evaluates a retention policy against the recorded epoch history and
//	returns the keep/delete partition. Evaluation is pure; dry_run only
//	labels the returned plan.
//
// Response:
//
//	200 OK: retention.Plan
//	400 Bad Request: Malformed body or invalid policy
func (h *Handlers) HandleRetentionEvaluate(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleRetentionEvaluate")

	var req RetentionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	policy, err := req.Policy()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_POLICY",
		})
		return
	}

	plan, err := h.svc.EvaluateRetention(policy, req.DryRun)
	if err != nil {
		if errors.Is(err, retention.ErrInvalidPolicy) {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: err.Error(),
				Code:  "INVALID_POLICY",
			})
			return
		}

		logger.Error("Retention evaluation failed", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: err.Error(),
			Code:  "RETENTION_FAILED",
		})
		return
	}

	logger.Info("Retention evaluated",
		"kind", req.Kind,
		"to_keep", len(plan.ToKeep),
		"to_delete", len(plan.ToDelete),
		"dry_run", req.DryRun)

	c.JSON(http.StatusOK, plan)
}

// HandleHealth handles GET /v1/ledger/health.
//
// Description:
//
//	Returns the health status of the service. Always returns 200 if
//	running.
//
// Response:
//
//	200 OK: HealthResponse
func (h *Handlers) HandleHealth(c *gin.Context) {
	agg := h.svc.Aggregate()
	metrics := h.svc.Metrics()

	c.JSON(http.StatusOK, HealthResponse{
		Status:      "healthy",
		Version:     ServiceVersion,
		NodeCount:   agg.NodeCount,
		EdgeCount:   agg.EdgeCount,
		EpochCount:  metrics.EpochCount,
		BranchCount: len(h.svc.Branches()),
	})
}
