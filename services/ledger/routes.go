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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all ledger routes with the router.
//
// Description:
//
//	Registers all /v1/* endpoints with the given Gin router group.
//	The router group should already have any required middleware applied.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Store Endpoints:
//
//	POST /v1/nodes - Record a state node
//	POST /v1/edges - Record a transition edge
//	GET  /v1/nodes?type_name= - List nodes by type
//	GET  /v1/nodes/roots - List nodes no edge produces
//	GET  /v1/nodes/leaves - List nodes no edge consumes
//	GET  /v1/dag/verify - Full integrity scan
//	GET  /v1/dag/replay/:node_id - Provenance path to a node
//
// Projection Endpoints:
//
//	POST /v1/snapshots - Capture a statistics snapshot
//	GET  /v1/projection/metrics - Epoch history summary
//
// Branch Endpoints:
//
//	POST /v1/branches - Create a branch
//	GET  /v1/branches - List branches
//	POST /v1/branches/:name/events - Append an event
//	POST /v1/branches/:name/vectors - Add a vector record
//
// Epoch Endpoints:
//
//	POST /v1/epochs - Capture a new epoch (rate limited)
//	GET  /v1/epochs - List epochs
//	GET  /v1/epochs/latest - Newest epoch
//	GET  /v1/epochs/watch - WebSocket epoch broadcast
//	GET  /v1/epochs/:number - Epoch by number
//	GET  /v1/epochs/:number/export - Epoch as an interchange document
//	POST /v1/epochs/import - Record an exported epoch
//
// Retention Endpoints:
//
//	POST /v1/retention/evaluate - Evaluate a policy (pure)
//
// Health Endpoints:
//
//	GET  /v1/ledger/health - Health check
//
// Example:
//
//	service, _ := ledger.NewService(ledger.DefaultServiceConfig())
//	handlers := ledger.NewHandlers(service)
//
//	v1 := router.Group("/v1")
//	ledger.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	// Store writes and reads
	rg.POST("/nodes", handlers.HandleAddNode)
	rg.GET("/nodes", handlers.HandleNodesByType)
	rg.GET("/nodes/roots", handlers.HandleRoots)
	rg.GET("/nodes/leaves", handlers.HandleLeaves)
	rg.POST("/edges", handlers.HandleAddEdge)

	dagGroup := rg.Group("/dag")
	{
		dagGroup.GET("/verify", handlers.HandleVerify)
		dagGroup.GET("/replay/:node_id", handlers.HandleReplay)
	}

	// Projections
	rg.POST("/snapshots", handlers.HandleSnapshot)
	rg.GET("/projection/metrics", handlers.HandleProjectionMetrics)

	// Branches
	branches := rg.Group("/branches")
	{
		branches.POST("", handlers.HandleCreateBranch)
		branches.GET("", handlers.HandleListBranches)
		branches.POST("/:name/events", handlers.HandleAppendEvent)
		branches.POST("/:name/vectors", handlers.HandleAddVector)
	}

	// Epochs
	epochs := rg.Group("/epochs")
	{
		epochs.POST("", handlers.HandleCreateEpoch)
		epochs.GET("", handlers.HandleListEpochs)
		epochs.GET("/latest", handlers.HandleLatestEpoch)
		epochs.GET("/watch", handlers.HandleWatchEpochs)
		epochs.GET("/:number", handlers.HandleGetEpoch)
		epochs.GET("/:number/export", handlers.HandleExportEpoch)
		epochs.POST("/import", handlers.HandleImportEpoch)
	}

	// Retention
	rg.POST("/retention/evaluate", handlers.HandleRetentionEvaluate)

	// Health checks
	rg.GET("/ledger/health", handlers.HandleHealth)
}
