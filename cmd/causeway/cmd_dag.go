// Copyright (C) 2025 Noetic Systems (engineering@noetic.systems)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution requirements.

package main

import (
	"log"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/NoeticSystems/Causeway/services/ledger"
	"github.com/NoeticSystems/Causeway/services/ledger/projection"
)

func runNodeAdd(cmd *cobra.Command, args []string) {
	payload, err := readPayload(nodePayload)
	if err != nil {
		log.Fatalf("Invalid payload: %v", err)
	}

	client := newAPIClient()
	var resp ledger.NodeResponse
	req := ledger.AddNodeRequest{
		TypeName:  nodeType,
		Payload:   payload,
		ParentIDs: nodeParents,
	}
	if err := client.postJSON("/v1/nodes", req, &resp); err != nil {
		log.Fatalf("Failed to record the node: %v", err)
	}
	printJSON(resp.Node)
}

func runNodeRoots(cmd *cobra.Command, args []string) {
	client := newAPIClient()
	var resp ledger.NodesResponse
	if err := client.getJSON("/v1/nodes/roots", &resp); err != nil {
		log.Fatalf("Failed to list root nodes: %v", err)
	}
	printJSON(resp)
}

func runNodeLeaves(cmd *cobra.Command, args []string) {
	client := newAPIClient()
	var resp ledger.NodesResponse
	if err := client.getJSON("/v1/nodes/leaves", &resp); err != nil {
		log.Fatalf("Failed to list leaf nodes: %v", err)
	}
	printJSON(resp)
}

func runNodeList(cmd *cobra.Command, args []string) {
	client := newAPIClient()
	var resp ledger.NodesResponse
	path := "/v1/nodes?type_name=" + url.QueryEscape(args[0])
	if err := client.getJSON(path, &resp); err != nil {
		log.Fatalf("Failed to list nodes: %v", err)
	}
	printJSON(resp)
}

func runEdgeAdd(cmd *cobra.Command, args []string) {
	metadata, err := parseKeyValues(edgeMetadata)
	if err != nil {
		log.Fatalf("Invalid --meta flag: %v", err)
	}

	req := ledger.AddEdgeRequest{
		InputIDs:      edgeInputs,
		OutputID:      edgeOutput,
		OperationName: edgeOperation,
		Metadata:      metadata,
	}
	// The negative sentinels mean "flag not given": both fields are
	// optional on the wire and absent means absent.
	if edgeConfidence >= 0 {
		req.Confidence = &edgeConfidence
	}
	if edgeDuration >= 0 {
		req.DurationMs = &edgeDuration
	}

	client := newAPIClient()
	var resp ledger.EdgeResponse
	if err := client.postJSON("/v1/edges", req, &resp); err != nil {
		log.Fatalf("Failed to record the edge: %v", err)
	}
	printJSON(resp.Edge)
}

func runVerify(cmd *cobra.Command, args []string) {
	client := newAPIClient()
	var resp ledger.VerifyResponse
	if err := client.getJSON("/v1/dag/verify", &resp); err != nil {
		log.Fatalf("Integrity verification failed to run: %v", err)
	}
	printJSON(resp)
	if !resp.Clean {
		// Scripts watch the exit code, not the JSON.
		log.Fatalf("Integrity verification found %d violation(s)", len(resp.Violations))
	}
}

func runReplay(cmd *cobra.Command, args []string) {
	client := newAPIClient()
	var resp ledger.ReplayResponse
	if err := client.getJSON("/v1/dag/replay/"+url.PathEscape(args[0]), &resp); err != nil {
		log.Fatalf("Failed to replay the path: %v", err)
	}
	printJSON(resp)
}

func runSnapshot(cmd *cobra.Command, args []string) {
	client := newAPIClient()
	var snap projection.Snapshot
	if err := client.postJSON("/v1/snapshots", nil, &snap); err != nil {
		log.Fatalf("Failed to capture a snapshot: %v", err)
	}
	printJSON(snap)
}
