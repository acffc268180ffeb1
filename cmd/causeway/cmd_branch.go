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
	"strconv"

	"github.com/spf13/cobra"

	"github.com/NoeticSystems/Causeway/services/ledger"
)

func runBranchCreate(cmd *cobra.Command, args []string) {
	client := newAPIClient()
	var info ledger.BranchInfo
	req := ledger.CreateBranchRequest{Name: args[0]}
	if err := client.postJSON("/v1/branches", req, &info); err != nil {
		log.Fatalf("Failed to create the branch: %v", err)
	}
	printJSON(info)
}

func runBranchList(cmd *cobra.Command, args []string) {
	client := newAPIClient()
	var resp ledger.BranchesResponse
	if err := client.getJSON("/v1/branches", &resp); err != nil {
		log.Fatalf("Failed to list branches: %v", err)
	}
	printJSON(resp)
}

func runBranchAppendEvent(cmd *cobra.Command, args []string) {
	req := ledger.AppendEventRequest{Kind: args[1]}
	if len(args) == 3 {
		req.Detail = args[2]
	}

	client := newAPIClient()
	var info ledger.BranchInfo
	path := "/v1/branches/" + url.PathEscape(args[0]) + "/events"
	if err := client.postJSON(path, req, &info); err != nil {
		log.Fatalf("Failed to append the event: %v", err)
	}
	printJSON(info)
}

func runBranchAddVector(cmd *cobra.Command, args []string) {
	values := make([]float32, 0, len(args)-2)
	for _, raw := range args[2:] {
		v, err := strconv.ParseFloat(raw, 32)
		if err != nil {
			log.Fatalf("Invalid vector value %q: %v", raw, err)
		}
		values = append(values, float32(v))
	}

	client := newAPIClient()
	var info ledger.BranchInfo
	req := ledger.AddVectorRequest{ID: args[1], Values: values}
	path := "/v1/branches/" + url.PathEscape(args[0]) + "/vectors"
	if err := client.postJSON(path, req, &info); err != nil {
		log.Fatalf("Failed to add the vector: %v", err)
	}
	printJSON(info)
}
