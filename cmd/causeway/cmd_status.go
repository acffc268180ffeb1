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

	"github.com/spf13/cobra"

	"github.com/NoeticSystems/Causeway/services/ledger"
	"github.com/NoeticSystems/Causeway/services/ledger/projection"
)

func runMetrics(cmd *cobra.Command, args []string) {
	client := newAPIClient()
	var metrics projection.Metrics
	if err := client.getJSON("/v1/projection/metrics", &metrics); err != nil {
		log.Fatalf("Failed to fetch projection metrics: %v", err)
	}
	printJSON(metrics)
}

func runHealth(cmd *cobra.Command, args []string) {
	client := newAPIClient()
	var health ledger.HealthResponse
	if err := client.getJSON("/v1/ledger/health", &health); err != nil {
		log.Fatalf("The ledger server is unreachable: %v", err)
	}
	printJSON(health)
}
