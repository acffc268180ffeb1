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
	"time"

	"github.com/spf13/cobra"

	"github.com/NoeticSystems/Causeway/services/ledger"
	"github.com/NoeticSystems/Causeway/services/ledger/retention"
)

func runRetentionEvaluate(cmd *cobra.Command, args []string) {
	maxAge, err := time.ParseDuration(retentionAge)
	if err != nil {
		log.Fatalf("Invalid --max-age %q: %v", retentionAge, err)
	}

	req := ledger.RetentionRequest{
		Kind:     retentionKind,
		MaxAgeMs: maxAge.Milliseconds(),
		MaxCount: retentionCount,
		DryRun:   retentionDry,
	}

	client := newAPIClient()
	var plan retention.Plan
	if err := client.postJSON("/v1/retention/evaluate", req, &plan); err != nil {
		log.Fatalf("Failed to evaluate retention: %v", err)
	}
	printJSON(plan)
}
