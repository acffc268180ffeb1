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

	"github.com/NoeticSystems/Causeway/cmd/causeway/config"
)

// --- Global Command Variables ---
var (
	serverURL      string // CLI override for server.url
	nodeType       string
	nodePayload    string
	nodeParents    []string
	edgeInputs     []string
	edgeOutput     string
	edgeOperation  string
	edgeMetadata   []string
	edgeConfidence float64
	edgeDuration   int64
	epochMetadata  []string
	retentionKind  string
	retentionAge   string
	retentionCount int
	retentionDry   bool
	exportOutput   string

	rootCmd = &cobra.Command{
		Use:   "causeway",
		Short: "A cli to manage a Causeway transition ledger",
		Long: `Causeway records immutable state transitions into a
				content-addressed ledger and snapshots branch history into
				numbered epochs. This CLI drives a running ledger server.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := config.Load(); err != nil {
				log.Fatalf("Error loading config: %v", err)
			}
			if serverURL != "" {
				config.Global.Server.URL = serverURL
			}
		},
	}

	// --- Store ---
	nodeCmd = &cobra.Command{
		Use:   "node",
		Short: "Record and list state nodes",
	}
	nodeAddCmd = &cobra.Command{
		Use:   "add",
		Short: "Record a state node (the id is the content hash)",
		Run:   runNodeAdd, // Defined in cmd_dag.go
	}
	nodeRootsCmd = &cobra.Command{
		Use:   "roots",
		Short: "List nodes no edge produces",
		Run:   runNodeRoots, // Defined in cmd_dag.go
	}
	nodeLeavesCmd = &cobra.Command{
		Use:   "leaves",
		Short: "List nodes no edge consumes",
		Run:   runNodeLeaves, // Defined in cmd_dag.go
	}
	nodeListCmd = &cobra.Command{
		Use:   "list [type_name]",
		Short: "List nodes of a given type",
		Args:  cobra.ExactArgs(1),
		Run:   runNodeList, // Defined in cmd_dag.go
	}

	edgeCmd = &cobra.Command{
		Use:   "edge",
		Short: "Record transition edges",
	}
	edgeAddCmd = &cobra.Command{
		Use:   "add",
		Short: "Record a transition edge between existing nodes",
		Run:   runEdgeAdd, // Defined in cmd_dag.go
	}

	dagCmd = &cobra.Command{
		Use:   "dag",
		Short: "Verify, replay, and snapshot the transition store",
	}
	verifyCmd = &cobra.Command{
		Use:   "verify",
		Short: "Recompute every hash and reference; report all violations",
		Run:   runVerify, // Defined in cmd_dag.go
	}
	replayCmd = &cobra.Command{
		Use:   "replay [node_id]",
		Short: "Reconstruct the transition chain that produced a node",
		Args:  cobra.ExactArgs(1),
		Run:   runReplay, // Defined in cmd_dag.go
	}
	snapshotCmd = &cobra.Command{
		Use:   "snapshot",
		Short: "Capture a statistics snapshot of the store",
		Run:   runSnapshot, // Defined in cmd_dag.go
	}

	// --- Branches ---
	branchCmd = &cobra.Command{
		Use:   "branch",
		Short: "Manage the branches captured into epochs",
	}
	branchCreateCmd = &cobra.Command{
		Use:   "create [name]",
		Short: "Register a new branch",
		Args:  cobra.ExactArgs(1),
		Run:   runBranchCreate, // Defined in cmd_branch.go
	}
	branchListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered branches with their event and vector counts",
		Run:   runBranchList, // Defined in cmd_branch.go
	}
	branchEventCmd = &cobra.Command{
		Use:   "append-event [name] [kind]",
		Short: "Append an event to a branch's log",
		Args:  cobra.RangeArgs(2, 3),
		Run:   runBranchAppendEvent, // Defined in cmd_branch.go
	}
	branchVectorCmd = &cobra.Command{
		Use:   "add-vector [name] [id] [values...]",
		Short: "Add an embedding record to a branch",
		Args:  cobra.MinimumNArgs(3),
		Run:   runBranchAddVector, // Defined in cmd_branch.go
	}

	// --- Epochs ---
	epochCmd = &cobra.Command{
		Use:   "epoch",
		Short: "Capture and retrieve epoch snapshots",
	}
	epochCreateCmd = &cobra.Command{
		Use:   "create",
		Short: "Capture every registered branch into a new epoch",
		Run:   runEpochCreate, // Defined in cmd_epoch.go
	}
	epochGetCmd = &cobra.Command{
		Use:   "get [number]",
		Short: "Fetch an epoch by number",
		Args:  cobra.ExactArgs(1),
		Run:   runEpochGet, // Defined in cmd_epoch.go
	}
	epochLatestCmd = &cobra.Command{
		Use:   "latest",
		Short: "Fetch the newest epoch",
		Run:   runEpochLatest, // Defined in cmd_epoch.go
	}
	epochListCmd = &cobra.Command{
		Use:   "list",
		Short: "List all recorded epochs",
		Run:   runEpochList, // Defined in cmd_epoch.go
	}
	epochExportCmd = &cobra.Command{
		Use:   "export [number]",
		Short: "Export an epoch as an interchange document",
		Args:  cobra.ExactArgs(1),
		Run:   runEpochExport, // Defined in cmd_epoch.go
	}
	epochImportCmd = &cobra.Command{
		Use:   "import [file]",
		Short: "Import an exported epoch document",
		Args:  cobra.ExactArgs(1),
		Run:   runEpochImport, // Defined in cmd_epoch.go
	}
	epochWatchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Stream newly recorded epochs over a WebSocket",
		Run:   runEpochWatch, // Defined in cmd_epoch.go
	}

	// --- Archive / GCS ---
	archiveCmd = &cobra.Command{
		Use:   "archive",
		Short: "Move epoch documents between instances and offsite storage",
	}
	archiveUploadCmd = &cobra.Command{
		Use:   "upload [local_directory]",
		Short: "Upload archived epoch documents to GCS",
		Args:  cobra.MaximumNArgs(1),
		Run:   runArchiveUpload, // Defined in cmd_epoch.go
	}

	// --- Retention ---
	retentionCmd = &cobra.Command{
		Use:   "retention",
		Short: "Plan which epoch history to keep",
	}
	retentionEvaluateCmd = &cobra.Command{
		Use:   "evaluate",
		Short: "Partition snapshot history into keep/delete sets under a policy",
		Run:   runRetentionEvaluate, // Defined in cmd_retention.go
	}

	// --- Operational ---
	metricsCmd = &cobra.Command{
		Use:   "metrics",
		Short: "Show cross-epoch projection metrics",
		Run:   runMetrics, // Defined in cmd_status.go
	}
	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Check the ledger server's health",
		Run:   runHealth, // Defined in cmd_status.go
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "",
		"Ledger server URL (overrides the config file)")

	// Store commands
	rootCmd.AddCommand(nodeCmd)
	nodeCmd.AddCommand(nodeAddCmd)
	nodeAddCmd.Flags().StringVar(&nodeType, "type", "", "Type name tagging the node's state (required)")
	nodeAddCmd.Flags().StringVar(&nodePayload, "payload", "", "Payload content, or @path to read a file")
	nodeAddCmd.Flags().StringSliceVar(&nodeParents, "parent", nil, "Provenance parent node id (repeatable, ordered)")
	_ = nodeAddCmd.MarkFlagRequired("type")
	nodeCmd.AddCommand(nodeRootsCmd)
	nodeCmd.AddCommand(nodeLeavesCmd)
	nodeCmd.AddCommand(nodeListCmd)

	rootCmd.AddCommand(edgeCmd)
	edgeCmd.AddCommand(edgeAddCmd)
	edgeAddCmd.Flags().StringSliceVar(&edgeInputs, "input", nil, "Input node id (repeatable, ordered; first is the replay primary)")
	edgeAddCmd.Flags().StringVar(&edgeOutput, "output", "", "Output node id (required)")
	edgeAddCmd.Flags().StringVar(&edgeOperation, "op", "", "Operation name for the transition (required)")
	edgeAddCmd.Flags().StringSliceVar(&edgeMetadata, "meta", nil, "Metadata entry as key=value (repeatable)")
	edgeAddCmd.Flags().Float64Var(&edgeConfidence, "confidence", -1, "Producer confidence in [0,1]; omit for none")
	edgeAddCmd.Flags().Int64Var(&edgeDuration, "duration-ms", -1, "Transition duration in milliseconds; omit for none")
	_ = edgeAddCmd.MarkFlagRequired("input")
	_ = edgeAddCmd.MarkFlagRequired("output")
	_ = edgeAddCmd.MarkFlagRequired("op")

	rootCmd.AddCommand(dagCmd)
	dagCmd.AddCommand(verifyCmd)
	dagCmd.AddCommand(replayCmd)
	dagCmd.AddCommand(snapshotCmd)

	// Branch commands
	rootCmd.AddCommand(branchCmd)
	branchCmd.AddCommand(branchCreateCmd)
	branchCmd.AddCommand(branchListCmd)
	branchCmd.AddCommand(branchEventCmd)
	branchCmd.AddCommand(branchVectorCmd)

	// Epoch commands
	rootCmd.AddCommand(epochCmd)
	epochCmd.AddCommand(epochCreateCmd)
	epochCreateCmd.Flags().StringSliceVar(&epochMetadata, "meta", nil, "Epoch metadata entry as key=value (repeatable)")
	epochCmd.AddCommand(epochGetCmd)
	epochCmd.AddCommand(epochLatestCmd)
	epochCmd.AddCommand(epochListCmd)
	epochCmd.AddCommand(epochExportCmd)
	epochExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "",
		"Output file (default: epoch document in the configured archive dir)")
	epochCmd.AddCommand(epochImportCmd)
	epochCmd.AddCommand(epochWatchCmd)

	// Archive commands
	rootCmd.AddCommand(archiveCmd)
	archiveCmd.AddCommand(archiveUploadCmd)

	// Retention commands
	rootCmd.AddCommand(retentionCmd)
	retentionCmd.AddCommand(retentionEvaluateCmd)
	retentionEvaluateCmd.Flags().StringVar(&retentionKind, "kind", "combined",
		"Policy kind: by_age, by_count, or combined")
	retentionEvaluateCmd.Flags().StringVar(&retentionAge, "max-age", "168h",
		"Age cutoff for by_age/combined (Go duration, e.g. 72h)")
	retentionEvaluateCmd.Flags().IntVar(&retentionCount, "max-count", 3,
		"Per-branch keep count for by_count/combined")
	retentionEvaluateCmd.Flags().BoolVar(&retentionDry, "dry-run", true,
		"Label the plan informational (evaluation never deletes either way)")

	// Operational commands
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(healthCmd)
}
