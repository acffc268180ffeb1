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
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/NoeticSystems/Causeway/cmd/causeway/config"
	"github.com/NoeticSystems/Causeway/services/ledger"
	"github.com/NoeticSystems/Causeway/services/ledger/archive"
	"github.com/NoeticSystems/Causeway/services/ledger/projection"
)

func runEpochCreate(cmd *cobra.Command, args []string) {
	metadata, err := parseKeyValues(epochMetadata)
	if err != nil {
		log.Fatalf("Invalid --meta flag: %v", err)
	}

	client := newAPIClient()
	var epoch projection.EpochSnapshot
	req := ledger.CreateEpochRequest{Metadata: metadata}
	if err := client.postJSON("/v1/epochs", req, &epoch); err != nil {
		log.Fatalf("Failed to create the epoch: %v", err)
	}
	printJSON(epoch)
}

func runEpochGet(cmd *cobra.Command, args []string) {
	number := parseEpochNumber(args[0])
	client := newAPIClient()
	var epoch projection.EpochSnapshot
	if err := client.getJSON(fmt.Sprintf("/v1/epochs/%d", number), &epoch); err != nil {
		log.Fatalf("Failed to fetch epoch %d: %v", number, err)
	}
	printJSON(epoch)
}

func runEpochLatest(cmd *cobra.Command, args []string) {
	client := newAPIClient()
	var epoch projection.EpochSnapshot
	if err := client.getJSON("/v1/epochs/latest", &epoch); err != nil {
		log.Fatalf("Failed to fetch the latest epoch: %v", err)
	}
	printJSON(epoch)
}

func runEpochList(cmd *cobra.Command, args []string) {
	client := newAPIClient()
	var resp ledger.EpochsResponse
	if err := client.getJSON("/v1/epochs", &resp); err != nil {
		log.Fatalf("Failed to list epochs: %v", err)
	}
	printJSON(resp)
}

func runEpochExport(cmd *cobra.Command, args []string) {
	number := parseEpochNumber(args[0])
	client := newAPIClient()
	doc, err := client.getRaw(fmt.Sprintf("/v1/epochs/%d/export", number))
	if err != nil {
		log.Fatalf("Failed to export epoch %d: %v", number, err)
	}

	outPath := exportOutput
	if outPath == "" {
		// Default into the archive dir under the canonical file name,
		// so `archive upload` and the spool watcher recognize it.
		epoch, err := projection.DecodeEpoch(doc)
		if err != nil {
			log.Fatalf("The server returned an invalid epoch document: %v", err)
		}
		dir := expandHome(config.Global.Archive.Dir)
		if err := os.MkdirAll(dir, 0750); err != nil {
			log.Fatalf("Failed to create the archive directory: %v", err)
		}
		outPath = filepath.Join(dir, archive.FileName(epoch))
	}

	if err := os.WriteFile(outPath, doc, 0640); err != nil {
		log.Fatalf("Failed to write the epoch document: %v", err)
	}
	fmt.Printf("Exported epoch %d to %s (%d bytes)\n", number, outPath, len(doc))
}

func runEpochImport(cmd *cobra.Command, args []string) {
	doc, err := os.ReadFile(args[0])
	if err != nil {
		log.Fatalf("Failed to read the epoch document: %v", err)
	}

	client := newAPIClient()
	var resp ledger.ImportEpochResponse
	if err := client.postRaw("/v1/epochs/import", doc, &resp); err != nil {
		log.Fatalf("Failed to import the epoch: %v", err)
	}
	printJSON(resp)
}

func runEpochWatch(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := newAPIClient()
	wsURL := client.wsURL("/v1/epochs/watch")
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", wsURL, err)
	}
	defer conn.Close()

	fmt.Fprintln(os.Stderr, "Watching for epochs (Ctrl+C to stop)...")

	// Close on signal so the blocked ReadMessage returns.
	go func() {
		<-ctx.Done()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Fatalf("Watch connection lost: %v", err)
		}
		// Re-frame the envelope through printJSON so TTY output is
		// indented like every other command.
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(message, &envelope); err != nil {
			fmt.Println(string(message))
			continue
		}
		printJSON(envelope)
	}
}

func runArchiveUpload(cmd *cobra.Command, args []string) {
	bucket := config.Global.Archive.GCSBucket
	if bucket == "" {
		log.Fatalf("No GCS bucket configured: set archive.gcs_bucket in the config file")
	}

	localDir := expandHome(config.Global.Archive.Dir)
	if len(args) == 1 {
		localDir = args[0]
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var opts []archive.UploaderOption
	if config.Global.Archive.GCSCredentialsFile != "" {
		opts = append(opts, archive.WithCredentialsFile(expandHome(config.Global.Archive.GCSCredentialsFile)))
	}
	if config.Global.Archive.GCSObjectPrefix != "" {
		opts = append(opts, archive.WithObjectPrefix(config.Global.Archive.GCSObjectPrefix))
	}

	uploader, err := archive.NewUploader(ctx, bucket, opts...)
	if err != nil {
		log.Fatalf("Failed to create the GCS uploader: %v", err)
	}
	defer uploader.Close()

	count, err := uploader.UploadDir(ctx, localDir)
	if err != nil {
		log.Fatalf("Upload failed after %d file(s): %v", count, err)
	}
	fmt.Printf("Uploaded %d epoch document(s) from %s to gs://%s\n", count, localDir, bucket)
}

// parseEpochNumber parses a positional epoch number argument.
func parseEpochNumber(raw string) uint64 {
	number, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		log.Fatalf("Invalid epoch number %q", raw)
	}
	return number
}
