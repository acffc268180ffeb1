// Copyright (C) 2025 Noetic Systems (engineering@noetic.systems)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution requirements.

// Package archive moves epoch documents between ledgers as files.
//
// # Description
//
// An epoch exported here is the same versioned JSON document the embedded
// store persists, so a file written by one ledger imports into another
// with its epoch id intact. The package covers three transports: plain
// files (Exporter), a watched spool directory that feeds imports
// automatically (SpoolWatcher), and Google Cloud Storage for offsite
// copies (Uploader).
package archive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/NoeticSystems/Causeway/services/ledger/projection"
)

// FileName returns the archive file name for an epoch.
//
// The fixed-width number prefix keeps lexicographic directory order equal
// to epoch order; the id suffix keeps files from two ledgers distinct.
func FileName(epoch *projection.EpochSnapshot) string {
	return fmt.Sprintf("epoch_%06d_%s.json", epoch.EpochNumber, epoch.EpochID)
}

// Exporter writes epoch documents into a directory.
//
// # Thread Safety
//
// Safe for concurrent use; each export writes an independent file.
type Exporter struct {
	dir    string
	logger *slog.Logger
}

// NewExporter creates an exporter rooted at dir, creating it if needed.
//
// # Inputs
//
//   - dir: Target directory for archive files.
//   - logger: Optional logger. nil disables export logging.
//
// # Outputs
//
//   - *Exporter: Ready-to-use exporter.
//   - error: Non-nil if dir is empty or cannot be created.
func NewExporter(dir string, logger *slog.Logger) (*Exporter, error) {
	if dir == "" {
		return nil, errors.New("archive directory must not be empty")
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create archive directory %s: %w", dir, err)
	}
	return &Exporter{dir: dir, logger: logger}, nil
}

// Dir returns the export directory.
func (e *Exporter) Dir() string {
	return e.dir
}

// ExportEpoch writes one epoch document atomically.
//
// # Description
//
// Encodes the epoch and writes it via temp file, fsync and rename, so a
// spool watcher on the same directory never observes a half-written
// document.
//
// # Inputs
//
//   - epoch: The epoch to export. Must pass projection validation.
//
// # Outputs
//
//   - string: Path of the written file.
//   - error: Non-nil if encoding or any file step fails.
func (e *Exporter) ExportEpoch(epoch *projection.EpochSnapshot) (string, error) {
	data, err := projection.EncodeEpoch(epoch)
	if err != nil {
		return "", err
	}

	path := filepath.Join(e.dir, FileName(epoch))
	if err := writeFileAtomic(path, data); err != nil {
		return "", err
	}

	if e.logger != nil {
		e.logger.Info("epoch exported",
			slog.Uint64("epoch_number", epoch.EpochNumber),
			slog.String("path", path))
	}
	return path, nil
}

// writeFileAtomic writes data through a temp file in the same directory,
// then renames it over the target.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tempFile, err := os.CreateTemp(dir, ".epoch-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tempFile.Sync(); err != nil {
		tempFile.Close()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}

	success = true
	return nil
}

// ReadEpochFile reads and decodes one archive file.
//
// # Outputs
//
//   - *projection.EpochSnapshot: The decoded epoch.
//   - error: Non-nil on read failure, schema mismatch or structural
//     problems in the document.
func ReadEpochFile(path string) (*projection.EpochSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read archive file: %w", err)
	}
	epoch, err := projection.DecodeEpoch(data)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return epoch, nil
}

// EpochSink receives imported epochs. projection.Service satisfies it.
type EpochSink interface {
	ImportEpoch(ctx context.Context, epoch *projection.EpochSnapshot) error
}

// ImportSummary reports the outcome of a directory import.
type ImportSummary struct {
	// Imported counts epochs accepted by the sink.
	Imported int `json:"imported"`

	// Duplicates counts files whose epoch the sink already held.
	Duplicates int `json:"duplicates"`

	// Failed counts files that did not decode or were rejected for
	// another reason.
	Failed int `json:"failed"`
}

// Importer feeds archive files into an epoch sink.
//
// # Thread Safety
//
// Safe for concurrent use when the sink is.
type Importer struct {
	sink   EpochSink
	logger *slog.Logger
}

// NewImporter creates an importer over the given sink.
func NewImporter(sink EpochSink, logger *slog.Logger) (*Importer, error) {
	if sink == nil {
		return nil, errors.New("sink must not be nil")
	}
	return &Importer{sink: sink, logger: logger}, nil
}

// ImportFile reads one archive file and hands it to the sink.
func (im *Importer) ImportFile(ctx context.Context, path string) error {
	epoch, err := ReadEpochFile(path)
	if err != nil {
		return err
	}
	if err := im.sink.ImportEpoch(ctx, epoch); err != nil {
		return fmt.Errorf("import %s: %w", filepath.Base(path), err)
	}
	if im.logger != nil {
		im.logger.Info("epoch imported",
			slog.Uint64("epoch_number", epoch.EpochNumber),
			slog.String("epoch_id", epoch.EpochID),
			slog.String("file", filepath.Base(path)))
	}
	return nil
}

// ImportDir imports every .json file in a directory, oldest epoch first.
//
// # Description
//
// Files are processed in name order, which matches epoch order for files
// the Exporter wrote. A file that fails to decode or that the sink
// rejects is counted and skipped rather than aborting the sweep; an
// already-known epoch counts as a duplicate, so re-scanning a spool is
// idempotent.
//
// # Outputs
//
//   - ImportSummary: Per-outcome counts for the sweep.
//   - error: Non-nil only when the directory itself cannot be read or
//     the context is cancelled.
func (im *Importer) ImportDir(ctx context.Context, dir string) (ImportSummary, error) {
	var summary ImportSummary

	entries, err := os.ReadDir(dir)
	if err != nil {
		return summary, fmt.Errorf("read archive directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("import aborted: %w", err)
		}

		err := im.ImportFile(ctx, filepath.Join(dir, name))
		switch {
		case err == nil:
			summary.Imported++
		case errors.Is(err, projection.ErrDuplicateEpoch):
			summary.Duplicates++
		default:
			summary.Failed++
			if im.logger != nil {
				im.logger.Warn("archive file skipped",
					slog.String("file", name),
					slog.String("error", err.Error()))
			}
		}
	}

	return summary, nil
}
