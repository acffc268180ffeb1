// Copyright (C) 2025 Noetic Systems (engineering@noetic.systems)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution requirements.

package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NoeticSystems/Causeway/services/ledger/branch"
	"github.com/NoeticSystems/Causeway/services/ledger/projection"
)

func archivedEpoch(number uint64) *projection.EpochSnapshot {
	return &projection.EpochSnapshot{
		EpochNumber: number,
		EpochID:     fmt.Sprintf("ep-%04d", number),
		CreatedAt:   int64(number) * 1_000,
		Branches: []projection.BranchSnapshot{
			{
				Name:    "embeddings",
				Events:  []branch.Event{{Timestamp: int64(number) * 1_000, Kind: "ingest"}},
				Vectors: []branch.VectorRecord{},
			},
		},
	}
}

// fakeSink records imports and refuses repeats the way the projection
// service does.
type fakeSink struct {
	mu    sync.Mutex
	seen  map[string]bool
	order []uint64
}

func newFakeSink() *fakeSink {
	return &fakeSink{seen: make(map[string]bool)}
}

func (s *fakeSink) ImportEpoch(_ context.Context, epoch *projection.EpochSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[epoch.EpochID] {
		return fmt.Errorf("%w: id %s", projection.ErrDuplicateEpoch, epoch.EpochID)
	}
	s.seen[epoch.EpochID] = true
	s.order = append(s.order, epoch.EpochNumber)
	return nil
}

func (s *fakeSink) numbers() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint64(nil), s.order...)
}

// ---- Exporter ----

func TestExporter_ExportAndReadBack(t *testing.T) {
	dir := t.TempDir()
	exporter, err := NewExporter(dir, nil)
	require.NoError(t, err)

	epoch := archivedEpoch(1)
	path, err := exporter.ExportEpoch(epoch)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "epoch_000001_ep-0001.json"), path)

	loaded, err := ReadEpochFile(path)
	require.NoError(t, err)
	assert.Equal(t, epoch, loaded)

	// The temp file from the atomic write must be gone.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "epoch_000001_ep-0001.json", entries[0].Name())
}

func TestExporter_RejectsInvalidEpoch(t *testing.T) {
	exporter, err := NewExporter(t.TempDir(), nil)
	require.NoError(t, err)

	bad := archivedEpoch(1)
	bad.EpochNumber = 0
	_, err = exporter.ExportEpoch(bad)
	assert.ErrorIs(t, err, projection.ErrInvalidEpoch)
}

func TestNewExporter_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "spool")
	_, err := NewExporter(dir, nil)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewExporter_EmptyDir(t *testing.T) {
	_, err := NewExporter("", nil)
	assert.Error(t, err)
}

func TestFileName_OrdersByNumber(t *testing.T) {
	early := FileName(archivedEpoch(7))
	late := FileName(archivedEpoch(40))
	assert.Equal(t, "epoch_000007_ep-0007.json", early)
	assert.Less(t, early, late)
}

func TestReadEpochFile_Failures(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := ReadEpochFile(filepath.Join(t.TempDir(), "absent.json"))
		assert.Error(t, err)
	})

	t.Run("garbage content", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(path, []byte("{broken"), 0600))
		_, err := ReadEpochFile(path)
		assert.ErrorIs(t, err, projection.ErrInvalidEpoch)
	})
}

// ---- Importer ----

func TestImporter_ImportDir(t *testing.T) {
	dir := t.TempDir()
	exporter, err := NewExporter(dir, nil)
	require.NoError(t, err)

	// Export out of order plus two files a sweep must skip.
	_, err = exporter.ExportEpoch(archivedEpoch(2))
	require.NoError(t, err)
	_, err = exporter.ExportEpoch(archivedEpoch(1))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "garbage.json"), []byte("not json"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0600))

	sink := newFakeSink()
	importer, err := NewImporter(sink, nil)
	require.NoError(t, err)

	summary, err := importer.ImportDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, ImportSummary{Imported: 2, Failed: 1}, summary)
	assert.Equal(t, []uint64{1, 2}, sink.numbers())
}

func TestImporter_ImportDirIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	exporter, err := NewExporter(dir, nil)
	require.NoError(t, err)
	_, err = exporter.ExportEpoch(archivedEpoch(1))
	require.NoError(t, err)
	_, err = exporter.ExportEpoch(archivedEpoch(2))
	require.NoError(t, err)

	sink := newFakeSink()
	importer, err := NewImporter(sink, nil)
	require.NoError(t, err)

	first, err := importer.ImportDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, ImportSummary{Imported: 2}, first)

	second, err := importer.ImportDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, ImportSummary{Duplicates: 2}, second)
	assert.Equal(t, []uint64{1, 2}, sink.numbers())
}

func TestImporter_ImportFileMissing(t *testing.T) {
	importer, err := NewImporter(newFakeSink(), nil)
	require.NoError(t, err)
	err = importer.ImportFile(context.Background(), filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestImporter_ImportDirCancelled(t *testing.T) {
	dir := t.TempDir()
	exporter, err := NewExporter(dir, nil)
	require.NoError(t, err)
	_, err = exporter.ExportEpoch(archivedEpoch(1))
	require.NoError(t, err)

	importer, err := NewImporter(newFakeSink(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = importer.ImportDir(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewImporter_NilSink(t *testing.T) {
	_, err := NewImporter(nil, nil)
	assert.Error(t, err)
}

// ---- SpoolWatcher ----

func fastWatcherOptions() *SpoolWatcherOptions {
	opts := DefaultSpoolWatcherOptions()
	opts.DebounceWindow = 20 * time.Millisecond
	return &opts
}

func TestSpoolWatcher_SweepsExistingFilesOnStart(t *testing.T) {
	dir := t.TempDir()
	exporter, err := NewExporter(dir, nil)
	require.NoError(t, err)
	_, err = exporter.ExportEpoch(archivedEpoch(1))
	require.NoError(t, err)

	sink := newFakeSink()
	importer, err := NewImporter(sink, nil)
	require.NoError(t, err)

	watcher, err := NewSpoolWatcher(dir, importer, fastWatcherOptions())
	require.NoError(t, err)
	t.Cleanup(watcher.Stop)

	require.NoError(t, watcher.Start(context.Background()))
	assert.True(t, watcher.IsWatching())
	assert.Equal(t, []uint64{1}, sink.numbers())

	watcher.Stop()
	assert.False(t, watcher.IsWatching())
}

func TestSpoolWatcher_ImportsDroppedFiles(t *testing.T) {
	dir := t.TempDir()
	sink := newFakeSink()
	importer, err := NewImporter(sink, nil)
	require.NoError(t, err)

	watcher, err := NewSpoolWatcher(dir, importer, fastWatcherOptions())
	require.NoError(t, err)
	t.Cleanup(watcher.Stop)
	require.NoError(t, watcher.Start(context.Background()))

	exporter, err := NewExporter(dir, nil)
	require.NoError(t, err)
	_, err = exporter.ExportEpoch(archivedEpoch(3))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		numbers := sink.numbers()
		return len(numbers) == 1 && numbers[0] == 3
	}, 3*time.Second, 10*time.Millisecond)
}

func TestSpoolWatcher_DoubleStartIsANoOp(t *testing.T) {
	dir := t.TempDir()
	importer, err := NewImporter(newFakeSink(), nil)
	require.NoError(t, err)

	watcher, err := NewSpoolWatcher(dir, importer, fastWatcherOptions())
	require.NoError(t, err)
	t.Cleanup(watcher.Stop)

	require.NoError(t, watcher.Start(context.Background()))
	require.NoError(t, watcher.Start(context.Background()))
}

func TestNewSpoolWatcher_Validation(t *testing.T) {
	importer, err := NewImporter(newFakeSink(), nil)
	require.NoError(t, err)

	_, err = NewSpoolWatcher("", importer, nil)
	assert.Error(t, err)

	_, err = NewSpoolWatcher(t.TempDir(), nil, nil)
	assert.Error(t, err)
}

// ---- Uploader ----

func TestNewUploader_Validation(t *testing.T) {
	ctx := context.Background()

	_, err := NewUploader(ctx, "")
	assert.Error(t, err)

	_, err = NewUploader(ctx, "causeway-archives",
		WithCredentialsFile(filepath.Join(t.TempDir(), "absent.json")))
	assert.Error(t, err)
}

func TestUploader_ObjectName(t *testing.T) {
	plain := &Uploader{bucket: "b"}
	assert.Equal(t, "epoch_000001_ep.json", plain.objectName("/spool/epoch_000001_ep.json"))

	prefixed := &Uploader{bucket: "b", prefix: "ledgers/alpha"}
	assert.Equal(t, "ledgers/alpha/epoch_000001_ep.json", prefixed.objectName("/spool/epoch_000001_ep.json"))
}
