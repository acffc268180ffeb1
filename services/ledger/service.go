// Copyright (C) 2025 Noetic Systems (engineering@noetic.systems)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution requirements.

// Package ledger composes the transition store, replay engine,
// projections, and retention evaluation into one service and exposes
// them over HTTP.
//
// The service exposes endpoints for:
//   - Recording immutable state nodes and transition edges
//   - Verifying store integrity and replaying provenance paths
//   - Capturing statistics snapshots and durable epochs
//   - Evaluating retention policies against epoch history
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/NoeticSystems/Causeway/services/ledger/archive"
	"github.com/NoeticSystems/Causeway/services/ledger/branch"
	"github.com/NoeticSystems/Causeway/services/ledger/dag"
	"github.com/NoeticSystems/Causeway/services/ledger/projection"
	"github.com/NoeticSystems/Causeway/services/ledger/replay"
	"github.com/NoeticSystems/Causeway/services/ledger/retention"
)

// ServiceVersion is reported by the health endpoint.
const ServiceVersion = "0.3.0"

// ServiceConfig configures the ledger service.
type ServiceConfig struct {
	// MaxNodes caps the transition store's node count.
	// Default: 0 (unbounded)
	MaxNodes int

	// MaxEdges caps the transition store's edge count.
	// Default: 0 (unbounded)
	MaxEdges int

	// BranchEventLimit bounds the event log of branches created over the
	// API to the most recent N entries.
	// Default: 0 (unbounded)
	BranchEventLimit int

	// EpochRate is the sustained rate of epoch creations allowed over
	// HTTP, per second. Zero or negative disables the limit.
	// Default: 1
	EpochRate float64

	// EpochBurst is the burst size for epoch creation over HTTP.
	// Default: 5
	EpochBurst int
}

// DefaultServiceConfig returns sensible defaults.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxNodes:         0, // Unbounded
		MaxEdges:         0, // Unbounded
		BranchEventLimit: 0, // Unbounded
		EpochRate:        1,
		EpochBurst:       5,
	}
}

// Option configures optional service collaborators.
type Option func(*serviceOptions)

type serviceOptions struct {
	epochStore projection.EpochStore
	history    []*projection.EpochSnapshot
	archiveDir string
	logger     *slog.Logger
}

// WithEpochStore attaches a durable epoch store. Every created or
// imported epoch is persisted before it is recorded.
func WithEpochStore(store projection.EpochStore) Option {
	return func(o *serviceOptions) {
		o.epochStore = store
	}
}

// WithEpochHistory seeds previously persisted epochs, usually the result
// of loading the epoch store on startup.
func WithEpochHistory(epochs []*projection.EpochSnapshot) Option {
	return func(o *serviceOptions) {
		o.history = epochs
	}
}

// WithArchiveDir enables filesystem archival: every successfully created
// epoch is additionally written to dir as an epoch document.
func WithArchiveDir(dir string) Option {
	return func(o *serviceOptions) {
		o.archiveDir = dir
	}
}

// WithLogger sets the logger used for background archival and watcher
// notifications. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// Service is the ledger service.
//
// Thread Safety:
//
//	Service is safe for concurrent use. Multiple goroutines can call
//	any combination of methods simultaneously.
type Service struct {
	config ServiceConfig
	logger *slog.Logger

	store     *dag.MerkleDag
	replayer  *replay.Engine
	projector *projection.Projector
	epochs    *projection.Service

	// exporter is nil unless an archive directory was configured.
	exporter *archive.Exporter

	// branches holds the branches created over the API, so event and
	// vector appends can reach them. The projection service remains the
	// authority on what gets captured.
	branches map[string]*branch.MemoryBranch
	branchMu sync.RWMutex

	// verifyGroup collapses concurrent integrity scans into one.
	verifyGroup singleflight.Group

	watchers  map[uint64]chan *projection.EpochSnapshot
	watcherID uint64
	watchMu   sync.Mutex
}

// Compile-time check: the service can sit behind a spool importer.
var _ archive.EpochSink = (*Service)(nil)

// NewService creates a new ledger service.
//
// Description:
//
//	Builds an empty transition store with the configured limits and
//	wires the replay engine and projectors over it. Options attach a
//	durable epoch store, seed epoch history, and enable archival.
//
// Inputs:
//
//	config - Service configuration
//	opts - Optional collaborators
//
// Outputs:
//
//	*Service - The configured service
//	error - Non-nil when the archive directory cannot be created
func NewService(config ServiceConfig, opts ...Option) (*Service, error) {
	var o serviceOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	var dagOpts []dag.Option
	if config.MaxNodes > 0 {
		dagOpts = append(dagOpts, dag.WithMaxNodes(config.MaxNodes))
	}
	if config.MaxEdges > 0 {
		dagOpts = append(dagOpts, dag.WithMaxEdges(config.MaxEdges))
	}
	store := dag.New(dagOpts...)

	replayer, err := replay.NewEngine(store)
	if err != nil {
		return nil, err
	}
	projector, err := projection.NewProjector(store)
	if err != nil {
		return nil, err
	}

	var projOpts []projection.Option
	if o.epochStore != nil {
		projOpts = append(projOpts, projection.WithStore(o.epochStore))
	}
	if len(o.history) > 0 {
		projOpts = append(projOpts, projection.WithEpochs(o.history))
	}

	svc := &Service{
		config:    config,
		logger:    o.logger,
		store:     store,
		replayer:  replayer,
		projector: projector,
		epochs:    projection.NewService(projOpts...),
		branches:  make(map[string]*branch.MemoryBranch),
		watchers:  make(map[uint64]chan *projection.EpochSnapshot),
	}

	if o.archiveDir != "" {
		exporter, err := archive.NewExporter(o.archiveDir, o.logger)
		if err != nil {
			return nil, fmt.Errorf("archive: %w", err)
		}
		svc.exporter = exporter
	}

	return svc, nil
}

// AddNode builds a node from its fields, stamps the content hash, and
// records it.
//
// Description:
//
//	A non-empty wantID is checked against the computed hash before the
//	store is touched, so a caller replicating a node from another
//	instance finds out about drift instead of silently recording a
//	different identity.
//
// Errors:
//
//	dag.ErrHashMismatch - wantID does not match the computed hash
//	dag.ErrInvalidNode, dag.ErrDuplicateNode, dag.ErrMissingParent,
//	dag.ErrMaxNodesExceeded - Store validation failures
func (s *Service) AddNode(typeName string, payload []byte, parentIDs []string, at time.Time, wantID string) (*dag.MonadNode, error) {
	node := dag.NewMonadNode(typeName, payload, parentIDs, at)
	if wantID != "" && wantID != node.ID {
		return nil, fmt.Errorf("%w: supplied id %s, computed %s", dag.ErrHashMismatch, wantID, node.ID)
	}
	if err := s.store.AddNode(node); err != nil {
		return nil, err
	}
	return node, nil
}

// AddEdge builds a transition edge, stamps the content hash, and records
// it. A non-empty wantID must match the computed hash.
func (s *Service) AddEdge(inputIDs []string, outputID, operationName string, at time.Time, wantID string, opts ...dag.EdgeOption) (*dag.TransitionEdge, error) {
	edge := dag.NewTransitionEdge(inputIDs, outputID, operationName, at, opts...)
	if wantID != "" && wantID != edge.ID {
		return nil, fmt.Errorf("%w: supplied id %s, computed %s", dag.ErrHashMismatch, wantID, edge.ID)
	}
	if err := s.store.AddEdge(edge); err != nil {
		return nil, err
	}
	return edge, nil
}

// Roots returns all nodes no edge produces, sorted by id.
func (s *Service) Roots() []*dag.MonadNode {
	return s.store.GetRootNodes()
}

// Leaves returns all nodes no edge consumes, sorted by id.
func (s *Service) Leaves() []*dag.MonadNode {
	return s.store.GetLeafNodes()
}

// NodesByType returns all nodes carrying the given type name, sorted by
// id.
func (s *Service) NodesByType(typeName string) []*dag.MonadNode {
	return s.store.GetNodesByType(typeName)
}

// Verify runs a full integrity scan over the transition store.
//
// Description:
//
//	Concurrent calls share a single scan through a singleflight group;
//	every waiter receives the same violation list. The shared scan runs
//	under the first caller's context, so a waiter can see that caller's
//	cancellation error.
//
// Thread Safety: Safe for concurrent use.
func (s *Service) Verify(ctx context.Context) ([]dag.IntegrityViolation, error) {
	v, err, _ := s.verifyGroup.Do("verify", func() (any, error) {
		return s.store.VerifyIntegrity(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]dag.IntegrityViolation), nil
}

// Replay reconstructs the root-first transition path that produced the
// given node. See replay.Engine.PathToNode for semantics.
func (s *Service) Replay(ctx context.Context, nodeID string) ([]*dag.TransitionEdge, error) {
	return s.replayer.PathToNode(ctx, nodeID)
}

// Snapshot captures a numbered statistics snapshot of the store.
func (s *Service) Snapshot() projection.Snapshot {
	return s.projector.CreateSnapshot()
}

// Aggregate returns point-in-time store statistics.
func (s *Service) Aggregate() dag.Aggregate {
	return s.store.Aggregate()
}

// CreateBranch creates an in-memory branch and registers it for epoch
// capture.
//
// Errors:
//
//	branch.ErrInvalidBranchName - Empty name
//	projection.ErrDuplicateBranch - Name already registered
func (s *Service) CreateBranch(name string) (*branch.MemoryBranch, error) {
	var opts []branch.MemoryOption
	if s.config.BranchEventLimit > 0 {
		opts = append(opts, branch.WithEventLimit(s.config.BranchEventLimit))
	}
	b, err := branch.NewMemoryBranch(name, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.epochs.RegisterBranch(b); err != nil {
		return nil, err
	}

	s.branchMu.Lock()
	s.branches[name] = b
	s.branchMu.Unlock()
	return b, nil
}

// RegisterBranch registers an externally owned branch for epoch capture.
// Branches registered this way cannot receive events over the API.
func (s *Service) RegisterBranch(b branch.Branch) error {
	return s.epochs.RegisterBranch(b)
}

// Branches lists the registered branches with their current sizes,
// sorted by name. Branches registered through RegisterBranch report
// zero sizes; their contents only surface in epochs.
func (s *Service) Branches() []BranchInfo {
	names := s.epochs.BranchNames()
	sort.Strings(names)

	s.branchMu.RLock()
	defer s.branchMu.RUnlock()

	infos := make([]BranchInfo, 0, len(names))
	for _, name := range names {
		info := BranchInfo{Name: name}
		if b, ok := s.branches[name]; ok {
			info.EventCount, info.VectorCount = b.Len()
		}
		infos = append(infos, info)
	}
	return infos
}

// AppendEvent appends an event to a branch created over the API.
//
// Errors:
//
//	projection.ErrUnknownBranch - No such API-created branch
//	branch.ErrInvalidEvent - Validation failure
func (s *Service) AppendEvent(name string, ev branch.Event) error {
	b, err := s.apiBranch(name)
	if err != nil {
		return err
	}
	return b.AppendEvent(ev)
}

// AddVector adds a vector record to a branch created over the API.
func (s *Service) AddVector(name string, rec branch.VectorRecord) error {
	b, err := s.apiBranch(name)
	if err != nil {
		return err
	}
	return b.AddVector(rec)
}

func (s *Service) apiBranch(name string) (*branch.MemoryBranch, error) {
	s.branchMu.RLock()
	defer s.branchMu.RUnlock()
	b, ok := s.branches[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", projection.ErrUnknownBranch, name)
	}
	return b, nil
}

// CreateEpoch captures every registered branch into a new durable epoch.
//
// Description:
//
//	Delegates to the projection service for the all-or-nothing capture,
//	then archives the epoch when an archive directory is configured and
//	broadcasts it to connected watchers. Archival is best effort; a
//	failed write is logged, not returned, because the epoch is already
//	recorded.
func (s *Service) CreateEpoch(ctx context.Context, metadata map[string]string) (*projection.EpochSnapshot, error) {
	epoch, err := s.epochs.CreateEpoch(ctx, metadata)
	if err != nil {
		return nil, err
	}
	s.archiveEpoch(epoch)
	s.notifyWatchers(epoch)
	return epoch, nil
}

// ImportEpoch records an epoch captured elsewhere and broadcasts it to
// connected watchers. Imported epochs are not re-archived; they already
// exist as documents wherever they came from.
func (s *Service) ImportEpoch(ctx context.Context, epoch *projection.EpochSnapshot) error {
	if err := s.epochs.ImportEpoch(ctx, epoch); err != nil {
		return err
	}
	s.notifyWatchers(epoch)
	return nil
}

// GetEpoch returns the epoch with the given number.
func (s *Service) GetEpoch(number uint64) (*projection.EpochSnapshot, error) {
	return s.epochs.GetEpoch(number)
}

// GetLatestEpoch returns the epoch with the highest number.
func (s *Service) GetLatestEpoch() (*projection.EpochSnapshot, error) {
	return s.epochs.GetLatestEpoch()
}

// Epochs returns all recorded epochs in ascending number order.
func (s *Service) Epochs() []*projection.EpochSnapshot {
	return s.epochs.Epochs()
}

// Metrics summarizes the recorded epoch history.
func (s *Service) Metrics() projection.Metrics {
	return s.epochs.Metrics()
}

// ExportEpochDocument returns the encoded epoch document for the given
// epoch number.
func (s *Service) ExportEpochDocument(number uint64) ([]byte, error) {
	epoch, err := s.epochs.GetEpoch(number)
	if err != nil {
		return nil, err
	}
	return projection.EncodeEpoch(epoch)
}

// EvaluateRetention evaluates a retention policy against the recorded
// epoch history and returns the partition. Evaluation is pure; nothing
// is deleted.
func (s *Service) EvaluateRetention(policy retention.Policy, dryRun bool) (retention.Plan, error) {
	records, err := retention.FromEpochs(s.epochs.Epochs())
	if err != nil {
		return retention.Plan{}, err
	}
	return retention.Evaluate(policy, records, dryRun)
}

// Watch subscribes to epoch broadcasts.
//
// Description:
//
//	Every successfully created or imported epoch is delivered to the
//	returned channel. A watcher that falls behind its buffer misses
//	epochs rather than blocking writers. The cancel func unsubscribes
//	and closes the channel; it is safe to call more than once.
func (s *Service) Watch() (<-chan *projection.EpochSnapshot, func()) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()

	id := s.watcherID
	s.watcherID++
	ch := make(chan *projection.EpochSnapshot, 8)
	s.watchers[id] = ch

	cancel := func() {
		s.watchMu.Lock()
		defer s.watchMu.Unlock()
		if _, ok := s.watchers[id]; ok {
			delete(s.watchers, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (s *Service) notifyWatchers(epoch *projection.EpochSnapshot) {
	s.watchMu.Lock()
	defer s.watchMu.Unlock()
	for _, ch := range s.watchers {
		select {
		case ch <- epoch:
		default: // Watcher buffer full; it misses this epoch.
		}
	}
}

func (s *Service) archiveEpoch(epoch *projection.EpochSnapshot) {
	if s.exporter == nil {
		return
	}
	if _, err := s.exporter.ExportEpoch(epoch); err != nil {
		s.logger.Warn("Epoch archival failed",
			"epoch_number", epoch.EpochNumber,
			"error", err)
	}
}

// Close disconnects all watchers and releases the epoch store, if any.
// Call once after the last write.
func (s *Service) Close() error {
	s.watchMu.Lock()
	for id, ch := range s.watchers {
		delete(s.watchers, id)
		close(ch)
	}
	s.watchMu.Unlock()

	return s.epochs.Close()
}
