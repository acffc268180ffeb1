// Copyright (C) 2025 Noetic Systems (engineering@noetic.systems)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution requirements.

package projection

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/NoeticSystems/Causeway/services/ledger/branch"
	"github.com/NoeticSystems/Causeway/services/ledger/telemetry"
)

// Option configures a Service.
type Option func(*Service)

// WithStore makes epochs durable. Without a store the history is
// memory-only.
func WithStore(store EpochStore) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithEpochs seeds the in-memory history, normally with the result of
// EpochStore.LoadEpochs at startup.
func WithEpochs(epochs []*EpochSnapshot) Option {
	return func(s *Service) {
		for _, epoch := range epochs {
			if epoch == nil {
				continue
			}
			s.epochs = append(s.epochs, epoch)
		}
		sort.Slice(s.epochs, func(i, j int) bool {
			return s.epochs[i].EpochNumber < s.epochs[j].EpochNumber
		})
		for _, epoch := range s.epochs {
			s.ids[epoch.EpochID] = true
			s.addTotalsLocked(epoch)
			if epoch.EpochNumber > s.lastAllocated {
				s.lastAllocated = epoch.EpochNumber
			}
		}
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator replaces the epoch id generator, mainly for tests.
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// Service coordinates epoch creation over a set of registered branches
// and keeps the ordered epoch history.
//
// Description:
//
//	Epoch creation runs in two phases. Phase one captures every branch
//	in parallel without holding the writer lock, so reads and branch
//	writes continue while snapshots are taken; any branch failure or
//	cancellation abandons the whole epoch. Phase two takes the writer
//	lock, allocates the next epoch number, persists the epoch when a
//	store is configured, and appends it to the history.
//
//	Epoch numbers are one-based and strictly increasing. The allocator
//	floors at both the last number it handed out and the highest number
//	present in the history, so numbers burned by failed persists and
//	numbers brought in by imports are never reissued.
//
// Thread Safety: Safe for concurrent use.
type Service struct {
	store EpochStore
	clock func() time.Time
	newID func() string

	mu            sync.RWMutex
	branches      map[string]branch.Branch
	epochs        []*EpochSnapshot
	ids           map[string]bool
	lastAllocated uint64
	totalBranches int
	totalEvents   int
	totalVectors  int
	saveFailures  uint64
}

// NewService creates an epoch service.
func NewService(opts ...Option) *Service {
	s := &Service{
		clock:    time.Now,
		newID:    uuid.NewString,
		branches: make(map[string]branch.Branch),
		ids:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterBranch adds a branch to the set captured by future epochs.
func (s *Service) RegisterBranch(b branch.Branch) error {
	if b == nil {
		return fmt.Errorf("%w: nil branch", ErrNilSource)
	}
	name := b.Name()
	if name == "" {
		return fmt.Errorf("%w: empty name", branch.ErrInvalidBranchName)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.branches[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateBranch, name)
	}
	s.branches[name] = b
	return nil
}

// UnregisterBranch removes a branch from future epochs. Epochs already
// captured keep their copy of it.
func (s *Service) UnregisterBranch(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.branches[name]; !exists {
		return fmt.Errorf("%w: %s", ErrUnknownBranch, name)
	}
	delete(s.branches, name)
	return nil
}

// GetBranch returns a registered branch by name.
func (s *Service) GetBranch(name string) (branch.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.branches[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBranch, name)
	}
	return b, nil
}

// BranchNames returns the registered branch names, sorted.
func (s *Service) BranchNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.branches))
	for name := range s.branches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CreateEpoch captures every registered branch into a new durable epoch.
//
// Description:
//
//	All branches are snapshotted in parallel; the first failure cancels
//	the remaining captures and no epoch is recorded. When persistence
//	fails after the number was allocated, the number stays burned and
//	the next successful epoch skips over it.
//
// Inputs:
//
//	ctx - Cancels in-flight branch captures.
//	metadata - Optional labels copied into the epoch.
//
// Outputs:
//
//	*EpochSnapshot - The recorded epoch. Treat as read-only.
//	error - Wraps ErrBranchSnapshot when any capture fails, or the
//	store's error when persistence fails.
//
// Thread Safety: Safe for concurrent use. Concurrent creates serialize
// in phase two and receive distinct numbers.
func (s *Service) CreateEpoch(ctx context.Context, metadata map[string]string) (*EpochSnapshot, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "projection.CreateEpoch")
	defer span.End()
	start := time.Now()

	// Phase one: capture with only a read lock on the registry.
	s.mu.RLock()
	names := make([]string, 0, len(s.branches))
	for name := range s.branches {
		names = append(names, name)
	}
	sort.Strings(names)
	feeds := make([]branch.Branch, len(names))
	for i, name := range names {
		feeds[i] = s.branches[name]
	}
	s.mu.RUnlock()

	captures := make([]BranchSnapshot, len(feeds))
	g, gctx := errgroup.WithContext(ctx)
	for i, feed := range feeds {
		g.Go(func() error {
			events, vectors, err := feed.Snapshot(gctx)
			if err != nil {
				return fmt.Errorf("%w: %s: %w", ErrBranchSnapshot, feed.Name(), err)
			}
			if events == nil {
				events = []branch.Event{}
			}
			if vectors == nil {
				vectors = []branch.VectorRecord{}
			}
			captures[i] = BranchSnapshot{Name: feed.Name(), Events: events, Vectors: vectors}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		epochFailures.Inc()
		telemetry.RecordError(span, err)
		return nil, err
	}

	// Phase two: allocate, persist, append.
	s.mu.Lock()
	defer s.mu.Unlock()

	number := s.lastAllocated
	if highest := s.highestLocked(); highest > number {
		number = highest
	}
	number++
	s.lastAllocated = number

	epoch := &EpochSnapshot{
		EpochNumber: number,
		EpochID:     s.newID(),
		CreatedAt:   s.clock().UnixMilli(),
		Branches:    captures,
		Metadata:    cloneLabels(metadata),
	}
	if s.store != nil {
		if err := s.store.SaveEpoch(ctx, epoch); err != nil {
			s.saveFailures++
			epochFailures.Inc()
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("persist epoch %d: %w", number, err)
		}
	}
	s.epochs = append(s.epochs, epoch)
	s.ids[epoch.EpochID] = true
	s.addTotalsLocked(epoch)

	epochsCreated.Inc()
	epochCreateDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int64("epoch.number", int64(number)))
	telemetry.SetSpanOK(span)
	return epoch, nil
}

// ImportEpoch adds an externally produced epoch, usually one read back
// from an archive file.
//
// Description:
//
//	The epoch keeps its original number and id. Collisions on either
//	are rejected, so re-importing the same archive is idempotent-safe
//	to attempt. Imported numbers raise the allocation floor, which keeps
//	later created epochs strictly above everything imported.
//
// Outputs:
//
//	error - Wraps ErrInvalidEpoch, ErrDuplicateEpoch, or the store's
//	error when persistence fails.
func (s *Service) ImportEpoch(ctx context.Context, epoch *EpochSnapshot) error {
	if err := validateEpoch(epoch); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ids[epoch.EpochID] {
		return fmt.Errorf("%w: id %s", ErrDuplicateEpoch, epoch.EpochID)
	}
	pos := sort.Search(len(s.epochs), func(i int) bool {
		return s.epochs[i].EpochNumber >= epoch.EpochNumber
	})
	if pos < len(s.epochs) && s.epochs[pos].EpochNumber == epoch.EpochNumber {
		return fmt.Errorf("%w: number %d", ErrDuplicateEpoch, epoch.EpochNumber)
	}

	if s.store != nil {
		if err := s.store.SaveEpoch(ctx, epoch); err != nil {
			s.saveFailures++
			return fmt.Errorf("persist imported epoch %d: %w", epoch.EpochNumber, err)
		}
	}

	s.epochs = append(s.epochs, nil)
	copy(s.epochs[pos+1:], s.epochs[pos:])
	s.epochs[pos] = epoch
	s.ids[epoch.EpochID] = true
	s.addTotalsLocked(epoch)
	if epoch.EpochNumber > s.lastAllocated {
		s.lastAllocated = epoch.EpochNumber
	}
	epochsImported.Inc()
	return nil
}

// GetEpoch returns the epoch with the given number.
func (s *Service) GetEpoch(number uint64) (*EpochSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos := sort.Search(len(s.epochs), func(i int) bool {
		return s.epochs[i].EpochNumber >= number
	})
	if pos == len(s.epochs) || s.epochs[pos].EpochNumber != number {
		return nil, fmt.Errorf("%w: %d", ErrEpochNotFound, number)
	}
	return s.epochs[pos], nil
}

// GetLatestEpoch returns the epoch with the highest number.
func (s *Service) GetLatestEpoch() (*EpochSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.epochs) == 0 {
		return nil, ErrNoEpochs
	}
	return s.epochs[len(s.epochs)-1], nil
}

// Epochs returns the full history, ascending by number. The slice is a
// copy; the epochs are shared and read-only.
func (s *Service) Epochs() []*EpochSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*EpochSnapshot, len(s.epochs))
	copy(out, s.epochs)
	return out
}

// Metrics returns running totals over the held history.
func (s *Service) Metrics() Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := Metrics{
		EpochCount:   len(s.epochs),
		BranchCount:  s.totalBranches,
		TotalEvents:  s.totalEvents,
		TotalVectors: s.totalVectors,
		SaveFailures: s.saveFailures,
	}
	if s.totalBranches > 0 {
		m.AvgEventsPerBranch = float64(s.totalEvents) / float64(s.totalBranches)
	}
	if len(s.epochs) > 0 {
		last := s.epochs[len(s.epochs)-1]
		m.LastEpochNumber = last.EpochNumber
		createdAt := last.CreatedAt
		m.LastCreatedAt = &createdAt
	}
	return m
}

// Close releases the store, if any. Call once after the last write.
func (s *Service) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

// highestLocked returns the highest epoch number in the history.
// Caller holds the lock.
func (s *Service) highestLocked() uint64 {
	if len(s.epochs) == 0 {
		return 0
	}
	return s.epochs[len(s.epochs)-1].EpochNumber
}

// addTotalsLocked folds one epoch into the running totals. Caller holds
// the lock.
func (s *Service) addTotalsLocked(epoch *EpochSnapshot) {
	s.totalBranches += len(epoch.Branches)
	for _, bs := range epoch.Branches {
		s.totalEvents += len(bs.Events)
		s.totalVectors += len(bs.Vectors)
	}
}

// validateEpoch checks the structural invariants shared by import and
// decode.
func validateEpoch(epoch *EpochSnapshot) error {
	if epoch == nil {
		return fmt.Errorf("%w: nil", ErrInvalidEpoch)
	}
	if epoch.EpochNumber == 0 {
		return fmt.Errorf("%w: number must be positive", ErrInvalidEpoch)
	}
	if epoch.EpochID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEpoch)
	}
	seen := make(map[string]bool, len(epoch.Branches))
	for _, bs := range epoch.Branches {
		if bs.Name == "" {
			return fmt.Errorf("%w: unnamed branch snapshot", ErrInvalidEpoch)
		}
		if seen[bs.Name] {
			return fmt.Errorf("%w: branch %s captured twice", ErrInvalidEpoch, bs.Name)
		}
		seen[bs.Name] = true
	}
	return nil
}

func cloneLabels(labels map[string]string) map[string]string {
	if len(labels) == 0 {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}
