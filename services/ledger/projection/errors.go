// Copyright (C) 2025 Noetic Systems (engineering@noetic.systems)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution requirements.

// Package projection derives read-side views from the transition graph:
// point-in-time statistics snapshots and durable, numbered epochs that
// capture every registered branch at once.
//
// # Ownership Model
//
// The Service owns the epoch history and the branch registry. Epochs
// are immutable once created; callers must treat pointers returned by
// Get and List operations as read-only.
//
// # Thread Safety
//
// All exported types are safe for concurrent use unless their docs say
// otherwise.
//
// # Lifecycle
//
// Construct a Projector or Service, use it, and Close the Service if it
// was given a store. Sentinel errors below support errors.Is checks at
// every call site.
package projection

import "errors"

var (
	// ErrNilSource is returned when a constructor receives a nil
	// statistics or provenance source.
	ErrNilSource = errors.New("nil source")

	// ErrNoEpochs is returned by GetLatestEpoch before any epoch exists.
	ErrNoEpochs = errors.New("no epochs recorded")

	// ErrEpochNotFound is returned when no epoch has the requested
	// number.
	ErrEpochNotFound = errors.New("epoch not found")

	// ErrDuplicateEpoch is returned when an import collides with an
	// existing epoch number or id.
	ErrDuplicateEpoch = errors.New("duplicate epoch")

	// ErrInvalidEpoch is returned for epochs that fail structural
	// validation.
	ErrInvalidEpoch = errors.New("invalid epoch")

	// ErrBranchSnapshot is returned when any branch fails to snapshot
	// during epoch creation. The whole epoch is abandoned.
	ErrBranchSnapshot = errors.New("branch snapshot failed")

	// ErrSchemaVersion is returned when a document's schema version is
	// incompatible with this build.
	ErrSchemaVersion = errors.New("unsupported schema version")

	// ErrDuplicateBranch is returned when a branch name is registered
	// twice.
	ErrDuplicateBranch = errors.New("duplicate branch")

	// ErrUnknownBranch is returned for operations on unregistered
	// branch names.
	ErrUnknownBranch = errors.New("unknown branch")
)
