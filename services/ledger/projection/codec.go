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
	"encoding/json"
	"fmt"

	"golang.org/x/mod/semver"
)

// SchemaVersion is the epoch document schema written by this build.
// Readers accept any document sharing the same major version.
const SchemaVersion = "v1.0.0"

// EpochDocument is the on-disk and over-the-wire envelope for one epoch.
type EpochDocument struct {
	// SchemaVersion gates compatibility across builds.
	SchemaVersion string `json:"schema_version"`

	// Epoch is the payload.
	Epoch *EpochSnapshot `json:"epoch"`
}

// EncodeEpoch wraps an epoch in a versioned document and marshals it as
// indented JSON, the format archive files use.
func EncodeEpoch(epoch *EpochSnapshot) ([]byte, error) {
	if err := validateEpoch(epoch); err != nil {
		return nil, err
	}
	doc := EpochDocument{
		SchemaVersion: SchemaVersion,
		Epoch:         epoch,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode epoch %d: %w", epoch.EpochNumber, err)
	}
	return data, nil
}

// DecodeEpoch parses a versioned epoch document.
//
// Description:
//
//	Documents from a different major schema version are refused; minor
//	and patch differences are accepted, matching semver compatibility.
//	The decoded epoch is structurally validated before it is returned.
//
// Outputs:
//
//	*EpochSnapshot - The decoded epoch.
//	error - Wraps ErrSchemaVersion for version mismatches and
//	ErrInvalidEpoch for structural problems.
func DecodeEpoch(data []byte) (*EpochSnapshot, error) {
	var doc EpochDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEpoch, err)
	}
	if !semver.IsValid(doc.SchemaVersion) {
		return nil, fmt.Errorf("%w: %q is not a semantic version", ErrSchemaVersion, doc.SchemaVersion)
	}
	if semver.Major(doc.SchemaVersion) != semver.Major(SchemaVersion) {
		return nil, fmt.Errorf("%w: document is %s, this build reads %s",
			ErrSchemaVersion, doc.SchemaVersion, SchemaVersion)
	}
	if err := validateEpoch(doc.Epoch); err != nil {
		return nil, err
	}
	return doc.Epoch, nil
}
