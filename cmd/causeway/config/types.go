// Copyright (C) 2025 Noetic Systems (engineering@noetic.systems)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding attribution requirements.

package config

import "time"

type CausewayConfig struct {
	// Server: how to reach the ledger API
	Server ServerConfig `yaml:"server"`

	// Archive: local export directory and offsite GCS settings
	Archive ArchiveConfig `yaml:"archive"`
}

type ServerConfig struct {
	URL                   string `yaml:"url"`                     // e.g. http://localhost:8090
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"` // e.g. 30
}

type ArchiveConfig struct {
	// Dir is where `causeway epoch export` lands epoch documents.
	Dir string `yaml:"dir"`

	// GCSBucket, when set, enables `causeway archive upload`.
	GCSBucket string `yaml:"gcs_bucket,omitempty"`

	// GCSCredentialsFile is a service-account JSON key path. Empty
	// means application default credentials.
	GCSCredentialsFile string `yaml:"gcs_credentials_file,omitempty"`

	// GCSObjectPrefix is prepended to uploaded object names.
	GCSObjectPrefix string `yaml:"gcs_object_prefix,omitempty"`
}

// RequestTimeout returns the configured request timeout as a Duration,
// falling back to 30s for zero or negative values.
func (c ServerConfig) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func DefaultConfig() CausewayConfig {
	return CausewayConfig{
		Server: ServerConfig{
			URL:                   "http://localhost:8090",
			RequestTimeoutSeconds: 30,
		},
		Archive: ArchiveConfig{
			Dir: "~/.causeway/archive",
		},
	}
}
