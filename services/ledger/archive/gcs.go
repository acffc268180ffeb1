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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// Uploader ships archive files to a Google Cloud Storage bucket.
//
// # Description
//
// Offsite copies of the epoch history. Objects keep the archive file
// name under a configurable prefix, so a bucket can hold the archives of
// several ledgers side by side and a download back into a spool
// directory re-imports cleanly.
type Uploader struct {
	client *storage.Client
	bucket string
	prefix string
	logger *slog.Logger
}

// UploaderOption configures an Uploader.
type UploaderOption func(*uploaderConfig)

type uploaderConfig struct {
	credentialsFile string
	prefix          string
	logger          *slog.Logger
}

// WithCredentialsFile authenticates with a service account key file
// instead of ambient application-default credentials.
func WithCredentialsFile(path string) UploaderOption {
	return func(c *uploaderConfig) {
		c.credentialsFile = path
	}
}

// WithObjectPrefix places uploaded objects under the given prefix.
func WithObjectPrefix(prefix string) UploaderOption {
	return func(c *uploaderConfig) {
		c.prefix = strings.Trim(prefix, "/")
	}
}

// WithUploadLogger enables upload logging.
func WithUploadLogger(logger *slog.Logger) UploaderOption {
	return func(c *uploaderConfig) {
		c.logger = logger
	}
}

// NewUploader creates an uploader targeting the given bucket.
//
// # Inputs
//
//   - ctx: Context for client creation.
//   - bucket: Target bucket name. Must not be empty.
//   - opts: Optional credentials, prefix and logger.
//
// # Outputs
//
//   - *Uploader: Ready-to-use uploader. Call Close when done.
//   - error: Non-nil if the bucket name is empty, the key file is
//     missing, or the storage client cannot be created.
func NewUploader(ctx context.Context, bucket string, opts ...UploaderOption) (*Uploader, error) {
	if bucket == "" {
		return nil, errors.New("bucket must not be empty")
	}

	var cfg uploaderConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var clientOpts []option.ClientOption
	if cfg.credentialsFile != "" {
		if _, err := os.Stat(cfg.credentialsFile); err != nil {
			return nil, fmt.Errorf("service account key %s: %w", cfg.credentialsFile, err)
		}
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.credentialsFile))
	}

	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &Uploader{
		client: client,
		bucket: bucket,
		prefix: cfg.prefix,
		logger: cfg.logger,
	}, nil
}

// objectName maps a local archive file to its object path.
func (u *Uploader) objectName(localPath string) string {
	name := filepath.Base(localPath)
	if u.prefix == "" {
		return name
	}
	return u.prefix + "/" + name
}

// UploadFile uploads one archive file.
//
// # Inputs
//
//   - ctx: Context for cancellation.
//   - localPath: File to upload.
//
// # Outputs
//
//   - error: Non-nil if the file cannot be read or the upload fails.
func (u *Uploader) UploadFile(ctx context.Context, localPath string) error {
	localFile, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer localFile.Close()

	object := u.objectName(localPath)
	writer := u.client.Bucket(u.bucket).Object(object).NewWriter(ctx)
	writer.ContentType = "application/json"
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := io.Copy(writer, localFile); err != nil {
		return fmt.Errorf("upload %s to %s: %w", localPath, object, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finish upload of %s: %w", object, err)
	}

	if u.logger != nil {
		u.logger.Info("archive uploaded",
			slog.String("file", filepath.Base(localPath)),
			slog.String("object", fmt.Sprintf("gs://%s/%s", u.bucket, object)))
	}
	return nil
}

// UploadDir uploads every .json file in a directory.
//
// # Outputs
//
//   - int: Number of files uploaded.
//   - error: Non-nil on the first failed upload.
func (u *Uploader) UploadDir(ctx context.Context, localDir string) (int, error) {
	entries, err := os.ReadDir(localDir)
	if err != nil {
		return 0, fmt.Errorf("read archive directory: %w", err)
	}

	uploaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		if err := u.UploadFile(ctx, filepath.Join(localDir, entry.Name())); err != nil {
			return uploaded, err
		}
		uploaded++
	}
	return uploaded, nil
}

// Close releases the storage client.
func (u *Uploader) Close() error {
	return u.client.Close()
}
