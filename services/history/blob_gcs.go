// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package history

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSPublicHost serves publicly readable objects.
const GCSPublicHost = "storage.googleapis.com"

// GCSBlobStore keeps blobs in one Google Cloud Storage bucket, using the
// logical bucket name as an object prefix.
type GCSBlobStore struct {
	storageClient *storage.Client
	BucketName    string
}

var _ BlobStore = (*GCSBlobStore)(nil)

// NewGCSBlobStore creates a store for bucketName. saKeyPath may be empty to
// use application default credentials.
func NewGCSBlobStore(ctx context.Context, bucketName, saKeyPath string, extra ...option.ClientOption) (*GCSBlobStore, error) {
	if bucketName == "" {
		return nil, errors.New("GCS bucket name is required")
	}
	opts := append([]option.ClientOption{}, extra...)
	if saKeyPath != "" {
		info, err := os.Stat(saKeyPath)
		if err != nil {
			return nil, fmt.Errorf("service account key not found at path: %s: %w", saKeyPath, err)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("service account key path %s is a directory", saKeyPath)
		}
		opts = append(opts, option.WithCredentialsFile(saKeyPath))
	}

	storageClient, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return &GCSBlobStore{storageClient: storageClient, BucketName: bucketName}, nil
}

func objectName(bucket, key string) string {
	return bucket + "/" + key
}

// URL returns the public URL of an object.
func (c *GCSBlobStore) URL(bucket, key string) string {
	u := url.URL{Scheme: "https", Host: GCSPublicHost, Path: "/" + c.BucketName + "/" + objectName(bucket, key)}
	return u.String()
}

func (c *GCSBlobStore) Put(ctx context.Context, bucket, key, contentType string, data []byte) (string, error) {
	if err := validBlobName(bucket, key); err != nil {
		return "", err
	}
	name := objectName(bucket, key)
	writer := c.storageClient.Bucket(c.BucketName).Object(name).NewWriter(ctx)
	writer.ContentType = contentType
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("failed to write GCS object %s: %w", name, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer for %s: %w", name, err)
	}
	return c.URL(bucket, key), nil
}

func (c *GCSBlobStore) Delete(ctx context.Context, bucket, key string) error {
	name := objectName(bucket, key)
	err := c.storageClient.Bucket(c.BucketName).Object(name).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete GCS object %s: %w", name, err)
	}
	return nil
}

func (c *GCSBlobStore) KeyFromURL(rawURL string) (string, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrMalformedBlobURL, err)
	}
	if u.Host != GCSPublicHost {
		return "", "", fmt.Errorf("%w: unexpected host %q", ErrMalformedBlobURL, u.Host)
	}
	rest, ok := strings.CutPrefix(u.Path, "/"+c.BucketName+"/")
	if !ok {
		return "", "", fmt.Errorf("%w: not in bucket %s", ErrMalformedBlobURL, c.BucketName)
	}
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || validBlobName(bucket, key) != nil {
		return "", "", fmt.Errorf("%w: %s", ErrMalformedBlobURL, rawURL)
	}
	return bucket, key, nil
}

func (c *GCSBlobStore) Close() error {
	return c.storageClient.Close()
}
