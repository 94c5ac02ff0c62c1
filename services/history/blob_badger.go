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
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianUML/pkg/storage/badger"
	"github.com/AleutianAI/AleutianUML/pkg/validation"
)

// BlobRoute is the path prefix under which BadgerBlobStore content is served.
const BlobRoute = "/api/blobs/"

// ErrMalformedBlobURL is returned when a URL was not produced by the store.
var ErrMalformedBlobURL = errors.New("malformed blob URL")

type storedBlob struct {
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"`
}

// BadgerBlobStore keeps blobs in BadgerDB and serves them back through the
// HTTP server at <baseURL>/api/blobs/<bucket>/<key>.
type BadgerBlobStore struct {
	db      *badger.DB
	baseURL string
}

var (
	_ BlobStore  = (*BadgerBlobStore)(nil)
	_ BlobReader = (*BadgerBlobStore)(nil)
)

// NewBadgerBlobStore stores blobs in db. baseURL is the externally visible
// server address, e.g. http://localhost:8080.
func NewBadgerBlobStore(db *badger.DB, baseURL string) *BadgerBlobStore {
	return &BadgerBlobStore{db: db, baseURL: strings.TrimRight(baseURL, "/")}
}

func blobKey(bucket, key string) []byte {
	return []byte("blob/" + bucket + "/" + key)
}

func validBlobName(bucket, key string) error {
	if err := validation.ValidateBucket(bucket); err != nil {
		return err
	}
	return validation.ValidateBlobKey(key)
}

func (s *BadgerBlobStore) Put(ctx context.Context, bucket, key, contentType string, data []byte) (string, error) {
	if err := validBlobName(bucket, key); err != nil {
		return "", err
	}
	err := s.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		return badger.PutJSON(txn, blobKey(bucket, key), storedBlob{ContentType: contentType, Data: data})
	})
	if err != nil {
		return "", fmt.Errorf("store blob %s/%s: %w", bucket, key, err)
	}
	return s.URL(bucket, key), nil
}

// URL returns the public URL of a blob.
func (s *BadgerBlobStore) URL(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.baseURL + BlobRoute + url.PathEscape(bucket) + "/" + strings.Join(segments, "/")
}

func (s *BadgerBlobStore) Get(ctx context.Context, bucket, key string) ([]byte, string, error) {
	var blob storedBlob
	err := s.db.WithReadTxn(ctx, func(txn *badgerdb.Txn) error {
		return badger.GetJSON(txn, blobKey(bucket, key), &blob)
	})
	if errors.Is(err, badger.ErrNotFound) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	return blob.Data, blob.ContentType, nil
}

func (s *BadgerBlobStore) Delete(ctx context.Context, bucket, key string) error {
	return s.db.WithTxn(ctx, func(txn *badgerdb.Txn) error {
		return txn.Delete(blobKey(bucket, key))
	})
}

func (s *BadgerBlobStore) KeyFromURL(rawURL string) (string, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrMalformedBlobURL, err)
	}
	idx := strings.Index(u.Path, BlobRoute)
	if idx < 0 {
		return "", "", fmt.Errorf("%w: %s", ErrMalformedBlobURL, rawURL)
	}
	bucket, key, ok := strings.Cut(u.Path[idx+len(BlobRoute):], "/")
	if !ok || validBlobName(bucket, key) != nil {
		return "", "", fmt.Errorf("%w: %s", ErrMalformedBlobURL, rawURL)
	}
	return bucket, key, nil
}

func (s *BadgerBlobStore) Close() error {
	return s.db.Close()
}
