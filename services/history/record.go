// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package history persists generated diagrams per authenticated user: one
// document per generation plus image, code and PlantUML blobs.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/AleutianAI/AleutianUML/pkg/imaging"
)

var (
	// ErrAnonymous is returned when a save or delete has no user. Callers
	// treat it as a silent skip.
	ErrAnonymous = errors.New("history requires an authenticated user")

	// ErrNotFound is returned for unknown records and records owned by
	// another user.
	ErrNotFound = errors.New("history record not found")

	// ErrDuplicate is returned when a record ID is already taken.
	ErrDuplicate = errors.New("history record already exists")
)

// Blob buckets.
const (
	BucketImages  = "images"
	BucketCode    = "code"
	BucketUMLCode = "umlcode"
)

// Record is one persisted generation.
type Record struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	FileName      string    `json:"fileName"`
	CreatedAt     time.Time `json:"createdAt"`
	ImageURL      string    `json:"imageUrl,omitempty"`
	CodeURL       string    `json:"codeUrl,omitempty"`
	UMLCodeURL    string    `json:"umlCodeUrl,omitempty"`
	PlantUMLText  string    `json:"plantUML"`
	GeneratedCode string    `json:"generatedCode"`
	Language      string    `json:"language"`
}

// SaveRequest carries everything needed to persist one generation.
type SaveRequest struct {
	UserID        string
	Image         imaging.Image
	GeneratedCode string
	Language      string
	PlantUML      string
	FileName      string
}

// DocumentStore persists Records.
type DocumentStore interface {
	Create(ctx context.Context, rec Record) error
	// Get returns ErrNotFound for unknown IDs.
	Get(ctx context.Context, id string) (Record, error)
	// ListByUser returns the user's records newest first.
	ListByUser(ctx context.Context, userID string) ([]Record, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// BlobStore persists opaque blobs and hands out URLs for them.
type BlobStore interface {
	Put(ctx context.Context, bucket, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, bucket, key string) error
	// KeyFromURL resolves a URL returned by Put back to its bucket and key.
	KeyFromURL(rawURL string) (bucket, key string, err error)
	Close() error
}

// BlobReader is implemented by blob stores that serve their own content.
type BlobReader interface {
	Get(ctx context.Context, bucket, key string) (data []byte, contentType string, err error)
}
