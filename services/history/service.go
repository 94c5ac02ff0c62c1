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
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianUML/pkg/validation"
)

// Service coordinates the document and blob stores.
//
// # Description
//
// Save uploads the three blobs concurrently and only then writes the
// document, so a document never points at a blob that failed to upload.
// List and Delete never let blob problems hide or block document state.
//
// # Thread Safety
//
// Safe for concurrent use if the stores are.
type Service struct {
	docs   DocumentStore
	blobs  BlobStore
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

func NewService(docs DocumentStore, blobs BlobStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		docs:   docs,
		blobs:  blobs,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// Blobs exposes the blob store so the server can serve blob content.
func (s *Service) Blobs() BlobStore {
	return s.blobs
}

// Save persists one generation for req.UserID.
//
// # Outputs
//
//   - *Record: The stored record with blob URLs filled in.
//   - error: ErrAnonymous without a user; wrapped store errors otherwise.
func (s *Service) Save(ctx context.Context, req SaveRequest) (*Record, error) {
	if req.UserID == "" {
		s.logger.Info("Skipping history save for anonymous user", "file", req.FileName)
		return nil, ErrAnonymous
	}
	fileName, err := validation.SanitizeFileName(req.FileName)
	if err != nil {
		return nil, fmt.Errorf("history save: %w", err)
	}
	if strings.TrimSpace(req.PlantUML) == "" {
		return nil, errors.New("history save: PlantUML text is required")
	}

	rec := Record{
		ID:            s.newID(),
		UserID:        req.UserID,
		FileName:      fileName,
		CreatedAt:     s.now().UTC(),
		PlantUMLText:  req.PlantUML,
		GeneratedCode: req.GeneratedCode,
		Language:      req.Language,
	}

	type upload struct {
		bucket, key, contentType string
		data                     []byte
		url                      *string
	}
	uploads := []upload{
		{BucketCode, rec.ID + "/" + fileName + "_code.txt", "text/plain; charset=utf-8", []byte(req.GeneratedCode), &rec.CodeURL},
		{BucketUMLCode, rec.ID + "/" + fileName + "_uml.txt", "text/plain; charset=utf-8", []byte(req.PlantUML), &rec.UMLCodeURL},
	}
	if len(req.Image.Data) > 0 {
		uploads = append(uploads, upload{BucketImages, rec.ID + "/" + fileName, req.Image.MIMEType, req.Image.Data, &rec.ImageURL})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, u := range uploads {
		g.Go(func() error {
			url, err := s.blobs.Put(gctx, u.bucket, u.key, u.contentType, u.data)
			if err != nil {
				return fmt.Errorf("upload %s/%s: %w", u.bucket, u.key, err)
			}
			*u.url = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Error("History blob upload failed", "user", req.UserID, "file", fileName, "error", err)
		s.releaseBlobs(ctx, rec)
		return nil, err
	}

	if err := s.docs.Create(ctx, rec); err != nil {
		s.logger.Error("History document write failed", "user", req.UserID, "id", rec.ID, "error", err)
		s.releaseBlobs(ctx, rec)
		return nil, fmt.Errorf("create history record: %w", err)
	}
	s.logger.Info("Saved history record", "user", req.UserID, "id", rec.ID, "file", fileName, "language", rec.Language)
	return &rec, nil
}

// List returns the user's records newest first. Backend failures are
// logged and produce an empty list.
func (s *Service) List(ctx context.Context, userID string) []Record {
	if userID == "" {
		return []Record{}
	}
	recs, err := s.docs.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to list history", "user", userID, "error", err)
		return []Record{}
	}
	if recs == nil {
		recs = []Record{}
	}
	return recs
}

// Delete removes a record owned by userID, then releases its blobs on a
// best-effort basis.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if userID == "" {
		return ErrAnonymous
	}
	rec, err := s.docs.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load history record %s: %w", id, err)
	}
	if rec.UserID != userID {
		s.logger.Warn("Refusing to delete history record of another user", "user", userID, "id", id)
		return ErrNotFound
	}
	if err := s.docs.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete history record %s: %w", id, err)
	}
	s.releaseBlobs(ctx, rec)
	s.logger.Info("Deleted history record", "user", userID, "id", id)
	return nil
}

func (s *Service) releaseBlobs(ctx context.Context, rec Record) {
	for _, u := range []string{rec.ImageURL, rec.CodeURL, rec.UMLCodeURL} {
		if u == "" {
			continue
		}
		bucket, key, err := s.blobs.KeyFromURL(u)
		if err != nil {
			s.logger.Warn("Cannot resolve blob key from URL", "id", rec.ID, "url", u, "error", err)
			continue
		}
		if err := s.blobs.Delete(ctx, bucket, key); err != nil {
			s.logger.Warn("Failed to delete blob", "id", rec.ID, "bucket", bucket, "key", key, "error", err)
		}
	}
}

// Close releases both stores.
func (s *Service) Close() error {
	return errors.Join(s.docs.Close(), s.blobs.Close())
}
