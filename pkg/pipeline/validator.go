// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/AleutianAI/AleutianUML/pkg/client"
	"github.com/AleutianAI/AleutianUML/pkg/imaging"
)

// retryFloorBytes is the size below which a 413 is not worth a second
// compression pass.
const retryFloorBytes = 500 * 1024

// Classifier is satisfied by *client.Client.
type Classifier interface {
	ValidateDiagram(ctx context.Context, model string, img imaging.Image) (bool, error)
}

// Validator asks the server whether an image is a class diagram.
//
// # Description
//
// Validate is lenient: it returns false only when the server positively
// answers "no". Every failure (compression, transport, a 413 the retry
// cannot fix, an error reported in the response) lets the image through.
//
// # Thread Safety
//
// Safe for concurrent use.
type Validator struct {
	Classifier Classifier

	// Model is sent with every request. Default: FallbackModel.ID
	Model string

	// ThresholdMB is the size above which images are compressed first.
	// Default: imaging.DefaultThresholdMB
	ThresholdMB float64

	Logger *slog.Logger
}

// NewValidator returns a Validator with default settings.
func NewValidator(c Classifier, logger *slog.Logger) *Validator {
	return &Validator{Classifier: c, Logger: logger}
}

func (v *Validator) logger() *slog.Logger {
	if v.Logger == nil {
		return slog.Default()
	}
	return v.Logger
}

// Validate reports whether img should proceed to extraction.
func (v *Validator) Validate(ctx context.Context, img imaging.Image) bool {
	model := v.Model
	if model == "" {
		model = FallbackModel.ID
	}
	threshold := v.ThresholdMB
	if threshold <= 0 {
		threshold = imaging.DefaultThresholdMB
	}
	log := v.logger().With("model", model, "file", img.Name)

	sent := img
	if imaging.NeedsCompression(img, threshold) {
		compressed, err := imaging.Compress(img, imaging.DefaultCompression)
		if err != nil {
			log.Warn("compression failed, validating original", "error", err)
		} else {
			log.Debug("compressed image for validation", "before", img.Size(), "after", compressed.Size())
			sent = compressed
		}
	}

	ok, err := v.Classifier.ValidateDiagram(ctx, model, sent)
	if err == nil {
		return ok
	}
	if !errors.Is(err, client.ErrPayloadTooLarge) {
		log.Warn("validation failed, allowing image", "error", err)
		return true
	}
	if sent.Size() <= retryFloorBytes {
		log.Warn("payload rejected as too large, skipping validation", "size", sent.Size())
		return true
	}

	smaller, err := imaging.Compress(img, imaging.AggressiveCompression)
	if err != nil {
		log.Warn("aggressive compression failed, skipping validation", "error", err)
		return true
	}
	ok, err = v.Classifier.ValidateDiagram(ctx, model, smaller)
	if err != nil {
		log.Warn("retry after 413 failed, skipping validation", "error", err)
		return true
	}
	return ok
}
