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
	"fmt"

	"github.com/AleutianAI/AleutianUML/pkg/imaging"
)

// ImageProcessor is satisfied by *client.Client.
type ImageProcessor interface {
	ProcessImage(ctx context.Context, model string, img imaging.Image) (string, error)
}

// Extractor converts an image to PlantUML through the server.
type Extractor struct {
	Processor ImageProcessor
}

// Extract returns the model's raw text. Errors are not retried.
func (e *Extractor) Extract(ctx context.Context, model string, img imaging.Image) (string, error) {
	text, err := e.Processor.ProcessImage(ctx, model, img)
	if err != nil {
		return "", fmt.Errorf("extract with %s: %w", model, err)
	}
	return text, nil
}
