// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package imaging handles ingestion of user-supplied diagram images.
//
// # Description
//
// An uploaded image travels through three steps before it reaches a
// multimodal model:
//
//  1. Sniffing: FromBytes/FromFile detect the MIME type from content.
//  2. Compression: NeedsCompression/Compress shrink large images to a
//     bounded JPEG so the request fits the transport limits.
//  3. Encoding: ToBase64/DataURL produce the transport representation.
//
// # Thread Safety
//
// All functions are pure with respect to their inputs and safe for
// concurrent use. Image values are treated as immutable; Compress returns
// a new Image rather than mutating the input.
package imaging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// ErrNotImage is returned when uploaded content is not an image.
var ErrNotImage = errors.New("content is not an image")

// Image is an uploaded diagram image.
type Image struct {
	// Name is the original file name, used for history records.
	Name string

	// MIMEType is the sniffed content type, e.g. "image/png".
	MIMEType string

	// Data holds the raw encoded image bytes.
	Data []byte
}

// Size returns the image payload size in bytes.
func (img Image) Size() int64 {
	return int64(len(img.Data))
}

// SizeMB returns the payload size in megabytes, for log lines.
func (img Image) SizeMB() float64 {
	return float64(len(img.Data)) / (1024 * 1024)
}

// FromBytes builds an Image from raw bytes, sniffing the MIME type.
//
// # Outputs
//
//   - Image: The image with MIMEType populated from content.
//   - error: *EncodingError for empty input, ErrNotImage (wrapped) when the
//     content does not sniff as image/*.
func FromBytes(name string, data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, &EncodingError{Name: name, Err: errors.New("empty image data")}
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return Image{}, fmt.Errorf("%s (%s): %w", name, mt.String(), ErrNotImage)
	}
	return Image{Name: name, MIMEType: mt.String(), Data: data}, nil
}

// FromFile reads and sniffs an image from disk.
func FromFile(path string) (Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, &EncodingError{Name: path, Err: err}
	}
	return FromBytes(filepath.Base(path), data)
}
