// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package imaging

import (
	"bytes"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"math"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// DefaultThresholdMB is the size above which uploads are compressed.
const DefaultThresholdMB = 1.0

// Options bounds the output of Compress.
type Options struct {
	// MaxWidth is the maximum output width in pixels. Default: 1200
	MaxWidth int

	// MaxHeight is the maximum output height in pixels. Default: 1200
	MaxHeight int

	// Quality is the JPEG quality in the range (0, 1]. Default: 0.7
	Quality float64
}

var (
	// DefaultCompression is used before the first validation attempt.
	DefaultCompression = Options{MaxWidth: 1000, MaxHeight: 1000, Quality: 0.7}

	// AggressiveCompression is used for the single retry after a 413.
	AggressiveCompression = Options{MaxWidth: 800, MaxHeight: 800, Quality: 0.5}
)

func (o Options) withDefaults() Options {
	if o.MaxWidth <= 0 {
		o.MaxWidth = 1200
	}
	if o.MaxHeight <= 0 {
		o.MaxHeight = 1200
	}
	if o.Quality <= 0 || o.Quality > 1 {
		o.Quality = 0.7
	}
	return o
}

// NeedsCompression reports whether img is larger than thresholdMB.
// A non-positive threshold means DefaultThresholdMB.
func NeedsCompression(img Image, thresholdMB float64) bool {
	if thresholdMB <= 0 {
		thresholdMB = DefaultThresholdMB
	}
	return float64(img.Size()) > thresholdMB*1024*1024
}

// Compress re-encodes img as a JPEG that fits within opts.
//
// # Description
//
// Decodes the source, scales it so both dimensions fit the bounds while
// keeping the aspect ratio (images are never upscaled), flattens any alpha
// channel onto white, and encodes the result as JPEG at opts.Quality.
//
// # Outputs
//
//   - Image: New image with MIMEType "image/jpeg" and the original Name.
//   - error: *CompressionError if the source cannot be decoded or encoded.
//     Callers are expected to fall back to the original image.
func Compress(img Image, opts Options) (Image, error) {
	opts = opts.withDefaults()

	src, _, err := image.Decode(bytes.NewReader(img.Data))
	if err != nil {
		return Image{}, &CompressionError{Name: img.Name, Err: err}
	}

	bounds := src.Bounds()
	width, height := FitWithin(bounds.Dx(), bounds.Dy(), opts.MaxWidth, opts.MaxHeight)

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality(opts.Quality)}); err != nil {
		return Image{}, &CompressionError{Name: img.Name, Err: err}
	}

	return Image{Name: img.Name, MIMEType: "image/jpeg", Data: buf.Bytes()}, nil
}

// FitWithin returns the dimensions of a width×height box scaled down to fit
// maxWidth×maxHeight. Width is bounded first, then height.
func FitWithin(width, height, maxWidth, maxHeight int) (int, int) {
	w, h := float64(width), float64(height)
	if w > float64(maxWidth) {
		h = math.Round(h * float64(maxWidth) / w)
		w = float64(maxWidth)
	}
	if h > float64(maxHeight) {
		w = math.Round(w * float64(maxHeight) / h)
		h = float64(maxHeight)
	}
	return max(int(w), 1), max(int(h), 1)
}

func jpegQuality(q float64) int {
	v := int(math.Round(q * 100))
	return min(max(v, 1), 100)
}
