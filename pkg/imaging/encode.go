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
	"encoding/base64"
	"errors"
	"fmt"
)

// CompressionError reports an image that could not be decoded or re-encoded.
type CompressionError struct {
	Name string
	Err  error
}

func (e *CompressionError) Error() string {
	return fmt.Sprintf("compress image %q: %v", e.Name, e.Err)
}

func (e *CompressionError) Unwrap() error { return e.Err }

// EncodingError reports an image that could not be read or encoded for transport.
type EncodingError struct {
	Name string
	Err  error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode image %q: %v", e.Name, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// ToBase64 returns the standard base64 encoding of the image bytes.
func ToBase64(img Image) (string, error) {
	if len(img.Data) == 0 {
		return "", &EncodingError{Name: img.Name, Err: errors.New("no image data")}
	}
	return base64.StdEncoding.EncodeToString(img.Data), nil
}

// FromBase64 decodes a transport payload back into an Image. The content
// must sniff as an image; a non-empty mimeType then overrides the sniffed one.
func FromBase64(name, payload, mimeType string) (Image, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, &EncodingError{Name: name, Err: err}
	}
	img, err := FromBytes(name, data)
	if err != nil {
		return Image{}, err
	}
	if mimeType != "" {
		img.MIMEType = mimeType
	}
	return img, nil
}

// DataURL returns a data: URL for APIs that accept images as URLs.
func DataURL(img Image) (string, error) {
	b64, err := ToBase64(img)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("data:%s;base64,%s", img.MIMEType, b64), nil
}
