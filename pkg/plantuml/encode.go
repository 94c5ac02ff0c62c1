// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package plantuml encodes PlantUML markup into the URL form understood by
// PlantUML rendering servers.
//
// # Description
//
// The text encoding is the one documented by PlantUML: UTF-8 bytes are
// compressed with raw DEFLATE and the result is written using a 64 character
// alphabet (0-9, A-Z, a-z, '-', '_') in groups of three bytes.
//
// Nothing in this package performs network I/O. Rendering a diagram is the
// pure construction of a URL; the browser or CLI fetches it.
package plantuml

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
)

const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz-_"

// ErrInvalidEncoding is returned by Decode for text outside the alphabet.
var ErrInvalidEncoding = errors.New("invalid plantuml encoding")

// Encode returns the PlantUML URL encoding of text.
func Encode(text string) string {
	var buf bytes.Buffer
	// BestCompression is a valid level; NewWriter cannot fail here.
	w, _ := flate.NewWriter(&buf, flate.BestCompression)
	_, _ = w.Write([]byte(text))
	_ = w.Close()
	return encode64(buf.Bytes())
}

// Decode reverses Encode.
func Decode(encoded string) (string, error) {
	data, err := decode64(strings.TrimSpace(encoded))
	if err != nil {
		return "", err
	}
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("inflate: %w", err)
	}
	return string(out), nil
}

func encode64(data []byte) string {
	var sb strings.Builder
	sb.Grow((len(data) + 2) / 3 * 4)
	for i := 0; i < len(data); i += 3 {
		var b1, b2, b3 byte
		b1 = data[i]
		if i+1 < len(data) {
			b2 = data[i+1]
		}
		if i+2 < len(data) {
			b3 = data[i+2]
		}
		sb.WriteByte(alphabet[b1>>2])
		sb.WriteByte(alphabet[((b1&0x3)<<4)|(b2>>4)])
		sb.WriteByte(alphabet[((b2&0xF)<<2)|(b3>>6)])
		sb.WriteByte(alphabet[b3&0x3F])
	}
	return sb.String()
}

func decode64(s string) ([]byte, error) {
	if len(s)%4 != 0 {
		return nil, fmt.Errorf("%w: length %d is not a multiple of 4", ErrInvalidEncoding, len(s))
	}
	out := make([]byte, 0, len(s)/4*3)
	for i := 0; i < len(s); i += 4 {
		var c [4]byte
		for j := 0; j < 4; j++ {
			idx := strings.IndexByte(alphabet, s[i+j])
			if idx < 0 {
				return nil, fmt.Errorf("%w: unexpected character %q", ErrInvalidEncoding, s[i+j])
			}
			c[j] = byte(idx)
		}
		out = append(out,
			c[0]<<2|c[1]>>4,
			(c[1]&0xF)<<4|c[2]>>2,
			(c[2]&0x3)<<6|c[3],
		)
	}
	return out, nil
}
