// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation checks user-derived names before they become storage
// keys, object names, or URL path segments.
package validation

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"unicode"
)

// MaxFileNameLength bounds sanitized file names.
const MaxFileNameLength = 255

// maxKeyLength matches the GCS object name limit.
const maxKeyLength = 1024

// bucketPattern matches logical bucket names: lowercase letters, digits,
// underscores and hyphens, starting with a letter or digit.
var bucketPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// ValidateBucket validates a logical bucket name.
//
// Example:
//
//	if err := validation.ValidateBucket(bucket); err != nil {
//	    return nil, fmt.Errorf("invalid bucket: %w", err)
//	}
func ValidateBucket(bucket string) error {
	if bucket == "" {
		return fmt.Errorf("bucket cannot be empty")
	}
	if !bucketPattern.MatchString(bucket) {
		return fmt.Errorf("invalid bucket %q (must be 1-63 lowercase alphanumeric chars, underscores, or hyphens)", bucket)
	}
	return nil
}

// ValidateBlobKey validates a slash-separated key inside a bucket.
// Keys may not be absolute, contain "." or ".." segments, empty segments,
// backslashes, or control characters.
func ValidateBlobKey(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if len(key) > maxKeyLength {
		return fmt.Errorf("key is longer than %d bytes", maxKeyLength)
	}
	if strings.ContainsRune(key, '\\') || strings.IndexFunc(key, unicode.IsControl) >= 0 {
		return fmt.Errorf("invalid key %q", key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("invalid key %q", key)
		}
	}
	return nil
}

// SanitizeFileName reduces a user-supplied name to a single safe path
// segment.
//
// Directory components are dropped, control characters and backslashes
// become underscores, and the result is cut to MaxFileNameLength bytes on
// a rune boundary. Names that reduce to nothing are an error.
//
//	name, err := validation.SanitizeFileName(`C:\diagrams\shop.png`)
//	// name == "shop.png"
func SanitizeFileName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if i := strings.LastIndex(name, `\`); i >= 0 {
		name = name[i+1:]
	}
	name = path.Base(name)
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return '_'
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || name == "/" {
		return "", fmt.Errorf("file name is required")
	}
	if len(name) > MaxFileNameLength {
		cut := MaxFileNameLength
		for cut > 0 && !utf8RuneStart(name[cut]) {
			cut--
		}
		name = name[:cut]
	}
	return name, nil
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }
