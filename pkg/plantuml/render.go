// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package plantuml

import (
	"regexp"
	"strings"
)

const (
	// DefaultBaseURL is the public PlantUML rendering service.
	DefaultBaseURL = "http://www.plantuml.com/plantuml"

	// DefaultFormat is the output format segment of the render URL.
	DefaultFormat = "svg"
)

// Renderer builds render URLs for PlantUML markup.
//
// The zero value renders SVG through DefaultBaseURL.
type Renderer struct {
	BaseURL string
	Format  string
}

// Render returns the URL that renders text, or "" when text is blank.
// The result depends only on the input and the renderer fields.
func (r Renderer) Render(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	base := r.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	format := r.Format
	if format == "" {
		format = DefaultFormat
	}
	return strings.TrimRight(base, "/") + "/" + format + "/" + Encode(text)
}

// Render renders text with the default renderer.
func Render(text string) string {
	return Renderer{}.Render(text)
}

var fenceRe = regexp.MustCompile("(?s)^```[a-zA-Z0-9_-]*[ \t]*\r?\n(.*?)\r?\n?```$")

// Normalize trims model output and strips one surrounding markdown fence.
// Models are told not to fence their answer but some do anyway.
func Normalize(text string) string {
	text = strings.TrimSpace(text)
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		text = strings.TrimSpace(m[1])
	}
	return text
}
