// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Exit codes for CLI commands.
const (
	CLIExitSuccess = 0
	CLIExitError   = 2
)

// Output formats accepted by --output.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

func validFormat(f string) error {
	switch f {
	case FormatText, FormatJSON, FormatYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q (want text, json or yaml)", f)
}

// writeStructured encodes data as JSON or YAML.
//
// # Inputs
//
//   - w: Destination.
//   - format: FormatJSON or FormatYAML.
//   - data: Any value with json and yaml tags.
func writeStructured(w io.Writer, format string, data any) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("format %q is not structured", format)
}

// ConvertResult is the machine-readable output of convert.
type ConvertResult struct {
	File      string `json:"file" yaml:"file"`
	Model     string `json:"model" yaml:"model"`
	Language  string `json:"language" yaml:"language"`
	PlantUML  string `json:"plantUML" yaml:"plantUML"`
	RenderURL string `json:"renderUrl" yaml:"renderUrl"`
	Code      string `json:"code,omitempty" yaml:"code,omitempty"`
	Output    string `json:"output,omitempty" yaml:"output,omitempty"`
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
