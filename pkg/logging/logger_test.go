// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel(" error "))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
	assert.Equal(t, "warn", LevelWarn.String())
}

func TestNewJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Service: "umlserver", JSON: true, Writer: &buf})
	defer logger.Close()

	logger.Slog().Info("dropped")
	logger.Slog().Warn("kept", "model", "gpt-4o")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "umlserver", entry["service"])
	assert.Equal(t, "gpt-4o", entry["model"])
	assert.Empty(t, logger.FilePath())
}

func TestFileLogging(t *testing.T) {
	var buf bytes.Buffer
	dir := t.TempDir()
	logger := New(Config{Level: LevelDebug, Service: "umlctl", LogDir: dir, Writer: &buf})

	path := logger.FilePath()
	require.NotEmpty(t, path)
	assert.True(t, strings.HasPrefix(path, dir))
	assert.Contains(t, path, "umlctl_")

	logger.Slog().Debug("to both", "n", 1)
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"to both"`)
	assert.Contains(t, buf.String(), "msg=\"to both\"")
}

func TestFileLoggingFailureIsReported(t *testing.T) {
	var buf bytes.Buffer
	blocker := t.TempDir() + "/file"
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	logger := New(Config{LogDir: blocker + "/logs", Writer: &buf})
	defer logger.Close()
	assert.Empty(t, logger.FilePath())
	assert.Contains(t, buf.String(), "File logging disabled")
}
