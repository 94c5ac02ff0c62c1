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
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianUML/pkg/plantuml"
)

const fooDiagram = "@startuml\nclass Foo\n@enduml"

func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func fakeServer(t *testing.T, isDiagram bool) (*httptest.Server, *[]string) {
	t.Helper()
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		switch r.Method + " " + r.URL.Path {
		case "GET /api/models":
			_, _ = w.Write([]byte(`{"models":[{"id":"gemini-2.0-flash","name":"Gemini 2.0 Flash","provider":"google"},{"id":"gpt-4o","name":"GPT-4o","provider":"github"}]}`))
		case "POST /api/validate-diagram":
			_ = json.NewEncoder(w).Encode(map[string]bool{"isClassDiagram": isDiagram})
		case "POST /api/process-image":
			_ = json.NewEncoder(w).Encode(map[string]string{"plantUML": "```\n" + fooDiagram + "\n```"})
		case "POST /api/history":
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"record":{"id":"r1"}}`))
		case "GET /api/history":
			_, _ = w.Write([]byte(`{"records":[{"id":"r1","fileName":"d.png","language":"java","plantUML":"class Foo"}]}`))
		case "DELETE /api/history/r1":
			_, _ = w.Write([]byte(`{"status":"deleted"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Record not found"}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func writePNG(t *testing.T) string {
	t.Helper()
	m := image.NewRGBA(image.Rect(0, 0, 4, 4))
	m.Set(1, 1, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, m))
	path := filepath.Join(t.TempDir(), "d.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func writePUML(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "d.puml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestModelsCommand(t *testing.T) {
	srv, _ := fakeServer(t, true)

	out, _, err := run(t, "--server", srv.URL, "models")
	require.NoError(t, err)
	assert.Contains(t, out, "gemini-2.0-flash")
	assert.Contains(t, out, "gpt-4o")

	out, _, err = run(t, "--server", srv.URL, "models", "-o", "yaml")
	require.NoError(t, err)
	var models []map[string]string
	require.NoError(t, yaml.Unmarshal([]byte(out), &models))
	assert.Len(t, models, 2)
}

func TestModelsFallbackWhenServerDown(t *testing.T) {
	out, _, err := run(t, "--server", "http://127.0.0.1:1", "models", "-o", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"gemini-2.0-flash"`)
}

func TestRenderCommand(t *testing.T) {
	path := writePUML(t, fooDiagram)

	out, _, err := run(t, "render", path)
	require.NoError(t, err)
	url := strings.TrimSpace(out)
	assert.Equal(t, plantuml.Render(fooDiagram), url)

	out, _, err = run(t, "render", "--decode", url)
	require.NoError(t, err)
	assert.Equal(t, fooDiagram, strings.TrimSpace(out))

	out, _, err = run(t, "render", "--format", "png", path)
	require.NoError(t, err)
	assert.Contains(t, out, "/png/")
}

func TestTranspileCommand(t *testing.T) {
	path := writePUML(t, fooDiagram)

	out, _, err := run(t, "transpile", path, "--lang", "python")
	require.NoError(t, err)
	assert.Contains(t, out, "class Foo")

	out, _, err = run(t, "transpile", path, "--lang", "ts", "--fence")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "```typescript\n"))

	_, _, err = run(t, "transpile", path, "--lang", "cobol")
	assert.Error(t, err)

	_, _, err = run(t, "transpile", writePUML(t, "@startuml\nnot a diagram\n@enduml"))
	assert.Error(t, err)
}

func TestConvertCommand(t *testing.T) {
	srv, calls := fakeServer(t, true)
	img := writePNG(t)
	outFile := filepath.Join(t.TempDir(), "Foo.java")

	stdout, stderr, err := run(t, "--server", srv.URL, "--token", "tok", "convert", img,
		"--model", "gpt-4o", "--out", outFile, "--save")
	require.NoError(t, err, stderr)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, plantuml.Render(fooDiagram))

	code, err := os.ReadFile(outFile)
	require.NoError(t, err)
	assert.Contains(t, string(code), "class Foo")
	assert.NotContains(t, string(code), "```")
	assert.Contains(t, *calls, "POST /api/history")
}

func TestConvertStructuredOutput(t *testing.T) {
	srv, calls := fakeServer(t, true)
	stdout, _, err := run(t, "--server", srv.URL, "-o", "json", "convert", writePNG(t), "--lang", "ruby")
	require.NoError(t, err)

	var res ConvertResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.Equal(t, "gemini-2.0-flash", res.Model, "defaults to the first server model")
	assert.Equal(t, fooDiagram, res.PlantUML)
	assert.Equal(t, "ruby", res.Language)
	assert.Contains(t, res.Code, "class Foo")
	assert.NotContains(t, *calls, "POST /api/history")
}

func TestConvertRejected(t *testing.T) {
	srv, _ := fakeServer(t, false)
	_, stderr, err := run(t, "--server", srv.URL, "convert", writePNG(t), "--model", "gpt-4o")
	require.Error(t, err)
	assert.Contains(t, stderr, "does not look like a UML class diagram")
}

func TestConvertSaveNeedsToken(t *testing.T) {
	_, _, err := run(t, "convert", writePNG(t), "--save")
	assert.ErrorContains(t, err, "needs a token")
}

func TestHistoryCommands(t *testing.T) {
	srv, _ := fakeServer(t, true)

	out, _, err := run(t, "--server", srv.URL, "--token", "tok", "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "r1")
	assert.Contains(t, out, "d.png")

	_, stderr, err := run(t, "--server", srv.URL, "--token", "tok", "history", "delete", "r1")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Deleted r1")

	_, _, err = run(t, "--server", srv.URL, "--token", "tok", "history", "delete", "missing")
	assert.ErrorContains(t, err, "Record not found")
}

func TestUnknownOutputFormat(t *testing.T) {
	_, _, err := run(t, "-o", "xml", "render", "x")
	assert.ErrorContains(t, err, "unknown output format")
}
