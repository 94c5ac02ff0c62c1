// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package umlserver

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianUML/services/diagram"
	"github.com/AleutianAI/AleutianUML/services/llm"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type scriptedVision struct {
	answer string
}

func (s scriptedVision) DescribeImage(_ context.Context, req llm.VisionRequest) (string, error) {
	if req.Prompt == diagram.ValidationPrompt {
		return "Yes", nil
	}
	return s.answer, nil
}

func newTestServer(t *testing.T, cfg Config) Service {
	t.Helper()
	llm.SecretsDir = t.TempDir()
	svc, err := New(cfg, &Options{
		Clients: map[diagram.Provider]llm.VisionClient{
			diagram.ProviderGoogle: scriptedVision{answer: "```plantuml\n@startuml\nclass Foo\n@enduml\n```"},
		},
		Registry:      prometheus.NewRegistry(),
		SkipTelemetry: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func imageBody(t *testing.T, model string) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return `{"modelName":"` + model + `","imageBase64":"` +
		base64.StdEncoding.EncodeToString(buf.Bytes()) + `","mimeType":"image/png"}`
}

func request(h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	h.ServeHTTP(w, req)
	return w
}

func TestServerModelsFollowConfiguredClients(t *testing.T) {
	svc := newTestServer(t, Config{})
	w := request(svc.Handler(), http.MethodGet, "/api/models", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Models []diagram.Model `json:"models"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Models)
	for _, m := range resp.Models {
		assert.Equal(t, diagram.ProviderGoogle, m.Provider)
	}
}

func TestServerProcessAndValidate(t *testing.T) {
	svc := newTestServer(t, Config{})
	h := svc.Handler()

	w := request(h, http.MethodPost, "/api/validate-diagram", imageBody(t, "gemini-2.0-flash"), nil)
	assert.JSONEq(t, `{"isClassDiagram":true}`, w.Body.String())

	w = request(h, http.MethodPost, "/api/process-image", imageBody(t, "gemini-2.0-flash"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "class Foo")

	w = request(h, http.MethodPost, "/api/process-image", imageBody(t, "gpt-4o"), nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code, "GitHub Models has no client")

	w = request(h, http.MethodPost, "/api/process-image", imageBody(t, "claude-3"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServerHistoryInMemory(t *testing.T) {
	svc := newTestServer(t, Config{AuthTokens: "tok:alice"})
	h := svc.Handler()
	auth := map[string]string{"Authorization": "Bearer tok"}

	w := request(h, http.MethodPost, "/api/history",
		`{"fileName":"a.png","plantUML":"@startuml\nclass A\n@enduml","generatedCode":"x","language":"python"}`, auth)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = request(h, http.MethodGet, "/api/history", "", auth)
	assert.Contains(t, w.Body.String(), `"fileName":"a.png"`)
	assert.Contains(t, w.Body.String(), "http://localhost:3001/api/blobs/code/")

	w = request(h, http.MethodGet, "/api/history", "", map[string]string{"Authorization": "Bearer nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestServerDebugHasNoSecrets(t *testing.T) {
	svc := newTestServer(t, Config{GeminiAPIKey: "super-secret-key", HistoryBackend: "none"})
	w := request(svc.Handler(), http.MethodGet, "/api/debug", "", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "super-secret-key")

	var resp struct {
		Environment map[string]any `json:"environment"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp.Environment["hasGeminiKey"])
	assert.Equal(t, false, resp.Environment["hasGroqKey"])
	assert.Equal(t, false, resp.Environment["hasHistoryStore"])
}

func TestServerCORS(t *testing.T) {
	svc := newTestServer(t, Config{AllowedOrigins: []string{"https://ui.example"}})
	h := svc.Handler()

	w := request(h, http.MethodGet, "/api/models", "", map[string]string{"Origin": "https://ui.example"})
	assert.Equal(t, "https://ui.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = request(h, http.MethodOptions, "/api/process-image", "", map[string]string{
		"Origin":                         "https://ui.example",
		"Access-Control-Request-Method":  http.MethodPost,
		"Access-Control-Request-Headers": "Content-Type",
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://ui.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Content-Type", w.Header().Get("Access-Control-Allow-Headers"))

	// Simple methods are implied; only DELETE is echoed back.
	w = request(h, http.MethodOptions, "/api/history/abc", "", map[string]string{
		"Origin":                        "https://ui.example",
		"Access-Control-Request-Method": http.MethodDelete,
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.MethodDelete, w.Header().Get("Access-Control-Allow-Methods"))

	w = request(h, http.MethodOptions, "/api/history/abc", "", map[string]string{
		"Origin":                        "https://ui.example",
		"Access-Control-Request-Method": http.MethodPut,
	})
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = request(h, http.MethodGet, "/api/models", "", map[string]string{"Origin": "https://evil.example"})
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServerMetricsEndpoint(t *testing.T) {
	svc := newTestServer(t, Config{})
	h := svc.Handler()
	request(h, http.MethodGet, "/health", "", nil)

	w := request(h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `aleutian_uml_http_requests_total{code="200",method="GET",route="/health"} 1`)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(Config{HistoryBackend: "postgres"}, &Options{SkipTelemetry: true})
	assert.Error(t, err)

	_, err = New(Config{AuthTokens: "no-user-part"}, &Options{SkipTelemetry: true, Registry: prometheus.NewRegistry()})
	assert.Error(t, err)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	svc := newTestServer(t, Config{Port: port, HistoryBackend: "none"})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:" + strconv.Itoa(port) + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
