// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianUML/pkg/extensions"
	"github.com/AleutianAI/AleutianUML/pkg/imaging"
	"github.com/AleutianAI/AleutianUML/pkg/storage/badger"
	"github.com/AleutianAI/AleutianUML/services/diagram"
	"github.com/AleutianAI/AleutianUML/services/history"
	"github.com/AleutianAI/AleutianUML/services/umlserver/datatypes"
	"github.com/AleutianAI/AleutianUML/services/umlserver/middleware"
	"github.com/AleutianAI/AleutianUML/services/umlserver/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// =============================================================================
// Fakes
// =============================================================================

type fakeDiagrams struct {
	models     []diagram.Model
	plantUML   string
	extractErr error
	isDiagram  bool
	validErr   error

	gotModel string
	gotImage imaging.Image
}

func (f *fakeDiagrams) Models() []diagram.Model { return f.models }

func (f *fakeDiagrams) Extract(_ context.Context, modelID string, img imaging.Image) (string, error) {
	f.gotModel, f.gotImage = modelID, img
	return f.plantUML, f.extractErr
}

func (f *fakeDiagrams) Validate(_ context.Context, modelID string, img imaging.Image) (bool, error) {
	f.gotModel, f.gotImage = modelID, img
	return f.isDiagram, f.validErr
}

func pngBase64(t *testing.T) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func postJSON(r http.Handler, path, body string, header ...string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	r.ServeHTTP(w, req)
	return w
}

func diagramRouter(svc DiagramService, m *observability.Metrics, limit int64) *gin.Engine {
	r := gin.New()
	api := r.Group("/api", middleware.BodyLimit(limit))
	api.GET("/models", HandleListModels(svc))
	api.POST("/process-image", HandleProcessImage(svc, m))
	api.POST("/validate-diagram", HandleValidateDiagram(svc, m))
	return r
}

// =============================================================================
// Models
// =============================================================================

func TestHandleListModels(t *testing.T) {
	svc := &fakeDiagrams{models: []diagram.Model{{ID: "gpt-4o", Name: "GPT-4o", Provider: diagram.ProviderGitHub}}}
	r := diagramRouter(svc, nil, 1<<20)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/models", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"models":[{"id":"gpt-4o","name":"GPT-4o","provider":"GitHub"}]}`, w.Body.String())
}

func TestHandleListModels_EmptyIsArray(t *testing.T) {
	r := diagramRouter(&fakeDiagrams{}, nil, 1<<20)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/models", nil))
	assert.JSONEq(t, `{"models":[]}`, w.Body.String())
}

// =============================================================================
// Process Image
// =============================================================================

func TestHandleProcessImage_Success(t *testing.T) {
	svc := &fakeDiagrams{plantUML: "@startuml\nclass Foo\n@enduml"}
	r := diagramRouter(svc, nil, 1<<20)

	body := `{"modelName":"gemini-2.0-flash","imageBase64":"` + pngBase64(t) + `","mimeType":"image/png"}`
	w := postJSON(r, "/api/process-image", body)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp datatypes.ProcessImageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "@startuml\nclass Foo\n@enduml", resp.PlantUML)
	assert.Equal(t, "gemini-2.0-flash", svc.gotModel)
	assert.Equal(t, "image/png", svc.gotImage.MIMEType)
}

func TestHandleProcessImage_BadRequests(t *testing.T) {
	r := diagramRouter(&fakeDiagrams{}, nil, 1<<20)
	img := pngBase64(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"not json", `{`, datatypes.MsgMissingParams},
		{"missing model", `{"imageBase64":"` + img + `","mimeType":"image/png"}`, datatypes.MsgMissingParams},
		{"missing image", `{"modelName":"gpt-4o","mimeType":"image/png"}`, datatypes.MsgMissingParams},
		{"bad mime", `{"modelName":"gpt-4o","imageBase64":"` + img + `","mimeType":"text/plain"}`, "Invalid MIMEType"},
		{"bad base64", `{"modelName":"gpt-4o","imageBase64":"%%%","mimeType":"image/png"}`, "Invalid image data"},
		{"not an image", `{"modelName":"gpt-4o","imageBase64":"aGVsbG8gd29ybGQ=","mimeType":"image/png"}`, "Invalid image data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(r, "/api/process-image", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
}

func TestHandleProcessImage_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		kind string
	}{
		{"unsupported model", &diagram.UnsupportedModelError{Model: "claude-9"}, http.StatusBadRequest, "unsupported_model"},
		{"provider unconfigured", &diagram.ProviderUnavailableError{Provider: diagram.ProviderGroq, Model: "meta-llama/x"}, http.StatusServiceUnavailable, "provider_unavailable"},
		{"provider failure", errors.New("extraction with GPT-4o failed: 500"), http.StatusBadGateway, "provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := observability.NewMetrics(prometheus.NewRegistry())
			r := diagramRouter(&fakeDiagrams{extractErr: tt.err}, m, 1<<20)
			body := `{"modelName":"gpt-4o","imageBase64":"` + pngBase64(t) + `","mimeType":"image/png"}`
			w := postJSON(r, "/api/process-image", body)

			assert.Equal(t, tt.code, w.Code)
			assert.JSONEq(t, `{"error":"`+tt.err.Error()+`"}`, w.Body.String())
			assert.Equal(t, 1.0, testutil.ToFloat64(m.DiagramErrorsTotal.WithLabelValues("process-image", tt.kind)))
		})
	}
}

func TestHandleProcessImage_TooLarge(t *testing.T) {
	r := diagramRouter(&fakeDiagrams{}, nil, 2048)
	body := `{"modelName":"gpt-4o","imageBase64":"` + strings.Repeat("A", 4096) + `","mimeType":"image/png"}`
	w := postJSON(r, "/api/process-image", body)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

// =============================================================================
// Validate Diagram
// =============================================================================

func TestHandleValidateDiagram(t *testing.T) {
	body := func(t *testing.T) string {
		return `{"modelName":"gemini-2.0-flash","imageBase64":"` + pngBase64(t) + `","mimeType":"image/png"}`
	}

	t.Run("yes", func(t *testing.T) {
		w := postJSON(diagramRouter(&fakeDiagrams{isDiagram: true}, nil, 1<<20), "/api/validate-diagram", body(t))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"isClassDiagram":true}`, w.Body.String())
	})

	t.Run("no", func(t *testing.T) {
		w := postJSON(diagramRouter(&fakeDiagrams{}, nil, 1<<20), "/api/validate-diagram", body(t))
		assert.JSONEq(t, `{"isClassDiagram":false}`, w.Body.String())
	})

	t.Run("internal error still answers 200", func(t *testing.T) {
		m := observability.NewMetrics(prometheus.NewRegistry())
		svc := &fakeDiagrams{isDiagram: true, validErr: errors.New("quota exceeded")}
		w := postJSON(diagramRouter(svc, m, 1<<20), "/api/validate-diagram", body(t))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"isClassDiagram":false,"error":"quota exceeded"}`, w.Body.String())
		assert.Equal(t, 1.0, testutil.ToFloat64(m.DiagramErrorsTotal.WithLabelValues("validate-diagram", "provider")))
	})

	t.Run("missing params", func(t *testing.T) {
		w := postJSON(diagramRouter(&fakeDiagrams{}, nil, 1<<20), "/api/validate-diagram", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// =============================================================================
// History
// =============================================================================

type historyFixture struct {
	router *gin.Engine
	blobs  *history.BadgerBlobStore
	svc    *history.Service
}

func newHistoryFixture(t *testing.T) *historyFixture {
	t.Helper()
	db, err := badger.OpenInMemory()
	require.NoError(t, err)
	blobs := history.NewBadgerBlobStore(db, "http://uml.test")
	svc := history.NewService(history.NewBadgerStore(db), blobs, nil)
	t.Cleanup(func() { _ = svc.Close() })

	auth := extensions.NewTokenAuthProvider(map[string]string{"tok-alice": "alice", "tok-bob": "bob"})
	r := gin.New()
	r.GET("/api/blobs/:bucket/*key", HandleGetBlob(blobs))
	h := r.Group("/api/history", middleware.AuthMiddleware(auth))
	h.GET("", HandleListHistory(svc, nil))
	h.POST("", HandleSaveHistory(svc, nil))
	h.DELETE("/:id", HandleDeleteHistory(svc, nil))
	return &historyFixture{router: r, blobs: blobs, svc: svc}
}

func (f *historyFixture) do(method, path, token, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	f.router.ServeHTTP(w, req)
	return w
}

func TestHistoryRoundTrip(t *testing.T) {
	f := newHistoryFixture(t)
	body := `{"fileName":"shop.png","imageBase64":"` + pngBase64(t) + `","mimeType":"image/png",` +
		`"plantUML":"@startuml\nclass Cart\n@enduml","generatedCode":"class Cart {}","language":"Java"}`

	w := f.do(http.MethodPost, "/api/history", "tok-alice", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var saved datatypes.HistoryRecordResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &saved))
	require.NotNil(t, saved.Record)
	assert.Equal(t, "alice", saved.Record.UserID)
	assert.Equal(t, "java", saved.Record.Language)
	assert.True(t, strings.HasPrefix(saved.Record.ImageURL, "http://uml.test/api/blobs/images/"))

	// The stored blob is served back.
	path := strings.TrimPrefix(saved.Record.CodeURL, "http://uml.test")
	w = f.do(http.MethodGet, path, "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "class Cart {}", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")

	w = f.do(http.MethodGet, "/api/history", "tok-alice", "")
	var list datatypes.HistoryListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Records, 1)
	assert.Equal(t, saved.Record.ID, list.Records[0].ID)

	w = f.do(http.MethodGet, "/api/history", "tok-bob", "")
	assert.JSONEq(t, `{"records":[]}`, w.Body.String())

	w = f.do(http.MethodDelete, "/api/history/"+saved.Record.ID, "tok-bob", "")
	assert.Equal(t, http.StatusNotFound, w.Code, "foreign records look missing")

	w = f.do(http.MethodDelete, "/api/history/"+saved.Record.ID, "tok-alice", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"deleted"}`, w.Body.String())

	w = f.do(http.MethodGet, path, "", "")
	assert.Equal(t, http.StatusNotFound, w.Code, "blobs are released with the record")

	w = f.do(http.MethodDelete, "/api/history/"+saved.Record.ID, "tok-alice", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHistoryRequiresAuth(t *testing.T) {
	f := newHistoryFixture(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/history"},
		{http.MethodPost, "/api/history"},
		{http.MethodDelete, "/api/history/x"},
	} {
		w := f.do(tc.method, tc.path, "", `{}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code, tc.method)
	}
}

func TestHandleSaveHistory_Invalid(t *testing.T) {
	f := newHistoryFixture(t)
	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing plantuml", `{"fileName":"a.png"}`},
		{"bad language", `{"fileName":"a.png","plantUML":"class A","language":"cobol"}`},
		{"bad image", `{"fileName":"a.png","plantUML":"class A","imageBase64":"%%"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(http.MethodPost, "/api/history", "tok-alice", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

type failingHistory struct{ err error }

func (f failingHistory) Save(context.Context, history.SaveRequest) (*history.Record, error) {
	return nil, f.err
}
func (f failingHistory) List(context.Context, string) []history.Record { return []history.Record{} }
func (f failingHistory) Delete(context.Context, string, string) error  { return f.err }

func TestHistoryBackendFailures(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())
	svc := failingHistory{err: errors.New("disk full")}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		middleware.SetAuthInfo(c, &extensions.AuthInfo{UserID: "alice"})
	})
	r.POST("/api/history", HandleSaveHistory(svc, m))
	r.DELETE("/api/history/:id", HandleDeleteHistory(svc, m))

	w := postJSON(r, "/api/history", `{"fileName":"a.png","plantUML":"class A"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/history/abc", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HistoryOperationsTotal.WithLabelValues("save", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HistoryOperationsTotal.WithLabelValues("delete", "error")))
}

// =============================================================================
// Misc
// =============================================================================

func TestHealthCheck_ReturnsOK(t *testing.T) {
	router := gin.New()
	router.GET("/health", HealthCheck)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
}

func TestHandleDebug(t *testing.T) {
	router := gin.New()
	router.GET("/api/debug", HandleDebug(datatypes.DebugEnvironment{HasGeminiKey: true, Environment: "test"}))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/debug", nil))

	var resp datatypes.DebugResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "Debug API is working correctly", resp.Message)
	assert.True(t, resp.Environment.HasGeminiKey)
	assert.False(t, resp.Environment.HasGroqKey)
	assert.WithinDuration(t, time.Now(), resp.Timestamp, time.Minute)
}

func TestHandleGetBlob_Missing(t *testing.T) {
	f := newHistoryFixture(t)
	w := f.do(http.MethodGet, "/api/blobs/code/nope/x.txt", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
