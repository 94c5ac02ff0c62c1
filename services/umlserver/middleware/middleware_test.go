// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianUML/pkg/extensions"
	"github.com/AleutianAI/AleutianUML/services/umlserver/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

// mockAuthProvider is a configurable mock for testing.
type mockAuthProvider struct {
	authInfo *extensions.AuthInfo
	err      error
	calls    int
}

func (m *mockAuthProvider) Validate(_ context.Context, _ string) (*extensions.AuthInfo, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.authInfo, nil
}

func authRouter(provider extensions.AuthProvider) *gin.Engine {
	r := gin.New()
	r.GET("/me", AuthMiddleware(provider), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": GetAuthInfo(c).UserID})
	})
	return r
}

// =============================================================================
// Auth Tests
// =============================================================================

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc123", "abc123"},
		{"bearer  abc123 ", "abc123"},
		{"", ""},
		{"abc123", ""},
		{"Basic abc123", ""},
		{"Bearer ", ""},
		{"Bearer", ""},
	}
	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			c.Request.Header.Set("Authorization", tt.header)
		}
		assert.Equal(t, tt.want, extractBearerToken(c), tt.header)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	provider := &mockAuthProvider{authInfo: &extensions.AuthInfo{UserID: "u-1"}}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer tok")
	authRouter(provider).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"u-1"}`, w.Body.String())
}

func TestAuthMiddleware_MissingTokenSkipsProvider(t *testing.T) {
	provider := &mockAuthProvider{authInfo: &extensions.AuthInfo{UserID: "u-1"}}
	w := httptest.NewRecorder()
	authRouter(provider).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, w.Body.String())
	assert.Zero(t, provider.calls)
}

func TestAuthMiddleware_Errors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		info *extensions.AuthInfo
		want string
	}{
		{"unknown token", extensions.ErrUnauthorized, nil, "unauthorized"},
		{"wrapped unauthorized", errors.Join(errors.New("expired"), extensions.ErrUnauthorized), nil, "unauthorized"},
		{"provider down", errors.New("dial tcp: refused"), nil, "authentication failed"},
		{"empty user", nil, &extensions.AuthInfo{}, "unauthorized"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			req.Header.Set("Authorization", "Bearer tok")
			authRouter(&mockAuthProvider{authInfo: tt.info, err: tt.err}).ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), tt.want)
		})
	}
}

func TestAuthMiddleware_TokenProvider(t *testing.T) {
	provider := extensions.NewTokenAuthProvider(map[string]string{"s3cret": "alice"})
	r := authRouter(provider)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	r.ServeHTTP(w, req)
	assert.JSONEq(t, `{"user":"alice"}`, w.Body.String())

	w = httptest.NewRecorder()
	req.Header.Set("Authorization", "Bearer guess")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetAuthInfo_Anonymous(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, GetAuthInfo(c))
	c.Set(authInfoKey, "not auth info")
	assert.Nil(t, GetAuthInfo(c))
}

// =============================================================================
// Rate Limit Tests
// =============================================================================

func TestRateLimit(t *testing.T) {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	limiter := NewRateLimiter(1, 2)
	now := time.Unix(1700000000, 0)
	limiter.now = func() time.Time { return now }

	r := gin.New()
	r.GET("/x", RateLimit(limiter, metrics), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	do := func(ip string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = ip + ":1234"
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusNoContent, do("10.0.0.1").Code)
	assert.Equal(t, http.StatusNoContent, do("10.0.0.1").Code)
	w := do("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusNoContent, do("10.0.0.2").Code, "budgets are per client")

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusNoContent, do("10.0.0.1").Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.RateLimitedTotal))
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	limiter := NewRateLimiter(10, 0)
	now := time.Unix(1700000000, 0)
	limiter.now = func() time.Time { return now }

	ok, _ := limiter.reserve("a")
	require.True(t, ok)
	now = now.Add(2 * clientIdleTTL)
	ok, _ = limiter.reserve("b")
	require.True(t, ok)

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.NotContains(t, limiter.clients, "a")
	assert.Contains(t, limiter.clients, "b")
}

// =============================================================================
// Body Limit Tests
// =============================================================================

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.POST("/x", BodyLimit(16), func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if IsBodyTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": MsgPayloadTooLarge})
			return
		}
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader("small")))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(strings.Repeat("x", 64))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	// Unknown length: the limit is enforced while reading.
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/x", io.NopCloser(strings.NewReader(strings.Repeat("x", 64))))
	req.ContentLength = -1
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), MsgPayloadTooLarge)
}

// =============================================================================
// Metrics Tests
// =============================================================================

func TestMetricsMiddleware(t *testing.T) {
	m := observability.NewMetrics(prometheus.NewRegistry())
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/api/history/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/history/abc", nil))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/api/history/:id", "GET", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("unmatched", "GET", "404")))
}
