// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package client is a typed HTTP client for the umlserver API.
//
// # Usage
//
//	c := client.New("http://localhost:3001", client.WithToken(token))
//	models, err := c.Models(ctx)
//	text, err := c.ProcessImage(ctx, "gemini-2.0-flash", img)
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianUML/pkg/imaging"
)

// DefaultTimeout bounds each request. Extraction calls wait on a remote
// model, so it is generous.
const DefaultTimeout = 2 * time.Minute

// maxErrorBody caps how much of an error response is read.
const maxErrorBody = 64 << 10

// ErrPayloadTooLarge matches APIErrors with status 413.
var ErrPayloadTooLarge = errors.New("payload too large")

// APIError is a non-2xx response, or a 200 response that carried an error.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("umlserver: HTTP %d", e.Status)
	}
	return fmt.Sprintf("umlserver: HTTP %d: %s", e.Status, e.Message)
}

// Is lets errors.Is(err, ErrPayloadTooLarge) match 413 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrPayloadTooLarge && e.Status == http.StatusRequestEntityTooLarge
}

// =============================================================================
// Wire types
// =============================================================================

type Model struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Provider string `json:"provider"`
}

type HistoryRecord struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	FileName      string    `json:"fileName"`
	CreatedAt     time.Time `json:"createdAt"`
	ImageURL      string    `json:"imageUrl,omitempty"`
	CodeURL       string    `json:"codeUrl,omitempty"`
	UMLCodeURL    string    `json:"umlCodeUrl,omitempty"`
	PlantUML      string    `json:"plantUML"`
	GeneratedCode string    `json:"generatedCode"`
	Language      string    `json:"language"`
}

// SaveHistoryRequest is one generation to persist. Image is optional.
type SaveHistoryRequest struct {
	FileName      string
	Image         imaging.Image
	PlantUML      string
	GeneratedCode string
	Language      string
}

type DebugInfo struct {
	Status      string         `json:"status"`
	Message     string         `json:"message"`
	Environment map[string]any `json:"environment"`
	Timestamp   time.Time      `json:"timestamp"`
}

type imageRequest struct {
	ModelName   string `json:"modelName"`
	ImageBase64 string `json:"imageBase64"`
	MIMEType    string `json:"mimeType"`
}

type saveHistoryBody struct {
	FileName      string `json:"fileName"`
	ImageBase64   string `json:"imageBase64,omitempty"`
	MIMEType      string `json:"mimeType,omitempty"`
	PlantUML      string `json:"plantUML"`
	GeneratedCode string `json:"generatedCode"`
	Language      string `json:"language,omitempty"`
}

// =============================================================================
// Client
// =============================================================================

// Client calls one umlserver.
//
// # Thread Safety
//
// Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

type Option func(*Client)

// WithHTTPClient replaces the default client (DefaultTimeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the server URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Models lists the server's available models.
func (c *Client) Models(ctx context.Context) ([]Model, error) {
	var resp struct {
		Models []Model `json:"models"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/models", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Models, nil
}

// ProcessImage asks the server to convert img to PlantUML with model.
func (c *Client) ProcessImage(ctx context.Context, model string, img imaging.Image) (string, error) {
	body, err := newImageRequest(model, img)
	if err != nil {
		return "", err
	}
	var resp struct {
		PlantUML string `json:"plantUML"`
		Error    string `json:"error"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/process-image", body, &resp); err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", &APIError{Status: http.StatusOK, Message: resp.Error}
	}
	return resp.PlantUML, nil
}

// ValidateDiagram asks the server whether img is a UML class diagram. A
// classification failure reported in the body is returned as *APIError.
func (c *Client) ValidateDiagram(ctx context.Context, model string, img imaging.Image) (bool, error) {
	body, err := newImageRequest(model, img)
	if err != nil {
		return false, err
	}
	var resp struct {
		IsClassDiagram bool   `json:"isClassDiagram"`
		Error          string `json:"error"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/validate-diagram", body, &resp); err != nil {
		return false, err
	}
	if resp.Error != "" {
		return false, &APIError{Status: http.StatusOK, Message: resp.Error}
	}
	return resp.IsClassDiagram, nil
}

// History lists the caller's records, newest first.
func (c *Client) History(ctx context.Context) ([]HistoryRecord, error) {
	var resp struct {
		Records []HistoryRecord `json:"records"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/history", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// SaveHistory persists one generation for the caller.
func (c *Client) SaveHistory(ctx context.Context, req SaveHistoryRequest) (*HistoryRecord, error) {
	body := saveHistoryBody{
		FileName:      req.FileName,
		PlantUML:      req.PlantUML,
		GeneratedCode: req.GeneratedCode,
		Language:      req.Language,
	}
	if len(req.Image.Data) > 0 {
		b64, err := imaging.ToBase64(req.Image)
		if err != nil {
			return nil, err
		}
		body.ImageBase64, body.MIMEType = b64, req.Image.MIMEType
	}
	var resp struct {
		Record *HistoryRecord `json:"record"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/history", body, &resp); err != nil {
		return nil, err
	}
	if resp.Record == nil {
		return nil, errors.New("umlserver: save response has no record")
	}
	return resp.Record, nil
}

// DeleteHistory deletes one of the caller's records.
func (c *Client) DeleteHistory(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/history/"+url.PathEscape(id), nil, nil)
}

// Debug returns the server's configuration report.
func (c *Client) Debug(ctx context.Context) (DebugInfo, error) {
	var info DebugInfo
	err := c.do(ctx, http.MethodGet, "/api/debug", nil, &info)
	return info, err
}

func newImageRequest(model string, img imaging.Image) (imageRequest, error) {
	b64, err := imaging.ToBase64(img)
	if err != nil {
		return imageRequest{}, err
	}
	return imageRequest{ModelName: model, ImageBase64: b64, MIMEType: img.MIMEType}, nil
}

// do sends one JSON request and decodes a 2xx body into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}
