// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes holds the request and response bodies of the umlserver API.
package datatypes

import (
	"strings"
	"time"

	"github.com/AleutianAI/AleutianUML/pkg/transpiler"
	"github.com/AleutianAI/AleutianUML/services/diagram"
	"github.com/AleutianAI/AleutianUML/services/history"
	"github.com/go-playground/validator/v10"
)

// MsgMissingParams is the error body for requests without the image
// fields.
const MsgMissingParams = "Missing required parameters"

// apiValidate is the validator instance for API datatypes.
// Initialized in init() with custom validators.
var apiValidate *validator.Validate

func init() {
	apiValidate = validator.New()
	_ = apiValidate.RegisterValidation("imagemime", validateImageMIME)
	_ = apiValidate.RegisterValidation("language", validateLanguage)
}

// validateImageMIME accepts media types of the form image/<subtype>.
func validateImageMIME(fl validator.FieldLevel) bool {
	mime := strings.ToLower(strings.TrimSpace(fl.Field().String()))
	sub, ok := strings.CutPrefix(mime, "image/")
	return ok && sub != ""
}

func validateLanguage(fl validator.FieldLevel) bool {
	_, err := transpiler.ParseLanguage(fl.Field().String())
	return err == nil
}

// =============================================================================
// Diagram endpoints
// =============================================================================

// ImageRequest is the body of POST /api/process-image and
// POST /api/validate-diagram.
type ImageRequest struct {
	ModelName   string `json:"modelName" validate:"required,max=128"`
	ImageBase64 string `json:"imageBase64" validate:"required"`
	MIMEType    string `json:"mimeType" validate:"required,imagemime"`
}

// Validate validates the ImageRequest fields.
func (r *ImageRequest) Validate() error {
	return apiValidate.Struct(r)
}

type ModelsResponse struct {
	Models []diagram.Model `json:"models"`
}

type ProcessImageResponse struct {
	PlantUML string `json:"plantUML"`
}

// ValidateResponse always carries IsClassDiagram; Error is set when the
// classification itself failed.
type ValidateResponse struct {
	IsClassDiagram bool   `json:"isClassDiagram"`
	Error          string `json:"error,omitempty"`
}

// =============================================================================
// History endpoints
// =============================================================================

// SaveHistoryRequest is the body of POST /api/history. The image is
// optional; the user comes from the bearer token.
type SaveHistoryRequest struct {
	FileName      string `json:"fileName" validate:"required,max=255"`
	ImageBase64   string `json:"imageBase64,omitempty"`
	MIMEType      string `json:"mimeType,omitempty" validate:"omitempty,imagemime"`
	PlantUML      string `json:"plantUML" validate:"required"`
	GeneratedCode string `json:"generatedCode"`
	Language      string `json:"language,omitempty" validate:"omitempty,language"`
}

// Validate validates the SaveHistoryRequest fields.
func (r *SaveHistoryRequest) Validate() error {
	return apiValidate.Struct(r)
}

type HistoryListResponse struct {
	Records []history.Record `json:"records"`
}

type HistoryRecordResponse struct {
	Record *history.Record `json:"record"`
}

// =============================================================================
// Diagnostics
// =============================================================================

// DebugEnvironment reports which integrations are configured. It never
// carries secret values.
type DebugEnvironment struct {
	HasGeminiKey    bool   `json:"hasGeminiKey"`
	HasGroqKey      bool   `json:"hasGroqKey"`
	HasGitHubToken  bool   `json:"hasGitHubToken"`
	HasHistoryStore bool   `json:"hasHistoryStore"`
	HasGCS          bool   `json:"hasGCS"`
	Environment     string `json:"environment"`
}

type DebugResponse struct {
	Status      string           `json:"status"`
	Message     string           `json:"message"`
	Environment DebugEnvironment `json:"environment"`
	Timestamp   time.Time        `json:"timestamp"`
}
