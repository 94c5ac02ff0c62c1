// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers implements the umlserver HTTP endpoints.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/AleutianUML/pkg/imaging"
	"github.com/AleutianAI/AleutianUML/services/diagram"
	"github.com/AleutianAI/AleutianUML/services/umlserver/datatypes"
	"github.com/AleutianAI/AleutianUML/services/umlserver/middleware"
	"github.com/AleutianAI/AleutianUML/services/umlserver/observability"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// DiagramService is the part of diagram.Service the handlers use.
type DiagramService interface {
	Models() []diagram.Model
	Extract(ctx context.Context, modelID string, img imaging.Image) (string, error)
	Validate(ctx context.Context, modelID string, img imaging.Image) (bool, error)
}

var _ DiagramService = (*diagram.Service)(nil)

// HandleListModels returns the models whose provider is configured.
func HandleListModels(svc DiagramService) gin.HandlerFunc {
	return func(c *gin.Context) {
		models := svc.Models()
		if models == nil {
			models = []diagram.Model{}
		}
		c.JSON(http.StatusOK, datatypes.ModelsResponse{Models: models})
	}
}

// HandleProcessImage converts an uploaded diagram image to PlantUML.
//
// # Outputs
//
//   - 200 {"plantUML": "..."}
//   - 400 missing parameters, undecodable image or unsupported model
//   - 413 body over the configured limit
//   - 502 provider failure
//   - 503 the model's provider has no credential
func HandleProcessImage(svc DiagramService, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		img, req, ok := bindImage(c)
		if !ok {
			return
		}

		plantUML, err := svc.Extract(c.Request.Context(), req.ModelName, img)
		if err != nil {
			kind := errorKind(err)
			metrics.RecordDiagramError("process-image", kind)
			slog.Error("Image processing failed", "model", req.ModelName, "kind", kind, "error", err)
			c.JSON(extractStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, datatypes.ProcessImageResponse{PlantUML: plantUML})
	}
}

// HandleValidateDiagram classifies an uploaded image as a UML class
// diagram or not. Classification failures still answer 200 with
// isClassDiagram false and the error message.
func HandleValidateDiagram(svc DiagramService, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		img, req, ok := bindImage(c)
		if !ok {
			return
		}

		isDiagram, err := svc.Validate(c.Request.Context(), req.ModelName, img)
		if err != nil {
			kind := errorKind(err)
			metrics.RecordDiagramError("validate-diagram", kind)
			slog.Error("Diagram validation failed", "model", req.ModelName, "kind", kind, "error", err)
			c.JSON(http.StatusOK, datatypes.ValidateResponse{IsClassDiagram: false, Error: err.Error()})
			return
		}
		c.JSON(http.StatusOK, datatypes.ValidateResponse{IsClassDiagram: isDiagram})
	}
}

// bindImage decodes and validates an ImageRequest, writing the error
// response itself when it returns false.
func bindImage(c *gin.Context) (imaging.Image, datatypes.ImageRequest, bool) {
	var req datatypes.ImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if middleware.IsBodyTooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": middleware.MsgPayloadTooLarge})
			return imaging.Image{}, req, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": datatypes.MsgMissingParams})
		return imaging.Image{}, req, false
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
		return imaging.Image{}, req, false
	}

	img, err := imaging.FromBase64("upload", req.ImageBase64, req.MIMEType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image data: " + err.Error()})
		return imaging.Image{}, req, false
	}
	return img, req, true
}

// validationMessage turns validator errors into a client message.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return datatypes.MsgMissingParams
		}
	}
	fe := verrs[0]
	return "Invalid " + fe.Field() + ": failed " + fe.Tag()
}

func extractStatus(err error) int {
	var unsupported *diagram.UnsupportedModelError
	var unavailable *diagram.ProviderUnavailableError
	var encoding *imaging.EncodingError
	switch {
	case errors.As(err, &unsupported), errors.As(err, &encoding):
		return http.StatusBadRequest
	case errors.As(err, &unavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func errorKind(err error) string {
	var unsupported *diagram.UnsupportedModelError
	var unavailable *diagram.ProviderUnavailableError
	var encoding *imaging.EncodingError
	switch {
	case errors.As(err, &unsupported):
		return "unsupported_model"
	case errors.As(err, &unavailable):
		return "provider_unavailable"
	case errors.As(err, &encoding):
		return "invalid_image"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "provider"
	}
}
