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
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/AleutianAI/AleutianUML/pkg/imaging"
	"github.com/AleutianAI/AleutianUML/pkg/transpiler"
	"github.com/AleutianAI/AleutianUML/services/history"
	"github.com/AleutianAI/AleutianUML/services/umlserver/datatypes"
	"github.com/AleutianAI/AleutianUML/services/umlserver/middleware"
	"github.com/AleutianAI/AleutianUML/services/umlserver/observability"
	"github.com/gin-gonic/gin"
)

// HistoryService is the part of history.Service the handlers use.
type HistoryService interface {
	Save(ctx context.Context, req history.SaveRequest) (*history.Record, error)
	List(ctx context.Context, userID string) []history.Record
	Delete(ctx context.Context, userID, id string) error
}

var _ HistoryService = (*history.Service)(nil)

// userID returns the authenticated caller's ID, or "" for anonymous
// requests.
func userID(c *gin.Context) string {
	if info := middleware.GetAuthInfo(c); info != nil {
		return info.UserID
	}
	return ""
}

// HandleListHistory returns the caller's records, newest first.
func HandleListHistory(svc HistoryService, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		records := svc.List(c.Request.Context(), userID(c))
		metrics.RecordHistory("list", nil)
		c.JSON(http.StatusOK, datatypes.HistoryListResponse{Records: records})
	}
}

// HandleSaveHistory stores one generation for the caller.
func HandleSaveHistory(svc HistoryService, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.SaveHistoryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			if middleware.IsBodyTooLarge(err) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": middleware.MsgPayloadTooLarge})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if err := req.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
			return
		}

		var img imaging.Image
		if req.ImageBase64 != "" {
			decoded, err := imaging.FromBase64(req.FileName, req.ImageBase64, req.MIMEType)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image data: " + err.Error()})
				return
			}
			img = decoded
		}

		language := ""
		if req.Language != "" {
			lang, _ := transpiler.ParseLanguage(req.Language)
			language = string(lang)
		}

		rec, err := svc.Save(c.Request.Context(), history.SaveRequest{
			UserID:        userID(c),
			Image:         img,
			GeneratedCode: req.GeneratedCode,
			Language:      language,
			PlantUML:      req.PlantUML,
			FileName:      req.FileName,
		})
		metrics.RecordHistory("save", err)
		switch {
		case errors.Is(err, history.ErrAnonymous):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		case err != nil:
			slog.Error("History save failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save history"})
			return
		}
		c.JSON(http.StatusCreated, datatypes.HistoryRecordResponse{Record: rec})
	}
}

// HandleDeleteHistory deletes one of the caller's records. Records of
// other users are reported as not found.
func HandleDeleteHistory(svc HistoryService, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		err := svc.Delete(c.Request.Context(), userID(c), id)
		metrics.RecordHistory("delete", err)
		switch {
		case errors.Is(err, history.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": history.ErrNotFound.Error()})
			return
		case errors.Is(err, history.ErrAnonymous):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		case err != nil:
			slog.Error("History delete failed", "id", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete history record"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	}
}
