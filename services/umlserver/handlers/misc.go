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
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianUML/services/history"
	"github.com/AleutianAI/AleutianUML/services/umlserver/datatypes"
	"github.com/gin-gonic/gin"
)

// HealthCheck answers liveness probes.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleDebug reports which integrations are configured.
func HandleDebug(env datatypes.DebugEnvironment) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, datatypes.DebugResponse{
			Status:      "ok",
			Message:     "Debug API is working correctly",
			Environment: env,
			Timestamp:   time.Now().UTC(),
		})
	}
}

// HandleGetBlob serves a stored history blob.
func HandleGetBlob(blobs history.BlobReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		bucket := c.Param("bucket")
		key := strings.TrimPrefix(c.Param("key"), "/")
		if bucket == "" || key == "" {
			c.JSON(http.StatusNotFound, gin.H{"error": "blob not found"})
			return
		}

		data, contentType, err := blobs.Get(c.Request.Context(), bucket, key)
		if errors.Is(err, history.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "blob not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read blob"})
			return
		}
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		c.Header("Cache-Control", "private, max-age=3600")
		c.Data(http.StatusOK, contentType, data)
	}
}

// MethodNotAllowed is the response for known paths hit with the wrong
// method.
func MethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
}
