// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routes

import (
	"net/http"

	"github.com/AleutianAI/AleutianUML/pkg/extensions"
	"github.com/AleutianAI/AleutianUML/services/history"
	"github.com/AleutianAI/AleutianUML/services/umlserver/datatypes"
	"github.com/AleutianAI/AleutianUML/services/umlserver/handlers"
	"github.com/AleutianAI/AleutianUML/services/umlserver/middleware"
	"github.com/AleutianAI/AleutianUML/services/umlserver/observability"
	"github.com/gin-gonic/gin"
)

// Deps are the collaborators the routes are wired to.
type Deps struct {
	Diagrams handlers.DiagramService

	// History is nil when no history backend is configured.
	History handlers.HistoryService

	// Blobs serves /api/blobs; nil when blobs live in external storage.
	Blobs history.BlobReader

	Auth    extensions.AuthProvider
	Metrics *observability.Metrics
	Debug   datatypes.DebugEnvironment

	// RateLimiter throttles /api; nil disables throttling.
	RateLimiter  *middleware.RateLimiter
	MaxBodyBytes int64
}

// SetupRoutes registers every umlserver endpoint on router. A nil Auth
// falls back to extensions.NopAuthProvider.
func SetupRoutes(router *gin.Engine, deps Deps) {
	if deps.Auth == nil {
		deps.Auth = &extensions.NopAuthProvider{}
	}
	router.HandleMethodNotAllowed = true
	router.NoMethod(handlers.MethodNotAllowed)

	router.GET("/health", handlers.HealthCheck)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	api := router.Group("/api")
	if deps.RateLimiter != nil {
		api.Use(middleware.RateLimit(deps.RateLimiter, deps.Metrics))
	}
	api.Use(middleware.BodyLimit(deps.MaxBodyBytes))
	{
		api.GET("/models", handlers.HandleListModels(deps.Diagrams))
		api.POST("/process-image", handlers.HandleProcessImage(deps.Diagrams, deps.Metrics))
		api.POST("/validate-diagram", handlers.HandleValidateDiagram(deps.Diagrams, deps.Metrics))
		api.GET("/debug", handlers.HandleDebug(deps.Debug))

		hist := api.Group("/history", middleware.AuthMiddleware(deps.Auth))
		if deps.History != nil {
			hist.GET("", handlers.HandleListHistory(deps.History, deps.Metrics))
			hist.POST("", handlers.HandleSaveHistory(deps.History, deps.Metrics))
			hist.DELETE("/:id", handlers.HandleDeleteHistory(deps.History, deps.Metrics))
		} else {
			hist.GET("", func(c *gin.Context) {
				c.JSON(http.StatusOK, datatypes.HistoryListResponse{Records: []history.Record{}})
			})
			hist.POST("", historyDisabled)
			hist.DELETE("/:id", historyDisabled)
		}

		if deps.Blobs != nil {
			api.GET("/blobs/:bucket/*key", handlers.HandleGetBlob(deps.Blobs))
		}
	}
}

func historyDisabled(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": "History store not configured"})
}
