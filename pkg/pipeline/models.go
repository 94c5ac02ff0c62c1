// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"log/slog"

	"github.com/AleutianAI/AleutianUML/pkg/client"
)

// FallbackModel is offered when the server's model list is unusable.
var FallbackModel = client.Model{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", Provider: "google"}

// ModelLister is satisfied by *client.Client.
type ModelLister interface {
	Models(ctx context.Context) ([]client.Model, error)
}

// ListAvailableModels returns the server's models, de-duplicated by ID.
//
// # Description
//
// Never fails: a transport error, a malformed body, or an empty list all
// yield []client.Model{FallbackModel}. The reason is logged.
func ListAvailableModels(ctx context.Context, lister ModelLister, logger *slog.Logger) []client.Model {
	if logger == nil {
		logger = slog.Default()
	}
	models, err := lister.Models(ctx)
	if err != nil {
		logger.Warn("model list unavailable, using fallback", "error", err, "fallback", FallbackModel.ID)
		return []client.Model{FallbackModel}
	}

	seen := make(map[string]bool, len(models))
	out := make([]client.Model, 0, len(models))
	for _, m := range models {
		if m.ID == "" || seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		out = append(out, m)
	}
	if len(out) == 0 {
		logger.Warn("server returned no models, using fallback", "fallback", FallbackModel.ID)
		return []client.Model{FallbackModel}
	}
	return out
}
