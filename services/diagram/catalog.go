// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package diagram turns images of UML class diagrams into PlantUML through
// multimodal model providers.
package diagram

import (
	"fmt"
	"strings"
)

// Provider identifies the company hosting a model.
type Provider string

const (
	ProviderGoogle Provider = "Google"
	ProviderGroq   Provider = "Groq"
	ProviderGitHub Provider = "GitHub"
)

// Providers lists every supported provider in catalog order.
func Providers() []Provider {
	return []Provider{ProviderGoogle, ProviderGroq, ProviderGitHub}
}

// Model is one selectable multimodal model.
type Model struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Provider Provider `json:"provider"`
}

// Catalog is an ordered table of models.
type Catalog []Model

// DefaultCatalog is the fixed table of models the server knows about.
var DefaultCatalog = Catalog{
	{ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro", Provider: ProviderGoogle},
	{ID: "gemini-1.5-flash", Name: "Gemini 1.5 Flash", Provider: ProviderGoogle},
	{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", Provider: ProviderGoogle},
	{ID: "meta-llama/llama-4-scout-17b-16e-instruct", Name: "Llama 4 Scout", Provider: ProviderGroq},
	{ID: "meta-llama/llama-4-maverick-17b-128e-instruct", Name: "Llama 4 Maverick", Provider: ProviderGroq},
	{ID: "gpt-4o", Name: "GPT-4o", Provider: ProviderGitHub},
}

// DefaultValidationModel classifies images when the requested model's
// provider is not configured.
const DefaultValidationModel = "gemini-2.0-flash"

// Available returns the models whose provider is configured, de-duplicated
// by ID, in table order.
func (c Catalog) Available(configured map[Provider]bool) []Model {
	seen := make(map[string]bool, len(c))
	out := make([]Model, 0, len(c))
	for _, m := range c {
		if !configured[m.Provider] || seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		out = append(out, m)
	}
	return out
}

// Lookup finds a model by ID.
func (c Catalog) Lookup(id string) (Model, bool) {
	for _, m := range c {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}

// ===== Errors =====

// UnsupportedModelError is returned for model IDs no provider serves.
type UnsupportedModelError struct {
	Model string
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("unsupported model: %s", e.Model)
}

// ProviderUnavailableError is returned when a model's provider has no
// credential configured.
type ProviderUnavailableError struct {
	Provider Provider
	Model    string
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("provider %s is not configured for model %s", e.Provider, e.Model)
}

// ResolveProvider maps a model ID to its provider: catalog membership
// first, then ID prefix rules. It never defaults.
func ResolveProvider(modelID string) (Provider, error) {
	id := strings.TrimSpace(modelID)
	if m, ok := DefaultCatalog.Lookup(id); ok {
		return m.Provider, nil
	}
	switch {
	case strings.HasPrefix(id, "gemini-"):
		return ProviderGoogle, nil
	case strings.HasPrefix(id, "meta-llama/"), strings.HasPrefix(id, "llama-"):
		return ProviderGroq, nil
	case strings.HasPrefix(id, "gpt-"):
		return ProviderGitHub, nil
	}
	return "", &UnsupportedModelError{Model: modelID}
}

// ReadableModelName returns the display name for a model ID, or the ID
// itself when the catalog does not know it.
func ReadableModelName(modelID string) string {
	if m, ok := DefaultCatalog.Lookup(modelID); ok {
		return m.Name
	}
	return modelID
}
