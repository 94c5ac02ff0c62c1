// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diagram

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianUML/pkg/imaging"
	"github.com/AleutianAI/AleutianUML/services/llm"
)

type fakeVision struct {
	reply string
	err   error
	reqs  []llm.VisionRequest
}

func (f *fakeVision) DescribeImage(_ context.Context, req llm.VisionRequest) (string, error) {
	f.reqs = append(f.reqs, req)
	return f.reply, f.err
}

var img = imaging.Image{Name: "d.png", MIMEType: "image/png", Data: []byte("png")}

func TestCatalogAvailable(t *testing.T) {
	assert.Empty(t, DefaultCatalog.Available(nil))

	google := DefaultCatalog.Available(map[Provider]bool{ProviderGoogle: true})
	require.Len(t, google, 3)
	assert.Equal(t, "gemini-1.5-pro", google[0].ID)
	assert.Equal(t, "gemini-2.0-flash", google[2].ID)

	all := DefaultCatalog.Available(map[Provider]bool{ProviderGoogle: true, ProviderGroq: true, ProviderGitHub: true})
	assert.Len(t, all, len(DefaultCatalog))
	assert.Equal(t, "gpt-4o", all[len(all)-1].ID)

	dup := Catalog{
		{ID: "gpt-4o", Name: "GPT-4o", Provider: ProviderGitHub},
		{ID: "gpt-4o", Name: "GPT-4o again", Provider: ProviderGitHub},
	}
	got := dup.Available(map[Provider]bool{ProviderGitHub: true})
	require.Len(t, got, 1)
	assert.Equal(t, "GPT-4o", got[0].Name)
}

func TestResolveProvider(t *testing.T) {
	tests := []struct {
		id   string
		want Provider
	}{
		{"gemini-1.5-pro", ProviderGoogle},
		{"gemini-2.5-pro-exp", ProviderGoogle},
		{"meta-llama/llama-4-scout-17b-16e-instruct", ProviderGroq},
		{"llama-3.2-90b-vision-preview", ProviderGroq},
		{"gpt-4o", ProviderGitHub},
		{"gpt-4o-mini", ProviderGitHub},
	}
	for _, tt := range tests {
		got, err := ResolveProvider(tt.id)
		require.NoError(t, err, tt.id)
		assert.Equal(t, tt.want, got, tt.id)
	}

	for _, id := range []string{"", "claude-3", "mistral-large"} {
		_, err := ResolveProvider(id)
		var unsupported *UnsupportedModelError
		require.ErrorAs(t, err, &unsupported, id)
		assert.Equal(t, id, unsupported.Model)
	}
}

func TestReadableModelName(t *testing.T) {
	assert.Equal(t, "Gemini 2.0 Flash", ReadableModelName("gemini-2.0-flash"))
	assert.Equal(t, "Llama 4 Maverick", ReadableModelName("meta-llama/llama-4-maverick-17b-128e-instruct"))
	assert.Equal(t, "custom-model", ReadableModelName("custom-model"))
}

func TestServiceModels(t *testing.T) {
	svc := NewService(ServiceConfig{Clients: map[Provider]llm.VisionClient{
		ProviderGroq:   &fakeVision{},
		ProviderGitHub: nil,
	}})
	models := svc.Models()
	require.Len(t, models, 2)
	assert.Equal(t, ProviderGroq, models[0].Provider)
	assert.True(t, svc.Configured(ProviderGroq))
	assert.False(t, svc.Configured(ProviderGitHub))

	models[0].Name = "mutated"
	assert.NotEqual(t, "mutated", svc.Models()[0].Name)
}

func TestServiceExtract(t *testing.T) {
	groq := &fakeVision{reply: "@startuml\nclass Foo\n@enduml"}
	svc := NewService(ServiceConfig{Clients: map[Provider]llm.VisionClient{ProviderGroq: groq}})

	out, err := svc.Extract(context.Background(), "meta-llama/llama-4-scout-17b-16e-instruct", img)
	require.NoError(t, err)
	assert.Equal(t, "@startuml\nclass Foo\n@enduml", out)
	require.Len(t, groq.reqs, 1)
	assert.Equal(t, ExtractionPrompt, groq.reqs[0].Prompt)
	assert.Equal(t, img, groq.reqs[0].Image)

	_, err = svc.Extract(context.Background(), "gemini-1.5-pro", img)
	var unavailable *ProviderUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, ProviderGoogle, unavailable.Provider)

	_, err = svc.Extract(context.Background(), "claude-3", img)
	var unsupported *UnsupportedModelError
	assert.ErrorAs(t, err, &unsupported)

	boom := errors.New("rate limited")
	groq.err = boom
	_, err = svc.Extract(context.Background(), "meta-llama/llama-4-scout-17b-16e-instruct", img)
	assert.True(t, errors.Is(err, boom))
	assert.Contains(t, err.Error(), "Llama 4 Scout")
	assert.Len(t, groq.reqs, 2, "no automatic retries")
}

func TestServiceValidate(t *testing.T) {
	google := &fakeVision{reply: "  Yes\n"}
	github := &fakeVision{reply: "no"}
	svc := NewService(ServiceConfig{Clients: map[Provider]llm.VisionClient{
		ProviderGoogle: google,
		ProviderGitHub: github,
	}})

	ok, err := svc.Validate(context.Background(), "gemini-1.5-flash", img)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "gemini-1.5-flash", google.reqs[0].Model)
	assert.Equal(t, ValidationPrompt, google.reqs[0].Prompt)

	ok, err = svc.Validate(context.Background(), "gpt-4o", img)
	require.NoError(t, err)
	assert.False(t, ok)

	// Groq is not configured, so the validation model answers instead.
	_, err = svc.Validate(context.Background(), "meta-llama/llama-4-scout-17b-16e-instruct", img)
	require.NoError(t, err)
	assert.Equal(t, DefaultValidationModel, google.reqs[len(google.reqs)-1].Model)

	google.err = errors.New("down")
	ok, err = svc.Validate(context.Background(), "gemini-2.0-flash", img)
	assert.Error(t, err)
	assert.False(t, ok)

	empty := NewService(ServiceConfig{})
	_, err = empty.Validate(context.Background(), "gpt-4o", img)
	var unavailable *ProviderUnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestIsAffirmative(t *testing.T) {
	for _, s := range []string{"yes", "YES", " Yes \n"} {
		assert.True(t, IsAffirmative(s), s)
	}
	for _, s := range []string{"no", "", "yes.", "Yes, it is"} {
		assert.False(t, IsAffirmative(s), s)
	}
}
