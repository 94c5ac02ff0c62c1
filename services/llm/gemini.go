// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
)

// DefaultGeminiModel is used when a request does not name a model.
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiClient sends images inline to the Google Generative AI API.
//
// # Description
//
// A googleai client is built for each request while the credential is
// open, since the client keeps the key it was given. The model is chosen
// per request.
//
// # Thread Safety
//
// Safe for concurrent use.
type GeminiClient struct {
	cred     *Credential
	newModel func(ctx context.Context, key string) (llms.Model, error)
}

var _ VisionClient = (*GeminiClient)(nil)

func NewGeminiClient(cred *Credential) (*GeminiClient, error) {
	if !cred.Present() {
		return nil, fmt.Errorf("gemini client: %w", ErrMissingCredential)
	}
	slog.Info("Initializing Gemini client", "default_model", DefaultGeminiModel)
	return &GeminiClient{cred: cred, newModel: newGoogleAI}, nil
}

func newGoogleAI(ctx context.Context, key string) (llms.Model, error) {
	return googleai.New(ctx,
		googleai.WithAPIKey(key),
		googleai.WithDefaultModel(DefaultGeminiModel),
	)
}

// DescribeImage implements the VisionClient interface
func (g *GeminiClient) DescribeImage(ctx context.Context, req VisionRequest) (string, error) {
	if len(req.Image.Data) == 0 {
		return "", fmt.Errorf("gemini: image %q is empty", req.Image.Name)
	}
	name := req.Model
	if name == "" {
		name = DefaultGeminiModel
	}

	content := []llms.MessageContent{{
		Role: llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{
			llms.TextPart(req.Prompt),
			llms.BinaryPart(req.Image.MIMEType, req.Image.Data),
		},
	}}

	slog.Debug("Describing image via Gemini", "model", name, "bytes", len(req.Image.Data))
	var resp *llms.ContentResponse
	err := g.cred.Use(func(key string) error {
		model, err := g.newModel(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to create gemini client: %w", err)
		}
		if c, ok := model.(io.Closer); ok {
			defer c.Close()
		}
		resp, err = model.GenerateContent(ctx, content, llms.WithModel(name))
		return err
	})
	if err != nil {
		slog.Error("Gemini API call failed", "model", name, "error", err)
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		slog.Warn("Gemini returned no choices", "model", name)
		return "", fmt.Errorf("gemini: %w", ErrNoChoices)
	}
	return resp.Choices[0].Content, nil
}
