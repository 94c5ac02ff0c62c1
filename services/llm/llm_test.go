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
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/AleutianAI/AleutianUML/pkg/imaging"
)

var testImage = imaging.Image{Name: "d.png", MIMEType: "image/png", Data: []byte("\x89PNG fake")}

// ===== Credential =====

func TestCredential(t *testing.T) {
	empty := NewCredential("gemini", "  ")
	assert.False(t, empty.Present())
	err := empty.Use(func(string) error { return nil })
	assert.True(t, errors.Is(err, ErrMissingCredential))

	var nilCred *Credential
	assert.False(t, nilCred.Present())

	cred := NewCredential("groq", " secret-key \n")
	require.True(t, cred.Present())
	assert.Equal(t, "groq", cred.Name())
	require.NoError(t, cred.Use(func(key string) error {
		assert.Equal(t, "secret-key", key)
		return nil
	}))

	boom := errors.New("boom")
	assert.Equal(t, boom, cred.Use(func(string) error { return boom }))
}

func TestLoadCredentialFromSecrets(t *testing.T) {
	dir := t.TempDir()
	old := SecretsDir
	SecretsDir = dir
	t.Cleanup(func() { SecretsDir = old })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "github_token"), []byte("from-file\n"), 0o600))

	fromFile := LoadCredential("github", "", "github_token")
	require.True(t, fromFile.Present())
	_ = fromFile.Use(func(key string) error {
		assert.Equal(t, "from-file", key)
		return nil
	})

	fromValue := LoadCredential("github", "from-env", "github_token")
	_ = fromValue.Use(func(key string) error {
		assert.Equal(t, "from-env", key)
		return nil
	})

	assert.False(t, LoadCredential("groq", "", "groq_api_key").Present())
	assert.False(t, LoadCredential("groq", "", "").Present())
}

// ===== OpenAI-compatible =====

type chatCapture struct {
	auth string
	body map[string]any
}

func chatServer(t *testing.T, capture *chatCapture, status int, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		capture.auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&capture.body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const okReply = `{"id":"c1","object":"chat.completion","model":"m",
	"choices":[{"index":0,"message":{"role":"assistant","content":"@startuml\nclass Foo\n@enduml"},"finish_reason":"stop"}]}`

func TestOpenAICompatGroq(t *testing.T) {
	var capture chatCapture
	srv := chatServer(t, &capture, http.StatusOK, okReply)

	cfg := GroqConfig()
	assert.Equal(t, GroqBaseURL, cfg.BaseURL)
	cfg.BaseURL = srv.URL
	client, err := NewOpenAICompatClient(cfg, NewCredential("groq", "gsk-test"))
	require.NoError(t, err)

	out, err := client.DescribeImage(context.Background(), VisionRequest{
		Model:  "meta-llama/llama-4-scout-17b-16e-instruct",
		Prompt: "convert",
		Image:  testImage,
	})
	require.NoError(t, err)
	assert.Equal(t, "@startuml\nclass Foo\n@enduml", out)

	assert.Equal(t, "Bearer gsk-test", capture.auth)
	assert.Equal(t, "meta-llama/llama-4-scout-17b-16e-instruct", capture.body["model"])
	assert.EqualValues(t, 2000, capture.body["max_tokens"])
	messages := capture.body["messages"].([]any)
	require.Len(t, messages, 1)
	user := messages[0].(map[string]any)
	assert.Equal(t, "user", user["role"])
	parts := user["content"].([]any)
	require.Len(t, parts, 2)
	assert.Equal(t, "convert", parts[0].(map[string]any)["text"])
	imageURL := parts[1].(map[string]any)["image_url"].(map[string]any)
	assert.Contains(t, imageURL["url"], "data:image/png;base64,")
}

func TestOpenAICompatGitHub(t *testing.T) {
	var capture chatCapture
	srv := chatServer(t, &capture, http.StatusOK, okReply)

	cfg := GitHubConfig()
	assert.Equal(t, GitHubBaseURL, cfg.BaseURL)
	cfg.BaseURL = srv.URL
	client, err := NewOpenAICompatClient(cfg, NewCredential("github", "ghp-test"))
	require.NoError(t, err)

	_, err = client.DescribeImage(context.Background(), VisionRequest{Model: "gpt-4o", Prompt: "convert", Image: testImage})
	require.NoError(t, err)

	assert.EqualValues(t, 1500, capture.body["max_tokens"])
	assert.InDelta(t, 0.7, capture.body["temperature"], 0.001)
	messages := capture.body["messages"].([]any)
	require.Len(t, messages, 2)
	system := messages[0].(map[string]any)
	assert.Equal(t, "system", system["role"])
	assert.Equal(t, GitHubPersona, system["content"])
	parts := messages[1].(map[string]any)["content"].([]any)
	imageURL := parts[1].(map[string]any)["image_url"].(map[string]any)
	assert.Equal(t, "high", imageURL["detail"])
}

func TestOpenAICompatErrors(t *testing.T) {
	_, err := NewOpenAICompatClient(GroqConfig(), NewCredential("groq", ""))
	assert.True(t, errors.Is(err, ErrMissingCredential))

	var capture chatCapture
	empty := chatServer(t, &capture, http.StatusOK, `{"id":"c1","object":"chat.completion","choices":[]}`)
	cfg := GroqConfig()
	cfg.BaseURL = empty.URL
	client, err := NewOpenAICompatClient(cfg, NewCredential("groq", "k"))
	require.NoError(t, err)
	_, err = client.DescribeImage(context.Background(), VisionRequest{Model: "m", Image: testImage})
	assert.True(t, errors.Is(err, ErrNoChoices))

	failing := chatServer(t, &capture, http.StatusInternalServerError, `{"error":{"message":"upstream down"}}`)
	cfg.BaseURL = failing.URL
	client, err = NewOpenAICompatClient(cfg, NewCredential("groq", "k"))
	require.NoError(t, err)
	_, err = client.DescribeImage(context.Background(), VisionRequest{Model: "m", Image: testImage})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "groq API call failed")

	_, err = client.DescribeImage(context.Background(), VisionRequest{Model: "m"})
	var encErr *imaging.EncodingError
	assert.ErrorAs(t, err, &encErr)
}

// ===== Gemini =====

type fakeModel struct {
	builds   int
	key      string
	seenKeys []string
	calls    int
	closed   int
	messages []llms.MessageContent
	opts     llms.CallOptions
	reply    *llms.ContentResponse
	err      error
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.calls++
	// The key is only readable while the credential is open.
	f.seenKeys = append(f.seenKeys, strings.Clone(f.key))
	f.messages = messages
	for _, o := range options {
		o(&f.opts)
	}
	return f.reply, f.err
}

func (f *fakeModel) Close() error {
	f.closed++
	return nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func newFakeGemini(t *testing.T, model *fakeModel) *GeminiClient {
	t.Helper()
	client, err := NewGeminiClient(NewCredential("gemini", "AIza-test"))
	require.NoError(t, err)
	client.newModel = func(_ context.Context, key string) (llms.Model, error) {
		model.builds++
		model.key = key
		return model, nil
	}
	return client
}

func TestGeminiDescribeImage(t *testing.T) {
	model := &fakeModel{reply: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: " yes "}}}}
	client := newFakeGemini(t, model)

	out, err := client.DescribeImage(context.Background(), VisionRequest{Model: "gemini-1.5-pro", Prompt: "is it?", Image: testImage})
	require.NoError(t, err)
	assert.Equal(t, " yes ", out)
	assert.Equal(t, "gemini-1.5-pro", model.opts.Model)

	require.Len(t, model.messages, 1)
	parts := model.messages[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, llms.TextPart("is it?"), parts[0])
	binary, ok := parts[1].(llms.BinaryContent)
	require.True(t, ok)
	assert.Equal(t, "image/png", binary.MIMEType)
	assert.Equal(t, testImage.Data, binary.Data)

	_, err = client.DescribeImage(context.Background(), VisionRequest{Prompt: "again", Image: testImage})
	require.NoError(t, err)
	assert.Equal(t, DefaultGeminiModel, model.opts.Model)
	assert.Equal(t, 2, model.calls)
	assert.Equal(t, 2, model.builds, "a client is built per request")
	assert.Equal(t, 2, model.closed)
	assert.Equal(t, []string{"AIza-test", "AIza-test"}, model.seenKeys)
}

func TestGeminiBuildFailure(t *testing.T) {
	client, err := NewGeminiClient(NewCredential("gemini", "AIza-test"))
	require.NoError(t, err)
	client.newModel = func(context.Context, string) (llms.Model, error) {
		return nil, errors.New("bad key")
	}
	_, err = client.DescribeImage(context.Background(), VisionRequest{Image: testImage})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create gemini client")
}

func TestGeminiErrors(t *testing.T) {
	_, err := NewGeminiClient(nil)
	assert.True(t, errors.Is(err, ErrMissingCredential))

	model := &fakeModel{reply: &llms.ContentResponse{}}
	client := newFakeGemini(t, model)
	_, err = client.DescribeImage(context.Background(), VisionRequest{Image: testImage})
	assert.True(t, errors.Is(err, ErrNoChoices))

	model.err = errors.New("quota exceeded")
	_, err = client.DescribeImage(context.Background(), VisionRequest{Image: testImage})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")

	_, err = client.DescribeImage(context.Background(), VisionRequest{})
	assert.Error(t, err)
}
