package llm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"

	"github.com/AleutianAI/AleutianUML/pkg/imaging"
)

const (
	GroqBaseURL   = "https://api.groq.com/openai/v1"
	GitHubBaseURL = "https://models.inference.ai.azure.com"

	// GitHubPersona is the system prompt sent to GitHub Models.
	GitHubPersona = "You are a helpful assistant that specializes in converting UML diagrams to PlantUML notation."
)

// OpenAICompatConfig describes an OpenAI-compatible chat completions
// endpoint that accepts image_url content parts.
type OpenAICompatConfig struct {
	Name        string
	BaseURL     string
	System      string
	Detail      openai.ImageURLDetail
	Temperature float32
	MaxTokens   int
	HTTPClient  openai.HTTPDoer
}

// GroqConfig returns the Groq endpoint settings.
func GroqConfig() OpenAICompatConfig {
	return OpenAICompatConfig{
		Name:      "groq",
		BaseURL:   GroqBaseURL,
		MaxTokens: 2000,
	}
}

// GitHubConfig returns the GitHub Models endpoint settings.
func GitHubConfig() OpenAICompatConfig {
	return OpenAICompatConfig{
		Name:        "github",
		BaseURL:     GitHubBaseURL,
		System:      GitHubPersona,
		Detail:      openai.ImageURLDetailHigh,
		Temperature: 0.7,
		MaxTokens:   1500,
	}
}

// OpenAICompatClient sends images as data URLs to an OpenAI-compatible
// chat completions API.
type OpenAICompatClient struct {
	cfg  OpenAICompatConfig
	cred *Credential
}

var _ VisionClient = (*OpenAICompatClient)(nil)

func NewOpenAICompatClient(cfg OpenAICompatConfig, cred *Credential) (*OpenAICompatClient, error) {
	if !cred.Present() {
		return nil, fmt.Errorf("%s client: %w", cfg.Name, ErrMissingCredential)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%s client: base URL is required", cfg.Name)
	}
	slog.Info("Initializing OpenAI-compatible client", "provider", cfg.Name, "base_url", cfg.BaseURL)
	return &OpenAICompatClient{cfg: cfg, cred: cred}, nil
}

// DescribeImage implements the VisionClient interface
func (o *OpenAICompatClient) DescribeImage(ctx context.Context, req VisionRequest) (string, error) {
	dataURL, err := imaging.DataURL(req.Image)
	if err != nil {
		return "", err
	}

	var messages []openai.ChatCompletionMessage
	if o.cfg.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: o.cfg.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
			{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: dataURL, Detail: o.cfg.Detail},
			},
		},
	})

	chatReq := openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   o.cfg.MaxTokens,
		Temperature: o.cfg.Temperature,
	}

	slog.Debug("Describing image via OpenAI-compatible API", "provider", o.cfg.Name, "model", req.Model)
	var resp openai.ChatCompletionResponse
	err = o.cred.Use(func(key string) error {
		var callErr error
		resp, callErr = o.client(key).CreateChatCompletion(ctx, chatReq)
		return callErr
	})
	if err != nil {
		slog.Error("OpenAI-compatible API call failed", "provider", o.cfg.Name, "error", err)
		return "", fmt.Errorf("%s API call failed: %w", o.cfg.Name, err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("OpenAI-compatible API returned no choices", "provider", o.cfg.Name)
		return "", fmt.Errorf("%s: %w", o.cfg.Name, ErrNoChoices)
	}
	slog.Debug("Received response", "provider", o.cfg.Name, "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}

func (o *OpenAICompatClient) client(key string) *openai.Client {
	cfg := openai.DefaultConfig(key)
	cfg.BaseURL = o.cfg.BaseURL
	if o.cfg.HTTPClient != nil {
		cfg.HTTPClient = o.cfg.HTTPClient
	}
	return openai.NewClientWithConfig(cfg)
}
