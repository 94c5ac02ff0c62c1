package llm

import (
	"context"
	"errors"

	"github.com/AleutianAI/AleutianUML/pkg/imaging"
)

// ErrNoChoices is returned when a provider answers without any candidate text.
var ErrNoChoices = errors.New("provider returned no choices")

// VisionRequest is a single image-plus-prompt inference call.
type VisionRequest struct {
	Model  string
	Prompt string
	Image  imaging.Image
}

// VisionClient defines the standard interface for any multimodal backend
type VisionClient interface {
	DescribeImage(ctx context.Context, req VisionRequest) (string, error)
}
