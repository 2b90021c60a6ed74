package driven

import (
	"context"
)

// LLMService is the text-generation side of the generative gateway
type LLMService interface {
	// GenerateText returns the model's completion for a single prompt
	GenerateText(ctx context.Context, prompt string) (string, error)

	// GenerateFromImage runs a multimodal prompt.
	// imageBase64 is the raw base64 payload or a data URL.
	GenerateFromImage(ctx context.Context, instruction, imageBase64 string) (string, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the LLM service is available
	Ping(ctx context.Context) error

	// Close releases resources held by the LLM service
	Close() error
}
