package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledgerwise/ledgerwise-core/internal/core/ports/driven"
)

// Ensure OpenAILLM implements LLMService
var _ driven.LLMService = (*OpenAILLM)(nil)

const defaultOpenAIChatModel = "gpt-4o-mini"

// OpenAILLM implements LLMService using the chat completions API.
// Images are sent as data URLs to the vision model.
type OpenAILLM struct {
	api         *openAIClient
	model       string
	visionModel string
}

// NewOpenAILLM creates a new OpenAI LLM service.
// visionModel defaults to model.
func NewOpenAILLM(apiKey, model, visionModel, baseURL string) (*OpenAILLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		model = defaultOpenAIChatModel
	}
	if visionModel == "" {
		visionModel = model
	}
	return &OpenAILLM{
		api:         newOpenAIClient(apiKey, baseURL),
		model:       model,
		visionModel: visionModel,
	}, nil
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

// chatMessage content is either a string or a list of contentParts
type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// GenerateText sends prompt as a single user message
func (l *OpenAILLM) GenerateText(ctx context.Context, prompt string) (string, error) {
	return l.complete(ctx, l.model, chatMessage{Role: "user", Content: prompt})
}

// GenerateFromImage sends the instruction and image as one multimodal message
func (l *OpenAILLM) GenerateFromImage(ctx context.Context, instruction, imageBase64 string) (string, error) {
	if imageBase64 == "" {
		return "", fmt.Errorf("image is required")
	}
	return l.complete(ctx, l.visionModel, chatMessage{
		Role: "user",
		Content: []contentPart{
			{Type: "text", Text: instruction},
			{Type: "image_url", ImageURL: &imageURL{URL: imageDataURL(imageBase64)}},
		},
	})
}

func (l *OpenAILLM) complete(ctx context.Context, model string, msg chatMessage) (string, error) {
	var resp chatCompletionResponse
	err := l.api.post(ctx, "/chat/completions", chatCompletionRequest{
		Model:    model,
		Messages: []chatMessage{msg},
	}, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion returned")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Model returns the text model name
func (l *OpenAILLM) Model() string {
	return l.model
}

// Ping lists models to verify credentials and connectivity
func (l *OpenAILLM) Ping(ctx context.Context) error {
	return l.api.get(ctx, "/models", nil)
}

// Close releases idle connections
func (l *OpenAILLM) Close() error {
	l.api.close()
	return nil
}

// imageDataURL wraps a raw base64 payload in a data URL.
// Payloads that already are data URLs pass through.
func imageDataURL(imageBase64 string) string {
	if strings.HasPrefix(imageBase64, "data:") {
		return imageBase64
	}
	return "data:image/jpeg;base64," + imageBase64
}

// rawBase64 strips a data URL prefix, if any
func rawBase64(image string) string {
	if !strings.HasPrefix(image, "data:") {
		return image
	}
	if i := strings.Index(image, ","); i >= 0 {
		return image[i+1:]
	}
	return image
}
