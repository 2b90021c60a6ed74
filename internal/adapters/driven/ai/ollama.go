package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ledgerwise/ledgerwise-core/internal/core/ports/driven"
)

var (
	_ driven.EmbeddingService = (*OllamaEmbedding)(nil)
	_ driven.LLMService       = (*OllamaLLM)(nil)
)

const (
	defaultOllamaBaseURL        = "http://localhost:11434"
	defaultOllamaEmbeddingModel = "nomic-embed-text"
	defaultOllamaLLMModel       = "llama3.2"
	defaultOllamaTimeout        = 5 * time.Minute
)

func newOllamaClient(baseURL string) *resty.Client {
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	return resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(defaultOllamaTimeout)
}

type ollamaError struct {
	Error string `json:"error"`
}

func ollamaStatusError(resp *resty.Response) error {
	if e, ok := resp.Error().(*ollamaError); ok && e.Error != "" {
		return fmt.Errorf("ollama status %d: %s", resp.StatusCode(), e.Error)
	}
	return fmt.Errorf("ollama status %d", resp.StatusCode())
}

// ollamaPing checks the server answers and has every model pulled
func ollamaPing(ctx context.Context, client *resty.Client, models ...string) error {
	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	resp, err := client.R().
		SetContext(ctx).
		SetResult(&tags).
		SetError(&ollamaError{}).
		Get("/api/tags")
	if err != nil {
		return fmt.Errorf("ollama request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return ollamaStatusError(resp)
	}

	pulled := make(map[string]bool, len(tags.Models))
	for _, m := range tags.Models {
		pulled[baseModelName(m.Name)] = true
	}
	for _, model := range models {
		if want := baseModelName(model); !pulled[want] {
			return fmt.Errorf("model %s not found", want)
		}
	}
	return nil
}

// baseModelName drops the tag from "name:tag"
func baseModelName(name string) string {
	return strings.SplitN(name, ":", 2)[0]
}

// OllamaEmbedding implements EmbeddingService against a local Ollama server
type OllamaEmbedding struct {
	client     *resty.Client
	model      string
	dimensions atomic.Int64
}

// NewOllamaEmbedding creates a new Ollama embedding service
func NewOllamaEmbedding(baseURL, model string) *OllamaEmbedding {
	if model == "" {
		model = defaultOllamaEmbeddingModel
	}
	e := &OllamaEmbedding{
		client: newOllamaClient(baseURL),
		model:  model,
	}
	e.dimensions.Store(768)
	return e
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed generates embeddings for multiple texts in one /api/embed call
func (e *OllamaEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var out ollamaEmbedResponse
	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(ollamaEmbedRequest{Model: e.model, Input: texts}).
		SetResult(&out).
		SetError(&ollamaError{}).
		Post("/api/embed")
	if err != nil {
		return nil, fmt.Errorf("ollama request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, ollamaStatusError(resp)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(out.Embeddings), len(texts))
	}
	if n := len(out.Embeddings[0]); n > 0 {
		e.dimensions.Store(int64(n))
	}
	return out.Embeddings, nil
}

// EmbedQuery generates an embedding for a retrieval query
func (e *OllamaEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	embeddings, err := e.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// Dimensions returns the last observed vector size
func (e *OllamaEmbedding) Dimensions() int {
	return int(e.dimensions.Load())
}

func (e *OllamaEmbedding) Model() string {
	return e.model
}

func (e *OllamaEmbedding) HealthCheck(ctx context.Context) error {
	return ollamaPing(ctx, e.client, e.model)
}

func (e *OllamaEmbedding) Close() error {
	return nil
}

// OllamaLLM implements LLMService using /api/generate.
// Multimodal models accept images on the same endpoint.
type OllamaLLM struct {
	client      *resty.Client
	model       string
	visionModel string
}

// NewOllamaLLM creates a new Ollama LLM service.
// visionModel defaults to model.
func NewOllamaLLM(baseURL, model, visionModel string) *OllamaLLM {
	if model == "" {
		model = defaultOllamaLLMModel
	}
	if visionModel == "" {
		visionModel = model
	}
	return &OllamaLLM{
		client:      newOllamaClient(baseURL),
		model:       model,
		visionModel: visionModel,
	}
}

type ollamaGenerateRequest struct {
	Model  string   `json:"model"`
	Prompt string   `json:"prompt"`
	Images []string `json:"images,omitempty"`
	Stream bool     `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (l *OllamaLLM) GenerateText(ctx context.Context, prompt string) (string, error) {
	return l.generate(ctx, ollamaGenerateRequest{Model: l.model, Prompt: prompt})
}

func (l *OllamaLLM) GenerateFromImage(ctx context.Context, instruction, imageBase64 string) (string, error) {
	if imageBase64 == "" {
		return "", fmt.Errorf("image is required")
	}
	return l.generate(ctx, ollamaGenerateRequest{
		Model:  l.visionModel,
		Prompt: instruction,
		Images: []string{rawBase64(imageBase64)},
	})
}

func (l *OllamaLLM) generate(ctx context.Context, body ollamaGenerateRequest) (string, error) {
	var out ollamaGenerateResponse
	resp, err := l.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&ollamaError{}).
		Post("/api/generate")
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", ollamaStatusError(resp)
	}
	return strings.TrimSpace(out.Response), nil
}

func (l *OllamaLLM) Model() string {
	return l.model
}

// Ping requires both the text and the vision model to be pulled
func (l *OllamaLLM) Ping(ctx context.Context) error {
	if l.visionModel == l.model {
		return ollamaPing(ctx, l.client, l.model)
	}
	return ollamaPing(ctx, l.client, l.model, l.visionModel)
}

func (l *OllamaLLM) Close() error {
	return nil
}
