package ai

import (
	"fmt"

	"github.com/ledgerwise/ledgerwise-core/internal/core/domain"
	"github.com/ledgerwise/ledgerwise-core/internal/core/ports/driven"
)

// Ensure Factory implements AIServiceFactory
var _ driven.AIServiceFactory = (*Factory)(nil)

// Factory creates AI services based on configuration.
// When rateLimit is enabled every created service is throttled.
type Factory struct {
	rateLimit domain.RateLimitSettings
}

// NewFactory creates a new AI service factory
func NewFactory(rateLimit domain.RateLimitSettings) *Factory {
	return &Factory{rateLimit: rateLimit}
}

// CreateEmbeddingService creates an embedding service from settings
func (f *Factory) CreateEmbeddingService(settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	var svc driven.EmbeddingService
	switch settings.Provider {
	case domain.AIProviderOpenAI:
		e, err := NewOpenAIEmbedding(settings.APIKey, settings.Model, settings.BaseURL)
		if err != nil {
			return nil, err
		}
		svc = e
	case domain.AIProviderOllama:
		svc = NewOllamaEmbedding(settings.BaseURL, settings.Model)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}

	if f.rateLimit.Enabled() {
		svc = NewRateLimitedEmbedding(svc, f.rateLimit)
	}
	return svc, nil
}

// CreateLLMService creates an LLM service from settings
func (f *Factory) CreateLLMService(settings *domain.LLMSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	var svc driven.LLMService
	switch settings.Provider {
	case domain.AIProviderOpenAI:
		l, err := NewOpenAILLM(settings.APIKey, settings.Model, settings.VisionModel, settings.BaseURL)
		if err != nil {
			return nil, err
		}
		svc = l
	case domain.AIProviderOllama:
		svc = NewOllamaLLM(settings.BaseURL, settings.Model, settings.VisionModel)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProvider, settings.Provider)
	}

	if f.rateLimit.Enabled() {
		svc = NewRateLimitedLLM(svc, f.rateLimit)
	}
	return svc, nil
}
