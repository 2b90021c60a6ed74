package ai

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/ledgerwise/ledgerwise-core/internal/core/domain"
	"github.com/ledgerwise/ledgerwise-core/internal/core/ports/driven"
)

var (
	_ driven.EmbeddingService = (*RateLimitedEmbedding)(nil)
	_ driven.LLMService       = (*RateLimitedLLM)(nil)
)

func newLimiter(cfg domain.RateLimitSettings) *rate.Limiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
}

// RateLimitedEmbedding throttles calls to the wrapped embedding service
// with a token bucket. Waiting honours ctx.
type RateLimitedEmbedding struct {
	driven.EmbeddingService
	limiter *rate.Limiter
}

// NewRateLimitedEmbedding wraps inner with a limiter built from cfg
func NewRateLimitedEmbedding(inner driven.EmbeddingService, cfg domain.RateLimitSettings) *RateLimitedEmbedding {
	return &RateLimitedEmbedding{EmbeddingService: inner, limiter: newLimiter(cfg)}
}

func (r *RateLimitedEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.EmbeddingService.Embed(ctx, texts)
}

func (r *RateLimitedEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.EmbeddingService.EmbedQuery(ctx, query)
}

// RateLimitedLLM throttles calls to the wrapped LLM service
type RateLimitedLLM struct {
	driven.LLMService
	limiter *rate.Limiter
}

// NewRateLimitedLLM wraps inner with a limiter built from cfg
func NewRateLimitedLLM(inner driven.LLMService, cfg domain.RateLimitSettings) *RateLimitedLLM {
	return &RateLimitedLLM{LLMService: inner, limiter: newLimiter(cfg)}
}

func (r *RateLimitedLLM) GenerateText(ctx context.Context, prompt string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.LLMService.GenerateText(ctx, prompt)
}

func (r *RateLimitedLLM) GenerateFromImage(ctx context.Context, instruction, imageBase64 string) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.LLMService.GenerateFromImage(ctx, instruction, imageBase64)
}
