// Package runtime holds the generative gateway clients the assistant uses.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ledgerwise/ledgerwise-core/internal/core/domain"
	"github.com/ledgerwise/ledgerwise-core/internal/core/ports/driven"
)

// slot holds one swappable gateway client. Replacing or clearing the client
// closes the previous one and reports availability through onChange.
type slot[T interface{ Close() error }] struct {
	mu       sync.RWMutex
	svc      T
	set      bool
	label    string
	onChange func(bool)
}

func (s *slot[T]) get() (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.svc, s.set
}

func (s *slot[T]) require() (T, error) {
	svc, ok := s.get()
	if !ok {
		return svc, fmt.Errorf("%s not configured: %w", s.label, domain.ErrServiceUnavailable)
	}
	return svc, nil
}

func (s *slot[T]) swap(svc T, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.set && (!ok || any(s.svc) != any(svc)) {
		_ = s.svc.Close()
	}
	s.svc, s.set = svc, ok
	s.onChange(ok)
}

// Services holds the embedding and generation clients behind the AI
// gateway. Clients can be swapped while requests are in flight, so callers
// look them up per operation.
type Services struct {
	config *domain.RuntimeConfig

	embedding slot[driven.EmbeddingService]
	llm       slot[driven.LLMService]

	reconnectMu sync.Mutex
	factory     GatewayFactory
}

// GatewayFactory creates fresh gateway clients. Reconnect uses it to replace
// clients that failed their health check.
type GatewayFactory struct {
	Embedding func() (driven.EmbeddingService, error)
	LLM       func() (driven.LLMService, error)
}

func NewServices(config *domain.RuntimeConfig) *Services {
	s := &Services{config: config}
	s.embedding = slot[driven.EmbeddingService]{label: "embedding service", onChange: config.SetEmbeddingAvailable}
	s.llm = slot[driven.LLMService]{label: "llm service", onChange: config.SetLLMAvailable}
	return s
}

// Config exposes the capability flags shown by the assistant status route
func (s *Services) Config() *domain.RuntimeConfig {
	return s.config
}

// EmbeddingService returns the current client or nil
func (s *Services) EmbeddingService() driven.EmbeddingService {
	svc, _ := s.embedding.get()
	return svc
}

// LLMService returns the current client or nil
func (s *Services) LLMService() driven.LLMService {
	svc, _ := s.llm.get()
	return svc
}

// RequireEmbedding fails with domain.ErrServiceUnavailable when no
// embedding client is configured
func (s *Services) RequireEmbedding() (driven.EmbeddingService, error) {
	return s.embedding.require()
}

// RequireLLM fails with domain.ErrServiceUnavailable when no generation
// client is configured
func (s *Services) RequireLLM() (driven.LLMService, error) {
	return s.llm.require()
}

// SetEmbeddingService installs svc, closing any client it replaces. nil clears it.
func (s *Services) SetEmbeddingService(svc driven.EmbeddingService) {
	s.embedding.swap(svc, svc != nil)
}

// SetLLMService installs svc, closing any client it replaces. nil clears it.
func (s *Services) SetLLMService(svc driven.LLMService) {
	s.llm.swap(svc, svc != nil)
}

// ValidateAndSetEmbedding installs svc only after its health check passes.
// A failing client is closed and the current one stays in place.
func (s *Services) ValidateAndSetEmbedding(ctx context.Context, svc driven.EmbeddingService) error {
	if svc != nil {
		if err := svc.HealthCheck(ctx); err != nil {
			_ = svc.Close()
			return fmt.Errorf("embedding health check: %w", err)
		}
	}
	s.SetEmbeddingService(svc)
	return nil
}

// ValidateAndSetLLM is ValidateAndSetEmbedding for the generation client
func (s *Services) ValidateAndSetLLM(ctx context.Context, svc driven.LLMService) error {
	if svc != nil {
		if err := svc.Ping(ctx); err != nil {
			_ = svc.Close()
			return fmt.Errorf("llm ping: %w", err)
		}
	}
	s.SetLLMService(svc)
	return nil
}

// SetGatewayFactory configures how Reconnect builds replacement clients
func (s *Services) SetGatewayFactory(f GatewayFactory) {
	s.reconnectMu.Lock()
	defer s.reconnectMu.Unlock()
	s.factory = f
}

// Reconnect builds and validates a client for every capability that has
// none installed. Installed clients are left alone. It returns the labels
// of the capabilities it restored.
func (s *Services) Reconnect(ctx context.Context) ([]string, error) {
	s.reconnectMu.Lock()
	defer s.reconnectMu.Unlock()

	var restored []string
	var errs []error

	if _, ok := s.embedding.get(); !ok && s.factory.Embedding != nil {
		svc, err := s.factory.Embedding()
		if err == nil {
			err = s.ValidateAndSetEmbedding(ctx, svc)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("reconnect %s: %w", s.embedding.label, err))
		} else {
			restored = append(restored, s.embedding.label)
		}
	}

	if _, ok := s.llm.get(); !ok && s.factory.LLM != nil {
		svc, err := s.factory.LLM()
		if err == nil {
			err = s.ValidateAndSetLLM(ctx, svc)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("reconnect %s: %w", s.llm.label, err))
		} else {
			restored = append(restored, s.llm.label)
		}
	}

	return restored, errors.Join(errs...)
}

// Close releases both clients and marks every capability unavailable
func (s *Services) Close() error {
	s.SetEmbeddingService(nil)
	s.SetLLMService(nil)
	return nil
}
