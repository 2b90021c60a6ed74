package domain

import "sync/atomic"

// RuntimeConfig reports which assistant capabilities are live. The session
// backend is fixed at startup; the gateway flags follow the clients held by
// the runtime registry and can flip while the process runs.
type RuntimeConfig struct {
	SessionBackend string // "redis" or "postgres"

	embedding atomic.Bool
	llm       atomic.Bool
}

func NewRuntimeConfig(sessionBackend string) *RuntimeConfig {
	return &RuntimeConfig{SessionBackend: sessionBackend}
}

func (c *RuntimeConfig) EmbeddingAvailable() bool { return c.embedding.Load() }
func (c *RuntimeConfig) LLMAvailable() bool       { return c.llm.Load() }

func (c *RuntimeConfig) SetEmbeddingAvailable(available bool) { c.embedding.Store(available) }
func (c *RuntimeConfig) SetLLMAvailable(available bool)       { c.llm.Store(available) }

// CanRetrieve reports whether user indexes can be built and searched
func (c *RuntimeConfig) CanRetrieve() bool {
	return c.EmbeddingAvailable()
}

// CanChat reports whether a grounded chat turn can complete: retrieval
// needs embeddings and the answer needs generation
func (c *RuntimeConfig) CanChat() bool {
	return c.EmbeddingAvailable() && c.LLMAvailable()
}
