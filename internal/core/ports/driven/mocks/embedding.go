package mocks

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	"github.com/ledgerwise/ledgerwise-core/internal/core/ports/driven"
)

var _ driven.EmbeddingService = (*MockEmbeddingService)(nil)

// MockEmbeddingService is a mock implementation of EmbeddingService for testing.
// Vectors are bag-of-words hashes, so texts sharing words score higher
// under cosine similarity.
type MockEmbeddingService struct {
	mu         sync.Mutex
	dimensions int
	model      string
	failNext   bool
	failAll    error
	gate       <-chan struct{}

	embedCalls     int
	queryCalls     int
	embeddedTexts  int
	queries        []string
	healthCheckErr error
}

// NewMockEmbeddingService creates a new MockEmbeddingService
func NewMockEmbeddingService() *MockEmbeddingService {
	return &MockEmbeddingService{
		dimensions: 384,
		model:      "mock-embedding-model",
	}
}

func (m *MockEmbeddingService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.embedCalls++
	if err := m.failure(); err != nil {
		return nil, err
	}
	m.embeddedTexts += len(texts)

	result := make([][]float32, len(texts))
	for i, text := range texts {
		result[i] = m.generateEmbedding(text)
	}
	return result, nil
}

func (m *MockEmbeddingService) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryCalls++
	m.queries = append(m.queries, query)
	if err := m.failure(); err != nil {
		return nil, err
	}
	return m.generateEmbedding(query), nil
}

func (m *MockEmbeddingService) Dimensions() int {
	return m.dimensions
}

func (m *MockEmbeddingService) Model() string {
	return m.model
}

func (m *MockEmbeddingService) HealthCheck(ctx context.Context) error {
	return m.healthCheckErr
}

func (m *MockEmbeddingService) Close() error {
	return nil
}

// wait blocks on the gate, if one is set, until it is closed
func (m *MockEmbeddingService) wait(ctx context.Context) error {
	m.mu.Lock()
	gate := m.gate
	m.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *MockEmbeddingService) failure() error {
	if m.failAll != nil {
		return m.failAll
	}
	if m.failNext {
		m.failNext = false
		return context.DeadlineExceeded
	}
	return nil
}

// generateEmbedding hashes each lowercase word into a bucket
func (m *MockEmbeddingService) generateEmbedding(text string) []float32 {
	embedding := make([]float32, m.dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		embedding[h.Sum32()%uint32(m.dimensions)]++
	}
	if len(words) == 0 {
		embedding[0] = 1
	}
	return embedding
}

// Helper methods for testing

func (m *MockEmbeddingService) SetFailNext(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = fail
}

// SetFailAll makes every call return err until cleared with nil
func (m *MockEmbeddingService) SetFailAll(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAll = err
}

// SetGate makes Embed block until gate is closed
func (m *MockEmbeddingService) SetGate(gate <-chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = gate
}

func (m *MockEmbeddingService) SetDimensions(dim int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dimensions = dim
}

func (m *MockEmbeddingService) SetHealthCheckError(err error) {
	m.healthCheckErr = err
}

// EmbedCalls returns how many batch Embed calls were made
func (m *MockEmbeddingService) EmbedCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embedCalls
}

// EmbeddedTexts returns the total number of texts passed to Embed
func (m *MockEmbeddingService) EmbeddedTexts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.embeddedTexts
}

// QueryCalls returns how many EmbedQuery calls were made
func (m *MockEmbeddingService) QueryCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queryCalls
}

// Queries returns the queries passed to EmbedQuery, in order
func (m *MockEmbeddingService) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.queries...)
}
