package mocks

import (
	"context"
	"errors"
	"sync"

	"github.com/ledgerwise/ledgerwise-core/internal/core/ports/driven"
)

var _ driven.LLMService = (*MockLLMService)(nil)

// ErrMockGeneration is returned by MockLLMService when told to fail
var ErrMockGeneration = errors.New("mock generation failure")

// MockLLMService is a mock implementation of LLMService for testing.
// GenerateText answers with a fixed reply and records every prompt.
type MockLLMService struct {
	mu            sync.Mutex
	model         string
	reply         string
	imageAnalysis string
	failText      bool
	failImage     bool
	pingErr       error
	delay         <-chan struct{}

	prompts      []string
	images       []string
	instructions []string
}

// NewMockLLMService creates a new MockLLMService
func NewMockLLMService() *MockLLMService {
	return &MockLLMService{
		model:         "mock-llm-model",
		reply:         "Here is what your records show.",
		imageAnalysis: "A photo of a red shirt with a price tag.",
	}
}

func (m *MockLLMService) GenerateText(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	delay := m.delay
	m.mu.Unlock()
	if delay != nil {
		select {
		case <-delay:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, prompt)
	if m.failText {
		return "", ErrMockGeneration
	}
	return m.reply, nil
}

func (m *MockLLMService) GenerateFromImage(ctx context.Context, instruction, imageBase64 string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instructions = append(m.instructions, instruction)
	m.images = append(m.images, imageBase64)
	if m.failImage {
		return "", ErrMockGeneration
	}
	return m.imageAnalysis, nil
}

func (m *MockLLMService) Model() string {
	return m.model
}

func (m *MockLLMService) Ping(ctx context.Context) error {
	return m.pingErr
}

func (m *MockLLMService) Close() error {
	return nil
}

// Helper methods for testing

func (m *MockLLMService) SetReply(reply string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reply = reply
}

func (m *MockLLMService) SetImageAnalysis(analysis string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.imageAnalysis = analysis
}

func (m *MockLLMService) SetFailText(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failText = fail
}

func (m *MockLLMService) SetFailImage(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failImage = fail
}

func (m *MockLLMService) SetPingError(err error) {
	m.pingErr = err
}

// SetDelay makes GenerateText wait until ch is closed or ctx ends
func (m *MockLLMService) SetDelay(ch <-chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = ch
}

// Prompts returns every prompt passed to GenerateText
func (m *MockLLMService) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// LastPrompt returns the most recent GenerateText prompt
func (m *MockLLMService) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

// ImageCalls returns how many GenerateFromImage calls were made
func (m *MockLLMService) ImageCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.images)
}
