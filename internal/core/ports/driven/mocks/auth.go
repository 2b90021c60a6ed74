package mocks

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/ledgerwise/ledgerwise-core/internal/core/domain"
	"github.com/ledgerwise/ledgerwise-core/internal/core/ports/driven"
)

// Ensure MockAuthAdapter implements AuthAdapter
var _ driven.AuthAdapter = (*MockAuthAdapter)(nil)

const (
	mockHashPrefix  = "plain:"
	mockTokenPrefix = "mock."
)

// MockAuthAdapter stores passwords as "plain:<password>" and encodes claims
// as "mock.<base64 JSON>". Not secure; tests only.
type MockAuthAdapter struct {
	mu     sync.Mutex
	issued int
}

// NewMockAuthAdapter creates a new MockAuthAdapter
func NewMockAuthAdapter() *MockAuthAdapter {
	return &MockAuthAdapter{}
}

// MockHash is the stored form of password under MockAuthAdapter
func MockHash(password string) string {
	return mockHashPrefix + password
}

// HashPassword prefixes the password
func (m *MockAuthAdapter) HashPassword(password string) (string, error) {
	return MockHash(password), nil
}

// VerifyPassword compares against the prefixed form
func (m *MockAuthAdapter) VerifyPassword(password, hash string) bool {
	return hash == MockHash(password)
}

// GenerateToken encodes claims without signing them
func (m *MockAuthAdapter) GenerateToken(claims *domain.TokenClaims) (string, error) {
	data, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("failed to marshal claims: %w", err)
	}

	m.mu.Lock()
	m.issued++
	m.mu.Unlock()

	return mockTokenPrefix + base64.RawURLEncoding.EncodeToString(data), nil
}

// ParseToken decodes a token produced by GenerateToken
func (m *MockAuthAdapter) ParseToken(token string) (*domain.TokenClaims, error) {
	payload, ok := strings.CutPrefix(token, mockTokenPrefix)
	if !ok {
		return nil, domain.ErrTokenInvalid
	}
	data, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil, domain.ErrTokenInvalid
	}

	var claims domain.TokenClaims
	if err := json.Unmarshal(data, &claims); err != nil {
		return nil, domain.ErrTokenInvalid
	}
	return &claims, nil
}

// Issued counts tokens generated so far
func (m *MockAuthAdapter) Issued() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.issued
}
