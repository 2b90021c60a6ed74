package mocks

import (
	"context"
	"sync"

	"github.com/ledgerwise/ledgerwise-core/internal/core/domain"
	"github.com/ledgerwise/ledgerwise-core/internal/core/ports/driven"
)

var _ driven.RecordSource = (*MockRecordSource)(nil)

// MockRecordSource is an in-memory RecordSource for testing.
// Unknown users get an empty record set.
type MockRecordSource struct {
	mu      sync.RWMutex
	records map[string]*domain.UserRecordSet
	err     error
	fetches map[string]int
	limits  []int
}

// NewMockRecordSource creates a new MockRecordSource
func NewMockRecordSource() *MockRecordSource {
	return &MockRecordSource{
		records: make(map[string]*domain.UserRecordSet),
		fetches: make(map[string]int),
	}
}

func (m *MockRecordSource) FetchUserRecords(ctx context.Context, userID string, limit int) (*domain.UserRecordSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches[userID]++
	m.limits = append(m.limits, limit)
	if m.err != nil {
		return nil, m.err
	}

	set, ok := m.records[userID]
	if !ok {
		return &domain.UserRecordSet{UserID: userID}, nil
	}

	out := *set
	out.Products = capSlice(set.Products, limit)
	out.Sales = capSlice(set.Sales, limit)
	out.Debts = capSlice(set.Debts, limit)
	return &out, nil
}

func capSlice[T any](in []T, limit int) []T {
	if limit > 0 && len(in) > limit {
		in = in[:limit]
	}
	return append([]T(nil), in...)
}

// Helper methods for testing

// SetRecords replaces the records returned for set.UserID
func (m *MockRecordSource) SetRecords(set *domain.UserRecordSet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[set.UserID] = set
}

// AddProduct appends a product to the user's records
func (m *MockRecordSource) AddProduct(userID string, p domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.records[userID]
	if !ok {
		set = &domain.UserRecordSet{UserID: userID}
		m.records[userID] = set
	}
	set.Products = append(set.Products, p)
}

// SetError makes every fetch fail with err until cleared with nil
func (m *MockRecordSource) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Fetches returns how many times userID's records were fetched
func (m *MockRecordSource) Fetches(userID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fetches[userID]
}

// Limits returns the limit passed on every fetch
func (m *MockRecordSource) Limits() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int(nil), m.limits...)
}
