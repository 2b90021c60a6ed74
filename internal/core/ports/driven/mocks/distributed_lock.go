package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ledgerwise/ledgerwise-core/internal/core/ports/driven"
)

// Ensure MockDistributedLock implements DistributedLock
var _ driven.DistributedLock = (*MockDistributedLock)(nil)

// MockDistributedLock keeps lock expiries in memory. Locks taken with
// SetLockHeld belong to "another instance" and cannot be released here.
type MockDistributedLock struct {
	mu       sync.Mutex
	expiry   map[string]time.Time
	foreign  map[string]bool
	acquired []string
	now      func() time.Time

	// AcquireErr, when set, fails every Acquire
	AcquireErr error
	// PingErr is returned by Ping
	PingErr error
}

// NewMockDistributedLock creates a new mock distributed lock.
func NewMockDistributedLock() *MockDistributedLock {
	return &MockDistributedLock{
		expiry:  make(map[string]time.Time),
		foreign: make(map[string]bool),
		now:     time.Now,
	}
}

func (m *MockDistributedLock) heldLocked(name string) bool {
	exp, ok := m.expiry[name]
	return ok && m.now().Before(exp)
}

// Acquire takes name unless a live holder exists
func (m *MockDistributedLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.AcquireErr != nil {
		return false, m.AcquireErr
	}
	if m.heldLocked(name) {
		return false, nil
	}
	m.expiry[name] = m.now().Add(ttl)
	delete(m.foreign, name)
	m.acquired = append(m.acquired, name)
	return true, nil
}

// Release drops a lock taken through Acquire
func (m *MockDistributedLock) Release(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.foreign[name] {
		delete(m.expiry, name)
	}
	return nil
}

// Extend pushes the expiry of a live lock this instance holds
func (m *MockDistributedLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.heldLocked(name) || m.foreign[name] {
		return fmt.Errorf("lock %s not held", name)
	}
	m.expiry[name] = m.now().Add(ttl)
	return nil
}

// Ping returns PingErr
func (m *MockDistributedLock) Ping(ctx context.Context) error {
	return m.PingErr
}

// SetLockHeld simulates another instance holding name for ttl
func (m *MockDistributedLock) SetLockHeld(name string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expiry[name] = m.now().Add(ttl)
	m.foreign[name] = true
}

// IsHeld reports whether name is currently locked by anyone
func (m *MockDistributedLock) IsHeld(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heldLocked(name)
}

// Acquired lists successful acquisitions in order
func (m *MockDistributedLock) Acquired() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.acquired...)
}
