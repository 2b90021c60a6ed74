// Package memory holds process-local adapters. Their contents are lost on
// restart.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ledgerwise/ledgerwise-core/internal/core/domain"
	"github.com/ledgerwise/ledgerwise-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ConversationStore = (*ConversationStore)(nil)

// ConversationStoreConfig bounds the store
type ConversationStoreConfig struct {
	MaxConversations int           // 0 = unbounded
	TTL              time.Duration // idle lifetime, 0 = never expire
}

// ConversationStore keeps conversations in an expiring LRU. Each append
// resets the conversation's TTL.
type ConversationStore struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, *domain.Conversation]
	now   func() time.Time
}

// NewConversationStore creates a new in-memory ConversationStore
func NewConversationStore(cfg ConversationStoreConfig) *ConversationStore {
	size := cfg.MaxConversations
	if size < 0 {
		size = 0
	}
	return &ConversationStore{
		cache: expirable.NewLRU[string, *domain.Conversation](size, nil, cfg.TTL),
		now:   time.Now,
	}
}

// Create mints a time-ordered UUIDv7 id for a new, empty conversation
func (s *ConversationStore) Create(ctx context.Context, userID string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate conversation id: %w", err)
	}

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Add(id.String(), &domain.Conversation{
		ID:        id.String(),
		UserID:    userID,
		Messages:  []domain.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	})
	return id.String(), nil
}

// Get returns a copy of the conversation, or an empty one for unknown ids
func (s *ConversationStore) Get(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.cache.Get(conversationID)
	if !ok {
		return &domain.Conversation{ID: conversationID, Messages: []domain.Message{}}, nil
	}
	return cloneConversation(conv), nil
}

// Append adds msg to the conversation, creating it for userID if absent
func (s *ConversationStore) Append(ctx context.Context, conversationID, userID string, msg domain.Message) error {
	if conversationID == "" {
		return domain.ErrInvalidInput
	}
	if !msg.Role.IsValid() {
		return fmt.Errorf("message role %q: %w", msg.Role, domain.ErrInvalidInput)
	}

	now := s.now()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.cache.Get(conversationID)
	if !ok {
		conv = &domain.Conversation{ID: conversationID, UserID: userID, CreatedAt: now}
	}
	if conv.UserID == "" {
		conv.UserID = userID
	}
	conv.Messages = append(conv.Messages, msg)
	conv.UpdatedAt = now

	// re-adding refreshes the TTL
	s.cache.Add(conversationID, conv)
	return nil
}

// Len returns the number of live conversations
func (s *ConversationStore) Len() int {
	return s.cache.Len()
}

func cloneConversation(c *domain.Conversation) *domain.Conversation {
	out := *c
	out.Messages = make([]domain.Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	return &out
}
