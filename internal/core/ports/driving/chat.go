package driving

import (
	"context"

	"github.com/ledgerwise/ledgerwise-core/internal/core/domain"
)

// ChatService answers questions about a user's own financial records
type ChatService interface {
	// HandleTurn runs one grounded chat turn for userID.
	// Failures are returned as *domain.ChatError.
	HandleTurn(ctx context.Context, userID string, req domain.ChatRequest) (*domain.ChatResponse, error)

	// CreateConversation starts an empty conversation owned by userID
	CreateConversation(ctx context.Context, userID string) (string, error)

	// GetConversation returns a conversation if userID may read it
	GetConversation(ctx context.Context, userID, conversationID string) (*domain.Conversation, error)
}
