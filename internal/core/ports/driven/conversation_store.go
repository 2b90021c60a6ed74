package driven

import (
	"context"

	"github.com/ledgerwise/ledgerwise-core/internal/core/domain"
)

// ConversationStore holds ordered message history per conversation id.
// It is a flat map: it does not enforce ownership across users.
type ConversationStore interface {
	// Create mints a new globally unique conversation id owned by userID
	Create(ctx context.Context, userID string) (string, error)

	// Get returns a copy of the conversation. Unknown ids yield an empty
	// conversation with that id, never an error.
	Get(ctx context.Context, conversationID string) (*domain.Conversation, error)

	// Append adds msg at the end of the conversation, creating it (owned by
	// userID) if absent.
	Append(ctx context.Context, conversationID, userID string, msg domain.Message) error

	// Len returns the number of stored conversations
	Len() int
}
