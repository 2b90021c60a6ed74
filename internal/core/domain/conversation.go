package domain

import (
	"fmt"
	"strings"
	"time"
)

// MessageRole identifies who wrote a message
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
)

// IsValid checks the role is one of the known values
func (r MessageRole) IsValid() bool {
	return r == MessageRoleUser || r == MessageRoleAssistant
}

// Label is the display name used when rendering history into a prompt
func (r MessageRole) Label() string {
	switch r {
	case MessageRoleAssistant:
		return "Assistant"
	default:
		return "User"
	}
}

// Message is one entry of a conversation
type Message struct {
	Role          MessageRole `json:"role"`
	Content       string      `json:"content"`
	ImageAnalysis string      `json:"image_analysis,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Conversation holds the ordered history of a chat
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OwnedBy reports whether the conversation can be used by userID.
// Conversations without an owner are treated as unclaimed.
func (c *Conversation) OwnedBy(userID string) bool {
	return c.UserID == "" || c.UserID == userID
}

// LastMessages returns at most n trailing messages, oldest first
func (c *Conversation) LastMessages(n int) []Message {
	if n <= 0 || len(c.Messages) == 0 {
		return nil
	}
	if n > len(c.Messages) {
		n = len(c.Messages)
	}
	return c.Messages[len(c.Messages)-n:]
}

// FormatHistory renders messages as "<Role>: <content>" lines
func FormatHistory(messages []Message) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role.Label(), m.Content))
	}
	return strings.Join(lines, "\n")
}
