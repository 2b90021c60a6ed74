package domain

import "time"

// Grounding channels reported in ChatResponse.Sources
const (
	SourceUserData      = "user data"
	SourceImageAnalysis = "image analysis"
)

// ChatRequest is one user turn
type ChatRequest struct {
	Message        string `json:"message"`
	ImageBase64    string `json:"imageBase64,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`

	// Currency is filled from the authenticated user, not the request body
	Currency string `json:"-"`
}

// HasImage reports whether an image was attached
func (r *ChatRequest) HasImage() bool {
	return r.ImageBase64 != ""
}

// ChatResponse is the assistant's answer to a turn
type ChatResponse struct {
	Response       string    `json:"response"`
	ConversationID string    `json:"conversationId"`
	Sources        []string  `json:"sources"`
	Timestamp      time.Time `json:"timestamp"`
}
