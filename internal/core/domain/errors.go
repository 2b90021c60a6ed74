package domain

import (
	"errors"
	"fmt"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the user lacks permission for this action
	ErrForbidden = errors.New("forbidden")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrSessionNotFound indicates the session does not exist
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidCredentials indicates wrong email/password combination
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrPlanRequired indicates the user's subscription does not cover the feature
	ErrPlanRequired = errors.New("active plan required")

	// ErrInvalidProvider indicates an unknown AI provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrServiceUnavailable indicates the AI service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrRetrievalUnavailable indicates no grounding context could be produced
	// (record fetch, embedding, or index build failed or timed out)
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrGenerationUnavailable indicates the generative model failed or timed out
	ErrGenerationUnavailable = errors.New("generation unavailable")
)

// ChatErrorKind classifies a failed chat turn.
type ChatErrorKind string

const (
	ChatErrorRetrieval  ChatErrorKind = "retrieval"
	ChatErrorGeneration ChatErrorKind = "generation"
)

// ChatError is returned by the chat orchestrator when a turn aborts.
//
// UserMessageRecorded reports whether the user's message was already appended
// to the conversation before the failure. History is never rolled back, so a
// caller retrying the turn should expect the earlier message to remain.
type ChatError struct {
	Kind                ChatErrorKind
	ConversationID      string
	UserMessageRecorded bool
	Err                 error
}

func (e *ChatError) Error() string {
	return fmt.Sprintf("chat %s unavailable: %v", e.Kind, e.Err)
}

func (e *ChatError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match the kind sentinels.
func (e *ChatError) Is(target error) bool {
	switch target {
	case ErrRetrievalUnavailable:
		return e.Kind == ChatErrorRetrieval
	case ErrGenerationUnavailable:
		return e.Kind == ChatErrorGeneration
	}
	return false
}

// NewRetrievalError wraps err as a retrieval-unavailable chat failure.
func NewRetrievalError(conversationID string, recorded bool, err error) *ChatError {
	return &ChatError{Kind: ChatErrorRetrieval, ConversationID: conversationID, UserMessageRecorded: recorded, Err: err}
}

// NewGenerationError wraps err as a generation-unavailable chat failure.
func NewGenerationError(conversationID string, recorded bool, err error) *ChatError {
	return &ChatError{Kind: ChatErrorGeneration, ConversationID: conversationID, UserMessageRecorded: recorded, Err: err}
}
