package driven

import (
	"context"

	"github.com/ledgerwise/ledgerwise-core/internal/core/domain"
)

// SessionStore handles session persistence (Redis or PostgreSQL)
type SessionStore interface {
	// Save stores a session with TTL based on ExpiresAt
	Save(ctx context.Context, session *domain.Session) error

	// Get retrieves a session by ID
	Get(ctx context.Context, id string) (*domain.Session, error)

	// Delete deletes a session
	Delete(ctx context.Context, id string) error

	// DeleteByUser deletes all sessions for a user (logout everywhere)
	DeleteByUser(ctx context.Context, userID string) error
}

// ExpiredSessionPurger is implemented by session stores without native
// key expiry. A periodic sweeper calls it.
type ExpiredSessionPurger interface {
	// DeleteExpired removes sessions past their expiry and returns how many
	DeleteExpired(ctx context.Context) (int64, error)
}
