package driven

import (
	"context"

	"github.com/ledgerwise/ledgerwise-core/internal/core/domain"
)

// UserStore reads business owner accounts. Accounts are created by the
// finance backend; this service only looks them up at login.
type UserStore interface {
	Save(ctx context.Context, user *domain.User) error

	// Get and GetByEmail return domain.ErrNotFound for unknown users
	Get(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	UpdateLastLogin(ctx context.Context, id string) error
}
