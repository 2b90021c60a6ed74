package driving

import (
	"context"

	"github.com/ledgerwise/ledgerwise-core/internal/core/domain"
)

// AuthService issues and checks the sessions behind assistant requests
type AuthService interface {
	// Authenticate checks email and password and opens a session. Unknown
	// emails and wrong passwords both return domain.ErrInvalidCredentials.
	Authenticate(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error)

	// ValidateToken resolves a bearer token to the caller's identity, plan
	// and currency. The backing session must still exist.
	ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error)

	// Logout ends the session behind token. Unknown tokens are ignored.
	Logout(ctx context.Context, token string) error

	LogoutAll(ctx context.Context, userID string) error
}
