package driven

import "github.com/ledgerwise/ledgerwise-core/internal/core/domain"

// AuthAdapter signs and checks the bearer tokens carried by chat requests.
// Session persistence lives in SessionStore.
type AuthAdapter interface {
	HashPassword(password string) (string, error)
	VerifyPassword(password, hash string) bool

	// GenerateToken signs claims. The user's plan and currency ride in the
	// claims so request handling never reads the user table.
	GenerateToken(claims *domain.TokenClaims) (string, error)

	// ParseToken verifies the signature. Expiry is reported as
	// domain.ErrTokenExpired, anything else as domain.ErrTokenInvalid.
	ParseToken(token string) (*domain.TokenClaims, error)
}
