package domain

import "time"

// Session represents an authenticated user session
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UserAgent string    `json:"user_agent,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
}

// IsExpired checks if the session has expired
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// AuthContext contains authenticated user info for request context
type AuthContext struct {
	UserID        string     `json:"user_id"`
	Email         string     `json:"email"`
	Currency      string     `json:"currency"`
	Plan          Plan       `json:"plan"`
	PlanExpiresAt *time.Time `json:"plan_expires_at,omitempty"`
	SessionID     string     `json:"session_id"`
}

// HasActivePlan checks the plan carried by the token
func (a *AuthContext) HasActivePlan(now time.Time) bool {
	return PlanActive(a.Plan, a.PlanExpiresAt, now)
}

// LoginRequest represents a login attempt
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned after successful authentication
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *UserSummary `json:"user"`
}

// TokenClaims represents the JWT token payload
type TokenClaims struct {
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	Currency      string `json:"currency"`
	Plan          Plan   `json:"plan"`
	PlanExpiresAt int64  `json:"plan_exp,omitempty"` // unix seconds, 0 = no expiry
	SessionID     string `json:"session_id"`
	IssuedAt      int64  `json:"iat"`
	ExpiresAt     int64  `json:"exp"`
}

// PlanExpiry converts the claim to a time pointer
func (c *TokenClaims) PlanExpiry() *time.Time {
	if c.PlanExpiresAt == 0 {
		return nil
	}
	t := time.Unix(c.PlanExpiresAt, 0)
	return &t
}
