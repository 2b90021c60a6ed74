package domain

import (
	"testing"
	"time"
)

func TestSessionIsExpired(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt time.Time
		expected  bool
	}{
		{
			name:      "expired session",
			expiresAt: time.Now().Add(-1 * time.Hour),
			expected:  true,
		},
		{
			name:      "valid session",
			expiresAt: time.Now().Add(1 * time.Hour),
			expected:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &Session{ExpiresAt: tt.expiresAt}
			if session.IsExpired() != tt.expected {
				t.Errorf("expected IsExpired() = %v", tt.expected)
			}
		})
	}
}

func TestTokenClaimsPlanExpiry(t *testing.T) {
	claims := &TokenClaims{}
	if claims.PlanExpiry() != nil {
		t.Error("expected nil expiry for zero claim")
	}

	exp := time.Now().Add(24 * time.Hour).Unix()
	claims.PlanExpiresAt = exp
	got := claims.PlanExpiry()
	if got == nil || got.Unix() != exp {
		t.Errorf("expected expiry %d, got %v", exp, got)
	}
}

func TestAuthContextHasActivePlan(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)

	if (&AuthContext{Plan: PlanFree}).HasActivePlan(now) {
		t.Error("free plan must not be active")
	}
	if !(&AuthContext{Plan: PlanBasic}).HasActivePlan(now) {
		t.Error("basic plan without expiry should be active")
	}
	if (&AuthContext{Plan: PlanBasic, PlanExpiresAt: &past}).HasActivePlan(now) {
		t.Error("expired plan must not be active")
	}
}
