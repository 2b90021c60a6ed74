package domain

import "time"

// Plan is the subscription tier of an account
type Plan string

const (
	PlanFree  Plan = "free"  // CRUD only
	PlanBasic Plan = "basic" // Adds analysis report and assistant
	PlanPro   Plan = "pro"   // Higher quotas
)

// User represents a business owner account
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	PasswordHash  string     `json:"-"` // Never serialize
	Name          string     `json:"name"`
	BusinessName  string     `json:"business_name,omitempty"`
	Currency      string     `json:"currency"`
	Plan          Plan       `json:"plan"`
	PlanExpiresAt *time.Time `json:"plan_expires_at,omitempty"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
}

// UserSummary provides a safe view of user data (no password hash)
type UserSummary struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
	Plan     Plan   `json:"plan"`
}

// ToSummary converts a User to UserSummary
func (u *User) ToSummary() *UserSummary {
	return &UserSummary{
		ID:       u.ID,
		Email:    u.Email,
		Name:     u.Name,
		Currency: u.Currency,
		Plan:     u.Plan,
	}
}

// HasActivePlan reports whether a paid plan is in effect at the given time
func (u *User) HasActivePlan(now time.Time) bool {
	return PlanActive(u.Plan, u.PlanExpiresAt, now)
}

// CanUseAssistant checks if the user may call the chat assistant
func (u *User) CanUseAssistant(now time.Time) bool {
	return u.Active && u.HasActivePlan(now)
}

// PlanActive reports whether plan is a paid tier that has not expired.
// A nil expiry means the plan does not lapse.
func PlanActive(plan Plan, expiresAt *time.Time, now time.Time) bool {
	if plan != PlanBasic && plan != PlanPro {
		return false
	}
	return expiresAt == nil || now.Before(*expiresAt)
}

// DefaultCurrency is used when a user has not chosen one
const DefaultCurrency = "USD"

// EffectiveCurrency returns the user's currency or the default
func (u *User) EffectiveCurrency() string {
	if u.Currency == "" {
		return DefaultCurrency
	}
	return u.Currency
}
