package driven

import (
	"context"

	"github.com/ledgerwise/ledgerwise-core/internal/core/domain"
)

// RecordSource reads a user's products, sales and debts from the system of
// record. Implementations return domain.ErrNotFound for unknown users.
type RecordSource interface {
	// FetchUserRecords returns the user's records. Sales and debts are the
	// most recent limit entries; products are capped to the same limit.
	FetchUserRecords(ctx context.Context, userID string, limit int) (*domain.UserRecordSet, error)
}
