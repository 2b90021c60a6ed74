package services

import (
	"context"
	"log/slog"

	"github.com/ledgerwise/ledgerwise-core/internal/core/ports/driven"
	"github.com/ledgerwise/ledgerwise-core/internal/core/ports/driving"
)

// RefreshOnRecordChange rebuilds a user's index whenever their records
// change. Refresh failures are returned so the bus can log them; the next
// chat turn retries the build anyway.
func RefreshOnRecordChange(index driving.IndexService, logger *slog.Logger) driven.RecordChangeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, userID string) error {
		logger.Debug("records changed", "user_id", userID)
		return index.Refresh(ctx, userID)
	}
}
