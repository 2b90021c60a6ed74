package driving

import (
	"context"

	"github.com/ledgerwise/ledgerwise-core/internal/core/domain"
)

// IndexService manages the per-user retrieval index
type IndexService interface {
	// Warm builds the user's index if it is not cached and returns its
	// document count
	Warm(ctx context.Context, userID string) (int, error)

	// Retrieve returns up to k documents most similar to query
	Retrieve(ctx context.Context, userID, query string, k int) ([]domain.ScoredDocument, error)

	// Refresh rebuilds the user's index from current records
	Refresh(ctx context.Context, userID string) error

	// Evict drops the cached index without rebuilding
	Evict(userID string)

	// Stats reports cache occupancy
	Stats() domain.IndexStats
}
