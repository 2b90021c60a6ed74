package driven

import (
	"context"
)

// RecordChangeHandler is invoked with the id of a user whose records changed
type RecordChangeHandler func(ctx context.Context, userID string) error

// RecordChangeBus carries "records changed" signals from write-path
// collaborators to every instance holding an index for that user.
type RecordChangeBus interface {
	// Publish announces that userID's products, sales or debts changed
	Publish(ctx context.Context, userID string) error

	// Subscribe delivers signals to handler until ctx is cancelled
	Subscribe(ctx context.Context, handler RecordChangeHandler) error

	// Ping checks if the bus backend is healthy
	Ping(ctx context.Context) error
}
