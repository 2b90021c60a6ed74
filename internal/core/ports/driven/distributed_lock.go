package driven

import (
	"context"
	"time"
)

// DistributedLock guards maintenance work so that only one replica runs a
// given job per cycle. Backed by redis SET NX or postgres advisory locks.
type DistributedLock interface {
	// Acquire takes name for at most ttl. acquired is false when another
	// holder already has it; err is reserved for backend failures.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release gives name back. Releasing a lock that is not held is a no-op.
	Release(ctx context.Context, name string) error

	// Extend refreshes the ttl of a lock this instance holds. Backends
	// without expiry only verify ownership.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	Ping(ctx context.Context) error
}
