package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/ledgerwise/ledgerwise-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.RecordChangeBus = (*RecordBus)(nil)

// DefaultRecordChannel is the pub/sub channel carrying changed user ids
const DefaultRecordChannel = "ledgerwise:records:changed"

// DefaultMaxConcurrentHandlers bounds in-flight handler calls per subscriber
const DefaultMaxConcurrentHandlers = 8

// RecordBus fans "records changed" signals out to every instance over
// Redis pub/sub. Delivery is at-most-once; a missed signal only delays
// freshness until the cache entry expires.
type RecordBus struct {
	client      *redis.Client
	channel     string
	concurrency int
	logger      *slog.Logger
}

// RecordBusConfig holds configuration for the record bus
type RecordBusConfig struct {
	Channel       string // default DefaultRecordChannel
	MaxConcurrent int    // default DefaultMaxConcurrentHandlers
	Logger        *slog.Logger
}

// NewRecordBus creates a Redis-backed record change bus
func NewRecordBus(client *redis.Client, cfg RecordBusConfig) *RecordBus {
	channel := cfg.Channel
	if channel == "" {
		channel = DefaultRecordChannel
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.MaxConcurrent
	if concurrency <= 0 {
		concurrency = DefaultMaxConcurrentHandlers
	}
	return &RecordBus{client: client, channel: channel, concurrency: concurrency, logger: logger}
}

// Publish announces that userID's records changed
func (b *RecordBus) Publish(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("publish record change: empty user id")
	}
	if err := b.client.Publish(ctx, b.channel, userID).Err(); err != nil {
		return fmt.Errorf("publish record change: %w", err)
	}
	return nil
}

// Subscribe blocks delivering signals to handler until ctx is cancelled.
// Each signal runs on its own goroutine, at most MaxConcurrent at a time, so
// a slow refresh for one user does not hold up the others. Handler errors
// are logged and do not stop the subscription. In-flight handlers finish
// before Subscribe returns.
func (b *RecordBus) Subscribe(ctx context.Context, handler driven.RecordChangeHandler) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	// wait for the subscription confirmation so early publishes are not lost
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.logger.Info("record bus subscribed", "channel", b.channel, "max_concurrent", b.concurrency)

	var handlers errgroup.Group
	handlers.SetLimit(b.concurrency)
	defer handlers.Wait()

	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("subscription %s closed", b.channel)
			}
			userID := msg.Payload
			if userID == "" {
				continue
			}
			handlers.Go(func() error {
				if err := handler(ctx, userID); err != nil {
					b.logger.Warn("record change handler failed",
						"user_id", userID,
						"error", err,
					)
				}
				return nil
			})
		}
	}
}

// Ping checks if the Redis backend is healthy
func (b *RecordBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}
