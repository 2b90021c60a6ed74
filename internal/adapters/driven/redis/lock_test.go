package redis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return client, func() {
		client.Close()
		mr.Close()
	}
}

func mustAcquire(t *testing.T, l *Lock, name string, ttl time.Duration) {
	t.Helper()
	ok, err := l.Acquire(context.Background(), name, ttl)
	if err != nil {
		t.Fatalf("acquire %s: %v", name, err)
	}
	if !ok {
		t.Fatalf("expected to acquire %s", name)
	}
}

func TestNewLock_OwnerIDs(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	a, b := NewLock(client), NewLock(client)
	if a.OwnerID() == "" {
		t.Fatal("expected non-empty owner ID")
	}
	if a.OwnerID() == b.OwnerID() {
		t.Errorf("expected unique owner IDs, got %s twice", a.OwnerID())
	}
}

func TestLock_Acquire_Contention(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	first, second := NewLock(client), NewLock(client)
	mustAcquire(t, first, "sweep-sessions", 10*time.Second)

	for name, l := range map[string]*Lock{"other owner": second, "same owner": first} {
		ok, err := l.Acquire(ctx, "sweep-sessions", 10*time.Second)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if ok {
			t.Errorf("%s: expected acquire to fail while held", name)
		}
	}
}

func TestLock_Acquire_AfterTTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	first, second := NewLock(client), NewLock(client)
	mustAcquire(t, first, "sweep-sessions", time.Second)

	mr.FastForward(2 * time.Second)
	mustAcquire(t, second, "sweep-sessions", time.Second)
}

func TestLock_Release(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	l := NewLock(client)
	mustAcquire(t, l, "sweep-sessions", 10*time.Second)

	if err := l.Release(ctx, "sweep-sessions"); err != nil {
		t.Fatalf("unexpected error on release: %v", err)
	}
	mustAcquire(t, l, "sweep-sessions", 10*time.Second)
}

func TestLock_Release_NotHeld(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	if err := NewLock(client).Release(context.Background(), "sweep-sessions"); err != nil {
		t.Errorf("unexpected error releasing unheld lock: %v", err)
	}
}

func TestLock_Release_ByDifferentOwner(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	holder, other := NewLock(client), NewLock(client)
	mustAcquire(t, holder, "sweep-sessions", 10*time.Second)

	if err := other.Release(ctx, "sweep-sessions"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	val, err := client.Get(ctx, lockPrefix+"sweep-sessions").Result()
	if err != nil {
		t.Fatalf("lock key missing: %v", err)
	}
	if val != holder.OwnerID() {
		t.Errorf("expected holder %s, got %s", holder.OwnerID(), val)
	}
}

func TestLock_Extend(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	l := NewLock(client)
	mustAcquire(t, l, "sweep-sessions", time.Second)

	if err := l.Extend(ctx, "sweep-sessions", time.Minute); err != nil {
		t.Fatalf("unexpected error on extend: %v", err)
	}
	ttl, err := client.PTTL(ctx, lockPrefix+"sweep-sessions").Result()
	if err != nil {
		t.Fatalf("pttl: %v", err)
	}
	if ttl <= time.Second {
		t.Errorf("expected extended TTL, got %v", ttl)
	}
}

func TestLock_Extend_NotHeld(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	holder, other := NewLock(client), NewLock(client)

	if err := holder.Extend(ctx, "sweep-sessions", time.Minute); !errors.Is(err, ErrLockNotHeld) {
		t.Errorf("expected ErrLockNotHeld for missing lock, got %v", err)
	}

	mustAcquire(t, holder, "sweep-sessions", 10*time.Second)
	err := other.Extend(ctx, "sweep-sessions", time.Minute)
	if !errors.Is(err, ErrLockNotHeld) {
		t.Errorf("expected ErrLockNotHeld for foreign lock, got %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), "sweep-sessions") {
		t.Errorf("expected lock name in error, got %v", err)
	}
}

func TestLock_IndependentNames(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	l := NewLock(client)
	mustAcquire(t, l, "sweep-sessions", 10*time.Second)
	mustAcquire(t, l, "reindex", 10*time.Second)
}

func TestLock_Ping(t *testing.T) {
	client, cleanup := setupTestRedis(t)
	defer cleanup()

	if err := NewLock(client).Ping(context.Background()); err != nil {
		t.Errorf("unexpected ping error: %v", err)
	}
}
