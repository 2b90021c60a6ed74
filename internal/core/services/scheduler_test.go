package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ledgerwise/ledgerwise-core/internal/core/ports/driven"
	"github.com/ledgerwise/ledgerwise-core/internal/core/ports/driven/mocks"
)

var _ driven.ExpiredSessionPurger = (*fakePurger)(nil)

type fakePurger struct {
	calls atomic.Int32
	err   error
}

func (f *fakePurger) DeleteExpired(ctx context.Context) (int64, error) {
	f.calls.Add(1)
	return 3, f.err
}

// recordingJob appends its name to a shared log on every run
func recordingJob(name string, mu *sync.Mutex, log *[]string) MaintenanceJob {
	return MaintenanceJob{
		Name: name,
		Run: func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			*log = append(*log, name)
			return nil
		},
	}
}

func TestNewScheduler_Defaults(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})

	if s.interval != 5*time.Minute {
		t.Errorf("expected default interval 5m, got %v", s.interval)
	}
	if s.lockTTL != 10*time.Minute {
		t.Errorf("expected default lock TTL 10m, got %v", s.lockTTL)
	}
	if s.logger == nil {
		t.Error("expected default logger")
	}
}

func TestNewScheduler_Custom(t *testing.T) {
	s := NewScheduler(SchedulerConfig{Interval: time.Minute, LockTTL: 30 * time.Second})

	if s.interval != time.Minute {
		t.Errorf("expected interval 1m, got %v", s.interval)
	}
	if s.lockTTL != 30*time.Second {
		t.Errorf("expected lock TTL 30s, got %v", s.lockTTL)
	}
}

func TestScheduler_StartStop(t *testing.T) {
	var mu sync.Mutex
	var log []string
	s := NewScheduler(SchedulerConfig{
		Jobs:     []MaintenanceJob{recordingJob("a", &mu, &log)},
		Interval: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("failed to start scheduler: %v", err)
	}
	if err := s.Start(ctx); err != nil {
		t.Errorf("second start should not error: %v", err)
	}

	s.Stop()

	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()
	if running {
		t.Error("expected scheduler to be stopped")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(log) != 1 {
		t.Errorf("expected one immediate cycle on start, got %v", log)
	}

	s.Stop()
}

func TestScheduler_RunsJobsInOrder(t *testing.T) {
	var mu sync.Mutex
	var log []string
	s := NewScheduler(SchedulerConfig{
		Jobs: []MaintenanceJob{
			recordingJob("first", &mu, &log),
			recordingJob("second", &mu, &log),
		},
	})

	s.runCycle(context.Background())

	if len(log) != 2 || log[0] != "first" || log[1] != "second" {
		t.Errorf("expected [first second], got %v", log)
	}
}

func TestScheduler_FailingJobDoesNotStopCycle(t *testing.T) {
	var mu sync.Mutex
	var log []string
	failing := MaintenanceJob{Name: "bad", Run: func(ctx context.Context) error {
		return errors.New("boom")
	}}
	s := NewScheduler(SchedulerConfig{
		Jobs: []MaintenanceJob{failing, recordingJob("good", &mu, &log)},
	})

	s.runCycle(context.Background())

	if len(log) != 1 {
		t.Errorf("expected job after failure to run, got %v", log)
	}
}

func TestScheduler_SkipsJobWhenLockHeld(t *testing.T) {
	lock := mocks.NewMockDistributedLock()
	lock.SetLockHeld("maintenance:a", time.Minute)

	var mu sync.Mutex
	var log []string
	s := NewScheduler(SchedulerConfig{
		Jobs: []MaintenanceJob{recordingJob("a", &mu, &log), recordingJob("b", &mu, &log)},
		Lock: lock,
	})

	s.runCycle(context.Background())

	if len(log) != 1 || log[0] != "b" {
		t.Errorf("expected only b to run, got %v", log)
	}
	if lock.IsHeld("maintenance:b") {
		t.Error("expected lock for b released after run")
	}
	if got := lock.Acquired(); len(got) != 1 || got[0] != "maintenance:b" {
		t.Errorf("expected one acquisition of maintenance:b, got %v", got)
	}
}

func TestScheduler_SkipsJobOnLockError(t *testing.T) {
	lock := mocks.NewMockDistributedLock()
	lock.AcquireErr = errors.New("redis down")

	var mu sync.Mutex
	var log []string
	s := NewScheduler(SchedulerConfig{
		Jobs: []MaintenanceJob{recordingJob("a", &mu, &log)},
		Lock: lock,
	})

	s.runCycle(context.Background())

	if len(log) != 0 {
		t.Errorf("expected no runs without the lock, got %v", log)
	}
}

func TestScheduler_ContextCancellation(t *testing.T) {
	s := NewScheduler(SchedulerConfig{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	cancel()

	select {
	case <-s.doneCh:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not exit on cancel")
	}
}

func TestSessionSweepJob(t *testing.T) {
	purger := &fakePurger{}
	job := SessionSweepJob(purger, nil)

	if job.Name != "sweep-sessions" {
		t.Errorf("unexpected job name %q", job.Name)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if purger.calls.Load() != 1 {
		t.Errorf("expected 1 purge call, got %d", purger.calls.Load())
	}

	purger.err = errors.New("db down")
	if err := job.Run(context.Background()); err == nil {
		t.Error("expected purge error to surface")
	}
}

func TestIndexStatsJob(t *testing.T) {
	f := newIndexFixture(t, DefaultIndexConfig())
	job := IndexStatsJob(f.manager, nil)

	if err := job.Run(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

type fakeReconnector struct {
	calls    int
	restored []string
	err      error
}

func (f *fakeReconnector) Reconnect(ctx context.Context) ([]string, error) {
	f.calls++
	return f.restored, f.err
}

func TestGatewayRecoveryJob(t *testing.T) {
	gw := &fakeReconnector{err: errors.New("gateway down")}
	job := GatewayRecoveryJob(gw, nil)

	if job.Name != "reconnect-gateway" || !job.PerInstance {
		t.Errorf("unexpected job %q per-instance=%v", job.Name, job.PerInstance)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Error("expected reconnect error to surface")
	}

	gw.err = nil
	gw.restored = []string{"embedding service"}
	if err := job.Run(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if gw.calls != 2 {
		t.Errorf("expected 2 reconnect attempts, got %d", gw.calls)
	}
}

func TestScheduler_PerInstanceJobIgnoresLock(t *testing.T) {
	lock := mocks.NewMockDistributedLock()
	lock.SetLockHeld("maintenance:local", time.Minute)

	var mu sync.Mutex
	var log []string
	local := recordingJob("local", &mu, &log)
	local.PerInstance = true
	s := NewScheduler(SchedulerConfig{
		Jobs: []MaintenanceJob{local},
		Lock: lock,
	})

	s.runCycle(context.Background())

	if len(log) != 1 || log[0] != "local" {
		t.Errorf("expected per-instance job to run, got %v", log)
	}
	if got := lock.Acquired(); len(got) != 0 {
		t.Errorf("expected no lock acquisitions, got %v", got)
	}
}
