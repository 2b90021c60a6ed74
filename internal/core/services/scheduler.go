package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ledgerwise/ledgerwise-core/internal/core/ports/driven"
	"github.com/ledgerwise/ledgerwise-core/internal/core/ports/driving"
)

// MaintenanceJob is a named periodic housekeeping task
type MaintenanceJob struct {
	Name string
	Run  func(ctx context.Context) error
	// PerInstance jobs touch process-local state and skip the distributed lock
	PerInstance bool
}

// SessionSweepJob deletes expired sessions from stores without native TTLs
func SessionSweepJob(purger driven.ExpiredSessionPurger, logger *slog.Logger) MaintenanceJob {
	if logger == nil {
		logger = slog.Default()
	}
	return MaintenanceJob{
		Name: "sweep-sessions",
		Run: func(ctx context.Context) error {
			n, err := purger.DeleteExpired(ctx)
			if err != nil {
				return fmt.Errorf("delete expired sessions: %w", err)
			}
			if n > 0 {
				logger.Info("expired sessions removed", "count", n)
			}
			return nil
		},
	}
}

// IndexStatsJob logs cache occupancy of the index manager
func IndexStatsJob(index driving.IndexService, logger *slog.Logger) MaintenanceJob {
	if logger == nil {
		logger = slog.Default()
	}
	return MaintenanceJob{
		Name: "index-stats",
		Run: func(ctx context.Context) error {
			stats := index.Stats()
			logger.Debug("index cache",
				"cached_users", stats.CachedUsers,
				"in_flight_builds", stats.InFlightBuilds,
			)
			return nil
		},
	}
}

// GatewayReconnector re-establishes AI gateway clients that are missing
type GatewayReconnector interface {
	Reconnect(ctx context.Context) ([]string, error)
}

// GatewayRecoveryJob retries the AI gateway while a capability is down, so
// an outage at boot heals without a restart
func GatewayRecoveryJob(gateway GatewayReconnector, logger *slog.Logger) MaintenanceJob {
	if logger == nil {
		logger = slog.Default()
	}
	return MaintenanceJob{
		Name:        "reconnect-gateway",
		PerInstance: true,
		Run: func(ctx context.Context) error {
			restored, err := gateway.Reconnect(ctx)
			for _, label := range restored {
				logger.Info("ai gateway capability restored", "service", label)
			}
			if err != nil {
				return fmt.Errorf("reconnect ai gateway: %w", err)
			}
			return nil
		},
	}
}

// Scheduler runs maintenance jobs on a fixed interval.
//
// With a DistributedLock configured each job runs on at most one instance
// per cycle. Jobs are run sequentially in registration order.
type Scheduler struct {
	jobs   []MaintenanceJob
	lock   driven.DistributedLock
	logger *slog.Logger

	mu       sync.RWMutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	interval time.Duration
	lockTTL  time.Duration
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	Jobs     []MaintenanceJob
	Lock     driven.DistributedLock // optional
	Logger   *slog.Logger
	Interval time.Duration // default 5m
	LockTTL  time.Duration // default 2x Interval
}

// NewScheduler creates a new scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 2 * interval
	}

	return &Scheduler{
		jobs:     cfg.Jobs,
		lock:     cfg.Lock,
		logger:   logger,
		interval: interval,
		lockTTL:  lockTTL,
	}
}

// Start begins the scheduler loop.
// It runs until Stop is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("scheduler starting", "interval", s.interval, "jobs", len(s.jobs))

	go s.run(ctx)

	return nil
}

// Stop gracefully stops the scheduler and waits for the current cycle.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.mu.Unlock()

	<-s.doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler context cancelled")
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.runCycle(ctx)
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			return
		}
		s.runJob(ctx, job)
	}
}

// runJob executes one job, skipping it when another instance holds its lock.
// Lock backend failures skip the job for this cycle.
func (s *Scheduler) runJob(ctx context.Context, job MaintenanceJob) {
	if s.lock != nil && !job.PerInstance {
		name := "maintenance:" + job.Name
		acquired, err := s.lock.Acquire(ctx, name, s.lockTTL)
		if err != nil {
			s.logger.Warn("failed to acquire maintenance lock", "job", job.Name, "error", err)
			return
		}
		if !acquired {
			s.logger.Debug("maintenance lock held elsewhere, skipping", "job", job.Name)
			return
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx), name); err != nil {
				s.logger.Warn("failed to release maintenance lock", "job", job.Name, "error", err)
			}
		}()
	}

	start := time.Now()
	if err := job.Run(ctx); err != nil {
		s.logger.Error("maintenance job failed", "job", job.Name, "error", err)
		return
	}
	s.logger.Debug("maintenance job done", "job", job.Name, "duration", time.Since(start))
}
