package keypool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Resetter is the part of the pool a ResetScheduler drives.
type Resetter interface {
	ResetUsage()
}

// ResetScheduler calls ResetUsage on a cron schedule. It is optional: the
// pool already restarts each key's count lazily once its window elapses.
// The scheduler exists for deployments that want hard, aligned resets.
type ResetScheduler struct {
	pool     Resetter
	schedule string
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool
}

// NewResetScheduler creates a scheduler for the given cron expression.
// Descriptors such as "@every 1m" are accepted.
func NewResetScheduler(pool Resetter, schedule string) *ResetScheduler {
	return &ResetScheduler{
		pool:     pool,
		schedule: schedule,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "keypool.scheduler"),
	}
}

// Start registers the reset job and starts the cron runner. An empty
// schedule is a no-op. The scheduler stops when ctx is cancelled.
func (s *ResetScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("key usage reset schedule not configured, relying on lazy window reset")
		return nil
	}
	if s.running {
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid reset schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, s.runReset); err != nil {
		return fmt.Errorf("failed to schedule key usage reset: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info("key usage reset scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

func (s *ResetScheduler) runReset() {
	s.pool.ResetUsage()
	s.logger.Debug("key usage counters reset")
}

// Stop halts the cron runner and waits for an in-flight reset to finish.
func (s *ResetScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		<-s.cron.Stop().Done()
		s.running = false
		s.logger.Info("key usage reset scheduler stopped")
	}
}

// IsRunning reports whether the cron runner is active.
func (s *ResetScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun returns the next scheduled reset, or nil when not running.
func (s *ResetScheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
