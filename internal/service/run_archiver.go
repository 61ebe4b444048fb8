package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type staleRunArchiver interface {
	ArchiveStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// RunArchiverConfig controls the archive schedule.
type RunArchiverConfig struct {
	Schedule string
	TTL      time.Duration
	Timeout  time.Duration
}

// RunArchiver periodically archives pending matching runs that were never applied or cancelled.
type RunArchiver struct {
	runs   staleRunArchiver
	cfg    RunArchiverConfig
	logger *zap.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewRunArchiver constructs an archiver; an empty schedule defaults to hourly.
func NewRunArchiver(runs staleRunArchiver, cfg RunArchiverConfig, logger *zap.Logger) *RunArchiver {
	if cfg.Schedule == "" {
		cfg.Schedule = "@every 1h"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunArchiver{runs: runs, cfg: cfg, logger: logger}
}

// Start registers the archive job and starts the scheduler. Overlapping executions are skipped.
func (a *RunArchiver) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cron != nil {
		return nil
	}

	cronLogger := cron.PrintfLogger(zap.NewStdLog(a.logger.Named("archiver")))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))
	if _, err := c.AddFunc(a.cfg.Schedule, func() { a.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("schedule run archiver %q: %w", a.cfg.Schedule, err)
	}
	c.Start()
	a.cron = c
	a.logger.Info("run archiver started", zap.String("schedule", a.cfg.Schedule), zap.Duration("ttl", a.cfg.TTL))
	return nil
}

// Stop halts the scheduler and waits for a running archive pass to finish.
func (a *RunArchiver) Stop() {
	a.mu.Lock()
	c := a.cron
	a.cron = nil
	a.mu.Unlock()
	if c == nil {
		return
	}
	<-c.Stop().Done()
	a.logger.Info("run archiver stopped")
}

// RunOnce performs a single archive pass and returns the number of runs archived.
func (a *RunArchiver) RunOnce(ctx context.Context) int64 {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	archived, err := a.runs.ArchiveStale(ctx, a.cfg.TTL)
	if err != nil {
		a.logger.Warn("archive stale matching runs failed", zap.Error(err))
		return 0
	}
	return archived
}
