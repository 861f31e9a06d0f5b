// Package scheduler wires up the cron entry that periodically triggers a
// scrape. Interval and on/off come from the stored settings.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"go-upwork-assistant/internal/models"
	"go-upwork-assistant/internal/orchestrator"
	"go-upwork-assistant/internal/settings"
	"go-upwork-assistant/internal/store"
)

// Runner performs one scrape
type Runner interface {
	Run(ctx context.Context) (orchestrator.Result, error)
}

// Scheduler wraps robfig/cron and keeps a single entry in line with the settings
type Scheduler struct {
	cron   *cron.Cron
	store  store.Store
	runner Runner
	logger *slog.Logger

	mu       sync.Mutex
	base     context.Context // passed to scheduled runs
	entry    cron.EntryID
	interval time.Duration // of the registered entry, 0 when none
}

// New creates a Scheduler. Nothing fires until Start.
func New(st store.Store, runner Runner, logger *slog.Logger) *Scheduler {
	cl := cronLogger{logger}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		store:  st,
		runner: runner,
		logger: logger,
		base:   context.Background(),
	}
}

// Start registers the entry for the current settings and starts the cron loop.
// Scheduled runs get ctx, so cancelling it aborts them.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.base = ctx
	s.mu.Unlock()

	if err := s.Sync(ctx); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("⏰ Scheduler started")
	return nil
}

// Stop halts the cron loop. The returned context is done once a running scrape returns.
func (s *Scheduler) Stop() context.Context {
	ctx := s.cron.Stop()
	s.logger.Info("⏰ Scheduler stopped")
	return ctx
}

// Sync re-reads the settings and adds, replaces or removes the cron entry.
// Call it after the settings change. ctx only bounds the settings read; the
// entry runs with the context given to Start.
func (s *Scheduler) Sync(ctx context.Context) error {
	cfg, err := settings.Load(ctx, s.store)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	want := time.Duration(0)
	if cfg.ScheduleEnabled {
		want = cfg.Interval()
	}
	if want == s.interval {
		return nil
	}

	if s.interval != 0 {
		s.cron.Remove(s.entry)
		s.interval = 0
	}
	if want == 0 {
		s.logger.Info("⏸️ Schedule disabled")
		return nil
	}

	spec := fmt.Sprintf("@every %s", want)
	id, err := s.cron.AddFunc(spec, func() { s.tick(s.runContext()) })
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.entry, s.interval = id, want
	s.logger.Info("⏰ Schedule set", slog.String("spec", spec))
	return nil
}

func (s *Scheduler) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base
}

// Next is the time of the next scheduled scrape
func (s *Scheduler) Next() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.interval == 0 {
		return time.Time{}, false
	}
	return s.cron.Entry(s.entry).Next, true
}

// tick runs a scrape unless the schedule was switched off since registration
func (s *Scheduler) tick(ctx context.Context) {
	cfg, err := settings.Load(ctx, s.store)
	if err != nil {
		s.logger.Error("❌ Scheduled scrape: failed to load settings", slog.Any("error", err))
		return
	}
	if !cfg.ScheduleEnabled {
		s.logger.Debug("scheduled scrape skipped, schedule disabled")
		return
	}

	res, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, models.ErrRunInProgress):
		s.logger.Info("⏭️ Scheduled scrape skipped, a run is in progress")
	case err != nil:
		s.logger.Warn("⚠️ Scheduled scrape ended early",
			slog.String("status", string(res.Status)),
			slog.Any("error", err))
	}
}

// cronLogger adapts slog to cron.Logger
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
