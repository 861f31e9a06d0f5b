// Package app assembles the components from a Config. Both binaries start here.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"go-upwork-assistant/internal/action"
	"go-upwork-assistant/internal/browser"
	"go-upwork-assistant/internal/config"
	"go-upwork-assistant/internal/dedup"
	"go-upwork-assistant/internal/logger"
	"go-upwork-assistant/internal/notify"
	"go-upwork-assistant/internal/orchestrator"
	"go-upwork-assistant/internal/scheduler"
	"go-upwork-assistant/internal/store"
	"go-upwork-assistant/internal/webhook"
)

// Options selects the optional parts
type Options struct {
	// Browser starts Chromium; without it scrape and apply-page proposals are skipped
	Browser bool
	// Logger replaces the one built from the config
	Logger *slog.Logger
}

// App holds the assembled components
type App struct {
	Config       *config.Config
	Logger       *slog.Logger
	Store        store.Store
	Browser      *browser.Manager
	Orchestrator *orchestrator.Orchestrator
	Scheduler    *scheduler.Scheduler
	Dispatcher   *webhook.Dispatcher
	Actions      *action.Router

	closers []io.Closer
}

// New builds every component. On error, whatever was already opened is closed.
func New(ctx context.Context, cfg *config.Config, opts Options) (_ *App, err error) {
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.Logger = opts.Logger
	if a.Logger == nil {
		log, closer, err := logger.New(&cfg.Logging)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
		a.Logger = log
		a.closers = append(a.closers, closer)
	}

	a.Store, err = store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	a.closers = append(a.closers, a.Store)
	a.Logger.Info("🗄️ Store opened", slog.String("backend", cfg.Store.Backend))

	var notifier notify.Multi
	notifier = append(notifier, notify.LogNotifier{Logger: a.Logger})
	if cfg.Telegram.Enabled() {
		bot, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			a.Logger.Warn("⚠️ Telegram disabled", slog.Any("error", err))
		} else {
			notifier = append(notifier, bot)
			a.Logger.Info("🤖 Telegram notifications enabled")
		}
	}

	a.Dispatcher = webhook.NewDispatcher(a.Logger,
		webhook.WithHTTPClient(&http.Client{Timeout: cfg.Webhook.Timeout}),
		webhook.WithAttempts(cfg.Webhook.Attempts),
		webhook.WithBaseDelay(cfg.Webhook.BaseDelay),
	)

	deps := action.Deps{
		Store:     a.Store,
		Relay:     webhook.NewRelay(a.Dispatcher),
		Notifier:  notifier,
		Stability: cfg.Stability(),
		Logger:    a.Logger,
	}

	if opts.Browser {
		a.Browser, err = browser.NewManager(cfg.Browser, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
		a.closers = append(a.closers, a.Browser)

		seen, err := dedup.NewJobCache(ctx, a.Store, a.Logger)
		if err != nil {
			return nil, err
		}

		a.Orchestrator = orchestrator.New(orchestrator.Options{
			Browser:     a.Browser,
			Store:       a.Store,
			Dispatcher:  a.Dispatcher,
			Notifier:    notifier,
			Seen:        seen,
			Screenshots: browser.NewScreenshotDebugger(cfg.Scrape.ScreenshotDir, a.Logger),
			Logger:      a.Logger,
			Stability:   cfg.Stability(),
		})
		a.Scheduler = scheduler.New(a.Store, a.Orchestrator, a.Logger)

		deps.Scraper = a.Orchestrator
		deps.Browser = a.Browser
		deps.OnSettingsChanged = a.Scheduler.Sync
	}

	a.Actions = action.NewRouter(deps)
	return a, nil
}

// Close releases everything New opened, newest first
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
