package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v3"

	"go-upwork-assistant/internal/api/handler"
	"go-upwork-assistant/internal/api/router"
	"go-upwork-assistant/internal/app"
	"go-upwork-assistant/internal/config"
)

func main() {
	cmd := &cli.Command{
		Name:  "server",
		Usage: "run the scheduler and the HTTP control API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   config.DefaultPath,
				Usage:   "path to configuration file",
				Sources: cli.EnvVars("CONFIG_PATH"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, cmd.String("config"))
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.Options{Browser: true})
	if err != nil {
		return err
	}
	defer a.Close()

	a.Logger.Info("🚀 Starting Upwork assistant server", slog.String("config", configPath))

	if err := a.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	deps := &handler.Dependencies{
		Logger:      a.Logger,
		Actions:     a.Actions,
		Store:       a.Store,
		Runs:        a.Orchestrator,
		Schedule:    a.Scheduler,
		BaseContext: ctx,
	}
	h := handler.New(deps)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router.SetupRouter(h, deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.Logger.Info("🌐 HTTP server listening", slog.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	a.Logger.Info("🛑 Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error("Server forced to shutdown", slog.Any("error", err))
	}

	// the signal context is already cancelled, so a running scrape unwinds at its next step
	select {
	case <-a.Scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		a.Logger.Warn("⚠️ Scheduled scrape still running at shutdown")
	}
	h.Wait()

	a.Logger.Info("👋 Shutdown complete")
	return nil
}
