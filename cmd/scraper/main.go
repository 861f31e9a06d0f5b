package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"

	"go-upwork-assistant/internal/action"
	"go-upwork-assistant/internal/app"
	"go-upwork-assistant/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "scraper",
		Usage: "scrape Upwork job listings and relay them to a webhook",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   config.DefaultPath,
				Usage:   "path to configuration file",
				Sources: cli.EnvVars("CONFIG_PATH"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run one scrape now",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return handle(ctx, cmd, true, action.Request{Kind: action.KindScrape})
				},
			},
			{
				Name:   "schedule",
				Usage:  "scrape on the interval from the settings until interrupted",
				Action: schedule,
			},
			{
				Name:  "export",
				Usage: "write the last scrape as CSV",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Aliases: []string{"o"}, Value: ".", Usage: "output directory"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					req, err := action.NewRequest(action.KindExportCSV, action.ExportPayload{Dir: cmd.String("dir")})
					if err != nil {
						return err
					}
					return handle(ctx, cmd, false, req)
				},
			},
			{
				Name:      "proposal",
				Usage:     "draft a cover letter through the proposal webhook",
				ArgsUsage: "[job or apply page URL]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "job-id", Usage: "job id (the token after ~)"},
					&cli.StringFlag{Name: "title", Usage: "job title; skips reading the apply page"},
					&cli.StringFlag{Name: "description", Usage: "job description; skips reading the apply page"},
				},
				Action: proposal,
			},
			{
				Name:      "status",
				Usage:     "ask the status webhook about jobs (default: the last scrape)",
				ArgsUsage: "[job id...]",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					req, err := action.NewRequest(action.KindStatus, action.StatusPayload{JobIDs: cmd.Args().Slice()})
					if err != nil {
						return err
					}
					return handle(ctx, cmd, false, req)
				},
			},
			{
				Name:  "settings",
				Usage: "show or change the stored settings",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return handle(ctx, cmd, false, action.Request{Kind: action.KindGetSettings})
				},
				Commands: []*cli.Command{
					{
						Name:      "set",
						Usage:     "update settings, e.g. set scheduleEnabled=true webhookUrl=https://...",
						ArgsUsage: "key=value...",
						Action:    setSettings,
					},
				},
			},
		},
	}
}

// handle builds the app, runs one action and prints the response as JSON
func handle(ctx context.Context, cmd *cli.Command, withBrowser bool, req action.Request) error {
	a, err := build(ctx, cmd, withBrowser)
	if err != nil {
		return err
	}
	defer a.Close()

	resp := a.Actions.Handle(ctx, req)
	if err := printJSON(resp); err != nil {
		return err
	}
	if resp.Outcome == action.OutcomeError {
		return errors.New(resp.Error)
	}
	return nil
}

func build(ctx context.Context, cmd *cli.Command, withBrowser bool) (*app.App, error) {
	cfg, err := config.Load(cmd.Root().String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return app.New(ctx, cfg, app.Options{Browser: withBrowser})
}

func schedule(ctx context.Context, cmd *cli.Command) error {
	a, err := build(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Scheduler.Start(ctx); err != nil {
		return err
	}
	if next, ok := a.Scheduler.Next(); ok {
		a.Logger.Info("⏰ Waiting for the next scrape", "next", next)
	} else {
		a.Logger.Warn("⚠️ Schedule is disabled; enable it with: scraper settings set scheduleEnabled=true")
	}

	<-ctx.Done()
	<-a.Scheduler.Stop().Done()
	return nil
}

func proposal(ctx context.Context, cmd *cli.Command) error {
	p := action.ProposalPayload{
		URL:         cmd.Args().First(),
		JobID:       cmd.String("job-id"),
		Title:       cmd.String("title"),
		Description: cmd.String("description"),
	}
	req, err := action.NewRequest(action.KindProposal, p)
	if err != nil {
		return err
	}
	needsPage := p.Title == "" && p.Description == ""
	return handle(ctx, cmd, needsPage, req)
}

func setSettings(ctx context.Context, cmd *cli.Command) error {
	patch, err := parseAssignments(cmd.Args().Slice())
	if err != nil {
		return err
	}
	return handle(ctx, cmd, false, action.Request{Kind: action.KindUpdateSettings, Payload: patch})
}

// parseAssignments turns key=value pairs into a JSON object. A value that is
// valid JSON (true, 30, "x") is used as is, anything else becomes a string.
func parseAssignments(args []string) (json.RawMessage, error) {
	if len(args) == 0 {
		return nil, errors.New("nothing to set; pass key=value pairs")
	}
	patch := make(map[string]json.RawMessage, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		if json.Valid([]byte(value)) {
			patch[key] = json.RawMessage(value)
			continue
		}
		quoted, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		patch[key] = quoted
	}
	return json.Marshal(patch)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
