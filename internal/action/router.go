package action

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/samber/mo"

	"go-upwork-assistant/internal/browser"
	"go-upwork-assistant/internal/csvexport"
	"go-upwork-assistant/internal/models"
	"go-upwork-assistant/internal/notify"
	"go-upwork-assistant/internal/orchestrator"
	"go-upwork-assistant/internal/scraper/upwork"
	"go-upwork-assistant/internal/settings"
	"go-upwork-assistant/internal/store"
	"go-upwork-assistant/internal/transform"
	"go-upwork-assistant/internal/webhook"
)

// Scraper starts a scrape run
type Scraper interface {
	Run(ctx context.Context) (orchestrator.Result, error)
}

// Relay reaches the automation backend
type Relay interface {
	MatchStatus(ctx context.Context, url string, ids []string, shape string) (map[string]webhook.Status, error)
	Proposal(ctx context.Context, url string, ac upwork.ApplyContext) (string, error)
}

// Deps wires a Router. Browser is only needed for proposals read from an
// apply page; OnSettingsChanged runs after a successful settings update.
type Deps struct {
	Scraper           Scraper
	Store             store.Store
	Relay             Relay
	Browser           orchestrator.Browser
	Notifier          notify.Notifier
	Stability         browser.StabilityConfig
	OnSettingsChanged func(ctx context.Context) error
	Logger            *slog.Logger
	Now               func() time.Time
}

// Router dispatches action requests
type Router struct {
	deps Deps
}

// NewRouter creates a router
func NewRouter(deps Deps) *Router {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.Stability == (browser.StabilityConfig{}) {
		deps.Stability = browser.DefaultStability
	}
	return &Router{deps: deps}
}

// Handle runs one action. It never panics; failures come back in the Response.
func (r *Router) Handle(ctx context.Context, req Request) (resp Response) {
	resp.Kind = req.Kind
	defer func() {
		if p := recover(); p != nil {
			r.deps.Logger.Error("💥 Action panicked",
				slog.String("action", string(req.Kind)),
				slog.Any("panic", p),
				slog.String("stack", string(debug.Stack())))
			err := fmt.Errorf("internal error: %v", p)
			resp = Response{Kind: req.Kind, Outcome: OutcomeError, Error: err.Error(), err: err}
		}
	}()

	var (
		data any
		err  error
	)
	switch req.Kind {
	case KindScrape:
		data, err = r.scrape(ctx)
	case KindExportCSV:
		var p ExportPayload
		if err = decode(req.Payload, &p); err == nil {
			data, err = r.exportCSV(ctx, p)
		}
	case KindProposal:
		var p ProposalPayload
		if err = decode(req.Payload, &p); err == nil {
			data, err = r.proposal(ctx, p)
		}
	case KindStatus:
		var p StatusPayload
		if err = decode(req.Payload, &p); err == nil {
			data, err = r.status(ctx, p)
		}
	case KindGetSettings:
		data, err = settings.Load(ctx, r.deps.Store)
	case KindUpdateSettings:
		data, err = r.updateSettings(ctx, req.Payload)
	default:
		err = fmt.Errorf("%w %q", ErrUnknownAction, req.Kind)
	}

	resp.Outcome = outcome(err)
	// a scrape result is worth returning even when the run stopped early
	if err == nil || req.Kind == KindScrape {
		resp.Data = data
	}
	if err != nil {
		resp.err = err
		resp.Error = err.Error()
		r.deps.Logger.Warn("⚠️ Action did not complete",
			slog.String("action", string(req.Kind)),
			slog.String("outcome", string(resp.Outcome)),
			slog.Any("error", err))
	}
	return resp
}

func outcome(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, models.ErrNotConfigured), errors.Is(err, models.ErrRunInProgress):
		return OutcomeSkipped
	default:
		return OutcomeError
	}
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func (r *Router) scrape(ctx context.Context) (orchestrator.Result, error) {
	if r.deps.Scraper == nil {
		return orchestrator.Result{}, fmt.Errorf("browser: %w", models.ErrNotConfigured)
	}
	return r.deps.Scraper.Run(ctx)
}

// exportCSV encodes the last persisted scrape, into a file when p.Dir is set.
// A missing result is ErrNoJobsFound; an empty one still yields the header row.
func (r *Router) exportCSV(ctx context.Context, p ExportPayload) (ExportResult, error) {
	details, ok, err := store.Load[[]models.DetailJob](ctx, r.deps.Store, store.KeyLastScrapedJobs)
	if err != nil {
		return ExportResult{}, err
	}
	if !ok {
		return ExportResult{}, fmt.Errorf("nothing to export: %w", models.ErrNoJobsFound)
	}

	now := r.deps.Now()
	t := &transform.Transformer{Now: r.deps.Now, Logger: r.deps.Logger}
	records := t.TransformAll(details)
	res := ExportResult{FileName: csvexport.FileName(now), Count: len(records)}

	if p.Dir == "" {
		res.Content = csvexport.Encode(records)
		return res, nil
	}
	if res.Path, err = csvexport.WriteFile(p.Dir, now, records); err != nil {
		return ExportResult{}, err
	}
	r.deps.Logger.Info("💾 CSV exported", slog.String("path", res.Path), slog.Int("jobs", res.Count))
	return res, nil
}

func (r *Router) proposal(ctx context.Context, p ProposalPayload) (ProposalResult, error) {
	s, err := settings.Load(ctx, r.deps.Store)
	if err != nil {
		return ProposalResult{}, err
	}
	if s.ProposalWebhookURL == "" {
		return ProposalResult{}, fmt.Errorf("proposal webhook: %w", models.ErrNotConfigured)
	}

	ac, err := r.applyContext(ctx, p)
	if err != nil {
		return ProposalResult{}, err
	}

	text, err := r.deps.Relay.Proposal(ctx, s.ProposalWebhookURL, ac)
	if err != nil {
		notify.Send(ctx, r.deps.Logger, r.deps.Notifier, s, notify.Notification{
			Category: notify.CategoryError,
			Title:    "Proposal failed",
			Message:  err.Error(),
		})
		return ProposalResult{}, err
	}

	res := ProposalResult{JobID: ac.JobID.OrEmpty(), Title: ac.Title.OrEmpty(), Proposal: text}
	notify.Send(ctx, r.deps.Logger, r.deps.Notifier, s, notify.Notification{
		Category: notify.CategoryProposal,
		Title:    "Proposal ready",
		Message:  fmt.Sprintf("Drafted %d characters for %s.", len([]rune(text)), valueOr(res.Title, res.JobID)),
	})
	return res, nil
}

// applyContext builds the proposal context from the payload alone when it
// carries text, otherwise from the apply page
func (r *Router) applyContext(ctx context.Context, p ProposalPayload) (upwork.ApplyContext, error) {
	if p.Title != "" || p.Description != "" {
		ac := upwork.ApplyContext{
			JobID:       optional(p.JobID),
			Title:       optional(p.Title),
			Description: optional(p.Description),
		}
		if ac.JobID.IsAbsent() {
			ac.JobID = upwork.ExtractJobID(p.URL)
		}
		return ac, nil
	}

	url := strings.TrimSpace(p.URL)
	if url == "" && p.JobID != "" {
		url = upwork.ApplyURL(p.JobID)
	}
	if url == "" {
		return upwork.ApplyContext{}, fmt.Errorf("%w: proposal needs a url, a job_id or the job text", ErrInvalidPayload)
	}
	if !upwork.IsApplyPage(url) {
		id, ok := upwork.ExtractJobID(url).Get()
		if !ok {
			return upwork.ApplyContext{}, fmt.Errorf("%w: no job id in %q", ErrInvalidPayload, url)
		}
		url = upwork.ApplyURL(id)
	}
	if r.deps.Browser == nil {
		return upwork.ApplyContext{}, fmt.Errorf("browser: %w", models.ErrNotConfigured)
	}

	tab, err := r.deps.Browser.OpenTab(ctx, false)
	if err != nil {
		return upwork.ApplyContext{}, err
	}
	defer func() { _ = tab.Close() }()

	if err := tab.Navigate(ctx, url); err != nil {
		return upwork.ApplyContext{}, err
	}
	s, err := settings.Load(ctx, r.deps.Store)
	if err != nil {
		return upwork.ApplyContext{}, err
	}
	cfg := r.deps.Stability
	cfg.AntiBot = s.AntiBotWait()
	if err := browser.WaitStable(ctx, tab.Events(), cfg); err != nil {
		return upwork.ApplyContext{}, fmt.Errorf("apply page: %w", err)
	}
	html, err := tab.Content(ctx)
	if err != nil {
		return upwork.ApplyContext{}, err
	}
	return upwork.ExtractApplyContext(html, url), nil
}

func (r *Router) status(ctx context.Context, p StatusPayload) (StatusResult, error) {
	s, err := settings.Load(ctx, r.deps.Store)
	if err != nil {
		return StatusResult{}, err
	}
	if s.StatusWebhookURL == "" {
		return StatusResult{}, fmt.Errorf("status webhook: %w", models.ErrNotConfigured)
	}

	ids := p.JobIDs
	if len(ids) == 0 {
		if ids, err = r.lastJobIDs(ctx); err != nil {
			return StatusResult{}, err
		}
	}

	statuses, err := r.deps.Relay.MatchStatus(ctx, s.StatusWebhookURL, ids, s.StatusRequestShape)
	if err != nil {
		return StatusResult{}, err
	}
	return StatusResult{Requested: len(ids), Statuses: statuses}, nil
}

func (r *Router) lastJobIDs(ctx context.Context) ([]string, error) {
	jobs, _, err := store.Load[[]models.ExternalJob](ctx, r.deps.Store, store.KeyLastExternalJobs)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		if j.JobID != "" && j.JobID != models.NA {
			ids = append(ids, j.JobID)
		}
	}
	return ids, nil
}

func (r *Router) updateSettings(ctx context.Context, patch json.RawMessage) (settings.Settings, error) {
	if len(patch) == 0 {
		return settings.Settings{}, fmt.Errorf("%w: empty update", settings.ErrInvalid)
	}
	s, err := settings.Update(ctx, r.deps.Store, patch)
	if err != nil {
		return s, err
	}
	if r.deps.OnSettingsChanged != nil {
		if err := r.deps.OnSettingsChanged(ctx); err != nil {
			r.deps.Logger.Warn("⚠️ Settings saved but not applied", slog.Any("error", err))
		}
	}
	return s, nil
}

func optional(s string) mo.Option[string] {
	if s = strings.TrimSpace(s); s == "" {
		return mo.None[string]()
	}
	return mo.Some(s)
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
