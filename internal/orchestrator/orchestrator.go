// Package orchestrator drives one scrape run from the search results page
// through every detail page to persistence and webhook delivery. CSV output
// is not produced here; it is exported on demand from the persisted result.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"go-upwork-assistant/internal/browser"
	"go-upwork-assistant/internal/dedup"
	"go-upwork-assistant/internal/models"
	"go-upwork-assistant/internal/notify"
	"go-upwork-assistant/internal/scraper/upwork"
	"go-upwork-assistant/internal/settings"
	"go-upwork-assistant/internal/store"
	"go-upwork-assistant/internal/transform"
)

// Browser hands out tabs
type Browser interface {
	Tabs() []browser.Tab
	OpenTab(ctx context.Context, foreground bool) (browser.Tab, error)
}

// Dispatcher delivers the transformed batch
type Dispatcher interface {
	DispatchBatch(ctx context.Context, url string, jobs []models.ExternalJob) bool
}

// DelayFunc pauses between detail pages
type DelayFunc func(ctx context.Context, lo, hi time.Duration) error

// Options wires an Orchestrator. Seen and Screenshots are optional.
type Options struct {
	Browser     Browser
	Store       store.Store
	Dispatcher  Dispatcher
	Notifier    notify.Notifier
	Seen        *dedup.JobCache
	Screenshots *browser.ScreenshotDebugger
	Logger      *slog.Logger
	// Stability supplies the settle window and ceiling; the anti-bot window comes from settings
	Stability browser.StabilityConfig
	Delay     DelayFunc
	Now       func() time.Time
}

// Result summarizes a run
type Result struct {
	RunID      string    `json:"run_id"`
	Status     Status    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	// Found is the number of listing cards on the search page
	Found     int `json:"found"`
	Scraped   int `json:"scraped"`
	Fallbacks int `json:"fallbacks"`
	NewJobs   int `json:"new_jobs"`
	// Dispatched is nil when no dispatch was attempted
	Dispatched *bool  `json:"dispatched,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Orchestrator runs scrapes one at a time
type Orchestrator struct {
	opts        Options
	transformer *transform.Transformer

	running sync.Mutex
	busy    atomic.Bool
	state   atomic.Int32

	lastMu sync.RWMutex
	last   *Result
}

// New creates an orchestrator
func New(opts Options) *Orchestrator {
	if opts.Delay == nil {
		opts.Delay = browser.RandomDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Stability == (browser.StabilityConfig{}) {
		opts.Stability = browser.DefaultStability
	}
	return &Orchestrator{
		opts:        opts,
		transformer: &transform.Transformer{Now: opts.Now, Logger: opts.Logger},
	}
}

// State is the phase of the current run, StateIdle between runs
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

// Running reports whether a run holds the run lock, including while it is
// still loading settings and the state reads idle
func (o *Orchestrator) Running() bool {
	return o.busy.Load()
}

// Last returns the result of the most recent run that was not skipped
func (o *Orchestrator) Last() (Result, bool) {
	o.lastMu.RLock()
	defer o.lastMu.RUnlock()
	if o.last == nil {
		return Result{}, false
	}
	return *o.last, true
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
}

// Run performs one scrape. A call made while another run is in progress
// returns immediately with StatusSkipped and models.ErrRunInProgress.
func (o *Orchestrator) Run(ctx context.Context) (Result, error) {
	if !o.running.TryLock() {
		return Result{Status: StatusSkipped, StartedAt: o.opts.Now()}, models.ErrRunInProgress
	}
	defer o.running.Unlock()
	o.busy.Store(true)
	defer o.busy.Store(false)
	defer o.setState(StateIdle)

	res := Result{RunID: uuid.NewString(), StartedAt: o.opts.Now()}
	log := o.opts.Logger.With(slog.String("run_id", res.RunID))

	s, err := settings.Load(ctx, o.opts.Store)
	if err != nil {
		return o.finish(ctx, log, s, res, StatusFailed, err)
	}

	log.Info("🚀 Starting scrape", slog.String("search_url", s.SearchURL))

	// search page
	o.setState(StateLocatingSearchTab)
	tab, err := o.searchTab(ctx, log)
	if err != nil {
		return o.finish(ctx, log, s, res, StatusFailed, err)
	}
	if err := tab.Navigate(ctx, s.SearchURL); err != nil {
		return o.finish(ctx, log, s, res, StatusFailed, err)
	}

	o.setState(StateWaitingForStability)
	if err := browser.WaitStable(ctx, tab.Events(), o.stability(s)); err != nil {
		o.screenshot(tab, "search", "Search page did not settle")
		return o.finish(ctx, log, s, res, StatusFailed, fmt.Errorf("search page: %w", err))
	}

	o.setState(StateExtractingSearch)
	html, err := tab.Content(ctx)
	if err != nil {
		return o.finish(ctx, log, s, res, StatusFailed, err)
	}
	listings := upwork.ExtractSearch(html)
	res.Found = len(listings)
	log.Info("📋 Search page extracted", slog.Int("found", res.Found))

	if len(listings) == 0 {
		if browser.IsChallengeTitle(tab.Title()) {
			o.screenshot(tab, "challenge", "Search page is an anti-bot challenge")
		}
		return o.finish(ctx, log, s, res, StatusAbandoned, models.ErrNoJobsFound)
	}

	// detail pages
	o.setState(StateIteratingDetails)
	if len(listings) > s.MaxDetailJobs {
		listings = listings[:s.MaxDetailJobs]
	}
	lo, hi := s.DetailDelay()

	details := make([]models.DetailJob, 0, len(listings))
	for i, raw := range listings {
		if i > 0 {
			if err := o.opts.Delay(ctx, lo, hi); err != nil {
				return o.finish(ctx, log, s, res, StatusFailed, err)
			}
		}

		d, err := o.scrapeDetail(ctx, raw, s)
		if err != nil {
			if ctx.Err() != nil {
				return o.finish(ctx, log, s, res, StatusFailed, ctx.Err())
			}
			log.Warn("⚠️ Detail scrape failed, keeping listing data",
				slog.String("job_id", raw.JobID),
				slog.Any("error", err))
			d = raw.Shallow()
			res.Fallbacks++
		} else {
			res.Scraped++
		}
		details = append(details, d)
		o.setState(StateIteratingDetails)
	}

	if res.Scraped == 0 {
		return o.finish(ctx, log, s, res, StatusAbandoned, models.ErrAllDetailsFailed)
	}

	// persistence
	o.setState(StatePersisting)
	external := o.transformer.TransformAll(details)
	if err := o.persist(ctx, details, external); err != nil {
		return o.finish(ctx, log, s, res, StatusFailed, err)
	}
	res.NewJobs = o.markSeen(ctx, log, details)

	// delivery
	if s.OutputMode.IncludesWebhook() {
		o.setState(StateDispatching)
		o.dispatch(ctx, log, s, &res, external)
	}

	return o.finish(ctx, log, s, res, StatusCompleted, nil)
}

// searchTab reuses an open listing tab, otherwise opens one. The new tab
// comes to the foreground only when no tab of the site is open yet.
func (o *Orchestrator) searchTab(ctx context.Context, log *slog.Logger) (browser.Tab, error) {
	tabs := o.opts.Browser.Tabs()
	siteOpen := false
	for _, t := range tabs {
		url := t.URL()
		if upwork.IsListingPage(url) {
			log.Debug("♻️ Reusing listing tab", slog.String("url", url))
			return t, nil
		}
		if upwork.IsSiteURL(url) {
			siteOpen = true
		}
	}

	tab, err := o.opts.Browser.OpenTab(ctx, !siteOpen)
	if err != nil {
		return nil, fmt.Errorf("open search tab: %w", err)
	}
	return tab, nil
}

// scrapeDetail loads one job in its own tab. The tab is always closed.
func (o *Orchestrator) scrapeDetail(ctx context.Context, raw models.RawJob, s settings.Settings) (models.DetailJob, error) {
	tab, err := o.opts.Browser.OpenTab(ctx, false)
	if err != nil {
		return models.DetailJob{}, fmt.Errorf("open detail tab: %w", err)
	}
	defer func() {
		if err := tab.Close(); err != nil {
			o.opts.Logger.Debug("failed to close detail tab", slog.Any("error", err))
		}
	}()

	if err := tab.Navigate(ctx, raw.URL); err != nil {
		return models.DetailJob{}, err
	}

	o.setState(StateWaitingForStability)
	if err := browser.WaitStable(ctx, tab.Events(), o.stability(s)); err != nil {
		if errors.Is(err, models.ErrStabilityTimeout) {
			o.screenshot(tab, "detail_"+raw.JobID, "Detail page did not settle")
		}
		return models.DetailJob{}, err
	}

	o.setState(StateExtractingDetail)
	if browser.IsChallengeTitle(tab.Title()) {
		return models.DetailJob{}, errors.New("detail page is an anti-bot challenge")
	}
	html, err := tab.Content(ctx)
	if err != nil {
		return models.DetailJob{}, err
	}

	d := upwork.ExtractDetail(html, raw.URL)
	// the listing card is authoritative for identity when the page omits it
	if d.JobID.IsAbsent() {
		d.JobID = raw.Shallow().JobID
	}
	if d.Title.IsAbsent() {
		d.Title = raw.Shallow().Title
	}
	return d, nil
}

func (o *Orchestrator) stability(s settings.Settings) browser.StabilityConfig {
	cfg := o.opts.Stability
	cfg.AntiBot = s.AntiBotWait()
	return cfg
}

func (o *Orchestrator) persist(ctx context.Context, details []models.DetailJob, external []models.ExternalJob) error {
	if err := store.Save(ctx, o.opts.Store, store.KeyLastScrapedJobs, details); err != nil {
		return err
	}
	if err := store.Save(ctx, o.opts.Store, store.KeyLastExternalJobs, external); err != nil {
		return err
	}
	return store.Save(ctx, o.opts.Store, store.KeyLastScrapeTime, o.opts.Now().UTC().Format(time.RFC3339))
}

// markSeen records the run's ids and returns how many were new. Without a
// cache every job counts as new.
func (o *Orchestrator) markSeen(ctx context.Context, log *slog.Logger, details []models.DetailJob) int {
	if o.opts.Seen == nil {
		return len(details)
	}
	ids := make([]string, 0, len(details))
	for _, d := range details {
		ids = append(ids, d.JobID.OrEmpty())
	}
	added, err := o.opts.Seen.Add(ctx, ids)
	if err != nil {
		log.Warn("⚠️ Failed to update seen jobs", slog.Any("error", err))
	}
	return added
}

func (o *Orchestrator) dispatch(ctx context.Context, log *slog.Logger, s settings.Settings, res *Result, external []models.ExternalJob) {
	if s.WebhookURL == "" {
		log.Warn("⚠️ Webhook URL not configured, results kept locally")
		return
	}

	ok := o.opts.Dispatcher.DispatchBatch(ctx, s.WebhookURL, external)
	res.Dispatched = &ok

	n := notify.Notification{Category: notify.CategoryDispatch}
	if ok {
		n.Title = "Jobs sent to webhook"
		n.Message = fmt.Sprintf("%d jobs delivered.", len(external))
	} else {
		n.Title = "Webhook delivery failed"
		n.Message = fmt.Sprintf("%d jobs could not be delivered after retries.", len(external))
	}
	notify.Send(ctx, o.opts.Logger, o.opts.Notifier, s, n)
}

// finish stamps the result, logs it and sends the matching notification
func (o *Orchestrator) finish(ctx context.Context, log *slog.Logger, s settings.Settings, res Result, status Status, err error) (Result, error) {
	res.Status = status
	res.FinishedAt = o.opts.Now()
	if err != nil {
		res.Error = err.Error()
	}

	o.lastMu.Lock()
	o.last = &res
	o.lastMu.Unlock()

	switch {
	case status == StatusCompleted:
		log.Info("✅ Scrape finished",
			slog.Int("found", res.Found),
			slog.Int("scraped", res.Scraped),
			slog.Int("fallbacks", res.Fallbacks),
			slog.Int("new", res.NewJobs))
		notify.Send(ctx, o.opts.Logger, o.opts.Notifier, s, notify.Notification{
			Category: notify.CategoryCompletion,
			Title:    "Scrape complete",
			Message: fmt.Sprintf("%d jobs scraped (%d new, %d from listing only).",
				res.Scraped+res.Fallbacks, res.NewJobs, res.Fallbacks),
			Link: s.SearchURL,
		})

	case errors.Is(err, models.ErrNoJobsFound):
		log.Warn("📭 No jobs found on search page")
		notify.Send(ctx, o.opts.Logger, o.opts.Notifier, s, notify.Notification{
			Category: notify.CategoryNoJobs,
			Title:    "No jobs found",
			Message:  "The search page had no job listings. Check the search URL or log in again.",
			Link:     s.SearchURL,
		})

	default:
		log.Error("❌ Scrape failed", slog.String("status", string(status)), slog.Any("error", err))
		notify.Send(ctx, o.opts.Logger, o.opts.Notifier, s, notify.Notification{
			Category: notify.CategoryError,
			Title:    "Scrape failed",
			Message:  res.Error,
		})
	}

	return res, err
}

func (o *Orchestrator) screenshot(tab browser.Tab, name, message string) {
	if o.opts.Screenshots == nil {
		return
	}
	_, _ = o.opts.Screenshots.Capture(tab, name, message)
}
