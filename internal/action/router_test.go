package action

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-upwork-assistant/internal/browser"
	"go-upwork-assistant/internal/csvexport"
	"go-upwork-assistant/internal/logger"
	"go-upwork-assistant/internal/models"
	"go-upwork-assistant/internal/notify"
	"go-upwork-assistant/internal/orchestrator"
	"go-upwork-assistant/internal/scraper/upwork"
	"go-upwork-assistant/internal/settings"
	"go-upwork-assistant/internal/store"
	"go-upwork-assistant/internal/webhook"
)

var fixedNow = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

type fakeScraper struct {
	res   orchestrator.Result
	err   error
	panic bool
}

func (f *fakeScraper) Run(context.Context) (orchestrator.Result, error) {
	if f.panic {
		panic("tab manager exploded")
	}
	return f.res, f.err
}

type fakeRelay struct {
	mu        sync.Mutex
	statusURL string
	ids       []string
	shape     string
	statuses  map[string]webhook.Status
	contexts  []upwork.ApplyContext
	proposal  string
	err       error
}

func (f *fakeRelay) MatchStatus(_ context.Context, url string, ids []string, shape string) (map[string]webhook.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusURL, f.ids, f.shape = url, ids, shape
	return f.statuses, f.err
}

func (f *fakeRelay) Proposal(_ context.Context, _ string, ac upwork.ApplyContext) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contexts = append(f.contexts, ac)
	return f.proposal, f.err
}

type fakeBrowser struct {
	html   string
	opened []*fakeTab
}

func (b *fakeBrowser) Tabs() []browser.Tab { return nil }

func (b *fakeBrowser) OpenTab(context.Context, bool) (browser.Tab, error) {
	t := &fakeTab{html: b.html, events: make(chan browser.Event, 4)}
	b.opened = append(b.opened, t)
	return t, nil
}

type fakeTab struct {
	html    string
	url     string
	visited []string
	closed  bool
	events  chan browser.Event
}

func (t *fakeTab) URL() string { return t.url }
func (t *fakeTab) Navigate(_ context.Context, url string) error {
	t.url = url
	t.visited = append(t.visited, url)
	t.events <- browser.EventComplete
	return nil
}
func (t *fakeTab) Content(context.Context) (string, error) { return t.html, nil }
func (t *fakeTab) Title() string                           { return "" }
func (t *fakeTab) Events() <-chan browser.Event            { return t.events }
func (t *fakeTab) Screenshot(string) error                 { return nil }
func (t *fakeTab) BringToFront() error                     { return nil }
func (t *fakeTab) Close() error                            { t.closed = true; return nil }

type recorder struct {
	sent []notify.Notification
}

func (r *recorder) Notify(_ context.Context, n notify.Notification) error {
	r.sent = append(r.sent, n)
	return nil
}

type fixture struct {
	store   *store.MemoryStore
	scraper *fakeScraper
	relay   *fakeRelay
	browser *fakeBrowser
	notes   *recorder
	synced  int
	router  *Router
}

func newFixture(t *testing.T, mutate func(*settings.Settings)) *fixture {
	t.Helper()
	f := &fixture{
		store:   store.NewMemoryStore(),
		scraper: &fakeScraper{},
		relay:   &fakeRelay{},
		browser: &fakeBrowser{},
		notes:   &recorder{},
	}

	s := settings.Defaults()
	s.StatusWebhookURL = "https://n8n.example.com/status"
	s.ProposalWebhookURL = "https://n8n.example.com/proposal"
	if mutate != nil {
		mutate(&s)
	}
	require.NoError(t, settings.Save(context.Background(), f.store, s))

	f.router = NewRouter(Deps{
		Scraper:   f.scraper,
		Store:     f.store,
		Relay:     f.relay,
		Browser:   f.browser,
		Notifier:  f.notes,
		Stability: browser.StabilityConfig{Settle: time.Millisecond, Ceiling: time.Second},
		OnSettingsChanged: func(context.Context) error {
			f.synced++
			return nil
		},
		Logger: logger.Discard(),
		Now:    func() time.Time { return fixedNow },
	})
	return f
}

func (f *fixture) handle(t *testing.T, kind Kind, payload any) Response {
	t.Helper()
	req, err := NewRequest(kind, payload)
	require.NoError(t, err)
	return f.router.Handle(context.Background(), req)
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	_, err := ParseKind("reboot")
	assert.Error(t, err)
}

func TestHandle_UnknownAction(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.router.Handle(context.Background(), Request{Kind: "reboot"})

	assert.Equal(t, OutcomeError, resp.Outcome)
	assert.Contains(t, resp.Error, "reboot")
	assert.ErrorIs(t, resp.Err(), ErrUnknownAction)
}

func TestHandle_InvalidPayload(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.router.Handle(context.Background(), Request{Kind: KindStatus, Payload: json.RawMessage(`{"job_ids": 7}`)})

	assert.Equal(t, OutcomeError, resp.Outcome)
	assert.ErrorIs(t, resp.Err(), ErrInvalidPayload)
	assert.Nil(t, resp.Data)
}

func TestHandle_RecoversFromPanic(t *testing.T) {
	f := newFixture(t, nil)
	f.scraper.panic = true

	resp := f.handle(t, KindScrape, nil)

	assert.Equal(t, OutcomeError, resp.Outcome)
	assert.Contains(t, resp.Error, "tab manager exploded")
}

func TestScrape(t *testing.T) {
	f := newFixture(t, nil)
	f.scraper.res = orchestrator.Result{RunID: "run-1", Status: orchestrator.StatusCompleted, Scraped: 4}

	resp := f.handle(t, KindScrape, nil)

	require.True(t, resp.OK())
	assert.Equal(t, f.scraper.res, resp.Data)
}

func TestScrape_OverlapIsSkipped(t *testing.T) {
	f := newFixture(t, nil)
	f.scraper.res = orchestrator.Result{Status: orchestrator.StatusSkipped}
	f.scraper.err = models.ErrRunInProgress

	resp := f.handle(t, KindScrape, nil)

	assert.Equal(t, OutcomeSkipped, resp.Outcome)
	assert.Equal(t, f.scraper.res, resp.Data)
}

func TestScrape_WithoutBrowserIsSkipped(t *testing.T) {
	f := newFixture(t, nil)
	f.router.deps.Scraper = nil

	resp := f.handle(t, KindScrape, nil)

	assert.Equal(t, OutcomeSkipped, resp.Outcome)
}

func TestExportCSV(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	resp := f.handle(t, KindExportCSV, nil)
	assert.Equal(t, OutcomeError, resp.Outcome, "nothing scraped yet")
	assert.ErrorIs(t, resp.Err(), models.ErrNoJobsFound)

	details := []models.DetailJob{
		{JobID: mo.Some("01a"), Title: mo.Some("Go, and more"), Budget: mo.Some("$300")},
		{JobID: mo.Some("02b"), Title: mo.Some("Second")},
	}
	require.NoError(t, store.Save(ctx, f.store, store.KeyLastScrapedJobs, details))

	resp = f.handle(t, KindExportCSV, nil)
	require.True(t, resp.OK(), resp.Error)

	res, ok := resp.Data.(ExportResult)
	require.True(t, ok)
	assert.Equal(t, "upwork-jobs-2024-06-01.csv", res.FileName)
	assert.Equal(t, 2, res.Count)

	rows, err := csv.NewReader(strings.NewReader(res.Content)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, csvexport.FieldOrder, rows[0])
	assert.Contains(t, rows[1], "Go, and more")
}

func TestExportCSV_ToDirectory(t *testing.T) {
	f := newFixture(t, nil)
	dir := t.TempDir()
	details := []models.DetailJob{{JobID: mo.Some("01a"), Title: mo.Some("On disk")}}
	require.NoError(t, store.Save(context.Background(), f.store, store.KeyLastScrapedJobs, details))

	resp := f.handle(t, KindExportCSV, ExportPayload{Dir: dir})
	require.True(t, resp.OK(), resp.Error)

	res := resp.Data.(ExportResult)
	assert.Equal(t, filepath.Join(dir, "upwork-jobs-2024-06-01.csv"), res.Path)
	assert.Empty(t, res.Content)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "On disk")
}

func TestExportCSV_EmptyResultIsHeaderOnly(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, store.Save(context.Background(), f.store, store.KeyLastScrapedJobs, []models.DetailJob{}))

	resp := f.handle(t, KindExportCSV, nil)
	require.True(t, resp.OK())

	res := resp.Data.(ExportResult)
	assert.Zero(t, res.Count)
	assert.Equal(t, csvexport.Encode(nil), res.Content)
}

func TestProposal_FromPayloadText(t *testing.T) {
	f := newFixture(t, nil)
	f.relay.proposal = "Hi, I can build this."

	resp := f.handle(t, KindProposal, ProposalPayload{
		URL:         "https://www.upwork.com/jobs/~0123",
		Title:       "Go scraper",
		Description: "Need a scraper",
	})

	require.True(t, resp.OK(), resp.Error)
	res := resp.Data.(ProposalResult)
	assert.Equal(t, "0123", res.JobID)
	assert.Equal(t, "Hi, I can build this.", res.Proposal)
	assert.Empty(t, f.browser.opened, "payload text needs no browser")

	require.Len(t, f.relay.contexts, 1)
	assert.Equal(t, "Need a scraper", f.relay.contexts[0].Description.OrEmpty())

	require.Len(t, f.notes.sent, 1)
	assert.Equal(t, notify.CategoryProposal, f.notes.sent[0].Category)
}

func TestProposal_ReadsApplyPage(t *testing.T) {
	f := newFixture(t, nil)
	f.relay.proposal = "Cover letter"
	f.browser.html = `<html><head><title>Build a CLI | Upwork</title></head><body>
<div data-test="job-description">Write a CLI in Go.</div></body></html>`

	resp := f.handle(t, KindProposal, ProposalPayload{JobID: "0777"})

	require.True(t, resp.OK(), resp.Error)
	require.Len(t, f.browser.opened, 1)
	tab := f.browser.opened[0]
	assert.Equal(t, []string{upwork.ApplyURL("0777")}, tab.visited)
	assert.True(t, tab.closed)

	require.Len(t, f.relay.contexts, 1)
	ac := f.relay.contexts[0]
	assert.Equal(t, "0777", ac.JobID.OrEmpty())
	assert.Equal(t, "Build a CLI", ac.Title.OrEmpty())
	assert.Equal(t, "Write a CLI in Go.", ac.Description.OrEmpty())
}

func TestProposal_JobURLIsRewrittenToApplyPage(t *testing.T) {
	f := newFixture(t, nil)
	f.relay.proposal = "Cover letter"

	resp := f.handle(t, KindProposal, ProposalPayload{URL: "https://www.upwork.com/jobs/Title_~0555/"})

	require.True(t, resp.OK(), resp.Error)
	require.Len(t, f.browser.opened, 1)
	assert.Equal(t, []string{upwork.ApplyURL("0555")}, f.browser.opened[0].visited)
}

func TestProposal_Errors(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		f := newFixture(t, func(s *settings.Settings) { s.ProposalWebhookURL = "" })
		resp := f.handle(t, KindProposal, ProposalPayload{Title: "x"})
		assert.Equal(t, OutcomeSkipped, resp.Outcome)
		assert.Empty(t, f.relay.contexts)
	})

	t.Run("nothing to identify the job", func(t *testing.T) {
		f := newFixture(t, nil)
		resp := f.handle(t, KindProposal, ProposalPayload{})
		assert.ErrorIs(t, resp.Err(), ErrInvalidPayload)
	})

	t.Run("relay failure notifies", func(t *testing.T) {
		f := newFixture(t, nil)
		f.relay.err = errors.New("webhook returned 500")
		resp := f.handle(t, KindProposal, ProposalPayload{Title: "x"})
		assert.Equal(t, OutcomeError, resp.Outcome)
		require.Len(t, f.notes.sent, 1)
		assert.Equal(t, notify.CategoryError, f.notes.sent[0].Category)
	})
}

func TestStatus_ExplicitIDs(t *testing.T) {
	f := newFixture(t, func(s *settings.Settings) { s.StatusRequestShape = webhook.ShapeSearch })
	f.relay.statuses = map[string]webhook.Status{"01a": webhook.StatusApplied}

	resp := f.handle(t, KindStatus, StatusPayload{JobIDs: []string{"01a", "02b"}})

	require.True(t, resp.OK(), resp.Error)
	res := resp.Data.(StatusResult)
	assert.Equal(t, 2, res.Requested)
	assert.Equal(t, webhook.StatusApplied, res.Statuses["01a"])
	assert.Equal(t, "https://n8n.example.com/status", f.relay.statusURL)
	assert.Equal(t, webhook.ShapeSearch, f.relay.shape)
}

func TestStatus_DefaultsToLastScrape(t *testing.T) {
	f := newFixture(t, nil)
	jobs := []models.ExternalJob{models.NewExternalJob(), models.NewExternalJob()}
	jobs[0].JobID = "01a"
	require.NoError(t, store.Save(context.Background(), f.store, store.KeyLastExternalJobs, jobs))

	resp := f.handle(t, KindStatus, nil)

	require.True(t, resp.OK(), resp.Error)
	assert.Equal(t, []string{"01a"}, f.relay.ids, "records without an id are not sent")
}

func TestStatus_NotConfigured(t *testing.T) {
	f := newFixture(t, func(s *settings.Settings) { s.StatusWebhookURL = "" })

	resp := f.handle(t, KindStatus, StatusPayload{JobIDs: []string{"01a"}})

	assert.Equal(t, OutcomeSkipped, resp.Outcome)
	assert.Nil(t, f.relay.ids)
}

func TestSettingsActions(t *testing.T) {
	f := newFixture(t, nil)

	resp := f.handle(t, KindGetSettings, nil)
	require.True(t, resp.OK())
	assert.Equal(t, settings.DefaultSearchURL, resp.Data.(settings.Settings).SearchURL)

	resp = f.router.Handle(context.Background(), Request{
		Kind:    KindUpdateSettings,
		Payload: json.RawMessage(`{"scheduleEnabled": true, "scheduleIntervalMinutes": 15}`),
	})
	require.True(t, resp.OK(), resp.Error)
	updated := resp.Data.(settings.Settings)
	assert.True(t, updated.ScheduleEnabled)
	assert.Equal(t, 15, updated.ScheduleIntervalMinutes)
	assert.Equal(t, 1, f.synced)

	resp = f.router.Handle(context.Background(), Request{
		Kind:    KindUpdateSettings,
		Payload: json.RawMessage(`{"colour": "green"}`),
	})
	assert.ErrorIs(t, resp.Err(), settings.ErrInvalid)
	assert.Equal(t, 1, f.synced, "rejected update does not resync")

	resp = f.handle(t, KindUpdateSettings, nil)
	assert.Equal(t, OutcomeError, resp.Outcome)
}
