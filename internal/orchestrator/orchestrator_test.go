package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-upwork-assistant/internal/browser"
	"go-upwork-assistant/internal/dedup"
	"go-upwork-assistant/internal/logger"
	"go-upwork-assistant/internal/models"
	"go-upwork-assistant/internal/notify"
	"go-upwork-assistant/internal/settings"
	"go-upwork-assistant/internal/store"
)

const searchURL = "https://www.upwork.com/nx/search/jobs/?q=golang"

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// fakes

type fakeBrowser struct {
	mu         sync.Mutex
	existing   []browser.Tab
	pages      map[string]string
	failURLs   map[string]bool
	opened     []*fakeTab
	foreground []bool
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{pages: map[string]string{}, failURLs: map[string]bool{}}
}

func (b *fakeBrowser) Tabs() []browser.Tab {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]browser.Tab(nil), b.existing...)
}

func (b *fakeBrowser) OpenTab(_ context.Context, foreground bool) (browser.Tab, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := newFakeTab(b, "about:blank")
	b.opened = append(b.opened, t)
	b.foreground = append(b.foreground, foreground)
	return t, nil
}

func (b *fakeBrowser) html(url string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pages[url]
}

func (b *fakeBrowser) fails(url string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failURLs[url]
}

type fakeTab struct {
	b        *fakeBrowser
	mu       sync.Mutex
	url      string
	visited  []string
	closed   bool
	events   chan browser.Event
	snapshot int
}

func newFakeTab(b *fakeBrowser, url string) *fakeTab {
	return &fakeTab{b: b, url: url, events: make(chan browser.Event, 8)}
}

func (t *fakeTab) URL() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.url
}

func (t *fakeTab) Navigate(_ context.Context, url string) error {
	if t.b.fails(url) {
		return fmt.Errorf("net::ERR_CONNECTION_RESET at %s", url)
	}
	t.mu.Lock()
	t.url = url
	t.visited = append(t.visited, url)
	t.mu.Unlock()
	t.events <- browser.EventNavigating
	t.events <- browser.EventComplete
	return nil
}

func (t *fakeTab) Content(context.Context) (string, error) { return t.b.html(t.URL()), nil }
func (t *fakeTab) Title() string                           { return "Upwork" }
func (t *fakeTab) Events() <-chan browser.Event            { return t.events }
func (t *fakeTab) BringToFront() error                     { return nil }

func (t *fakeTab) Screenshot(string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot++
	return nil
}

func (t *fakeTab) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

type fakeDispatcher struct {
	mu    sync.Mutex
	ok    bool
	urls  []string
	sizes []int
}

func (d *fakeDispatcher) DispatchBatch(_ context.Context, url string, jobs []models.ExternalJob) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	d.sizes = append(d.sizes, len(jobs))
	return d.ok
}

type recorder struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recorder) Notify(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recorder) categories() []notify.Category {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notify.Category
	for _, n := range r.sent {
		out = append(out, n.Category)
	}
	return out
}

// helpers

func jobURL(id string) string { return "https://www.upwork.com/jobs/~" + id }

func searchHTML(ids ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, id := range ids {
		fmt.Fprintf(&b, `<article data-test="job-tile"><h2 data-test="job-title"><a href="/jobs/~%s">Job %s</a></h2></article>`, id, id)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func detailHTML(id string) string {
	return `<html><body>
<header data-test="job-title"><h1>Detailed job ` + id + `</h1></header>
<section data-test="description"><p>Description of ` + id + `</p></section>
<div data-test="budget">$500</div>
</body></html>`
}

type harness struct {
	browser    *fakeBrowser
	store      *store.MemoryStore
	dispatcher *fakeDispatcher
	notes      *recorder
	delays     int
	orch       *Orchestrator
}

// blockingStore pauses the first settings read until release is closed
type blockingStore struct {
	store.Store
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if key == store.KeySettings {
		b.once.Do(func() {
			close(b.entered)
			<-b.release
		})
	}
	return b.Store.Get(ctx, key)
}

func newHarness(t *testing.T, mutate func(*settings.Settings), ids ...string) *harness {
	t.Helper()
	ctx := context.Background()

	h := &harness{
		browser:    newFakeBrowser(),
		store:      store.NewMemoryStore(),
		dispatcher: &fakeDispatcher{ok: true},
		notes:      &recorder{},
	}
	h.browser.pages[searchURL] = searchHTML(ids...)
	for _, id := range ids {
		h.browser.pages[jobURL(id)] = detailHTML(id)
	}

	s := settings.Defaults()
	s.SearchURL = searchURL
	s.WebhookURL = "https://hooks.example.com/jobs"
	s.NotifyCompletion, s.NotifyDispatch, s.NotifyErrors = true, true, true
	if mutate != nil {
		mutate(&s)
	}
	require.NoError(t, settings.Save(ctx, h.store, s))

	seen, err := dedup.NewJobCache(ctx, h.store, logger.Discard())
	require.NoError(t, err)

	h.orch = New(Options{
		Browser:    h.browser,
		Store:      h.store,
		Dispatcher: h.dispatcher,
		Notifier:   h.notes,
		Seen:       seen,
		Logger:     logger.Discard(),
		Stability:  browser.StabilityConfig{Settle: time.Millisecond, Ceiling: 2 * time.Second},
		Delay: func(context.Context, time.Duration, time.Duration) error {
			h.delays++
			return nil
		},
		Now: func() time.Time { return fixedNow },
	})
	return h
}

func (h *harness) allOpenedTabsClosedExceptFirst(t *testing.T) {
	t.Helper()
	for i, tab := range h.browser.opened[1:] {
		assert.True(t, tab.closed, "detail tab %d left open", i)
	}
}

// tests

func TestRun_CompletesAndPersists(t *testing.T) {
	h := newHarness(t, func(s *settings.Settings) { s.OutputMode = settings.OutputBoth }, "01a", "02b")
	ctx := context.Background()

	res, err := h.orch.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, res.Status)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 2, res.Found)
	assert.Equal(t, 2, res.Scraped)
	assert.Zero(t, res.Fallbacks)
	assert.Equal(t, 2, res.NewJobs)
	require.NotNil(t, res.Dispatched)
	assert.True(t, *res.Dispatched)
	assert.Equal(t, StateIdle, h.orch.State())

	// one search tab in the foreground, then one background tab per detail
	require.Len(t, h.browser.opened, 3)
	assert.Equal(t, []bool{true, false, false}, h.browser.foreground)
	h.allOpenedTabsClosedExceptFirst(t)
	assert.Equal(t, 1, h.delays, "no pause before the first detail page")

	assert.Equal(t, []string{"https://hooks.example.com/jobs"}, h.dispatcher.urls)
	assert.Equal(t, []int{2}, h.dispatcher.sizes)

	external, ok, err := store.Load[[]models.ExternalJob](ctx, h.store, store.KeyLastExternalJobs)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, external, 2)
	assert.Equal(t, "Detailed job 01a", external[0].Title)
	assert.Equal(t, "FIXED", external[0].ProjectPaymentType)

	details, ok, err := store.Load[[]models.DetailJob](ctx, h.store, store.KeyLastScrapedJobs)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "02b", details[1].JobID.OrEmpty())

	ts, ok, err := store.Load[string](ctx, h.store, store.KeyLastScrapeTime)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "2024-06-01T12:00:00Z", ts)

	assert.Equal(t, []notify.Category{notify.CategoryDispatch, notify.CategoryCompletion}, h.notes.categories())

	last, ok := h.orch.Last()
	require.True(t, ok)
	assert.Equal(t, res.RunID, last.RunID)
}

func TestRun_SecondRunCountsOnlyNewJobs(t *testing.T) {
	h := newHarness(t, nil, "01a", "02b")

	_, err := h.orch.Run(context.Background())
	require.NoError(t, err)

	h.browser.pages[searchURL] = searchHTML("01a", "03c")
	h.browser.pages[jobURL("03c")] = detailHTML("03c")

	res, err := h.orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewJobs)
}

func TestRun_ReusesListingTab(t *testing.T) {
	h := newHarness(t, nil, "01a")
	listing := newFakeTab(h.browser, "https://www.upwork.com/nx/find-work/best-matches")
	h.browser.existing = []browser.Tab{listing}

	_, err := h.orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{searchURL}, listing.visited)
	assert.False(t, listing.closed)
	require.Len(t, h.browser.opened, 1, "only the detail tab is opened")
	assert.True(t, h.browser.opened[0].closed)
}

func TestRun_OpensBackgroundSearchTabWhenSiteIsOpen(t *testing.T) {
	h := newHarness(t, nil, "01a")
	h.browser.existing = []browser.Tab{newFakeTab(h.browser, "https://www.upwork.com/jobs/~0999")}

	_, err := h.orch.Run(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, h.browser.foreground)
	assert.False(t, h.browser.foreground[0])
}

func TestRun_NoJobsAbandons(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	res, err := h.orch.Run(ctx)

	require.ErrorIs(t, err, models.ErrNoJobsFound)
	assert.Equal(t, StatusAbandoned, res.Status)
	assert.Empty(t, h.dispatcher.urls)
	assert.Equal(t, []notify.Category{notify.CategoryNoJobs}, h.notes.categories())

	_, ok, err := h.store.Get(ctx, store.KeyLastScrapeTime)
	require.NoError(t, err)
	assert.False(t, ok, "an abandoned run persists nothing")
}

func TestRun_DetailFailureFallsBackToListing(t *testing.T) {
	h := newHarness(t, nil, "01a", "02b")
	h.browser.failURLs[jobURL("02b")] = true
	ctx := context.Background()

	res, err := h.orch.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Scraped)
	assert.Equal(t, 1, res.Fallbacks)
	h.allOpenedTabsClosedExceptFirst(t)

	details, _, err := store.Load[[]models.DetailJob](ctx, h.store, store.KeyLastScrapedJobs)
	require.NoError(t, err)
	require.Len(t, details, 2)
	fallback := details[1]
	assert.Equal(t, "02b", fallback.JobID.OrEmpty())
	assert.Equal(t, "Job 02b", fallback.Title.OrEmpty())
	assert.Equal(t, jobURL("02b"), fallback.URL.OrEmpty())
	assert.Empty(t, fallback.Description.OrEmpty())
	assert.Empty(t, fallback.Budget.OrEmpty())
}

func TestRun_AllDetailsFailAbandons(t *testing.T) {
	h := newHarness(t, nil, "01a", "02b")
	h.browser.failURLs[jobURL("01a")] = true
	h.browser.failURLs[jobURL("02b")] = true
	ctx := context.Background()

	res, err := h.orch.Run(ctx)

	require.ErrorIs(t, err, models.ErrAllDetailsFailed)
	assert.Equal(t, StatusAbandoned, res.Status)
	assert.Equal(t, 2, res.Fallbacks)
	assert.Empty(t, h.dispatcher.urls)
	assert.Equal(t, []notify.Category{notify.CategoryError}, h.notes.categories())
	h.allOpenedTabsClosedExceptFirst(t)

	_, ok, err := h.store.Get(ctx, store.KeyLastExternalJobs)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRun_CapsDetailPages(t *testing.T) {
	h := newHarness(t, func(s *settings.Settings) { s.MaxDetailJobs = 2 }, "01a", "02b", "03c", "04d")

	res, err := h.orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, res.Found)
	assert.Equal(t, 2, res.Scraped)
	assert.Equal(t, []int{2}, h.dispatcher.sizes)
}

func TestRun_CSVModeDoesNotDispatch(t *testing.T) {
	h := newHarness(t, func(s *settings.Settings) { s.OutputMode = settings.OutputCSV }, "01a")

	res, err := h.orch.Run(context.Background())
	require.NoError(t, err)

	assert.Nil(t, res.Dispatched)
	assert.Empty(t, h.dispatcher.urls)
	assert.Equal(t, []notify.Category{notify.CategoryCompletion}, h.notes.categories())

	_, ok, err := h.store.Get(context.Background(), store.KeyLastScrapedJobs)
	require.NoError(t, err)
	assert.True(t, ok, "results are kept for a later export")
}

func TestRun_WebhookModeWithoutURLKeepsResults(t *testing.T) {
	h := newHarness(t, func(s *settings.Settings) { s.WebhookURL = "" }, "01a")

	res, err := h.orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, res.Status)
	assert.Nil(t, res.Dispatched)
	assert.Empty(t, h.dispatcher.urls)
}

func TestRun_DispatchFailureIsReported(t *testing.T) {
	h := newHarness(t, nil, "01a")
	h.dispatcher.ok = false

	res, err := h.orch.Run(context.Background())
	require.NoError(t, err)

	require.NotNil(t, res.Dispatched)
	assert.False(t, *res.Dispatched)
	require.NotEmpty(t, h.notes.sent)
	assert.Equal(t, "Webhook delivery failed", h.notes.sent[0].Title)
}

func TestRun_SkipsOverlappingRun(t *testing.T) {
	h := newHarness(t, nil, "01a", "02b")
	entered := make(chan struct{})
	release := make(chan struct{})
	h.orch.opts.Delay = func(ctx context.Context, _, _ time.Duration) error {
		close(entered)
		<-release
		return nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := h.orch.Run(context.Background())
		done <- err
	}()

	<-entered
	assert.Equal(t, StateIteratingDetails, h.orch.State())
	assert.True(t, h.orch.Running())

	res, err := h.orch.Run(context.Background())
	require.ErrorIs(t, err, models.ErrRunInProgress)
	assert.Equal(t, StatusSkipped, res.Status)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateIdle, h.orch.State())
	assert.False(t, h.orch.Running())
}

func TestRunning_SetBeforeSettingsLoad(t *testing.T) {
	h := newHarness(t, nil, "01a")
	loading := make(chan struct{})
	release := make(chan struct{})
	h.orch.opts.Store = &blockingStore{Store: h.orch.opts.Store, entered: loading, release: release}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = h.orch.Run(context.Background())
	}()

	<-loading
	assert.Equal(t, StateIdle, h.orch.State(), "state has not advanced yet")
	assert.True(t, h.orch.Running())

	close(release)
	<-done
	assert.False(t, h.orch.Running())
}

func TestRun_CancelledDuringDelay(t *testing.T) {
	h := newHarness(t, nil, "01a", "02b")
	h.orch.opts.Delay = func(context.Context, time.Duration, time.Duration) error {
		return context.Canceled
	}

	res, err := h.orch.Run(context.Background())

	require.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, StatusFailed, res.Status)
	assert.Empty(t, h.dispatcher.urls)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "extracting_detail", StateExtractingDetail.String())
	assert.Equal(t, "unknown", State(99).String())

	text, err := StateDispatching.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "dispatching", string(text))
}
