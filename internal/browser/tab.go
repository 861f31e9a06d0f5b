package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"go-upwork-assistant/internal/models"
)

// Tab is one browser page as seen by the scrape run
type Tab interface {
	URL() string
	// Navigate starts loading url; progress is reported on Events
	Navigate(ctx context.Context, url string) error
	Content(ctx context.Context) (string, error)
	Title() string
	Events() <-chan Event
	Screenshot(path string) error
	BringToFront() error
	Close() error
}

const (
	eventBuffer    = 32
	contentTimeout = 15 * time.Second
	gotoTimeout    = 45 * time.Second
)

// PageTab adapts a playwright.Page to Tab
type PageTab struct {
	page   playwright.Page
	events chan Event
}

func newPageTab(page playwright.Page) *PageTab {
	t := &PageTab{page: page, events: make(chan Event, eventBuffer)}

	// A document request. history.pushState and hash changes send none.
	page.OnRequest(func(req playwright.Request) {
		if !req.IsNavigationRequest() {
			return
		}
		if f := req.Frame(); f != nil && f.ParentFrame() == nil {
			t.emit(EventNavigating)
		}
	})
	page.OnLoad(func(playwright.Page) { t.emit(EventComplete) })
	page.OnClose(func(playwright.Page) { t.emit(EventClosed) })

	return t
}

// emit never blocks the playwright event loop; a full buffer drops the event
func (t *PageTab) emit(ev Event) {
	select {
	case t.events <- ev:
	default:
	}
}

// drain discards stale events so a wait only sees the next navigation
func (t *PageTab) drain() {
	for {
		select {
		case <-t.events:
		default:
			return
		}
	}
}

func (t *PageTab) URL() string { return t.page.URL() }

func (t *PageTab) Events() <-chan Event { return t.events }

func (t *PageTab) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.page.IsClosed() {
		return models.ErrTabClosed
	}
	t.drain()

	if _, err := t.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateCommit,
		Timeout:   playwright.Float(float64(gotoTimeout.Milliseconds())),
	}); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// Content returns the page HTML, giving up after the content timeout
func (t *PageTab) Content(ctx context.Context) (string, error) {
	type result struct {
		html string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		html, err := t.page.Content()
		done <- result{html, err}
	}()

	timer := time.NewTimer(contentTimeout)
	defer timer.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("failed to read page content: %w", r.err)
		}
		return r.html, nil
	case <-timer.C:
		return "", errors.New("timed out reading page content")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (t *PageTab) Title() string {
	title, err := t.page.Title()
	if err != nil {
		return ""
	}
	return title
}

func (t *PageTab) Screenshot(path string) error {
	_, err := t.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	return err
}

func (t *PageTab) BringToFront() error { return t.page.BringToFront() }

func (t *PageTab) Close() error {
	if t.page.IsClosed() {
		return nil
	}
	return t.page.Close()
}
