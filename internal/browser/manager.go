package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// Config controls how the browser is launched
type Config struct {
	Headless    bool   `yaml:"headless"`
	UserAgent   string `yaml:"user_agent"`
	Locale      string `yaml:"locale"`
	CookiesPath string `yaml:"cookies_path"`
	// InstallDriver downloads the playwright driver and Chromium on first start
	InstallDriver bool `yaml:"install_driver"`
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Manager owns the playwright driver, one Chromium instance and one browser
// context. Every tab the run touches lives in that context.
type Manager struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	logger  *slog.Logger

	mu   sync.Mutex
	tabs map[playwright.Page]*PageTab
}

// NewManager starts Chromium and opens a context with the session cookies loaded
func NewManager(cfg Config, logger *slog.Logger) (*Manager, error) {
	if cfg.InstallDriver {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, fmt.Errorf("could not install playwright: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		Args:     []string{"--disable-blink-features=AutomationControlled"},
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("could not launch chromium: %w", err)
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	opts := playwright.BrowserNewContextOptions{UserAgent: playwright.String(userAgent)}
	if cfg.Locale != "" {
		opts.Locale = playwright.String(cfg.Locale)
	}

	bctx, err := browser.NewContext(opts)
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("could not create browser context: %w", err)
	}

	m := &Manager{
		pw:      pw,
		browser: browser,
		context: bctx,
		logger:  logger,
		tabs:    make(map[playwright.Page]*PageTab),
	}

	if cfg.CookiesPath != "" {
		cookies, err := LoadCookies(cfg.CookiesPath)
		if err != nil {
			logger.Warn("⚠️ Could not load cookies, continuing without a session",
				slog.String("path", cfg.CookiesPath), slog.Any("error", err))
		} else if err := bctx.AddCookies(cookies); err != nil {
			logger.Warn("⚠️ Could not add cookies", slog.Any("error", err))
		} else {
			logger.Info("🍪 Loaded cookies", slog.Int("count", len(cookies)))
		}
	}

	logger.Info("✅ Browser initialized", slog.Bool("headless", cfg.Headless))
	return m, nil
}

// Tabs lists the open pages of the context
func (m *Manager) Tabs() []Tab {
	m.mu.Lock()
	defer m.mu.Unlock()

	pages := m.context.Pages()
	open := make(map[playwright.Page]bool, len(pages))
	tabs := make([]Tab, 0, len(pages))
	for _, p := range pages {
		if p.IsClosed() {
			continue
		}
		open[p] = true
		tabs = append(tabs, m.wrap(p))
	}
	for p := range m.tabs {
		if !open[p] {
			delete(m.tabs, p)
		}
	}
	return tabs
}

// OpenTab creates a blank page. A foreground tab is brought to front.
func (m *Manager) OpenTab(ctx context.Context, foreground bool) (Tab, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, err := m.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	m.mu.Lock()
	tab := m.wrap(page)
	m.mu.Unlock()

	if foreground {
		if err := tab.BringToFront(); err != nil {
			m.logger.Debug("could not bring tab to front", slog.Any("error", err))
		}
	}
	return tab, nil
}

// wrap must be called with mu held
func (m *Manager) wrap(p playwright.Page) *PageTab {
	if t, ok := m.tabs[p]; ok {
		return t
	}
	t := newPageTab(p)
	m.tabs[p] = t
	return t
}

// Close shuts down the context, browser and driver
func (m *Manager) Close() error {
	var firstErr error
	if err := m.context.Close(); err != nil {
		firstErr = err
	}
	if err := m.browser.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := m.pw.Stop(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
