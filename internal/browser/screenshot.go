package browser

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Screenshotter is anything that can save an image of itself
type Screenshotter interface {
	Screenshot(path string) error
}

// ScreenshotDebugger saves full-page screenshots when a run hits trouble
type ScreenshotDebugger struct {
	outputDir string
	logger    *slog.Logger
}

// NewScreenshotDebugger writes into dir (default logs/screenshots)
func NewScreenshotDebugger(dir string, logger *slog.Logger) *ScreenshotDebugger {
	if dir == "" {
		dir = filepath.Join(".", "logs", "screenshots")
	}
	return &ScreenshotDebugger{outputDir: dir, logger: logger}
}

// Capture saves a screenshot named after name and the current time
func (s *ScreenshotDebugger) Capture(tab Screenshotter, name, message string) (string, error) {
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create screenshot dir: %w", err)
	}

	filename := fmt.Sprintf("%s_%s.png", sanitize(name), time.Now().Format("2006-01-02_15-04-05"))
	path := filepath.Join(s.outputDir, filename)
	s.logger.Info("📸 "+message, slog.String("path", path))

	if err := tab.Screenshot(path); err != nil {
		s.logger.Warn("⚠️ Failed to capture screenshot", slog.Any("error", err))
		return "", err
	}
	return path, nil
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}

var challengeTitles = []string{"just a moment", "attention required", "verify you are human", "access denied"}

// IsChallengeTitle reports whether a page title belongs to an anti-bot interstitial
func IsChallengeTitle(title string) bool {
	lower := strings.ToLower(title)
	for _, t := range challengeTitles {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
