// Package notify delivers user-facing notifications about runs. Each
// notification has a category that the user can switch off in settings.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"go-upwork-assistant/internal/settings"
)

// Category groups notifications for the settings toggles
type Category string

const (
	CategoryCompletion Category = "completion"
	CategoryNoJobs     Category = "no_jobs"
	CategoryDispatch   Category = "dispatch"
	CategoryProposal   Category = "proposal"
	CategoryError      Category = "error"
)

// Notification is one message for the user
type Notification struct {
	Category Category
	Title    string
	Message  string
	// Link is optional; rendered as a button where the channel supports it
	Link string
}

// Notifier delivers notifications to one channel
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Enabled reports whether the settings allow a category.
// no_jobs follows the completion toggle.
func Enabled(s settings.Settings, c Category) bool {
	switch c {
	case CategoryCompletion, CategoryNoJobs:
		return s.NotifyCompletion
	case CategoryDispatch:
		return s.NotifyDispatch
	case CategoryProposal:
		return s.NotifyProposal
	case CategoryError:
		return s.NotifyErrors
	default:
		return true
	}
}

// Send delivers n when its category is enabled. Delivery failures are logged
// and never interrupt the caller.
func Send(ctx context.Context, logger *slog.Logger, notifier Notifier, s settings.Settings, n Notification) {
	if notifier == nil || !Enabled(s, n.Category) {
		return
	}
	if err := notifier.Notify(ctx, n); err != nil {
		logger.Warn("⚠️ Failed to send notification",
			slog.String("category", string(n.Category)),
			slog.Any("error", err))
	}
}

// Multi fans a notification out to several channels
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes notifications to the structured log
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(ctx context.Context, n Notification) error {
	level := slog.LevelInfo
	if n.Category == CategoryError {
		level = slog.LevelWarn
	}
	l.Logger.Log(ctx, level, "🔔 "+n.Title,
		slog.String("category", string(n.Category)),
		slog.String("message", n.Message))
	return nil
}
