// Package settings holds the user-editable options of the assistant. They live
// in the Store under a single key; keys missing from the stored document take
// their default value.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go-upwork-assistant/internal/store"
)

// OutputMode selects where scrape results go
type OutputMode string

const (
	OutputWebhook OutputMode = "webhook"
	OutputCSV     OutputMode = "csv"
	OutputBoth    OutputMode = "both"
)

// IncludesWebhook reports whether results should be dispatched
func (m OutputMode) IncludesWebhook() bool {
	return m == OutputWebhook || m == OutputBoth
}

// IncludesCSV reports whether results should be written as CSV
func (m OutputMode) IncludesCSV() bool {
	return m == OutputCSV || m == OutputBoth
}

// DefaultSearchURL is the newest-first job search
const DefaultSearchURL = "https://www.upwork.com/nx/search/jobs/?sort=recency"

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("invalid settings")

// Settings is the flat settings document
type Settings struct {
	WebhookURL              string     `json:"webhookUrl"`
	OutputMode              OutputMode `json:"outputMode"`
	ScheduleEnabled         bool       `json:"scheduleEnabled"`
	ScheduleIntervalMinutes int        `json:"scheduleIntervalMinutes"`
	SearchURL               string     `json:"searchUrl"`
	AntiBotWaitSeconds      int        `json:"antiBotWaitSeconds"`
	DetailDelayMinMs        int        `json:"detailDelayMinMs"`
	DetailDelayMaxMs        int        `json:"detailDelayMaxMs"`
	MaxDetailJobs           int        `json:"maxDetailJobs"`
	StatusWebhookURL        string     `json:"statusWebhookUrl"`
	StatusRequestShape      string     `json:"statusRequestShape"`
	ProposalWebhookURL      string     `json:"proposalWebhookUrl"`
	NotifyCompletion        bool       `json:"notifyCompletion"`
	NotifyDispatch          bool       `json:"notifyDispatch"`
	NotifyProposal          bool       `json:"notifyProposal"`
	NotifyErrors            bool       `json:"notifyErrors"`
}

// Defaults returns the settings used before the user changes anything
func Defaults() Settings {
	return Settings{
		OutputMode:              OutputWebhook,
		ScheduleIntervalMinutes: 60,
		SearchURL:               DefaultSearchURL,
		AntiBotWaitSeconds:      10,
		DetailDelayMinMs:        3000,
		DetailDelayMaxMs:        8000,
		MaxDetailJobs:           20,
		StatusRequestShape:      "statuscheck",
		NotifyCompletion:        true,
		NotifyDispatch:          true,
		NotifyProposal:          true,
		NotifyErrors:            true,
	}
}

// Interval is the schedule period
func (s Settings) Interval() time.Duration {
	return time.Duration(s.ScheduleIntervalMinutes) * time.Minute
}

// AntiBotWait is the settle window used after a challenge redirect
func (s Settings) AntiBotWait() time.Duration {
	return time.Duration(s.AntiBotWaitSeconds) * time.Second
}

// DetailDelay returns the random pause bounds between detail pages
func (s Settings) DetailDelay() (lo, hi time.Duration) {
	return time.Duration(s.DetailDelayMinMs) * time.Millisecond, time.Duration(s.DetailDelayMaxMs) * time.Millisecond
}

// Validate checks value ranges and enum members
func (s Settings) Validate() error {
	switch s.OutputMode {
	case OutputWebhook, OutputCSV, OutputBoth:
	default:
		return fmt.Errorf("%w: outputMode %q", ErrInvalid, s.OutputMode)
	}
	switch s.StatusRequestShape {
	case "statuscheck", "search":
	default:
		return fmt.Errorf("%w: statusRequestShape %q", ErrInvalid, s.StatusRequestShape)
	}
	if s.ScheduleIntervalMinutes < 1 {
		return fmt.Errorf("%w: scheduleIntervalMinutes must be at least 1", ErrInvalid)
	}
	if s.AntiBotWaitSeconds < 0 {
		return fmt.Errorf("%w: antiBotWaitSeconds must not be negative", ErrInvalid)
	}
	if s.DetailDelayMinMs < 0 || s.DetailDelayMaxMs < s.DetailDelayMinMs {
		return fmt.Errorf("%w: detail delay range %d-%d", ErrInvalid, s.DetailDelayMinMs, s.DetailDelayMaxMs)
	}
	if s.MaxDetailJobs < 1 {
		return fmt.Errorf("%w: maxDetailJobs must be at least 1", ErrInvalid)
	}
	for name, v := range map[string]string{
		"webhookUrl":         s.WebhookURL,
		"statusWebhookUrl":   s.StatusWebhookURL,
		"proposalWebhookUrl": s.ProposalWebhookURL,
		"searchUrl":          s.SearchURL,
	} {
		if v == "" {
			continue
		}
		if u, err := url.Parse(v); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%w: %s is not an http(s) URL", ErrInvalid, name)
		}
	}
	if s.SearchURL == "" {
		return fmt.Errorf("%w: searchUrl is required", ErrInvalid)
	}
	return nil
}

// Load reads settings from st, filling gaps with defaults
func Load(ctx context.Context, st store.Store) (Settings, error) {
	s := Defaults()
	data, ok, err := st.Get(ctx, store.KeySettings)
	if err != nil {
		return s, fmt.Errorf("load settings: %w", err)
	}
	if !ok {
		return s, nil
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return Defaults(), fmt.Errorf("decode settings: %w", err)
	}
	return s, nil
}

// Save validates and stores the full document
func Save(ctx context.Context, st store.Store, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	return store.Save(ctx, st, store.KeySettings, s)
}

// Update applies a partial JSON patch over the current settings and stores the result.
// Unknown keys are rejected.
func Update(ctx context.Context, st store.Store, patch []byte) (Settings, error) {
	current, err := Load(ctx, st)
	if err != nil {
		return current, err
	}

	var known map[string]json.RawMessage
	if err := json.Unmarshal(patch, &known); err != nil {
		return current, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	valid := validKeys()
	for k := range known {
		if !valid[k] {
			return current, fmt.Errorf("%w: unknown key %q", ErrInvalid, k)
		}
	}

	next := current
	if err := json.Unmarshal(patch, &next); err != nil {
		return current, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := Save(ctx, st, next); err != nil {
		return current, err
	}
	return next, nil
}

func validKeys() map[string]bool {
	data, _ := json.Marshal(Defaults())
	var m map[string]json.RawMessage
	_ = json.Unmarshal(data, &m)
	keys := make(map[string]bool, len(m))
	for k := range m {
		keys[k] = true
	}
	return keys
}
