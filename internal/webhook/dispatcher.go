package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go-upwork-assistant/internal/models"
	"go-upwork-assistant/internal/retry"
)

const (
	defaultAttempts = 3
	defaultTimeout  = 30 * time.Second
	// cap on how much of a response body is kept for parsing and error messages
	maxResponseBytes = 1 << 20
)

// Dispatcher POSTs JSON payloads to webhook endpoints with bounded retries.
// It never returns transport errors to the caller of DispatchOne/DispatchBatch;
// the outcome is a boolean and the details go to the log.
type Dispatcher struct {
	httpClient *http.Client
	attempts   int
	baseDelay  time.Duration
	logger     *slog.Logger
}

// Option customizes a Dispatcher
type Option func(*Dispatcher)

// WithHTTPClient replaces the default client (30s timeout)
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) { d.httpClient = c }
}

// WithBaseDelay sets the unit of the linear retry schedule (default 1s)
func WithBaseDelay(delay time.Duration) Option {
	return func(d *Dispatcher) { d.baseDelay = delay }
}

// WithAttempts sets the total number of attempts (default 3)
func WithAttempts(n int) Option {
	return func(d *Dispatcher) { d.attempts = n }
}

// NewDispatcher creates a dispatcher
func NewDispatcher(logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		httpClient: &http.Client{Timeout: defaultTimeout},
		attempts:   defaultAttempts,
		baseDelay:  time.Second,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DispatchOne sends a single record. It reports false when url is empty,
// the payload cannot be encoded or every attempt failed.
func (d *Dispatcher) DispatchOne(ctx context.Context, url string, payload any) bool {
	return d.dispatch(ctx, url, payload, "single")
}

// DispatchBatch sends all records as one JSON array in a single request
func (d *Dispatcher) DispatchBatch(ctx context.Context, url string, jobs []models.ExternalJob) bool {
	if jobs == nil {
		jobs = []models.ExternalJob{}
	}
	return d.dispatch(ctx, url, jobs, "batch")
}

func (d *Dispatcher) dispatch(ctx context.Context, url string, payload any, kind string) bool {
	if url == "" {
		d.logger.Warn("⚠️ Webhook URL not configured, skipping dispatch", slog.String("kind", kind))
		return false
	}

	body, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error("❌ Failed to encode webhook payload", slog.String("kind", kind), slog.Any("error", err))
		return false
	}

	if _, err := d.post(ctx, url, body); err != nil {
		return false
	}
	return true
}

// post sends body with the retry policy and returns the response body of the
// first successful attempt
func (d *Dispatcher) post(ctx context.Context, url string, body []byte) ([]byte, error) {
	var respBody []byte

	policy := retry.Policy{
		MaxAttempts: d.attempts,
		Delay:       d.baseDelay,
		OnFailure: func(attempt int, err error) {
			d.logger.Warn("⚠️ Webhook attempt failed",
				slog.String("url", url),
				slog.Int("attempt", attempt+1),
				slog.String("reason", err.Error()))
		},
	}

	err := retry.Do(ctx, policy, func(ctx context.Context, _ int) error {
		b, err := d.send(ctx, url, body)
		if err != nil {
			return err
		}
		respBody = b
		return nil
	})
	if err != nil {
		d.logger.Error("❌ Webhook delivery failed, all retries exhausted",
			slog.String("url", url),
			slog.Int("attempts", d.attempts),
			slog.Any("error", err))
		return nil, fmt.Errorf("deliver to %s: %w", url, err)
	}

	d.logger.Debug("✅ Webhook delivered", slog.String("url", url), slog.Int("bytes", len(body)))
	return respBody, nil
}

// send performs one POST. Any non-2xx status is an error.
func (d *Dispatcher) send(ctx context.Context, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("failed to create http request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return respBody, nil
}
