package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"go-upwork-assistant/internal/models"
	"go-upwork-assistant/internal/scraper/upwork"
)

// Status is the workflow state the automation backend reports for a job
type Status string

const (
	StatusNew      Status = "new"
	StatusMatched  Status = "matched"
	StatusApplied  Status = "applied"
	StatusRejected Status = "rejected"
	StatusArchived Status = "archived"
)

// ParseStatus maps a backend token onto a known Status
func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusNew, StatusMatched, StatusApplied, StatusRejected, StatusArchived:
		return st, true
	default:
		return "", false
	}
}

// Status request shapes understood by the backend
const (
	ShapeStatusCheck = "statuscheck" // {"job_ids": [...], "statuscheck": true}
	ShapeSearch      = "search"      // {"job_ids": [...], "status": "search"}
)

// Relay talks to the automation backend for match statuses and proposals.
// It shares the dispatcher's transport and retry policy.
type Relay struct {
	d *Dispatcher
}

// NewRelay wraps a dispatcher
func NewRelay(d *Dispatcher) *Relay {
	return &Relay{d: d}
}

// MatchStatus asks the backend which of ids it has seen and in what state.
// Unknown ids and unknown status tokens are left out of the result.
func (r *Relay) MatchStatus(ctx context.Context, url string, ids []string, shape string) (map[string]Status, error) {
	if url == "" {
		return nil, fmt.Errorf("status webhook: %w", models.ErrNotConfigured)
	}
	if ids == nil {
		ids = []string{}
	}

	req := map[string]any{"job_ids": ids}
	switch shape {
	case ShapeSearch:
		req["status"] = "search"
	default:
		req["statuscheck"] = true
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal status request: %w", err)
	}

	resp, err := r.d.post(ctx, url, body)
	if err != nil {
		return nil, err
	}

	statuses, err := parseStatuses(resp)
	if err != nil {
		return nil, err
	}
	r.d.logger.Info("🔎 Match status received", slog.Int("requested", len(ids)), slog.Int("known", len(statuses)))
	return statuses, nil
}

type statusEntry struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// parseStatuses accepts {"<id>": "<status>"}, {"statuses": {...}},
// [{"job_id": ..., "status": ...}] and {"jobs": [...]}
func parseStatuses(data []byte) (map[string]Status, error) {
	out := map[string]Status{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return out, nil
	}

	var entries []statusEntry
	if data[0] == '[' {
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("failed to decode status response: %w", err)
		}
		addEntries(out, entries)
		return out, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}

	if raw, ok := obj["jobs"]; ok {
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("failed to decode status jobs: %w", err)
		}
		addEntries(out, entries)
		return out, nil
	}
	if raw, ok := obj["statuses"]; ok {
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(raw, &nested); err != nil {
			return nil, fmt.Errorf("failed to decode statuses: %w", err)
		}
		obj = nested
	}

	for id, raw := range obj {
		var token string
		if err := json.Unmarshal(raw, &token); err != nil {
			continue
		}
		if st, ok := ParseStatus(token); ok {
			out[id] = st
		}
	}
	return out, nil
}

func addEntries(out map[string]Status, entries []statusEntry) {
	for _, e := range entries {
		if e.JobID == "" {
			continue
		}
		if st, ok := ParseStatus(e.Status); ok {
			out[e.JobID] = st
		}
	}
}

type proposalRequest struct {
	JobID       string `json:"job_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Mode        string `json:"mode"`
}

// Proposal asks the backend to draft a cover letter for the job on an apply page
func (r *Relay) Proposal(ctx context.Context, url string, ac upwork.ApplyContext) (string, error) {
	if url == "" {
		return "", fmt.Errorf("proposal webhook: %w", models.ErrNotConfigured)
	}

	body, err := json.Marshal(proposalRequest{
		JobID:       ac.JobID.OrEmpty(),
		Title:       ac.Title.OrEmpty(),
		Description: ac.Description.OrEmpty(),
		Mode:        "proposal",
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal proposal request: %w", err)
	}

	resp, err := r.d.post(ctx, url, body)
	if err != nil {
		return "", err
	}

	text := parseProposal(resp)
	if text == "" {
		return "", fmt.Errorf("proposal webhook returned an empty proposal")
	}
	r.d.logger.Info("📝 Proposal received", slog.String("job_id", ac.JobID.OrEmpty()), slog.Int("chars", len(text)))
	return text, nil
}

// parseProposal reads {"proposal": ...} or {"output": ...}; anything else is
// taken as the proposal text itself
func parseProposal(data []byte) string {
	trimmed := bytes.TrimSpace(data)

	var obj struct {
		Proposal string `json:"proposal"`
		Output   string `json:"output"`
	}
	if len(trimmed) > 0 && trimmed[0] == '{' && json.Unmarshal(trimmed, &obj) == nil {
		if obj.Proposal != "" {
			return strings.TrimSpace(obj.Proposal)
		}
		return strings.TrimSpace(obj.Output)
	}

	// n8n often wraps results in a one-element array
	var arr []struct {
		Proposal string `json:"proposal"`
		Output   string `json:"output"`
	}
	if len(trimmed) > 0 && trimmed[0] == '[' && json.Unmarshal(trimmed, &arr) == nil {
		if len(arr) > 0 {
			if arr[0].Proposal != "" {
				return strings.TrimSpace(arr[0].Proposal)
			}
			return strings.TrimSpace(arr[0].Output)
		}
		return ""
	}

	return string(trimmed)
}
