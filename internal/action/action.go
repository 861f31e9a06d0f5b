// Package action is the single entry point for user-initiated operations.
// The CLI and the HTTP API both build a Request, hand it to a Router and
// render the Response.
package action

import (
	"encoding/json"
	"errors"
	"fmt"

	"go-upwork-assistant/internal/webhook"
)

// Kind names an action
type Kind string

const (
	KindScrape         Kind = "scrape"
	KindExportCSV      Kind = "export-csv"
	KindProposal       Kind = "proposal"
	KindStatus         Kind = "status"
	KindGetSettings    Kind = "get-settings"
	KindUpdateSettings Kind = "update-settings"
)

var (
	ErrUnknownAction  = errors.New("unknown action")
	ErrInvalidPayload = errors.New("invalid payload")
)

// Kinds lists every action the router understands
var Kinds = []Kind{KindScrape, KindExportCSV, KindProposal, KindStatus, KindGetSettings, KindUpdateSettings}

// ParseKind validates an action name
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrUnknownAction, s)
}

// Request is one action message. Payload is decoded according to Kind.
type Request struct {
	Kind    Kind            `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewRequest encodes payload into a Request
func NewRequest(kind Kind, payload any) (Request, error) {
	req := Request{Kind: kind}
	if payload == nil {
		return req, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return req, fmt.Errorf("failed to encode %s payload: %w", kind, err)
	}
	req.Payload = data
	return req, nil
}

// Outcome classifies a response
type Outcome string

const (
	OutcomeOK Outcome = "ok"
	// OutcomeSkipped covers missing configuration and overlapping runs
	OutcomeSkipped Outcome = "skipped"
	OutcomeError   Outcome = "error"
)

// Response is the reply to a Request
type Response struct {
	Kind    Kind    `json:"action"`
	Outcome Outcome `json:"outcome"`
	Data    any     `json:"data,omitempty"`
	Error   string  `json:"error,omitempty"`

	err error
}

// OK reports whether the action succeeded
func (r Response) OK() bool { return r.Outcome == OutcomeOK }

// Err is the failure behind a non-OK response, for errors.Is checks
func (r Response) Err() error { return r.err }

// ProposalPayload selects the job to draft a proposal for. When Title or
// Description is given they are used as is; otherwise the apply page for URL
// (or for JobID) is loaded and read.
type ProposalPayload struct {
	URL         string `json:"url,omitempty"`
	JobID       string `json:"job_id,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// ProposalResult carries the drafted cover letter
type ProposalResult struct {
	JobID    string `json:"job_id"`
	Title    string `json:"title,omitempty"`
	Proposal string `json:"proposal"`
}

// StatusPayload lists the jobs to look up. Empty means the last scrape's jobs.
type StatusPayload struct {
	JobIDs []string `json:"job_ids,omitempty"`
}

// StatusResult maps job ids to their backend status. Ids the backend does
// not know are absent.
type StatusResult struct {
	Requested int                       `json:"requested"`
	Statuses  map[string]webhook.Status `json:"statuses"`
}

// ExportPayload optionally names a directory to write the file into
type ExportPayload struct {
	Dir string `json:"dir,omitempty"`
}

// ExportResult is a CSV document of the last scrape. Path is set when the
// file was written to disk.
type ExportResult struct {
	FileName string `json:"file_name"`
	Path     string `json:"path,omitempty"`
	Count    int    `json:"count"`
	Content  string `json:"content,omitempty"`
}
