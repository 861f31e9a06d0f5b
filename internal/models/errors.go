package models

import "errors"

var (
	// ErrNotConfigured is returned when an action needs a URL or credential the user has not set
	ErrNotConfigured = errors.New("not configured")

	// ErrRunInProgress is returned when a scrape is triggered while another one is running
	ErrRunInProgress = errors.New("scrape run already in progress")

	// ErrNoJobsFound is returned when the search page yields no listing cards
	ErrNoJobsFound = errors.New("no jobs found on search page")

	// ErrAllDetailsFailed is returned when not a single detail page could be scraped
	ErrAllDetailsFailed = errors.New("all detail scrapes failed")

	// ErrStabilityTimeout is returned when a tab never settles within the absolute ceiling
	ErrStabilityTimeout = errors.New("page did not stabilize before timeout")

	// ErrTabClosed is returned when a tab goes away while it is being used
	ErrTabClosed = errors.New("tab closed")

	// ErrInvalidRecord is returned for records the transformer cannot accept
	ErrInvalidRecord = errors.New("invalid job record")
)
