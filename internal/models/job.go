package models

import (
	"github.com/samber/mo"
)

// RawJob is one listing card scraped from a search results page
type RawJob struct {
	JobID string `json:"job_id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// DetailJob holds every field the detail page scraper knows about.
// A field the page did not yield is mo.None, which marshals as JSON null.
type DetailJob struct {
	JobID                 mo.Option[string]   `json:"job_id"`
	Title                 mo.Option[string]   `json:"title"`
	URL                   mo.Option[string]   `json:"url"`
	Description           mo.Option[string]   `json:"description"`
	Budget                mo.Option[string]   `json:"budget"`
	PaymentType           mo.Option[string]   `json:"payment_type"`
	Skills                mo.Option[[]string] `json:"skills"`
	ExperienceLevel       mo.Option[string]   `json:"experience_level"`
	ProjectDuration       mo.Option[string]   `json:"project_duration"`
	PostedDate            mo.Option[string]   `json:"posted_date"`
	ProposalsCount        mo.Option[string]   `json:"proposals_count"`
	ClientPaymentVerified bool                `json:"client_payment_verified"`
	ClientLocation        mo.Option[string]   `json:"client_location"`
	ClientRating          mo.Option[string]   `json:"client_rating"`
	ClientTotalSpent      mo.Option[string]   `json:"client_total_spent"`
}

// DetailFieldCount is the number of logical fields on a DetailJob
const DetailFieldCount = 15

// Shallow converts a search card into a detail record carrying only the
// fields the card itself provided. Used when the detail page could not be scraped.
func (r RawJob) Shallow() DetailJob {
	return DetailJob{
		JobID: some(r.JobID),
		Title: some(r.Title),
		URL:   some(r.URL),
	}
}

// Populated counts the fields that hold a value (payment verified counts only when true)
func (d DetailJob) Populated() int {
	n := 0
	for _, o := range []mo.Option[string]{
		d.JobID, d.Title, d.URL, d.Description, d.Budget, d.PaymentType,
		d.ExperienceLevel, d.ProjectDuration, d.PostedDate, d.ProposalsCount,
		d.ClientLocation, d.ClientRating, d.ClientTotalSpent,
	} {
		if o.IsPresent() {
			n++
		}
	}
	if d.Skills.IsPresent() {
		n++
	}
	if d.ClientPaymentVerified {
		n++
	}
	return n
}

func some(s string) mo.Option[string] {
	if s == "" {
		return mo.None[string]()
	}
	return mo.Some(s)
}
