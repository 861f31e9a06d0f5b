package upwork

import (
	"regexp"
	"strings"

	"github.com/samber/mo"

	"go-upwork-assistant/internal/scraper"
)

const applyDescriptionLimit = 2000

var (
	applyPageRegex   = regexp.MustCompile(`/nx/proposals/job/[^/]+/apply`)
	titleSuffixRegex = regexp.MustCompile(`(?i)\s*[|\-]\s*Upwork\s*$`)
	listingPageRegex = regexp.MustCompile(`upwork\.com/(nx/search/jobs|nx/find-work|ab/jobs/search)`)
	siteHostRegex    = regexp.MustCompile(`^https?://([a-z0-9-]+\.)*upwork\.com(/|$)`)
)

// ApplyContext is what the proposal webhook needs to draft a cover letter
type ApplyContext struct {
	JobID       mo.Option[string] `json:"job_id"`
	Title       mo.Option[string] `json:"title"`
	Description mo.Option[string] `json:"description"`
}

// IsApplyPage reports whether url is a proposal submission page
func IsApplyPage(url string) bool {
	return applyPageRegex.MatchString(url)
}

// ApplyURL is the proposal submission page for a job id
func ApplyURL(jobID string) string {
	return Origin + "/nx/proposals/job/~" + jobID + "/apply/"
}

// IsListingPage reports whether url is a search results / job feed page
func IsListingPage(url string) bool {
	return listingPageRegex.MatchString(url)
}

// IsSiteURL reports whether url belongs to the Upwork site
func IsSiteURL(url string) bool {
	return siteHostRegex.MatchString(strings.ToLower(url))
}

// ExtractApplyContext reads job context from an apply page
func ExtractApplyContext(html, pageURL string) ApplyContext {
	ac := ApplyContext{JobID: ExtractJobID(pageURL)}

	doc, err := scraper.Parse(html)
	if err != nil {
		return ac
	}

	if title := strings.TrimSpace(titleSuffixRegex.ReplaceAllString(scraper.CleanLine(doc.Find("title").First().Text()), "")); title != "" {
		ac.Title = mo.Some(title)
	}

	if desc, ok := ApplyDescriptionField.First(doc.Selection).Get(); ok {
		if runes := []rune(desc); len(runes) > applyDescriptionLimit {
			desc = string(runes[:applyDescriptionLimit])
		}
		ac.Description = mo.Some(desc)
	}

	return ac
}
