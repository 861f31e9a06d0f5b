package upwork

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/mo"

	"go-upwork-assistant/internal/models"
	"go-upwork-assistant/internal/scraper"
)

// matches both "/jobs/~0123abc" and the legacy "/jobs/Some-Title_~0123abc/"
var jobIDRegex = regexp.MustCompile(`[/_]~([a-zA-Z0-9]+)`)

// ExtractJobID pulls the tilde token out of a job URL
func ExtractJobID(url string) mo.Option[string] {
	m := jobIDRegex.FindStringSubmatch(url)
	if m == nil {
		return mo.None[string]()
	}
	return mo.Some(m[1])
}

// AbsoluteURL resolves a site-relative href against the Upwork origin
func AbsoluteURL(href string) string {
	href = strings.TrimSpace(href)
	switch {
	case href == "":
		return ""
	case strings.HasPrefix(href, "http://"), strings.HasPrefix(href, "https://"):
		return href
	case strings.HasPrefix(href, "//"):
		return "https:" + href
	case strings.HasPrefix(href, "/"):
		return Origin + href
	default:
		return Origin + "/" + href
	}
}

// ExtractSearch scrapes listing cards from a search results page.
// Cards without a resolvable link, id or title are skipped; duplicates collapse to the first card.
func ExtractSearch(html string) []models.RawJob {
	doc, err := scraper.Parse(html)
	if err != nil {
		return []models.RawJob{}
	}

	cards := scraper.FirstMatch(doc.Selection, CardSelectors)
	jobs := make([]models.RawJob, 0, cards.Length())
	seen := make(map[string]bool)

	cards.Each(func(_ int, card *goquery.Selection) {
		anchor := firstAnchor(card)
		if anchor == nil {
			return
		}

		href, _ := anchor.Attr("href")
		url := AbsoluteURL(href)
		title := scraper.CleanLine(anchor.Text())
		id, ok := ExtractJobID(url).Get()
		if !ok || title == "" || seen[id] {
			return
		}
		seen[id] = true

		jobs = append(jobs, models.RawJob{JobID: id, Title: title, URL: url})
	})

	return jobs
}

func firstAnchor(card *goquery.Selection) *goquery.Selection {
	for _, sel := range LinkSelectors {
		if a := card.Find(sel).First(); a.Length() > 0 {
			return a
		}
	}
	return nil
}
