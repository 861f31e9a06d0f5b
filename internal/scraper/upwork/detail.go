package upwork

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/mo"

	"go-upwork-assistant/internal/models"
	"go-upwork-assistant/internal/scraper"
)

// ExtractDetail scrapes a single job detail page. Every field is either a value
// or mo.None; nothing on the page can make it fail.
func ExtractDetail(html, pageURL string) models.DetailJob {
	job := models.DetailJob{
		JobID: ExtractJobID(pageURL),
		URL:   optional(pageURL),
	}

	doc, err := scraper.Parse(html)
	if err != nil {
		return job
	}
	root := doc.Selection

	job.Title = TitleField.First(root)
	job.Description = description(root)
	job.Budget = stripped(BudgetField.First(root), budgetLabels)
	job.PaymentType = paymentType(root, job.Budget)
	job.Skills = skills(root)
	job.ExperienceLevel = stripped(ExperienceField.First(root), experienceLabel)
	job.ProjectDuration = stripped(DurationField.First(root), durationLabels)
	job.PostedDate = stripped(PostedDateField.First(root), postedLabels)
	job.ProposalsCount = stripped(ProposalsField.First(root), proposalLabels)
	job.ClientPaymentVerified = paymentVerified(root)
	job.ClientLocation = stripped(ClientLocationField.First(root), locationLabels)
	job.ClientRating = stripped(ClientRatingField.First(root), ratingLabels)
	job.ClientTotalSpent = stripped(ClientSpentField.First(root), spentLabels)

	return job
}

// description joins the paragraphs of the first description container with a
// blank line; containers without paragraphs contribute their whole text
func description(root *goquery.Selection) mo.Option[string] {
	for _, sel := range DescriptionContainers {
		container := root.Find(sel).First()
		if container.Length() == 0 {
			continue
		}

		var text string
		if paragraphs := container.Find("p"); paragraphs.Length() > 0 {
			var parts []string
			paragraphs.Each(func(_ int, p *goquery.Selection) {
				if t := scraper.CleanBlock(p.Text()); t != "" {
					parts = append(parts, t)
				}
			})
			text = strings.Join(parts, "\n\n")
		} else {
			text = scraper.CleanBlock(container.Text())
		}

		if text != "" {
			return mo.Some(text)
		}
	}
	return mo.None[string]()
}

func paymentType(root *goquery.Selection, budget mo.Option[string]) mo.Option[string] {
	if jobType, ok := JobTypeField.First(root).Get(); ok {
		if strings.Contains(strings.ToLower(jobType), "hourly") {
			return mo.Some("hourly")
		}
		return mo.Some("fixed")
	}
	if b, ok := budget.Get(); ok {
		if strings.Contains(strings.ToLower(b), "/hr") {
			return mo.Some("hourly")
		}
		return mo.Some("fixed")
	}
	return mo.None[string]()
}

func skills(root *goquery.Selection) mo.Option[[]string] {
	for _, sel := range SkillSelectors {
		var found []string
		root.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if t := scraper.CleanLine(s.Text()); t != "" {
				found = append(found, t)
			}
		})
		if len(found) > 0 {
			return mo.Some(found)
		}
	}
	return mo.None[[]string]()
}

// paymentVerified is true only when the page positively states verification
func paymentVerified(root *goquery.Selection) bool {
	for _, sel := range PaymentVerifiedSelectors {
		if el := root.Find(sel).First(); el.Length() > 0 {
			return !deniesVerification(el.Text())
		}
	}
	for _, sel := range PaymentStatusTextSelectors {
		text := strings.ToLower(scraper.CleanLine(root.Find(sel).First().Text()))
		if strings.Contains(text, "payment verified") && !deniesVerification(text) {
			return true
		}
	}
	return false
}

func deniesVerification(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "unverified") || strings.Contains(lower, "not verified")
}

func stripped(o mo.Option[string], labels []string) mo.Option[string] {
	v, ok := o.Get()
	if !ok {
		return o
	}
	return optional(scraper.StripLabel(v, labels...))
}

func optional(s string) mo.Option[string] {
	if s == "" {
		return mo.None[string]()
	}
	return mo.Some(s)
}
