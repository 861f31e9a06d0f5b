package upwork

import (
	"go-upwork-assistant/internal/scraper"
)

// Origin is prepended to relative job links
const Origin = "https://www.upwork.com"

// CSS selectors for Upwork pages, most specific (current markup) first.
// When the site changes, add the new selector at the front of the list.
var (
	// search results page
	CardSelectors = []string{
		`[data-test="job-tile"]`,
		`article[data-test="JobTile"]`,
		`section.air3-card-section`,
		`article.job-tile`,
		`.job-tile`,
	}
	LinkSelectors = []string{
		`[data-test="job-title"] a`,
		`[data-test="job-tile-title-link"]`,
		`h2.job-title a`,
		`h2 a[href*="/jobs/"]`,
		`a[href*="/jobs/"]`,
	}

	// detail page
	TitleField = scraper.Texts(
		`[data-test="job-title"] h1`,
		`h1.job-title`,
		`h1`,
	)
	DescriptionContainers = []string{
		`[data-test="description"]`,
		`[data-test="Description"]`,
		`.description`,
		`.job-description`,
	}
	BudgetField = scraper.Texts(
		`[data-test="budget"]`,
		`[data-test="BudgetAmount"]`,
		`[data-test="hourly-rate"]`,
		`.budget`,
		`.hourly-rate`,
	)
	JobTypeField = scraper.Texts(
		`[data-test="job-type"]`,
		`[data-test="job-type-label"]`,
	)
	SkillSelectors = []string{
		`[data-test="skill-badge"]`,
		`[data-test="Skill"] .air3-badge`,
		`.skill-badge`,
		`[data-test="skills"] .badge`,
		`.skills-list .badge`,
	}
	ExperienceField = scraper.Texts(
		`[data-test="experience-level"]`,
		`.experience-level`,
		`[data-test="contractor-tier"]`,
	)
	DurationField = scraper.Texts(
		`[data-test="duration"]`,
		`[data-test="project-duration"]`,
		`.duration`,
		`.project-duration`,
	)
	PostedDateField = scraper.Candidates{
		{Selector: `[data-test="posted-on"] time[datetime]`, Extract: scraper.Attr("datetime")},
		{Selector: `time[datetime]`, Extract: scraper.Attr("datetime")},
		{Selector: `[data-test="posted-on"] time`},
		{Selector: `[data-test="posted-on"]`},
		{Selector: `.posted-on`},
		{Selector: `.posted-date`},
	}
	ProposalsField = scraper.Texts(
		`[data-test="proposals"]`,
		`.proposals-count`,
		`[data-test="proposals-count"]`,
	)
	PaymentVerifiedSelectors = []string{
		`[data-test="payment-verified"]`,
		`.payment-verified`,
		`[data-test="payment-status-verified"]`,
	}
	// elements whose text is checked for "payment verified" when no dedicated element exists
	PaymentStatusTextSelectors = []string{
		`[data-test="about-client-container"]`,
		`[data-test="client-info"]`,
		`.client-info`,
	}
	ClientLocationField = scraper.Texts(
		`[data-test="client-location"]`,
		`.client-location`,
		`[data-test="location"]`,
	)
	ClientRatingField = scraper.Texts(
		`[data-test="client-rating"] .rating`,
		`[data-test="client-rating"]`,
		`.client-rating .rating`,
		`.client-rating`,
	)
	ClientSpentField = scraper.Texts(
		`[data-test="total-spent"]`,
		`.total-spent`,
		`[data-test="client-total-spent"]`,
	)

	// apply page
	ApplyDescriptionField = scraper.Texts(
		`[data-test="job-description"]`,
		`[data-test="description"]`,
		`.job-description`,
	)
)

// labels the site renders in front of values; stripped after extraction
var (
	budgetLabels    = []string{"Budget", "Hourly range", "Hourly rate"}
	proposalLabels  = []string{"Proposals"}
	durationLabels  = []string{"Project length", "Duration"}
	postedLabels    = []string{"Posted on", "Posted"}
	locationLabels  = []string{"Location"}
	spentLabels     = []string{"Total spent"}
	ratingLabels    = []string{"Rating is", "Rating"}
	experienceLabel = []string{"Experience level", "Experience"}
)
