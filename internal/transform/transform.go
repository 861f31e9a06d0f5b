package transform

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go-upwork-assistant/internal/models"
)

var (
	moneyMillionsRegex  = regexp.MustCompile(`\$([\d,]+\.?\d*)[Mm]`)
	moneyThousandsRegex = regexp.MustCompile(`\$([\d,]+\.?\d*)[Kk]`)
	moneyRegex          = regexp.MustCompile(`\$([\d,]+\.?\d*)`)
	lessThanRegex       = regexp.MustCompile(`(?i)less than (\d+)`)
	integerRegex        = regexp.MustCompile(`(\d+)`)
	decimalRegex        = regexp.MustCompile(`(\d+\.?\d*)`)
	hourlyRangeRegex    = regexp.MustCompile(`\$([\d,]+\.?\d*)\s*[-\x{2013}]\s*\$([\d,]+\.?\d*)`)
	timestampRegex      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}`)
)

const (
	paymentHourly = "HOURLY"
	paymentFixed  = "FIXED"
)

// Transformer maps scraped detail records onto the external schema
type Transformer struct {
	// Now supplies the processing time used when a posted date is not a timestamp
	Now    func() time.Time
	Logger *slog.Logger
}

// New returns a Transformer using the wall clock
func New(logger *slog.Logger) *Transformer {
	return &Transformer{Now: time.Now, Logger: logger}
}

// Transform converts one record. A nil record yields (nil, false).
func (t *Transformer) Transform(d *models.DetailJob) (*models.ExternalJob, bool) {
	if d == nil {
		return nil, false
	}

	out := models.NewExternalJob()

	paymentSource := d.PaymentType
	if paymentSource.IsAbsent() {
		paymentSource = d.Budget
	}
	budget := d.Budget.OrEmpty()
	out.ProjectPaymentType = PaymentType(paymentSource.OrEmpty())

	switch out.ProjectPaymentType {
	case paymentHourly:
		out.HourlyMin, out.HourlyMax = HourlyRange(budget)
	case paymentFixed:
		out.ProjectBudget = Money(budget)
	}

	out.PostedAt = t.postedAt(d)
	out.EngagementDuration = valueOr(d.ProjectDuration.OrEmpty(), models.NA)
	if skills, ok := d.Skills.Get(); ok && skills != nil {
		out.Skills = skills
	}
	out.ContractorTier = Tier(d.ExperienceLevel.OrEmpty())
	out.TotalApplicants = Proposals(d.ProposalsCount.OrEmpty())
	out.ClientCity, out.ClientCountry = Location(d.ClientLocation.OrEmpty())
	out.FeedbackScore = Rating(d.ClientRating.OrEmpty())
	out.TotalCharges = Money(d.ClientTotalSpent.OrEmpty())
	out.IsPaymentVerified = d.ClientPaymentVerified

	out.Title = valueOr(d.Title.OrEmpty(), models.NA)
	out.URL = valueOr(d.URL.OrEmpty(), models.NA)
	out.Description = valueOr(d.Description.OrEmpty(), models.NA)
	out.JobID = valueOr(d.JobID.OrEmpty(), models.NA)

	return &out, true
}

// TransformAll converts a batch, dropping records that fail
func (t *Transformer) TransformAll(records []models.DetailJob) []models.ExternalJob {
	out := make([]models.ExternalJob, 0, len(records))
	for i := range records {
		if ext, ok := t.Transform(&records[i]); ok {
			out = append(out, *ext)
		}
	}
	return out
}

// postedAt passes timestamp-looking values through and otherwise falls back
// to the processing time, which is only an estimate of when the job was posted
func (t *Transformer) postedAt(d *models.DetailJob) string {
	raw := strings.TrimSpace(d.PostedDate.OrEmpty())
	if timestampRegex.MatchString(raw) {
		return raw
	}

	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	estimate := now().UTC().Format(time.RFC3339)

	if t.Logger != nil {
		t.Logger.Debug("📅 posted date is not a timestamp, using processing time",
			slog.String("job_id", d.JobID.OrEmpty()),
			slog.String("posted_date", raw),
			slog.String("estimate", estimate))
	}
	return estimate
}

// Money parses "$5,460.99", "$5.5K", "$1.2M" or "$100K+". Unparseable input is 0.
func Money(s string) float64 {
	if s == "" {
		return 0
	}
	if m := moneyMillionsRegex.FindStringSubmatch(s); m != nil {
		return parseNumber(m[1]) * 1_000_000
	}
	if m := moneyThousandsRegex.FindStringSubmatch(s); m != nil {
		return parseNumber(m[1]) * 1_000
	}
	if m := moneyRegex.FindStringSubmatch(s); m != nil {
		return parseNumber(m[1])
	}
	return 0
}

// Proposals parses "Less than 5", "5 to 10" or "15"
func Proposals(s string) int {
	if s == "" {
		return 0
	}
	if m := lessThanRegex.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	if m := integerRegex.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	return 0
}

// Rating reads the first decimal number, e.g. "Rating is 4.9 out of 5" -> 4.9
func Rating(s string) float64 {
	if m := decimalRegex.FindStringSubmatch(s); m != nil {
		return parseNumber(m[1])
	}
	return 0
}

// Tier maps an experience level onto EXPERT / INTERMEDIATE / ENTRY_LEVEL
func Tier(s string) string {
	if s == "" {
		return models.NA
	}
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "expert"):
		return "EXPERT"
	case strings.Contains(lower, "intermediate"):
		return "INTERMEDIATE"
	case strings.Contains(lower, "entry"):
		return "ENTRY_LEVEL"
	default:
		return strings.ToUpper(s)
	}
}

// PaymentType maps payment type text (or a budget string) onto HOURLY / FIXED
func PaymentType(s string) string {
	if s == "" {
		return models.NA
	}
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "hourly"), strings.Contains(lower, "/hr"):
		return paymentHourly
	case strings.Contains(lower, "fixed"):
		return paymentFixed
	default:
		return strings.ToUpper(s)
	}
}

// HourlyRange parses "$30.00 - $50.00/hr". A single amount is used for both bounds.
func HourlyRange(budget string) (lo, hi float64) {
	if m := hourlyRangeRegex.FindStringSubmatch(budget); m != nil {
		return parseNumber(m[1]), parseNumber(m[2])
	}
	if m := moneyRegex.FindStringSubmatch(budget); m != nil {
		v := parseNumber(m[1])
		return v, v
	}
	return 0, 0
}

// Location splits "City, Country". A single part is taken as the country.
func Location(s string) (city, country string) {
	var parts []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	switch len(parts) {
	case 0:
		return models.NA, models.NA
	case 1:
		return models.NA, parts[0]
	default:
		return parts[0], parts[len(parts)-1]
	}
}

func parseNumber(s string) float64 {
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0
	}
	return f
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
