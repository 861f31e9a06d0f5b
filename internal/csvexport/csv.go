// Package csvexport renders external job records as RFC 4180 CSV.
//
// The column order and header names are an external contract. Rows are
// separated by CRLF with no trailing separator, and embedded line breaks are
// written verbatim inside quoted fields.
package csvexport

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go-upwork-assistant/internal/models"
)

// FieldOrder is the fixed column order of the export
var FieldOrder = []string{
	"category", "subcategory", "postedAt", "publishTime", "createTime",
	"lastActivity", "lastOnlineTime", "currencyCode", "hourlyMin", "hourlyMax",
	"projectBudget", "weeklyRetainerBudget", "engagementDuration", "engagementWeeks",
	"hourlyEngagementType", "Project Payment Type", "skills", "contractorTier",
	"totalApplicants", "totalInvitedToInterview", "totalHired", "unansweredInvites",
	"invitationsSent", "numberOfPositionsToHire", "hireRate", "clientCountry",
	"clientCity", "feedbackScore", "feedbackCount", "totalCharges",
	"totalJobsWithHires", "openedJobs", "isPaymentVerified", "clientIndustry",
	"clientCompanySize", "qualifications_regions", "qualifications_worldRegion",
	"qualifications_country", "minJobSuccessScore", "englishLevel",
	"Title", "URL", "Description", "Job ID",
}

const rowSeparator = "\r\n"

// Encode renders records as CSV text. The header is always present.
func Encode(records []models.ExternalJob) string {
	var b strings.Builder
	writeRow(&b, FieldOrder)
	for i := range records {
		b.WriteString(rowSeparator)
		writeRow(&b, values(&records[i]))
	}
	return b.String()
}

// FileName is the download name for an export made at t
func FileName(t time.Time) string {
	return fmt.Sprintf("upwork-jobs-%s.csv", t.Format(time.DateOnly))
}

// WriteFile encodes records into dir/FileName(t) and returns the path
func WriteFile(dir string, t time.Time, records []models.ExternalJob) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(dir, FileName(t))
	if err := os.WriteFile(path, []byte(Encode(records)), 0o644); err != nil {
		return "", fmt.Errorf("write csv: %w", err)
	}
	return path, nil
}

func writeRow(b *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(Escape(f))
	}
}

// Escape quotes a field when it contains a comma, quote or line break
func Escape(s string) string {
	if !strings.ContainsAny(s, ",\"\r\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func values(j *models.ExternalJob) []string {
	return []string{
		j.Category,
		j.Subcategory,
		j.PostedAt,
		j.PublishTime,
		j.CreateTime,
		j.LastActivity,
		j.LastOnlineTime,
		j.CurrencyCode,
		float(j.HourlyMin),
		float(j.HourlyMax),
		float(j.ProjectBudget),
		float(j.WeeklyRetainerBudget),
		j.EngagementDuration,
		strconv.Itoa(j.EngagementWeeks),
		j.HourlyEngagementType,
		j.ProjectPaymentType,
		strings.Join(j.Skills, ";"),
		j.ContractorTier,
		strconv.Itoa(j.TotalApplicants),
		strconv.Itoa(j.TotalInvitedToInterview),
		strconv.Itoa(j.TotalHired),
		strconv.Itoa(j.UnansweredInvites),
		strconv.Itoa(j.InvitationsSent),
		strconv.Itoa(j.NumberOfPositionsToHire),
		float(j.HireRate),
		j.ClientCountry,
		j.ClientCity,
		float(j.FeedbackScore),
		strconv.Itoa(j.FeedbackCount),
		float(j.TotalCharges),
		strconv.Itoa(j.TotalJobsWithHires),
		strconv.Itoa(j.OpenedJobs),
		strconv.FormatBool(j.IsPaymentVerified),
		j.ClientIndustry,
		strconv.Itoa(j.ClientCompanySize),
		j.QualificationsRegions,
		j.QualificationsWorldRegion,
		j.QualificationsCountry,
		float(j.MinJobSuccessScore),
		j.EnglishLevel,
		j.Title,
		j.URL,
		j.Description,
		j.JobID,
	}
}

func float(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
