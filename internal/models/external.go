package models

// NA is the placeholder for string fields that have no scraped source
const NA = "N/A"

// ExternalJob is the downstream record format. Field names and casing are an
// external contract shared with the webhook consumer and the CSV header.
type ExternalJob struct {
	Category                  string   `json:"category"`
	Subcategory               string   `json:"subcategory"`
	PostedAt                  string   `json:"postedAt"`
	PublishTime               string   `json:"publishTime"`
	CreateTime                string   `json:"createTime"`
	LastActivity              string   `json:"lastActivity"`
	LastOnlineTime            string   `json:"lastOnlineTime"`
	CurrencyCode              string   `json:"currencyCode"`
	HourlyMin                 float64  `json:"hourlyMin"`
	HourlyMax                 float64  `json:"hourlyMax"`
	ProjectBudget             float64  `json:"projectBudget"`
	WeeklyRetainerBudget      float64  `json:"weeklyRetainerBudget"`
	EngagementDuration        string   `json:"engagementDuration"`
	EngagementWeeks           int      `json:"engagementWeeks"`
	HourlyEngagementType      string   `json:"hourlyEngagementType"`
	ProjectPaymentType        string   `json:"Project Payment Type"`
	Skills                    []string `json:"skills"`
	ContractorTier            string   `json:"contractorTier"`
	TotalApplicants           int      `json:"totalApplicants"`
	TotalInvitedToInterview   int      `json:"totalInvitedToInterview"`
	TotalHired                int      `json:"totalHired"`
	UnansweredInvites         int      `json:"unansweredInvites"`
	InvitationsSent           int      `json:"invitationsSent"`
	NumberOfPositionsToHire   int      `json:"numberOfPositionsToHire"`
	HireRate                  float64  `json:"hireRate"`
	ClientCountry             string   `json:"clientCountry"`
	ClientCity                string   `json:"clientCity"`
	FeedbackScore             float64  `json:"feedbackScore"`
	FeedbackCount             int      `json:"feedbackCount"`
	TotalCharges              float64  `json:"totalCharges"`
	TotalJobsWithHires        int      `json:"totalJobsWithHires"`
	OpenedJobs                int      `json:"openedJobs"`
	IsPaymentVerified         bool     `json:"isPaymentVerified"`
	ClientIndustry            string   `json:"clientIndustry"`
	ClientCompanySize         int      `json:"clientCompanySize"`
	QualificationsRegions     string   `json:"qualifications_regions"`
	QualificationsWorldRegion string   `json:"qualifications_worldRegion"`
	QualificationsCountry     string   `json:"qualifications_country"`
	MinJobSuccessScore        float64  `json:"minJobSuccessScore"`
	EnglishLevel              string   `json:"englishLevel"`
	Title                     string   `json:"Title"`
	URL                       string   `json:"URL"`
	Description               string   `json:"Description"`
	JobID                     string   `json:"Job ID"`
}

// NewExternalJob returns a record with every field set to its placeholder value
func NewExternalJob() ExternalJob {
	return ExternalJob{
		Category:                  NA,
		Subcategory:               NA,
		PostedAt:                  NA,
		PublishTime:               NA,
		CreateTime:                NA,
		LastActivity:              NA,
		LastOnlineTime:            NA,
		CurrencyCode:              NA,
		EngagementDuration:        NA,
		HourlyEngagementType:      NA,
		ProjectPaymentType:        NA,
		Skills:                    []string{},
		ContractorTier:            NA,
		NumberOfPositionsToHire:   1,
		ClientCountry:             NA,
		ClientCity:                NA,
		ClientIndustry:            NA,
		QualificationsRegions:     NA,
		QualificationsWorldRegion: NA,
		QualificationsCountry:     NA,
		EnglishLevel:              NA,
		Title:                     NA,
		URL:                       NA,
		Description:               NA,
		JobID:                     NA,
	}
}
