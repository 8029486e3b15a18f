package dto

import (
	"time"

	"github.com/noah-isme/sma-substitution-api/internal/models"
)

// VacancyRequest identifies a vacated period. Date uses YYYY-MM-DD.
type VacancyRequest struct {
	LeaveID           string `json:"leaveId" form:"leaveId" validate:"omitempty"`
	Subject           string `json:"subject" form:"subject" validate:"required"`
	DayOfWeek         string `json:"dayOfWeek" form:"day" validate:"required"`
	PeriodNumber      int    `json:"periodNumber" form:"period" validate:"required,min=1,max=16"`
	Date              string `json:"date" form:"date" validate:"required,datetime=2006-01-02"`
	OriginalTeacherID string `json:"originalTeacherId" form:"excludeTeacherId"`
	ClassName         string `json:"className" form:"className"`
}

// RecommendationQuery asks for a ranked shortlist for a vacancy.
type RecommendationQuery struct {
	VacancyRequest
	Limit              int    `json:"limit" form:"limit" validate:"omitempty,min=1,max=20"`
	IncludeUnavailable *bool  `json:"includeUnavailable" form:"includeUnavailable"`
	CandidateSubject   string `json:"candidateSubject" form:"candidateSubject"`
}

// ScoreBreakdown exposes each normalized sub-score and the weighted total.
type ScoreBreakdown struct {
	Availability float64 `json:"availability"`
	Workload     float64 `json:"workload"`
	Subject      float64 `json:"subject"`
	Attendance   float64 `json:"attendance"`
	Total        float64 `json:"total"`
}

// CandidateProfile is the teacher snippet rendered next to a recommendation.
type CandidateProfile struct {
	FullName             string   `json:"fullName"`
	Email                string   `json:"email"`
	Subject              string   `json:"subject"`
	Workload             int      `json:"workload"`
	WeeklyCommitments    int      `json:"weeklyCommitments"`
	AttendancePercentage *float64 `json:"attendancePercentage,omitempty"`
	SelfAvailable        bool     `json:"selfAvailable"`
}

// Recommendation is one ranked substitute candidate.
type Recommendation struct {
	Rank      int              `json:"rank"`
	TeacherID string           `json:"teacherId"`
	Eligible  bool             `json:"eligible"`
	Scores    ScoreBreakdown   `json:"scores"`
	Profile   CandidateProfile `json:"profile"`
	Reasons   []string         `json:"reasons"`
}

// RecommendationResponse wraps a shortlist with its vacancy.
type RecommendationResponse struct {
	Vacancy         models.Vacancy   `json:"vacancy"`
	Recommendations []Recommendation `json:"recommendations"`
	GeneratedAt     time.Time        `json:"generatedAt"`
	Cached          bool             `json:"cached"`
}

// CreateOffersRequest sends offers for one vacancy to several candidates.
type CreateOffersRequest struct {
	Vacancy             VacancyRequest `json:"vacancy" validate:"required"`
	CandidateTeacherIDs []string       `json:"candidateTeacherIds" validate:"required,min=1,dive,required"`
	Notes               string         `json:"notes" validate:"omitempty,max=1000"`
}

// RespondOfferRequest carries a teacher's decision.
type RespondOfferRequest struct {
	Decision        models.OfferDecision `json:"decision" validate:"required,oneof=accept reject"`
	RejectionReason string               `json:"rejectionReason" validate:"omitempty,max=500"`
}

// OfferQuery filters offer listings.
type OfferQuery struct {
	LeaveID   string
	TeacherID string
	Status    []models.OfferStatus
	Date      string
	Page      int
	PageSize  int
}

// RosterQuery selects the daily roster export.
type RosterQuery struct {
	Date   string `form:"date" validate:"required,datetime=2006-01-02"`
	Format string `form:"format" validate:"omitempty,oneof=json csv pdf"`
}

// RosterExport carries rendered roster bytes.
type RosterExport struct {
	Filename    string
	ContentType string
	Body        []byte
}
