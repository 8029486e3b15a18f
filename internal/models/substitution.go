package models

import "time"

// OfferStatus captures the substitution offer state machine.
type OfferStatus string

const (
	OfferStatusRequested OfferStatus = "REQUESTED"
	OfferStatusAccepted  OfferStatus = "ACCEPTED"
	OfferStatusRejected  OfferStatus = "REJECTED"
	OfferStatusCompleted OfferStatus = "COMPLETED"
	OfferStatusCancelled OfferStatus = "CANCELLED"
)

// RecordStatus is the soft-delete marker for offers.
type RecordStatus string

const (
	RecordStatusActive  RecordStatus = "ACTIVE"
	RecordStatusDeleted RecordStatus = "DELETED"
)

// OfferDecision is a teacher's answer to an offer.
type OfferDecision string

const (
	DecisionAccept OfferDecision = "accept"
	DecisionReject OfferDecision = "reject"
)

// SystemRejectionReason is stored on siblings auto-declined by another acceptance.
const SystemRejectionReason = "auto-declined: another teacher accepted this substitution first"

// Vacancy is a single vacated period derived from an approved leave.
type Vacancy struct {
	LeaveID           string    `json:"leaveId"`
	Subject           string    `json:"subject"`
	DayOfWeek         string    `json:"dayOfWeek"`
	PeriodNumber      int       `json:"periodNumber"`
	Date              time.Time `json:"date"`
	OriginalTeacherID string    `json:"originalTeacherId"`
	ClassName         string    `json:"className"`
}

// SubstitutionOffer is one invitation for a teacher to cover a vacancy.
type SubstitutionOffer struct {
	ID                string       `db:"id" json:"id"`
	LeaveID           string       `db:"leave_id" json:"leaveId"`
	Subject           string       `db:"subject" json:"subject"`
	DayOfWeek         string       `db:"day_of_week" json:"dayOfWeek"`
	PeriodNumber      int          `db:"period_number" json:"periodNumber"`
	VacancyDate       time.Time    `db:"vacancy_date" json:"vacancyDate"`
	ClassName         string       `db:"class_name" json:"className"`
	OriginalTeacherID string       `db:"original_teacher_id" json:"originalTeacherId"`
	TeacherID         string       `db:"teacher_id" json:"teacherId"`
	Status            OfferStatus  `db:"status" json:"status"`
	RecordStatus      RecordStatus `db:"record_status" json:"recordStatus"`
	AssignedBy        string       `db:"assigned_by" json:"assignedBy"`
	Notes             *string      `db:"notes" json:"notes,omitempty"`
	RejectionReason   *string      `db:"rejection_reason" json:"rejectionReason,omitempty"`
	SystemRejected    bool         `db:"system_rejected" json:"systemRejected"`
	RequestedAt       time.Time    `db:"requested_at" json:"requestedAt"`
	AcceptedAt        *time.Time   `db:"accepted_at" json:"acceptedAt,omitempty"`
	RejectedAt        *time.Time   `db:"rejected_at" json:"rejectedAt,omitempty"`
	CompletedAt       *time.Time   `db:"completed_at" json:"completedAt,omitempty"`
	RespondedAt       *time.Time   `db:"responded_at" json:"respondedAt,omitempty"`
	CancelledAt       *time.Time   `db:"cancelled_at" json:"cancelledAt,omitempty"`
}

// Resolved reports whether the offer left the REQUESTED state or was withdrawn.
func (o SubstitutionOffer) Resolved() bool {
	return o.Status != OfferStatusRequested || o.RecordStatus == RecordStatusDeleted
}

// SameVacancy reports whether both offers cover the same vacated period.
func (o SubstitutionOffer) SameVacancy(other SubstitutionOffer) bool {
	return o.LeaveID == other.LeaveID &&
		o.PeriodNumber == other.PeriodNumber &&
		TruncateDate(o.VacancyDate).Equal(TruncateDate(other.VacancyDate))
}

// OfferFilter scopes offer listings.
type OfferFilter struct {
	LeaveID        string
	TeacherID      string
	Status         []OfferStatus
	VacancyDate    *time.Time
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// RosterEntry is one accepted substitution on the daily roster.
type RosterEntry struct {
	OfferID             string      `db:"offer_id" json:"offerId"`
	VacancyDate         time.Time   `db:"vacancy_date" json:"vacancyDate"`
	PeriodNumber        int         `db:"period_number" json:"periodNumber"`
	Subject             string      `db:"subject" json:"subject"`
	ClassName           string      `db:"class_name" json:"className"`
	OriginalTeacherName string      `db:"original_teacher_name" json:"originalTeacherName"`
	SubstituteName      string      `db:"substitute_name" json:"substituteName"`
	Status              OfferStatus `db:"status" json:"status"`
}
