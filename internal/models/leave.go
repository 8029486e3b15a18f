package models

import "time"

// LeaveStatus enumerates leave request states.
type LeaveStatus string

const (
	LeaveStatusPending   LeaveStatus = "PENDING"
	LeaveStatusApproved  LeaveStatus = "APPROVED"
	LeaveStatusRejected  LeaveStatus = "REJECTED"
	LeaveStatusCancelled LeaveStatus = "CANCELLED"
)

// Leave is the originating request that vacates one or more periods.
type Leave struct {
	ID                string      `db:"id" json:"id"`
	TeacherID         string      `db:"teacher_id" json:"teacherId"`
	StartDate         time.Time   `db:"start_date" json:"startDate"`
	EndDate           time.Time   `db:"end_date" json:"endDate"`
	Reason            string      `db:"reason" json:"reason"`
	LeaveType         string      `db:"leave_type" json:"leaveType"`
	Status            LeaveStatus `db:"status" json:"status"`
	FinalSubstituteID *string     `db:"final_substitute_id" json:"finalSubstituteId,omitempty"`
	CreatedAt         time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt         time.Time   `db:"updated_at" json:"updatedAt"`
}

// Covers reports whether date falls within the leave window.
func (l Leave) Covers(date time.Time) bool {
	d := TruncateDate(date)
	return !d.Before(TruncateDate(l.StartDate)) && !d.After(TruncateDate(l.EndDate))
}
