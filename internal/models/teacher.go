package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// TeacherStatus captures the soft-delete lifecycle of a teacher record.
type TeacherStatus string

const (
	TeacherStatusActive   TeacherStatus = "ACTIVE"
	TeacherStatusInactive TeacherStatus = "INACTIVE"
)

// Teacher represents an instructor record as seen by the substitution engine.
type Teacher struct {
	ID                   string         `db:"id" json:"id"`
	UserID               *string        `db:"user_id" json:"userId,omitempty"`
	Email                string         `db:"email" json:"email"`
	FullName             string         `db:"full_name" json:"fullName"`
	Subject              string         `db:"subject" json:"subject"`
	Role                 UserRole       `db:"role" json:"role"`
	Workload             int            `db:"workload" json:"workload"`
	Available            bool           `db:"available" json:"available"`
	Status               TeacherStatus  `db:"status" json:"status"`
	AttendancePercentage *float64       `db:"attendance_percentage" json:"attendancePercentage,omitempty"`
	LeaveBalances        types.JSONText `db:"leave_balances" json:"leaveBalances,omitempty"`
	CreatedAt            time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt            time.Time      `db:"updated_at" json:"updatedAt"`
}

// IsActive reports whether the teacher can be offered substitutions.
func (t Teacher) IsActive() bool {
	return t.Status == TeacherStatusActive
}

// TeacherFilter narrows the candidate pool.
type TeacherFilter struct {
	Subject string
}
