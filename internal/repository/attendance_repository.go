package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-substitution-api/internal/models"
)

// absenceStatuses mark a teacher as away for the whole day.
var absenceStatuses = []string{"ABSENT", "LEAVE", "SICK"}

// AttendanceRepository answers absence questions for the availability evaluator.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// HasAbsenceOn reports a recorded absence or an approved leave covering date.
func (r *AttendanceRepository) HasAbsenceOn(ctx context.Context, teacherID string, date time.Time) (bool, error) {
	query, args, err := sqlx.In(`SELECT EXISTS (
		SELECT 1 FROM teacher_absences WHERE teacher_id = ? AND date = ? AND status IN (?)
	) OR EXISTS (
		SELECT 1 FROM leaves WHERE teacher_id = ? AND status = ? AND start_date <= ? AND end_date >= ?
	)`,
		teacherID, models.TruncateDate(date), absenceStatuses,
		teacherID, models.LeaveStatusApproved, models.TruncateDate(date), models.TruncateDate(date),
	)
	if err != nil {
		return false, fmt.Errorf("build absence query: %w", err)
	}
	var absent bool
	if err := r.db.GetContext(ctx, &absent, r.db.Rebind(query), args...); err != nil {
		return false, fmt.Errorf("check absence: %w", err)
	}
	return absent, nil
}
