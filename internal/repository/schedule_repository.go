package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-substitution-api/internal/models"
)

// ScheduleRepository exposes weekly timetable periods and substitution commitments.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs the repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// ListRegularPeriods returns every weekly period taught by the teacher.
func (r *ScheduleRepository) ListRegularPeriods(ctx context.Context, teacherID string) ([]models.RegularPeriod, error) {
	const query = `SELECT teacher_id, day_of_week, period_number, subject, class_name
	FROM timetable_periods WHERE teacher_id = $1 ORDER BY day_of_week, period_number`
	var periods []models.RegularPeriod
	if err := r.db.SelectContext(ctx, &periods, query, teacherID); err != nil {
		return nil, fmt.Errorf("list regular periods: %w", err)
	}
	return periods, nil
}

// ListActiveCommitments returns requested or accepted substitution slots held by the teacher.
func (r *ScheduleRepository) ListActiveCommitments(ctx context.Context, teacherID string) ([]models.SlotCommitment, error) {
	const query = `SELECT day_of_week, period_number, vacancy_date, status
	FROM substitution_offers
	WHERE teacher_id = $1 AND record_status = $2 AND status IN ($3, $4)
	ORDER BY vacancy_date, period_number`
	var commitments []models.SlotCommitment
	if err := r.db.SelectContext(ctx, &commitments, query,
		teacherID,
		models.RecordStatusActive,
		models.OfferStatusRequested,
		models.OfferStatusAccepted,
	); err != nil {
		return nil, fmt.Errorf("list active commitments: %w", err)
	}
	return commitments, nil
}

// HasAcceptedSubstitution reports whether the teacher already covers the slot on date.
func (r *ScheduleRepository) HasAcceptedSubstitution(ctx context.Context, teacherID, day string, period int, date time.Time) (bool, error) {
	const query = `SELECT EXISTS (
		SELECT 1 FROM substitution_offers
		WHERE teacher_id = $1 AND day_of_week = $2 AND period_number = $3 AND vacancy_date = $4
		  AND record_status = $5 AND status IN ($6, $7)
	)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query,
		teacherID,
		day,
		period,
		models.TruncateDate(date),
		models.RecordStatusActive,
		models.OfferStatusAccepted,
		models.OfferStatusCompleted,
	); err != nil {
		return false, fmt.Errorf("check accepted substitution: %w", err)
	}
	return exists, nil
}
