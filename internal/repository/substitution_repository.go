package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-substitution-api/internal/models"
)

var (
	// ErrVacancyTaken signals that the vacancy already has an accepted offer.
	ErrVacancyTaken = errors.New("vacancy already has an accepted offer")
	// ErrWriteConflict signals a serialization failure or deadlock that is safe to retry.
	ErrWriteConflict = errors.New("concurrent write conflict")
)

const offerColumns = `id, leave_id, subject, day_of_week, period_number, vacancy_date, class_name,
       original_teacher_id, teacher_id, status, record_status, assigned_by, notes, rejection_reason,
       system_rejected, requested_at, accepted_at, rejected_at, completed_at, responded_at, cancelled_at`

// SubstitutionRepository persists substitution offers and guards their transitions.
type SubstitutionRepository struct {
	db *sqlx.DB
}

// NewSubstitutionRepository constructs the repository.
func NewSubstitutionRepository(db *sqlx.DB) *SubstitutionRepository {
	return &SubstitutionRepository{db: db}
}

// CreateBatch inserts offers for a single vacancy in one transaction. The insert is
// refused with ErrVacancyTaken when the vacancy has already been accepted.
func (r *SubstitutionRepository) CreateBatch(ctx context.Context, offers []*models.SubstitutionOffer) (err error) {
	if len(offers) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin offer transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insertQuery = `INSERT INTO substitution_offers
	(id, leave_id, subject, day_of_week, period_number, vacancy_date, class_name, original_teacher_id,
	 teacher_id, status, record_status, assigned_by, notes, system_rejected, requested_at)
	SELECT CAST($1 AS TEXT), CAST($2 AS TEXT), CAST($3 AS TEXT), CAST($4 AS TEXT), CAST($5 AS INTEGER),
	       CAST($6 AS DATE), CAST($7 AS TEXT), CAST($8 AS TEXT), CAST($9 AS TEXT), CAST($10 AS TEXT),
	       CAST($11 AS TEXT), CAST($12 AS TEXT), CAST($13 AS TEXT), FALSE, CAST($14 AS TIMESTAMPTZ)
	WHERE NOT EXISTS (
		SELECT 1 FROM substitution_offers w
		WHERE w.leave_id = CAST($2 AS TEXT) AND w.vacancy_date = CAST($6 AS DATE)
		  AND w.period_number = CAST($5 AS INTEGER)
		  AND w.status IN ('ACCEPTED', 'COMPLETED') AND w.record_status = 'ACTIVE'
	)`
	for _, offer := range offers {
		prepareOffer(offer)
		result, execErr := tx.ExecContext(ctx, insertQuery,
			offer.ID,
			offer.LeaveID,
			offer.Subject,
			offer.DayOfWeek,
			offer.PeriodNumber,
			offer.VacancyDate,
			offer.ClassName,
			offer.OriginalTeacherID,
			offer.TeacherID,
			offer.Status,
			offer.RecordStatus,
			offer.AssignedBy,
			offer.Notes,
			offer.RequestedAt,
		)
		if execErr != nil {
			err = fmt.Errorf("insert offer: %w", execErr)
			return err
		}
		rows, rowsErr := result.RowsAffected()
		if rowsErr != nil {
			err = fmt.Errorf("check offer insert rows: %w", rowsErr)
			return err
		}
		if rows == 0 {
			err = ErrVacancyTaken
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit offers: %w", err)
	}
	return nil
}

func prepareOffer(offer *models.SubstitutionOffer) {
	if offer.ID == "" {
		offer.ID = uuid.NewString()
	}
	if offer.Status == "" {
		offer.Status = models.OfferStatusRequested
	}
	if offer.RecordStatus == "" {
		offer.RecordStatus = models.RecordStatusActive
	}
	if offer.RequestedAt.IsZero() {
		offer.RequestedAt = time.Now().UTC()
	}
	offer.VacancyDate = models.TruncateDate(offer.VacancyDate)
}

// GetByID fetches an offer including soft-deleted rows.
func (r *SubstitutionRepository) GetByID(ctx context.Context, id string) (*models.SubstitutionOffer, error) {
	query := fmt.Sprintf("SELECT %s FROM substitution_offers WHERE id = $1", offerColumns)
	var offer models.SubstitutionOffer
	if err := r.db.GetContext(ctx, &offer, query, id); err != nil {
		return nil, err
	}
	return &offer, nil
}

// List returns offers matching the filter, newest first.
func (r *SubstitutionRepository) List(ctx context.Context, filter models.OfferFilter) ([]models.SubstitutionOffer, int, error) {
	conditions := make([]string, 0, 5)
	args := make([]interface{}, 0, 6)
	if !filter.IncludeDeleted {
		args = append(args, models.RecordStatusActive)
		conditions = append(conditions, fmt.Sprintf("record_status = $%d", len(args)))
	}
	if filter.LeaveID != "" {
		args = append(args, filter.LeaveID)
		conditions = append(conditions, fmt.Sprintf("leave_id = $%d", len(args)))
	}
	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)))
	}
	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.VacancyDate != nil {
		args = append(args, models.TruncateDate(*filter.VacancyDate))
		conditions = append(conditions, fmt.Sprintf("vacancy_date = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf("SELECT %s FROM substitution_offers%s ORDER BY requested_at DESC, id ASC LIMIT %d OFFSET %d",
		offerColumns, where, limit, offset)

	var offers []models.SubstitutionOffer
	if err := r.db.SelectContext(ctx, &offers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list offers: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM substitution_offers"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count offers: %w", err)
	}
	return offers, total, nil
}

// HasAcceptedForVacancy reports whether any live offer already won the vacancy.
func (r *SubstitutionRepository) HasAcceptedForVacancy(ctx context.Context, leaveID string, date time.Time, period int) (bool, error) {
	const query = `SELECT EXISTS (
		SELECT 1 FROM substitution_offers
		WHERE leave_id = $1 AND vacancy_date = $2 AND period_number = $3
		  AND status IN ($4, $5) AND record_status = $6
	)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query,
		leaveID,
		models.TruncateDate(date),
		period,
		models.OfferStatusAccepted,
		models.OfferStatusCompleted,
		models.RecordStatusActive,
	); err != nil {
		return false, fmt.Errorf("check vacancy acceptance: %w", err)
	}
	return exists, nil
}

// ListActiveForVacancy returns the live offers for a vacancy.
func (r *SubstitutionRepository) ListActiveForVacancy(ctx context.Context, leaveID string, date time.Time, period int) ([]models.SubstitutionOffer, error) {
	query := fmt.Sprintf(`SELECT %s FROM substitution_offers
	WHERE leave_id = $1 AND vacancy_date = $2 AND period_number = $3 AND record_status = $4
	ORDER BY requested_at ASC, id ASC`, offerColumns)
	var offers []models.SubstitutionOffer
	if err := r.db.SelectContext(ctx, &offers, query, leaveID, models.TruncateDate(date), period, models.RecordStatusActive); err != nil {
		return nil, fmt.Errorf("list vacancy offers: %w", err)
	}
	return offers, nil
}

// AcceptParams identifies the acceptance attempt.
type AcceptParams struct {
	OfferID   string
	TeacherID string
	At        time.Time
}

// OfferRef points at an offer and its recipient.
type OfferRef struct {
	ID        string
	TeacherID string
}

// AcceptResult describes the outcome of an acceptance attempt.
type AcceptResult struct {
	Accepted     bool
	AutoRejected []OfferRef
}

// acceptQuery flips the offer, declines its requested siblings and records the
// winner on the leave in a single statement. The target update only matches
// while the offer is still REQUESTED and no sibling has been accepted.
const acceptQuery = `WITH target AS (
	UPDATE substitution_offers o
	SET status = 'ACCEPTED', accepted_at = $3, responded_at = $3
	WHERE o.id = $1 AND o.teacher_id = $2 AND o.status = 'REQUESTED' AND o.record_status = 'ACTIVE'
	  AND NOT EXISTS (
		SELECT 1 FROM substitution_offers w
		WHERE w.leave_id = o.leave_id AND w.vacancy_date = o.vacancy_date AND w.period_number = o.period_number
		  AND w.id <> o.id AND w.status IN ('ACCEPTED', 'COMPLETED') AND w.record_status = 'ACTIVE'
	  )
	RETURNING o.id, o.leave_id, o.vacancy_date, o.period_number, o.teacher_id
), siblings AS (
	UPDATE substitution_offers s
	SET status = 'REJECTED', rejection_reason = $4, system_rejected = TRUE, rejected_at = $3, responded_at = $3
	FROM target t
	WHERE s.leave_id = t.leave_id AND s.vacancy_date = t.vacancy_date AND s.period_number = t.period_number
	  AND s.id <> t.id AND s.status = 'REQUESTED' AND s.record_status = 'ACTIVE'
	RETURNING s.id, s.teacher_id
), leave_update AS (
	UPDATE leaves l SET final_substitute_id = t.teacher_id, updated_at = $3
	FROM target t WHERE l.id = t.leave_id
	RETURNING l.id
)
SELECT t.id AS offer_id, s.id AS sibling_id, s.teacher_id AS sibling_teacher_id
FROM target t LEFT JOIN siblings s ON TRUE`

// Accept atomically moves a REQUESTED offer to ACCEPTED. Accepted is false when the
// guard did not match; callers re-read the offer to classify the refusal.
func (r *SubstitutionRepository) Accept(ctx context.Context, params AcceptParams) (*AcceptResult, error) {
	at := params.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	var rows []struct {
		OfferID          string         `db:"offer_id"`
		SiblingID        sql.NullString `db:"sibling_id"`
		SiblingTeacherID sql.NullString `db:"sibling_teacher_id"`
	}
	if err := r.db.SelectContext(ctx, &rows, acceptQuery, params.OfferID, params.TeacherID, at, models.SystemRejectionReason); err != nil {
		return nil, classifyWriteError(err, "accept offer")
	}
	result := &AcceptResult{Accepted: len(rows) > 0}
	for _, row := range rows {
		if row.SiblingID.Valid {
			result.AutoRejected = append(result.AutoRejected, OfferRef{ID: row.SiblingID.String, TeacherID: row.SiblingTeacherID.String})
		}
	}
	return result, nil
}

// Reject declines a REQUESTED offer on behalf of its recipient.
func (r *SubstitutionRepository) Reject(ctx context.Context, offerID, teacherID string, reason *string, at time.Time) error {
	const query = `UPDATE substitution_offers
	SET status = 'REJECTED', rejection_reason = $3, system_rejected = FALSE, rejected_at = $4, responded_at = $4
	WHERE id = $1 AND teacher_id = $2 AND status = 'REQUESTED' AND record_status = 'ACTIVE'`
	result, err := r.db.ExecContext(ctx, query, offerID, teacherID, reason, at)
	if err != nil {
		return classifyWriteError(err, "reject offer")
	}
	return requireAffected(result, "reject offer")
}

// CancelResult reports what a cancellation undid.
type CancelResult struct {
	LeaveID        string             `db:"leave_id"`
	TeacherID      string             `db:"teacher_id"`
	PreviousStatus models.OfferStatus `db:"previous_status"`
}

// cancelQuery soft-deletes the offer. When it was a winner the leave's final
// substitute falls back to the latest remaining winner of any of its vacancies, or
// NULL. Sibling CTEs read the pre-statement snapshot, so the target is excluded by id.
const cancelQuery = `WITH target AS (
	UPDATE substitution_offers o
	SET record_status = 'DELETED', cancelled_at = $2,
	    status = CASE WHEN prev.status IN ('REQUESTED', 'ACCEPTED') THEN 'CANCELLED' ELSE prev.status END
	FROM substitution_offers prev
	WHERE o.id = $1 AND prev.id = o.id AND o.record_status = 'ACTIVE'
	RETURNING o.id, o.leave_id, o.teacher_id, prev.status AS previous_status
), leave_update AS (
	UPDATE leaves l SET final_substitute_id = (
		SELECT w.teacher_id FROM substitution_offers w
		WHERE w.leave_id = t.leave_id AND w.id <> t.id
		  AND w.status IN ('ACCEPTED', 'COMPLETED') AND w.record_status = 'ACTIVE'
		ORDER BY w.accepted_at DESC NULLS LAST, w.id DESC
		LIMIT 1
	), updated_at = $2
	FROM target t
	WHERE l.id = t.leave_id AND t.previous_status IN ('ACCEPTED', 'COMPLETED')
	RETURNING l.id
)
SELECT leave_id, teacher_id, previous_status FROM target`

// Cancel soft-deletes a live offer. Requested and accepted offers become CANCELLED,
// and a cancelled winner no longer counts as the leave's final substitute.
func (r *SubstitutionRepository) Cancel(ctx context.Context, offerID string, at time.Time) (*CancelResult, error) {
	var result CancelResult
	if err := r.db.GetContext(ctx, &result, cancelQuery, offerID, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, classifyWriteError(err, "cancel offer")
	}
	return &result, nil
}

// Complete marks an accepted offer as delivered.
func (r *SubstitutionRepository) Complete(ctx context.Context, offerID string, at time.Time) error {
	const query = `UPDATE substitution_offers SET status = 'COMPLETED', completed_at = $2
	WHERE id = $1 AND status = 'ACCEPTED' AND record_status = 'ACTIVE'`
	result, err := r.db.ExecContext(ctx, query, offerID, at)
	if err != nil {
		return classifyWriteError(err, "complete offer")
	}
	return requireAffected(result, "complete offer")
}

// ListRoster returns accepted and completed substitutions for a date.
func (r *SubstitutionRepository) ListRoster(ctx context.Context, date time.Time) ([]models.RosterEntry, error) {
	const query = `SELECT o.id AS offer_id, o.vacancy_date, o.period_number, o.subject, o.class_name,
       ot.full_name AS original_teacher_name, st.full_name AS substitute_name, o.status
	FROM substitution_offers o
	JOIN teachers ot ON ot.id = o.original_teacher_id
	JOIN teachers st ON st.id = o.teacher_id
	WHERE o.vacancy_date = $1 AND o.record_status = $2 AND o.status IN ($3, $4)
	ORDER BY o.period_number ASC, o.class_name ASC`
	var entries []models.RosterEntry
	if err := r.db.SelectContext(ctx, &entries, query,
		models.TruncateDate(date),
		models.RecordStatusActive,
		models.OfferStatusAccepted,
		models.OfferStatusCompleted,
	); err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	return entries, nil
}

func requireAffected(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s rows: %w", op, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// classifyWriteError maps postgres errors raised by concurrent transitions.
func classifyWriteError(err error, op string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", op, ErrVacancyTaken)
		case "40001", "40P01":
			return fmt.Errorf("%s: %w", op, ErrWriteConflict)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
