package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-substitution-api/internal/models"
)

// LeaveRepository reads leave requests. Leave writes made by the offer
// workflow happen inside the offer statements.
type LeaveRepository struct {
	db *sqlx.DB
}

// NewLeaveRepository constructs the repository.
func NewLeaveRepository(db *sqlx.DB) *LeaveRepository {
	return &LeaveRepository{db: db}
}

// GetByID fetches a leave by identifier.
func (r *LeaveRepository) GetByID(ctx context.Context, id string) (*models.Leave, error) {
	const query = `SELECT id, teacher_id, start_date, end_date, reason, leave_type, status,
       final_substitute_id, created_at, updated_at
	FROM leaves WHERE id = $1`
	var leave models.Leave
	if err := r.db.GetContext(ctx, &leave, query, id); err != nil {
		return nil, err
	}
	return &leave, nil
}
