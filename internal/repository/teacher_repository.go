package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-substitution-api/internal/models"
)

const teacherColumns = `id, user_id, email, full_name, subject, role, workload, available, status,
	attendance_percentage, leave_balances, created_at, updated_at`

// TeacherRepository is the read-only teacher directory used by the substitution engine.
type TeacherRepository struct {
	db *sqlx.DB
}

// NewTeacherRepository constructs a TeacherRepository.
func NewTeacherRepository(db *sqlx.DB) *TeacherRepository {
	return &TeacherRepository{db: db}
}

// ListActive returns active teachers with the TEACHER role in stable roster order.
func (r *TeacherRepository) ListActive(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, error) {
	args := []interface{}{models.TeacherStatusActive, models.RoleTeacher}
	query := fmt.Sprintf("SELECT %s FROM teachers WHERE status = $1 AND role = $2", teacherColumns)
	if subject := strings.TrimSpace(filter.Subject); subject != "" {
		args = append(args, strings.ToLower(subject))
		query += fmt.Sprintf(" AND LOWER(subject) = $%d", len(args))
	}
	query += " ORDER BY created_at ASC, id ASC"

	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, args...); err != nil {
		return nil, fmt.Errorf("list active teachers: %w", err)
	}
	return teachers, nil
}

// FindByID fetches a teacher by ID.
func (r *TeacherRepository) FindByID(ctx context.Context, id string) (*models.Teacher, error) {
	query := fmt.Sprintf("SELECT %s FROM teachers WHERE id = $1", teacherColumns)
	var teacher models.Teacher
	if err := r.db.GetContext(ctx, &teacher, query, id); err != nil {
		return nil, err
	}
	return &teacher, nil
}

// FindByIDs fetches several teachers at once keyed by id.
func (r *TeacherRepository) FindByIDs(ctx context.Context, ids []string) (map[string]models.Teacher, error) {
	result := make(map[string]models.Teacher, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf("SELECT %s FROM teachers WHERE id IN (?)", teacherColumns), ids)
	if err != nil {
		return nil, fmt.Errorf("build teacher lookup: %w", err)
	}
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("find teachers: %w", err)
	}
	for _, teacher := range teachers {
		result[teacher.ID] = teacher
	}
	return result, nil
}
