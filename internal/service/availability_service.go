package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

// Availability scores returned by the evaluator.
const (
	AvailabilityNone        = 0.0
	AvailabilityOwnClass    = 0.5
	AvailabilityFree        = 1.0
	availabilityUnknownSlot = "unknown"
)

// TeacherDirectory is the read-only teacher lookup used across the substitution services.
type TeacherDirectory interface {
	ListActive(ctx context.Context, filter models.TeacherFilter) ([]models.Teacher, error)
	FindByID(ctx context.Context, id string) (*models.Teacher, error)
	FindByIDs(ctx context.Context, ids []string) (map[string]models.Teacher, error)
}

// ScheduleReader exposes timetable periods and substitution commitments.
type ScheduleReader interface {
	ListRegularPeriods(ctx context.Context, teacherID string) ([]models.RegularPeriod, error)
	ListActiveCommitments(ctx context.Context, teacherID string) ([]models.SlotCommitment, error)
	HasAcceptedSubstitution(ctx context.Context, teacherID, day string, period int, date time.Time) (bool, error)
}

// AttendanceReader answers whether a teacher is away on a date.
type AttendanceReader interface {
	HasAbsenceOn(ctx context.Context, teacherID string, date time.Time) (bool, error)
}

// Slot is a single (day, period) on a calendar date.
type Slot struct {
	Day    string
	Period int
	Date   time.Time
}

func (s Slot) normalized() Slot {
	day, ok := models.NormalizeDay(s.Day)
	if !ok && !s.Date.IsZero() {
		day = models.DayOf(s.Date)
	}
	if day == "" {
		day = availabilityUnknownSlot
	}
	return Slot{Day: day, Period: s.Period, Date: models.TruncateDate(s.Date)}
}

// AvailabilityResult is the availability sub-score with a readable explanation.
type AvailabilityResult struct {
	Score  float64
	Reason string
}

// AvailabilityEvaluator decides whether a teacher can take a given slot.
type AvailabilityEvaluator struct {
	teachers   TeacherDirectory
	schedules  ScheduleReader
	attendance AttendanceReader
	logger     *zap.Logger
}

// NewAvailabilityEvaluator wires the evaluator dependencies.
func NewAvailabilityEvaluator(teachers TeacherDirectory, schedules ScheduleReader, attendance AttendanceReader, logger *zap.Logger) *AvailabilityEvaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityEvaluator{teachers: teachers, schedules: schedules, attendance: attendance, logger: logger}
}

// ScoreAvailability returns 0, 0.5 or 1 for the teacher at the slot. A missing
// teacher scores 0; only storage failures produce an error.
func (e *AvailabilityEvaluator) ScoreAvailability(ctx context.Context, teacherID, day string, period int, date time.Time) (float64, error) {
	teacher, err := e.teachers.FindByID(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return AvailabilityNone, nil
		}
		return 0, persistenceError(err, "failed to load teacher")
	}
	periods, err := e.schedules.ListRegularPeriods(ctx, teacher.ID)
	if err != nil {
		return 0, persistenceError(err, "failed to load timetable")
	}
	result, err := e.Evaluate(ctx, teacher, periods, Slot{Day: day, Period: period, Date: date})
	if err != nil {
		return 0, err
	}
	return result.Score, nil
}

// Evaluate scores a loaded teacher against the slot reusing its timetable.
func (e *AvailabilityEvaluator) Evaluate(ctx context.Context, teacher *models.Teacher, periods []models.RegularPeriod, slot Slot) (AvailabilityResult, error) {
	if teacher == nil {
		return AvailabilityResult{Score: AvailabilityNone, Reason: "teacher record not found"}, nil
	}
	slot = slot.normalized()

	covering, err := e.schedules.HasAcceptedSubstitution(ctx, teacher.ID, slot.Day, slot.Period, slot.Date)
	if err != nil {
		return AvailabilityResult{}, persistenceError(err, "failed to load substitution commitments")
	}
	if covering {
		return AvailabilityResult{
			Score:  AvailabilityNone,
			Reason: fmt.Sprintf("already covering another class on %s period %d", slot.Day, slot.Period),
		}, nil
	}

	if !slot.Date.IsZero() {
		absent, err := e.attendance.HasAbsenceOn(ctx, teacher.ID, slot.Date)
		if err != nil {
			return AvailabilityResult{}, persistenceError(err, "failed to load attendance")
		}
		if absent {
			return AvailabilityResult{
				Score:  AvailabilityNone,
				Reason: fmt.Sprintf("absent on %s", slot.Date.Format(dateLayout)),
			}, nil
		}
	}

	for _, p := range periods {
		day, _ := models.NormalizeDay(p.DayOfWeek)
		if day == slot.Day && p.PeriodNumber == slot.Period {
			return AvailabilityResult{
				Score:  AvailabilityOwnClass,
				Reason: fmt.Sprintf("teaches %s at this slot", describeClass(p)),
			}, nil
		}
	}
	return AvailabilityResult{
		Score:  AvailabilityFree,
		Reason: fmt.Sprintf("free on %s period %d", slot.Day, slot.Period),
	}, nil
}

func describeClass(p models.RegularPeriod) string {
	if p.ClassName == "" {
		return p.Subject
	}
	return fmt.Sprintf("%s (%s)", p.Subject, p.ClassName)
}

func persistenceError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, message)
}
