package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

var monday = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func newAvailabilityFixture() (*stubTeacherDirectory, *stubScheduleReader, *stubAttendance) {
	teachers := &stubTeacherDirectory{teachers: []models.Teacher{
		testTeacher("free", "Mathematics", 5, nil),
		testTeacher("busy", "Physics", 10, nil),
		testTeacher("covering", "Biology", 8, nil),
		testTeacher("away", "History", 8, nil),
	}}
	schedules := &stubScheduleReader{
		periods: map[string][]models.RegularPeriod{
			"busy": {{TeacherID: "busy", DayOfWeek: "Monday", PeriodNumber: 3, Subject: "Physics", ClassName: "XI-A"}},
			"free": {{TeacherID: "free", DayOfWeek: "monday", PeriodNumber: 4, Subject: "Mathematics"}},
		},
		covering: map[string]bool{"covering": true},
	}
	attendance := &stubAttendance{absent: map[string]bool{"away": true}}
	return teachers, schedules, attendance
}

func TestScoreAvailability(t *testing.T) {
	teachers, schedules, attendance := newAvailabilityFixture()
	evaluator := NewAvailabilityEvaluator(teachers, schedules, attendance, nil)
	ctx := context.Background()

	cases := []struct {
		teacher  string
		expected float64
	}{
		{"free", AvailabilityFree},
		{"busy", AvailabilityOwnClass},
		{"covering", AvailabilityNone},
		{"away", AvailabilityNone},
		{"ghost", AvailabilityNone},
	}
	for _, tc := range cases {
		t.Run(tc.teacher, func(t *testing.T) {
			score, err := evaluator.ScoreAvailability(ctx, tc.teacher, "MONDAY", 3, monday)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, score)
		})
	}
}

func TestEvaluateExplainsOwnClass(t *testing.T) {
	teachers, schedules, attendance := newAvailabilityFixture()
	evaluator := NewAvailabilityEvaluator(teachers, schedules, attendance, nil)
	busy, err := teachers.FindByID(context.Background(), "busy")
	require.NoError(t, err)

	result, err := evaluator.Evaluate(context.Background(), busy, schedules.periods["busy"], Slot{Date: monday, Period: 3})
	require.NoError(t, err)
	assert.Equal(t, AvailabilityOwnClass, result.Score)
	assert.Contains(t, result.Reason, "Physics (XI-A)")
}

func TestScoreAvailabilityPropagatesStorageFailure(t *testing.T) {
	teachers, schedules, attendance := newAvailabilityFixture()
	attendance.err = errStoreDown
	evaluator := NewAvailabilityEvaluator(teachers, schedules, attendance, nil)

	_, err := evaluator.ScoreAvailability(context.Background(), "free", "monday", 3, monday)
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrPersistence))
}
