package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitution-api/internal/dto"
	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

func newTestRecommender(t *testing.T, teachers *stubTeacherDirectory, schedules *stubScheduleReader, attendance *stubAttendance, opts RecommenderOptions) *SubstituteRecommender {
	t.Helper()
	evaluator := NewAvailabilityEvaluator(teachers, schedules, attendance, nil)
	return NewSubstituteRecommender(teachers, schedules, evaluator, newDefaultScorer(t), nil, NewMetricsService(), nil, nil, opts)
}

func teacherIDs(recs []dto.Recommendation) []string {
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.TeacherID
	}
	return ids
}

func TestRecommendRanksCandidates(t *testing.T) {
	teachers := &stubTeacherDirectory{teachers: []models.Teacher{
		testTeacher("absent", "Mathematics", 10, nil),
		testTeacher("x", "Mathematics", 5, floatPtr(95)),
		testTeacher("y", "Mathematics", 5, floatPtr(95)),
		testTeacher("z", "Physics", 20, floatPtr(70)),
	}}
	schedules := &stubScheduleReader{covering: map[string]bool{"y": true}}
	recommender := newTestRecommender(t, teachers, schedules, &stubAttendance{}, RecommenderOptions{})

	recs, err := recommender.Recommend(context.Background(), mathsVacancy(), RecommendOptions{})
	require.NoError(t, err)

	require.Equal(t, []string{"x", "z", "y"}, teacherIDs(recs))
	assert.Equal(t, 1, recs[0].Rank)
	assert.InDelta(t, 0.956786, recs[0].Scores.Total, 1e-6)
	assert.True(t, recs[0].Eligible)

	covering := recs[2]
	assert.Equal(t, 0.0, covering.Scores.Availability)
	assert.False(t, covering.Eligible)
	assert.InDelta(t, recs[0].Scores.Total-0.4, covering.Scores.Total, 1e-9)
	assert.Contains(t, covering.Reasons[0], "already covering")
}

func TestRecommendUnavailableCandidates(t *testing.T) {
	teachers := &stubTeacherDirectory{teachers: []models.Teacher{
		testTeacher("x", "Mathematics", 5, nil),
		testTeacher("y", "Mathematics", 5, nil),
	}}
	schedules := &stubScheduleReader{covering: map[string]bool{"y": true}}

	keeping := newTestRecommender(t, teachers, schedules, &stubAttendance{}, RecommenderOptions{})
	recs, err := keeping.Recommend(context.Background(), mathsVacancy(), RecommendOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, teacherIDs(recs))
	assert.False(t, recs[1].Eligible)

	exclude := false
	recs, err = keeping.Recommend(context.Background(), mathsVacancy(), RecommendOptions{IncludeUnavailable: &exclude})
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, teacherIDs(recs))

	filtering := newTestRecommender(t, teachers, schedules, &stubAttendance{}, RecommenderOptions{ExcludeUnavailable: true})
	recs, err = filtering.Recommend(context.Background(), mathsVacancy(), RecommendOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, teacherIDs(recs))

	include := true
	recs, err = filtering.Recommend(context.Background(), mathsVacancy(), RecommendOptions{IncludeUnavailable: &include})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, teacherIDs(recs))
}

func TestRecommendCandidateSubjectFilter(t *testing.T) {
	teachers := &stubTeacherDirectory{teachers: []models.Teacher{
		testTeacher("x", "Mathematics", 5, nil),
		testTeacher("p", "Physics", 5, nil),
	}}
	recommender := newTestRecommender(t, teachers, &stubScheduleReader{}, &stubAttendance{}, RecommenderOptions{})

	recs, err := recommender.Recommend(context.Background(), mathsVacancy(), RecommendOptions{CandidateSubject: "physics"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p"}, teacherIDs(recs))

	recs, err = recommender.Recommend(context.Background(), mathsVacancy(), RecommendOptions{CandidateSubject: "Latin"})
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestRecommendEmptyPool(t *testing.T) {
	teachers := &stubTeacherDirectory{teachers: []models.Teacher{testTeacher("absent", "Mathematics", 10, nil)}}
	recommender := newTestRecommender(t, teachers, &stubScheduleReader{}, &stubAttendance{}, RecommenderOptions{})

	recs, err := recommender.Recommend(context.Background(), mathsVacancy(), RecommendOptions{})
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestRecommendTiesKeepDirectoryOrderAndLimit(t *testing.T) {
	var pool []models.Teacher
	for _, id := range []string{"t1", "t2", "t3", "t4", "t5", "t6", "t7"} {
		pool = append(pool, testTeacher(id, "Chemistry", 8, floatPtr(90)))
	}
	inactive := testTeacher("gone", "Mathematics", 0, floatPtr(100))
	inactive.Status = models.TeacherStatusInactive
	pool = append(pool, inactive)
	recommender := newTestRecommender(t, &stubTeacherDirectory{teachers: pool}, &stubScheduleReader{}, &stubAttendance{}, RecommenderOptions{})

	recs, err := recommender.Recommend(context.Background(), mathsVacancy(), RecommendOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2", "t3", "t4", "t5"}, teacherIDs(recs))

	recs, err = recommender.Recommend(context.Background(), mathsVacancy(), RecommendOptions{MaxResults: 2, ExcludeTeacherID: "t1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"t2", "t3"}, teacherIDs(recs))
	assert.Equal(t, 2, recs[1].Rank)
}

func TestRecommendCountsCommitmentsInWorkload(t *testing.T) {
	teachers := &stubTeacherDirectory{teachers: []models.Teacher{
		testTeacher("light", "Mathematics", 5, floatPtr(90)),
		testTeacher("loaded", "Mathematics", 5, floatPtr(90)),
	}}
	schedules := &stubScheduleReader{commitments: map[string][]models.SlotCommitment{
		"loaded": {{DayOfWeek: "tuesday", PeriodNumber: 1}, {DayOfWeek: "friday", PeriodNumber: 2}},
	}}
	recommender := newTestRecommender(t, teachers, schedules, &stubAttendance{}, RecommenderOptions{})

	recs, err := recommender.Recommend(context.Background(), mathsVacancy(), RecommendOptions{})
	require.NoError(t, err)
	require.Equal(t, []string{"light", "loaded"}, teacherIDs(recs))
	assert.Equal(t, 7, recs[1].Profile.WeeklyCommitments)
}

func TestGetRecommendationsValidatesVacancy(t *testing.T) {
	recommender := newTestRecommender(t, &stubTeacherDirectory{}, &stubScheduleReader{}, &stubAttendance{}, RecommenderOptions{})

	_, err := recommender.GetRecommendations(context.Background(), dto.RecommendationQuery{VacancyRequest: dto.VacancyRequest{
		Subject: "Mathematics", DayOfWeek: "tuesday", PeriodNumber: 3, Date: "2025-03-10",
	}})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	resp, err := recommender.GetRecommendations(context.Background(), dto.RecommendationQuery{VacancyRequest: dto.VacancyRequest{
		Subject: "Mathematics", DayOfWeek: "Monday", PeriodNumber: 3, Date: "2025-03-10",
	}})
	require.NoError(t, err)
	assert.Equal(t, "monday", resp.Vacancy.DayOfWeek)
	assert.Empty(t, resp.Recommendations)
}

func TestRecommendStorageFailure(t *testing.T) {
	recommender := newTestRecommender(t, &stubTeacherDirectory{err: errStoreDown}, &stubScheduleReader{}, &stubAttendance{}, RecommenderOptions{})

	_, err := recommender.Recommend(context.Background(), mathsVacancy(), RecommendOptions{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrPersistence))
}
