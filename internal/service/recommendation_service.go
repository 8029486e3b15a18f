package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitution-api/internal/dto"
	"github.com/noah-isme/sma-substitution-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

const (
	defaultMaxResults         = 5
	maxResultsCap             = 20
	recommendationCachePrefix = "substitution:recommendations"
)

// RecommenderOptions tunes the shortlist. The zero value keeps candidates
// that cannot take the slot, flagged as not eligible.
type RecommenderOptions struct {
	MaxResults         int
	ExcludeUnavailable bool
	CacheTTL           time.Duration
}

// RecommendOptions overrides the defaults for one call. CandidateSubject
// restricts the pool to teachers of that subject.
type RecommendOptions struct {
	ExcludeTeacherID   string
	CandidateSubject   string
	MaxResults         int
	IncludeUnavailable *bool
}

// SubstituteRecommender ranks the active teacher pool for a vacancy.
type SubstituteRecommender struct {
	teachers     TeacherDirectory
	schedules    ScheduleReader
	availability *AvailabilityEvaluator
	scorer       *CandidateScorer
	cache        *CacheService
	metrics      *MetricsService
	validate     *validator.Validate
	logger       *zap.Logger
	options      RecommenderOptions
	now          func() time.Time
}

// NewSubstituteRecommender wires the recommender.
func NewSubstituteRecommender(
	teachers TeacherDirectory,
	schedules ScheduleReader,
	availability *AvailabilityEvaluator,
	scorer *CandidateScorer,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	options RecommenderOptions,
) *SubstituteRecommender {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if options.MaxResults <= 0 {
		options.MaxResults = defaultMaxResults
	}
	if options.MaxResults > maxResultsCap {
		options.MaxResults = maxResultsCap
	}
	return &SubstituteRecommender{
		teachers:     teachers,
		schedules:    schedules,
		availability: availability,
		scorer:       scorer,
		cache:        cache,
		metrics:      metrics,
		validate:     validate,
		logger:       logger,
		options:      options,
		now:          time.Now,
	}
}

// GetRecommendations validates the query, serving cached shortlists when possible.
func (r *SubstituteRecommender) GetRecommendations(ctx context.Context, query dto.RecommendationQuery) (*dto.RecommendationResponse, error) {
	if err := r.validate.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid recommendation query")
	}
	vacancy, err := vacancyFromRequest(query.VacancyRequest)
	if err != nil {
		return nil, err
	}
	opts := RecommendOptions{
		ExcludeTeacherID:   query.OriginalTeacherID,
		CandidateSubject:   strings.TrimSpace(query.CandidateSubject),
		MaxResults:         query.Limit,
		IncludeUnavailable: query.IncludeUnavailable,
	}

	key := recommendationCacheKey(vacancy, opts, r.includeUnavailable(opts))
	var cached dto.RecommendationResponse
	if hit, err := r.cache.Get(ctx, key, &cached); err == nil && hit {
		cached.Cached = true
		return &cached, nil
	}

	recommendations, err := r.Recommend(ctx, vacancy, opts)
	if err != nil {
		return nil, err
	}
	resp := &dto.RecommendationResponse{
		Vacancy:         vacancy,
		Recommendations: recommendations,
		GeneratedAt:     r.now().UTC(),
	}
	if err := r.cache.Set(ctx, key, resp, r.options.CacheTTL); err != nil {
		r.logger.Debug("recommendation cache write skipped", zap.Error(err))
	}
	return resp, nil
}

type scoredCandidate struct {
	recommendation dto.Recommendation
	total          float64
}

// Recommend scores every eligible teacher and returns the top entries. Ties keep
// the directory order. An empty pool yields an empty, non-nil slice.
func (r *SubstituteRecommender) Recommend(ctx context.Context, vacancy models.Vacancy, opts RecommendOptions) ([]dto.Recommendation, error) {
	start := time.Now()
	teachers, err := r.teachers.ListActive(ctx, models.TeacherFilter{Subject: opts.CandidateSubject})
	if err != nil {
		return nil, persistenceError(err, "failed to load teachers")
	}

	includeUnavailable := r.includeUnavailable(opts)
	slot := Slot{Day: vacancy.DayOfWeek, Period: vacancy.PeriodNumber, Date: vacancy.Date}
	candidates := make([]scoredCandidate, 0, len(teachers))
	evaluated := 0
	for i := range teachers {
		teacher := teachers[i]
		if !teacher.IsActive() || teacher.Role != models.RoleTeacher {
			continue
		}
		if teacher.ID == vacancy.OriginalTeacherID || (opts.ExcludeTeacherID != "" && teacher.ID == opts.ExcludeTeacherID) {
			continue
		}
		evaluated++
		candidate, err := r.scoreCandidate(ctx, &teacher, vacancy, slot)
		if err != nil {
			return nil, err
		}
		if !candidate.recommendation.Eligible && !includeUnavailable {
			continue
		}
		candidates = append(candidates, candidate)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].total > candidates[j].total
	})

	limit := opts.MaxResults
	if limit <= 0 {
		limit = r.options.MaxResults
	}
	if limit > maxResultsCap {
		limit = maxResultsCap
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	result := make([]dto.Recommendation, len(candidates))
	for i, c := range candidates {
		c.recommendation.Rank = i + 1
		result[i] = c.recommendation
	}

	r.metrics.ObserveRecommendation(evaluated, time.Since(start))
	r.logger.Debug("recommendations computed",
		zap.String("leave_id", vacancy.LeaveID),
		zap.String("day", vacancy.DayOfWeek),
		zap.Int("period", vacancy.PeriodNumber),
		zap.Int("evaluated", evaluated),
		zap.Int("returned", len(result)),
	)
	return result, nil
}

func (r *SubstituteRecommender) scoreCandidate(ctx context.Context, teacher *models.Teacher, vacancy models.Vacancy, slot Slot) (scoredCandidate, error) {
	periods, err := r.schedules.ListRegularPeriods(ctx, teacher.ID)
	if err != nil {
		return scoredCandidate{}, persistenceError(err, "failed to load timetable")
	}
	commitments, err := r.schedules.ListActiveCommitments(ctx, teacher.ID)
	if err != nil {
		return scoredCandidate{}, persistenceError(err, "failed to load substitution commitments")
	}
	availability, err := r.availability.Evaluate(ctx, teacher, periods, slot)
	if err != nil {
		return scoredCandidate{}, err
	}

	weekly := weeklyCommitments(*teacher, periods, commitments)
	scores := r.scorer.Score(CandidateInput{
		Teacher:           *teacher,
		Availability:      availability.Score,
		WeeklyCommitments: weekly,
	}, vacancy)

	reasons := []string{availability.Reason, r.subjectReason(teacher.Subject, vacancy.Subject, scores.Subject)}
	reasons = append(reasons, fmt.Sprintf("%d weekly commitments", weekly))
	if teacher.AttendancePercentage != nil {
		reasons = append(reasons, fmt.Sprintf("attendance %.0f%%", *teacher.AttendancePercentage))
	} else {
		reasons = append(reasons, fmt.Sprintf("attendance unknown, assumed %.0f%%", r.scorer.Config().DefaultAttendance*100))
	}
	if !teacher.Available {
		reasons = append(reasons, "marked self as unavailable")
	}

	return scoredCandidate{
		total: scores.Total,
		recommendation: dto.Recommendation{
			TeacherID: teacher.ID,
			Eligible:  availability.Score > AvailabilityNone,
			Scores:    scores,
			Profile: dto.CandidateProfile{
				FullName:             teacher.FullName,
				Email:                teacher.Email,
				Subject:              teacher.Subject,
				Workload:             teacher.Workload,
				WeeklyCommitments:    weekly,
				AttendancePercentage: teacher.AttendancePercentage,
				SelfAvailable:        teacher.Available,
			},
			Reasons: reasons,
		},
	}, nil
}

func (r *SubstituteRecommender) subjectReason(teacherSubject, requiredSubject string, score float64) string {
	switch {
	case score >= SubjectExact:
		return "exact subject match"
	case score >= SubjectFamily:
		return fmt.Sprintf("related subject (%s for %s)", teacherSubject, requiredSubject)
	default:
		return fmt.Sprintf("different subject (%s)", teacherSubject)
	}
}

func (r *SubstituteRecommender) includeUnavailable(opts RecommendOptions) bool {
	if opts.IncludeUnavailable != nil {
		return *opts.IncludeUnavailable
	}
	return !r.options.ExcludeUnavailable
}

// InvalidateCache drops every cached shortlist; commitments changed for someone.
func (r *SubstituteRecommender) InvalidateCache(ctx context.Context) {
	if err := r.cache.Invalidate(ctx, recommendationCachePrefix+":*"); err != nil {
		r.logger.Warn("failed to invalidate recommendation cache", zap.Error(err))
	}
}

// weeklyCommitments counts regular periods (or the recorded workload when the
// timetable is sparser) plus outstanding and accepted substitutions.
func weeklyCommitments(teacher models.Teacher, periods []models.RegularPeriod, commitments []models.SlotCommitment) int {
	regular := len(periods)
	if teacher.Workload > regular {
		regular = teacher.Workload
	}
	return regular + len(commitments)
}

func recommendationCacheKey(vacancy models.Vacancy, opts RecommendOptions, includeUnavailable bool) string {
	return strings.Join([]string{
		recommendationCachePrefix,
		vacancy.LeaveID,
		vacancy.Date.Format(dateLayout),
		vacancy.DayOfWeek,
		fmt.Sprintf("%d", vacancy.PeriodNumber),
		strings.ToLower(strings.TrimSpace(vacancy.Subject)),
		vacancy.OriginalTeacherID,
		opts.ExcludeTeacherID,
		strings.ToLower(opts.CandidateSubject),
		fmt.Sprintf("%d", opts.MaxResults),
		fmt.Sprintf("%t", includeUnavailable),
	}, ":")
}

// vacancyFromRequest normalises the day and date. When both are given they must agree.
func vacancyFromRequest(req dto.VacancyRequest) (models.Vacancy, error) {
	date, err := time.Parse(dateLayout, strings.TrimSpace(req.Date))
	if err != nil {
		return models.Vacancy{}, appErrors.Clone(appErrors.ErrValidation, "date must use YYYY-MM-DD")
	}
	day, ok := models.NormalizeDay(req.DayOfWeek)
	if !ok {
		return models.Vacancy{}, appErrors.Clone(appErrors.ErrValidation, "day must be a weekday name")
	}
	if day != models.DayOf(date) {
		return models.Vacancy{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is a %s, not %s", req.Date, models.DayOf(date), day))
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return models.Vacancy{}, appErrors.Clone(appErrors.ErrValidation, "subject is required")
	}
	if req.PeriodNumber <= 0 {
		return models.Vacancy{}, appErrors.Clone(appErrors.ErrValidation, "period must be positive")
	}
	return models.Vacancy{
		LeaveID:           strings.TrimSpace(req.LeaveID),
		Subject:           subject,
		DayOfWeek:         day,
		PeriodNumber:      req.PeriodNumber,
		Date:              models.TruncateDate(date),
		OriginalTeacherID: strings.TrimSpace(req.OriginalTeacherID),
		ClassName:         strings.TrimSpace(req.ClassName),
	}, nil
}
