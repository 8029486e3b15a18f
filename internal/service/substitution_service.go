package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitution-api/internal/dto"
	"github.com/noah-isme/sma-substitution-api/internal/models"
	"github.com/noah-isme/sma-substitution-api/internal/repository"
	appErrors "github.com/noah-isme/sma-substitution-api/pkg/errors"
)

const dateLayout = "2006-01-02"

// Transition outcomes recorded in metrics.
const (
	TransitionAccepted        = "accepted"
	TransitionRejected        = "rejected"
	TransitionConflictLost    = "conflict_lost"
	TransitionAlreadyResolved = "already_resolved"
	TransitionCancelled       = "cancelled"
	TransitionCompleted       = "completed"
)

// respondAttempts is the first try plus one retry after a persistence failure.
const respondAttempts = 2

// OfferStore persists substitution offers.
type OfferStore interface {
	CreateBatch(ctx context.Context, offers []*models.SubstitutionOffer) error
	GetByID(ctx context.Context, id string) (*models.SubstitutionOffer, error)
	List(ctx context.Context, filter models.OfferFilter) ([]models.SubstitutionOffer, int, error)
	HasAcceptedForVacancy(ctx context.Context, leaveID string, date time.Time, period int) (bool, error)
	ListActiveForVacancy(ctx context.Context, leaveID string, date time.Time, period int) ([]models.SubstitutionOffer, error)
	Accept(ctx context.Context, params repository.AcceptParams) (*repository.AcceptResult, error)
	Reject(ctx context.Context, offerID, teacherID string, reason *string, at time.Time) error
	Cancel(ctx context.Context, offerID string, at time.Time) (*repository.CancelResult, error)
	Complete(ctx context.Context, offerID string, at time.Time) error
}

// LeaveStore reads leave requests.
type LeaveStore interface {
	GetByID(ctx context.Context, id string) (*models.Leave, error)
}

type recommendationCache interface {
	InvalidateCache(ctx context.Context)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, string, models.NotificationType, map[string]any) {}

type noopRecommendationCache struct{}

func (noopRecommendationCache) InvalidateCache(context.Context) {}

// SubstitutionService is the offer state machine: it issues offers for a vacancy and
// resolves the first acceptance while retiring the siblings.
type SubstitutionService struct {
	offers    OfferStore
	leaves    LeaveStore
	teachers  TeacherDirectory
	schedules ScheduleReader
	notifier  NotificationSink
	cache     recommendationCache
	metrics   *MetricsService
	validate  *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewSubstitutionService constructs the service.
func NewSubstitutionService(
	offers OfferStore,
	leaves LeaveStore,
	teachers TeacherDirectory,
	schedules ScheduleReader,
	notifier NotificationSink,
	cache recommendationCache,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *SubstitutionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}
	if cache == nil {
		cache = noopRecommendationCache{}
	}
	return &SubstitutionService{
		offers:    offers,
		leaves:    leaves,
		teachers:  teachers,
		schedules: schedules,
		notifier:  notifier,
		cache:     cache,
		metrics:   metrics,
		validate:  validate,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateOffers issues one REQUESTED offer per new candidate for the vacancy.
// Candidates already holding an outstanding offer for it are skipped.
func (s *SubstitutionService) CreateOffers(ctx context.Context, req dto.CreateOffersRequest, adminID string) ([]models.SubstitutionOffer, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid offer payload")
	}
	vacancy, err := vacancyFromRequest(req.Vacancy)
	if err != nil {
		return nil, err
	}
	if vacancy.LeaveID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "leaveId is required")
	}

	leave, err := s.leaves.GetByID(ctx, vacancy.LeaveID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "leave not found")
		}
		return nil, persistenceError(err, "failed to load leave")
	}
	if leave.Status != models.LeaveStatusApproved {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "leave must be approved before offering substitutions")
	}
	if !leave.Covers(vacancy.Date) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "vacancy date is outside the leave period")
	}
	if vacancy.OriginalTeacherID == "" {
		vacancy.OriginalTeacherID = leave.TeacherID
	}
	if vacancy.OriginalTeacherID != leave.TeacherID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "original teacher does not own the leave")
	}
	if err := s.resolveSlot(ctx, &vacancy); err != nil {
		return nil, err
	}

	filled, err := s.offers.HasAcceptedForVacancy(ctx, vacancy.LeaveID, vacancy.Date, vacancy.PeriodNumber)
	if err != nil {
		return nil, persistenceError(err, "failed to check vacancy")
	}
	if filled {
		return nil, appErrors.ErrVacancyFilled
	}

	candidateIDs, err := s.resolveCandidates(ctx, req.CandidateTeacherIDs, vacancy)
	if err != nil {
		return nil, err
	}

	existing, err := s.offers.ListActiveForVacancy(ctx, vacancy.LeaveID, vacancy.Date, vacancy.PeriodNumber)
	if err != nil {
		return nil, persistenceError(err, "failed to load existing offers")
	}
	pending := make(map[string]struct{}, len(existing))
	for _, offer := range existing {
		if offer.Status == models.OfferStatusRequested {
			pending[offer.TeacherID] = struct{}{}
		}
	}

	var notes *string
	if trimmed := strings.TrimSpace(req.Notes); trimmed != "" {
		notes = &trimmed
	}
	now := s.now().UTC()
	batch := make([]*models.SubstitutionOffer, 0, len(candidateIDs))
	for _, teacherID := range candidateIDs {
		if _, skip := pending[teacherID]; skip {
			continue
		}
		batch = append(batch, &models.SubstitutionOffer{
			LeaveID:           vacancy.LeaveID,
			Subject:           vacancy.Subject,
			DayOfWeek:         vacancy.DayOfWeek,
			PeriodNumber:      vacancy.PeriodNumber,
			VacancyDate:       vacancy.Date,
			ClassName:         vacancy.ClassName,
			OriginalTeacherID: vacancy.OriginalTeacherID,
			TeacherID:         teacherID,
			Status:            models.OfferStatusRequested,
			RecordStatus:      models.RecordStatusActive,
			AssignedBy:        adminID,
			Notes:             notes,
			RequestedAt:       now,
		})
	}
	if len(batch) == 0 {
		return []models.SubstitutionOffer{}, nil
	}

	if err := s.offers.CreateBatch(ctx, batch); err != nil {
		if errors.Is(err, repository.ErrVacancyTaken) {
			return nil, appErrors.ErrVacancyFilled
		}
		return nil, persistenceError(err, "failed to create offers")
	}

	s.metrics.RecordOffersCreated(len(batch))
	s.cache.InvalidateCache(ctx)
	created := make([]models.SubstitutionOffer, len(batch))
	for i, offer := range batch {
		created[i] = *offer
		s.notifier.Notify(ctx, offer.TeacherID, models.NotificationOfferCreated, offerPayload(*offer))
	}
	s.logger.Info("substitution offers created",
		zap.String("leave_id", vacancy.LeaveID),
		zap.String("date", vacancy.Date.Format(dateLayout)),
		zap.Int("period", vacancy.PeriodNumber),
		zap.Int("offers", len(created)),
		zap.String("assigned_by", adminID),
	)
	return created, nil
}

// resolveSlot checks the original teacher really teaches at the vacated slot and
// fills the class name from the timetable when absent.
func (s *SubstitutionService) resolveSlot(ctx context.Context, vacancy *models.Vacancy) error {
	periods, err := s.schedules.ListRegularPeriods(ctx, vacancy.OriginalTeacherID)
	if err != nil {
		return persistenceError(err, "failed to load timetable")
	}
	for _, p := range periods {
		day, _ := models.NormalizeDay(p.DayOfWeek)
		if day == vacancy.DayOfWeek && p.PeriodNumber == vacancy.PeriodNumber {
			if vacancy.ClassName == "" {
				vacancy.ClassName = p.ClassName
			}
			return nil
		}
	}
	return appErrors.Clone(appErrors.ErrValidation,
		fmt.Sprintf("original teacher has no class on %s period %d", vacancy.DayOfWeek, vacancy.PeriodNumber))
}

func (s *SubstitutionService) resolveCandidates(ctx context.Context, ids []string, vacancy models.Vacancy) ([]string, error) {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if id == vacancy.OriginalTeacherID {
			return nil, appErrors.Clone(appErrors.ErrValidation, "the absent teacher cannot substitute their own class")
		}
		result = append(result, id)
	}
	if len(result) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one candidate teacher is required")
	}

	found, err := s.teachers.FindByIDs(ctx, result)
	if err != nil {
		return nil, persistenceError(err, "failed to load teachers")
	}
	for _, id := range result {
		teacher, ok := found[id]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("teacher %s not found", id))
		}
		if !teacher.IsActive() || teacher.Role != models.RoleTeacher {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("teacher %s cannot receive substitution offers", id))
		}
	}
	return result, nil
}

// RespondToOffer applies a teacher's accept or reject decision. Guard failures are
// returned as typed errors; persistence failures are retried once with the guards
// re-checked against fresh state.
func (s *SubstitutionService) RespondToOffer(ctx context.Context, offerID, teacherID string, req dto.RespondOfferRequest) (*models.SubstitutionOffer, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid response payload")
	}
	reason := strings.TrimSpace(req.RejectionReason)
	if req.Decision == models.DecisionReject && reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}

	var (
		offer *models.SubstitutionOffer
		err   error
	)
	for attempt := 1; attempt <= respondAttempts; attempt++ {
		offer, err = s.respondOnce(ctx, offerID, teacherID, req.Decision, reason)
		if err == nil || !appErrors.Retryable(err) {
			break
		}
		s.logger.Warn("offer response failed",
			zap.String("offer_id", offerID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	if err != nil {
		switch {
		case appErrors.Is(err, appErrors.ErrConflictLost):
			s.metrics.RecordTransition(TransitionConflictLost)
		case appErrors.Is(err, appErrors.ErrAlreadyResolved):
			s.metrics.RecordTransition(TransitionAlreadyResolved)
		}
		return nil, err
	}
	return offer, nil
}

func (s *SubstitutionService) respondOnce(ctx context.Context, offerID, teacherID string, decision models.OfferDecision, reason string) (*models.SubstitutionOffer, error) {
	offer, err := s.loadOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if err := checkRespondable(offer, teacherID, decision); err != nil {
		return nil, err
	}
	now := s.now().UTC()

	if decision == models.DecisionReject {
		if err := s.offers.Reject(ctx, offer.ID, teacherID, &reason, now); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, s.classifyGuardMiss(ctx, offerID, teacherID, decision)
			}
			return nil, persistenceError(err, "failed to reject offer")
		}
		offer.Status = models.OfferStatusRejected
		offer.RejectionReason = &reason
		offer.RejectedAt = &now
		offer.RespondedAt = &now
		s.afterReject(ctx, offer)
		return offer, nil
	}

	result, err := s.offers.Accept(ctx, repository.AcceptParams{OfferID: offer.ID, TeacherID: teacherID, At: now})
	if err != nil {
		if errors.Is(err, repository.ErrVacancyTaken) {
			return nil, appErrors.ErrConflictLost
		}
		return nil, persistenceError(err, "failed to accept offer")
	}
	if !result.Accepted {
		return nil, s.classifyGuardMiss(ctx, offerID, teacherID, decision)
	}
	offer.Status = models.OfferStatusAccepted
	offer.AcceptedAt = &now
	offer.RespondedAt = &now
	s.afterAccept(ctx, offer, result.AutoRejected)
	return offer, nil
}

func (s *SubstitutionService) loadOffer(ctx context.Context, offerID string) (*models.SubstitutionOffer, error) {
	offer, err := s.offers.GetByID(ctx, offerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "offer not found")
		}
		return nil, persistenceError(err, "failed to load offer")
	}
	return offer, nil
}

// checkRespondable enforces ownership and the REQUESTED guard. An offer declined
// by the system because a sibling won reports ConflictLost to a late accept.
func checkRespondable(offer *models.SubstitutionOffer, teacherID string, decision models.OfferDecision) error {
	if offer.TeacherID != teacherID {
		return appErrors.Clone(appErrors.ErrForbidden, "offer belongs to another teacher")
	}
	if offer.RecordStatus == models.RecordStatusDeleted {
		return appErrors.Clone(appErrors.ErrAlreadyResolved, "offer has been withdrawn")
	}
	if offer.Status == models.OfferStatusRequested {
		return nil
	}
	if offer.SystemRejected && decision == models.DecisionAccept {
		return appErrors.ErrConflictLost
	}
	return appErrors.Clone(appErrors.ErrAlreadyResolved, fmt.Sprintf("offer is already %s", strings.ToLower(string(offer.Status))))
}

// classifyGuardMiss explains why a guarded update matched no row.
func (s *SubstitutionService) classifyGuardMiss(ctx context.Context, offerID, teacherID string, decision models.OfferDecision) error {
	offer, err := s.loadOffer(ctx, offerID)
	if err != nil {
		return err
	}
	if err := checkRespondable(offer, teacherID, decision); err != nil {
		return err
	}
	// still REQUESTED: the accept guard saw another winner for the vacancy
	return appErrors.ErrConflictLost
}

func (s *SubstitutionService) afterAccept(ctx context.Context, offer *models.SubstitutionOffer, autoRejected []repository.OfferRef) {
	s.metrics.RecordTransition(TransitionAccepted)
	s.cache.InvalidateCache(ctx)
	payload := offerPayload(*offer)
	s.notifier.Notify(ctx, offer.TeacherID, models.NotificationOfferAccepted, payload)
	s.notifier.Notify(ctx, offer.AssignedBy, models.NotificationOfferAccepted, payload)
	for _, sibling := range autoRejected {
		siblingPayload := offerPayload(*offer)
		siblingPayload["offerId"] = sibling.ID
		siblingPayload["reason"] = models.SystemRejectionReason
		s.notifier.Notify(ctx, sibling.TeacherID, models.NotificationOfferAutoRejected, siblingPayload)
	}
	s.logger.Info("substitution offer accepted",
		zap.String("offer_id", offer.ID),
		zap.String("leave_id", offer.LeaveID),
		zap.String("teacher_id", offer.TeacherID),
		zap.Int("auto_rejected", len(autoRejected)),
	)
}

func (s *SubstitutionService) afterReject(ctx context.Context, offer *models.SubstitutionOffer) {
	s.metrics.RecordTransition(TransitionRejected)
	s.cache.InvalidateCache(ctx)
	payload := offerPayload(*offer)
	if offer.RejectionReason != nil {
		payload["reason"] = *offer.RejectionReason
	}
	s.notifier.Notify(ctx, offer.AssignedBy, models.NotificationOfferRejected, payload)
	s.logger.Info("substitution offer rejected",
		zap.String("offer_id", offer.ID),
		zap.String("teacher_id", offer.TeacherID),
	)
}

// CancelOffer soft-deletes an offer. Cancelling an already withdrawn offer is a no-op.
// Sibling offers are left untouched.
func (s *SubstitutionService) CancelOffer(ctx context.Context, offerID, adminID string) error {
	offer, err := s.loadOffer(ctx, offerID)
	if err != nil {
		return err
	}
	if offer.RecordStatus == models.RecordStatusDeleted {
		return nil
	}
	result, err := s.offers.Cancel(ctx, offerID, s.now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return persistenceError(err, "failed to cancel offer")
	}

	s.metrics.RecordTransition(TransitionCancelled)
	s.cache.InvalidateCache(ctx)
	if result.PreviousStatus == models.OfferStatusRequested || result.PreviousStatus == models.OfferStatusAccepted {
		payload := offerPayload(*offer)
		payload["cancelledBy"] = adminID
		s.notifier.Notify(ctx, result.TeacherID, models.NotificationOfferCancelled, payload)
	}
	s.logger.Info("substitution offer cancelled",
		zap.String("offer_id", offerID),
		zap.String("previous_status", string(result.PreviousStatus)),
		zap.String("cancelled_by", adminID),
	)
	return nil
}

// CompleteOffer marks an accepted substitution as delivered once its date has arrived.
func (s *SubstitutionService) CompleteOffer(ctx context.Context, offerID, adminID string) (*models.SubstitutionOffer, error) {
	offer, err := s.loadOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if offer.RecordStatus == models.RecordStatusDeleted {
		return nil, appErrors.Clone(appErrors.ErrAlreadyResolved, "offer has been withdrawn")
	}
	switch offer.Status {
	case models.OfferStatusAccepted:
	case models.OfferStatusCompleted:
		return nil, appErrors.Clone(appErrors.ErrAlreadyResolved, "offer is already completed")
	default:
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "only accepted offers can be completed")
	}
	now := s.now().UTC()
	if models.TruncateDate(now).Before(models.TruncateDate(offer.VacancyDate)) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "substitution date has not arrived yet")
	}
	if err := s.offers.Complete(ctx, offerID, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrAlreadyResolved, "offer is no longer accepted")
		}
		return nil, persistenceError(err, "failed to complete offer")
	}
	offer.Status = models.OfferStatusCompleted
	offer.CompletedAt = &now

	s.metrics.RecordTransition(TransitionCompleted)
	s.notifier.Notify(ctx, offer.TeacherID, models.NotificationOfferCompleted, offerPayload(*offer))
	s.logger.Info("substitution offer completed", zap.String("offer_id", offerID), zap.String("completed_by", adminID))
	return offer, nil
}

// GetOffer returns an offer to an admin or to the teacher it was sent to.
func (s *SubstitutionService) GetOffer(ctx context.Context, offerID string, viewer *models.JWTClaims) (*models.SubstitutionOffer, error) {
	if viewer == nil {
		return nil, appErrors.ErrUnauthorized
	}
	offer, err := s.loadOffer(ctx, offerID)
	if err != nil {
		return nil, err
	}
	if !viewer.Role.IsAdmin() && offer.TeacherID != viewer.ActorTeacherID() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "offer belongs to another teacher")
	}
	return offer, nil
}

// ListOffers returns a page of offers.
func (s *SubstitutionService) ListOffers(ctx context.Context, query dto.OfferQuery) ([]models.SubstitutionOffer, *models.Pagination, error) {
	page := query.Page
	if page <= 0 {
		page = 1
	}
	size := query.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	filter := models.OfferFilter{
		LeaveID:   strings.TrimSpace(query.LeaveID),
		TeacherID: strings.TrimSpace(query.TeacherID),
		Limit:     size,
		Offset:    (page - 1) * size,
	}
	for _, status := range query.Status {
		normalized := models.OfferStatus(strings.ToUpper(strings.TrimSpace(string(status))))
		switch normalized {
		case models.OfferStatusRequested, models.OfferStatusAccepted, models.OfferStatusRejected,
			models.OfferStatusCompleted, models.OfferStatusCancelled:
			filter.Status = append(filter.Status, normalized)
		case "":
		default:
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown offer status %q", status))
		}
	}
	if query.Date != "" {
		date, err := time.Parse(dateLayout, query.Date)
		if err != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "date must use YYYY-MM-DD")
		}
		filter.VacancyDate = &date
	}

	offers, total, err := s.offers.List(ctx, filter)
	if err != nil {
		return nil, nil, persistenceError(err, "failed to list offers")
	}
	if offers == nil {
		offers = []models.SubstitutionOffer{}
	}
	return offers, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ListLeaveOffers returns every offer, including withdrawn ones, issued for a leave.
func (s *SubstitutionService) ListLeaveOffers(ctx context.Context, leaveID string) (*models.Leave, []models.SubstitutionOffer, error) {
	leave, err := s.leaves.GetByID(ctx, leaveID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "leave not found")
		}
		return nil, nil, persistenceError(err, "failed to load leave")
	}
	offers, _, err := s.offers.List(ctx, models.OfferFilter{LeaveID: leaveID, IncludeDeleted: true, Limit: 200})
	if err != nil {
		return nil, nil, persistenceError(err, "failed to list offers")
	}
	if offers == nil {
		offers = []models.SubstitutionOffer{}
	}
	return leave, offers, nil
}

func offerPayload(offer models.SubstitutionOffer) map[string]any {
	return map[string]any{
		"offerId":      offer.ID,
		"leaveId":      offer.LeaveID,
		"subject":      offer.Subject,
		"className":    offer.ClassName,
		"dayOfWeek":    offer.DayOfWeek,
		"periodNumber": offer.PeriodNumber,
		"date":         offer.VacancyDate.Format(dateLayout),
		"status":       string(offer.Status),
	}
}
