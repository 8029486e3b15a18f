package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/noah-isme/sma-substitution-api/internal/models"
	"github.com/noah-isme/sma-substitution-api/internal/repository"
)

func floatPtr(v float64) *float64 { return &v }

func testTeacher(id, subject string, workload int, attendance *float64) models.Teacher {
	return models.Teacher{
		ID:                   id,
		Email:                id + "@school.test",
		FullName:             "Teacher " + id,
		Subject:              subject,
		Role:                 models.RoleTeacher,
		Workload:             workload,
		Available:            true,
		Status:               models.TeacherStatusActive,
		AttendancePercentage: attendance,
	}
}

type stubTeacherDirectory struct {
	teachers []models.Teacher
	err      error
}

func (s *stubTeacherDirectory) ListActive(_ context.Context, filter models.TeacherFilter) ([]models.Teacher, error) {
	if s.err != nil {
		return nil, s.err
	}
	result := make([]models.Teacher, 0, len(s.teachers))
	for _, t := range s.teachers {
		if !t.IsActive() {
			continue
		}
		if filter.Subject != "" && !sameSubject(filter.Subject, t.Subject) {
			continue
		}
		result = append(result, t)
	}
	return result, nil
}

func (s *stubTeacherDirectory) FindByID(_ context.Context, id string) (*models.Teacher, error) {
	if s.err != nil {
		return nil, s.err
	}
	for i := range s.teachers {
		if s.teachers[i].ID == id {
			t := s.teachers[i]
			return &t, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubTeacherDirectory) FindByIDs(_ context.Context, ids []string) (map[string]models.Teacher, error) {
	if s.err != nil {
		return nil, s.err
	}
	found := make(map[string]models.Teacher, len(ids))
	for _, id := range ids {
		for _, t := range s.teachers {
			if t.ID == id {
				found[id] = t
			}
		}
	}
	return found, nil
}

type stubScheduleReader struct {
	periods     map[string][]models.RegularPeriod
	commitments map[string][]models.SlotCommitment
	covering    map[string]bool
	err         error
}

func (s *stubScheduleReader) ListRegularPeriods(_ context.Context, teacherID string) ([]models.RegularPeriod, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.periods[teacherID], nil
}

func (s *stubScheduleReader) ListActiveCommitments(_ context.Context, teacherID string) ([]models.SlotCommitment, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.commitments[teacherID], nil
}

func (s *stubScheduleReader) HasAcceptedSubstitution(_ context.Context, teacherID, _ string, _ int, _ time.Time) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.covering[teacherID], nil
}

type stubAttendance struct {
	absent map[string]bool
	err    error
}

func (s *stubAttendance) HasAbsenceOn(_ context.Context, teacherID string, _ time.Time) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.absent[teacherID], nil
}

type stubLeaveStore struct {
	leaves map[string]*models.Leave
}

func (s *stubLeaveStore) GetByID(_ context.Context, id string) (*models.Leave, error) {
	leave, ok := s.leaves[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *leave
	return &copied, nil
}

type notifyEvent struct {
	recipient string
	kind      models.NotificationType
	payload   map[string]any
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifyEvent
}

func (n *recordingNotifier) Notify(_ context.Context, recipientID string, kind models.NotificationType, payload map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notifyEvent{recipient: recipientID, kind: kind, payload: payload})
}

func (n *recordingNotifier) recipients(kind models.NotificationType) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, e := range n.events {
		if e.kind == kind {
			out = append(out, e.recipient)
		}
	}
	return out
}

type countingCache struct {
	mu    sync.Mutex
	calls int
}

func (c *countingCache) InvalidateCache(context.Context) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
}

// memoryOfferStore mirrors the guarded SQL statements of the postgres store.
type memoryOfferStore struct {
	mu     sync.Mutex
	offers map[string]*models.SubstitutionOffer
	order  []string
	leaves *stubLeaveStore
	seq    int

	acceptFailures int
	acceptCalls    int
	barrier        chan struct{}
}

func newMemoryOfferStore(leaves *stubLeaveStore) *memoryOfferStore {
	return &memoryOfferStore{offers: make(map[string]*models.SubstitutionOffer), leaves: leaves}
}

func (m *memoryOfferStore) put(offer models.SubstitutionOffer) *models.SubstitutionOffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if offer.ID == "" {
		m.seq++
		offer.ID = fmt.Sprintf("offer-%d", m.seq)
	}
	stored := offer
	m.offers[offer.ID] = &stored
	m.order = append(m.order, offer.ID)
	return &stored
}

func (m *memoryOfferStore) get(id string) models.SubstitutionOffer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.offers[id]
}

func (m *memoryOfferStore) acceptedLocked(leaveID string, date time.Time, period int) bool {
	for _, o := range m.offers {
		if o.LeaveID == leaveID && o.PeriodNumber == period && o.RecordStatus == models.RecordStatusActive &&
			models.TruncateDate(o.VacancyDate).Equal(models.TruncateDate(date)) &&
			(o.Status == models.OfferStatusAccepted || o.Status == models.OfferStatusCompleted) {
			return true
		}
	}
	return false
}

func (m *memoryOfferStore) CreateBatch(_ context.Context, offers []*models.SubstitutionOffer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range offers {
		if m.acceptedLocked(o.LeaveID, o.VacancyDate, o.PeriodNumber) {
			return repository.ErrVacancyTaken
		}
	}
	for _, o := range offers {
		m.seq++
		o.ID = fmt.Sprintf("offer-%d", m.seq)
		stored := *o
		m.offers[o.ID] = &stored
		m.order = append(m.order, o.ID)
	}
	return nil
}

func (m *memoryOfferStore) GetByID(_ context.Context, id string) (*models.SubstitutionOffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *o
	return &copied, nil
}

func (m *memoryOfferStore) List(_ context.Context, filter models.OfferFilter) ([]models.SubstitutionOffer, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.SubstitutionOffer
	for _, id := range m.order {
		o := m.offers[id]
		if !filter.IncludeDeleted && o.RecordStatus != models.RecordStatusActive {
			continue
		}
		if filter.LeaveID != "" && o.LeaveID != filter.LeaveID {
			continue
		}
		if filter.TeacherID != "" && o.TeacherID != filter.TeacherID {
			continue
		}
		result = append(result, *o)
	}
	return result, len(result), nil
}

func (m *memoryOfferStore) HasAcceptedForVacancy(_ context.Context, leaveID string, date time.Time, period int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acceptedLocked(leaveID, date, period), nil
}

func (m *memoryOfferStore) ListActiveForVacancy(_ context.Context, leaveID string, date time.Time, period int) ([]models.SubstitutionOffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []models.SubstitutionOffer
	for _, id := range m.order {
		o := m.offers[id]
		if o.LeaveID == leaveID && o.PeriodNumber == period && o.RecordStatus == models.RecordStatusActive &&
			models.TruncateDate(o.VacancyDate).Equal(models.TruncateDate(date)) {
			result = append(result, *o)
		}
	}
	return result, nil
}

func (m *memoryOfferStore) Accept(_ context.Context, params repository.AcceptParams) (*repository.AcceptResult, error) {
	if m.barrier != nil {
		<-m.barrier
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acceptCalls++
	if m.acceptFailures > 0 {
		m.acceptFailures--
		return nil, repository.ErrWriteConflict
	}
	target, ok := m.offers[params.OfferID]
	if !ok || target.TeacherID != params.TeacherID || target.Status != models.OfferStatusRequested ||
		target.RecordStatus != models.RecordStatusActive || m.acceptedLocked(target.LeaveID, target.VacancyDate, target.PeriodNumber) {
		return &repository.AcceptResult{}, nil
	}
	at := params.At
	target.Status = models.OfferStatusAccepted
	target.AcceptedAt = &at
	target.RespondedAt = &at

	result := &repository.AcceptResult{Accepted: true}
	reason := models.SystemRejectionReason
	for _, id := range m.order {
		o := m.offers[id]
		if o.ID == target.ID || !o.SameVacancy(*target) || o.Status != models.OfferStatusRequested || o.RecordStatus != models.RecordStatusActive {
			continue
		}
		o.Status = models.OfferStatusRejected
		o.SystemRejected = true
		o.RejectionReason = &reason
		o.RejectedAt = &at
		o.RespondedAt = &at
		result.AutoRejected = append(result.AutoRejected, repository.OfferRef{ID: o.ID, TeacherID: o.TeacherID})
	}
	if m.leaves != nil {
		if leave, ok := m.leaves.leaves[target.LeaveID]; ok {
			winner := target.TeacherID
			leave.FinalSubstituteID = &winner
		}
	}
	return result, nil
}

func (m *memoryOfferStore) Reject(_ context.Context, offerID, teacherID string, reason *string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[offerID]
	if !ok || o.TeacherID != teacherID || o.Status != models.OfferStatusRequested || o.RecordStatus != models.RecordStatusActive {
		return sql.ErrNoRows
	}
	o.Status = models.OfferStatusRejected
	o.RejectionReason = reason
	o.RejectedAt = &at
	o.RespondedAt = &at
	return nil
}

func (m *memoryOfferStore) Cancel(_ context.Context, offerID string, at time.Time) (*repository.CancelResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[offerID]
	if !ok || o.RecordStatus != models.RecordStatusActive {
		return nil, sql.ErrNoRows
	}
	result := &repository.CancelResult{LeaveID: o.LeaveID, TeacherID: o.TeacherID, PreviousStatus: o.Status}
	if o.Status == models.OfferStatusRequested || o.Status == models.OfferStatusAccepted {
		o.Status = models.OfferStatusCancelled
	}
	o.RecordStatus = models.RecordStatusDeleted
	o.CancelledAt = &at
	wasWinner := result.PreviousStatus == models.OfferStatusAccepted || result.PreviousStatus == models.OfferStatusCompleted
	if wasWinner && m.leaves != nil {
		if leave, ok := m.leaves.leaves[o.LeaveID]; ok {
			leave.FinalSubstituteID = m.latestWinnerLocked(o.LeaveID)
		}
	}
	return result, nil
}

func (m *memoryOfferStore) latestWinnerLocked(leaveID string) *string {
	var latest *models.SubstitutionOffer
	for _, id := range m.order {
		o := m.offers[id]
		if o.LeaveID != leaveID || o.RecordStatus != models.RecordStatusActive ||
			(o.Status != models.OfferStatusAccepted && o.Status != models.OfferStatusCompleted) {
			continue
		}
		if latest == nil || acceptedAfter(o, latest) {
			latest = o
		}
	}
	if latest == nil {
		return nil
	}
	winner := latest.TeacherID
	return &winner
}

func acceptedAfter(a, b *models.SubstitutionOffer) bool {
	switch {
	case a.AcceptedAt == nil:
		return b.AcceptedAt == nil && a.ID > b.ID
	case b.AcceptedAt == nil:
		return true
	case !a.AcceptedAt.Equal(*b.AcceptedAt):
		return a.AcceptedAt.After(*b.AcceptedAt)
	default:
		return a.ID > b.ID
	}
}

func (m *memoryOfferStore) Complete(_ context.Context, offerID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.offers[offerID]
	if !ok || o.Status != models.OfferStatusAccepted || o.RecordStatus != models.RecordStatusActive {
		return sql.ErrNoRows
	}
	o.Status = models.OfferStatusCompleted
	o.CompletedAt = &at
	return nil
}

var errStoreDown = errors.New("connection refused")
