package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitution-api/internal/models"
	"github.com/noah-isme/sma-substitution-api/pkg/jobs"
)

// NotificationSink receives workflow events. Implementations must not block the caller
// on delivery and never report failures back.
type NotificationSink interface {
	Notify(ctx context.Context, recipientID string, eventType models.NotificationType, payload map[string]any)
}

type notificationPublisher interface {
	Publish(ctx context.Context, notification models.Notification) (int64, error)
}

// NotificationConfig tunes the dispatcher worker pool.
type NotificationConfig struct {
	Enabled    bool
	Workers    int
	Retries    int
	RetryDelay time.Duration
}

// NotificationService dispatches notifications through a background queue.
type NotificationService struct {
	publisher notificationPublisher
	queue     *jobs.Queue[models.Notification]
	metrics   *MetricsService
	logger    *zap.Logger
	enabled   bool
	now       func() time.Time
}

// NewNotificationService builds the dispatcher. Call Start before the first Notify.
func NewNotificationService(publisher notificationPublisher, metrics *MetricsService, logger *zap.Logger, cfg NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &NotificationService{
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		enabled:   cfg.Enabled && publisher != nil,
		now:       time.Now,
	}
	svc.queue = jobs.New[models.Notification]("notifications", svc.deliver, jobs.Config{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return svc
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	if !s.enabled {
		return
	}
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify enqueues a notification. Failures are logged and swallowed.
func (s *NotificationService) Notify(ctx context.Context, recipientID string, eventType models.NotificationType, payload map[string]any) {
	if recipientID == "" {
		return
	}
	if !s.enabled {
		s.logger.Debug("notification dropped, dispatcher disabled",
			zap.String("recipient_id", recipientID),
			zap.String("type", string(eventType)),
		)
		return
	}
	notification := models.Notification{
		RecipientID: recipientID,
		Type:        eventType,
		Payload:     payload,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.queue.Enqueue(jobs.Job[models.Notification]{ID: uuid.NewString(), Payload: notification}); err != nil {
		s.metrics.RecordNotification(false)
		s.logger.Warn("failed to enqueue notification",
			zap.String("recipient_id", recipientID),
			zap.String("type", string(eventType)),
			zap.Error(err),
		)
	}
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job[models.Notification]) error {
	notification := job.Payload
	receivers, err := s.publisher.Publish(ctx, notification)
	if err != nil {
		s.metrics.RecordNotification(false)
		return fmt.Errorf("publish %s to %s: %w", notification.Type, notification.RecipientID, err)
	}
	s.metrics.RecordNotification(true)
	s.logger.Debug("notification published",
		zap.String("recipient_id", notification.RecipientID),
		zap.String("type", string(notification.Type)),
		zap.Int64("receivers", receivers),
	)
	return nil
}
