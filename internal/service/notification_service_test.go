package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitution-api/internal/models"
)

type stubPublisher struct {
	mu        sync.Mutex
	failFirst int
	published []models.Notification
}

func (p *stubPublisher) Publish(_ context.Context, n models.Notification) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFirst > 0 {
		p.failFirst--
		return 0, errors.New("redis: connection reset")
	}
	p.published = append(p.published, n)
	return 1, nil
}

func (p *stubPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func TestNotificationServiceDeliversWithRetry(t *testing.T) {
	publisher := &stubPublisher{failFirst: 1}
	svc := NewNotificationService(publisher, NewMetricsService(), nil, NotificationConfig{
		Enabled:    true,
		Workers:    1,
		Retries:    2,
		RetryDelay: 10 * time.Millisecond,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)
	defer svc.Stop()

	svc.Notify(ctx, "t1", models.NotificationOfferCreated, map[string]any{"offerId": "o1"})

	require.Eventually(t, func() bool { return publisher.count() == 1 }, time.Second, 5*time.Millisecond)
	publisher.mu.Lock()
	delivered := publisher.published[0]
	publisher.mu.Unlock()
	assert.Equal(t, "t1", delivered.RecipientID)
	assert.Equal(t, models.NotificationOfferCreated, delivered.Type)
	assert.Equal(t, "o1", delivered.Payload["offerId"])
	assert.False(t, delivered.CreatedAt.IsZero())
}

func TestNotificationServiceDisabledDropsSilently(t *testing.T) {
	publisher := &stubPublisher{}
	svc := NewNotificationService(publisher, nil, nil, NotificationConfig{Enabled: false})
	svc.Start(context.Background())
	defer svc.Stop()

	svc.Notify(context.Background(), "t1", models.NotificationOfferAccepted, nil)
	svc.Notify(context.Background(), "", models.NotificationOfferAccepted, nil)

	assert.Equal(t, 0, publisher.count())
}

func TestNotificationServiceNotStartedDoesNotPanic(t *testing.T) {
	svc := NewNotificationService(&stubPublisher{}, NewMetricsService(), nil, NotificationConfig{Enabled: true})

	assert.NotPanics(t, func() {
		svc.Notify(context.Background(), "t1", models.NotificationOfferCancelled, nil)
	})
}
