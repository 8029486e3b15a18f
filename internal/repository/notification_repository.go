package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/sma-substitution-api/internal/models"
)

// NotificationRepository publishes notifications on per-recipient Redis channels.
type NotificationRepository struct {
	client *redis.Client
	prefix string
}

// NewNotificationRepository constructs the publisher. A nil client turns Publish into a no-op.
func NewNotificationRepository(client *redis.Client, prefix string) *NotificationRepository {
	if prefix == "" {
		prefix = "notifications"
	}
	return &NotificationRepository{client: client, prefix: prefix}
}

// Channel returns the channel a recipient subscribes to.
func (r *NotificationRepository) Channel(recipientID string) string {
	return fmt.Sprintf("%s:%s", r.prefix, recipientID)
}

// Publish sends the notification and reports how many subscribers received it.
func (r *NotificationRepository) Publish(ctx context.Context, notification models.Notification) (int64, error) {
	if r.client == nil {
		return 0, nil
	}
	payload, err := json.Marshal(notification)
	if err != nil {
		return 0, fmt.Errorf("marshal notification: %w", err)
	}
	receivers, err := r.client.Publish(ctx, r.Channel(notification.RecipientID), payload).Result()
	if err != nil {
		return 0, fmt.Errorf("redis publish %s: %w", r.Channel(notification.RecipientID), err)
	}
	return receivers, nil
}
