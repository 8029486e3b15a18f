package models

import "time"

// NotificationType enumerates push events emitted by the substitution workflow.
type NotificationType string

const (
	NotificationOfferCreated      NotificationType = "SUBSTITUTION_OFFER_CREATED"
	NotificationOfferAccepted     NotificationType = "SUBSTITUTION_OFFER_ACCEPTED"
	NotificationOfferRejected     NotificationType = "SUBSTITUTION_OFFER_REJECTED"
	NotificationOfferAutoRejected NotificationType = "SUBSTITUTION_OFFER_AUTO_REJECTED"
	NotificationOfferCancelled    NotificationType = "SUBSTITUTION_OFFER_CANCELLED"
	NotificationOfferCompleted    NotificationType = "SUBSTITUTION_OFFER_COMPLETED"
)

// Notification is the envelope published to a recipient's channel.
type Notification struct {
	RecipientID string           `json:"recipientId"`
	Type        NotificationType `json:"type"`
	Payload     map[string]any   `json:"payload,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
}
