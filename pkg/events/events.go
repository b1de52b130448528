package events

import (
	"context"
	"time"
)

// Topics published by the rider service
const (
	TopicDocumentUploaded = "rider.document.uploaded"
	TopicDocumentVerified = "rider.document.verified"
	TopicDocumentRejected = "rider.document.rejected"
	TopicRiderSuspended   = "rider.suspended"
	TopicRiderApproved    = "rider.approved"
	TopicStatsUpdated     = "rider.stats.updated"
)

// TopicDeliveryCompleted carries delivery outcomes from the order system
const TopicDeliveryCompleted = "delivery.completed"

// Event is the envelope written to every topic
type Event struct {
	Type       string      `json:"type"`
	UserID     string      `json:"userId"`
	OccurredAt time.Time   `json:"occurredAt"`
	Data       interface{} `json:"data,omitempty"`
}

// Publisher sends events keyed by rider user id
type Publisher interface {
	Publish(ctx context.Context, topic string, event Event) error
	Close() error
}

// Noop discards every event
type Noop struct{}

// Publish does nothing
func (Noop) Publish(ctx context.Context, topic string, event Event) error { return nil }

// Close does nothing
func (Noop) Close() error { return nil }
