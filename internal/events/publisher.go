// Package events publishes subscription lifecycle CloudEvents to Kafka.
// Publishing is best-effort: the transaction log row is the durable audit,
// the event stream is a notification channel for downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	subDomain "github.com/widgetworks/service-subscription/internal/domain/subscription"
	"github.com/widgetworks/service-subscription/pkg/kafka"
)

// Source identifies this service in published CloudEvents.
const Source = "service-subscription"

// Lifecycle event types.
const (
	SubscriptionCreated  = "subscription.created"
	SubscriptionRenewed  = "subscription.renewed"
	SubscriptionCanceled = "subscription.canceled"
	SubscriptionExpired  = "subscription.expired"
)

// SubscriptionEvent is the payload for every lifecycle event type.
type SubscriptionEvent struct {
	SubscriptionID uuid.UUID `json:"subscription_id"`
	UserID         uuid.UUID `json:"user_id"`
	ProductID      uuid.UUID `json:"product_id"`
	State          string    `json:"state"`
	Terms          string    `json:"terms"`
	ExpiresAt      time.Time `json:"expires_at"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Publisher emits lifecycle events.
type Publisher interface {
	PublishLifecycle(ctx context.Context, eventType string, sub *subDomain.Subscription)
}

// KafkaPublisher publishes lifecycle events to a Kafka topic.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
	logger   *zap.Logger
}

// NewKafkaPublisher creates a publisher for the given topic.
func NewKafkaPublisher(producer *kafka.Producer, topic string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, logger: logger}
}

// PublishLifecycle emits one event for a committed lifecycle transition.
// Failures are logged and never surfaced to the caller.
func (p *KafkaPublisher) PublishLifecycle(ctx context.Context, eventType string, sub *subDomain.Subscription) {
	event := SubscriptionEvent{
		SubscriptionID: sub.ID(),
		UserID:         sub.UserID(),
		ProductID:      sub.ProductID(),
		State:          string(sub.State()),
		Terms:          string(sub.Terms()),
		ExpiresAt:      sub.ExpiresAt(),
		OccurredAt:     time.Now().UTC(),
	}

	ce, err := kafka.NewCloudEvent(Source, eventType, event)
	if err != nil {
		p.logger.Error("failed to create lifecycle cloud event", zap.Error(err))
		return
	}

	if err := p.producer.PublishEvent(ctx, p.topic, ce); err != nil {
		p.logger.Error("failed to publish lifecycle event",
			zap.Error(err),
			zap.String("type", eventType),
			zap.String("subscription_id", sub.ID().String()),
		)
	}
}

// NoopPublisher drops all events. Used when no brokers are configured.
type NoopPublisher struct{}

// PublishLifecycle does nothing.
func (NoopPublisher) PublishLifecycle(context.Context, string, *subDomain.Subscription) {}
