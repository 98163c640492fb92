package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"todo_app/internal/observability"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

type EventType string

const (
	EventUserRegistered      EventType = "user.registered"
	EventUserPasswordChanged EventType = "user.password_changed"
	EventUserDeleted         EventType = "user.deleted"
)

// AccountEvent is published whenever an account changes in a way other
// components care about.
type AccountEvent struct {
	Type          EventType `json:"type"`
	UserID        uuid.UUID `json:"user_id"`
	KeepSessionID string    `json:"keep_session_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func NewAccountEvent(eventType EventType, userID uuid.UUID) AccountEvent {
	return AccountEvent{
		Type:       eventType,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, event AccountEvent) error
}

// ChannelPublisher is the part of *amqp.Channel used for publishing.
type ChannelPublisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPPublisher writes events to the account events queue. amqp channels
// are not safe for concurrent publishing, so calls are serialised.
type AMQPPublisher struct {
	mu      sync.Mutex
	ch      ChannelPublisher
	queue   string
	metrics *observability.Metrics
}

func NewAMQPPublisher(ch ChannelPublisher, queueName string, metrics *observability.Metrics) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, queue: queueName, metrics: metrics}
}

func (p *AMQPPublisher) Publish(ctx context.Context, event AccountEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.ch.PublishWithContext(
		ctx,
		"",      // exchange
		p.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    event.OccurredAt,
			Type:         string(event.Type),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}

	p.metrics.QueueMessagesPublished.WithLabelValues(string(event.Type)).Inc()
	logrus.WithFields(logrus.Fields{
		"event":   event.Type,
		"user_id": event.UserID,
	}).Debug("Account event published")
	return nil
}

// NopPublisher drops events. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, AccountEvent) error {
	return nil
}
