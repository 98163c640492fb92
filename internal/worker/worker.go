package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"todo_app/internal/observability"
	"todo_app/internal/queue"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	maxRetries       = 3
	retryCountHeader = "x-retry-count"
	handleTimeout    = 10 * time.Second
)

// Worker consumes account events from one AMQP channel.
type Worker struct {
	id        int
	queue     string
	revoker   SessionRevoker
	publisher queue.ChannelPublisher
	metrics   *observability.Metrics
}

func NewWorker(id int, queueName string, revoker SessionRevoker, publisher queue.ChannelPublisher, metrics *observability.Metrics) *Worker {
	return &Worker{
		id:        id,
		queue:     queueName,
		revoker:   revoker,
		publisher: publisher,
		metrics:   metrics,
	}
}

// StartWorker opens a channel with prefetch 1 and processes deliveries until
// ctx is cancelled or the channel closes.
func StartWorker(ctx context.Context, conn *amqp.Connection, revoker SessionRevoker, metrics *observability.Metrics, id int) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("worker %d open channel: %w", id, err)
	}
	defer ch.Close()

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("worker %d set QoS: %w", id, err)
	}

	msgs, err := ch.Consume(
		queue.AccountEventsQueue,
		fmt.Sprintf("account-worker-%d", id),
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("worker %d consume: %w", id, err)
	}

	logrus.Infof("Worker %d started", id)

	w := NewWorker(id, queue.AccountEventsQueue, revoker, ch, metrics)
	for {
		select {
		case <-ctx.Done():
			logrus.Infof("Worker %d stopping", id)
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			w.Process(ctx, msg)
		}
	}
}

// Process handles one delivery and always acks or nacks it. Failed events
// are republished with an incremented retry header until maxRetries.
func (w *Worker) Process(ctx context.Context, msg amqp.Delivery) {
	var event queue.AccountEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		logrus.WithError(err).WithField("worker", w.id).Error("Invalid account event payload")
		w.metrics.QueueMessagesConsumed.WithLabelValues("invalid", "dropped").Inc()
		_ = msg.Nack(false, false)
		return
	}

	eventType := string(event.Type)
	retryCount := retryCountOf(msg.Headers)

	logrus.WithFields(logrus.Fields{
		"worker":  w.id,
		"event":   event.Type,
		"user_id": event.UserID,
		"retry":   retryCount,
	}).Debug("Processing account event")

	hctx, cancel := context.WithTimeout(ctx, handleTimeout)
	err := handleEvent(hctx, w.revoker, &event, w.id)
	cancel()

	if err == nil {
		w.metrics.QueueMessagesConsumed.WithLabelValues(eventType, "success").Inc()
		_ = msg.Ack(false)
		return
	}

	logrus.WithError(err).WithFields(logrus.Fields{
		"worker": w.id,
		"event":  event.Type,
	}).Error("Account event failed")

	if retryCount >= maxRetries {
		logrus.WithField("event", event.Type).Warn("Max retries reached, dropping account event")
		w.metrics.QueueMessagesConsumed.WithLabelValues(eventType, "dropped").Inc()
		_ = msg.Nack(false, false)
		return
	}

	logrus.Infof("Worker %d: event failed, requeuing (retry %d/%d)", w.id, retryCount+1, maxRetries)

	if err := republishWithRetry(ctx, w.publisher, w.queue, &msg, retryCount+1); err != nil {
		logrus.WithError(err).Error("Failed to republish message")
		w.metrics.QueueMessagesConsumed.WithLabelValues(eventType, "dropped").Inc()
		_ = msg.Nack(false, false)
		return
	}

	w.metrics.QueueMessagesConsumed.WithLabelValues(eventType, "retry").Inc()
	w.metrics.QueueMessagesPublished.WithLabelValues(eventType).Inc()
	_ = msg.Ack(false)
}

func republishWithRetry(ctx context.Context, ch queue.ChannelPublisher, queueName string, msg *amqp.Delivery, retryCount int32) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[retryCountHeader] = retryCount

	return ch.PublishWithContext(
		ctx,
		"",        // exchange
		queueName, // routing key
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  msg.ContentType,
			DeliveryMode: amqp.Persistent,
			Type:         msg.Type,
			Timestamp:    msg.Timestamp,
			Headers:      headers,
			Body:         msg.Body,
		},
	)
}

func retryCountOf(headers amqp.Table) int32 {
	switch v := headers[retryCountHeader].(type) {
	case int32:
		return v
	case int64:
		return int32(v)
	case int:
		return int32(v)
	default:
		return 0
	}
}
