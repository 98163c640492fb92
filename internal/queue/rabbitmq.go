package queue

import (
	"fmt"
	"time"

	"todo_app/internal/config"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	AccountEventsQueue = "account_events"

	dialAttempts = 5
)

type dialFunc func(url string) (*amqp.Connection, error)

// SetupRabbitMQ connects to the broker, waiting for it to come up.
func SetupRabbitMQ(cfg *config.RabbitMQConfig) *amqp.Connection {
	conn, err := connect(cfg.URL, amqp.Dial, time.Sleep)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to RabbitMQ")
	}
	return conn
}

// connect dials up to dialAttempts times, backing off one more second
// after each failure.
func connect(url string, dial dialFunc, sleep func(time.Duration)) (*amqp.Connection, error) {
	addr := brokerAddr(url)
	log := logrus.WithField("broker", addr)

	var err error
	for attempt := 1; attempt <= dialAttempts; attempt++ {
		var conn *amqp.Connection
		if conn, err = dial(url); err == nil {
			log.Info("RabbitMQ connection established")
			return conn, nil
		}
		log.WithError(err).Warnf("RabbitMQ not reachable (attempt %d/%d)", attempt, dialAttempts)
		if attempt < dialAttempts {
			sleep(time.Duration(attempt) * time.Second)
		}
	}
	return nil, fmt.Errorf("connect to %s after %d attempts: %w", addr, dialAttempts, err)
}

// brokerAddr strips credentials and vhost from url for logging.
func brokerAddr(url string) string {
	uri, err := amqp.ParseURI(url)
	if err != nil {
		return "invalid url"
	}
	return fmt.Sprintf("%s:%d", uri.Host, uri.Port)
}

// OpenEventsChannel opens a channel with the account events queue declared.
func OpenEventsChannel(conn *amqp.Connection) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := DeclareAccountEvents(ch); err != nil {
		_ = ch.Close()
		return nil, err
	}
	return ch, nil
}

// QueueDeclarer is the part of *amqp.Channel used to declare queues.
type QueueDeclarer interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
}

// DeclareAccountEvents declares the durable queue that the API publishes
// account events to and the worker consumes.
func DeclareAccountEvents(ch QueueDeclarer) error {
	_, err := ch.QueueDeclare(AccountEventsQueue, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("declare %s: %w", AccountEventsQueue, err)
	}
	return nil
}
