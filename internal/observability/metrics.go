package observability

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every application metric.
type Metrics struct {
	// HTTP Metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Account Metrics
	AuthAttemptsTotal   *prometheus.CounterVec
	RegistrationsTotal  *prometheus.CounterVec
	SessionsCreated     prometheus.Counter
	SessionsRevoked     *prometheus.CounterVec
	RateLimitedTotal    *prometheus.CounterVec
	AccountChangesTotal *prometheus.CounterVec

	// Todo Metrics
	TodoMutationsTotal *prometheus.CounterVec

	// Queue (RabbitMQ) Metrics
	QueueMessagesPublished *prometheus.CounterVec
	QueueMessagesConsumed  *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics on reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not panic.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// HTTP Metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		// Account Metrics
		AuthAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_attempts_total",
				Help: "Total number of login attempts",
			},
			[]string{"result"}, // success, invalid, error
		),

		RegistrationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "registrations_total",
				Help: "Total number of registration attempts",
			},
			[]string{"result"}, // success, invalid, conflict, error
		),

		SessionsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sessions_created_total",
				Help: "Total number of sessions started",
			},
		),

		SessionsRevoked: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessions_revoked_total",
				Help: "Total number of sessions removed from the store",
			},
			[]string{"reason"}, // logout, rotate, stale, purge
		),

		RateLimitedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rate_limited_requests_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
			[]string{"endpoint"},
		),

		AccountChangesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "account_changes_total",
				Help: "Total number of account updates and deletions",
			},
			[]string{"action"}, // email, password, delete
		),

		// Todo Metrics
		TodoMutationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "todo_mutations_total",
				Help: "Total number of todo writes",
			},
			[]string{"action"}, // create, complete, delete
		),

		// Queue Metrics
		QueueMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queue_messages_published_total",
				Help: "Total number of messages published to the queue",
			},
			[]string{"event_type"},
		),

		QueueMessagesConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queue_messages_consumed_total",
				Help: "Total number of messages consumed from the queue",
			},
			[]string{"event_type", "status"}, // status: success, retry, dropped
		),
	}
}

// ObserveHTTPRequest records one finished request against its route template.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RegisterDBStats exposes connection pool statistics of db on reg.
func RegisterDBStats(reg prometheus.Registerer, db *sql.DB, dbName string) error {
	return reg.Register(collectors.NewDBStatsCollector(db, dbName))
}
