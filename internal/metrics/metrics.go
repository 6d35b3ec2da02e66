// Package metrics provides Prometheus metrics collection for the application.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Conversation metrics
	MessagesTotal     *prometheus.CounterVec
	StageTransitions  *prometheus.CounterVec
	GateDropsTotal    *prometheus.CounterVec
	ActiveConversations prometheus.Gauge

	// Quote reconciliation metrics
	WebhooksReceivedTotal  *prometheus.CounterVec
	QuoteRejectionsTotal   *prometheus.CounterVec
	QuotesDelivered        prometheus.Counter
	SubmissionsTotal       *prometheus.CounterVec

	// External service metrics
	AnswerEngineCallsTotal   *prometheus.CounterVec
	AnswerEngineCallDuration prometheus.Histogram
	TransportSendsTotal      *prometheus.CounterVec
	CircuitBreakerState      *prometheus.GaugeVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Retention metrics
	RecordsSwept prometheus.Counter

	// Registry used for this metrics instance
	registry prometheus.Gatherer
}

// New creates a Metrics instance registered on the default registry.
func New() *Metrics {
	m := newWithRegisterer(prometheus.DefaultRegisterer)
	m.registry = prometheus.DefaultGatherer
	return m
}

// NewWithRegistry creates metrics using a custom registry (for testing).
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	m := newWithRegisterer(reg)
	m.registry = reg
	return m
}

func newWithRegisterer(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripflow_http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status code",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tripflow_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tripflow_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		MessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripflow_messages_total",
				Help: "Inbound messages by processing outcome",
			},
			[]string{"outcome"}, // "processed", "dropped", "error"
		),
		StageTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripflow_stage_transitions_total",
				Help: "Conversation stage transitions",
			},
			[]string{"from", "to"},
		),
		GateDropsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripflow_gate_drops_total",
				Help: "Messages dropped before processing, by reason",
			},
			[]string{"reason"}, // "duplicate", "cooldown", "self_echo", "empty"
		),
		ActiveConversations: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "tripflow_active_conversations",
				Help: "Conversations currently tracked in state storage",
			},
		),

		WebhooksReceivedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripflow_webhooks_received_total",
				Help: "Quote webhooks received by kind",
			},
			[]string{"kind"}, // "vendor_quotes", "booking_confirmation", "unknown"
		),
		QuoteRejectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripflow_quote_rejections_total",
				Help: "Quote callbacks rejected during reconciliation, by reason",
			},
			[]string{"reason"}, // "unknown_recipient", "stale_or_unmatched", "state_mismatch"
		),
		QuotesDelivered: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tripflow_quotes_delivered_total",
				Help: "Quotes successfully reconciled and sent to travelers",
			},
		),
		SubmissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripflow_submissions_total",
				Help: "Booking submissions to the backend by outcome",
			},
			[]string{"outcome"}, // "success", "failure", "validation"
		),

		AnswerEngineCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripflow_answer_engine_calls_total",
				Help: "Answer engine API calls by outcome",
			},
			[]string{"outcome"},
		),
		AnswerEngineCallDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tripflow_answer_engine_call_duration_seconds",
				Help:    "Answer engine API call duration in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20},
			},
		),
		TransportSendsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripflow_transport_sends_total",
				Help: "Outbound transport sends by outcome",
			},
			[]string{"outcome"},
		),
		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tripflow_circuit_breaker_state",
				Help: "Circuit breaker state per service (0=closed, 1=open, 2=half-open)",
			},
			[]string{"service"},
		),

		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tripflow_db_query_duration_seconds",
				Help:    "Database query duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation"},
		),
		DBQueryErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripflow_db_query_errors_total",
				Help: "Database query errors by operation",
			},
			[]string{"operation"},
		),

		RecordsSwept: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tripflow_records_swept_total",
				Help: "Booking records removed by the retention sweep",
			},
		),
	}
}

// Handler returns the Prometheus HTTP handler for scraping metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware returns an HTTP middleware that records request metrics.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		path := normalizePath(r.URL.Path)

		m.HTTPRequestsTotal.WithLabelValues(
			r.Method,
			path,
			strconv.Itoa(wrapped.statusCode),
		).Inc()

		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.written {
		rw.statusCode = code
		rw.written = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.statusCode = http.StatusOK
		rw.written = true
	}
	return rw.ResponseWriter.Write(b)
}

// normalizePath prevents high cardinality path labels.
func normalizePath(path string) string {
	switch path {
	case "/", "/webhook", "/inbound", "/health", "/ready", "/live", "/metrics":
		return path
	}
	return "other"
}

// RecordMessage records an inbound message outcome.
func (m *Metrics) RecordMessage(outcome string) {
	m.MessagesTotal.WithLabelValues(outcome).Inc()
}

// RecordStageTransition records a conversation moving between stages.
func (m *Metrics) RecordStageTransition(from, to string) {
	m.StageTransitions.WithLabelValues(from, to).Inc()
}

// RecordGateDrop records a message dropped before processing.
func (m *Metrics) RecordGateDrop(reason string) {
	m.GateDropsTotal.WithLabelValues(reason).Inc()
}

// RecordWebhook records a received quote webhook.
func (m *Metrics) RecordWebhook(kind string) {
	m.WebhooksReceivedTotal.WithLabelValues(kind).Inc()
}

// RecordQuoteRejection records a reconciliation rejection.
func (m *Metrics) RecordQuoteRejection(reason string) {
	m.QuoteRejectionsTotal.WithLabelValues(reason).Inc()
}

// RecordQuoteDelivered records a successfully reconciled quote.
func (m *Metrics) RecordQuoteDelivered() {
	m.QuotesDelivered.Inc()
}

// RecordSubmission records a backend submission outcome.
func (m *Metrics) RecordSubmission(outcome string) {
	m.SubmissionsTotal.WithLabelValues(outcome).Inc()
}

// RecordAnswerEngineCall records an answer engine API call.
func (m *Metrics) RecordAnswerEngineCall(success bool, duration time.Duration) {
	outcome := outcomeFailure
	if success {
		outcome = outcomeSuccess
	}
	m.AnswerEngineCallsTotal.WithLabelValues(outcome).Inc()
	m.AnswerEngineCallDuration.Observe(duration.Seconds())
}

// RecordTransportSend records an outbound send attempt.
func (m *Metrics) RecordTransportSend(success bool) {
	outcome := outcomeFailure
	if success {
		outcome = outcomeSuccess
	}
	m.TransportSendsTotal.WithLabelValues(outcome).Inc()
}

// SetCircuitBreakerState records the current breaker state for a service.
func (m *Metrics) SetCircuitBreakerState(service string, state int) {
	m.CircuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// RecordDBQuery records a database query duration and error status.
func (m *Metrics) RecordDBQuery(operation string, duration time.Duration, err error) {
	m.DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.DBQueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordSweep records retention sweep removals.
func (m *Metrics) RecordSweep(count int) {
	m.RecordsSwept.Add(float64(count))
}
