// Package metrics provides Prometheus metrics collection for the application.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jkindrix/quotebot/internal/domain"
)

// Outcome/status label values for metrics.
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

	// Fulfillment metrics
	IntentsTotal        *prometheus.CounterVec
	IntentDuration      *prometheus.HistogramVec
	QuotesTotal         *prometheus.CounterVec
	LeadDeliveriesTotal *prometheus.CounterVec

	// Session store metrics
	SessionsActive  prometheus.Gauge
	SessionsEvicted *prometheus.CounterVec

	// External service metrics
	CompletionCallsTotal   *prometheus.CounterVec
	CompletionCallDuration prometheus.Histogram
	CircuitBreakerState    *prometheus.GaugeVec
	CircuitBreakerTrips    prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Registry used for this metrics instance (nil means default registry)
	registry prometheus.Gatherer
}

// NewMetrics creates a new Metrics instance with all collectors registered.
func NewMetrics() *Metrics {
	m := newMetricsWithRegistry(prometheus.DefaultRegisterer)
	m.registry = prometheus.DefaultGatherer
	return m
}

// NewMetricsWithRegistry creates metrics using a custom registry (for testing).
func NewMetricsWithRegistry(reg *prometheus.Registry) *Metrics {
	m := newMetricsWithRegistry(reg)
	m.registry = reg
	return m
}

func newMetricsWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotebot_http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status code",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quotebot_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "quotebot_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		IntentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotebot_intents_total",
				Help: "Total number of webhook events by intent and outcome",
			},
			[]string{"intent", "outcome"}, // outcome: "replied", "silent", "unhandled"
		),
		IntentDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quotebot_intent_duration_seconds",
				Help:    "Time spent in an intent handler",
				Buckets: []float64{.001, .01, .05, .1, .5, 1, 2, 5, 10, 30},
			},
			[]string{"intent"},
		),
		QuotesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotebot_quotes_total",
				Help: "Total number of quotes by source",
			},
			[]string{"source"}, // "catalog", "completion", "failed"
		),
		LeadDeliveriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotebot_lead_deliveries_total",
				Help: "Total number of lead records delivered by sink and status",
			},
			[]string{"sink", "status"},
		),

		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "quotebot_sessions_active",
				Help: "Number of live conversation sessions",
			},
		),
		SessionsEvicted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotebot_sessions_evicted_total",
				Help: "Total number of sessions removed by reason",
			},
			[]string{"reason"}, // "capacity", "idle", "manual"
		),

		CompletionCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotebot_completion_calls_total",
				Help: "Total number of chat completion calls by purpose and status",
			},
			[]string{"purpose", "status"}, // status: "success", "failure", "circuit_open"
		),
		CompletionCallDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "quotebot_completion_call_duration_seconds",
				Help:    "Duration of chat completion calls",
				Buckets: []float64{.25, .5, 1, 2, 5, 10, 15, 30, 60},
			},
		),
		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "quotebot_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"service"},
		),
		CircuitBreakerTrips: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "quotebot_circuit_breaker_trips_total",
				Help: "Total number of times a circuit breaker has tripped",
			},
		),

		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quotebot_db_query_duration_seconds",
				Help:    "Duration of database queries",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation"},
		),
		DBQueryErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotebot_db_query_errors_total",
				Help: "Total number of database query errors",
			},
			[]string{"operation"},
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

		path := normalizePath(r.URL.Path)
		m.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
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

// normalizePath collapses unknown paths so probes and scanners cannot blow up
// label cardinality.
func normalizePath(path string) string {
	switch path {
	case "/", "/webhook", "/health", "/ready", "/live", "/metrics":
		return path
	}
	return "other"
}

// normalizeIntent maps names no handler is registered for to "unknown".
// Intent names arrive from the caller and are not trusted as label values.
func normalizeIntent(intent string) string {
	if _, ok := domain.ParseIntent(intent); ok {
		return intent
	}
	return domain.IntentUnknown.String()
}

// RecordIntent records one webhook event. outcome is "replied" when a reply
// was produced, "silent" for a registered handler with no reply, and
// "unhandled" for unknown intents.
func (m *Metrics) RecordIntent(intent, outcome string, duration time.Duration) {
	intent = normalizeIntent(intent)
	m.IntentsTotal.WithLabelValues(intent, outcome).Inc()
	if outcome != "unhandled" {
		m.IntentDuration.WithLabelValues(intent).Observe(duration.Seconds())
	}
}

// RecordQuote records how a quote was produced.
func (m *Metrics) RecordQuote(source string) {
	m.QuotesTotal.WithLabelValues(source).Inc()
}

// RecordLeadDelivery records a lead delivery attempt to a sink.
func (m *Metrics) RecordLeadDelivery(sink string, err error) {
	status := outcomeSuccess
	if err != nil {
		status = outcomeFailure
	}
	m.LeadDeliveriesTotal.WithLabelValues(sink, status).Inc()
}

// SetActiveSessions sets the number of live sessions.
func (m *Metrics) SetActiveSessions(count int) {
	m.SessionsActive.Set(float64(count))
}

// RecordSessionEvicted records a session removal.
func (m *Metrics) RecordSessionEvicted(reason string) {
	m.SessionsEvicted.WithLabelValues(reason).Inc()
}

// RecordCompletionCall records a chat completion call.
func (m *Metrics) RecordCompletionCall(purpose string, success bool, duration time.Duration) {
	status := outcomeFailure
	if success {
		status = outcomeSuccess
	}
	m.CompletionCallsTotal.WithLabelValues(purpose, status).Inc()
	m.CompletionCallDuration.Observe(duration.Seconds())
}

// RecordCircuitRejected records a call refused by an open circuit.
func (m *Metrics) RecordCircuitRejected(purpose string) {
	m.CompletionCallsTotal.WithLabelValues(purpose, "circuit_open").Inc()
}

// SetCircuitBreakerState sets the circuit breaker state for a service.
// State: 0=closed, 1=half-open, 2=open. Moving to open counts as a trip.
func (m *Metrics) SetCircuitBreakerState(service string, state int) {
	m.CircuitBreakerState.WithLabelValues(service).Set(float64(state))
	if state == 2 {
		m.CircuitBreakerTrips.Inc()
	}
}

// RecordDBQuery records a database query.
func (m *Metrics) RecordDBQuery(operation string, duration time.Duration, err error) {
	m.DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.DBQueryErrors.WithLabelValues(operation).Inc()
	}
}
