package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Outbound call metrics
	CallAttempts    *prometheus.CounterVec
	CallDuration    *prometheus.HistogramVec
	CallErrors      *prometheus.CounterVec
	BreakerState    *prometheus.GaugeVec
	BreakerRejected *prometheus.CounterVec
	CacheHits       *prometheus.CounterVec

	// Job metrics
	JobsSubmitted *prometheus.CounterVec
	JobsByStatus  *prometheus.GaugeVec
	JobDuration   *prometheus.HistogramVec
	JobFailures   *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot

	mu sync.RWMutex
}

// Snapshot holds current metric values for JSON status endpoints
type Snapshot struct {
	TotalRequests int64
	TotalErrors   int64
	TotalDuration float64 // sum of all request durations
	RequestCount  int64   // count for averaging
}

// NewMetrics creates a metrics collector registered on the default registry.
func NewMetrics() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer)
}

// newMetrics allows tests to supply an isolated registry.
func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backend_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		// Outbound call metrics
		CallAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_outbound_attempts_total",
				Help: "Total number of outbound call attempts",
			},
			[]string{"target", "method", "status"},
		),
		CallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backend_outbound_duration_seconds",
				Help:    "Outbound call attempt duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"target", "method"},
		),
		CallErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_outbound_errors_total",
				Help: "Total number of failed outbound call attempts",
			},
			[]string{"target", "method"},
		),
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "backend_breaker_state",
				Help: "Circuit breaker state per target (0=closed, 1=half-open, 2=open)",
			},
			[]string{"target"},
		),
		BreakerRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_breaker_rejected_total",
				Help: "Total number of calls rejected by an open circuit breaker",
			},
			[]string{"target"},
		),
		CacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_outbound_cache_hits_total",
				Help: "Total number of outbound responses served from cache",
			},
			[]string{"target"},
		),

		// Job metrics
		JobsSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_jobs_submitted_total",
				Help: "Total number of jobs submitted",
			},
			[]string{"kind"},
		),
		JobsByStatus: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "backend_jobs_by_status",
				Help: "Number of jobs currently in each status",
			},
			[]string{"status"},
		),
		JobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "backend_job_duration_seconds",
				Help:    "Job execution duration in seconds",
				Buckets: []float64{.01, .05, .1, .5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"kind"},
		),
		JobFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_job_failures_total",
				Help: "Total number of failed jobs",
			},
			[]string{"kind"},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "backend_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "backend_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),

		// System metrics
		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "backend_uptime_seconds",
				Help: "Backend uptime in seconds",
			},
		),
	}

	// Start uptime updater
	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	// Update snapshot
	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	m.snapshot.RequestCount++
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordCallAttempt records one outbound call attempt
func (m *Metrics) RecordCallAttempt(target, method, status string, duration time.Duration, failed bool) {
	m.CallAttempts.WithLabelValues(target, method, status).Inc()
	m.CallDuration.WithLabelValues(target, method).Observe(duration.Seconds())
	if failed {
		m.CallErrors.WithLabelValues(target, method).Inc()
	}
}

// SetBreakerState sets the breaker state gauge for a target
func (m *Metrics) SetBreakerState(target string, state int) {
	m.BreakerState.WithLabelValues(target).Set(float64(state))
}

// IncBreakerRejected increments the breaker rejection counter for a target
func (m *Metrics) IncBreakerRejected(target string) {
	m.BreakerRejected.WithLabelValues(target).Inc()
}

// IncCacheHit increments the response cache hit counter for a target
func (m *Metrics) IncCacheHit(target string) {
	m.CacheHits.WithLabelValues(target).Inc()
}

// IncJobsSubmitted increments the submitted jobs counter for a kind
func (m *Metrics) IncJobsSubmitted(kind string) {
	m.JobsSubmitted.WithLabelValues(kind).Inc()
}

// RecordJobDone records a finished job
func (m *Metrics) RecordJobDone(kind string, duration time.Duration, failed bool) {
	m.JobDuration.WithLabelValues(kind).Observe(duration.Seconds())
	if failed {
		m.JobFailures.WithLabelValues(kind).Inc()
	}
}

// SetJobsByStatus sets the per-status job gauge
func (m *Metrics) SetJobsByStatus(status string, count int) {
	m.JobsByStatus.WithLabelValues(status).Set(float64(count))
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
}

// GetSnapshot returns current aggregate values for JSON status endpoints
func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
