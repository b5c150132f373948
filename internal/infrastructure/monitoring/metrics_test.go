package monitoring

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminadash/backend/internal/events"
)

func TestRecordHTTPRequestUpdatesSnapshot(t *testing.T) {
	m := newMetrics(prometheus.NewRegistry())

	m.RecordHTTPRequest("GET", "/jobs/:id", "200", 10*time.Millisecond)
	m.RecordHTTPRequest("POST", "/jobs", "500", 20*time.Millisecond)

	snap := m.GetSnapshot()
	assert.Equal(t, int64(2), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.TotalErrors)

	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/jobs/:id", "200")))
}

func TestMiddlewareRecordsRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newMetrics(prometheus.NewRegistry())

	router := gin.New()
	router.Use(Middleware(m))
	router.GET("/jobs/:id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/jobs/job_123", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/jobs/:id", "200")))
}

func TestSinkCallAttempt(t *testing.T) {
	m := newMetrics(prometheus.NewRegistry())
	s := NewSink(m)

	s.CallAttempt(events.CallAttempt{
		Target:  "billing",
		Method:  "GET",
		Attempt: 1,
		Status:  503,
		Err:     errors.New("server error"),
		Latency: 5 * time.Millisecond,
	})
	s.CallAttempt(events.CallAttempt{
		Target:  "billing",
		Method:  "GET",
		Attempt: 2,
		Latency: time.Millisecond,
		Err:     errors.New("connection refused"),
	})
	// Attempt 0: rejected by the breaker, not an attempt.
	s.CallAttempt(events.CallAttempt{
		Target: "billing",
		Method: "GET",
		Err:    errors.New("circuit breaker is open"),
	})

	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.CallAttempts.WithLabelValues("billing", "GET", "503")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.CallAttempts.WithLabelValues("billing", "GET", "none")))
	assert.Equal(t, float64(2),
		testutil.ToFloat64(m.CallErrors.WithLabelValues("billing", "GET")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.BreakerRejected.WithLabelValues("billing")))
}

func TestSinkBreakerTransition(t *testing.T) {
	m := newMetrics(prometheus.NewRegistry())
	s := NewSink(m)

	s.BreakerTransition(events.BreakerTransition{Target: "billing", From: "closed", To: "open"})
	assert.Equal(t, float64(2),
		testutil.ToFloat64(m.BreakerState.WithLabelValues("billing")))

	s.BreakerTransition(events.BreakerTransition{Target: "billing", From: "open", To: "half-open"})
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.BreakerState.WithLabelValues("billing")))

	s.BreakerTransition(events.BreakerTransition{Target: "billing", From: "half-open", To: "closed"})
	assert.Equal(t, float64(0),
		testutil.ToFloat64(m.BreakerState.WithLabelValues("billing")))
}

func TestSinkJobLifecycle(t *testing.T) {
	m := newMetrics(prometheus.NewRegistry())
	s := NewSink(m)

	s.JobLifecycle(events.JobEvent{Kind: "report", Status: "waiting"})
	s.JobLifecycle(events.JobEvent{Kind: "report", Status: "active"})
	s.JobLifecycle(events.JobEvent{Kind: "report", Status: "completed", Latency: time.Second})
	s.JobLifecycle(events.JobEvent{Kind: "report", Status: "failed", Err: errors.New("boom")})

	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.JobsSubmitted.WithLabelValues("report")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.JobFailures.WithLabelValues("report")))
}

func TestBreakerGauges(t *testing.T) {
	m := newMetrics(prometheus.NewRegistry())

	m.SetBreakerState("billing", 2)
	m.IncBreakerRejected("billing")
	m.IncBreakerRejected("billing")

	assert.Equal(t, float64(2),
		testutil.ToFloat64(m.BreakerState.WithLabelValues("billing")))
	assert.Equal(t, float64(2),
		testutil.ToFloat64(m.BreakerRejected.WithLabelValues("billing")))
}
