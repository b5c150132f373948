package monitoring

import (
	"strconv"

	"github.com/luminadash/backend/internal/events"
)

// Sink adapts a Metrics collector to the event sink consumed by the
// outbound client and the job queue.
type Sink struct {
	metrics *Metrics
}

// NewSink wraps a metrics collector as an event sink.
func NewSink(metrics *Metrics) *Sink {
	return &Sink{metrics: metrics}
}

// CallAttempt records one outbound attempt. Attempt 0 means the circuit
// breaker refused the call before any attempt was made.
func (s *Sink) CallAttempt(ev events.CallAttempt) {
	if ev.Attempt == 0 {
		s.metrics.IncBreakerRejected(ev.Target)
		return
	}
	status := "none"
	if ev.Status > 0 {
		status = strconv.Itoa(ev.Status)
	}
	s.metrics.RecordCallAttempt(ev.Target, ev.Method, status, ev.Latency, ev.Err != nil)
}

// BreakerTransition updates the per-target breaker state gauge.
func (s *Sink) BreakerTransition(ev events.BreakerTransition) {
	state := 0
	switch ev.To {
	case "half-open":
		state = 1
	case "open":
		state = 2
	}
	s.metrics.SetBreakerState(ev.Target, state)
}

// JobLifecycle records job state transitions. Submissions count once,
// terminal transitions record duration and failures.
func (s *Sink) JobLifecycle(ev events.JobEvent) {
	switch ev.Status {
	case "waiting", "delayed":
		s.metrics.IncJobsSubmitted(ev.Kind)
	case "completed":
		s.metrics.RecordJobDone(ev.Kind, ev.Latency, false)
	case "failed":
		s.metrics.RecordJobDone(ev.Kind, ev.Latency, true)
	}
}
