// Package events defines the observability sink for the outbound client and
// the job queue. The core emits one CallAttempt event per dependency attempt
// and one JobLifecycle event per job state change; how those events are
// stored or displayed is up to the sink implementation.
package events

import (
	"time"

	"go.uber.org/zap"

	"github.com/luminadash/backend/internal/logging"
)

// CallAttempt describes a single attempt against a dependency target.
type CallAttempt struct {
	Target  string
	Method  string
	Path    string
	Attempt int // 1-based; 0 when the breaker rejected the call outright
	Status  int // 0 when no response was received
	Err     error
	Latency time.Duration
}

// JobEvent describes a job lifecycle transition.
type JobEvent struct {
	JobID    string
	Kind     string
	Status   string
	Progress int
	Err      error
	Latency  time.Duration // populated on terminal events
}

// BreakerTransition describes a circuit breaker state change on a target.
type BreakerTransition struct {
	Target string
	From   string
	To     string
}

// Sink receives observability events from the core.
type Sink interface {
	CallAttempt(e CallAttempt)
	JobLifecycle(e JobEvent)
	BreakerTransition(e BreakerTransition)
}

// Nop discards all events.
type Nop struct{}

func (Nop) CallAttempt(CallAttempt)             {}
func (Nop) JobLifecycle(JobEvent)               {}
func (Nop) BreakerTransition(BreakerTransition) {}

// Multi fans events out to several sinks.
type Multi []Sink

func (m Multi) CallAttempt(e CallAttempt) {
	for _, s := range m {
		s.CallAttempt(e)
	}
}

func (m Multi) JobLifecycle(e JobEvent) {
	for _, s := range m {
		s.JobLifecycle(e)
	}
}

func (m Multi) BreakerTransition(e BreakerTransition) {
	for _, s := range m {
		s.BreakerTransition(e)
	}
}

// ZapSink logs events as structured entries.
type ZapSink struct {
	logger *logging.Logger
}

// NewZapSink creates a sink that writes events to the given logger.
func NewZapSink(logger *logging.Logger) *ZapSink {
	return &ZapSink{logger: logger}
}

func (s *ZapSink) CallAttempt(e CallAttempt) {
	fields := []zap.Field{
		zap.String("target", e.Target),
		zap.String("method", e.Method),
		zap.String("path", e.Path),
		zap.Int("attempt", e.Attempt),
		zap.Int("status", e.Status),
		zap.Duration("latency", e.Latency),
	}
	if e.Attempt == 0 {
		// No attempt was made; the breaker refused the call outright.
		s.logger.Warn("dependency call rejected by circuit breaker",
			zap.String("target", e.Target),
			zap.String("method", e.Method),
			zap.String("path", e.Path),
		)
		return
	}
	if e.Err != nil {
		s.logger.Warn("dependency call attempt failed", append(fields, zap.Error(e.Err))...)
		return
	}
	s.logger.Debug("dependency call attempt", fields...)
}

func (s *ZapSink) BreakerTransition(e BreakerTransition) {
	s.logger.Warn("circuit breaker state change",
		zap.String("target", e.Target),
		zap.String("from", e.From),
		zap.String("to", e.To),
	)
}

func (s *ZapSink) JobLifecycle(e JobEvent) {
	fields := []zap.Field{
		zap.String("job_id", e.JobID),
		zap.String("kind", e.Kind),
		zap.String("status", e.Status),
		zap.Int("progress", e.Progress),
		zap.Duration("latency", e.Latency),
	}
	if e.Err != nil {
		s.logger.Warn("job lifecycle", append(fields, zap.Error(e.Err))...)
		return
	}
	s.logger.Info("job lifecycle", fields...)
}
