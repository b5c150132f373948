package queue

import "time"

// SubmitOption configures a single job at submission time.
type SubmitOption func(*submitOptions)

type submitOptions struct {
	priority *int
	delay    time.Duration
	timeout  time.Duration
}

// WithPriority sets the scheduling weight. Higher values dispatch sooner.
func WithPriority(p int) SubmitOption {
	return func(o *submitOptions) {
		o.priority = &p
	}
}

// WithDelay defers eligibility: the job stays delayed until the duration
// elapses, then becomes waiting.
func WithDelay(d time.Duration) SubmitOption {
	return func(o *submitOptions) {
		o.delay = d
	}
}

// WithTimeout sets the execution ceiling for the job. Zero keeps the queue
// default.
func WithTimeout(d time.Duration) SubmitOption {
	return func(o *submitOptions) {
		o.timeout = d
	}
}
