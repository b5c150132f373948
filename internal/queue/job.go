package queue

import (
	"encoding/json"
	"time"

	"github.com/luminadash/backend/internal/shared/id"
)

// Status is the lifecycle state of a job. Transitions are monotonic:
// delayed -> waiting -> active -> completed | failed. A job never re-enters
// waiting after becoming active.
type Status string

const (
	// StatusDelayed means the job is not yet eligible; it becomes waiting
	// once its delay elapses.
	StatusDelayed Status = "delayed"
	// StatusWaiting means the job is eligible and queued for a worker.
	StatusWaiting Status = "waiting"
	// StatusActive means a worker is currently executing the job.
	StatusActive Status = "active"
	// StatusCompleted means the job finished successfully.
	StatusCompleted Status = "completed"
	// StatusFailed means the job failed or timed out.
	StatusFailed Status = "failed"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// JobError is one recorded failure on a job.
type JobError struct {
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Job is the unit of queued work. Exactly one worker executes a job at a
// time; the copies handed out by the store are snapshots, safe to read while
// the worker mutates the stored record.
type Job struct {
	ID       id.JobID        `json:"id"`
	Kind     string          `json:"kind"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Priority int             `json:"priority"`
	Status   Status          `json:"status"`
	Progress int             `json:"progress"`
	Result   json.RawMessage `json:"result,omitempty"`
	Errors   []JobError      `json:"errors,omitempty"`

	CreatedAt   time.Time     `json:"created_at"`
	RunAt       time.Time     `json:"run_at"`
	Timeout     time.Duration `json:"timeout"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// LastError returns the most recently recorded error message, if any.
func (j *Job) LastError() string {
	if len(j.Errors) == 0 {
		return ""
	}
	return j.Errors[len(j.Errors)-1].Message
}

// clone returns a deep-enough copy: slices are copied so a snapshot never
// aliases the stored record.
func (j *Job) clone() *Job {
	cp := *j
	if j.Errors != nil {
		cp.Errors = make([]JobError, len(j.Errors))
		copy(cp.Errors, j.Errors)
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		cp.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}
