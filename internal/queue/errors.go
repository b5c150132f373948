package queue

import (
	"errors"
	"fmt"

	"github.com/luminadash/backend/internal/shared/id"
)

var (
	// ErrUnknownWorkKind means Submit was called with an unregistered tag.
	ErrUnknownWorkKind = errors.New("unknown work kind")

	// ErrJobNotFound means no job with that ID exists in the store.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobExists means a job with that ID is already stored.
	ErrJobExists = errors.New("job already exists")

	// ErrJobFailed is surfaced to a waiting caller when the job it awaits
	// reaches failed state. The wrapping JobFailedError carries the job's
	// last recorded error.
	ErrJobFailed = errors.New("job failed")

	// ErrWaitTimeout means the waiting caller's own patience ran out before
	// the job reached a terminal state. Independent of the job's own timeout.
	ErrWaitTimeout = errors.New("timed out waiting for job")

	// ErrJobTimeout is recorded on a job whose execution exceeded its
	// timeout. The queue stops waiting and reports failure; the work
	// function may still be running until it returns on its own.
	ErrJobTimeout = errors.New("job execution timed out")
)

// JobFailedError wraps ErrJobFailed with the failing job's identity and its
// last recorded error.
type JobFailedError struct {
	JobID  id.JobID
	Kind   string
	Reason string
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job %s (%s) failed: %s", e.JobID, e.Kind, e.Reason)
}

func (e *JobFailedError) Unwrap() error {
	return ErrJobFailed
}
