package queue

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/luminadash/backend/internal/events"
	"github.com/luminadash/backend/internal/shared/id"
)

// workerLoop is run by each worker goroutine. It claims the highest-priority
// eligible job, executes it end-to-end, and sleeps for the poll interval
// when the queue is empty.
func (q *Queue) workerLoop() {
	defer q.wg.Done()

	for {
		select {
		case <-q.stopCh:
			return
		default:
		}

		j, ok := q.store.Claim(time.Now())
		if !ok {
			select {
			case <-time.After(q.cfg.PollInterval):
			case <-q.stopCh:
				return
			}
			continue
		}

		q.execute(j)
	}
}

// execute runs one claimed job under its timeout. The work function receives
// a context that is cancelled on timeout and a progress reporter. If the
// function ignores cancellation the queue still records the timeout and
// moves on; the goroutine runs until the function returns.
func (q *Queue) execute(j *Job) {
	handler, ok := q.registry.Get(j.Kind)
	if !ok {
		// Kind was unregistered between submit and dispatch.
		q.markFailed(j, fmt.Errorf("%w: %s", ErrUnknownWorkKind, j.Kind))
		return
	}

	q.sink.JobLifecycle(events.JobEvent{
		JobID:  j.ID.String(),
		Kind:   j.Kind,
		Status: string(StatusActive),
	})

	ctx, cancel := context.WithTimeout(context.Background(), j.Timeout)
	defer cancel()
	ctx = WithProgress(ctx, q.progressReporter(j.ID, j.Kind))

	type outcome struct {
		result []byte
		err    error
	}
	resultCh := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- outcome{err: fmt.Errorf("work function panicked: %v", r)}
			}
		}()
		result, err := handler(ctx, j.Payload)
		resultCh <- outcome{result: result, err: err}
	}()

	select {
	case out := <-resultCh:
		if out.err != nil {
			q.markFailed(j, out.err)
			return
		}
		q.markCompleted(j, out.result)
	case <-ctx.Done():
		cancel()
		q.markFailed(j, fmt.Errorf("%w after %s", ErrJobTimeout, j.Timeout))
		q.logger.Warn("job abandoned after timeout; work function may still be running",
			zap.String("job_id", j.ID.String()),
			zap.String("kind", j.Kind),
			zap.Duration("timeout", j.Timeout),
		)
	}
}

// progressReporter persists progress updates and forwards them to the sink.
func (q *Queue) progressReporter(jobID id.JobID, kind string) ProgressFunc {
	return func(pct int) {
		q.store.SetProgress(jobID, pct)
		q.sink.JobLifecycle(events.JobEvent{
			JobID:    jobID.String(),
			Kind:     kind,
			Status:   string(StatusActive),
			Progress: pct,
		})
	}
}

// markCompleted records the terminal success state and wakes waiters.
func (q *Queue) markCompleted(j *Job, result []byte) {
	now := time.Now()
	j.Status = StatusCompleted
	j.Progress = 100
	j.Result = result
	j.CompletedAt = &now

	if err := q.store.Update(j); err != nil {
		q.logger.Error("failed to record job completion",
			zap.String("job_id", j.ID.String()),
			zap.Error(err),
		)
		return
	}

	q.signalDone(j.ID)
	q.sink.JobLifecycle(events.JobEvent{
		JobID:   j.ID.String(),
		Kind:    j.Kind,
		Status:  string(StatusCompleted),
		Latency: latencyOf(j, now),
	})
}

// markFailed appends the failure to the job's error list, records the
// terminal state, and wakes waiters. Failures are never dropped silently.
func (q *Queue) markFailed(j *Job, cause error) {
	now := time.Now()
	j.Status = StatusFailed
	j.Errors = append(j.Errors, JobError{Message: cause.Error(), At: now})
	j.CompletedAt = &now

	if err := q.store.Update(j); err != nil {
		q.logger.Error("failed to record job failure",
			zap.String("job_id", j.ID.String()),
			zap.Error(err),
		)
		return
	}

	q.signalDone(j.ID)
	q.sink.JobLifecycle(events.JobEvent{
		JobID:   j.ID.String(),
		Kind:    j.Kind,
		Status:  string(StatusFailed),
		Err:     cause,
		Latency: latencyOf(j, now),
	})
}

// signalDone closes the job's completion channel, waking WaitFor callers.
func (q *Queue) signalDone(jobID id.JobID) {
	q.doneMu.Lock()
	defer q.doneMu.Unlock()

	if ch, ok := q.done[jobID]; ok {
		close(ch)
		delete(q.done, jobID)
	}
}

func latencyOf(j *Job, end time.Time) time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	return end.Sub(*j.StartedAt)
}
