package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/luminadash/backend/internal/events"
	"github.com/luminadash/backend/internal/infrastructure/config"
	"github.com/luminadash/backend/internal/logging"
	"github.com/luminadash/backend/internal/shared/id"
)

// Queue accepts typed work items, executes them on a fixed pool of workers
// under a priority discipline, and exposes lifecycle and result access.
//
// A Queue is an explicit, constructible instance: it owns its store and
// worker pool and is passed by handle to callers. Each test constructs a
// fresh one.
type Queue struct {
	cfg      config.QueueConfig
	registry *Registry
	store    *Store
	logger   *logging.Logger
	sink     events.Sink

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	// done holds one channel per job, closed when the job reaches a
	// terminal state, so waiting callers wake without polling.
	doneMu sync.Mutex
	done   map[id.JobID]chan struct{}
}

// New creates a queue. The registry may be shared with other queues.
func New(cfg config.QueueConfig, registry *Registry, logger *logging.Logger, sink events.Sink) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 50 * time.Millisecond
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 5 * time.Minute
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if sink == nil {
		sink = events.Nop{}
	}

	return &Queue{
		cfg:      cfg,
		registry: registry,
		store:    NewStore(),
		logger:   logger.Named("queue"),
		sink:     sink,
		stopCh:   make(chan struct{}),
		done:     make(map[id.JobID]chan struct{}),
	}
}

// Registry returns the work-kind registry backing this queue.
func (q *Queue) Registry() *Registry {
	return q.registry
}

// Start launches the worker pool. It returns immediately.
func (q *Queue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return nil
	}
	q.running = true
	q.stopCh = make(chan struct{})

	q.logger.Info("worker pool starting", zap.Int("workers", q.cfg.Workers))

	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.workerLoop()
	}
	return nil
}

// Stop signals all workers and waits for them to finish, or until the
// context deadline. Active work functions are expected to honor their
// context; ones that do not keep running until they return on their own.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.mu.Unlock()

	q.logger.Info("worker pool stopping")
	close(q.stopCh)

	finished := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		q.logger.Info("worker pool stopped")
		return nil
	case <-ctx.Done():
		q.logger.Warn("worker pool shutdown timed out")
		return ctx.Err()
	}
}

// Submit creates a job for the given work kind and enqueues it. The returned
// snapshot reflects the job at submission; execution happens asynchronously.
func (q *Queue) Submit(_ context.Context, kind string, payload interface{}, opts ...SubmitOption) (*Job, error) {
	if _, ok := q.registry.Get(kind); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWorkKind, kind)
	}

	raw, err := marshalPayload(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload for work kind %q: %w", kind, err)
	}

	options := submitOptions{timeout: q.cfg.DefaultTimeout}
	for _, opt := range opts {
		opt(&options)
	}

	priority := q.cfg.DefaultPriority
	if options.priority != nil {
		priority = *options.priority
	}
	if options.timeout <= 0 {
		options.timeout = q.cfg.DefaultTimeout
	}

	now := time.Now()
	j := &Job{
		ID:        id.NewJobID(),
		Kind:      kind,
		Payload:   raw,
		Priority:  priority,
		Status:    StatusWaiting,
		CreatedAt: now,
		RunAt:     now,
		Timeout:   options.timeout,
	}
	if options.delay > 0 {
		j.Status = StatusDelayed
		j.RunAt = now.Add(options.delay)
	}

	if err := q.store.Insert(j); err != nil {
		return nil, err
	}

	q.doneMu.Lock()
	q.done[j.ID] = make(chan struct{})
	q.doneMu.Unlock()

	q.sink.JobLifecycle(events.JobEvent{
		JobID:  j.ID.String(),
		Kind:   j.Kind,
		Status: string(j.Status),
	})

	return j.clone(), nil
}

// GetResult returns a snapshot of the job's current status, progress and
// result. Never blocks.
func (q *Queue) GetResult(jobID id.JobID) (*Job, error) {
	j, ok := q.store.Get(jobID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return j, nil
}

// WaitFor blocks the calling context until the job reaches a terminal state
// or the wait budget runs out. It wakes on the job's completion signal, with
// a periodic poll as fallback.
//
// Returns the completed job, a JobFailedError (wrapping ErrJobFailed) when
// the job failed, or ErrWaitTimeout when the caller's own patience expired.
func (q *Queue) WaitFor(ctx context.Context, jobID id.JobID, timeout, pollInterval time.Duration) (*Job, error) {
	if pollInterval <= 0 {
		pollInterval = 100 * time.Millisecond
	}

	j, err := q.GetResult(jobID)
	if err != nil {
		return nil, err
	}
	if j.Status.Terminal() {
		return q.resolveTerminal(j)
	}

	q.doneMu.Lock()
	doneCh := q.done[jobID]
	q.doneMu.Unlock()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-doneCh:
			j, err := q.GetResult(jobID)
			if err != nil {
				return nil, err
			}
			return q.resolveTerminal(j)
		case <-ticker.C:
			j, err := q.GetResult(jobID)
			if err != nil {
				return nil, err
			}
			if j.Status.Terminal() {
				return q.resolveTerminal(j)
			}
		case <-deadline.C:
			return nil, fmt.Errorf("%w: %s after %s", ErrWaitTimeout, jobID, timeout)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (q *Queue) resolveTerminal(j *Job) (*Job, error) {
	if j.Status == StatusFailed {
		return j, &JobFailedError{JobID: j.ID, Kind: j.Kind, Reason: j.LastError()}
	}
	return j, nil
}

// JobSpec describes one item of a batch submission.
type JobSpec struct {
	Kind    string
	Payload interface{}
	Options []SubmitOption
}

// BatchItemError records a submission failure for one batch item.
type BatchItemError struct {
	Index int
	Kind  string
	Err   error
}

// Batch is the result of a best-effort batch submission.
type Batch struct {
	ID     id.BatchID
	Jobs   []*Job
	Errors []BatchItemError
}

// CreateBatch submits each spec independently; one item failing to submit
// does not prevent the others.
func (q *Queue) CreateBatch(ctx context.Context, specs []JobSpec) *Batch {
	batch := &Batch{ID: id.NewBatchID()}

	for i, spec := range specs {
		j, err := q.Submit(ctx, spec.Kind, spec.Payload, spec.Options...)
		if err != nil {
			batch.Errors = append(batch.Errors, BatchItemError{Index: i, Kind: spec.Kind, Err: err})
			continue
		}
		batch.Jobs = append(batch.Jobs, j)
	}

	q.logger.Info("batch created",
		zap.String("batch_id", batch.ID.String()),
		zap.Int("submitted", len(batch.Jobs)),
		zap.Int("rejected", len(batch.Errors)),
	)
	return batch
}

// BatchStatus aggregates the states of a set of jobs.
type BatchStatus struct {
	Completed int        `json:"completed"`
	Failed    int        `json:"failed"`
	Pending   int        `json:"pending"`
	Total     int        `json:"total_jobs"`
	Jobs      []*Job     `json:"jobs"`
	Missing   []id.JobID `json:"missing,omitempty"`
}

// MonitorBatch classifies each job as completed, failed or pending and
// returns the aggregate plus per-job snapshots. Read-only.
func (q *Queue) MonitorBatch(jobIDs []id.JobID) BatchStatus {
	status := BatchStatus{Total: len(jobIDs)}

	for _, jobID := range jobIDs {
		j, ok := q.store.Get(jobID)
		if !ok {
			status.Missing = append(status.Missing, jobID)
			continue
		}
		status.Jobs = append(status.Jobs, j)

		switch j.Status {
		case StatusCompleted:
			status.Completed++
		case StatusFailed:
			status.Failed++
		default:
			status.Pending++
		}
	}
	return status
}

// Cleanup removes completed jobs older than maxAge and returns how many were
// removed. Failed jobs are retained until explicitly deleted.
func (q *Queue) Cleanup(maxAge time.Duration) int {
	removed := q.store.CleanupCompleted(time.Now(), maxAge)
	if removed > 0 {
		q.logger.Info("cleaned up completed jobs", zap.Int("removed", removed))
	}
	return removed
}

// Delete removes a job regardless of status and drops its wait signal.
func (q *Queue) Delete(jobID id.JobID) bool {
	q.doneMu.Lock()
	delete(q.done, jobID)
	q.doneMu.Unlock()
	return q.store.Delete(jobID)
}

// Stats returns the number of jobs per status.
func (q *Queue) Stats() map[Status]int {
	return q.store.CountByStatus()
}

func marshalPayload(payload interface{}) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return p, nil
	case []byte:
		return json.RawMessage(p), nil
	default:
		return json.Marshal(payload)
	}
}
