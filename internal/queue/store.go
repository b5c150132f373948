package queue

import (
	"sync"
	"time"

	"github.com/luminadash/backend/internal/shared/id"
)

// Store is the in-memory job store shared by the submission path and all
// workers. All accessors copy jobs in and out, so readers always observe a
// consistent snapshot while a worker mutates the stored record.
//
// The queue is deliberately not durable: jobs live only for the process
// lifetime (see package doc).
type Store struct {
	mu   sync.RWMutex
	jobs map[id.JobID]*Job
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[id.JobID]*Job),
	}
}

// Insert stores a new job.
func (s *Store) Insert(j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[j.ID]; exists {
		return ErrJobExists
	}
	s.jobs[j.ID] = j.clone()
	return nil
}

// Get returns a snapshot of the job.
func (s *Store) Get(jobID id.JobID) (*Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return nil, false
	}
	return j.clone(), true
}

// Claim atomically selects the highest-priority eligible job, marks it
// active with a start timestamp, and returns a snapshot. Eligibility:
// waiting, or delayed with RunAt <= now (the delayed -> waiting transition
// happens here). Ordering: priority descending, then creation time ascending
// (FIFO within a priority tier).
func (s *Store) Claim(now time.Time) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *Job
	for _, j := range s.jobs {
		switch j.Status {
		case StatusWaiting:
		case StatusDelayed:
			if j.RunAt.After(now) {
				continue
			}
		default:
			continue
		}

		if best == nil ||
			j.Priority > best.Priority ||
			(j.Priority == best.Priority && j.CreatedAt.Before(best.CreatedAt)) {
			best = j
		}
	}

	if best == nil {
		return nil, false
	}

	best.Status = StatusActive
	started := now
	best.StartedAt = &started
	return best.clone(), true
}

// Update overwrites the stored job with the given state.
func (s *Store) Update(j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[j.ID]; !exists {
		return ErrJobNotFound
	}
	s.jobs[j.ID] = j.clone()
	return nil
}

// SetProgress updates only the progress field of an active job.
func (s *Store) SetProgress(jobID id.JobID, pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if j, ok := s.jobs[jobID]; ok && j.Status == StatusActive {
		j.Progress = pct
	}
}

// Delete removes a job.
func (s *Store) Delete(jobID id.JobID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[jobID]; !ok {
		return false
	}
	delete(s.jobs, jobID)
	return true
}

// CleanupCompleted removes completed jobs whose completion is older than
// maxAge and returns how many were removed. Failed jobs are retained; they
// carry diagnostic value and are only removed explicitly.
func (s *Store) CleanupCompleted(now time.Time, maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for jobID, j := range s.jobs {
		if j.Status != StatusCompleted || j.CompletedAt == nil {
			continue
		}
		if now.Sub(*j.CompletedAt) > maxAge {
			delete(s.jobs, jobID)
			removed++
		}
	}
	return removed
}

// CountByStatus returns the number of jobs per status.
func (s *Store) CountByStatus() map[Status]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[Status]int)
	for _, j := range s.jobs {
		counts[j.Status]++
	}
	return counts
}

// Len returns the number of stored jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
