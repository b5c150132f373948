package resilience

import (
	"errors"
	"sync"
	"time"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures the circuit breaker behavior
type Settings struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit
	FailureThreshold int
	// ResetTimeout is the period of the open state until a trial request is allowed
	ResetTimeout time.Duration
	// OnStateChange is called whenever the state changes
	OnStateChange func(name string, from State, to State)
}

// Counts holds the statistics for the circuit breaker
type Counts struct {
	Requests            uint32
	TotalSuccesses      uint32
	TotalFailures       uint32
	ConsecutiveFailures uint32
}

// Breaker guards calls to a single dependency target. After FailureThreshold
// consecutive failures it opens and rejects calls without an attempt; once
// ResetTimeout has elapsed it admits exactly one trial request (half-open)
// and closes again only if that trial succeeds.
type Breaker struct {
	name     string
	settings Settings

	mu          sync.Mutex
	state       State
	counts      Counts
	lastFailure time.Time
	trialActive bool
}

// New creates a new circuit breaker with the given settings
func New(name string, settings Settings) *Breaker {
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 5
	}
	if settings.ResetTimeout <= 0 {
		settings.ResetTimeout = 30 * time.Second
	}

	return &Breaker{
		name:     name,
		settings: settings,
		state:    StateClosed,
	}
}

// Name returns the name of the circuit breaker
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state of the circuit breaker
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState(time.Now())
}

// Counts returns a copy of the internal counts
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Allow reports whether a call may proceed. It returns ErrCircuitOpen while
// the circuit is open and the reset timeout has not elapsed, and
// ErrTooManyRequests when a half-open trial is already in flight. A nil
// error in half-open state claims the single trial slot and reports
// trial=true; the trial call must be limited to one attempt, and every
// admitted call must follow up with RecordSuccess or RecordFailure.
func (b *Breaker) Allow() (trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	switch b.currentState(now) {
	case StateOpen:
		return false, ErrCircuitOpen
	case StateHalfOpen:
		if b.trialActive {
			return false, ErrTooManyRequests
		}
		b.trialActive = true
		trial = true
	}

	b.counts.Requests++
	return trial, nil
}

// RecordSuccess records a successful call. In half-open state the trial
// success closes the circuit; in any state the consecutive failure count
// resets to zero.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state := b.currentState(now)

	b.counts.TotalSuccesses++
	b.counts.ConsecutiveFailures = 0
	b.trialActive = false

	if state == StateHalfOpen {
		b.setState(StateClosed, now)
	}
}

// RecordFailure records a failed call. A half-open trial failure reopens the
// circuit immediately; in closed state the circuit opens once the
// consecutive failure count reaches the threshold.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state := b.currentState(now)

	b.counts.TotalFailures++
	b.counts.ConsecutiveFailures++
	b.lastFailure = now
	b.trialActive = false

	switch state {
	case StateHalfOpen:
		b.setState(StateOpen, now)
	default:
		if int(b.counts.ConsecutiveFailures) >= b.settings.FailureThreshold {
			b.setState(StateOpen, now)
		}
	}
}

// currentState resolves the open-to-half-open transition lazily.
// Callers must hold b.mu.
func (b *Breaker) currentState(now time.Time) State {
	if b.state == StateOpen && now.Sub(b.lastFailure) >= b.settings.ResetTimeout {
		b.setState(StateHalfOpen, now)
	}
	return b.state
}

// setState changes the state of the circuit breaker.
// Callers must hold b.mu.
func (b *Breaker) setState(state State, _ time.Time) {
	if b.state == state {
		return
	}

	prev := b.state
	b.state = state
	b.trialActive = false

	if state == StateClosed {
		b.counts = Counts{}
	}

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, prev, state)
	}
}
