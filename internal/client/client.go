package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/luminadash/backend/internal/events"
	"github.com/luminadash/backend/internal/infrastructure/config"
	"github.com/luminadash/backend/internal/infrastructure/resilience"
	"github.com/luminadash/backend/internal/logging"
)

// Request describes one outbound call against a dependency target.
type Request struct {
	Method string
	Path   string
	Query  map[string]string
	Header map[string]string
	Body   interface{}

	// BypassCache forces a network attempt even when a fresh cache entry exists.
	BypassCache bool

	// Retry overrides the target's retry policy for this call only.
	Retry *RetryPolicy
}

// Response is the successful payload of a Call.
type Response struct {
	Status  int
	Body    []byte
	Header  http.Header
	Latency time.Duration
	Cached  bool
}

// Client performs calls against named dependency targets while shielding the
// caller from transient failures (bounded retry with exponential backoff and
// jitter) and from persistently unhealthy dependencies (per-target circuit
// breaker). Successful read-only responses are cached per target.
//
// A Client is an explicit instance: construct one per composition root and
// pass it to collaborators. All target configuration is fixed at
// construction.
type Client struct {
	targets map[string]*target
	logger  *logging.Logger
	sink    events.Sink
}

// New builds a client for the given dependency targets.
func New(defaults config.ClientConfig, logger *logging.Logger, sink events.Sink, targets ...TargetConfig) (*Client, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	if sink == nil {
		sink = events.Nop{}
	}

	c := &Client{
		targets: make(map[string]*target, len(targets)),
		logger:  logger.Named("client"),
		sink:    sink,
	}

	for _, cfg := range targets {
		if cfg.Name == "" {
			return nil, fmt.Errorf("dependency target requires a name")
		}
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("dependency target %q requires a base URL", cfg.Name)
		}
		if _, dup := c.targets[cfg.Name]; dup {
			return nil, fmt.Errorf("dependency target %q configured twice", cfg.Name)
		}
		c.targets[cfg.Name] = newTarget(cfg, defaults, c.onBreakerStateChange)
	}

	return c, nil
}

func (c *Client) onBreakerStateChange(name string, from, to resilience.State) {
	c.logger.Warn("circuit breaker state change",
		zap.String("target", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
	c.sink.BreakerTransition(events.BreakerTransition{
		Target: name,
		From:   from.String(),
		To:     to.String(),
	})
}

// Targets returns the configured dependency target names, sorted.
func (c *Client) Targets() []string {
	names := make([]string, 0, len(c.targets))
	for name := range c.targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BreakerState returns the breaker state for a target, for health reporting.
func (c *Client) BreakerState(targetName string) (resilience.State, error) {
	t, ok := c.targets[targetName]
	if !ok {
		return resilience.StateClosed, fmt.Errorf("%w: %s", ErrUnknownTarget, targetName)
	}
	return t.breaker.State(), nil
}

// PurgeCache drops all cached responses for a target.
func (c *Client) PurgeCache(targetName string) error {
	t, ok := c.targets[targetName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTarget, targetName)
	}
	t.cache.purge()
	return nil
}

// Call performs the request against the named target.
//
// Order of operations: cache lookup (read-only calls), circuit gate, attempt
// loop with backoff, breaker outcome recording, cache population. Retries are
// sequential within the call; attempt failures are never surfaced
// individually — only the final classified outcome is returned.
func (c *Client) Call(ctx context.Context, targetName string, req Request) (*Response, error) {
	t, ok := c.targets[targetName]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTarget, targetName)
	}

	if req.Method == "" {
		req.Method = http.MethodGet
	}

	readOnly := req.Method == http.MethodGet || req.Method == http.MethodHead
	key := cacheKey(req.Method, req.Path, req.Query)

	// The cache is only ever consulted or populated for idempotent calls.
	if readOnly && t.caching.Enabled && !req.BypassCache {
		if resp, hit := t.cache.get(key); hit {
			return resp, nil
		}
	}

	trial, err := t.breaker.Allow()
	if err != nil {
		c.sink.CallAttempt(events.CallAttempt{
			Target: targetName,
			Method: req.Method,
			Path:   req.Path,
			Err:    err,
		})
		return nil, &CallError{
			Target: targetName,
			Method: req.Method,
			Path:   req.Path,
			Class:  ErrDependencyUnavailable,
			cause:  err,
		}
	}

	retry := t.retry
	if req.Retry != nil {
		retry = normalizeRetry(*req.Retry)
	}
	if trial {
		// The half-open trial probes with exactly one attempt; a failed
		// probe reopens the circuit without consuming retries.
		retry.MaxRetries = 0
	}

	resp, callErr := c.attemptLoop(ctx, t, req, retry)
	if callErr != nil {
		// ValidationRejected means the dependency answered and is healthy;
		// it does not count against the breaker.
		if errors.Is(callErr.Class, ErrValidationRejected) {
			t.breaker.RecordSuccess()
		} else {
			t.breaker.RecordFailure()
		}
		return nil, callErr
	}

	t.breaker.RecordSuccess()

	if readOnly && t.caching.Enabled {
		t.cache.put(key, resp)
	}
	return resp, nil
}

// attemptLoop runs up to MaxRetries+1 sequential attempts, classifying each
// failure and backing off between retryable ones.
func (c *Client) attemptLoop(ctx context.Context, t *target, req Request, retry RetryPolicy) (*Response, *CallError) {
	maxAttempts := retry.MaxRetries + 1

	var lastStatus int
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, c.classify(t, req, retry, attempt, lastStatus, err)
		}

		start := time.Now()
		resp, err := c.execute(ctx, t, req)
		latency := time.Since(start)

		status := 0
		if resp != nil {
			status = resp.Status
		}
		c.sink.CallAttempt(events.CallAttempt{
			Target:  t.cfg.Name,
			Method:  req.Method,
			Path:    req.Path,
			Attempt: attempt + 1,
			Status:  status,
			Err:     err,
			Latency: latency,
		})

		if err == nil && status >= 200 && status < 300 {
			resp.Latency = latency
			return resp, nil
		}

		lastStatus = status
		lastErr = err
		if lastErr == nil {
			lastErr = fmt.Errorf("unexpected status %d", status)
		}

		if !c.retryable(t, retry, status, err) {
			return nil, c.classify(t, req, retry, attempt+1, status, lastErr)
		}
		if attempt == maxAttempts-1 {
			break
		}

		if err := sleep(ctx, backoffDelay(retry, attempt)); err != nil {
			return nil, c.classify(t, req, retry, attempt+1, lastStatus, err)
		}
	}

	return nil, c.classify(t, req, retry, maxAttempts, lastStatus, lastErr)
}

// execute performs a single attempt through resty.
func (c *Client) execute(ctx context.Context, t *target, req Request) (*Response, error) {
	r := t.rest.R().SetContext(ctx)
	if len(req.Query) > 0 {
		r.SetQueryParams(req.Query)
	}
	for k, v := range req.Header {
		r.SetHeader(k, v)
	}
	if req.Body != nil {
		r.SetBody(req.Body)
	}

	resp, err := r.Execute(req.Method, req.Path)
	if err != nil {
		return nil, err
	}

	return &Response{
		Status: resp.StatusCode(),
		Body:   resp.Body(),
		Header: resp.Header(),
	}, nil
}

// retryable classifies a failed attempt. No response (network error or
// attempt timeout) is retryable; a response is retryable when its status is
// in the effective retryable class. A custom Retryable func replaces both.
func (c *Client) retryable(t *target, retry RetryPolicy, status int, err error) bool {
	if retry.Retryable != nil {
		return retry.Retryable(status, err)
	}
	if err != nil {
		return true
	}
	return c.statusRetryable(t, retry, status)
}

// statusRetryable resolves a response status against the effective retry
// policy for the call, which may be a per-call override rather than the
// target's own.
func (c *Client) statusRetryable(t *target, retry RetryPolicy, status int) bool {
	if retry.Retryable != nil {
		return retry.Retryable(status, nil)
	}
	if retry.RetryableStatus != nil {
		return retry.RetryableStatus[status]
	}
	return t.retryableStatus(status)
}

// classify builds the final CallError for a failed call. The error class
// follows the same policy that drove the attempt loop: a 4xx the policy
// considers retryable is a dependency failure, not a rejection.
func (c *Client) classify(t *target, req Request, retry RetryPolicy, attempts, status int, cause error) *CallError {
	class := ErrDependencyError
	switch {
	case cause != nil && (errors.Is(cause, context.DeadlineExceeded) || errors.Is(cause, context.Canceled)):
		class = ErrTimeout
	case status >= 400 && status < 500 && !c.statusRetryable(t, retry, status):
		class = ErrValidationRejected
	}

	return &CallError{
		Target:   t.cfg.Name,
		Method:   req.Method,
		Path:     req.Path,
		Status:   status,
		Attempts: attempts,
		Class:    class,
		cause:    cause,
	}
}
