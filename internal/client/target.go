package client

import (
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/luminadash/backend/internal/infrastructure/config"
	"github.com/luminadash/backend/internal/infrastructure/resilience"
)

// RetryPolicy shapes the attempt loop for a dependency target.
type RetryPolicy struct {
	// MaxRetries is the number of attempts beyond the first.
	MaxRetries int
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps the computed backoff delay (before jitter).
	MaxDelay time.Duration
	// Multiplier grows the delay each attempt. Values below 1 are treated as 2.
	Multiplier float64
	// JitterFraction bounds the random jitter added to each delay, as a
	// fraction of the computed delay. Defaults to 0.2.
	JitterFraction float64
	// RetryableStatus overrides the default retryable status set
	// (408, 429, and all 5xx). Nil keeps the default.
	RetryableStatus map[int]bool
	// Retryable, when set, fully replaces status-based classification.
	// It receives the response status (0 when no response arrived) and the
	// transport error, and reports whether the attempt may be retried.
	Retryable func(status int, err error) bool
}

// BreakerPolicy configures the target's circuit breaker.
type BreakerPolicy struct {
	// FailureThreshold is the consecutive-failure count that opens the circuit.
	FailureThreshold int
	// ResetTimeout is the open-state cool-down before a trial is allowed.
	ResetTimeout time.Duration
}

// CachePolicy configures read-only response caching.
type CachePolicy struct {
	Enabled bool
	TTL     time.Duration
}

// TargetConfig describes one named external dependency. Immutable after the
// client is constructed.
type TargetConfig struct {
	// Name identifies the dependency (e.g. "email-provider").
	Name string
	// BaseURL is the dependency's base address.
	BaseURL string
	// Timeout bounds each individual attempt. Zero uses the client default.
	Timeout time.Duration
	// Retry overrides the client's default retry policy when non-nil.
	Retry *RetryPolicy
	// Breaker overrides the client's default breaker policy when non-nil.
	Breaker *BreakerPolicy
	// Cache overrides the client's default cache policy when non-nil.
	Cache *CachePolicy
	// RequestsPerSecond rate-limits calls to this target. Zero = unlimited.
	RequestsPerSecond float64
	// Headers are applied to every request against this target.
	Headers map[string]string
}

// target is the runtime state for one dependency: its transport, breaker,
// cache and effective policies.
type target struct {
	cfg     TargetConfig
	rest    *resty.Client
	breaker *resilience.Breaker
	cache   *responseCache
	limiter *rate.Limiter
	retry   RetryPolicy
	caching CachePolicy
}

// defaultRetryPolicy derives the baseline retry policy from configuration.
func defaultRetryPolicy(cfg config.ClientConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries:     cfg.MaxRetries,
		BaseDelay:      cfg.BaseDelay,
		MaxDelay:       cfg.MaxDelay,
		Multiplier:     cfg.BackoffMultiplier,
		JitterFraction: 0.2,
	}
}

func normalizeRetry(p RetryPolicy) RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 500 * time.Millisecond
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2.0
	}
	if p.JitterFraction <= 0 {
		p.JitterFraction = 0.2
	}
	return p
}

// newTarget builds the per-dependency runtime state. The resty client rides
// on retryablehttp's pooled transport; resty's own retry loop is disabled
// because the attempt loop lives in Call.
func newTarget(cfg TargetConfig, defaults config.ClientConfig, onStateChange func(name string, from, to resilience.State)) *target {
	transport := retryablehttp.NewClient()
	transport.RetryMax = 0
	transport.Logger = nil

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaults.Timeout
	}

	rest := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetRetryCount(0).
		SetHeader("User-Agent", "luminadash-backend/1.0").
		SetTransport(transport.HTTPClient.Transport)
	for k, v := range cfg.Headers {
		rest.SetHeader(k, v)
	}

	retry := defaultRetryPolicy(defaults)
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}
	retry = normalizeRetry(retry)

	breakerPolicy := BreakerPolicy{
		FailureThreshold: defaults.FailureThreshold,
		ResetTimeout:     defaults.ResetTimeout,
	}
	if cfg.Breaker != nil {
		breakerPolicy = *cfg.Breaker
	}

	caching := CachePolicy{Enabled: defaults.CacheEnabled, TTL: defaults.CacheTTL}
	if cfg.Cache != nil {
		caching = *cfg.Cache
	}
	if caching.TTL <= 0 {
		caching.TTL = defaults.CacheTTL
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &target{
		cfg: cfg,
		breaker: resilience.New(cfg.Name, resilience.Settings{
			FailureThreshold: breakerPolicy.FailureThreshold,
			ResetTimeout:     breakerPolicy.ResetTimeout,
			OnStateChange:    onStateChange,
		}),
		rest:    rest,
		cache:   newResponseCache(caching.TTL),
		limiter: limiter,
		retry:   retry,
		caching: caching,
	}
}

// retryableStatus reports whether a response status is in the retryable class.
func (t *target) retryableStatus(status int) bool {
	if t.retry.RetryableStatus != nil {
		return t.retry.RetryableStatus[status]
	}
	switch status {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return status >= 500
}
