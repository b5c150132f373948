package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminadash/backend/internal/infrastructure/config"
	"github.com/luminadash/backend/internal/infrastructure/resilience"
)

// testDefaults keeps retries fast and caching off unless a test opts in.
func testDefaults() config.ClientConfig {
	return config.ClientConfig{
		Timeout:           2 * time.Second,
		MaxRetries:        2,
		BaseDelay:         time.Millisecond,
		MaxDelay:          10 * time.Millisecond,
		BackoffMultiplier: 2.0,
		FailureThreshold:  3,
		ResetTimeout:      25 * time.Millisecond,
		CacheEnabled:      false,
		CacheTTL:          time.Minute,
	}
}

func newTestClient(t *testing.T, defaults config.ClientConfig, target TargetConfig) *Client {
	t.Helper()
	c, err := New(defaults, nil, nil, target)
	require.NoError(t, err)
	return c
}

func TestCallSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/ping", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, testDefaults(), TargetConfig{Name: "api", BaseURL: srv.URL})

	resp, err := c.Call(context.Background(), "api", Request{Method: http.MethodGet, Path: "/v1/ping"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
	assert.False(t, resp.Cached)
}

func TestCallUnknownTarget(t *testing.T) {
	c := newTestClient(t, testDefaults(), TargetConfig{Name: "api", BaseURL: "http://localhost:1"})

	_, err := c.Call(context.Background(), "nope", Request{Path: "/"})
	assert.ErrorIs(t, err, ErrUnknownTarget)
}

func TestCallRetriesTransientFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	c := newTestClient(t, testDefaults(), TargetConfig{Name: "api", BaseURL: srv.URL})

	resp, err := c.Call(context.Background(), "api", Request{Method: http.MethodGet, Path: "/"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", string(resp.Body))
	assert.Equal(t, int32(3), hits.Load())
}

func TestCallFailsFastOnValidationError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := newTestClient(t, testDefaults(), TargetConfig{Name: "api", BaseURL: srv.URL})

	_, err := c.Call(context.Background(), "api", Request{Method: http.MethodPost, Path: "/", Body: map[string]string{"x": "y"}})
	assert.ErrorIs(t, err, ErrValidationRejected)
	assert.Equal(t, int32(1), hits.Load(), "non-retryable rejection must not be retried")

	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, http.StatusUnprocessableEntity, callErr.Status)
	assert.Equal(t, 1, callErr.Attempts)
}

func TestCallExhaustsRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, testDefaults(), TargetConfig{Name: "api", BaseURL: srv.URL})

	_, err := c.Call(context.Background(), "api", Request{Method: http.MethodGet, Path: "/"})
	assert.ErrorIs(t, err, ErrDependencyError)
	assert.Equal(t, int32(3), hits.Load(), "MaxRetries=2 means 3 attempts total")
}

func TestCallPerCallRetryOverride(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(t, testDefaults(), TargetConfig{Name: "api", BaseURL: srv.URL})

	_, err := c.Call(context.Background(), "api", Request{
		Method: http.MethodGet,
		Path:   "/",
		Retry:  &RetryPolicy{MaxRetries: 0, BaseDelay: time.Millisecond},
	})
	assert.ErrorIs(t, err, ErrDependencyError)
	assert.Equal(t, int32(1), hits.Load())
}

func TestCircuitOpensAndBlocksAttempts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	defaults := testDefaults()
	defaults.MaxRetries = 0
	defaults.FailureThreshold = 2
	defaults.ResetTimeout = time.Minute
	c := newTestClient(t, defaults, TargetConfig{Name: "api", BaseURL: srv.URL})

	for i := 0; i < 2; i++ {
		_, err := c.Call(context.Background(), "api", Request{Method: http.MethodGet, Path: "/"})
		assert.ErrorIs(t, err, ErrDependencyError)
	}

	state, err := c.BreakerState("api")
	require.NoError(t, err)
	require.Equal(t, resilience.StateOpen, state)

	before := hits.Load()
	_, err = c.Call(context.Background(), "api", Request{Method: http.MethodGet, Path: "/"})
	assert.ErrorIs(t, err, ErrDependencyUnavailable)
	assert.Equal(t, before, hits.Load(), "open circuit must make zero network attempts")
}

func TestCircuitHalfOpenRecovery(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failing.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	defaults := testDefaults()
	defaults.MaxRetries = 0
	defaults.FailureThreshold = 1
	defaults.ResetTimeout = 20 * time.Millisecond
	c := newTestClient(t, defaults, TargetConfig{Name: "api", BaseURL: srv.URL})

	_, err := c.Call(context.Background(), "api", Request{Method: http.MethodGet, Path: "/"})
	require.ErrorIs(t, err, ErrDependencyError)

	// Dependency recovers; after the reset timeout one trial goes through
	// and closes the circuit.
	failing.Store(false)
	time.Sleep(30 * time.Millisecond)

	resp, err := c.Call(context.Background(), "api", Request{Method: http.MethodGet, Path: "/"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)

	state, err := c.BreakerState("api")
	require.NoError(t, err)
	assert.Equal(t, resilience.StateClosed, state)
}

func TestCircuitHalfOpenTrialFailureReopens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	defaults := testDefaults()
	defaults.MaxRetries = 0
	defaults.FailureThreshold = 1
	defaults.ResetTimeout = 20 * time.Millisecond
	c := newTestClient(t, defaults, TargetConfig{Name: "api", BaseURL: srv.URL})

	_, err := c.Call(context.Background(), "api", Request{Method: http.MethodGet, Path: "/"})
	require.ErrorIs(t, err, ErrDependencyError)

	time.Sleep(30 * time.Millisecond)

	// Trial attempt fails: straight back to open.
	_, err = c.Call(context.Background(), "api", Request{Method: http.MethodGet, Path: "/"})
	require.ErrorIs(t, err, ErrDependencyError)

	state, err := c.BreakerState("api")
	require.NoError(t, err)
	assert.Equal(t, resilience.StateOpen, state)
}

func TestCircuitHalfOpenTrialMakesSingleAttempt(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	// MaxRetries stays above zero so the trial restriction is what limits
	// the attempt count, not the retry budget.
	defaults := testDefaults()
	defaults.MaxRetries = 2
	defaults.FailureThreshold = 1
	defaults.ResetTimeout = 20 * time.Millisecond
	c := newTestClient(t, defaults, TargetConfig{Name: "api", BaseURL: srv.URL})

	_, err := c.Call(context.Background(), "api", Request{Method: http.MethodGet, Path: "/"})
	require.ErrorIs(t, err, ErrDependencyError)
	require.Equal(t, int32(3), hits.Load(), "closed-state call exhausts its retries")

	time.Sleep(30 * time.Millisecond)

	_, err = c.Call(context.Background(), "api", Request{Method: http.MethodGet, Path: "/"})
	require.ErrorIs(t, err, ErrDependencyError)
	assert.Equal(t, int32(4), hits.Load(), "half-open trial must make exactly one attempt")

	state, err := c.BreakerState("api")
	require.NoError(t, err)
	assert.Equal(t, resilience.StateOpen, state)
}

func TestPerCallRetryOverrideDrivesClassification(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	defaults := testDefaults()
	defaults.FailureThreshold = 2
	defaults.ResetTimeout = time.Minute
	c := newTestClient(t, defaults, TargetConfig{Name: "api", BaseURL: srv.URL})

	// The override declares 404 retryable for this call, so exhausting the
	// retry budget is a dependency failure and counts against the breaker.
	for i := 0; i < 2; i++ {
		_, err := c.Call(context.Background(), "api", Request{
			Method: http.MethodGet,
			Path:   "/missing",
			Retry: &RetryPolicy{
				MaxRetries:      1,
				BaseDelay:       time.Millisecond,
				RetryableStatus: map[int]bool{http.StatusNotFound: true},
			},
		})
		assert.ErrorIs(t, err, ErrDependencyError)
		assert.NotErrorIs(t, err, ErrValidationRejected)
	}
	assert.Equal(t, int32(4), hits.Load(), "each call retries the 404 once")

	state, err := c.BreakerState("api")
	require.NoError(t, err)
	assert.Equal(t, resilience.StateOpen, state)
}

func TestValidationRejectionDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	defaults := testDefaults()
	defaults.FailureThreshold = 2
	c := newTestClient(t, defaults, TargetConfig{Name: "api", BaseURL: srv.URL})

	for i := 0; i < 5; i++ {
		_, err := c.Call(context.Background(), "api", Request{Method: http.MethodPost, Path: "/"})
		assert.ErrorIs(t, err, ErrValidationRejected)
	}

	state, err := c.BreakerState("api")
	require.NoError(t, err)
	assert.Equal(t, resilience.StateClosed, state)
}

func TestReadOnlyResponseCaching(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("fresh"))
	}))
	defer srv.Close()

	defaults := testDefaults()
	defaults.CacheEnabled = true
	defaults.CacheTTL = 50 * time.Millisecond
	c := newTestClient(t, defaults, TargetConfig{Name: "api", BaseURL: srv.URL})

	first, err := c.Call(context.Background(), "api", Request{Method: http.MethodGet, Path: "/data"})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := c.Call(context.Background(), "api", Request{Method: http.MethodGet, Path: "/data"})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, int32(1), hits.Load(), "cached call must not reach the network")

	// After TTL expiry the next call attempts the dependency again.
	time.Sleep(60 * time.Millisecond)
	third, err := c.Call(context.Background(), "api", Request{Method: http.MethodGet, Path: "/data"})
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, int32(2), hits.Load())
}

func TestCacheBypassForcesAttempt(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	defaults := testDefaults()
	defaults.CacheEnabled = true
	c := newTestClient(t, defaults, TargetConfig{Name: "api", BaseURL: srv.URL})

	_, err := c.Call(context.Background(), "api", Request{Method: http.MethodGet, Path: "/"})
	require.NoError(t, err)

	_, err = c.Call(context.Background(), "api", Request{Method: http.MethodGet, Path: "/", BypassCache: true})
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestMutatingCallsAreNeverCached(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	defaults := testDefaults()
	defaults.CacheEnabled = true
	c := newTestClient(t, defaults, TargetConfig{Name: "api", BaseURL: srv.URL})

	for i := 0; i < 3; i++ {
		_, err := c.Call(context.Background(), "api", Request{Method: http.MethodPost, Path: "/"})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), hits.Load())
}

func TestPurgeCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	defaults := testDefaults()
	defaults.CacheEnabled = true
	c := newTestClient(t, defaults, TargetConfig{Name: "api", BaseURL: srv.URL})

	_, err := c.Call(context.Background(), "api", Request{Method: http.MethodGet, Path: "/"})
	require.NoError(t, err)
	require.NoError(t, c.PurgeCache("api"))

	_, err = c.Call(context.Background(), "api", Request{Method: http.MethodGet, Path: "/"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestCustomRetryClassifier(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	// Treat 500 as a permanent configuration error: no retries.
	defaults := testDefaults()
	c := newTestClient(t, defaults, TargetConfig{
		Name:    "api",
		BaseURL: srv.URL,
		Retry: &RetryPolicy{
			MaxRetries: 3,
			BaseDelay:  time.Millisecond,
			Retryable: func(status int, err error) bool {
				return err != nil || (status != http.StatusInternalServerError && status >= 500)
			},
		},
	})

	_, err := c.Call(context.Background(), "api", Request{Method: http.MethodGet, Path: "/"})
	assert.Error(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestCallTimeoutClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	defaults := testDefaults()
	defaults.MaxRetries = 0
	c := newTestClient(t, defaults, TargetConfig{Name: "api", BaseURL: srv.URL})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Call(ctx, "api", Request{Method: http.MethodGet, Path: "/slow"})
	assert.ErrorIs(t, err, ErrTimeout)
}
