// Package client provides the resilient outbound client used for calls to
// external dependencies (email provider, AI completion service, analytics
// backends).
//
// Each named dependency target carries its own retry policy, circuit
// breaker, response cache, and optional rate limit:
//   - Bounded retry with exponential backoff and jitter for transient faults
//   - Circuit breaking to stop hammering a persistently unhealthy dependency
//   - TTL caching of successful read-only (GET/HEAD) responses
//   - Classification of final outcomes into a small error taxonomy
//
// Built on go-resty/resty over retryablehttp's pooled transport. Resty's own
// retry machinery is disabled; the attempt loop here owns retries so the
// breaker and the event sink observe every attempt.
//
// Example Usage:
//
//	cl, err := client.New(cfg.Client, logger, sink, client.TargetConfig{
//	    Name:    "email-provider",
//	    BaseURL: "https://mail.internal",
//	})
//	resp, err := cl.Call(ctx, "email-provider", client.Request{
//	    Method: "GET",
//	    Path:   "/v1/templates",
//	})
package client
