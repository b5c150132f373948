// Package resilience provides a circuit breaker for outbound dependency calls.
//
// Each dependency target owns one Breaker. The breaker tracks consecutive
// failures and moves through three states:
//
//	closed    — calls flow normally
//	open      — calls are rejected without an attempt
//	half-open — exactly one trial call is admitted after the reset timeout
//
// Transitions are linearized per breaker: closed -> open (threshold reached),
// open -> half-open (reset timeout elapsed), half-open -> closed (trial
// success) or half-open -> open (trial failure).
package resilience
