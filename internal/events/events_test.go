package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingSink struct {
	calls       int
	jobs        int
	transitions int
}

func (c *countingSink) CallAttempt(CallAttempt)             { c.calls++ }
func (c *countingSink) JobLifecycle(JobEvent)               { c.jobs++ }
func (c *countingSink) BreakerTransition(BreakerTransition) { c.transitions++ }

func TestMultiFansOut(t *testing.T) {
	a := &countingSink{}
	b := &countingSink{}
	m := Multi{a, b, Nop{}}

	m.CallAttempt(CallAttempt{Target: "billing"})
	m.JobLifecycle(JobEvent{JobID: "job_1"})
	m.JobLifecycle(JobEvent{JobID: "job_1"})
	m.BreakerTransition(BreakerTransition{Target: "billing", From: "closed", To: "open"})

	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 2, a.jobs)
	assert.Equal(t, 1, a.transitions)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, 2, b.jobs)
	assert.Equal(t, 1, b.transitions)
}
