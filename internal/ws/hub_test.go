package ws

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luminadash/backend/internal/events"
)

func TestHubBroadcast(t *testing.T) {
	h := NewHub()
	a := h.Subscribe()
	b := h.Subscribe()
	require.Equal(t, 2, h.Subscribers())

	h.JobLifecycle(events.JobEvent{
		JobID:    "job_1",
		Kind:     "report",
		Status:   "active",
		Progress: 30,
	})

	for _, ch := range []chan JobUpdate{a, b} {
		update := <-ch
		assert.Equal(t, "job_update", update.Type)
		assert.Equal(t, "job_1", update.JobID)
		assert.Equal(t, 30, update.Progress)
		assert.Empty(t, update.Error)
	}
}

func TestHubCarriesError(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()

	h.JobLifecycle(events.JobEvent{
		JobID:  "job_2",
		Kind:   "report",
		Status: "failed",
		Err:    errors.New("boom"),
	})

	update := <-ch
	assert.Equal(t, "failed", update.Status)
	assert.Equal(t, "boom", update.Error)
}

func TestHubDropsForSlowListener(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()

	// Overflow the buffer; the broadcast must not block.
	for i := 0; i < 200; i++ {
		h.JobLifecycle(events.JobEvent{JobID: "job_3", Status: "active", Progress: i})
	}

	assert.Equal(t, 64, len(ch), "buffer capacity worth of events retained")
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub()
	ch := h.Subscribe()
	h.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, h.Subscribers())

	// Double unsubscribe is harmless.
	h.Unsubscribe(ch)
}
