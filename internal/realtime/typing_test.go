// internal/realtime/typing_test.go

package realtime

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTypingStartIsEdgeTriggered(t *testing.T) {
	c := NewTypingCoordinator(time.Hour)
	defer c.StopAllForUser(1)

	assert.True(t, c.Start("room:1", 1, func() {}))

	// Repeats extend the episode instead of opening a new one
	assert.False(t, c.Start("room:1", 1, func() {}))
	assert.False(t, c.Start("room:1", 1, func() {}))

	// Same user, different scope is a separate episode
	assert.True(t, c.Start("conv:7", 1, func() {}))
	c.StopAllForUser(1)
}

func TestTypingStopFiresExactlyOnce(t *testing.T) {
	c := NewTypingCoordinator(time.Hour)

	var stops int32
	c.Start("room:1", 1, func() { atomic.AddInt32(&stops, 1) })

	assert.True(t, c.Stop("room:1", 1))
	assert.False(t, c.Stop("room:1", 1), "second stop must find nothing")
	assert.EqualValues(t, 1, atomic.LoadInt32(&stops))
}

func TestTypingExpiryFiresStop(t *testing.T) {
	c := NewTypingCoordinator(20 * time.Millisecond)

	stopped := make(chan struct{})
	c.Start("room:1", 1, func() { close(stopped) })

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("expiry never fired the stop callback")
	}

	// The expired episode is gone; an explicit stop is a no-op
	assert.False(t, c.Stop("room:1", 1))
}

func TestTypingRestartAfterStop(t *testing.T) {
	c := NewTypingCoordinator(time.Hour)
	defer c.StopAllForUser(1)

	c.Start("room:1", 1, func() {})
	c.Stop("room:1", 1)

	// A fresh episode after a stop is a new start
	assert.True(t, c.Start("room:1", 1, func() {}))
}

func TestStopAllForUserEndsEveryScope(t *testing.T) {
	c := NewTypingCoordinator(time.Hour)

	var stops int32
	c.Start("room:1", 1, func() { atomic.AddInt32(&stops, 1) })
	c.Start("room:2", 1, func() { atomic.AddInt32(&stops, 1) })
	c.Start("room:1", 2, func() { atomic.AddInt32(&stops, 1) })

	c.StopAllForUser(1)
	assert.EqualValues(t, 2, atomic.LoadInt32(&stops))

	// User 2's episode survived
	assert.True(t, c.Stop("room:1", 2))
	c.StopAllForUser(2)
}
