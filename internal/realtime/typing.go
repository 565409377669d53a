// internal/realtime/typing.go
// Typing indicator coordinator. Tracks who is typing where and guarantees
// exactly one stop event per start, whether the stop is explicit, comes from
// expiry, or from a disconnect.

package realtime

import (
	"sync"
	"time"
)

// typingKey identifies one user typing in one scope. Scopes are
// "room:<id>" or "conv:<id>".
type typingKey struct {
	scope  string
	userID int64
}

// TypingCoordinator arms an expiry timer per active typist
type TypingCoordinator struct {
	mu     sync.Mutex
	timers map[typingKey]*typingEntry
	expiry time.Duration
}

type typingEntry struct {
	timer  *time.Timer
	onStop func()
}

// NewTypingCoordinator creates a coordinator with the given expiry window
func NewTypingCoordinator(expiry time.Duration) *TypingCoordinator {
	return &TypingCoordinator{
		timers: make(map[typingKey]*typingEntry),
		expiry: expiry,
	}
}

// Start marks a user as typing in a scope and returns true if this is a new
// typing episode (callers emit the start event only then). onStop fires
// exactly once when the episode ends.
func (c *TypingCoordinator) Start(scope string, userID int64, onStop func()) bool {
	key := typingKey{scope: scope, userID: userID}

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.timers[key]; ok {
		// Already typing: push the expiry out, keep the original stop
		entry.timer.Reset(c.expiry)
		return false
	}

	entry := &typingEntry{onStop: onStop}
	entry.timer = time.AfterFunc(c.expiry, func() {
		c.expire(key)
	})
	c.timers[key] = entry

	return true
}

// Stop ends a typing episode explicitly. Returns true if an episode was
// active; the stop callback has then been fired.
func (c *TypingCoordinator) Stop(scope string, userID int64) bool {
	key := typingKey{scope: scope, userID: userID}

	c.mu.Lock()
	entry, ok := c.timers[key]
	if ok {
		entry.timer.Stop()
		delete(c.timers, key)
	}
	c.mu.Unlock()

	if !ok {
		return false
	}

	entry.onStop()
	return true
}

// StopAllForUser ends every typing episode a user holds. Called when the
// user's last session disconnects mid-typing.
func (c *TypingCoordinator) StopAllForUser(userID int64) {
	c.mu.Lock()
	var stopped []*typingEntry
	for key, entry := range c.timers {
		if key.userID == userID {
			entry.timer.Stop()
			delete(c.timers, key)
			stopped = append(stopped, entry)
		}
	}
	c.mu.Unlock()

	for _, entry := range stopped {
		entry.onStop()
	}
}

// expire fires when a typing episode times out without an explicit stop
func (c *TypingCoordinator) expire(key typingKey) {
	c.mu.Lock()
	entry, ok := c.timers[key]
	if ok {
		delete(c.timers, key)
	}
	c.mu.Unlock()

	if ok {
		entry.onStop()
	}
}
