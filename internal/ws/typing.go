package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// TypingTimeout is how long after the last keystroke the typing
// indicator auto-clears.
const TypingTimeout = 2 * time.Second

// TypingTracker debounces typing indicators: every Touch re-arms a
// timer, and when it expires the stop callback fires once. An explicit
// Stop cancels the timer and fires the callback immediately.
type TypingTracker struct {
	mu      sync.Mutex
	timers  map[typingKey]*time.Timer
	timeout time.Duration
	onStop  func(conversationID, userID uuid.UUID)
}

type typingKey struct {
	conversationID uuid.UUID
	userID         uuid.UUID
}

// NewTypingTracker creates a tracker that calls onStop after timeout of
// inactivity per (conversation, user).
func NewTypingTracker(timeout time.Duration, onStop func(conversationID, userID uuid.UUID)) *TypingTracker {
	if timeout <= 0 {
		timeout = TypingTimeout
	}
	return &TypingTracker{
		timers:  make(map[typingKey]*time.Timer),
		timeout: timeout,
		onStop:  onStop,
	}
}

// Touch marks the user as typing in a conversation, resetting the
// inactivity timer. Returns true when this is a fresh typing session
// (callers broadcast typing=true only then).
func (t *TypingTracker) Touch(conversationID, userID uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := typingKey{conversationID, userID}
	if timer, ok := t.timers[key]; ok {
		timer.Reset(t.timeout)
		return false
	}
	t.timers[key] = time.AfterFunc(t.timeout, func() {
		t.expire(key)
	})
	return true
}

// Stop clears the typing state immediately (explicit stop or disconnect).
func (t *TypingTracker) Stop(conversationID, userID uuid.UUID) {
	key := typingKey{conversationID, userID}
	t.mu.Lock()
	timer, ok := t.timers[key]
	if ok {
		timer.Stop()
		delete(t.timers, key)
	}
	t.mu.Unlock()

	if ok && t.onStop != nil {
		t.onStop(key.conversationID, key.userID)
	}
}

// StopAll clears every typing session of a user (connection teardown).
func (t *TypingTracker) StopAll(userID uuid.UUID) {
	t.mu.Lock()
	var expired []typingKey
	for key, timer := range t.timers {
		if key.userID == userID {
			timer.Stop()
			delete(t.timers, key)
			expired = append(expired, key)
		}
	}
	t.mu.Unlock()

	if t.onStop != nil {
		for _, key := range expired {
			t.onStop(key.conversationID, key.userID)
		}
	}
}

func (t *TypingTracker) expire(key typingKey) {
	t.mu.Lock()
	_, ok := t.timers[key]
	if ok {
		delete(t.timers, key)
	}
	t.mu.Unlock()

	if ok && t.onStop != nil {
		t.onStop(key.conversationID, key.userID)
	}
}
