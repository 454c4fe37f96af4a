// Package stream keeps per-conversation message state in memory and
// reconciles it against live insert/update/delete events, so reads of a
// warm conversation never touch the database.
package stream

import (
	"sync"

	"github.com/google/uuid"

	"github.com/andymarrow/stark-api/internal/model"
)

// DefaultWindow is how many recent messages a list holds.
const DefaultWindow = 100

// RefetchPinnedFunc resolves the most recent pinned message of a
// conversation when the in-memory window cannot answer (the pinned row
// may be older than the window). Returning nil means nothing is pinned.
type RefetchPinnedFunc func(conversationID uuid.UUID) *model.Message

// MessageList is the ordered recent-message window of one conversation.
// Events are applied in receipt order; inserts are idempotent by id and
// a deleted id never reappears through a later update.
type MessageList struct {
	mu             sync.RWMutex
	conversationID uuid.UUID
	window         int
	messages       []model.Message
	index          map[uuid.UUID]int
	pinned         *model.Message
	refetchPinned  RefetchPinnedFunc
}

// NewMessageList creates an empty list for a conversation.
func NewMessageList(conversationID uuid.UUID, window int, refetch RefetchPinnedFunc) *MessageList {
	if window <= 0 {
		window = DefaultWindow
	}
	return &MessageList{
		conversationID: conversationID,
		window:         window,
		index:          make(map[uuid.UUID]int),
		refetchPinned:  refetch,
	}
}

// Load replaces the list contents with messages already in ascending
// chronological order and derives the pinned banner from them.
func (l *MessageList) Load(messages []model.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.messages = make([]model.Message, 0, len(messages))
	l.index = make(map[uuid.UUID]int, len(messages))
	l.pinned = nil
	for _, m := range messages {
		if _, ok := l.index[m.ID]; ok {
			continue
		}
		l.index[m.ID] = len(l.messages)
		l.messages = append(l.messages, m)
		if m.Pinned {
			msg := m
			l.pinned = &msg
		}
	}
	l.trimLocked()
}

// ApplyInsert appends a message unless one with the same id is already
// present (guards against an optimistic echo colliding with the server
// echo).
func (l *MessageList) ApplyInsert(msg model.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.index[msg.ID]; ok {
		return
	}
	l.index[msg.ID] = len(l.messages)
	l.messages = append(l.messages, msg)
	if msg.Pinned {
		m := msg
		l.pinned = &m
	}
	l.trimLocked()
}

// ApplyUpdate replaces the entry in place by id. Updates for ids not in
// the list are dropped, which keeps a deleted message deleted. Pin
// transitions move the banner: a newly pinned row becomes the banner,
// and unpinning the banner row triggers a recompute.
func (l *MessageList) ApplyUpdate(msg model.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := l.index[msg.ID]
	if !ok {
		return
	}
	l.messages[i] = msg

	switch {
	case msg.Pinned:
		m := msg
		l.pinned = &m
	case l.pinned != nil && l.pinned.ID == msg.ID:
		l.recomputePinnedLocked()
	}
}

// ApplyDelete removes the entry by id, recomputing the pinned banner if
// the deleted row was it.
func (l *MessageList) ApplyDelete(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := l.index[id]
	if !ok {
		return
	}
	l.messages = append(l.messages[:i], l.messages[i+1:]...)
	delete(l.index, id)
	for j := i; j < len(l.messages); j++ {
		l.index[l.messages[j].ID] = j
	}

	if l.pinned != nil && l.pinned.ID == id {
		l.recomputePinnedLocked()
	}
}

// Messages returns a copy of the current window in order.
func (l *MessageList) Messages() []model.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.Message, len(l.messages))
	copy(out, l.messages)
	return out
}

// Len returns the number of messages in the window.
func (l *MessageList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Pinned returns the current pinned banner, or nil.
func (l *MessageList) Pinned() *model.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.pinned == nil {
		return nil
	}
	m := *l.pinned
	return &m
}

func (l *MessageList) recomputePinnedLocked() {
	l.pinned = nil
	if l.refetchPinned != nil {
		l.pinned = l.refetchPinned(l.conversationID)
		return
	}
	// Fall back to the window: latest pinned entry wins.
	for i := len(l.messages) - 1; i >= 0; i-- {
		if l.messages[i].Pinned {
			m := l.messages[i]
			l.pinned = &m
			return
		}
	}
}

func (l *MessageList) trimLocked() {
	if len(l.messages) <= l.window {
		return
	}
	drop := len(l.messages) - l.window
	for _, m := range l.messages[:drop] {
		delete(l.index, m.ID)
	}
	l.messages = append([]model.Message(nil), l.messages[drop:]...)
	for j := range l.messages {
		l.index[l.messages[j].ID] = j
	}
}
