package stream

import (
	"sync"

	"github.com/google/uuid"
)

// Cache holds one MessageList per warm conversation. Lists are created
// lazily and dropped when a conversation is deleted.
type Cache struct {
	mu            sync.RWMutex
	lists         map[uuid.UUID]*MessageList
	window        int
	refetchPinned RefetchPinnedFunc
}

// NewCache creates a cache whose lists share the window size and pinned
// refetch hook.
func NewCache(window int, refetch RefetchPinnedFunc) *Cache {
	return &Cache{
		lists:         make(map[uuid.UUID]*MessageList),
		window:        window,
		refetchPinned: refetch,
	}
}

// Get returns the list for a conversation, or nil when cold.
func (c *Cache) Get(conversationID uuid.UUID) *MessageList {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lists[conversationID]
}

// GetOrCreate returns the list for a conversation, creating an empty
// one if needed. The second return value is false for a fresh list.
func (c *Cache) GetOrCreate(conversationID uuid.UUID) (*MessageList, bool) {
	c.mu.RLock()
	l, ok := c.lists[conversationID]
	c.mu.RUnlock()
	if ok {
		return l, true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.lists[conversationID]; ok {
		return l, true
	}
	l = NewMessageList(conversationID, c.window, c.refetchPinned)
	c.lists[conversationID] = l
	return l, false
}

// Drop evicts a conversation's list.
func (c *Cache) Drop(conversationID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.lists, conversationID)
}
