package ws

import (
	"sync"

	"github.com/google/uuid"
)

// Presence tracks who is online from the hub's connection state. Each
// connection joins under an opaque key; identity may be encoded either
// as the key itself or as a user_id field in the payload, and the
// snapshot unions both so neither encoding is lost.
type Presence struct {
	mu      sync.RWMutex
	entries map[string]map[string]interface{}
}

// NewPresence creates an empty presence tracker.
func NewPresence() *Presence {
	return &Presence{entries: make(map[string]map[string]interface{})}
}

// Join records a connection under its key with an arbitrary payload.
func (p *Presence) Join(key string, payload map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[key] = payload
}

// Leave removes a connection by key.
func (p *Presence) Leave(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, key)
}

// OnlineIDs rebuilds the online-user set from the current entries,
// deduplicating across both identity encodings.
func (p *Presence) OnlineIDs() []uuid.UUID {
	p.mu.RLock()
	defer p.mu.RUnlock()

	seen := make(map[uuid.UUID]struct{})
	for key, payload := range p.entries {
		if id, err := uuid.Parse(key); err == nil {
			seen[id] = struct{}{}
		}
		if payload == nil {
			continue
		}
		if raw, ok := payload["user_id"]; ok {
			switch v := raw.(type) {
			case string:
				if id, err := uuid.Parse(v); err == nil {
					seen[id] = struct{}{}
				}
			case uuid.UUID:
				seen[v] = struct{}{}
			}
		}
	}

	ids := make([]uuid.UUID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	return ids
}

// IsOnline reports whether a user id appears in the current snapshot.
func (p *Presence) IsOnline(userID uuid.UUID) bool {
	for _, id := range p.OnlineIDs() {
		if id == userID {
			return true
		}
	}
	return false
}
