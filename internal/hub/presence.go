package hub

import (
	"sort"
	"sync"

	"github.com/samber/lo"
)

// ActivityIdle is what a user is "doing" until they report otherwise.
const ActivityIdle = "Idle"

type presenceEntry struct {
	connIDs  map[string]struct{}
	activity string
}

// Presence is the single source of truth for who is online and what they
// are doing. It is an injected instance, never ambient global state; writes
// come only from the connection lifecycle, reads from the delivery fan-out
// and the monitor.
type Presence struct {
	mu      sync.RWMutex
	entries map[string]*presenceEntry
}

func NewPresence() *Presence {
	return &Presence{
		entries: make(map[string]*presenceEntry),
	}
}

// Register adds a connection for the user, creating the entry on first
// connection. Registering the same connection twice is a no-op.
func (p *Presence) Register(userID, connID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[userID]
	if !ok {
		entry = &presenceEntry{
			connIDs:  make(map[string]struct{}),
			activity: ActivityIdle,
		}
		p.entries[userID] = entry
	}
	entry.connIDs[connID] = struct{}{}
}

// Unregister removes a connection. When the last connection for the user
// goes away the whole entry is deleted, and exactly that removal reports
// wentOffline true.
func (p *Presence) Unregister(userID, connID string) (wentOffline bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[userID]
	if !ok {
		return false
	}
	if _, exists := entry.connIDs[connID]; !exists {
		return false
	}

	delete(entry.connIDs, connID)
	if len(entry.connIDs) == 0 {
		delete(p.entries, userID)
		return true
	}
	return false
}

// SetActivity overwrites the user's activity text, last write wins. A write
// for a user with no open connection is silently dropped: the disconnect
// already raced ahead of it.
func (p *Presence) SetActivity(userID, activity string) bool {
	if activity == "" {
		activity = ActivityIdle
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[userID]
	if !ok {
		return false
	}
	entry.activity = activity
	return true
}

// Activity returns the user's current activity, or ActivityIdle when the
// user is offline.
func (p *Presence) Activity(userID string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if entry, ok := p.entries[userID]; ok {
		return entry.activity
	}
	return ActivityIdle
}

func (p *Presence) IsOnline(userID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, ok := p.entries[userID]
	return ok
}

// OnlineUserIDs returns the current online set, sorted for stable payloads.
func (p *Presence) OnlineUserIDs() []string {
	p.mu.RLock()
	ids := lo.Keys(p.entries)
	p.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Activities returns a copy of the userId -> activity map.
func (p *Presence) Activities() map[string]string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	activities := make(map[string]string, len(p.entries))
	for userID, entry := range p.entries {
		activities[userID] = entry.activity
	}
	return activities
}

// ConnectionCount returns how many open connections the user has.
func (p *Presence) ConnectionCount(userID string) int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if entry, ok := p.entries[userID]; ok {
		return len(entry.connIDs)
	}
	return 0
}
