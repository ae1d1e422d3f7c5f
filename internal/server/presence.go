package server

import (
	"slices"
	"sync"
)

// Presence maps each online user to the id of its single active connection.
type Presence struct {
	mu      sync.RWMutex
	entries map[int]string
}

func NewPresence() *Presence {
	return &Presence{entries: make(map[int]string)}
}

// SetOnline records connId as the active connection for userId. If the user
// already had a different connection it is returned with replaced set.
func (p *Presence) SetOnline(userId int, connId string) (previous string, replaced bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	previous, ok := p.entries[userId]
	p.entries[userId] = connId

	return previous, ok && previous != connId
}

func (p *Presence) SetOffline(userId int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, userId)
}

// SetOfflineIfCurrent removes the entry only while it still points at connId.
func (p *Presence) SetOfflineIfCurrent(userId int, connId string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if current, ok := p.entries[userId]; ok && current == connId {
		delete(p.entries, userId)
		return true
	}

	return false
}

func (p *Presence) ConnectionFor(userId int) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	connId, ok := p.entries[userId]
	return connId, ok
}

// ListOnline returns the online user ids in ascending order.
func (p *Presence) ListOnline() []int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]int, 0, len(p.entries))
	for id := range p.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return ids
}

func (p *Presence) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}
