package server

import (
	"slices"
	"sync"
)

// PresenceRegistry tracks the live connections of every user. A user is
// online while at least one connection is registered.
type PresenceRegistry struct {
	mu    sync.Mutex
	conns map[int]map[string]struct{}
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		conns: make(map[int]map[string]struct{}),
	}
}

// Connect adds connId to the user's set and reports whether the user just
// came online.
func (p *PresenceRegistry) Connect(userId int, connId string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.conns[userId]
	if !ok {
		set = make(map[string]struct{})
		p.conns[userId] = set
	}
	set[connId] = struct{}{}

	return !ok
}

// Disconnect removes connId and reports whether the user just went offline.
// Removing an unknown connection is a no-op.
func (p *PresenceRegistry) Disconnect(userId int, connId string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.conns[userId]
	if !ok {
		return false
	}
	if _, ok := set[connId]; !ok {
		return false
	}

	delete(set, connId)
	if len(set) == 0 {
		delete(p.conns, userId)
		return true
	}

	return false
}

func (p *PresenceRegistry) IsOnline(userId int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.conns[userId]
	return ok
}

// Snapshot returns the online user ids in ascending order.
func (p *PresenceRegistry) Snapshot() []int {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]int, 0, len(p.conns))
	for id := range p.conns {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	return ids
}
