package signaling

import (
	"sort"
	"sync"
)

type connRecord struct {
	conn  *Conn
	rooms map[string]struct{}
}

// ConnectionRegistry tracks every live connection and the rooms it joined.
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[string]*connRecord
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns: make(map[string]*connRecord),
	}
}

// Register adds a connection with no memberships. Registering an id twice
// replaces the earlier record.
func (r *ConnectionRegistry) Register(c *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[c.ID] = &connRecord{
		conn:  c,
		rooms: make(map[string]struct{}),
	}
}

func (r *ConnectionRegistry) AddMembership(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.conns[connID]; ok {
		rec.rooms[roomID] = struct{}{}
	}
}

func (r *ConnectionRegistry) RemoveMembership(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.conns[connID]; ok {
		delete(rec.rooms, roomID)
	}
}

// Remove deletes the connection and returns the rooms it belonged to.
// Removing an unknown id returns an empty slice.
func (r *ConnectionRegistry) Remove(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.conns[connID]
	if !ok {
		return []string{}
	}
	delete(r.conns, connID)
	return sortedKeys(rec.rooms)
}

// Lookup returns the live transport handle for an id.
func (r *ConnectionRegistry) Lookup(connID string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.conns[connID]
	if !ok {
		return nil, false
	}
	return rec.conn, true
}

func (r *ConnectionRegistry) Rooms(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.conns[connID]
	if !ok {
		return []string{}
	}
	return sortedKeys(rec.rooms)
}

// All returns every registered handle.
func (r *ConnectionRegistry) All() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]*Conn, 0, len(r.conns))
	for _, rec := range r.conns {
		all = append(all, rec.conn)
	}
	return all
}

func (r *ConnectionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
