package signaling

import (
	"sort"
	"sync"
)

// RoomStat is a point-in-time view of one room.
type RoomStat struct {
	RoomID  string `json:"roomId"`
	Members int    `json:"members"`
}

// RoomRegistry maps a room id to its member connection ids. A room exists
// exactly while it has at least one member.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]map[string]struct{}
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms: make(map[string]map[string]struct{}),
	}
}

// CreateOrJoin adds connID to roomID, creating the room if needed, and
// returns the member count.
func (r *RoomRegistry) CreateOrJoin(roomID, connID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[roomID] = members
	}
	members[connID] = struct{}{}
	return len(members)
}

// Join adds connID to an existing room. It never creates one.
func (r *RoomRegistry) Join(roomID, connID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return 0, WrapError("join room", ErrRoomNotFound, roomID)
	}
	members[connID] = struct{}{}
	return len(members), nil
}

// Leave removes connID and deletes the room once it is empty. It returns the
// remaining member count.
func (r *RoomRegistry) Leave(roomID, connID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return 0
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, roomID)
		return 0
	}
	return len(members)
}

// Members returns a sorted snapshot of the member ids.
func (r *RoomRegistry) Members(roomID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members, ok := r.rooms[roomID]
	if !ok {
		return []string{}
	}
	return sortedKeys(members)
}

func (r *RoomRegistry) Contains(roomID, connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.rooms[roomID][connID]
	return ok
}

func (r *RoomRegistry) Count(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[roomID])
}

func (r *RoomRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Snapshot lists every room with its size, ordered by id.
func (r *RoomRegistry) Snapshot() []RoomStat {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make([]RoomStat, 0, len(r.rooms))
	for id, members := range r.rooms {
		stats = append(stats, RoomStat{RoomID: id, Members: len(members)})
	}
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].RoomID < stats[j].RoomID
	})
	return stats
}
