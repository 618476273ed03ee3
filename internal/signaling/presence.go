package signaling

// Broadcaster fans room-scoped events out to the current members of a room.
type Broadcaster struct {
	rooms  *RoomRegistry
	conns  *ConnectionRegistry
	onSlow func(*Conn)
}

func NewBroadcaster(rooms *RoomRegistry, conns *ConnectionRegistry, onSlow func(*Conn)) *Broadcaster {
	return &Broadcaster{rooms: rooms, conns: conns, onSlow: onSlow}
}

// BroadcastToRoom queues frame for every member except exclude and returns
// how many members accepted it. An empty exclude reaches everyone.
func (b *Broadcaster) BroadcastToRoom(roomID string, f []byte, exclude string) int {
	delivered := 0
	for _, id := range b.rooms.Members(roomID) {
		if id == exclude {
			continue
		}
		c, ok := b.conns.Lookup(id)
		if !ok {
			// Membership outlived its connection; skip it
			continue
		}
		if c.Enqueue(f) {
			delivered++
			continue
		}
		// Queue full: the hub evicts c once this operation is done
		if b.onSlow != nil && !c.Closed() {
			b.onSlow(c)
		}
	}
	return delivered
}

// AnnounceCount sends the room's current size to all of its members. Callers
// invoke it after the mutation that changed the size.
func (b *Broadcaster) AnnounceCount(roomID string) int {
	count := b.rooms.Count(roomID)
	if count == 0 {
		return 0
	}
	return b.BroadcastToRoom(roomID, frame(EventParticipantCount, participantCountData{
		Count:  count,
		RoomID: roomID,
	}), "")
}

func (b *Broadcaster) MemberJoined(roomID, connID string) int {
	return b.BroadcastToRoom(roomID, frame(EventNewUserConnected, newUserData{NewlyJoinUser: connID}), connID)
}

// MemberLeft is sent after connID has already been removed from the room.
func (b *Broadcaster) MemberLeft(roomID, connID string) int {
	return b.BroadcastToRoom(roomID, frame(EventUserDisconnected, userDisconnectedData{
		ConnectionID: connID,
		RoomID:       roomID,
	}), connID)
}
