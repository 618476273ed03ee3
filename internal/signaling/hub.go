package signaling

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// RoomEventKind names a room lifecycle transition reported to an Observer.
type RoomEventKind string

const (
	RoomOpened   RoomEventKind = "room_opened"
	MemberJoined RoomEventKind = "member_joined"
	MemberLeft   RoomEventKind = "member_left"
	RoomClosed   RoomEventKind = "room_closed"
)

// RoomEvent describes one membership change. Members is the size after it.
type RoomEvent struct {
	Kind    RoomEventKind
	RoomID  string
	ConnID  string
	Members int
	At      time.Time
}

// Observer receives room lifecycle events from the hub goroutine.
// Implementations must not block.
type Observer interface {
	RoomEvent(ev RoomEvent)
}

// Stats is a snapshot served on /stats.
type Stats struct {
	Connections int        `json:"connections"`
	Rooms       []RoomStat `json:"rooms"`
	StartedAt   time.Time  `json:"startedAt"`
}

type inboundFrame struct {
	conn  *Conn
	frame []byte
}

// Hub is the signaling coordinator. One goroutine (Run) owns every
// membership mutation, so a mutation and the broadcasts it causes are never
// interleaved with another connection's.
type Hub struct {
	Conns *ConnectionRegistry
	Rooms *RoomRegistry

	relay    *Relay
	presence *Broadcaster
	observer Observer

	register   chan *Conn
	unregister chan *Conn
	inbound    chan inboundFrame
	done       chan struct{}

	evictions []*Conn
	startedAt time.Time
}

type Option func(*Hub)

// WithObserver attaches a lifecycle observer such as the audit recorder.
func WithObserver(o Observer) Option {
	return func(h *Hub) {
		h.observer = o
	}
}

// NewHub creates a new Hub instance.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		Conns:      NewConnectionRegistry(),
		Rooms:      NewRoomRegistry(),
		register:   make(chan *Conn),
		unregister: make(chan *Conn),
		inbound:    make(chan inboundFrame, 256),
		done:       make(chan struct{}),
		startedAt:  time.Now(),
	}
	h.relay = NewRelay(h.Conns, h.evict)
	h.presence = NewBroadcaster(h.Rooms, h.Conns, h.evict)
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register hands a freshly upgraded connection to the hub. It returns false
// once the hub has stopped.
func (h *Hub) Register(c *Conn) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister reports that the transport behind c is gone.
func (h *Hub) Unregister(c *Conn) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Submit queues one inbound frame from c for dispatch.
func (h *Hub) Submit(c *Conn, frame []byte) bool {
	select {
	case h.inbound <- inboundFrame{conn: c, frame: frame}:
		return true
	case <-h.done:
		return false
	}
}

// Run processes registrations, frames and disconnects until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.connect(c)
		case c := <-h.unregister:
			h.disconnect(c)
		case in := <-h.inbound:
			h.dispatch(in.conn, in.frame)
		}
	}
}

func (h *Hub) Stats() Stats {
	return Stats{
		Connections: h.Conns.Len(),
		Rooms:       h.Rooms.Snapshot(),
		StartedAt:   h.startedAt,
	}
}

func (h *Hub) shutdown() {
	close(h.done)
	for _, c := range h.Conns.All() {
		c.Close()
	}
	slog.Info("hub stopped", "connections", h.Conns.Len(), "rooms", h.Rooms.Len())
}

func (h *Hub) connect(c *Conn) {
	h.Conns.Register(c)
	slog.Info("client registered", "conn", c.ID)
	h.send(c, frame(EventConnected, connectedData{ConnectionID: c.ID}))
	h.drainEvictions()
}

func (h *Hub) disconnect(c *Conn) {
	h.drop(c)
	h.drainEvictions()
}

func (h *Hub) dispatch(c *Conn, raw []byte) {
	h.handleFrame(c, raw)
	h.drainEvictions()
}

// handleFrame decodes one inbound frame and applies it.
func (h *Hub) handleFrame(c *Conn, raw []byte) {
	// Frames still queued from a connection that is already gone are ignored
	if cur, ok := h.Conns.Lookup(c.ID); !ok || cur != c {
		return
	}

	// Malformed frames get an error reply and touch no state
	msg, err := Decode(raw)
	if err != nil {
		slog.Warn("rejected frame", "conn", c.ID, "err", err)
		h.send(c, errorFrame(err.Error()))
		return
	}

	// A panicking handler loses this operation only
	defer func() {
		if r := recover(); r != nil {
			slog.Error("dropped operation", "conn", c.ID, "event", msg.Event(), "err", ErrInternalFault, "panic", r)
		}
	}()

	// Dispatch by message type
	switch m := msg.(type) {
	case *CreateRoom:
		h.createRoom(c, strings.TrimSpace(m.RoomID))
	case *JoinRoom:
		h.joinRoom(c, strings.TrimSpace(m.RoomID))
	case *LeaveRoom:
		h.leaveRoom(c, strings.TrimSpace(m.RoomID))
	case *SendOffer:
		h.forward(KindOffer, c, m.NewlyJoinUser, m.Offer)
	case *SendAnswer:
		h.forward(KindAnswer, c, m.AlreadyJoinedUser, m.Answer)
	case *ICECandidate:
		h.forward(KindCandidate, c, m.To, m.Candidate)
	case *SendMessage:
		roomID := strings.TrimSpace(m.RoomID)
		h.presence.BroadcastToRoom(roomID, frame(EventReceiveMessage, receiveMessageData{
			Message: m.Message,
			From:    c.ID,
			RoomID:  roomID,
		}), c.ID)
	case *UserStatus:
		h.presence.BroadcastToRoom(strings.TrimSpace(m.RoomID), statusUpdateFrame(m.Status, c.ID), c.ID)
	case *Stream:
		h.presence.BroadcastToRoom(strings.TrimSpace(m.RoomID), frame(EventStream, streamData{Stream: m.Stream}), c.ID)
	}
}

func (h *Hub) createRoom(c *Conn, roomID string) {
	if h.Rooms.Contains(roomID, c.ID) {
		h.send(c, frame(EventNavigateHost, navigateHostData{JoinHostToRoomID: roomID}))
		return
	}

	existed := h.Rooms.Count(roomID) > 0
	count := h.Rooms.CreateOrJoin(roomID, c.ID)
	h.Conns.AddMembership(c.ID, roomID)
	if existed {
		slog.Info("client joined room via create", "room", roomID, "conn", c.ID, "members", count)
	} else {
		slog.Info("room created", "room", roomID, "conn", c.ID)
		h.observe(RoomOpened, roomID, c.ID, count)
	}
	h.observe(MemberJoined, roomID, c.ID, count)

	h.send(c, frame(EventNavigateHost, navigateHostData{JoinHostToRoomID: roomID}))
	if existed {
		h.presence.MemberJoined(roomID, c.ID)
	}
	h.presence.AnnounceCount(roomID)
}

func (h *Hub) joinRoom(c *Conn, roomID string) {
	if h.Rooms.Contains(roomID, c.ID) {
		h.send(c, frame(EventJoinTheUser, joinTheUserData{JoinNewUserToRoomID: roomID}))
		return
	}

	count, err := h.Rooms.Join(roomID, c.ID)
	if errors.Is(err, ErrRoomNotFound) {
		slog.Info("room join failed", "room", roomID, "conn", c.ID, "err", err)
		h.send(c, frame(EventRoomNotFound, roomData{RoomID: roomID}))
		return
	}
	h.Conns.AddMembership(c.ID, roomID)
	slog.Info("client joined room", "room", roomID, "conn", c.ID, "members", count)
	h.observe(MemberJoined, roomID, c.ID, count)

	h.send(c, frame(EventJoinTheUser, joinTheUserData{JoinNewUserToRoomID: roomID}))
	h.presence.MemberJoined(roomID, c.ID)
	h.presence.AnnounceCount(roomID)
}

func (h *Hub) leaveRoom(c *Conn, roomID string) {
	if h.Rooms.Contains(roomID, c.ID) {
		h.Conns.RemoveMembership(c.ID, roomID)
		h.release(roomID, c.ID)
	}
	h.send(c, frame(EventLeftRoom, roomData{RoomID: roomID}))
}

func (h *Hub) forward(kind string, c *Conn, to string, payload []byte) {
	err := h.relay.Relay(kind, c.ID, strings.TrimSpace(to), payload)
	if err != nil && errors.Is(err, ErrInternalFault) {
		slog.Error("relay failed", "conn", c.ID, "err", err)
	}
}

// release removes connID from roomID and tells the survivors.
func (h *Hub) release(roomID, connID string) {
	remaining := h.Rooms.Leave(roomID, connID)
	h.observe(MemberLeft, roomID, connID, remaining)

	// Last member gone: the room is deleted and nobody is left to notify
	if remaining == 0 {
		slog.Info("room deleted", "room", roomID)
		h.observe(RoomClosed, roomID, connID, 0)
		return
	}
	// Tell the survivors who left, then the new size
	slog.Info("peer left room", "room", roomID, "conn", connID, "members", remaining)
	h.presence.MemberLeft(roomID, connID)
	h.presence.AnnounceCount(roomID)
}

// drop unwinds every membership of c. A second call for the same connection
// finds nothing registered and only closes the handle again.
func (h *Hub) drop(c *Conn) {
	defer c.Close()

	// Already dropped, or replaced by a newer connection with the same id
	if cur, ok := h.Conns.Lookup(c.ID); !ok || cur != c {
		return
	}

	// Unregister first so nothing more is routed to c
	rooms := h.Conns.Remove(c.ID)
	slog.Info("client unregistered", "conn", c.ID, "rooms", len(rooms))

	// Leave every joined room
	for _, roomID := range rooms {
		h.release(roomID, c.ID)
	}
}

func (h *Hub) send(c *Conn, f []byte) {
	if !c.Enqueue(f) && !c.Closed() {
		h.evict(c)
	}
}

func (h *Hub) evict(c *Conn) {
	for _, pending := range h.evictions {
		if pending == c {
			return
		}
	}
	h.evictions = append(h.evictions, c)
}

func (h *Hub) drainEvictions() {
	for len(h.evictions) > 0 {
		c := h.evictions[0]
		h.evictions = h.evictions[1:]
		slog.Warn("evicting connection", "conn", c.ID, "err", ErrSlowConsumer)
		h.drop(c)
	}
}

func (h *Hub) observe(kind RoomEventKind, roomID, connID string, members int) {
	if h.observer == nil {
		return
	}
	h.observer.RoomEvent(RoomEvent{
		Kind:    kind,
		RoomID:  roomID,
		ConnID:  connID,
		Members: members,
		At:      time.Now(),
	})
}
