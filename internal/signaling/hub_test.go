package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"
)

type received struct {
	Event string
	Data  map[string]any
}

// drain returns every frame currently queued on c.
func drain(t *testing.T, c *Conn) []received {
	t.Helper()

	var out []received
	for {
		select {
		case f := <-c.Outbound():
			var env Envelope
			if err := json.Unmarshal(f, &env); err != nil {
				t.Fatalf("bad frame %s: %v", f, err)
			}
			r := received{Event: env.Event}
			if len(env.Data) > 0 {
				json.Unmarshal(env.Data, &r.Data)
			}
			out = append(out, r)
		default:
			return out
		}
	}
}

func names(rs []received) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Event
	}
	return out
}

func find(rs []received, event string) (received, bool) {
	for _, r := range rs {
		if r.Event == event {
			return r, true
		}
	}
	return received{}, false
}

func lastCount(t *testing.T, rs []received) int {
	t.Helper()
	count := -1
	for _, r := range rs {
		if r.Event == EventParticipantCount {
			count = int(r.Data["count"].(float64))
		}
	}
	return count
}

func msg(event string, data any) []byte {
	raw, _ := json.Marshal(data)
	b, _ := json.Marshal(Envelope{Event: event, Data: raw})
	return b
}

func room(id string) map[string]string { return map[string]string{"roomId": id} }

// connectN registers n connections directly, bypassing Run, and discards
// their welcome frames.
func connectN(t *testing.T, h *Hub, ids ...string) []*Conn {
	t.Helper()
	conns := make([]*Conn, len(ids))
	for i, id := range ids {
		conns[i] = NewConn(id, 64)
		h.connect(conns[i])
		drain(t, conns[i])
	}
	return conns
}

type recordingObserver struct {
	mu     sync.Mutex
	events []RoomEvent
}

func (o *recordingObserver) RoomEvent(ev RoomEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, ev)
}

func (o *recordingObserver) kinds() []RoomEventKind {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]RoomEventKind, len(o.events))
	for i, ev := range o.events {
		out[i] = ev.Kind
	}
	return out
}

func TestConnectSendsID(t *testing.T) {
	h := NewHub()
	c := NewConn("abc", 4)
	h.connect(c)

	got := drain(t, c)
	if len(got) != 1 || got[0].Event != EventConnected || got[0].Data["connectionId"] != "abc" {
		t.Errorf("welcome = %+v", got)
	}
}

func TestTwoPartyScenario(t *testing.T) {
	h := NewHub()
	cs := connectN(t, h, "A", "B")
	a, b := cs[0], cs[1]

	// A creates R and is alone.
	h.dispatch(a, msg(EventCreateRoom, room("R")))
	got := drain(t, a)
	if names(got)[0] != EventNavigateHost || got[0].Data["joinHostToRoomId"] != "R" {
		t.Fatalf("A after create = %+v", got)
	}
	if n := lastCount(t, got); n != 1 {
		t.Errorf("count after create = %d, want 1", n)
	}

	// B joins.
	h.dispatch(b, msg(EventJoinRoom, room("R")))
	gotB := drain(t, b)
	if gotB[0].Event != EventJoinTheUser || gotB[0].Data["joinNewUserToRoomId"] != "R" {
		t.Fatalf("B after join = %+v", gotB)
	}
	if n := lastCount(t, gotB); n != 2 {
		t.Errorf("B count = %d, want 2", n)
	}
	gotA := drain(t, a)
	if nu, ok := find(gotA, EventNewUserConnected); !ok || nu.Data["newlyJoinUser"] != "B" {
		t.Errorf("A not told about B: %+v", gotA)
	}
	if n := lastCount(t, gotA); n != 2 {
		t.Errorf("A count = %d, want 2", n)
	}

	// Offer and answer are relayed with the sender's id.
	h.dispatch(a, msg(EventSendOffer, map[string]any{"offer": map[string]string{"sdp": "o"}, "newlyJoinUser": "B"}))
	offer, ok := find(drain(t, b), EventReceiveOffer)
	if !ok || offer.Data["alreadyJoinedUser"] != "A" {
		t.Errorf("B offer = %+v", offer)
	}
	h.dispatch(b, msg(EventSendAnswer, map[string]any{"answer": map[string]string{"sdp": "a"}, "alreadyJoinedUser": "A"}))
	answer, ok := find(drain(t, a), EventReceiveAnswer)
	if !ok || answer.Data["newlyJoinUser"] != "B" {
		t.Errorf("A answer = %+v", answer)
	}
	h.dispatch(b, msg(EventICECandidate, map[string]any{"candidate": map[string]string{"candidate": "c"}, "to": "A"}))
	cand, ok := find(drain(t, a), EventReceiveICECandidate)
	if !ok || cand.Data["from"] != "B" {
		t.Errorf("A candidate = %+v", cand)
	}

	// Chat reaches everyone but the sender.
	h.dispatch(a, msg(EventSendMessage, map[string]any{"message": "hi", "roomId": "R"}))
	if got := drain(t, a); len(got) != 0 {
		t.Errorf("sender got its own chat: %+v", got)
	}
	chat, ok := find(drain(t, b), EventReceiveMessage)
	if !ok || chat.Data["message"] != "hi" || chat.Data["from"] != "A" {
		t.Errorf("B chat = %+v", chat)
	}

	// Status updates carry the sender id.
	h.dispatch(b, msg(EventUserStatus, map[string]any{"status": map[string]bool{"video": false}, "roomId": "R"}))
	st, ok := find(drain(t, a), EventUserStatusUpdate)
	if !ok || st.Data["id"] != "B" || st.Data["video"] != false {
		t.Errorf("A status = %+v", st)
	}

	// B disconnects.
	h.disconnect(b)
	gotA = drain(t, a)
	if left, ok := find(gotA, EventUserDisconnected); !ok || left.Data["connectionId"] != "B" {
		t.Errorf("A not told B left: %+v", gotA)
	}
	if n := lastCount(t, gotA); n != 1 {
		t.Errorf("A count after B left = %d, want 1", n)
	}
	if !b.Closed() {
		t.Error("B handle not closed")
	}

	// A disconnects and the room disappears.
	h.disconnect(a)
	if h.Rooms.Len() != 0 || h.Conns.Len() != 0 {
		t.Errorf("rooms=%d conns=%d after everyone left", h.Rooms.Len(), h.Conns.Len())
	}
}

func TestDisconnectFromSeveralRooms(t *testing.T) {
	h := NewHub()
	cs := connectN(t, h, "A", "B", "C")
	a, b, c := cs[0], cs[1], cs[2]

	h.dispatch(a, msg(EventCreateRoom, room("R1")))
	h.dispatch(a, msg(EventCreateRoom, room("R2")))
	h.dispatch(b, msg(EventJoinRoom, room("R1")))
	h.dispatch(c, msg(EventJoinRoom, room("R2")))
	for _, conn := range cs {
		drain(t, conn)
	}

	h.disconnect(a)

	want := fmt.Sprint([]string{EventUserDisconnected, EventParticipantCount})
	for _, tc := range []struct {
		conn   *Conn
		roomID string
	}{{b, "R1"}, {c, "R2"}} {
		got := drain(t, tc.conn)
		if fmt.Sprint(names(got)) != want {
			t.Errorf("%s got %v, want %s", tc.conn.ID, names(got), want)
			continue
		}
		if got[0].Data["connectionId"] != "A" {
			t.Errorf("%s told about %v", tc.conn.ID, got[0].Data["connectionId"])
		}
		if got[1].Data["roomId"] != tc.roomID || lastCount(t, got) != 1 {
			t.Errorf("%s count = %+v, want 1 in %s", tc.conn.ID, got[1].Data, tc.roomID)
		}
	}
	if h.Rooms.Count("R1") != 1 || h.Rooms.Count("R2") != 1 {
		t.Errorf("R1=%d R2=%d", h.Rooms.Count("R1"), h.Rooms.Count("R2"))
	}
}

func TestEmptiedRoomIsNotRecreatedByJoin(t *testing.T) {
	h := NewHub()
	cs := connectN(t, h, "A", "B")
	a, b := cs[0], cs[1]

	h.dispatch(a, msg(EventCreateRoom, room("R")))
	h.disconnect(a)
	if h.Rooms.Len() != 0 {
		t.Fatalf("rooms = %d after last member left", h.Rooms.Len())
	}

	h.dispatch(b, msg(EventJoinRoom, room("R")))
	got := drain(t, b)
	if len(got) != 1 || got[0].Event != EventRoomNotFound || got[0].Data["roomId"] != "R" {
		t.Errorf("join of emptied room = %+v", got)
	}
	if h.Rooms.Len() != 0 || len(h.Conns.Rooms("B")) != 0 {
		t.Error("join of emptied room changed state")
	}
}

func TestJoinUnknownRoom(t *testing.T) {
	h := NewHub()
	c := connectN(t, h, "A")[0]

	h.dispatch(c, msg(EventJoinRoom, room("nope")))
	got := drain(t, c)
	if len(got) != 1 || got[0].Event != EventRoomNotFound || got[0].Data["roomId"] != "nope" {
		t.Errorf("got %+v", got)
	}
	if h.Rooms.Len() != 0 || len(h.Conns.Rooms("A")) != 0 {
		t.Error("failed join changed state")
	}
}

func TestCreateExistingRoomNotifiesMembers(t *testing.T) {
	h := NewHub()
	cs := connectN(t, h, "A", "B")
	h.dispatch(cs[0], msg(EventCreateRoom, room("R")))
	drain(t, cs[0])

	h.dispatch(cs[1], msg(EventCreateRoom, room("R")))
	if got := drain(t, cs[1]); got[0].Event != EventNavigateHost || lastCount(t, got) != 2 {
		t.Errorf("B = %+v", got)
	}
	gotA := drain(t, cs[0])
	if _, ok := find(gotA, EventNewUserConnected); !ok {
		t.Errorf("A not told about B: %+v", gotA)
	}
}

func TestRepeatedJoinOnlyReplies(t *testing.T) {
	h := NewHub()
	cs := connectN(t, h, "A", "B")
	h.dispatch(cs[0], msg(EventCreateRoom, room("R")))
	h.dispatch(cs[1], msg(EventJoinRoom, room("R")))
	drain(t, cs[0])
	drain(t, cs[1])

	h.dispatch(cs[1], msg(EventJoinRoom, room("R")))
	if got := names(drain(t, cs[1])); len(got) != 1 || got[0] != EventJoinTheUser {
		t.Errorf("B = %v", got)
	}
	if got := drain(t, cs[0]); len(got) != 0 {
		t.Errorf("A got %v for a repeated join", names(got))
	}
}

func TestLeaveRoom(t *testing.T) {
	h := NewHub()
	cs := connectN(t, h, "A", "B")
	h.dispatch(cs[0], msg(EventCreateRoom, room("R")))
	h.dispatch(cs[1], msg(EventJoinRoom, room("R")))
	drain(t, cs[0])
	drain(t, cs[1])

	h.dispatch(cs[1], msg(EventLeaveRoom, room("R")))
	if got := names(drain(t, cs[1])); len(got) != 1 || got[0] != EventLeftRoom {
		t.Errorf("B = %v", got)
	}
	gotA := drain(t, cs[0])
	if _, ok := find(gotA, EventUserDisconnected); !ok || lastCount(t, gotA) != 1 {
		t.Errorf("A = %+v", gotA)
	}
	if len(h.Conns.Rooms("B")) != 0 {
		t.Error("B still lists R")
	}

	// Leaving a room you are not in only gets the reply.
	h.dispatch(cs[1], msg(EventLeaveRoom, room("R")))
	drain(t, cs[1])
	if got := drain(t, cs[0]); len(got) != 0 {
		t.Errorf("A got %v for a non-member leave", names(got))
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	h := NewHub()
	cs := connectN(t, h, "A", "B")
	h.dispatch(cs[0], msg(EventCreateRoom, room("R")))
	h.dispatch(cs[1], msg(EventJoinRoom, room("R")))
	drain(t, cs[0])

	h.disconnect(cs[1])
	first := drain(t, cs[0])
	h.disconnect(cs[1])
	if again := drain(t, cs[0]); len(again) != 0 {
		t.Errorf("second disconnect produced %v", names(again))
	}
	if len(first) != 2 {
		t.Errorf("first disconnect produced %v", names(first))
	}

	// Frames from a dropped handle are ignored.
	h.dispatch(cs[1], msg(EventCreateRoom, room("Z")))
	if h.Rooms.Count("Z") != 0 {
		t.Error("dropped connection created a room")
	}
}

func TestStaleHandleCannotDropReplacement(t *testing.T) {
	h := NewHub()
	old := connectN(t, h, "A")[0]
	replacement := connectN(t, h, "A")[0]

	h.disconnect(old)
	if got, ok := h.Conns.Lookup("A"); !ok || got != replacement {
		t.Error("stale disconnect removed the newer registration")
	}
}

func TestMalformedFrameLeavesStateAlone(t *testing.T) {
	h := NewHub()
	c := connectN(t, h, "A")[0]

	for _, raw := range []string{`garbage`, `{"event":"join-room","data":{}}`, `{"event":"nope","data":{}}`} {
		h.dispatch(c, []byte(raw))
		got := drain(t, c)
		if len(got) != 1 || got[0].Event != EventError || got[0].Data["message"] == "" {
			t.Errorf("%s -> %+v", raw, got)
		}
	}
	if h.Rooms.Len() != 0 || h.Conns.Len() != 1 {
		t.Error("malformed frames changed state")
	}
}

func TestRelayToUnknownTargetIsSilent(t *testing.T) {
	h := NewHub()
	c := connectN(t, h, "A")[0]

	h.dispatch(c, msg(EventSendOffer, map[string]any{"offer": map[string]string{}, "newlyJoinUser": "ghost"}))
	if got := drain(t, c); len(got) != 0 {
		t.Errorf("sender got %v", names(got))
	}
}

func TestSlowConsumerIsEvicted(t *testing.T) {
	h := NewHub()
	a := connectN(t, h, "A")[0]
	slow := NewConn("S", 1)
	h.connect(slow) // fills its queue with the welcome frame

	h.dispatch(a, msg(EventCreateRoom, room("R")))
	h.dispatch(slow, msg(EventJoinRoom, room("R")))

	if !slow.Closed() {
		t.Fatal("slow consumer not closed")
	}
	if _, ok := h.Conns.Lookup("S"); ok {
		t.Error("slow consumer still registered")
	}
	if h.Rooms.Contains("R", "S") {
		t.Error("slow consumer still in room")
	}
	gotA := drain(t, a)
	if n := lastCount(t, gotA); n != 1 {
		t.Errorf("A last count = %d, want 1 (%v)", n, names(gotA))
	}
}

func TestObserverSeesLifecycle(t *testing.T) {
	obs := &recordingObserver{}
	h := NewHub(WithObserver(obs))
	cs := connectN(t, h, "A", "B")

	h.dispatch(cs[0], msg(EventCreateRoom, room("R")))
	h.dispatch(cs[1], msg(EventJoinRoom, room("R")))
	h.disconnect(cs[1])
	h.disconnect(cs[0])

	want := []RoomEventKind{RoomOpened, MemberJoined, MemberJoined, MemberLeft, MemberLeft, RoomClosed}
	got := obs.kinds()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

// Concurrent joins through Run must leave every member with the true size
// as the last count it saw.
func TestRunConcurrentJoins(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub()
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	host := NewConn("host", 256)
	if !h.Register(host) {
		t.Fatal("Register failed")
	}
	h.Submit(host, msg(EventCreateRoom, room("R")))

	const n = 20
	conns := make([]*Conn, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		conns[i] = NewConn(fmt.Sprintf("c%02d", i), 256)
		wg.Add(1)
		go func(c *Conn) {
			defer wg.Done()
			h.Register(c)
			h.Submit(c, msg(EventJoinRoom, room("R")))
		}(conns[i])
	}
	wg.Wait()

	deadline := time.Now().Add(2 * time.Second)
	for h.Rooms.Count("R") != n+1 {
		if time.Now().After(deadline) {
			t.Fatalf("room has %d members, want %d", h.Rooms.Count("R"), n+1)
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-stopped

	for _, c := range append(conns, host) {
		if got := lastCount(t, drain(t, c)); got != n+1 {
			t.Errorf("%s last count = %d, want %d", c.ID, got, n+1)
		}
	}
	if h.Register(NewConn("late", 1)) {
		t.Error("Register succeeded after the hub stopped")
	}
}
