package signaling

import (
	"errors"
	"reflect"
	"testing"
)

func TestConnectionRegistry(t *testing.T) {
	r := NewConnectionRegistry()
	a := NewConn("a", 4)
	r.Register(a)

	r.AddMembership("a", "r2")
	r.AddMembership("a", "r1")
	r.AddMembership("ghost", "r1")
	r.RemoveMembership("a", "missing")

	if got := r.Rooms("a"); !reflect.DeepEqual(got, []string{"r1", "r2"}) {
		t.Errorf("Rooms(a) = %v", got)
	}
	if got, ok := r.Lookup("a"); !ok || got != a {
		t.Errorf("Lookup(a) = %v, %v", got, ok)
	}

	rooms := r.Remove("a")
	if !reflect.DeepEqual(rooms, []string{"r1", "r2"}) {
		t.Errorf("Remove(a) = %v", rooms)
	}
	if again := r.Remove("a"); len(again) != 0 {
		t.Errorf("second Remove(a) = %v, want empty", again)
	}
	if _, ok := r.Lookup("a"); ok {
		t.Error("a still registered")
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d", r.Len())
	}
}

func TestConnectionRegistryReRegisterReplaces(t *testing.T) {
	r := NewConnectionRegistry()
	first, second := NewConn("a", 1), NewConn("a", 1)

	r.Register(first)
	r.AddMembership("a", "r1")
	r.Register(second)

	got, _ := r.Lookup("a")
	if got != second {
		t.Error("later registration did not win")
	}
	if rooms := r.Rooms("a"); len(rooms) != 0 {
		t.Errorf("memberships carried over: %v", rooms)
	}
	if n := len(r.All()); n != 1 {
		t.Errorf("All() has %d conns", n)
	}
}

func TestRoomRegistry(t *testing.T) {
	r := NewRoomRegistry()

	if _, err := r.Join("room", "a"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("Join on missing room = %v, want ErrRoomNotFound", err)
	}
	if r.Len() != 0 {
		t.Fatal("Join created a room")
	}

	if n := r.CreateOrJoin("room", "a"); n != 1 {
		t.Errorf("CreateOrJoin = %d, want 1", n)
	}
	if n := r.CreateOrJoin("room", "a"); n != 1 {
		t.Errorf("repeated CreateOrJoin = %d, want 1", n)
	}
	if n, err := r.Join("room", "b"); err != nil || n != 2 {
		t.Errorf("Join = %d, %v", n, err)
	}
	if got := r.Members("room"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("Members = %v", got)
	}
	if !r.Contains("room", "b") || r.Contains("room", "c") {
		t.Error("Contains wrong")
	}

	if n := r.Leave("room", "a"); n != 1 {
		t.Errorf("Leave(a) = %d, want 1", n)
	}
	if n := r.Leave("room", "b"); n != 0 {
		t.Errorf("Leave(b) = %d, want 0", n)
	}
	if r.Len() != 0 || r.Count("room") != 0 {
		t.Error("empty room not deleted")
	}
	if got := r.Members("room"); got == nil || len(got) != 0 {
		t.Errorf("Members of deleted room = %#v, want empty slice", got)
	}
	if n := r.Leave("room", "b"); n != 0 {
		t.Errorf("Leave on deleted room = %d", n)
	}
}

func TestRoomRegistrySnapshot(t *testing.T) {
	r := NewRoomRegistry()
	r.CreateOrJoin("beta", "a")
	r.CreateOrJoin("alpha", "b")
	r.CreateOrJoin("alpha", "c")

	want := []RoomStat{{RoomID: "alpha", Members: 2}, {RoomID: "beta", Members: 1}}
	if got := r.Snapshot(); !reflect.DeepEqual(got, want) {
		t.Errorf("Snapshot = %+v, want %+v", got, want)
	}
}

func TestConnEnqueue(t *testing.T) {
	c := NewConn("a", 1)
	if !c.Enqueue(nil) {
		t.Error("nil frame rejected")
	}
	if !c.Enqueue([]byte("1")) {
		t.Fatal("first frame rejected")
	}
	if c.Enqueue([]byte("2")) {
		t.Error("full queue accepted a frame")
	}

	<-c.Outbound()
	c.Close()
	c.Close()
	if !c.Closed() {
		t.Error("Closed() = false after Close")
	}
	if c.Enqueue([]byte("3")) {
		t.Error("closed conn accepted a frame")
	}
}
