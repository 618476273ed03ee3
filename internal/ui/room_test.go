package ui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

type fakeActions struct {
	chats    []string
	statuses [][2]bool
	left     int
	chatErr  error
}

func (f *fakeActions) Chat(text string) error {
	if f.chatErr != nil {
		return f.chatErr
	}
	f.chats = append(f.chats, text)
	return nil
}

func (f *fakeActions) SetStatus(audio, video bool) error {
	f.statuses = append(f.statuses, [2]bool{audio, video})
	return nil
}

func (f *fakeActions) Leave() error {
	f.left++
	return nil
}

func newTestModel() (*RoomModel, *fakeActions) {
	actions := &fakeActions{}
	return NewRoomModel("alice", actions, make(chan tea.Msg)), actions
}

func typeLine(m *RoomModel, line string) tea.Cmd {
	m.input.SetValue(line)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

func TestRoomModelSessionMessages(t *testing.T) {
	m, _ := newTestModel()

	m.Update(JoinedMsg{RoomID: "otter-ramen-maple", SelfID: "self-1234567890", Host: true})
	m.Update(CountMsg{Count: 1})
	m.Update(PeerJoinedMsg{ID: "peer-abcdefghij"})
	m.Update(CountMsg{Count: 2})
	m.Update(PeerNameMsg{ID: "peer-abcdefghij", Name: "bob"})
	m.Update(PeerLinkedMsg{ID: "peer-abcdefghij"})
	off := false
	m.Update(StatusMsg{ID: "peer-abcdefghij", Audio: &off})
	m.Update(ChatMsg{From: "peer-abcdefghij", Text: "hi alice"})

	if m.state != stateInRoom {
		t.Fatalf("state = %v, want in room", m.state)
	}
	if m.count != 2 {
		t.Errorf("count = %d, want 2", m.count)
	}
	bob := m.peers["peer-abcdefghij"]
	if bob == nil || bob.Name != "bob" || !bob.Linked || bob.Audio || !bob.Video {
		t.Errorf("bob = %+v", bob)
	}

	view := m.View()
	for _, want := range []string{"otter-ramen-maple", "2 in room", "hi alice", "bob"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	m.Update(PeerLeftMsg{ID: "peer-abcdefghij"})
	if _, ok := m.peers["peer-abcdefghij"]; ok {
		t.Error("peer still listed after leaving")
	}
	if last := m.log[len(m.log)-1].text; !strings.Contains(last, "bob left") {
		t.Errorf("last log line = %q", last)
	}
}

func TestRoomModelCommands(t *testing.T) {
	m, actions := newTestModel()
	m.Update(JoinedMsg{RoomID: "r", SelfID: "me"})

	typeLine(m, "hello there")
	if len(actions.chats) != 1 || actions.chats[0] != "hello there" {
		t.Errorf("chats = %v", actions.chats)
	}

	typeLine(m, "/mic")
	typeLine(m, "/cam")
	want := [][2]bool{{false, true}, {false, false}}
	if len(actions.statuses) != 2 || actions.statuses[0] != want[0] || actions.statuses[1] != want[1] {
		t.Errorf("statuses = %v, want %v", actions.statuses, want)
	}
	if self := m.peers["me"]; self.Audio || self.Video {
		t.Errorf("self status not updated: %+v", self)
	}

	if cmd := typeLine(m, "/leave"); cmd == nil {
		t.Fatal("/leave returned no command")
	}
	if actions.left != 1 {
		t.Errorf("Leave called %d times", actions.left)
	}
	if m.state != stateClosed {
		t.Errorf("state = %v after /leave", m.state)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if actions.left != 1 {
		t.Errorf("Leave called again after close")
	}
}

func TestRoomModelChatBeforeJoin(t *testing.T) {
	m, actions := newTestModel()
	typeLine(m, "too early")
	if len(actions.chats) != 0 {
		t.Errorf("chat sent before joining: %v", actions.chats)
	}
}

func TestRoomModelChatError(t *testing.T) {
	m, actions := newTestModel()
	actions.chatErr = errors.New("signaling connection closed")
	m.Update(JoinedMsg{RoomID: "r", SelfID: "me"})

	typeLine(m, "lost")
	if last := m.log[len(m.log)-1].text; !strings.Contains(last, "signaling connection closed") {
		t.Errorf("last log line = %q", last)
	}
}

func TestRoomModelClosed(t *testing.T) {
	m, _ := newTestModel()
	_, cmd := m.Update(ClosedMsg{Err: errors.New("server went away")})
	if cmd == nil {
		t.Fatal("ClosedMsg returned no command")
	}
	if m.Err() == nil || !strings.Contains(m.View(), "server went away") {
		t.Errorf("closed view = %q", m.View())
	}
}

func TestParticipantTableView(t *testing.T) {
	view := ParticipantTableView([]Participant{
		{ID: "zz", Name: "zed", Linked: true, Audio: true},
		{ID: "me", Name: "alice", Self: true},
	})
	if strings.Index(view, "alice") > strings.Index(view, "zed") {
		t.Error("self row not first")
	}
	if !strings.Contains(view, "(you)") {
		t.Error("self row not marked")
	}

	if got := ParticipantTableView(nil); !strings.Contains(got, "Nobody") {
		t.Errorf("empty table = %q", got)
	}
}
