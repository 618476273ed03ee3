package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

const maxLogLines = 200

// RoomActions are the user's outgoing actions. The session implements it.
type RoomActions interface {
	Chat(text string) error
	SetStatus(audio, video bool) error
	Leave() error
}

// Messages fed to the room view by the session.
type (
	JoinedMsg struct {
		RoomID string
		SelfID string
		Host   bool
	}
	CountMsg      struct{ Count int }
	PeerJoinedMsg struct{ ID string }
	// PeerPresentMsg lists a participant that was already in the room.
	PeerPresentMsg struct{ ID string }
	PeerLeftMsg   struct{ ID string }
	PeerLinkedMsg struct{ ID string }
	PeerNameMsg   struct{ ID, Name string }
	StatusMsg     struct {
		ID           string
		Audio, Video *bool
	}
	ChatMsg struct {
		From string
		Text string
	}
	NoticeMsg struct {
		Text string
		Err  bool
	}
	// ClosedMsg ends the view. Err is nil on a normal leave.
	ClosedMsg struct{ Err error }
)

type roomState int

const (
	stateJoining roomState = iota
	stateInRoom
	stateClosed
)

type logLine struct {
	at   time.Time
	text string
}

// RoomModel is the live view of one room.
type RoomModel struct {
	actions RoomActions
	updates <-chan tea.Msg

	state   roomState
	roomID  string
	selfID  string
	name    string
	count   int
	audio   bool
	video   bool
	peers   map[string]*Participant
	log     []logLine
	input   textinput.Model
	spinner spinner.Model
	err     error
	width   int
}

// NewRoomModel creates the view. updates carries the session's messages and
// is read until it is closed.
func NewRoomModel(name string, actions RoomActions, updates <-chan tea.Msg) *RoomModel {
	ti := textinput.New()
	ti.Placeholder = "message, or /help"
	ti.CharLimit = 1000
	ti.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &RoomModel{
		actions: actions,
		updates: updates,
		name:    name,
		audio:   true,
		video:   true,
		peers:   make(map[string]*Participant),
		input:   ti,
		spinner: s,
	}
}

// Err returns the error that closed the room, if any.
func (m *RoomModel) Err() error {
	return m.err
}

func (m *RoomModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.waitForUpdates())
}

func (m *RoomModel) waitForUpdates() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-m.updates
		if !ok {
			return ClosedMsg{}
		}
		return msg
	}
}

func (m *RoomModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, m.leave()
		case tea.KeyEnter:
			return m, m.submit()
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(msg.Width-4, 10)
		return m, nil

	case spinner.TickMsg:
		if m.state != stateJoining {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ClosedMsg:
		m.state = stateClosed
		m.err = msg.Err
		return m, tea.Quit
	}

	if m.apply(msg) {
		return m, m.waitForUpdates()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// apply folds one session message into the model. It reports whether msg
// came from the session.
func (m *RoomModel) apply(msg tea.Msg) bool {
	switch msg := msg.(type) {
	case JoinedMsg:
		m.state = stateInRoom
		m.roomID, m.selfID = msg.RoomID, msg.SelfID
		m.peers[msg.SelfID] = &Participant{ID: msg.SelfID, Name: m.name, Self: true, Audio: m.audio, Video: m.video}
		if msg.Host {
			m.addLog("Created room %s", msg.RoomID)
		} else {
			m.addLog("Joined room %s", msg.RoomID)
		}

	case CountMsg:
		m.count = msg.Count

	case PeerJoinedMsg:
		m.peer(msg.ID)
		m.addLog("%s %s joined", IconPeer, ShortID(msg.ID))

	case PeerPresentMsg:
		m.peer(msg.ID)

	case PeerLeftMsg:
		label := m.label(msg.ID)
		delete(m.peers, msg.ID)
		m.addLog("%s %s left", IconPeer, label)

	case PeerLinkedMsg:
		m.peer(msg.ID).Linked = true

	case PeerNameMsg:
		m.peer(msg.ID).Name = msg.Name

	case StatusMsg:
		p := m.peer(msg.ID)
		if msg.Audio != nil {
			p.Audio = *msg.Audio
		}
		if msg.Video != nil {
			p.Video = *msg.Video
		}

	case ChatMsg:
		m.addLog("%s %s: %s", IconChat, m.label(msg.From), msg.Text)

	case NoticeMsg:
		if msg.Err {
			m.addLog("%s", ErrorStyle.Render(msg.Text))
		} else {
			m.addLog("%s", MutedStyle.Render(msg.Text))
		}

	default:
		return false
	}
	return true
}

func (m *RoomModel) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	if text == "" {
		return nil
	}

	if !strings.HasPrefix(text, "/") {
		if m.state != stateInRoom {
			m.addLog("%s", WarningStyle.Render("not in a room yet"))
			return nil
		}
		if err := m.actions.Chat(text); err != nil {
			m.addLog("%s", ErrorStyle.Render(err.Error()))
			return nil
		}
		m.addLog("%s %s: %s", IconChat, SelfStyle.Render(m.name), text)
		return nil
	}

	switch strings.Fields(text)[0] {
	case "/mic":
		m.audio = !m.audio
		return m.pushStatus()
	case "/cam":
		m.video = !m.video
		return m.pushStatus()
	case "/leave", "/quit":
		return m.leave()
	case "/help":
		m.addLog("%s", MutedStyle.Render("/mic toggle microphone, /cam toggle camera, /leave or /quit exit the room"))
	default:
		m.addLog("%s", WarningStyle.Render("unknown command "+text))
	}
	return nil
}

func (m *RoomModel) pushStatus() tea.Cmd {
	if self, ok := m.peers[m.selfID]; ok {
		self.Audio, self.Video = m.audio, m.video
	}
	if err := m.actions.SetStatus(m.audio, m.video); err != nil {
		m.addLog("%s", ErrorStyle.Render(err.Error()))
	}
	return nil
}

func (m *RoomModel) leave() tea.Cmd {
	if m.state == stateClosed {
		return tea.Quit
	}
	m.state = stateClosed
	if err := m.actions.Leave(); err != nil {
		m.err = err
	}
	return tea.Quit
}

func (m *RoomModel) peer(id string) *Participant {
	p, ok := m.peers[id]
	if !ok {
		p = &Participant{ID: id, Audio: true, Video: true}
		m.peers[id] = p
	}
	return p
}

func (m *RoomModel) label(id string) string {
	if id == m.selfID {
		return SelfStyle.Render(m.name)
	}
	if p, ok := m.peers[id]; ok && p.Name != "" {
		return p.Name
	}
	return ShortID(id)
}

func (m *RoomModel) addLog(format string, args ...any) {
	m.log = append(m.log, logLine{at: time.Now(), text: fmt.Sprintf(format, args...)})
	if len(m.log) > maxLogLines {
		m.log = m.log[len(m.log)-maxLogLines:]
	}
}

func (m *RoomModel) View() string {
	var b strings.Builder

	switch m.state {
	case stateJoining:
		b.WriteString(fmt.Sprintf("%s Joining room...\n", m.spinner.View()))
		return b.String()
	case stateClosed:
		if m.err != nil {
			return FormatError(m.err) + "\n"
		}
		return MutedStyle.Render("Left the room.") + "\n"
	}

	b.WriteString(HeaderStyle.Render(fmt.Sprintf("%s %s", IconRoom, m.roomID)))
	b.WriteString(" ")
	b.WriteString(StatusStyle.Render(fmt.Sprintf("%d in room", m.count)))
	b.WriteString(fmt.Sprintf("  %s %s\n\n", micIcon(m.audio), camIcon(m.video)))

	participants := make([]Participant, 0, len(m.peers))
	for _, p := range m.peers {
		participants = append(participants, *p)
	}
	b.WriteString(ParticipantTableView(participants))
	b.WriteString("\n\n")

	start := 0
	if len(m.log) > 10 {
		start = len(m.log) - 10
	}
	for _, l := range m.log[start:] {
		b.WriteString(MutedStyle.Render(l.at.Format("15:04")) + " " + l.text + "\n")
	}

	b.WriteString("\n" + m.input.View())
	b.WriteString(FooterStyle.Render("\n/mic  /cam  /leave  /help   ctrl+c to quit"))
	return b.String()
}

// FormatError renders err in the error style.
func FormatError(err error) string {
	return fmt.Sprintf("%s %s", ErrorStyle.Render(IconError), ErrorStyle.Render(err.Error()))
}

// RunRoom runs the room view inline until the user leaves or the session
// closes it.
func RunRoom(m *RoomModel) error {
	if _, err := tea.NewProgram(m).Run(); err != nil {
		return fmt.Errorf("room view: %w", err)
	}
	return m.Err()
}
