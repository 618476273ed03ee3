// Package session runs one terminal client's stay in a room: it drives the
// signaling connection, the peer mesh and the room view's message stream.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Kunal-Gupta28/Connectly/internal/config"
	"github.com/Kunal-Gupta28/Connectly/internal/mesh"
	"github.com/Kunal-Gupta28/Connectly/internal/signalclient"
	"github.com/Kunal-Gupta28/Connectly/internal/signaling"
	"github.com/Kunal-Gupta28/Connectly/internal/ui"
)

// SignalTimeout bounds every wait for a server reply.
const SignalTimeout = 10 * time.Second

// Session is a connected client. Create it with Connect, enter a room with
// Enter, then hand Updates to the room view.
type Session struct {
	cfg     *config.Client
	client  *signalclient.Client
	handler *signalclient.Handler
	mesh    *mesh.Mesh

	selfID  string
	roomID  string
	backlog []signalclient.Event
	updates chan tea.Msg

	mu      sync.Mutex
	leaving bool
}

// Connect dials the signaling server and waits for the connection id.
func Connect(ctx context.Context, cfg *config.Client) (*Session, error) {
	client := signalclient.NewClient(cfg.ServerURL)
	if err := client.Connect(ctx); err != nil {
		return nil, NewError("connect", err)
	}

	s := &Session{
		cfg:     cfg,
		client:  client,
		handler: signalclient.NewHandler(client),
		updates: make(chan tea.Msg, 64),
	}
	go s.handler.Start()

	ev, err := s.await(ctx, "connect", signaling.EventConnected)
	if err != nil {
		client.Close()
		return nil, err
	}
	s.selfID = ev.Peer
	s.mesh = mesh.New(cfg, client, cfg.Name)
	return s, nil
}

// SelfID is the id the server assigned to this connection.
func (s *Session) SelfID() string {
	return s.selfID
}

func (s *Session) RoomID() string {
	return s.roomID
}

// Enter creates (create=true) or joins roomID and waits for the server's
// confirmation. Joining an unknown room fails with ErrRoomNotFound.
func (s *Session) Enter(ctx context.Context, roomID string, create bool) error {
	op, want := "join room", signaling.EventJoinTheUser
	send := s.client.JoinRoom
	if create {
		op, want = "create room", signaling.EventNavigateHost
		send = s.client.CreateRoom
	}

	if err := send(roomID); err != nil {
		return NewError(op, err)
	}
	ev, err := s.await(ctx, op, want, signaling.EventRoomNotFound)
	if err != nil {
		return err
	}
	if ev.Name == signaling.EventRoomNotFound {
		return WrapError(op, ErrRoomNotFound, roomID)
	}

	s.roomID = ev.RoomID
	s.updates <- ui.JoinedMsg{RoomID: s.roomID, SelfID: s.selfID, Host: create}
	return nil
}

// await reads events until one named in names arrives. Other events are kept
// and replayed once Run starts.
func (s *Session) await(ctx context.Context, op string, names ...string) (signalclient.Event, error) {
	timer := time.NewTimer(SignalTimeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-s.handler.Events:
			if !ok {
				return ev, NewError(op, ErrServerClosed)
			}
			for _, n := range names {
				if ev.Name == n {
					return ev, nil
				}
			}
			if ev.Name == signaling.EventError {
				return ev, WrapError(op, ErrRejected, ev.Text)
			}
			s.backlog = append(s.backlog, ev)
		case <-timer.C:
			return signalclient.Event{}, WrapError(op, ErrTimeout, "no reply from server")
		case <-ctx.Done():
			return signalclient.Event{}, NewError(op, ctx.Err())
		}
	}
}

// Updates feeds the room view. It is closed when the session ends.
func (s *Session) Updates() <-chan tea.Msg {
	return s.updates
}

// Run routes server and mesh events to the room view until the signaling
// connection ends.
func (s *Session) Run() {
	defer close(s.updates)

	for _, ev := range s.backlog {
		s.route(ev)
	}
	s.backlog = nil

	meshEvents := s.mesh.Events()
	for {
		select {
		case ev, ok := <-s.handler.Events:
			if !ok {
				s.mesh.Close()
				if s.isLeaving() {
					s.updates <- ui.ClosedMsg{}
				} else {
					s.updates <- ui.ClosedMsg{Err: NewError("room", ErrServerClosed)}
				}
				return
			}
			s.route(ev)
		case ev := <-meshEvents:
			s.routeMesh(ev)
		}
	}
}

func (s *Session) route(ev signalclient.Event) {
	switch ev.Name {
	case signaling.EventParticipantCount:
		if ev.RoomID == s.roomID {
			s.updates <- ui.CountMsg{Count: ev.Count}
		}

	case signaling.EventNewUserConnected:
		s.updates <- ui.PeerJoinedMsg{ID: ev.Peer}
		if err := s.mesh.Offer(ev.Peer); err != nil {
			s.notice("could not reach "+ui.ShortID(ev.Peer)+": "+err.Error(), true)
		}

	case signaling.EventReceiveOffer:
		s.updates <- ui.PeerPresentMsg{ID: ev.Peer}
		if err := s.mesh.HandleOffer(ev.Peer, ev.Payload); err != nil {
			slog.Warn("handle offer", "peer", ev.Peer, "err", err)
		}

	case signaling.EventReceiveAnswer:
		if err := s.mesh.HandleAnswer(ev.Peer, ev.Payload); err != nil {
			slog.Warn("handle answer", "peer", ev.Peer, "err", err)
		}

	case signaling.EventReceiveICECandidate:
		if err := s.mesh.HandleCandidate(ev.Peer, ev.Payload); err != nil {
			slog.Debug("handle candidate", "peer", ev.Peer, "err", err)
		}

	case signaling.EventUserDisconnected:
		if ev.RoomID == "" || ev.RoomID == s.roomID {
			s.mesh.Remove(ev.Peer)
			s.updates <- ui.PeerLeftMsg{ID: ev.Peer}
		}

	case signaling.EventReceiveMessage:
		s.updates <- ui.ChatMsg{From: ev.Peer, Text: ev.Text}

	case signaling.EventUserStatusUpdate:
		s.updates <- statusMsg(ev)

	case signaling.EventError:
		s.notice(ev.Text, true)

	default:
		slog.Debug("ignoring event", "event", ev.Name)
	}
}

func (s *Session) routeMesh(ev mesh.Event) {
	switch ev.Kind {
	case mesh.PeerLinked:
		s.updates <- ui.PeerLinkedMsg{ID: ev.Peer}
	case mesh.PeerHello:
		s.updates <- ui.PeerNameMsg{ID: ev.Peer, Name: ev.Name}
	case mesh.PeerStatus:
		audio, video := ev.Status.Audio, ev.Status.Video
		s.updates <- ui.StatusMsg{ID: ev.Peer, Audio: &audio, Video: &video}
	case mesh.PeerClosed:
		s.notice("direct link to "+ui.ShortID(ev.Peer)+" closed", false)
	}
}

func (s *Session) notice(text string, isErr bool) {
	s.updates <- ui.NoticeMsg{Text: text, Err: isErr}
}

func statusMsg(ev signalclient.Event) ui.StatusMsg {
	msg := ui.StatusMsg{ID: ev.Peer}
	var b bool
	if raw, ok := ev.Status["audio"]; ok && json.Unmarshal(raw, &b) == nil {
		audio := b
		msg.Audio = &audio
	}
	if raw, ok := ev.Status["video"]; ok && json.Unmarshal(raw, &b) == nil {
		video := b
		msg.Video = &video
	}
	return msg
}

// Chat sends a room chat message through the server.
func (s *Session) Chat(text string) error {
	return s.client.SendChat(s.roomID, text)
}

// SetStatus announces mic/camera state to the room and to linked peers.
func (s *Session) SetStatus(audio, video bool) error {
	s.mesh.SendStatus(mesh.StatusPayload{Audio: audio, Video: video})
	return s.client.SendStatus(s.roomID, map[string]any{"audio": audio, "video": video})
}

// Leave leaves the room and closes the connection.
func (s *Session) Leave() error {
	s.mu.Lock()
	if s.leaving {
		s.mu.Unlock()
		return nil
	}
	s.leaving = true
	s.mu.Unlock()

	var err error
	if s.roomID != "" {
		err = s.client.LeaveRoom(s.roomID)
	}
	s.mesh.Close()
	s.client.Close()
	return err
}

func (s *Session) isLeaving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leaving
}

// Close releases the connection without waiting for the room view.
func (s *Session) Close() {
	s.Leave()
}
