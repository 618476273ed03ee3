// Package mesh keeps one WebRTC peer connection per room participant.
//
// Participants already in the room offer to each newcomer; the newcomer
// answers. SDP and ICE candidates travel through the signaling server, and
// each link carries a "chat" data channel on which both sides exchange a
// hello once it opens.
package mesh

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	pion "github.com/pion/webrtc/v4"

	"github.com/Kunal-Gupta28/Connectly/internal/config"
	"github.com/Kunal-Gupta28/Connectly/internal/version"
)

const dataChannelLabel = "chat"

// maxEarlyCandidates bounds the candidates held per sender before its offer.
const maxEarlyCandidates = 32

// ErrUnknownPeer is returned for answers or candidates from a participant
// we have no connection with.
var ErrUnknownPeer = errors.New("unknown peer")

// Signaler delivers negotiation messages to another participant.
// *signalclient.Client satisfies it.
type Signaler interface {
	SendOffer(to string, offer any) error
	SendAnswer(to string, answer any) error
	SendCandidate(to string, candidate any) error
}

type EventKind int

const (
	// PeerLinked: the data channel to Peer is open.
	PeerLinked EventKind = iota
	// PeerHello: Peer introduced itself as Name.
	PeerHello
	// PeerStatus: Peer changed its mic/camera state.
	PeerStatus
	// PeerClosed: the connection to Peer failed or was closed.
	PeerClosed
)

// Event reports a change on one peer link.
type Event struct {
	Kind   EventKind
	Peer   string
	Name   string
	Status StatusPayload
}

type peer struct {
	id string
	pc *pion.PeerConnection

	mu        sync.Mutex
	dc        *pion.DataChannel
	remoteSet bool
	pending   []pion.ICECandidateInit
}

// Mesh owns the peer connections of one room session.
type Mesh struct {
	cfg    *config.Client
	signal Signaler
	name   string

	mu     sync.Mutex
	peers  map[string]*peer
	early  map[string][]pion.ICECandidateInit
	events chan Event
	closed bool
}

func New(cfg *config.Client, signal Signaler, name string) *Mesh {
	return &Mesh{
		cfg:    cfg,
		signal: signal,
		name:   name,
		peers:  make(map[string]*peer),
		early:  make(map[string][]pion.ICECandidateInit),
		events: make(chan Event, 64),
	}
}

// Events delivers link changes. It is never closed; stop reading after Close.
func (m *Mesh) Events() <-chan Event {
	return m.events
}

// Peers returns the ids of all current links.
func (m *Mesh) Peers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0, len(m.peers))
	for id := range m.peers {
		ids = append(ids, id)
	}
	return ids
}

// Offer starts a link to a participant that just joined.
func (m *Mesh) Offer(remote string) error {
	p, err := m.newPeer(remote)
	if err != nil {
		return err
	}

	dc, err := p.pc.CreateDataChannel(dataChannelLabel, nil)
	if err != nil {
		m.Remove(remote)
		return fmt.Errorf("create data channel: %w", err)
	}
	m.attach(p, dc)

	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		m.Remove(remote)
		return fmt.Errorf("create offer: %w", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		m.Remove(remote)
		return fmt.Errorf("set local description: %w", err)
	}
	if err := m.signal.SendOffer(remote, p.pc.LocalDescription()); err != nil {
		m.Remove(remote)
		return fmt.Errorf("send offer: %w", err)
	}
	return nil
}

// HandleOffer answers an offer from a participant already in the room.
func (m *Mesh) HandleOffer(from string, raw json.RawMessage) error {
	var offer pion.SessionDescription
	if err := json.Unmarshal(raw, &offer); err != nil {
		return fmt.Errorf("parse offer: %w", err)
	}

	p, err := m.newPeer(from)
	if err != nil {
		return err
	}
	// Candidates relayed ahead of this offer go in front of the queue.
	m.mu.Lock()
	early := m.early[from]
	delete(m.early, from)
	m.mu.Unlock()
	if len(early) > 0 {
		p.mu.Lock()
		p.pending = append(early, p.pending...)
		p.mu.Unlock()
	}

	p.pc.OnDataChannel(func(dc *pion.DataChannel) {
		if dc.Label() == dataChannelLabel {
			m.attach(p, dc)
		}
	})

	if err := m.setRemote(p, offer); err != nil {
		m.Remove(from)
		return err
	}

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		m.Remove(from)
		return fmt.Errorf("create answer: %w", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		m.Remove(from)
		return fmt.Errorf("set local description: %w", err)
	}
	return m.signal.SendAnswer(from, p.pc.LocalDescription())
}

// HandleAnswer completes a link started with Offer.
func (m *Mesh) HandleAnswer(from string, raw json.RawMessage) error {
	var answer pion.SessionDescription
	if err := json.Unmarshal(raw, &answer); err != nil {
		return fmt.Errorf("parse answer: %w", err)
	}
	p, ok := m.lookup(from)
	if !ok {
		return fmt.Errorf("answer from %s: %w", from, ErrUnknownPeer)
	}
	return m.setRemote(p, answer)
}

// HandleCandidate adds a remote ICE candidate. Candidates that arrive before
// the remote description are held until it is set; candidates from a sender
// whose offer has not arrived yet are held for HandleOffer.
func (m *Mesh) HandleCandidate(from string, raw json.RawMessage) error {
	var c pion.ICECandidateInit
	if err := json.Unmarshal(raw, &c); err != nil {
		return fmt.Errorf("parse ICE candidate: %w", err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("candidate from %s: %w", from, ErrUnknownPeer)
	}
	p, ok := m.peers[from]
	if !ok {
		if len(m.early[from]) >= maxEarlyCandidates {
			m.mu.Unlock()
			return fmt.Errorf("candidate from %s: %w", from, ErrUnknownPeer)
		}
		m.early[from] = append(m.early[from], c)
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	p.mu.Lock()
	if !p.remoteSet {
		p.pending = append(p.pending, c)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if err := p.pc.AddICECandidate(c); err != nil {
		return fmt.Errorf("add ICE candidate: %w", err)
	}
	return nil
}

// SendStatus tells every linked peer about a mic/camera change.
func (m *Mesh) SendStatus(status StatusPayload) {
	msg, err := NewMessage(TypeStatus, status)
	if err != nil {
		return
	}
	m.mu.Lock()
	peers := make([]*peer, 0, len(m.peers))
	for _, p := range m.peers {
		peers = append(peers, p)
	}
	m.mu.Unlock()

	for _, p := range peers {
		p.send(msg)
	}
}

// Remove closes the link to id, if any.
func (m *Mesh) Remove(id string) {
	m.mu.Lock()
	p, ok := m.peers[id]
	delete(m.peers, id)
	delete(m.early, id)
	m.mu.Unlock()

	if ok {
		p.pc.Close()
	}
}

// Close tears down every link.
func (m *Mesh) Close() {
	m.mu.Lock()
	m.closed = true
	peers := m.peers
	m.peers = make(map[string]*peer)
	m.early = make(map[string][]pion.ICECandidateInit)
	m.mu.Unlock()

	for _, p := range peers {
		p.pc.Close()
	}
}

func (m *Mesh) lookup(id string) (*peer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.peers[id]
	return p, ok
}

func (m *Mesh) newPeer(id string) (*peer, error) {
	pc, err := NewPeerConnection(m.cfg)
	if err != nil {
		return nil, err
	}
	p := &peer{id: id, pc: pc}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		pc.Close()
		return nil, errors.New("mesh closed")
	}
	old := m.peers[id]
	m.peers[id] = p
	m.mu.Unlock()

	if old != nil {
		old.pc.Close()
	}

	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		if err := m.signal.SendCandidate(id, c.ToJSON()); err != nil {
			slog.Debug("send ICE candidate failed", "peer", id, "err", err)
		}
	})
	pc.OnConnectionStateChange(func(state pion.PeerConnectionState) {
		slog.Debug("peer connection state", "peer", id, "state", state.String())
		if state == pion.PeerConnectionStateFailed || state == pion.PeerConnectionStateClosed {
			m.mu.Lock()
			current := m.peers[id] == p
			if current {
				delete(m.peers, id)
			}
			m.mu.Unlock()
			if current {
				m.emit(Event{Kind: PeerClosed, Peer: id})
				pc.Close()
			}
		}
	})
	return p, nil
}

func (m *Mesh) setRemote(p *peer, desc pion.SessionDescription) error {
	if err := p.pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	p.mu.Lock()
	p.remoteSet = true
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, c := range pending {
		if err := p.pc.AddICECandidate(c); err != nil {
			slog.Debug("add queued ICE candidate failed", "peer", p.id, "err", err)
		}
	}
	return nil
}

func (m *Mesh) attach(p *peer, dc *pion.DataChannel) {
	p.mu.Lock()
	p.dc = dc
	p.mu.Unlock()

	dc.OnOpen(func() {
		m.emit(Event{Kind: PeerLinked, Peer: p.id})
		hello, err := NewMessage(TypeHello, HelloPayload{Name: m.name, Version: version.Version})
		if err == nil {
			p.send(hello)
		}
	})
	dc.OnMessage(func(raw pion.DataChannelMessage) {
		msg, err := DecodeMessage(raw.Data)
		if err != nil {
			slog.Debug("bad data channel frame", "peer", p.id, "err", err)
			return
		}
		switch msg.Type {
		case TypeHello:
			var h HelloPayload
			if err := msg.DecodePayload(&h); err == nil {
				m.emit(Event{Kind: PeerHello, Peer: p.id, Name: h.Name})
			}
		case TypeStatus:
			var s StatusPayload
			if err := msg.DecodePayload(&s); err == nil {
				m.emit(Event{Kind: PeerStatus, Peer: p.id, Status: s})
			}
		}
	})
}

func (p *peer) send(msg Message) {
	p.mu.Lock()
	dc := p.dc
	p.mu.Unlock()
	if dc == nil || dc.ReadyState() != pion.DataChannelStateOpen {
		return
	}
	b, err := msg.Encode()
	if err != nil {
		return
	}
	if err := dc.Send(b); err != nil {
		slog.Debug("data channel send failed", "peer", p.id, "err", err)
	}
}

// emit never blocks a pion callback; events are dropped when nobody reads.
func (m *Mesh) emit(ev Event) {
	select {
	case m.events <- ev:
	default:
	}
}

// NewPeerConnection builds a peer connection from the client's ICE settings.
// TURN-only transport is used when requested or when the network looks
// tunneled, provided a TURN server is configured.
func NewPeerConnection(cfg *config.Client) (*pion.PeerConnection, error) {
	var iceServers []pion.ICEServer
	if stun := cfg.GetSTUNServers(); stun != nil {
		iceServers = append(iceServers, pion.ICEServer{URLs: stun})
	}

	turnServers := cfg.GetTURNServers()
	if turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	policy := pion.ICETransportPolicyAll
	if turnServers != nil && (cfg.ForceRelay || ShouldForceRelay()) {
		policy = pion.ICETransportPolicyRelay
	}

	pc, err := pion.NewPeerConnection(pion.Configuration{
		ICEServers:         iceServers,
		ICETransportPolicy: policy,
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	return pc, nil
}
