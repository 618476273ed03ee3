package signaling

import (
	"encoding/json"
	"log/slog"
)

// Relay routes offer, answer and ICE candidate payloads between two named
// connections. Delivery is at most once.
type Relay struct {
	conns  *ConnectionRegistry
	onSlow func(*Conn)
}

func NewRelay(conns *ConnectionRegistry, onSlow func(*Conn)) *Relay {
	return &Relay{conns: conns, onSlow: onSlow}
}

// Relay delivers payload from one connection to another. A target that is
// not connected yields ErrTargetUnreachable, which callers drop without
// telling the sender.
func (r *Relay) Relay(kind, from, to string, payload json.RawMessage) error {
	target, ok := r.conns.Lookup(to)
	if !ok {
		slog.Debug("relay target unreachable", "kind", kind, "conn", from, "target", to)
		return WrapError("relay "+kind, ErrTargetUnreachable, to)
	}

	// Encode the receive-side event for this kind
	var f []byte
	switch kind {
	case KindOffer:
		f = frame(EventReceiveOffer, receiveOfferData{Offer: payload, AlreadyJoinedUser: from})
	case KindAnswer:
		f = frame(EventReceiveAnswer, receiveAnswerData{Answer: payload, NewlyJoinUser: from})
	case KindCandidate:
		f = frame(EventReceiveICECandidate, receiveCandidateData{Candidate: payload, From: from})
	default:
		return WrapError("relay", ErrInternalFault, "unknown kind "+kind)
	}

	// A full queue marks the target for eviction
	if !target.Enqueue(f) {
		if r.onSlow != nil && !target.Closed() {
			r.onSlow(target)
		}
		return WrapError("relay "+kind, ErrSlowConsumer, to)
	}
	slog.Debug("relayed", "kind", kind, "conn", from, "target", to)
	return nil
}
