package signalclient

import (
	"encoding/json"
	"fmt"

	"github.com/Kunal-Gupta28/Connectly/internal/signaling"
)

// Event is one decoded server frame. Which fields are set depends on Name:
//
//	connected            Peer (own id)
//	navigate_host        RoomID
//	join_the_user        RoomID
//	room_not_found       RoomID
//	left_room            RoomID
//	new-user-connected   Peer
//	user-disconnected    Peer, RoomID
//	participant-count    Count, RoomID
//	receive-offer        Peer, Payload
//	receive-answer       Peer, Payload
//	receive-ice-candidate Peer, Payload
//	receive-message      Peer, RoomID, Payload, Text
//	user-status-update   Peer, Status
//	stream               Payload
//	error                Text
type Event struct {
	Name    string
	RoomID  string
	Peer    string
	Count   int
	Text    string
	Payload json.RawMessage
	Status  map[string]json.RawMessage
}

type serverData struct {
	ConnectionID        string          `json:"connectionId"`
	JoinHostToRoomID    string          `json:"joinHostToRoomId"`
	JoinNewUserToRoomID string          `json:"joinNewUserToRoomId"`
	RoomID              string          `json:"roomId"`
	NewlyJoinUser       string          `json:"newlyJoinUser"`
	AlreadyJoinedUser   string          `json:"alreadyJoinedUser"`
	From                string          `json:"from"`
	Count               int             `json:"count"`
	Offer               json.RawMessage `json:"offer"`
	Answer              json.RawMessage `json:"answer"`
	Candidate           json.RawMessage `json:"candidate"`
	Message             json.RawMessage `json:"message"`
	Stream              json.RawMessage `json:"stream"`
}

// ParseEvent turns an envelope received from the server into an Event.
func ParseEvent(env signaling.Envelope) (Event, error) {
	ev := Event{Name: env.Event}

	if env.Event == signaling.EventUserStatusUpdate {
		var status map[string]json.RawMessage
		if err := json.Unmarshal(env.Data, &status); err != nil {
			return ev, fmt.Errorf("parse %s: %w", env.Event, err)
		}
		if raw, ok := status["id"]; ok {
			json.Unmarshal(raw, &ev.Peer)
			delete(status, "id")
		}
		ev.Status = status
		return ev, nil
	}

	var d serverData
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return ev, fmt.Errorf("parse %s: %w", env.Event, err)
		}
	}

	switch env.Event {
	case signaling.EventConnected:
		ev.Peer = d.ConnectionID
	case signaling.EventNavigateHost:
		ev.RoomID = d.JoinHostToRoomID
	case signaling.EventJoinTheUser:
		ev.RoomID = d.JoinNewUserToRoomID
	case signaling.EventRoomNotFound, signaling.EventLeftRoom:
		ev.RoomID = d.RoomID
	case signaling.EventNewUserConnected:
		ev.Peer = d.NewlyJoinUser
	case signaling.EventUserDisconnected:
		ev.Peer, ev.RoomID = d.ConnectionID, d.RoomID
	case signaling.EventParticipantCount:
		ev.Count, ev.RoomID = d.Count, d.RoomID
	case signaling.EventReceiveOffer:
		ev.Peer, ev.Payload = d.AlreadyJoinedUser, d.Offer
	case signaling.EventReceiveAnswer:
		ev.Peer, ev.Payload = d.NewlyJoinUser, d.Answer
	case signaling.EventReceiveICECandidate:
		ev.Peer, ev.Payload = d.From, d.Candidate
	case signaling.EventReceiveMessage:
		ev.Peer, ev.RoomID, ev.Payload = d.From, d.RoomID, d.Message
		ev.Text = messageText(d.Message)
	case signaling.EventStream:
		ev.Payload = d.Stream
	case signaling.EventError:
		var e struct {
			Message string `json:"message"`
		}
		json.Unmarshal(env.Data, &e)
		ev.Text = e.Message
	default:
		return ev, fmt.Errorf("unknown event %q", env.Event)
	}
	return ev, nil
}

// messageText renders a chat payload. Browsers send plain strings; anything
// else is shown as raw JSON.
func messageText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
