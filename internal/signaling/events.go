package signaling

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// Client to server events.
const (
	EventCreateRoom   = "create-room"
	EventJoinRoom     = "join-room"
	EventLeaveRoom    = "leave-room"
	EventSendOffer    = "send-offer"
	EventSendAnswer   = "send-answer"
	EventICECandidate = "ice-candidate"
	EventSendMessage  = "send-message"
	EventUserStatus   = "user-status"
	EventStream       = "stream"
)

// Server to client events.
const (
	EventConnected           = "connected"
	EventNavigateHost        = "navigate_host"
	EventJoinTheUser         = "join_the_user"
	EventRoomNotFound        = "room_not_found"
	EventLeftRoom            = "left_room"
	EventNewUserConnected    = "new-user-connected"
	EventUserDisconnected    = "user-disconnected"
	EventParticipantCount    = "participant-count"
	EventReceiveOffer        = "receive-offer"
	EventReceiveAnswer       = "receive-answer"
	EventReceiveICECandidate = "receive-ice-candidate"
	EventReceiveMessage      = "receive-message"
	EventUserStatusUpdate    = "user-status-update"
	EventError               = "error"
)

// Relay kinds accepted by Relay.Relay.
const (
	KindOffer     = "offer"
	KindAnswer    = "answer"
	KindCandidate = "ice-candidate"
)

const maxRoomIDLength = 128

// Envelope is the frame shape in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound is a decoded and validated client to server message.
type Inbound interface {
	Event() string
	validate() error
}

type CreateRoom struct {
	RoomID string `json:"roomId"`
}

type JoinRoom struct {
	RoomID string `json:"roomId"`
}

type LeaveRoom struct {
	RoomID string `json:"roomId"`
}

type SendOffer struct {
	Offer         json.RawMessage `json:"offer"`
	NewlyJoinUser string          `json:"newlyJoinUser"`
}

type SendAnswer struct {
	Answer            json.RawMessage `json:"answer"`
	AlreadyJoinedUser string          `json:"alreadyJoinedUser"`
}

type ICECandidate struct {
	Candidate json.RawMessage `json:"candidate"`
	To        string          `json:"to"`
}

type SendMessage struct {
	Message json.RawMessage `json:"message"`
	RoomID  string          `json:"roomId"`
}

// UserStatus carries mic/camera toggles. Status must be a JSON object.
type UserStatus struct {
	Status map[string]json.RawMessage `json:"status"`
	RoomID string                     `json:"roomId"`
}

// Stream is the legacy media fan-out path, kept for older web clients.
type Stream struct {
	Stream json.RawMessage `json:"stream"`
	RoomID string          `json:"roomId"`
}

func (*CreateRoom) Event() string   { return EventCreateRoom }
func (*JoinRoom) Event() string     { return EventJoinRoom }
func (*LeaveRoom) Event() string    { return EventLeaveRoom }
func (*SendOffer) Event() string    { return EventSendOffer }
func (*SendAnswer) Event() string   { return EventSendAnswer }
func (*ICECandidate) Event() string { return EventICECandidate }
func (*SendMessage) Event() string  { return EventSendMessage }
func (*UserStatus) Event() string   { return EventUserStatus }
func (*Stream) Event() string       { return EventStream }

func (m *CreateRoom) validate() error { return checkRoomID(EventCreateRoom, m.RoomID) }
func (m *JoinRoom) validate() error   { return checkRoomID(EventJoinRoom, m.RoomID) }
func (m *LeaveRoom) validate() error  { return checkRoomID(EventLeaveRoom, m.RoomID) }

func (m *SendOffer) validate() error {
	return checkRelay(EventSendOffer, m.Offer, "offer", m.NewlyJoinUser, "newlyJoinUser")
}

func (m *SendAnswer) validate() error {
	return checkRelay(EventSendAnswer, m.Answer, "answer", m.AlreadyJoinedUser, "alreadyJoinedUser")
}

func (m *ICECandidate) validate() error {
	return checkRelay(EventICECandidate, m.Candidate, "candidate", m.To, "to")
}

func (m *SendMessage) validate() error {
	if !present(m.Message) {
		return malformed(EventSendMessage, "missing message")
	}
	return checkRoomID(EventSendMessage, m.RoomID)
}

func (m *UserStatus) validate() error {
	if m.Status == nil {
		return malformed(EventUserStatus, "missing status")
	}
	return checkRoomID(EventUserStatus, m.RoomID)
}

func (m *Stream) validate() error {
	if !present(m.Stream) {
		return malformed(EventStream, "missing stream")
	}
	return checkRoomID(EventStream, m.RoomID)
}

// Decode parses one frame into its typed message. Any shape violation is
// reported as ErrMalformedMessage.
func Decode(frame []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, malformed("decode", "invalid json")
	}

	var msg Inbound
	switch env.Event {
	case EventCreateRoom:
		msg = &CreateRoom{}
	case EventJoinRoom:
		msg = &JoinRoom{}
	case EventLeaveRoom:
		msg = &LeaveRoom{}
	case EventSendOffer:
		msg = &SendOffer{}
	case EventSendAnswer:
		msg = &SendAnswer{}
	case EventICECandidate:
		msg = &ICECandidate{}
	case EventSendMessage:
		msg = &SendMessage{}
	case EventUserStatus:
		msg = &UserStatus{}
	case EventStream:
		msg = &Stream{}
	case "":
		return nil, malformed("decode", "missing event")
	default:
		return nil, malformed("decode", "unknown event "+env.Event)
	}

	if !present(env.Data) {
		return nil, malformed(env.Event, "missing data")
	}
	if err := json.Unmarshal(env.Data, msg); err != nil {
		return nil, malformed(env.Event, "invalid data")
	}
	if err := msg.validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

func present(raw json.RawMessage) bool {
	return len(raw) > 0 && string(raw) != "null"
}

func checkRoomID(op, roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return malformed(op, "missing roomId")
	}
	if len(roomID) > maxRoomIDLength {
		return malformed(op, "roomId too long")
	}
	return nil
}

func checkRelay(op string, payload json.RawMessage, payloadField, target, targetField string) error {
	if !present(payload) {
		return malformed(op, "missing "+payloadField)
	}
	if strings.TrimSpace(target) == "" {
		return malformed(op, "missing "+targetField)
	}
	return nil
}

// Outbound payloads.

type connectedData struct {
	ConnectionID string `json:"connectionId"`
}

type navigateHostData struct {
	JoinHostToRoomID string `json:"joinHostToRoomId"`
}

type joinTheUserData struct {
	JoinNewUserToRoomID string `json:"joinNewUserToRoomId"`
}

type roomData struct {
	RoomID string `json:"roomId"`
}

type newUserData struct {
	NewlyJoinUser string `json:"newlyJoinUser"`
}

type userDisconnectedData struct {
	ConnectionID string `json:"connectionId"`
	RoomID       string `json:"roomId"`
}

type participantCountData struct {
	Count  int    `json:"count"`
	RoomID string `json:"roomId"`
}

type receiveOfferData struct {
	Offer             json.RawMessage `json:"offer"`
	AlreadyJoinedUser string          `json:"alreadyJoinedUser"`
}

type receiveAnswerData struct {
	Answer        json.RawMessage `json:"answer"`
	NewlyJoinUser string          `json:"newlyJoinUser"`
}

type receiveCandidateData struct {
	Candidate json.RawMessage `json:"candidate"`
	From      string          `json:"from"`
}

type receiveMessageData struct {
	Message json.RawMessage `json:"message"`
	From    string          `json:"from"`
	RoomID  string          `json:"roomId"`
}

type streamData struct {
	Stream json.RawMessage `json:"stream"`
}

type errorData struct {
	Message string `json:"message"`
}

// frame encodes an outbound envelope. Payloads here are built from already
// validated JSON, so a failure is logged and an empty frame returned.
func frame(event string, data any) []byte {
	raw, err := json.Marshal(data)
	if err != nil {
		slog.Error("encode payload", "event", event, "err", err)
		return nil
	}
	b, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		slog.Error("encode envelope", "event", event, "err", err)
		return nil
	}
	return b
}

func errorFrame(msg string) []byte {
	return frame(EventError, errorData{Message: msg})
}

func statusUpdateFrame(status map[string]json.RawMessage, from string) []byte {
	out := make(map[string]json.RawMessage, len(status)+1)
	for k, v := range status {
		out[k] = v
	}
	id, _ := json.Marshal(from)
	out["id"] = id
	return frame(EventUserStatusUpdate, out)
}
