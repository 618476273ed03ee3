package signaling

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		want    string // event name on success
		details string // error details on failure
	}{
		{"create", `{"event":"create-room","data":{"roomId":"r1"}}`, EventCreateRoom, ""},
		{"join", `{"event":"join-room","data":{"roomId":"r1"}}`, EventJoinRoom, ""},
		{"leave", `{"event":"leave-room","data":{"roomId":"r1"}}`, EventLeaveRoom, ""},
		{"offer", `{"event":"send-offer","data":{"offer":{"sdp":"x"},"newlyJoinUser":"b"}}`, EventSendOffer, ""},
		{"answer", `{"event":"send-answer","data":{"answer":{"sdp":"x"},"alreadyJoinedUser":"a"}}`, EventSendAnswer, ""},
		{"candidate", `{"event":"ice-candidate","data":{"candidate":{"candidate":"c"},"to":"a"}}`, EventICECandidate, ""},
		{"chat", `{"event":"send-message","data":{"message":"hi","roomId":"r1"}}`, EventSendMessage, ""},
		{"status", `{"event":"user-status","data":{"status":{"audio":false},"roomId":"r1"}}`, EventUserStatus, ""},
		{"stream", `{"event":"stream","data":{"stream":{"id":"s"},"roomId":"r1"}}`, EventStream, ""},

		{"not json", `{"event":`, "", "invalid json"},
		{"no event", `{"data":{}}`, "", "missing event"},
		{"unknown event", `{"event":"explode","data":{}}`, "", "unknown event explode"},
		{"no data", `{"event":"create-room"}`, "", "missing data"},
		{"null data", `{"event":"create-room","data":null}`, "", "missing data"},
		{"wrong data type", `{"event":"create-room","data":"r1"}`, "", "invalid data"},
		{"blank room", `{"event":"join-room","data":{"roomId":"  "}}`, "", "missing roomId"},
		{"long room", `{"event":"join-room","data":{"roomId":"` + strings.Repeat("x", 129) + `"}}`, "", "roomId too long"},
		{"offer without target", `{"event":"send-offer","data":{"offer":{}}}`, "", "missing newlyJoinUser"},
		{"answer without payload", `{"event":"send-answer","data":{"alreadyJoinedUser":"a"}}`, "", "missing answer"},
		{"candidate without target", `{"event":"ice-candidate","data":{"candidate":{}}}`, "", "missing to"},
		{"chat without message", `{"event":"send-message","data":{"roomId":"r1"}}`, "", "missing message"},
		{"status not object", `{"event":"user-status","data":{"status":true,"roomId":"r1"}}`, "", "invalid data"},
		{"status missing", `{"event":"user-status","data":{"roomId":"r1"}}`, "", "missing status"},
		{"stream missing", `{"event":"stream","data":{"roomId":"r1"}}`, "", "missing stream"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Decode([]byte(tt.frame))
			if tt.want != "" {
				if err != nil {
					t.Fatalf("Decode error: %v", err)
				}
				if msg.Event() != tt.want {
					t.Errorf("event = %q, want %q", msg.Event(), tt.want)
				}
				return
			}

			if !errors.Is(err, ErrMalformedMessage) {
				t.Fatalf("err = %v, want ErrMalformedMessage", err)
			}
			var e *Error
			if !errors.As(err, &e) {
				t.Fatalf("err %T is not *Error", err)
			}
			if e.Details != tt.details {
				t.Errorf("details = %q, want %q", e.Details, tt.details)
			}
		})
	}
}

func TestStatusUpdateFrame(t *testing.T) {
	status := map[string]json.RawMessage{"audio": json.RawMessage(`false`), "id": json.RawMessage(`"spoof"`)}
	var env Envelope
	if err := json.Unmarshal(statusUpdateFrame(status, "real"), &env); err != nil {
		t.Fatal(err)
	}
	var data map[string]any
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if env.Event != EventUserStatusUpdate || data["id"] != "real" || data["audio"] != false {
		t.Errorf("frame = %s %v", env.Event, data)
	}
	if string(status["id"]) != `"spoof"` {
		t.Error("caller's status map was modified")
	}
}
