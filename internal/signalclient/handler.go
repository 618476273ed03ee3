package signalclient

import (
	"log/slog"
)

// Handler turns the client's raw envelopes into Events.
type Handler struct {
	client *Client
	Events chan Event
}

// NewHandler creates a handler for client. Call Start to begin routing.
func NewHandler(client *Client) *Handler {
	return &Handler{
		client: client,
		Events: make(chan Event, 64),
	}
}

// Start routes incoming messages until the connection closes, then closes
// Events.
func (h *Handler) Start() {
	defer close(h.Events)

	for env := range h.client.Incoming() {
		ev, err := ParseEvent(env)
		if err != nil {
			slog.Warn("dropping server frame", "event", env.Event, "err", err)
			continue
		}
		h.Events <- ev
	}
}
