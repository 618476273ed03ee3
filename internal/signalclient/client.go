// Package signalclient speaks the Connectly signaling protocol from the
// terminal client side.
package signalclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Kunal-Gupta28/Connectly/internal/dns"
	"github.com/Kunal-Gupta28/Connectly/internal/signaling"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	outgoingBuffer = 64
)

// ErrClosed is returned by Send after the connection has gone away.
var ErrClosed = errors.New("signaling connection closed")

// Client manages the WebSocket connection to the signaling server.
type Client struct {
	conn      *websocket.Conn
	serverURL string
	incoming  chan signaling.Envelope
	outgoing  chan []byte
	done      chan struct{}
	closeOnce sync.Once

	// Dial makes the TCP connection. Defaults to dns.DialContext.
	Dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewClient creates a client for the websocket endpoint serverURL.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		incoming:  make(chan signaling.Envelope, outgoingBuffer),
		outgoing:  make(chan []byte, outgoingBuffer),
		done:      make(chan struct{}),
		Dial:      dns.DialContext,
	}
}

// Connect establishes the WebSocket connection and starts the pumps.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	dialer := *websocket.DefaultDialer
	dialer.NetDialContext = c.Dial

	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.readPump()
	go c.writePump()
	return nil
}

func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
		c.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var env signaling.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("signaling read failed", "err", err)
			}
			return
		}
		select {
		case c.incoming <- env:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send encodes data under event and queues it for the server.
func (c *Client) Send(event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	frame, err := json.Marshal(signaling.Envelope{Event: event, Data: raw})
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.outgoing <- frame:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// Incoming returns received envelopes. It is closed when the connection ends.
func (c *Client) Incoming() <-chan signaling.Envelope {
	return c.incoming
}

// Done is closed once the client has been closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close asks the write pump to send a close frame and stop. Safe to call
// more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) CreateRoom(roomID string) error {
	return c.Send(signaling.EventCreateRoom, signaling.CreateRoom{RoomID: roomID})
}

func (c *Client) JoinRoom(roomID string) error {
	return c.Send(signaling.EventJoinRoom, signaling.JoinRoom{RoomID: roomID})
}

func (c *Client) LeaveRoom(roomID string) error {
	return c.Send(signaling.EventLeaveRoom, signaling.LeaveRoom{RoomID: roomID})
}

// SendOffer relays an SDP offer to a participant that just joined.
func (c *Client) SendOffer(to string, offer any) error {
	raw, err := json.Marshal(offer)
	if err != nil {
		return err
	}
	return c.Send(signaling.EventSendOffer, signaling.SendOffer{Offer: raw, NewlyJoinUser: to})
}

// SendAnswer relays an SDP answer back to the participant that offered.
func (c *Client) SendAnswer(to string, answer any) error {
	raw, err := json.Marshal(answer)
	if err != nil {
		return err
	}
	return c.Send(signaling.EventSendAnswer, signaling.SendAnswer{Answer: raw, AlreadyJoinedUser: to})
}

func (c *Client) SendCandidate(to string, candidate any) error {
	raw, err := json.Marshal(candidate)
	if err != nil {
		return err
	}
	return c.Send(signaling.EventICECandidate, signaling.ICECandidate{Candidate: raw, To: to})
}

func (c *Client) SendChat(roomID, text string) error {
	raw, err := json.Marshal(text)
	if err != nil {
		return err
	}
	return c.Send(signaling.EventSendMessage, signaling.SendMessage{Message: raw, RoomID: roomID})
}

// SendStatus announces mic/camera state, e.g. {"audio": false}.
func (c *Client) SendStatus(roomID string, status map[string]any) error {
	fields := make(map[string]json.RawMessage, len(status))
	for k, v := range status {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		fields[k] = raw
	}
	return c.Send(signaling.EventUserStatus, signaling.UserStatus{Status: fields, RoomID: roomID})
}
