package signaling

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// DefaultMaxMessageSize is enough for SDP offers with many candidates.
	DefaultMaxMessageSize = 64 * 1024
)

// ClientOptions tune a single websocket client.
type ClientOptions struct {
	MaxMessageSize int64
	RateLimit      float64 // frames per second
	RateBurst      int
}

// Client pumps frames between one websocket and the hub.
type Client struct {
	Hub  *Hub
	Conn *Conn
	WS   *websocket.Conn

	limiter *rate.Limiter
	maxSize int64
}

func NewClient(hub *Hub, conn *Conn, ws *websocket.Conn, opts ClientOptions) *Client {
	c := &Client{
		Hub:     hub,
		Conn:    conn,
		WS:      ws,
		maxSize: opts.MaxMessageSize,
	}
	if c.maxSize <= 0 {
		c.maxSize = DefaultMaxMessageSize
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return c
}

// ReadPump pumps frames from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c.Conn)
		c.WS.Close()
	}()

	c.WS.SetReadLimit(c.maxSize)
	c.WS.SetReadDeadline(time.Now().Add(pongWait))
	c.WS.SetPongHandler(func(string) error {
		c.WS.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		msgType, data, err := c.WS.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slog.Warn("read failed", "conn", c.Conn.ID, "err", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			c.Conn.Enqueue(errorFrame(malformed("read", "binary frames are not supported").Error()))
			continue
		}
		if c.limiter != nil && !c.limiter.Allow() {
			slog.Debug("frame dropped", "conn", c.Conn.ID, "err", ErrRateLimited)
			c.Conn.Enqueue(errorFrame(ErrRateLimited.Error()))
			continue
		}
		if !c.Hub.Submit(c.Conn, data) {
			return
		}
	}
}

// WritePump pumps queued frames from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.WS.Close()
	}()

	for {
		select {
		case f := <-c.Conn.Outbound():
			c.WS.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WS.WriteMessage(websocket.TextMessage, f); err != nil {
				slog.Debug("write failed", "conn", c.Conn.ID, "err", err)
				c.Conn.Close()
				return
			}

		case <-c.Conn.Done():
			c.flush()
			c.WS.SetWriteDeadline(time.Now().Add(writeWait))
			c.WS.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-ticker.C:
			c.WS.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WS.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Conn.Close()
				return
			}
		}
	}
}

// flush writes whatever is already queued so a closing connection still
// receives its final replies.
func (c *Client) flush() {
	for {
		select {
		case f := <-c.Conn.Outbound():
			c.WS.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WS.WriteMessage(websocket.TextMessage, f); err != nil {
				return
			}
		default:
			return
		}
	}
}
