package signaling

import "sync"

// DefaultSendQueueSize bounds the outbound frames buffered per connection.
const DefaultSendQueueSize = 256

// Conn is the transport handle the registries hand out. Frames are queued
// without blocking and drained by the connection's write pump.
type Conn struct {
	ID string

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewConn creates a handle with a bounded outbound queue.
func NewConn(id string, queueSize int) *Conn {
	if queueSize <= 0 {
		queueSize = DefaultSendQueueSize
	}
	return &Conn{
		ID:   id,
		send: make(chan []byte, queueSize),
		done: make(chan struct{}),
	}
}

// Enqueue queues a frame. It returns false when the connection is closed or
// its queue is full; it never blocks.
func (c *Conn) Enqueue(frame []byte) bool {
	if frame == nil {
		return true
	}
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Outbound is drained by the write pump.
func (c *Conn) Outbound() <-chan []byte {
	return c.send
}

// Done is closed once the connection has been closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close is safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Closed reports whether Close has been called.
func (c *Conn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
