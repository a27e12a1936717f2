package chat

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Transport is the write side of a live connection. *websocket.Conn
// satisfies it; tests substitute an in-memory fake.
type Transport interface {
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

var (
	ErrClientClosed  = errors.New("client closed")
	ErrSendQueueFull = errors.New("send queue full")
)

type outFrame struct {
	payload   []byte
	close     bool
	closeCode int
	closeText string
}

// Client is one live connection owned by the session registry. All writes
// funnel through a buffered queue drained by a single writer goroutine, so
// envelopes reach the socket in enqueue order.
type Client struct {
	ConnID      string
	UserID      string
	Username    string
	ConnectedAt time.Time

	ws            Transport
	send          chan outFrame
	writeDeadline time.Duration
	closed        atomic.Bool
	done          chan struct{}
}

func NewClient(connID, userID, username string, ws Transport, queueSize int, writeDeadline time.Duration) *Client {
	if queueSize <= 0 {
		queueSize = 256
	}
	if writeDeadline <= 0 {
		writeDeadline = 5 * time.Second
	}
	c := &Client{
		ConnID:        connID,
		UserID:        userID,
		Username:      username,
		ConnectedAt:   time.Now(),
		ws:            ws,
		send:          make(chan outFrame, queueSize+1), // +1 keeps room for the close frame
		writeDeadline: writeDeadline,
		done:          make(chan struct{}),
	}
	go c.writePump()
	return c
}

// Enqueue queues payload for delivery. Never blocks; a full queue means a
// slow client and the frame is refused.
func (c *Client) Enqueue(payload []byte) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	select {
	case c.send <- outFrame{payload: payload}:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// CloseWithCode closes the connection after draining already-queued frames,
// so an envelope enqueued right before the close is still delivered first.
func (c *Client) CloseWithCode(code int, reason string) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	select {
	case c.send <- outFrame{close: true, closeCode: code, closeText: reason}:
	default:
		// Queue full; give up on pending frames and close now.
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
		_ = c.ws.Close()
	}
}

func (c *Client) Close() {
	c.CloseWithCode(websocket.CloseNormalClosure, "")
}

// Done is closed once the writer goroutine has exited.
func (c *Client) Done() <-chan struct{} { return c.done }

func (c *Client) writePump() {
	defer close(c.done)
	for {
		f := <-c.send
		if f.close {
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(f.closeCode, f.closeText),
				time.Now().Add(c.writeDeadline))
			_ = c.ws.Close()
			return
		}
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeDeadline))
		if err := c.ws.WriteMessage(websocket.TextMessage, f.payload); err != nil {
			// Broken transport; closing unblocks the reader, whose
			// teardown runs the full disconnect cleanup.
			c.closed.Store(true)
			_ = c.ws.Close()
			return
		}
	}
}
