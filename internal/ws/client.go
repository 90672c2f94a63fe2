package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"glxy/internal/domain"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second
	sendBuffer = 16
)

// ProfileStreamer is the profile subscription the client forwards
type ProfileStreamer interface {
	Subscribe(ctx context.Context, userID string, onChange func(*domain.UserProfile), onError func(error)) error
}

// Client streams one user's profile over one websocket connection.
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
	Done   chan struct{}

	log    *slog.Logger
	mu     sync.Mutex
	closed bool
}

func NewClient(userID string, conn *websocket.Conn, log *slog.Logger) *Client {
	return &Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
		Done:   make(chan struct{}),
		log:    log.With("user_id", userID),
	}
}

// Run blocks until the peer disconnects, ctx ends or the stream fails.
// Only Run's goroutine sends profile frames, so Send is closed after the
// subscription has returned.
func (c *Client) Run(ctx context.Context, profiles ProfileStreamer) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		c.writePump(ctx)
		close(writerDone)
	}()
	go func() {
		c.readPump()
		cancel()
	}()

	c.enqueue(ctx, Envelope{Type: MsgReady})

	err := profiles.Subscribe(ctx, c.UserID, func(p *domain.UserProfile) {
		c.enqueue(ctx, Envelope{Type: MsgProfile, Profile: p})
	}, func(err error) {
		c.enqueue(ctx, Envelope{Type: MsgError, Error: &ErrorPayload{Message: err.Error()}})
	})
	if err != nil {
		c.log.Warn("profile stream ended", "error", err)
	}

	// let the writer flush and send a close frame
	c.close()
	select {
	case <-writerDone:
	case <-time.After(writeWait):
	}
	_ = c.Conn.Close()
}

func (c *Client) enqueue(ctx context.Context, env Envelope) {
	msg, err := json.Marshal(env)
	if err != nil {
		c.log.Error("marshal frame", "error", err)
		return
	}
	select {
	case c.Send <- msg:
	case <-ctx.Done():
	}
}

// trySend queues msg unless the buffer is full or the client is closing
func (c *Client) trySend(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

//read
func (c *Client) readPump() {
	defer close(c.Done)

	c.Conn.SetReadLimit(512)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("read error", "error", err)
			}
			return
		}
		var msg ClientMessage
		if json.Unmarshal(raw, &msg) == nil && msg.Type == MsgPing {
			pong, _ := json.Marshal(Envelope{Type: MsgPong})
			c.trySend(pong)
		}
	}
}

//write
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug("write error", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-ctx.Done():
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}
