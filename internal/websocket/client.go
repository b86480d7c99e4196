package websocket

import (
	"context"
	"sync"
	"time"

	"support-chat/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxFrameSize   = 16 * 1024
	sendBufferSize = 256
)

// Client is one websocket connection. A connection starts anonymous and
// becomes bound to a principal once it authenticates.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte

	mu        sync.RWMutex
	principal *services.Principal
	channels  map[string]bool
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		ID:       uuid.New().String(),
		Conn:     conn,
		Send:     make(chan []byte, sendBufferSize),
		channels: make(map[string]bool),
	}
}

func (c *Client) setPrincipal(p services.Principal) {
	c.mu.Lock()
	c.principal = &p
	c.mu.Unlock()
}

// Principal returns the bound principal, if the client has authenticated.
func (c *Client) Principal() (services.Principal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.principal == nil {
		return services.Principal{}, false
	}
	return *c.principal, true
}

func (c *Client) Authenticated() bool {
	_, ok := c.Principal()
	return ok
}

// UserID is empty until the client authenticates.
func (c *Client) UserID() string {
	p, ok := c.Principal()
	if !ok {
		return ""
	}
	return p.ID.String()
}

func (c *Client) subscribe(channel string) {
	c.mu.Lock()
	c.channels[channel] = true
	c.mu.Unlock()
}

func (c *Client) unsubscribe(channel string) {
	c.mu.Lock()
	delete(c.channels, channel)
	c.mu.Unlock()
}

func (c *Client) IsSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channels[channel]
}

func (c *Client) Channels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	channels := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		channels = append(channels, ch)
	}
	return channels
}

// WriteLoop drains Send to the socket and keeps the connection alive with
// pings. It is the only writer of Conn.
func (c *Client) WriteLoop(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendMessage queues msg without blocking. A client too slow to keep up
// loses messages instead of stalling the hub.
func (c *Client) SendMessage(msg []byte) bool {
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}
