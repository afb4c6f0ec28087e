package hub

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/Adnxnn/ILCT-Platform-sub001/internal/models"
)

// Client wraps one websocket connection. Identity comes from the external
// verifier and is trusted as-is.
type Client struct {
	ID       string
	Identity string
	Conn     *websocket.Conn

	mu   sync.Mutex
	hook func(models.Frame)
}

func NewClient(id, identity string, conn *websocket.Conn) *Client {
	return &Client{ID: id, Identity: identity, Conn: conn}
}

// SetSendHook replaces the default WebSocket sender (used in tests).
func (c *Client) SetSendHook(fn func(models.Frame)) {
	c.mu.Lock()
	c.hook = fn
	c.mu.Unlock()
}

// Send delivers a frame to this client. A write failure is the recipient's
// problem only; it never propagates.
func (c *Client) Send(frame models.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hook != nil {
		c.hook(frame)
		return
	}
	if c.Conn == nil {
		return
	}
	_ = c.Conn.WriteJSON(frame)
}
