package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sirenwatch/siren-backend/internal/utils"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 << 10
)

// Client is one websocket connection, either a siren or a dashboard.
type Client struct {
	id          string
	hub         *Hub
	conn        *websocket.Conn
	send        chan []byte
	remoteAddr  string
	connectedAt time.Time

	closeOnce sync.Once
}

func (h *Hub) newClient(conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		id:          utils.GenerateUUID(),
		hub:         h,
		conn:        conn,
		send:        make(chan []byte, h.opts.SendBuffer),
		remoteAddr:  remoteAddr,
		connectedAt: h.opts.Now().UTC(),
	}
}

// ID is the connection identifier used in logs and the connections listing.
func (c *Client) ID() string { return c.id }

// enqueue must be called with the hub lock held; Disconnect closes send under
// the same lock.
func (c *Client) enqueue(msg []byte) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			c.conn.Close()
		}
	})
}

// readPump feeds inbound frames to the hub until the connection fails or a
// pong is overdue, then runs the disconnect.
func (c *Client) readPump() {
	defer func() {
		if err := c.hub.Disconnect(context.Background(), c.id); err != nil {
			slog.Debug("disconnect finished with error", "conn", c.id, "error", err)
		}
		c.close()
		c.hub.pumps.Done()
	}()

	pongWait := c.hub.opts.PongWait
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Info("websocket read failed", "conn", c.id, "error", err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.hub.dispatch(context.Background(), c.id, message)
	}
}

// writePump drains send and pings the peer every PingPeriod.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Debug("websocket write failed", "conn", c.id, "error", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Debug("websocket ping failed", "conn", c.id, "error", err)
				return
			}
		}
	}
}
