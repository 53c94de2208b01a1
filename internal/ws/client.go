package ws

import (
	"context"
	"time"

	"nhooyr.io/websocket"
)

const (
	sendBuffer   = 64
	pingInterval = 15 * time.Second
	writeTimeout = 5 * time.Second
)

// Client is one websocket. A player may hold several at once.
type Client struct {
	playerID string
	conn     *websocket.Conn
	send     chan []byte
}

func newClient(playerID string, conn *websocket.Conn) *Client {
	return &Client{playerID: playerID, conn: conn, send: make(chan []byte, sendBuffer)}
}

// writeLoop drains send until it is closed, pinging to keep proxies awake.
func (c *Client) writeLoop(ctx context.Context) {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		_ = c.conn.Close(websocket.StatusNormalClosure, "bye")
	}()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
		case <-ping.C:
			_ = c.conn.Ping(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// enqueue never blocks. A client too slow to keep up loses its oldest
// queued messages, so the latest state always reaches it. It reports
// whether anything was discarded.
func (c *Client) enqueue(b []byte) bool {
	return pushNewest(c.send, b)
}

// pushNewest queues b, discarding from the head of ch until it fits.
func pushNewest(ch chan []byte, b []byte) (dropped bool) {
	for {
		select {
		case ch <- b:
			return dropped
		default:
		}
		select {
		case <-ch:
			dropped = true
		default:
		}
	}
}
