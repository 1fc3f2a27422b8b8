package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

// connection is a websocket listening on one channel for one client. It
// holds the channel slot like a long-poll request, and holds it again after
// every message it writes.
type connection struct {
	send     chan any
	w        websocketManager
	h        *hub
	clientID string
	channel  string

	// Owned by the hub goroutine. reason is read by the writer only after
	// send is closed.
	expired bool
	reason  string
}

func newConnection(w websocketManager, h *hub, clientID, channel string) *connection {
	return &connection{
		send:     make(chan any, 1),
		w:        w,
		h:        h,
		clientID: clientID,
		channel:  channel,
	}
}

func (c *connection) resume(payload any) {
	if c.expired {
		return
	}
	select {
	case c.send <- payload:
	default:
		mark("conn.dropped", 1)
	}
}

func (c *connection) expire(reason string) {
	if c.expired {
		return
	}
	c.expired = true
	c.reason = reason
	close(c.send)
}

func (c *connection) run(ticker *mTicker) {
	if !c.h.send(context.Background(), command{cmd: HOLD, conn: c}) {
		c.w.wsClose()
		return
	}
	incr("websockets", 1)
	defer func() {
		decr("websockets", 1)
		c.h.send(context.Background(), command{cmd: UNHOLD, conn: c})
	}()

	// The writer keeps its ticks until it has written the close frame.
	sub := ticker.subscribe()
	go func() {
		defer ticker.unsubscribe(sub)
		c.writer(sub.tick)
	}()
	c.reader()
}

func (c *connection) reader() {
	defer c.w.wsClose()
	c.w.wsPrepareRead()
	for {
		if err := c.readMessage(); err != nil {
			return
		}
	}
}

// readMessage consumes one frame. Listeners ignore what browsers send.
func (c *connection) readMessage() error {
	if _, _, err := c.w.wsReadMessage(); err != nil {
		return err
	}
	incr("conn.recv", 1)
	return nil
}

func (c *connection) writer(ticks <-chan time.Time) {
	defer c.w.wsClose()
	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				c.w.wsWriteClose(c.reason)
				return
			}
			if err := c.writeMessage(payload); err != nil {
				return
			}
			if !c.h.send(context.Background(), command{cmd: HOLD, conn: c}) {
				return
			}
		case _, ok := <-ticks:
			if !ok {
				return
			}
			if err := c.w.wsWriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *connection) writeMessage(payload any) error {
	body, err := json.Marshal(response{Status: statusOK, Data: payload})
	if err != nil {
		return err
	}
	if err := c.w.wsWriteMessage(websocket.TextMessage, body); err != nil {
		return err
	}
	incr("conn.send", 1)
	return nil
}

// holdConn puts c back into its slot unless it has been closed or its
// client is gone. Listening counts as activity.
func (h *hub) holdConn(c *connection) {
	if c.expired {
		return
	}
	cl, ok := h.clients.get(c.clientID)
	if !ok {
		c.expire("Client expired")
		return
	}
	cl.lastRequestAt = h.clock.Now()
	h.hold(c.clientID, c.channel, c)
}

func (h *hub) unholdConn(c *connection) {
	h.connections.expire(c.clientID, c.channel, c, "Connection closed")
	c.expire("Connection closed")
}
