package main

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 30 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Listeners never expect payloads from the browser beyond control frames.
	maxMessageSize = 512
)

// websocketManager is the part of *websocket.Conn a connection uses.
type websocketManager interface {
	wsPrepareRead()
	wsReadMessage() (int, []byte, error)
	wsWriteMessage(int, []byte) error
	wsWriteClose(reason string)
	wsClose()
}

type websocketInteractor struct {
	ws *websocket.Conn
}

// wsPrepareRead limits inbound frames and extends the read deadline on
// every pong.
func (w websocketInteractor) wsPrepareRead() {
	w.ws.SetReadLimit(maxMessageSize)
	_ = w.ws.SetReadDeadline(time.Now().Add(pongWait))
	w.ws.SetPongHandler(func(string) error {
		return w.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
}

func (w websocketInteractor) wsReadMessage() (int, []byte, error) {
	return w.ws.ReadMessage()
}

func (w websocketInteractor) wsWriteMessage(messageType int, payload []byte) error {
	_ = w.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return w.ws.WriteMessage(messageType, payload)
}

func (w websocketInteractor) wsWriteClose(reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = w.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

func (w websocketInteractor) wsClose() {
	_ = w.ws.Close()
}

// newUpgrader checks Origin against origin when one is configured and
// falls back to gorilla's same-host check otherwise.
func newUpgrader(origin string) *websocket.Upgrader {
	u := &websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}
	if origin == "" {
		return u
	}
	u.CheckOrigin = func(r *http.Request) bool {
		got, err := url.Parse(r.Header.Get("Origin"))
		if err != nil {
			return false
		}
		want, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return got.Scheme == want.Scheme && got.Host == want.Host
	}
	return u
}
