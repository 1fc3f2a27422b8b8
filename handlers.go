package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/gorilla/websocket"
)

const maxBodySize = 1 << 20

// actionBody is what browsers POST to /action.
type actionBody struct {
	Request string          `json:"request"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type actionHandler struct {
	h     *hub
	store sessions.Store
	// next serves passthrough requests.
	next http.Handler
}

func (ah actionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body actionBody
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			writeResponse(w, response{Status: statusError, Data: "Malformed request body"})
			return
		}
	}

	sess, err := ah.store.Get(r, sessionName)
	if err != nil {
		slog.DebugContext(r.Context(), "Session reset", "error", err)
	}
	req := newRequest(r.Context(), r.Method, body.Request, body.Data, newSession(sess))

	if !ah.h.send(r.Context(), command{cmd: DISPATCH, req: req}) {
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}
	rep, ok := ah.wait(r.Context(), req)
	if !ok {
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}

	if err := req.session.save(r, w); err != nil {
		slog.ErrorContext(r.Context(), "Session save failed", "error", err)
	}
	if rep.passthrough {
		ah.next.ServeHTTP(w, r)
		return
	}
	writeResponse(w, rep.response)
}

// wait blocks until the hub answers req. A request still waiting after the
// hold timeout, or whose client went away, is expired through the hub so a
// message is never handed to a listener that already gave up.
func (ah actionHandler) wait(ctx context.Context, req *request) (reply, bool) {
	timer := ah.h.clock.NewTimer(ah.h.holdTimeout)
	defer timer.Stop()

	reason := "Timed out"
	select {
	case rep := <-req.reply:
		return rep, true
	case <-ah.h.done:
		return drain(req)
	case <-timer.Chan():
	case <-ctx.Done():
		reason = "Connection closed"
	}

	if !ah.h.send(context.Background(), command{cmd: EXPIRE, req: req, reason: reason}) {
		return drain(req)
	}
	select {
	case rep := <-req.reply:
		return rep, true
	case <-ah.h.done:
		return drain(req)
	}
}

// drain picks up a reply the hub sent before it stopped.
func drain(req *request) (reply, bool) {
	select {
	case rep := <-req.reply:
		return rep, true
	default:
		return reply{}, false
	}
}

func writeResponse(w http.ResponseWriter, resp response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Debug("Response write failed", "error", err)
	}
}

type wsHandler struct {
	h        *hub
	store    sessions.Store
	upgrader *websocket.Upgrader
	ticker   *mTicker
}

func newWsHandler(h *hub, store sessions.Store, origin string, ticker *mTicker) wsHandler {
	return wsHandler{h: h, store: store, upgrader: newUpgrader(origin), ticker: ticker}
}

func (wsh wsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	channel := mux.Vars(r)["channel"]
	sess, err := wsh.store.Get(r, sessionName)
	if err != nil {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	req := newRequest(r.Context(), r.Method, channel, nil, newSession(sess))
	result := make(chan error, 1)
	if !wsh.h.send(r.Context(), command{cmd: SUBSCRIBE, req: req, result: result}) {
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}
	select {
	case err = <-result:
	case <-wsh.h.done:
		http.Error(w, "Service unavailable", http.StatusServiceUnavailable)
		return
	}
	if errors.Is(err, errUnknownChannel) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	}

	ws, err := wsh.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.DebugContext(r.Context(), "Websocket upgrade failed", "error", err)
		return
	}
	c := newConnection(websocketInteractor{ws: ws}, wsh.h, req.clientID(), channel)
	c.run(wsh.ticker)
}

// correlationMiddleware tags each request context with a correlation id.
func correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := withCorrelationID(r.Context(), newCorrelationID())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
