package main

import (
	"log/slog"
	"net/http"
)

// dispatchState is where a request ended up.
type dispatchState int

const (
	stateHandled dispatchState = iota
	stateRejected
	statePassthrough
)

func (s dispatchState) String() string {
	switch s {
	case stateHandled:
		return "handled"
	case stateRejected:
		return "rejected"
	case statePassthrough:
		return "passthrough"
	}
	return "unknown"
}

var (
	errMissingAction   = protocolError("Missing request parameter")
	errUserUnsupported = protocolError("Action not available to logged-in users")
	errNoResponse      = protocolError("Action produced no response")
	errTooManyRequests = protocolError("Too many requests")
	errUnknownClient   = protocolError("Unknown client")
	errUnknownChannel  = protocolError("Unknown channel")
)

// dispatch identifies the requester and runs the requested action. The
// reply is sent once dispatch returns, or later for a held request.
func (h *hub) dispatch(req *request) dispatchState {
	req.dispatching = true
	defer func() {
		req.dispatching = false
		if req.done {
			req.reply <- req.result
		}
	}()

	h.identify(req)
	state := h.route(req)
	slog.DebugContext(req.ctx, "Dispatched request",
		"action", req.action, "client", req.clientID(), "state", state.String(), "held", req.held)
	mark("dispatch."+state.String(), 1)
	return state
}

func (h *hub) route(req *request) dispatchState {
	if req.method != http.MethodPost {
		req.passthrough()
		return statePassthrough
	}
	if req.action == "" {
		req.fail(errMissingAction)
		return stateRejected
	}
	a, ok := h.actions[req.action]
	if !ok {
		req.passthrough()
		return statePassthrough
	}
	if !req.client.allow(h.clock.Now()) {
		req.fail(errTooManyRequests)
		return stateRejected
	}

	if req.loggedIn {
		if a.user == nil {
			req.fail(errUserUnsupported)
			return stateRejected
		}
		a.user(h, req)
	} else {
		if a.anonymous == nil {
			req.fail(errLoginRequired)
			return stateRejected
		}
		a.anonymous(h, req)
	}

	if !req.done && !req.held {
		req.fail(errNoResponse)
		return stateRejected
	}
	return stateHandled
}

// identify attaches the client record to req, minting a client and storing
// its id in the session on first contact, and loads the login state.
func (h *hub) identify(req *request) {
	existing, _ := req.session.getString(sessionClientID)
	c, created := h.clients.identify(existing)
	req.client = c
	if created {
		if err := req.session.set(sessionClientID, c.id); err != nil {
			slog.WarnContext(req.ctx, "Client id not stored", "client", c.id, "error", err)
		}
		h.events.trigger(h, eventClientAdd, c.id)
	}
	h.loadLogin(req)
}

func (h *hub) loadLogin(req *request) {
	auth, _ := req.session.get(sessionAuth)
	req.loggedIn = auth == true
	req.username = anonymousUsername
	if req.loggedIn {
		if name, ok := req.session.getString(sessionUsername); ok {
			req.username = name
		}
	}
}

// subscribe checks that a websocket may listen on req.action. The client
// must already be known; unlike dispatch it never mints one.
func (h *hub) subscribe(req *request) error {
	id, _ := req.session.getString(sessionClientID)
	c, ok := h.clients.get(id)
	if !ok {
		return errUnknownClient
	}
	c.lastRequestAt = h.clock.Now()
	req.client = c
	h.loadLogin(req)

	a, ok := h.actions[req.action]
	if !ok || !a.channel {
		return errUnknownChannel
	}
	if !req.loggedIn {
		return errLoginRequired
	}
	if a.member != nil && !a.member(h, req) {
		return errNotInGame
	}
	return nil
}
