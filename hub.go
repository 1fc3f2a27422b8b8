package main

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

type cmdType int

const (
	DISPATCH cmdType = iota
	PUSH
	SUBSCRIBE
	HOLD
	UNHOLD
	EXPIRE
)

// command is the only way other goroutines touch hub state. Commands are
// processed one at a time by run.
type command struct {
	cmd    cmdType
	req    *request
	conn   *connection
	env    *envelope
	reason string
	result chan error
}

type queue chan command

type hubOptions struct {
	clientTimeout time.Duration
	reapInterval  time.Duration
	holdTimeout   time.Duration
	maxQueue      int
	rateLimit     float64
	rateBurst     int
}

// hub owns the client registry, the mailbox, the connection table and the
// action table. Everything but registration happens on the run goroutine.
type hub struct {
	queue queue
	done  chan struct{}
	clock clockwork.Clock

	clients     *clientRegistry
	mailbox     *mailbox
	connections connections
	actions     actions
	games       games
	events      events

	clientTimeout time.Duration
	reapInterval  time.Duration
	holdTimeout   time.Duration
}

func newHub(clock clockwork.Clock, opts hubOptions) *hub {
	return &hub{
		queue:         make(queue, 16),
		done:          make(chan struct{}),
		clock:         clock,
		clients:       newClientRegistry(clock, rate.Limit(opts.rateLimit), opts.rateBurst),
		mailbox:       newMailbox(opts.maxQueue),
		connections:   make(connections),
		actions:       make(actions),
		games:         make(games),
		events:        make(events),
		clientTimeout: opts.clientTimeout,
		reapInterval:  opts.reapInterval,
		holdTimeout:   opts.holdTimeout,
	}
}

// run processes commands and reap ticks until ctx is cancelled.
func (h *hub) run(ctx context.Context) {
	ticker := h.clock.NewTicker(h.reapInterval)
	defer ticker.Stop()
	defer h.stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			h.reap()
		case cmd := <-h.queue:
			h.handle(cmd)
		}
	}
}

func (h *hub) handle(cmd command) {
	switch cmd.cmd {
	case DISPATCH:
		h.dispatch(cmd.req)
	case PUSH:
		cmd.result <- h.push(cmd.env.recipients, cmd.env.channel, cmd.env.data)
	case SUBSCRIBE:
		cmd.result <- h.subscribe(cmd.req)
	case HOLD:
		h.holdConn(cmd.conn)
	case UNHOLD:
		h.unholdConn(cmd.conn)
	case EXPIRE:
		h.expire(cmd.req, cmd.reason)
	default:
		panic(fmt.Sprintf("unexpected hub cmd: %v\n", cmd))
	}
}

// send queues cmd unless the hub has stopped or ctx is done.
func (h *hub) send(ctx context.Context, cmd command) bool {
	select {
	case h.queue <- cmd:
		return true
	case <-h.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// stop answers every waiting listener so no HTTP goroutine outlives the hub.
func (h *hub) stop() {
	for clientID := range h.connections {
		for _, l := range h.connections.drop(clientID) {
			l.expire("Server shutting down")
		}
	}
	close(h.done)
}

// reap drops every client idle for longer than the client timeout. An open
// websocket counts as activity.
func (h *hub) reap() {
	ids := slices.DeleteFunc(h.clients.idle(h.clientTimeout), h.connections.streaming)
	for _, id := range ids {
		h.removeClient(id)
	}
	if len(ids) > 0 {
		slog.Debug("Reaped idle clients", "count", len(ids))
		mark("clients.reaped", int64(len(ids)))
	}
}

// removeClient forgets a client along with its mailbox and connection slots.
func (h *hub) removeClient(id string) {
	if !h.clients.remove(id) {
		return
	}
	h.mailbox.drop(id)
	for _, l := range h.connections.drop(id) {
		l.expire("Client expired")
	}
	h.events.trigger(h, eventClientRemove, id)
}

// hold parks l in the (client, channel) slot and delivers right away if a
// message is already waiting.
//
// A websocket pushed out of its slot has no hold timeout to end it, so it
// is closed. A replaced long-poll request is left to its timeout.
func (h *hub) hold(clientID, channel string, l listener) {
	prev, held := h.connections.peek(clientID, channel)
	h.connections.hold(clientID, channel, l)
	if c, ok := prev.(*connection); held && ok && prev != l {
		c.expire("Replaced by another listener")
	}
	h.tryDeliver(clientID, channel)
}

// expire answers a request that is still waiting, whether or not it is
// still the listener in its slot.
func (h *hub) expire(req *request, reason string) {
	if req.done {
		return
	}
	if req.held && req.client != nil {
		h.connections.expire(req.client.id, req.action, req, reason)
	}
	if !req.done {
		req.fail(reason)
	}
}

// publish pushes from outside the hub goroutine and waits for the result.
func (h *hub) publish(ctx context.Context, recipients []string, channel string, data any) error {
	result := make(chan error, 1)
	env := &envelope{recipients: recipients, channel: channel, data: data}
	if !h.send(ctx, command{cmd: PUSH, env: env, result: result}) {
		return fmt.Errorf("publish to %q: hub is not running", channel)
	}
	select {
	case err := <-result:
		return err
	case <-h.done:
		return fmt.Errorf("publish to %q: hub stopped", channel)
	case <-ctx.Done():
		return ctx.Err()
	}
}
