package main

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const idLength = 12

type client struct {
	id            string
	lastRequestAt time.Time
	limiter       *rate.Limiter
}

type clientRegistry struct {
	clients map[string]*client
	clock   clockwork.Clock

	// Zero limit disables per client rate limiting.
	limit rate.Limit
	burst int
}

func newClientRegistry(clock clockwork.Clock, limit rate.Limit, burst int) *clientRegistry {
	return &clientRegistry{
		clients: make(map[string]*client),
		clock:   clock,
		limit:   limit,
		burst:   burst,
	}
}

// identify returns the client for a known id and marks it active. Unknown
// or empty ids get a fresh client; created reports that case.
func (r *clientRegistry) identify(existingID string) (c *client, created bool) {
	now := r.clock.Now()
	if c, ok := r.clients[existingID]; ok {
		c.lastRequestAt = now
		return c, false
	}
	c = &client{
		id:            generateUniqueID(r.has),
		lastRequestAt: now,
	}
	if r.limit > 0 {
		c.limiter = rate.NewLimiter(r.limit, r.burst)
	}
	r.clients[c.id] = c
	incr("clients", 1)
	return c, true
}

func (r *clientRegistry) has(id string) bool {
	_, ok := r.clients[id]
	return ok
}

func (r *clientRegistry) get(id string) (*client, bool) {
	c, ok := r.clients[id]
	return c, ok
}

func (r *clientRegistry) remove(id string) bool {
	if _, ok := r.clients[id]; !ok {
		return false
	}
	delete(r.clients, id)
	decr("clients", 1)
	return true
}

// idle returns the ids of clients whose last request is older than timeout.
func (r *clientRegistry) idle(timeout time.Duration) []string {
	now := r.clock.Now()
	var ids []string
	for id, c := range r.clients {
		if now.Sub(c.lastRequestAt) > timeout {
			ids = append(ids, id)
		}
	}
	return ids
}

// allow reports whether the client is within its request rate.
func (c *client) allow(now time.Time) bool {
	if c.limiter == nil {
		return true
	}
	return c.limiter.AllowN(now, 1)
}

// generateUniqueID returns a 12 character lowercase hex id that taken
// does not report as in use.
func generateUniqueID(taken func(string) bool) string {
	for {
		id := strings.ReplaceAll(uuid.NewString(), "-", "")[:idLength]
		if !taken(id) {
			return id
		}
	}
}
