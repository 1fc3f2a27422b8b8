package main

type envelope struct {
	recipients []string
	channel    string
	data       any
}

// push queues data for every recipient, in order, on channel and hands it
// straight to a waiting listener where there is one. Recipients the hub
// does not know (never seen or already reaped) are skipped.
func (h *hub) push(recipients []string, channel string, data any) error {
	if recipients == nil {
		return ErrInvalidRecipients
	}
	for _, id := range recipients {
		if id == "" {
			return ErrInvalidRecipients
		}
	}
	if channel == "" {
		return protocolError("Missing channel")
	}

	for _, id := range recipients {
		if !h.clients.has(id) {
			mark("push.dropped", 1)
			continue
		}
		h.mailbox.push(id, channel, data)
		h.tryDeliver(id, channel)
	}
	mark("push", 1)
	return nil
}

// tryDeliver hands the oldest queued message to the listener held for
// (clientID, channel). The listener is checked first so nothing is popped
// when nobody is waiting.
func (h *hub) tryDeliver(clientID, channel string) bool {
	l, ok := h.connections.peek(clientID, channel)
	if !ok {
		return false
	}
	payload, ok := h.mailbox.pop(clientID, channel)
	if !ok {
		return false
	}
	h.connections.release(clientID, channel)
	l.resume(payload)
	incr("delivered", 1)
	return true
}
