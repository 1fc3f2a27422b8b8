package main

// listener is anything that can wait in a connection slot: a held
// long-poll request or a websocket subscription. Both methods are called
// from the hub goroutine only, and at most one of them once per hold.
type listener interface {
	resume(payload any)
	expire(reason string)
}

// connections holds at most one listener per client and channel.
type connections map[string]map[string]listener

// hold stores l in the slot, replacing any previous listener. The caller
// runs tryDeliver right after.
func (c connections) hold(clientID, channel string, l listener) {
	slots, ok := c[clientID]
	if !ok {
		slots = make(map[string]listener)
		c[clientID] = slots
	}
	if _, ok := slots[channel]; !ok {
		incr("connections.held", 1)
	}
	slots[channel] = l
}

// release clears the slot without answering the listener.
func (c connections) release(clientID, channel string) {
	slots, ok := c[clientID]
	if !ok {
		return
	}
	if _, ok := slots[channel]; ok {
		delete(slots, channel)
		decr("connections.held", 1)
	}
}

func (c connections) peek(clientID, channel string) (listener, bool) {
	l, ok := c[clientID][channel]
	return l, ok
}

// expire answers l with an error if it is still the listener in the slot.
// It reports whether it did.
func (c connections) expire(clientID, channel string, l listener, reason string) bool {
	current, ok := c.peek(clientID, channel)
	if !ok || current != l {
		return false
	}
	c.release(clientID, channel)
	l.expire(reason)
	return true
}

// drop removes every slot of a client and returns the listeners that were
// waiting in them.
func (c connections) drop(clientID string) []listener {
	slots := c[clientID]
	delete(c, clientID)
	held := make([]listener, 0, len(slots))
	for _, l := range slots {
		held = append(held, l)
	}
	decr("connections.held", int64(len(held)))
	return held
}

// streaming reports whether a websocket is listening in any of the
// client's slots.
func (c connections) streaming(clientID string) bool {
	for _, l := range c[clientID] {
		if _, ok := l.(*connection); ok {
			return true
		}
	}
	return false
}
