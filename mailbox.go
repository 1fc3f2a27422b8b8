package main

// mailbox holds undelivered payloads per client and channel. An empty
// queue is never kept around.
type mailbox struct {
	queues   map[string]map[string][]any
	maxQueue int
}

func newMailbox(maxQueue int) *mailbox {
	return &mailbox{
		queues:   make(map[string]map[string][]any),
		maxQueue: maxQueue,
	}
}

// push appends payload to the tail of the client's channel queue. With a
// bound configured the oldest payload makes room.
func (mb *mailbox) push(clientID, channel string, payload any) {
	channels, ok := mb.queues[clientID]
	if !ok {
		channels = make(map[string][]any)
		mb.queues[clientID] = channels
	}
	q := channels[channel]
	if mb.maxQueue > 0 && len(q) >= mb.maxQueue {
		q[0] = nil
		q = q[1:]
		incr("mailbox.dropped", 1)
	}
	channels[channel] = append(q, payload)
	incr("mailbox.queued", 1)
}

// pop removes the head of the client's channel queue.
func (mb *mailbox) pop(clientID, channel string) (any, bool) {
	q := mb.queues[clientID][channel]
	if len(q) == 0 {
		return nil, false
	}
	payload := q[0]
	q[0] = nil
	if len(q) == 1 {
		delete(mb.queues[clientID], channel)
		if len(mb.queues[clientID]) == 0 {
			delete(mb.queues, clientID)
		}
	} else {
		mb.queues[clientID][channel] = q[1:]
	}
	decr("mailbox.queued", 1)
	return payload, true
}

func (mb *mailbox) len(clientID, channel string) int {
	return len(mb.queues[clientID][channel])
}

// drop forgets everything queued for a client.
func (mb *mailbox) drop(clientID string) {
	for _, q := range mb.queues[clientID] {
		decr("mailbox.queued", int64(len(q)))
	}
	delete(mb.queues, clientID)
}
