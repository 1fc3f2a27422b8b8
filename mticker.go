package main

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// mTicker fans one clock ticker out to many subscribers, so websocket
// connections share a single ping timer.
type mTicker struct {
	mux         sync.Mutex // Protects subscribers
	subscribers subscribers

	ticker  clockwork.Ticker
	stopCh  chan struct{}
	stopped bool
}

type subscribers map[*subscriber]struct{}

type subscriber struct {
	tick chan time.Time
}

// newMTicker creates and starts a ticker firing every interval.
func newMTicker(clock clockwork.Clock, interval time.Duration) *mTicker {
	t := &mTicker{
		subscribers: make(subscribers),
		ticker:      clock.NewTicker(interval),
		stopCh:      make(chan struct{}),
	}
	go t.run()
	return t
}

// subscribe returns a subscriber whose channel receives ticks. Ticks that
// can't be delivered because the subscriber is not ready are discarded.
// After stop the returned channel is already closed.
func (t *mTicker) subscribe() *subscriber {
	t.mux.Lock()
	defer t.mux.Unlock()

	sub := &subscriber{tick: make(chan time.Time, 1)}
	if t.stopped {
		close(sub.tick)
		return sub
	}
	t.subscribers[sub] = struct{}{}
	return sub
}

func (t *mTicker) unsubscribe(sub *subscriber) {
	t.mux.Lock()
	defer t.mux.Unlock()

	if _, ok := t.subscribers[sub]; !ok {
		return
	}
	close(sub.tick)
	delete(t.subscribers, sub)
}

// stop stops the ticker and closes all subscribed channels.
func (t *mTicker) stop() {
	t.mux.Lock()
	defer t.mux.Unlock()

	if t.stopped {
		return
	}
	t.stopped = true
	for sub := range t.subscribers {
		close(sub.tick)
		delete(t.subscribers, sub)
	}
	t.ticker.Stop()
	close(t.stopCh)
}

func (t *mTicker) run() {
	for {
		select {
		case tick := <-t.ticker.Chan():
			t.mux.Lock()
			for sub := range t.subscribers {
				select {
				case sub.tick <- tick:
				default:
					mark("ticker.dropped", 1)
				}
			}
			t.mux.Unlock()
		case <-t.stopCh:
			return
		}
	}
}
