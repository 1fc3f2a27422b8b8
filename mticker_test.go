package main

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestMTickerFansOut(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ticker := newMTicker(clock, time.Second)
	defer ticker.stop()

	first, second := ticker.subscribe(), ticker.subscribe()
	clock.Advance(time.Second)

	assert.True(t, clock.Now().Equal(receive(t, first.tick)))
	assert.True(t, clock.Now().Equal(receive(t, second.tick)))
}

func TestMTickerUnsubscribe(t *testing.T) {
	ticker := newMTicker(clockwork.NewFakeClock(), time.Second)
	defer ticker.stop()

	sub := ticker.subscribe()
	ticker.unsubscribe(sub)
	_, ok := <-sub.tick
	assert.False(t, ok)

	// Unsubscribing twice is harmless.
	ticker.unsubscribe(sub)
	assert.Empty(t, ticker.subscribers)
}

func TestMTickerStop(t *testing.T) {
	ticker := newMTicker(clockwork.NewFakeClock(), time.Second)
	sub := ticker.subscribe()

	ticker.stop()
	_, ok := <-sub.tick
	assert.False(t, ok)

	// Neither a second stop nor a late unsubscribe closes anything twice.
	ticker.stop()
	ticker.unsubscribe(sub)

	late := ticker.subscribe()
	_, ok = <-late.tick
	assert.False(t, ok, "subscribing after stop yields a closed channel")
}

func TestMTickerDropsTicksForSlowSubscribers(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ticker := newMTicker(clock, time.Second)
	defer ticker.stop()
	sub := ticker.subscribe()
	before := marked("ticker.dropped")

	clock.Advance(time.Second)
	assert.Eventually(t, func() bool { return len(sub.tick) == 1 }, time.Second, time.Millisecond)

	// The first tick was never read, so the second has nowhere to go.
	clock.Advance(time.Second)
	assert.Eventually(t, func() bool { return marked("ticker.dropped") > before }, time.Second, time.Millisecond)
}
