// Package events fans node activity out to websocket subscribers. Mining,
// admission and validation messages from the ledger's event handler are
// sent to every subscriber that is keeping up.
package events

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// subscriberBuffer is how many messages a subscriber can fall behind before
// new messages are dropped for it. A mined block produces a burst of
// validation messages.
const subscriberBuffer = 100

// Events holds a channel per subscriber id.
type Events struct {
	mu      sync.RWMutex
	subs    map[string]chan string
	dropped atomic.Uint64
}

// New constructs an empty set of subscribers.
func New() *Events {
	return &Events{
		subs: make(map[string]chan string),
	}
}

// Shutdown closes every subscriber channel. Websocket handlers see the
// closed channel and hang up.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, ch := range evt.subs {
		delete(evt.subs, id)
		close(ch)
	}
}

// Acquire registers the subscriber and returns its channel. Acquiring an id
// twice returns the same channel.
func (evt *Events) Acquire(id string) chan string {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	if ch, exists := evt.subs[id]; exists {
		return ch
	}

	ch := make(chan string, subscriberBuffer)
	evt.subs[id] = ch

	return ch
}

// Release closes and removes the subscriber's channel.
func (evt *Events) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.subs[id]
	if !exists {
		return fmt.Errorf("subscriber %q does not exist", id)
	}

	delete(evt.subs, id)
	close(ch)

	return nil
}

// Send delivers the message to every subscriber without blocking the
// ledger. A subscriber with a full buffer misses the message.
func (evt *Events) Send(s string) {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	for _, ch := range evt.subs {
		select {
		case ch <- s:
		default:
			evt.dropped.Add(1)
		}
	}
}

// Count returns the number of subscribers.
func (evt *Events) Count() int {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	return len(evt.subs)
}

// Dropped returns the number of messages subscribers have missed.
func (evt *Events) Dropped() uint64 {
	return evt.dropped.Load()
}
