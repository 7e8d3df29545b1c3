// Package bus implements Envoy's per-session event bus: a non-retaining,
// non-blocking publish/subscribe fabric that fans agent-loop events out to any
// number of live subscribers (a browser's SSE connection, the scheduler's trace
// recorder, a test harness).
package bus

import (
	"sync"
	"sync/atomic"

	"github.com/envoyrun/envoy/pkg/envoy"
)

// subscriberQueueSize bounds the per-subscriber channel. A subscriber that falls
// this far behind is considered slow; Publish drops the event for it rather than
// blocking the emitter.
const subscriberQueueSize = 32

// Bus is the process-wide event fan-out. The zero value is not usable; use New.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan envoy.Event]struct{}
	seq         atomic.Uint64
}

// New returns a ready-to-use Bus.
func New() *Bus {
	return &Bus{
		subscribers: make(map[string]map[chan envoy.Event]struct{}),
	}
}

// Subscribe registers a new listener for sessionID and returns the channel to
// read events from plus an unsubscribe function. Calling unsubscribe more than
// once is safe. The returned channel is closed by unsubscribe, never by Publish.
func (b *Bus) Subscribe(sessionID string) (<-chan envoy.Event, func()) {
	ch := make(chan envoy.Event, subscriberQueueSize)

	b.mu.Lock()
	set, ok := b.subscribers[sessionID]
	if !ok {
		set = make(map[chan envoy.Event]struct{})
		b.subscribers[sessionID] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			if set, ok := b.subscribers[sessionID]; ok {
				delete(set, ch)
				if len(set) == 0 {
					delete(b.subscribers, sessionID)
				}
			}
			b.mu.Unlock()
			close(ch)
		})
	}

	return ch, unsubscribe
}

// Publish delivers an event to every subscriber currently registered for
// sessionID. An event published while no subscriber is registered is lost — the
// bus retains nothing. Publish never blocks: a subscriber whose queue is full is
// skipped for this event.
func (b *Bus) Publish(sessionID string, kind envoy.EventKind, payload any) {
	evt := envoy.Event{
		Kind:      kind,
		SessionID: sessionID,
		Sequence:  b.seq.Add(1),
		Payload:   payload,
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[sessionID] {
		select {
		case ch <- evt:
		default:
		}
	}
}

// SubscriberCount reports how many subscribers are currently registered for
// sessionID. Primarily useful for tests.
func (b *Bus) SubscriberCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[sessionID])
}
