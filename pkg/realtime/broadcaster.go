package realtime

import "sync"

// subscriberBuffer is how many events a subscriber may lag behind before the
// oldest queued event is dropped.
const subscriberBuffer = 16

// Broadcaster publishes events to SSE subscribers.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[chan string]struct{}
	last string
	has  bool
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subs: make(map[chan string]struct{}),
	}
}

// Subscribe registers a new subscriber and returns its event channel. The last
// published event, if any, is queued immediately so late subscribers start
// from the current state.
func (b *Broadcaster) Subscribe() chan string {
	ch := make(chan string, subscriberBuffer)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	if b.has {
		ch <- b.last
	}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan string) {
	b.mu.Lock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish delivers an event to all subscribers without blocking.
func (b *Broadcaster) Publish(event string) {
	b.mu.Lock()
	b.last = event
	b.has = true
	for ch := range b.subs {
		select {
		case ch <- event:
		default:
			// Lagging subscriber: drop its oldest event so the newest state
			// always gets through.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- event:
			default:
			}
		}
	}
	b.mu.Unlock()
}

// Close unsubscribes everyone.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
	b.mu.Unlock()
}
