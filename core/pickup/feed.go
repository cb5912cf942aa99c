package pickup

import "sync"

type EventKind string

const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
)

// Event signals that a pickup request changed. Consumers must treat it as
// a cue to re-fetch authoritative state; delivery is best-effort and may
// drop events for slow consumers.
type Event struct {
	Kind    EventKind `json:"kind"`
	Request Request   `json:"request"`
}

// subscriptionBuffer bounds how far a consumer may lag before events are dropped.
const subscriptionBuffer = 16

// Feed fans out pickup request change events to live session subscriptions.
type Feed struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

func NewFeed() *Feed {
	return &Feed{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new subscription. The caller owns its lifecycle
// and must Close it when the viewing session ends.
func (f *Feed) Subscribe() *Subscription {
	sub := &Subscription{feed: f, ch: make(chan Event, subscriptionBuffer)}
	sub.C = sub.ch

	f.mu.Lock()
	f.subs[sub] = struct{}{}
	f.mu.Unlock()
	return sub
}

// Publish delivers evt to all live subscriptions without blocking.
func (f *Feed) Publish(evt Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for sub := range f.subs {
		select {
		case sub.ch <- evt:
		default: // consumer lagging; it will re-fetch on its next event
		}
	}
}

func (f *Feed) unsubscribe(sub *Subscription) {
	f.mu.Lock()
	delete(f.subs, sub)
	f.mu.Unlock()
}

// Subscription is one session's view of the feed. Receive on C.
type Subscription struct {
	C <-chan Event

	feed *Feed
	ch   chan Event
	once sync.Once
}

// Close tears the subscription down; no events are delivered afterwards.
// Safe to call multiple times.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.feed.unsubscribe(s)
		close(s.ch)
	})
}
