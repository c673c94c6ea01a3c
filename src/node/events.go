package node

import (
	"sync"

	"github.com/mosaicnetworks/gitmesh/src/crdt"
)

// EventType ...
type EventType int

const (
	// AuthorsChanged is published the first time an author is seen for a
	// document.
	AuthorsChanged EventType = iota
	// SaveRequested asks for the documents to be persisted.
	SaveRequested
	// StagedChanged is published when the set of staged authors changes.
	StagedChanged
	// PauseChanged ...
	PauseChanged
	// VisibilityChanged ...
	VisibilityChanged
)

var eventTypes = []string{
	"authors",
	"save",
	"staged",
	"pause",
	"visibility",
}

// String ...
func (t EventType) String() string {
	if int(t) < len(eventTypes) {
		return eventTypes[t]
	}
	return "unknown"
}

// MarshalText ...
func (t EventType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Event is a notification of the Core. Only the fields relevant to its Type
// are set.
type Event struct {
	Type    EventType     `json:"type"`
	File    string        `json:"file,omitempty"`
	SiteID  crdt.SiteID   `json:"siteId,omitempty"`
	Name    string        `json:"name,omitempty"`
	Staged  []crdt.SiteID `json:"staged,omitempty"`
	Paused  bool          `json:"paused"`
	Visible bool          `json:"visible"`
}

// EventBus fans events out to subscribers. Publishing never blocks: a
// subscriber whose buffer is full misses the event.
type EventBus struct {
	lock sync.Mutex
	subs map[int]chan Event
	next int
}

// NewEventBus ...
func NewEventBus() *EventBus {
	return &EventBus{
		subs: make(map[int]chan Event),
	}
}

// Subscribe returns a subscription id and its channel.
func (b *EventBus) Subscribe(buffer int) (int, <-chan Event) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.next++
	ch := make(chan Event, buffer)
	b.subs[b.next] = ch
	return b.next, ch
}

// Unsubscribe closes the channel of subscription id.
func (b *EventBus) Unsubscribe(id int) {
	b.lock.Lock()
	defer b.lock.Unlock()

	if ch, ok := b.subs[id]; ok {
		close(ch)
		delete(b.subs, id)
	}
}

// Publish ...
func (b *EventBus) Publish(ev Event) {
	b.lock.Lock()
	defer b.lock.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close unsubscribes everyone.
func (b *EventBus) Close() {
	b.lock.Lock()
	defer b.lock.Unlock()

	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
