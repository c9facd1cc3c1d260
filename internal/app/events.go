package app

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/hangar/internal/domain/lifecycle"
)

// Event describes one lifecycle transition.
type Event struct {
	// ID uniquely identifies the event.
	ID string
	// PluginID is the plugin that transitioned.
	PluginID string
	// From and To are the states around the transition.
	From lifecycle.State
	To   lifecycle.State
	// Err is set when the transition failed.
	Err error
	// Time is when the transition completed.
	Time time.Time
}

// eventBus fans lifecycle events out to subscribers. Slow subscribers
// drop events rather than block lifecycle operations.
type eventBus struct {
	mu   sync.RWMutex
	subs []chan Event
}

func newEventBus() *eventBus {
	return &eventBus{}
}

// Subscribe returns a channel receiving future events.
func (b *eventBus) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 64)
	b.subs = append(b.subs, ch)
	return ch
}

// Emit publishes an event with a fresh identifier.
func (b *eventBus) Emit(pluginID string, from, to lifecycle.State, err error) {
	event := Event{
		ID:       uuid.New().String(),
		PluginID: pluginID,
		From:     from,
		To:       to,
		Err:      err,
		Time:     time.Now().UTC(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}
