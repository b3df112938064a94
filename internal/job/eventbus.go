package job

import (
	"reflect"
	"sync"
)

// EventKind names the three event types the Manager emits, per spec §6.
type EventKind string

const (
	EventJobStatusChange EventKind = "JOB_STATUS_CHANGE"
	EventJobProgress     EventKind = "JOB_PROGRESS"
	EventLibraryChange   EventKind = "LIBRARY_CHANGE"
)

// Event is one item on the EventBus. Only the fields relevant to Kind are set.
type Event struct {
	Kind     EventKind
	JobID    string
	Library  string
	Version  string
	Status   Status
	Error    string
	Progress ProgressEvent
}

// EventBus is multi-producer/multi-consumer: producers never block on a
// slow consumer. Grounded on the teacher's GlassBoxEventBus (subscribe
// returns a channel, emit drops on a full buffer rather than blocking),
// simplified by dropping GlassBox's batching window — job events are low
// enough frequency that per-page/per-transition delivery is cheap, and
// spec §9 requires an unsubscribe handle with guaranteed release, not a
// batched flush.
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan Event
}

func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe returns a channel and an unsubscribe func that is safe to call
// more than once and guaranteed to release the channel.
func (b *EventBus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subscribers = append(b.subscribers, ch)
	b.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() { b.unsubscribe(ch) })
	}
	return ch, unsubscribe
}

func (b *EventBus) unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	target := reflect.ValueOf(ch).Pointer()
	for i, sub := range b.subscribers {
		if reflect.ValueOf(sub).Pointer() == target {
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// Emit dispatches an event to all current subscribers. A subscriber whose
// buffer is full has the event dropped for it rather than blocking the
// emitter.
func (b *EventBus) Emit(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subscribers {
		select {
		case sub <- event:
		default:
		}
	}
}

// Close closes every subscriber channel. Further Emit calls are no-ops.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subscribers {
		close(sub)
	}
	b.subscribers = nil
}
