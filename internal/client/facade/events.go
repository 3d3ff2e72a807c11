package facade

import "sync"

type EventType string

const (
	EventCheckoutStart    EventType = "checkout_start"
	EventCheckoutProgress EventType = "checkout_progress"
	EventCheckoutComplete EventType = "checkout_complete"
	EventCheckoutError    EventType = "checkout_error"
	EventCheckinStart     EventType = "checkin_start"
	EventCheckinProgress  EventType = "checkin_progress"
	EventCheckinComplete  EventType = "checkin_complete"
	EventCheckinError     EventType = "checkin_error"
	EventSyncStart        EventType = "sync_start"
	EventSyncProgress     EventType = "sync_progress"
	EventSyncComplete     EventType = "sync_complete"
	EventSyncError        EventType = "sync_error"
	EventConflictDetected EventType = "conflict_detected"
	EventNetworkChange    EventType = "network_change"
)

// Event is delivered to subscribers. Data holds the progress, result, error
// or conflicts that go with the event type.
type Event struct {
	Type EventType
	Data any
}

type bus struct {
	mu   sync.Mutex
	next int
	subs map[int]func(Event)
}

func (b *bus) subscribe(fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = map[int]func(Event){}
	}
	id := b.next
	b.next++
	b.subs[id] = fn
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// emit calls subscribers synchronously, in no particular order.
func (b *bus) emit(t EventType, data any) {
	b.mu.Lock()
	fns := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(Event{Type: t, Data: data})
	}
}
