package graph

import (
	"sync"

	"go.uber.org/zap"
)

// EventKind identifies the graph mutations observers can subscribe to.
type EventKind string

const (
	EventConnectionCreated EventKind = "connectioncreated"
	EventConnectionRemoved EventKind = "connectionremoved"
	EventNodeRemoved       EventKind = "noderemoved"
	EventNodeDataUpdated   EventKind = "nodedataupdated"
	// EventClear / EventCleared bracket bulk operations (project import).
	// Handlers with per-event side effects stay quiet between the two.
	EventClear   EventKind = "clear"
	EventCleared EventKind = "cleared"
)

// Event is the payload delivered to bus handlers. Only the fields relevant to
// the kind are set: Connection for connection events, NodeID for node removal
// and data updates, OutputKey for data updates.
type Event struct {
	Kind       EventKind
	Connection *Connection
	NodeID     string
	OutputKey  string
}

// Handler receives events synchronously, on the goroutine performing the
// mutation. A handler must not call back into the editor's public API; the
// structural operation that fired the event still holds the editor lock.
type Handler func(Event)

// Subscription is the token returned by Subscribe. Unsubscribe is idempotent.
type Subscription struct {
	bus  *Bus
	kind EventKind
	id   int
}

// Unsubscribe removes the handler from the bus.
func (s *Subscription) Unsubscribe() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.unsubscribe(s.kind, s.id)
	s.bus = nil
}

// Bus is the typed event bus scoped to one editor. Handlers are dispatched in
// subscription order, which keeps reactions (like dynamic port churn)
// deterministic.
type Bus struct {
	mu       sync.Mutex
	nextID   int
	handlers map[EventKind]map[int]Handler
	order    map[EventKind][]int
	log      *zap.Logger
}

// NewBus creates an empty event bus.
func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		handlers: make(map[EventKind]map[int]Handler),
		order:    make(map[EventKind][]int),
		log:      logger.Named("bus"),
	}
}

// Subscribe registers a handler for one event kind and returns the
// unsubscribe token.
func (b *Bus) Subscribe(kind EventKind, h Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	if b.handlers[kind] == nil {
		b.handlers[kind] = make(map[int]Handler)
	}
	b.handlers[kind][id] = h
	b.order[kind] = append(b.order[kind], id)
	return &Subscription{bus: b, kind: kind, id: id}
}

// Publish delivers the event to every handler subscribed to its kind. The
// handler snapshot is taken under the bus lock, then handlers run outside it
// so they may subscribe or unsubscribe (including themselves).
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	ids := b.order[ev.Kind]
	snapshot := make([]Handler, 0, len(ids))
	for _, id := range ids {
		if h, ok := b.handlers[ev.Kind][id]; ok {
			snapshot = append(snapshot, h)
		}
	}
	b.mu.Unlock()

	b.log.Debug("Publishing event", zap.String("kind", string(ev.Kind)), zap.Int("handlers", len(snapshot)))
	for _, h := range snapshot {
		h(ev)
	}
}

func (b *Bus) unsubscribe(kind EventKind, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if hs, ok := b.handlers[kind]; ok {
		delete(hs, id)
	}
	ids := b.order[kind]
	for i, v := range ids {
		if v == id {
			b.order[kind] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
}
