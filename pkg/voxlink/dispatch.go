package voxlink

import "sync"

// Handler receives dispatched events. Handlers run synchronously in arrival
// order; a panicking handler is isolated and does not stop the others.
type Handler func(*Event)

// Subscription identifies a registered handler for Unsubscribe.
type Subscription struct {
	kind EventKind
	id   int
}

// dispatcher routes typed events to subscribers by kind.
type dispatcher struct {
	logger Logger

	mu     sync.Mutex
	nextID int
	subs   map[EventKind]map[int]Handler
}

func newDispatcher(logger Logger) *dispatcher {
	return &dispatcher{
		logger: logger,
		subs:   make(map[EventKind]map[int]Handler),
	}
}

func (d *dispatcher) subscribe(kind EventKind, h Handler) Subscription {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	if d.subs[kind] == nil {
		d.subs[kind] = make(map[int]Handler)
	}
	d.subs[kind][d.nextID] = h
	return Subscription{kind: kind, id: d.nextID}
}

func (d *dispatcher) unsubscribe(sub Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.subs[sub.kind], sub.id)
}

// publish delivers the event to every subscriber of its kind. Handlers are
// snapshotted under the lock and invoked outside it, so a handler may
// subscribe, unsubscribe, or call back into the client.
func (d *dispatcher) publish(ev *Event) {
	d.mu.Lock()
	handlers := make([]Handler, 0, len(d.subs[ev.Kind]))
	for _, h := range d.subs[ev.Kind] {
		handlers = append(handlers, h)
	}
	d.mu.Unlock()

	for _, h := range handlers {
		d.invoke(h, ev)
	}
}

// invoke runs one handler behind a panic boundary.
func (d *dispatcher) invoke(h Handler, ev *Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorPrintf("subscriber panicked on %s event: %v", ev.Kind, r)
		}
	}()
	h(ev)
}
