package cutting

import "sync"

// EventType names a domain event
type EventType string

// Domain events emitted by the cutting service
const (
	EventSectionsChange           EventType = "sections-change"
	EventSectionAdded             EventType = "section-added"
	EventSectionRemoved           EventType = "section-removed"
	EventSectionChange            EventType = "section-change"
	EventPlaneAdded               EventType = "plane-added"
	EventPlaneRemoved             EventType = "plane-removed"
	EventPlaneChange              EventType = "plane-change"
	EventCappingVisibilityChanged EventType = "capping-visibility-changed"
	EventCappingFaceColorChanged  EventType = "capping-face-color-changed"
	EventCappingLineColorChanged  EventType = "capping-line-color-changed"
	EventFaceSelectionChange      EventType = "face-selection-change"
	EventServiceReset             EventType = "service-reset"
	EventBoundingBoxChange        EventType = "bounding-box-change"
	EventError                    EventType = "error"
)

// Event is a domain notification. SectionIndex and PlaneIndex are only
// meaningful for the section and plane events; Value carries the new value
// of capping and bounding-box events and the error of error events.
type Event struct {
	Type         EventType
	SectionIndex int
	PlaneIndex   int
	Value        any
}

type listener struct {
	id int
	fn func(Event)
}

// Listeners registers event handler functions by event type.
// The zero value is ready to use and safe for concurrent use.
type Listeners struct {
	mu     sync.RWMutex
	nextID int
	byType map[EventType][]listener
}

// Add registers fn for events of the given type and returns a function
// that removes it again
func (ls *Listeners) Add(typ EventType, fn func(Event)) (remove func()) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.byType == nil {
		ls.byType = make(map[EventType][]listener)
	}
	ls.nextID++
	id := ls.nextID
	ls.byType[typ] = append(ls.byType[typ], listener{id: id, fn: fn})

	return func() { ls.remove(typ, id) }
}

func (ls *Listeners) remove(typ EventType, id int) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	current := ls.byType[typ]
	kept := make([]listener, 0, len(current))
	for _, l := range current {
		if l.id != id {
			kept = append(kept, l)
		}
	}
	ls.byType[typ] = kept
}

// Call invokes the handlers registered for the event's type in
// registration order. Handlers run outside the lock and may add or remove
// handlers.
func (ls *Listeners) Call(ev Event) {
	ls.mu.RLock()
	handlers := ls.byType[ev.Type]
	ls.mu.RUnlock()

	for _, l := range handlers {
		l.fn(ev)
	}
}

// Count returns the number of handlers registered for typ
func (ls *Listeners) Count(typ EventType) int {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	return len(ls.byType[typ])
}
