package fathom

import "time"

// Event names emitted by the engine.
const (
	EventViewportChange    = "viewportChange"
	EventElementClick      = "elementClick"
	EventDepthNavStart     = "depthNavigationStart"
	EventDepthNavEnd       = "depthNavigationEnd"
	EventPerformanceUpdate = "performanceUpdate"
)

// ViewportChangeEvent carries the latest camera for a frame. Intermediate
// camera values within a frame are coalesced away; the final one is always
// delivered.
type ViewportChangeEvent struct {
	Camera Camera
}

// ElementClickEvent carries one clicked element. Click notifications are
// batched per frame.
type ElementClickEvent struct {
	Element *Element
}

// DepthNavStartEvent fires before a depth navigation starts animating.
type DepthNavStartEvent struct {
	From, To float64
}

// DepthNavEndEvent fires when a depth navigation completes.
type DepthNavEndEvent struct {
	Depth float64
}

// PerformanceEvent carries frame statistics.
type PerformanceEvent struct {
	FrameTime   time.Duration
	FrameRate   float64
	CulledCount int
}

// Event is a named payload delivered to subscribers.
type Event struct {
	Name string
	Data any
}

// Handler receives events. Delivery order is registration order.
type Handler func(Event)

type handlerEntry struct {
	id int
	fn Handler
}

// Emitter is a minimal named-event dispatcher. Not safe for concurrent
// use; the engine drives it from the owner thread.
type Emitter struct {
	handlers map[string][]handlerEntry
	nextID   int
}

// NewEmitter creates an empty emitter.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[string][]handlerEntry)}
}

// On subscribes the handler to the named event and returns a subscription
// id for Off.
func (e *Emitter) On(name string, fn Handler) int {
	e.nextID++
	e.handlers[name] = append(e.handlers[name], handlerEntry{id: e.nextID, fn: fn})
	return e.nextID
}

// Off removes the subscription, if present.
func (e *Emitter) Off(name string, id int) {
	hs := e.handlers[name]
	for i := range hs {
		if hs[i].id == id {
			e.handlers[name] = append(hs[:i], hs[i+1:]...)
			return
		}
	}
}

// Emit delivers the event to every subscriber of name, in registration
// order.
func (e *Emitter) Emit(name string, data any) {
	for _, h := range e.handlers[name] {
		h.fn(Event{Name: name, Data: data})
	}
}
