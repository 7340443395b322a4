// Package event implements the battle engine's double-ended event
// queue, per SPEC_FULL.md §4.5. Events are opaque to the engine: only
// the ruleset interprets a given tag's payload.
package event

// Event is a typed tag plus an untyped payload mapping (Design Note
// §9: "model the event payload as a tagged value... so that handlers
// can destructure without unsafe casts" — here a plain
// map[string]interface{}, since the payload keys are ruleset-defined
// and the engine never inspects them).
type Event struct {
	Tag     string
	Payload map[string]interface{}
}

// New builds an Event with an initialized, empty-safe payload map.
func New(tag string, payload map[string]interface{}) Event {
	if payload == nil {
		payload = make(map[string]interface{})
	}
	return Event{Tag: tag, Payload: payload}
}

// Queue is a double-ended sequence of pending events. EnqueueFront and
// EnqueueBack are the only mutators (§4.5).
type Queue struct {
	events []Event
}

// NewQueue returns an empty Queue.
func NewQueue() *Queue {
	return &Queue{}
}

// EnqueueBack appends an event to the tail of the queue.
func (q *Queue) EnqueueBack(e Event) {
	q.events = append(q.events, e)
}

// EnqueueFront prepends an event to the head of the queue. Handlers
// use this to model immediate reaction chains (an on-damage event
// prepending an on-faint event that must be processed before the next
// already-queued event).
func (q *Queue) EnqueueFront(e Event) {
	q.events = append([]Event{e}, q.events...)
}

// Empty reports whether the queue holds no pending events.
func (q *Queue) Empty() bool { return len(q.events) == 0 }

// PopFront removes and returns the event at the head of the queue. It
// panics if the queue is empty; callers must check Empty first.
func (q *Queue) PopFront() Event {
	e := q.events[0]
	q.events = q.events[1:]
	return e
}
