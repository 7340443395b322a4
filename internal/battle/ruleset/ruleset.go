// Package ruleset defines the external-collaborator contract the
// battle driver dispatches into: a handler table keyed by event tag.
// Tags are plain strings, mapped to ordered lists of closures. The
// combatant lookup is not part of this contract; it lives on
// state.Battle (Lookup).
package ruleset

import (
	"roguevault/internal/battle/event"
	"roguevault/internal/battle/state"
)

// Handler is one registered reaction to a dequeued event. It receives
// the event, the mutable battle state, and the queue it may enqueue
// further events onto.
type Handler func(e *event.Event, st *state.Battle, q *event.Queue)

// Ruleset is the opaque collaborator supplying game-specific semantics.
// The engine never calls anything on Ruleset except Handlers;
// everything else about a concrete ruleset (damage formulas,
// type charts, move data) is out of the engine's scope.
type Ruleset interface {
	// Handlers returns the ordered handler list registered for tag, or
	// nil if none are registered.
	Handlers(tag string) []Handler
}

// Table is a ready-made Ruleset backed by an ordinary map, suitable
// for embedding in a concrete ruleset implementation or for tests
// that only need to exercise the engine's dispatch contract.
type Table struct {
	handlers map[string][]Handler
}

// NewTable returns an empty Table.
func NewTable() *Table {
	return &Table{handlers: make(map[string][]Handler)}
}

// Register appends handler to tag's ordered handler list.
func (t *Table) Register(tag string, handler Handler) {
	t.handlers[tag] = append(t.handlers[tag], handler)
}

// Handlers implements Ruleset.
func (t *Table) Handlers(tag string) []Handler {
	return t.handlers[tag]
}
