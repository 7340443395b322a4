// Package battle implements the deterministic turn-based battle driver
// described in SPEC_FULL.md §4.5 and §6.
package battle

import (
	"errors"
	"fmt"
	"sort"

	"roguevault/internal/battle/event"
	"roguevault/internal/battle/ruleset"
	"roguevault/internal/battle/state"
)

// ErrNoActiveCombatant is returned by New when a team does not have
// exactly one combatant with its active flag set (§7, "Battle error").
var ErrNoActiveCombatant = errors.New("battle: team must have exactly one active combatant")

// Action is opaque to the engine except for its priority: higher
// executes first (§3, "Action").
type Action interface {
	Priority() int
}

// Submission pairs a combatant with the ordered list of actions it
// takes this turn. ProcessTurn takes an ordered slice of these
// rather than a bare map so that tie-breaking among equal priorities
// is reproducible: Go map iteration order is randomized per process,
// which would violate the determinism property in §8 ("for fixed
// teams, ruleset, and action map, process-turn produces an identical
// event log across runs"). The ordered-slice shape preserves the
// spec's "map maps combatant-id -> list of actions" contract while
// making the iteration order the caller controls, not the runtime.
type Submission struct {
	CombatantID state.CombatantID
	Actions     []Action
}

// Driver drives one battle's turn processing.
type Driver struct {
	state   *state.Battle
	ruleset ruleset.Ruleset
	queue   *event.Queue
}

// New constructs a Driver from an ordered list of team combatant lists
// and a ruleset. Exactly one combatant per team must have its active
// flag set; otherwise construction fails with ErrNoActiveCombatant and
// no partial state is retained (§7).
func New(teams [][]*state.Combatant, rs ruleset.Ruleset) (*Driver, error) {
	builtTeams := make([]*state.Team, len(teams))
	for i, combatants := range teams {
		t := state.NewTeam(combatants)
		if t.CountActive() != 1 {
			return nil, fmt.Errorf("%w: team %d has %d active combatants", ErrNoActiveCombatant, i, t.CountActive())
		}
		builtTeams[i] = t
	}
	return &Driver{
		state:   state.NewBattleState(builtTeams),
		ruleset: rs,
		queue:   event.NewQueue(),
	}, nil
}

// State returns the driver's battle state for inspection by tests and
// hosting applications.
func (d *Driver) State() *state.Battle { return d.state }

// ProcessTurn runs one turn to quiescence and returns the full event
// log in processing order (§4.5, §6).
//
//  1. sort submissions by the priority of their first action,
//     descending, via a stable sort (ties preserved in submission
//     order — the ruleset is responsible for any secondary ordering
//     such as a speed stat);
//  2. wrap each action in an "action-request" event and enqueue it at
//     the back, in sorted order;
//  3. drain the queue to completion, dispatching each dequeued event to
//     every handler registered for its tag, in registration order;
//  4. increment the turn counter.
func (d *Driver) ProcessTurn(submissions []Submission) []event.Event {
	sorted := make([]Submission, len(submissions))
	copy(sorted, submissions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return priorityOf(sorted[i]) > priorityOf(sorted[j])
	})

	for _, sub := range sorted {
		for _, action := range sub.Actions {
			d.queue.EnqueueBack(event.New("action-request", map[string]interface{}{
				"user-id": sub.CombatantID,
				"action":  action,
			}))
		}
	}

	log := d.drain()
	d.state.TurnCounter++
	return log
}

// TurnNumber returns the number of turns completed so far.
func (d *Driver) TurnNumber() int { return d.state.TurnCounter }

func priorityOf(sub Submission) int {
	if len(sub.Actions) == 0 {
		return 0
	}
	return sub.Actions[0].Priority()
}

// drain pops from the front of the queue until empty, appending each
// event to the log and invoking every handler registered for its tag.
// Handlers may enqueue further events during dispatch; a
// front-prepended event is processed before whatever was already
// queued, modelling immediate reaction chains (§4.5).
func (d *Driver) drain() []event.Event {
	var log []event.Event
	for !d.queue.Empty() {
		e := d.queue.PopFront()
		log = append(log, e)
		for _, handler := range d.ruleset.Handlers(e.Tag) {
			handler(&e, d.state, d.queue)
		}
	}
	return log
}
