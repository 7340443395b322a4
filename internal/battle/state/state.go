// Package state defines the battle engine's state records: combatants,
// teams, and the overall battle state, per SPEC_FULL.md §3. Teams hold
// *Combatant pointers and Battle indexes them by CombatantID in a map;
// there is no separate combatant arena.
package state

// CombatantID is an opaque, caller-assigned combatant identifier.
type CombatantID int

// Combatant is opaque identity plus a capability set: a unique id, an
// active flag, and domain-supplied attributes (held item, current
// types, tera type, has-terastallized, ...) left as a free-form map
// since their shape is ruleset-specific and out of this engine's
// scope.
type Combatant struct {
	ID         CombatantID
	Active     bool
	Attributes map[string]interface{}
}

// NewCombatant returns a Combatant with an initialized attribute map.
func NewCombatant(id CombatantID, active bool) *Combatant {
	return &Combatant{ID: id, Active: active, Attributes: make(map[string]interface{})}
}

// Team is one side's list of combatant records plus per-team state
// that is not tied to any single combatant: the active combatant and
// a hazard set (entry hazards, screens, etc. — left opaque to the
// engine, keyed by name).
type Team struct {
	Combatants []*Combatant
	ActiveID   CombatantID
	Hazards    map[string]interface{}
}

// NewTeam builds a Team from an ordered combatant list. Exactly one
// combatant must have its Active flag set; ActiveID is derived from
// it. Construction fails (returns an error from the caller, not here)
// if that invariant does not hold — see battle.New.
func NewTeam(combatants []*Combatant) *Team {
	t := &Team{Combatants: combatants, Hazards: make(map[string]interface{})}
	for _, c := range combatants {
		if c.Active {
			t.ActiveID = c.ID
		}
	}
	return t
}

// CountActive returns how many combatants in the team have their
// Active flag set, used by construction-time validation.
func (t *Team) CountActive() int {
	n := 0
	for _, c := range t.Combatants {
		if c.Active {
			n++
		}
	}
	return n
}

// Battle is the full per-battle state: per-team combatant records, a
// global turn counter, and optional weather/terrain tokens (left
// opaque strings; the engine never interprets them).
type Battle struct {
	Teams       []*Team
	TurnCounter int
	Weather     string
	Terrain     string
	byID        map[CombatantID]*Combatant
}

// NewBattleState indexes every team's combatants into a flat id->
// combatant lookup and returns the assembled Battle state.
func NewBattleState(teams []*Team) *Battle {
	b := &Battle{Teams: teams, byID: make(map[CombatantID]*Combatant)}
	for _, t := range teams {
		for _, c := range t.Combatants {
			b.byID[c.ID] = c
		}
	}
	return b
}

// Lookup returns the combatant for id, and whether it was found.
func (b *Battle) Lookup(id CombatantID) (*Combatant, bool) {
	c, ok := b.byID[id]
	return c, ok
}
