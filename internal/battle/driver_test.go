package battle_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roguevault/internal/battle"
	"roguevault/internal/battle/event"
	"roguevault/internal/battle/ruleset"
	"roguevault/internal/battle/state"
)

type move struct {
	name     string
	priority int
	damage   int
}

func (m move) Priority() int { return m.priority }

func newTeams() (state.CombatantID, state.CombatantID, []*state.Combatant, []*state.Combatant) {
	const p, c = state.CombatantID(1), state.CombatantID(2)
	return p, c, []*state.Combatant{state.NewCombatant(p, true)}, []*state.Combatant{state.NewCombatant(c, true)}
}

func damageRuleset(hp map[state.CombatantID]int) ruleset.Ruleset {
	table := ruleset.NewTable()
	table.Register("action-request", func(e *event.Event, st *state.Battle, q *event.Queue) {
		userID := e.Payload["user-id"].(state.CombatantID)
		m := e.Payload["action"].(move)
		target := state.CombatantID(3 - int(userID)) // the other combatant, in this two-party test
		q.EnqueueBack(event.New("damage", map[string]interface{}{
			"combatant-id": target,
			"amount":       m.damage,
		}))
	})
	table.Register("damage", func(e *event.Event, st *state.Battle, q *event.Queue) {
		target := e.Payload["combatant-id"].(state.CombatantID)
		amount := e.Payload["amount"].(int)
		hp[target] -= amount
	})
	return table
}

func TestProcessTurnDamageScenario(t *testing.T) {
	p, c, pTeam, cTeam := newTeams()
	hp := map[state.CombatantID]int{p: 100, c: 100}

	driver, err := battle.New([][]*state.Combatant{pTeam, cTeam}, damageRuleset(hp))
	require.NoError(t, err)

	log := driver.ProcessTurn([]battle.Submission{
		{CombatantID: p, Actions: []battle.Action{move{name: "tackle", priority: 0, damage: 10}}},
		{CombatantID: c, Actions: []battle.Action{move{name: "scratch", priority: 0, damage: 10}}},
	})

	assert.Len(t, log, 4)
	assert.Equal(t, 90, hp[p])
	assert.Equal(t, 90, hp[c])
	assert.Equal(t, 1, driver.TurnNumber())
}

func TestProcessTurnIsDeterministicAcrossRuns(t *testing.T) {
	runLog := func() []string {
		p, c, pTeam, cTeam := newTeams()
		hp := map[state.CombatantID]int{p: 100, c: 100}
		driver, err := battle.New([][]*state.Combatant{pTeam, cTeam}, damageRuleset(hp))
		require.NoError(t, err)
		log := driver.ProcessTurn([]battle.Submission{
			{CombatantID: p, Actions: []battle.Action{move{priority: 0, damage: 10}}},
			{CombatantID: c, Actions: []battle.Action{move{priority: 0, damage: 10}}},
		})
		tags := make([]string, len(log))
		for i, e := range log {
			tags[i] = e.Tag
		}
		return tags
	}

	first := runLog()
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, runLog())
	}
}

func TestHigherPriorityActsFirst(t *testing.T) {
	p, c, pTeam, cTeam := newTeams()
	var order []state.CombatantID

	table := ruleset.NewTable()
	table.Register("action-request", func(e *event.Event, st *state.Battle, q *event.Queue) {
		order = append(order, e.Payload["user-id"].(state.CombatantID))
	})

	driver, err := battle.New([][]*state.Combatant{pTeam, cTeam}, table)
	require.NoError(t, err)

	driver.ProcessTurn([]battle.Submission{
		{CombatantID: p, Actions: []battle.Action{move{priority: 0}}},
		{CombatantID: c, Actions: []battle.Action{move{priority: 5}}},
	})

	assert.Equal(t, []state.CombatantID{c, p}, order)
}

func TestNewFailsWithoutExactlyOneActiveCombatant(t *testing.T) {
	noneActive := []*state.Combatant{state.NewCombatant(1, false)}
	bothActive := []*state.Combatant{state.NewCombatant(2, true), state.NewCombatant(3, true)}

	_, err := battle.New([][]*state.Combatant{noneActive}, ruleset.NewTable())
	assert.ErrorIs(t, err, battle.ErrNoActiveCombatant)

	_, err = battle.New([][]*state.Combatant{bothActive}, ruleset.NewTable())
	assert.ErrorIs(t, err, battle.ErrNoActiveCombatant)
}

func TestHandlerCanEnqueueFrontForImmediateReaction(t *testing.T) {
	p, _, pTeam, cTeam := newTeams()
	var processed []string

	table := ruleset.NewTable()
	table.Register("action-request", func(e *event.Event, st *state.Battle, q *event.Queue) {
		processed = append(processed, "action-request")
		q.EnqueueFront(event.New("immediate-reaction", nil))
	})
	table.Register("immediate-reaction", func(e *event.Event, st *state.Battle, q *event.Queue) {
		processed = append(processed, "immediate-reaction")
	})

	driver, err := battle.New([][]*state.Combatant{pTeam, cTeam}, table)
	require.NoError(t, err)

	driver.ProcessTurn([]battle.Submission{
		{CombatantID: p, Actions: []battle.Action{move{priority: 0}}},
	})

	assert.Equal(t, []string{"action-request", "immediate-reaction"}, processed)
}
