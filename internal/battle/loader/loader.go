// Package loader decodes the JSON data-loader file formats specified
// in SPEC_FULL.md §6: pokemon.json, moves.json, items.json, and
// types.json. Their game-specific contents (stats, moves, type chart
// values) are out of this engine's scope; only the shapes are
// specified here because the engine's tests depend on them being
// loadable by an external ruleset.
package loader

import (
	"encoding/json"
	"fmt"
)

// BaseStats mirrors the pokemon.json `base_stats` object. Both
// underscore variants for special-attack and special-defense must be
// accepted to tolerate the two schemas present in the corpus (§6).
type BaseStats struct {
	HP              int `json:"hp"`
	Attack          int `json:"attack"`
	Defense         int `json:"defense"`
	SpecialAttack   int `json:"special_attack,omitempty"`
	SpAttack        int `json:"sp_attack,omitempty"`
	SpecialDefense  int `json:"special_defense,omitempty"`
	SpDefense       int `json:"sp_defense,omitempty"`
}

// SpAtk resolves whichever special-attack key was present.
func (b BaseStats) SpAtk() int {
	if b.SpecialAttack != 0 {
		return b.SpecialAttack
	}
	return b.SpAttack
}

// SpDef resolves whichever special-defense key was present.
func (b BaseStats) SpDef() int {
	if b.SpecialDefense != 0 {
		return b.SpecialDefense
	}
	return b.SpDefense
}

// PokemonEntry is one pokemon.json value.
type PokemonEntry struct {
	Name      string    `json:"name"`
	Types     []string  `json:"types"`
	BaseStats BaseStats `json:"base_stats"`
}

// MoveEntry is one moves.json value. Category is one of
// {physical, special, status}; Power and Accuracy may be absent
// (status moves).
type MoveEntry struct {
	Name     string `json:"name"`
	MoveType string `json:"move_type"`
	Category string `json:"category"`
	Power    *int   `json:"power"`
	Accuracy *int   `json:"accuracy"`
	PP       int    `json:"pp"`
	Priority int    `json:"priority"`
}

// ItemEntry is one items.json value.
type ItemEntry struct {
	Name       string `json:"name"`
	FlingPower *int   `json:"fling_power"`
	Effect     *string `json:"effect"`
}

// TypeChart is types.json: attacker-type -> defender-type -> multiplier.
type TypeChart map[string]map[string]float64

var validCategories = map[string]bool{"physical": true, "special": true, "status": true}
var validMultipliers = map[float64]bool{0: true, 0.5: true, 1: true, 2: true}

// LoadPokemon decodes pokemon.json.
func LoadPokemon(data []byte) (map[string]PokemonEntry, error) {
	var m map[string]PokemonEntry
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("loader: pokemon.json: %w", err)
	}
	return m, nil
}

// LoadMoves decodes moves.json and rejects any entry whose category is
// not one of {physical, special, status} (supplemented validation,
// SPEC_FULL.md §4.9).
func LoadMoves(data []byte) (map[string]MoveEntry, error) {
	var m map[string]MoveEntry
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("loader: moves.json: %w", err)
	}
	for key, mv := range m {
		if !validCategories[mv.Category] {
			return nil, fmt.Errorf("loader: moves.json[%s].category: invalid value %q", key, mv.Category)
		}
	}
	return m, nil
}

// LoadItems decodes items.json.
func LoadItems(data []byte) (map[string]ItemEntry, error) {
	var m map[string]ItemEntry
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("loader: items.json: %w", err)
	}
	return m, nil
}

// LoadTypes decodes types.json and rejects any multiplier outside
// {0.0, 0.5, 1.0, 2.0} (supplemented validation, SPEC_FULL.md §4.9).
func LoadTypes(data []byte) (TypeChart, error) {
	var chart TypeChart
	if err := json.Unmarshal(data, &chart); err != nil {
		return nil, fmt.Errorf("loader: types.json: %w", err)
	}
	for attacker, row := range chart {
		for defender, mult := range row {
			if !validMultipliers[mult] {
				return nil, fmt.Errorf("loader: types.json[%s][%s]: invalid multiplier %v", attacker, defender, mult)
			}
		}
	}
	return chart, nil
}

// ValidateCrossReferences checks that every move's move_type and every
// pokemon's types key into the type chart, per SPEC_FULL.md §4.9. This
// is supplemented validation the distilled spec.md is silent on; the
// original Python prototype's `rotomdex` loader performs the
// equivalent cross-check before battle start.
func ValidateCrossReferences(pokemon map[string]PokemonEntry, moves map[string]MoveEntry, types TypeChart) error {
	for key, mv := range moves {
		if _, ok := types[mv.MoveType]; !ok {
			return fmt.Errorf("loader: moves.json[%s].move_type %q not present in types.json", key, mv.MoveType)
		}
	}
	for key, p := range pokemon {
		for _, t := range p.Types {
			if _, ok := types[t]; !ok {
				return fmt.Errorf("loader: pokemon.json[%s].types contains %q not present in types.json", key, t)
			}
		}
	}
	return nil
}
