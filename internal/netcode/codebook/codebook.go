// Package codebook implements the shared dict-key codebook used by the
// payload serializer (SPEC_FULL.md §6, "Dict keys are tagged either as
// 'known' ... or 'unknown'"). The codebook is implementation-defined;
// peers must share the same codebook byte for byte.
package codebook

// Codebook maps known dict keys to single-byte ids, and back.
type Codebook struct {
	idByKey map[string]byte
	keyByID map[byte]string
}

// New builds a Codebook from an ordered key list; the key at index i
// is assigned id i. Ordering is part of the shared contract between
// peers, so callers must pass the same slice (or one built the same
// way) on both ends.
func New(keys []string) *Codebook {
	cb := &Codebook{
		idByKey: make(map[string]byte, len(keys)),
		keyByID: make(map[byte]string, len(keys)),
	}
	for i, k := range keys {
		id := byte(i)
		cb.idByKey[k] = id
		cb.keyByID[id] = k
	}
	return cb
}

// ID returns the known-key id for key, and whether it is known.
func (cb *Codebook) ID(key string) (byte, bool) {
	id, ok := cb.idByKey[key]
	return id, ok
}

// Key returns the key for a known-key id, and whether it is known.
func (cb *Codebook) Key(id byte) (string, bool) {
	k, ok := cb.keyByID[id]
	return k, ok
}

// Default is a reference codebook covering the battle/event payload
// keys this repository's own components emit (action "user-id",
// "action", damage "amount", and similar). Real deployments are free
// to build their own via New, so long as both peers agree.
var Default = New([]string{
	"user-id",
	"action",
	"amount",
	"combatant-id",
	"tag",
	"sequence",
	"ack",
})
