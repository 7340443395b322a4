// Package bytefmt persists a compiled chunk.Function to disk and loads
// it back. The on-disk ".rgb" format is a thin gob envelope around the
// compiler's output: no third-party codec in the corpus round-trips an
// arbitrary Go struct graph carrying an interface{} constant pool
// (internal/netcode/serializer is a tagged wire format for application
// payloads, not for persisting bytecode), so this package uses the
// standard library's encoding/gob.
package bytefmt

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"roguevault/internal/script/chunk"
)

func init() {
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register("")
	gob.Register(false)
	gob.Register(&chunk.Function{})
}

// EncodeChunk serializes a compiled function (and, transitively, every
// nested function reachable through its constant pools) to bytes.
func EncodeChunk(fn *chunk.Function) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(fn); err != nil {
		return nil, fmt.Errorf("bytefmt: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeChunk deserializes bytes produced by EncodeChunk.
func DecodeChunk(data []byte) (*chunk.Function, error) {
	var fn chunk.Function
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&fn); err != nil {
		return nil, fmt.Errorf("bytefmt: decode: %w", err)
	}
	return &fn, nil
}
