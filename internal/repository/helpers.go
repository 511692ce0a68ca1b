package repository

import (
	"encoding/json"

	pgvector "github.com/pgvector/pgvector-go"
)

// nullableJSON passes through a json.RawMessage as driver-compatible []byte,
// or nil when the field was never set.
func nullableJSON(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

// vectorOf wraps a float32 slice as a pgvector.Vector, or the zero value
// when no embedding was computed (e.g. a skipped document).
func vectorOf(v []float32) *pgvector.Vector {
	if len(v) == 0 {
		return nil
	}
	vec := pgvector.NewVector(v)
	return &vec
}
