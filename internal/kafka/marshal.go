package kafka

import (
	"encoding/json"
	"fmt"
)

// MustMarshal encodes envelopes and payload structs, whose encoding cannot
// fail short of a programming error.
func MustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("kafka: marshal %T: %v", v, err))
	}
	return b
}

// Decode parses a message value or an envelope payload into T.
func Decode[T any](b []byte) (T, error) {
	var t T
	if err := json.Unmarshal(b, &t); err != nil {
		return t, fmt.Errorf("decode %T: %w", t, err)
	}
	return t, nil
}
