package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/gqlcache/internal/gql"
)

// marshalResult converts a Result to JSON TEXT for storage.
// HTML escaping is disabled so stored text matches the hydration payload.
func marshalResult(r gql.Result) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r); err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	// Encoder adds a trailing newline.
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// unmarshalResult parses JSON TEXT written by marshalResult.
func unmarshalResult(data string) (gql.Result, error) {
	var r gql.Result
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return gql.Result{}, fmt.Errorf("unmarshal result: %w", err)
	}
	return r, nil
}
