package gql

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Cache maps operation fingerprints to results. It is the hydration payload
// exported after server rendering and imported to seed a client engine.
type Cache map[string]Result

// Clone returns a shallow copy of the cache map. Results are never mutated
// in place, so sharing them is safe.
func (c Cache) Clone() Cache {
	out := make(Cache, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Keys returns the fingerprints in sorted order.
func (c Cache) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalCache serializes a cache for the hydration boundary.
// encoding/json sorts map keys, so equal caches produce equal bytes.
func MarshalCache(c Cache) ([]byte, error) {
	if c == nil {
		c = Cache{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal cache: %w", err)
	}
	return data, nil
}

// UnmarshalCache parses a hydration payload produced by MarshalCache.
func UnmarshalCache(data []byte) (Cache, error) {
	c := Cache{}
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cache: %w", err)
	}
	return c, nil
}
