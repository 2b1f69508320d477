package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/gqlcache/internal/engine"
	"github.com/roach88/gqlcache/internal/gql"
)

var testEpoch = time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)

// createTestStore creates a new store in a temp directory with fixed ids
// and a fixed clock.
func createTestStore(t *testing.T, ids ...string) *Store {
	t.Helper()
	if len(ids) == 0 {
		ids = []string{"snap-1", "snap-2", "snap-3", "snap-4"}
	}
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path,
		WithIDGenerator(engine.NewFixedGenerator(ids...)),
		WithClock(func() time.Time { return testEpoch }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// testCache returns a small cache with one success and one failure.
func testCache() gql.Cache {
	return gql.Cache{
		"k1": {Data: map[string]any{"user": map[string]any{"name": "Ada <admin>"}}},
		"k2": {
			HTTPError:  &gql.HTTPError{Status: 404, StatusText: "Not Found"},
			ParseError: "invalid character 'p' after top-level value",
		},
	}
}
