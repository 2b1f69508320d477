package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/gqlcache/internal/gql"
)

func sampleResult() *Result {
	r := NewResult()
	r.Trace = []TraceEvent{
		{Seq: 1, Type: "fetch", Operation: "a"},
		{Seq: 2, Type: "fetch", Operation: "b"},
		{Seq: 3, Type: "cache", Operation: "a", Status: 200},
		{Seq: 4, Type: "reset", Except: "a"},
		{Seq: 5, Type: "cache", Operation: "b", Errors: []string{"fetch error: down"}},
	}
	r.Fingerprints = map[string]string{"a": "fpa", "b": "fpb"}
	r.Cache = gql.Cache{
		"fpa": {Data: map[string]any{"user": map[string]any{"id": "u1", "age": float64(36)}}},
	}
	r.Fetches = 2
	return r
}

func TestTraceEvent_String(t *testing.T) {
	r := sampleResult()
	assert.Equal(t,
		"1 fetch a\n2 fetch b\n3 cache a status=200 ok\n4 reset except=a\n5 cache b status=- fetch error: down\n",
		r.TraceText())
	assert.Equal(t, "reload", TraceEvent{Type: "reload"}.Key())
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	errs := EvaluateAssertions(sampleResult(), []Assertion{
		{Type: AssertTraceContains, Event: "reset except=a"},
		{Type: AssertTraceOrder, Events: []string{"fetch a", "cache a", "cache b"}},
		{Type: AssertTraceCount, Event: "fetch b", Count: 1},
		{Type: AssertTraceCount, Event: "reload", Count: 0},
		{Type: AssertFetchCount, Count: 2},
		{Type: AssertCacheValue, Operation: "a", Expect: map[string]any{"user.id": "u1", "user.age": 36}},
		{Type: AssertCacheValue, Operation: "b", Absent: true},
		{Type: AssertCacheValue, Operation: "never", Absent: true},
	})
	assert.Empty(t, errs)
}

func TestAssertTraceOrder_OutOfOrder(t *testing.T) {
	err := assertTraceOrder(sampleResult().Trace, Assertion{Events: []string{"cache a", "fetch b"}})

	require.Error(t, err)
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, AssertTraceOrder, aerr.Type)
	assert.Contains(t, aerr.Actual, `"fetch b" not found after [cache a]`)
	assert.Contains(t, err.Error(), "Full trace:")
	assert.Contains(t, err.Error(), "  4 reset except=a\n")
}

func TestAssertCacheValue_Failures(t *testing.T) {
	r := sampleResult()

	err := assertCacheValue(r, Assertion{Operation: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no entry")

	err = assertCacheValue(r, Assertion{Operation: "a", Expect: map[string]any{"user.name": "Ada"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a.user.name = Ada")

	err = assertCacheValue(r, Assertion{Operation: "a", Absent: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entry present")
}
