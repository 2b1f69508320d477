package engine

import (
	"context"

	"github.com/roach88/gqlcache/internal/gql"
)

// Handle is the shareable pending result of one dispatch.
//
// Every caller that joins an in-flight operation receives the same *Handle.
// A handle always resolves with a gql.Result; it never carries a fetch
// failure as a Go error.
type Handle struct {
	id          string
	fingerprint string
	done        chan struct{}
	result      gql.Result

	// after holds post-settlement callbacks. Guarded by the engine mutex
	// until settlement takes ownership of it.
	after []func()
}

func newHandle(id, fingerprint string) *Handle {
	return &Handle{
		id:          id,
		fingerprint: fingerprint,
		done:        make(chan struct{}),
	}
}

// ID returns the dispatch id.
func (h *Handle) ID() string { return h.id }

// Fingerprint returns the fingerprint the handle was dispatched for.
func (h *Handle) Fingerprint() string { return h.fingerprint }

// Done is closed when the dispatch has settled.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the dispatch settles or ctx is done. The only errors
// returned are ctx errors.
func (h *Handle) Wait(ctx context.Context) (gql.Result, error) {
	select {
	case <-h.done:
		return h.result, nil
	case <-ctx.Done():
		return gql.Result{}, ctx.Err()
	}
}

// Result returns the settled result without blocking. ok is false while the
// dispatch is outstanding.
func (h *Handle) Result() (gql.Result, bool) {
	select {
	case <-h.done:
		return h.result, true
	default:
		return gql.Result{}, false
	}
}

func (h *Handle) resolve(r gql.Result) {
	h.result = r
	close(h.done)
}
