package engine

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/apex/log"

	"github.com/roach88/gqlcache/internal/events"
	"github.com/roach88/gqlcache/internal/fetchopts"
	"github.com/roach88/gqlcache/internal/fingerprint"
	"github.com/roach88/gqlcache/internal/gql"
	"github.com/roach88/gqlcache/internal/transport"
)

// Event names emitted by the engine.
const (
	EventFetch  = "fetch"
	EventCache  = "cache"
	EventReload = "reload"
	EventReset  = "reset"
)

// FetchEvent is the payload of EventFetch, emitted when a new dispatch
// starts. Joining an in-flight dispatch emits nothing.
type FetchEvent struct {
	Fingerprint string
	Handle      *Handle
}

// CacheEvent is the payload of EventCache, emitted after a dispatch settled
// and its result was written to the cache. Response is nil when no HTTP
// response was received.
type CacheEvent struct {
	Fingerprint string
	CacheValue  gql.Result
	Response    *transport.Response
}

// ReloadEvent is the payload of EventReload.
type ReloadEvent struct {
	ExceptFingerprint string
}

// ResetEvent is the payload of EventReset.
type ResetEvent struct {
	ExceptFingerprint string
}

// Engine is the operation cache and request-deduplication engine.
//
// Thread-safety model:
//   - All exported methods are safe from any goroutine.
//   - cache and inflight are guarded by mu; mu is never held while events
//     are emitted or while a fetch runs.
type Engine struct {
	mu         sync.Mutex
	cache      gql.Cache
	inflight   map[string]*Handle
	dispatches uint64

	emitter events.Emitter
	fetcher transport.Fetcher
	ctx     context.Context
	ids     IDGenerator
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache seeds the cache, typically with a hydration payload exported by
// a server render. The map is copied.
func WithCache(c gql.Cache) Option {
	return func(e *Engine) {
		e.cache = c.Clone()
	}
}

// WithFetcher sets the fetch capability. An engine without one settles
// every dispatch with a fetch error.
func WithFetcher(f transport.Fetcher) Option {
	return func(e *Engine) {
		e.fetcher = f
	}
}

// WithContext sets the base context passed to the fetcher. Dispatches are
// shared between callers, so no single caller's context governs them.
func WithContext(ctx context.Context) Option {
	return func(e *Engine) {
		e.ctx = ctx
	}
}

// WithIDGenerator sets the dispatch id generator.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		cache:    gql.Cache{},
		inflight: make(map[string]*Handle),
		ctx:      context.Background(),
		ids:      UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = gql.Cache{}
	}
	return e
}

// OperateOptions tunes a single Operate call.
type OperateOptions struct {
	// FetchOptionsOverride customizes the request parameters. It runs after
	// the defaults are built and before the fingerprint is computed.
	FetchOptionsOverride fetchopts.Override

	// CacheKeyCreator derives the fingerprint. Nil means fingerprint.Default.
	CacheKeyCreator fingerprint.Creator

	// ReloadOnLoad broadcasts a reload for every other fingerprint once the
	// dispatch settles.
	ReloadOnLoad bool

	// ResetOnLoad resets every other cache entry once the dispatch settles.
	ResetOnLoad bool
}

// Validate checks option combinations.
func (o OperateOptions) Validate() error {
	if o.ReloadOnLoad && o.ResetOnLoad {
		return NewMutuallyExclusiveError("ReloadOnLoad", "ResetOnLoad")
	}
	return nil
}

// ValidateOperation rejects an operation that has no query document.
func ValidateOperation(op gql.Operation) error {
	if strings.TrimSpace(op.Query) == "" {
		return NewInvalidOptionError("Query", "query is empty")
	}
	return nil
}

// Operation is what Operate returns.
type Operation struct {
	Fingerprint string

	// CacheValue is the cache entry at call time, nil if there was none.
	CacheValue *gql.Result

	Handle *Handle
}

// Operate loads op, joining an identical in-flight dispatch if one exists.
//
// The returned error is non-nil only for invalid options, an empty query or
// a request that cannot be built. Fetch failures are reported in the settled Result.
func (e *Engine) Operate(op gql.Operation, opts OperateOptions) (*Operation, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if err := ValidateOperation(op); err != nil {
		return nil, err
	}

	params, fp, err := fingerprint.ForOperation(op, opts.FetchOptionsOverride, opts.CacheKeyCreator)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	out := &Operation{Fingerprint: fp, CacheValue: e.lookup(fp)}

	h, joined := e.inflight[fp]
	if !joined {
		h = newHandle(e.ids.Generate(), fp)
		e.inflight[fp] = h
		e.dispatches++
	}
	if after := e.postLoad(fp, opts); after != nil {
		h.after = append(h.after, after)
	}
	e.mu.Unlock()

	out.Handle = h
	if joined {
		log.WithFields(log.Fields{
			"fingerprint": fp,
			"dispatch_id": h.id,
		}).Debug("joined in-flight operation")
		return out, nil
	}

	e.emitter.Emit(EventFetch, FetchEvent{Fingerprint: fp, Handle: h})
	go e.dispatch(h, params)

	return out, nil
}

// postLoad returns the callback requested by opts, or nil.
func (e *Engine) postLoad(fp string, opts OperateOptions) func() {
	switch {
	case opts.ReloadOnLoad:
		return func() { e.Reload(fp) }
	case opts.ResetOnLoad:
		return func() { e.Reset(fp) }
	}
	return nil
}

// Reload asks subscribers of every fingerprint except except to reload.
// The cache is not touched.
func (e *Engine) Reload(except string) {
	e.emitter.Emit(EventReload, ReloadEvent{ExceptFingerprint: except})
}

// Reset deletes every cache entry except the one for except, then notifies
// subscribers. In-flight dispatches are not aborted.
func (e *Engine) Reset(except string) {
	e.mu.Lock()
	for fp := range e.cache {
		if fp != except {
			delete(e.cache, fp)
		}
	}
	e.mu.Unlock()

	e.emitter.Emit(EventReset, ResetEvent{ExceptFingerprint: except})
}

// Cache returns a copy of the cache. Its JSON encoding is the hydration
// payload for WithCache.
func (e *Engine) Cache() gql.Cache {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cache.Clone()
}

// CacheValue returns a copy of the cache entry for fp, or nil.
func (e *Engine) CacheValue(fp string) *gql.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lookup(fp)
}

// InFlight returns the outstanding handles ordered by fingerprint.
func (e *Engine) InFlight() []*Handle {
	e.mu.Lock()
	handles := make([]*Handle, 0, len(e.inflight))
	for _, h := range e.inflight {
		handles = append(handles, h)
	}
	e.mu.Unlock()

	sort.Slice(handles, func(i, j int) bool {
		return handles[i].fingerprint < handles[j].fingerprint
	})
	return handles
}

// Dispatches returns how many dispatches the engine has started. Joined
// operations do not count.
func (e *Engine) Dispatches() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dispatches
}

// InFlightHandle returns the outstanding handle for fp, or nil.
func (e *Engine) InFlightHandle(fp string) *Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inflight[fp]
}

// On registers fn for the named engine event.
func (e *Engine) On(name string, fn events.Handler) events.ListenerID {
	return e.emitter.On(name, fn)
}

// Off removes a listener registered with On.
func (e *Engine) Off(name string, id events.ListenerID) bool {
	return e.emitter.Off(name, id)
}

// lookup must be called with mu held.
func (e *Engine) lookup(fp string) *gql.Result {
	r, ok := e.cache[fp]
	if !ok {
		return nil
	}
	return &r
}
