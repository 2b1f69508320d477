// Package hook implements the per-subscriber state machine that binds one
// UI instance to an operation in the engine.
//
// A Hook starts Idle with whatever the engine has cached for its
// fingerprint, becomes Loading on a matching fetch event and Loaded on a
// matching cache event. Load policies decide when the hook itself asks the
// engine to operate:
//
//   - LoadOnMount: on mount and whenever the fingerprint changes while
//     mounted, unless a cache value exists and the mount falls inside the
//     hydration window after the first render
//   - LoadOnReload: on a reload that does not exempt this fingerprint, if a
//     cache value is held
//   - LoadOnReset: on a reset that does not exempt this fingerprint, after
//     adopting the current cache value
//
// Event-driven updates are dropped once the hook is unmounted.
package hook

import (
	"context"
	"sync"
	"time"

	"github.com/apex/log"

	"github.com/roach88/gqlcache/internal/engine"
	"github.com/roach88/gqlcache/internal/events"
	"github.com/roach88/gqlcache/internal/fetchopts"
	"github.com/roach88/gqlcache/internal/fingerprint"
	"github.com/roach88/gqlcache/internal/gql"
	"github.com/roach88/gqlcache/internal/provider"
)

// HydrationWindow is how long after the first render a mount reuses a
// cached value instead of loading.
const HydrationWindow = time.Second

// Options configures a Hook.
type Options struct {
	Operation            gql.Operation
	FetchOptionsOverride fetchopts.Override

	// CacheKeyCreator derives the fingerprint. Nil means fingerprint.Default.
	CacheKeyCreator fingerprint.Creator

	LoadOnMount  bool
	LoadOnReload bool
	LoadOnReset  bool

	// ReloadOnLoad and ResetOnLoad are passed through to the engine.
	ReloadOnLoad bool
	ResetOnLoad  bool
}

// Validate checks option combinations and the operation.
func (o Options) Validate() error {
	if err := o.operateOptions().Validate(); err != nil {
		return err
	}
	return engine.ValidateOperation(o.Operation)
}

func (o Options) operateOptions() engine.OperateOptions {
	return engine.OperateOptions{
		FetchOptionsOverride: o.FetchOptionsOverride,
		CacheKeyCreator:      o.CacheKeyCreator,
		ReloadOnLoad:         o.ReloadOnLoad,
		ResetOnLoad:          o.ResetOnLoad,
	}
}

// State is what a subscriber renders from.
type State struct {
	Fingerprint string
	Loading     bool

	// CacheValue is the engine's cache entry as last observed, nil if none.
	CacheValue *gql.Result

	// LoadedCacheValue is the result of the last load this hook observed
	// settling. It survives resets, unlike CacheValue.
	LoadedCacheValue *gql.Result
}

// Hook binds one subscriber to the engine.
type Hook struct {
	eng         *engine.Engine
	now         func() time.Time
	firstRender time.Time
	hydrating   bool

	mu        sync.Mutex
	opts      Options
	state     State
	mounted   bool
	listeners map[string]events.ListenerID
	onChange  func(State)
}

// HookOption configures a Hook.
type HookOption func(*Hook)

// WithClock replaces time.Now for hydration-window checks.
func WithClock(now func() time.Time) HookOption {
	return func(h *Hook) {
		h.now = now
	}
}

// New creates a hook for opts using the engine found in ctx.
//
// In a server render (provider.IsServerSide) with LoadOnMount set and
// nothing cached, New starts the load itself so the render loop counts the
// dispatch in the same pass. The returned state stays Loading.
func New(ctx context.Context, opts Options, hookOpts ...HookOption) (*Hook, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	eng, ok := provider.EngineFrom(ctx)
	if !ok {
		return nil, engine.NewMissingEngineError()
	}

	h := &Hook{
		eng:  eng,
		now:  time.Now,
		opts: opts,
	}
	h.firstRender, h.hydrating = provider.FirstRenderFrom(ctx)
	for _, o := range hookOpts {
		o(h)
	}

	state, err := h.initialState(opts)
	if err != nil {
		return nil, err
	}

	// A server pass renders what was cached when the hook was created. The
	// result shows up in the next pass even if it settles sooner.
	if provider.IsServerSide(ctx) && opts.LoadOnMount && state.CacheValue == nil {
		if _, err := eng.Operate(opts.Operation, opts.operateOptions()); err != nil {
			return nil, err
		}
		state.Loading = true
	}
	h.state = state

	return h, nil
}

// initialState derives state for opts from the engine.
func (h *Hook) initialState(opts Options) (State, error) {
	_, fp, err := fingerprint.ForOperation(opts.Operation, opts.FetchOptionsOverride, opts.CacheKeyCreator)
	if err != nil {
		return State{}, err
	}
	return State{
		Fingerprint: fp,
		Loading:     h.eng.InFlightHandle(fp) != nil,
		CacheValue:  h.eng.CacheValue(fp),
	}, nil
}

// State returns the current state.
func (h *Hook) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// OnChange sets the function called with every new state.
func (h *Hook) OnChange(fn func(State)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = fn
}

// Mount subscribes to engine events and applies the load-on-mount policy.
// Mounting twice is a no-op.
func (h *Hook) Mount() error {
	h.mu.Lock()
	if h.mounted {
		h.mu.Unlock()
		return nil
	}
	h.mounted = true
	h.listeners = map[string]events.ListenerID{
		engine.EventFetch:  h.eng.On(engine.EventFetch, h.onFetch),
		engine.EventCache:  h.eng.On(engine.EventCache, h.onCache),
		engine.EventReload: h.eng.On(engine.EventReload, h.onReload),
		engine.EventReset:  h.eng.On(engine.EventReset, h.onReset),
	}
	loadOnMount := h.opts.LoadOnMount
	h.mu.Unlock()

	if loadOnMount {
		return h.mountLoad()
	}
	return nil
}

// Unmount unsubscribes. Events already queued for delivery are ignored.
func (h *Hook) Unmount() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.mounted {
		return
	}
	h.mounted = false
	for name, id := range h.listeners {
		h.eng.Off(name, id)
	}
	h.listeners = nil
}

// Update replaces the options. When the fingerprint changes, state is
// re-initialized from the engine and, if mounted with LoadOnMount, the
// mount policy runs again.
func (h *Hook) Update(opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	state, err := h.initialState(opts)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.opts = opts
	if state.Fingerprint == h.state.Fingerprint {
		h.mu.Unlock()
		return nil
	}
	h.state = state
	mounted := h.mounted
	h.mu.Unlock()

	h.notify(state)

	if mounted && opts.LoadOnMount {
		return h.mountLoad()
	}
	return nil
}

// Load asks the engine to operate with the hook's options and, while
// mounted, marks the hook loading, keeping the current cache value as stale
// data. An unmounted hook still operates but its state is left alone.
func (h *Hook) Load() (*engine.Operation, error) {
	h.mu.Lock()
	opts := h.opts
	h.mu.Unlock()

	op, err := h.eng.Operate(opts.Operation, opts.operateOptions())
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"fingerprint": op.Fingerprint,
		"dispatch_id": op.Handle.ID(),
	}).Debug("subscriber load")

	h.mu.Lock()
	if !h.mounted || op.Fingerprint != h.state.Fingerprint {
		// Unmounted, or options changed while operating.
		h.mu.Unlock()
		return op, nil
	}
	// The in-flight entry is removed before the cache event, so a handle
	// still in flight here guarantees onCache has yet to run.
	if h.eng.InFlightHandle(op.Fingerprint) == op.Handle {
		h.state.Loading = true
	}
	h.state.CacheValue = h.eng.CacheValue(op.Fingerprint)
	state := h.state
	h.mu.Unlock()

	h.notify(state)
	return op, nil
}

// mountLoad loads unless the hydration window suppresses it.
func (h *Hook) mountLoad() error {
	h.mu.Lock()
	cached := h.state.CacheValue != nil
	h.mu.Unlock()

	if cached && h.inHydrationWindow() {
		log.WithField("fingerprint", h.State().Fingerprint).Debug("hydrated value reused")
		return nil
	}
	_, err := h.Load()
	return err
}

func (h *Hook) inHydrationWindow() bool {
	return h.hydrating && h.now().Sub(h.firstRender) < HydrationWindow
}

func (h *Hook) onFetch(payload any) {
	ev, ok := payload.(engine.FetchEvent)
	if !ok {
		return
	}
	h.mu.Lock()
	if !h.mounted || ev.Fingerprint != h.state.Fingerprint {
		h.mu.Unlock()
		return
	}
	h.state.Loading = true
	state := h.state
	h.mu.Unlock()

	h.notify(state)
}

func (h *Hook) onCache(payload any) {
	ev, ok := payload.(engine.CacheEvent)
	if !ok {
		return
	}
	h.mu.Lock()
	if !h.mounted || ev.Fingerprint != h.state.Fingerprint {
		h.mu.Unlock()
		return
	}
	value := ev.CacheValue
	h.state.Loading = false
	h.state.CacheValue = &value
	h.state.LoadedCacheValue = &value
	state := h.state
	h.mu.Unlock()

	h.notify(state)
}

func (h *Hook) onReload(payload any) {
	ev, ok := payload.(engine.ReloadEvent)
	if !ok {
		return
	}
	h.mu.Lock()
	load := h.mounted &&
		h.opts.LoadOnReload &&
		ev.ExceptFingerprint != h.state.Fingerprint &&
		h.state.CacheValue != nil
	h.mu.Unlock()

	if load {
		h.loadInBackground()
	}
}

func (h *Hook) onReset(payload any) {
	ev, ok := payload.(engine.ResetEvent)
	if !ok {
		return
	}
	h.mu.Lock()
	if !h.mounted || ev.ExceptFingerprint == h.state.Fingerprint {
		h.mu.Unlock()
		return
	}
	h.state.CacheValue = h.eng.CacheValue(h.state.Fingerprint)
	state := h.state
	load := h.opts.LoadOnReset
	h.mu.Unlock()

	h.notify(state)
	if load {
		h.loadInBackground()
	}
}

// loadInBackground loads from an event listener, where an error has no
// caller to go to.
func (h *Hook) loadInBackground() {
	if _, err := h.Load(); err != nil {
		log.WithError(err).WithField("fingerprint", h.State().Fingerprint).Error("subscriber load failed")
	}
}

func (h *Hook) notify(state State) {
	h.mu.Lock()
	fn := h.onChange
	h.mu.Unlock()
	if fn != nil {
		fn(state)
	}
}
