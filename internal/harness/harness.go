package harness

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/tidwall/gjson"

	"github.com/roach88/gqlcache/internal/engine"
	"github.com/roach88/gqlcache/internal/fetchopts"
	"github.com/roach88/gqlcache/internal/fingerprint"
	"github.com/roach88/gqlcache/internal/gql"
	"github.com/roach88/gqlcache/internal/testutil"
	"github.com/roach88/gqlcache/internal/transport"
)

// WaitTimeout bounds every wait step and the final settle.
const WaitTimeout = 5 * time.Second

// Harness drives one scenario against a fresh engine.
type Harness struct {
	engine  *engine.Engine
	fetcher *testutil.StubFetcher
	rec     *recorder

	handles map[string]*engine.Handle
	seen    map[string]bool

	// expected counts events by key so waits know when the trace is
	// complete.
	expected map[string]int
	total    int
}

// Run executes a scenario and evaluates its assertions.
//
// The returned error reports a scenario that could not be executed. Failed
// assertions are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	rec := newRecorder()
	seed := gql.Cache{}
	for _, e := range scenario.Seed {
		fp, err := rec.register(e.Name, gql.Operation{Query: e.Query, Variables: e.Variables})
		if err != nil {
			return nil, fmt.Errorf("seed %s: %w", e.Name, err)
		}
		seed[fp] = gql.Result{Data: e.Data}
	}

	fetcher := testutil.NewStubFetcher(responder(scenario.Responses))
	eng := engine.New(
		engine.WithFetcher(fetcher),
		engine.WithCache(seed),
		engine.WithIDGenerator(testutil.NewSequenceGenerator("dispatch")),
	)
	rec.attach(eng)

	h := &Harness{
		engine:   eng,
		fetcher:  fetcher,
		rec:      rec,
		handles:  make(map[string]*engine.Handle),
		seen:     make(map[string]bool),
		expected: make(map[string]int),
	}

	for i, step := range scenario.Steps {
		if err := h.execute(step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	fetcher.Release()
	if err := h.settle(); err != nil {
		return nil, err
	}

	result := NewResult()
	result.Trace = rec.trace()
	result.Cache = eng.Cache()
	result.Fetches = fetcher.Calls()
	for name, fp := range rec.fingerprints() {
		result.Fingerprints[name] = fp
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) execute(step Step) error {
	kind, err := step.kind()
	if err != nil {
		return err
	}
	log.WithField("step", kind).Debug("scenario step")

	switch kind {
	case "operate":
		return h.operate(step)
	case "wait":
		return h.wait(step.Wait)
	case "hold":
		h.fetcher.Hold()
	case "release":
		h.fetcher.Release()
	case "reload":
		h.expect(TraceEvent{Type: engine.EventReload, Except: step.Except})
		h.engine.Reload(h.rec.fingerprint(step.Except))
	case "reset":
		h.expect(TraceEvent{Type: engine.EventReset, Except: step.Except})
		h.engine.Reset(h.rec.fingerprint(step.Except))
	}
	return nil
}

func (h *Harness) operate(step Step) error {
	op := gql.Operation{Query: step.Query, Variables: step.Variables}
	if _, err := h.rec.register(step.Operate, op); err != nil {
		return err
	}

	res, err := h.engine.Operate(op, engine.OperateOptions{
		ReloadOnLoad: step.ReloadOnLoad,
		ResetOnLoad:  step.ResetOnLoad,
	})
	if err != nil {
		return fmt.Errorf("operate %s: %w", step.Operate, err)
	}

	if !h.seen[res.Handle.ID()] {
		h.seen[res.Handle.ID()] = true
		h.expect(TraceEvent{Type: engine.EventFetch, Operation: step.Operate})
		h.expect(TraceEvent{Type: engine.EventCache, Operation: step.Operate})
	}
	switch {
	case step.ReloadOnLoad:
		h.expect(TraceEvent{Type: engine.EventReload, Except: step.Operate})
	case step.ResetOnLoad:
		h.expect(TraceEvent{Type: engine.EventReset, Except: step.Operate})
	}
	h.handles[step.Operate] = res.Handle
	return nil
}

// wait blocks until the named handle settles and its events are recorded.
func (h *Harness) wait(name string) error {
	handle, ok := h.handles[name]
	if !ok {
		return fmt.Errorf("wait %s: operation was never dispatched", name)
	}

	ctx, cancel := context.WithTimeout(context.Background(), WaitTimeout)
	defer cancel()
	if _, err := handle.Wait(ctx); err != nil {
		return fmt.Errorf("wait %s: %w", name, err)
	}

	keys := []string{
		TraceEvent{Type: engine.EventCache, Operation: name}.Key(),
		TraceEvent{Type: engine.EventReload, Except: name}.Key(),
		TraceEvent{Type: engine.EventReset, Except: name}.Key(),
	}
	return h.rec.waitFor(ctx, func(counts map[string]int, _ int) bool {
		for _, k := range keys {
			if counts[k] < h.expected[k] {
				return false
			}
		}
		return true
	})
}

// settle waits for every dispatch and every expected event.
func (h *Harness) settle() error {
	ctx, cancel := context.WithTimeout(context.Background(), WaitTimeout)
	defer cancel()
	for _, handle := range h.engine.InFlight() {
		if _, err := handle.Wait(ctx); err != nil {
			return fmt.Errorf("settle: %w", err)
		}
	}
	if err := h.rec.waitFor(ctx, func(_ map[string]int, total int) bool {
		return total >= h.total
	}); err != nil {
		return fmt.Errorf("settle: %w", err)
	}
	return nil
}

func (h *Harness) expect(ev TraceEvent) {
	h.expected[ev.Key()]++
	h.total++
}

// responder answers requests from the scenario's rules.
func responder(rules []ResponseRule) testutil.Responder {
	return func(params fetchopts.Params) (*transport.Response, error) {
		query := requestQuery(params)
		for _, r := range rules {
			if !strings.Contains(query, r.Match) {
				continue
			}
			if r.Error != "" {
				return nil, errors.New(r.Error)
			}
			status := r.Status
			if status == 0 {
				status = http.StatusOK
			}
			return testutil.JSONResponse(status, r.Body), nil
		}
		return nil, fmt.Errorf("no response rule for query %q", query)
	}
}

func requestQuery(params fetchopts.Params) string {
	switch b := params.Body.(type) {
	case fetchopts.JSONBody:
		return gjson.Get(string(b), "query").String()
	case *fetchopts.MultipartForm:
		if f, ok := b.Get("operations"); ok {
			return gjson.Get(f.Value, "query").String()
		}
	}
	return ""
}

// recorder subscribes to the engine and keeps the trace.
type recorder struct {
	mu      sync.Mutex
	names   map[string]string // fingerprint -> name
	fps     map[string]string // name -> fingerprint
	events  []TraceEvent
	counts  map[string]int
	changed chan struct{}
}

func newRecorder() *recorder {
	return &recorder{
		names:   make(map[string]string),
		fps:     make(map[string]string),
		counts:  make(map[string]int),
		changed: make(chan struct{}),
	}
}

// register names the fingerprint of op before anything can emit it.
func (r *recorder) register(name string, op gql.Operation) (string, error) {
	_, fp, err := fingerprint.ForOperation(op, nil, nil)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names[fp] = name
	r.fps[name] = fp
	return fp, nil
}

func (r *recorder) fingerprint(name string) string {
	if name == "" {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fps[name]
}

func (r *recorder) fingerprints() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.fps))
	for k, v := range r.fps {
		out[k] = v
	}
	return out
}

func (r *recorder) name(fp string) string {
	if fp == "" {
		return ""
	}
	if n, ok := r.names[fp]; ok {
		return n
	}
	return "fp:" + fp
}

func (r *recorder) attach(eng *engine.Engine) {
	eng.On(engine.EventFetch, func(payload any) {
		ev := payload.(engine.FetchEvent)
		r.record(func() TraceEvent {
			return TraceEvent{Type: engine.EventFetch, Operation: r.name(ev.Fingerprint)}
		})
	})
	eng.On(engine.EventCache, func(payload any) {
		ev := payload.(engine.CacheEvent)
		r.record(func() TraceEvent {
			te := TraceEvent{
				Type:      engine.EventCache,
				Operation: r.name(ev.Fingerprint),
				Errors:    ev.CacheValue.ErrorLines(),
			}
			if ev.Response != nil {
				te.Status = ev.Response.StatusCode
			}
			return te
		})
	})
	eng.On(engine.EventReload, func(payload any) {
		ev := payload.(engine.ReloadEvent)
		r.record(func() TraceEvent {
			return TraceEvent{Type: engine.EventReload, Except: r.name(ev.ExceptFingerprint)}
		})
	})
	eng.On(engine.EventReset, func(payload any) {
		ev := payload.(engine.ResetEvent)
		r.record(func() TraceEvent {
			return TraceEvent{Type: engine.EventReset, Except: r.name(ev.ExceptFingerprint)}
		})
	})
}

// record appends the event built by build under the lock.
func (r *recorder) record(build func() TraceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev := build()
	ev.Seq = len(r.events) + 1
	r.events = append(r.events, ev)
	r.counts[ev.Key()]++
	close(r.changed)
	r.changed = make(chan struct{})
}

// waitFor blocks until done reports true for the current counts.
func (r *recorder) waitFor(ctx context.Context, done func(counts map[string]int, total int) bool) error {
	for {
		r.mu.Lock()
		ok := done(r.counts, len(r.events))
		changed := r.changed
		seen := len(r.events)
		r.mu.Unlock()
		if ok {
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return fmt.Errorf("timed out after %d events: %w", seen, ctx.Err())
		}
	}
}

func (r *recorder) trace() []TraceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TraceEvent, len(r.events))
	copy(out, r.events)
	return out
}
