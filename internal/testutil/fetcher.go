package testutil

import (
	"context"
	"net/http"
	"sync"

	"github.com/roach88/gqlcache/internal/fetchopts"
	"github.com/roach88/gqlcache/internal/transport"
)

// Responder produces the stub's answer for one request.
type Responder func(params fetchopts.Params) (*transport.Response, error)

// StubFetcher is a transport.Fetcher for tests. It records every request
// and can hold requests at a gate until the test releases them, which keeps
// dispatches in flight for as long as a test needs.
//
// Thread-safety: safe for concurrent use via internal mutex.
type StubFetcher struct {
	mu      sync.Mutex
	respond Responder
	calls   []fetchopts.Params
	gate    chan struct{}
	started chan struct{}
}

// NewStubFetcher creates a stub answering with respond.
func NewStubFetcher(respond Responder) *StubFetcher {
	return &StubFetcher{
		respond: respond,
		started: make(chan struct{}, 64),
	}
}

// JSONStub creates a stub that always answers status with body.
func JSONStub(status int, body string) *StubFetcher {
	return NewStubFetcher(func(fetchopts.Params) (*transport.Response, error) {
		return JSONResponse(status, body), nil
	})
}

// JSONResponse builds a transport.Response with a JSON content type.
func JSONResponse(status int, body string) *transport.Response {
	return &transport.Response{
		StatusCode: status,
		StatusText: http.StatusText(status),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(body),
	}
}

// Hold makes later requests block until Release.
func (s *StubFetcher) Hold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gate == nil {
		s.gate = make(chan struct{})
	}
}

// Release unblocks every held request.
func (s *StubFetcher) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gate != nil {
		close(s.gate)
		s.gate = nil
	}
}

// Started receives one value per request, when the request reaches the stub.
func (s *StubFetcher) Started() <-chan struct{} {
	return s.started
}

// Fetch implements transport.Fetcher.
func (s *StubFetcher) Fetch(ctx context.Context, params fetchopts.Params) (*transport.Response, error) {
	s.mu.Lock()
	s.calls = append(s.calls, params)
	gate := s.gate
	s.mu.Unlock()

	select {
	case s.started <- struct{}{}:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.respond(params)
}

// Calls returns how many requests were made.
func (s *StubFetcher) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Requests returns a copy of the recorded request parameters.
func (s *StubFetcher) Requests() []fetchopts.Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]fetchopts.Params, len(s.calls))
	copy(out, s.calls)
	return out
}
