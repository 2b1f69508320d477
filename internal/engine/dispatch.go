package engine

import (
	"encoding/json"
	"fmt"

	"github.com/apex/log"
	"github.com/tidwall/gjson"

	"github.com/roach88/gqlcache/internal/fetchopts"
	"github.com/roach88/gqlcache/internal/gql"
	"github.com/roach88/gqlcache/internal/transport"
)

const (
	// MsgFetchUnavailable is the fetch error of an engine without a fetcher.
	MsgFetchUnavailable = "Fetch capability unavailable."

	// MsgMalformedPayload is the parse error for JSON that has neither a
	// data nor an errors member, or whose data or errors has the wrong shape.
	MsgMalformedPayload = "Malformed payload."
)

// dispatch runs one network dispatch and settles h. It runs on its own
// goroutine and never returns without settling.
func (e *Engine) dispatch(h *Handle, params fetchopts.Params) {
	logger := log.WithFields(log.Fields{
		"fingerprint": h.fingerprint,
		"dispatch_id": h.id,
	})
	logger.Debug("dispatching operation")

	result, resp := e.fetch(params)

	if resp != nil {
		logger = logger.WithField("status", resp.StatusCode)
	}
	logger.Debug("operation settled")

	e.settle(h, result, resp)
}

// fetch performs the request. A panicking fetcher is reported as a fetch
// error so the handle still settles.
func (e *Engine) fetch(params fetchopts.Params) (result gql.Result, resp *transport.Response) {
	if e.fetcher == nil {
		return gql.Result{FetchError: MsgFetchUnavailable}, nil
	}

	defer func() {
		if r := recover(); r != nil {
			result = gql.Result{FetchError: fmt.Sprintf("fetcher panicked: %v", r)}
			resp = nil
		}
	}()

	resp, err := e.fetcher.Fetch(e.ctx, params)
	if err != nil {
		return gql.Result{FetchError: err.Error()}, nil
	}
	if resp == nil {
		return gql.Result{FetchError: "fetcher returned no response"}, nil
	}
	return Decode(resp), resp
}

// Decode converts an HTTP response into a Result.
//
// A non-2xx status records an HTTP error but the body is still decoded, as
// GraphQL servers commonly send errors with 4xx and 5xx codes.
func Decode(resp *transport.Response) gql.Result {
	var result gql.Result
	if !resp.OK() {
		result.HTTPError = &gql.HTTPError{
			Status:     resp.StatusCode,
			StatusText: resp.StatusText,
		}
	}

	var probe any
	if err := json.Unmarshal(resp.Body, &probe); err != nil {
		result.ParseError = err.Error()
		return result
	}

	doc := gjson.ParseBytes(resp.Body)
	data := doc.Get("data")
	errs := doc.Get("errors")
	if !doc.IsObject() || (!data.Exists() && !errs.Exists()) {
		result.ParseError = MsgMalformedPayload
		return result
	}

	switch {
	case data.IsObject():
		if err := json.Unmarshal([]byte(data.Raw), &result.Data); err != nil {
			result.ParseError = err.Error()
			return result
		}
	case data.Exists() && data.Type != gjson.Null:
		result.ParseError = MsgMalformedPayload
	}
	if errs.IsArray() {
		if err := json.Unmarshal([]byte(errs.Raw), &result.GraphQLErrors); err != nil {
			result.ParseError = err.Error()
			return result
		}
	} else if errs.Exists() && errs.Type != gjson.Null {
		result.ParseError = MsgMalformedPayload
	}

	return result
}

// settle completes a dispatch. The cache write and in-flight delete happen
// in one critical section, before any observer is notified.
func (e *Engine) settle(h *Handle, result gql.Result, resp *transport.Response) {
	e.mu.Lock()
	e.cache[h.fingerprint] = result
	if e.inflight[h.fingerprint] == h {
		delete(e.inflight, h.fingerprint)
	}
	after := h.after
	h.after = nil
	e.mu.Unlock()

	// Resolution and post-load callbacks follow the cache listeners in the
	// emitter queue, even when another goroutine is delivering.
	e.emitter.EmitThen(EventCache, CacheEvent{
		Fingerprint: h.fingerprint,
		CacheValue:  result,
		Response:    resp,
	}, func() {
		h.resolve(result)
		for _, fn := range after {
			fn()
		}
	})
}
