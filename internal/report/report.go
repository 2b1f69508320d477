// Package report logs failed operation results as they settle.
package report

import (
	"github.com/apex/log"

	"github.com/roach88/gqlcache/internal/engine"
	"github.com/roach88/gqlcache/internal/gql"
)

// Attach logs every settled result of eng that carries errors, one entry
// per error line. A nil logger means the apex/log default. The returned
// func detaches the sink.
func Attach(eng *engine.Engine, logger log.Interface) (detach func()) {
	if logger == nil {
		logger = log.Log
	}
	id := eng.On(engine.EventCache, func(payload any) {
		ev, ok := payload.(engine.CacheEvent)
		if !ok || !ev.CacheValue.HasErrors() {
			return
		}
		fields := log.Fields{"fingerprint": ev.Fingerprint}
		if ev.Response != nil {
			fields["status"] = ev.Response.StatusCode
		}
		entry := logger.WithFields(fields)
		for _, line := range Summarize(ev.CacheValue) {
			entry.Error(line)
		}
	})
	return func() { eng.Off(engine.EventCache, id) }
}

// Summarize returns one line per error in r, or nil for a clean result.
func Summarize(r gql.Result) []string {
	if !r.HasErrors() {
		return nil
	}
	return r.ErrorLines()
}
