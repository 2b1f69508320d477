// Package provider carries the engine and render metadata through a
// context.Context so subscribers can find them without globals.
package provider

import (
	"context"
	"time"

	"github.com/roach88/gqlcache/internal/engine"
)

type contextKey int

const (
	engineKey contextKey = iota
	firstRenderKey
	serverSideKey
)

// WithEngine returns a context carrying eng.
func WithEngine(ctx context.Context, eng *engine.Engine) context.Context {
	return context.WithValue(ctx, engineKey, eng)
}

// EngineFrom returns the engine installed by WithEngine.
func EngineFrom(ctx context.Context) (*engine.Engine, bool) {
	eng, ok := ctx.Value(engineKey).(*engine.Engine)
	return eng, ok && eng != nil
}

// WithFirstRender records when the first client render happened. Subscribers
// mounting within the hydration window of it reuse hydrated cache values.
func WithFirstRender(ctx context.Context, at time.Time) context.Context {
	return context.WithValue(ctx, firstRenderKey, at)
}

// FirstRenderFrom returns the first-render timestamp, if one was recorded.
func FirstRenderFrom(ctx context.Context) (time.Time, bool) {
	at, ok := ctx.Value(firstRenderKey).(time.Time)
	return at, ok
}

// WithServerSide marks ctx as a server render.
func WithServerSide(ctx context.Context) context.Context {
	return context.WithValue(ctx, serverSideKey, true)
}

// IsServerSide reports whether ctx belongs to a server render.
func IsServerSide(ctx context.Context) bool {
	v, _ := ctx.Value(serverSideKey).(bool)
	return v
}

// Provide installs eng and records now as the first-render timestamp.
func Provide(ctx context.Context, eng *engine.Engine, now time.Time) context.Context {
	return WithFirstRender(WithEngine(ctx, eng), now)
}
