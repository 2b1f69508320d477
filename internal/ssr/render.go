// Package ssr implements the server render loop: render, wait for the
// operations the render started, render again, until a pass starts none.
package ssr

import (
	"context"
	"fmt"

	"github.com/apex/log"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/gqlcache/internal/engine"
	"github.com/roach88/gqlcache/internal/provider"
)

// RenderFunc renders node to a string. It must be synchronous: any
// operation it needs is started through the engine found in ctx.
type RenderFunc[N any] func(ctx context.Context, node N) (string, error)

// Stats describes a finished render loop.
type Stats struct {
	// Passes is the number of times the render function ran.
	Passes int

	// Awaited is the number of dispatches the passes started.
	Awaited int
}

// Render runs fn until a pass starts no operation and returns the
// output of that pass. The cache of eng then holds everything the output
// depends on and can be exported for hydration.
func Render[N any](ctx context.Context, eng *engine.Engine, node N, fn RenderFunc[N]) (string, error) {
	out, _, err := RenderWithStats(ctx, eng, node, fn)
	return out, err
}

// RenderWithStats is Render, also reporting loop statistics.
//
// A pass is final when it starts no dispatch and nothing is in flight.
// Dispatches are counted rather than observed in flight, since a fast fetch
// may settle before the pass returns. The loop terminates because every
// awaited result stays cached for the next pass. An error from fn or a done
// ctx aborts it.
func RenderWithStats[N any](ctx context.Context, eng *engine.Engine, node N, fn RenderFunc[N]) (string, Stats, error) {
	ctx = provider.WithServerSide(provider.WithEngine(ctx, eng))

	var stats Stats
	for {
		stats.Passes++
		before := eng.Dispatches()
		out, err := fn(ctx, node)
		if err != nil {
			return "", stats, fmt.Errorf("render pass %d: %w", stats.Passes, err)
		}

		started := int(eng.Dispatches() - before)
		pending := eng.InFlight()
		if started == 0 && len(pending) == 0 {
			log.WithFields(log.Fields{
				"passes":  stats.Passes,
				"awaited": stats.Awaited,
			}).Debug("render settled")
			return out, stats, nil
		}

		stats.Awaited += started
		log.WithFields(log.Fields{
			"pass":     stats.Passes,
			"started":  started,
			"inflight": len(pending),
		}).Debug("awaiting operations")

		g, gctx := errgroup.WithContext(ctx)
		for _, h := range pending {
			h := h
			g.Go(func() error {
				_, err := h.Wait(gctx)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return "", stats, fmt.Errorf("await pass %d: %w", stats.Passes, err)
		}
	}
}
