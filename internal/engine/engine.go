package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"crimson-casino/internal/config"
	"crimson-casino/internal/hub"
	"crimson-casino/internal/outcome"
	"crimson-casino/internal/settle"
	"crimson-casino/internal/store"
)

// Engine runs one Runner per configured table. It is also the live
// multiplier source for the bet service and the delivery target for the
// outcome feed consumer.
type Engine struct {
	runners []*Runner
	mults   *Multipliers
	results *Results
}

func New(st store.Store, fair *outcome.Fairness, settler *settle.Settler, events hub.Publisher, tables []config.TableConfig, opts Options) *Engine {
	e := &Engine{
		mults:   NewMultipliers(),
		results: NewResults(),
	}
	for _, t := range tables {
		e.runners = append(e.runners, NewRunner(t, st, fair, settler, events, e.results, e.mults, opts))
	}
	return e
}

// Run blocks until the context ends or a runner fails.
func (e *Engine) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, r := range e.runners {
		r := r
		g.Go(func() error { return r.Run(ctx) })
	}
	return g.Wait()
}

func (e *Engine) CurrentMultiplier(tableID string) (int64, bool) {
	return e.mults.CurrentMultiplier(tableID)
}

// Deliver hands an external outcome descriptor to the runner waiting on the
// feed key.
func (e *Engine) Deliver(feedKey, raw string) {
	e.results.Deliver(feedKey, raw)
}
