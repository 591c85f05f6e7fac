package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"crimson-casino/internal/config"
	"crimson-casino/internal/hub"
	"crimson-casino/internal/metrics"
	"crimson-casino/internal/outcome"
	"crimson-casino/internal/settle"
	"crimson-casino/internal/store"
)

// Options tunes the runner loop. Zero values fall back to production
// defaults; tests shrink them to keep rounds sub-second.
type Options struct {
	ResolveTimeout     time.Duration
	ResolveBackoff     time.Duration
	MaxResolveAttempts int
	Tick               time.Duration
}

func (o Options) withDefaults() Options {
	if o.ResolveTimeout <= 0 {
		o.ResolveTimeout = 10 * time.Second
	}
	if o.ResolveBackoff <= 0 {
		o.ResolveBackoff = 2 * time.Second
	}
	if o.MaxResolveAttempts <= 0 {
		o.MaxResolveAttempts = 5
	}
	if o.Tick <= 0 {
		o.Tick = 100 * time.Millisecond
	}
	return o
}

// Runner drives one table through its round lifecycle: create, open the
// betting window, lock at close time, resolve and settle, then cool down and
// go again. Every phase transition is a compare-and-swap in the store, so a
// crashed runner can restart mid-round and pick up where the old one stopped.
type Runner struct {
	table   config.TableConfig
	store   store.Store
	fair    *outcome.Fairness
	gen     *outcome.Generator
	settler *settle.Settler
	events  hub.Publisher
	results *Results
	mults   *Multipliers
	opts    Options

	now func() time.Time
}

func NewRunner(t config.TableConfig, st store.Store, fair *outcome.Fairness, settler *settle.Settler, events hub.Publisher, results *Results, mults *Multipliers, opts Options) *Runner {
	if events == nil {
		events = hub.NopPublisher{}
	}
	return &Runner{
		table:   t,
		store:   st,
		fair:    fair,
		gen:     outcome.NewGenerator(fair),
		settler: settler,
		events:  events,
		results: results,
		mults:   mults,
		opts:    opts.withDefaults(),
		now:     time.Now,
	}
}

// Run loops rounds until the context ends.
func (r *Runner) Run(ctx context.Context) error {
	for {
		if err := r.runRound(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Str("table_id", r.table.ID).Msg("round failed")
		}
		if err := sleepCtx(ctx, r.table.Cooldown()); err != nil {
			return err
		}
	}
}

// RunOnce drives a single round through to a terminal phase.
func (r *Runner) RunOnce(ctx context.Context) error {
	return r.runRound(ctx)
}

func (r *Runner) runRound(ctx context.Context) error {
	round, err := r.adoptOrCreate(ctx)
	if err != nil {
		return err
	}

	if round.Phase == store.PhaseScheduled {
		now := r.now()
		if _, err := r.store.OpenRound(ctx, round.ID, now, now.Add(r.table.BettingWindow())); err != nil {
			return err
		}
		if r.table.FeedKey != "" {
			// Anything the feed delivered before this round is stale.
			r.results.Drain(r.table.FeedKey)
		}
		round, err = r.store.GetRound(ctx, round.ID)
		if err != nil {
			return err
		}
		metrics.RoundsStarted.WithLabelValues(r.table.ID).Inc()
		log.Info().Str("table_id", r.table.ID).Str("round_id", round.ID).Int64("seq", round.Seq).Msg("round open")
		r.events.Publish(hub.RoundEvent(hub.EventRoundUpdate, round))
	}

	if round.Phase == store.PhaseOpen {
		if err := sleepCtx(ctx, round.CloseAt.Sub(r.now())); err != nil {
			return err
		}
		if _, err := r.store.LockRound(ctx, round.ID); err != nil {
			return err
		}
		round, err = r.store.GetRound(ctx, round.ID)
		if err != nil {
			return err
		}
		log.Info().Str("table_id", r.table.ID).Str("round_id", round.ID).
			Int64("pot_cc", round.PotCC).Int("participants", round.Participants).Msg("round locked")
		r.events.Publish(hub.RoundEvent(hub.EventRoundUpdate, round))
	}

	if round.Phase == store.PhaseLocked {
		return r.resolve(ctx, round)
	}
	return nil
}

// adoptOrCreate starts a fresh round, or picks up the one a previous run left
// in a non-terminal phase.
func (r *Runner) adoptOrCreate(ctx context.Context) (*store.Round, error) {
	id := store.NewID()
	round := &store.Round{
		ID:         id,
		TableID:    r.table.ID,
		Game:       r.table.Game,
		Commitment: r.fair.Commitment(id),
	}
	err := r.store.CreateRound(ctx, round)
	if err == nil {
		return round, nil
	}
	if !errors.Is(err, store.ErrActiveRoundExists) {
		return nil, err
	}
	existing, err := r.store.CurrentRound(ctx, r.table.ID)
	if err != nil {
		return nil, err
	}
	log.Warn().Str("table_id", r.table.ID).Str("round_id", existing.ID).
		Str("phase", string(existing.Phase)).Msg("adopting in-flight round")
	return existing, nil
}

func (r *Runner) resolve(ctx context.Context, round *store.Round) error {
	switch r.table.Game {
	case store.GameColor:
		d := r.gen.Color(round.ID)
		if err := r.settler.SettleRound(ctx, round, d, r.tableOdds); err != nil {
			return err
		}
		return r.complete(ctx, round, d.Encode())

	case store.GameCrash:
		return r.resolveCrash(ctx, round)

	case store.GameTiles:
		return r.resolveTiles(ctx, round)

	case store.GameJackpot:
		return r.resolveJackpot(ctx, round)

	case store.GameLive:
		return r.resolveFromFeed(ctx, round)

	default:
		return fmt.Errorf("table %s: no resolver for game %q", r.table.ID, r.table.Game)
	}
}

// resolveCrash plays out the multiplier ramp. The crash point is fixed by the
// round seed before launch; the ramp only exists so cash-outs have a live
// multiplier to bail at. Bets still pending at the bust settle against their
// auto-cashout threshold.
func (r *Runner) resolveCrash(ctx context.Context, round *store.Round) error {
	crash := r.gen.Crash(round.ID, r.table.EdgeBPS)
	defer r.mults.Clear(r.table.ID)

	cur := int64(100)
	for cur < crash {
		r.mults.Set(r.table.ID, cur)
		r.publishMultiplier(round, cur)
		if err := sleepCtx(ctx, r.opts.Tick); err != nil {
			return err
		}
		step := cur * 3 / 100
		if step < 1 {
			step = 1
		}
		cur += step
	}
	r.mults.Clear(r.table.ID)

	if err := r.settler.SettleCrash(ctx, round, crash); err != nil {
		return err
	}
	return r.complete(ctx, round, formatX100(crash))
}

// resolveTiles reveals tiles one step at a time. Each survived step compounds
// the multiplier by the inverse of the survival odds; the drawn bust step ends
// the run, and only stakes bailed out before it pay.
func (r *Runner) resolveTiles(ctx context.Context, round *store.Round) error {
	survival := r.table.SurvivalBPS
	if survival <= 0 || survival >= 10_000 {
		survival = 7_000
	}
	bustStep := r.gen.TilesBustStep(round.ID, survival)
	defer r.mults.Clear(r.table.ID)

	cur := int64(100)
	for step := 1; step < bustStep; step++ {
		cur = cur * 10_000 / survival
		r.mults.Set(r.table.ID, cur)
		r.publishMultiplier(round, cur)
		if err := sleepCtx(ctx, r.opts.Tick); err != nil {
			return err
		}
	}
	r.mults.Clear(r.table.ID)

	if err := r.settler.SettleCrash(ctx, round, cur); err != nil {
		return err
	}
	return r.complete(ctx, round, fmt.Sprintf("bust at step %d (%s)", bustStep, formatX100(cur)))
}

func (r *Runner) resolveJackpot(ctx context.Context, round *store.Round) error {
	bets, err := r.store.PendingBets(ctx, round.ID)
	if err != nil {
		return err
	}
	entries := make([]outcome.JackpotEntry, 0, len(bets))
	for _, b := range bets {
		entries = append(entries, outcome.JackpotEntry{AccountID: b.AccountID, StakeCC: b.StakeCC})
	}
	winner, ok := r.gen.JackpotWinner(round.ID, entries)
	if !ok {
		return r.complete(ctx, round, "no entries")
	}
	if err := r.settler.SettleJackpot(ctx, round, winner, r.table.RakeBPS); err != nil {
		return err
	}
	return r.complete(ctx, round, winner)
}

// resolveFromFeed waits for the external outcome, retrying with backoff. A
// feed that stays silent through every attempt voids the round and refunds
// all stakes.
func (r *Runner) resolveFromFeed(ctx context.Context, round *store.Round) error {
	raw, err := r.awaitFeed(ctx, round)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		log.Warn().Err(err).Str("table_id", r.table.ID).Str("round_id", round.ID).Msg("feed outcome unavailable, voiding round")
		return r.void(ctx, round)
	}
	d := outcome.Parse(raw)
	if d.Empty() {
		log.Warn().Str("table_id", r.table.ID).Str("round_id", round.ID).Str("raw", raw).Msg("unusable feed outcome, voiding round")
		return r.void(ctx, round)
	}
	if err := r.settler.SettleRound(ctx, round, d, r.tableOdds); err != nil {
		return err
	}
	return r.complete(ctx, round, d.Raw)
}

func (r *Runner) awaitFeed(ctx context.Context, round *store.Round) (string, error) {
	for attempt := 1; ; attempt++ {
		raw, err := r.results.Await(ctx, r.table.FeedKey, r.opts.ResolveTimeout)
		if err == nil {
			return raw, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if attempt >= r.opts.MaxResolveAttempts {
			return "", err
		}
		metrics.ResolveRetries.WithLabelValues(r.table.ID).Inc()
		log.Warn().Str("table_id", r.table.ID).Str("round_id", round.ID).
			Int("attempt", attempt).Msg("outcome feed timeout, retrying")
		if err := sleepCtx(ctx, r.opts.ResolveBackoff<<(attempt-1)); err != nil {
			return "", err
		}
	}
}

func (r *Runner) complete(ctx context.Context, round *store.Round, out string) error {
	seed := r.fair.Seed(round.ID)
	ok, err := r.store.CompleteRound(ctx, round.ID, out, seed, r.now())
	if err != nil {
		return err
	}
	if !ok {
		log.Warn().Str("round_id", round.ID).Msg("round already terminal, skipping complete")
		return nil
	}
	round, err = r.store.GetRound(ctx, round.ID)
	if err != nil {
		return err
	}
	metrics.RoundsCompleted.WithLabelValues(r.table.ID).Inc()
	log.Info().Str("table_id", r.table.ID).Str("round_id", round.ID).Str("outcome", out).Msg("round completed")
	r.events.Publish(hub.RoundEvent(hub.EventResult, round))
	r.events.Publish(hub.RoundEvent(hub.EventRoundUpdate, round))
	return nil
}

func (r *Runner) void(ctx context.Context, round *store.Round) error {
	// Refund before the terminal flip, same order as settle-then-complete.
	// A sweep that fails partway leaves the round locked, so the next pass
	// adopts it and retries the remaining refunds.
	if err := r.settler.VoidRound(ctx, round); err != nil {
		return err
	}
	ok, err := r.store.VoidRound(ctx, round.ID, r.now())
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	round, err = r.store.GetRound(ctx, round.ID)
	if err != nil {
		return err
	}
	metrics.RoundsVoided.WithLabelValues(r.table.ID).Inc()
	log.Info().Str("table_id", r.table.ID).Str("round_id", round.ID).Msg("round voided, stakes refunded")
	r.events.Publish(hub.RoundEvent(hub.EventRoundUpdate, round))
	return nil
}

func (r *Runner) publishMultiplier(round *store.Round, x100 int64) {
	r.events.Publish(hub.NewEvent(hub.EventRoundUpdate, r.table.ID, round.ID, hub.RoundPayload{
		Phase:      store.PhaseLocked,
		Seq:        round.Seq,
		Multiplier: x100,
	}))
}

func (r *Runner) tableOdds(b store.Bet) int64 {
	return r.table.OddsFor(b.Selection, b.Side)
}

func formatX100(x int64) string {
	return fmt.Sprintf("%d.%02dx", x/100, x%100)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
