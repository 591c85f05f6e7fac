package settle

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"crimson-casino/internal/hub"
	"crimson-casino/internal/ledger"
	"crimson-casino/internal/metrics"
	"crimson-casino/internal/outcome"
	"crimson-casino/internal/store"
)

var ErrBetNotPending = errors.New("bet_not_pending")

// OddsFunc returns the win multiplier (x100) for a bet; payout = stake * odds / 100.
type OddsFunc func(b store.Bet) int64

// Settler is the only component that moves bets out of pending. Every commit
// goes through the store's guarded terminal transition, so re-running any of
// these operations on an already-settled bet is a logged no-op, never a
// second payout.
type Settler struct {
	Store  store.Store
	Ledger *ledger.Ledger
	Events hub.Publisher
}

func New(st store.Store, led *ledger.Ledger, events hub.Publisher) *Settler {
	if events == nil {
		events = hub.NopPublisher{}
	}
	return &Settler{Store: st, Ledger: led, Events: events}
}

// SettleRound matches every pending bet against one outcome snapshot. Bets
// that fail to commit are left pending for the caller to retry; bets already
// terminal are skipped quietly.
func (s *Settler) SettleRound(ctx context.Context, round *store.Round, d outcome.Descriptor, odds OddsFunc) error {
	bets, err := s.Store.PendingBets(ctx, round.ID)
	if err != nil {
		return err
	}
	var errs []error
	for i := range bets {
		b := bets[i]
		status := store.BetLost
		payout := int64(0)
		if outcome.Wins(d, b.Selection, b.Side) {
			status = store.BetWon
			payout = b.StakeCC * odds(b) / 100
		}
		if err := s.commit(ctx, round.TableID, b, status, payout); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SettleCrash settles the bets still pending when a crash round busts: a bet
// whose auto-cashout threshold sits at or below the crash point won at that
// threshold, everything else rode too long and lost.
func (s *Settler) SettleCrash(ctx context.Context, round *store.Round, crashX100 int64) error {
	bets, err := s.Store.PendingBets(ctx, round.ID)
	if err != nil {
		return err
	}
	var errs []error
	for i := range bets {
		b := bets[i]
		status := store.BetLost
		payout := int64(0)
		if b.AutoCashout > 0 && b.AutoCashout <= crashX100 {
			status = store.BetWon
			payout = b.StakeCC * b.AutoCashout / 100
		}
		if err := s.commit(ctx, round.TableID, b, status, payout); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CashOut settles one bet at the multiplier it bailed at. Used for crash and
// tile games while the round is in flight; the pending guard makes racing
// cash-outs (manual vs auto, or a double click) first-wins.
func (s *Settler) CashOut(ctx context.Context, tableID string, b *store.Bet, multiplierX100 int64) (int64, error) {
	payout := b.StakeCC * multiplierX100 / 100
	ok, err := s.Store.SettleBet(ctx, b.ID, store.BetWon, payout, time.Now())
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrBetNotPending
	}
	b.Status = store.BetWon
	b.PayoutCC = &payout
	s.Events.Publish(hub.BetEvent(hub.EventBetUpdate, tableID, b))
	return payout, nil
}

// SettleJackpot pays the drawn winner the pot minus rake and settles everyone
// else as lost. The rake lands on the house account through the ledger.
//
// The prize rides on exactly one bet, the winner's earliest entry; further
// entries from the same account win with a zero payout. The designation works
// off the full bet list, not the pending set, so a retried sweep settles
// whatever is left without paying the pot a second time.
func (s *Settler) SettleJackpot(ctx context.Context, round *store.Round, winnerAccountID string, rakeBPS int64) error {
	bets, err := s.Store.RoundBets(ctx, round.ID)
	if err != nil {
		return err
	}
	rake := round.PotCC * rakeBPS / 10_000
	prize := round.PotCC - rake
	prizeBetID := ""
	for i := range bets {
		if bets[i].AccountID == winnerAccountID {
			prizeBetID = bets[i].ID
			break
		}
	}
	var errs []error
	for i := range bets {
		b := bets[i]
		if b.Status != store.BetPending {
			continue
		}
		status, payout := store.BetLost, int64(0)
		if b.AccountID == winnerAccountID {
			status = store.BetWon
			if b.ID == prizeBetID {
				payout = prize
			}
		}
		if err := s.commit(ctx, round.TableID, b, status, payout); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 && rake > 0 {
		if _, err := s.Ledger.CreditRake(ctx, round.ID, rake); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// VoidRound refunds every pending stake in full. The only settlement path
// that bypasses win/lose matching.
func (s *Settler) VoidRound(ctx context.Context, round *store.Round) error {
	bets, err := s.Store.PendingBets(ctx, round.ID)
	if err != nil {
		return err
	}
	var errs []error
	for i := range bets {
		if err := s.commit(ctx, round.TableID, bets[i], store.BetVoided, 0); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Settler) commit(ctx context.Context, tableID string, b store.Bet, status store.BetStatus, payout int64) error {
	ok, err := s.Store.SettleBet(ctx, b.ID, status, payout, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		// Settlement conflict: the bet reached a terminal status through
		// another path (e.g. a cash-out racing the crash sweep).
		log.Debug().Str("bet_id", b.ID).Str("status", string(b.Status)).Msg("skip settle of non-pending bet")
		return nil
	}
	b.Status = status
	if status == store.BetWon {
		b.PayoutCC = &payout
	}
	metrics.Settlements.WithLabelValues(string(status)).Inc()
	s.Events.Publish(hub.BetEvent(hub.EventBetUpdate, tableID, &b))
	return nil
}
