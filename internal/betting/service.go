package betting

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"crimson-casino/internal/config"
	"crimson-casino/internal/hub"
	"crimson-casino/internal/metrics"
	"crimson-casino/internal/outcome"
	"crimson-casino/internal/settle"
	"crimson-casino/internal/store"
)

// MultiplierSource exposes the live multiplier of an in-flight round. The
// engine implements it; a cash-out is only available while the source reports
// one for the table.
type MultiplierSource interface {
	CurrentMultiplier(tableID string) (int64, bool)
}

// PlaceBetRequest is the validated intake for one bet. Stake is cents,
// auto-cashout is a multiplier x100 (0 means none).
type PlaceBetRequest struct {
	TableID         string
	AccountID       string
	Selection       string
	Side            store.BetSide
	StakeCC         int64
	AutoCashoutX100 int64
}

// Service guards every path that moves player money into a round. Validation
// happens here; the atomic funds-and-insert unit lives in the store so a
// passing check can still lose the race and come back as a typed rejection.
type Service struct {
	Store      store.Store
	Settler    *settle.Settler
	Events     hub.Publisher
	Multiplier MultiplierSource

	tables    map[string]config.TableConfig
	initialCC int64
	now       func() time.Time
}

// NewService wires the bet intake. initialCC is the opening balance granted
// when an account places its first bet; accounts are self-serve.
func NewService(st store.Store, settler *settle.Settler, events hub.Publisher, tables []config.TableConfig, initialCC int64) *Service {
	if events == nil {
		events = hub.NopPublisher{}
	}
	byID := make(map[string]config.TableConfig, len(tables))
	for _, t := range tables {
		byID[t.ID] = t
	}
	return &Service{
		Store:     st,
		Settler:   settler,
		Events:    events,
		tables:    byID,
		initialCC: initialCC,
		now:       time.Now,
	}
}

func (s *Service) Table(id string) (config.TableConfig, bool) {
	t, ok := s.tables[id]
	return t, ok
}

// PlaceBet validates the request against the table rules, then hands the
// store one atomic unit: re-check the round is open, debit or lock the stake,
// insert the bet and bump the pot. Either all of it lands or none of it does.
func (s *Service) PlaceBet(ctx context.Context, req PlaceBetRequest) (*store.Bet, error) {
	tbl, ok := s.tables[req.TableID]
	if !ok {
		return nil, s.reject(req.TableID, ErrTableNotFound)
	}
	if req.Side == "" {
		req.Side = store.SideBack
	}
	if req.Side == store.SideLay && !tbl.AllowLay {
		return nil, s.reject(req.TableID, ErrLayNotAllowed)
	}
	req.Selection = outcome.Normalize(req.Selection)
	if req.Selection == "" && !stakeRides(tbl.Game) {
		return nil, s.reject(req.TableID, ErrInvalidSelection)
	}
	if req.StakeCC < tbl.MinBetCC {
		return nil, s.reject(req.TableID, ErrBelowMinimum)
	}
	if req.StakeCC > tbl.MaxBetCC {
		return nil, s.reject(req.TableID, ErrAboveMaximum)
	}

	if err := s.Store.EnsureAccount(ctx, req.AccountID, s.initialCC); err != nil {
		return nil, err
	}

	round, err := s.Store.CurrentRound(ctx, req.TableID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, s.reject(req.TableID, ErrRoundNotOpen)
		}
		return nil, err
	}
	if round.Phase != store.PhaseOpen {
		return nil, s.reject(req.TableID, ErrRoundNotOpen)
	}

	bet, err := s.Store.PlaceBet(ctx, store.PlaceBetParams{
		RoundID:     round.ID,
		AccountID:   req.AccountID,
		Selection:   req.Selection,
		Side:        req.Side,
		StakeCC:     req.StakeCC,
		AutoCashout: req.AutoCashoutX100,
		LockStake:   stakeRides(tbl.Game),
		SingleBet:   tbl.SingleBet,
		Now:         s.now(),
	})
	if err != nil {
		return nil, s.reject(req.TableID, mapStoreErr(err))
	}

	metrics.BetsPlaced.WithLabelValues(req.TableID).Inc()
	log.Info().
		Str("table_id", req.TableID).
		Str("round_id", round.ID).
		Str("account_id", req.AccountID).
		Str("selection", bet.Selection).
		Str("side", string(bet.Side)).
		Int64("stake_cc", bet.StakeCC).
		Msg("bet placed")

	s.Events.Publish(hub.NewEvent(hub.EventPlayerAction, req.TableID, round.ID, hub.BetPayload{
		BetID:     bet.ID,
		AccountID: bet.AccountID,
		Selection: bet.Selection,
		Side:      bet.Side,
		StakeCC:   bet.StakeCC,
		Status:    bet.Status,
	}))
	s.Events.Publish(hub.BetEvent(hub.EventBetUpdate, req.TableID, bet))
	return bet, nil
}

// CashOut bails a riding stake out of an in-flight round at the current
// multiplier. First terminal transition wins: if the round busts (or an
// auto-cashout fires) before this commits, the store's pending guard turns
// it into ErrCashoutUnavailable instead of a second payout.
func (s *Service) CashOut(ctx context.Context, accountID, betID string) (int64, error) {
	bet, err := s.Store.GetBet(ctx, betID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, ErrBetNotFound
		}
		return 0, err
	}
	if bet.AccountID != accountID {
		return 0, ErrBetNotFound
	}
	if bet.Status != store.BetPending || !bet.LockedStake {
		return 0, ErrCashoutUnavailable
	}

	round, err := s.Store.GetRound(ctx, bet.RoundID)
	if err != nil {
		return 0, err
	}
	if s.Multiplier == nil {
		return 0, ErrCashoutUnavailable
	}
	mult, live := s.Multiplier.CurrentMultiplier(round.TableID)
	if !live {
		return 0, ErrCashoutUnavailable
	}

	payout, err := s.Settler.CashOut(ctx, round.TableID, bet, mult)
	if err != nil {
		if errors.Is(err, settle.ErrBetNotPending) {
			return 0, ErrCashoutUnavailable
		}
		return 0, err
	}
	metrics.CashOuts.Inc()
	log.Info().
		Str("table_id", round.TableID).
		Str("bet_id", betID).
		Int64("multiplier_x100", mult).
		Int64("payout_cc", payout).
		Msg("cash out")
	return payout, nil
}

// stakeRides reports whether the game keeps the stake locked and in play
// after the round locks, instead of debiting it outright.
func stakeRides(g store.GameKind) bool {
	return g == store.GameCrash || g == store.GameTiles
}

func (s *Service) reject(tableID string, err error) error {
	metrics.BetsRejected.WithLabelValues(err.Error()).Inc()
	log.Debug().Str("table_id", tableID).Str("reason", err.Error()).Msg("bet rejected")
	return err
}

func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, store.ErrRoundNotOpen):
		return ErrRoundNotOpen
	case errors.Is(err, store.ErrRoundClosing):
		return ErrRoundClosingRace
	case errors.Is(err, store.ErrInsufficientBalance):
		return ErrInsufficientBalance
	case errors.Is(err, store.ErrDuplicateBet):
		return ErrDuplicateBet
	case errors.Is(err, store.ErrNotFound):
		return ErrAccountNotFound
	default:
		return err
	}
}
