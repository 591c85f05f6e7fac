package public

import (
	"context"
	"errors"

	"crimson-casino/internal/config"
	"crimson-casino/internal/store"
)

const (
	leaderboardMaxRows = 100
	roundsMaxRows      = 200
)

// Service answers read-only queries: table listings, round state, fairness
// proofs, balances. It never moves money or transitions rounds.
type Service struct {
	store  store.Store
	tables []config.TableConfig
}

func NewService(st store.Store, tables []config.TableConfig) *Service {
	return &Service{store: st, tables: tables}
}

func (s *Service) Tables(context.Context) *TablesResponse {
	out := make([]TableItem, 0, len(s.tables))
	for _, t := range s.tables {
		out = append(out, TableItem{
			ID:              t.ID,
			Name:            t.Name,
			Game:            t.Game,
			MinBetCC:        t.MinBetCC,
			MaxBetCC:        t.MaxBetCC,
			AllowLay:        t.AllowLay,
			SingleBet:       t.SingleBet,
			BettingWindowMS: t.BettingWindowMS,
		})
	}
	return &TablesResponse{Items: out}
}

// RoundState returns the table's current non-terminal round, or its most
// recent finished round when nothing is in flight.
func (s *Service) RoundState(ctx context.Context, tableID string) (*RoundItem, error) {
	if tableID == "" {
		return nil, ErrInvalidRequest
	}
	round, err := s.store.CurrentRound(ctx, tableID)
	if errors.Is(err, store.ErrNotFound) {
		rounds, lerr := s.store.ListRounds(ctx, tableID, 1)
		if lerr != nil {
			return nil, lerr
		}
		if len(rounds) == 0 {
			return nil, ErrNotFound
		}
		round = &rounds[0]
	} else if err != nil {
		return nil, err
	}
	item := roundItem(round)
	return &item, nil
}

func (s *Service) RecentRounds(ctx context.Context, tableID string, limit int) (*RoundsResponse, error) {
	if tableID == "" {
		return nil, ErrInvalidRequest
	}
	if limit < 1 || limit > roundsMaxRows {
		limit = 50
	}
	rounds, err := s.store.ListRounds(ctx, tableID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]RoundItem, 0, len(rounds))
	for i := range rounds {
		out = append(out, roundItem(&rounds[i]))
	}
	return &RoundsResponse{Items: out, Limit: limit}, nil
}

// Proof exposes the fairness data of a round: the commitment published at
// open and, once the round is terminal, the revealed seed. Verifying
// sha256(seed) against the commitment is the client's side of the bargain.
func (s *Service) Proof(ctx context.Context, roundID string) (*ProofResponse, error) {
	if roundID == "" {
		return nil, ErrInvalidRequest
	}
	round, err := s.store.GetRound(ctx, roundID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	resp := &ProofResponse{
		RoundID:    round.ID,
		Commitment: round.Commitment,
		ResolvedAt: round.ResolvedAt,
	}
	if round.Phase.Terminal() {
		resp.Seed = round.Seed
		if round.Outcome != nil {
			resp.Outcome = *round.Outcome
		}
	}
	return resp, nil
}

func (s *Service) Balance(ctx context.Context, accountID string) (*BalanceResponse, error) {
	if accountID == "" {
		return nil, ErrInvalidRequest
	}
	acct, err := s.store.GetAccount(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &BalanceResponse{
		AccountID:   acct.ID,
		AvailableCC: acct.AvailableCC,
		LockedCC:    acct.LockedCC,
		UpdatedAt:   acct.UpdatedAt,
	}, nil
}

func (s *Service) Ledger(ctx context.Context, accountID string, limit int) (*LedgerResponse, error) {
	if accountID == "" {
		return nil, ErrInvalidRequest
	}
	if limit < 1 || limit > 500 {
		limit = 50
	}
	entries, err := s.store.ListLedger(ctx, accountID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]LedgerItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, LedgerItem{
			ID:        e.ID,
			AccountID: e.AccountID,
			Type:      e.Type,
			AmountCC:  e.AmountCC,
			RefType:   e.RefType,
			RefID:     e.RefID,
			CreatedAt: e.CreatedAt,
		})
	}
	return &LedgerResponse{Items: out, Limit: limit}, nil
}

func (s *Service) Leaderboard(ctx context.Context, limit int) (*LeaderboardResponse, error) {
	if limit < 1 || limit > leaderboardMaxRows {
		limit = leaderboardMaxRows
	}
	entries, err := s.store.Leaderboard(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]LeaderboardItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, LeaderboardItem{AccountID: e.AccountID, NetCC: e.NetCC})
	}
	return &LeaderboardResponse{Items: out}, nil
}

// roundItem hides the seed while the round is still in flight. The
// commitment is public the whole time; the reveal only happens at the end.
func roundItem(r *store.Round) RoundItem {
	item := RoundItem{
		ID:           r.ID,
		TableID:      r.TableID,
		Game:         r.Game,
		Seq:          r.Seq,
		Phase:        r.Phase,
		OpenedAt:     r.OpenedAt,
		CloseAt:      r.CloseAt,
		ResolvedAt:   r.ResolvedAt,
		PotCC:        r.PotCC,
		Participants: r.Participants,
		Commitment:   r.Commitment,
	}
	if r.Phase.Terminal() {
		item.Seed = r.Seed
		if r.Outcome != nil {
			item.Outcome = *r.Outcome
		}
	}
	return item
}
