package ledger

import (
	"context"

	"crimson-casino/internal/store"
)

// HouseAccount collects rake from pooled games.
const HouseAccount = "house"

// Ledger is the account-facing authority for funds outside the bet
// transaction path. Bet debits and settlement credits run inside the store's
// atomic operations; everything else moves through here so each mutation lands
// as an append-only ledger entry.
type Ledger struct {
	Store store.Store
}

func New(s store.Store) *Ledger {
	return &Ledger{Store: s}
}

func (l *Ledger) Topup(ctx context.Context, accountID string, amount int64) (int64, error) {
	return l.Store.Credit(ctx, accountID, amount, store.EntryTopupCredit, "topup", store.NewID())
}

// CreditRake moves the house cut of a jackpot pot to the house account.
func (l *Ledger) CreditRake(ctx context.Context, roundID string, amount int64) (int64, error) {
	if err := l.Store.EnsureAccount(ctx, HouseAccount, 0); err != nil {
		return 0, err
	}
	return l.Store.Credit(ctx, HouseAccount, amount, store.EntryJackpotCredit, "round", roundID)
}

func (l *Ledger) Balance(ctx context.Context, accountID string) (*store.Account, error) {
	return l.Store.GetAccount(ctx, accountID)
}

func (l *Ledger) History(ctx context.Context, accountID string, limit int) ([]store.LedgerEntry, error) {
	return l.Store.ListLedger(ctx, accountID, limit)
}
