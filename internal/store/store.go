package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound            = errors.New("not_found")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrActiveRoundExists   = errors.New("active_round_exists")
	ErrRoundNotOpen        = errors.New("round_not_open")
	ErrRoundClosing        = errors.New("round_closing")
	ErrDuplicateBet        = errors.New("duplicate_bet")
)

// Ledger entry types. Every balance mutation writes exactly one entry.
const (
	EntryBetDebit      = "bet_debit"
	EntryStakeLock     = "stake_lock"
	EntryStakeForfeit  = "stake_forfeit"
	EntryPayoutCredit  = "payout_credit"
	EntryRefundCredit  = "refund_credit"
	EntryJackpotCredit = "jackpot_credit"
	EntryTopupCredit   = "topup_credit"
)

// PlaceBetParams is the single unit of work for bet placement: the round check,
// the funds reservation and the bet insert commit or fail together.
type PlaceBetParams struct {
	RoundID     string
	AccountID   string
	Selection   string
	Side        BetSide
	StakeCC     int64
	AutoCashout int64
	LockStake   bool
	SingleBet   bool
	Now         time.Time
}

// Store is the persistence contract for the round engine. Postgres backs it in
// production; Memory backs tests and local runs without a database.
type Store interface {
	Ping(ctx context.Context) error

	EnsureTable(ctx context.Context, t Table) error
	GetTable(ctx context.Context, id string) (*Table, error)
	ListTables(ctx context.Context) ([]Table, error)

	EnsureAccount(ctx context.Context, accountID string, initialCC int64) error
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	Credit(ctx context.Context, accountID string, amountCC int64, entryType, refType, refID string) (int64, error)
	Debit(ctx context.Context, accountID string, amountCC int64, entryType, refType, refID string) (int64, error)
	ListLedger(ctx context.Context, accountID string, limit int) ([]LedgerEntry, error)
	Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error)

	// CreateRound fails with ErrActiveRoundExists while the table still has a
	// round in a non-terminal phase.
	CreateRound(ctx context.Context, r *Round) error
	GetRound(ctx context.Context, id string) (*Round, error)
	CurrentRound(ctx context.Context, tableID string) (*Round, error)
	ListRounds(ctx context.Context, tableID string, limit int) ([]Round, error)

	// Phase transitions are compare-and-swap on the current phase; a false
	// return means the round was already past the expected phase.
	OpenRound(ctx context.Context, roundID string, openedAt, closeAt time.Time) (bool, error)
	LockRound(ctx context.Context, roundID string) (bool, error)
	CompleteRound(ctx context.Context, roundID, outcome, seed string, resolvedAt time.Time) (bool, error)
	VoidRound(ctx context.Context, roundID string, resolvedAt time.Time) (bool, error)

	PlaceBet(ctx context.Context, p PlaceBetParams) (*Bet, error)
	GetBet(ctx context.Context, id string) (*Bet, error)
	PendingBets(ctx context.Context, roundID string) ([]Bet, error)
	RoundBets(ctx context.Context, roundID string) ([]Bet, error)

	// SettleBet moves a pending bet to a terminal status and applies the
	// matching balance mutations in the same transaction. Returns false when
	// the bet is already terminal; the caller treats that as a no-op.
	SettleBet(ctx context.Context, betID string, status BetStatus, payoutCC int64, settledAt time.Time) (bool, error)
}
