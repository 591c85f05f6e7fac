package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Postgres implements Store over a single *sql.DB. Row-level locks serialize
// balance mutations per account and bet placement per round; unrelated rows
// never contend.
type Postgres struct {
	DB *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &Postgres{DB: db}, nil
}

func (s *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.DB.PingContext(ctx)
}

// EnsureSchema creates the engine tables when missing. The partial unique
// index on rounds backs the one-active-round-per-table invariant at the data
// layer, independent of the insert guard.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tables (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			game TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			min_bet_cc BIGINT NOT NULL,
			max_bet_cc BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS accounts (
			id TEXT PRIMARY KEY,
			available_cc BIGINT NOT NULL CHECK (available_cc >= 0),
			locked_cc BIGINT NOT NULL DEFAULT 0 CHECK (locked_cc >= 0),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS rounds (
			id TEXT PRIMARY KEY,
			table_id TEXT NOT NULL REFERENCES tables(id),
			game TEXT NOT NULL,
			seq BIGINT NOT NULL,
			phase TEXT NOT NULL,
			commitment TEXT NOT NULL DEFAULT '',
			seed TEXT NOT NULL DEFAULT '',
			outcome TEXT,
			opened_at TIMESTAMPTZ,
			close_at TIMESTAMPTZ,
			resolved_at TIMESTAMPTZ,
			pot_cc BIGINT NOT NULL DEFAULT 0,
			participants INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS rounds_one_active_per_table
			ON rounds (table_id) WHERE phase NOT IN ('completed','voided')`,
		`CREATE INDEX IF NOT EXISTS rounds_table_seq ON rounds (table_id, seq DESC)`,
		`CREATE TABLE IF NOT EXISTS bets (
			id TEXT PRIMARY KEY,
			round_id TEXT NOT NULL REFERENCES rounds(id),
			account_id TEXT NOT NULL REFERENCES accounts(id),
			selection TEXT NOT NULL,
			side TEXT NOT NULL DEFAULT 'back',
			stake_cc BIGINT NOT NULL CHECK (stake_cc > 0),
			status TEXT NOT NULL DEFAULT 'pending',
			payout_cc BIGINT,
			auto_cashout BIGINT NOT NULL DEFAULT 0,
			locked_stake BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			settled_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS bets_round ON bets (round_id)`,
		`CREATE INDEX IF NOT EXISTS bets_account ON bets (account_id)`,
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id TEXT PRIMARY KEY,
			account_id TEXT NOT NULL REFERENCES accounts(id),
			type TEXT NOT NULL,
			amount_cc BIGINT NOT NULL,
			ref_type TEXT NOT NULL,
			ref_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS ledger_account ON ledger_entries (account_id, created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Postgres) EnsureTable(ctx context.Context, t Table) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO tables (id, name, game, status, min_bet_cc, max_bet_cc) VALUES ($1,$2,$3,'active',$4,$5)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, min_bet_cc = EXCLUDED.min_bet_cc, max_bet_cc = EXCLUDED.max_bet_cc`,
		t.ID, t.Name, t.Game, t.MinBetCC, t.MaxBetCC)
	return err
}

func (s *Postgres) GetTable(ctx context.Context, id string) (*Table, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT id, name, game, status, min_bet_cc, max_bet_cc, created_at FROM tables WHERE id = $1`, id)
	var t Table
	if err := row.Scan(&t.ID, &t.Name, &t.Game, &t.Status, &t.MinBetCC, &t.MaxBetCC, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *Postgres) ListTables(ctx context.Context) ([]Table, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, name, game, status, min_bet_cc, max_bet_cc, created_at FROM tables WHERE status = 'active' ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Table{}
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.ID, &t.Name, &t.Game, &t.Status, &t.MinBetCC, &t.MaxBetCC, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Postgres) EnsureAccount(ctx context.Context, accountID string, initialCC int64) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO accounts (id, available_cc) VALUES ($1,$2) ON CONFLICT (id) DO NOTHING`, accountID, initialCC)
	return err
}

func (s *Postgres) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT id, available_cc, locked_cc, updated_at FROM accounts WHERE id = $1`, accountID)
	var a Account
	if err := row.Scan(&a.ID, &a.AvailableCC, &a.LockedCC, &a.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *Postgres) Credit(ctx context.Context, accountID string, amountCC int64, entryType, refType, refID string) (int64, error) {
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var bal int64
	if err := tx.QueryRowContext(ctx, `SELECT available_cc FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&bal); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	newBal := bal + amountCC
	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET available_cc = $1, updated_at = now() WHERE id = $2`, newBal, accountID); err != nil {
		return 0, err
	}
	if err := recordEntry(ctx, tx, accountID, entryType, amountCC, refType, refID); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return newBal, nil
}

func (s *Postgres) Debit(ctx context.Context, accountID string, amountCC int64, entryType, refType, refID string) (int64, error) {
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var bal int64
	if err := tx.QueryRowContext(ctx, `SELECT available_cc FROM accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&bal); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	if bal < amountCC {
		return 0, ErrInsufficientBalance
	}
	newBal := bal - amountCC
	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET available_cc = $1, updated_at = now() WHERE id = $2`, newBal, accountID); err != nil {
		return 0, err
	}
	if err := recordEntry(ctx, tx, accountID, entryType, -amountCC, refType, refID); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return newBal, nil
}

func recordEntry(ctx context.Context, tx *sql.Tx, accountID, entryType string, amountCC int64, refType, refID string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO ledger_entries (id, account_id, type, amount_cc, ref_type, ref_id) VALUES ($1,$2,$3,$4,$5,$6)`,
		NewID(), accountID, entryType, amountCC, refType, refID)
	return err
}

func (s *Postgres) ListLedger(ctx context.Context, accountID string, limit int) ([]LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, account_id, type, amount_cc, ref_type, ref_id, created_at FROM ledger_entries WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2`,
		accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LedgerEntry{}
	for rows.Next() {
		var e LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Type, &e.AmountCC, &e.RefType, &e.RefID, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Postgres) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT account_id, SUM(COALESCE(payout_cc, 0) - stake_cc) AS net
		 FROM bets WHERE status IN ('won','lost')
		 GROUP BY account_id ORDER BY net DESC, account_id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LeaderboardEntry{}
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.AccountID, &e.NetCC); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Postgres) CreateRound(ctx context.Context, r *Round) error {
	if r.ID == "" {
		r.ID = NewID()
	}
	if r.Phase == "" {
		r.Phase = PhaseScheduled
	}
	res, err := s.DB.ExecContext(ctx,
		`INSERT INTO rounds (id, table_id, game, seq, phase, commitment)
		 SELECT $1, $2, $3, COALESCE(MAX(seq), 0) + 1, $4, $5 FROM rounds WHERE table_id = $2
		 HAVING NOT EXISTS (SELECT 1 FROM rounds WHERE table_id = $2 AND phase NOT IN ('completed','voided'))`,
		r.ID, r.TableID, r.Game, r.Phase, r.Commitment)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrActiveRoundExists
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrActiveRoundExists
	}
	return s.DB.QueryRowContext(ctx, `SELECT seq, created_at FROM rounds WHERE id = $1`, r.ID).Scan(&r.Seq, &r.CreatedAt)
}

const roundCols = `id, table_id, game, seq, phase, commitment, seed, outcome, opened_at, close_at, resolved_at, pot_cc, participants, created_at`

func scanRound(row interface{ Scan(...any) error }) (*Round, error) {
	var r Round
	var opened, closeAt sql.NullTime
	if err := row.Scan(&r.ID, &r.TableID, &r.Game, &r.Seq, &r.Phase, &r.Commitment, &r.Seed, &r.Outcome,
		&opened, &closeAt, &r.ResolvedAt, &r.PotCC, &r.Participants, &r.CreatedAt); err != nil {
		return nil, err
	}
	if opened.Valid {
		r.OpenedAt = opened.Time
	}
	if closeAt.Valid {
		r.CloseAt = closeAt.Time
	}
	return &r, nil
}

func (s *Postgres) GetRound(ctx context.Context, id string) (*Round, error) {
	r, err := scanRound(s.DB.QueryRowContext(ctx, `SELECT `+roundCols+` FROM rounds WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

func (s *Postgres) CurrentRound(ctx context.Context, tableID string) (*Round, error) {
	r, err := scanRound(s.DB.QueryRowContext(ctx,
		`SELECT `+roundCols+` FROM rounds WHERE table_id = $1 AND phase NOT IN ('completed','voided') ORDER BY seq DESC LIMIT 1`, tableID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

func (s *Postgres) ListRounds(ctx context.Context, tableID string, limit int) ([]Round, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+roundCols+` FROM rounds WHERE table_id = $1 ORDER BY seq DESC LIMIT $2`, tableID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Round{}
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *Postgres) OpenRound(ctx context.Context, roundID string, openedAt, closeAt time.Time) (bool, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE rounds SET phase = 'open', opened_at = $2, close_at = $3 WHERE id = $1 AND phase = 'scheduled'`,
		roundID, openedAt, closeAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Postgres) LockRound(ctx context.Context, roundID string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `UPDATE rounds SET phase = 'locked' WHERE id = $1 AND phase = 'open'`, roundID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Postgres) CompleteRound(ctx context.Context, roundID, outcome, seed string, resolvedAt time.Time) (bool, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE rounds SET phase = 'completed', outcome = $2, seed = $3, resolved_at = $4 WHERE id = $1 AND phase = 'locked'`,
		roundID, outcome, seed, resolvedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Postgres) VoidRound(ctx context.Context, roundID string, resolvedAt time.Time) (bool, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE rounds SET phase = 'voided', resolved_at = $2 WHERE id = $1 AND phase IN ('open','locked')`,
		roundID, resolvedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// PlaceBet runs the phase re-check, the conditional debit, the bet insert and
// the pot update in one transaction. The round row lock closes the race with
// the open->locked transition; the account row lock closes the double-spend
// race between concurrent bets from the same account.
func (s *Postgres) PlaceBet(ctx context.Context, p PlaceBetParams) (*Bet, error) {
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var phase Phase
	var closeAt sql.NullTime
	if err := tx.QueryRowContext(ctx, `SELECT phase, close_at FROM rounds WHERE id = $1 FOR UPDATE`, p.RoundID).Scan(&phase, &closeAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if phase != PhaseOpen {
		return nil, ErrRoundNotOpen
	}
	if !closeAt.Valid || !p.Now.Before(closeAt.Time) {
		return nil, ErrRoundClosing
	}

	var hasPrior bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM bets WHERE round_id = $1 AND account_id = $2)`, p.RoundID, p.AccountID).Scan(&hasPrior); err != nil {
		return nil, err
	}
	if p.SingleBet && hasPrior {
		return nil, ErrDuplicateBet
	}

	var available, locked int64
	if err := tx.QueryRowContext(ctx, `SELECT available_cc, locked_cc FROM accounts WHERE id = $1 FOR UPDATE`, p.AccountID).Scan(&available, &locked); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if available < p.StakeCC {
		return nil, ErrInsufficientBalance
	}

	betID := NewID()
	if p.LockStake {
		if _, err := tx.ExecContext(ctx, `UPDATE accounts SET available_cc = $1, locked_cc = $2, updated_at = now() WHERE id = $3`,
			available-p.StakeCC, locked+p.StakeCC, p.AccountID); err != nil {
			return nil, err
		}
		if err := recordEntry(ctx, tx, p.AccountID, EntryStakeLock, -p.StakeCC, "bet", betID); err != nil {
			return nil, err
		}
	} else {
		if _, err := tx.ExecContext(ctx, `UPDATE accounts SET available_cc = $1, updated_at = now() WHERE id = $2`,
			available-p.StakeCC, p.AccountID); err != nil {
			return nil, err
		}
		if err := recordEntry(ctx, tx, p.AccountID, EntryBetDebit, -p.StakeCC, "bet", betID); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO bets (id, round_id, account_id, selection, side, stake_cc, status, auto_cashout, locked_stake, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,'pending',$7,$8,$9)`,
		betID, p.RoundID, p.AccountID, p.Selection, p.Side, p.StakeCC, p.AutoCashout, p.LockStake, p.Now); err != nil {
		return nil, err
	}

	newParticipant := 0
	if !hasPrior {
		newParticipant = 1
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE rounds SET pot_cc = pot_cc + $2, participants = participants + $3 WHERE id = $1`,
		p.RoundID, p.StakeCC, newParticipant); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &Bet{
		ID:          betID,
		RoundID:     p.RoundID,
		AccountID:   p.AccountID,
		Selection:   p.Selection,
		Side:        p.Side,
		StakeCC:     p.StakeCC,
		Status:      BetPending,
		AutoCashout: p.AutoCashout,
		LockedStake: p.LockStake,
		CreatedAt:   p.Now,
	}, nil
}

const betCols = `id, round_id, account_id, selection, side, stake_cc, status, payout_cc, auto_cashout, locked_stake, created_at, settled_at`

func scanBet(row interface{ Scan(...any) error }) (*Bet, error) {
	var b Bet
	if err := row.Scan(&b.ID, &b.RoundID, &b.AccountID, &b.Selection, &b.Side, &b.StakeCC, &b.Status,
		&b.PayoutCC, &b.AutoCashout, &b.LockedStake, &b.CreatedAt, &b.SettledAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Postgres) GetBet(ctx context.Context, id string) (*Bet, error) {
	b, err := scanBet(s.DB.QueryRowContext(ctx, `SELECT `+betCols+` FROM bets WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (s *Postgres) PendingBets(ctx context.Context, roundID string) ([]Bet, error) {
	return s.queryBets(ctx, `SELECT `+betCols+` FROM bets WHERE round_id = $1 AND status = 'pending' ORDER BY created_at, id`, roundID)
}

func (s *Postgres) RoundBets(ctx context.Context, roundID string) ([]Bet, error) {
	return s.queryBets(ctx, `SELECT `+betCols+` FROM bets WHERE round_id = $1 ORDER BY created_at, id`, roundID)
}

func (s *Postgres) queryBets(ctx context.Context, q string, args ...any) ([]Bet, error) {
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Bet{}
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (s *Postgres) SettleBet(ctx context.Context, betID string, status BetStatus, payoutCC int64, settledAt time.Time) (bool, error) {
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	b, err := scanBet(tx.QueryRowContext(ctx, `SELECT `+betCols+` FROM bets WHERE id = $1 FOR UPDATE`, betID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, err
	}
	if b.Status != BetPending {
		return false, nil
	}

	payout := int64(0)
	if status == BetWon {
		payout = payoutCC
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE bets SET status = $2, payout_cc = $3, settled_at = $4 WHERE id = $1`,
		betID, status, payout, settledAt); err != nil {
		return false, err
	}

	var available, locked int64
	if err := tx.QueryRowContext(ctx, `SELECT available_cc, locked_cc FROM accounts WHERE id = $1 FOR UPDATE`, b.AccountID).Scan(&available, &locked); err != nil {
		return false, err
	}
	if b.LockedStake {
		locked -= b.StakeCC
		if status == BetVoided {
			available += b.StakeCC
			if err := recordEntry(ctx, tx, b.AccountID, EntryRefundCredit, b.StakeCC, "bet", b.ID); err != nil {
				return false, err
			}
		} else if err := recordEntry(ctx, tx, b.AccountID, EntryStakeForfeit, -b.StakeCC, "bet", b.ID); err != nil {
			return false, err
		}
	} else if status == BetVoided {
		available += b.StakeCC
		if err := recordEntry(ctx, tx, b.AccountID, EntryRefundCredit, b.StakeCC, "bet", b.ID); err != nil {
			return false, err
		}
	}
	if status == BetWon && payout > 0 {
		available += payout
		if err := recordEntry(ctx, tx, b.AccountID, EntryPayoutCredit, payout, "bet", b.ID); err != nil {
			return false, err
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET available_cc = $1, locked_cc = $2, updated_at = now() WHERE id = $3`,
		available, locked, b.AccountID); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
