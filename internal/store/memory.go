package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is an in-process Store with the same semantics as Postgres: the
// conditional debit, the single terminal bet transition and the one-active-round
// rule all hold under concurrent callers. Balance operations serialize per
// account and bet operations per round, so unrelated accounts and tables
// proceed in parallel.
type Memory struct {
	mu            sync.RWMutex
	tables        map[string]Table
	accounts      map[string]*memAccount
	rounds        map[string]*memRound
	roundsByTable map[string][]string
	bets          map[string]*Bet
	betsByRound   map[string][]string
	seq           map[string]int64
	tableMus      map[string]*sync.Mutex
}

type memAccount struct {
	mu      sync.Mutex
	acct    Account
	entries []LedgerEntry
}

type memRound struct {
	mu sync.Mutex
	r  Round
}

func NewMemory() *Memory {
	return &Memory{
		tables:        map[string]Table{},
		accounts:      map[string]*memAccount{},
		rounds:        map[string]*memRound{},
		roundsByTable: map[string][]string{},
		bets:          map[string]*Bet{},
		betsByRound:   map[string][]string{},
		seq:           map[string]int64{},
		tableMus:      map[string]*sync.Mutex{},
	}
}

// tableMu serializes round creation per table. Lock order everywhere in this
// file is table -> round -> account -> registry; never the reverse.
func (m *Memory) tableMu(tableID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	mu, ok := m.tableMus[tableID]
	if !ok {
		mu = &sync.Mutex{}
		m.tableMus[tableID] = mu
	}
	return mu
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) EnsureTable(_ context.Context, t Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[t.ID]; ok {
		return nil
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	m.tables[t.ID] = t
	return nil
}

func (m *Memory) GetTable(_ context.Context, id string) (*Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (m *Memory) ListTables(context.Context) ([]Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Table, 0, len(m.tables))
	for _, t := range m.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) EnsureAccount(_ context.Context, accountID string, initialCC int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[accountID]; ok {
		return nil
	}
	m.accounts[accountID] = &memAccount{acct: Account{ID: accountID, AvailableCC: initialCC, UpdatedAt: time.Now()}}
	return nil
}

func (m *Memory) account(id string) (*memAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

func (m *Memory) GetAccount(_ context.Context, accountID string) (*Account, error) {
	a, err := m.account(accountID)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	acct := a.acct
	return &acct, nil
}

func (m *Memory) Credit(_ context.Context, accountID string, amountCC int64, entryType, refType, refID string) (int64, error) {
	a, err := m.account(accountID)
	if err != nil {
		return 0, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.credit(amountCC, entryType, refType, refID)
	return a.acct.AvailableCC, nil
}

func (m *Memory) Debit(_ context.Context, accountID string, amountCC int64, entryType, refType, refID string) (int64, error) {
	a, err := m.account(accountID)
	if err != nil {
		return 0, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.debit(amountCC, entryType, refType, refID); err != nil {
		return 0, err
	}
	return a.acct.AvailableCC, nil
}

// credit and debit require a.mu held.
func (a *memAccount) credit(amountCC int64, entryType, refType, refID string) {
	a.acct.AvailableCC += amountCC
	a.acct.UpdatedAt = time.Now()
	a.record(amountCC, entryType, refType, refID)
}

func (a *memAccount) debit(amountCC int64, entryType, refType, refID string) error {
	if a.acct.AvailableCC < amountCC {
		return ErrInsufficientBalance
	}
	a.acct.AvailableCC -= amountCC
	a.acct.UpdatedAt = time.Now()
	a.record(-amountCC, entryType, refType, refID)
	return nil
}

func (a *memAccount) record(amountCC int64, entryType, refType, refID string) {
	a.entries = append(a.entries, LedgerEntry{
		ID:        NewID(),
		AccountID: a.acct.ID,
		Type:      entryType,
		AmountCC:  amountCC,
		RefType:   refType,
		RefID:     refID,
		CreatedAt: time.Now(),
	})
}

func (m *Memory) ListLedger(_ context.Context, accountID string, limit int) ([]LedgerEntry, error) {
	a, err := m.account(accountID)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(a.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]LedgerEntry, 0, n)
	for i := len(a.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, a.entries[i])
	}
	return out, nil
}

func (m *Memory) Leaderboard(_ context.Context, limit int) ([]LeaderboardEntry, error) {
	m.mu.RLock()
	nets := map[string]int64{}
	for _, b := range m.bets {
		switch b.Status {
		case BetWon, BetLost:
			nets[b.AccountID] -= b.StakeCC
			if b.PayoutCC != nil {
				nets[b.AccountID] += *b.PayoutCC
			}
		}
	}
	m.mu.RUnlock()
	out := make([]LeaderboardEntry, 0, len(nets))
	for id, net := range nets {
		out = append(out, LeaderboardEntry{AccountID: id, NetCC: net})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NetCC == out[j].NetCC {
			return out[i].AccountID < out[j].AccountID
		}
		return out[i].NetCC > out[j].NetCC
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) CreateRound(_ context.Context, r *Round) error {
	tmu := m.tableMu(r.TableID)
	tmu.Lock()
	defer tmu.Unlock()

	m.mu.RLock()
	ids := append([]string(nil), m.roundsByTable[r.TableID]...)
	m.mu.RUnlock()
	for _, id := range ids {
		mr, err := m.round(id)
		if err != nil {
			continue
		}
		mr.mu.Lock()
		active := !mr.r.Phase.Terminal()
		mr.mu.Unlock()
		if active {
			return ErrActiveRoundExists
		}
	}

	if r.ID == "" {
		r.ID = NewID()
	}
	if r.Phase == "" {
		r.Phase = PhaseScheduled
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	m.mu.Lock()
	m.seq[r.TableID]++
	r.Seq = m.seq[r.TableID]
	cp := *r
	m.rounds[r.ID] = &memRound{r: cp}
	m.roundsByTable[r.TableID] = append(m.roundsByTable[r.TableID], r.ID)
	m.mu.Unlock()
	return nil
}

func (m *Memory) round(id string) (*memRound, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mr, ok := m.rounds[id]
	if !ok {
		return nil, ErrNotFound
	}
	return mr, nil
}

func (m *Memory) GetRound(_ context.Context, id string) (*Round, error) {
	mr, err := m.round(id)
	if err != nil {
		return nil, err
	}
	mr.mu.Lock()
	defer mr.mu.Unlock()
	cp := mr.r
	return &cp, nil
}

func (m *Memory) CurrentRound(_ context.Context, tableID string) (*Round, error) {
	m.mu.RLock()
	ids := append([]string(nil), m.roundsByTable[tableID]...)
	m.mu.RUnlock()
	for i := len(ids) - 1; i >= 0; i-- {
		mr, err := m.round(ids[i])
		if err != nil {
			continue
		}
		mr.mu.Lock()
		if !mr.r.Phase.Terminal() {
			cp := mr.r
			mr.mu.Unlock()
			return &cp, nil
		}
		mr.mu.Unlock()
	}
	return nil, ErrNotFound
}

func (m *Memory) ListRounds(_ context.Context, tableID string, limit int) ([]Round, error) {
	m.mu.RLock()
	ids := append([]string(nil), m.roundsByTable[tableID]...)
	m.mu.RUnlock()
	out := []Round{}
	for i := len(ids) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		mr, err := m.round(ids[i])
		if err != nil {
			continue
		}
		mr.mu.Lock()
		out = append(out, mr.r)
		mr.mu.Unlock()
	}
	return out, nil
}

func (m *Memory) OpenRound(_ context.Context, roundID string, openedAt, closeAt time.Time) (bool, error) {
	mr, err := m.round(roundID)
	if err != nil {
		return false, err
	}
	mr.mu.Lock()
	defer mr.mu.Unlock()
	if mr.r.Phase != PhaseScheduled {
		return false, nil
	}
	mr.r.Phase = PhaseOpen
	mr.r.OpenedAt = openedAt
	mr.r.CloseAt = closeAt
	return true, nil
}

func (m *Memory) LockRound(_ context.Context, roundID string) (bool, error) {
	mr, err := m.round(roundID)
	if err != nil {
		return false, err
	}
	mr.mu.Lock()
	defer mr.mu.Unlock()
	if mr.r.Phase != PhaseOpen {
		return false, nil
	}
	mr.r.Phase = PhaseLocked
	return true, nil
}

func (m *Memory) CompleteRound(_ context.Context, roundID, outcome, seed string, resolvedAt time.Time) (bool, error) {
	mr, err := m.round(roundID)
	if err != nil {
		return false, err
	}
	mr.mu.Lock()
	defer mr.mu.Unlock()
	if mr.r.Phase != PhaseLocked {
		return false, nil
	}
	mr.r.Phase = PhaseCompleted
	mr.r.Outcome = &outcome
	mr.r.Seed = seed
	mr.r.ResolvedAt = &resolvedAt
	return true, nil
}

func (m *Memory) VoidRound(_ context.Context, roundID string, resolvedAt time.Time) (bool, error) {
	mr, err := m.round(roundID)
	if err != nil {
		return false, err
	}
	mr.mu.Lock()
	defer mr.mu.Unlock()
	if mr.r.Phase != PhaseOpen && mr.r.Phase != PhaseLocked {
		return false, nil
	}
	mr.r.Phase = PhaseVoided
	mr.r.ResolvedAt = &resolvedAt
	return true, nil
}

// PlaceBet holds the round lock for the whole unit so the phase check, the
// funds reservation and the bet insert are one atomic step relative to the
// lock transition. Lock order is round, then account, then registry.
func (m *Memory) PlaceBet(_ context.Context, p PlaceBetParams) (*Bet, error) {
	mr, err := m.round(p.RoundID)
	if err != nil {
		return nil, err
	}
	a, err := m.account(p.AccountID)
	if err != nil {
		return nil, err
	}

	mr.mu.Lock()
	defer mr.mu.Unlock()
	if mr.r.Phase != PhaseOpen {
		return nil, ErrRoundNotOpen
	}
	if !p.Now.Before(mr.r.CloseAt) {
		return nil, ErrRoundClosing
	}
	if p.SingleBet {
		m.mu.RLock()
		for _, id := range m.betsByRound[p.RoundID] {
			if m.bets[id].AccountID == p.AccountID {
				m.mu.RUnlock()
				return nil, ErrDuplicateBet
			}
		}
		m.mu.RUnlock()
	}

	bet := &Bet{
		ID:          NewID(),
		RoundID:     p.RoundID,
		AccountID:   p.AccountID,
		Selection:   p.Selection,
		Side:        p.Side,
		StakeCC:     p.StakeCC,
		Status:      BetPending,
		AutoCashout: p.AutoCashout,
		LockedStake: p.LockStake,
		CreatedAt:   p.Now,
	}

	a.mu.Lock()
	if p.LockStake {
		if a.acct.AvailableCC < p.StakeCC {
			a.mu.Unlock()
			return nil, ErrInsufficientBalance
		}
		a.acct.AvailableCC -= p.StakeCC
		a.acct.LockedCC += p.StakeCC
		a.acct.UpdatedAt = time.Now()
		a.record(-p.StakeCC, EntryStakeLock, "bet", bet.ID)
	} else {
		if err := a.debit(p.StakeCC, EntryBetDebit, "bet", bet.ID); err != nil {
			a.mu.Unlock()
			return nil, err
		}
	}
	a.mu.Unlock()

	firstForAccount := true
	m.mu.Lock()
	for _, id := range m.betsByRound[p.RoundID] {
		if m.bets[id].AccountID == p.AccountID {
			firstForAccount = false
			break
		}
	}
	m.bets[bet.ID] = bet
	m.betsByRound[p.RoundID] = append(m.betsByRound[p.RoundID], bet.ID)
	m.mu.Unlock()

	mr.r.PotCC += p.StakeCC
	if firstForAccount {
		mr.r.Participants++
	}

	cp := *bet
	return &cp, nil
}

func (m *Memory) GetBet(_ context.Context, id string) (*Bet, error) {
	m.mu.RLock()
	b, ok := m.bets[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	mr, err := m.round(b.RoundID)
	if err != nil {
		return nil, err
	}
	mr.mu.Lock()
	defer mr.mu.Unlock()
	cp := *b
	return &cp, nil
}

func (m *Memory) PendingBets(ctx context.Context, roundID string) ([]Bet, error) {
	return m.roundBets(roundID, true)
}

func (m *Memory) RoundBets(ctx context.Context, roundID string) ([]Bet, error) {
	return m.roundBets(roundID, false)
}

func (m *Memory) roundBets(roundID string, pendingOnly bool) ([]Bet, error) {
	mr, err := m.round(roundID)
	if err != nil {
		return nil, err
	}
	mr.mu.Lock()
	defer mr.mu.Unlock()
	m.mu.RLock()
	ids := append([]string(nil), m.betsByRound[roundID]...)
	out := make([]Bet, 0, len(ids))
	for _, id := range ids {
		b := m.bets[id]
		if pendingOnly && b.Status != BetPending {
			continue
		}
		out = append(out, *b)
	}
	m.mu.RUnlock()
	return out, nil
}

func (m *Memory) SettleBet(_ context.Context, betID string, status BetStatus, payoutCC int64, settledAt time.Time) (bool, error) {
	m.mu.RLock()
	b, ok := m.bets[betID]
	m.mu.RUnlock()
	if !ok {
		return false, ErrNotFound
	}
	mr, err := m.round(b.RoundID)
	if err != nil {
		return false, err
	}
	a, err := m.account(b.AccountID)
	if err != nil {
		return false, err
	}

	mr.mu.Lock()
	defer mr.mu.Unlock()
	if b.Status != BetPending {
		return false, nil
	}

	a.mu.Lock()
	if b.LockedStake {
		a.acct.LockedCC -= b.StakeCC
		a.acct.UpdatedAt = time.Now()
		if status == BetVoided {
			a.acct.AvailableCC += b.StakeCC
			a.record(b.StakeCC, EntryRefundCredit, "bet", b.ID)
		} else {
			a.record(-b.StakeCC, EntryStakeForfeit, "bet", b.ID)
		}
		if status == BetWon && payoutCC > 0 {
			a.credit(payoutCC, EntryPayoutCredit, "bet", b.ID)
		}
	} else {
		switch status {
		case BetWon:
			if payoutCC > 0 {
				a.credit(payoutCC, EntryPayoutCredit, "bet", b.ID)
			}
		case BetVoided:
			a.credit(b.StakeCC, EntryRefundCredit, "bet", b.ID)
		}
	}
	a.mu.Unlock()

	m.mu.Lock()
	b.Status = status
	b.SettledAt = &settledAt
	if status == BetWon {
		p := payoutCC
		b.PayoutCC = &p
	} else {
		zero := int64(0)
		b.PayoutCC = &zero
	}
	m.mu.Unlock()
	return true, nil
}
