package store

import (
	"context"
	"sync"
	"testing"
	"time"
)

func openRound(t *testing.T, m *Memory, tableID string, window time.Duration) *Round {
	t.Helper()
	ctx := context.Background()
	r := &Round{TableID: tableID, Game: GameColor}
	if err := m.CreateRound(ctx, r); err != nil {
		t.Fatalf("create round: %v", err)
	}
	now := time.Now()
	ok, err := m.OpenRound(ctx, r.ID, now, now.Add(window))
	if err != nil || !ok {
		t.Fatalf("open round: ok=%v err=%v", ok, err)
	}
	got, err := m.GetRound(ctx, r.ID)
	if err != nil {
		t.Fatalf("get round: %v", err)
	}
	return got
}

func TestPlaceBetDebitsAndBumpsPot(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.EnsureTable(ctx, Table{ID: "t1", Game: GameColor, MinBetCC: 1, MaxBetCC: 10000})
	_ = m.EnsureAccount(ctx, "acc1", 1000)
	r := openRound(t, m, "t1", time.Minute)

	bet, err := m.PlaceBet(ctx, PlaceBetParams{RoundID: r.ID, AccountID: "acc1", Selection: "red", Side: SideBack, StakeCC: 300, Now: time.Now()})
	if err != nil {
		t.Fatalf("place bet: %v", err)
	}
	if bet.Status != BetPending {
		t.Fatalf("expected pending, got %s", bet.Status)
	}
	acct, _ := m.GetAccount(ctx, "acc1")
	if acct.AvailableCC != 700 {
		t.Fatalf("expected 700 available, got %d", acct.AvailableCC)
	}
	got, _ := m.GetRound(ctx, r.ID)
	if got.PotCC != 300 || got.Participants != 1 {
		t.Fatalf("expected pot=300 participants=1, got pot=%d participants=%d", got.PotCC, got.Participants)
	}
}

func TestConcurrentBetsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.EnsureTable(ctx, Table{ID: "t1", Game: GameColor})
	_ = m.EnsureAccount(ctx, "acc1", 500)
	r := openRound(t, m, "t1", time.Minute)

	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	placed := int64(0)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.PlaceBet(ctx, PlaceBetParams{RoundID: r.ID, AccountID: "acc1", Selection: "red", Side: SideBack, StakeCC: 100, Now: time.Now()})
			if err == nil {
				mu.Lock()
				placed += 100
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	acct, _ := m.GetAccount(ctx, "acc1")
	if acct.AvailableCC < 0 {
		t.Fatalf("balance went negative: %d", acct.AvailableCC)
	}
	if acct.AvailableCC+placed != 500 {
		t.Fatalf("debits do not reconcile: available=%d placed=%d", acct.AvailableCC, placed)
	}
	if placed != 500 {
		t.Fatalf("expected exactly 500 placed, got %d", placed)
	}
}

func TestPotEqualsSumOfStakesAtLock(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.EnsureTable(ctx, Table{ID: "t1", Game: GameColor})
	for _, id := range []string{"a", "b", "c"} {
		_ = m.EnsureAccount(ctx, id, 10000)
	}
	r := openRound(t, m, "t1", time.Minute)

	stakes := []int64{100, 250, 400}
	accounts := []string{"a", "b", "c"}
	for i, s := range stakes {
		if _, err := m.PlaceBet(ctx, PlaceBetParams{RoundID: r.ID, AccountID: accounts[i], Selection: "red", Side: SideBack, StakeCC: s, Now: time.Now()}); err != nil {
			t.Fatalf("place bet %d: %v", i, err)
		}
	}
	if ok, _ := m.LockRound(ctx, r.ID); !ok {
		t.Fatal("lock failed")
	}
	got, _ := m.GetRound(ctx, r.ID)
	if got.PotCC != 750 {
		t.Fatalf("expected pot 750, got %d", got.PotCC)
	}
	if got.Participants != 3 {
		t.Fatalf("expected 3 participants, got %d", got.Participants)
	}
}

func TestBetRejectedAfterCloseAt(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.EnsureTable(ctx, Table{ID: "t1", Game: GameColor})
	_ = m.EnsureAccount(ctx, "acc1", 1000)
	r := openRound(t, m, "t1", time.Minute)

	// Still phase open, but one millisecond past the deadline.
	late := r.CloseAt.Add(time.Millisecond)
	_, err := m.PlaceBet(ctx, PlaceBetParams{RoundID: r.ID, AccountID: "acc1", Selection: "red", Side: SideBack, StakeCC: 100, Now: late})
	if err != ErrRoundClosing {
		t.Fatalf("expected ErrRoundClosing, got %v", err)
	}
	acct, _ := m.GetAccount(ctx, "acc1")
	if acct.AvailableCC != 1000 {
		t.Fatalf("rejected bet must not move funds, available=%d", acct.AvailableCC)
	}
}

func TestBetRejectedOnceLocked(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.EnsureTable(ctx, Table{ID: "t1", Game: GameColor})
	_ = m.EnsureAccount(ctx, "acc1", 1000)
	r := openRound(t, m, "t1", time.Minute)
	if ok, _ := m.LockRound(ctx, r.ID); !ok {
		t.Fatal("lock failed")
	}
	_, err := m.PlaceBet(ctx, PlaceBetParams{RoundID: r.ID, AccountID: "acc1", Selection: "red", Side: SideBack, StakeCC: 100, Now: time.Now()})
	if err != ErrRoundNotOpen {
		t.Fatalf("expected ErrRoundNotOpen, got %v", err)
	}
}

func TestDuplicateBetRejected(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.EnsureTable(ctx, Table{ID: "t1", Game: GameJackpot})
	_ = m.EnsureAccount(ctx, "acc1", 1000)
	r := openRound(t, m, "t1", time.Minute)

	p := PlaceBetParams{RoundID: r.ID, AccountID: "acc1", Selection: "self", Side: SideBack, StakeCC: 100, SingleBet: true, Now: time.Now()}
	if _, err := m.PlaceBet(ctx, p); err != nil {
		t.Fatalf("first bet: %v", err)
	}
	if _, err := m.PlaceBet(ctx, p); err != ErrDuplicateBet {
		t.Fatalf("expected ErrDuplicateBet, got %v", err)
	}
}

func TestSettleBetExactlyOnce(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.EnsureTable(ctx, Table{ID: "t1", Game: GameColor})
	_ = m.EnsureAccount(ctx, "acc1", 1000)
	r := openRound(t, m, "t1", time.Minute)
	bet, err := m.PlaceBet(ctx, PlaceBetParams{RoundID: r.ID, AccountID: "acc1", Selection: "red", Side: SideBack, StakeCC: 100, Now: time.Now()})
	if err != nil {
		t.Fatalf("place bet: %v", err)
	}

	ok, err := m.SettleBet(ctx, bet.ID, BetWon, 200, time.Now())
	if err != nil || !ok {
		t.Fatalf("first settle: ok=%v err=%v", ok, err)
	}
	acct, _ := m.GetAccount(ctx, "acc1")
	if acct.AvailableCC != 1100 {
		t.Fatalf("expected 1100 after payout, got %d", acct.AvailableCC)
	}

	// Re-running settlement must be a no-op, not a double payout.
	ok, err = m.SettleBet(ctx, bet.ID, BetWon, 200, time.Now())
	if err != nil || ok {
		t.Fatalf("second settle should be a no-op: ok=%v err=%v", ok, err)
	}
	acct, _ = m.GetAccount(ctx, "acc1")
	if acct.AvailableCC != 1100 {
		t.Fatalf("double payout detected: %d", acct.AvailableCC)
	}
}

func TestVoidedBetRefundsLockedStake(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.EnsureTable(ctx, Table{ID: "t1", Game: GameCrash})
	_ = m.EnsureAccount(ctx, "acc1", 1000)
	r := openRound(t, m, "t1", time.Minute)
	bet, err := m.PlaceBet(ctx, PlaceBetParams{RoundID: r.ID, AccountID: "acc1", Selection: "cashout", Side: SideBack, StakeCC: 400, LockStake: true, Now: time.Now()})
	if err != nil {
		t.Fatalf("place bet: %v", err)
	}
	acct, _ := m.GetAccount(ctx, "acc1")
	if acct.AvailableCC != 600 || acct.LockedCC != 400 {
		t.Fatalf("expected 600/400 split, got %d/%d", acct.AvailableCC, acct.LockedCC)
	}

	if ok, err := m.SettleBet(ctx, bet.ID, BetVoided, 0, time.Now()); err != nil || !ok {
		t.Fatalf("void settle: ok=%v err=%v", ok, err)
	}
	acct, _ = m.GetAccount(ctx, "acc1")
	if acct.AvailableCC != 1000 || acct.LockedCC != 0 {
		t.Fatalf("void must refund in full, got %d/%d", acct.AvailableCC, acct.LockedCC)
	}
}

func TestOneActiveRoundPerTable(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.EnsureTable(ctx, Table{ID: "t1", Game: GameColor})
	r := openRound(t, m, "t1", time.Minute)

	err := m.CreateRound(ctx, &Round{TableID: "t1", Game: GameColor})
	if err != ErrActiveRoundExists {
		t.Fatalf("expected ErrActiveRoundExists, got %v", err)
	}

	if ok, _ := m.LockRound(ctx, r.ID); !ok {
		t.Fatal("lock failed")
	}
	if err := m.CreateRound(ctx, &Round{TableID: "t1", Game: GameColor}); err != ErrActiveRoundExists {
		t.Fatalf("locked round is still active, got %v", err)
	}
	if ok, _ := m.CompleteRound(ctx, r.ID, "red", "seed", time.Now()); !ok {
		t.Fatal("complete failed")
	}
	if err := m.CreateRound(ctx, &Round{TableID: "t1", Game: GameColor}); err != nil {
		t.Fatalf("next round should be allowed after completion: %v", err)
	}
}

func TestPhaseTransitionsAreIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.EnsureTable(ctx, Table{ID: "t1", Game: GameColor})
	r := openRound(t, m, "t1", time.Minute)

	if ok, _ := m.LockRound(ctx, r.ID); !ok {
		t.Fatal("first lock should succeed")
	}
	if ok, _ := m.LockRound(ctx, r.ID); ok {
		t.Fatal("second lock should be a no-op")
	}
	if ok, _ := m.CompleteRound(ctx, r.ID, "red", "s", time.Now()); !ok {
		t.Fatal("complete should succeed")
	}
	if ok, _ := m.CompleteRound(ctx, r.ID, "black", "s2", time.Now()); ok {
		t.Fatal("second complete should be a no-op")
	}
	got, _ := m.GetRound(ctx, r.ID)
	if got.Outcome == nil || *got.Outcome != "red" {
		t.Fatalf("outcome must be immutable once attached, got %v", got.Outcome)
	}
}
