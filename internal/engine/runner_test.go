package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"crimson-casino/internal/config"
	"crimson-casino/internal/hub"
	"crimson-casino/internal/ledger"
	"crimson-casino/internal/outcome"
	"crimson-casino/internal/settle"
	"crimson-casino/internal/store"
)

const testSecret = "runner-test-secret"

func testOpts() Options {
	return Options{
		ResolveTimeout:     10 * time.Millisecond,
		ResolveBackoff:     time.Millisecond,
		MaxResolveAttempts: 2,
		Tick:               time.Millisecond,
	}
}

func newRunnerEnv(t *testing.T, table config.TableConfig) (*Runner, *store.Memory, *outcome.Fairness) {
	t.Helper()
	m := store.NewMemory()
	fair := outcome.NewFairness(testSecret)
	settler := settle.New(m, ledger.New(m), hub.NopPublisher{})
	r := NewRunner(table, m, fair, settler, hub.NopPublisher{}, NewResults(), NewMultipliers(), testOpts())
	return r, m, fair
}

// seedOpenRound puts a round on the table in the open phase with a short
// betting window, the way the runner itself would have.
func seedOpenRound(t *testing.T, m *store.Memory, fair *outcome.Fairness, table config.TableConfig, window time.Duration) *store.Round {
	t.Helper()
	ctx := context.Background()
	id := store.NewID()
	r := &store.Round{ID: id, TableID: table.ID, Game: table.Game, Commitment: fair.Commitment(id)}
	if err := m.CreateRound(ctx, r); err != nil {
		t.Fatalf("create round: %v", err)
	}
	now := time.Now()
	if ok, err := m.OpenRound(ctx, id, now, now.Add(window)); err != nil || !ok {
		t.Fatalf("open round: ok=%v err=%v", ok, err)
	}
	got, err := m.GetRound(ctx, id)
	if err != nil {
		t.Fatalf("get round: %v", err)
	}
	return got
}

func placeBet(t *testing.T, m *store.Memory, p store.PlaceBetParams) *store.Bet {
	t.Helper()
	p.Now = time.Now()
	if p.Side == "" {
		p.Side = store.SideBack
	}
	b, err := m.PlaceBet(context.Background(), p)
	if err != nil {
		t.Fatalf("place bet: %v", err)
	}
	return b
}

func TestColorRoundCompletesAndSettles(t *testing.T) {
	ctx := context.Background()
	table := config.TableConfig{
		ID: "color", Game: store.GameColor, BettingWindowMS: 30, CooldownMS: 1,
		MinBetCC: 1, MaxBetCC: 100_000,
		Odds: map[string]int64{"red": 200, "black": 200, "gold": 1400},
	}
	r, m, fair := newRunnerEnv(t, table)
	_ = m.EnsureAccount(ctx, "acc1", 1_000)
	round := seedOpenRound(t, m, fair, table, 20*time.Millisecond)

	// The draw is fixed by the seed, so the expected winner is known up front.
	want := outcome.NewGenerator(fair).Color(round.ID)
	winBet := placeBet(t, m, store.PlaceBetParams{RoundID: round.ID, AccountID: "acc1", Selection: want.Winner, StakeCC: 100})

	if err := r.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}

	got, _ := m.GetRound(ctx, round.ID)
	if got.Phase != store.PhaseCompleted {
		t.Fatalf("expected completed, got %s", got.Phase)
	}
	if got.Outcome == nil || *got.Outcome != want.Encode() {
		t.Fatalf("unexpected outcome: %v", got.Outcome)
	}
	if got.Seed != fair.Seed(round.ID) || fair.Commitment(round.ID) != got.Commitment {
		t.Fatalf("seed reveal does not line up with commitment")
	}

	b, _ := m.GetBet(ctx, winBet.ID)
	if b.Status != store.BetWon || b.PayoutCC == nil || *b.PayoutCC != 200 {
		t.Fatalf("expected won payout 200, got status=%s payout=%v", b.Status, b.PayoutCC)
	}
}

func TestCrashRoundHonorsAutoCashout(t *testing.T) {
	ctx := context.Background()
	table := config.TableConfig{
		ID: "crash", Game: store.GameCrash, BettingWindowMS: 20, CooldownMS: 1,
		MinBetCC: 1, MaxBetCC: 100_000, EdgeBPS: 300,
	}
	r, m, fair := newRunnerEnv(t, table)
	_ = m.EnsureAccount(ctx, "acc1", 1_000)
	_ = m.EnsureAccount(ctx, "acc2", 1_000)
	round := seedOpenRound(t, m, fair, table, 10*time.Millisecond)

	crash := outcome.NewGenerator(fair).Crash(round.ID, table.EdgeBPS)
	early := placeBet(t, m, store.PlaceBetParams{RoundID: round.ID, AccountID: "acc1", StakeCC: 100, AutoCashout: 100, LockStake: true})
	late := placeBet(t, m, store.PlaceBetParams{RoundID: round.ID, AccountID: "acc2", StakeCC: 100, AutoCashout: crash + 100, LockStake: true})

	if err := r.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}

	got, _ := m.GetRound(ctx, round.ID)
	if got.Phase != store.PhaseCompleted {
		t.Fatalf("expected completed, got %s", got.Phase)
	}
	if _, live := r.mults.CurrentMultiplier(table.ID); live {
		t.Fatalf("multiplier still live after bust")
	}

	b, _ := m.GetBet(ctx, early.ID)
	if b.Status != store.BetWon || b.PayoutCC == nil || *b.PayoutCC != 100 {
		t.Fatalf("threshold at launch should win its threshold, got status=%s payout=%v", b.Status, b.PayoutCC)
	}
	b, _ = m.GetBet(ctx, late.ID)
	if b.Status != store.BetLost {
		t.Fatalf("threshold past the bust should lose, got %s", b.Status)
	}
}

func TestFeedRoundSettlesBackAndLay(t *testing.T) {
	ctx := context.Background()
	table := config.TableConfig{
		ID: "live", Game: store.GameLive, BettingWindowMS: 20, CooldownMS: 1,
		MinBetCC: 1, MaxBetCC: 100_000,
		AllowLay: true, DefaultOddsX100: 195, LayOddsX100: 190,
		FeedKey: "baccarat-1",
	}
	r, m, fair := newRunnerEnv(t, table)
	_ = m.EnsureAccount(ctx, "acc1", 1_000)
	_ = m.EnsureAccount(ctx, "acc2", 1_000)
	round := seedOpenRound(t, m, fair, table, 10*time.Millisecond)

	backWin := placeBet(t, m, store.PlaceBetParams{RoundID: round.ID, AccountID: "acc1", Selection: "banker", Side: store.SideBack, StakeCC: 100})
	layWin := placeBet(t, m, store.PlaceBetParams{RoundID: round.ID, AccountID: "acc2", Selection: "player", Side: store.SideLay, StakeCC: 100})

	r.results.Deliver(table.FeedKey, "Banker#Total : 8")
	if err := r.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}

	got, _ := m.GetRound(ctx, round.ID)
	if got.Phase != store.PhaseCompleted {
		t.Fatalf("expected completed, got %s", got.Phase)
	}
	if got.Outcome == nil || *got.Outcome != "Banker#Total : 8" {
		t.Fatalf("unexpected outcome: %v", got.Outcome)
	}

	b, _ := m.GetBet(ctx, backWin.ID)
	if b.Status != store.BetWon || *b.PayoutCC != 195 {
		t.Fatalf("back banker should win 195, got status=%s payout=%v", b.Status, b.PayoutCC)
	}
	b, _ = m.GetBet(ctx, layWin.ID)
	if b.Status != store.BetWon || *b.PayoutCC != 190 {
		t.Fatalf("lay player should win 190, got status=%s payout=%v", b.Status, b.PayoutCC)
	}
}

func TestFeedRoundVoidsWhenOutcomeNeverArrives(t *testing.T) {
	ctx := context.Background()
	table := config.TableConfig{
		ID: "live", Game: store.GameLive, BettingWindowMS: 20, CooldownMS: 1,
		MinBetCC: 1, MaxBetCC: 100_000, FeedKey: "baccarat-1",
	}
	r, m, fair := newRunnerEnv(t, table)
	_ = m.EnsureAccount(ctx, "acc1", 1_000)
	round := seedOpenRound(t, m, fair, table, 5*time.Millisecond)
	bet := placeBet(t, m, store.PlaceBetParams{RoundID: round.ID, AccountID: "acc1", Selection: "banker", StakeCC: 400})

	if err := r.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}

	got, _ := m.GetRound(ctx, round.ID)
	if got.Phase != store.PhaseVoided {
		t.Fatalf("expected voided, got %s", got.Phase)
	}
	b, _ := m.GetBet(ctx, bet.ID)
	if b.Status != store.BetVoided {
		t.Fatalf("expected voided bet, got %s", b.Status)
	}
	acct, _ := m.GetAccount(ctx, "acc1")
	if acct.AvailableCC != 1_000 {
		t.Fatalf("void must refund the full stake, got %d", acct.AvailableCC)
	}
}

// flakySettleStore fails the first n settle commits, the way a transient
// database error would.
type flakySettleStore struct {
	store.Store
	failures int
}

func (f *flakySettleStore) SettleBet(ctx context.Context, id string, status store.BetStatus, payout int64, at time.Time) (bool, error) {
	if f.failures > 0 {
		f.failures--
		return false, errors.New("settle glitch")
	}
	return f.Store.SettleBet(ctx, id, status, payout, at)
}

func TestVoidKeepsRoundLockedUntilRefundsCommit(t *testing.T) {
	ctx := context.Background()
	table := config.TableConfig{
		ID: "live", Game: store.GameLive, BettingWindowMS: 20, CooldownMS: 1,
		MinBetCC: 1, MaxBetCC: 100_000, FeedKey: "baccarat-1",
	}
	m := store.NewMemory()
	flaky := &flakySettleStore{Store: m, failures: 1}
	fair := outcome.NewFairness(testSecret)
	settler := settle.New(flaky, ledger.New(m), hub.NopPublisher{})
	r := NewRunner(table, flaky, fair, settler, hub.NopPublisher{}, NewResults(), NewMultipliers(), testOpts())

	_ = m.EnsureAccount(ctx, "acc1", 1_000)
	round := seedOpenRound(t, m, fair, table, 5*time.Millisecond)
	bet := placeBet(t, m, store.PlaceBetParams{RoundID: round.ID, AccountID: "acc1", Selection: "banker", StakeCC: 400})

	if err := r.RunOnce(ctx); err == nil {
		t.Fatalf("expected the failed refund to surface")
	}
	got, _ := m.GetRound(ctx, round.ID)
	if got.Phase != store.PhaseLocked {
		t.Fatalf("round must stay locked until the refund commits, got %s", got.Phase)
	}

	// The next pass adopts the locked round and finishes the sweep.
	if err := r.RunOnce(ctx); err != nil {
		t.Fatalf("second pass: %v", err)
	}
	got, _ = m.GetRound(ctx, round.ID)
	if got.Phase != store.PhaseVoided {
		t.Fatalf("expected voided after retry, got %s", got.Phase)
	}
	b, _ := m.GetBet(ctx, bet.ID)
	if b.Status != store.BetVoided {
		t.Fatalf("expected voided bet after retry, got %s", b.Status)
	}
	acct, _ := m.GetAccount(ctx, "acc1")
	if acct.AvailableCC != 1_000 {
		t.Fatalf("stake must come back in full, got %d", acct.AvailableCC)
	}
}

func TestJackpotRoundPaysWeightedWinnerAndRake(t *testing.T) {
	ctx := context.Background()
	table := config.TableConfig{
		ID: "pot", Game: store.GameJackpot, BettingWindowMS: 20, CooldownMS: 1,
		MinBetCC: 1, MaxBetCC: 100_000, SingleBet: true, RakeBPS: 500,
	}
	r, m, fair := newRunnerEnv(t, table)
	_ = m.EnsureAccount(ctx, "acc1", 1_000)
	_ = m.EnsureAccount(ctx, "acc2", 1_000)
	round := seedOpenRound(t, m, fair, table, 10*time.Millisecond)

	placeBet(t, m, store.PlaceBetParams{RoundID: round.ID, AccountID: "acc1", Selection: "entry", StakeCC: 300, SingleBet: true})
	placeBet(t, m, store.PlaceBetParams{RoundID: round.ID, AccountID: "acc2", Selection: "entry", StakeCC: 700, SingleBet: true})

	winner, ok := outcome.NewGenerator(fair).JackpotWinner(round.ID, []outcome.JackpotEntry{
		{AccountID: "acc1", StakeCC: 300},
		{AccountID: "acc2", StakeCC: 700},
	})
	if !ok {
		t.Fatalf("expected a drawn winner")
	}

	if err := r.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}

	got, _ := m.GetRound(ctx, round.ID)
	if got.Phase != store.PhaseCompleted {
		t.Fatalf("expected completed, got %s", got.Phase)
	}
	if got.Outcome == nil || *got.Outcome != winner {
		t.Fatalf("outcome should name the winner %q, got %v", winner, got.Outcome)
	}

	// Pot 1000, rake 5% to the house, prize 950 to the drawn entry.
	bets, _ := m.RoundBets(ctx, round.ID)
	for _, b := range bets {
		if b.AccountID == winner {
			if b.Status != store.BetWon || b.PayoutCC == nil || *b.PayoutCC != 950 {
				t.Fatalf("winner payout wrong: status=%s payout=%v", b.Status, b.PayoutCC)
			}
		} else if b.Status != store.BetLost {
			t.Fatalf("loser status wrong: %s", b.Status)
		}
	}
	house, err := m.GetAccount(ctx, ledger.HouseAccount)
	if err != nil {
		t.Fatalf("house account: %v", err)
	}
	if house.AvailableCC != 50 {
		t.Fatalf("expected rake 50 on the house account, got %d", house.AvailableCC)
	}
}

func TestRunnerOpensFreshRoundFromScratch(t *testing.T) {
	ctx := context.Background()
	table := config.TableConfig{
		ID: "color", Game: store.GameColor, BettingWindowMS: 5, CooldownMS: 1,
		MinBetCC: 1, MaxBetCC: 100_000, DefaultOddsX100: 200,
	}
	r, m, _ := newRunnerEnv(t, table)

	if err := r.RunOnce(ctx); err != nil {
		t.Fatalf("run once: %v", err)
	}
	rounds, _ := m.ListRounds(ctx, table.ID, 10)
	if len(rounds) != 1 {
		t.Fatalf("expected exactly one round, got %d", len(rounds))
	}
	if rounds[0].Phase != store.PhaseCompleted {
		t.Fatalf("expected completed, got %s", rounds[0].Phase)
	}
	if rounds[0].Commitment == "" {
		t.Fatalf("round opened without a commitment")
	}
}
