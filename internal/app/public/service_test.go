package public

import (
	"context"
	"errors"
	"testing"
	"time"

	"crimson-casino/internal/config"
	"crimson-casino/internal/store"
)

func newService(t *testing.T) (*Service, *store.Memory) {
	t.Helper()
	m := store.NewMemory()
	tables := []config.TableConfig{{
		ID: "color-main", Name: "Color Wheel", Game: store.GameColor,
		BettingWindowMS: 15_000, MinBetCC: 50, MaxBetCC: 50_000,
	}}
	return NewService(m, tables), m
}

func TestRoundStateHidesSeedUntilTerminal(t *testing.T) {
	ctx := context.Background()
	svc, m := newService(t)

	round := &store.Round{TableID: "color-main", Game: store.GameColor, Commitment: "deadbeef"}
	if err := m.CreateRound(ctx, round); err != nil {
		t.Fatalf("create round: %v", err)
	}
	now := time.Now()
	_, _ = m.OpenRound(ctx, round.ID, now, now.Add(time.Minute))

	item, err := svc.RoundState(ctx, "color-main")
	if err != nil {
		t.Fatalf("round state: %v", err)
	}
	if item.Phase != store.PhaseOpen || item.Commitment != "deadbeef" {
		t.Fatalf("expected open round with commitment, got %+v", item)
	}
	if item.Seed != "" || item.Outcome != "" {
		t.Fatalf("seed and outcome must stay hidden in flight")
	}

	_, _ = m.LockRound(ctx, round.ID)
	_, _ = m.CompleteRound(ctx, round.ID, "Red", "seed-1", time.Now())

	item, err = svc.RoundState(ctx, "color-main")
	if err != nil {
		t.Fatalf("round state after complete: %v", err)
	}
	if item.Phase != store.PhaseCompleted || item.Seed != "seed-1" || item.Outcome != "Red" {
		t.Fatalf("completed round should reveal seed and outcome, got %+v", item)
	}
}

func TestProofRevealsOnlyAfterResolve(t *testing.T) {
	ctx := context.Background()
	svc, m := newService(t)

	round := &store.Round{TableID: "color-main", Game: store.GameColor, Commitment: "c0ffee"}
	_ = m.CreateRound(ctx, round)
	now := time.Now()
	_, _ = m.OpenRound(ctx, round.ID, now, now.Add(time.Minute))

	proof, err := svc.Proof(ctx, round.ID)
	if err != nil {
		t.Fatalf("proof: %v", err)
	}
	if proof.Commitment != "c0ffee" || proof.Seed != "" {
		t.Fatalf("in-flight proof should carry only the commitment, got %+v", proof)
	}

	_, _ = m.LockRound(ctx, round.ID)
	_, _ = m.CompleteRound(ctx, round.ID, "Red", "seed-1", time.Now())

	proof, err = svc.Proof(ctx, round.ID)
	if err != nil {
		t.Fatalf("proof after complete: %v", err)
	}
	if proof.Seed != "seed-1" || proof.Outcome != "Red" {
		t.Fatalf("resolved proof should reveal the seed, got %+v", proof)
	}

	if _, err := svc.Proof(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestBalanceAndValidation(t *testing.T) {
	ctx := context.Background()
	svc, m := newService(t)
	_ = m.EnsureAccount(ctx, "acc1", 2_500)

	resp, err := svc.Balance(ctx, "acc1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if resp.AvailableCC != 2_500 {
		t.Fatalf("expected 2500, got %d", resp.AvailableCC)
	}
	if _, err := svc.Balance(ctx, ""); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := svc.Balance(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
