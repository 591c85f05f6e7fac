package config

import (
	"encoding/json"
	"fmt"
	"time"

	"crimson-casino/internal/store"
)

// TableConfig defines one game table: its timing, stake limits, odds and
// capabilities. Durations are milliseconds in the JSON form.
type TableConfig struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Game store.GameKind `json:"game"`

	BettingWindowMS int64 `json:"betting_window_ms"`
	CooldownMS      int64 `json:"cooldown_ms"`

	MinBetCC int64 `json:"min_bet_cc"`
	MaxBetCC int64 `json:"max_bet_cc"`

	// Lay bets only exist on tables that opt in; everywhere else the side is
	// forced to back at placement.
	AllowLay  bool `json:"allow_lay"`
	SingleBet bool `json:"single_bet"`

	// Win multipliers x100 keyed by normalized selection; DefaultOddsX100
	// covers anything unkeyed, LayOddsX100 covers the lay side.
	Odds            map[string]int64 `json:"odds,omitempty"`
	DefaultOddsX100 int64            `json:"default_odds_x100"`
	LayOddsX100     int64            `json:"lay_odds_x100,omitempty"`

	EdgeBPS     int64 `json:"edge_bps,omitempty"`     // crash house edge
	SurvivalBPS int64 `json:"survival_bps,omitempty"` // tiles per-step survival
	RakeBPS     int64 `json:"rake_bps,omitempty"`     // jackpot house rake

	// FeedKey maps externally-sourced tables to their outcome feed messages.
	FeedKey string `json:"feed_key,omitempty"`
}

func (t TableConfig) BettingWindow() time.Duration {
	return time.Duration(t.BettingWindowMS) * time.Millisecond
}

func (t TableConfig) Cooldown() time.Duration {
	return time.Duration(t.CooldownMS) * time.Millisecond
}

// OddsFor resolves the win multiplier for a selection and side.
func (t TableConfig) OddsFor(selection string, side store.BetSide) int64 {
	if side == store.SideLay {
		if t.LayOddsX100 > 0 {
			return t.LayOddsX100
		}
		return 200
	}
	if o, ok := t.Odds[selection]; ok {
		return o
	}
	if t.DefaultOddsX100 > 0 {
		return t.DefaultOddsX100
	}
	return 200
}

func (t TableConfig) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("table id required")
	}
	switch t.Game {
	case store.GameCrash, store.GameColor, store.GameJackpot, store.GameTiles, store.GameLive:
	default:
		return fmt.Errorf("table %s: unknown game %q", t.ID, t.Game)
	}
	if t.BettingWindowMS <= 0 {
		return fmt.Errorf("table %s: betting window required", t.ID)
	}
	if t.MinBetCC <= 0 || t.MaxBetCC < t.MinBetCC {
		return fmt.Errorf("table %s: bad stake limits %d/%d", t.ID, t.MinBetCC, t.MaxBetCC)
	}
	if t.Game == store.GameLive && t.FeedKey == "" {
		return fmt.Errorf("table %s: live table needs a feed key", t.ID)
	}
	return nil
}

// LoadTables parses TABLES_JSON, falling back to the default floor.
func LoadTables(raw string) ([]TableConfig, error) {
	if raw == "" {
		return DefaultTables(), nil
	}
	var tables []TableConfig
	if err := json.Unmarshal([]byte(raw), &tables); err != nil {
		return nil, fmt.Errorf("parse TABLES_JSON: %w", err)
	}
	for _, t := range tables {
		if err := t.Validate(); err != nil {
			return nil, err
		}
	}
	return tables, nil
}

// DefaultTables is the out-of-the-box floor: one table per game kind.
func DefaultTables() []TableConfig {
	return []TableConfig{
		{
			ID: "crash-main", Name: "Rocket", Game: store.GameCrash,
			BettingWindowMS: 8_000, CooldownMS: 4_000,
			MinBetCC: 100, MaxBetCC: 100_000,
			EdgeBPS: 300,
		},
		{
			ID: "color-main", Name: "Color Wheel", Game: store.GameColor,
			BettingWindowMS: 15_000, CooldownMS: 5_000,
			MinBetCC: 50, MaxBetCC: 50_000,
			Odds:            map[string]int64{"red": 200, "black": 200, "gold": 1400},
			DefaultOddsX100: 200,
		},
		{
			ID: "jackpot-main", Name: "Pot of Gold", Game: store.GameJackpot,
			BettingWindowMS: 30_000, CooldownMS: 8_000,
			MinBetCC: 100, MaxBetCC: 500_000,
			SingleBet: true, RakeBPS: 500,
		},
		{
			ID: "tiles-main", Name: "Minefield", Game: store.GameTiles,
			BettingWindowMS: 10_000, CooldownMS: 5_000,
			MinBetCC: 100, MaxBetCC: 50_000,
			SurvivalBPS: 7000,
		},
		{
			ID: "live-baccarat", Name: "Live Baccarat", Game: store.GameLive,
			BettingWindowMS: 20_000, CooldownMS: 10_000,
			MinBetCC: 100, MaxBetCC: 200_000,
			AllowLay: true, DefaultOddsX100: 200, LayOddsX100: 200,
			FeedKey: "baccarat-1",
		},
	}
}
