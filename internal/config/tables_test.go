package config

import (
	"testing"

	"crimson-casino/internal/store"
)

func TestDefaultTablesValidate(t *testing.T) {
	for _, tc := range DefaultTables() {
		if err := tc.Validate(); err != nil {
			t.Errorf("default table %s invalid: %v", tc.ID, err)
		}
	}
}

func TestLoadTablesFromJSON(t *testing.T) {
	raw := `[{"id":"x","name":"X","game":"color","betting_window_ms":1000,"cooldown_ms":500,"min_bet_cc":10,"max_bet_cc":100,"default_odds_x100":200}]`
	tables, err := LoadTables(raw)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(tables) != 1 || tables[0].ID != "x" {
		t.Fatalf("unexpected tables: %+v", tables)
	}
}

func TestLoadTablesRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"bad json", `{`},
		{"unknown game", `[{"id":"x","game":"roulette","betting_window_ms":1000,"min_bet_cc":1,"max_bet_cc":10}]`},
		{"no window", `[{"id":"x","game":"color","min_bet_cc":1,"max_bet_cc":10}]`},
		{"inverted limits", `[{"id":"x","game":"color","betting_window_ms":1000,"min_bet_cc":100,"max_bet_cc":10}]`},
		{"live without feed", `[{"id":"x","game":"live","betting_window_ms":1000,"min_bet_cc":1,"max_bet_cc":10}]`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadTables(tc.raw); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestOddsForFallsBack(t *testing.T) {
	tc := TableConfig{
		Odds:            map[string]int64{"red": 200, "gold": 1400},
		DefaultOddsX100: 300,
		LayOddsX100:     150,
	}
	if got := tc.OddsFor("gold", store.SideBack); got != 1400 {
		t.Fatalf("keyed odds: got %d", got)
	}
	if got := tc.OddsFor("mystery", store.SideBack); got != 300 {
		t.Fatalf("default odds: got %d", got)
	}
	if got := tc.OddsFor("red", store.SideLay); got != 150 {
		t.Fatalf("lay odds: got %d", got)
	}
}
