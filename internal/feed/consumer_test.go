package feed

import "testing"

func TestParseRecord(t *testing.T) {
	cases := []struct {
		name        string
		key, value  string
		wantKey     string
		wantOutcome string
	}{
		{"json body", "", `{"feed_key":"baccarat-1","outcome":"Banker#Total : 8"}`, "baccarat-1", "Banker#Total : 8"},
		{"key value pair", "baccarat-1", "Player#Total : 6", "baccarat-1", "Player#Total : 6"},
		{"json wins over key", "other", `{"feed_key":"baccarat-1","outcome":"Tie"}`, "baccarat-1", "Tie"},
		{"partial json falls back", "baccarat-1", `{"feed_key":"x"}`, "baccarat-1", `{"feed_key":"x"}`},
		{"whitespace trimmed", " baccarat-1 ", " Banker ", "baccarat-1", "Banker"},
		{"empty", "", "", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, outcome := parseRecord([]byte(tc.key), []byte(tc.value))
			if key != tc.wantKey || outcome != tc.wantOutcome {
				t.Fatalf("expected %q/%q, got %q/%q", tc.wantKey, tc.wantOutcome, key, outcome)
			}
		})
	}
}
