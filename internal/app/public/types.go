package public

import (
	"time"

	"crimson-casino/internal/store"
)

type TableItem struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Game            store.GameKind `json:"game"`
	MinBetCC        int64          `json:"min_bet_cc"`
	MaxBetCC        int64          `json:"max_bet_cc"`
	AllowLay        bool           `json:"allow_lay"`
	SingleBet       bool           `json:"single_bet"`
	BettingWindowMS int64          `json:"betting_window_ms"`
}

type TablesResponse struct {
	Items []TableItem `json:"items"`
}

type RoundItem struct {
	ID           string         `json:"id"`
	TableID      string         `json:"table_id"`
	Game         store.GameKind `json:"game"`
	Seq          int64          `json:"seq"`
	Phase        store.Phase    `json:"phase"`
	OpenedAt     time.Time      `json:"opened_at,omitempty"`
	CloseAt      time.Time      `json:"close_at,omitempty"`
	ResolvedAt   *time.Time     `json:"resolved_at,omitempty"`
	PotCC        int64          `json:"pot_cc"`
	Participants int            `json:"participants"`
	Commitment   string         `json:"commitment,omitempty"`
	Outcome      string         `json:"outcome,omitempty"`
	Seed         string         `json:"seed,omitempty"`
}

type RoundsResponse struct {
	Items []RoundItem `json:"items"`
	Limit int         `json:"limit"`
}

type ProofResponse struct {
	RoundID    string     `json:"round_id"`
	Commitment string     `json:"commitment"`
	Seed       string     `json:"seed,omitempty"`
	Outcome    string     `json:"outcome,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

type BalanceResponse struct {
	AccountID   string    `json:"account_id"`
	AvailableCC int64     `json:"available_cc"`
	LockedCC    int64     `json:"locked_cc"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type LedgerItem struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Type      string    `json:"type"`
	AmountCC  int64     `json:"amount_cc"`
	RefType   string    `json:"ref_type,omitempty"`
	RefID     string    `json:"ref_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type LedgerResponse struct {
	Items []LedgerItem `json:"items"`
	Limit int          `json:"limit"`
}

type LeaderboardItem struct {
	AccountID string `json:"account_id"`
	NetCC     int64  `json:"net_cc"`
}

type LeaderboardResponse struct {
	Items []LeaderboardItem `json:"items"`
}
