package store

import "time"

type GameKind string

const (
	GameCrash   GameKind = "crash"
	GameColor   GameKind = "color"
	GameJackpot GameKind = "jackpot"
	GameTiles   GameKind = "tiles"
	GameLive    GameKind = "live"
)

type Phase string

const (
	PhaseScheduled Phase = "scheduled"
	PhaseOpen      Phase = "open"
	PhaseLocked    Phase = "locked"
	PhaseCompleted Phase = "completed"
	PhaseVoided    Phase = "voided"
)

// Terminal reports whether a round in this phase can no longer change.
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseVoided
}

type BetStatus string

const (
	BetPending BetStatus = "pending"
	BetWon     BetStatus = "won"
	BetLost    BetStatus = "lost"
	BetVoided  BetStatus = "voided"
)

type BetSide string

const (
	SideBack BetSide = "back"
	SideLay  BetSide = "lay"
)

type Table struct {
	ID        string
	Name      string
	Game      GameKind
	Status    string
	MinBetCC  int64
	MaxBetCC  int64
	CreatedAt time.Time
}

type Round struct {
	ID           string
	TableID      string
	Game         GameKind
	Seq          int64
	Phase        Phase
	Commitment   string
	Seed         string
	Outcome      *string
	OpenedAt     time.Time
	CloseAt      time.Time
	ResolvedAt   *time.Time
	PotCC        int64
	Participants int
	CreatedAt    time.Time
}

type Bet struct {
	ID          string
	RoundID     string
	AccountID   string
	Selection   string
	Side        BetSide
	StakeCC     int64
	Status      BetStatus
	PayoutCC    *int64
	AutoCashout int64 // multiplier x100, 0 when unset
	LockedStake bool
	CreatedAt   time.Time
	SettledAt   *time.Time
}

type Account struct {
	ID          string
	AvailableCC int64
	LockedCC    int64
	UpdatedAt   time.Time
}

type LedgerEntry struct {
	ID        string
	AccountID string
	Type      string
	AmountCC  int64
	RefType   string
	RefID     string
	CreatedAt time.Time
}

type LeaderboardEntry struct {
	AccountID string
	NetCC     int64
}
