package hub

import (
	"time"

	"crimson-casino/internal/store"
)

type EventType string

const (
	EventRoundUpdate  EventType = "round_update"
	EventBetUpdate    EventType = "bet_update"
	EventPlayerAction EventType = "player_action"
	EventResult       EventType = "result"
)

// Event is the wire unit pushed to observers. IDs are ULIDs so clients can
// apply duplicates idempotently and order non-causal events however they
// arrive.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	TableID    string    `json:"table_id"`
	RoundID    string    `json:"round_id,omitempty"`
	Payload    any       `json:"payload"`
	ServerTime time.Time `json:"server_time"`
	Origin     string    `json:"origin,omitempty"`
}

// Publisher is what the engine, the bet service and the settler see: fire and
// forget. The hub implements it; tests swap in a recorder.
type Publisher interface {
	Publish(ev Event)
}

// NopPublisher drops everything; handy default for tests and tools.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}

type RoundPayload struct {
	Phase        store.Phase `json:"phase"`
	Seq          int64       `json:"seq"`
	OpenedAt     time.Time   `json:"opened_at,omitempty"`
	CloseAt      time.Time   `json:"close_at,omitempty"`
	PotCC        int64       `json:"pot_cc"`
	Participants int         `json:"participants"`
	Commitment   string      `json:"commitment,omitempty"`
	Outcome      string      `json:"outcome,omitempty"`
	Seed         string      `json:"seed,omitempty"`
	Multiplier   int64       `json:"multiplier_x100,omitempty"`
}

type BetPayload struct {
	BetID     string          `json:"bet_id"`
	AccountID string          `json:"account_id"`
	Selection string          `json:"selection"`
	Side      store.BetSide   `json:"side"`
	StakeCC   int64           `json:"stake_cc"`
	Status    store.BetStatus `json:"status"`
	PayoutCC  int64           `json:"payout_cc,omitempty"`
}

func NewEvent(t EventType, tableID, roundID string, payload any) Event {
	return Event{
		ID:         store.NewID(),
		Type:       t,
		TableID:    tableID,
		RoundID:    roundID,
		Payload:    payload,
		ServerTime: time.Now().UTC(),
	}
}

func RoundEvent(t EventType, r *store.Round) Event {
	p := RoundPayload{
		Phase:        r.Phase,
		Seq:          r.Seq,
		OpenedAt:     r.OpenedAt,
		CloseAt:      r.CloseAt,
		PotCC:        r.PotCC,
		Participants: r.Participants,
		Commitment:   r.Commitment,
		Seed:         r.Seed,
	}
	if r.Outcome != nil {
		p.Outcome = *r.Outcome
	}
	return NewEvent(t, r.TableID, r.ID, p)
}

func BetEvent(t EventType, tableID string, b *store.Bet) Event {
	p := BetPayload{
		BetID:     b.ID,
		AccountID: b.AccountID,
		Selection: b.Selection,
		Side:      b.Side,
		StakeCC:   b.StakeCC,
		Status:    b.Status,
	}
	if b.PayoutCC != nil {
		p.PayoutCC = *b.PayoutCC
	}
	return NewEvent(t, tableID, b.RoundID, p)
}
