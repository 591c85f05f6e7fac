package store

import "github.com/oklog/ulid/v2"

// NewID returns a lexicographically sortable unique id. Rounds, bets,
// ledger entries and hub events all share this format so logs and event
// streams order naturally by creation time.
func NewID() string {
	return ulid.Make().String()
}
