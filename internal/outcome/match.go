package outcome

import (
	"strings"

	"crimson-casino/internal/store"
)

// Normalize trims and case-folds a selection so bets and feed tokens compare
// on equal footing.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Matches reports whether the selection names this outcome: exact against the
// primary winner first, then exact against each secondary attribute's name or
// result, then a substring fallback for compound results like "Over 21(32)".
func (d Descriptor) Matches(selection string) bool {
	sel := Normalize(selection)
	if sel == "" {
		return false
	}
	if sel == Normalize(d.Winner) {
		return true
	}
	for _, a := range d.Attributes {
		if sel == Normalize(a.Name) || sel == Normalize(a.Result) {
			return true
		}
	}
	for _, a := range d.Attributes {
		if strings.Contains(Normalize(a.Result), sel) || strings.Contains(Normalize(a.Name), sel) {
			return true
		}
	}
	return false
}

// Wins applies back/lay semantics: a back bet wins when the selection occurs,
// a lay bet wins when it does not. An empty descriptor matches nothing, so
// backs lose and lays win; callers void rounds rather than settle against an
// empty descriptor unless retries are exhausted.
func Wins(d Descriptor, selection string, side store.BetSide) bool {
	matched := d.Matches(selection)
	if side == store.SideLay {
		return !matched
	}
	return matched
}
