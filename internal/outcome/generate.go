package outcome

import (
	"fmt"
	"math"
)

// Generator turns fair rolls into concrete game outcomes.
type Generator struct {
	Fair *Fairness
}

func NewGenerator(f *Fairness) *Generator {
	return &Generator{Fair: f}
}

const (
	crashMaxX100 = 1_000_000 // 10000.00x cap
	wheelSectors = 15        // 1 gold, 7 red, 7 black
)

// Crash returns the round's crash multiplier in hundredths. The distribution
// is the standard inverse-CDF curve, P(crash >= x) ~= (1-edge)/x, then capped.
func (g *Generator) Crash(roundID string, edgeBPS int64) int64 {
	r := g.Fair.Roll(roundID, 0)
	edge := float64(edgeBPS) / 10_000
	m := (1 - edge) / (1 - r)
	if m < 1 {
		m = 1
	}
	x100 := int64(math.Floor(m * 100))
	if x100 > crashMaxX100 {
		x100 = crashMaxX100
	}
	return x100
}

// Color draws the wheel: sector 0 is gold, 1-7 red, 8-14 black. The sector
// and its parity ride along as secondary attributes so compound selections
// ("even", "sector 5") settle through the normal matching path.
func (g *Generator) Color(roundID string) Descriptor {
	r := g.Fair.Roll(roundID, 0)
	sector := int(r * wheelSectors)
	if sector >= wheelSectors {
		sector = wheelSectors - 1
	}
	winner := "black"
	switch {
	case sector == 0:
		winner = "gold"
	case sector <= 7:
		winner = "red"
	}
	parity := "even"
	if sector%2 == 1 {
		parity = "odd"
	}
	return Descriptor{
		Winner: winner,
		Attributes: []Attribute{
			{Name: "sector", Result: fmt.Sprintf("%d", sector)},
			{Name: "parity", Result: parity},
		},
	}
}

// JackpotEntry is one participant's total stake in a pooled draw.
type JackpotEntry struct {
	AccountID string
	StakeCC   int64
}

// JackpotWinner selects a participant with probability exactly proportional
// to stake share: the roll lands in [0, pot) and the cumulative walk assigns
// each entry a contiguous range of its own stake's width.
func (g *Generator) JackpotWinner(roundID string, entries []JackpotEntry) (string, bool) {
	var total int64
	for _, e := range entries {
		total += e.StakeCC
	}
	if total <= 0 {
		return "", false
	}
	r := g.Fair.Roll(roundID, 0)
	target := int64(r * float64(total))
	if target >= total {
		target = total - 1
	}
	var cum int64
	for _, e := range entries {
		cum += e.StakeCC
		if target < cum {
			return e.AccountID, true
		}
	}
	return entries[len(entries)-1].AccountID, true
}

// TilesBustStep returns how many reveals succeed before the mine for a
// tile-reveal round: a geometric draw with the given per-step survival odds.
func (g *Generator) TilesBustStep(roundID string, survivalBPS int64) int {
	p := float64(survivalBPS) / 10_000
	if p <= 0 || p >= 1 {
		p = 0.70
	}
	r := g.Fair.Roll(roundID, 0)
	if r <= 0 {
		return 0
	}
	// P(steps >= k) = p^k
	return int(math.Floor(math.Log(1-r) / math.Log(p)))
}
