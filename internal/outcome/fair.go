package outcome

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Fairness derives every locally generated outcome from
// HMAC-SHA256(serverSecret, roundID). The commitment (a hash of the round
// seed) goes out when the round opens and the seed itself is revealed with the
// result, so players can reproduce the draw after the fact but cannot predict
// it before.
type Fairness struct {
	secret []byte
}

func NewFairness(secret string) *Fairness {
	return &Fairness{secret: []byte(secret)}
}

// Seed is the per-round secret, revealed once the round resolves.
func (f *Fairness) Seed(roundID string) string {
	mac := hmac.New(sha256.New, f.secret)
	mac.Write([]byte(roundID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Commitment is published at round open; SHA-256 of the revealed seed must
// equal it for the round to verify.
func (f *Fairness) Commitment(roundID string) string {
	sum := sha256.Sum256([]byte(f.Seed(roundID)))
	return hex.EncodeToString(sum[:])
}

// Roll returns a uniform draw in [0,1) for the given round and nonce,
// reconstructible from the revealed seed alone.
func (f *Fairness) Roll(roundID string, nonce int) float64 {
	return RollFromSeed(f.Seed(roundID), nonce)
}

// RollFromSeed is the verification half of Roll: anyone holding the revealed
// seed computes the same value.
func RollFromSeed(seed string, nonce int) float64 {
	mac := hmac.New(sha256.New, []byte(seed))
	fmt.Fprintf(mac, "%d", nonce)
	sum := mac.Sum(nil)
	// First 52 bits, the precision of a float64 mantissa.
	v := binary.BigEndian.Uint64(sum[:8]) >> 12
	return float64(v) / float64(uint64(1)<<52)
}
