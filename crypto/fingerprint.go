package crypto

import (
	"encoding/hex"
	"math/big"
	"slices"

	"github.com/zeebo/blake3"
)

// RoundFingerprint identifies a round by its base and peer set. The peer
// order does not matter. Relays log it and audit records are grouped by it,
// so that reports from the same round can be matched without a round
// counter on the wire.
func RoundFingerprint(base *big.Int, peers []string) string {
	sorted := slices.Clone(peers)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	h := blake3.New()
	if base != nil {
		h.Write([]byte(base.String()))
	}
	for _, p := range sorted {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}

	return hex.EncodeToString(h.Sum(nil)[:16])
}
