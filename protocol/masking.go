package protocol

import (
	"fmt"
	"math/big"

	"github.com/mbiss10/secure-aggregation/crypto"
)

// ComputeMaskedValue blinds value with the pairwise perturbations:
//
//	mod(value + Σ_peer mod(sent[peer] - received[peer], base), base)
//
// sent holds the masks this participant generated for each peer, received
// the masks each peer generated for this participant. Both maps must cover
// exactly the same peers, otherwise ErrDataConsistency is returned. self is
// skipped if present in either map.
//
// Summed over all participants the pairwise terms cancel, so the relay's sum
// of masked values mod base equals the sum of private values mod base.
func ComputeMaskedValue(base *big.Int, value *big.Int, self string, sent, received map[string]*big.Int) (*big.Int, error) {
	if base == nil || base.Sign() <= 0 {
		return nil, fmt.Errorf("%w: base must be positive", ErrMalformedPayload)
	}
	if value == nil {
		return nil, ErrMissingPrivateValue
	}

	for peer := range sent {
		if peer == self {
			continue
		}
		if _, ok := received[peer]; !ok {
			return nil, fmt.Errorf("%w: no perturbation received from %s", ErrDataConsistency, peer)
		}
	}

	// Every term is reduced into [0, base) before it is accumulated, so the
	// running total never leaves the field.
	total := big.NewInt(0)
	for peer, r := range received {
		if peer == self {
			continue
		}
		s, ok := sent[peer]
		if !ok {
			return nil, fmt.Errorf("%w: perturbation received from unknown peer %s", ErrDataConsistency, peer)
		}
		if r == nil || s == nil {
			return nil, fmt.Errorf("%w: null perturbation for %s", ErrDataConsistency, peer)
		}

		pair := crypto.FieldSubInplace(crypto.Mod(s, base), crypto.Mod(r, base), base)
		crypto.FieldAddInplace(total, pair, base)
	}

	return crypto.FieldAddInplace(total, crypto.Mod(value, base), base), nil
}
