package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

// GeneratePerturbations draws one mask per peer, independently and
// uniformly over [0, base). The participant's own identifier and duplicate
// peer identifiers are skipped, so the result holds exactly one entry per
// distinct peer other than self.
//
// rand.Int rejection-samples, so there is no modulo bias even when base is
// not a power of two.
func GeneratePerturbations(prng PRNG, base *big.Int, self string, peers []string) (map[string]*big.Int, error) {
	if prng == nil {
		return nil, errors.New("prng cannot be nil")
	}
	if base == nil || base.Sign() <= 0 {
		return nil, errors.New("base must be positive")
	}

	perturbations := make(map[string]*big.Int, len(peers))
	for _, peer := range peers {
		if peer == self {
			continue
		}
		if _, seen := perturbations[peer]; seen {
			continue
		}

		mask, err := rand.Int(prng, base)
		if err != nil {
			return nil, fmt.Errorf("could not sample perturbation for %s: %w", peer, err)
		}
		perturbations[peer] = mask
	}

	return perturbations, nil
}
