package crypto

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGeneratePerturbations(t *testing.T) {
	base := big.NewInt(1023)
	peers := []string{"alice", "bob", "carol", "dave"}

	perturbations, err := GeneratePerturbations(NewSystemPRNG(), base, "bob", peers)
	require.NoError(t, err)

	require.Len(t, perturbations, 3)
	require.NotContains(t, perturbations, "bob")
	for _, peer := range []string{"alice", "carol", "dave"} {
		require.Contains(t, perturbations, peer)
		require.True(t, InRange(perturbations[peer], base), perturbations[peer])
	}
}

func TestGeneratePerturbationsSkipsDuplicates(t *testing.T) {
	perturbations, err := GeneratePerturbations(NewSystemPRNG(), big.NewInt(10), "a", []string{"b", "b", "a", "c"})
	require.NoError(t, err)
	require.Len(t, perturbations, 2)
}

func TestGeneratePerturbationsBaseOne(t *testing.T) {
	perturbations, err := GeneratePerturbations(NewSystemPRNG(), big.NewInt(1), "a", []string{"b", "c"})
	require.NoError(t, err)
	for _, p := range perturbations {
		require.Zero(t, p.Sign())
	}
}

func TestGeneratePerturbationsLargeBase(t *testing.T) {
	base, ok := new(big.Int).SetString("340282366920938463463374607431768211507", 10) // > 2^128
	require.True(t, ok)

	perturbations, err := GeneratePerturbations(NewSystemPRNG(), base, "self", []string{"p1", "p2", "p3"})
	require.NoError(t, err)
	require.Len(t, perturbations, 3)
	for _, p := range perturbations {
		require.True(t, InRange(p, base))
	}
}

func TestGeneratePerturbationsInvalidInput(t *testing.T) {
	_, err := GeneratePerturbations(nil, big.NewInt(10), "a", []string{"b"})
	require.Error(t, err)

	_, err = GeneratePerturbations(NewSystemPRNG(), big.NewInt(0), "a", []string{"b"})
	require.Error(t, err)

	_, err = GeneratePerturbations(NewSystemPRNG(), nil, "a", []string{"b"})
	require.Error(t, err)
}

func TestGeneratePerturbationsKeyedIsDeterministic(t *testing.T) {
	peers := []string{"p1", "p2", "p3"}
	base := big.NewInt(1 << 20)

	prng1, err := NewKeyedPRNG([]byte("seed"))
	require.NoError(t, err)
	prng2, err := NewKeyedPRNG([]byte("seed"))
	require.NoError(t, err)

	first, err := GeneratePerturbations(prng1, base, "self", peers)
	require.NoError(t, err)
	second, err := GeneratePerturbations(prng2, base, "self", peers)
	require.NoError(t, err)

	for _, peer := range peers {
		require.Zero(t, first[peer].Cmp(second[peer]), peer)
	}
}

func TestGeneratePerturbationsCoversRange(t *testing.T) {
	// With 4 possible values and 400 draws every value should show up.
	base := big.NewInt(4)
	peers := make([]string, 400)
	for i := range peers {
		peers[i] = big.NewInt(int64(i)).String()
	}

	perturbations, err := GeneratePerturbations(NewSystemPRNG(), base, "self", peers)
	require.NoError(t, err)

	seen := map[int64]bool{}
	for _, p := range perturbations {
		seen[p.Int64()] = true
	}
	require.Len(t, seen, 4)
}
