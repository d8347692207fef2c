package protocol

import (
	"math/big"
	"testing"

	"github.com/mbiss10/secure-aggregation/crypto"
	"github.com/stretchr/testify/require"
)

func ints(m map[string]int64) map[string]*big.Int {
	out := make(map[string]*big.Int, len(m))
	for k, v := range m {
		out[k] = big.NewInt(v)
	}
	return out
}

func TestComputeMaskedValueTwoParticipants(t *testing.T) {
	base := big.NewInt(100)

	// S_12 = 7 generated by 1 for 2, S_21 = 20 generated by 2 for 1
	m1, err := ComputeMaskedValue(base, big.NewInt(30), "1", ints(map[string]int64{"2": 7}), ints(map[string]int64{"2": 20}))
	require.NoError(t, err)
	require.Equal(t, int64(17), m1.Int64())

	m2, err := ComputeMaskedValue(base, big.NewInt(45), "2", ints(map[string]int64{"1": 20}), ints(map[string]int64{"1": 7}))
	require.NoError(t, err)
	require.Equal(t, int64(58), m2.Int64())

	sum := crypto.Mod(new(big.Int).Add(m1, m2), base)
	require.Equal(t, int64(75), sum.Int64())
}

func TestComputeMaskedValueSkipsSelf(t *testing.T) {
	base := big.NewInt(100)
	m, err := ComputeMaskedValue(base, big.NewInt(30), "1",
		ints(map[string]int64{"2": 7}),
		ints(map[string]int64{"2": 20, "1": 55}))
	require.NoError(t, err)
	require.Equal(t, int64(17), m.Int64())
}

func TestComputeMaskedValueNoPeers(t *testing.T) {
	m, err := ComputeMaskedValue(big.NewInt(10), big.NewInt(13), "solo", map[string]*big.Int{}, map[string]*big.Int{})
	require.NoError(t, err)
	require.Equal(t, int64(3), m.Int64())
}

func TestComputeMaskedValueNegativeValue(t *testing.T) {
	m, err := ComputeMaskedValue(big.NewInt(10), big.NewInt(-3), "a", ints(map[string]int64{"b": 0}), ints(map[string]int64{"b": 0}))
	require.NoError(t, err)
	require.Equal(t, int64(7), m.Int64())
}

func TestComputeMaskedValueDataConsistency(t *testing.T) {
	base := big.NewInt(100)

	t.Run("received from unknown peer", func(t *testing.T) {
		_, err := ComputeMaskedValue(base, big.NewInt(1), "1",
			ints(map[string]int64{"2": 7}),
			ints(map[string]int64{"2": 20, "3": 4}))
		require.ErrorIs(t, err, ErrDataConsistency)
	})

	t.Run("missing received entry", func(t *testing.T) {
		_, err := ComputeMaskedValue(base, big.NewInt(1), "1",
			ints(map[string]int64{"2": 7, "3": 1}),
			ints(map[string]int64{"2": 20}))
		require.ErrorIs(t, err, ErrDataConsistency)
	})

	t.Run("null entry", func(t *testing.T) {
		_, err := ComputeMaskedValue(base, big.NewInt(1), "1",
			ints(map[string]int64{"2": 7}),
			map[string]*big.Int{"2": nil})
		require.ErrorIs(t, err, ErrDataConsistency)
	})
}

func TestComputeMaskedValueMissingInputs(t *testing.T) {
	_, err := ComputeMaskedValue(big.NewInt(10), nil, "a", nil, nil)
	require.ErrorIs(t, err, ErrMissingPrivateValue)

	_, err = ComputeMaskedValue(big.NewInt(0), big.NewInt(1), "a", nil, nil)
	require.Error(t, err)
}

func TestComputeMaskedValueOrderIndependent(t *testing.T) {
	base := big.NewInt(1009)
	sent := ints(map[string]int64{"a": 1000, "b": 3, "c": 512, "d": 77, "e": 0})
	received := ints(map[string]int64{"a": 4, "b": 999, "c": 512, "d": 1008, "e": 600})

	first, err := ComputeMaskedValue(base, big.NewInt(321), "self", sent, received)
	require.NoError(t, err)

	// Go randomizes map iteration, so repeated runs exercise different orders.
	for i := 0; i < 50; i++ {
		again, err := ComputeMaskedValue(base, big.NewInt(321), "self", sent, received)
		require.NoError(t, err)
		require.Zero(t, first.Cmp(again))
	}

	// Reference computation accumulating in a fixed order.
	expected := big.NewInt(321)
	for _, peer := range []string{"e", "d", "c", "b", "a"} {
		expected.Add(expected, crypto.Mod(new(big.Int).Sub(sent[peer], received[peer]), base))
	}
	require.Zero(t, crypto.Mod(expected, base).Cmp(first))
}

// Full pairwise exchange without a relay: every mask u draws for v is what
// v receives from u.
func TestMaskCancellation(t *testing.T) {
	base := big.NewInt(10)
	values := map[string]int64{"p1": 2, "p2": 5, "p3": 9}
	ids := []string{"p1", "p2", "p3"}

	sent := make(map[string]map[string]*big.Int)
	for _, id := range ids {
		s, err := crypto.GeneratePerturbations(crypto.NewSystemPRNG(), base, id, ids)
		require.NoError(t, err)
		sent[id] = s
	}

	sum := big.NewInt(0)
	for _, id := range ids {
		received := make(map[string]*big.Int)
		for _, from := range ids {
			if from != id {
				received[from] = sent[from][id]
			}
		}
		masked, err := ComputeMaskedValue(base, big.NewInt(values[id]), id, sent[id], received)
		require.NoError(t, err)
		require.True(t, crypto.InRange(masked, base))
		sum.Add(sum, masked)
	}

	require.Equal(t, int64(6), crypto.Mod(sum, base).Int64())
}
