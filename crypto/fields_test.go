package crypto

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMod(t *testing.T) {
	tests := []struct {
		a, b, want int64
	}{
		{0, 1, 0},
		{30, 100, 30},
		{117, 100, 17},
		{-13, 100, 87},
		{-100, 100, 0},
		{-101, 100, 99},
		{7 - 20, 100, 87},
		{20 - 7, 100, 13},
		{-1, 1023, 1022},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, Mod(big.NewInt(tt.a), big.NewInt(tt.b)).Int64(), "mod(%d, %d)", tt.a, tt.b)
	}
}

func TestModDoesNotAlias(t *testing.T) {
	a := big.NewInt(-5)
	r := Mod(a, big.NewInt(3))
	require.Equal(t, int64(1), r.Int64())
	require.Equal(t, int64(-5), a.Int64())
}

func TestModRejectsNonPositiveBase(t *testing.T) {
	require.Panics(t, func() { Mod(big.NewInt(1), big.NewInt(0)) })
	require.Panics(t, func() { Mod(big.NewInt(1), big.NewInt(-7)) })
	require.Panics(t, func() { Mod(big.NewInt(1), nil) })
}

func TestInRange(t *testing.T) {
	base := big.NewInt(10)
	require.True(t, InRange(big.NewInt(0), base))
	require.True(t, InRange(big.NewInt(9), base))
	require.False(t, InRange(big.NewInt(10), base))
	require.False(t, InRange(big.NewInt(-1), base))
	require.False(t, InRange(nil, base))
}

func bigInt(v int64) *big.Int {
	return big.NewInt(v)
}
