package crypto

import (
	"math/big"
)

// Mod returns a mod b in [0, b) for any integer a, using the Euclidean
// definition, so the result is non-negative regardless of the sign of a.
// The result is a freshly allocated integer.
// Panics if b is nil or not positive; callers validate the modulus where it
// enters the system.
func Mod(a *big.Int, b *big.Int) *big.Int {
	if b == nil || b.Sign() <= 0 {
		panic("crypto: modulus must be positive")
	}
	return new(big.Int).Mod(a, b)
}

// FieldAddInplace performs modular addition in-place: l = (l + r) mod base.
// Both operands must already be reduced into [0, base).
// The result is stored in l and also returned.
func FieldAddInplace(l *big.Int, r *big.Int, base *big.Int) *big.Int {
	l.Add(l, r)
	if l.Cmp(base) >= 0 {
		l.Sub(l, base)
	}
	return l
}

// FieldSubInplace performs modular subtraction in-place: l = (l - r) mod base.
// Both operands must already be reduced into [0, base).
// The result is stored in l and also returned.
func FieldSubInplace(l *big.Int, r *big.Int, base *big.Int) *big.Int {
	l.Sub(l, r)
	if l.Sign() < 0 {
		l.Add(l, base)
	}
	return l
}

// InRange reports whether 0 <= v < base.
func InRange(v *big.Int, base *big.Int) bool {
	return v != nil && v.Sign() >= 0 && v.Cmp(base) < 0
}
