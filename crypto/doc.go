// Package crypto provides the arithmetic and randomness used by the
// secure-sum protocol.
//
//   - Euclidean modular reduction (Mod) and in-place modular add/sub for
//     operands already reduced into [0, base)
//   - Randomness sources: the system CSPRNG and a keyed, deterministic
//     blake2b XOF stream for reproducible runs
//   - The perturbation generator, drawing one uniform mask in [0, base) per
//     peer
//   - A blake3 round fingerprint over the base and peer set
//
// Note: none of the big.Int arithmetic here is constant-time.
package crypto
