package crypto

import (
	"crypto/rand"
	"io"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// PRNG is a source of random bytes for perturbation sampling.
type PRNG interface {
	io.Reader
}

// SystemPRNG reads from the operating system CSPRNG. Safe for concurrent use.
type SystemPRNG struct{}

// NewSystemPRNG returns the default randomness source.
func NewSystemPRNG() *SystemPRNG {
	return &SystemPRNG{}
}

// Read fills p with bytes from crypto/rand.
func (SystemPRNG) Read(p []byte) (int, error) {
	return rand.Read(p)
}

// KeyedPRNG deterministically expands a key into a byte stream with the
// blake2b XOF. Two instances built from the same key produce the same
// perturbations, which is what tests and reproducible demos want.
// It must never be used with a key an adversary could guess.
type KeyedPRNG struct {
	mu  sync.Mutex
	xof blake2b.XOF
}

// NewKeyedPRNG creates a KeyedPRNG. Keys longer than 64 bytes are rejected
// by blake2b.
func NewKeyedPRNG(key []byte) (*KeyedPRNG, error) {
	xof, err := blake2b.NewXOF(blake2b.OutputLengthUnknown, key)
	if err != nil {
		return nil, err
	}
	return &KeyedPRNG{xof: xof}, nil
}

// Read reads the next len(b) bytes of the stream.
func (p *KeyedPRNG) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.xof.Read(b)
}
