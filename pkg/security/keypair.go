package security

import (
	"crypto/sha256"
	"fmt"

	"github.com/cimkeys/cim-keys/pkg/secretbuf"
)

// Algorithm identifies a supported key algorithm.
type Algorithm string

const (
	AlgorithmEd25519   Algorithm = "ed25519"
	AlgorithmECDSAP256 Algorithm = "ecdsa-p256"
	AlgorithmRSA2048   Algorithm = "rsa-2048"
	AlgorithmRSA4096   Algorithm = "rsa-4096"
)

// ErrUnsupported is returned for an algorithm a generator does not
// implement.
type ErrUnsupported struct{ Algorithm Algorithm }

func (e *ErrUnsupported) Error() string {
	return fmt.Sprintf("security: unsupported algorithm %q", e.Algorithm)
}

// ErrSeedExhausted is returned when a deterministic seed stream runs
// out of bytes before a generator is satisfied.
var ErrSeedExhausted = fmt.Errorf("security: seed exhausted")

// ErrSigningFailed wraps a lower-level signing failure.
type ErrSigningFailed struct{ Err error }

func (e *ErrSigningFailed) Error() string { return fmt.Sprintf("security: signing failed: %v", e.Err) }
func (e *ErrSigningFailed) Unwrap() error { return e.Err }

// KeyPair is the spec §3 "Key pair" record: an algorithm, its public
// encoding, its secret encoding (held only in a secret buffer), and
// the SHA-256 fingerprint of the canonical public encoding.
type KeyPair struct {
	Algorithm   Algorithm
	PublicBytes []byte
	Secret      *secretbuf.Buffer
	Fingerprint [32]byte
}

// FingerprintHex returns the lowercase hex encoding of Fingerprint, the
// form spec §8's seed scenarios assert against.
func (k KeyPair) FingerprintHex() string {
	return fmt.Sprintf("%x", k.Fingerprint)
}

func fingerprintOf(publicBytes []byte) [32]byte {
	return sha256.Sum256(publicBytes)
}
