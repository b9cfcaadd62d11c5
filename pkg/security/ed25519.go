package security

import (
	"crypto/ed25519"
	"fmt"

	"github.com/cimkeys/cim-keys/pkg/secretbuf"
)

// GenerateEd25519 derives an Ed25519 key pair from a 32-byte seed.
// Fingerprint is SHA-256 of the 32-byte public key (spec §4.4).
func GenerateEd25519(seed *secretbuf.Buffer) (*KeyPair, error) {
	raw, err := seed.Expose()
	if err != nil {
		return nil, fmt.Errorf("security: expose ed25519 seed: %w", err)
	}
	if len(raw) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrSeedExhausted, ed25519.SeedSize, len(raw))
	}

	priv := ed25519.NewKeyFromSeed(raw)
	pub := priv.Public().(ed25519.PublicKey)

	return &KeyPair{
		Algorithm:   AlgorithmEd25519,
		PublicBytes: []byte(pub),
		Secret:      secretbuf.FromBytes([]byte(priv)),
		Fingerprint: fingerprintOf([]byte(pub)),
	}, nil
}
