package security

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"fmt"
	"math/big"

	"github.com/cimkeys/cim-keys/pkg/secretbuf"
)

// GenerateECDSAP256 derives a P-256 key pair from a 48-byte seed
// (spec §4.4): the first 32 bytes are interpreted as a big-endian
// integer and reduced as d mod (N-1) + 1, which always lands in
// [1, N-1], so no candidate is ever rejected. The remaining 16 seed
// bytes are read only by a defensive zero-scalar branch that this
// reduction never reaches. The public point is encoded in
// uncompressed SEC1 form.
func GenerateECDSAP256(seed *secretbuf.Buffer) (*KeyPair, error) {
	raw, err := seed.Expose()
	if err != nil {
		return nil, fmt.Errorf("security: expose ecdsa seed: %w", err)
	}
	if len(raw) != 48 {
		return nil, fmt.Errorf("%w: need 48 bytes, got %d", ErrSeedExhausted, len(raw))
	}

	curve := elliptic.P256()
	n := curve.Params().N
	nMinus1 := new(big.Int).Sub(n, big.NewInt(1))

	d := new(big.Int).SetBytes(raw[:32])
	d.Mod(d, nMinus1)
	d.Add(d, big.NewInt(1))

	if d.Sign() == 0 {
		// Effectively unreachable (d is in [1, N-1]) but kept as a
		// defensive rejection round matching the spec's description.
		h := sha256.Sum256(raw[32:])
		d = new(big.Int).SetBytes(h[:])
		d.Mod(d, nMinus1)
		d.Add(d, big.NewInt(1))
	}

	x, y := curve.ScalarBaseMult(d.Bytes())
	priv := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: curve, X: x, Y: y},
		D:         d,
	}

	pubBytes := elliptic.Marshal(curve, x, y)
	secretBytes := d.FillBytes(make([]byte, 32))

	return &KeyPair{
		Algorithm:   AlgorithmECDSAP256,
		PublicBytes: pubBytes,
		Secret:      secretbuf.FromBytes(secretBytes),
		Fingerprint: fingerprintOf(pubBytes),
	}, nil
}

// ECDSAPrivateKey reconstructs a *ecdsa.PrivateKey from a KeyPair
// produced by GenerateECDSAP256, for callers (X.509 issuance) that need
// the stdlib type rather than raw bytes.
func ECDSAPrivateKey(kp *KeyPair) (*ecdsa.PrivateKey, error) {
	if kp.Algorithm != AlgorithmECDSAP256 {
		return nil, &ErrUnsupported{Algorithm: kp.Algorithm}
	}
	secretBytes, err := kp.Secret.Expose()
	if err != nil {
		return nil, fmt.Errorf("security: expose ecdsa key: %w", err)
	}
	curve := elliptic.P256()
	d := new(big.Int).SetBytes(secretBytes)
	x, y := curve.ScalarBaseMult(secretBytes)
	return &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: curve, X: x, Y: y},
		D:         d,
	}, nil
}
