package security

import (
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/binary"
	"fmt"
	"io"
	"math/big"

	"github.com/cimkeys/cim-keys/pkg/secretbuf"
)

// rsaMillerRabinRounds is the number of Miller-Rabin rounds run against
// every prime candidate (spec §4.4).
const rsaMillerRabinRounds = 64

// rsaPublicExponent is the fixed public exponent (spec §4.4).
const rsaPublicExponent = 65537

// drbg is a deterministic HMAC-SHA256 counter-mode byte stream keyed by
// subkey material. It implements io.Reader so it can stand in for
// crypto/rand.Reader anywhere a generator needs "randomness" that must
// in fact be perfectly reproducible. State (the counter) advances with
// every Read and is never reseeded mid-search, matching spec §4.4's
// "the DRBG state is advanced, not reseeded, between rejection
// attempts."
type drbg struct {
	key     []byte
	counter uint64
	block   []byte
}

func newDRBG(key []byte) *drbg {
	return &drbg{key: key}
}

func (d *drbg) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(d.block) == 0 {
			var ctr [8]byte
			binary.BigEndian.PutUint64(ctr[:], d.counter)
			d.counter++
			mac := hmac.New(sha256.New, d.key)
			mac.Write(ctr[:])
			d.block = mac.Sum(nil)
		}
		copied := copy(p[n:], d.block)
		d.block = d.block[copied:]
		n += copied
	}
	return n, nil
}

// GenerateRSA derives an RSA key pair of the given bit size from seed
// via a deterministic HMAC-SHA256 DRBG (spec §4.4): primes are found
// by rejection search against a continuous deterministic byte stream,
// each candidate tested with 64 rounds of Miller-Rabin, public
// exponent fixed at 65537.
func GenerateRSA(seed *secretbuf.Buffer, bits int) (*KeyPair, error) {
	if bits != 2048 && bits != 4096 {
		return nil, &ErrUnsupported{Algorithm: Algorithm(fmt.Sprintf("rsa-%d", bits))}
	}
	raw, err := seed.Expose()
	if err != nil {
		return nil, fmt.Errorf("security: expose rsa seed: %w", err)
	}

	rng := newDRBG(raw)
	priv, err := generateDeterministicRSA(rng, bits)
	if err != nil {
		return nil, &ErrSigningFailed{Err: err}
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("security: marshal rsa public key: %w", err)
	}

	algo := AlgorithmRSA2048
	if bits == 4096 {
		algo = AlgorithmRSA4096
	}

	privDER := x509.MarshalPKCS1PrivateKey(priv)

	return &KeyPair{
		Algorithm:   algo,
		PublicBytes: pubDER,
		Secret:      secretbuf.FromBytes(privDER),
		Fingerprint: fingerprintOf(pubDER),
	}, nil
}

// generateDeterministicRSA generates a two-prime RSA key, pulling all
// randomness from rng and testing every candidate with
// rsaMillerRabinRounds rounds of Miller-Rabin (big.Int.ProbablyPrime).
func generateDeterministicRSA(rng io.Reader, bits int) (*rsa.PrivateKey, error) {
	primeBits := bits / 2
	e := big.NewInt(rsaPublicExponent)

	for {
		p, err := deterministicPrime(rng, primeBits)
		if err != nil {
			return nil, err
		}
		q, err := deterministicPrime(rng, primeBits)
		if err != nil {
			return nil, err
		}
		if p.Cmp(q) == 0 {
			continue
		}

		n := new(big.Int).Mul(p, q)
		if n.BitLen() != bits {
			continue
		}

		pMinus1 := new(big.Int).Sub(p, big.NewInt(1))
		qMinus1 := new(big.Int).Sub(q, big.NewInt(1))
		phi := new(big.Int).Mul(pMinus1, qMinus1)

		if new(big.Int).GCD(nil, nil, e, phi).Cmp(big.NewInt(1)) != 0 {
			continue
		}

		d := new(big.Int).ModInverse(e, phi)
		if d == nil {
			continue
		}

		priv := &rsa.PrivateKey{
			PublicKey: rsa.PublicKey{N: n, E: int(e.Int64())},
			D:         d,
			Primes:    []*big.Int{p, q},
		}
		priv.Precompute()
		return priv, nil
	}
}

// deterministicPrime draws bit-length-bits odd candidates from rng
// until one survives rsaMillerRabinRounds rounds of Miller-Rabin.
func deterministicPrime(rng io.Reader, bits int) (*big.Int, error) {
	if bits < 2 {
		return nil, fmt.Errorf("security: prime bit length %d too small", bits)
	}
	bytesLen := (bits + 7) / 8
	buf := make([]byte, bytesLen)

	for {
		if _, err := io.ReadFull(rng, buf); err != nil {
			return nil, fmt.Errorf("security: read drbg: %w", err)
		}
		candidate := new(big.Int).SetBytes(buf)
		candidate.SetBit(candidate, bits-1, 1) // top bit set: exact bit length
		candidate.SetBit(candidate, 0, 1)      // odd

		if candidate.ProbablyPrime(rsaMillerRabinRounds) {
			return candidate, nil
		}
	}
}
