package seed

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/cimkeys/cim-keys/pkg/secretbuf"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

// MinPassphraseRunes is the minimum passphrase length, in Unicode code
// points, that callers must enforce before calling DeriveMasterSeed.
const MinPassphraseRunes = 12

const (
	kdfMemoryKiB  = 1 << 20 // 1 GiB, spec §4.3 default
	kdfIterations = 3
	kdfParallel   = 1
	saltPrefix    = "cim-keys:v1:"
)

// MasterSeedLen is the length, in bytes, of a derived master seed.
const MasterSeedLen = 32

// ErrWeak is returned when the passphrase falls below MinPassphraseRunes.
var ErrWeak = errors.New("seed: passphrase below minimum entropy")

// ErrKdfFailure is returned when the configured KDF parameters cannot
// run on this host (e.g. the memory budget cannot be allocated).
var ErrKdfFailure = errors.New("seed: kdf parameters unsupported on this host")

// Params controls the Argon2id cost parameters. DefaultParams returns
// the spec §4.3 default; the zero value is rejected by DeriveMasterSeed.
// CIM_KEYS_KDF_MEMORY_MIB may override MemoryKiB, but DeriveMasterSeed
// rejects anything below 256 MiB (spec §6).
type Params struct {
	MemoryKiB uint32
	Time      uint32
	Threads   uint8
}

// DefaultParams returns the spec §4.3 default Argon2id parameters.
func DefaultParams() Params {
	return Params{MemoryKiB: kdfMemoryKiB, Time: kdfIterations, Threads: kdfParallel}
}

// MinMemoryKiB is the floor CIM_KEYS_KDF_MEMORY_MIB may not go below.
const MinMemoryKiB = 256 * 1024

// DeriveMasterSeed stretches passphrase into a 32-byte master seed
// using Argon2id, salted by tag. The same (passphrase, tag) pair
// always yields the same seed.
func DeriveMasterSeed(passphrase string, tag string, params Params) (*secretbuf.Buffer, error) {
	if utf8.RuneCountInString(passphrase) < MinPassphraseRunes {
		return nil, ErrWeak
	}
	if params.MemoryKiB < MinMemoryKiB {
		return nil, fmt.Errorf("%w: memory %d KiB below floor %d KiB", ErrKdfFailure, params.MemoryKiB, MinMemoryKiB)
	}
	if params.Time == 0 || params.Threads == 0 {
		return nil, fmt.Errorf("%w: time=%d threads=%d", ErrKdfFailure, params.Time, params.Threads)
	}

	salt := []byte(saltPrefix + tag)
	out := argon2.IDKey([]byte(passphrase), salt, params.Time, params.MemoryKiB, params.Threads, MasterSeedLen)
	return secretbuf.FromBytes(out), nil
}

// Label is the ordered subkey-purpose tuple of spec §3 ("Subkey
// label"), e.g. Label{"pki", "root_ca", "ed25519"} or
// Label{"nats", "operator", opID.String()}.
type Label []string

// canonical joins the label parts with a separator that cannot appear
// in any part produced by this codebase (ids, fixed purpose strings),
// so two distinct label tuples never canonicalize to the same bytes.
func (l Label) canonical() []byte {
	return []byte(strings.Join(l, "\x1f"))
}

// Subkey runs HKDF-SHA256 over seed, using the canonical encoding of
// label as the info parameter, and returns length bytes of key
// material. The same (seed, label, length) triple always yields the
// same output.
func Subkey(seed *secretbuf.Buffer, label Label, length int) (*secretbuf.Buffer, error) {
	raw, err := seed.Expose()
	if err != nil {
		return nil, fmt.Errorf("seed: expose master seed: %w", err)
	}
	reader := hkdf.New(sha256.New, raw, nil, label.canonical())
	out := make([]byte, length)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, fmt.Errorf("seed: hkdf expand: %w", err)
	}
	return secretbuf.FromBytes(out), nil
}
