// Package ports declares the capability interfaces the core consumes
// from its outer application (spec §6): Filesystem, Clock, Random,
// Smartcard, and PassphraseSource. Filesystem, clock and hardware
// effects arrive as explicit arguments. Two exceptions reach past the
// ports: pkg/id draws UUIDv7 identifiers from the wall clock and
// crypto/rand, and pkg/security.Seal draws its nonces from crypto/rand.
package ports

import (
	"context"
	"os"
	"time"

	"github.com/cimkeys/cim-keys/pkg/id"
	"github.com/cimkeys/cim-keys/pkg/secretbuf"
	"github.com/cimkeys/cim-keys/pkg/types"
)

// Filesystem is the projection writer's only path to durable storage.
type Filesystem interface {
	Read(path string) ([]byte, error)
	WriteAtomic(path string, data []byte, mode os.FileMode) error
	MkdirAll(path string, mode os.FileMode) error
	List(path string) ([]string, error)
	Remove(path string) error
}

// Clock supplies UTC instants at millisecond precision (id.Timestamp
// truncates to that precision at the boundary).
type Clock interface {
	Now() id.Timestamp
}

// Random supplies non-deterministic bytes for identifiers and nonces.
// It must never be used for key material — that flows exclusively
// through pkg/seed's deterministic derivation.
type Random interface {
	Fill(buf []byte) error
}

// YubiKeyHandle is an open handle to a single smartcard, scoped to one
// command's duration.
type YubiKeyHandle interface {
	Serial() string
	PIVGenerate(slot types.PIVSlot, algo types.KeyAlgorithm) ([]byte, error)
	PIVImport(slot types.PIVSlot, key *secretbuf.Buffer) error
	PIVSign(slot types.PIVSlot, digest []byte) ([]byte, error)
	Close() error
}

// Smartcard discovers and opens YubiKeys. Production wiring is out of
// scope (spec §1); the core only depends on this interface.
type Smartcard interface {
	ListYubiKeys(ctx context.Context) ([]string, error)
	Open(ctx context.Context, serial string) (YubiKeyHandle, error)
}

// PassphrasePurpose names why a passphrase is being requested, so a
// PassphraseSource can tailor a prompt or pick among configured
// sources.
type PassphrasePurpose string

const (
	PurposeMasterSeed PassphrasePurpose = "master_seed"
	PurposeUnseal     PassphrasePurpose = "unseal"
)

// ErrCancelled is returned by a PassphraseSource when the caller
// cancels an interactive prompt.
var ErrCancelled = &portsError{"ports: passphrase prompt cancelled"}

// ErrPassphraseMismatch is returned when a confirmation prompt's two
// entries disagree.
var ErrPassphraseMismatch = &portsError{"ports: passphrase mismatch"}

type portsError struct{ msg string }

func (e *portsError) Error() string { return e.msg }

// PassphraseSource obtains a passphrase for the given purpose, held in
// a secretbuf.Buffer for the duration of derivation only.
type PassphraseSource interface {
	Obtain(ctx context.Context, purpose PassphrasePurpose) (*secretbuf.Buffer, error)
}

// SystemClock wraps time.Now behind Clock.
type SystemClock struct{}

func (SystemClock) Now() id.Timestamp { return id.NewTimestamp(time.Now()) }

// FixedClock returns a constant instant, for `--clock-fixed` (spec §6)
// and for tests.
type FixedClock struct{ At id.Timestamp }

func (f FixedClock) Now() id.Timestamp { return f.At }
