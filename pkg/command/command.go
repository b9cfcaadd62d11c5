// Package command implements the eleven aggregates' command handlers
// (spec §4.7): pure functions of (Command, projection.View, Deps) that
// consult pkg/policy and pkg/aggregate, may derive key material
// through pkg/seed and pkg/security, and return the events the
// projection should fold — never mutating the projection or the
// filesystem themselves. The one port call a handler makes is
// HandleProvisionYubiKey's PIV import through Deps.Smartcard.
//
// Grounded on the teacher's manager.Manager methods (e.g.
// CreateNode/CreateService: validate, build a value, hand it to
// Apply), generalized from "validate then mutate the store in place"
// into "validate then return the events describing the mutation."
package command

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/cimkeys/cim-keys/pkg/event"
	"github.com/cimkeys/cim-keys/pkg/id"
	"github.com/cimkeys/cim-keys/pkg/ports"
	"github.com/cimkeys/cim-keys/pkg/secretbuf"
	"github.com/cimkeys/cim-keys/pkg/security"
	"github.com/cimkeys/cim-keys/pkg/types"
)

// KeySource derives deterministic key material from the command
// layer's perspective: a thin capability over pkg/seed.Subkey bound to
// a single master seed the orchestrator holds.
type KeySource interface {
	Subkey(label types.SubkeyLabel, length int) (*secretbuf.Buffer, error)
}

// Deps bundles every capability a handler may need, threaded in by
// the orchestrator (pkg/manager) rather than read from a global —
// mirroring the teacher's manager.Config constructor-injection style.
type Deps struct {
	Keys             KeySource
	Clock            id.Clock
	Smartcard        ports.Smartcard
	SmartcardTimeout time.Duration
}

// defaultSmartcardTimeout is spec §5's default PC/SC round-trip
// deadline.
const defaultSmartcardTimeout = 10 * time.Second

func (d Deps) smartcardTimeout() time.Duration {
	if d.SmartcardTimeout > 0 {
		return d.SmartcardTimeout
	}
	return defaultSmartcardTimeout
}

func newEnvelope(clk id.Clock, correlationID, causationID id.Id) (event.Envelope, error) {
	eventID, err := id.New(clk)
	if err != nil {
		return event.Envelope{}, fmt.Errorf("command: new event id: %w", err)
	}
	return event.Envelope{
		EventID:       eventID,
		CorrelationID: correlationID,
		CausationID:   causationID,
		Timestamp:     clk.Now(),
		SchemaVersion: 1,
	}, nil
}

// deriveKeyPair maps a SubkeyLabel + algorithm to the right-sized
// deterministic seed and the matching pkg/security generator.
func deriveKeyPair(keys KeySource, label types.SubkeyLabel, algo types.KeyAlgorithm) (*security.KeyPair, error) {
	switch algo {
	case types.KeyAlgorithmEd25519:
		seed, err := keys.Subkey(label, ed25519.SeedSize)
		if err != nil {
			return nil, err
		}
		return security.GenerateEd25519(seed)
	case types.KeyAlgorithmECDSAP256:
		seed, err := keys.Subkey(label, 48)
		if err != nil {
			return nil, err
		}
		return security.GenerateECDSAP256(seed)
	case types.KeyAlgorithmRSA2048:
		seed, err := keys.Subkey(label, 32)
		if err != nil {
			return nil, err
		}
		return security.GenerateRSA(seed, 2048)
	case types.KeyAlgorithmRSA4096:
		seed, err := keys.Subkey(label, 32)
		if err != nil {
			return nil, err
		}
		return security.GenerateRSA(seed, 4096)
	default:
		return nil, &ValidationError{Reason: fmt.Sprintf("unsupported key algorithm %q", algo)}
	}
}

// DeriveKeyPair exports deriveKeyPair for the orchestrator, which
// must re-derive already-issued key material a second time at write
// time to seal it for disk (pkg/projection.SecretMaterial) — the
// in-memory projection never holds private bytes itself.
func DeriveKeyPair(keys KeySource, label types.SubkeyLabel, algo types.KeyAlgorithm) (*security.KeyPair, error) {
	return deriveKeyPair(keys, label, algo)
}

// PkiKeyLabel exports certificateKeyLabel for the orchestrator, so
// sealing code and issuance code never drift on the label a given key
// ID derives from.
func PkiKeyLabel(keyID id.Id) types.SubkeyLabel { return certificateKeyLabel(keyID) }

// NatsKeyLabel exports natsKeyLabel for the same reason.
func NatsKeyLabel(keyID id.Id) types.SubkeyLabel { return natsKeyLabel(keyID) }

func keyGeneratedEvent(env event.Envelope, keyID id.Id, kp *security.KeyPair, ownerID id.Id) event.DomainEvent {
	env.AggregateID = keyID
	return event.DomainEvent{
		Envelope: env,
		Kind:     event.KindKeyGenerated,
		Payload: event.KeyGenerated{
			KeyID:       keyID,
			Algorithm:   types.KeyAlgorithm(kp.Algorithm),
			PublicBytes: kp.PublicBytes,
			Fingerprint: kp.FingerprintHex(),
			OwnerID:     ownerID,
		},
	}
}
