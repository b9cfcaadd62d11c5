package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/cimkeys/cim-keys/pkg/event"
	"github.com/cimkeys/cim-keys/pkg/id"
	"github.com/cimkeys/cim-keys/pkg/policy"
	"github.com/cimkeys/cim-keys/pkg/projection"
	"github.com/cimkeys/cim-keys/pkg/types"
)

// ProvisionYubiKey is spec §4.7's ProvisionYubiKey{serial, slot,
// algorithm, owner_id}: generate a key deterministically and import it
// into a PIV slot on the named device. A key already resident on the
// card cannot be registered through this command.
type ProvisionYubiKey struct {
	types.Envelope
	Serial    string
	Slot      types.PIVSlot
	Algorithm types.KeyAlgorithm
	OwnerID   id.Id
}

// HandleProvisionYubiKey opens the named smartcard under
// deps.SmartcardTimeout, derives the slot's key material, imports it,
// and emits YubiKeyProvisioned (first slot only), KeyGenerated, and
// KeyBoundToSlot. Smartcard failures surface as *HardwareError or
// *HardwareTimeoutError per spec §7, never as a bare wrapped error.
func HandleProvisionYubiKey(ctx context.Context, cmd ProvisionYubiKey, view *projection.View, deps Deps) ([]event.DomainEvent, error) {
	if d := policy.PIVSlotCompatible(cmd.Slot, cmd.Algorithm); d.Err() != nil {
		return nil, d.Err()
	}
	if deps.Smartcard == nil {
		return nil, &ValidationError{Reason: "no smartcard capability configured"}
	}

	var existing *types.YubiKey
	var existingID id.Id
	for yubiID, yk := range view.YubiKeys {
		if yk.Serial == cmd.Serial {
			existing = yk
			existingID = yubiID
			break
		}
	}
	if existing != nil {
		if _, taken := existing.Slots[cmd.Slot]; taken {
			return nil, &ValidationError{Reason: fmt.Sprintf("slot %s already bound on yubikey %s", cmd.Slot, cmd.Serial)}
		}
	}

	tctx, cancel := context.WithTimeout(ctx, deps.smartcardTimeout())
	defer cancel()

	handle, err := deps.Smartcard.Open(tctx, cmd.Serial)
	if err != nil {
		return nil, smartcardError(tctx, err)
	}
	defer handle.Close()

	keyID, err := id.New(deps.Clock)
	if err != nil {
		return nil, fmt.Errorf("command: new key id: %w", err)
	}

	kp, err := deriveKeyPair(deps.Keys, certificateKeyLabel(keyID), cmd.Algorithm)
	if err != nil {
		return nil, err
	}

	seed, err := deps.Keys.Subkey(certificateKeyLabel(keyID), seedLengthFor(cmd.Algorithm))
	if err != nil {
		return nil, err
	}
	if err := handle.PIVImport(cmd.Slot, seed); err != nil {
		return nil, smartcardError(tctx, err)
	}

	var events []event.DomainEvent
	yubiID := existingID
	if existing == nil {
		newID, err := id.New(deps.Clock)
		if err != nil {
			return nil, fmt.Errorf("command: new yubikey id: %w", err)
		}
		yubiID = newID
		env, err := newEnvelope(deps.Clock, cmd.CorrelationID, cmd.ID)
		if err != nil {
			return nil, err
		}
		env.AggregateID = yubiID
		events = append(events, event.DomainEvent{
			Envelope: env,
			Kind:     event.KindYubiKeyProvisioned,
			Payload: event.YubiKeyProvisioned{
				YubiKeyID: yubiID,
				Serial:    cmd.Serial,
				OwnerID:   cmd.OwnerID,
			},
		})
	}

	keyEnv, err := newEnvelope(deps.Clock, cmd.CorrelationID, cmd.ID)
	if err != nil {
		return nil, err
	}
	events = append(events, keyGeneratedEvent(keyEnv, keyID, kp, cmd.OwnerID))

	bindEnv, err := newEnvelope(deps.Clock, cmd.CorrelationID, cmd.ID)
	if err != nil {
		return nil, err
	}
	bindEnv.AggregateID = yubiID
	events = append(events, event.DomainEvent{
		Envelope: bindEnv,
		Kind:     event.KindKeyBoundToSlot,
		Payload: event.KeyBoundToSlot{
			YubiKeyID: yubiID,
			Slot:      cmd.Slot,
			KeyID:     keyID,
		},
	})

	return events, nil
}

func seedLengthFor(algo types.KeyAlgorithm) int {
	switch algo {
	case types.KeyAlgorithmEd25519:
		return 32
	case types.KeyAlgorithmECDSAP256:
		return 48
	default:
		return 32
	}
}

// smartcardError classifies a PC/SC failure as a timeout when ctx's
// deadline has been exceeded, or a generic hardware error otherwise.
func smartcardError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &HardwareTimeoutError{Reason: err.Error()}
	}
	return &HardwareError{Reason: err.Error()}
}
