package projection

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cimkeys/cim-keys/pkg/event"
	"github.com/cimkeys/cim-keys/pkg/id"
	"github.com/cimkeys/cim-keys/pkg/ports"
)

// secretMode is the owner-read-only permission spec §4.8 requires for
// any *.key, *.priv, or *.nk file before the first byte is written.
const secretMode os.FileMode = 0o400

const recordMode os.FileMode = 0o644

// SecretMaterial supplies the sealed private-key bytes a Writer needs
// to populate private-half files. The in-memory projection never
// holds this material itself: pkg/security.Seal draws a fresh nonce
// per call, so sealed bytes folded from events would break the
// replay-identity property (spec §8) that every other field upholds.
// The orchestrator re-derives and seals this material once, at write
// time, from the master seed it alone holds.
type SecretMaterial interface {
	SealedKey(keyID id.Id) ([]byte, error)
	SealedNatsSeed(entityID id.Id) ([]byte, error)
}

// Writer persists a Projection's view to disk in spec §4.8's layout,
// generalizing the teacher's single-purpose CA SaveToStore/
// LoadFromStore into the full per-aggregate tree.
type Writer struct {
	fs     ports.Filesystem
	secret SecretMaterial
}

// NewWriter returns a Writer rooted at fs, using secret to obtain
// private-key material for files the in-memory projection does not
// carry.
func NewWriter(fs ports.Filesystem, secret SecretMaterial) *Writer {
	return &Writer{fs: fs, secret: secret}
}

// WriteEvents persists a batch of newly applied events, in the order
// spec §4.8 mandates: per-aggregate record files, then the
// events.jsonl append, then the manifest.json rewrite last — so a
// crash between the two leaves the log as ground truth for the next
// replay.
func (w *Writer) WriteEvents(view *View, events []event.DomainEvent) error {
	for _, ev := range events {
		if err := w.writeRecord(view, ev); err != nil {
			return err
		}
	}
	if err := w.appendEventLog(events); err != nil {
		return err
	}
	return w.writeManifest(view)
}

func (w *Writer) writeRecord(view *View, ev event.DomainEvent) error {
	switch payload := ev.Payload.(type) {
	case event.PersonCreated:
		return w.writeJSON(filepath.Join("people", payload.PersonID.String()+".json"), view.People[payload.PersonID])
	case event.OrganizationCreated:
		return w.writeJSON(filepath.Join("organizations", payload.OrgID.String()+".json"), view.Organizations[payload.OrgID])
	case event.LocationCreated:
		return w.writeJSON(filepath.Join("locations", payload.LocationID.String()+".json"), view.Locations[payload.LocationID])
	case event.RelationshipCreated:
		return w.writeJSON(filepath.Join("relationships", payload.RelationshipID.String()+".json"), view.Relationships[payload.RelationshipID])
	case event.KeyGenerated:
		return w.writeKey(payload.KeyID)
	case event.CertificateGenerated:
		return w.writeCertificate(view, payload)
	case event.YubiKeyProvisioned:
		return w.writeJSON(filepath.Join("yubikeys", payload.Serial+".json"), view.YubiKeys[payload.YubiKeyID])
	case event.KeyBoundToSlot:
		yk, ok := view.YubiKeys[payload.YubiKeyID]
		if !ok {
			return fmt.Errorf("projection: yubikey %s missing from view", payload.YubiKeyID)
		}
		return w.writeJSON(filepath.Join("yubikeys", yk.Serial+".json"), yk)
	case event.NatsJwtSigned:
		return w.writeNats(payload)
	case event.StateTransitioned, event.ManifestSealed, event.ManifestExported:
		return nil
	default:
		return fmt.Errorf("projection: unrecognized event payload %T", payload)
	}
}

func (w *Writer) writeKey(keyID id.Id) error {
	sealed, err := w.secret.SealedKey(keyID)
	if err != nil {
		return fmt.Errorf("projection: seal key %s: %w", keyID, err)
	}
	return w.fs.WriteAtomic(filepath.Join("keys", keyID.String()+".priv"), sealed, secretMode)
}

func (w *Writer) writeCertificate(view *View, payload event.CertificateGenerated) error {
	aggregate := "root"
	if !payload.IssuerID.IsZero() {
		aggregate = payload.IssuerID.String()
	}
	base := filepath.Join("certificates", aggregate, payload.CertID.String())
	if err := w.fs.WriteAtomic(base+".crt", payload.PEM, recordMode); err != nil {
		return err
	}

	sealed, err := w.secret.SealedKey(payload.SigningKeyID)
	if err != nil {
		return fmt.Errorf("projection: seal certificate key %s: %w", payload.SigningKeyID, err)
	}
	return w.fs.WriteAtomic(base+".key", sealed, secretMode)
}

func (w *Writer) writeNats(payload event.NatsJwtSigned) error {
	dir := natsRoleDir(payload.Role)
	base := filepath.Join("nats", dir, payload.EntityID.String())

	sealed, err := w.secret.SealedNatsSeed(payload.EntityID)
	if err != nil {
		return fmt.Errorf("projection: seal nats seed for %s: %w", payload.EntityID, err)
	}
	if err := w.fs.WriteAtomic(base+".nk", sealed, secretMode); err != nil {
		return err
	}
	return w.fs.WriteAtomic(base+".jwt", []byte(payload.JWT), recordMode)
}

func natsRoleDir(role string) string {
	switch role {
	case "operator":
		return "operators"
	case "account":
		return "accounts"
	default:
		return "users"
	}
}

func (w *Writer) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("projection: marshal %q: %w", path, err)
	}
	return w.fs.WriteAtomic(path, data, recordMode)
}

func (w *Writer) appendEventLog(events []event.DomainEvent) error {
	existing, err := w.fs.Read("events.jsonl")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("projection: read events.jsonl: %w", err)
	}

	buf := existing
	for _, ev := range events {
		line, err := ev.MarshalJSON()
		if err != nil {
			return fmt.Errorf("projection: marshal event %s: %w", ev.Envelope.EventID, err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	return w.fs.WriteAtomic("events.jsonl", buf, recordMode)
}

func (w *Writer) writeManifest(view *View) error {
	return w.writeJSON("manifest.json", view.Manifest)
}
