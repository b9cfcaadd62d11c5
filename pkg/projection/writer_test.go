package projection

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cimkeys/cim-keys/pkg/event"
	"github.com/cimkeys/cim-keys/pkg/id"
	"github.com/cimkeys/cim-keys/pkg/ports/local"
	"github.com/cimkeys/cim-keys/pkg/types"
)

type fakeSecretMaterial struct{}

func (fakeSecretMaterial) SealedKey(keyID id.Id) ([]byte, error) {
	return []byte("sealed:" + keyID.String()), nil
}

func (fakeSecretMaterial) SealedNatsSeed(entityID id.Id) ([]byte, error) {
	return []byte("sealed-nkey:" + entityID.String()), nil
}

func TestWriterWritesRootCALayout(t *testing.T) {
	fs, err := local.NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	w := NewWriter(fs, fakeSecretMaterial{})

	p := New(id.MustParse("018f1e3a-0000-7000-8000-00000000000f"), "example-trust-domain")
	keyID := id.MustParse("018f1e3a-0000-7000-8000-000000000001")
	certID := id.MustParse("018f1e3a-0000-7000-8000-000000000002")

	keyEvent := event.DomainEvent{
		Envelope: event.Envelope{EventID: id.MustParse("018f1e3a-0000-7000-8000-000000000010"), AggregateID: keyID},
		Kind:     event.KindKeyGenerated,
		Payload:  event.KeyGenerated{KeyID: keyID, Algorithm: types.KeyAlgorithmEd25519, Fingerprint: "abc"},
	}
	certEvent := event.DomainEvent{
		Envelope: event.Envelope{EventID: id.MustParse("018f1e3a-0000-7000-8000-000000000011"), AggregateID: certID},
		Kind:     event.KindCertificateGenerated,
		Payload: event.CertificateGenerated{
			CertID: certID, Subject: "CN=root", IsCA: true,
			NotBefore: "2026-01-01T00:00:00Z", NotAfter: "2036-01-01T00:00:00Z",
			SerialHex: "01", SigningKeyID: keyID, PEM: []byte("-----BEGIN CERTIFICATE-----\n...\n-----END CERTIFICATE-----\n"),
		},
	}

	for _, ev := range []event.DomainEvent{keyEvent, certEvent} {
		if err := p.Apply(ev); err != nil {
			t.Fatalf("Apply: %v", err)
		}
	}

	if err := w.WriteEvents(p.View(), []event.DomainEvent{keyEvent, certEvent}); err != nil {
		t.Fatalf("WriteEvents: %v", err)
	}

	keyPriv, err := fs.Read(filepath.Join("keys", keyID.String()+".priv"))
	if err != nil {
		t.Fatalf("read key priv: %v", err)
	}
	if string(keyPriv) != "sealed:"+keyID.String() {
		t.Fatalf("unexpected sealed key contents: %s", keyPriv)
	}

	crt, err := fs.Read(filepath.Join("certificates", "root", certID.String()+".crt"))
	if err != nil {
		t.Fatalf("read cert: %v", err)
	}
	if len(crt) == 0 {
		t.Fatal("expected non-empty certificate PEM")
	}

	events, err := fs.Read("events.jsonl")
	if err != nil {
		t.Fatalf("read events.jsonl: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("expected events.jsonl to have content")
	}

	manifest, err := fs.Read("manifest.json")
	if err != nil {
		t.Fatalf("read manifest.json: %v", err)
	}
	if len(manifest) == 0 {
		t.Fatal("expected manifest.json to have content")
	}

	info, err := os.Stat(filepath.Join(fs.Root, "keys", keyID.String()+".priv"))
	if err != nil {
		t.Fatalf("stat key priv: %v", err)
	}
	if info.Mode().Perm() != secretMode {
		t.Fatalf("expected mode %o, got %o", secretMode, info.Mode().Perm())
	}
}

func TestWriterAppendsEventsAcrossCalls(t *testing.T) {
	fs, err := local.NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	w := NewWriter(fs, fakeSecretMaterial{})
	p := New(id.MustParse("018f1e3a-0000-7000-8000-00000000000f"), "example-trust-domain")

	orgID := id.MustParse("018f1e3a-0000-7000-8000-000000000020")
	orgEvent := event.DomainEvent{
		Envelope: event.Envelope{EventID: id.MustParse("018f1e3a-0000-7000-8000-000000000021"), AggregateID: orgID},
		Kind:     event.KindOrganizationCreated,
		Payload:  event.OrganizationCreated{OrgID: orgID, Name: "Acme"},
	}
	if err := p.Apply(orgEvent); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := w.WriteEvents(p.View(), []event.DomainEvent{orgEvent}); err != nil {
		t.Fatalf("first WriteEvents: %v", err)
	}

	locID := id.MustParse("018f1e3a-0000-7000-8000-000000000022")
	locEvent := event.DomainEvent{
		Envelope: event.Envelope{EventID: id.MustParse("018f1e3a-0000-7000-8000-000000000023"), AggregateID: locID},
		Kind:     event.KindLocationCreated,
		Payload:  event.LocationCreated{LocationID: locID, Name: "DC1"},
	}
	if err := p.Apply(locEvent); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := w.WriteEvents(p.View(), []event.DomainEvent{locEvent}); err != nil {
		t.Fatalf("second WriteEvents: %v", err)
	}

	data, err := fs.Read("events.jsonl")
	if err != nil {
		t.Fatalf("read events.jsonl: %v", err)
	}
	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	if lines != 2 {
		t.Fatalf("expected 2 lines in events.jsonl, got %d", lines)
	}
}
