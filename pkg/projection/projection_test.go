package projection

import (
	"testing"

	"github.com/cimkeys/cim-keys/pkg/event"
	"github.com/cimkeys/cim-keys/pkg/id"
	"github.com/cimkeys/cim-keys/pkg/types"
)

func TestApplyKeyGeneratedThenCertificateGenerated(t *testing.T) {
	p := New(id.MustParse("018f1e3a-0000-7000-8000-00000000000f"), "example-trust-domain")

	keyID := id.MustParse("018f1e3a-0000-7000-8000-000000000001")
	certID := id.MustParse("018f1e3a-0000-7000-8000-000000000002")

	keyEvent := event.DomainEvent{
		Envelope: event.Envelope{EventID: id.MustParse("018f1e3a-0000-7000-8000-000000000010"), AggregateID: keyID},
		Kind:     event.KindKeyGenerated,
		Payload:  event.KeyGenerated{KeyID: keyID, Algorithm: types.KeyAlgorithmEd25519, Fingerprint: "abc"},
	}
	if err := p.Apply(keyEvent); err != nil {
		t.Fatalf("Apply key: %v", err)
	}

	certEvent := event.DomainEvent{
		Envelope: event.Envelope{EventID: id.MustParse("018f1e3a-0000-7000-8000-000000000011"), AggregateID: certID},
		Kind:     event.KindCertificateGenerated,
		Payload: event.CertificateGenerated{
			CertID: certID, Subject: "CN=root", IsCA: true,
			NotBefore: "2026-01-01T00:00:00Z", NotAfter: "2036-01-01T00:00:00Z",
			SerialHex: "01", SigningKeyID: keyID,
		},
	}
	if err := p.Apply(certEvent); err != nil {
		t.Fatalf("Apply certificate: %v", err)
	}

	v := p.View()
	if v.Keys[keyID] == nil || v.Keys[keyID].State != types.KeyActive {
		t.Fatalf("expected key active, got %+v", v.Keys[keyID])
	}
	if v.Certificates[certID] == nil || !v.Certificates[certID].IsCA {
		t.Fatalf("expected CA certificate, got %+v", v.Certificates[certID])
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	p := New(id.MustParse("018f1e3a-0000-7000-8000-00000000000f"), "td")

	keyID := id.MustParse("018f1e3a-0000-7000-8000-000000000001")
	evID := id.MustParse("018f1e3a-0000-7000-8000-000000000010")
	ev := event.DomainEvent{
		Envelope: event.Envelope{EventID: evID, AggregateID: keyID},
		Kind:     event.KindKeyGenerated,
		Payload:  event.KeyGenerated{KeyID: keyID, Algorithm: types.KeyAlgorithmEd25519},
	}

	if err := p.Apply(ev); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if err := p.Apply(ev); err != nil {
		t.Fatalf("second apply (should be no-op): %v", err)
	}
	if len(p.View().Keys) != 1 {
		t.Fatalf("expected exactly one key, got %d", len(p.View().Keys))
	}
}

func TestApplyKeyBoundToSlotRequiresExistingYubiKeyAndKey(t *testing.T) {
	p := New(id.MustParse("018f1e3a-0000-7000-8000-00000000000f"), "td")

	ykID := id.MustParse("018f1e3a-0000-7000-8000-000000000001")
	keyID := id.MustParse("018f1e3a-0000-7000-8000-000000000002")

	err := p.Apply(event.DomainEvent{
		Envelope: event.Envelope{EventID: id.MustParse("018f1e3a-0000-7000-8000-000000000020")},
		Kind:     event.KindKeyBoundToSlot,
		Payload:  event.KeyBoundToSlot{YubiKeyID: ykID, KeyID: keyID, Slot: types.PIVSlotSigning},
	})
	if err == nil {
		t.Fatal("expected error binding slot on unknown yubikey")
	}

	if err := p.Apply(event.DomainEvent{
		Envelope: event.Envelope{EventID: id.MustParse("018f1e3a-0000-7000-8000-000000000021"), AggregateID: ykID},
		Kind:     event.KindYubiKeyProvisioned,
		Payload:  event.YubiKeyProvisioned{YubiKeyID: ykID, Serial: "12345"},
	}); err != nil {
		t.Fatalf("provision: %v", err)
	}
	if err := p.Apply(event.DomainEvent{
		Envelope: event.Envelope{EventID: id.MustParse("018f1e3a-0000-7000-8000-000000000022"), AggregateID: keyID},
		Kind:     event.KindKeyGenerated,
		Payload:  event.KeyGenerated{KeyID: keyID, Algorithm: types.KeyAlgorithmECDSAP256},
	}); err != nil {
		t.Fatalf("key generate: %v", err)
	}

	if err := p.Apply(event.DomainEvent{
		Envelope: event.Envelope{EventID: id.MustParse("018f1e3a-0000-7000-8000-000000000023")},
		Kind:     event.KindKeyBoundToSlot,
		Payload:  event.KeyBoundToSlot{YubiKeyID: ykID, KeyID: keyID, Slot: types.PIVSlotSigning},
	}); err != nil {
		t.Fatalf("bind slot: %v", err)
	}

	yk := p.View().YubiKeys[ykID]
	if yk.State != types.YubiKeyActive {
		t.Fatalf("expected yubikey active after first binding, got %s", yk.State)
	}
	if yk.Slots[types.PIVSlotSigning].KeyID != keyID {
		t.Fatalf("slot not bound to expected key")
	}
}
