package command

import (
	"context"
	"crypto/x509/pkix"
	"errors"
	"testing"
	"time"

	"github.com/cimkeys/cim-keys/pkg/event"
	"github.com/cimkeys/cim-keys/pkg/id"
	"github.com/cimkeys/cim-keys/pkg/policy"
	"github.com/cimkeys/cim-keys/pkg/projection"
	"github.com/cimkeys/cim-keys/pkg/seed"
	"github.com/cimkeys/cim-keys/pkg/secretbuf"
	"github.com/cimkeys/cim-keys/pkg/types"
)

// fakeKeySource derives deterministic key material directly from an
// in-memory master seed, standing in for the orchestrator's
// pkg/seed-backed implementation.
type fakeKeySource struct {
	master *secretbuf.Buffer
}

func newFakeKeySource() *fakeKeySource {
	return &fakeKeySource{master: secretbuf.FromBytes([]byte("01234567890123456789012345678901"))}
}

func (f *fakeKeySource) Subkey(label types.SubkeyLabel, length int) (*secretbuf.Buffer, error) {
	return seed.Subkey(f.master, seed.Label(label), length)
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() id.Timestamp { return id.NewTimestamp(c.at) }

var testClock = fixedClock{at: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}

func testDeps() Deps {
	return Deps{Keys: newFakeKeySource(), Clock: testClock}
}

func testEnvelope(t *testing.T) types.Envelope {
	t.Helper()
	cmdID, err := id.New(testClock)
	if err != nil {
		t.Fatalf("new command id: %v", err)
	}
	return types.Envelope{ID: cmdID, CorrelationID: cmdID, Timestamp: testClock.Now()}
}

func TestHandleGenerateRootCAIsDeterministic(t *testing.T) {
	deps := testDeps()
	cmd := GenerateRootCA{
		Envelope:     testEnvelope(t),
		Subject:      pkix.Name{CommonName: "CIM Root CA"},
		Algorithm:    types.KeyAlgorithmEd25519,
		ValidityDays: 3650,
	}

	events1, err := HandleGenerateRootCA(cmd, &projection.View{Certificates: map[id.Id]*types.Certificate{}}, deps)
	if err != nil {
		t.Fatalf("HandleGenerateRootCA: %v", err)
	}
	if len(events1) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events1))
	}
	cert1, ok := events1[1].Payload.(event.CertificateGenerated)
	if !ok {
		t.Fatalf("expected CertificateGenerated payload, got %T", events1[1].Payload)
	}

	// A fresh command with the same clock but a new command id yields a
	// new key id, so the re-derived key material differs by design;
	// what must be stable is the *key's own* re-derivation given the
	// same key id, which GenerateIntermediateCA/LeafCertificate rely on.
	key1, ok := events1[0].Payload.(event.KeyGenerated)
	if !ok {
		t.Fatalf("expected KeyGenerated payload, got %T", events1[0].Payload)
	}
	kp, err := deriveKeyPair(deps.Keys, certificateKeyLabel(key1.KeyID), types.KeyAlgorithmEd25519)
	if err != nil {
		t.Fatalf("re-derive key: %v", err)
	}
	if kp.FingerprintHex() != key1.Fingerprint {
		t.Fatalf("re-derived fingerprint %s != original %s", kp.FingerprintHex(), key1.Fingerprint)
	}
	if cert1.SigningKeyID != key1.KeyID {
		t.Fatalf("certificate's SigningKeyID %s != generated key id %s", cert1.SigningKeyID, key1.KeyID)
	}
}

func TestHandleGenerateRootCARejectsDuplicate(t *testing.T) {
	deps := testDeps()
	rootID := id.MustParse("018f1e3a-0000-7000-8000-000000000001")
	view := &projection.View{Certificates: map[id.Id]*types.Certificate{
		rootID: {ID: rootID, IssuerID: id.Id{}, State: types.CertificateActive},
	}}

	cmd := GenerateRootCA{Envelope: testEnvelope(t), Subject: pkix.Name{CommonName: "CIM Root CA"}, Algorithm: types.KeyAlgorithmEd25519, ValidityDays: 3650}
	if _, err := HandleGenerateRootCA(cmd, view, deps); err == nil {
		t.Fatal("expected rejection when a non-terminal root CA already exists")
	}
}

func TestHandleCreateOrganizationAndPerson(t *testing.T) {
	deps := testDeps()
	view := &projection.View{Organizations: map[id.Id]*types.Organization{}, People: map[id.Id]*types.Person{}}

	orgEvents, err := HandleCreateOrganization(CreateOrganization{Envelope: testEnvelope(t), Name: "Acme"}, view, deps)
	if err != nil {
		t.Fatalf("HandleCreateOrganization: %v", err)
	}
	orgID := orgEvents[0].Envelope.AggregateID
	view.Organizations[orgID] = &types.Organization{ID: orgID, Name: "Acme", State: types.OrganizationActive}

	if _, err := HandleCreatePerson(CreatePerson{Envelope: testEnvelope(t), FullName: "Ada Lovelace", OrgID: orgID}, view, deps); err != nil {
		t.Fatalf("HandleCreatePerson: %v", err)
	}

	unknownOrg := id.MustParse("018f1e3a-0000-7000-8000-0000000000ff")
	if _, err := HandleCreatePerson(CreatePerson{Envelope: testEnvelope(t), FullName: "Bob", OrgID: unknownOrg}, view, deps); err == nil {
		t.Fatal("expected rejection for unknown org_id")
	}
}

func TestHandleCreateRelationshipRequiresKnownEndpoints(t *testing.T) {
	deps := testDeps()
	personID := id.MustParse("018f1e3a-0000-7000-8000-000000000010")
	locID := id.MustParse("018f1e3a-0000-7000-8000-000000000011")
	view := &projection.View{
		People:    map[id.Id]*types.Person{personID: {ID: personID, State: types.PersonActive}},
		Locations: map[id.Id]*types.Location{locID: {ID: locID, State: types.LocationAvailable}},
	}

	if _, err := HandleCreateRelationship(CreateRelationship{Envelope: testEnvelope(t), Kind: types.RelationshipLocatedAt, FromID: personID, ToID: locID}, view, deps); err != nil {
		t.Fatalf("HandleCreateRelationship: %v", err)
	}

	unknown := id.MustParse("018f1e3a-0000-7000-8000-0000000000ff")
	if _, err := HandleCreateRelationship(CreateRelationship{Envelope: testEnvelope(t), Kind: types.RelationshipLocatedAt, FromID: personID, ToID: unknown}, view, deps); err == nil {
		t.Fatal("expected rejection for unknown to_id")
	}
}

func TestHandleProvisionYubiKeyRejectsIncompatibleSlot(t *testing.T) {
	deps := testDeps()
	view := &projection.View{YubiKeys: map[id.Id]*types.YubiKey{}}

	cmd := ProvisionYubiKey{Envelope: testEnvelope(t), Serial: "12345678", Slot: "99", Algorithm: types.KeyAlgorithmEd25519}
	_, err := HandleProvisionYubiKey(context.Background(), cmd, view, deps)
	if err == nil {
		t.Fatal("expected rejection for unrecognized slot")
	}
	var denied *policy.DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected *policy.DeniedError, got %T: %v", err, err)
	}
}

func TestHandleSealManifestEnforcesTransition(t *testing.T) {
	deps := testDeps()
	manifestID := id.MustParse("018f1e3a-0000-7000-8000-000000000042")
	view := &projection.View{Manifest: &types.Manifest{ID: manifestID, State: types.ManifestSealed}}

	if _, err := HandleSealManifest(SealManifest{Envelope: testEnvelope(t), EventCount: 10}, view, deps); err == nil {
		t.Fatal("expected rejection sealing an already-sealed manifest")
	}

	view.Manifest.State = types.ManifestBuilding
	events, err := HandleSealManifest(SealManifest{Envelope: testEnvelope(t), EventCount: 10}, view, deps)
	if err != nil {
		t.Fatalf("HandleSealManifest: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
}
