package policy

import (
	"testing"
	"time"

	"github.com/cimkeys/cim-keys/pkg/id"
	"github.com/cimkeys/cim-keys/pkg/projection"
	"github.com/cimkeys/cim-keys/pkg/types"
)

func TestPIVSlotCompatible(t *testing.T) {
	if d := PIVSlotCompatible(types.PIVSlotSigning, types.KeyAlgorithmEd25519); d.Denied {
		t.Fatalf("expected allow, got deny: %s", d.Reason)
	}
	if d := PIVSlotCompatible("99", types.KeyAlgorithmEd25519); !d.Denied {
		t.Fatal("expected deny for unrecognized slot")
	}
	if d := PIVSlotCompatible(types.PIVSlotSigning, "rot13"); !d.Denied {
		t.Fatal("expected deny for unrecognized algorithm")
	}
	retired, _ := types.RetiredPIVSlot(5)
	if d := PIVSlotCompatible(retired, types.KeyAlgorithmRSA4096); d.Denied {
		t.Fatalf("expected retired slot to be recognized: %s", d.Reason)
	}
}

func TestUniqueCommonName(t *testing.T) {
	issuer := id.MustParse("018f1e3a-0000-7000-8000-000000000001")
	view := &projection.View{Certificates: map[id.Id]*types.Certificate{
		id.MustParse("018f1e3a-0000-7000-8000-000000000002"): {
			IssuerID: issuer, Subject: "CN=leaf1", State: types.CertificateActive,
		},
	}}

	if d := UniqueCommonName(view, issuer, "CN=leaf1"); !d.Denied {
		t.Fatal("expected deny for duplicate subject under same issuer")
	}
	if d := UniqueCommonName(view, issuer, "CN=leaf2"); d.Denied {
		t.Fatalf("expected allow for distinct subject: %s", d.Reason)
	}

	otherIssuer := id.MustParse("018f1e3a-0000-7000-8000-000000000003")
	if d := UniqueCommonName(view, otherIssuer, "CN=leaf1"); d.Denied {
		t.Fatalf("expected allow for same subject under a different issuer: %s", d.Reason)
	}
}

func TestLeafValidityWithinIssuer(t *testing.T) {
	issuer := &types.Certificate{
		ID:        id.MustParse("018f1e3a-0000-7000-8000-000000000001"),
		State:     types.CertificateActive,
		NotBefore: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:  time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	if d := LeafValidityWithinIssuer(issuer, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)); d.Denied {
		t.Fatalf("expected allow, got deny: %s", d.Reason)
	}
	if d := LeafValidityWithinIssuer(issuer, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)); !d.Denied {
		t.Fatal("expected deny: not_before precedes issuer's not_before")
	}
	if d := LeafValidityWithinIssuer(issuer, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC)); !d.Denied {
		t.Fatal("expected deny: not_after exceeds issuer's not_after")
	}

	revokedIssuer := *issuer
	revokedIssuer.State = types.CertificateRevoked
	if d := LeafValidityWithinIssuer(&revokedIssuer, issuer.NotBefore, issuer.NotAfter); !d.Denied {
		t.Fatal("expected deny for non-active issuer")
	}
}

func TestChainDepthRejectsFourthLevel(t *testing.T) {
	root := id.MustParse("018f1e3a-0000-7000-8000-000000000001")
	intermediate := id.MustParse("018f1e3a-0000-7000-8000-000000000002")
	secondIntermediate := id.MustParse("018f1e3a-0000-7000-8000-000000000003")

	view := &projection.View{Certificates: map[id.Id]*types.Certificate{
		root:         {ID: root, IssuerID: id.Id{}, State: types.CertificateActive},
		intermediate: {ID: intermediate, IssuerID: root, State: types.CertificateActive},
	}}

	if d := ChainDepth(view, intermediate); d.Denied {
		t.Fatalf("root->intermediate->leaf (depth 3) should be allowed: %s", d.Reason)
	}

	view.Certificates[secondIntermediate] = &types.Certificate{ID: secondIntermediate, IssuerID: intermediate, State: types.CertificateActive}
	if d := ChainDepth(view, secondIntermediate); !d.Denied {
		t.Fatal("root->intermediate->intermediate->leaf (depth 4) should be denied")
	}
}
