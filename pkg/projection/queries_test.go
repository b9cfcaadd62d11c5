package projection

import (
	"testing"
	"time"

	"github.com/cimkeys/cim-keys/pkg/id"
	"github.com/cimkeys/cim-keys/pkg/types"
)

func TestCertificatesNearingExpirySortsAndFilters(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	soon := id.MustParse("018f1e3a-0000-7000-8000-000000000001")
	later := id.MustParse("018f1e3a-0000-7000-8000-000000000002")
	farOut := id.MustParse("018f1e3a-0000-7000-8000-000000000003")
	revoked := id.MustParse("018f1e3a-0000-7000-8000-000000000004")

	view := &View{Certificates: map[id.Id]*types.Certificate{
		soon:    {ID: soon, State: types.CertificateActive, NotAfter: now.AddDate(0, 0, 5)},
		later:   {ID: later, State: types.CertificateActive, NotAfter: now.AddDate(0, 0, 20)},
		farOut:  {ID: farOut, State: types.CertificateActive, NotAfter: now.AddDate(1, 0, 0)},
		revoked: {ID: revoked, State: types.CertificateRevoked, NotAfter: now.AddDate(0, 0, 1)},
	}}

	due := view.CertificatesNearingExpiry(now, 30*24*time.Hour)
	if len(due) != 2 {
		t.Fatalf("expected 2 certificates due, got %d", len(due))
	}
	if due[0].ID != soon || due[1].ID != later {
		t.Fatalf("expected sorted [soon, later], got [%s, %s]", due[0].ID, due[1].ID)
	}
}
