package projection

import (
	"path/filepath"
	"testing"

	"github.com/cimkeys/cim-keys/pkg/id"
	"github.com/cimkeys/cim-keys/pkg/types"
)

func TestCacheRebuildAndTrusted(t *testing.T) {
	cache, err := OpenCache(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	defer cache.Close()

	if _, found, err := cache.LastEventID(); err != nil || found {
		t.Fatalf("expected no last event id on a fresh cache, found=%v err=%v", found, err)
	}

	orgID := id.MustParse("018f1e3a-0000-7000-8000-000000000001")
	view := &View{
		Organizations: map[id.Id]*types.Organization{orgID: {ID: orgID, Name: "Acme", State: types.OrganizationActive}},
	}
	lastEvent := id.MustParse("018f1e3a-0000-7000-8000-0000000000ff")

	if err := cache.Rebuild(view, lastEvent); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	trusted, err := cache.Trusted(lastEvent)
	if err != nil {
		t.Fatalf("Trusted: %v", err)
	}
	if !trusted {
		t.Fatal("expected cache to be trusted after rebuild matching lastEvent")
	}

	staleEvent := id.MustParse("018f1e3a-0000-7000-8000-000000000abc")
	trusted, err = cache.Trusted(staleEvent)
	if err != nil {
		t.Fatalf("Trusted: %v", err)
	}
	if trusted {
		t.Fatal("expected cache to be untrusted against a different tail event id")
	}

	var got types.Organization
	found, err := cache.Get("organizations", orgID, &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !found || got.Name != "Acme" {
		t.Fatalf("expected cached organization Acme, got found=%v %+v", found, got)
	}
}
