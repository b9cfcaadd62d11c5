package aggregate

import (
	"errors"
	"testing"

	"github.com/cimkeys/cim-keys/pkg/types"
)

func TestValidatePersonTransition(t *testing.T) {
	if err := ValidatePersonTransition(types.PersonCreated, types.PersonActive); err != nil {
		t.Fatalf("created -> active should be legal: %v", err)
	}
	if err := ValidatePersonTransition(types.PersonActive, types.PersonSuspended); err != nil {
		t.Fatalf("active -> suspended should be legal: %v", err)
	}

	err := ValidatePersonTransition(types.PersonTerminated, types.PersonActive)
	if err == nil {
		t.Fatal("terminated -> active should be illegal")
	}
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected *InvalidTransitionError, got %T", err)
	}
	if invalid.Aggregate != "person" || invalid.From != "terminated" || invalid.To != "active" {
		t.Fatalf("unexpected error fields: %+v", invalid)
	}
}

func TestValidateCertificateTransitionTerminalStatesRejectEverything(t *testing.T) {
	if err := ValidateCertificateTransition(types.CertificateRevoked, types.CertificateActive); err == nil {
		t.Fatal("revoked is terminal, expected rejection")
	}
}

func TestValidateKeyTransitionCoversRotationAndCompromise(t *testing.T) {
	cases := []struct {
		from, to types.KeyState
		ok       bool
	}{
		{types.KeyGenerated, types.KeyActive, true},
		{types.KeyActive, types.KeyRotated, true},
		{types.KeyActive, types.KeyCompromised, true},
		{types.KeyRotated, types.KeyDestroyed, true},
		{types.KeyDestroyed, types.KeyActive, false},
		{types.KeyGenerated, types.KeyDestroyed, false},
	}
	for _, c := range cases {
		err := ValidateKeyTransition(c.from, c.to)
		if c.ok && err != nil {
			t.Errorf("%s -> %s expected legal, got %v", c.from, c.to, err)
		}
		if !c.ok && err == nil {
			t.Errorf("%s -> %s expected illegal, got nil", c.from, c.to)
		}
	}
}

func TestValidateYubiKeyTransitionNoResurrection(t *testing.T) {
	if err := ValidateYubiKeyTransition(types.YubiKeyCompromised, types.YubiKeyActive); err == nil {
		t.Fatal("compromised is terminal, expected rejection")
	}
	if err := ValidateYubiKeyTransition(types.YubiKeyUnprovisioned, types.YubiKeyProvisioned); err != nil {
		t.Fatalf("unprovisioned -> provisioned should be legal: %v", err)
	}
}

func TestValidateManifestTransitionIsLinear(t *testing.T) {
	if err := ValidateManifestTransition(types.ManifestBuilding, types.ManifestExported); err == nil {
		t.Fatal("building -> exported should skip sealed and be illegal")
	}
	if err := ValidateManifestTransition(types.ManifestBuilding, types.ManifestSealed); err != nil {
		t.Fatalf("building -> sealed should be legal: %v", err)
	}
	if err := ValidateManifestTransition(types.ManifestSealed, types.ManifestExported); err != nil {
		t.Fatalf("sealed -> exported should be legal: %v", err)
	}
}

func TestValidateNatsAccountTransitionHierarchy(t *testing.T) {
	if err := ValidateNatsAccountTransition(types.NatsAccountPending, types.NatsAccountActive); err != nil {
		t.Fatalf("pending -> active should be legal: %v", err)
	}
	if err := ValidateNatsAccountTransition(types.NatsAccountRevoked, types.NatsAccountActive); err == nil {
		t.Fatal("revoked is terminal, expected rejection")
	}
}
