package security

import (
	"strings"
	"testing"
)

func TestPGPKeyPairSigningOnly(t *testing.T) {
	seed := newTestSecret(t, 32)
	kp, err := GenerateEd25519(seed)
	if err != nil {
		t.Fatalf("GenerateEd25519() error: %v", err)
	}

	priv, pub, err := PGPKeyPair(kp, nil, PGPIdentity{Name: "Root Trust", Email: "root@example.test"}, fixedTime)
	if err != nil {
		t.Fatalf("PGPKeyPair() error: %v", err)
	}
	if !strings.Contains(string(priv), "BEGIN PGP PRIVATE KEY BLOCK") {
		t.Error("expected armored PGP private key block")
	}
	if !strings.Contains(string(pub), "BEGIN PGP PUBLIC KEY BLOCK") {
		t.Error("expected armored PGP public key block")
	}
}

func TestPGPKeyPairWithEncryptionSubkey(t *testing.T) {
	signingSeed := newTestSecret(t, 32)
	signingKey, err := GenerateEd25519(signingSeed)
	if err != nil {
		t.Fatalf("GenerateEd25519() error: %v", err)
	}

	encSeed := newTestSecret(t, 256)
	encKey, err := GenerateRSA(encSeed, 2048)
	if err != nil {
		t.Fatalf("GenerateRSA() error: %v", err)
	}

	priv, pub, err := PGPKeyPair(signingKey, encKey, PGPIdentity{Name: "Root Trust", Email: "root@example.test"}, fixedTime)
	if err != nil {
		t.Fatalf("PGPKeyPair() error: %v", err)
	}
	if len(priv) == 0 || len(pub) == 0 {
		t.Fatal("expected non-empty armored output")
	}
}
