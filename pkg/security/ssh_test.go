package security

import (
	"bytes"
	"strings"
	"testing"
)

func TestSSHPublicKeyEd25519(t *testing.T) {
	seed := newTestSecret(t, 32)
	kp, err := GenerateEd25519(seed)
	if err != nil {
		t.Fatalf("GenerateEd25519() error: %v", err)
	}

	line, err := SSHPublicKey(kp)
	if err != nil {
		t.Fatalf("SSHPublicKey() error: %v", err)
	}
	if !bytes.HasPrefix(line, []byte("ssh-ed25519 ")) {
		t.Errorf("expected ssh-ed25519 authorized_keys line, got %q", line)
	}

	again, err := SSHPublicKey(kp)
	if err != nil {
		t.Fatalf("SSHPublicKey() second call error: %v", err)
	}
	if !bytes.Equal(line, again) {
		t.Error("SSHPublicKey() is not deterministic for the same key pair")
	}
}

func TestSSHPrivateKeyPEM(t *testing.T) {
	seed := newTestSecret(t, 32)
	kp, err := GenerateEd25519(seed)
	if err != nil {
		t.Fatalf("GenerateEd25519() error: %v", err)
	}

	pemBytes, err := SSHPrivateKeyPEM(kp)
	if err != nil {
		t.Fatalf("SSHPrivateKeyPEM() error: %v", err)
	}
	if !strings.Contains(string(pemBytes), "OPENSSH PRIVATE KEY") {
		t.Errorf("expected OPENSSH PRIVATE KEY PEM block, got %q", pemBytes)
	}
}
