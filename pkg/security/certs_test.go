package security

import (
	"crypto/x509"
	"testing"
	"time"
)

func TestCertNeedsRotation(t *testing.T) {
	tests := []struct {
		name     string
		notAfter time.Time
		needsRot bool
	}{
		{"expiring in 1 day", time.Now().Add(24 * time.Hour), true},
		{"expiring in 29 days", time.Now().Add(29 * 24 * time.Hour), true},
		{"expiring in 31 days", time.Now().Add(31 * 24 * time.Hour), false},
		{"expiring in 60 days", time.Now().Add(60 * 24 * time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cert := &x509.Certificate{NotAfter: tt.notAfter}
			if got := CertNeedsRotation(cert); got != tt.needsRot {
				t.Errorf("CertNeedsRotation() = %v, want %v", got, tt.needsRot)
			}
		})
	}

	if !CertNeedsRotation(nil) {
		t.Error("nil certificate should need rotation")
	}
}

func TestGetCertExpiry(t *testing.T) {
	expected := time.Now().Add(90 * 24 * time.Hour)
	cert := &x509.Certificate{NotAfter: expected}

	if got := GetCertExpiry(cert); !got.Equal(expected) {
		t.Errorf("GetCertExpiry() = %v, want %v", got, expected)
	}
	if !GetCertExpiry(nil).IsZero() {
		t.Error("nil certificate should return zero time")
	}
}

func TestGetCertTimeRemaining(t *testing.T) {
	expected := 45 * 24 * time.Hour
	cert := &x509.Certificate{NotAfter: time.Now().Add(expected)}

	remaining := GetCertTimeRemaining(cert)
	if diff := remaining - expected; diff < -time.Second || diff > time.Second {
		t.Errorf("GetCertTimeRemaining() = %v, want ~%v", remaining, expected)
	}
	if GetCertTimeRemaining(nil) != 0 {
		t.Error("nil certificate should return zero duration")
	}
}

func issueTestChain(t *testing.T) (root *IssuedCertificate, leaf *IssuedCertificate) {
	t.Helper()

	rootSeed := newTestSecret(t, 32)
	rootKey, err := GenerateEd25519(rootSeed)
	if err != nil {
		t.Fatalf("GenerateEd25519(root) error: %v", err)
	}

	root, err = IssueCertificate(CertificateRequest{
		Subject:           testSubject("root ca"),
		SubjectKey:        rootKey,
		IsCA:              true,
		MaxPathLen:        1,
		NotBefore:         fixedTime,
		NotAfter:          fixedTime.Add(10 * 365 * 24 * time.Hour),
		IssuerFingerprint: rootKey.Fingerprint,
	})
	if err != nil {
		t.Fatalf("IssueCertificate(root) error: %v", err)
	}

	leafSeed := newTestSecret(t, 32)
	leafKey, err := GenerateEd25519(leafSeed)
	if err != nil {
		t.Fatalf("GenerateEd25519(leaf) error: %v", err)
	}

	leaf, err = IssueCertificate(CertificateRequest{
		Subject:           testSubject("leaf"),
		SubjectKey:        leafKey,
		IsCA:              false,
		KeyUsage:          x509.KeyUsageDigitalSignature,
		ExtKeyUsage:       []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		NotBefore:         fixedTime,
		NotAfter:          fixedTime.Add(365 * 24 * time.Hour),
		SigningKey:        rootKey,
		SigningCert:       root.Certificate,
		IssuerFingerprint: rootKey.Fingerprint,
	})
	if err != nil {
		t.Fatalf("IssueCertificate(leaf) error: %v", err)
	}
	return root, leaf
}

func TestValidateCertChain(t *testing.T) {
	root, leaf := issueTestChain(t)

	if err := ValidateCertChain(leaf.Certificate, root.Certificate); err != nil {
		t.Errorf("ValidateCertChain() error: %v", err)
	}
	if err := ValidateCertChain(nil, root.Certificate); err == nil {
		t.Error("expected error for nil certificate")
	}
	if err := ValidateCertChain(leaf.Certificate, nil); err == nil {
		t.Error("expected error for nil CA")
	}
}

func TestGetCertInfo(t *testing.T) {
	root, leaf := issueTestChain(t)

	info := GetCertInfo(leaf.Certificate)
	if info.IsCA {
		t.Error("leaf certificate should not be a CA")
	}
	if info.Issuer != root.Certificate.Subject.String() {
		t.Errorf("Issuer = %q, want %q", info.Issuer, root.Certificate.Subject.String())
	}

	nilInfo := GetCertInfo(nil)
	if nilInfo.Subject != "" {
		t.Error("nil certificate should produce a zero-value CertInfo")
	}
}
