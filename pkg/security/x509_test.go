package security

import (
	"crypto/x509"
	"testing"
)

func TestIssueCertificateSelfSignedRoot(t *testing.T) {
	seed := newTestSecret(t, 32)
	key, err := GenerateEd25519(seed)
	if err != nil {
		t.Fatalf("GenerateEd25519() error: %v", err)
	}

	req := CertificateRequest{
		Subject:           testSubject("root ca"),
		SubjectKey:        key,
		IsCA:              true,
		MaxPathLen:        1,
		NotBefore:         fixedTime,
		NotAfter:          fixedTime.AddDate(10, 0, 0),
		IssuerFingerprint: key.Fingerprint,
	}

	first, err := IssueCertificate(req)
	if err != nil {
		t.Fatalf("IssueCertificate() error: %v", err)
	}
	if !first.Certificate.IsCA {
		t.Error("expected IsCA true")
	}
	if first.Certificate.KeyUsage&x509.KeyUsageCertSign == 0 {
		t.Error("expected KeyUsageCertSign on CA certificate")
	}

	second, err := IssueCertificate(req)
	if err != nil {
		t.Fatalf("IssueCertificate() second call error: %v", err)
	}

	if first.SerialNumber.Cmp(second.SerialNumber) != 0 {
		t.Errorf("serial numbers differ across identical requests: %v vs %v", first.SerialNumber, second.SerialNumber)
	}
	if first.Fingerprint != second.Fingerprint {
		t.Error("fingerprints differ across identical requests")
	}
	if string(first.DER) != string(second.DER) {
		t.Error("DER encodings differ across identical requests; issuance is not deterministic")
	}
}

func TestIssueCertificateLeafSignedByRoot(t *testing.T) {
	root, leaf := issueTestChain(t)

	if leaf.Certificate.IsCA {
		t.Error("leaf certificate should not be a CA")
	}
	if err := leaf.Certificate.CheckSignatureFrom(root.Certificate); err != nil {
		t.Errorf("CheckSignatureFrom() error: %v", err)
	}
}

func TestIssueCertificateDifferentSubjectsDifferentSerials(t *testing.T) {
	seed := newTestSecret(t, 32)
	key, err := GenerateEd25519(seed)
	if err != nil {
		t.Fatalf("GenerateEd25519() error: %v", err)
	}

	base := CertificateRequest{
		SubjectKey:        key,
		NotBefore:         fixedTime,
		NotAfter:          fixedTime.AddDate(1, 0, 0),
		IssuerFingerprint: key.Fingerprint,
	}

	a := base
	a.Subject = testSubject("alice")
	certA, err := IssueCertificate(a)
	if err != nil {
		t.Fatalf("IssueCertificate(a) error: %v", err)
	}

	b := base
	b.Subject = testSubject("bob")
	certB, err := IssueCertificate(b)
	if err != nil {
		t.Fatalf("IssueCertificate(b) error: %v", err)
	}

	if certA.SerialNumber.Cmp(certB.SerialNumber) == 0 {
		t.Error("distinct subjects produced the same serial number")
	}
}
