package command

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/cimkeys/cim-keys/pkg/event"
	"github.com/cimkeys/cim-keys/pkg/id"
	"github.com/cimkeys/cim-keys/pkg/policy"
	"github.com/cimkeys/cim-keys/pkg/projection"
	"github.com/cimkeys/cim-keys/pkg/security"
	"github.com/cimkeys/cim-keys/pkg/types"
)

func certificateKeyLabel(keyID id.Id) types.SubkeyLabel {
	return types.SubkeyLabel{"pki", "key", keyID.String()}
}

// GenerateRootCA is spec §4.7's GenerateRootCA{subject, validity_days}.
type GenerateRootCA struct {
	types.Envelope
	Subject      pkix.Name
	Algorithm    types.KeyAlgorithm
	ValidityDays int
}

// HandleGenerateRootCA emits KeyGenerated then
// CertificateGenerated(is_ca=true, self-signed), rejecting if the
// projection already holds a non-terminal root CA.
func HandleGenerateRootCA(cmd GenerateRootCA, view *projection.View, deps Deps) ([]event.DomainEvent, error) {
	if cmd.ValidityDays <= 0 {
		return nil, &ValidationError{Reason: "validity_days must be positive"}
	}
	for _, cert := range view.Certificates {
		if cert.IssuerID.IsZero() && cert.State != types.CertificateRevoked {
			return nil, &ValidationError{Reason: "a root CA already exists in a non-terminal state"}
		}
	}

	keyID, err := id.New(deps.Clock)
	if err != nil {
		return nil, fmt.Errorf("command: new key id: %w", err)
	}
	certID, err := id.New(deps.Clock)
	if err != nil {
		return nil, fmt.Errorf("command: new certificate id: %w", err)
	}

	kp, err := deriveKeyPair(deps.Keys, certificateKeyLabel(keyID), cmd.Algorithm)
	if err != nil {
		return nil, err
	}

	notBefore := deps.Clock.Now().Time()
	notAfter := notBefore.AddDate(0, 0, cmd.ValidityDays)

	issued, err := security.IssueCertificate(security.CertificateRequest{
		Subject:           cmd.Subject,
		SubjectKey:        kp,
		IsCA:              true,
		NotBefore:         notBefore,
		NotAfter:          notAfter,
		IssuerFingerprint: kp.Fingerprint,
	})
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("issue root ca: %v", err)}
	}

	keyEnv, err := newEnvelope(deps.Clock, cmd.CorrelationID, cmd.ID)
	if err != nil {
		return nil, err
	}
	certEnv, err := newEnvelope(deps.Clock, cmd.CorrelationID, cmd.ID)
	if err != nil {
		return nil, err
	}

	return []event.DomainEvent{
		keyGeneratedEvent(keyEnv, keyID, kp, id.Id{}),
		certificateGeneratedEvent(certEnv, certID, issued, cmd.Subject, id.Id{}, keyID, true),
	}, nil
}

// GenerateIntermediateCA is spec §4.7's
// GenerateIntermediateCA{subject, parent_cert_id, validity_days}.
type GenerateIntermediateCA struct {
	types.Envelope
	Subject      pkix.Name
	Algorithm    types.KeyAlgorithm
	ParentCertID id.Id
	ValidityDays int
}

// HandleGenerateIntermediateCA validates the parent is an Active CA
// whose validity covers the new certificate and that the resulting
// chain depth stays within policy, then emits KeyGenerated and
// CertificateGenerated(issuer=parent).
func HandleGenerateIntermediateCA(cmd GenerateIntermediateCA, view *projection.View, deps Deps) ([]event.DomainEvent, error) {
	if cmd.ValidityDays <= 0 {
		return nil, &ValidationError{Reason: "validity_days must be positive"}
	}
	parent, ok := view.Certificates[cmd.ParentCertID]
	if !ok {
		return nil, &ValidationError{Reason: "parent certificate not found"}
	}
	if !parent.IsCA {
		return nil, &ValidationError{Reason: "parent certificate is not a CA"}
	}

	notBefore := deps.Clock.Now().Time()
	notAfter := notBefore.AddDate(0, 0, cmd.ValidityDays)

	if d := policy.LeafValidityWithinIssuer(parent, notBefore, notAfter); d.Err() != nil {
		return nil, d.Err()
	}
	if d := policy.ChainDepth(view, parent.ID); d.Err() != nil {
		return nil, d.Err()
	}
	if d := policy.UniqueCommonName(view, parent.ID, cmd.Subject.String()); d.Err() != nil {
		return nil, d.Err()
	}

	parentX509, err := parseCertificatePEM(parent.PEM)
	if err != nil {
		return nil, fmt.Errorf("command: parse parent certificate: %w", err)
	}
	parentKey, ok := view.Keys[parent.SigningKeyID]
	if !ok {
		return nil, &ValidationError{Reason: "parent signing key not found"}
	}
	parentKP, err := deriveKeyPair(deps.Keys, certificateKeyLabel(parentKey.ID), types.KeyAlgorithm(parentKey.Algorithm))
	if err != nil {
		return nil, fmt.Errorf("command: re-derive parent key: %w", err)
	}

	keyID, err := id.New(deps.Clock)
	if err != nil {
		return nil, fmt.Errorf("command: new key id: %w", err)
	}
	certID, err := id.New(deps.Clock)
	if err != nil {
		return nil, fmt.Errorf("command: new certificate id: %w", err)
	}

	kp, err := deriveKeyPair(deps.Keys, certificateKeyLabel(keyID), cmd.Algorithm)
	if err != nil {
		return nil, err
	}

	issued, err := security.IssueCertificate(security.CertificateRequest{
		Subject:           cmd.Subject,
		SubjectKey:        kp,
		IsCA:              true,
		MaxPathLen:        0,
		NotBefore:         notBefore,
		NotAfter:          notAfter,
		SigningKey:        parentKP,
		SigningCert:       parentX509,
		IssuerFingerprint: parentKP.Fingerprint,
	})
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("issue intermediate ca: %v", err)}
	}

	keyEnv, err := newEnvelope(deps.Clock, cmd.CorrelationID, cmd.ID)
	if err != nil {
		return nil, err
	}
	certEnv, err := newEnvelope(deps.Clock, cmd.CorrelationID, cmd.ID)
	if err != nil {
		return nil, err
	}

	return []event.DomainEvent{
		keyGeneratedEvent(keyEnv, keyID, kp, id.Id{}),
		certificateGeneratedEvent(certEnv, certID, issued, cmd.Subject, parent.ID, keyID, true),
	}, nil
}

// GenerateLeafCertificate is spec §4.7's
// GenerateLeafCertificate{subject, san, issuer_cert_id, key_usage,
// validity_days}.
type GenerateLeafCertificate struct {
	types.Envelope
	Subject      pkix.Name
	Algorithm    types.KeyAlgorithm
	IssuerCertID id.Id
	SAN          []string
	KeyUsage     x509.KeyUsage
	ExtKeyUsage  []x509.ExtKeyUsage
	ValidityDays int
}

// HandleGenerateLeafCertificate enforces validity_days <=
// issuer.remaining - 1 day and is_ca=false, then emits KeyGenerated
// and CertificateGenerated.
func HandleGenerateLeafCertificate(cmd GenerateLeafCertificate, view *projection.View, deps Deps) ([]event.DomainEvent, error) {
	if cmd.ValidityDays <= 0 {
		return nil, &ValidationError{Reason: "validity_days must be positive"}
	}
	issuer, ok := view.Certificates[cmd.IssuerCertID]
	if !ok {
		return nil, &ValidationError{Reason: "issuer certificate not found"}
	}
	if !issuer.IsCA {
		return nil, &ValidationError{Reason: "issuer certificate is not a CA"}
	}

	now := deps.Clock.Now().Time()
	remaining := issuer.NotAfter.Sub(now)
	maxValidity := remaining - 24*time.Hour
	if time.Duration(cmd.ValidityDays)*24*time.Hour > maxValidity {
		return nil, &ValidationError{Reason: "validity_days exceeds issuer.remaining - 1 day"}
	}
	notBefore := now
	notAfter := now.Add(time.Duration(cmd.ValidityDays) * 24 * time.Hour)

	if d := policy.LeafValidityWithinIssuer(issuer, notBefore, notAfter); d.Err() != nil {
		return nil, d.Err()
	}
	if d := policy.ChainDepth(view, issuer.ID); d.Err() != nil {
		return nil, d.Err()
	}
	if d := policy.UniqueCommonName(view, issuer.ID, cmd.Subject.String()); d.Err() != nil {
		return nil, d.Err()
	}

	issuerX509, err := parseCertificatePEM(issuer.PEM)
	if err != nil {
		return nil, fmt.Errorf("command: parse issuer certificate: %w", err)
	}
	issuerKey, ok := view.Keys[issuer.SigningKeyID]
	if !ok {
		return nil, &ValidationError{Reason: "issuer signing key not found"}
	}
	issuerKP, err := deriveKeyPair(deps.Keys, certificateKeyLabel(issuerKey.ID), types.KeyAlgorithm(issuerKey.Algorithm))
	if err != nil {
		return nil, fmt.Errorf("command: re-derive issuer key: %w", err)
	}

	keyID, err := id.New(deps.Clock)
	if err != nil {
		return nil, fmt.Errorf("command: new key id: %w", err)
	}
	certID, err := id.New(deps.Clock)
	if err != nil {
		return nil, fmt.Errorf("command: new certificate id: %w", err)
	}

	kp, err := deriveKeyPair(deps.Keys, certificateKeyLabel(keyID), cmd.Algorithm)
	if err != nil {
		return nil, err
	}

	keyUsage := cmd.KeyUsage
	if keyUsage == 0 {
		keyUsage = x509.KeyUsageDigitalSignature
	}

	issued, err := security.IssueCertificate(security.CertificateRequest{
		Subject:           cmd.Subject,
		SubjectKey:        kp,
		IsCA:              false,
		KeyUsage:          keyUsage,
		ExtKeyUsage:       cmd.ExtKeyUsage,
		DNSNames:          cmd.SAN,
		NotBefore:         notBefore,
		NotAfter:          notAfter,
		SigningKey:        issuerKP,
		SigningCert:       issuerX509,
		IssuerFingerprint: issuerKP.Fingerprint,
	})
	if err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("issue leaf certificate: %v", err)}
	}

	keyEnv, err := newEnvelope(deps.Clock, cmd.CorrelationID, cmd.ID)
	if err != nil {
		return nil, err
	}
	certEnv, err := newEnvelope(deps.Clock, cmd.CorrelationID, cmd.ID)
	if err != nil {
		return nil, err
	}

	return []event.DomainEvent{
		keyGeneratedEvent(keyEnv, keyID, kp, id.Id{}),
		certificateGeneratedEvent(certEnv, certID, issued, cmd.Subject, issuer.ID, keyID, false),
	}, nil
}

func certificateGeneratedEvent(env event.Envelope, certID id.Id, issued *security.IssuedCertificate, subject pkix.Name, issuerID, signingKeyID id.Id, isCA bool) event.DomainEvent {
	env.AggregateID = certID
	keyUsage, extKeyUsage := describeUsage(issued.Certificate)
	return event.DomainEvent{
		Envelope: env,
		Kind:     event.KindCertificateGenerated,
		Payload: event.CertificateGenerated{
			CertID:       certID,
			Subject:      subject.String(),
			IssuerID:     issuerID,
			IsCA:         isCA,
			NotBefore:    issued.Certificate.NotBefore.UTC().Format(time.RFC3339Nano),
			NotAfter:     issued.Certificate.NotAfter.UTC().Format(time.RFC3339Nano),
			SerialHex:    fmt.Sprintf("%x", issued.SerialNumber),
			KeyUsage:     keyUsage,
			ExtKeyUsage:  extKeyUsage,
			SAN:          issued.Certificate.DNSNames,
			PEM:          issued.PEM,
			Fingerprint:  fmt.Sprintf("%x", issued.Fingerprint),
			SigningKeyID: signingKeyID,
		},
	}
}

func describeUsage(cert *x509.Certificate) ([]string, []string) {
	info := security.GetCertInfo(cert)
	return info.KeyUsage, info.ExtKeyUsage
}

func parseCertificatePEM(data []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("command: no PEM block found")
	}
	return x509.ParseCertificate(block.Bytes)
}
