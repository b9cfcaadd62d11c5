package security

import (
	"crypto/x509"
	"fmt"
	"time"
)

// certRotationThreshold is the default "needs rotation" window: a
// certificate with less than this much validity remaining is due for
// reissuance (spec §6's export-manifest rotation audit).
const certRotationThreshold = 30 * 24 * time.Hour

// CertNeedsRotation reports whether cert has less than
// certRotationThreshold remaining until NotAfter.
func CertNeedsRotation(cert *x509.Certificate) bool {
	if cert == nil {
		return true
	}
	return time.Until(cert.NotAfter) < certRotationThreshold
}

// GetCertExpiry returns cert's NotAfter.
func GetCertExpiry(cert *x509.Certificate) time.Time {
	if cert == nil {
		return time.Time{}
	}
	return cert.NotAfter
}

// GetCertTimeRemaining returns the duration until cert's NotAfter.
func GetCertTimeRemaining(cert *x509.Certificate) time.Duration {
	if cert == nil {
		return 0
	}
	return time.Until(cert.NotAfter)
}

// ValidateCertChain verifies that cert chains to ca, accepting either
// client or server extended key usage (the CIM chain depth policy is
// enforced separately; this only checks the cryptographic chain).
func ValidateCertChain(cert, ca *x509.Certificate) error {
	if cert == nil {
		return fmt.Errorf("security: certificate is nil")
	}
	if ca == nil {
		return fmt.Errorf("security: ca certificate is nil")
	}

	roots := x509.NewCertPool()
	roots.AddCert(ca)

	opts := x509.VerifyOptions{
		Roots:     roots,
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageAny},
	}

	if _, err := cert.Verify(opts); err != nil {
		return fmt.Errorf("security: certificate chain verification failed: %w", err)
	}
	return nil
}

// CertInfo is a human-readable summary of a certificate; pkg/command
// uses it to record key usage names on CertificateGenerated.
type CertInfo struct {
	Subject     string
	Issuer      string
	SerialHex   string
	NotBefore   time.Time
	NotAfter    time.Time
	IsCA        bool
	KeyUsage    []string
	ExtKeyUsage []string
}

// GetCertInfo summarizes cert for display.
func GetCertInfo(cert *x509.Certificate) CertInfo {
	if cert == nil {
		return CertInfo{}
	}
	return CertInfo{
		Subject:     cert.Subject.String(),
		Issuer:      cert.Issuer.String(),
		SerialHex:   fmt.Sprintf("%x", cert.SerialNumber),
		NotBefore:   cert.NotBefore,
		NotAfter:    cert.NotAfter,
		IsCA:        cert.IsCA,
		KeyUsage:    describeKeyUsage(cert.KeyUsage),
		ExtKeyUsage: describeExtKeyUsage(cert.ExtKeyUsage),
	}
}

func describeKeyUsage(usage x509.KeyUsage) []string {
	var usages []string
	if usage&x509.KeyUsageDigitalSignature != 0 {
		usages = append(usages, "DigitalSignature")
	}
	if usage&x509.KeyUsageKeyEncipherment != 0 {
		usages = append(usages, "KeyEncipherment")
	}
	if usage&x509.KeyUsageCertSign != 0 {
		usages = append(usages, "CertSign")
	}
	if usage&x509.KeyUsageCRLSign != 0 {
		usages = append(usages, "CRLSign")
	}
	return usages
}

func describeExtKeyUsage(usages []x509.ExtKeyUsage) []string {
	var result []string
	for _, usage := range usages {
		switch usage {
		case x509.ExtKeyUsageClientAuth:
			result = append(result, "ClientAuth")
		case x509.ExtKeyUsageServerAuth:
			result = append(result, "ServerAuth")
		case x509.ExtKeyUsageCodeSigning:
			result = append(result, "CodeSigning")
		case x509.ExtKeyUsageAny:
			result = append(result, "Any")
		}
	}
	return result
}
