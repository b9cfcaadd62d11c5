package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"time"
)

// CertificateRequest describes a certificate to issue (spec §4.4's
// "X.509 issuance" generator). Issuing is self-signed when SigningCert
// is nil (Root CA case); otherwise SigningCert/SigningKey must be the
// parent CA's certificate and key.
type CertificateRequest struct {
	Subject     pkix.Name
	SubjectKey  *KeyPair
	IsCA        bool
	MaxPathLen  int
	KeyUsage    x509.KeyUsage
	ExtKeyUsage []x509.ExtKeyUsage
	DNSNames    []string
	IPAddresses []net.IP
	NotBefore   time.Time
	NotAfter    time.Time

	SigningKey        *KeyPair
	SigningCert       *x509.Certificate
	IssuerFingerprint [32]byte
}

// IssuedCertificate is the result of IssueCertificate: the DER and PEM
// encodings, the parsed certificate, and its deterministic serial and
// fingerprint.
type IssuedCertificate struct {
	DER          []byte
	PEM          []byte
	Certificate  *x509.Certificate
	SerialNumber *big.Int
	Fingerprint  [32]byte
}

// IssueCertificate builds and signs a certificate per req. The serial
// number is deterministic: the first 16 bytes of
// SHA-256(issuerFingerprint || subject || notBefore) (spec §4.4),
// where issuerFingerprint is req.IssuerFingerprint (the signing key's
// public fingerprint; for self-signed certificates this is the
// subject key's own fingerprint).
func IssueCertificate(req CertificateRequest) (*IssuedCertificate, error) {
	subjectPub, err := PublicKeyFromKeyPair(req.SubjectKey)
	if err != nil {
		return nil, fmt.Errorf("security: subject public key: %w", err)
	}

	signingKey := req.SigningKey
	if signingKey == nil {
		signingKey = req.SubjectKey // self-signed
	}
	signer, err := SignerFromKeyPair(signingKey)
	if err != nil {
		return nil, fmt.Errorf("security: signing key: %w", err)
	}

	serial := deterministicSerial(req.IssuerFingerprint, req.Subject, req.NotBefore)

	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               req.Subject,
		NotBefore:             req.NotBefore,
		NotAfter:              req.NotAfter,
		KeyUsage:              req.KeyUsage,
		ExtKeyUsage:           req.ExtKeyUsage,
		IsCA:                  req.IsCA,
		BasicConstraintsValid: true,
		DNSNames:              req.DNSNames,
		IPAddresses:           req.IPAddresses,
	}
	if req.IsCA {
		template.KeyUsage |= x509.KeyUsageCertSign | x509.KeyUsageCRLSign
		if req.MaxPathLen > 0 {
			template.MaxPathLen = req.MaxPathLen
			template.MaxPathLenZero = false
		}
	}

	parent := template
	if req.SigningCert != nil {
		parent = req.SigningCert
	}

	der, err := x509.CreateCertificate(deterministicRandReader{}, template, parent, subjectPub, signer)
	if err != nil {
		return nil, &ErrSigningFailed{Err: err}
	}

	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("security: parse issued certificate: %w", err)
	}

	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})

	return &IssuedCertificate{
		DER:          der,
		PEM:          pemBytes,
		Certificate:  cert,
		SerialNumber: serial,
		Fingerprint:  fingerprintOf(der),
	}, nil
}

// deterministicSerial computes the first 16 bytes of
// SHA-256(issuerFingerprint || subject.String() || notBefore RFC3339)
// as a positive big.Int, per spec §4.4.
func deterministicSerial(issuerFingerprint [32]byte, subject pkix.Name, notBefore time.Time) *big.Int {
	h := sha256.New()
	h.Write(issuerFingerprint[:])
	h.Write([]byte(subject.String()))
	h.Write([]byte(notBefore.UTC().Format(time.RFC3339Nano)))
	sum := h.Sum(nil)
	serial := new(big.Int).SetBytes(sum[:16])
	// x509 requires a positive, nonzero serial.
	if serial.Sign() == 0 {
		serial.SetInt64(1)
	}
	return serial
}

// deterministicRandReader panics if x509.CreateCertificate ever reads
// from it: signing is fully deterministic (Ed25519 and our DRBG-backed
// ECDSA/RSA keys need no per-signature randomness beyond what the
// signer itself already derived), so any read here would mean a
// signature algorithm silently reintroduced nondeterminism.
type deterministicRandReader struct{}

func (deterministicRandReader) Read(p []byte) (int, error) {
	panic("security: unexpected read from deterministic signing path")
}

// PublicKeyFromKeyPair reconstructs a crypto.PublicKey from a KeyPair's
// canonical public encoding.
func PublicKeyFromKeyPair(kp *KeyPair) (crypto.PublicKey, error) {
	switch kp.Algorithm {
	case AlgorithmEd25519:
		return ed25519.PublicKey(kp.PublicBytes), nil
	case AlgorithmECDSAP256:
		curve := elliptic.P256()
		x, y := elliptic.Unmarshal(curve, kp.PublicBytes)
		if x == nil {
			return nil, fmt.Errorf("security: invalid ecdsa public point")
		}
		return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
	case AlgorithmRSA2048, AlgorithmRSA4096:
		pub, err := x509.ParsePKIXPublicKey(kp.PublicBytes)
		if err != nil {
			return nil, fmt.Errorf("security: parse rsa public key: %w", err)
		}
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("security: not an rsa public key")
		}
		return rsaPub, nil
	default:
		return nil, &ErrUnsupported{Algorithm: kp.Algorithm}
	}
}

// SignerFromKeyPair reconstructs a crypto.Signer from a KeyPair.
func SignerFromKeyPair(kp *KeyPair) (crypto.Signer, error) {
	switch kp.Algorithm {
	case AlgorithmEd25519:
		raw, err := kp.Secret.Expose()
		if err != nil {
			return nil, fmt.Errorf("security: expose ed25519 key: %w", err)
		}
		return ed25519.PrivateKey(raw), nil
	case AlgorithmECDSAP256:
		return ECDSAPrivateKey(kp)
	case AlgorithmRSA2048, AlgorithmRSA4096:
		raw, err := kp.Secret.Expose()
		if err != nil {
			return nil, fmt.Errorf("security: expose rsa key: %w", err)
		}
		return x509.ParsePKCS1PrivateKey(raw)
	default:
		return nil, &ErrUnsupported{Algorithm: kp.Algorithm}
	}
}
