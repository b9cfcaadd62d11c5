package security

import (
	"crypto/ed25519"
	"crypto/rsa"
	"encoding/pem"
	"fmt"

	"golang.org/x/crypto/ssh"
)

// SSHPublicKey returns kp's public key in OpenSSH "authorized_keys"
// wire format, for KeyPair algorithms usable as SSH identities
// (ed25519, ecdsa-p256, rsa).
func SSHPublicKey(kp *KeyPair) ([]byte, error) {
	pub, err := PublicKeyFromKeyPair(kp)
	if err != nil {
		return nil, err
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("security: wrap ssh public key: %w", err)
	}
	return ssh.MarshalAuthorizedKey(sshPub), nil
}

// SSHPrivateKeyPEM encodes kp's private key as an OpenSSH-format PEM
// block (RFC 4716 successor "OPENSSH PRIVATE KEY").
func SSHPrivateKeyPEM(kp *KeyPair) ([]byte, error) {
	var signerKey any

	switch kp.Algorithm {
	case AlgorithmEd25519:
		raw, err := kp.Secret.Expose()
		if err != nil {
			return nil, fmt.Errorf("security: expose ed25519 key: %w", err)
		}
		signerKey = ed25519.PrivateKey(raw)
	case AlgorithmECDSAP256:
		priv, err := ECDSAPrivateKey(kp)
		if err != nil {
			return nil, err
		}
		signerKey = priv
	case AlgorithmRSA2048, AlgorithmRSA4096:
		signer, err := SignerFromKeyPair(kp)
		if err != nil {
			return nil, err
		}
		rsaPriv, ok := signer.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("security: expected *rsa.PrivateKey")
		}
		signerKey = rsaPriv
	default:
		return nil, &ErrUnsupported{Algorithm: kp.Algorithm}
	}

	block, err := ssh.MarshalPrivateKey(signerKey, "")
	if err != nil {
		return nil, fmt.Errorf("security: marshal ssh private key: %w", err)
	}
	return pem.EncodeToMemory(block), nil
}
