package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/cimkeys/cim-keys/pkg/secretbuf"
)

// Seal encrypts plaintext under key with AES-256-GCM, returning the
// nonce prepended to the ciphertext. key must hold exactly 32 bytes
// (spec §4.9's at-rest encryption for private key material written
// to the projection's *.priv, *.key and *.nk files). The nonce is drawn from crypto/rand: unlike key
// derivation and signing, at-rest sealing has no reproducibility
// requirement, only confidentiality and a fresh nonce per call.
func Seal(key *secretbuf.Buffer, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("security: generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts data produced by Seal.
func Open(key *secretbuf.Buffer, sealed []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("security: sealed data too short")
	}
	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("security: open sealed data: %w", err)
	}
	return plaintext, nil
}

func newGCM(key *secretbuf.Buffer) (cipher.AEAD, error) {
	raw, err := key.Expose()
	if err != nil {
		return nil, fmt.Errorf("security: expose seal key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("security: seal key must be 32 bytes, got %d", len(raw))
	}

	block, err := aes.NewCipher(raw)
	if err != nil {
		return nil, fmt.Errorf("security: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("security: new gcm: %w", err)
	}
	return gcm, nil
}
