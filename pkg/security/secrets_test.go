package security

import (
	"bytes"
	"testing"

	"github.com/cimkeys/cim-keys/pkg/secretbuf"
)

func TestSealOpenRoundtrip(t *testing.T) {
	key := secretbuf.FromBytes(bytes.Repeat([]byte{0x42}, 32))

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"simple string", []byte("hello world")},
		{"json data", []byte(`{"fingerprint":"abc","algorithm":"ed25519"}`)},
		{"binary data", []byte{0x00, 0x01, 0x02, 0xFF, 0xFE, 0xFD}},
		{"large data", bytes.Repeat([]byte("test"), 1000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sealed, err := Seal(key, tt.plaintext)
			if err != nil {
				t.Fatalf("Seal() error = %v", err)
			}
			if bytes.Equal(sealed, tt.plaintext) {
				t.Error("sealed data should not equal plaintext")
			}

			opened, err := Open(key, sealed)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			if !bytes.Equal(opened, tt.plaintext) {
				t.Errorf("Open() = %v, want %v", opened, tt.plaintext)
			}
		})
	}
}

func TestSealProducesDistinctCiphertextsEachCall(t *testing.T) {
	key := secretbuf.FromBytes(bytes.Repeat([]byte{0x01}, 32))
	plaintext := []byte("same plaintext every time")

	first, err := Seal(key, plaintext)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	second, err := Seal(key, plaintext)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if bytes.Equal(first, second) {
		t.Error("two seals of the same plaintext should not produce identical ciphertext (nonce reuse)")
	}
}

func TestOpenErrors(t *testing.T) {
	key := secretbuf.FromBytes(bytes.Repeat([]byte{0x02}, 32))

	tests := []struct {
		name   string
		sealed []byte
	}{
		{"empty data", []byte{}},
		{"nil data", nil},
		{"too short", []byte{0x01, 0x02}},
		{"corrupted", bytes.Repeat([]byte("x"), 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Open(key, tt.sealed); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestOpenWithWrongKeyFails(t *testing.T) {
	key1 := secretbuf.FromBytes(bytes.Repeat([]byte{0x03}, 32))
	key2 := secretbuf.FromBytes(bytes.Repeat([]byte{0x04}, 32))

	sealed, err := Seal(key1, []byte("secret data"))
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	if _, err := Open(key2, sealed); err == nil {
		t.Error("Open() should fail with the wrong key")
	}
}

func TestSealRejectsWrongKeyLength(t *testing.T) {
	shortKey := secretbuf.FromBytes(make([]byte, 16))
	if _, err := Seal(shortKey, []byte("data")); err == nil {
		t.Error("Seal() should reject a non-32-byte key")
	}
}
