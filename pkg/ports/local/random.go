package local

import (
	"crypto/rand"
	"fmt"
)

// Random implements ports.Random over crypto/rand, for event IDs and
// nonces only — never for key material.
type Random struct{}

// Fill fills buf with cryptographically random bytes.
func (Random) Fill(buf []byte) error {
	if _, err := rand.Read(buf); err != nil {
		return fmt.Errorf("local: random fill: %w", err)
	}
	return nil
}
