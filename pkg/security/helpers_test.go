package security

import (
	"crypto/x509/pkix"
	"testing"
	"time"

	"github.com/cimkeys/cim-keys/pkg/secretbuf"
)

// fixedTime anchors NotBefore/NotAfter in tests so determinism assertions
// never depend on wall-clock time.
var fixedTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestSecret(t *testing.T, n int) *secretbuf.Buffer {
	t.Helper()
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(i + 1)
	}
	return secretbuf.FromBytes(buf)
}

func newTestSecretFromBytes(b []byte) *secretbuf.Buffer {
	return secretbuf.FromBytes(append([]byte(nil), b...))
}

func testSubject(cn string) pkix.Name {
	return pkix.Name{CommonName: cn, Organization: []string{"cim-keys test"}}
}
