package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cimkeys/cim-keys/pkg/ports"
)

func TestEnvPassphraseSource(t *testing.T) {
	t.Setenv("CIM_KEYS_TEST_PASSPHRASE", "correct horse battery staple")

	src := &EnvPassphraseSource{Name: "CIM_KEYS_TEST_PASSPHRASE"}
	buf, err := src.Obtain(context.Background(), ports.PurposeMasterSeed)
	if err != nil {
		t.Fatalf("Obtain: %v", err)
	}
	defer buf.Destroy()

	got, err := buf.Expose()
	if err != nil {
		t.Fatalf("Expose: %v", err)
	}
	if string(got) != "correct horse battery staple" {
		t.Fatalf("got %q", got)
	}
}

func TestEnvPassphraseSourceMissing(t *testing.T) {
	src := &EnvPassphraseSource{Name: "CIM_KEYS_TEST_PASSPHRASE_UNSET"}
	if _, err := src.Obtain(context.Background(), ports.PurposeMasterSeed); err == nil {
		t.Fatal("expected error for unset variable")
	}
}

func TestFilePassphraseSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passphrase.txt")
	if err := os.WriteFile(path, []byte("hunter222\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	src := &FilePassphraseSource{Path: path}
	buf, err := src.Obtain(context.Background(), ports.PurposeUnseal)
	if err != nil {
		t.Fatalf("Obtain: %v", err)
	}
	defer buf.Destroy()

	got, err := buf.Expose()
	if err != nil {
		t.Fatalf("Expose: %v", err)
	}
	if string(got) != "hunter222" {
		t.Fatalf("got %q", got)
	}
}

func TestPassphraseSourceRespectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &EnvPassphraseSource{Name: "CIM_KEYS_TEST_PASSPHRASE"}
	if _, err := src.Obtain(ctx, ports.PurposeMasterSeed); err != ports.ErrCancelled {
		t.Fatalf("got %v, want ErrCancelled", err)
	}
}
