package local

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFilesystemWriteAtomicReadRoundtrip(t *testing.T) {
	fs, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}

	if err := fs.WriteAtomic("manifest.json", []byte(`{"a":1}`), 0o600); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}

	got, err := fs.Read("manifest.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Fatalf("got %s", got)
	}

	if _, err := os.Stat(filepath.Join(fs.Root, "manifest.json.tmp")); !os.IsNotExist(err) {
		t.Fatalf("expected .tmp to be renamed away, stat err = %v", err)
	}
}

func TestFilesystemWriteAtomicCreatesParentDirs(t *testing.T) {
	fs, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}

	if err := fs.WriteAtomic("keys/abc.priv", []byte("secret"), 0o600); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}

	names, err := fs.List("keys")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 1 || names[0] != "abc.priv" {
		t.Fatalf("got %v", names)
	}
}

func TestFilesystemWriteAtomicPermissions(t *testing.T) {
	fs, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}

	if err := fs.WriteAtomic("keys/abc.priv", []byte("secret"), 0o400); err != nil {
		t.Fatalf("WriteAtomic: %v", err)
	}

	info, err := os.Stat(filepath.Join(fs.Root, "keys", "abc.priv"))
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o400 {
		t.Fatalf("got mode %v, want 0400", info.Mode().Perm())
	}
}
