// Package local provides OS-backed implementations of pkg/ports'
// capability interfaces: a filesystem rooted at a directory, the
// system clock, crypto/rand-backed Random, and passphrase sources
// reading a tty, a file, or an environment variable.
package local

import (
	"fmt"
	"os"
	"path/filepath"
)

// Filesystem implements ports.Filesystem rooted at Root. Every path
// argument is treated as relative to Root; callers never see or
// choose an absolute path outside it.
type Filesystem struct {
	Root string
}

// NewFilesystem returns a Filesystem rooted at root, creating it if
// it does not exist.
func NewFilesystem(root string) (*Filesystem, error) {
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("local: create root %q: %w", root, err)
	}
	return &Filesystem{Root: root}, nil
}

func (f *Filesystem) resolve(path string) string {
	return filepath.Join(f.Root, filepath.Clean(string(filepath.Separator)+path))
}

// Read returns path's contents.
func (f *Filesystem) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(f.resolve(path))
	if err != nil {
		return nil, fmt.Errorf("local: read %q: %w", path, err)
	}
	return data, nil
}

// WriteAtomic writes data to path by writing to a sibling ".tmp" file,
// fsyncing it, and renaming it into place (spec §4.8).
func (f *Filesystem) WriteAtomic(path string, data []byte, mode os.FileMode) error {
	full := f.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o700); err != nil {
		return fmt.Errorf("local: mkdir for %q: %w", path, err)
	}

	tmp := full + ".tmp"
	file, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("local: open %q: %w", tmp, err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("local: write %q: %w", tmp, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("local: fsync %q: %w", tmp, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("local: close %q: %w", tmp, err)
	}

	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("local: rename %q -> %q: %w", tmp, full, err)
	}
	return nil
}

// MkdirAll creates path and any missing parents.
func (f *Filesystem) MkdirAll(path string, mode os.FileMode) error {
	if err := os.MkdirAll(f.resolve(path), mode); err != nil {
		return fmt.Errorf("local: mkdir %q: %w", path, err)
	}
	return nil
}

// List returns the entry names directly under path.
func (f *Filesystem) List(path string) ([]string, error) {
	entries, err := os.ReadDir(f.resolve(path))
	if err != nil {
		return nil, fmt.Errorf("local: list %q: %w", path, err)
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

// Remove deletes path (file or empty directory).
func (f *Filesystem) Remove(path string) error {
	if err := os.Remove(f.resolve(path)); err != nil {
		return fmt.Errorf("local: remove %q: %w", path, err)
	}
	return nil
}
