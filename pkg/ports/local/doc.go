// Package local implements pkg/ports' capability interfaces against
// the real OS: a directory-rooted Filesystem, the system Clock,
// crypto/rand-backed Random, and tty/file/env PassphraseSources. The
// core never imports this package directly; only cmd/cim-keys wires
// it in.
package local
