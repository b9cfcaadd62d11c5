package local

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/cimkeys/cim-keys/pkg/ports"
	"github.com/cimkeys/cim-keys/pkg/secretbuf"
)

// TTYPassphraseSource prompts on a terminal with echo disabled and a
// confirmation prompt, matching the `--passphrase-source tty` CLI flag
// (spec §6).
type TTYPassphraseSource struct {
	In  *os.File
	Out *os.File
}

// NewTTYPassphraseSource returns a source prompting on stdin/stdout.
func NewTTYPassphraseSource() *TTYPassphraseSource {
	return &TTYPassphraseSource{In: os.Stdin, Out: os.Stdout}
}

func (s *TTYPassphraseSource) Obtain(ctx context.Context, purpose ports.PassphrasePurpose) (*secretbuf.Buffer, error) {
	if ctx.Err() != nil {
		return nil, ports.ErrCancelled
	}

	fmt.Fprintf(s.Out, "enter passphrase (%s): ", purpose)
	first, err := term.ReadPassword(int(s.In.Fd()))
	fmt.Fprintln(s.Out)
	if err != nil {
		return nil, fmt.Errorf("local: read passphrase: %w", err)
	}

	fmt.Fprintf(s.Out, "confirm passphrase (%s): ", purpose)
	second, err := term.ReadPassword(int(s.In.Fd()))
	fmt.Fprintln(s.Out)
	if err != nil {
		return nil, fmt.Errorf("local: read passphrase confirmation: %w", err)
	}

	if string(first) != string(second) {
		for i := range first {
			first[i] = 0
		}
		for i := range second {
			second[i] = 0
		}
		return nil, ports.ErrPassphraseMismatch
	}
	for i := range second {
		second[i] = 0
	}

	buf := secretbuf.FromBytes(first)
	for i := range first {
		first[i] = 0
	}
	return buf, nil
}

// FilePassphraseSource reads a passphrase from the first line of a
// file, matching `--passphrase-source file:<path>`.
type FilePassphraseSource struct {
	Path string
}

func (s *FilePassphraseSource) Obtain(ctx context.Context, purpose ports.PassphrasePurpose) (*secretbuf.Buffer, error) {
	if ctx.Err() != nil {
		return nil, ports.ErrCancelled
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("local: open passphrase file %q: %w", s.Path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("local: read passphrase file %q: %w", s.Path, err)
		}
		return nil, fmt.Errorf("local: passphrase file %q is empty", s.Path)
	}

	line := strings.TrimRight(scanner.Text(), "\r\n")
	return secretbuf.FromBytes([]byte(line)), nil
}

// EnvPassphraseSource reads a passphrase from an environment variable,
// matching `--passphrase-source env:<name>`.
type EnvPassphraseSource struct {
	Name string
}

func (s *EnvPassphraseSource) Obtain(ctx context.Context, purpose ports.PassphrasePurpose) (*secretbuf.Buffer, error) {
	if ctx.Err() != nil {
		return nil, ports.ErrCancelled
	}

	val, ok := os.LookupEnv(s.Name)
	if !ok {
		return nil, fmt.Errorf("local: environment variable %q not set", s.Name)
	}
	return secretbuf.FromBytes([]byte(val)), nil
}
