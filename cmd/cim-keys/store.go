package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cimkeys/cim-keys/pkg/command"
	"github.com/cimkeys/cim-keys/pkg/id"
	"github.com/cimkeys/cim-keys/pkg/manager"
	"github.com/cimkeys/cim-keys/pkg/policy"
	"github.com/cimkeys/cim-keys/pkg/ports"
	"github.com/cimkeys/cim-keys/pkg/ports/local"
	"github.com/cimkeys/cim-keys/pkg/secretbuf"
	"github.com/cimkeys/cim-keys/pkg/seed"
	"github.com/cimkeys/cim-keys/pkg/types"
)

// exitCode maps the error taxonomy (spec §7) to spec §6's exit codes:
// 0 success; 2 usage; 3 policy denied; 4 hardware error; 5 corrupt
// store; 1 any other failure.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var denied *policy.DeniedError
	if errors.As(err, &denied) {
		return 3
	}
	var hwErr *command.HardwareError
	if errors.As(err, &hwErr) {
		return 4
	}
	var hwTimeout *command.HardwareTimeoutError
	if errors.As(err, &hwTimeout) {
		return 4
	}
	var corrupt *command.CorruptionError
	if errors.As(err, &corrupt) {
		return 5
	}
	var validation *command.ValidationError
	if errors.As(err, &validation) {
		return 2
	}
	return 1
}

// outputDir resolves --output, falling back to CIM_KEYS_OUTPUT (spec
// §6).
func outputDir(cmd *cobra.Command) (string, error) {
	dir, _ := cmd.Flags().GetString("output")
	if dir == "" {
		dir = os.Getenv("CIM_KEYS_OUTPUT")
	}
	if dir == "" {
		return "", &command.ValidationError{Reason: "--output (or CIM_KEYS_OUTPUT) must be set"}
	}
	return dir, nil
}

// passphraseSource builds the ports.PassphraseSource named by
// --passphrase-source: tty, file:<path>, or env:<name>.
func passphraseSource(cmd *cobra.Command) (ports.PassphraseSource, error) {
	spec, _ := cmd.Flags().GetString("passphrase-source")
	switch {
	case spec == "" || spec == "tty":
		return local.NewTTYPassphraseSource(), nil
	case strings.HasPrefix(spec, "file:"):
		return &local.FilePassphraseSource{Path: strings.TrimPrefix(spec, "file:")}, nil
	case strings.HasPrefix(spec, "env:"):
		return &local.EnvPassphraseSource{Name: strings.TrimPrefix(spec, "env:")}, nil
	default:
		return nil, &command.ValidationError{Reason: fmt.Sprintf("invalid --passphrase-source %q", spec)}
	}
}

// clockFromFlag builds the id.Clock named by --clock-fixed, or the
// system clock if unset.
func clockFromFlag(cmd *cobra.Command) (id.Clock, error) {
	fixed, _ := cmd.Flags().GetString("clock-fixed")
	if fixed == "" {
		return ports.SystemClock{}, nil
	}
	t, err := time.Parse(time.RFC3339, fixed)
	if err != nil {
		return nil, &command.ValidationError{Reason: fmt.Sprintf("invalid --clock-fixed: %v", err)}
	}
	return ports.FixedClock{At: id.NewTimestamp(t)}, nil
}

// kdfParams applies CIM_KEYS_KDF_MEMORY_MIB (spec §6) on top of the
// default Argon2id parameters.
func kdfParams() (seed.Params, error) {
	params := seed.DefaultParams()
	mib := os.Getenv("CIM_KEYS_KDF_MEMORY_MIB")
	if mib == "" {
		return params, nil
	}
	n, err := strconv.ParseUint(mib, 10, 32)
	if err != nil {
		return params, &command.ValidationError{Reason: fmt.Sprintf("invalid CIM_KEYS_KDF_MEMORY_MIB: %v", err)}
	}
	params.MemoryKiB = uint32(n) * 1024
	return params, nil
}

// resolveTrustDomain reads manifest.json's trust domain (the KDF
// salt's tag and the single source of truth once a store exists) or
// falls back to --trust-domain for a brand-new store.
func resolveTrustDomain(fs ports.Filesystem, trustDomainFlag string) (string, error) {
	data, err := fs.Read("manifest.json")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if trustDomainFlag == "" {
				return "", &command.ValidationError{Reason: "--trust-domain is required to initialize a new store"}
			}
			return trustDomainFlag, nil
		}
		return "", &command.IoError{Err: err}
	}
	var m types.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return "", &command.CorruptionError{Reason: fmt.Sprintf("manifest.json: %v", err)}
	}
	return m.TrustDomain, nil
}

// openStore derives the master seed from the configured passphrase
// source and opens the Manager at --output, initializing a fresh
// store if none exists yet. Callers must Destroy the returned master
// seed and Close the Manager once done.
func openStore(cmd *cobra.Command, trustDomainFlag string) (*manager.Manager, *secretbuf.Buffer, error) {
	dir, err := outputDir(cmd)
	if err != nil {
		return nil, nil, err
	}
	fs, err := local.NewFilesystem(dir)
	if err != nil {
		return nil, nil, &command.IoError{Err: err}
	}

	trustDomain, err := resolveTrustDomain(fs, trustDomainFlag)
	if err != nil {
		return nil, nil, err
	}

	ps, err := passphraseSource(cmd)
	if err != nil {
		return nil, nil, err
	}
	clk, err := clockFromFlag(cmd)
	if err != nil {
		return nil, nil, err
	}
	params, err := kdfParams()
	if err != nil {
		return nil, nil, err
	}

	passphrase, err := ps.Obtain(context.Background(), ports.PurposeMasterSeed)
	if err != nil {
		if errors.Is(err, ports.ErrCancelled) {
			return nil, nil, &command.CancelledError{Reason: "passphrase prompt cancelled"}
		}
		return nil, nil, &command.ValidationError{Reason: err.Error()}
	}
	defer passphrase.Destroy()

	raw, err := passphrase.Expose()
	if err != nil {
		return nil, nil, &command.ValidationError{Reason: err.Error()}
	}
	master, err := seed.DeriveMasterSeed(string(raw), trustDomain, params)
	if err != nil {
		return nil, nil, &command.ValidationError{Reason: err.Error()}
	}

	mgr, err := manager.New(manager.Config{DataDir: dir, TrustDomain: trustDomain}, master, fs, clk, nil)
	if err != nil {
		master.Destroy()
		return nil, nil, err
	}
	return mgr, master, nil
}

// newCommandEnvelope mints a fresh root-level command envelope: its
// own ID doubling as the correlation ID for everything it causes, no
// causing command of its own.
func newCommandEnvelope(clk id.Clock) (types.Envelope, error) {
	cmdID, err := id.New(clk)
	if err != nil {
		return types.Envelope{}, fmt.Errorf("cim-keys: new command id: %w", err)
	}
	return types.Envelope{ID: cmdID, CorrelationID: cmdID, Timestamp: clk.Now()}, nil
}
