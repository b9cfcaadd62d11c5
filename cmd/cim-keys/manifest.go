package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cimkeys/cim-keys/pkg/command"
	"github.com/cimkeys/cim-keys/pkg/ports"
	"github.com/cimkeys/cim-keys/pkg/ports/local"
	"github.com/cimkeys/cim-keys/pkg/types"
)

func init() {
	exportManifestCmd.Flags().String("trust-domain", "", "trust domain name for a brand-new store")
	exportManifestCmd.Flags().String("target", "", "directory to copy the manifest bundle into (required)")

	verifyCmd.Flags().String("trust-domain", "", "trust domain name for a brand-new store")
	replayCmd.Flags().String("trust-domain", "", "trust domain name for a brand-new store")
}

// secretSuffixes names the file extensions pkg/projection.Writer
// seals under secretMode (0o400); export-manifest preserves that mode
// on copy instead of flattening every file to 0o644.
var secretSuffixes = []string{".priv", ".key", ".nk"}

var exportManifestCmd = &cobra.Command{
	Use:   "export-manifest",
	Short: "Seal the manifest (if still building) and copy the store to --target",
	RunE: func(cmd *cobra.Command, args []string) error {
		target, _ := cmd.Flags().GetString("target")
		if target == "" {
			return &command.ValidationError{Reason: "--target is required"}
		}
		trustDomain, _ := cmd.Flags().GetString("trust-domain")

		mgr, master, err := openStore(cmd, trustDomain)
		if err != nil {
			return err
		}
		defer master.Destroy()
		defer mgr.Close()

		clk, err := clockFromFlag(cmd)
		if err != nil {
			return err
		}

		if mgr.View().Manifest.State == types.ManifestBuilding {
			sealEnvelope, err := newCommandEnvelope(clk)
			if err != nil {
				return err
			}
			if _, err := mgr.Submit(context.Background(), command.SealManifest{
				Envelope:   sealEnvelope,
				EventCount: mgr.EventCount(),
			}); err != nil {
				return err
			}
		}

		exportEnvelope, err := newCommandEnvelope(clk)
		if err != nil {
			return err
		}
		if _, err := mgr.Submit(context.Background(), command.ExportManifest{Envelope: exportEnvelope}); err != nil {
			return err
		}

		dir, err := outputDir(cmd)
		if err != nil {
			return err
		}
		srcFS, err := local.NewFilesystem(dir)
		if err != nil {
			return &command.IoError{Err: err}
		}
		dstFS, err := local.NewFilesystem(target)
		if err != nil {
			return &command.IoError{Err: err}
		}
		if err := copyTree(srcFS, dstFS, ""); err != nil {
			return &command.IoError{Err: err}
		}

		manifestBytes, err := srcFS.Read("manifest.json")
		if err != nil {
			return &command.IoError{Err: err}
		}
		digest := sha256.Sum256(manifestBytes)
		digestLine := fmt.Sprintf("%s  manifest.json\n", hex.EncodeToString(digest[:]))
		if err := dstFS.WriteAtomic("manifest.sha256", []byte(digestLine), 0o644); err != nil {
			return &command.IoError{Err: err}
		}

		fmt.Printf("exported manifest %s to %s\n", mgr.View().Manifest.ID, target)
		return nil
	},
}

// copyTree recursively copies every file under path from src to dst.
// List fails with ENOTDIR-shaped errors on a leaf file, which is how
// it distinguishes a directory to recurse into from a file to copy —
// ports.Filesystem exposes no separate stat call.
func copyTree(src, dst ports.Filesystem, p string) error {
	entries, err := src.List(p)
	if err != nil {
		data, rerr := src.Read(p)
		if rerr != nil {
			return fmt.Errorf("cim-keys: neither list nor read %q: list=%v read=%v", p, err, rerr)
		}
		return dst.WriteAtomic(p, data, modeFor(p))
	}
	for _, name := range entries {
		if p == "" && name == "cache.db" {
			continue // the bbolt replay cache is a rebuildable index, not part of spec §4.8's layout
		}
		if strings.HasSuffix(name, ".tmp") {
			continue
		}
		if err := copyTree(src, dst, path.Join(p, name)); err != nil {
			return err
		}
	}
	return nil
}

func modeFor(p string) os.FileMode {
	for _, suffix := range secretSuffixes {
		if strings.HasSuffix(p, suffix) {
			return 0o400
		}
	}
	return 0o644
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Replay events.jsonl and diff the result against the on-disk store",
	Long: `verify re-derives no key material; it replays events.jsonl
into the projection (as every store open does) and checks that the
replayed counts of people, organizations, locations, relationships and
keys match the number of files in each of those directories; other
aggregates and file contents are not compared. It surfaces a
log corrupted independently of the per-aggregate files as a
CorruptionError (exit 5).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		trustDomain, _ := cmd.Flags().GetString("trust-domain")
		mgr, master, err := openStore(cmd, trustDomain)
		if err != nil {
			return err
		}
		defer master.Destroy()
		defer mgr.Close()

		dir, err := outputDir(cmd)
		if err != nil {
			return err
		}
		fs, err := local.NewFilesystem(dir)
		if err != nil {
			return &command.IoError{Err: err}
		}

		view := mgr.View()
		if err := verifyCount(fs, "people", len(view.People)); err != nil {
			return err
		}
		if err := verifyCount(fs, "organizations", len(view.Organizations)); err != nil {
			return err
		}
		if err := verifyCount(fs, "locations", len(view.Locations)); err != nil {
			return err
		}
		if err := verifyCount(fs, "relationships", len(view.Relationships)); err != nil {
			return err
		}
		if err := verifyCount(fs, "keys", len(view.Keys)); err != nil {
			return err
		}

		fmt.Printf("ok: manifest %s matches events.jsonl across %d aggregates\n",
			view.Manifest.ID, len(view.People)+len(view.Organizations)+len(view.Locations)+len(view.Relationships)+len(view.Keys))
		return nil
	},
}

// verifyCount compares a projection aggregate count against the
// number of record files physically present under dir. An absent
// directory is only tolerated when the projection also holds zero
// entries for it.
func verifyCount(fs ports.Filesystem, dir string, want int) error {
	entries, err := fs.List(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if want == 0 {
				return nil
			}
			return &command.CorruptionError{Reason: fmt.Sprintf("%s/ missing but projection holds %d entries", dir, want)}
		}
		return &command.IoError{Err: err}
	}
	if len(entries) != want {
		return &command.CorruptionError{Reason: fmt.Sprintf("%s/ has %d files, projection holds %d entries", dir, len(entries), want)}
	}
	return nil
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay events.jsonl into memory and report aggregate counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		trustDomain, _ := cmd.Flags().GetString("trust-domain")
		mgr, master, err := openStore(cmd, trustDomain)
		if err != nil {
			return err
		}
		defer master.Destroy()
		defer mgr.Close()

		view := mgr.View()
		fmt.Printf("replayed %d events: %d people, %d organizations, %d locations, %d certificates, %d keys, %d yubikeys, %d nats operators, %d nats accounts, %d nats users, %d relationships\n",
			mgr.EventCount(), len(view.People), len(view.Organizations), len(view.Locations), len(view.Certificates),
			len(view.Keys), len(view.YubiKeys), len(view.NatsOperators), len(view.NatsAccounts), len(view.NatsUsers), len(view.Relationships))
		return nil
	},
}
