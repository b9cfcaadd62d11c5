// Command cim-keys drives the trust-domain bootstrap core from a
// terminal: each invocation derives the master seed from a passphrase,
// opens (or initializes) the on-disk store at --output, submits one
// command, and exits — there is no resident daemon.
//
// Grounded on the teacher's cmd/warren/main.go: a cobra root command
// with persistent flags, cobra.OnInitialize wiring up logging, and one
// subcommand tree per area of functionality.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cimkeys/cim-keys/pkg/log"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:   "cim-keys",
	Short: "Deterministic key material and manifest bootstrap for an offline CIM trust domain",
	Long: `cim-keys derives certificate authorities, leaf certificates,
YubiKey-resident keys, and a NATS security hierarchy from a single
passphrase, folding every issued artifact into a replayable,
air-gappable manifest on disk.`,
}

func init() {
	rootCmd.PersistentFlags().String("output", "", "store directory (default: $CIM_KEYS_OUTPUT)")
	rootCmd.PersistentFlags().String("passphrase-source", "tty", "tty, file:<path>, or env:<name>")
	rootCmd.PersistentFlags().String("clock-fixed", "", "RFC3339 instant to use instead of the wall clock (for tests)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(generateRootCACmd)
	rootCmd.AddCommand(generateIntermediateCmd)
	rootCmd.AddCommand(issueLeafCmd)
	rootCmd.AddCommand(provisionYubiKeyCmd)
	rootCmd.AddCommand(natsBootstrapCmd)
	rootCmd.AddCommand(exportManifestCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(replayCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOutput, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{Level: log.Level(level), JSONOutput: jsonOutput})
}
