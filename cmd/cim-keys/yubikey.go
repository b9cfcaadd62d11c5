package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cimkeys/cim-keys/pkg/command"
	"github.com/cimkeys/cim-keys/pkg/event"
	"github.com/cimkeys/cim-keys/pkg/id"
	"github.com/cimkeys/cim-keys/pkg/types"
)

func init() {
	provisionYubiKeyCmd.Flags().String("trust-domain", "", "trust domain name for a brand-new store")
	provisionYubiKeyCmd.Flags().String("serial", "", "YubiKey serial number (required)")
	provisionYubiKeyCmd.Flags().String("slot", string(types.PIVSlotSigning), "PIV slot (9A, 9C, 9D, 9E, or a retired slot)")
	provisionYubiKeyCmd.Flags().String("algorithm", string(types.KeyAlgorithmECDSAP256), "ecdsa-p256, rsa-2048, or rsa-4096")
	provisionYubiKeyCmd.Flags().String("owner-id", "", "owning person's ID (required)")
}

var provisionYubiKeyCmd = &cobra.Command{
	Use:   "provision-yubikey",
	Short: "Derive a key and import it into a YubiKey PIV slot",
	Long: `provision-yubikey requires a wired pkg/ports.Smartcard
implementation; production smartcard wiring is out of scope for this
repository (no such implementation ships here), so this command always
fails validation unless run against a build with one configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		serial, _ := cmd.Flags().GetString("serial")
		if serial == "" {
			return &command.ValidationError{Reason: "--serial is required"}
		}
		ownerIDStr, _ := cmd.Flags().GetString("owner-id")
		ownerID, err := id.Parse(ownerIDStr)
		if err != nil {
			return &command.ValidationError{Reason: fmt.Sprintf("invalid --owner-id: %v", err)}
		}
		slot, _ := cmd.Flags().GetString("slot")
		algorithm, _ := cmd.Flags().GetString("algorithm")
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
		envelope, err := newCommandEnvelope(clk)
		if err != nil {
			return err
		}

		events, err := mgr.Submit(context.Background(), command.ProvisionYubiKey{
			Envelope:  envelope,
			Serial:    serial,
			Slot:      types.PIVSlot(slot),
			Algorithm: types.KeyAlgorithm(algorithm),
			OwnerID:   ownerID,
		})
		if err != nil {
			return err
		}
		for _, ev := range events {
			if provisioned, ok := ev.Payload.(event.YubiKeyProvisioned); ok {
				fmt.Printf("provisioned yubikey %s (serial=%s)\n", provisioned.YubiKeyID, provisioned.Serial)
			}
		}
		return nil
	},
}
