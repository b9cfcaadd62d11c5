package main

import (
	"context"
	"crypto/x509/pkix"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cimkeys/cim-keys/pkg/command"
	"github.com/cimkeys/cim-keys/pkg/event"
	"github.com/cimkeys/cim-keys/pkg/id"
	"github.com/cimkeys/cim-keys/pkg/types"
)

func init() {
	initCmd.Flags().String("trust-domain", "", "trust domain name for a brand-new store (required on first run)")

	generateRootCACmd.Flags().String("trust-domain", "", "trust domain name for a brand-new store")
	generateRootCACmd.Flags().String("common-name", "", "root CA subject common name (required)")
	generateRootCACmd.Flags().String("algorithm", string(types.KeyAlgorithmEd25519), "ed25519, ecdsa-p256, rsa-2048, or rsa-4096")
	generateRootCACmd.Flags().Int("validity-days", 3650, "validity period in days")

	generateIntermediateCmd.Flags().String("trust-domain", "", "trust domain name for a brand-new store")
	generateIntermediateCmd.Flags().String("common-name", "", "intermediate CA subject common name (required)")
	generateIntermediateCmd.Flags().String("algorithm", string(types.KeyAlgorithmEd25519), "ed25519, ecdsa-p256, rsa-2048, or rsa-4096")
	generateIntermediateCmd.Flags().Int("validity-days", 1825, "validity period in days")
	generateIntermediateCmd.Flags().String("parent-cert-id", "", "issuing CA's certificate ID (required)")

	issueLeafCmd.Flags().String("trust-domain", "", "trust domain name for a brand-new store")
	issueLeafCmd.Flags().String("common-name", "", "leaf certificate subject common name (required)")
	issueLeafCmd.Flags().String("algorithm", string(types.KeyAlgorithmEd25519), "ed25519, ecdsa-p256, rsa-2048, or rsa-4096")
	issueLeafCmd.Flags().Int("validity-days", 365, "validity period in days")
	issueLeafCmd.Flags().String("issuer-cert-id", "", "issuing certificate ID (required)")
	issueLeafCmd.Flags().StringSlice("san", nil, "subject alternative names")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new trust-domain store at --output",
	RunE: func(cmd *cobra.Command, args []string) error {
		trustDomain, _ := cmd.Flags().GetString("trust-domain")
		mgr, master, err := openStore(cmd, trustDomain)
		if err != nil {
			return err
		}
		defer master.Destroy()
		defer mgr.Close()

		view := mgr.View()
		fmt.Printf("initialized store: manifest %s, trust domain %q\n", view.Manifest.ID, view.Manifest.TrustDomain)
		return nil
	},
}

var generateRootCACmd = &cobra.Command{
	Use:   "generate-root-ca",
	Short: "Generate a self-signed root certificate authority",
	RunE: func(cmd *cobra.Command, args []string) error {
		commonName, _ := cmd.Flags().GetString("common-name")
		if commonName == "" {
			return &command.ValidationError{Reason: "--common-name is required"}
		}
		algorithm, _ := cmd.Flags().GetString("algorithm")
		validityDays, _ := cmd.Flags().GetInt("validity-days")
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

		events, err := mgr.Submit(context.Background(), command.GenerateRootCA{
			Envelope:     envelope,
			Subject:      pkix.Name{CommonName: commonName},
			Algorithm:    types.KeyAlgorithm(algorithm),
			ValidityDays: validityDays,
		})
		if err != nil {
			return err
		}
		return printIssuedCertificate(events)
	},
}

var generateIntermediateCmd = &cobra.Command{
	Use:   "generate-intermediate",
	Short: "Generate an intermediate certificate authority",
	RunE: func(cmd *cobra.Command, args []string) error {
		commonName, _ := cmd.Flags().GetString("common-name")
		if commonName == "" {
			return &command.ValidationError{Reason: "--common-name is required"}
		}
		parentCertIDStr, _ := cmd.Flags().GetString("parent-cert-id")
		parentCertID, err := id.Parse(parentCertIDStr)
		if err != nil {
			return &command.ValidationError{Reason: fmt.Sprintf("invalid --parent-cert-id: %v", err)}
		}
		algorithm, _ := cmd.Flags().GetString("algorithm")
		validityDays, _ := cmd.Flags().GetInt("validity-days")
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

		events, err := mgr.Submit(context.Background(), command.GenerateIntermediateCA{
			Envelope:     envelope,
			Subject:      pkix.Name{CommonName: commonName},
			Algorithm:    types.KeyAlgorithm(algorithm),
			ParentCertID: parentCertID,
			ValidityDays: validityDays,
		})
		if err != nil {
			return err
		}
		return printIssuedCertificate(events)
	},
}

var issueLeafCmd = &cobra.Command{
	Use:   "issue-leaf",
	Short: "Issue a leaf certificate under an existing CA",
	RunE: func(cmd *cobra.Command, args []string) error {
		commonName, _ := cmd.Flags().GetString("common-name")
		if commonName == "" {
			return &command.ValidationError{Reason: "--common-name is required"}
		}
		issuerCertIDStr, _ := cmd.Flags().GetString("issuer-cert-id")
		issuerCertID, err := id.Parse(issuerCertIDStr)
		if err != nil {
			return &command.ValidationError{Reason: fmt.Sprintf("invalid --issuer-cert-id: %v", err)}
		}
		algorithm, _ := cmd.Flags().GetString("algorithm")
		validityDays, _ := cmd.Flags().GetInt("validity-days")
		san, _ := cmd.Flags().GetStringSlice("san")
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

		events, err := mgr.Submit(context.Background(), command.GenerateLeafCertificate{
			Envelope:     envelope,
			Subject:      pkix.Name{CommonName: commonName},
			Algorithm:    types.KeyAlgorithm(algorithm),
			IssuerCertID: issuerCertID,
			SAN:          san,
			ValidityDays: validityDays,
		})
		if err != nil {
			return err
		}
		return printIssuedCertificate(events)
	},
}

// printIssuedCertificate reports the certificate ID, subject and serial
// from a GenerateRootCA/GenerateIntermediateCA/GenerateLeafCertificate
// submission's events, in the order the handler always emits them:
// KeyGenerated first, CertificateGenerated second.
func printIssuedCertificate(events []event.DomainEvent) error {
	for _, ev := range events {
		if cert, ok := ev.Payload.(event.CertificateGenerated); ok {
			fmt.Printf("issued certificate %s (subject=%q, serial=%s)\n", cert.CertID, cert.Subject, cert.SerialHex)
			return nil
		}
	}
	return fmt.Errorf("cim-keys: no CertificateGenerated event in submission result")
}
