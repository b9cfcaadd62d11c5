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
	natsBootstrapCmd.Flags().String("trust-domain", "", "trust domain name for a brand-new store")
	natsBootstrapCmd.Flags().String("operator-name", "", "operator name (required)")
	natsBootstrapCmd.Flags().String("account-name", "", "account name (required)")
	natsBootstrapCmd.Flags().String("user-name", "", "user name (required)")
	natsBootstrapCmd.Flags().StringSlice("publish", nil, "permitted publish subjects")
	natsBootstrapCmd.Flags().StringSlice("subscribe", nil, "permitted subscribe subjects")
}

var natsBootstrapCmd = &cobra.Command{
	Use:   "nats-bootstrap",
	Short: "Issue a full NATS operator/account/user hierarchy in one run",
	Long: `nats-bootstrap submits IssueNatsOperator, then IssueNatsAccount
under the new operator, then IssueNatsUser under the new account —
the three commands spec §4.7 defines for the NATS aggregates, chained
into the single bootstrap step an operator actually performs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		operatorName, _ := cmd.Flags().GetString("operator-name")
		accountName, _ := cmd.Flags().GetString("account-name")
		userName, _ := cmd.Flags().GetString("user-name")
		if operatorName == "" || accountName == "" || userName == "" {
			return &command.ValidationError{Reason: "--operator-name, --account-name, and --user-name are all required"}
		}
		publish, _ := cmd.Flags().GetStringSlice("publish")
		subscribe, _ := cmd.Flags().GetStringSlice("subscribe")
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

		opEnvelope, err := newCommandEnvelope(clk)
		if err != nil {
			return err
		}
		opEvents, err := mgr.Submit(context.Background(), command.IssueNatsOperator{
			Envelope: opEnvelope,
			Name:     operatorName,
		})
		if err != nil {
			return err
		}
		operatorID, err := natsEntityID(opEvents)
		if err != nil {
			return err
		}

		acctEnvelope, err := newCommandEnvelope(clk)
		if err != nil {
			return err
		}
		acctEvents, err := mgr.Submit(context.Background(), command.IssueNatsAccount{
			Envelope:   acctEnvelope,
			Name:       accountName,
			OperatorID: operatorID,
		})
		if err != nil {
			return err
		}
		accountID, err := natsEntityID(acctEvents)
		if err != nil {
			return err
		}

		userEnvelope, err := newCommandEnvelope(clk)
		if err != nil {
			return err
		}
		userEvents, err := mgr.Submit(context.Background(), command.IssueNatsUser{
			Envelope:  userEnvelope,
			Name:      userName,
			AccountID: accountID,
			Permissions: types.NatsPermissions{
				Publish:   publish,
				Subscribe: subscribe,
			},
		})
		if err != nil {
			return err
		}
		userID, err := natsEntityID(userEvents)
		if err != nil {
			return err
		}

		fmt.Printf("operator %s, account %s, user %s\n", operatorID, accountID, userID)
		return nil
	},
}

func natsEntityID(events []event.DomainEvent) (id.Id, error) {
	for _, ev := range events {
		if jwt, ok := ev.Payload.(event.NatsJwtSigned); ok {
			return jwt.EntityID, nil
		}
	}
	return id.Id{}, fmt.Errorf("cim-keys: no NatsJwtSigned event in submission result")
}
