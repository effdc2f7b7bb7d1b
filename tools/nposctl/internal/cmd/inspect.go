// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package cmd

import (
	"context"
	"fmt"

	"github.com/rodaine/table"
	"github.com/spf13/cobra"

	"github.com/iotexproject/iotex-npos/chainservice"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print the validators and their bonds of the chain in the configured database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cfg.Chain.ProduceInterval = 0
		cfg.Offchain.Enabled = false

		ctx := context.Background()
		cs, err := chainservice.New(cfg)
		if err != nil {
			return err
		}
		if err := cs.Start(ctx); err != nil {
			return err
		}
		defer cs.Stop(ctx)
		return printValidators(cmd, cs)
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func printValidators(cmd *cobra.Command, cs *chainservice.ChainService) error {
	sr := cs.StateReader()
	validators, err := cs.Staking().Validators(sr)
	if err != nil {
		return err
	}
	era, active, err := eras(cs)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "height %d, current era %d, active era %d\n", cs.Height(), era, active)

	tb := table.New("Stash", "Controller", "Total", "Active", "Unlocking").WithWriter(cmd.OutOrStdout())
	for _, stash := range validators {
		controller, ok, err := cs.Staking().Bonded(sr, stash)
		if err != nil {
			return err
		}
		if !ok {
			tb.AddRow(stash.String(), "-", "0", "0", 0)
			continue
		}
		ledger, ok, err := cs.Staking().Ledger(sr, controller)
		if err != nil {
			return err
		}
		if !ok {
			tb.AddRow(stash.String(), controller.String(), "0", "0", 0)
			continue
		}
		tb.AddRow(stash.String(), controller.String(), ledger.Total.String(), ledger.Active.String(), len(ledger.Unlocking))
	}
	tb.Print()
	return nil
}
