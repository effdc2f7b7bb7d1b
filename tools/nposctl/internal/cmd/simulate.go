// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/rodaine/table"
	"github.com/spf13/cobra"

	"github.com/iotexproject/iotex-npos/blockchain/block"
	"github.com/iotexproject/iotex-npos/chainservice"
	"github.com/iotexproject/iotex-npos/db"
)

var (
	_simulateBlocks uint64
	_scriptPath     string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Produce blocks on an in-memory chain and print what every block did",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		script, err := readScript(_scriptPath)
		if err != nil {
			return err
		}
		cfg.DB.Backend = db.BackendInMemDB
		cfg.Chain.ProduceInterval = 0

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		cs, err := chainservice.New(cfg)
		if err != nil {
			return err
		}
		if err := cs.Start(ctx); err != nil {
			return err
		}
		defer cs.Stop(context.Background())

		tb := table.New("Height", "Era", "Active", "Actions", "Failed", "Events").WithWriter(cmd.OutOrStdout())
		for i := uint64(0); i < _simulateBlocks; i++ {
			envs, err := script.At(cs.Height() + 1)
			if err != nil {
				return err
			}
			for _, env := range envs {
				if err := cs.HandleAction(ctx, env); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "block %d: %T rejected by the pool: %v\n", cs.Height()+1, env.Action, err)
				}
			}
			blk, err := cs.ProduceBlock(ctx)
			if err != nil {
				return errors.Wrapf(err, "failed to produce block %d", cs.Height()+1)
			}
			era, active, err := eras(cs)
			if err != nil {
				return err
			}
			tb.AddRow(blk.Height(), era, active, len(blk.Actions), blk.FailedActions(), topics(blk))
		}
		tb.Print()
		return nil
	},
}

func init() {
	simulateCmd.Flags().Uint64Var(&_simulateBlocks, "blocks", 30, "number of blocks to produce")
	simulateCmd.Flags().StringVar(&_scriptPath, "script", "", "yaml file of the actions to inject")
	rootCmd.AddCommand(simulateCmd)
}

func eras(cs *chainservice.ChainService) (uint32, uint32, error) {
	sr := cs.StateReader()
	era, _, err := cs.Staking().CurrentEra(sr)
	if err != nil {
		return 0, 0, err
	}
	active, ok, err := cs.Staking().ActiveEra(sr)
	if err != nil || !ok {
		return era, 0, err
	}
	return era, active.Index, nil
}

func topics(blk *block.Block) string {
	names := make([]string, 0, len(blk.Logs))
	for _, l := range blk.Logs {
		names = append(names, l.Event.Topic())
	}
	return strings.Join(names, ",")
}
