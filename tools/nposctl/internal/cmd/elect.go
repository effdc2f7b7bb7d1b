// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/rodaine/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/iotexproject/iotex-npos/election"
)

type (
	// Snapshot is an election input read from a yaml fixture
	Snapshot struct {
		ToElect    int                 `yaml:"toElect"`
		Iterations int                 `yaml:"iterations"`
		Tolerance  uint64              `yaml:"tolerance"`
		Candidates []SnapshotCandidate `yaml:"candidates"`
		Voters     []SnapshotVoter     `yaml:"voters"`
	}

	// SnapshotCandidate is a validator with its self stake
	SnapshotCandidate struct {
		ID    string `yaml:"id"`
		Stake uint64 `yaml:"stake"`
	}

	// SnapshotVoter is a nominator
	SnapshotVoter struct {
		ID      string   `yaml:"id"`
		Stake   uint64   `yaml:"stake"`
		Targets []string `yaml:"targets"`
	}
)

var _snapshotPath string

var electCmd = &cobra.Command{
	Use:   "elect",
	Short: "Run the sequential Phragmén election over a snapshot fixture",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		snapshot, err := readSnapshot(_snapshotPath)
		if err != nil {
			return err
		}
		supports, score, err := elect(snapshot)
		if err != nil {
			return err
		}
		tb := table.New("Winner", "Backed", "Voters").WithWriter(cmd.OutOrStdout())
		for _, s := range supports {
			tb.AddRow(s.Target, s.Total.Dec(), len(s.Voters))
		}
		tb.Print()
		fmt.Fprintf(cmd.OutOrStdout(), "score %s\n", score)
		return nil
	},
}

func init() {
	electCmd.Flags().StringVar(&_snapshotPath, "snapshot", "", "path of the yaml snapshot")
	_ = electCmd.MarkFlagRequired("snapshot")
	rootCmd.AddCommand(electCmd)
}

func readSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read the snapshot")
	}
	snapshot := &Snapshot{}
	if err := yaml.UnmarshalStrict(data, snapshot); err != nil {
		return nil, errors.Wrap(err, "failed to parse the snapshot")
	}
	if snapshot.ToElect <= 0 {
		return nil, errors.Errorf("invalid number of seats %d", snapshot.ToElect)
	}
	return snapshot, nil
}

// elect runs the election the way the chain does: every candidate votes for itself with its own stake
func elect(s *Snapshot) ([]election.Support, election.Score, error) {
	candidates := make([]string, 0, len(s.Candidates))
	voters := make([]election.Voter, 0, len(s.Candidates)+len(s.Voters))
	stakes := make(map[string]uint64, len(s.Candidates)+len(s.Voters))
	for _, c := range s.Candidates {
		candidates = append(candidates, c.ID)
		voters = append(voters, election.Voter{ID: c.ID, Stake: c.Stake, Targets: []string{c.ID}})
		stakes[c.ID] = c.Stake
	}
	for _, v := range s.Voters {
		if _, ok := stakes[v.ID]; ok {
			return nil, election.Score{}, errors.Errorf("voter %s is also a candidate", v.ID)
		}
		voters = append(voters, election.Voter{ID: v.ID, Stake: v.Stake, Targets: v.Targets})
		stakes[v.ID] = v.Stake
	}

	var balancing *election.BalancingConfig
	if s.Iterations > 0 {
		balancing = &election.BalancingConfig{Iterations: s.Iterations, Tolerance: s.Tolerance}
	}
	res, err := election.SeqPhragmen(s.ToElect, candidates, voters, balancing)
	if err != nil {
		return nil, election.Score{}, err
	}
	staked := election.ToStaked(res.Assignments, func(who string) uint64 { return stakes[who] })
	supports, err := election.ToSupports(res.WinnerIDs(), staked)
	if err != nil {
		return nil, election.Score{}, err
	}
	return supports, election.Evaluate(supports), nil
}
