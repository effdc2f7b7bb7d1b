// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package action

import (
	"github.com/pkg/errors"

	"github.com/iotexproject/iotex-npos/election"
)

// SubmitElectionSolution proposes an off-chain computed election result for the open window
type SubmitElectionSolution struct {
	winners []uint16
	compact election.Compact
	score   election.Score
	era     uint32
	size    election.Size
}

// NewSubmitElectionSolution returns a SubmitElectionSolution instance
func NewSubmitElectionSolution(
	winners []uint16,
	compact election.Compact,
	score election.Score,
	era uint32,
	size election.Size,
) *SubmitElectionSolution {
	return &SubmitElectionSolution{
		winners: append([]uint16(nil), winners...),
		compact: compact,
		score:   score,
		era:     era,
		size:    size,
	}
}

// Winners returns the winner indices into the validator snapshot
func (s *SubmitElectionSolution) Winners() []uint16 { return s.winners }

// Compact returns the encoded assignments
func (s *SubmitElectionSolution) Compact() *election.Compact { return &s.compact }

// Score returns the claimed score
func (s *SubmitElectionSolution) Score() election.Score { return s.score }

// Era returns the era the solution is meant for
func (s *SubmitElectionSolution) Era() uint32 { return s.era }

// Size returns the snapshot size the solution was computed over
func (s *SubmitElectionSolution) Size() election.Size { return s.size }

// SanityCheck validates the variables in the action
func (s *SubmitElectionSolution) SanityCheck() error {
	if len(s.winners) == 0 {
		return errors.Wrap(ErrEmptyList, "no winners")
	}
	if s.score.MinimalStake == nil || s.score.SumStake == nil || s.score.SumStakeSquared == nil {
		return errors.New("incomplete score")
	}
	return nil
}

// SubmitElectionSolutionUnsigned is the solution submitted by the local off-chain worker. It passes the same
// checks as the signed one but carries no signer.
type SubmitElectionSolutionUnsigned struct {
	SubmitElectionSolution
}

// NewSubmitElectionSolutionUnsigned returns a SubmitElectionSolutionUnsigned instance
func NewSubmitElectionSolutionUnsigned(
	winners []uint16,
	compact election.Compact,
	score election.Score,
	era uint32,
	size election.Size,
) *SubmitElectionSolutionUnsigned {
	return &SubmitElectionSolutionUnsigned{*NewSubmitElectionSolution(winners, compact, score, era, size)}
}
