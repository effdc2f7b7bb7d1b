// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package staking

import (
	"time"

	"github.com/pkg/errors"

	"github.com/iotexproject/iotex-npos/action"
	"github.com/iotexproject/iotex-npos/action/protocol"
	"github.com/iotexproject/iotex-npos/election"
)

// ComputeOffchainSolution elects over the snapshot of the open window and encodes the result the way it is
// verified on chain. The score is evaluated from the encoded assignments so that rounding matches. Balancing runs
// MaxIterations rounds if iterations is not positive.
func (p *Protocol) ComputeOffchainSolution(sr protocol.StateReader, at time.Time, iterations int) (*action.SubmitElectionSolutionUnsigned, error) {
	if iterations <= 0 {
		iterations = p.cfg.MaxIterations
	}
	status, err := p.ElectionStatus(sr)
	if err != nil {
		return nil, err
	}
	if !status.Open {
		return nil, ErrOffchainElectionEarlySubmission
	}
	era, _, err := p.CurrentEra(sr)
	if err != nil {
		return nil, err
	}
	snapValidators, snapNominators, ok, err := p.Snapshot(sr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSnapshotUnavailable
	}

	targetIndex := make(map[string]uint16, len(snapValidators))
	for i, v := range snapValidators {
		targetIndex[v.String()] = uint16(i)
	}
	voterIndex := make(map[string]uint32, len(snapNominators))
	for i, n := range snapNominators {
		voterIndex[n.String()] = uint32(i)
	}
	if len(snapNominators) < len(snapValidators) {
		return nil, errors.Wrap(ErrSnapshotUnavailable, "malformed snapshot")
	}
	// validators are at the tail of the snapshot voters and vote for themselves
	nominators := snapNominators[:len(snapNominators)-len(snapValidators)]
	voters, weights, _, err := p.electionVoters(sr, at, snapValidators, nominators, true)
	if err != nil {
		return nil, err
	}
	for i := range voters {
		kept := voters[i].Targets[:0]
		for _, t := range voters[i].Targets {
			if _, ok := targetIndex[t]; ok {
				kept = append(kept, t)
			}
		}
		voters[i].Targets = kept
	}
	count, err := p.ValidatorCount(sr)
	if err != nil {
		return nil, err
	}
	desired := int(count)
	if len(snapValidators) < desired {
		desired = len(snapValidators)
	}
	res, err := election.SeqPhragmen(desired, addrStrings(snapValidators), voters, &election.BalancingConfig{Iterations: iterations})
	if err != nil {
		return nil, err
	}

	compact, err := election.FromAssignments(res.Assignments,
		func(who string) (uint32, bool) { i, ok := voterIndex[who]; return i, ok },
		func(who string) (uint16, bool) { i, ok := targetIndex[who]; return i, ok },
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode solution")
	}
	winners := make([]uint16, 0, len(res.Winners))
	for _, w := range res.Winners {
		winners = append(winners, targetIndex[w.ID])
	}
	decoded, err := compact.IntoAssignments(
		func(i uint32) (string, bool) {
			if int(i) >= len(snapNominators) {
				return "", false
			}
			return snapNominators[i].String(), true
		},
		func(i uint16) (string, bool) {
			if int(i) >= len(snapValidators) {
				return "", false
			}
			return snapValidators[i].String(), true
		},
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode own solution")
	}
	staked := election.ToStaked(decoded, func(who string) uint64 { return weights[who] })
	supports, err := election.ToSupports(res.WinnerIDs(), staked)
	if err != nil {
		return nil, err
	}
	size := election.Size{Validators: uint16(len(snapValidators)), Nominators: uint32(len(snapNominators))}
	return action.NewSubmitElectionSolutionUnsigned(winners, *compact, election.Evaluate(supports), era, size), nil
}
