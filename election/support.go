// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package election

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// ToStaked converts ratio assignments into absolute stakes. Every ratio is multiplied with the voter's
// stake rounding to the nearest unit, zero ratios are dropped.
func ToStaked(assignments []Assignment, stakeOf func(who string) uint64) []StakedAssignment {
	staked := make([]StakedAssignment, 0, len(assignments))
	for _, a := range assignments {
		stake := stakeOf(a.Who)
		sa := StakedAssignment{Who: a.Who}
		for _, d := range a.Distribution {
			if d.Weight.IsZero() {
				continue
			}
			sa.Distribution = append(sa.Distribution, Stake{Target: d.Target, Weight: d.Weight.MulUint64(stake)})
		}
		staked = append(staked, sa)
	}
	return staked
}

// ToSupports aggregates staked assignments into one support per winner, in winner order.
// An edge towards a target that is not a winner is an error.
func ToSupports(winners []string, staked []StakedAssignment) ([]Support, error) {
	supports := make([]Support, len(winners))
	index := make(map[string]int, len(winners))
	for i, w := range winners {
		supports[i] = Support{Target: w, Total: new(uint256.Int)}
		index[w] = i
	}
	for _, a := range staked {
		for _, d := range a.Distribution {
			i, ok := index[d.Target]
			if !ok {
				return nil, errors.Wrapf(ErrInvalidSupportEdge, "voter %s backs %s", a.Who, d.Target)
			}
			s := &supports[i]
			s.Total = saturatingAdd(s.Total, uint256.NewInt(d.Weight))
			s.Voters = append(s.Voters, Backing{Who: a.Who, Stake: d.Weight})
		}
	}
	return supports, nil
}

// Evaluate computes the score of a set of supports
func Evaluate(supports []Support) Score {
	score := Score{
		MinimalStake:    maxUint256(),
		SumStake:        new(uint256.Int),
		SumStakeSquared: new(uint256.Int),
	}
	for _, s := range supports {
		score.SumStake = saturatingAdd(score.SumStake, s.Total)
		score.SumStakeSquared = saturatingAdd(score.SumStakeSquared, saturatingMul(s.Total, s.Total))
		if s.Total.Lt(score.MinimalStake) {
			score.MinimalStake = s.Total.Clone()
		}
	}
	return score
}
