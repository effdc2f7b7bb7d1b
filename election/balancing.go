// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package election

import (
	"sort"

	"github.com/holiman/uint256"
)

// balance equalizes the backing of the elected candidates by redistributing each voter's budget over
// its elected edges. It returns the number of rounds executed.
func balance(voters []*voter, cfg *BalancingConfig) int {
	if cfg == nil || cfg.Iterations == 0 {
		return 0
	}
	tolerance := uint256.NewInt(cfg.Tolerance)
	iter := 0
	for {
		maxDiff := new(uint256.Int)
		for _, v := range voters {
			if diff := balanceVoter(v, tolerance); diff.Gt(maxDiff) {
				maxDiff = diff
			}
		}
		iter++
		if !maxDiff.Gt(tolerance) || iter >= cfg.Iterations {
			return iter
		}
	}
}

func balanceVoter(v *voter, tolerance *uint256.Int) *uint256.Int {
	var elected []*edge
	for _, e := range v.edges {
		if e.cand.elected {
			elected = append(elected, e)
		}
	}
	// empty, or a self vote
	if len(elected) <= 1 {
		return new(uint256.Int)
	}
	budget := uint256.NewInt(v.budget)

	stakeUsed := new(uint256.Int)
	for _, e := range elected {
		stakeUsed = saturatingAdd(stakeUsed, uint256.NewInt(e.weight))
	}
	var (
		maxBacking *uint256.Int
		minBacked  *uint256.Int
	)
	for _, e := range elected {
		if minBacked == nil || e.cand.backed.Lt(minBacked) {
			minBacked = e.cand.backed
		}
		if e.weight > 0 && (maxBacking == nil || e.cand.backed.Gt(maxBacking)) {
			maxBacking = e.cand.backed
		}
	}
	var difference *uint256.Int
	if maxBacking != nil {
		difference = saturatingSub(maxBacking, minBacked)
		difference = saturatingAdd(difference, saturatingSub(budget, stakeUsed))
		if difference.Lt(tolerance) {
			return difference
		}
	} else {
		difference = budget.Clone()
	}

	// remove all backings
	for _, e := range elected {
		e.cand.backed = saturatingSub(e.cand.backed, uint256.NewInt(e.weight))
		e.weight = 0
	}
	sort.SliceStable(elected, func(i, j int) bool { return elected[i].cand.backed.Lt(elected[j].cand.backed) })

	cumulative := new(uint256.Int)
	lastIndex := len(elected) - 1
	for i, e := range elected {
		temp := saturatingMul(e.cand.backed, uint256.NewInt(uint64(i)))
		if saturatingSub(temp, cumulative).Gt(budget) {
			lastIndex = i - 1
			if lastIndex < 0 {
				lastIndex = 0
			}
			break
		}
		cumulative = saturatingAdd(cumulative, e.cand.backed)
	}

	lastStake := elected[lastIndex].cand.backed.Clone()
	waysToSplit := uint256.NewInt(uint64(lastIndex + 1))
	excess := saturatingSub(saturatingAdd(budget, cumulative), saturatingMul(lastStake, waysToSplit))
	share := new(uint256.Int).Div(excess, waysToSplit)
	for _, e := range elected[:lastIndex+1] {
		w := saturatingSub(saturatingAdd(share, lastStake), e.cand.backed)
		if w.IsUint64() {
			e.weight = w.Uint64()
		} else {
			e.weight = ^uint64(0)
		}
		e.cand.backed = saturatingAdd(e.cand.backed, uint256.NewInt(e.weight))
	}
	return difference
}

func saturatingMul(a, b *uint256.Int) *uint256.Int {
	z, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return maxUint256()
	}
	return z
}
