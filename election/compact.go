// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package election

import (
	"sort"

	mapset "github.com/deckarep/golang-set"
	"github.com/pkg/errors"

	"github.com/iotexproject/iotex-npos/pkg/perbill"
)

// MaxCompactTargets is the largest number of targets one compact vote may carry
const MaxCompactTargets = 16

type (
	// CompactEdge is an explicit (target, ratio) pair of a compact vote
	CompactEdge struct {
		Target uint16
		Ratio  perbill.Perbill
	}

	// CompactVote is one voter's distribution over snapshot indices. A vote with k targets carries k-1
	// explicit ratios, the last target receives what is left of one.
	CompactVote struct {
		Voter        uint32
		Distribution []CompactEdge
		Last         uint16
	}

	// Compact is the index based encoding of a solution's assignments
	Compact struct {
		Votes []CompactVote
	}
)

// FromAssignments encodes assignments with the given index lookups
func FromAssignments(
	assignments []Assignment,
	voterIndex func(string) (uint32, bool),
	targetIndex func(string) (uint16, bool),
) (*Compact, error) {
	c := &Compact{Votes: make([]CompactVote, 0, len(assignments))}
	for _, a := range assignments {
		n := len(a.Distribution)
		if n == 0 {
			continue
		}
		if n > MaxCompactTargets {
			return nil, errors.Wrapf(ErrCompactTargetOverflow, "voter %s has %d targets", a.Who, n)
		}
		vi, ok := voterIndex(a.Who)
		if !ok {
			return nil, errors.Wrapf(ErrCompactInvalidIndex, "unknown voter %s", a.Who)
		}
		vote := CompactVote{Voter: vi}
		for i, d := range a.Distribution {
			ti, ok := targetIndex(d.Target)
			if !ok {
				return nil, errors.Wrapf(ErrCompactInvalidIndex, "unknown target %s", d.Target)
			}
			if i == n-1 {
				vote.Last = ti
				break
			}
			vote.Distribution = append(vote.Distribution, CompactEdge{Target: ti, Ratio: d.Weight})
		}
		c.Votes = append(c.Votes, vote)
	}
	return c, nil
}

// IntoAssignments decodes the compact with the given snapshot lookups
func (c *Compact) IntoAssignments(
	voterAt func(uint32) (string, bool),
	targetAt func(uint16) (string, bool),
) ([]Assignment, error) {
	assignments := make([]Assignment, 0, len(c.Votes))
	voters := make(map[uint32]struct{}, len(c.Votes))
	for _, v := range c.Votes {
		if len(v.Distribution)+1 > MaxCompactTargets {
			return nil, ErrCompactTargetOverflow
		}
		// a voter listed twice would have its stake counted twice
		if _, dup := voters[v.Voter]; dup {
			return nil, errors.Wrapf(ErrCompactDuplicate, "voter index %d", v.Voter)
		}
		voters[v.Voter] = struct{}{}
		who, ok := voterAt(v.Voter)
		if !ok {
			return nil, errors.Wrapf(ErrCompactInvalidIndex, "voter index %d", v.Voter)
		}
		seen := make(map[uint16]struct{}, len(v.Distribution)+1)
		a := Assignment{Who: who}
		sum := perbill.Zero
		for _, e := range v.Distribution {
			if _, dup := seen[e.Target]; dup {
				return nil, errors.Wrapf(ErrCompactDuplicate, "target index %d", e.Target)
			}
			seen[e.Target] = struct{}{}
			target, ok := targetAt(e.Target)
			if !ok {
				return nil, errors.Wrapf(ErrCompactInvalidIndex, "target index %d", e.Target)
			}
			sum = sum.Add(e.Ratio)
			a.Distribution = append(a.Distribution, Ratio{Target: target, Weight: e.Ratio})
		}
		if len(v.Distribution) > 0 && sum.IsOne() {
			return nil, errors.Wrapf(ErrCompactStakeOverflow, "voter index %d", v.Voter)
		}
		if _, dup := seen[v.Last]; dup {
			return nil, errors.Wrapf(ErrCompactDuplicate, "target index %d", v.Last)
		}
		last, ok := targetAt(v.Last)
		if !ok {
			return nil, errors.Wrapf(ErrCompactInvalidIndex, "target index %d", v.Last)
		}
		a.Distribution = append(a.Distribution, Ratio{Target: last, Weight: perbill.One().Sub(sum)})
		assignments = append(assignments, a)
	}
	return assignments, nil
}

// UniqueTargets returns the distinct target indices used by the compact, in ascending order
func (c *Compact) UniqueTargets() []uint16 {
	set := mapset.NewThreadUnsafeSet()
	for _, v := range c.Votes {
		for _, e := range v.Distribution {
			set.Add(e.Target)
		}
		set.Add(v.Last)
	}
	targets := make([]uint16, 0, set.Cardinality())
	for _, t := range set.ToSlice() {
		targets = append(targets, t.(uint16))
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i] < targets[j] })
	return targets
}

// EdgeCount returns the number of edges encoded
func (c *Compact) EdgeCount() int {
	var n int
	for _, v := range c.Votes {
		n += len(v.Distribution) + 1
	}
	return n
}

// VoterCount returns the number of voters encoded
func (c *Compact) VoterCount() int { return len(c.Votes) }
