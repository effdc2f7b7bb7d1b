// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package election

import (
	"math"
	"sort"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/iotexproject/iotex-npos/pkg/log"
	"github.com/iotexproject/iotex-npos/pkg/perbill"
)

// _den is the common denominator of all loads and scores, 2^128 - 1
var _den = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))

type (
	candidate struct {
		id       string
		score    *uint256.Int
		approval *uint256.Int
		backed   *uint256.Int
		elected  bool
		round    int
	}

	edge struct {
		who    string
		cand   *candidate
		load   *uint256.Int
		weight uint64
	}

	voter struct {
		who    string
		edges  []*edge
		budget uint64
		load   *uint256.Int
	}
)

func maxUint256() *uint256.Int { return new(uint256.Int).SetAllOne() }

// setupInputs builds the internal graph. Edges to unknown candidates and repeated edges are dropped.
func setupInputs(candidateIDs []string, voters []Voter) ([]*candidate, []*voter) {
	candidates := make([]*candidate, 0, len(candidateIDs))
	index := make(map[string]*candidate, len(candidateIDs))
	for _, id := range candidateIDs {
		if _, ok := index[id]; ok {
			continue
		}
		c := &candidate{
			id:       id,
			score:    new(uint256.Int),
			approval: new(uint256.Int),
			backed:   new(uint256.Int),
		}
		candidates = append(candidates, c)
		index[id] = c
	}
	vs := make([]*voter, 0, len(voters))
	for _, v := range voters {
		nv := &voter{who: v.ID, budget: v.Stake, load: new(uint256.Int)}
		seen := make(map[string]struct{}, len(v.Targets))
		for _, t := range v.Targets {
			if _, ok := seen[t]; ok {
				continue
			}
			c, ok := index[t]
			if !ok {
				continue
			}
			seen[t] = struct{}{}
			nv.edges = append(nv.edges, &edge{who: t, cand: c, load: new(uint256.Int)})
			c.approval.Add(c.approval, uint256.NewInt(v.Stake))
		}
		vs = append(vs, nv)
	}
	return candidates, vs
}

// SeqPhragmen elects up to toElect candidates with the sequential Phragmén method, optionally followed by
// balancing. Winners are returned in the order they were elected, assignments are normalized ratios.
func SeqPhragmen(toElect int, candidateIDs []string, voters []Voter, balancing *BalancingConfig) (*Result, error) {
	if len(candidateIDs) == 0 {
		return nil, ErrNoCandidates
	}
	candidates, vs := setupInputs(candidateIDs, voters)
	if err := seqPhragmenCore(toElect, candidates, vs); err != nil {
		return nil, err
	}
	if balancing != nil && balancing.Iterations > 0 {
		rounds := balance(vs, balancing)
		log.Logger("election").Debug("Balanced election edges", zap.Int("rounds", rounds))
	}

	winners := make([]*candidate, 0, toElect)
	for _, c := range candidates {
		if c.elected {
			winners = append(winners, c)
		}
	}
	sort.SliceStable(winners, func(i, j int) bool { return winners[i].round < winners[j].round })

	res := &Result{Winners: make([]Winner, len(winners))}
	for i, w := range winners {
		res.Winners[i] = Winner{ID: w.id, Backed: w.backed.Clone()}
	}
	for _, v := range vs {
		a, ok := v.intoAssignment()
		if !ok {
			continue
		}
		if err := a.TryNormalize(); err != nil {
			return nil, err
		}
		res.Assignments = append(res.Assignments, *a)
	}
	return res, nil
}

func seqPhragmenCore(rounds int, candidates []*candidate, voters []*voter) error {
	toElect := rounds
	if len(candidates) < toElect {
		toElect = len(candidates)
	}
	for round := 0; round < toElect; round++ {
		for _, c := range candidates {
			if c.elected {
				continue
			}
			if c.approval.IsZero() {
				c.score = maxUint256()
			} else {
				c.score = new(uint256.Int).Div(_den, c.approval)
			}
		}
		for _, v := range voters {
			budget := uint256.NewInt(v.budget)
			for _, e := range v.edges {
				c := e.cand
				if c.elected || c.approval.IsZero() {
					continue
				}
				temp, overflow := new(uint256.Int).MulDivOverflow(v.load, budget, c.approval)
				if overflow {
					temp = maxUint256()
				}
				if _, of := c.score.AddOverflow(c.score, temp); of {
					c.score = maxUint256()
				}
			}
		}

		var winner *candidate
		for _, c := range candidates {
			if c.elected {
				continue
			}
			if winner == nil || c.score.Lt(winner.score) {
				winner = c
			}
		}
		if winner == nil {
			break
		}
		winner.elected = true
		winner.round = round
		for _, v := range voters {
			for _, e := range v.edges {
				if e.cand != winner {
					continue
				}
				e.load = saturatingSub(winner.score, v.load)
				v.load = winner.score.Clone()
			}
		}
	}

	for _, v := range voters {
		budget := uint256.NewInt(v.budget)
		for _, e := range v.edges {
			if e.cand.elected && !v.load.IsZero() {
				w, overflow := new(uint256.Int).MulDivOverflow(budget, e.load, v.load)
				if overflow || !w.IsUint64() {
					e.weight = math.MaxUint64
				} else {
					e.weight = w.Uint64()
				}
			} else {
				e.weight = 0
			}
			e.cand.backed = saturatingAdd(e.cand.backed, uint256.NewInt(e.weight))
		}
		kept := v.edges[:0]
		for _, e := range v.edges {
			if e.weight > 0 {
				kept = append(kept, e)
			}
		}
		v.edges = kept
		if err := v.tryNormalizeElected(); err != nil {
			return err
		}
	}
	return nil
}

// tryNormalizeElected makes the elected edge weights of the voter sum up to its budget
func (v *voter) tryNormalizeElected() error {
	var (
		weights []uint64
		elected []*edge
	)
	for _, e := range v.edges {
		if e.cand.elected {
			weights = append(weights, e.weight)
			elected = append(elected, e)
		}
	}
	normalized, err := Normalize(weights, v.budget)
	if err != nil {
		return err
	}
	for i, e := range elected {
		e.weight = normalized[i]
	}
	return nil
}

func (v *voter) intoAssignment() (*Assignment, bool) {
	a := &Assignment{Who: v.who}
	for _, e := range v.edges {
		p := perbill.FromRationalUint64(e.weight, v.budget)
		if p.IsZero() {
			continue
		}
		a.Distribution = append(a.Distribution, Ratio{Target: e.who, Weight: p})
	}
	return a, len(a.Distribution) > 0
}

func saturatingAdd(a, b *uint256.Int) *uint256.Int {
	z, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return maxUint256()
	}
	return z
}

func saturatingSub(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(a, b)
}

// TryNormalize makes the ratios of the assignment sum up to exactly one
func (a *Assignment) TryNormalize() error {
	parts := make([]uint64, len(a.Distribution))
	for i, d := range a.Distribution {
		parts[i] = uint64(d.Weight.Parts())
	}
	normalized, err := Normalize(parts, uint64(perbill.Accuracy))
	if err != nil {
		return errors.Wrapf(err, "failed to normalize assignment of %s", a.Who)
	}
	for i := range a.Distribution {
		a.Distribution[i].Weight = perbill.FromParts(uint32(normalized[i]))
	}
	return nil
}
