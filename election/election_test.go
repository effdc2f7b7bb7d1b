// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package election

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/iotexproject/iotex-npos/pkg/perbill"
)

func threeCandidates() ([]string, []Voter) {
	return []string{"1", "2", "3"}, []Voter{
		{ID: "10", Stake: 10, Targets: []string{"1", "2"}},
		{ID: "20", Stake: 20, Targets: []string{"1", "3"}},
		{ID: "30", Stake: 30, Targets: []string{"2", "3"}},
	}
}

func stakeOf(voters []Voter) func(string) uint64 {
	m := make(map[string]uint64, len(voters))
	for _, v := range voters {
		m[v.ID] = v.Stake
	}
	return func(who string) uint64 { return m[who] }
}

func TestSeqPhragmen(t *testing.T) {
	r := require.New(t)

	t.Run("no candidates", func(t *testing.T) {
		_, err := SeqPhragmen(2, nil, nil, nil)
		require.ErrorIs(t, err, ErrNoCandidates)
	})

	candidates, voters := threeCandidates()
	res, err := SeqPhragmen(2, candidates, voters, nil)
	r.NoError(err)
	r.Equal([]string{"3", "2"}, res.WinnerIDs())
	r.EqualValues(35, res.Winners[0].Backed.Uint64())
	r.EqualValues(24, res.Winners[1].Backed.Uint64())

	r.Len(res.Assignments, 3)
	half := perbill.FromPercent(50)
	r.Equal(Assignment{Who: "10", Distribution: []Ratio{{Target: "2", Weight: perbill.One()}}}, res.Assignments[0])
	r.Equal(Assignment{Who: "20", Distribution: []Ratio{{Target: "3", Weight: perbill.One()}}}, res.Assignments[1])
	r.Equal(Assignment{Who: "30", Distribution: []Ratio{{Target: "2", Weight: half}, {Target: "3", Weight: half}}}, res.Assignments[2])

	staked := ToStaked(res.Assignments, stakeOf(voters))
	for i, a := range staked {
		r.Equal(voters[i].Stake, a.Total())
	}
	supports, err := ToSupports(res.WinnerIDs(), staked)
	r.NoError(err)
	r.Equal("3", supports[0].Target)
	r.EqualValues(35, supports[0].Total.Uint64())
	r.Equal("2", supports[1].Target)
	r.EqualValues(25, supports[1].Total.Uint64())
	r.Equal([]Backing{{Who: "20", Stake: 20}, {Who: "30", Stake: 15}}, supports[0].Voters)

	score := Evaluate(supports)
	r.True(score.Equal(NewScore(25, 60, 35*35+25*25)))
}

func TestSeqPhragmenInputs(t *testing.T) {
	r := require.New(t)

	// duplicate and unknown targets are ignored, more seats than candidates elects everyone
	res, err := SeqPhragmen(5, []string{"a", "b", "a"}, []Voter{
		{ID: "x", Stake: 100, Targets: []string{"a", "a", "zz"}},
		{ID: "y", Stake: 50, Targets: []string{"b"}},
	}, nil)
	r.NoError(err)
	r.Equal([]string{"a", "b"}, res.WinnerIDs())
	r.EqualValues(100, res.Winners[0].Backed.Uint64())
	r.EqualValues(50, res.Winners[1].Backed.Uint64())
	r.Len(res.Assignments, 2)
	r.Len(res.Assignments[0].Distribution, 1)

	// a voter without edges yields no assignment
	res, err = SeqPhragmen(1, []string{"a"}, []Voter{
		{ID: "x", Stake: 100, Targets: []string{"a"}},
		{ID: "idle", Stake: 10},
	}, nil)
	r.NoError(err)
	r.Len(res.Assignments, 1)
	r.Equal("x", res.Assignments[0].Who)
}

func TestSeqPhragmenBalancing(t *testing.T) {
	r := require.New(t)
	candidates := []string{"1", "2"}
	voters := []Voter{
		{ID: "1", Stake: 10, Targets: []string{"1"}},
		{ID: "2", Stake: 20, Targets: []string{"2"}},
		{ID: "3", Stake: 30, Targets: []string{"1", "2"}},
	}
	supportsOf := func(res *Result) []Support {
		s, err := ToSupports(res.WinnerIDs(), ToStaked(res.Assignments, stakeOf(voters)))
		r.NoError(err)
		return s
	}
	spread := func(s []Support) uint64 {
		a, b := s[0].Total.Uint64(), s[1].Total.Uint64()
		if a > b {
			return a - b
		}
		return b - a
	}

	plain, err := SeqPhragmen(2, candidates, voters, nil)
	r.NoError(err)
	r.Equal([]string{"2", "1"}, plain.WinnerIDs())
	unbalanced := supportsOf(plain)
	r.EqualValues(10, spread(unbalanced))

	balanced, err := SeqPhragmen(2, candidates, voters, &BalancingConfig{Iterations: 10})
	r.NoError(err)
	r.Equal([]string{"2", "1"}, balanced.WinnerIDs())
	even := supportsOf(balanced)
	r.Less(spread(even), spread(unbalanced))
	r.LessOrEqual(spread(even), uint64(2))
	r.EqualValues(60, Evaluate(even).SumStake.Uint64())
	for _, a := range balanced.Assignments {
		var sum perbill.Perbill
		for _, d := range a.Distribution {
			sum = sum.Add(d.Weight)
		}
		r.True(sum.IsOne(), a.Who)
	}
}

func TestNormalize(t *testing.T) {
	r := require.New(t)

	for _, v := range []struct {
		input    []uint64
		target   uint64
		expected []uint64
	}{
		{[]uint64{}, 10, []uint64{}},
		{[]uint64{1, 2, 3, 4}, 10, []uint64{1, 2, 3, 4}},
		{[]uint64{2, 5}, 10, []uint64{5, 5}},
		{[]uint64{14, 15}, 30, []uint64{15, 15}},
		{[]uint64{10, 20}, 27, []uint64{10, 17}},
		{[]uint64{0, 0, 0}, 7, []uint64{3, 2, 2}},
	} {
		out, err := Normalize(v.input, v.target)
		r.NoError(err)
		r.Equal(v.expected, out)
		var sum uint64
		for _, o := range out {
			sum += o
		}
		if len(v.input) > 0 {
			r.Equal(v.target, sum)
		}
	}

	_, err := Normalize([]uint16{60000, 10000}, 100)
	r.True(errors.Is(err, ErrArithmetic))
}

func TestAssignmentTryNormalize(t *testing.T) {
	r := require.New(t)
	a := Assignment{Who: "v", Distribution: []Ratio{
		{Target: "a", Weight: perbill.FromParts(333333333)},
		{Target: "b", Weight: perbill.FromParts(333333333)},
		{Target: "c", Weight: perbill.FromParts(333333333)},
	}}
	r.NoError(a.TryNormalize())
	var sum perbill.Perbill
	for _, d := range a.Distribution {
		sum = sum.Add(d.Weight)
	}
	r.True(sum.IsOne())
	r.Equal(perbill.FromParts(333333334), a.Distribution[0].Weight)
}

func TestToSupportsNonWinner(t *testing.T) {
	_, err := ToSupports([]string{"a"}, []StakedAssignment{
		{Who: "v", Distribution: []Stake{{Target: "a", Weight: 5}, {Target: "b", Weight: 5}}},
	})
	require.ErrorIs(t, err, ErrInvalidSupportEdge)
}

func TestEvaluateEmpty(t *testing.T) {
	r := require.New(t)
	s := Evaluate(nil)
	r.True(s.SumStake.IsZero())
	r.True(s.SumStakeSquared.IsZero())
	r.True(s.MinimalStake.Eq(maxUint256()))
}

func TestCompact(t *testing.T) {
	r := require.New(t)
	voters := []string{"alice", "bob"}
	targets := []string{"x", "y"}
	voterIndex := func(s string) (uint32, bool) {
		for i, v := range voters {
			if v == s {
				return uint32(i), true
			}
		}
		return 0, false
	}
	targetIndex := func(s string) (uint16, bool) {
		for i, v := range targets {
			if v == s {
				return uint16(i), true
			}
		}
		return 0, false
	}
	voterAt := func(i uint32) (string, bool) {
		if int(i) >= len(voters) {
			return "", false
		}
		return voters[i], true
	}
	targetAt := func(i uint16) (string, bool) {
		if int(i) >= len(targets) {
			return "", false
		}
		return targets[i], true
	}

	assignments := []Assignment{
		{Who: "alice", Distribution: []Ratio{
			{Target: "x", Weight: perbill.FromPercent(30)},
			{Target: "y", Weight: perbill.FromPercent(70)},
		}},
		{Who: "bob", Distribution: []Ratio{{Target: "y", Weight: perbill.One()}}},
	}
	c, err := FromAssignments(assignments, voterIndex, targetIndex)
	r.NoError(err)
	r.Equal(2, c.VoterCount())
	r.Equal(3, c.EdgeCount())
	r.Equal([]uint16{0, 1}, c.UniqueTargets())
	r.Equal(CompactVote{Voter: 0, Distribution: []CompactEdge{{Target: 0, Ratio: perbill.FromPercent(30)}}, Last: 1}, c.Votes[0])
	r.Equal(CompactVote{Voter: 1, Last: 1}, c.Votes[1])

	decoded, err := c.IntoAssignments(voterAt, targetAt)
	r.NoError(err)
	r.Equal(assignments, decoded)

	_, err = FromAssignments([]Assignment{{Who: "carol", Distribution: []Ratio{{Target: "x", Weight: perbill.One()}}}}, voterIndex, targetIndex)
	r.ErrorIs(err, ErrCompactInvalidIndex)

	for _, v := range []struct {
		vote CompactVote
		err  error
	}{
		{CompactVote{Voter: 5, Last: 0}, ErrCompactInvalidIndex},
		{CompactVote{Voter: 0, Last: 9}, ErrCompactInvalidIndex},
		{CompactVote{Voter: 0, Distribution: []CompactEdge{{Target: 1, Ratio: perbill.FromPercent(10)}}, Last: 1}, ErrCompactDuplicate},
		{CompactVote{Voter: 0, Distribution: []CompactEdge{{Target: 0, Ratio: perbill.One()}}, Last: 1}, ErrCompactStakeOverflow},
		{CompactVote{Voter: 0, Distribution: make([]CompactEdge, MaxCompactTargets)}, ErrCompactTargetOverflow},
	} {
		bad := &Compact{Votes: []CompactVote{v.vote}}
		_, err := bad.IntoAssignments(voterAt, targetAt)
		r.ErrorIs(err, v.err)
	}
}

func TestCompactDuplicateVoter(t *testing.T) {
	r := require.New(t)
	voterAt := func(i uint32) (string, bool) { return []string{"alice", "bob"}[i%2], i < 2 }
	targetAt := func(i uint16) (string, bool) { return "x", i == 0 }

	for _, tc := range []struct {
		name  string
		votes []CompactVote
		err   error
	}{
		{"distinct voters", []CompactVote{{Voter: 0}, {Voter: 1}}, nil},
		{"repeated voter", []CompactVote{{Voter: 0}, {Voter: 1}, {Voter: 0}}, ErrCompactDuplicate},
		{"repeated multi edge voter", []CompactVote{
			{Voter: 1},
			{Voter: 1, Distribution: []CompactEdge{{Target: 0, Ratio: perbill.FromPercent(40)}}, Last: 1},
		}, ErrCompactDuplicate},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c := &Compact{Votes: tc.votes}
			assignments, err := c.IntoAssignments(voterAt, targetAt)
			if tc.err != nil {
				r.ErrorIs(err, tc.err)
				r.Nil(assignments)
				return
			}
			r.NoError(err)
			r.Len(assignments, len(tc.votes))
		})
	}
}

func TestScoreStrictThresholdBetter(t *testing.T) {
	r := require.New(t)

	base := NewScore(1000, 2000, 3000)
	r.False(base.StrictThresholdBetter(base, perbill.Zero))
	r.True(NewScore(1001, 0, 0).StrictThresholdBetter(base, perbill.Zero))
	r.False(NewScore(999, 5000, 0).StrictThresholdBetter(base, perbill.Zero))
	r.True(NewScore(1000, 2001, 9999).StrictThresholdBetter(base, perbill.Zero))
	r.True(NewScore(1000, 2000, 2999).StrictThresholdBetter(base, perbill.Zero))
	r.False(NewScore(1000, 2000, 3001).StrictThresholdBetter(base, perbill.Zero))

	// within ten percent counts as equal
	tenPercent := perbill.FromPercent(10)
	r.False(NewScore(1050, 2000, 3000).StrictThresholdBetter(base, tenPercent))
	r.True(NewScore(1101, 2000, 3000).StrictThresholdBetter(base, tenPercent))
	r.False(NewScore(1000, 2199, 3000).StrictThresholdBetter(base, tenPercent))
	r.True(NewScore(1000, 2201, 3000).StrictThresholdBetter(base, tenPercent))
	r.True(NewScore(1000, 2000, 2600).StrictThresholdBetter(base, tenPercent))
}

func TestScoreSerialize(t *testing.T) {
	r := require.New(t)
	s := NewScore(1, 2, 3)
	data, err := s.Serialize()
	r.NoError(err)
	var decoded Score
	r.NoError(decoded.Deserialize(data))
	r.True(s.Equal(decoded))
	r.Equal("[1, 2, 3]", decoded.String())
}
