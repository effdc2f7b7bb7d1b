// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package staking

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/iotexproject/iotex-npos/action"
	"github.com/iotexproject/iotex-npos/action/protocol"
	"github.com/iotexproject/iotex-npos/blockchain/genesis"
	"github.com/iotexproject/iotex-npos/election"
	"github.com/iotexproject/iotex-npos/pkg/perbill"
)

func (c *testChain) blockTime() time.Time {
	return protocol.MustGetBlockCtx(c.blockCtx()).BlockTimeStamp
}

func (c *testChain) electionOpen() bool {
	status, err := c.p.ElectionStatus(c.sm)
	require.NoError(c.t, err)
	return status.Open
}

func TestProtocol_EraProgression(t *testing.T) {
	require := require.New(t)
	c := newTestChain(t)

	// sessions of 5 blocks, 3 sessions per era, the window opens 3 blocks before the last session ends
	c.stepTo(6)
	require.False(c.electionOpen())
	c.step()
	require.True(c.electionOpen())
	validators, nominators, ok, err := c.p.Snapshot(c.sm)
	require.NoError(err)
	require.True(ok)
	require.Len(validators, 3)
	require.Len(nominators, 4)

	c.stepTo(10)
	require.EqualValues(1, c.currentEra())
	require.Zero(c.activeEra())
	require.False(c.electionOpen())
	_, _, ok, err = c.p.Snapshot(c.sm)
	require.NoError(err)
	require.False(ok)
	start, ok, err := c.p.erasStartSessionIndex(c.sm, 1)
	require.NoError(err)
	require.True(ok)
	require.EqualValues(3, start)
	elections := c.eventsOf("StakingElection")
	require.Len(elections, 1)
	require.Equal(election.OnChain, elections[0].(*StakingElectionEvent).Compute)

	c.stepTo(15)
	require.EqualValues(1, c.activeEra())
	reward, ok, err := c.p.ErasValidatorReward(c.sm, 0)
	require.NoError(err)
	require.True(ok)
	require.Positive(reward.Sign())
	payouts := c.eventsOf("EraPayout")
	require.Len(payouts, 1)
	ev := payouts[0].(*EraPayoutEvent)
	require.Zero(ev.Era)
	require.Equal(reward, ev.Validator)
	treasury, err := c.account.FreeBalance(c.sm, c.account.Treasury())
	require.NoError(err)
	require.Equal(ev.Remainder, treasury)
	points, err := c.p.ErasRewardPoints(c.sm, 0)
	require.NoError(err)
	require.EqualValues(14*_blockAuthorPoints, points.Of(stash(0)))
	require.Zero(points.Of(stash(1)))

	// the payouts of era 0 run in the blocks after the era ended
	c.stepTo(17)
	require.True(c.ledgerOf(0).Active.Cmp(units(300)) > 0)
	require.True(c.ledgerOf(3).Active.Cmp(units(400)) > 0)
	require.Equal(units(200), c.ledgerOf(1).Active)
	for _, i := range []int{0, 1} {
		require.True(c.ledgerOf(i).HasClaimed(0))
	}
	require.GreaterOrEqual(len(c.eventsOf("Reward")), 2)
	require.Empty(c.eventsOf("RewardPaymentSchedulingInterrupted"))

	err = c.signed(action.NewPayoutStakers(stash(0), 0), stash(5))
	require.Equal(ErrAlreadyClaimed, errors.Cause(err))
	err = c.signed(action.NewPayoutStakers(stash(0), 1), stash(5))
	require.Equal(ErrInvalidEraToReward, errors.Cause(err))
	err = c.signed(action.NewPayoutStakers(stash(5), 0), stash(5))
	require.Equal(ErrNotStash, errors.Cause(err))

	out, err := c.p.ReadState(context.Background(), c.sm, []byte("ActiveEra"))
	require.NoError(err)
	active, _, err := c.p.ActiveEra(c.sm)
	require.NoError(err)
	require.True(active.HasStart)
	require.Equal("1:"+strconv.FormatUint(active.Start, 10), string(out))
}

func TestProtocol_ForceEra(t *testing.T) {
	require := require.New(t)
	c := newTestChain(t)

	require.NoError(c.root(&action.ForceNewEra{}))
	// the window opens once the next session is within the lookahead and the era is planned with it
	c.stepTo(2)
	require.True(c.electionOpen())
	c.stepTo(5)
	require.EqualValues(1, c.currentEra())
	f, err := c.p.ForceEra(c.sm)
	require.NoError(err)
	require.Equal(NotForcing, f)
	c.stepTo(10)
	require.EqualValues(1, c.activeEra())

	require.NoError(c.root(&action.ForceNoEras{}))
	c.stepTo(40)
	require.EqualValues(1, c.currentEra())
	require.False(c.electionOpen())
}

func TestProtocol_OffchainSolution(t *testing.T) {
	require := require.New(t)
	c := newTestChain(t)

	_, err := c.p.ComputeOffchainSolution(c.sm, c.blockTime(), 2)
	require.Equal(ErrOffchainElectionEarlySubmission, errors.Cause(err))

	c.stepTo(7)
	sol, err := c.p.ComputeOffchainSolution(c.sm, c.blockTime(), 2)
	require.NoError(err)
	require.EqualValues(0, sol.Era())
	require.Len(sol.Winners(), 2)
	require.EqualValues(3, sol.Size().Validators)
	require.EqualValues(4, sol.Size().Nominators)

	bogus := []struct {
		act  *action.SubmitElectionSolution
		want error
	}{
		{
			action.NewSubmitElectionSolution(sol.Winners(), *sol.Compact(), election.NewScore(1, 2, 3), sol.Era(), sol.Size()),
			ErrOffchainElectionBogusScore,
		},
		{
			action.NewSubmitElectionSolution(sol.Winners()[:1], *sol.Compact(), sol.Score(), sol.Era(), sol.Size()),
			ErrOffchainElectionBogusWinnerCount,
		},
		{
			action.NewSubmitElectionSolution(sol.Winners(), *sol.Compact(), sol.Score(), sol.Era()+1, sol.Size()),
			ErrOffchainElectionEarlySubmission,
		},
		{
			action.NewSubmitElectionSolution(sol.Winners(), *sol.Compact(), sol.Score(), sol.Era(),
				election.Size{Validators: 4, Nominators: sol.Size().Nominators}),
			ErrOffchainElectionBogusElectionSize,
		},
	}
	for i, tc := range bogus {
		err := c.signed(tc.act, stash(5))
		require.Equal(tc.want, errors.Cause(err), "case %d", i)
	}
	_, ok, err := c.p.QueuedScore(c.sm)
	require.NoError(err)
	require.False(ok)

	// unsigned solutions come from the local worker only
	err = c.signed(sol, stash(5))
	require.Equal(protocol.ErrBadOrigin, errors.Cause(err))
	ctx := protocol.WithActionCtx(c.blockCtx(), protocol.ActionCtx{Origin: protocol.OriginNone})
	require.NoError(c.p.Validate(ctx, sol, c.sm))
	require.NoError(c.dispatch(sol, protocol.OriginNone, nil))
	queued, ok, err := c.p.QueuedScore(c.sm)
	require.NoError(err)
	require.True(ok)
	require.True(queued.Equal(sol.Score()))
	stored := c.eventsOf("SolutionStored")
	require.Len(stored, 1)
	require.Equal(election.Unsigned, stored[0].(*SolutionStoredEvent).Compute)

	// the same score is not good enough twice
	err = c.p.Validate(ctx, sol, c.sm)
	require.Equal(ErrOffchainElectionWeakSubmission, errors.Cause(err))
	err = c.dispatch(sol, protocol.OriginNone, nil)
	require.Equal(ErrOffchainElectionWeakSubmission, errors.Cause(err))

	// the queued solution is used for the next era
	c.stepTo(10)
	require.EqualValues(1, c.currentEra())
	elections := c.eventsOf("StakingElection")
	require.Len(elections, 1)
	require.Equal(election.Unsigned, elections[0].(*StakingElectionEvent).Compute)
	_, ok, err = c.p.QueuedScore(c.sm)
	require.NoError(err)
	require.False(ok)
	e, err := c.p.ErasStakers(c.sm, 1, stash(0))
	require.NoError(err)
	require.Equal(units(300), e.Own)

	err = c.dispatch(sol, protocol.OriginNone, nil)
	require.Equal(ErrOffchainElectionEarlySubmission, errors.Cause(err))
}

// snapshotIndex maps stashes to their position in the election snapshot
type snapshotIndex struct {
	t       *testing.T
	voters  map[string]uint32
	targets map[string]uint16
}

func (c *testChain) snapshotIndex() *snapshotIndex {
	validators, nominators, ok, err := c.p.Snapshot(c.sm)
	require.NoError(c.t, err)
	require.True(c.t, ok)
	ix := &snapshotIndex{
		t:       c.t,
		voters:  make(map[string]uint32, len(nominators)),
		targets: make(map[string]uint16, len(validators)),
	}
	for i, v := range validators {
		ix.targets[v.String()] = uint16(i)
	}
	for i, n := range nominators {
		ix.voters[n.String()] = uint32(i)
	}
	return ix
}

func (ix *snapshotIndex) voter(i int) uint32 {
	v, ok := ix.voters[stash(i).String()]
	require.True(ix.t, ok, "stash %d is not a snapshot voter", i)
	return v
}

func (ix *snapshotIndex) target(i int) uint16 {
	v, ok := ix.targets[stash(i).String()]
	require.True(ix.t, ok, "stash %d is not a snapshot target", i)
	return v
}

// scoreOf evaluates a compact solution against the snapshot the way the chain does
func (c *testChain) scoreOf(winners []uint16, compact *election.Compact) election.Score {
	require := require.New(c.t)
	validators, nominators, ok, err := c.p.Snapshot(c.sm)
	require.NoError(err)
	require.True(ok)
	assignments, err := compact.IntoAssignments(
		func(i uint32) (string, bool) {
			if int(i) >= len(nominators) {
				return "", false
			}
			return nominators[i].String(), true
		},
		func(i uint16) (string, bool) {
			if int(i) >= len(validators) {
				return "", false
			}
			return validators[i].String(), true
		},
	)
	require.NoError(err)
	factor, err := c.p.voteWeightFactor(c.sm)
	require.NoError(err)
	weights := make(map[string]uint64, len(assignments))
	for _, a := range assignments {
		who, err := address.FromString(a.Who)
		require.NoError(err)
		weights[a.Who], err = c.p.voteWeight(c.sm, who, factor)
		require.NoError(err)
	}
	ids := make([]string, 0, len(winners))
	for _, w := range winners {
		ids = append(ids, validators[w].String())
	}
	supports, err := election.ToSupports(ids, election.ToStaked(assignments, func(who string) uint64 { return weights[who] }))
	require.NoError(err)
	return election.Evaluate(supports)
}

func TestProtocol_OffchainSolutionRejected(t *testing.T) {
	onlyFirstValidator := func(g *genesis.Genesis) {
		g.Staking.Stakers[3].Targets = []string{stash(0).String()}
	}
	half := perbill.FromPercent(50)

	for _, tc := range []struct {
		name    string
		opts    []func(*genesis.Genesis)
		prepare func(c *testChain)
		build   func(ix *snapshotIndex, honest *action.SubmitElectionSolutionUnsigned) ([]uint16, election.Compact)
		want    error
	}{
		{
			name: "voter listed twice",
			build: func(_ *snapshotIndex, honest *action.SubmitElectionSolutionUnsigned) ([]uint16, election.Compact) {
				votes := append([]election.CompactVote(nil), honest.Compact().Votes...)
				votes = append(votes, votes[0])
				return honest.Winners(), election.Compact{Votes: votes}
			},
			want: ErrOffchainElectionBogusCompact,
		},
		{
			name: "winner outside the snapshot",
			build: func(_ *snapshotIndex, honest *action.SubmitElectionSolutionUnsigned) ([]uint16, election.Compact) {
				return []uint16{honest.Winners()[0], 99}, *honest.Compact()
			},
			want: ErrOffchainElectionBogusWinner,
		},
		{
			name: "vote for a non winner",
			build: func(ix *snapshotIndex, _ *action.SubmitElectionSolutionUnsigned) ([]uint16, election.Compact) {
				return []uint16{ix.target(0), ix.target(1)}, election.Compact{Votes: []election.CompactVote{
					{Voter: ix.voter(0), Last: ix.target(0)},
					{Voter: ix.voter(2), Last: ix.target(2)},
				}}
			},
			want: ErrOffchainElectionBogusWinner,
		},
		{
			name: "validator splits its self vote",
			build: func(ix *snapshotIndex, _ *action.SubmitElectionSolutionUnsigned) ([]uint16, election.Compact) {
				return []uint16{ix.target(0), ix.target(1)}, election.Compact{Votes: []election.CompactVote{
					{Voter: ix.voter(0), Distribution: []election.CompactEdge{{Target: ix.target(0), Ratio: half}}, Last: ix.target(1)},
					{Voter: ix.voter(1), Last: ix.target(1)},
				}}
			},
			want: ErrOffchainElectionBogusSelfVote,
		},
		{
			name: "nominator backs a validator it did not nominate",
			opts: []func(*genesis.Genesis){onlyFirstValidator},
			build: func(ix *snapshotIndex, _ *action.SubmitElectionSolutionUnsigned) ([]uint16, election.Compact) {
				return []uint16{ix.target(0), ix.target(1)}, election.Compact{Votes: []election.CompactVote{
					{Voter: ix.voter(3), Last: ix.target(1)},
					{Voter: ix.voter(0), Last: ix.target(0)},
				}}
			},
			want: ErrOffchainElectionBogusNomination,
		},
		{
			name: "voter both validates and nominates",
			prepare: func(c *testChain) {
				require.NoError(c.t, c.p.putNominations(c.sm, stash(0), &Nominations{Targets: []address.Address{stash(1)}}))
			},
			build: func(ix *snapshotIndex, _ *action.SubmitElectionSolutionUnsigned) ([]uint16, election.Compact) {
				return []uint16{ix.target(0), ix.target(1)}, election.Compact{Votes: []election.CompactVote{
					{Voter: ix.voter(0), Last: ix.target(0)},
					{Voter: ix.voter(1), Last: ix.target(1)},
				}}
			},
			want: ErrOffchainElectionBogusNominator,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require := require.New(t)
			c := newTestChain(t, tc.opts...)
			c.stepTo(7)
			honest, err := c.p.ComputeOffchainSolution(c.sm, c.blockTime(), 2)
			require.NoError(err)
			if tc.prepare != nil {
				tc.prepare(c)
			}
			winners, compact := tc.build(c.snapshotIndex(), honest)
			act := action.NewSubmitElectionSolution(winners, compact, honest.Score(), honest.Era(), honest.Size())
			err = c.signed(act, stash(5))
			require.Equal(tc.want, errors.Cause(err))
			require.EqualValues(ErrorCode(tc.want), ErrorCode(err))
			_, ok, err := c.p.QueuedScore(c.sm)
			require.NoError(err)
			require.False(ok)
		})
	}
}

func TestProtocol_OffchainSolutionSlashedNomination(t *testing.T) {
	require := require.New(t)
	c := newTestChain(t)
	c.stepTo(10)
	require.EqualValues(1, c.activeEra())
	for !c.electionOpen() {
		require.Less(c.height, uint64(30))
		c.step()
	}
	require.EqualValues(1, c.currentEra())

	// stash 1 is slashed in era 1, after the nominator picked its targets in era 0
	session, err := c.session.CurrentIndex(c.sm)
	require.NoError(err)
	require.NoError(c.root(action.NewReportOffence(
		[]action.OffenceDetails{{Offender: stash(1)}},
		[]perbill.Perbill{perbill.FromPercent(10)},
		session,
	)))

	ix := c.snapshotIndex()
	size := election.Size{Validators: uint16(len(ix.targets)), Nominators: uint32(len(ix.voters))}
	winners := []uint16{ix.target(0), ix.target(1)}
	compact := election.Compact{Votes: []election.CompactVote{{
		Voter:        ix.voter(3),
		Distribution: []election.CompactEdge{{Target: ix.target(0), Ratio: perbill.FromPercent(50)}},
		Last:         ix.target(1),
	}}}
	err = c.signed(action.NewSubmitElectionSolution(winners, compact, election.NewScore(1, 1, 1), 1, size), stash(5))
	require.Equal(ErrOffchainElectionSlashedNomination, errors.Cause(err))
}

func TestProtocol_OffchainSolutionReplaced(t *testing.T) {
	require := require.New(t)
	c := newTestChain(t)
	c.stepTo(7)
	honest, err := c.p.ComputeOffchainSolution(c.sm, c.blockTime(), 2)
	require.NoError(err)

	// the nominator puts all of its stake behind the largest validator
	ix := c.snapshotIndex()
	winners := []uint16{ix.target(0), ix.target(1)}
	weak := election.Compact{Votes: []election.CompactVote{
		{Voter: ix.voter(0), Last: ix.target(0)},
		{Voter: ix.voter(1), Last: ix.target(1)},
		{Voter: ix.voter(3), Last: ix.target(0)},
	}}
	weakScore := c.scoreOf(winners, &weak)
	require.True(honest.Score().StrictThresholdBetter(weakScore, perbill.FromParts(50_000)))
	weakSol := action.NewSubmitElectionSolution(winners, weak, weakScore, honest.Era(), honest.Size())
	strongSol := action.NewSubmitElectionSolution(honest.Winners(), *honest.Compact(), honest.Score(), honest.Era(), honest.Size())

	queuedScore := func() election.Score {
		queued, ok, err := c.p.QueuedScore(c.sm)
		require.NoError(err)
		require.True(ok)
		return *queued
	}
	require.NoError(c.signed(weakSol, stash(5)))
	require.True(queuedScore().Equal(weakScore))
	require.NoError(c.signed(strongSol, stash(6)))
	require.True(queuedScore().Equal(honest.Score()))

	stored := c.eventsOf("SolutionStored")
	require.Len(stored, 2)
	for _, ev := range stored {
		require.Equal(election.Signed, ev.(*SolutionStoredEvent).Compute)
	}
	for _, sol := range []*action.SubmitElectionSolution{weakSol, strongSol} {
		err = c.signed(sol, stash(5))
		require.Equal(ErrOffchainElectionWeakSubmission, errors.Cause(err))
	}
	require.True(queuedScore().Equal(honest.Score()))

	c.stepTo(10)
	elections := c.eventsOf("StakingElection")
	require.Len(elections, 1)
	require.Equal(election.Signed, elections[0].(*StakingElectionEvent).Compute)
}

func TestProtocol_ElectionNeedsMinimumValidators(t *testing.T) {
	require := require.New(t)
	c := newTestChain(t)

	require.NoError(putUint32(c.sm, _minimumValidatorCountKey, 4))
	c.stepTo(10)
	// the era still advances, the current validators are kept
	require.EqualValues(1, c.currentEra())
	require.Empty(c.eventsOf("StakingElection"))
	elected, err := c.session.Validators(c.sm)
	require.NoError(err)
	require.ElementsMatch([]string{stash(0).String(), stash(1).String()}, addrStrings(elected))
}
