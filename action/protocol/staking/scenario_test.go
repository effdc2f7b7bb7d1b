// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package staking

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iotexproject/iotex-npos/action"
	"github.com/iotexproject/iotex-npos/blockchain/genesis"
	"github.com/iotexproject/iotex-npos/pkg/perbill"
)

// soloValidators bonds 1000 units on stash 0 and 500 on stash 1, the nominator backs stash 0 only
func soloValidators(g *genesis.Genesis) {
	g.Account.InitBalanceMap[stash(0).String()] = units(2000).String()
	g.Staking.Stakers = []genesis.Staker{
		{StashAddr: stash(0).String(), ControllerAddr: controllerOf(0).String(), ValueStr: units(1000).String(), Validator: true},
		{StashAddr: stash(1).String(), ControllerAddr: controllerOf(1).String(), ValueStr: units(500).String(), Validator: true},
	}
}

func TestScenario_ExposureWithoutNominators(t *testing.T) {
	require := require.New(t)
	c := newTestChain(t, soloValidators)

	c.stepTo(10)
	require.EqualValues(1, c.activeEra())
	e, err := c.p.ErasStakers(c.sm, 1, stash(0))
	require.NoError(err)
	require.Equal(units(1000), e.Total)
	require.Equal(units(1000), e.Own)
	require.Empty(e.Others)
}

func TestScenario_UnbondAtEraTwo(t *testing.T) {
	require := require.New(t)
	c := newTestChain(t, func(g *genesis.Genesis) {
		g.Account.InitBalanceMap[stash(5).String()] = units(2000).String()
		g.Staking.BondingDuration = 3
	})

	c.bond(5, 1100)
	require.NoError(c.p.putCurrentEra(c.sm, 2))
	require.NoError(c.signed(action.NewUnbond(units(1000)), controllerOf(5)))
	l := c.ledgerOf(5)
	require.Equal(units(1100), l.Total)
	require.Equal(units(100), l.Active)
	require.Equal([]UnlockChunk{{Value: units(1000), Era: 5}}, l.Unlocking)
}

func TestScenario_SlashValidatorOnly(t *testing.T) {
	require := require.New(t)
	c := newTestChain(t, soloValidators, func(g *genesis.Genesis) {
		g.Staking.SlashingAllowedFor = action.SlashingNone.String()
		g.Staking.Stakers = append(g.Staking.Stakers, genesis.Staker{
			StashAddr:      stash(3).String(),
			ControllerAddr: controllerOf(3).String(),
			ValueStr:       units(400).String(),
			Targets:        []string{stash(0).String()},
		})
	})
	c.step()

	e, err := c.p.ErasStakers(c.sm, 0, stash(0))
	require.NoError(err)
	require.Equal(units(1000), e.Own)
	nominatorBalance := c.balanceOf(stash(3))

	c.reportOffence(0, perbill.FromPercent(10))
	require.Equal(units(1900), c.balanceOf(stash(0)))
	require.Equal(units(900), c.ledgerOf(0).Active)
	require.Equal(nominatorBalance, c.balanceOf(stash(3)))
	require.Equal(units(400), c.ledgerOf(3).Active)
}

func TestScenario_CancelMiddleSlash(t *testing.T) {
	require := require.New(t)
	c := newTestChain(t, func(g *genesis.Genesis) {
		g.Staking.SlashDeferDuration = 1
		g.Staking.ValidatorCount = 3
	})
	c.step()

	for i := 0; i < 3; i++ {
		c.reportOffence(i, perbill.FromPercent(10))
	}
	queue, err := c.p.UnappliedSlashes(c.sm, 0)
	require.NoError(err)
	require.Len(queue, 3)

	require.NoError(c.root(action.NewCancelDeferredSlash(0, []uint32{1})))
	queue, err = c.p.UnappliedSlashes(c.sm, 0)
	require.NoError(err)
	require.Len(queue, 2)
	require.Equal(stash(0).String(), queue[0].Validator.String())
	require.Equal(stash(2).String(), queue[1].Validator.String())
}
