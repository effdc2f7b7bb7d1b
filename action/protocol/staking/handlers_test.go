// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package staking

import (
	"math"
	"math/big"
	"testing"

	"github.com/iotexproject/go-pkgs/hash"
	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/iotexproject/iotex-npos/action"
	"github.com/iotexproject/iotex-npos/action/protocol"
	"github.com/iotexproject/iotex-npos/blockchain/genesis"
	"github.com/iotexproject/iotex-npos/pkg/perbill"
	"github.com/iotexproject/iotex-npos/test/identityset"
)

func (c *testChain) bond(i int, value int64) {
	require.NoError(c.t, c.signed(action.NewBond(controllerOf(i), units(value), action.StakedPayee()), stash(i)))
}

func (c *testChain) governance(act action.Action) error {
	return c.dispatch(act, protocol.OriginGovernance, nil)
}

func (c *testChain) isValidator(i int) bool {
	_, ok, err := c.p.validatorPrefs(c.sm, stash(i))
	require.NoError(c.t, err)
	return ok
}

func (c *testChain) permissioned(i int) *PermissionedIdentityPrefs {
	prefs, ok, err := c.p.PermissionedIdentity(c.sm, identityset.DID(i))
	require.NoError(c.t, err)
	require.True(c.t, ok)
	return prefs
}

func TestProtocol_BondLifecycle(t *testing.T) {
	require := require.New(t)
	c := newTestChain(t)

	c.bond(5, 100)
	controller, ok, err := c.p.Bonded(c.sm, stash(5))
	require.NoError(err)
	require.True(ok)
	require.True(address.Equal(controllerOf(5), controller))
	require.Equal(units(100), c.ledgerOf(5).Active)

	err = c.signed(action.NewBond(controllerOf(6), units(1), action.StakedPayee()), stash(5))
	require.Equal(ErrAlreadyBonded, errors.Cause(err))
	err = c.signed(action.NewBond(controllerOf(5), units(1), action.StakedPayee()), stash(6))
	require.Equal(ErrAlreadyPaired, errors.Cause(err))
	err = c.signed(action.NewBond(controllerOf(6), new(big.Int), action.StakedPayee()), stash(6))
	require.Equal(ErrBondTooSmall, errors.Cause(err))

	require.NoError(c.signed(action.NewBondExtra(units(50)), stash(5)))
	require.Equal(units(150), c.ledgerOf(5).Active)
	err = c.signed(action.NewBondExtra(units(50)), stash(6))
	require.Equal(ErrNotStash, errors.Cause(err))

	require.NoError(c.signed(action.NewUnbond(units(40)), controllerOf(5)))
	l := c.ledgerOf(5)
	require.Equal(units(110), l.Active)
	require.Equal(units(150), l.Total)
	require.Len(l.Unlocking, 1)
	require.EqualValues(c.g.Staking.BondingDuration, l.Unlocking[0].Era)

	require.NoError(c.signed(action.NewRebond(units(10)), controllerOf(5)))
	l = c.ledgerOf(5)
	require.Equal(units(120), l.Active)
	require.Equal(units(30), l.Unlocking[0].Value)

	// nothing matured yet
	require.NoError(c.signed(action.NewWithdrawUnbonded(0), controllerOf(5)))
	require.Equal(units(150), c.ledgerOf(5).Total)
	require.Empty(c.eventsOf("Withdrawn"))

	require.NoError(c.p.putCurrentEra(c.sm, 3))
	require.NoError(c.signed(action.NewWithdrawUnbonded(0), controllerOf(5)))
	l = c.ledgerOf(5)
	require.Equal(units(120), l.Total)
	require.Empty(l.Unlocking)
	withdrawn := c.eventsOf("Withdrawn")
	require.Len(withdrawn, 1)
	require.Equal(units(30), withdrawn[0].(*WithdrawnEvent).Amount)

	// withdrawing everything reaps the stash
	require.NoError(c.signed(action.NewUnbond(units(1000)), controllerOf(5)))
	require.NoError(c.p.putCurrentEra(c.sm, 6))
	require.NoError(c.signed(action.NewWithdrawUnbonded(0), controllerOf(5)))
	_, ok, err = c.p.Bonded(c.sm, stash(5))
	require.NoError(err)
	require.False(ok)
	_, ok, err = c.p.Ledger(c.sm, controllerOf(5))
	require.NoError(err)
	require.False(ok)
	require.Len(c.eventsOf("Withdrawn"), 2)

	err = c.signed(action.NewRebond(units(1)), controllerOf(5))
	require.Equal(ErrNotController, errors.Cause(err))
}

func TestProtocol_RebondWithoutChunks(t *testing.T) {
	require := require.New(t)
	c := newTestChain(t)

	err := c.signed(action.NewRebond(units(1)), controllerOf(3))
	require.Equal(ErrNoUnlockChunk, errors.Cause(err))
}

func TestProtocol_SetControllerAndPayee(t *testing.T) {
	require := require.New(t)
	c := newTestChain(t)

	err := c.signed(action.NewSetController(controllerOf(0)), stash(3))
	require.Equal(ErrAlreadyPaired, errors.Cause(err))
	require.NoError(c.signed(action.NewSetController(identityset.Address(25)), stash(3)))
	l, ok, err := c.p.Ledger(c.sm, identityset.Address(25))
	require.NoError(err)
	require.True(ok)
	require.Equal(units(400), l.Active)
	_, ok, err = c.p.Ledger(c.sm, controllerOf(3))
	require.NoError(err)
	require.False(ok)

	require.NoError(c.signed(action.NewSetPayee(action.StashPayee()), identityset.Address(25)))
	dest, err := c.p.payee(c.sm, stash(3))
	require.NoError(err)
	require.Equal(action.PayeeStash, dest.Kind)
	err = c.signed(action.NewSetPayee(action.StashPayee()), controllerOf(3))
	require.Equal(ErrNotController, errors.Cause(err))
}

func TestProtocol_ElectionWindowBlocksCalls(t *testing.T) {
	require := require.New(t)
	c := newTestChain(t)

	require.NoError(c.p.putElectionStatus(c.sm, &ElectionStatus{Open: true, Block: 1}))
	for _, tc := range []struct {
		act    action.Action
		caller address.Address
	}{
		{action.NewBondExtra(units(1)), stash(0)},
		{action.NewUnbond(units(1)), controllerOf(0)},
		{action.NewRebond(units(1)), controllerOf(0)},
		{action.NewWithdrawUnbonded(0), controllerOf(0)},
		{action.NewValidate(0, false), controllerOf(0)},
		{action.NewNominate([]address.Address{stash(0)}), controllerOf(3)},
		{action.NewChill(), controllerOf(0)},
		{action.NewPayoutStakers(stash(0), 0), stash(0)},
	} {
		err := c.signed(tc.act, tc.caller)
		require.Equal(ErrCallNotAllowed, errors.Cause(err), "%T", tc.act)
	}
	// bonding a new stash does not change the snapshot
	c.bond(5, 10)
}

func TestProtocol_ValidateAndNominate(t *testing.T) {
	require := require.New(t)
	c := newTestChain(t)

	c.bond(5, 100)
	err := c.signed(action.NewValidate(perbill.FromPercent(5), false), controllerOf(5))
	require.Equal(ErrStashIdentityNotPermissioned, errors.Cause(err))
	require.NoError(c.governance(action.NewAddPermissionedValidator(identityset.DID(5), nil)))
	require.NoError(c.signed(action.NewValidate(perbill.FromPercent(5), false), controllerOf(5)))
	require.True(c.isValidator(5))
	require.EqualValues(1, c.permissioned(5).RunningCount)

	// updating the preferences does not take another slot
	require.NoError(c.signed(action.NewValidate(perbill.FromPercent(5), true), controllerOf(5)))
	require.EqualValues(1, c.permissioned(5).RunningCount)

	c.bond(6, 100)
	err = c.signed(action.NewNominate([]address.Address{stash(5)}), controllerOf(6))
	require.Equal(ErrBadTarget, errors.Cause(err))
	err = c.signed(action.NewNominate(nil), controllerOf(6))
	require.Equal(ErrEmptyTargets, errors.Cause(err))
	many := make([]address.Address, 17)
	for i := range many {
		many[i] = identityset.Address(i)
	}
	err = c.signed(action.NewNominate(many), controllerOf(6))
	require.Equal(ErrTooManyTargets, errors.Cause(err))

	require.NoError(c.signed(action.NewNominate([]address.Address{stash(0), stash(0), stash(1)}), controllerOf(6)))
	noms, ok, err := c.p.nominations(c.sm, stash(6))
	require.NoError(err)
	require.True(ok)
	require.Equal([]string{stash(0).String(), stash(1).String()}, addrStrings(noms.Targets))
	nominated := c.eventsOf("Nominated")
	require.Len(nominated, 1)
	require.Equal(stash(6).String(), nominated[0].(*NominatedEvent).Stash)

	// a stash without identity cannot nominate
	c.bond(8, 100)
	err = c.signed(action.NewNominate([]address.Address{stash(0)}), controllerOf(8))
	require.Equal(ErrStashIdentityDoesNotExist, errors.Cause(err))

	// a nominator that starts validating stops nominating, and the other way around
	require.NoError(c.governance(action.NewAddPermissionedValidator(identityset.DID(6), nil)))
	require.NoError(c.signed(action.NewValidate(0, false), controllerOf(6)))
	_, ok, err = c.p.nominations(c.sm, stash(6))
	require.NoError(err)
	require.False(ok)
	require.EqualValues(1, c.permissioned(6).RunningCount)
	require.NoError(c.signed(action.NewNominate([]address.Address{stash(0)}), controllerOf(6)))
	require.False(c.isValidator(6))
	require.EqualValues(0, c.permissioned(6).RunningCount)

	require.NoError(c.signed(action.NewChill(), controllerOf(5)))
	require.False(c.isValidator(5))
	require.EqualValues(0, c.permissioned(5).RunningCount)
	require.Len(c.eventsOf("Chilled"), 1)
}

func TestProtocol_PermissionedValidators(t *testing.T) {
	require := require.New(t)
	c := newTestChain(t, func(g *genesis.Genesis) {
		// stash 9 shares the identity of stash 4
		g.Identity.Identities[4].Accounts = append(g.Identity.Identities[4].Accounts, stash(9).String())
	})

	two, one := uint32(2), uint32(1)
	err := c.signed(action.NewAddPermissionedValidator(identityset.DID(4), nil), stash(4))
	require.Equal(protocol.ErrBadOrigin, errors.Cause(err))
	err = c.governance(action.NewAddPermissionedValidator(identityset.DID(4), &two))
	require.Equal(ErrIntendedCountIsExceedingConsensusLimit, errors.Cause(err))
	require.NoError(c.governance(action.NewAddPermissionedValidator(identityset.DID(4), &one)))
	err = c.governance(action.NewAddPermissionedValidator(identityset.DID(4), nil))
	require.Equal(ErrAlreadyExists, errors.Cause(err))
	// identities without a due diligence claim cannot run validators
	err = c.governance(action.NewAddPermissionedValidator(identityset.DID(9), nil))
	require.Equal(ErrInvalidValidatorIdentity, errors.Cause(err))
	require.Len(c.eventsOf("PermissionedIdentityAdded"), 1)

	c.bond(4, 100)
	c.bond(9, 100)
	require.NoError(c.signed(action.NewValidate(0, false), controllerOf(4)))
	err = c.signed(action.NewValidate(0, false), controllerOf(9))
	require.Equal(ErrHitIntendedValidatorCount, errors.Cause(err))

	err = c.governance(action.NewUpdatePermissionedValidatorIntendedCount(identityset.DID(4), 2))
	require.Equal(ErrIntendedCountIsExceedingConsensusLimit, errors.Cause(err))
	require.NoError(c.root(action.NewSetValidatorCount(5)))
	require.NoError(c.governance(action.NewUpdatePermissionedValidatorIntendedCount(identityset.DID(4), 2)))
	require.NoError(c.signed(action.NewValidate(0, false), controllerOf(9)))
	require.EqualValues(2, c.permissioned(4).RunningCount)
	err = c.governance(action.NewUpdatePermissionedValidatorIntendedCount(identityset.DID(7), 2))
	require.Equal(ErrNotExists, errors.Cause(err))

	// governance chills every validator of an identity at once
	err = c.governance(action.NewChillFromGovernance(identityset.DID(4), []address.Address{stash(4), stash(1)}))
	require.Equal(ErrNotStash, errors.Cause(err))
	require.True(c.isValidator(4))
	require.NoError(c.governance(action.NewChillFromGovernance(identityset.DID(4), []address.Address{stash(4), stash(9)})))
	require.False(c.isValidator(4))
	require.False(c.isValidator(9))
	_, ok, err := c.p.PermissionedIdentity(c.sm, identityset.DID(4))
	require.NoError(err)
	require.False(ok)
	err = c.governance(action.NewChillFromGovernance(identityset.DID(4), []address.Address{stash(4)}))
	require.Equal(ErrNotExists, errors.Cause(err))

	err = c.governance(action.NewRemovePermissionedValidator(identityset.DID(7)))
	require.Equal(ErrNotExists, errors.Cause(err))
	require.NoError(c.governance(action.NewRemovePermissionedValidator(identityset.DID(0))))
	// the running validator stays until chilled
	require.True(c.isValidator(0))
}

func TestProtocol_ChillFromGovernanceRequiresValidators(t *testing.T) {
	require := require.New(t)
	c := newTestChain(t)

	c.bond(4, 100)
	require.NoError(c.governance(action.NewAddPermissionedValidator(identityset.DID(4), nil)))
	err := c.governance(action.NewChillFromGovernance(identityset.DID(4), []address.Address{stash(4)}))
	require.Equal(ErrNotExists, errors.Cause(err))
	require.EqualValues(ErrorCode(ErrNotExists), ErrorCode(err))
}

func TestProtocol_AddPermissionedValidatorDefaultCount(t *testing.T) {
	require := require.New(t)
	c := newTestChain(t, func(g *genesis.Genesis) {
		// the default is above the two validators an identity may run
		g.Staking.DefaultIntendedCount = 5
	})

	five := uint32(5)
	for _, tc := range []struct {
		name  string
		did   hash.Hash256
		count *uint32
		err   error
	}{
		{"explicit count over the limit", identityset.DID(4), &five, ErrIntendedCountIsExceedingConsensusLimit},
		{"default count is not capped", identityset.DID(4), nil, nil},
		{"already added", identityset.DID(4), nil, ErrAlreadyExists},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := c.governance(action.NewAddPermissionedValidator(tc.did, tc.count))
			require.Equal(tc.err, errors.Cause(err))
		})
	}
	require.EqualValues(5, c.permissioned(4).IntendedCount)
	require.Len(c.eventsOf("PermissionedIdentityAdded"), 1)
}

func TestProtocol_Governance(t *testing.T) {
	require := require.New(t)
	c := newTestChain(t)

	count := func() uint32 {
		n, err := c.p.ValidatorCount(c.sm)
		require.NoError(err)
		return n
	}
	require.NoError(c.root(action.NewSetValidatorCount(5)))
	require.EqualValues(5, count())
	require.NoError(c.root(action.NewIncreaseValidatorCount(3)))
	require.EqualValues(8, count())
	require.NoError(c.root(action.NewScaleValidatorCount(perbill.FromPercent(50))))
	require.EqualValues(12, count())
	err := c.root(action.NewIncreaseValidatorCount(math.MaxUint32))
	require.Equal(ErrOverflow, errors.Cause(err))

	for _, tc := range []struct {
		act  action.Action
		want Forcing
	}{
		{&action.ForceNewEra{}, ForceNew},
		{&action.ForceNoEras{}, ForceNone},
		{&action.ForceNewEraAlways{}, ForceAlways},
	} {
		require.NoError(c.root(tc.act))
		f, err := c.p.ForceEra(c.sm)
		require.NoError(err)
		require.Equal(tc.want, f)
	}

	err = c.root(action.NewSetHistoryDepth(0, 0))
	require.Equal(ErrIncorrectHistoryDepth, errors.Cause(err))
	require.NoError(c.root(action.NewSetHistoryDepth(10, 0)))
	depth, err := c.p.HistoryDepth(c.sm)
	require.NoError(err)
	require.EqualValues(10, depth)

	require.NoError(c.root(action.NewSetInvulnerables([]address.Address{stash(0)})))
	inv, err := c.p.invulnerables(c.sm)
	require.NoError(err)
	require.Equal([]string{stash(0).String()}, addrStrings(inv))

	require.NoError(c.governance(action.NewChangeSlashingAllowedFor(action.SlashingValidatorAndNominator)))
	s, err := c.p.SlashingSwitch(c.sm)
	require.NoError(err)
	require.True(s.SlashesNominators())
}

func TestProtocol_CommissionCapAndBondThreshold(t *testing.T) {
	require := require.New(t)
	c := newTestChain(t)

	// lowering the cap clamps the running validators
	require.NoError(c.governance(action.NewSetCommissionCap(perbill.FromPercent(10))))
	prefs, ok, err := c.p.validatorPrefs(c.sm, stash(0))
	require.NoError(err)
	require.True(ok)
	require.Equal(perbill.FromPercent(10), prefs.Commission)
	err = c.governance(action.NewSetCommissionCap(perbill.FromPercent(10)))
	require.Equal(ErrNoChange, errors.Cause(err))
	err = c.signed(action.NewValidate(perbill.FromPercent(20), false), controllerOf(0))
	require.Equal(ErrInvalidValidatorCommission, errors.Cause(err))
	require.Len(c.eventsOf("CommissionCapUpdated"), 1)

	require.NoError(c.governance(action.NewSetMinBondThreshold(units(250))))
	err = c.signed(action.NewValidate(0, false), controllerOf(2))
	require.Equal(ErrInsufficientValue, errors.Cause(err))
	err = c.signed(action.NewUnbond(units(100)), controllerOf(0))
	require.Equal(ErrInvalidValidatorUnbondAmount, errors.Cause(err))
	require.NoError(c.signed(action.NewUnbond(units(50)), controllerOf(0)))
	// nominators are not bound by the threshold
	require.NoError(c.signed(action.NewUnbond(units(390)), controllerOf(3)))
}

func TestProtocol_ForceUnstakeAndReap(t *testing.T) {
	require := require.New(t)
	c := newTestChain(t)

	err := c.root(action.NewReapStash(stash(3), 0))
	require.Equal(ErrFundedTarget, errors.Cause(err))
	err = c.root(action.NewReapStash(stash(5), 0))
	require.Equal(ErrNotStash, errors.Cause(err))

	require.NoError(c.root(action.NewForceUnstake(stash(2), 0)))
	_, ok, err := c.p.Bonded(c.sm, stash(2))
	require.NoError(err)
	require.False(ok)
	require.False(c.isValidator(2))
	require.EqualValues(0, c.permissioned(2).RunningCount)

	err = c.root(action.NewCancelDeferredSlash(0, nil))
	require.Equal(ErrEmptyTargets, errors.Cause(err))
	err = c.root(action.NewCancelDeferredSlash(0, []uint32{1, 0}))
	require.Equal(ErrNotSortedAndUnique, errors.Cause(err))
	err = c.root(action.NewCancelDeferredSlash(0, []uint32{0}))
	require.Equal(ErrInvalidSlashIndex, errors.Cause(err))
}

func TestProtocol_ValidateCDDExpiryNominators(t *testing.T) {
	require := require.New(t)
	c := newTestChain(t, func(g *genesis.Genesis) {
		// the claim of the nominator expires one minute after genesis
		g.Identity.Identities[3].CDDExpiry = g.Blockchain.Timestamp + 60
	})

	for _, caller := range []address.Address{controllerOf(5), stash(9)} {
		err := c.signed(action.NewValidateCDDExpiryNominators([]address.Address{stash(3)}), caller)
		require.Equal(ErrCallerIdentityMissing, errors.Cause(err))
	}
	err := c.signed(action.NewValidateCDDExpiryNominators(nil), stash(5))
	require.Equal(ErrEmptyTargets, errors.Cause(err))
	require.NoError(c.signed(action.NewValidateCDDExpiryNominators([]address.Address{stash(3), stash(0)}), stash(5)))
	require.Equal(units(400), c.ledgerOf(3).Active)

	c.stepTo(11)
	require.NoError(c.signed(action.NewValidateCDDExpiryNominators([]address.Address{stash(3), stash(0)}), stash(5)))
	l := c.ledgerOf(3)
	require.Zero(l.Active.Sign())
	require.Len(l.Unlocking, 1)
	_, ok, err := c.p.nominations(c.sm, stash(3))
	require.NoError(err)
	require.False(ok)
	ev := c.eventsOf("InvalidatedNominators")
	require.Len(ev, 2)
	require.Equal([]string{stash(3).String()}, ev[1].(*InvalidatedNominatorsEvent).Nominators)
}
