// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package action

import (
	"math/big"
	"testing"

	"github.com/iotexproject/go-pkgs/hash"
	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/iotexproject/iotex-npos/election"
	"github.com/iotexproject/iotex-npos/pkg/perbill"
	"github.com/iotexproject/iotex-npos/test/identityset"
)

func TestSanityCheck(t *testing.T) {
	var (
		addr = identityset.Address(1)
		did  = identityset.DID(1)
		neg  = big.NewInt(-1)
		one  = uint32(1)
	)
	for _, v := range []struct {
		name string
		act  Action
		err  error
	}{
		{"bond", NewBond(addr, big.NewInt(10), StakedPayee()), nil},
		{"bond nil controller", NewBond(nil, big.NewInt(10), StakedPayee()), ErrAddress},
		{"bond negative", NewBond(addr, neg, StakedPayee()), ErrInvalidAmount},
		{"bond bad payee", NewBond(addr, big.NewInt(1), AccountPayee(nil)), ErrAddress},
		{"bond extra", NewBondExtra(big.NewInt(0)), nil},
		{"unbond nil", NewUnbond(nil), ErrInvalidAmount},
		{"rebond negative", NewRebond(neg), ErrInvalidAmount},
		{"set controller", NewSetController(nil), ErrAddress},
		{"validate", NewValidate(perbill.One(), false), nil},
		{"validate above one", NewValidate(perbill.Perbill(perbill.Accuracy+1), false), errors.New("")},
		{"nominate nil target", NewNominate([]address.Address{addr, nil}), ErrAddress},
		{"payout", NewPayoutStakers(addr, 3), nil},
		{"min bond", NewSetMinBondThreshold(neg), ErrInvalidAmount},
		{"add permissioned", NewAddPermissionedValidator(did, &one), nil},
		{"add permissioned zero", NewAddPermissionedValidator(hash.ZeroHash256, nil), errors.New("")},
		{"chill from governance", NewChillFromGovernance(did, []address.Address{nil}), ErrAddress},
		{"solution without winners", NewSubmitElectionSolution(nil, election.Compact{}, election.NewScore(1, 1, 1), 1, election.Size{}), ErrEmptyList},
		{"solution without score", NewSubmitElectionSolution([]uint16{0}, election.Compact{}, election.Score{}, 1, election.Size{}), errors.New("")},
		{"unsigned solution", NewSubmitElectionSolutionUnsigned([]uint16{0}, election.Compact{}, election.NewScore(1, 1, 1), 1, election.Size{}), nil},
		{"offence mismatch", NewReportOffence([]OffenceDetails{{Offender: addr}}, nil, 0), errors.New("")},
		{"offence empty", NewReportOffence(nil, nil, 0), ErrEmptyList},
		{"offence", NewReportOffence([]OffenceDetails{{Offender: addr}}, []perbill.Perbill{perbill.FromPercent(10)}, 0), nil},
		{"transfer", NewTransfer(addr, big.NewInt(5)), nil},
		{"register did without accounts", NewRegisterDID(did, nil), ErrEmptyList},
		{"set keys", NewSetKeys(nil), errors.New("")},
	} {
		t.Run(v.name, func(t *testing.T) {
			err := v.act.SanityCheck()
			if v.err == nil {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			switch errors.Cause(v.err) {
			case ErrAddress, ErrInvalidAmount, ErrEmptyList:
				require.Equal(t, v.err, errors.Cause(err))
			}
		})
	}
}

func TestActionCopiesInput(t *testing.T) {
	r := require.New(t)
	amount := big.NewInt(100)
	b := NewBond(identityset.Address(2), amount, StashPayee())
	amount.SetInt64(1)
	r.Equal(int64(100), b.Value().Int64())

	targets := []address.Address{identityset.Address(3)}
	n := NewNominate(targets)
	targets[0] = identityset.Address(4)
	r.Equal(identityset.Address(3).String(), n.Targets()[0].String())

	count := uint32(2)
	a := NewAddPermissionedValidator(identityset.DID(0), &count)
	count = 5
	c, ok := a.IntendedCount()
	r.True(ok)
	r.Equal(uint32(2), c)
	_, ok = NewAddPermissionedValidator(identityset.DID(0), nil).IntendedCount()
	r.False(ok)
}

func TestRewardDestination(t *testing.T) {
	r := require.New(t)
	r.Equal("Staked", StakedPayee().String())
	r.Equal("Stash", StashPayee().String())
	r.Equal("Controller", ControllerPayee().String())
	r.Equal("None", NonePayee().String())
	addr := identityset.Address(5)
	r.Equal("Account("+addr.String()+")", AccountPayee(addr).String())
	r.Error(RewardDestination{Kind: PayeeKind(9)}.SanityCheck())
}

func TestSlashingSwitch(t *testing.T) {
	r := require.New(t)
	for _, s := range []SlashingSwitch{SlashingNone, SlashingValidator, SlashingValidatorAndNominator} {
		parsed, err := ParseSlashingSwitch(s.String())
		r.NoError(err)
		r.Equal(s, parsed)
	}
	_, err := ParseSlashingSwitch("everyone")
	r.Error(err)
	r.False(SlashingNone.SlashesNominators())
	r.False(SlashingValidator.SlashesNominators())
	r.True(SlashingValidatorAndNominator.SlashesNominators())
	r.Error(NewChangeSlashingAllowedFor(SlashingSwitch(7)).SanityCheck())
}

func TestReceipt(t *testing.T) {
	r := require.New(t)
	receipt := &Receipt{Status: SuccessReceiptStatus, BlockHeight: 3}
	r.True(receipt.Succeeded())
	receipt.AddLogs(&Log{Address: "staking", BlockHeight: 3}, &Log{Address: "staking", BlockHeight: 3})
	r.Len(receipt.Logs(), 2)
	r.False((&Receipt{Status: FailureReceiptStatus}).Succeeded())
}
