// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package slashing

import (
	"context"
	"math/big"
	"testing"

	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/iotexproject/iotex-npos/action/protocol"
	"github.com/iotexproject/iotex-npos/db"
	"github.com/iotexproject/iotex-npos/pkg/perbill"
	"github.com/iotexproject/iotex-npos/state/factory"
	"github.com/iotexproject/iotex-npos/test/identityset"
)

type fakeHost struct {
	chilled   []string
	newEras   int
	offenders map[string]bool
	// short makes DoSlash take only part of the value from the balance
	short    map[string]*big.Int
	deposits map[string]*big.Int
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		offenders: map[string]bool{},
		short:     map[string]*big.Int{},
		deposits:  map[string]*big.Int{},
	}
}

func (h *fakeHost) ChillStash(_ protocol.StateManager, stash address.Address) error {
	h.chilled = append(h.chilled, stash.String())
	return nil
}

func (h *fakeHost) EnsureNewEra(protocol.StateManager) error {
	h.newEras++
	return nil
}

func (h *fakeHost) AddOffendingValidator(_ context.Context, _ protocol.StateManager, stash address.Address, disable bool) error {
	h.offenders[stash.String()] = h.offenders[stash.String()] || disable
	return nil
}

func (h *fakeHost) DoSlash(_ context.Context, _ protocol.StateManager, stash address.Address, value *big.Int) (*big.Int, *big.Int, error) {
	if s, ok := h.short[stash.String()]; ok {
		return value, s, nil
	}
	return value, value, nil
}

func (h *fakeHost) DepositCreating(_ protocol.StateManager, who address.Address, amount *big.Int) error {
	h.deposits[who.String()] = amount
	return nil
}

func newWorkingSet(t *testing.T) protocol.StateManager {
	sdb := factory.NewStateDB(db.NewMemKVStore())
	require.NoError(t, sdb.Start(context.Background()))
	return sdb.NewWorkingSet()
}

func TestComputeSlash(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	sm := newWorkingSet(t)
	host := newFakeHost()
	slasher := NewSlasher(host)

	validator, nominator := identityset.Address(11), identityset.Address(101)
	exposure := &Exposure{
		Own:    big.NewInt(1000),
		Total:  big.NewInt(1500),
		Others: []Individual{{Who: nominator, Value: big.NewInt(500)}},
	}
	params := func(slash perbill.Perbill) *Params {
		return &Params{
			Stash:            validator,
			Slash:            slash,
			Exposure:         exposure,
			SlashEra:         1,
			Now:              1,
			RewardProportion: perbill.FromPercent(10),
		}
	}

	u, err := slasher.ComputeSlash(ctx, sm, params(perbill.FromPercent(10)))
	require.NoError(err)
	require.NotNil(u)
	require.Equal(big.NewInt(100), u.Own)
	require.Len(u.Others, 1)
	require.Equal(big.NewInt(50), u.Others[0].Value)
	// 5 for the validator span, 2 for the nominator span
	require.Equal(big.NewInt(7), u.Payout)
	require.Equal([]string{validator.String()}, host.chilled)
	require.Equal(1, host.newEras)
	require.True(host.offenders[validator.String()])

	spans, ok, err := SpansOf(sm, validator)
	require.NoError(err)
	require.True(ok)
	require.EqualValues(1, spans.SpanIndex)
	require.EqualValues(2, spans.LastStart)
	require.EqualValues(1, spans.LastNonzeroSlash)
	last, err := LastNonzeroSlash(sm, nominator)
	require.NoError(err)
	require.EqualValues(1, last)

	// a smaller slash in the same era does nothing
	u, err = slasher.ComputeSlash(ctx, sm, params(perbill.FromPercent(5)))
	require.NoError(err)
	require.Nil(u)

	// a larger one only slashes the difference, without chilling again since the span is over
	u, err = slasher.ComputeSlash(ctx, sm, params(perbill.FromPercent(20)))
	require.NoError(err)
	require.NotNil(u)
	require.Equal(big.NewInt(100), u.Own)
	require.Equal(big.NewInt(50), u.Others[0].Value)
	require.Equal(big.NewInt(11), u.Payout)
	require.Len(host.chilled, 1)
	require.Equal(1, host.newEras)

	rec, err := SpanRecordOf(sm, validator, 0)
	require.NoError(err)
	require.Equal(big.NewInt(200), rec.Slashed)
	require.Equal(big.NewInt(12), rec.PaidOut)
}

func TestComputeSlash_Zero(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	sm := newWorkingSet(t)
	host := newFakeHost()
	slasher := NewSlasher(host)

	stash := identityset.Address(21)
	u, err := slasher.ComputeSlash(ctx, sm, &Params{
		Stash:    stash,
		Slash:    perbill.Zero,
		Exposure: &Exposure{Own: big.NewInt(1000), Total: big.NewInt(1000)},
		SlashEra: 3,
		Now:      3,
	})
	require.NoError(err)
	require.Nil(u)
	// deselected without being disabled or forcing an era
	require.Equal([]string{stash.String()}, host.chilled)
	require.Zero(host.newEras)
	disabled, offending := host.offenders[stash.String()]
	require.True(offending)
	require.False(disabled)

	// an old offence after the span ended does not chill again
	_, err = slasher.ComputeSlash(ctx, sm, &Params{
		Stash:    stash,
		Exposure: &Exposure{Own: big.NewInt(1000), Total: big.NewInt(1000)},
		SlashEra: 3,
		Now:      4,
	})
	require.NoError(err)
	require.Len(host.chilled, 1)
}

func TestApplySlash(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	reporters := []address.Address{identityset.Address(1), identityset.Address(2)}
	validator, nominator := identityset.Address(11), identityset.Address(101)
	unapplied := func() *UnappliedSlash {
		return &UnappliedSlash{
			Validator: validator,
			Own:       big.NewInt(100),
			Others:    []Individual{{Who: nominator, Value: big.NewInt(50)}},
			Reporters: reporters,
			Payout:    big.NewInt(7),
		}
	}

	t.Run("pays reporters", func(t *testing.T) {
		host := newFakeHost()
		require.NoError(NewSlasher(host).ApplySlash(ctx, newWorkingSet(t), unapplied()))
		require.Len(host.deposits, 2)
		for _, r := range reporters {
			require.Equal(big.NewInt(3), host.deposits[r.String()])
		}
	})

	t.Run("missing balance reduces payout", func(t *testing.T) {
		host := newFakeHost()
		host.short[validator.String()] = big.NewInt(60)
		require.NoError(NewSlasher(host).ApplySlash(ctx, newWorkingSet(t), unapplied()))
		require.Empty(host.deposits)
	})

	t.Run("no reporters burns", func(t *testing.T) {
		host := newFakeHost()
		u := unapplied()
		u.Reporters = nil
		require.NoError(NewSlasher(host).ApplySlash(ctx, newWorkingSet(t), u))
		require.Empty(host.deposits)
	})
}

func TestClearMetadata(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	sm := newWorkingSet(t)
	slasher := NewSlasher(newFakeHost())
	validator, nominator := identityset.Address(11), identityset.Address(101)

	for era := uint32(1); era <= 2; era++ {
		_, err := slasher.ComputeSlash(ctx, sm, &Params{
			Stash: validator,
			Slash: perbill.FromPercent(10),
			Exposure: &Exposure{
				Own:    big.NewInt(1000),
				Total:  big.NewInt(1500),
				Others: []Individual{{Who: nominator, Value: big.NewInt(500)}},
			},
			SlashEra: era,
			Now:      era,
		})
		require.NoError(err)
	}

	require.NoError(ClearEraMetadata(sm, 1))
	ok, err := getState(sm, &validatorSlash{}, eraKey(_validatorSlashTag, 1, validator))
	require.NoError(err)
	require.False(ok)
	ok, err = getState(sm, &nominatorSlash{}, eraKey(_nominatorSlashTag, 1, nominator))
	require.NoError(err)
	require.False(ok)
	ok, err = getState(sm, &validatorSlash{}, eraKey(_validatorSlashTag, 2, validator))
	require.NoError(err)
	require.True(ok)

	spans, ok, err := SpansOf(sm, validator)
	require.NoError(err)
	require.True(ok)
	require.EqualValues(3, spans.Count())
	require.Equal(ErrIncorrectSlashingSpans, errors.Cause(ClearStashMetadata(sm, validator, 2)))
	require.NoError(ClearStashMetadata(sm, validator, 3))
	_, ok, err = SpansOf(sm, validator)
	require.NoError(err)
	require.False(ok)
	rec, err := SpanRecordOf(sm, validator, 0)
	require.NoError(err)
	require.Zero(rec.Slashed.Sign())

	// never slashed
	require.NoError(ClearStashMetadata(sm, identityset.Address(30), 0))
}
