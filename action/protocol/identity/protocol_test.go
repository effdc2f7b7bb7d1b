// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package identity

import (
	"context"
	"testing"
	"time"

	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/iotexproject/iotex-npos/action"
	"github.com/iotexproject/iotex-npos/action/protocol"
	"github.com/iotexproject/iotex-npos/blockchain/genesis"
	"github.com/iotexproject/iotex-npos/db"
	"github.com/iotexproject/iotex-npos/state/factory"
	"github.com/iotexproject/iotex-npos/test/identityset"
)

func TestProtocol(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	cfg := genesis.Identity{
		Identities: []genesis.GenesisIdentity{
			{Accounts: []string{identityset.Address(0).String(), identityset.Address(10).String()}, CDD: true},
			{Accounts: []string{identityset.Address(1).String()}, CDD: true, CDDExpiry: 2000},
			{Accounts: []string{identityset.Address(2).String()}},
		},
	}
	p := NewProtocol(cfg)
	sdb := factory.NewStateDB(db.NewMemKVStore())
	require.NoError(sdb.Start(ctx))
	sm := sdb.NewWorkingSet()
	require.NoError(p.CreateGenesisStates(ctx, sm))

	did, ok, err := p.GetIdentity(sm, identityset.Address(10))
	require.NoError(err)
	require.True(ok)
	require.Equal(identityset.DID(0), did)
	_, ok, err = p.GetIdentity(sm, identityset.Address(3))
	require.NoError(err)
	require.False(ok)

	now := time.Unix(1000, 0)
	for _, c := range []struct {
		idx   int
		at    time.Time
		valid bool
	}{
		{0, now, true},
		{1, now, true},
		{1, time.Unix(2000, 0), false},
		{2, now, false},
		{3, now, false},
	} {
		valid, err := p.HasValidCDD(sm, identityset.DID(c.idx), c.at)
		require.NoError(err)
		require.Equal(c.valid, valid, "identity %d", c.idx)
	}

	t.Run("handlers", func(t *testing.T) {
		el := &protocol.EventLog{}
		hctx := protocol.WithEventLog(ctx, el)
		hctx = protocol.WithBlockCtx(hctx, protocol.BlockCtx{BlockHeight: 1, BlockTimeStamp: now})
		signed := protocol.WithActionCtx(hctx, protocol.ActionCtx{Caller: identityset.Address(3), Origin: protocol.OriginSigned})
		provider := protocol.WithActionCtx(hctx, protocol.ActionCtx{Origin: protocol.OriginCDDProvider})

		reg := action.NewRegisterDID(identityset.DID(3), []address.Address{identityset.Address(3)})
		require.NoError(p.Validate(provider, reg, sm))
		_, err := p.Handle(signed, reg, sm)
		require.Equal(protocol.ErrBadOrigin, errors.Cause(err))
		r, err := p.Handle(provider, reg, sm)
		require.NoError(err)
		require.True(r.Succeeded())
		_, err = p.Handle(provider, reg, sm)
		require.Equal(ErrIdentityExists, errors.Cause(err))
		_, err = p.Handle(provider, action.NewRegisterDID(identityset.DID(4), []address.Address{identityset.Address(3)}), sm)
		require.Equal(ErrAccountLinked, errors.Cause(err))

		_, err = p.Handle(provider, action.NewAddCDDClaim(identityset.DID(5), time.Time{}), sm)
		require.Equal(ErrIdentityNotExist, errors.Cause(err))
		_, err = p.Handle(provider, action.NewAddCDDClaim(identityset.DID(3), time.Time{}), sm)
		require.NoError(err)
		valid, err := p.HasValidCDD(sm, identityset.DID(3), now)
		require.NoError(err)
		require.True(valid)

		_, err = p.Handle(provider, action.NewRevokeCDDClaim(identityset.DID(3)), sm)
		require.NoError(err)
		valid, err = p.HasValidCDD(sm, identityset.DID(3), now)
		require.NoError(err)
		require.False(valid)
		require.Equal(4, el.Len())

		out, err := p.ReadState(hctx, sm, []byte("Identity"), []byte(identityset.Address(3).String()))
		require.NoError(err)
		require.Len(out, 64)
	})
}
