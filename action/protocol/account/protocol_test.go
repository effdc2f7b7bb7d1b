// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package account

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/iotexproject/iotex-npos/action"
	"github.com/iotexproject/iotex-npos/action/protocol"
	"github.com/iotexproject/iotex-npos/blockchain/genesis"
	"github.com/iotexproject/iotex-npos/db"
	"github.com/iotexproject/iotex-npos/state/factory"
	"github.com/iotexproject/iotex-npos/test/identityset"
)

func newTestProtocol(t *testing.T) (*Protocol, protocol.StateManager) {
	require := require.New(t)
	cfg := genesis.Default.Account
	cfg.ExistentialDepositStr = "10"
	cfg.InitBalanceMap = map[string]string{
		identityset.Address(0).String(): "1000",
		identityset.Address(1).String(): "500",
	}
	p := NewProtocol(cfg)
	sdb := factory.NewStateDB(db.NewMemKVStore())
	require.NoError(sdb.Start(context.Background()))
	ws := sdb.NewWorkingSet()
	require.NoError(p.CreateGenesisStates(context.Background(), ws))
	return p, ws
}

func TestProtocol_Genesis(t *testing.T) {
	require := require.New(t)
	p, sm := newTestProtocol(t)

	free, err := p.FreeBalance(sm, identityset.Address(0))
	require.NoError(err)
	require.Equal(big.NewInt(1000), free)
	total, err := p.TotalIssuance(sm)
	require.NoError(err)
	require.Equal(big.NewInt(1500), total)
	free, err = p.FreeBalance(sm, identityset.Address(5))
	require.NoError(err)
	require.Zero(free.Sign())
	require.Equal(big.NewInt(10), p.MinimumBalance())
}

func TestProtocol_Transfer(t *testing.T) {
	require := require.New(t)
	p, sm := newTestProtocol(t)
	a0, a1, a2 := identityset.Address(0), identityset.Address(1), identityset.Address(2)

	// new account below the existential deposit
	require.Equal(ErrExistentialDeposit, errors.Cause(p.Transfer(sm, a0, a2, big.NewInt(9))))
	require.NoError(p.Transfer(sm, a0, a2, big.NewInt(10)))
	require.NoError(p.Transfer(sm, a0, a1, big.NewInt(1)))
	require.Equal(ErrNotEnoughBalance, errors.Cause(p.Transfer(sm, a0, a1, big.NewInt(1000))))

	// lock restricts transfers
	require.NoError(p.SetLock(sm, a1, big.NewInt(400)))
	require.Equal(ErrNotEnoughBalance, errors.Cause(p.Transfer(sm, a1, a0, big.NewInt(102))))
	require.NoError(p.Transfer(sm, a1, a0, big.NewInt(101)))
	require.NoError(p.RemoveLock(sm, a1))
	require.NoError(p.Transfer(sm, a1, a0, big.NewInt(300)))

	// sender falling below the existential deposit is reaped and the dust burned
	require.NoError(p.Transfer(sm, a2, a0, big.NewInt(5)))
	free, err := p.FreeBalance(sm, a2)
	require.NoError(err)
	require.Zero(free.Sign())
	total, err := p.TotalIssuance(sm)
	require.NoError(err)
	require.Equal(big.NewInt(1495), total)
}

func TestProtocol_SlashAndDeposit(t *testing.T) {
	require := require.New(t)
	p, sm := newTestProtocol(t)
	a0, a3 := identityset.Address(0), identityset.Address(3)

	require.NoError(p.SetLock(sm, a0, big.NewInt(1000)))
	slashed, err := p.Slash(sm, a0, big.NewInt(100))
	require.NoError(err)
	require.Equal(big.NewInt(100), slashed)
	total, err := p.TotalIssuance(sm)
	require.NoError(err)
	require.Equal(big.NewInt(1400), total)

	slashed, err = p.Slash(sm, a0, big.NewInt(5000))
	require.NoError(err)
	require.Equal(big.NewInt(900), slashed)

	require.Equal(ErrDeadAccount, errors.Cause(p.DepositIntoExisting(sm, a3, big.NewInt(50))))
	require.NoError(p.DepositCreating(sm, a3, big.NewInt(5)))
	free, err := p.FreeBalance(sm, a3)
	require.NoError(err)
	require.Zero(free.Sign())
	require.NoError(p.DepositCreating(sm, a3, big.NewInt(50)))
	require.NoError(p.DepositIntoExisting(sm, a3, big.NewInt(50)))
	free, err = p.FreeBalance(sm, a3)
	require.NoError(err)
	require.Equal(big.NewInt(100), free)

	require.NoError(p.Issue(sm, big.NewInt(77)))
	free, err = p.FreeBalance(sm, p.Treasury())
	require.NoError(err)
	require.Equal(big.NewInt(77), free)
	total, err = p.TotalIssuance(sm)
	require.NoError(err)
	require.Equal(big.NewInt(500+100+77), total)
}

func TestProtocol_HandleTransfer(t *testing.T) {
	require := require.New(t)
	p, sm := newTestProtocol(t)
	el := &protocol.EventLog{}
	ctx := protocol.WithEventLog(context.Background(), el)
	ctx = protocol.WithBlockCtx(ctx, protocol.BlockCtx{BlockHeight: 3, BlockTimeStamp: time.Unix(1000, 0)})

	tsf := action.NewTransfer(identityset.Address(4), big.NewInt(20))
	require.NoError(p.Validate(ctx, tsf, sm))

	// unsigned transfers are rejected
	_, err := p.Handle(protocol.WithActionCtx(ctx, protocol.ActionCtx{Origin: protocol.OriginRoot}), tsf, sm)
	require.Equal(protocol.ErrBadOrigin, errors.Cause(err))

	signed := protocol.WithActionCtx(ctx, protocol.ActionCtx{Caller: identityset.Address(0), Origin: protocol.OriginSigned})
	r, err := p.Handle(signed, tsf, sm)
	require.NoError(err)
	require.True(r.Succeeded())
	require.EqualValues(3, r.BlockHeight)
	require.Equal(1, el.Len())
	ev, ok := el.Logs()[0].Event.(*TransferEvent)
	require.True(ok)
	require.Equal(identityset.Address(4).String(), ev.To)

	// not an account action
	r, err = p.Handle(signed, action.NewChill(), sm)
	require.NoError(err)
	require.Nil(r)

	out, err := p.ReadState(ctx, sm, []byte("Balance"), []byte(identityset.Address(4).String()))
	require.NoError(err)
	require.Equal("20", string(out))
	_, err = p.ReadState(ctx, sm, []byte("Unknown"))
	require.Equal(protocol.ErrUnimplemented, errors.Cause(err))
}
