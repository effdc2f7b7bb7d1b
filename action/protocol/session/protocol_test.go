// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package session

import (
	"context"
	"fmt"
	"testing"

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

// recorder plans a new set every other session
type recorder struct {
	calls []string
	p     *Protocol
}

func (r *recorder) NewSession(_ context.Context, _ protocol.StateManager, i uint32) ([]address.Address, error) {
	r.calls = append(r.calls, fmt.Sprintf("new %d", i))
	if i%2 == 1 {
		return nil, nil
	}
	return []address.Address{identityset.Address(int(i)), identityset.Address(int(i) + 1)}, nil
}

func (r *recorder) StartSession(_ context.Context, sm protocol.StateManager, i uint32) error {
	r.calls = append(r.calls, fmt.Sprintf("start %d", i))
	if i == 2 {
		_, err := r.p.DisableValidator(sm, identityset.Address(3))
		return err
	}
	return nil
}

func (r *recorder) EndSession(_ context.Context, _ protocol.StateManager, i uint32) error {
	r.calls = append(r.calls, fmt.Sprintf("end %d", i))
	return nil
}

func TestProtocol_Rotation(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	cfg := genesis.Default.Blockchain
	cfg.SessionLength = 5
	p := NewProtocol(cfg)
	rec := &recorder{p: p}
	p.SetManager(rec)

	sdb := factory.NewStateDB(db.NewMemKVStore())
	require.NoError(sdb.Start(ctx))
	sm := sdb.NewWorkingSet()
	require.NoError(p.CreateGenesisStates(ctx, sm))
	require.Equal([]string{"new 0", "new 1", "start 0"}, rec.calls)

	vals, err := p.Validators(sm)
	require.NoError(err)
	require.Equal([]address.Address{identityset.Address(0), identityset.Address(1)}, vals)
	require.EqualValues(10, p.EstimateNextNewSession(7))
	require.EqualValues(10, p.EstimateNextNewSession(5))

	rec.calls = nil
	for h := uint64(1); h <= 10; h++ {
		bctx := protocol.WithBlockCtx(ctx, protocol.BlockCtx{BlockHeight: h})
		require.NoError(p.OnInitialize(bctx, sm))
	}
	require.Equal([]string{"end 0", "start 1", "new 2", "end 1", "start 2", "new 3"}, rec.calls)
	idx, err := p.CurrentIndex(sm)
	require.NoError(err)
	require.EqualValues(2, idx)
	vals, err = p.Validators(sm)
	require.NoError(err)
	require.Equal([]address.Address{identityset.Address(2), identityset.Address(3)}, vals)
	disabled, err := p.DisabledValidators(sm)
	require.NoError(err)
	require.Equal([]uint32{1}, disabled)
	ok, err := p.DisableValidator(sm, identityset.Address(3))
	require.NoError(err)
	require.False(ok)
	ok, err = p.DisableValidator(sm, identityset.Address(9))
	require.NoError(err)
	require.False(ok)
	ok, err = p.DisableValidator(sm, identityset.Address(2))
	require.NoError(err)
	require.True(ok)
	disabled, err = p.DisabledValidators(sm)
	require.NoError(err)
	require.Equal([]uint32{0, 1}, disabled)

	// history
	old, err := p.HistoricalValidators(sm, 1)
	require.NoError(err)
	require.Equal([]address.Address{identityset.Address(0), identityset.Address(1)}, old)
	require.NoError(p.PruneHistoricalUpTo(sm, 2))
	_, err = p.HistoricalValidators(sm, 1)
	require.Error(err)
	_, err = p.HistoricalValidators(sm, 2)
	require.NoError(err)
}

func TestProtocol_SetKeys(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	p := NewProtocol(genesis.Default.Blockchain)
	p.SetManager(&recorder{p: p})
	sdb := factory.NewStateDB(db.NewMemKVStore())
	require.NoError(sdb.Start(ctx))
	sm := sdb.NewWorkingSet()
	require.NoError(p.CreateGenesisStates(ctx, sm))

	ctx = protocol.WithBlockCtx(ctx, protocol.BlockCtx{BlockHeight: 1})
	sk := action.NewSetKeys([]byte{1, 2, 3})
	require.NoError(p.Validate(ctx, sk, sm))
	_, err := p.Handle(protocol.WithActionCtx(ctx, protocol.ActionCtx{Origin: protocol.OriginNone}), sk, sm)
	require.Equal(protocol.ErrBadOrigin, errors.Cause(err))
	r, err := p.Handle(protocol.WithActionCtx(ctx, protocol.ActionCtx{
		Caller: identityset.Address(1),
		Origin: protocol.OriginSigned,
	}), sk, sm)
	require.NoError(err)
	require.True(r.Succeeded())

	queued, keys, err := p.QueuedKeys(sm)
	require.NoError(err)
	require.Len(queued, 2)
	require.Nil(keys[0])
	require.Equal([]byte{1, 2, 3}, keys[1])
}
