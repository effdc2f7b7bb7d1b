// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package actpool

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/facebookgo/clock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/iotexproject/iotex-npos/action"
	"github.com/iotexproject/iotex-npos/action/protocol"
	"github.com/iotexproject/iotex-npos/db"
	"github.com/iotexproject/iotex-npos/election"
	"github.com/iotexproject/iotex-npos/state/factory"
	"github.com/iotexproject/iotex-npos/test/identityset"
)

var errRejected = errors.New("rejected")

type validatorFunc func(context.Context, action.Action, protocol.StateReader) error

func (f validatorFunc) Validate(ctx context.Context, act action.Action, sr protocol.StateReader) error {
	return f(ctx, act, sr)
}

func newTestPool(t *testing.T, cfg Config, opts ...Option) ActPool {
	sdb := factory.NewStateDB(db.NewMemKVStore())
	require.NoError(t, sdb.Start(context.Background()))
	ap, err := NewActPool(sdb, cfg, opts...)
	require.NoError(t, err)
	return ap
}

func transfer(n int64) action.Action {
	return action.NewTransfer(identityset.Address(9), big.NewInt(n))
}

func TestActPool_Add(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	cfg := DefaultConfig
	cfg.MaxNumActsPerPool = 4
	cfg.MaxNumActsPerAcct = 2
	cfg.BlackList = []string{identityset.Address(3).String()}
	ap := newTestPool(t, cfg)

	var origins []protocol.Origin
	ap.AddActionValidators(validatorFunc(func(ctx context.Context, act action.Action, _ protocol.StateReader) error {
		origins = append(origins, protocol.MustGetActionCtx(ctx).Origin)
		if tr, ok := act.(*action.Transfer); ok && tr.Amount().Int64() == 0 {
			return errRejected
		}
		return nil
	}))

	first := protocol.NewSignedEnvelope(transfer(1), identityset.Address(0))
	require.NoError(ap.Add(ctx, first))
	require.NoError(ap.Add(ctx, protocol.NewSignedEnvelope(transfer(2), identityset.Address(0))))
	err := ap.Add(ctx, protocol.NewSignedEnvelope(transfer(3), identityset.Address(0)))
	require.Equal(ErrAccountOverflow, errors.Cause(err))
	err = ap.Add(ctx, protocol.NewSignedEnvelope(transfer(0), identityset.Address(1)))
	require.Equal(errRejected, errors.Cause(err))
	err = ap.Add(ctx, protocol.NewSignedEnvelope(transfer(1), identityset.Address(3)))
	require.Equal(action.ErrAddress, errors.Cause(err))
	err = ap.Add(ctx, &protocol.Envelope{Action: transfer(1)})
	require.Equal(protocol.ErrBadOrigin, errors.Cause(err))

	root := protocol.NewEnvelope(&action.ForceNewEra{}, protocol.OriginRoot)
	require.NoError(ap.Add(ctx, root))
	require.EqualValues(3, ap.GetSize())
	require.Contains(origins, protocol.OriginRoot)

	pending := ap.PendingActions()
	require.Len(pending, 3)
	require.Equal(first, pending[0])
	require.Equal(root, pending[2])

	require.NoError(ap.Add(ctx, protocol.NewSignedEnvelope(transfer(4), identityset.Address(2))))
	err = ap.Add(ctx, protocol.NewSignedEnvelope(transfer(5), identityset.Address(4)))
	require.Equal(ErrActPoolOverflow, errors.Cause(err))

	ap.ReceiveBlock(pending[:2])
	require.EqualValues(2, ap.GetSize())
	require.Equal(root, ap.PendingActions()[0])
	ap.Reset()
	require.Zero(ap.GetSize())
	require.EqualValues(4, ap.GetCapacity())
}

func TestActPool_UnsignedReplaced(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	ap := newTestPool(t, DefaultConfig)

	solution := func(era uint32) *protocol.Envelope {
		act := action.NewSubmitElectionSolutionUnsigned(
			[]uint16{0}, election.Compact{}, election.NewScore(1, 1, 1), era, election.Size{Validators: 1, Nominators: 1})
		return protocol.NewEnvelope(act, protocol.OriginNone)
	}
	require.NoError(ap.Add(ctx, solution(1)))
	second := solution(2)
	require.NoError(ap.Add(ctx, second))
	pending := ap.PendingActions()
	require.Len(pending, 1)
	require.Equal(second, pending[0])
}

func TestActPool_Expiry(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	ck := clock.NewMock()
	cfg := DefaultConfig
	cfg.ActionExpiry = time.Minute
	ap := newTestPool(t, cfg, WithClock(ck))

	require.NoError(ap.Add(ctx, protocol.NewSignedEnvelope(transfer(1), identityset.Address(0))))
	ck.Add(30 * time.Second)
	require.NoError(ap.Add(ctx, protocol.NewSignedEnvelope(transfer(2), identityset.Address(1))))
	ck.Add(45 * time.Second)
	pending := ap.PendingActions()
	require.Len(pending, 1)
	require.Equal(identityset.Address(1).String(), pending[0].Caller.String())
	require.EqualValues(1, ap.GetSize())
}
