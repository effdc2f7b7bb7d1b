// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package block

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iotexproject/iotex-npos/action"
	"github.com/iotexproject/iotex-npos/action/protocol"
	"github.com/iotexproject/iotex-npos/test/identityset"
)

func TestBuilder(t *testing.T) {
	require := require.New(t)
	ts := time.Unix(1546329600, 0)
	tsf := protocol.NewSignedEnvelope(action.NewTransfer(identityset.Address(1), big.NewInt(5)), identityset.Address(0))
	b := NewBuilder(7, ts).SetProducer(identityset.Address(2)).AddActions(tsf)
	blk := b.Build()
	require.EqualValues(7, blk.Height())
	require.Equal(ts, blk.Timestamp())
	require.Equal(identityset.Address(2), blk.Producer())
	require.Len(blk.Actions, 1)

	// later additions to the builder do not change a built block
	b.AddActions(tsf)
	require.Len(blk.Actions, 1)
	require.Len(b.Build().Actions, 2)

	bctx := protocol.MustGetBlockCtx(blk.Context(context.Background()))
	require.EqualValues(7, bctx.BlockHeight)
	require.Equal(ts, bctx.BlockTimeStamp)
	require.Equal(identityset.Address(2), bctx.Producer)

	blk.Receipts = []*action.Receipt{
		{Status: action.SuccessReceiptStatus},
		{Status: action.FailureReceiptStatus, ErrorCode: 3},
	}
	require.Equal(1, blk.FailedActions())
}
