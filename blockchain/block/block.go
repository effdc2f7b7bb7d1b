// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package block

import (
	"context"
	"time"

	"github.com/iotexproject/iotex-address/address"

	"github.com/iotexproject/iotex-npos/action"
	"github.com/iotexproject/iotex-npos/action/protocol"
)

// Header is the header of a block
type Header struct {
	height    uint64
	timestamp time.Time
	producer  address.Address
}

// Height returns the height of the block
func (h *Header) Height() uint64 { return h.height }

// Timestamp returns the timestamp of the block
func (h *Header) Timestamp() time.Time { return h.timestamp }

// Producer returns the author of the block, nil if the block has none
func (h *Header) Producer() address.Address { return h.producer }

// Block defines the struct of block
type Block struct {
	Header

	Actions []*protocol.Envelope
	// Receipts are filled in once the block is applied, in the order of the actions
	Receipts []*action.Receipt
	// Logs are all the events of the applied block, including the ones of the block hooks
	Logs []*action.Log
}

// Context attaches the block context of the block
func (b *Block) Context(ctx context.Context) context.Context {
	return protocol.WithBlockCtx(ctx, protocol.BlockCtx{
		BlockHeight:    b.height,
		BlockTimeStamp: b.timestamp,
		Producer:       b.producer,
	})
}

// FailedActions returns the number of rejected actions of an applied block
func (b *Block) FailedActions() int {
	n := 0
	for _, r := range b.Receipts {
		if !r.Succeeded() {
			n++
		}
	}
	return n
}
