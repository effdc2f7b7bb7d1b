// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package block

import (
	"time"

	"github.com/iotexproject/iotex-address/address"

	"github.com/iotexproject/iotex-npos/action/protocol"
)

// Builder is used to construct Block.
type Builder struct{ blk Block }

// NewBuilder creates a Builder.
func NewBuilder(height uint64, timestamp time.Time) *Builder {
	return &Builder{
		blk: Block{
			Header: Header{
				height:    height,
				timestamp: timestamp,
			},
		},
	}
}

// SetProducer sets the author of the block which is building.
func (b *Builder) SetProducer(producer address.Address) *Builder {
	b.blk.Header.producer = producer
	return b
}

// AddActions appends the actions to the block which is building.
func (b *Builder) AddActions(envs ...*protocol.Envelope) *Builder {
	b.blk.Actions = append(b.blk.Actions, envs...)
	return b
}

// Build returns the block.
func (b *Builder) Build() *Block {
	blk := b.blk
	blk.Actions = append([]*protocol.Envelope(nil), b.blk.Actions...)
	return &blk
}
