// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package action

import (
	"math/big"

	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"
)

// Errors
var (
	ErrNilAction     = errors.New("action is nil")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrAddress       = errors.New("invalid address")
	ErrEmptyList     = errors.New("empty list")
)

// Action is the extrinsic dispatched to a protocol. The signer and origin travel in the context.
type Action interface {
	SanityCheck() error
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errors.Wrap(ErrInvalidAmount, "negative or nil value")
	}
	return nil
}

func checkAddress(addr address.Address) error {
	if addr == nil {
		return errors.Wrap(ErrAddress, "nil address")
	}
	return nil
}

func copyAmount(amount *big.Int) *big.Int {
	if amount == nil {
		return nil
	}
	return new(big.Int).Set(amount)
}
