// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package staking

import (
	"math/big"
	"time"

	"github.com/iotexproject/go-pkgs/hash"
	"github.com/iotexproject/iotex-address/address"

	"github.com/iotexproject/iotex-npos/action/protocol"
)

//go:generate mockgen -destination=../../../test/mock/mock_staking/mock_collaborators.go -package=mock_staking . Currency,Identity,Session

type (
	// Currency is the balance ledger stake is locked in
	Currency interface {
		FreeBalance(protocol.StateReader, address.Address) (*big.Int, error)
		TotalBalance(protocol.StateReader, address.Address) (*big.Int, error)
		TotalIssuance(protocol.StateReader) (*big.Int, error)
		// MinimumBalance is the existential deposit
		MinimumBalance() *big.Int
		Transfer(protocol.StateManager, address.Address, address.Address, *big.Int) error
		Reserve(protocol.StateManager, address.Address, *big.Int) error
		// SetLock locks the amount of the account for staking, replacing the previous lock
		SetLock(protocol.StateManager, address.Address, *big.Int) error
		RemoveLock(protocol.StateManager, address.Address) error
		// Slash takes up to the amount from the account and returns what was actually taken
		Slash(protocol.StateManager, address.Address, *big.Int) (*big.Int, error)
		DepositIntoExisting(protocol.StateManager, address.Address, *big.Int) error
		DepositCreating(protocol.StateManager, address.Address, *big.Int) error
		// Issue mints the amount into the treasury
		Issue(protocol.StateManager, *big.Int) error
	}

	// Identity resolves the decentralized identity of accounts and their due diligence claims
	Identity interface {
		GetIdentity(protocol.StateReader, address.Address) (hash.Hash256, bool, error)
		HasValidCDD(protocol.StateReader, hash.Hash256, time.Time) (bool, error)
	}

	// Session is the session rotation driving eras
	Session interface {
		Validators(protocol.StateReader) ([]address.Address, error)
		DisableValidator(protocol.StateManager, address.Address) (bool, error)
		PruneHistoricalUpTo(protocol.StateManager, uint32) error
		CurrentIndex(protocol.StateReader) (uint32, error)
		// EstimateNextNewSession predicts the block the next session starts at
		EstimateNextNewSession(uint64) uint64
	}
)
