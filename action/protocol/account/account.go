// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package account

import (
	"math/big"

	"github.com/pkg/errors"
)

var (
	// ErrNotEnoughBalance is the error that the usable balance is not enough
	ErrNotEnoughBalance = errors.New("not enough balance")
	// ErrExistentialDeposit is the error that a new account would be created below the existential deposit
	ErrExistentialDeposit = errors.New("value below existential deposit")
	// ErrDeadAccount is the error that an account does not exist
	ErrDeadAccount = errors.New("account does not exist")
	// ErrInvalidAmount is the error that an amount is negative
	ErrInvalidAmount = errors.New("invalid amount")
)

// Account is the balance state of an address. The staking lock restricts what can leave the free balance.
type Account struct {
	Free     *big.Int
	Reserved *big.Int
	Locked   *big.Int
}

// NewAccount returns an empty account
func NewAccount() *Account {
	return &Account{
		Free:     new(big.Int),
		Reserved: new(big.Int),
		Locked:   new(big.Int),
	}
}

// Total returns free plus reserved balance
func (a *Account) Total() *big.Int {
	return new(big.Int).Add(a.Free, a.Reserved)
}

// Usable returns the part of the free balance not covered by the lock
func (a *Account) Usable() *big.Int {
	u := new(big.Int).Sub(a.Free, a.Locked)
	if u.Sign() < 0 {
		return u.SetInt64(0)
	}
	return u
}

// AddBalance adds balance to the free balance
func (a *Account) AddBalance(amount *big.Int) error {
	if amount.Sign() < 0 {
		return errors.Wrapf(ErrInvalidAmount, "amount %s", amount)
	}
	a.Free.Add(a.Free, amount)
	return nil
}

// SubBalance subtracts balance from the usable balance
func (a *Account) SubBalance(amount *big.Int) error {
	if amount.Sign() < 0 {
		return errors.Wrapf(ErrInvalidAmount, "amount %s", amount)
	}
	if amount.Cmp(a.Usable()) > 0 {
		return errors.Wrapf(ErrNotEnoughBalance, "usable %s, required %s", a.Usable(), amount)
	}
	a.Free.Sub(a.Free, amount)
	return nil
}

// Reserve moves usable balance into the reserved balance
func (a *Account) Reserve(amount *big.Int) error {
	if err := a.SubBalance(amount); err != nil {
		return err
	}
	a.Reserved.Add(a.Reserved, amount)
	return nil
}

// Slash removes up to amount, free balance first, and returns what was removed
func (a *Account) Slash(amount *big.Int) *big.Int {
	if amount.Sign() <= 0 {
		return new(big.Int)
	}
	fromFree := minBig(amount, a.Free)
	a.Free.Sub(a.Free, fromFree)
	rest := new(big.Int).Sub(amount, fromFree)
	fromReserved := minBig(rest, a.Reserved)
	a.Reserved.Sub(a.Reserved, fromReserved)
	return fromFree.Add(fromFree, fromReserved)
}

// Clone returns a deep copy of the account
func (a *Account) Clone() *Account {
	return &Account{
		Free:     new(big.Int).Set(a.Free),
		Reserved: new(big.Int).Set(a.Reserved),
		Locked:   new(big.Int).Set(a.Locked),
	}
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) < 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
