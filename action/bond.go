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

// Bond locks funds of the caller (the stash) and pairs it with a controller
type Bond struct {
	controller address.Address
	value      *big.Int
	payee      RewardDestination
}

// NewBond returns a Bond instance
func NewBond(controller address.Address, value *big.Int, payee RewardDestination) *Bond {
	return &Bond{controller: controller, value: copyAmount(value), payee: payee}
}

// Controller returns the controller account
func (b *Bond) Controller() address.Address { return b.controller }

// Value returns the amount to bond
func (b *Bond) Value() *big.Int { return b.value }

// Payee returns the reward destination
func (b *Bond) Payee() RewardDestination { return b.payee }

// SanityCheck validates the variables in the action
func (b *Bond) SanityCheck() error {
	if err := checkAddress(b.controller); err != nil {
		return err
	}
	if err := checkAmount(b.value); err != nil {
		return err
	}
	return b.payee.SanityCheck()
}

// BondExtra adds free balance of the caller (the stash) to its stake
type BondExtra struct {
	maxAdditional *big.Int
}

// NewBondExtra returns a BondExtra instance
func NewBondExtra(maxAdditional *big.Int) *BondExtra {
	return &BondExtra{maxAdditional: copyAmount(maxAdditional)}
}

// MaxAdditional returns the upper bound of the extra amount
func (b *BondExtra) MaxAdditional() *big.Int { return b.maxAdditional }

// SanityCheck validates the variables in the action
func (b *BondExtra) SanityCheck() error { return checkAmount(b.maxAdditional) }

// Unbond schedules part of the active stake of the caller (the controller) for withdrawal
type Unbond struct {
	value *big.Int
}

// NewUnbond returns an Unbond instance
func NewUnbond(value *big.Int) *Unbond {
	return &Unbond{value: copyAmount(value)}
}

// Value returns the amount to unbond
func (u *Unbond) Value() *big.Int { return u.value }

// SanityCheck validates the variables in the action
func (u *Unbond) SanityCheck() error { return checkAmount(u.value) }

// Rebond moves unlocking funds back into the active stake
type Rebond struct {
	value *big.Int
}

// NewRebond returns a Rebond instance
func NewRebond(value *big.Int) *Rebond {
	return &Rebond{value: copyAmount(value)}
}

// Value returns the amount to rebond
func (r *Rebond) Value() *big.Int { return r.value }

// SanityCheck validates the variables in the action
func (r *Rebond) SanityCheck() error { return checkAmount(r.value) }

// WithdrawUnbonded releases matured unlocking chunks
type WithdrawUnbonded struct {
	numSlashingSpans uint32
}

// NewWithdrawUnbonded returns a WithdrawUnbonded instance
func NewWithdrawUnbonded(numSlashingSpans uint32) *WithdrawUnbonded {
	return &WithdrawUnbonded{numSlashingSpans: numSlashingSpans}
}

// NumSlashingSpans returns the span count claimed by the caller
func (w *WithdrawUnbonded) NumSlashingSpans() uint32 { return w.numSlashingSpans }

// SanityCheck validates the variables in the action
func (w *WithdrawUnbonded) SanityCheck() error { return nil }

// SetPayee changes the reward destination of the controller's stash
type SetPayee struct {
	payee RewardDestination
}

// NewSetPayee returns a SetPayee instance
func NewSetPayee(payee RewardDestination) *SetPayee {
	return &SetPayee{payee: payee}
}

// Payee returns the new destination
func (s *SetPayee) Payee() RewardDestination { return s.payee }

// SanityCheck validates the variables in the action
func (s *SetPayee) SanityCheck() error { return s.payee.SanityCheck() }

// SetController re-pairs the caller (the stash) with a new controller
type SetController struct {
	controller address.Address
}

// NewSetController returns a SetController instance
func NewSetController(controller address.Address) *SetController {
	return &SetController{controller: controller}
}

// Controller returns the new controller
func (s *SetController) Controller() address.Address { return s.controller }

// SanityCheck validates the variables in the action
func (s *SetController) SanityCheck() error {
	return errors.Wrap(checkAddress(s.controller), "controller")
}
