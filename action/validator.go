// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package action

import (
	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"

	"github.com/iotexproject/iotex-npos/pkg/perbill"
)

// Validate declares the intention of the controller's stash to validate
type Validate struct {
	commission perbill.Perbill
	blocked    bool
}

// NewValidate returns a Validate instance
func NewValidate(commission perbill.Perbill, blocked bool) *Validate {
	return &Validate{commission: commission, blocked: blocked}
}

// Commission returns the reward cut taken before the split
func (v *Validate) Commission() perbill.Perbill { return v.commission }

// Blocked returns whether new nominations are refused
func (v *Validate) Blocked() bool { return v.blocked }

// SanityCheck validates the variables in the action
func (v *Validate) SanityCheck() error {
	if v.commission > perbill.One() {
		return errors.New("commission exceeds 100%")
	}
	return nil
}

// Nominate declares the intention of the controller's stash to back the targets
type Nominate struct {
	targets []address.Address
}

// NewNominate returns a Nominate instance
func NewNominate(targets []address.Address) *Nominate {
	return &Nominate{targets: append([]address.Address(nil), targets...)}
}

// Targets returns the nominated stashes
func (n *Nominate) Targets() []address.Address { return n.targets }

// SanityCheck validates the variables in the action
func (n *Nominate) SanityCheck() error {
	for _, t := range n.targets {
		if err := checkAddress(t); err != nil {
			return err
		}
	}
	return nil
}

// Chill declares no desire to validate or nominate
type Chill struct{}

// NewChill returns a Chill instance
func NewChill() *Chill { return &Chill{} }

// SanityCheck validates the variables in the action
func (c *Chill) SanityCheck() error { return nil }

// PayoutStakers pays the validator and its top nominators for one era
type PayoutStakers struct {
	validator address.Address
	era       uint32
}

// NewPayoutStakers returns a PayoutStakers instance
func NewPayoutStakers(validator address.Address, era uint32) *PayoutStakers {
	return &PayoutStakers{validator: validator, era: era}
}

// Validator returns the validator stash
func (p *PayoutStakers) Validator() address.Address { return p.validator }

// Era returns the era to pay
func (p *PayoutStakers) Era() uint32 { return p.era }

// SanityCheck validates the variables in the action
func (p *PayoutStakers) SanityCheck() error { return checkAddress(p.validator) }

// PayoutStakersBySystem is the root variant of PayoutStakers used by scheduled payouts
type PayoutStakersBySystem struct {
	PayoutStakers
}

// NewPayoutStakersBySystem returns a PayoutStakersBySystem instance
func NewPayoutStakersBySystem(validator address.Address, era uint32) *PayoutStakersBySystem {
	return &PayoutStakersBySystem{PayoutStakers{validator: validator, era: era}}
}
