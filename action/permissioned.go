// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package action

import (
	"github.com/iotexproject/go-pkgs/hash"
	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"
)

// AddPermissionedValidator admits an identity to run validators. Requires the Governance origin.
type AddPermissionedValidator struct {
	identity      hash.Hash256
	intendedCount *uint32
}

// NewAddPermissionedValidator returns an AddPermissionedValidator instance, a nil count means the default
func NewAddPermissionedValidator(identity hash.Hash256, intendedCount *uint32) *AddPermissionedValidator {
	a := &AddPermissionedValidator{identity: identity}
	if intendedCount != nil {
		c := *intendedCount
		a.intendedCount = &c
	}
	return a
}

// Identity returns the identity
func (a *AddPermissionedValidator) Identity() hash.Hash256 { return a.identity }

// IntendedCount returns the requested number of validators, if any
func (a *AddPermissionedValidator) IntendedCount() (uint32, bool) {
	if a.intendedCount == nil {
		return 0, false
	}
	return *a.intendedCount, true
}

// SanityCheck validates the variables in the action
func (a *AddPermissionedValidator) SanityCheck() error { return checkIdentity(a.identity) }

// RemovePermissionedValidator revokes the validator permission of an identity
type RemovePermissionedValidator struct {
	identity hash.Hash256
}

// NewRemovePermissionedValidator returns a RemovePermissionedValidator instance
func NewRemovePermissionedValidator(identity hash.Hash256) *RemovePermissionedValidator {
	return &RemovePermissionedValidator{identity: identity}
}

// Identity returns the identity
func (r *RemovePermissionedValidator) Identity() hash.Hash256 { return r.identity }

// SanityCheck validates the variables in the action
func (r *RemovePermissionedValidator) SanityCheck() error { return checkIdentity(r.identity) }

// UpdatePermissionedValidatorIntendedCount changes how many validators an identity may run
type UpdatePermissionedValidatorIntendedCount struct {
	identity hash.Hash256
	count    uint32
}

// NewUpdatePermissionedValidatorIntendedCount returns an UpdatePermissionedValidatorIntendedCount instance
func NewUpdatePermissionedValidatorIntendedCount(identity hash.Hash256, count uint32) *UpdatePermissionedValidatorIntendedCount {
	return &UpdatePermissionedValidatorIntendedCount{identity: identity, count: count}
}

// Identity returns the identity
func (u *UpdatePermissionedValidatorIntendedCount) Identity() hash.Hash256 { return u.identity }

// Count returns the new intended count
func (u *UpdatePermissionedValidatorIntendedCount) Count() uint32 { return u.count }

// SanityCheck validates the variables in the action
func (u *UpdatePermissionedValidatorIntendedCount) SanityCheck() error { return checkIdentity(u.identity) }

// ChillFromGovernance force-chills validator stashes of one identity
type ChillFromGovernance struct {
	identity hash.Hash256
	stashes  []address.Address
}

// NewChillFromGovernance returns a ChillFromGovernance instance
func NewChillFromGovernance(identity hash.Hash256, stashes []address.Address) *ChillFromGovernance {
	return &ChillFromGovernance{identity: identity, stashes: append([]address.Address(nil), stashes...)}
}

// Identity returns the identity
func (c *ChillFromGovernance) Identity() hash.Hash256 { return c.identity }

// Stashes returns the stashes to chill
func (c *ChillFromGovernance) Stashes() []address.Address { return c.stashes }

// SanityCheck validates the variables in the action
func (c *ChillFromGovernance) SanityCheck() error {
	if err := checkIdentity(c.identity); err != nil {
		return err
	}
	for _, s := range c.stashes {
		if err := checkAddress(s); err != nil {
			return err
		}
	}
	return nil
}

// ValidateCDDExpiryNominators unbonds nominators whose due diligence claim expired
type ValidateCDDExpiryNominators struct {
	targets []address.Address
}

// NewValidateCDDExpiryNominators returns a ValidateCDDExpiryNominators instance
func NewValidateCDDExpiryNominators(targets []address.Address) *ValidateCDDExpiryNominators {
	return &ValidateCDDExpiryNominators{targets: append([]address.Address(nil), targets...)}
}

// Targets returns the nominator stashes to check
func (v *ValidateCDDExpiryNominators) Targets() []address.Address { return v.targets }

// SanityCheck validates the variables in the action
func (v *ValidateCDDExpiryNominators) SanityCheck() error {
	for _, t := range v.targets {
		if err := checkAddress(t); err != nil {
			return err
		}
	}
	return nil
}

func checkIdentity(id hash.Hash256) error {
	if id == hash.ZeroHash256 {
		return errors.New("empty identity")
	}
	return nil
}
