// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package action

import (
	"math/big"

	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"

	"github.com/iotexproject/iotex-npos/pkg/perbill"
)

// The actions in this file require the Root origin.

type (
	// SetValidatorCount sets the ideal number of validators
	SetValidatorCount struct{ count uint32 }

	// IncreaseValidatorCount increments the ideal number of validators
	IncreaseValidatorCount struct{ additional uint32 }

	// ScaleValidatorCount scales the ideal number of validators by a factor
	ScaleValidatorCount struct{ factor perbill.Perbill }

	// ForceNoEras suppresses new eras indefinitely
	ForceNoEras struct{}

	// ForceNewEra forces a new era at the end of the next session
	ForceNewEra struct{}

	// ForceNewEraAlways forces a new era at the end of every session
	ForceNewEraAlways struct{}

	// SetInvulnerables replaces the validators that are never slashed
	SetInvulnerables struct{ invulnerables []address.Address }

	// ForceUnstake removes all staking data of a stash immediately
	ForceUnstake struct {
		stash            address.Address
		numSlashingSpans uint32
	}

	// ReapStash removes the data of a stash whose funds fell below the existential deposit
	ReapStash struct {
		stash            address.Address
		numSlashingSpans uint32
	}

	// CancelDeferredSlash removes queued slashes of an era by index
	CancelDeferredSlash struct {
		era     uint32
		indices []uint32
	}

	// SetHistoryDepth changes how many eras of rewards can be claimed
	SetHistoryDepth struct {
		depth           uint32
		eraItemsDeleted uint32
	}

	// SetCommissionCap changes the maximum validator commission
	SetCommissionCap struct{ cap perbill.Perbill }

	// SetMinBondThreshold changes the minimum active stake of a validator
	SetMinBondThreshold struct{ threshold *big.Int }

	// ChangeSlashingAllowedFor switches who gets slashed on offences
	ChangeSlashingAllowedFor struct{ slashingSwitch SlashingSwitch }
)

// NewSetValidatorCount returns a SetValidatorCount instance
func NewSetValidatorCount(count uint32) *SetValidatorCount { return &SetValidatorCount{count: count} }

// Count returns the new count
func (s *SetValidatorCount) Count() uint32 { return s.count }

// SanityCheck validates the variables in the action
func (s *SetValidatorCount) SanityCheck() error { return nil }

// NewIncreaseValidatorCount returns an IncreaseValidatorCount instance
func NewIncreaseValidatorCount(additional uint32) *IncreaseValidatorCount {
	return &IncreaseValidatorCount{additional: additional}
}

// Additional returns the increment
func (i *IncreaseValidatorCount) Additional() uint32 { return i.additional }

// SanityCheck validates the variables in the action
func (i *IncreaseValidatorCount) SanityCheck() error { return nil }

// NewScaleValidatorCount returns a ScaleValidatorCount instance
func NewScaleValidatorCount(factor perbill.Perbill) *ScaleValidatorCount {
	return &ScaleValidatorCount{factor: factor}
}

// Factor returns the scale factor
func (s *ScaleValidatorCount) Factor() perbill.Perbill { return s.factor }

// SanityCheck validates the variables in the action
func (s *ScaleValidatorCount) SanityCheck() error { return nil }

// SanityCheck validates the variables in the action
func (*ForceNoEras) SanityCheck() error { return nil }

// SanityCheck validates the variables in the action
func (*ForceNewEra) SanityCheck() error { return nil }

// SanityCheck validates the variables in the action
func (*ForceNewEraAlways) SanityCheck() error { return nil }

// NewSetInvulnerables returns a SetInvulnerables instance
func NewSetInvulnerables(invulnerables []address.Address) *SetInvulnerables {
	return &SetInvulnerables{invulnerables: append([]address.Address(nil), invulnerables...)}
}

// Invulnerables returns the new list
func (s *SetInvulnerables) Invulnerables() []address.Address { return s.invulnerables }

// SanityCheck validates the variables in the action
func (s *SetInvulnerables) SanityCheck() error {
	for _, a := range s.invulnerables {
		if err := checkAddress(a); err != nil {
			return err
		}
	}
	return nil
}

// NewForceUnstake returns a ForceUnstake instance
func NewForceUnstake(stash address.Address, numSlashingSpans uint32) *ForceUnstake {
	return &ForceUnstake{stash: stash, numSlashingSpans: numSlashingSpans}
}

// Stash returns the stash
func (f *ForceUnstake) Stash() address.Address { return f.stash }

// NumSlashingSpans returns the span count claimed by the caller
func (f *ForceUnstake) NumSlashingSpans() uint32 { return f.numSlashingSpans }

// SanityCheck validates the variables in the action
func (f *ForceUnstake) SanityCheck() error { return checkAddress(f.stash) }

// NewReapStash returns a ReapStash instance
func NewReapStash(stash address.Address, numSlashingSpans uint32) *ReapStash {
	return &ReapStash{stash: stash, numSlashingSpans: numSlashingSpans}
}

// Stash returns the stash
func (r *ReapStash) Stash() address.Address { return r.stash }

// NumSlashingSpans returns the span count claimed by the caller
func (r *ReapStash) NumSlashingSpans() uint32 { return r.numSlashingSpans }

// SanityCheck validates the variables in the action
func (r *ReapStash) SanityCheck() error { return checkAddress(r.stash) }

// NewCancelDeferredSlash returns a CancelDeferredSlash instance
func NewCancelDeferredSlash(era uint32, indices []uint32) *CancelDeferredSlash {
	return &CancelDeferredSlash{era: era, indices: append([]uint32(nil), indices...)}
}

// Era returns the era the slashes were queued in
func (c *CancelDeferredSlash) Era() uint32 { return c.era }

// Indices returns the queue positions to cancel
func (c *CancelDeferredSlash) Indices() []uint32 { return c.indices }

// SanityCheck validates the variables in the action
func (c *CancelDeferredSlash) SanityCheck() error { return nil }

// NewSetHistoryDepth returns a SetHistoryDepth instance
func NewSetHistoryDepth(depth, eraItemsDeleted uint32) *SetHistoryDepth {
	return &SetHistoryDepth{depth: depth, eraItemsDeleted: eraItemsDeleted}
}

// Depth returns the new depth
func (s *SetHistoryDepth) Depth() uint32 { return s.depth }

// EraItemsDeleted returns the caller's estimate of deleted items
func (s *SetHistoryDepth) EraItemsDeleted() uint32 { return s.eraItemsDeleted }

// SanityCheck validates the variables in the action
func (s *SetHistoryDepth) SanityCheck() error { return nil }

// NewSetCommissionCap returns a SetCommissionCap instance
func NewSetCommissionCap(commissionCap perbill.Perbill) *SetCommissionCap {
	return &SetCommissionCap{cap: commissionCap}
}

// Cap returns the new cap
func (s *SetCommissionCap) Cap() perbill.Perbill { return s.cap }

// SanityCheck validates the variables in the action
func (s *SetCommissionCap) SanityCheck() error { return nil }

// NewSetMinBondThreshold returns a SetMinBondThreshold instance
func NewSetMinBondThreshold(threshold *big.Int) *SetMinBondThreshold {
	return &SetMinBondThreshold{threshold: copyAmount(threshold)}
}

// Threshold returns the new threshold
func (s *SetMinBondThreshold) Threshold() *big.Int { return s.threshold }

// SanityCheck validates the variables in the action
func (s *SetMinBondThreshold) SanityCheck() error { return checkAmount(s.threshold) }

// NewChangeSlashingAllowedFor returns a ChangeSlashingAllowedFor instance
func NewChangeSlashingAllowedFor(s SlashingSwitch) *ChangeSlashingAllowedFor {
	return &ChangeSlashingAllowedFor{slashingSwitch: s}
}

// Switch returns the new switch
func (c *ChangeSlashingAllowedFor) Switch() SlashingSwitch { return c.slashingSwitch }

// SanityCheck validates the variables in the action
func (c *ChangeSlashingAllowedFor) SanityCheck() error {
	if c.slashingSwitch > SlashingValidatorAndNominator {
		return errors.Errorf("unknown slashing switch %d", c.slashingSwitch)
	}
	return nil
}
