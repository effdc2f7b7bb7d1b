// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package staking

import (
	"math/big"

	"github.com/iotexproject/iotex-npos/election"
	"github.com/iotexproject/iotex-npos/pkg/perbill"
)

type (
	// EraPayoutEvent is emitted when an era ends with the validator payout and the remainder issued to the treasury
	EraPayoutEvent struct {
		Era       uint32
		Validator *big.Int
		Remainder *big.Int
	}

	// RewardEvent is emitted for every reward paid to a stash
	RewardEvent struct {
		Stash  string
		Amount *big.Int
	}

	// SlashEvent is emitted when a stash is slashed
	SlashEvent struct {
		Stash  string
		Amount *big.Int
	}

	// OldSlashingReportDiscardedEvent is emitted when an offence predates the bonding window
	OldSlashingReportDiscardedEvent struct {
		Session uint32
	}

	// StakingElectionEvent is emitted when a new validator set is planned
	StakingElectionEvent struct {
		Compute election.Compute
	}

	// SolutionStoredEvent is emitted when an off-chain solution is queued
	SolutionStoredEvent struct {
		Compute election.Compute
	}

	// BondedEvent is emitted when stake is bonded
	BondedEvent struct {
		Stash  string
		Amount *big.Int
	}

	// UnbondedEvent is emitted when stake starts unbonding
	UnbondedEvent struct {
		Stash  string
		Amount *big.Int
	}

	// WithdrawnEvent is emitted when unbonded stake is released
	WithdrawnEvent struct {
		Stash  string
		Amount *big.Int
	}

	// NominatedEvent is emitted when a nominator sets its targets
	NominatedEvent struct {
		Stash   string
		Targets []string
	}

	// ChilledEvent is emitted when a stash stops validating and nominating
	ChilledEvent struct {
		Stash string
	}

	// PermissionedIdentityAddedEvent is emitted when an identity is allowed to run validators
	PermissionedIdentityAddedEvent struct {
		Identity string
	}

	// PermissionedIdentityRemovedEvent is emitted when an identity is no longer allowed to run validators
	PermissionedIdentityRemovedEvent struct {
		Identity string
	}

	// CommissionCapUpdatedEvent is emitted when the commission cap changes
	CommissionCapUpdatedEvent struct {
		Old perbill.Perbill
		New perbill.Perbill
	}

	// MinimumBondThresholdUpdatedEvent is emitted when the minimum validator bond changes
	MinimumBondThresholdUpdatedEvent struct {
		Threshold *big.Int
	}

	// InvalidatedNominatorsEvent is emitted when nominators without valid due diligence are removed
	InvalidatedNominatorsEvent struct {
		Caller     string
		Nominators []string
	}

	// SlashingAllowedForChangedEvent is emitted when the slashing switch changes
	SlashingAllowedForChangedEvent struct {
		Switch string
	}

	// RewardPaymentSchedulingInterruptedEvent is emitted when scheduling a validator payout fails
	RewardPaymentSchedulingInterruptedEvent struct {
		Validator string
		Era       uint32
		Reason    string
	}
)

// Topic returns the event topic
func (e *EraPayoutEvent) Topic() string { return "EraPayout" }

// Topic returns the event topic
func (e *RewardEvent) Topic() string { return "Reward" }

// Topic returns the event topic
func (e *SlashEvent) Topic() string { return "Slash" }

// Topic returns the event topic
func (e *OldSlashingReportDiscardedEvent) Topic() string { return "OldSlashingReportDiscarded" }

// Topic returns the event topic
func (e *StakingElectionEvent) Topic() string { return "StakingElection" }

// Topic returns the event topic
func (e *SolutionStoredEvent) Topic() string { return "SolutionStored" }

// Topic returns the event topic
func (e *BondedEvent) Topic() string { return "Bonded" }

// Topic returns the event topic
func (e *UnbondedEvent) Topic() string { return "Unbonded" }

// Topic returns the event topic
func (e *WithdrawnEvent) Topic() string { return "Withdrawn" }

// Topic returns the event topic
func (e *NominatedEvent) Topic() string { return "Nominated" }

// Topic returns the event topic
func (e *ChilledEvent) Topic() string { return "Chilled" }

// Topic returns the event topic
func (e *PermissionedIdentityAddedEvent) Topic() string { return "PermissionedIdentityAdded" }

// Topic returns the event topic
func (e *PermissionedIdentityRemovedEvent) Topic() string { return "PermissionedIdentityRemoved" }

// Topic returns the event topic
func (e *CommissionCapUpdatedEvent) Topic() string { return "CommissionCapUpdated" }

// Topic returns the event topic
func (e *MinimumBondThresholdUpdatedEvent) Topic() string { return "MinimumBondThresholdUpdated" }

// Topic returns the event topic
func (e *InvalidatedNominatorsEvent) Topic() string { return "InvalidatedNominators" }

// Topic returns the event topic
func (e *SlashingAllowedForChangedEvent) Topic() string { return "SlashingAllowedForChanged" }

// Topic returns the event topic
func (e *RewardPaymentSchedulingInterruptedEvent) Topic() string {
	return "RewardPaymentSchedulingInterrupted"
}
