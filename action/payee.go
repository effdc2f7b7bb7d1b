// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package action

import (
	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"
)

// PayeeKind selects where era rewards are paid
type PayeeKind uint8

// Reward destinations
const (
	// PayeeStaked pays into the stash and increases the amount at stake
	PayeeStaked PayeeKind = iota
	// PayeeStash pays into the stash without increasing the stake
	PayeeStash
	// PayeeController pays into the controller account
	PayeeController
	// PayeeAccount pays into an arbitrary account
	PayeeAccount
	// PayeeNone forfeits the reward
	PayeeNone
)

// RewardDestination is the payee preference of a stash
type RewardDestination struct {
	Kind    PayeeKind
	Account address.Address
}

// StakedPayee returns the default destination
func StakedPayee() RewardDestination { return RewardDestination{Kind: PayeeStaked} }

// StashPayee pays the stash free balance
func StashPayee() RewardDestination { return RewardDestination{Kind: PayeeStash} }

// ControllerPayee pays the controller
func ControllerPayee() RewardDestination { return RewardDestination{Kind: PayeeController} }

// AccountPayee pays the given account
func AccountPayee(addr address.Address) RewardDestination {
	return RewardDestination{Kind: PayeeAccount, Account: addr}
}

// NonePayee forfeits rewards
func NonePayee() RewardDestination { return RewardDestination{Kind: PayeeNone} }

// SanityCheck validates the destination
func (rd RewardDestination) SanityCheck() error {
	switch rd.Kind {
	case PayeeStaked, PayeeStash, PayeeController, PayeeNone:
		return nil
	case PayeeAccount:
		return checkAddress(rd.Account)
	default:
		return errors.Errorf("unknown payee kind %d", rd.Kind)
	}
}

func (rd RewardDestination) String() string {
	switch rd.Kind {
	case PayeeStaked:
		return "Staked"
	case PayeeStash:
		return "Stash"
	case PayeeController:
		return "Controller"
	case PayeeAccount:
		return "Account(" + rd.Account.String() + ")"
	default:
		return "None"
	}
}

// SlashingSwitch selects which side of an exposure an offence slashes
type SlashingSwitch uint8

const (
	// SlashingNone never reaches nominator stake
	SlashingNone SlashingSwitch = iota
	// SlashingValidator slashes the offending validator's own stake only
	SlashingValidator
	// SlashingValidatorAndNominator also slashes the backing nominators pro rata
	SlashingValidatorAndNominator
)

// SlashesNominators returns whether nominator stake is at risk
func (s SlashingSwitch) SlashesNominators() bool { return s == SlashingValidatorAndNominator }

func (s SlashingSwitch) String() string {
	switch s {
	case SlashingValidator:
		return "Validator"
	case SlashingValidatorAndNominator:
		return "ValidatorAndNominator"
	default:
		return "None"
	}
}

// ParseSlashingSwitch parses the string form of a switch
func ParseSlashingSwitch(s string) (SlashingSwitch, error) {
	switch s {
	case "None", "none":
		return SlashingNone, nil
	case "Validator", "validator":
		return SlashingValidator, nil
	case "ValidatorAndNominator", "validatorAndNominator":
		return SlashingValidatorAndNominator, nil
	}
	return SlashingNone, errors.Errorf("unknown slashing switch %s", s)
}
