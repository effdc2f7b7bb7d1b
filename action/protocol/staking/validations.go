// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package staking

import (
	"github.com/pkg/errors"

	"github.com/iotexproject/iotex-npos/action/protocol"
	"github.com/iotexproject/iotex-npos/action/protocol/staking/slashing"
)

// Errors
var (
	ErrNotController                            = errors.New("not a controller account")
	ErrNotStash                                 = errors.New("not a stash account")
	ErrAlreadyBonded                            = errors.New("stash is already bonded")
	ErrAlreadyPaired                            = errors.New("controller is already paired")
	ErrEmptyTargets                             = errors.New("targets cannot be empty")
	ErrInvalidSlashIndex                        = errors.New("slash record index out of bounds")
	ErrInsufficientValue                        = errors.New("value below the required minimum")
	ErrNoMoreChunks                             = errors.New("cannot schedule more unlock chunks")
	ErrNoUnlockChunk                            = errors.New("no unlock chunk to rebond")
	ErrFundedTarget                             = errors.New("attempting to target a stash that still has funds")
	ErrInvalidEraToReward                       = errors.New("invalid era to reward")
	ErrNotSortedAndUnique                       = errors.New("items are not sorted and unique")
	ErrAlreadyClaimed                           = errors.New("rewards for this era have already been claimed")
	ErrOffchainElectionEarlySubmission          = errors.New("solution submitted outside the election window")
	ErrOffchainElectionWeakSubmission           = errors.New("solution is not better than the queued one")
	ErrSnapshotUnavailable                      = errors.New("election snapshot is unavailable")
	ErrOffchainElectionBogusWinnerCount         = errors.New("incorrect number of winners")
	ErrOffchainElectionBogusWinner              = errors.New("winner is not a snapshot candidate")
	ErrOffchainElectionBogusCompact             = errors.New("compact solution cannot be decoded")
	ErrOffchainElectionBogusNominator           = errors.New("voter is neither a nominator nor a validator")
	ErrOffchainElectionBogusNomination          = errors.New("edge is not an actual nomination")
	ErrOffchainElectionSlashedNomination        = errors.New("nomination predates the last slash of its target")
	ErrOffchainElectionBogusSelfVote            = errors.New("malformed validator self vote")
	ErrOffchainElectionBogusScore               = errors.New("claimed score does not match the solution")
	ErrOffchainElectionBogusElectionSize        = errors.New("election size does not match the snapshot")
	ErrCallNotAllowed                           = errors.New("call not allowed while the election window is open")
	ErrIncorrectHistoryDepth                    = errors.New("incorrect history depth")
	ErrIncorrectSlashingSpans                   = slashing.ErrIncorrectSlashingSpans
	ErrTooManyTargets                           = errors.New("too many nomination targets")
	ErrBadTarget                                = errors.New("target validator is blocked")
	ErrStashIdentityDoesNotExist                = errors.New("stash has no identity")
	ErrStashIdentityNotPermissioned             = errors.New("stash identity is not a permissioned validator")
	ErrStashIdentityNotCDDed                    = errors.New("stash identity has no valid due diligence claim")
	ErrAlreadyExists                            = errors.New("permissioned identity already exists")
	ErrNotExists                                = errors.New("permissioned identity does not exist")
	ErrNoChange                                 = errors.New("value is unchanged")
	ErrInvalidValidatorCommission               = errors.New("commission exceeds the cap")
	ErrHitIntendedValidatorCount                = errors.New("identity has reached its intended validator count")
	ErrIntendedCountIsExceedingConsensusLimit   = errors.New("intended count exceeds the consensus limit")
	ErrBondTooSmall                             = errors.New("bond below the minimum bond")
	ErrInvalidValidatorUnbondAmount             = errors.New("validator cannot unbond below the minimum bond threshold")
	ErrCallerIdentityMissing                    = errors.New("caller has no identity")
	ErrOverflow                                 = errors.New("arithmetic overflow")
	ErrInvalidValidatorIdentity                 = errors.New("identity has no valid due diligence claim to run validators")
)

// error codes carried by failed receipts
var _errorCodes = map[error]uint32{
	protocol.ErrBadOrigin:                       1,
	ErrNotController:                            2,
	ErrNotStash:                                 3,
	ErrAlreadyBonded:                            4,
	ErrAlreadyPaired:                            5,
	ErrEmptyTargets:                             6,
	ErrInvalidSlashIndex:                        7,
	ErrInsufficientValue:                        8,
	ErrNoMoreChunks:                             9,
	ErrNoUnlockChunk:                            10,
	ErrFundedTarget:                             11,
	ErrInvalidEraToReward:                       12,
	ErrNotSortedAndUnique:                       13,
	ErrAlreadyClaimed:                           14,
	ErrOffchainElectionEarlySubmission:          15,
	ErrOffchainElectionWeakSubmission:           16,
	ErrSnapshotUnavailable:                      17,
	ErrOffchainElectionBogusWinnerCount:         18,
	ErrOffchainElectionBogusWinner:              19,
	ErrOffchainElectionBogusCompact:             20,
	ErrOffchainElectionBogusNominator:           21,
	ErrOffchainElectionBogusNomination:          22,
	ErrOffchainElectionSlashedNomination:        23,
	ErrOffchainElectionBogusSelfVote:            24,
	ErrOffchainElectionBogusScore:               25,
	ErrOffchainElectionBogusElectionSize:        26,
	ErrCallNotAllowed:                           27,
	ErrIncorrectHistoryDepth:                    28,
	ErrIncorrectSlashingSpans:                   29,
	ErrTooManyTargets:                           30,
	ErrBadTarget:                                31,
	ErrStashIdentityDoesNotExist:                32,
	ErrStashIdentityNotPermissioned:             33,
	ErrStashIdentityNotCDDed:                    34,
	ErrAlreadyExists:                            35,
	ErrNotExists:                                36,
	ErrNoChange:                                 37,
	ErrInvalidValidatorCommission:               38,
	ErrHitIntendedValidatorCount:                39,
	ErrIntendedCountIsExceedingConsensusLimit:   40,
	ErrBondTooSmall:                             41,
	ErrInvalidValidatorUnbondAmount:             42,
	ErrCallerIdentityMissing:                    43,
	ErrOverflow:                                 44,
	ErrInvalidValidatorIdentity:                 45,
}

// ErrorCode returns the machine readable code of a staking error, zero if the error is not a staking rejection
func ErrorCode(err error) uint32 {
	if err == nil {
		return 0
	}
	return _errorCodes[errors.Cause(err)]
}

// IsRejection returns true if the error rejects an action rather than signaling a state failure
func IsRejection(err error) bool {
	return ErrorCode(err) != 0
}
