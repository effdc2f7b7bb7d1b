// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package election implements the sequential Phragmén election with balancing, the compact solution
// encoding and the score used to compare solutions.
package election

import (
	"github.com/holiman/uint256"
	"github.com/pkg/errors"

	"github.com/iotexproject/iotex-npos/pkg/perbill"
)

// Errors
var (
	ErrNoCandidates          = errors.New("no candidates to elect")
	ErrArithmetic            = errors.New("election arithmetic error")
	ErrInvalidSupportEdge    = errors.New("assignment edge points to a non-winner")
	ErrCompactInvalidIndex   = errors.New("compact index out of snapshot")
	ErrCompactStakeOverflow  = errors.New("compact ratios overflow")
	ErrCompactTargetOverflow = errors.New("compact vote has too many targets")
	ErrCompactDuplicate      = errors.New("compact vote repeats a target")
)

// ExtendedBalance is the wide integer used for stake sums and loads
type ExtendedBalance = uint256.Int

type (
	// Voter is an election input: a stake weighted approval of targets
	Voter struct {
		ID      string
		Stake   uint64
		Targets []string
	}

	// Winner is an elected candidate with its backing after the election
	Winner struct {
		ID     string
		Backed *ExtendedBalance
	}

	// Ratio is one edge of an assignment
	Ratio struct {
		Target string
		Weight perbill.Perbill
	}

	// Assignment distributes a voter's stake over winners as ratios that sum to one
	Assignment struct {
		Who          string
		Distribution []Ratio
	}

	// Stake is one edge of a staked assignment
	Stake struct {
		Target string
		Weight uint64
	}

	// StakedAssignment distributes a voter's stake over winners in absolute values
	StakedAssignment struct {
		Who          string
		Distribution []Stake
	}

	// Backing is one voter's contribution to a support
	Backing struct {
		Who   string
		Stake uint64
	}

	// Support is the total backing of one winner
	Support struct {
		Target string
		Total  *ExtendedBalance
		Voters []Backing
	}

	// Result is the outcome of an election
	Result struct {
		Winners     []Winner
		Assignments []Assignment
	}

	// BalancingConfig bounds the equalization post-processing
	BalancingConfig struct {
		Iterations int
		Tolerance  uint64
	}

	// Size is the size of the snapshot a solution was computed over
	Size struct {
		Validators uint16
		Nominators uint32
	}
)

// Compute is how an election result was produced
type Compute uint8

const (
	// OnChain result was computed by the chain at the era boundary
	OnChain Compute = iota
	// Signed result was submitted by a signed transaction
	Signed
	// Unsigned result was submitted by the local off-chain worker
	Unsigned
)

func (c Compute) String() string {
	switch c {
	case Signed:
		return "Signed"
	case Unsigned:
		return "Unsigned"
	default:
		return "OnChain"
	}
}

// WinnerIDs returns the identifiers of the winners in election order
func (r *Result) WinnerIDs() []string {
	ids := make([]string, len(r.Winners))
	for i, w := range r.Winners {
		ids[i] = w.ID
	}
	return ids
}

// Total returns the sum of the staked edges
func (a *StakedAssignment) Total() uint64 {
	var sum uint64
	for _, d := range a.Distribution {
		sum = saturatingAdd64(sum, d.Weight)
	}
	return sum
}

func saturatingAdd64(a, b uint64) uint64 {
	if c := a + b; c >= a {
		return c
	}
	return ^uint64(0)
}
