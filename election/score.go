// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package election

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"github.com/iotexproject/iotex-npos/pkg/perbill"
)

// Score ranks election outcomes. A higher minimal stake wins, then a higher sum, then a lower sum of squares.
type Score struct {
	MinimalStake    *uint256.Int
	SumStake        *uint256.Int
	SumStakeSquared *uint256.Int
}

type scoreRLP struct {
	MinimalStake    []byte
	SumStake        []byte
	SumStakeSquared []byte
}

// NewScore builds a score from plain integers
func NewScore(minimal, sum, squared uint64) Score {
	return Score{
		MinimalStake:    uint256.NewInt(minimal),
		SumStake:        uint256.NewInt(sum),
		SumStakeSquared: uint256.NewInt(squared),
	}
}

func (s Score) fields() [3]*uint256.Int {
	return [3]*uint256.Int{s.MinimalStake, s.SumStake, s.SumStakeSquared}
}

// Equal returns true if both scores are identical
func (s Score) Equal(o Score) bool {
	a, b := s.fields(), o.fields()
	for i := range a {
		if a[i] == nil || b[i] == nil {
			if a[i] != b[i] {
				return false
			}
			continue
		}
		if !a[i].Eq(b[i]) {
			return false
		}
	}
	return true
}

// StrictThresholdBetter returns true if s beats o by more than threshold in the most significant field where
// they are not threshold-equal. The sum of squares is better when lower.
func (s Score) StrictThresholdBetter(o Score, threshold perbill.Perbill) bool {
	this, that := s.fields(), o.fields()
	var (
		ge  [3]bool
		cmp [3]int
	)
	for i := range this {
		ge[i] = this[i].Cmp(that[i]) >= 0
		cmp[i] = thresholdCmp(this[i], that[i], mulCeil(threshold, that[i]))
	}
	switch {
	case cmp[0] > 0:
		return true
	case ge[0] && cmp[0] == 0 && cmp[1] > 0:
		return true
	case ge[0] && cmp[0] == 0 && ge[1] && cmp[1] == 0 && cmp[2] < 0:
		return true
	}
	return false
}

// thresholdCmp compares a with b, treating values within threshold of b as equal
func thresholdCmp(a, b, threshold *uint256.Int) int {
	if threshold.IsZero() {
		return a.Cmp(b)
	}
	upper := saturatingAdd(b, threshold)
	lower := saturatingSub(b, threshold)
	if !upper.Gt(lower) {
		return a.Cmp(b)
	}
	switch {
	case a.Gt(lower) && a.Gt(upper):
		return 1
	case a.Lt(lower) && a.Lt(upper):
		return -1
	}
	return 0
}

func mulCeil(p perbill.Perbill, x *uint256.Int) *uint256.Int {
	parts := uint256.NewInt(uint64(p.Parts()))
	acc := uint256.NewInt(uint64(perbill.Accuracy))
	q, overflow := new(uint256.Int).MulDivOverflow(x, parts, acc)
	if overflow {
		return maxUint256()
	}
	if rem := new(uint256.Int).MulMod(x, parts, acc); !rem.IsZero() {
		q = saturatingAdd(q, uint256.NewInt(1))
	}
	return q
}

// Serialize encodes the score
func (s *Score) Serialize() ([]byte, error) {
	return rlp.EncodeToBytes(&scoreRLP{
		MinimalStake:    s.MinimalStake.Bytes(),
		SumStake:        s.SumStake.Bytes(),
		SumStakeSquared: s.SumStakeSquared.Bytes(),
	})
}

// Deserialize decodes the score
func (s *Score) Deserialize(data []byte) error {
	var r scoreRLP
	if err := rlp.DecodeBytes(data, &r); err != nil {
		return err
	}
	s.MinimalStake = new(uint256.Int).SetBytes(r.MinimalStake)
	s.SumStake = new(uint256.Int).SetBytes(r.SumStake)
	s.SumStakeSquared = new(uint256.Int).SetBytes(r.SumStakeSquared)
	return nil
}

func (s Score) String() string {
	return fmt.Sprintf("[%s, %s, %s]", s.MinimalStake.Dec(), s.SumStake.Dec(), s.SumStakeSquared.Dec())
}
