// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package perbill implements a saturating fixed point fraction in parts per billion.
package perbill

import (
	"fmt"
	"math/big"
	"math/bits"
)

// Accuracy is the number of parts in one
const Accuracy uint32 = 1_000_000_000

var (
	_bigAccuracy = big.NewInt(int64(Accuracy))
	_bigHalf     = big.NewInt(int64(Accuracy / 2))
)

// Perbill is a fraction in [0, 1] with a precision of 1e-9
type Perbill uint32

// Zero is the zero fraction
const Zero Perbill = 0

// One returns the whole
func One() Perbill { return Perbill(Accuracy) }

// FromParts creates a Perbill from raw parts, saturating at one
func FromParts(parts uint32) Perbill {
	if parts > Accuracy {
		return One()
	}
	return Perbill(parts)
}

// FromPercent creates a Perbill from a percentage, saturating at 100
func FromPercent(pct uint32) Perbill {
	if pct >= 100 {
		return One()
	}
	return Perbill(pct * (Accuracy / 100))
}

// FromRational returns floor(n/d) as Perbill. A zero denominator is treated as one and n > d saturates.
func FromRational(n, d *big.Int) Perbill {
	q := new(big.Int).Set(d)
	if q.Sign() <= 0 {
		q.SetInt64(1)
	}
	if n.Sign() <= 0 {
		return Zero
	}
	if n.Cmp(q) >= 0 {
		return One()
	}
	p := new(big.Int).Mul(n, _bigAccuracy)
	p.Quo(p, q)
	return Perbill(p.Uint64())
}

// FromRationalUint64 is FromRational on uint64 operands
func FromRationalUint64(n, d uint64) Perbill {
	if d == 0 {
		d = 1
	}
	if n >= d {
		return One()
	}
	hi, lo := bits.Mul64(n, uint64(Accuracy))
	q, _ := bits.Div64(hi, lo, d)
	return Perbill(q)
}

// Parts returns the raw parts
func (p Perbill) Parts() uint32 { return uint32(p) }

// IsZero returns true if the fraction is zero
func (p Perbill) IsZero() bool { return p == 0 }

// IsOne returns true if the fraction is one
func (p Perbill) IsOne() bool { return uint32(p) >= Accuracy }

// Complement returns 1 - p
func (p Perbill) Complement() Perbill {
	if p.IsOne() {
		return Zero
	}
	return Perbill(Accuracy - uint32(p))
}

// Add returns p + o, saturating at one
func (p Perbill) Add(o Perbill) Perbill {
	return FromParts(uint32(p) + uint32(o))
}

// Sub returns p - o, saturating at zero
func (p Perbill) Sub(o Perbill) Perbill {
	if o >= p {
		return Zero
	}
	return p - o
}

// MulPerbill returns p * o rounded down
func (p Perbill) MulPerbill(o Perbill) Perbill {
	return Perbill(uint64(p) * uint64(o) / uint64(Accuracy))
}

// Mul returns p * n rounded to the nearest integer, preferring down on a tie. Negative n yields zero.
func (p Perbill) Mul(n *big.Int) *big.Int {
	if n.Sign() <= 0 || p.IsZero() {
		return new(big.Int)
	}
	if p.IsOne() {
		return new(big.Int).Set(n)
	}
	prod := new(big.Int).Mul(n, big.NewInt(int64(p)))
	q, r := new(big.Int).QuoRem(prod, _bigAccuracy, new(big.Int))
	if r.Cmp(_bigHalf) > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// MulFloor returns floor(p * n). Negative n yields zero.
func (p Perbill) MulFloor(n *big.Int) *big.Int {
	if n.Sign() <= 0 || p.IsZero() {
		return new(big.Int)
	}
	prod := new(big.Int).Mul(n, big.NewInt(int64(p)))
	return prod.Quo(prod, _bigAccuracy)
}

// MulFloorUint64 returns floor(p * n)
func (p Perbill) MulFloorUint64(n uint64) uint64 {
	hi, lo := bits.Mul64(n, uint64(p))
	q, _ := bits.Div64(hi, lo, uint64(Accuracy))
	return q
}

// MulUint64 returns p * n rounded to the nearest integer, preferring down on a tie
func (p Perbill) MulUint64(n uint64) uint64 {
	if p.IsOne() {
		return n
	}
	hi, lo := bits.Mul64(n, uint64(p))
	q, r := bits.Div64(hi, lo, uint64(Accuracy))
	if r > uint64(Accuracy/2) {
		q++
	}
	return q
}

// String returns the fraction as a percentage
func (p Perbill) String() string {
	return fmt.Sprintf("%d.%07d%%", uint32(p)/(Accuracy/100), uint32(p)%(Accuracy/100))
}
