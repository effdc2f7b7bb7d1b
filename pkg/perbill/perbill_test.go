// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package perbill

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConstructors(t *testing.T) {
	r := require.New(t)

	r.Equal(One(), FromParts(Accuracy+1))
	r.Equal(Perbill(100_000_000), FromPercent(10))
	r.Equal(One(), FromPercent(150))
	r.Equal(Perbill(333_333_333), FromRational(big.NewInt(1), big.NewInt(3)))
	r.Equal(One(), FromRational(big.NewInt(5), big.NewInt(3)))
	r.Equal(One(), FromRational(big.NewInt(5), big.NewInt(0)))
	r.Equal(Zero, FromRational(big.NewInt(0), big.NewInt(3)))
	r.Equal(Perbill(666_666_666), FromRationalUint64(2, 3))
	r.Equal(Perbill(500_000_000), FromRationalUint64(math.MaxUint64/2, math.MaxUint64-1))
}

func TestArithmetic(t *testing.T) {
	r := require.New(t)

	p := FromPercent(30)
	r.Equal(FromPercent(70), p.Complement())
	r.Equal(Zero, One().Complement())
	r.Equal(One(), p.Add(FromPercent(80)))
	r.Equal(Zero, p.Sub(FromPercent(80)))
	r.Equal(FromPercent(10), FromPercent(40).Sub(p))
	r.Equal(FromPercent(9), p.MulPerbill(p))
	r.True(One().IsOne())
	r.True(Zero.IsZero())
	r.Equal("30.0000000%", p.String())
}

func TestMul(t *testing.T) {
	tests := []struct {
		p     Perbill
		n     int64
		mul   int64
		floor int64
	}{
		{FromPercent(10), 1000, 100, 100},
		{FromPercent(50), 3, 1, 1},
		{FromRational(big.NewInt(2), big.NewInt(3)), 10, 7, 6},
		{FromPercent(1), 49, 0, 0},
		{FromPercent(1), 51, 1, 0},
		{One(), 12345, 12345, 12345},
		{Zero, 12345, 0, 0},
		{FromPercent(10), -10, 0, 0},
	}
	for _, tt := range tests {
		require.Equal(t, tt.mul, tt.p.Mul(big.NewInt(tt.n)).Int64(), "%s * %d", tt.p, tt.n)
		require.Equal(t, tt.floor, tt.p.MulFloor(big.NewInt(tt.n)).Int64(), "floor %s * %d", tt.p, tt.n)
		if tt.n >= 0 {
			require.Equal(t, uint64(tt.mul), tt.p.MulUint64(uint64(tt.n)), "%s * %d", tt.p, tt.n)
		}
	}
	require.Equal(t, uint64(6), FromRationalUint64(2, 3).MulFloorUint64(10))
	require.Equal(t, uint64(math.MaxUint64), One().MulFloorUint64(math.MaxUint64))
}
