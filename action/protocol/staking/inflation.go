// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package staking

import (
	"math"
	"math/big"

	"github.com/pkg/errors"

	"github.com/iotexproject/iotex-npos/blockchain/genesis"
	"github.com/iotexproject/iotex-npos/pkg/perbill"
)

// _millisecondsPerYear is the length of a Julian year
const _millisecondsPerYear = 1000 * 3600 * 24 * 36525 / 100

// the curve is sampled in parts per million and scaled up
const _million = 1_000_000

var errInvalidCurve = errors.New("invalid reward curve")

type (
	// CurvePoint is a point of a piecewise linear function
	CurvePoint struct {
		X perbill.Perbill
		Y perbill.Perbill
	}

	// PiecewiseLinear is the yearly inflation as a function of the staked fraction of the issuance
	PiecewiseLinear struct {
		Points  []CurvePoint
		Maximum perbill.Perbill
	}

	// inpos is the ideal inflation curve in parts per million. It rises linearly from min at zero stake to max at the
	// ideal stake, then decays towards min halving every falloff.
	inpos struct {
		min, max, ideal, falloff uint64
	}
)

// BuildRewardCurve samples the ideal inflation curve into at most MaxPieceCount points
func BuildRewardCurve(cfg genesis.RewardCurve) (*PiecewiseLinear, error) {
	c := inpos{
		min:     uint64(cfg.MinInflation) / 1000,
		max:     uint64(cfg.MaxInflation) / 1000,
		ideal:   uint64(cfg.IdealStake) / 1000,
		falloff: uint64(cfg.Falloff) / 1000,
	}
	switch {
	case c.max < c.min:
		return nil, errors.Wrap(errInvalidCurve, "max inflation below min inflation")
	case c.ideal == 0 || c.ideal >= _million:
		return nil, errors.Wrap(errInvalidCurve, "ideal stake out of range")
	case c.falloff == 0:
		return nil, errors.Wrap(errInvalidCurve, "zero falloff")
	case cfg.MaxPieceCount < 2:
		return nil, errors.Wrap(errInvalidCurve, "too few pieces")
	}

	points := c.sample(uint64(cfg.MaxPieceCount))
	curve := &PiecewiseLinear{Points: make([]CurvePoint, 0, len(points))}
	for _, pt := range points {
		y := perbill.FromParts(uint32(pt[1] * 1000))
		curve.Points = append(curve.Points, CurvePoint{X: perbill.FromParts(uint32(pt[0] * 1000)), Y: y})
		if y > curve.Maximum {
			curve.Maximum = y
		}
	}
	return curve, nil
}

// sample splits the curve into segments no longer than the max length both vertically and horizontally
func (c inpos) sample(pieces uint64) [][2]uint64 {
	points := [][2]uint64{{0, c.min}, {c.ideal, c.max}}
	maxLength := (c.max - c.min + _million - c.ideal) / (pieces - 1)
	deltaY, y := maxLength, c.max
	for deltaY != 0 {
		if y < deltaY {
			deltaY = y
		}
		nextY := y - deltaY
		if nextY <= c.min {
			deltaY--
			continue
		}
		nextX := c.inverseAfterIdeal(nextY)
		prev := points[len(points)-1]
		if nextX-prev[0] > maxLength {
			deltaY--
			continue
		}
		if nextX >= _million {
			// interpolate the ordinate at x = 1 from this point and the previous one
			dy := (nextX - _million) * (prev[1] - nextY) / (nextX - prev[0])
			return append(points, [2]uint64{_million, nextY + dy})
		}
		points = append(points, [2]uint64{nextX, nextY})
		y = nextY
	}
	return append(points, [2]uint64{_million, c.at(_million)})
}

// inverseAfterIdeal returns x beyond the ideal stake such that the curve equals y
func (c inpos) inverseAfterIdeal(y uint64) uint64 {
	if y <= c.min {
		return math.MaxUint32
	}
	l := math.Log2(float64(c.max-c.min) / float64(y-c.min))
	return c.ideal + uint64(float64(c.falloff)*l)
}

func (c inpos) at(x uint64) uint64 {
	if x <= c.ideal {
		return c.min + (c.max-c.min)*x/c.ideal
	}
	exp := (float64(c.ideal) - float64(x)) / float64(c.falloff)
	return c.min + uint64(float64(c.max-c.min)*math.Pow(2, exp))
}

// CalculateForFractionTimesDenominator returns curve(n/d) * d, interpolating linearly between the points
func (pl *PiecewiseLinear) CalculateForFractionTimesDenominator(n, d *big.Int) *big.Int {
	if len(pl.Points) == 0 {
		return new(big.Int)
	}
	if n.Cmp(d) > 0 {
		n = d
	}
	next := -1
	for i, pt := range pl.Points {
		if n.Cmp(pt.X.Mul(d)) < 0 {
			next = i
			break
		}
	}
	switch next {
	case -1:
		return pl.Points[len(pl.Points)-1].Y.Mul(d)
	case 0:
		return pl.Points[0].Y.Mul(d)
	}
	prev, nxt := pl.Points[next-1], pl.Points[next]
	prevX := prev.X.Mul(d)
	dx := absSub(n, prevX)
	dy := new(big.Int).Mul(dx, big.NewInt(absDiff(nxt.Y.Parts(), prev.Y.Parts())))
	dy.Quo(dy, big.NewInt(absDiff(nxt.X.Parts(), prev.X.Parts())))

	base := prev.Y.Mul(d)
	if (n.Cmp(prevX) > 0) == (nxt.Y > prev.Y) {
		return base.Add(base, dy)
	}
	return saturatingSub(base, dy)
}

// computeTotalPayout returns the validator payout of an era and the maximum that could have been paid. Once the
// issuance exceeds the inflation cap a fixed yearly reward is paid instead.
func (p *Protocol) computeTotalPayout(staked, issuance *big.Int, eraDurationMs uint64) (*big.Int, *big.Int) {
	portion := perbill.FromRationalUint64(eraDurationMs, _millisecondsPerYear)
	if issuance.Cmp(p.cfg.MaxVariableInflationTotalIssuance()) >= 0 {
		reward := portion.Mul(p.cfg.FixedYearlyReward())
		return reward, new(big.Int).Set(reward)
	}
	payout := portion.Mul(p.curve.CalculateForFractionTimesDenominator(staked, issuance))
	maximum := portion.Mul(p.curve.Maximum.Mul(issuance))
	return payout, maximum
}

func absSub(a, b *big.Int) *big.Int {
	d := new(big.Int).Sub(a, b)
	return d.Abs(d)
}

func absDiff(a, b uint32) int64 {
	if a > b {
		return int64(a - b)
	}
	return int64(b - a)
}
