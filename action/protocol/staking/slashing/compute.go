// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package slashing computes and applies the slashes of offending validators and their nominators.
//
// Slashes are bounded per span: a stash is chilled when slashed in its current span, which ends the span, and any
// further offence within a span only slashes the difference to the largest slash already taken in it. Reporters
// are rewarded a fraction of the slash, halved for every subsequent report in the same span.
package slashing

import (
	"context"
	"math/big"

	"github.com/iotexproject/iotex-address/address"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/iotexproject/iotex-npos/action/protocol"
	"github.com/iotexproject/iotex-npos/pkg/log"
	"github.com/iotexproject/iotex-npos/pkg/perbill"
)

// _rewardF1 is the share of the reporter reward paid out on the first report in a span
var _rewardF1 = perbill.FromPercent(50)

var _slashMtc = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "npos_slashing",
		Help: "Slashes computed and applied.",
	},
	[]string{"type"},
)

func init() {
	prometheus.MustRegister(_slashMtc)
}

type (
	// Host is the staking side of a slash
	Host interface {
		// ChillStash removes the stash from the validator and nominator sets
		ChillStash(protocol.StateManager, address.Address) error
		// EnsureNewEra forces a new era at the next session
		EnsureNewEra(protocol.StateManager) error
		// AddOffendingValidator records the offender for the rest of the era, disabling it in the session if asked
		AddOffendingValidator(context.Context, protocol.StateManager, address.Address, bool) error
		// DoSlash slashes the bonded ledger of a stash. It returns the amount taken off the ledger and the amount
		// actually taken from the balance.
		DoSlash(context.Context, protocol.StateManager, address.Address, *big.Int) (*big.Int, *big.Int, error)
		// DepositCreating pays a reporter
		DepositCreating(protocol.StateManager, address.Address, *big.Int) error
	}

	// Params describes one offence of a validator
	Params struct {
		Stash    address.Address
		Slash    perbill.Perbill
		Exposure *Exposure
		// SlashEra is the era the offence was committed in
		SlashEra uint32
		// WindowStart is the first era whose stake can still be slashed
		WindowStart uint32
		// Now is the active era
		Now              uint32
		RewardProportion perbill.Perbill
	}

	// Slasher computes and applies slashes on behalf of the host
	Slasher struct {
		host   Host
		logger *zap.Logger
	}

	inspector struct {
		sm               protocol.StateManager
		stash            address.Address
		spans            *Spans
		windowStart      uint32
		rewardProportion perbill.Perbill
		paidOut          *big.Int
		slashOf          *big.Int
		dirty            bool
	}
)

// NewSlasher creates a slasher
func NewSlasher(host Host) *Slasher {
	return &Slasher{host: host, logger: log.Logger("slashing")}
}

// ComputeSlash records an offence and returns the slash it results in, nil if nothing is to be slashed. A zero slash
// still kicks the validator out if the offence falls into its current span.
func (s *Slasher) ComputeSlash(ctx context.Context, sm protocol.StateManager, p *Params) (*UnappliedSlash, error) {
	ownSlash := p.Slash.Mul(p.Exposure.Own)
	if p.Slash.Mul(p.Exposure.Total).Sign() == 0 {
		return nil, s.kickOutIfRecent(ctx, sm, p)
	}

	prior := &validatorSlash{Fraction: perbill.Zero, Amount: new(big.Int)}
	if _, err := getState(sm, prior, eraKey(_validatorSlashTag, p.SlashEra, p.Stash)); err != nil {
		return nil, err
	}
	if p.Slash <= prior.Fraction {
		s.logger.Debug("Slash does not exceed the prior one in era",
			zap.String("stash", p.Stash.String()),
			zap.Uint32("era", p.SlashEra),
			zap.Stringer("slash", p.Slash),
			zap.Stringer("prior", prior.Fraction))
		return nil, nil
	}
	if err := putState(sm, &validatorSlash{Fraction: p.Slash, Amount: ownSlash}, eraKey(_validatorSlashTag, p.SlashEra, p.Stash)); err != nil {
		return nil, err
	}

	payout, valSlashed := new(big.Int), new(big.Int)
	spans, err := fetchSpans(sm, p.Stash, p.WindowStart, p.RewardProportion)
	if err != nil {
		return nil, err
	}
	target, ok, err := spans.compareAndUpdate(p.SlashEra, ownSlash)
	if err != nil {
		return nil, err
	}
	if ok && target == spans.spans.SpanIndex {
		// the offence is in the current span, the validator must not stay in the set
		spans.endSpan(p.Now)
		if err := s.host.ChillStash(sm, p.Stash); err != nil {
			return nil, err
		}
		if err := s.host.EnsureNewEra(sm); err != nil {
			return nil, err
		}
	}
	if err := spans.commit(payout, valSlashed); err != nil {
		return nil, err
	}
	if err := s.host.AddOffendingValidator(ctx, sm, p.Stash, true); err != nil {
		return nil, err
	}

	u := &UnappliedSlash{
		Validator: p.Stash,
		Own:       valSlashed,
		Payout:    payout,
	}
	nomPayout, err := s.slashNominators(sm, p, prior.Fraction, u)
	if err != nil {
		return nil, err
	}
	u.Payout.Add(u.Payout, nomPayout)
	_slashMtc.WithLabelValues("computed").Inc()
	return u, nil
}

func (s *Slasher) kickOutIfRecent(ctx context.Context, sm protocol.StateManager, p *Params) error {
	spans, err := fetchSpans(sm, p.Stash, p.WindowStart, p.RewardProportion)
	if err != nil {
		return err
	}
	if span, ok := spans.spans.EraSpan(p.SlashEra); ok && span.Index == spans.spans.SpanIndex {
		spans.endSpan(p.Now)
		if err := s.host.ChillStash(sm, p.Stash); err != nil {
			return err
		}
	}
	if err := spans.commit(new(big.Int), new(big.Int)); err != nil {
		return err
	}
	return s.host.AddOffendingValidator(ctx, sm, p.Stash, false)
}

// slashNominators records the slash of every nominator in the exposure and returns their reporter reward
func (s *Slasher) slashNominators(sm protocol.StateManager, p *Params, priorFraction perbill.Perbill, u *UnappliedSlash) (*big.Int, error) {
	payout := new(big.Int)
	for _, nominator := range p.Exposure.Others {
		nomSlashed := new(big.Int)
		diff := new(big.Int).Sub(p.Slash.Mul(nominator.Value), priorFraction.Mul(nominator.Value))
		if diff.Sign() < 0 {
			diff.SetInt64(0)
		}
		eraSlash := &nominatorSlash{Amount: new(big.Int)}
		key := eraKey(_nominatorSlashTag, p.SlashEra, nominator.Who)
		if _, err := getState(sm, eraSlash, key); err != nil {
			return nil, err
		}
		eraSlash.Amount.Add(eraSlash.Amount, diff)
		if err := putState(sm, eraSlash, key); err != nil {
			return nil, err
		}

		spans, err := fetchSpans(sm, nominator.Who, p.WindowStart, p.RewardProportion)
		if err != nil {
			return nil, err
		}
		target, ok, err := spans.compareAndUpdate(p.SlashEra, eraSlash.Amount)
		if err != nil {
			return nil, err
		}
		if ok && target == spans.spans.SpanIndex {
			spans.endSpan(p.Now)
		}
		if err := spans.commit(payout, nomSlashed); err != nil {
			return nil, err
		}
		u.Others = append(u.Others, Individual{Who: nominator.Who, Value: nomSlashed})
	}
	return payout, nil
}

// fetchSpans loads the spans of a stash, creating them if the stash was never slashed
func fetchSpans(sm protocol.StateManager, stash address.Address, windowStart uint32, rewardProportion perbill.Perbill) (*inspector, error) {
	spans, ok, err := SpansOf(sm, stash)
	if err != nil {
		return nil, err
	}
	if !ok {
		spans = NewSpans(windowStart)
		if err := putState(sm, spans, spansKey(stash)); err != nil {
			return nil, err
		}
	}
	return &inspector{
		sm:               sm,
		stash:            stash,
		spans:            spans,
		windowStart:      windowStart,
		rewardProportion: rewardProportion,
		paidOut:          new(big.Int),
		slashOf:          new(big.Int),
	}, nil
}

// compareAndUpdate records the slash in the span containing the era. Only the excess over the largest slash of the
// span is slashed, and the reporter reward is computed against what the span already paid.
func (in *inspector) compareAndUpdate(era uint32, slash *big.Int) (uint32, bool, error) {
	span, ok := in.spans.EraSpan(era)
	if !ok {
		return 0, false, nil
	}
	rec, err := SpanRecordOf(in.sm, in.stash, span.Index)
	if err != nil {
		return 0, false, err
	}
	var (
		changed bool
		reward  = new(big.Int)
	)
	switch rec.Slashed.Cmp(slash) {
	case -1:
		diff := new(big.Int).Sub(slash, rec.Slashed)
		rec.Slashed = new(big.Int).Set(slash)
		reward = in.reward(slash, rec.PaidOut)
		in.slashOf.Add(in.slashOf, diff)
		if era > in.spans.LastNonzeroSlash {
			in.spans.LastNonzeroSlash = era
		}
		changed = true
	case 0:
		reward = in.reward(slash, rec.PaidOut)
	}
	if reward.Sign() > 0 {
		changed = true
		rec.PaidOut.Add(rec.PaidOut, reward)
		in.paidOut.Add(in.paidOut, reward)
	}
	if changed {
		in.dirty = true
		if err := putState(in.sm, rec, spanRecordKey(in.stash, span.Index)); err != nil {
			return 0, false, err
		}
	}
	return span.Index, true, nil
}

func (in *inspector) reward(slash, paidOut *big.Int) *big.Int {
	r := new(big.Int).Sub(in.rewardProportion.Mul(slash), paidOut)
	if r.Sign() < 0 {
		return new(big.Int)
	}
	return _rewardF1.Mul(r)
}

func (in *inspector) endSpan(now uint32) {
	if in.spans.EndSpan(now) {
		in.dirty = true
	}
}

// commit adds the reward and the slash to the given totals and persists the spans if they changed
func (in *inspector) commit(payout, slashed *big.Int) error {
	payout.Add(payout, in.paidOut)
	slashed.Add(slashed, in.slashOf)
	if !in.dirty {
		return nil
	}
	if from, to, ok := in.spans.Prune(in.windowStart); ok {
		for i := from; i < to; i++ {
			if err := delState(in.sm, spanRecordKey(in.stash, i)); err != nil {
				return err
			}
		}
	}
	return putState(in.sm, in.spans, spansKey(in.stash))
}
