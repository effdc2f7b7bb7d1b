// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package staking

import (
	"context"
	"math/big"

	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/iotexproject/iotex-npos/action"
	"github.com/iotexproject/iotex-npos/action/protocol"
	"github.com/iotexproject/iotex-npos/pkg/perbill"
)

func (p *Protocol) handlePayoutStakers(ctx context.Context, act *action.PayoutStakers, sm protocol.StateManager) error {
	if err := p.ensureWindowClosed(sm); err != nil {
		return err
	}
	if _, err := protocol.EnsureSigned(ctx); err != nil {
		return err
	}
	return p.payoutStakers(ctx, sm, act.Validator(), act.Era())
}

func (p *Protocol) handlePayoutStakersBySystem(ctx context.Context, act *action.PayoutStakersBySystem, sm protocol.StateManager) error {
	if err := p.ensureWindowClosed(sm); err != nil {
		return err
	}
	if err := protocol.EnsureOrigin(ctx, protocol.OriginRoot); err != nil {
		return err
	}
	return p.payoutStakers(ctx, sm, act.Validator(), act.Era())
}

// payoutStakers pays the reward of a validator and its rewarded nominators for an era
func (p *Protocol) payoutStakers(ctx context.Context, sm protocol.StateManager, validator address.Address, era uint32) error {
	current, ok, err := p.CurrentEra(sm)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrap(ErrInvalidEraToReward, "no era planned yet")
	}
	depth, err := p.HistoryDepth(sm)
	if err != nil {
		return err
	}
	oldest := saturatingSub32(current, depth)
	if era > current || era < oldest {
		return errors.Wrapf(ErrInvalidEraToReward, "era %d outside [%d, %d]", era, oldest, current)
	}
	eraPayout, ok, err := p.ErasValidatorReward(sm, era)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(ErrInvalidEraToReward, "era %d has not ended", era)
	}
	controller, ok, err := p.bonded(sm, validator)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotStash
	}
	l, err := p.controllerLedger(sm, controller)
	if err != nil {
		return err
	}
	if l.HasClaimed(era) {
		return ErrAlreadyClaimed
	}
	l.Claim(era, oldest)
	if err := p.putLedger(sm, controller, l); err != nil {
		return err
	}

	exposure, err := p.ErasStakersClipped(sm, era, validator)
	if err != nil {
		return err
	}
	points, err := p.ErasRewardPoints(sm, era)
	if err != nil {
		return err
	}
	validatorPoints := points.Of(validator)
	if validatorPoints == 0 {
		return nil
	}
	part := perbill.FromRationalUint64(uint64(validatorPoints), uint64(points.Total))
	totalPayout := part.Mul(eraPayout)
	prefs, err := p.ErasValidatorPrefs(sm, era, validator)
	if err != nil {
		return err
	}
	commission := prefs.Commission.Mul(totalPayout)
	leftover := saturatingSub(totalPayout, commission)

	ownPart := perbill.FromRational(exposure.Own, exposure.Total)
	validatorPayout := ownPart.Mul(leftover)
	validatorPayout.Add(validatorPayout, commission)
	if err := p.makePayout(ctx, sm, validator, validatorPayout); err != nil {
		return err
	}
	for _, o := range exposure.Others {
		share := perbill.FromRational(o.Value, exposure.Total).Mul(leftover)
		if err := p.makePayout(ctx, sm, o.Who, share); err != nil {
			return err
		}
	}
	return nil
}

// makePayout credits the reward of a stash to its payee
func (p *Protocol) makePayout(ctx context.Context, sm protocol.StateManager, stash address.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	dest, err := p.payee(sm, stash)
	if err != nil {
		return err
	}
	paid, err := p.deposit(sm, stash, dest, amount)
	if err != nil {
		return errors.Wrapf(err, "failed to pay %s to %s", amount, stash.String())
	}
	if paid {
		p.emit(ctx, &RewardEvent{Stash: stash.String(), Amount: cloneBig(amount)})
	}
	return nil
}

func (p *Protocol) deposit(sm protocol.StateManager, stash address.Address, dest action.RewardDestination, amount *big.Int) (bool, error) {
	switch dest.Kind {
	case action.PayeeNone:
		return false, nil
	case action.PayeeStash:
		return true, p.currency.DepositIntoExisting(sm, stash, amount)
	case action.PayeeAccount:
		return true, p.currency.DepositCreating(sm, dest.Account, amount)
	}
	controller, ok, err := p.bonded(sm, stash)
	if err != nil || !ok {
		return false, err
	}
	switch dest.Kind {
	case action.PayeeController:
		return true, p.currency.DepositCreating(sm, controller, amount)
	case action.PayeeStaked:
		l, ok, err := p.ledger(sm, controller)
		if err != nil || !ok {
			return false, err
		}
		if err := p.currency.DepositIntoExisting(sm, stash, amount); err != nil {
			return false, err
		}
		l.Active.Add(l.Active, amount)
		l.Total.Add(l.Total, amount)
		return true, p.updateLedger(sm, controller, l)
	default:
		return false, errors.Errorf("unknown payee kind %d", dest.Kind)
	}
}

// schedulePayouts queues one system payout per validator at consecutive blocks after the current one
func (p *Protocol) schedulePayouts(ctx context.Context, sm protocol.StateManager, era uint32, validators []address.Address) error {
	height := protocol.MustGetBlockCtx(ctx).BlockHeight
	for i, v := range validators {
		at := height + 1 + uint64(i)
		l, err := p.scheduledPayouts(sm, at)
		if err != nil {
			p.emit(ctx, &RewardPaymentSchedulingInterruptedEvent{Validator: v.String(), Era: era, Reason: err.Error()})
			continue
		}
		if err := p.putScheduledPayouts(sm, at, append(l, ScheduledPayout{Validator: v, Era: era})); err != nil {
			return err
		}
	}
	return nil
}

// runScheduledPayouts executes the payouts due at the current block. A failed payout is dropped, it can still be
// claimed by a signed action.
func (p *Protocol) runScheduledPayouts(ctx context.Context, sm protocol.StateManager) error {
	height := protocol.MustGetBlockCtx(ctx).BlockHeight
	due, err := p.scheduledPayouts(sm, height)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}
	for _, s := range due {
		snapshot := sm.Snapshot()
		if err := p.payoutStakers(ctx, sm, s.Validator, s.Era); err != nil {
			if rerr := sm.Revert(snapshot); rerr != nil {
				return rerr
			}
			p.logger.Debug("Scheduled payout failed",
				zap.String("validator", s.Validator.String()),
				zap.Uint32("era", s.Era),
				zap.Error(err))
			p.emit(ctx, &RewardPaymentSchedulingInterruptedEvent{Validator: s.Validator.String(), Era: s.Era, Reason: err.Error()})
		}
	}
	return p.putScheduledPayouts(sm, height, nil)
}

// RewardByIDs adds reward points to validators in the active era
func (p *Protocol) RewardByIDs(sm protocol.StateManager, points map[string]uint32) error {
	active, ok, err := p.ActiveEra(sm)
	if err != nil || !ok {
		return err
	}
	pts, err := p.ErasRewardPoints(sm, active.Index)
	if err != nil {
		return err
	}
	for who, n := range points {
		addr, err := address.FromString(who)
		if err != nil {
			return err
		}
		pts.Add(addr, n)
	}
	return putItem(sm, pts, eraPrefix(_erasPointsTag, active.Index))
}
