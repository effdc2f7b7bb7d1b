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
	"github.com/iotexproject/iotex-npos/action/protocol/staking/slashing"
)

func (p *Protocol) handleBond(ctx context.Context, act *action.Bond, sm protocol.StateManager) error {
	if act.Value().Cmp(p.cfg.MinimumBond()) < 0 {
		return ErrBondTooSmall
	}
	actionCtx, err := protocol.EnsureSigned(ctx)
	if err != nil {
		return err
	}
	return p.bond(ctx, sm, actionCtx.Caller, act.Controller(), act.Value(), act.Payee())
}

func (p *Protocol) bond(ctx context.Context, sm protocol.StateManager, stash, controller address.Address, value *big.Int, dest action.RewardDestination) error {
	if value.Cmp(p.cfg.MinimumBond()) < 0 {
		return ErrBondTooSmall
	}
	if _, ok, err := p.bonded(sm, stash); err != nil {
		return err
	} else if ok {
		return ErrAlreadyBonded
	}
	if _, ok, err := p.ledger(sm, controller); err != nil {
		return err
	} else if ok {
		return ErrAlreadyPaired
	}
	if value.Cmp(p.currency.MinimumBalance()) < 0 {
		return ErrInsufficientValue
	}
	if err := p.putBonded(sm, stash, controller); err != nil {
		return err
	}
	if err := p.putPayee(sm, stash, dest); err != nil {
		return err
	}

	free, err := p.currency.FreeBalance(sm, stash)
	if err != nil {
		return err
	}
	value = minBig(value, free)
	l := NewLedger(stash, value)
	current, ok, err := p.CurrentEra(sm)
	if err != nil {
		return err
	}
	if ok {
		depth, err := p.HistoryDepth(sm)
		if err != nil {
			return err
		}
		// eras before bonding are considered claimed
		from := uint32(0)
		if current > depth {
			from = current - depth
		}
		for e := from; e < current; e++ {
			l.ClaimedRewards = append(l.ClaimedRewards, e)
		}
	}
	p.emit(ctx, &BondedEvent{Stash: stash.String(), Amount: cloneBig(value)})
	return p.updateLedger(sm, controller, l)
}

func (p *Protocol) handleBondExtra(ctx context.Context, act *action.BondExtra, sm protocol.StateManager) error {
	if err := p.ensureWindowClosed(sm); err != nil {
		return err
	}
	actionCtx, err := protocol.EnsureSigned(ctx)
	if err != nil {
		return err
	}
	stash := actionCtx.Caller
	controller, ok, err := p.bonded(sm, stash)
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
	free, err := p.currency.FreeBalance(sm, stash)
	if err != nil {
		return err
	}
	if free.Cmp(l.Total) < 0 {
		return nil
	}
	extra := minBig(new(big.Int).Sub(free, l.Total), act.MaxAdditional())
	l.Total.Add(l.Total, extra)
	l.Active.Add(l.Active, extra)
	if l.Active.Cmp(p.currency.MinimumBalance()) < 0 {
		return ErrInsufficientValue
	}
	if err := p.updateLedger(sm, controller, l); err != nil {
		return err
	}
	p.emit(ctx, &BondedEvent{Stash: stash.String(), Amount: extra})
	return nil
}

func (p *Protocol) handleUnbond(ctx context.Context, act *action.Unbond, sm protocol.StateManager) error {
	if err := p.ensureWindowClosed(sm); err != nil {
		return err
	}
	actionCtx, err := protocol.EnsureSigned(ctx)
	if err != nil {
		return err
	}
	controller := actionCtx.Caller
	l, err := p.controllerLedger(sm, controller)
	if err != nil {
		return err
	}
	if uint32(len(l.Unlocking)) >= p.cfg.MaxUnlockingChunks {
		return ErrNoMoreChunks
	}
	if _, isValidator, err := p.validatorPrefs(sm, l.Stash); err != nil {
		return err
	} else if isValidator {
		threshold, err := p.MinBondThreshold(sm)
		if err != nil {
			return err
		}
		if saturatingSub(l.Active, act.Value()).Cmp(threshold) < 0 {
			return ErrInvalidValidatorUnbondAmount
		}
	}
	return p.unbondBalance(ctx, sm, controller, l, act.Value())
}

// unbondBalance schedules up to value of the active stake for release after the bonding duration
func (p *Protocol) unbondBalance(ctx context.Context, sm protocol.StateManager, controller address.Address, l *Ledger, value *big.Int) error {
	value = minBig(value, l.Active)
	if value.Sign() == 0 {
		return nil
	}
	l.Active.Sub(l.Active, value)
	// dust left below the existential deposit is unbonded too
	if l.Active.Cmp(p.currency.MinimumBalance()) < 0 {
		value.Add(value, l.Active)
		l.Active.SetInt64(0)
	}
	current, _, err := p.CurrentEra(sm)
	if err != nil {
		return err
	}
	l.Unlocking = append(l.Unlocking, UnlockChunk{Value: cloneBig(value), Era: current + p.cfg.BondingDuration})
	if err := p.updateLedger(sm, controller, l); err != nil {
		return err
	}
	p.emit(ctx, &UnbondedEvent{Stash: l.Stash.String(), Amount: value})
	return nil
}

func (p *Protocol) handleRebond(ctx context.Context, act *action.Rebond, sm protocol.StateManager) error {
	if err := p.ensureWindowClosed(sm); err != nil {
		return err
	}
	actionCtx, err := protocol.EnsureSigned(ctx)
	if err != nil {
		return err
	}
	l, err := p.controllerLedger(sm, actionCtx.Caller)
	if err != nil {
		return err
	}
	if len(l.Unlocking) == 0 {
		return ErrNoUnlockChunk
	}
	before := cloneBig(l.Active)
	l.Rebond(act.Value())
	if l.Active.Cmp(p.currency.MinimumBalance()) < 0 {
		return ErrInsufficientValue
	}
	if err := p.updateLedger(sm, actionCtx.Caller, l); err != nil {
		return err
	}
	p.emit(ctx, &BondedEvent{Stash: l.Stash.String(), Amount: before.Sub(l.Active, before)})
	return nil
}

func (p *Protocol) handleWithdrawUnbonded(ctx context.Context, act *action.WithdrawUnbonded, sm protocol.StateManager) error {
	if err := p.ensureWindowClosed(sm); err != nil {
		return err
	}
	actionCtx, err := protocol.EnsureSigned(ctx)
	if err != nil {
		return err
	}
	controller := actionCtx.Caller
	l, err := p.controllerLedger(sm, controller)
	if err != nil {
		return err
	}
	stash, oldTotal := l.Stash, cloneBig(l.Total)
	if current, ok, err := p.CurrentEra(sm); err != nil {
		return err
	} else if ok {
		l.ConsolidateUnlocked(current)
	}
	if len(l.Unlocking) == 0 && l.Active.Cmp(p.currency.MinimumBalance()) < 0 {
		// nothing is left at stake, the stash is reaped
		if err := p.killStash(sm, stash, act.NumSlashingSpans()); err != nil {
			return err
		}
		if err := p.currency.RemoveLock(sm, stash); err != nil {
			return err
		}
	} else if err := p.updateLedger(sm, controller, l); err != nil {
		return err
	}
	if l.Total.Cmp(oldTotal) < 0 {
		p.emit(ctx, &WithdrawnEvent{Stash: stash.String(), Amount: oldTotal.Sub(oldTotal, l.Total)})
	}
	return nil
}

func (p *Protocol) handleSetPayee(ctx context.Context, act *action.SetPayee, sm protocol.StateManager) error {
	actionCtx, err := protocol.EnsureSigned(ctx)
	if err != nil {
		return err
	}
	l, err := p.controllerLedger(sm, actionCtx.Caller)
	if err != nil {
		return err
	}
	return p.putPayee(sm, l.Stash, act.Payee())
}

func (p *Protocol) handleSetController(ctx context.Context, act *action.SetController, sm protocol.StateManager) error {
	actionCtx, err := protocol.EnsureSigned(ctx)
	if err != nil {
		return err
	}
	stash := actionCtx.Caller
	old, ok, err := p.bonded(sm, stash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotStash
	}
	controller := act.Controller()
	if _, ok, err := p.ledger(sm, controller); err != nil {
		return err
	} else if ok {
		return ErrAlreadyPaired
	}
	if address.Equal(old, controller) {
		return nil
	}
	l, ok, err := p.ledger(sm, old)
	if err != nil {
		return err
	}
	if err := p.putBonded(sm, stash, controller); err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := delItem(sm, accountKey(_ledgerTag, old)); err != nil {
		return err
	}
	return p.putLedger(sm, controller, l)
}

// killStash removes every staking record of a stash. The span count must cover the stored slashing spans.
func (p *Protocol) killStash(sm protocol.StateManager, stash address.Address, numSlashingSpans uint32) error {
	controller, ok, err := p.bonded(sm, stash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotStash
	}
	if err := slashing.ClearStashMetadata(sm, stash, numSlashingSpans); err != nil {
		return err
	}
	for _, key := range [][]byte{
		accountKey(_bondedTag, stash),
		accountKey(_ledgerTag, controller),
		accountKey(_payeeTag, stash),
	} {
		if err := delItem(sm, key); err != nil {
			return err
		}
	}
	if err := p.ChillStash(sm, stash); err != nil {
		return errors.Wrapf(err, "failed to chill stash %s", stash.String())
	}
	p.logger.Debug("Killed stash", zap.String("stash", stash.String()))
	return nil
}

func (p *Protocol) handleReapStash(ctx context.Context, act *action.ReapStash, sm protocol.StateManager) error {
	stash := act.Stash()
	controller, ok, err := p.bonded(sm, stash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotStash
	}
	ed := p.currency.MinimumBalance()
	total, err := p.currency.TotalBalance(sm, stash)
	if err != nil {
		return err
	}
	reapable := total.Cmp(ed) <= 0
	if !reapable {
		l, ok, err := p.ledger(sm, controller)
		if err != nil {
			return err
		}
		reapable = !ok || l.Total.Cmp(ed) < 0
	}
	if !reapable {
		return ErrFundedTarget
	}
	if err := p.killStash(sm, stash, act.NumSlashingSpans()); err != nil {
		return err
	}
	return p.currency.RemoveLock(sm, stash)
}
