// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package staking

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/iotexproject/iotex-npos/action"
	"github.com/iotexproject/iotex-npos/action/protocol"
)

func (p *Protocol) handleSetValidatorCount(ctx context.Context, act *action.SetValidatorCount, sm protocol.StateManager) error {
	if err := protocol.EnsureOrigin(ctx, protocol.OriginRoot); err != nil {
		return err
	}
	return p.putValidatorCount(sm, act.Count())
}

func (p *Protocol) handleIncreaseValidatorCount(ctx context.Context, act *action.IncreaseValidatorCount, sm protocol.StateManager) error {
	if err := protocol.EnsureOrigin(ctx, protocol.OriginRoot); err != nil {
		return err
	}
	old, err := p.ValidatorCount(sm)
	if err != nil {
		return err
	}
	if old > math.MaxUint32-act.Additional() {
		return ErrOverflow
	}
	return p.putValidatorCount(sm, old+act.Additional())
}

func (p *Protocol) handleScaleValidatorCount(ctx context.Context, act *action.ScaleValidatorCount, sm protocol.StateManager) error {
	if err := protocol.EnsureOrigin(ctx, protocol.OriginRoot); err != nil {
		return err
	}
	old, err := p.ValidatorCount(sm)
	if err != nil {
		return err
	}
	extra := act.Factor().MulFloorUint64(uint64(old))
	if uint64(old)+extra > math.MaxUint32 {
		return ErrOverflow
	}
	return p.putValidatorCount(sm, old+uint32(extra))
}

func (p *Protocol) handleForceEra(ctx context.Context, f Forcing, sm protocol.StateManager) error {
	if err := protocol.EnsureOrigin(ctx, protocol.OriginRoot); err != nil {
		return err
	}
	p.logger.Info("Forcing era", zap.Stringer("mode", f))
	return p.putForceEra(sm, f)
}

func (p *Protocol) handleSetInvulnerables(ctx context.Context, act *action.SetInvulnerables, sm protocol.StateManager) error {
	if err := protocol.EnsureOrigin(ctx, protocol.OriginRoot); err != nil {
		return err
	}
	return p.putInvulnerables(sm, act.Invulnerables())
}

func (p *Protocol) handleForceUnstake(ctx context.Context, act *action.ForceUnstake, sm protocol.StateManager) error {
	if err := protocol.EnsureOrigin(ctx, protocol.OriginRoot); err != nil {
		return err
	}
	if err := p.killStash(sm, act.Stash(), act.NumSlashingSpans()); err != nil {
		return err
	}
	return p.currency.RemoveLock(sm, act.Stash())
}

func (p *Protocol) handleCancelDeferredSlash(ctx context.Context, act *action.CancelDeferredSlash, sm protocol.StateManager) error {
	if err := protocol.EnsureOrigin(ctx, protocol.OriginRoot); err != nil {
		return err
	}
	indices := act.Indices()
	if len(indices) == 0 {
		return ErrEmptyTargets
	}
	for i := 1; i < len(indices); i++ {
		if indices[i] <= indices[i-1] {
			return ErrNotSortedAndUnique
		}
	}
	queue, err := p.unappliedSlashes(sm, act.Era())
	if err != nil {
		return err
	}
	if int(indices[len(indices)-1]) >= len(queue) {
		return ErrInvalidSlashIndex
	}
	for removed, idx := range indices {
		i := int(idx) - removed
		queue = append(queue[:i], queue[i+1:]...)
	}
	return p.putUnappliedSlashes(sm, act.Era(), queue)
}

func (p *Protocol) handleSetHistoryDepth(ctx context.Context, act *action.SetHistoryDepth, sm protocol.StateManager) error {
	if err := protocol.EnsureOrigin(ctx, protocol.OriginRoot); err != nil {
		return err
	}
	if act.Depth() == 0 {
		return ErrIncorrectHistoryDepth
	}
	current, ok, err := p.CurrentEra(sm)
	if err != nil {
		return err
	}
	if ok {
		old, err := p.HistoryDepth(sm)
		if err != nil {
			return err
		}
		for e := saturatingSub32(current, old); e < saturatingSub32(current, act.Depth()); e++ {
			if err := p.clearEraInformation(sm, e); err != nil {
				return err
			}
		}
	}
	return p.putHistoryDepth(sm, act.Depth())
}

func (p *Protocol) handleSetCommissionCap(ctx context.Context, act *action.SetCommissionCap, sm protocol.StateManager) error {
	if err := protocol.EnsureOrigin(ctx, protocol.OriginGovernance); err != nil {
		return err
	}
	old, err := p.CommissionCap(sm)
	if err != nil {
		return err
	}
	newCap := act.Cap()
	if old == newCap {
		return ErrNoChange
	}
	validators, err := p.Validators(sm)
	if err != nil {
		return err
	}
	for _, v := range validators {
		prefs, ok, err := p.validatorPrefs(sm, v)
		if err != nil {
			return err
		}
		if !ok || prefs.Commission <= newCap {
			continue
		}
		prefs.Commission = newCap
		if err := p.putValidatorPrefs(sm, v, prefs); err != nil {
			return err
		}
	}
	if err := p.putCommissionCap(sm, newCap); err != nil {
		return err
	}
	p.emit(ctx, &CommissionCapUpdatedEvent{Old: old, New: newCap})
	return nil
}

func (p *Protocol) handleSetMinBondThreshold(ctx context.Context, act *action.SetMinBondThreshold, sm protocol.StateManager) error {
	if err := protocol.EnsureOrigin(ctx, protocol.OriginGovernance); err != nil {
		return err
	}
	if err := p.putMinBondThreshold(sm, act.Threshold()); err != nil {
		return err
	}
	p.emit(ctx, &MinimumBondThresholdUpdatedEvent{Threshold: cloneBig(act.Threshold())})
	return nil
}

func (p *Protocol) handleChangeSlashingAllowedFor(ctx context.Context, act *action.ChangeSlashingAllowedFor, sm protocol.StateManager) error {
	if err := protocol.EnsureOrigin(ctx, protocol.OriginGovernance); err != nil {
		return err
	}
	if err := p.putSlashingSwitch(sm, act.Switch()); err != nil {
		return err
	}
	p.emit(ctx, &SlashingAllowedForChangedEvent{Switch: act.Switch().String()})
	return nil
}

func saturatingSub32(a, b uint32) uint32 {
	if a <= b {
		return 0
	}
	return a - b
}

// allowedValidators is the most validators one identity may run
func (p *Protocol) allowedValidators(sr protocol.StateReader) (uint32, error) {
	count, err := p.ValidatorCount(sr)
	if err != nil {
		return 0, err
	}
	allowed := p.cfg.MaxValidatorPerIdentity.MulUint64(uint64(count))
	if allowed < 1 {
		allowed = 1
	}
	return uint32(allowed), nil
}
