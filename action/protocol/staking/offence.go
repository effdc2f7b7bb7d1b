// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package staking

import (
	"bytes"
	"context"
	"math/big"
	"sort"

	"github.com/iotexproject/iotex-address/address"
	"go.uber.org/zap"

	"github.com/iotexproject/iotex-npos/action"
	"github.com/iotexproject/iotex-npos/action/protocol"
	"github.com/iotexproject/iotex-npos/action/protocol/staking/slashing"
)

// handleReportOffence slashes the reported validators, right away or deferred by SlashDeferDuration eras
func (p *Protocol) handleReportOffence(ctx context.Context, act *action.ReportOffence, sm protocol.StateManager) error {
	if err := protocol.EnsureOrigin(ctx, protocol.OriginRoot); err != nil {
		return err
	}
	active, ok, err := p.ActiveEra(sm)
	if err != nil {
		return err
	}
	if !ok {
		p.logger.Warn("Offence reported before the first era")
		return nil
	}
	activeStart, ok, err := p.erasStartSessionIndex(sm, active.Index)
	if err != nil {
		return err
	}
	if !ok {
		p.logger.Error("Missing start session of the active era", zap.Uint32("era", active.Index))
	}

	slashSession := act.SlashSession()
	slashEra := active.Index
	if slashSession < activeStart {
		bonded, err := p.bondedEras(sm)
		if err != nil {
			return err
		}
		found := false
		for i := len(bonded) - 1; i >= 0; i-- {
			if bonded[i].Session <= slashSession {
				slashEra, found = bonded[i].Era, true
				break
			}
		}
		if !found {
			p.emit(ctx, &OldSlashingReportDiscardedEvent{Session: slashSession})
			return nil
		}
	}

	if _, ok, err := p.earliestUnappliedSlash(sm); err != nil {
		return err
	} else if !ok {
		if err := putUint32(sm, _earliestUnappliedKey, active.Index); err != nil {
			return err
		}
	}
	slashingSwitch, err := p.SlashingSwitch(sm)
	if err != nil {
		return err
	}
	invulnerables, err := p.invulnerables(sm)
	if err != nil {
		return err
	}
	isInvulnerable := make(map[string]struct{}, len(invulnerables))
	for _, a := range invulnerables {
		isInvulnerable[a.String()] = struct{}{}
	}
	deferred, err := p.unappliedSlashes(sm, active.Index)
	if err != nil {
		return err
	}
	windowStart := saturatingSub32(active.Index, p.cfg.BondingDuration)

	fractions := act.Fractions()
	for i, details := range act.Offenders() {
		stash := details.Offender
		if _, ok := isInvulnerable[stash.String()]; ok {
			continue
		}
		exposure, err := p.ErasStakers(sm, slashEra, stash)
		if err != nil {
			return err
		}
		u, err := p.slasher.ComputeSlash(ctx, sm, &slashing.Params{
			Stash:            stash,
			Slash:            fractions[i],
			Exposure:         toSlashingExposure(exposure, slashingSwitch.SlashesNominators()),
			SlashEra:         slashEra,
			WindowStart:      windowStart,
			Now:              active.Index,
			RewardProportion: p.cfg.SlashRewardFraction,
		})
		if err != nil {
			return err
		}
		if u == nil {
			continue
		}
		u.Reporters = details.Reporters
		p.logger.Info("Offence slashed",
			zap.String("stash", stash.String()),
			zap.Uint32("era", slashEra),
			zap.Stringer("fraction", fractions[i]),
			zap.Bool("deferred", p.cfg.SlashDeferDuration > 0))
		if p.cfg.SlashDeferDuration == 0 {
			if err := p.slasher.ApplySlash(ctx, sm, u); err != nil {
				return err
			}
			continue
		}
		deferred = append(deferred, u)
	}
	if p.cfg.SlashDeferDuration == 0 {
		return nil
	}
	return p.putUnappliedSlashes(sm, active.Index, deferred)
}

// toSlashingExposure hands the exposure to the slasher, leaving the nominators out unless they can be slashed
func toSlashingExposure(e *Exposure, withNominators bool) *slashing.Exposure {
	out := &slashing.Exposure{Own: cloneBig(e.Own), Total: cloneBig(e.Total)}
	if !withNominators {
		return out
	}
	for _, o := range e.Others {
		out.Others = append(out.Others, slashing.Individual{Who: o.Who, Value: cloneBig(o.Value)})
	}
	return out
}

// AddOffendingValidator records an offending session validator for the rest of the era. Too many offenders force
// a new era.
func (p *Protocol) AddOffendingValidator(ctx context.Context, sm protocol.StateManager, stash address.Address, disable bool) error {
	validators, err := p.session.Validators(sm)
	if err != nil {
		return err
	}
	isValidator := false
	for _, v := range validators {
		if address.Equal(v, stash) {
			isValidator = true
			break
		}
	}
	if !isValidator {
		return nil
	}
	offending, err := p.offendingValidators(sm)
	if err != nil {
		return err
	}
	i := sort.Search(len(offending), func(i int) bool {
		return bytes.Compare(offending[i].Stash.Bytes(), stash.Bytes()) >= 0
	})
	if i < len(offending) && address.Equal(offending[i].Stash, stash) {
		if !disable || offending[i].Disabled {
			return nil
		}
		offending[i].Disabled = true
		if err := p.putOffendingValidators(sm, offending); err != nil {
			return err
		}
		_, err := p.session.DisableValidator(sm, stash)
		return err
	}
	offending = append(offending, OffendingValidator{})
	copy(offending[i+1:], offending[i:])
	offending[i] = OffendingValidator{Stash: stash, Disabled: disable}
	if err := p.putOffendingValidators(sm, offending); err != nil {
		return err
	}
	threshold := p.cfg.OffendingValidatorsThreshold.MulUint64(uint64(len(validators)))
	if uint64(len(offending)) > threshold {
		p.logger.Info("Offending validators over threshold, forcing a new era", zap.Int("offending", len(offending)))
		if err := p.EnsureNewEra(sm); err != nil {
			return err
		}
	}
	if disable {
		_, err := p.session.DisableValidator(sm, stash)
		return err
	}
	return nil
}

// DoSlash takes the value off the ledger of a stash and slashes the balance by what was taken
func (p *Protocol) DoSlash(ctx context.Context, sm protocol.StateManager, stash address.Address, value *big.Int) (*big.Int, *big.Int, error) {
	controller, ok, err := p.bonded(sm, stash)
	if err != nil || !ok {
		return new(big.Int), new(big.Int), err
	}
	l, ok, err := p.ledger(sm, controller)
	if err != nil || !ok {
		return new(big.Int), new(big.Int), err
	}
	taken := l.Slash(value, p.currency.MinimumBalance())
	if taken.Sign() == 0 {
		return taken, new(big.Int), nil
	}
	if err := p.updateLedger(sm, controller, l); err != nil {
		return nil, nil, err
	}
	slashed, err := p.currency.Slash(sm, stash, taken)
	if err != nil {
		return nil, nil, err
	}
	p.emit(ctx, &SlashEvent{Stash: stash.String(), Amount: cloneBig(taken)})
	return taken, slashed, nil
}

// DepositCreating pays a reporter of an offence
func (p *Protocol) DepositCreating(sm protocol.StateManager, who address.Address, amount *big.Int) error {
	return p.currency.DepositCreating(sm, who, amount)
}
