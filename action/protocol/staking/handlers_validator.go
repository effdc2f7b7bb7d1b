// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package staking

import (
	"context"

	mapset "github.com/deckarep/golang-set"
	"github.com/iotexproject/iotex-address/address"

	"github.com/iotexproject/iotex-npos/action"
	"github.com/iotexproject/iotex-npos/action/protocol"
)

func (p *Protocol) handleValidate(ctx context.Context, act *action.Validate, sm protocol.StateManager) error {
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
	stash := l.Stash
	threshold, err := p.MinBondThreshold(sm)
	if err != nil {
		return err
	}
	if l.Active.Cmp(threshold) < 0 {
		return ErrInsufficientValue
	}
	commissionCap, err := p.CommissionCap(sm)
	if err != nil {
		return err
	}
	if act.Commission() > commissionCap {
		return ErrInvalidValidatorCommission
	}
	did, ok, err := p.identity.GetIdentity(sm, stash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrStashIdentityDoesNotExist
	}
	perm, ok, err := p.PermissionedIdentity(sm, did)
	if err != nil {
		return err
	}
	if !ok {
		return ErrStashIdentityNotPermissioned
	}
	if _, isValidator, err := p.validatorPrefs(sm, stash); err != nil {
		return err
	} else if !isValidator {
		if perm.RunningCount >= perm.IntendedCount {
			return ErrHitIntendedValidatorCount
		}
		perm.RunningCount++
		if err := p.putPermissioned(sm, did, perm); err != nil {
			return err
		}
	}
	if err := p.putValidatorPrefs(sm, stash, &ValidatorPrefs{Commission: act.Commission(), Blocked: act.Blocked()}); err != nil {
		return err
	}
	return delItem(sm, accountKey(_nominatorsTag, stash))
}

func (p *Protocol) handleNominate(ctx context.Context, act *action.Nominate, sm protocol.StateManager) error {
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
	stash := l.Stash
	if len(act.Targets()) == 0 {
		return ErrEmptyTargets
	}
	if uint32(len(act.Targets())) > p.cfg.MaxNominations {
		return ErrTooManyTargets
	}

	previous := mapset.NewThreadUnsafeSet()
	if old, ok, err := p.nominations(sm, stash); err != nil {
		return err
	} else if ok {
		for _, t := range old.Targets {
			previous.Add(t.String())
		}
	}
	seen := mapset.NewThreadUnsafeSet()
	targets := make([]address.Address, 0, len(act.Targets()))
	for _, t := range act.Targets() {
		if !seen.Add(t.String()) {
			continue
		}
		prefs, ok, err := p.validatorPrefs(sm, t)
		if err != nil {
			return err
		}
		// a blocked validator keeps the nominations it already had
		if ok && prefs.Blocked && !previous.Contains(t.String()) {
			return ErrBadTarget
		}
		targets = append(targets, t)
	}

	did, ok, err := p.identity.GetIdentity(sm, stash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrStashIdentityDoesNotExist
	}
	// the claim has to outlive the bonding period
	valid, err := p.identity.HasValidCDD(sm, did, now(ctx).Add(p.bondingPeriod))
	if err != nil {
		return err
	}
	if !valid {
		return ErrStashIdentityNotCDDed
	}

	if err := p.releaseRunningValidator(sm, stash); err != nil {
		return err
	}
	current, _, err := p.CurrentEra(sm)
	if err != nil {
		return err
	}
	if err := p.putNominations(sm, stash, &Nominations{Targets: targets, SubmittedIn: current}); err != nil {
		return err
	}
	if err := delItem(sm, accountKey(_validatorsTag, stash)); err != nil {
		return err
	}
	p.emit(ctx, &NominatedEvent{Stash: stash.String(), Targets: addrStrings(targets)})
	return nil
}

func (p *Protocol) handleChill(ctx context.Context, sm protocol.StateManager) error {
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
	if err := p.ChillStash(sm, l.Stash); err != nil {
		return err
	}
	p.emit(ctx, &ChilledEvent{Stash: l.Stash.String()})
	return nil
}

// ChillStash removes the stash from the validator and nominator sets, freeing its validator slot
func (p *Protocol) ChillStash(sm protocol.StateManager, stash address.Address) error {
	if err := p.releaseRunningValidator(sm, stash); err != nil {
		return err
	}
	if err := delItem(sm, accountKey(_validatorsTag, stash)); err != nil {
		return err
	}
	return delItem(sm, accountKey(_nominatorsTag, stash))
}

// releaseRunningValidator gives the validator slot of a stash back to its identity
func (p *Protocol) releaseRunningValidator(sm protocol.StateManager, stash address.Address) error {
	_, isValidator, err := p.validatorPrefs(sm, stash)
	if err != nil || !isValidator {
		return err
	}
	did, ok, err := p.identity.GetIdentity(sm, stash)
	if err != nil || !ok {
		return err
	}
	perm, ok, err := p.PermissionedIdentity(sm, did)
	if err != nil || !ok {
		return err
	}
	if perm.RunningCount == 0 {
		return nil
	}
	perm.RunningCount--
	return p.putPermissioned(sm, did, perm)
}
