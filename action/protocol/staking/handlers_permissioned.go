// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package staking

import (
	"context"
	"encoding/hex"

	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/iotexproject/iotex-npos/action"
	"github.com/iotexproject/iotex-npos/action/protocol"
)

func (p *Protocol) handleAddPermissionedValidator(ctx context.Context, act *action.AddPermissionedValidator, sm protocol.StateManager) error {
	if err := protocol.EnsureOrigin(ctx, protocol.OriginGovernance); err != nil {
		return err
	}
	id := act.Identity()
	if _, ok, err := p.PermissionedIdentity(sm, id); err != nil {
		return err
	} else if ok {
		return ErrAlreadyExists
	}
	valid, err := p.identity.HasValidCDD(sm, id, now(ctx))
	if err != nil {
		return err
	}
	if !valid {
		return ErrInvalidValidatorIdentity
	}
	intended, ok := act.IntendedCount()
	if ok {
		allowed, err := p.allowedValidators(sm)
		if err != nil {
			return err
		}
		if intended >= allowed {
			return ErrIntendedCountIsExceedingConsensusLimit
		}
	} else {
		intended = p.cfg.DefaultIntendedCount
	}
	if err := p.putPermissioned(sm, id, &PermissionedIdentityPrefs{IntendedCount: intended}); err != nil {
		return err
	}
	p.emit(ctx, &PermissionedIdentityAddedEvent{Identity: hex.EncodeToString(id[:])})
	return nil
}

func (p *Protocol) handleRemovePermissionedValidator(ctx context.Context, act *action.RemovePermissionedValidator, sm protocol.StateManager) error {
	if err := protocol.EnsureOrigin(ctx, protocol.OriginGovernance); err != nil {
		return err
	}
	id := act.Identity()
	if _, ok, err := p.PermissionedIdentity(sm, id); err != nil {
		return err
	} else if !ok {
		return ErrNotExists
	}
	if err := delItem(sm, permissionedKey(id)); err != nil {
		return err
	}
	p.emit(ctx, &PermissionedIdentityRemovedEvent{Identity: hex.EncodeToString(id[:])})
	return nil
}

func (p *Protocol) handleUpdatePermissionedValidatorIntendedCount(ctx context.Context, act *action.UpdatePermissionedValidatorIntendedCount, sm protocol.StateManager) error {
	if err := protocol.EnsureOrigin(ctx, protocol.OriginGovernance); err != nil {
		return err
	}
	allowed, err := p.allowedValidators(sm)
	if err != nil {
		return err
	}
	if act.Count() >= allowed {
		return ErrIntendedCountIsExceedingConsensusLimit
	}
	prefs, ok, err := p.PermissionedIdentity(sm, act.Identity())
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotExists
	}
	prefs.IntendedCount = act.Count()
	return p.putPermissioned(sm, act.Identity(), prefs)
}

func (p *Protocol) handleChillFromGovernance(ctx context.Context, act *action.ChillFromGovernance, sm protocol.StateManager) error {
	if err := p.ensureWindowClosed(sm); err != nil {
		return err
	}
	if err := protocol.EnsureOrigin(ctx, protocol.OriginGovernance); err != nil {
		return err
	}
	id := act.Identity()
	if _, ok, err := p.PermissionedIdentity(sm, id); err != nil {
		return err
	} else if !ok {
		return ErrNotExists
	}
	for _, stash := range act.Stashes() {
		did, ok, err := p.identity.GetIdentity(sm, stash)
		if err != nil {
			return err
		}
		if !ok || did != id {
			return ErrNotStash
		}
		if _, isValidator, err := p.validatorPrefs(sm, stash); err != nil {
			return err
		} else if !isValidator {
			return errors.Wrapf(ErrNotExists, "stash %s is not a validator", stash)
		}
	}
	for _, stash := range act.Stashes() {
		if err := p.ChillStash(sm, stash); err != nil {
			return err
		}
		p.emit(ctx, &ChilledEvent{Stash: stash.String()})
	}
	if err := delItem(sm, permissionedKey(id)); err != nil {
		return err
	}
	p.emit(ctx, &PermissionedIdentityRemovedEvent{Identity: hex.EncodeToString(id[:])})
	return nil
}

// handleValidateCDDExpiryNominators lets an account with an identity unbond nominators whose identity lost its due
// diligence claim
func (p *Protocol) handleValidateCDDExpiryNominators(ctx context.Context, act *action.ValidateCDDExpiryNominators, sm protocol.StateManager) error {
	actionCtx, err := protocol.EnsureSigned(ctx)
	if err != nil {
		return err
	}
	if _, ok, err := p.identity.GetIdentity(sm, actionCtx.Caller); err != nil {
		return err
	} else if !ok {
		return errors.Wrapf(ErrCallerIdentityMissing, "caller %s", actionCtx.Caller)
	}
	if len(act.Targets()) == 0 {
		return ErrEmptyTargets
	}
	at := now(ctx)
	expired := make([]address.Address, 0, len(act.Targets()))
	for _, target := range act.Targets() {
		if _, ok, err := p.nominations(sm, target); err != nil {
			return err
		} else if !ok {
			continue
		}
		did, ok, err := p.identity.GetIdentity(sm, target)
		if err != nil {
			return err
		}
		if ok {
			valid, err := p.identity.HasValidCDD(sm, did, at)
			if err != nil {
				return err
			}
			if valid {
				continue
			}
		}
		controller, ok, err := p.bonded(sm, target)
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
		if uint32(len(l.Unlocking)) >= p.cfg.MaxUnlockingChunks {
			p.logger.Debug("Cannot unbond expired nominator", zap.String("stash", target.String()))
			continue
		}
		if err := p.unbondBalance(ctx, sm, controller, l, cloneBig(l.Active)); err != nil {
			return err
		}
		if err := delItem(sm, accountKey(_nominatorsTag, target)); err != nil {
			return err
		}
		expired = append(expired, target)
	}
	p.emit(ctx, &InvalidatedNominatorsEvent{Caller: actionCtx.Caller.String(), Nominators: addrStrings(expired)})
	return nil
}
