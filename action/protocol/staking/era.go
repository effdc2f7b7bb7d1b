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

	"github.com/iotexproject/iotex-npos/action/protocol"
	"github.com/iotexproject/iotex-npos/action/protocol/staking/slashing"
	"github.com/iotexproject/iotex-npos/election"
)

// NewSession plans the validator set of a session. A nil set keeps the validators of the previous session.
func (p *Protocol) NewSession(ctx context.Context, sm protocol.StateManager, index uint32) ([]address.Address, error) {
	current, ok, err := p.CurrentEra(sm)
	if err != nil {
		return nil, err
	}
	if !ok {
		// the first era starts with the genesis session
		return p.newEra(ctx, sm, index)
	}
	start, _, err := p.erasStartSessionIndex(sm, current)
	if err != nil {
		return nil, err
	}
	eraLength := saturatingSub32(index, start)
	force, err := p.ForceEra(sm)
	if err != nil {
		return nil, err
	}
	switch {
	case force == ForceNew, force == ForceAlways:
	case force == NotForcing && eraLength >= p.cfg.SessionsPerEra:
	default:
		if eraLength+1 == p.cfg.SessionsPerEra {
			return nil, p.putIsCurrentSessionFinal(sm, true)
		}
		if eraLength >= p.cfg.SessionsPerEra {
			// eras are not forced, a window opened for this era will never be used
			return nil, p.closeElectionWindow(sm)
		}
		return nil, nil
	}
	return p.newEra(ctx, sm, index)
}

// StartSession starts the planned era if the session is its first one and disables the offenders again
func (p *Protocol) StartSession(ctx context.Context, sm protocol.StateManager, index uint32) error {
	next := uint32(0)
	if active, ok, err := p.ActiveEra(sm); err != nil {
		return err
	} else if ok {
		next = active.Index + 1
	}
	start, ok, err := p.erasStartSessionIndex(sm, next)
	if err != nil {
		return err
	}
	if ok && start <= index {
		if start < index {
			p.logger.Warn("A session appears to have been skipped", zap.Uint32("session", index), zap.Uint32("eraStart", start))
		}
		if err := p.startEra(ctx, sm, index); err != nil {
			return err
		}
	}
	offending, err := p.offendingValidators(sm)
	if err != nil {
		return err
	}
	for _, o := range offending {
		if !o.Disabled {
			continue
		}
		if _, err := p.session.DisableValidator(sm, o.Stash); err != nil {
			return err
		}
	}
	return nil
}

// EndSession ends the active era if the next one starts with the following session
func (p *Protocol) EndSession(ctx context.Context, sm protocol.StateManager, index uint32) error {
	active, ok, err := p.ActiveEra(sm)
	if err != nil || !ok {
		return err
	}
	start, ok, err := p.erasStartSessionIndex(sm, active.Index+1)
	if err != nil {
		return err
	}
	if ok && start == index+1 {
		return p.endEra(ctx, sm, active)
	}
	return nil
}

// newEra plans the next era starting at the session and elects its validators
func (p *Protocol) newEra(ctx context.Context, sm protocol.StateManager, startSession uint32) ([]address.Address, error) {
	era := uint32(0)
	if current, ok, err := p.CurrentEra(sm); err != nil {
		return nil, err
	} else if ok {
		era = current + 1
	}
	if err := p.putCurrentEra(sm, era); err != nil {
		return nil, err
	}
	if err := putUint32(sm, eraPrefix(_erasStartTag, era), startSession); err != nil {
		return nil, err
	}
	_eraMtc.WithLabelValues("current").Set(float64(era))

	force, err := p.ForceEra(sm)
	if err != nil {
		return nil, err
	}
	if force == ForceNew {
		if err := p.putForceEra(sm, NotForcing); err != nil {
			return nil, err
		}
	}
	depth, err := p.HistoryDepth(sm)
	if err != nil {
		return nil, err
	}
	if era > depth {
		if err := p.clearEraInformation(sm, era-depth-1); err != nil {
			return nil, err
		}
	}
	return p.selectAndUpdateValidators(ctx, sm, era)
}

// selectAndUpdateValidators takes the queued solution, or elects on chain, and stores the exposures of the era
func (p *Protocol) selectAndUpdateValidators(ctx context.Context, sm protocol.StateManager, era uint32) ([]address.Address, error) {
	res, ok, err := p.queuedElected(sm)
	if err != nil {
		return nil, err
	}
	if !ok {
		if res, ok, err = p.electOnChain(ctx, sm); err != nil {
			return nil, err
		}
	}
	for _, key := range [][]byte{_queuedElectedKey, _queuedScoreKey} {
		if err := delItem(sm, key); err != nil {
			return nil, err
		}
	}
	if !ok {
		_electionMtc.WithLabelValues(election.OnChain.String(), "failure").Inc()
		p.logger.Warn("Election failed, keeping the current validators", zap.Uint32("era", era))
		return nil, nil
	}
	if err := p.closeElectionWindow(sm); err != nil {
		return nil, err
	}

	total := new(big.Int)
	for _, e := range res.Elected {
		total.Add(total, e.Exposure.Total)
		if err := putItem(sm, e.Exposure, eraAccountKey(_erasStakersTag, era, e.Stash)); err != nil {
			return nil, err
		}
		clipped := e.Exposure.Clipped(p.cfg.MaxNominatorRewardedPerValidator)
		if err := putItem(sm, clipped, eraAccountKey(_erasClippedTag, era, e.Stash)); err != nil {
			return nil, err
		}
		prefs, ok, err := p.validatorPrefs(sm, e.Stash)
		if err != nil {
			return nil, err
		}
		if !ok {
			prefs = &ValidatorPrefs{}
		}
		if err := putItem(sm, prefs, eraAccountKey(_erasPrefsTag, era, e.Stash)); err != nil {
			return nil, err
		}
	}
	if err := putItem(sm, total, eraPrefix(_erasTotalTag, era)); err != nil {
		return nil, err
	}
	_electionMtc.WithLabelValues(res.Compute.String(), "success").Inc()
	p.logger.Info("New validator set elected",
		zap.Uint32("era", era),
		zap.Stringer("compute", res.Compute),
		zap.Int("validators", len(res.Elected)),
		zap.String("totalStake", total.String()))
	p.emit(ctx, &StakingElectionEvent{Compute: res.Compute})
	return res.Winners(), nil
}

// startEra activates the next era, slides the bonding window and applies the slashes that are due
func (p *Protocol) startEra(ctx context.Context, sm protocol.StateManager, startSession uint32) error {
	era := uint32(0)
	if active, ok, err := p.ActiveEra(sm); err != nil {
		return err
	} else if ok {
		era = active.Index + 1
	}
	if err := p.putActiveEra(sm, &ActiveEraInfo{Index: era}); err != nil {
		return err
	}
	_eraMtc.WithLabelValues("active").Set(float64(era))

	bonded, err := p.bondedEras(sm)
	if err != nil {
		return err
	}
	bonded = append(bonded, BondedEra{Era: era, Session: startSession})
	if era > p.cfg.BondingDuration {
		firstKept := era - p.cfg.BondingDuration
		n := 0
		for n < len(bonded) && bonded[n].Era < firstKept {
			if err := slashing.ClearEraMetadata(sm, bonded[n].Era); err != nil {
				return err
			}
			n++
		}
		bonded = bonded[n:]
		if len(bonded) > 0 {
			if err := p.session.PruneHistoricalUpTo(sm, bonded[0].Session); err != nil {
				return err
			}
		}
	}
	if err := p.putBondedEras(sm, bonded); err != nil {
		return err
	}
	return p.applyUnappliedSlashes(ctx, sm, era)
}

// applyUnappliedSlashes applies the deferred slashes of the eras that left the defer window
func (p *Protocol) applyUnappliedSlashes(ctx context.Context, sm protocol.StateManager, activeEra uint32) error {
	earliest, ok, err := p.earliestUnappliedSlash(sm)
	if err != nil || !ok {
		return err
	}
	keepFrom := saturatingSub32(activeEra, p.cfg.SlashDeferDuration)
	for e := earliest; e < keepFrom; e++ {
		queue, err := p.unappliedSlashes(sm, e)
		if err != nil {
			return err
		}
		for _, u := range queue {
			if err := p.slasher.ApplySlash(ctx, sm, u); err != nil {
				return errors.Wrapf(err, "failed to apply slash deferred in era %d", e)
			}
		}
		if err := p.putUnappliedSlashes(sm, e, nil); err != nil {
			return err
		}
	}
	if keepFrom > earliest {
		earliest = keepFrom
	}
	return putUint32(sm, _earliestUnappliedKey, earliest)
}

// endEra computes the era payout, schedules its distribution and issues the remainder to the treasury
func (p *Protocol) endEra(ctx context.Context, sm protocol.StateManager, active *ActiveEraInfo) error {
	if !active.HasStart {
		return nil
	}
	nowMs := uint64(now(ctx).UnixMilli())
	duration := uint64(0)
	if nowMs > active.Start {
		duration = nowMs - active.Start
	}
	staked, err := p.ErasTotalStake(sm, active.Index)
	if err != nil {
		return err
	}
	issuance, err := p.currency.TotalIssuance(sm)
	if err != nil {
		return err
	}
	payout, maxPayout := p.computeTotalPayout(staked, issuance, duration)
	rest := saturatingSub(maxPayout, payout)

	validators, err := p.session.Validators(sm)
	if err != nil {
		return err
	}
	if err := p.schedulePayouts(ctx, sm, active.Index, validators); err != nil {
		return err
	}
	p.emit(ctx, &EraPayoutEvent{Era: active.Index, Validator: cloneBig(payout), Remainder: cloneBig(rest)})
	if err := putItem(sm, payout, eraPrefix(_erasRewardTag, active.Index)); err != nil {
		return err
	}
	if rest.Sign() > 0 {
		if err := p.currency.Issue(sm, rest); err != nil {
			return err
		}
	}
	p.logger.Info("Era ended",
		zap.Uint32("era", active.Index),
		zap.Uint64("durationMs", duration),
		zap.String("payout", payout.String()),
		zap.String("remainder", rest.String()))
	return p.putOffendingValidators(sm, nil)
}

// clearEraInformation removes everything stored for an era that left the history
func (p *Protocol) clearEraInformation(sm protocol.StateManager, era uint32) error {
	for _, tag := range []byte{_erasStakersTag, _erasClippedTag, _erasPrefsTag} {
		if err := delPrefix(sm, eraPrefix(tag, era)); err != nil {
			return errors.Wrapf(err, "failed to clear era %d", era)
		}
	}
	for _, tag := range []byte{_erasRewardTag, _erasPointsTag, _erasTotalTag, _erasStartTag} {
		if err := delItem(sm, eraPrefix(tag, era)); err != nil {
			return errors.Wrapf(err, "failed to clear era %d", era)
		}
	}
	p.exposureCache.Purge()
	return nil
}

// maybeOpenElectionWindow takes the snapshot for off-chain solutions when the next era is close enough
func (p *Protocol) maybeOpenElectionWindow(ctx context.Context, sm protocol.StateManager) error {
	status, err := p.ElectionStatus(sm)
	if err != nil || status.Open {
		return err
	}
	final, err := p.isCurrentSessionFinal(sm)
	if err != nil {
		return err
	}
	force, err := p.ForceEra(sm)
	if err != nil {
		return err
	}
	if !final && force != ForceNew && force != ForceAlways {
		return nil
	}
	height := protocol.MustGetBlockCtx(ctx).BlockHeight
	next := p.session.EstimateNextNewSession(height)
	if next <= height || next-height > p.cfg.ElectionLookahead {
		return nil
	}
	taken, err := p.createStakersSnapshot(ctx, sm)
	if err != nil {
		return err
	}
	if !taken {
		p.logger.Warn("Failed to create the election snapshot, the era will be elected on chain", zap.Uint64("height", height))
		return nil
	}
	p.logger.Info("Election window opened", zap.Uint64("height", height), zap.Uint64("nextSession", next))
	return p.putElectionStatus(sm, &ElectionStatus{Open: true, Block: height})
}

func (p *Protocol) closeElectionWindow(sm protocol.StateManager) error {
	if err := p.putElectionStatus(sm, &ElectionStatus{}); err != nil {
		return err
	}
	if err := p.killSnapshot(sm); err != nil {
		return err
	}
	return p.putIsCurrentSessionFinal(sm, false)
}

// EnsureNewEra forces a new era at the next session unless one is already forced, overriding ForceNone
func (p *Protocol) EnsureNewEra(sm protocol.StateManager) error {
	force, err := p.ForceEra(sm)
	if err != nil {
		return err
	}
	if force == ForceNew || force == ForceAlways {
		return nil
	}
	return p.putForceEra(sm, ForceNew)
}
