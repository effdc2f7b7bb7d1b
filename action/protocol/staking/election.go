// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package staking

import (
	"context"
	"math"
	"math/big"
	"time"

	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/iotexproject/iotex-npos/action"
	"github.com/iotexproject/iotex-npos/action/protocol"
	"github.com/iotexproject/iotex-npos/action/protocol/staking/slashing"
	"github.com/iotexproject/iotex-npos/election"
)

var _maxUint64 = new(big.Int).SetUint64(math.MaxUint64)

func (p *Protocol) handleSubmitElectionSolution(ctx context.Context, act *action.SubmitElectionSolution, sm protocol.StateManager) error {
	if _, err := protocol.EnsureSigned(ctx); err != nil {
		return err
	}
	return p.checkAndReplaceSolution(ctx, sm, act, election.Signed)
}

func (p *Protocol) handleSubmitElectionSolutionUnsigned(ctx context.Context, act *action.SubmitElectionSolutionUnsigned, sm protocol.StateManager) error {
	if err := protocol.EnsureOrigin(ctx, protocol.OriginNone); err != nil {
		return err
	}
	return p.checkAndReplaceSolution(ctx, sm, &act.SubmitElectionSolution, election.Unsigned)
}

// preDispatchChecks are the cheap checks a solution has to pass before it is verified
func (p *Protocol) preDispatchChecks(sr protocol.StateReader, era uint32, score election.Score) error {
	status, err := p.ElectionStatus(sr)
	if err != nil {
		return err
	}
	if !status.Open {
		return errors.Wrap(ErrOffchainElectionEarlySubmission, "election window is closed")
	}
	current, _, err := p.CurrentEra(sr)
	if err != nil {
		return err
	}
	if current != era {
		return errors.Wrapf(ErrOffchainElectionEarlySubmission, "solution for era %d, current era is %d", era, current)
	}
	queued, ok, err := p.QueuedScore(sr)
	if err != nil {
		return err
	}
	if ok && !score.StrictThresholdBetter(*queued, p.cfg.MinSolutionScoreBump) {
		return errors.Wrapf(ErrOffchainElectionWeakSubmission, "score %s, queued %s", score, *queued)
	}
	return nil
}

// checkAndReplaceSolution verifies a solution against the snapshot and queues it for the next era
func (p *Protocol) checkAndReplaceSolution(ctx context.Context, sm protocol.StateManager, sol *action.SubmitElectionSolution, compute election.Compute) error {
	err := p.verifySolution(ctx, sm, sol, compute)
	result := "success"
	if err != nil {
		result = "failure"
	}
	_electionMtc.WithLabelValues(compute.String(), result).Inc()
	return err
}

func (p *Protocol) verifySolution(ctx context.Context, sm protocol.StateManager, sol *action.SubmitElectionSolution, compute election.Compute) error {
	if err := p.preDispatchChecks(sm, sol.Era(), sol.Score()); err != nil {
		return err
	}
	winners, compact, size := sol.Winners(), sol.Compact(), sol.Size()
	if len(compact.UniqueTargets()) != len(winners) {
		return ErrOffchainElectionBogusWinnerCount
	}
	snapValidators, snapNominators, ok, err := p.Snapshot(sm)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSnapshotUnavailable
	}
	if len(snapValidators) != int(size.Validators) {
		return errors.Wrapf(ErrOffchainElectionBogusElectionSize, "%d validators in snapshot", len(snapValidators))
	}
	count, err := p.ValidatorCount(sm)
	if err != nil {
		return err
	}
	desired := int(count)
	if len(snapValidators) < desired {
		desired = len(snapValidators)
	}
	if len(winners) != desired {
		return errors.Wrapf(ErrOffchainElectionBogusWinnerCount, "want %d winners, got %d", desired, len(winners))
	}
	if len(snapNominators) != int(size.Nominators) {
		return errors.Wrapf(ErrOffchainElectionBogusElectionSize, "%d nominators in snapshot", len(snapNominators))
	}

	winnerIDs := make([]string, 0, len(winners))
	isWinner := make(map[string]struct{}, len(winners))
	for _, idx := range winners {
		if int(idx) >= len(snapValidators) {
			return errors.Wrapf(ErrOffchainElectionBogusWinner, "winner index %d", idx)
		}
		id := snapValidators[idx].String()
		if _, dup := isWinner[id]; dup {
			return errors.Wrapf(ErrOffchainElectionBogusWinner, "winner %s repeated", id)
		}
		isWinner[id] = struct{}{}
		winnerIDs = append(winnerIDs, id)
	}

	assignments, err := compact.IntoAssignments(
		func(i uint32) (string, bool) {
			if int(i) >= len(snapNominators) {
				return "", false
			}
			return snapNominators[i].String(), true
		},
		func(i uint16) (string, bool) {
			if int(i) >= len(snapValidators) {
				return "", false
			}
			return snapValidators[i].String(), true
		},
	)
	if err != nil {
		return errors.Wrap(ErrOffchainElectionBogusCompact, err.Error())
	}
	for _, a := range assignments {
		for _, d := range a.Distribution {
			if _, ok := isWinner[d.Target]; !ok {
				return errors.Wrapf(ErrOffchainElectionBogusWinner, "%s backs non-winner %s", a.Who, d.Target)
			}
		}
	}
	for _, a := range assignments {
		if err := p.checkAssignment(sm, &a); err != nil {
			return err
		}
	}

	factor, err := p.voteWeightFactor(sm)
	if err != nil {
		return err
	}
	weights := make(map[string]uint64, len(assignments))
	for _, a := range assignments {
		who, err := address.FromString(a.Who)
		if err != nil {
			return err
		}
		w, err := p.voteWeight(sm, who, factor)
		if err != nil {
			return err
		}
		weights[a.Who] = w
	}
	staked := election.ToStaked(assignments, func(who string) uint64 { return weights[who] })
	supports, err := election.ToSupports(winnerIDs, staked)
	if err != nil {
		return errors.Wrap(ErrOffchainElectionBogusWinner, err.Error())
	}
	claimed := sol.Score()
	if score := election.Evaluate(supports); !score.Equal(claimed) {
		return errors.Wrapf(ErrOffchainElectionBogusScore, "claimed %s, computed %s", claimed, score)
	}

	elected, err := collectExposures(supports, factor)
	if err != nil {
		return err
	}
	if err := p.putQueued(sm, &ElectionResult{Elected: elected, Compute: compute}, &claimed); err != nil {
		return err
	}
	p.logger.Info("Election solution stored", zap.Stringer("compute", compute), zap.Stringer("score", claimed))
	p.emit(ctx, &SolutionStoredEvent{Compute: compute})
	return nil
}

// checkAssignment makes sure the voter of an assignment could actually cast it
func (p *Protocol) checkAssignment(sr protocol.StateReader, a *election.Assignment) error {
	who, err := address.FromString(a.Who)
	if err != nil {
		return errors.Wrap(ErrOffchainElectionBogusNominator, err.Error())
	}
	_, isValidator, err := p.validatorPrefs(sr, who)
	if err != nil {
		return err
	}
	noms, isNominator, err := p.nominations(sr, who)
	if err != nil {
		return err
	}
	if isValidator == isNominator {
		return errors.Wrapf(ErrOffchainElectionBogusNominator, "voter %s", a.Who)
	}
	if isValidator {
		if len(a.Distribution) != 1 || a.Distribution[0].Target != a.Who || !a.Distribution[0].Weight.IsOne() {
			return errors.Wrapf(ErrOffchainElectionBogusSelfVote, "validator %s", a.Who)
		}
		return nil
	}
	nominated := make(map[string]struct{}, len(noms.Targets))
	for _, t := range noms.Targets {
		nominated[t.String()] = struct{}{}
	}
	for _, d := range a.Distribution {
		if _, ok := nominated[d.Target]; !ok {
			return errors.Wrapf(ErrOffchainElectionBogusNomination, "%s did not nominate %s", a.Who, d.Target)
		}
		target, err := address.FromString(d.Target)
		if err != nil {
			return err
		}
		lastSlash, err := slashing.LastNonzeroSlash(sr, target)
		if err != nil {
			return err
		}
		if noms.SubmittedIn < lastSlash {
			return errors.Wrapf(ErrOffchainElectionSlashedNomination, "%s nominated %s before era %d", a.Who, d.Target, lastSlash)
		}
	}
	return nil
}

// electOnChain runs the election over the current validators and nominators
func (p *Protocol) electOnChain(ctx context.Context, sr protocol.StateReader) (*ElectionResult, bool, error) {
	res, weights, factor, err := p.doPhragmen(sr, now(ctx), 0)
	if err != nil || res == nil {
		return nil, false, err
	}
	minCount, err := p.minimumValidatorCount(sr)
	if err != nil {
		return nil, false, err
	}
	if minCount == 0 {
		minCount = 1
	}
	if uint32(len(res.Winners)) < minCount {
		p.logger.Warn("Not enough validators elected",
			zap.Int("elected", len(res.Winners)),
			zap.Uint32("minimum", minCount))
		return nil, false, nil
	}
	staked := election.ToStaked(res.Assignments, func(who string) uint64 { return weights[who] })
	supports, err := election.ToSupports(res.WinnerIDs(), staked)
	if err != nil {
		return nil, false, err
	}
	elected, err := collectExposures(supports, factor)
	if err != nil {
		return nil, false, err
	}
	return &ElectionResult{Elected: elected, Compute: election.OnChain}, true, nil
}

// doPhragmen elects ValidatorCount validators among the electable ones. Validators vote for themselves, nominations
// submitted before the last slash of their target are ignored. A nil result means there are too few candidates.
func (p *Protocol) doPhragmen(sr protocol.StateReader, at time.Time, iterations int) (*election.Result, map[string]uint64, *big.Int, error) {
	validators, err := p.electableValidators(sr, at)
	if err != nil {
		return nil, nil, nil, err
	}
	minCount, err := p.minimumValidatorCount(sr)
	if err != nil {
		return nil, nil, nil, err
	}
	if minCount == 0 {
		minCount = 1
	}
	if uint32(len(validators)) < minCount {
		return nil, nil, nil, nil
	}
	nominators, err := p.Nominators(sr)
	if err != nil {
		return nil, nil, nil, err
	}
	voters, weights, factor, err := p.electionVoters(sr, at, validators, nominators, true)
	if err != nil {
		return nil, nil, nil, err
	}
	count, err := p.ValidatorCount(sr)
	if err != nil {
		return nil, nil, nil, err
	}
	res, err := election.SeqPhragmen(int(count), addrStrings(validators), voters, &election.BalancingConfig{Iterations: iterations})
	if err != nil {
		return nil, nil, nil, err
	}
	return res, weights, factor, nil
}

// electionVoters builds the weighted votes of validators and nominators. Nominators without a valid due diligence
// claim are left out when requireCDD is set.
func (p *Protocol) electionVoters(
	sr protocol.StateReader,
	at time.Time,
	validators, nominators []address.Address,
	requireCDD bool,
) ([]election.Voter, map[string]uint64, *big.Int, error) {
	factor, err := p.voteWeightFactor(sr)
	if err != nil {
		return nil, nil, nil, err
	}
	weights := make(map[string]uint64, len(validators)+len(nominators))
	voters := make([]election.Voter, 0, len(validators)+len(nominators))
	for _, v := range validators {
		w, err := p.voteWeight(sr, v, factor)
		if err != nil {
			return nil, nil, nil, err
		}
		id := v.String()
		weights[id] = w
		voters = append(voters, election.Voter{ID: id, Stake: w, Targets: []string{id}})
	}
	for _, n := range nominators {
		noms, ok, err := p.nominations(sr, n)
		if err != nil {
			return nil, nil, nil, err
		}
		if !ok {
			continue
		}
		if requireCDD {
			valid, err := p.hasValidCDD(sr, n, at)
			if err != nil {
				return nil, nil, nil, err
			}
			if !valid {
				continue
			}
		}
		targets := make([]string, 0, len(noms.Targets))
		for _, t := range noms.Targets {
			lastSlash, err := slashing.LastNonzeroSlash(sr, t)
			if err != nil {
				return nil, nil, nil, err
			}
			if noms.SubmittedIn >= lastSlash {
				targets = append(targets, t.String())
			}
		}
		w, err := p.voteWeight(sr, n, factor)
		if err != nil {
			return nil, nil, nil, err
		}
		id := n.String()
		weights[id] = w
		voters = append(voters, election.Voter{ID: id, Stake: w, Targets: targets})
	}
	return voters, weights, factor, nil
}

// electableValidators are the validators bonding enough whose identity is permissioned and has a valid claim
func (p *Protocol) electableValidators(sr protocol.StateReader, at time.Time) ([]address.Address, error) {
	all, err := p.Validators(sr)
	if err != nil {
		return nil, err
	}
	threshold, err := p.MinBondThreshold(sr)
	if err != nil {
		return nil, err
	}
	out := make([]address.Address, 0, len(all))
	for _, v := range all {
		active, err := p.slashableBalance(sr, v)
		if err != nil {
			return nil, err
		}
		if active.Cmp(threshold) < 0 {
			continue
		}
		did, ok, err := p.identity.GetIdentity(sr, v)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if _, ok, err := p.PermissionedIdentity(sr, did); err != nil {
			return nil, err
		} else if !ok {
			continue
		}
		valid, err := p.identity.HasValidCDD(sr, did, at)
		if err != nil {
			return nil, err
		}
		if valid {
			out = append(out, v)
		}
	}
	return out, nil
}

func (p *Protocol) hasValidCDD(sr protocol.StateReader, who address.Address, at time.Time) (bool, error) {
	did, ok, err := p.identity.GetIdentity(sr, who)
	if err != nil || !ok {
		return false, err
	}
	return p.identity.HasValidCDD(sr, did, at)
}

// createStakersSnapshot stores the candidates and voters solutions are computed over. Voters are the nominators
// followed by the validators. It returns false if the sets are too large.
func (p *Protocol) createStakersSnapshot(ctx context.Context, sm protocol.StateManager) (bool, error) {
	validators, err := p.electableValidators(sm, now(ctx))
	if err != nil {
		return false, err
	}
	nominators, err := p.Nominators(sm)
	if err != nil {
		return false, err
	}
	if len(validators) > p.cfg.MaxSnapshotValidators || len(nominators)+len(validators) > p.cfg.MaxSnapshotNominators {
		p.logger.Warn("Snapshot too large",
			zap.Int("validators", len(validators)),
			zap.Int("nominators", len(nominators)))
		return false, nil
	}
	voters := make([]address.Address, 0, len(nominators)+len(validators))
	voters = append(voters, nominators...)
	voters = append(voters, validators...)
	return true, p.putSnapshot(sm, validators, voters)
}

// collectExposures turns supports into exposures, converting vote weights back to the currency
func collectExposures(supports []election.Support, factor *big.Int) ([]ElectedExposure, error) {
	out := make([]ElectedExposure, 0, len(supports))
	for _, s := range supports {
		stash, err := address.FromString(s.Target)
		if err != nil {
			return nil, err
		}
		exp := NewExposure()
		for _, b := range s.Voters {
			value := toCurrency(b.Stake, factor)
			if b.Who == s.Target {
				exp.Own.Add(exp.Own, value)
			} else {
				who, err := address.FromString(b.Who)
				if err != nil {
					return nil, err
				}
				exp.Others = append(exp.Others, IndividualExposure{Who: who, Value: value})
			}
			exp.Total.Add(exp.Total, value)
		}
		out = append(out, ElectedExposure{Stash: stash, Exposure: exp})
	}
	return out, nil
}

// slashableBalance is the active stake of a stash, zero if it is not bonded
func (p *Protocol) slashableBalance(sr protocol.StateReader, stash address.Address) (*big.Int, error) {
	controller, ok, err := p.bonded(sr, stash)
	if err != nil || !ok {
		return new(big.Int), err
	}
	l, ok, err := p.ledger(sr, controller)
	if err != nil || !ok {
		return new(big.Int), err
	}
	return cloneBig(l.Active), nil
}

// voteWeightFactor scales balances into the 64 bit vote weights of the election
func (p *Protocol) voteWeightFactor(sr protocol.StateReader) (*big.Int, error) {
	issuance, err := p.currency.TotalIssuance(sr)
	if err != nil {
		return nil, err
	}
	factor := new(big.Int).Quo(issuance, _maxUint64)
	if factor.Sign() == 0 {
		factor.SetInt64(1)
	}
	return factor, nil
}

func (p *Protocol) voteWeight(sr protocol.StateReader, stash address.Address, factor *big.Int) (uint64, error) {
	active, err := p.slashableBalance(sr, stash)
	if err != nil {
		return 0, err
	}
	w := active.Quo(active, factor)
	if !w.IsUint64() {
		return math.MaxUint64, nil
	}
	return w.Uint64(), nil
}

func toCurrency(weight uint64, factor *big.Int) *big.Int {
	v := new(big.Int).SetUint64(weight)
	return v.Mul(v, factor)
}
