// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package staking implements nominated proof of stake: bonding, permissioned validators, era scheduling, the
// validator election with off-chain solutions, era rewards and slashing.
package staking

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2"
	"github.com/iotexproject/go-pkgs/hash"
	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/iotexproject/iotex-npos/action"
	"github.com/iotexproject/iotex-npos/action/protocol"
	"github.com/iotexproject/iotex-npos/action/protocol/staking/slashing"
	"github.com/iotexproject/iotex-npos/blockchain/genesis"
	"github.com/iotexproject/iotex-npos/pkg/log"
)

const (
	protocolID = "staking"

	// _blockAuthorPoints are the reward points of the producer of a block
	_blockAuthorPoints = 20

	_exposureCacheSize = 4096
)

// Protocol defines the protocol of staking
type Protocol struct {
	addr          address.Address
	cfg           genesis.Staking
	bondingPeriod time.Duration
	currency      Currency
	identity      Identity
	session       Session
	curve         *PiecewiseLinear
	slasher       *slashing.Slasher
	exposureCache *lru.Cache[string, *Exposure]
	logger        *zap.Logger
}

var (
	_ protocol.Protocol            = (*Protocol)(nil)
	_ protocol.GenesisStateCreator = (*Protocol)(nil)
	_ protocol.BlockInitializer    = (*Protocol)(nil)
	_ protocol.BlockFinalizer      = (*Protocol)(nil)
	_ slashing.Host                = (*Protocol)(nil)
)

// NewProtocol instantiates the protocol of staking
func NewProtocol(chain genesis.Blockchain, cfg genesis.Staking, currency Currency, identity Identity, session Session) (*Protocol, error) {
	h := hash.Hash160b([]byte(protocolID))
	addr, err := address.FromBytes(h[:])
	if err != nil {
		log.L().Panic("Error when constructing the address of staking protocol", zap.Error(err))
	}
	if cfg.SessionsPerEra == 0 {
		return nil, errors.New("sessions per era must be positive")
	}
	curve, err := BuildRewardCurve(cfg.RewardCurve)
	if err != nil {
		return nil, err
	}
	cache, err := lru.New[string, *Exposure](_exposureCacheSize)
	if err != nil {
		return nil, err
	}
	p := &Protocol{
		addr:          addr,
		cfg:           cfg,
		bondingPeriod: time.Duration(uint64(cfg.SessionsPerEra)*uint64(cfg.BondingDuration)*chain.SessionLength) * chain.BlockInterval,
		currency:      currency,
		identity:      identity,
		session:       session,
		curve:         curve,
		exposureCache: cache,
		logger:        log.Logger("staking"),
	}
	p.slasher = slashing.NewSlasher(p)
	return p, nil
}

// Address returns the address of the protocol
func (p *Protocol) Address() address.Address { return p.addr }

// Config returns the staking constants
func (p *Protocol) Config() genesis.Staking { return p.cfg }

// Handle handles a staking action. Rejections are returned as errors, the caller reverts the action and turns the
// error into a failed receipt.
func (p *Protocol) Handle(ctx context.Context, act action.Action, sm protocol.StateManager) (*action.Receipt, error) {
	var err error
	switch act := act.(type) {
	case *action.Bond:
		err = p.handleBond(ctx, act, sm)
	case *action.BondExtra:
		err = p.handleBondExtra(ctx, act, sm)
	case *action.Unbond:
		err = p.handleUnbond(ctx, act, sm)
	case *action.Rebond:
		err = p.handleRebond(ctx, act, sm)
	case *action.WithdrawUnbonded:
		err = p.handleWithdrawUnbonded(ctx, act, sm)
	case *action.SetPayee:
		err = p.handleSetPayee(ctx, act, sm)
	case *action.SetController:
		err = p.handleSetController(ctx, act, sm)
	case *action.Validate:
		err = p.handleValidate(ctx, act, sm)
	case *action.Nominate:
		err = p.handleNominate(ctx, act, sm)
	case *action.Chill:
		err = p.handleChill(ctx, sm)
	case *action.PayoutStakers:
		err = p.handlePayoutStakers(ctx, act, sm)
	case *action.PayoutStakersBySystem:
		err = p.handlePayoutStakersBySystem(ctx, act, sm)
	case *action.SubmitElectionSolution:
		err = p.handleSubmitElectionSolution(ctx, act, sm)
	case *action.SubmitElectionSolutionUnsigned:
		err = p.handleSubmitElectionSolutionUnsigned(ctx, act, sm)
	case *action.SetValidatorCount:
		err = p.handleSetValidatorCount(ctx, act, sm)
	case *action.IncreaseValidatorCount:
		err = p.handleIncreaseValidatorCount(ctx, act, sm)
	case *action.ScaleValidatorCount:
		err = p.handleScaleValidatorCount(ctx, act, sm)
	case *action.ForceNoEras:
		err = p.handleForceEra(ctx, ForceNone, sm)
	case *action.ForceNewEra:
		err = p.handleForceEra(ctx, ForceNew, sm)
	case *action.ForceNewEraAlways:
		err = p.handleForceEra(ctx, ForceAlways, sm)
	case *action.SetInvulnerables:
		err = p.handleSetInvulnerables(ctx, act, sm)
	case *action.ForceUnstake:
		err = p.handleForceUnstake(ctx, act, sm)
	case *action.ReapStash:
		err = p.handleReapStash(ctx, act, sm)
	case *action.CancelDeferredSlash:
		err = p.handleCancelDeferredSlash(ctx, act, sm)
	case *action.SetHistoryDepth:
		err = p.handleSetHistoryDepth(ctx, act, sm)
	case *action.SetCommissionCap:
		err = p.handleSetCommissionCap(ctx, act, sm)
	case *action.SetMinBondThreshold:
		err = p.handleSetMinBondThreshold(ctx, act, sm)
	case *action.ChangeSlashingAllowedFor:
		err = p.handleChangeSlashingAllowedFor(ctx, act, sm)
	case *action.ReportOffence:
		err = p.handleReportOffence(ctx, act, sm)
	case *action.AddPermissionedValidator:
		err = p.handleAddPermissionedValidator(ctx, act, sm)
	case *action.RemovePermissionedValidator:
		err = p.handleRemovePermissionedValidator(ctx, act, sm)
	case *action.UpdatePermissionedValidatorIntendedCount:
		err = p.handleUpdatePermissionedValidatorIntendedCount(ctx, act, sm)
	case *action.ChillFromGovernance:
		err = p.handleChillFromGovernance(ctx, act, sm)
	case *action.ValidateCDDExpiryNominators:
		err = p.handleValidateCDDExpiryNominators(ctx, act, sm)
	default:
		return nil, nil
	}
	name := actionName(act)
	if err != nil {
		_stakingActionMtc.WithLabelValues(name, "failure").Inc()
		p.logger.Debug("Staking action rejected", zap.String("action", name), zap.Error(err))
		return nil, err
	}
	_stakingActionMtc.WithLabelValues(name, "success").Inc()
	return p.receipt(ctx), nil
}

// Validate validates a staking action before it is put into a block
func (p *Protocol) Validate(ctx context.Context, act action.Action, sr protocol.StateReader) error {
	if !isStakingAction(act) {
		return nil
	}
	if err := act.SanityCheck(); err != nil {
		return err
	}
	// unsigned solutions are only accepted from the local worker while they could still be applied
	if sol, ok := act.(*action.SubmitElectionSolutionUnsigned); ok {
		return p.preDispatchChecks(sr, sol.Era(), sol.Score())
	}
	return nil
}

// Register registers the protocol with a unique ID
func (p *Protocol) Register(r *protocol.Registry) error {
	return r.Register(protocolID, p)
}

// ForceRegister registers the protocol with a unique ID and force replacing the previous protocol if it exists
func (p *Protocol) ForceRegister(r *protocol.Registry) error {
	return r.ForceRegister(protocolID, p)
}

// CreateGenesisStates sets the staking constants and bonds the genesis stakers
func (p *Protocol) CreateGenesisStates(ctx context.Context, sm protocol.StateManager) error {
	slashingSwitch, err := action.ParseSlashingSwitch(p.cfg.SlashingAllowedFor)
	if err != nil {
		return err
	}
	for _, f := range []func() error{
		func() error { return p.putValidatorCount(sm, p.cfg.ValidatorCount) },
		func() error { return putUint32(sm, _minimumValidatorCountKey, p.cfg.MinimumValidatorCount) },
		func() error { return p.putInvulnerables(sm, p.cfg.Invulnerables()) },
		func() error { return p.putForceEra(sm, NotForcing) },
		func() error { return p.putCommissionCap(sm, p.cfg.ValidatorCommissionCap) },
		func() error { return p.putMinBondThreshold(sm, p.cfg.MinimumBondThreshold()) },
		func() error { return p.putSlashingSwitch(sm, slashingSwitch) },
		func() error { return p.putHistoryDepth(sm, p.cfg.HistoryDepth) },
		func() error { return p.putElectionStatus(sm, &ElectionStatus{}) },
	} {
		if err := f(); err != nil {
			return err
		}
	}
	for i := range p.cfg.Stakers {
		if err := p.createGenesisStaker(ctx, sm, &p.cfg.Stakers[i]); err != nil {
			return errors.Wrapf(err, "failed to create genesis staker %s", p.cfg.Stakers[i].StashAddr)
		}
	}
	return nil
}

func (p *Protocol) createGenesisStaker(ctx context.Context, sm protocol.StateManager, s *genesis.Staker) error {
	stash, controller := s.Stash(), s.Controller()
	if err := p.bond(ctx, sm, stash, controller, s.Value(), action.StakedPayee()); err != nil {
		return err
	}
	if !s.Validator {
		targets := s.TargetAddrs()
		if len(targets) == 0 {
			return nil
		}
		if err := p.putNominations(sm, stash, &Nominations{Targets: targets}); err != nil {
			return err
		}
		protocol.EmitEvent(ctx, p.addr.String(), &NominatedEvent{Stash: stash.String(), Targets: addrStrings(targets)})
		return nil
	}
	did, ok, err := p.identity.GetIdentity(sm, stash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrStashIdentityDoesNotExist
	}
	prefs, ok, err := p.PermissionedIdentity(sm, did)
	if err != nil {
		return err
	}
	if !ok {
		prefs = &PermissionedIdentityPrefs{IntendedCount: p.cfg.DefaultIntendedCount}
	}
	prefs.RunningCount++
	if prefs.IntendedCount < prefs.RunningCount {
		prefs.IntendedCount = prefs.RunningCount
	}
	if err := p.putPermissioned(sm, did, prefs); err != nil {
		return err
	}
	return p.putValidatorPrefs(sm, stash, &ValidatorPrefs{Commission: p.cfg.ValidatorCommissionCap})
}

// OnInitialize pays the block author, runs the payouts scheduled for the block and opens the election window
func (p *Protocol) OnInitialize(ctx context.Context, sm protocol.StateManager) error {
	blkCtx := protocol.MustGetBlockCtx(ctx)
	if blkCtx.Producer != nil {
		if err := p.RewardByIDs(sm, map[string]uint32{blkCtx.Producer.String(): _blockAuthorPoints}); err != nil {
			return err
		}
	}
	if err := p.runScheduledPayouts(ctx, sm); err != nil {
		return err
	}
	return p.maybeOpenElectionWindow(ctx, sm)
}

// OnFinalize records the start of the active era in its first block
func (p *Protocol) OnFinalize(ctx context.Context, sm protocol.StateManager) error {
	active, ok, err := p.ActiveEra(sm)
	if err != nil || !ok || active.HasStart {
		return err
	}
	active.Start = uint64(protocol.MustGetBlockCtx(ctx).BlockTimeStamp.UnixMilli())
	active.HasStart = true
	return p.putActiveEra(sm, active)
}

func (p *Protocol) receipt(ctx context.Context) *action.Receipt {
	blkCtx := protocol.MustGetBlockCtx(ctx)
	return &action.Receipt{
		Status:          action.SuccessReceiptStatus,
		BlockHeight:     blkCtx.BlockHeight,
		ContractAddress: p.addr.String(),
	}
}

func (p *Protocol) emit(ctx context.Context, ev action.Event) {
	protocol.EmitEvent(ctx, p.addr.String(), ev)
}

func now(ctx context.Context) time.Time {
	bcCtx, ok := protocol.GetBlockCtx(ctx)
	if !ok {
		// genesis runs without a block
		return time.Time{}
	}
	return bcCtx.BlockTimeStamp
}

// ensureWindowClosed rejects calls that would change the election inputs while solutions are being submitted
func (p *Protocol) ensureWindowClosed(sr protocol.StateReader) error {
	status, err := p.ElectionStatus(sr)
	if err != nil {
		return err
	}
	if status.Open {
		return ErrCallNotAllowed
	}
	return nil
}

// controllerLedger returns the ledger of the signer, which must be a controller
func (p *Protocol) controllerLedger(sr protocol.StateReader, controller address.Address) (*Ledger, error) {
	l, ok, err := p.ledger(sr, controller)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotController
	}
	return l, nil
}

// updateLedger stores the ledger and locks its total on the stash
func (p *Protocol) updateLedger(sm protocol.StateManager, controller address.Address, l *Ledger) error {
	if err := p.currency.SetLock(sm, l.Stash, l.Total); err != nil {
		return errors.Wrapf(err, "failed to lock stake of %s", l.Stash.String())
	}
	return p.putLedger(sm, controller, l)
}

func isStakingAction(act action.Action) bool {
	switch act.(type) {
	case *action.Bond, *action.BondExtra, *action.Unbond, *action.Rebond, *action.WithdrawUnbonded,
		*action.SetPayee, *action.SetController, *action.Validate, *action.Nominate, *action.Chill,
		*action.PayoutStakers, *action.PayoutStakersBySystem, *action.SubmitElectionSolution,
		*action.SubmitElectionSolutionUnsigned, *action.SetValidatorCount, *action.IncreaseValidatorCount,
		*action.ScaleValidatorCount, *action.ForceNoEras, *action.ForceNewEra, *action.ForceNewEraAlways,
		*action.SetInvulnerables, *action.ForceUnstake, *action.ReapStash, *action.CancelDeferredSlash,
		*action.SetHistoryDepth, *action.SetCommissionCap, *action.SetMinBondThreshold,
		*action.ChangeSlashingAllowedFor, *action.ReportOffence, *action.AddPermissionedValidator,
		*action.RemovePermissionedValidator, *action.UpdatePermissionedValidatorIntendedCount,
		*action.ChillFromGovernance, *action.ValidateCDDExpiryNominators:
		return true
	}
	return false
}

func actionName(act action.Action) string {
	name := fmt.Sprintf("%T", act)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func addrStrings(addrs []address.Address) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.String()
	}
	return out
}

func cloneBig(v *big.Int) *big.Int {
	return new(big.Int).Set(v)
}
