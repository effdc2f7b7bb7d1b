// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package slashing

import (
	"context"
	"math/big"

	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/iotexproject/iotex-npos/action/protocol"
)

// ApplySlash takes an unapplied slash off the ledgers of the validator and its nominators, then pays the reporters
// out of the slashed amount. Whatever is not paid out is burned.
func (s *Slasher) ApplySlash(ctx context.Context, sm protocol.StateManager, u *UnappliedSlash) error {
	payout := new(big.Int)
	if u.Payout != nil {
		payout.Set(u.Payout)
	}
	slashed := new(big.Int)
	if err := s.doSlash(ctx, sm, u.Validator, u.Own, payout, slashed); err != nil {
		return errors.Wrapf(err, "failed to slash validator %s", u.Validator.String())
	}
	for _, o := range u.Others {
		if err := s.doSlash(ctx, sm, o.Who, o.Value, payout, slashed); err != nil {
			return errors.Wrapf(err, "failed to slash nominator %s", o.Who.String())
		}
	}
	_slashMtc.WithLabelValues("applied").Inc()
	return s.payReporters(sm, payout, slashed, u.Reporters)
}

func (s *Slasher) doSlash(ctx context.Context, sm protocol.StateManager, stash address.Address, value, payout, slashed *big.Int) error {
	if value == nil || value.Sign() == 0 {
		return nil
	}
	fromLedger, fromBalance, err := s.host.DoSlash(ctx, sm, stash, value)
	if err != nil {
		return err
	}
	slashed.Add(slashed, fromBalance)
	if missing := new(big.Int).Sub(fromLedger, fromBalance); missing.Sign() > 0 {
		payout.Sub(payout, missing)
		if payout.Sign() < 0 {
			payout.SetInt64(0)
		}
	}
	return nil
}

// payReporters splits the payout evenly among the reporters, bounded by what was actually slashed
func (s *Slasher) payReporters(sm protocol.StateManager, payout, slashed *big.Int, reporters []address.Address) error {
	if payout.Sign() == 0 || len(reporters) == 0 {
		s.logger.Debug("Burned slashed funds", zap.String("amount", slashed.String()))
		return nil
	}
	if payout.Cmp(slashed) > 0 {
		payout = slashed
	}
	per := new(big.Int).Quo(payout, big.NewInt(int64(len(reporters))))
	if per.Sign() == 0 {
		return nil
	}
	for _, r := range reporters {
		if err := s.host.DepositCreating(sm, r, per); err != nil {
			return errors.Wrapf(err, "failed to reward reporter %s", r.String())
		}
	}
	s.logger.Debug("Rewarded reporters",
		zap.Int("reporters", len(reporters)),
		zap.String("each", per.String()),
		zap.String("slashed", slashed.String()))
	return nil
}
