// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package cmd

import (
	"math/big"
	"os"
	"sort"

	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/iotexproject/iotex-npos/action"
	"github.com/iotexproject/iotex-npos/action/protocol"
	"github.com/iotexproject/iotex-npos/pkg/perbill"
)

type (
	// Script lists the actions a simulation injects
	Script struct {
		Actions []ScriptedAction `yaml:"actions"`
	}

	// ScriptedAction is an action entering the pool right before block Block is produced. Actions without a
	// caller are dispatched as root.
	ScriptedAction struct {
		Block      uint64   `yaml:"block"`
		Kind       string   `yaml:"kind"`
		From       string   `yaml:"from"`
		To         string   `yaml:"to"`
		Value      string   `yaml:"value"`
		Era        uint32   `yaml:"era"`
		Commission uint32   `yaml:"commission"`
		Targets    []string `yaml:"targets"`
	}
)

func readScript(path string) (*Script, error) {
	if path == "" {
		return &Script{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read the script")
	}
	script := &Script{}
	if err := yaml.UnmarshalStrict(data, script); err != nil {
		return nil, errors.Wrap(err, "failed to parse the script")
	}
	sort.SliceStable(script.Actions, func(i, j int) bool { return script.Actions[i].Block < script.Actions[j].Block })
	return script, nil
}

// At returns the envelopes due at block height
func (s *Script) At(height uint64) ([]*protocol.Envelope, error) {
	var envs []*protocol.Envelope
	for i := range s.Actions {
		sa := &s.Actions[i]
		if sa.Block != height {
			continue
		}
		env, err := sa.envelope()
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s at block %d", sa.Kind, sa.Block)
		}
		envs = append(envs, env)
	}
	return envs, nil
}

func (sa *ScriptedAction) envelope() (*protocol.Envelope, error) {
	act, err := sa.action()
	if err != nil {
		return nil, err
	}
	if sa.From == "" {
		return protocol.NewEnvelope(act, protocol.OriginRoot), nil
	}
	caller, err := address.FromString(sa.From)
	if err != nil {
		return nil, err
	}
	return protocol.NewSignedEnvelope(act, caller), nil
}

func (sa *ScriptedAction) action() (action.Action, error) {
	switch sa.Kind {
	case "transfer":
		to, value, err := sa.toAndValue()
		if err != nil {
			return nil, err
		}
		return action.NewTransfer(to, value), nil
	case "bond":
		controller, value, err := sa.toAndValue()
		if err != nil {
			return nil, err
		}
		return action.NewBond(controller, value, action.StakedPayee()), nil
	case "bondExtra":
		value, err := sa.value()
		if err != nil {
			return nil, err
		}
		return action.NewBondExtra(value), nil
	case "unbond":
		value, err := sa.value()
		if err != nil {
			return nil, err
		}
		return action.NewUnbond(value), nil
	case "rebond":
		value, err := sa.value()
		if err != nil {
			return nil, err
		}
		return action.NewRebond(value), nil
	case "withdrawUnbonded":
		return action.NewWithdrawUnbonded(0), nil
	case "validate":
		return action.NewValidate(perbill.FromParts(sa.Commission), false), nil
	case "nominate":
		targets := make([]address.Address, 0, len(sa.Targets))
		for _, t := range sa.Targets {
			addr, err := address.FromString(t)
			if err != nil {
				return nil, err
			}
			targets = append(targets, addr)
		}
		return action.NewNominate(targets), nil
	case "chill":
		return action.NewChill(), nil
	case "payoutStakers":
		validator, err := address.FromString(sa.To)
		if err != nil {
			return nil, err
		}
		return action.NewPayoutStakers(validator, sa.Era), nil
	case "forceNewEra":
		return &action.ForceNewEra{}, nil
	}
	return nil, errors.Errorf("unknown action kind %q", sa.Kind)
}

func (sa *ScriptedAction) value() (*big.Int, error) {
	v, ok := new(big.Int).SetString(sa.Value, 10)
	if !ok || v.Sign() < 0 {
		return nil, errors.Errorf("invalid value %q", sa.Value)
	}
	return v, nil
}

func (sa *ScriptedAction) toAndValue() (address.Address, *big.Int, error) {
	to, err := address.FromString(sa.To)
	if err != nil {
		return nil, nil, err
	}
	v, err := sa.value()
	return to, v, err
}
