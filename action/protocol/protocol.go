// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package protocol

import (
	"context"

	"github.com/pkg/errors"

	"github.com/iotexproject/iotex-npos/action"
)

var (
	// ErrUnimplemented indicates a method is not implemented yet
	ErrUnimplemented = errors.New("method is unimplemented")
	// ErrBadOrigin indicates the action was dispatched with the wrong privilege
	ErrBadOrigin = errors.New("bad origin")
)

type (
	// Protocol defines the protocol interfaces atop the staking chain
	Protocol interface {
		ActionValidator
		ActionHandler
		ReadState(context.Context, StateReader, []byte, ...[]byte) ([]byte, error)
		Register(*Registry) error
		ForceRegister(*Registry) error
	}

	// ActionValidator is the interface of validating an action
	ActionValidator interface {
		Validate(context.Context, action.Action, StateReader) error
	}

	// ActionHandler is the interface for the action handlers. For each incoming action, the assembled actions will be
	// called one by one to process it. ActionHandler implementation is supposed to parse the sub-type of the action to
	// decide if it wants to handle this action or not. A nil receipt means the action is not for the protocol.
	ActionHandler interface {
		Handle(context.Context, action.Action, StateManager) (*action.Receipt, error)
	}

	// GenesisStateCreator creates some genesis states
	GenesisStateCreator interface {
		CreateGenesisStates(context.Context, StateManager) error
	}

	// BlockInitializer is invoked before the actions of a block are handled
	BlockInitializer interface {
		OnInitialize(context.Context, StateManager) error
	}

	// BlockFinalizer is invoked after the actions of a block are handled
	BlockFinalizer interface {
		OnFinalize(context.Context, StateManager) error
	}
)

// EnsureOrigin returns ErrBadOrigin unless the action context carries one of the allowed origins.
// Root passes every privileged check.
func EnsureOrigin(ctx context.Context, allowed ...Origin) error {
	ac, ok := GetActionCtx(ctx)
	if !ok {
		return errors.Wrap(ErrBadOrigin, "missing action context")
	}
	for _, o := range allowed {
		if ac.Origin == o || (ac.Origin == OriginRoot && o != OriginSigned && o != OriginNone) {
			return nil
		}
	}
	return errors.Wrapf(ErrBadOrigin, "origin %s", ac.Origin)
}

// EnsureSigned returns the caller of a signed action
func EnsureSigned(ctx context.Context) (ActionCtx, error) {
	ac, ok := GetActionCtx(ctx)
	if !ok || ac.Origin != OriginSigned || ac.Caller == nil {
		return ac, errors.Wrap(ErrBadOrigin, "expect a signed action")
	}
	return ac, nil
}
