// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package protocol

import (
	"context"

	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"

	"github.com/iotexproject/iotex-npos/action"
)

// Envelope is an action together with the privilege it is dispatched with
type Envelope struct {
	Action action.Action
	Origin Origin
	// Caller is the signer of a signed action
	Caller address.Address
}

// NewSignedEnvelope wraps an action signed by caller
func NewSignedEnvelope(act action.Action, caller address.Address) *Envelope {
	return &Envelope{Action: act, Origin: OriginSigned, Caller: caller}
}

// NewEnvelope wraps an action dispatched with a privileged or unsigned origin
func NewEnvelope(act action.Action, origin Origin) *Envelope {
	return &Envelope{Action: act, Origin: origin}
}

// SanityCheck validates the envelope without touching the state
func (e *Envelope) SanityCheck() error {
	if e.Action == nil {
		return action.ErrNilAction
	}
	if e.Origin == OriginSigned && e.Caller == nil {
		return errors.Wrap(ErrBadOrigin, "signed action without caller")
	}
	return e.Action.SanityCheck()
}

// Context attaches the action context of the envelope
func (e *Envelope) Context(ctx context.Context) context.Context {
	return WithActionCtx(ctx, ActionCtx{Caller: e.Caller, Origin: e.Origin})
}
