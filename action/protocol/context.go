// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package protocol

import (
	"context"
	"time"

	"github.com/iotexproject/iotex-address/address"

	"github.com/iotexproject/iotex-npos/action"
	"github.com/iotexproject/iotex-npos/pkg/log"
)

type (
	blockCtxKey struct{}

	actionCtxKey struct{}

	eventLogKey struct{}
)

// Origin is the privilege an action is dispatched with
type Origin uint8

const (
	// OriginSigned is an ordinary account signature
	OriginSigned Origin = iota
	// OriginNone is an unsigned action submitted by a local worker
	OriginNone
	// OriginRoot is the superuser
	OriginRoot
	// OriginGovernance is the committee that administers validators
	OriginGovernance
	// OriginCDDProvider is a trusted issuer of due diligence claims
	OriginCDDProvider
)

func (o Origin) String() string {
	switch o {
	case OriginNone:
		return "none"
	case OriginRoot:
		return "root"
	case OriginGovernance:
		return "governance"
	case OriginCDDProvider:
		return "cdd-provider"
	default:
		return "signed"
	}
}

type (
	// BlockCtx provides block auxiliary information
	BlockCtx struct {
		// height of block containing those actions
		BlockHeight uint64
		// timestamp of block containing those actions
		BlockTimeStamp time.Time
		// producer who compose those actions
		Producer address.Address
	}

	// ActionCtx provides action auxiliary information
	ActionCtx struct {
		// Caller is the signer, nil for unsigned and privileged actions
		Caller address.Address
		// Origin is the privilege the action is dispatched with
		Origin Origin
	}

	// EventLog collects the events emitted while a context is alive
	EventLog struct {
		logs []*action.Log
	}
)

// WithBlockCtx add BlockCtx into context
func WithBlockCtx(ctx context.Context, blk BlockCtx) context.Context {
	return context.WithValue(ctx, blockCtxKey{}, blk)
}

// GetBlockCtx gets BlockCtx
func GetBlockCtx(ctx context.Context) (BlockCtx, bool) {
	blk, ok := ctx.Value(blockCtxKey{}).(BlockCtx)
	return blk, ok
}

// MustGetBlockCtx must get BlockCtx
func MustGetBlockCtx(ctx context.Context) BlockCtx {
	blk, ok := ctx.Value(blockCtxKey{}).(BlockCtx)
	if !ok {
		log.S().Panic("Miss block context")
	}
	return blk
}

// WithActionCtx add ActionCtx into context
func WithActionCtx(ctx context.Context, ac ActionCtx) context.Context {
	return context.WithValue(ctx, actionCtxKey{}, ac)
}

// GetActionCtx gets ActionCtx
func GetActionCtx(ctx context.Context) (ActionCtx, bool) {
	ac, ok := ctx.Value(actionCtxKey{}).(ActionCtx)
	return ac, ok
}

// MustGetActionCtx must get ActionCtx
func MustGetActionCtx(ctx context.Context) ActionCtx {
	ac, ok := ctx.Value(actionCtxKey{}).(ActionCtx)
	if !ok {
		log.S().Panic("Miss action context")
	}
	return ac
}

// WithEventLog attaches an event log to the context, events emitted below it are collected there
func WithEventLog(ctx context.Context, el *EventLog) context.Context {
	return context.WithValue(ctx, eventLogKey{}, el)
}

// EmitEvent records an event in the event log of the context, if any
func EmitEvent(ctx context.Context, addr string, ev action.Event) {
	el, ok := ctx.Value(eventLogKey{}).(*EventLog)
	if !ok {
		return
	}
	var height uint64
	if blk, ok := GetBlockCtx(ctx); ok {
		height = blk.BlockHeight
	}
	el.logs = append(el.logs, &action.Log{Address: addr, BlockHeight: height, Event: ev})
}

// Logs returns the collected logs
func (el *EventLog) Logs() []*action.Log { return el.logs }

// Len returns the number of collected logs
func (el *EventLog) Len() int { return len(el.logs) }

// Truncate drops the logs collected after the first n, used when the state they describe is reverted
func (el *EventLog) Truncate(n int) {
	if n < len(el.logs) {
		el.logs = el.logs[:n]
	}
}
