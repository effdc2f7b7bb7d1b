// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package session rotates the validator set in fixed length sessions
package session

import (
	"context"
	"sort"

	"github.com/iotexproject/go-pkgs/hash"
	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/iotexproject/iotex-npos/action"
	"github.com/iotexproject/iotex-npos/action/protocol"
	"github.com/iotexproject/iotex-npos/blockchain/genesis"
	"github.com/iotexproject/iotex-npos/pkg/log"
	"github.com/iotexproject/iotex-npos/pkg/util/byteutil"
	"github.com/iotexproject/iotex-npos/state"
)

const (
	protocolID = "session"

	_sessionNamespace = "Session"

	_keysTag       = 'k'
	_historicalTag = 'h'
)

var _globalsKey = []byte("globals")

type (
	// Manager plans the validator sets of future sessions and is told when sessions start and end
	Manager interface {
		// NewSession returns the validators of the session, nil keeps the current set
		NewSession(context.Context, protocol.StateManager, uint32) ([]address.Address, error)
		StartSession(context.Context, protocol.StateManager, uint32) error
		EndSession(context.Context, protocol.StateManager, uint32) error
	}

	// Protocol defines the protocol of session rotation
	Protocol struct {
		addr          address.Address
		sessionLength uint64
		manager       Manager
	}

	globals struct {
		Index      uint32
		Validators [][]byte
		Queued     [][]byte
		// Disabled holds sorted indices into Validators
		Disabled []uint32
		// HistoryStart is the first session whose validator set is still stored
		HistoryStart uint32
	}

	historical struct {
		Validators [][]byte
	}

	keys struct {
		Keys []byte
	}

	// NewSessionEvent is emitted when a session starts
	NewSessionEvent struct {
		Index uint32
	}
)

// Topic returns the event topic
func (e *NewSessionEvent) Topic() string { return "NewSession" }

// NewProtocol instantiates the protocol of session
func NewProtocol(cfg genesis.Blockchain) *Protocol {
	h := hash.Hash160b([]byte(protocolID))
	addr, err := address.FromBytes(h[:])
	if err != nil {
		log.L().Panic("Error when constructing the address of session protocol", zap.Error(err))
	}
	if cfg.SessionLength == 0 {
		log.L().Panic("Session length must be positive")
	}
	return &Protocol{addr: addr, sessionLength: cfg.SessionLength}
}

// SetManager sets the planner of validator sets
func (p *Protocol) SetManager(m Manager) { p.manager = m }

// SessionLength returns the number of blocks in a session
func (p *Protocol) SessionLength() uint64 { return p.sessionLength }

// CreateGenesisStates plans the validators of the first two sessions and starts session 0
func (p *Protocol) CreateGenesisStates(ctx context.Context, sm protocol.StateManager) error {
	if p.manager == nil {
		return errors.New("session manager is not set")
	}
	initial, err := p.manager.NewSession(ctx, sm, 0)
	if err != nil {
		return err
	}
	queued, err := p.manager.NewSession(ctx, sm, 1)
	if err != nil {
		return err
	}
	if queued == nil {
		queued = initial
	}
	g := &globals{Validators: toBytes(initial), Queued: toBytes(queued)}
	if err := p.putGlobals(sm, g); err != nil {
		return err
	}
	if err := p.storeHistorical(sm, 0, g.Validators); err != nil {
		return err
	}
	return p.manager.StartSession(ctx, sm, 0)
}

// OnInitialize rotates the session on a session boundary
func (p *Protocol) OnInitialize(ctx context.Context, sm protocol.StateManager) error {
	blkCtx := protocol.MustGetBlockCtx(ctx)
	if blkCtx.BlockHeight == 0 || blkCtx.BlockHeight%p.sessionLength != 0 {
		return nil
	}
	return p.rotate(ctx, sm)
}

func (p *Protocol) rotate(ctx context.Context, sm protocol.StateManager) error {
	g, err := p.loadGlobals(sm)
	if err != nil {
		return err
	}
	if err := p.manager.EndSession(ctx, sm, g.Index); err != nil {
		return errors.Wrapf(err, "failed to end session %d", g.Index)
	}
	g.Index++
	g.Validators = g.Queued
	g.Disabled = nil
	if err := p.putGlobals(sm, g); err != nil {
		return err
	}
	if err := p.storeHistorical(sm, g.Index, g.Validators); err != nil {
		return err
	}
	if err := p.manager.StartSession(ctx, sm, g.Index); err != nil {
		return errors.Wrapf(err, "failed to start session %d", g.Index)
	}
	next, err := p.manager.NewSession(ctx, sm, g.Index+1)
	if err != nil {
		return errors.Wrapf(err, "failed to plan session %d", g.Index+1)
	}
	// the manager may have disabled validators while starting the session
	g, err = p.loadGlobals(sm)
	if err != nil {
		return err
	}
	if next != nil {
		g.Queued = toBytes(next)
	} else {
		g.Queued = g.Validators
	}
	if err := p.putGlobals(sm, g); err != nil {
		return err
	}
	log.Logger("session").Info("New session",
		zap.Uint32("index", g.Index),
		zap.Int("validators", len(g.Validators)),
		zap.Bool("changed", next != nil))
	protocol.EmitEvent(ctx, p.addr.String(), &NewSessionEvent{Index: g.Index})
	return nil
}

// Handle handles a session action
func (p *Protocol) Handle(ctx context.Context, act action.Action, sm protocol.StateManager) (*action.Receipt, error) {
	sk, ok := act.(*action.SetKeys)
	if !ok {
		return nil, nil
	}
	actionCtx, err := protocol.EnsureSigned(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := sm.PutState(&keys{Keys: sk.Keys()}, protocol.NamespaceOption(_sessionNamespace), protocol.KeyOption(keysKey(actionCtx.Caller))); err != nil {
		return nil, err
	}
	return &action.Receipt{
		Status:          action.SuccessReceiptStatus,
		BlockHeight:     protocol.MustGetBlockCtx(ctx).BlockHeight,
		ContractAddress: p.addr.String(),
	}, nil
}

// Validate validates a session action
func (p *Protocol) Validate(ctx context.Context, act action.Action, _ protocol.StateReader) error {
	if sk, ok := act.(*action.SetKeys); ok {
		return sk.SanityCheck()
	}
	return nil
}

// ReadState is not supported by session protocol
func (p *Protocol) ReadState(context.Context, protocol.StateReader, []byte, ...[]byte) ([]byte, error) {
	return nil, protocol.ErrUnimplemented
}

// Register registers the protocol with a unique ID
func (p *Protocol) Register(r *protocol.Registry) error {
	return r.Register(protocolID, p)
}

// ForceRegister registers the protocol with a unique ID and force replacing the previous protocol if it exists
func (p *Protocol) ForceRegister(r *protocol.Registry) error {
	return r.ForceRegister(protocolID, p)
}

// CurrentIndex returns the index of the current session
func (p *Protocol) CurrentIndex(sr protocol.StateReader) (uint32, error) {
	g, err := p.loadGlobals(sr)
	if err != nil {
		return 0, err
	}
	return g.Index, nil
}

// Validators returns the validators of the current session
func (p *Protocol) Validators(sr protocol.StateReader) ([]address.Address, error) {
	g, err := p.loadGlobals(sr)
	if err != nil {
		return nil, err
	}
	return fromBytes(g.Validators)
}

// QueuedKeys returns the validators of the next session with the keys they set
func (p *Protocol) QueuedKeys(sr protocol.StateReader) ([]address.Address, [][]byte, error) {
	g, err := p.loadGlobals(sr)
	if err != nil {
		return nil, nil, err
	}
	queued, err := fromBytes(g.Queued)
	if err != nil {
		return nil, nil, err
	}
	out := make([][]byte, len(queued))
	for i, v := range queued {
		var k keys
		_, err := sr.State(&k, protocol.NamespaceOption(_sessionNamespace), protocol.KeyOption(keysKey(v)))
		switch errors.Cause(err) {
		case nil:
			out[i] = k.Keys
		case state.ErrStateNotExist:
		default:
			return nil, nil, err
		}
	}
	return queued, out, nil
}

// DisabledValidators returns the sorted indices of validators disabled in the current session
func (p *Protocol) DisabledValidators(sr protocol.StateReader) ([]uint32, error) {
	g, err := p.loadGlobals(sr)
	if err != nil {
		return nil, err
	}
	return g.Disabled, nil
}

// DisableValidator disables a validator of the current session, returns false if it was already disabled or is not
// a validator
func (p *Protocol) DisableValidator(sm protocol.StateManager, who address.Address) (bool, error) {
	g, err := p.loadGlobals(sm)
	if err != nil {
		return false, err
	}
	idx := -1
	for i, v := range g.Validators {
		if address.Equal(mustAddress(v), who) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, nil
	}
	pos := sort.Search(len(g.Disabled), func(i int) bool { return g.Disabled[i] >= uint32(idx) })
	if pos < len(g.Disabled) && g.Disabled[pos] == uint32(idx) {
		return false, nil
	}
	g.Disabled = append(g.Disabled, 0)
	copy(g.Disabled[pos+1:], g.Disabled[pos:])
	g.Disabled[pos] = uint32(idx)
	return true, p.putGlobals(sm, g)
}

// EstimateNextNewSession returns the next block at which the session rotates
func (p *Protocol) EstimateNextNewSession(now uint64) uint64 {
	return (now/p.sessionLength + 1) * p.sessionLength
}

// HistoricalValidators returns the validator set of a past session still in history
func (p *Protocol) HistoricalValidators(sr protocol.StateReader, index uint32) ([]address.Address, error) {
	var h historical
	if _, err := sr.State(&h, protocol.NamespaceOption(_sessionNamespace), protocol.KeyOption(historicalKey(index))); err != nil {
		return nil, err
	}
	return fromBytes(h.Validators)
}

// PruneHistoricalUpTo removes the validator sets of sessions before upTo
func (p *Protocol) PruneHistoricalUpTo(sm protocol.StateManager, upTo uint32) error {
	g, err := p.loadGlobals(sm)
	if err != nil {
		return err
	}
	for i := g.HistoryStart; i < upTo && i <= g.Index; i++ {
		if _, err := sm.DelState(protocol.NamespaceOption(_sessionNamespace), protocol.KeyOption(historicalKey(i))); err != nil {
			return err
		}
	}
	if upTo > g.HistoryStart {
		g.HistoryStart = upTo
		return p.putGlobals(sm, g)
	}
	return nil
}

func (p *Protocol) storeHistorical(sm protocol.StateManager, index uint32, validators [][]byte) error {
	_, err := sm.PutState(&historical{Validators: validators}, protocol.NamespaceOption(_sessionNamespace), protocol.KeyOption(historicalKey(index)))
	return err
}

func (p *Protocol) loadGlobals(sr protocol.StateReader) (*globals, error) {
	g := &globals{}
	_, err := sr.State(g, protocol.NamespaceOption(_sessionNamespace), protocol.KeyOption(_globalsKey))
	switch errors.Cause(err) {
	case nil, state.ErrStateNotExist:
		return g, nil
	default:
		return nil, err
	}
}

func (p *Protocol) putGlobals(sm protocol.StateManager, g *globals) error {
	_, err := sm.PutState(g, protocol.NamespaceOption(_sessionNamespace), protocol.KeyOption(_globalsKey))
	return err
}

func keysKey(addr address.Address) []byte {
	return byteutil.Concat([]byte{_keysTag}, addr.Bytes())
}

func historicalKey(index uint32) []byte {
	return byteutil.Concat([]byte{_historicalTag}, byteutil.Uint32ToBytesBigEndian(index))
}

func toBytes(addrs []address.Address) [][]byte {
	out := make([][]byte, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.Bytes())
	}
	return out
}

func fromBytes(bs [][]byte) ([]address.Address, error) {
	out := make([]address.Address, 0, len(bs))
	for _, b := range bs {
		a, err := address.FromBytes(b)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func mustAddress(b []byte) address.Address {
	a, err := address.FromBytes(b)
	if err != nil {
		log.L().Panic("Invalid stored address", zap.Error(err))
	}
	return a
}
