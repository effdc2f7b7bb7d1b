// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package identity keeps the decentralized identities linked to accounts and their due diligence claims
package identity

import (
	"context"
	"encoding/hex"
	"time"

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
	protocolID = "identity"

	_identityNamespace = "Identity"

	_accountTag = 'a'
	_didTag     = 'd'
)

var (
	// ErrIdentityExists is the error that the identity is already registered
	ErrIdentityExists = errors.New("identity already exists")
	// ErrIdentityNotExist is the error that the identity is not registered
	ErrIdentityNotExist = errors.New("identity does not exist")
	// ErrAccountLinked is the error that the account already belongs to an identity
	ErrAccountLinked = errors.New("account is linked to another identity")
)

type (
	// Protocol defines the protocol of identities and due diligence claims
	Protocol struct {
		addr address.Address
		cfg  genesis.Identity
	}

	// Record is the stored state of an identity
	Record struct {
		Accounts [][]byte
		CDD      bool
		// Expiry is the unix time the claim expires, zero never expires
		Expiry uint64
	}

	link struct {
		DID []byte
	}

	// RegisteredEvent is emitted when an identity is registered
	RegisteredEvent struct {
		DID string
	}

	// ClaimEvent is emitted when a due diligence claim changes
	ClaimEvent struct {
		DID     string
		Revoked bool
		Expiry  uint64
	}
)

// Topic returns the event topic
func (e *RegisteredEvent) Topic() string { return "DIDRegistered" }

// Topic returns the event topic
func (e *ClaimEvent) Topic() string { return "CDDClaimChanged" }

// NewProtocol instantiates the protocol of identity
func NewProtocol(cfg genesis.Identity) *Protocol {
	h := hash.Hash160b([]byte(protocolID))
	addr, err := address.FromBytes(h[:])
	if err != nil {
		log.L().Panic("Error when constructing the address of identity protocol", zap.Error(err))
	}
	return &Protocol{addr: addr, cfg: cfg}
}

// CreateGenesisStates registers the genesis identities
func (p *Protocol) CreateGenesisStates(ctx context.Context, sm protocol.StateManager) error {
	for i := range p.cfg.Identities {
		gi := &p.cfg.Identities[i]
		did := gi.DID()
		if err := p.register(sm, did, gi.AccountAddrs()); err != nil {
			return errors.Wrapf(err, "failed to register genesis identity %s", hex.EncodeToString(did[:]))
		}
		if gi.CDD {
			if err := p.setClaim(sm, did, true, uint64(gi.CDDExpiry)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Handle handles an identity action
func (p *Protocol) Handle(ctx context.Context, act action.Action, sm protocol.StateManager) (*action.Receipt, error) {
	switch act := act.(type) {
	case *action.RegisterDID:
		return p.handleRegisterDID(ctx, act, sm)
	case *action.AddCDDClaim:
		return p.handleAddCDDClaim(ctx, act, sm)
	case *action.RevokeCDDClaim:
		return p.handleRevokeCDDClaim(ctx, act, sm)
	}
	return nil, nil
}

// Validate validates an identity action
func (p *Protocol) Validate(ctx context.Context, act action.Action, _ protocol.StateReader) error {
	switch act := act.(type) {
	case *action.RegisterDID:
		return act.SanityCheck()
	case *action.AddCDDClaim:
		return act.SanityCheck()
	case *action.RevokeCDDClaim:
		return act.SanityCheck()
	}
	return nil
}

// ReadState reads identities. Method "Identity" takes an address and returns the hex encoded identity.
func (p *Protocol) ReadState(ctx context.Context, sr protocol.StateReader, method []byte, args ...[]byte) ([]byte, error) {
	switch string(method) {
	case "Identity":
		if len(args) != 1 {
			return nil, errors.Errorf("invalid number of arguments %d", len(args))
		}
		addr, err := address.FromString(string(args[0]))
		if err != nil {
			return nil, err
		}
		did, ok, err := p.GetIdentity(sr, addr)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrIdentityNotExist
		}
		return []byte(hex.EncodeToString(did[:])), nil
	default:
		return nil, errors.Wrapf(protocol.ErrUnimplemented, "unknown method %s", method)
	}
}

// Register registers the protocol with a unique ID
func (p *Protocol) Register(r *protocol.Registry) error {
	return r.Register(protocolID, p)
}

// ForceRegister registers the protocol with a unique ID and force replacing the previous protocol if it exists
func (p *Protocol) ForceRegister(r *protocol.Registry) error {
	return r.ForceRegister(protocolID, p)
}

// GetIdentity returns the identity an account is linked to
func (p *Protocol) GetIdentity(sr protocol.StateReader, who address.Address) (hash.Hash256, bool, error) {
	var l link
	_, err := sr.State(&l, protocol.NamespaceOption(_identityNamespace), protocol.KeyOption(accountKey(who)))
	switch errors.Cause(err) {
	case nil:
		return hash.BytesToHash256(l.DID), true, nil
	case state.ErrStateNotExist:
		return hash.ZeroHash256, false, nil
	default:
		return hash.ZeroHash256, false, err
	}
}

// HasValidCDD returns whether the identity holds a due diligence claim not expired at the given time
func (p *Protocol) HasValidCDD(sr protocol.StateReader, did hash.Hash256, at time.Time) (bool, error) {
	rec, err := p.record(sr, did)
	switch errors.Cause(err) {
	case nil:
	case ErrIdentityNotExist:
		return false, nil
	default:
		return false, err
	}
	if !rec.CDD {
		return false, nil
	}
	return rec.Expiry == 0 || at.Unix() < int64(rec.Expiry), nil
}

func (p *Protocol) handleRegisterDID(ctx context.Context, act *action.RegisterDID, sm protocol.StateManager) (*action.Receipt, error) {
	if err := protocol.EnsureOrigin(ctx, protocol.OriginCDDProvider, protocol.OriginGovernance); err != nil {
		return nil, err
	}
	if err := p.register(sm, act.DID(), act.Accounts()); err != nil {
		return nil, err
	}
	did := act.DID()
	protocol.EmitEvent(ctx, p.addr.String(), &RegisteredEvent{DID: hex.EncodeToString(did[:])})
	return p.receipt(ctx), nil
}

func (p *Protocol) handleAddCDDClaim(ctx context.Context, act *action.AddCDDClaim, sm protocol.StateManager) (*action.Receipt, error) {
	if err := protocol.EnsureOrigin(ctx, protocol.OriginCDDProvider); err != nil {
		return nil, err
	}
	var expiry uint64
	if !act.Expiry().IsZero() {
		expiry = uint64(act.Expiry().Unix())
	}
	if err := p.setClaim(sm, act.DID(), true, expiry); err != nil {
		return nil, err
	}
	did := act.DID()
	protocol.EmitEvent(ctx, p.addr.String(), &ClaimEvent{DID: hex.EncodeToString(did[:]), Expiry: expiry})
	return p.receipt(ctx), nil
}

func (p *Protocol) handleRevokeCDDClaim(ctx context.Context, act *action.RevokeCDDClaim, sm protocol.StateManager) (*action.Receipt, error) {
	if err := protocol.EnsureOrigin(ctx, protocol.OriginCDDProvider); err != nil {
		return nil, err
	}
	if err := p.setClaim(sm, act.DID(), false, 0); err != nil {
		return nil, err
	}
	did := act.DID()
	protocol.EmitEvent(ctx, p.addr.String(), &ClaimEvent{DID: hex.EncodeToString(did[:]), Revoked: true})
	return p.receipt(ctx), nil
}

func (p *Protocol) receipt(ctx context.Context) *action.Receipt {
	blkCtx := protocol.MustGetBlockCtx(ctx)
	return &action.Receipt{
		Status:          action.SuccessReceiptStatus,
		BlockHeight:     blkCtx.BlockHeight,
		ContractAddress: p.addr.String(),
	}
}

func (p *Protocol) register(sm protocol.StateManager, did hash.Hash256, accounts []address.Address) error {
	if _, err := p.record(sm, did); err == nil {
		return errors.Wrapf(ErrIdentityExists, "identity %x", did[:])
	} else if errors.Cause(err) != ErrIdentityNotExist {
		return err
	}
	rec := &Record{}
	for _, a := range accounts {
		_, linked, err := p.GetIdentity(sm, a)
		if err != nil {
			return err
		}
		if linked {
			return errors.Wrapf(ErrAccountLinked, "account %s", a.String())
		}
		if _, err := sm.PutState(&link{DID: did[:]}, protocol.NamespaceOption(_identityNamespace), protocol.KeyOption(accountKey(a))); err != nil {
			return err
		}
		rec.Accounts = append(rec.Accounts, a.Bytes())
	}
	_, err := sm.PutState(rec, protocol.NamespaceOption(_identityNamespace), protocol.KeyOption(didKey(did)))
	return err
}

func (p *Protocol) setClaim(sm protocol.StateManager, did hash.Hash256, cdd bool, expiry uint64) error {
	rec, err := p.record(sm, did)
	if err != nil {
		return err
	}
	rec.CDD = cdd
	rec.Expiry = expiry
	_, err = sm.PutState(rec, protocol.NamespaceOption(_identityNamespace), protocol.KeyOption(didKey(did)))
	return err
}

func (p *Protocol) record(sr protocol.StateReader, did hash.Hash256) (*Record, error) {
	rec := &Record{}
	_, err := sr.State(rec, protocol.NamespaceOption(_identityNamespace), protocol.KeyOption(didKey(did)))
	switch errors.Cause(err) {
	case nil:
		return rec, nil
	case state.ErrStateNotExist:
		return nil, errors.Wrapf(ErrIdentityNotExist, "identity %x", did[:])
	default:
		return nil, err
	}
}

func accountKey(addr address.Address) []byte {
	return byteutil.Concat([]byte{_accountTag}, addr.Bytes())
}

func didKey(did hash.Hash256) []byte {
	return byteutil.Concat([]byte{_didTag}, did[:])
}
