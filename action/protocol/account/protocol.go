// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package account

import (
	"context"
	"math/big"

	"github.com/iotexproject/go-pkgs/hash"
	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/iotexproject/iotex-npos/action"
	"github.com/iotexproject/iotex-npos/action/protocol"
	"github.com/iotexproject/iotex-npos/blockchain/genesis"
	"github.com/iotexproject/iotex-npos/pkg/log"
	"github.com/iotexproject/iotex-npos/state"
)

const (
	// protocolID is the protocol ID
	protocolID = "account"
	// _accountNamespace is the namespace of account states
	_accountNamespace = "Account"
)

var (
	_issuanceKey = []byte("totalIssuance")
	_treasuryKey = []byte("treasury")
)

type (
	// Protocol defines the protocol of handling account balances
	Protocol struct {
		addr               address.Address
		treasury           address.Address
		existentialDeposit *big.Int
		cfg                genesis.Account
	}

	issuance struct {
		Value *big.Int
	}

	// TransferEvent is emitted when balance moves between accounts
	TransferEvent struct {
		From   string
		To     string
		Amount *big.Int
	}
)

// Topic returns the event topic
func (e *TransferEvent) Topic() string { return "Transfer" }

// NewProtocol instantiates the protocol of account
func NewProtocol(cfg genesis.Account) *Protocol {
	return &Protocol{
		addr:               protocolAddress(protocolID),
		treasury:           protocolAddress(string(_treasuryKey)),
		existentialDeposit: cfg.ExistentialDeposit(),
		cfg:                cfg,
	}
}

func protocolAddress(id string) address.Address {
	h := hash.Hash160b([]byte(id))
	addr, err := address.FromBytes(h[:])
	if err != nil {
		log.L().Panic("Error when constructing the address of account protocol", zap.Error(err))
	}
	return addr
}

// Treasury returns the account receiving issued remainders
func (p *Protocol) Treasury() address.Address { return p.treasury }

// CreateGenesisStates initializes the balances given in genesis
func (p *Protocol) CreateGenesisStates(ctx context.Context, sm protocol.StateManager) error {
	addrs, amounts := p.cfg.InitBalances()
	total := new(big.Int)
	for i, addr := range addrs {
		if amounts[i].Cmp(p.existentialDeposit) < 0 {
			return errors.Wrapf(ErrExistentialDeposit, "genesis balance of %s", addr.String())
		}
		acct := NewAccount()
		acct.Free.Set(amounts[i])
		if err := storeAccount(sm, addr, acct); err != nil {
			return err
		}
		total.Add(total, amounts[i])
	}
	return putIssuance(sm, total)
}

// Handle handles an account action
func (p *Protocol) Handle(ctx context.Context, act action.Action, sm protocol.StateManager) (*action.Receipt, error) {
	switch act := act.(type) {
	case *action.Transfer:
		return p.handleTransfer(ctx, act, sm)
	}
	return nil, nil
}

// Validate validates an account action
func (p *Protocol) Validate(ctx context.Context, act action.Action, _ protocol.StateReader) error {
	if tsf, ok := act.(*action.Transfer); ok {
		return tsf.SanityCheck()
	}
	return nil
}

// ReadState reads balances. Methods: "Balance" with an address argument, "TotalIssuance".
func (p *Protocol) ReadState(ctx context.Context, sr protocol.StateReader, method []byte, args ...[]byte) ([]byte, error) {
	switch string(method) {
	case "Balance":
		if len(args) != 1 {
			return nil, errors.Errorf("invalid number of arguments %d", len(args))
		}
		addr, err := address.FromString(string(args[0]))
		if err != nil {
			return nil, err
		}
		free, err := p.FreeBalance(sr, addr)
		if err != nil {
			return nil, err
		}
		return []byte(free.String()), nil
	case "TotalIssuance":
		total, err := p.TotalIssuance(sr)
		if err != nil {
			return nil, err
		}
		return []byte(total.String()), nil
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

func (p *Protocol) handleTransfer(ctx context.Context, tsf *action.Transfer, sm protocol.StateManager) (*action.Receipt, error) {
	actionCtx, err := protocol.EnsureSigned(ctx)
	if err != nil {
		return nil, err
	}
	blkCtx := protocol.MustGetBlockCtx(ctx)
	if err := p.Transfer(sm, actionCtx.Caller, tsf.Recipient(), tsf.Amount()); err != nil {
		return nil, err
	}
	protocol.EmitEvent(ctx, p.addr.String(), &TransferEvent{
		From:   actionCtx.Caller.String(),
		To:     tsf.Recipient().String(),
		Amount: new(big.Int).Set(tsf.Amount()),
	})
	return &action.Receipt{
		Status:          action.SuccessReceiptStatus,
		BlockHeight:     blkCtx.BlockHeight,
		ContractAddress: p.addr.String(),
	}, nil
}

// FreeBalance returns the free balance of an account, zero if it does not exist
func (p *Protocol) FreeBalance(sr protocol.StateReader, who address.Address) (*big.Int, error) {
	acct, err := loadAccount(sr, who)
	if err != nil {
		return nil, err
	}
	return acct.Free, nil
}

// TotalBalance returns free plus reserved balance of an account
func (p *Protocol) TotalBalance(sr protocol.StateReader, who address.Address) (*big.Int, error) {
	acct, err := loadAccount(sr, who)
	if err != nil {
		return nil, err
	}
	return acct.Total(), nil
}

// TotalIssuance returns the sum of all balances
func (p *Protocol) TotalIssuance(sr protocol.StateReader) (*big.Int, error) {
	var v issuance
	_, err := sr.State(&v, protocol.NamespaceOption(_accountNamespace), protocol.KeyOption(_issuanceKey))
	switch errors.Cause(err) {
	case nil:
		return v.Value, nil
	case state.ErrStateNotExist:
		return new(big.Int), nil
	default:
		return nil, err
	}
}

// MinimumBalance returns the existential deposit
func (p *Protocol) MinimumBalance() *big.Int { return new(big.Int).Set(p.existentialDeposit) }

// Transfer moves usable balance. The recipient is created if it receives at least the existential deposit.
func (p *Protocol) Transfer(sm protocol.StateManager, from, to address.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return errors.Wrapf(ErrInvalidAmount, "amount %s", amount)
	}
	sender, err := loadAccount(sm, from)
	if err != nil {
		return err
	}
	if err := sender.SubBalance(amount); err != nil {
		return errors.Wrapf(err, "failed to update the balance of sender %s", from.String())
	}
	if address.Equal(from, to) {
		return nil
	}
	if err := p.storeOrReap(sm, from, sender); err != nil {
		return err
	}
	recipient, exists, err := p.loadExisting(sm, to)
	if err != nil {
		return err
	}
	if !exists && amount.Cmp(p.existentialDeposit) < 0 {
		return errors.Wrapf(ErrExistentialDeposit, "recipient %s", to.String())
	}
	if err := recipient.AddBalance(amount); err != nil {
		return err
	}
	return storeAccount(sm, to, recipient)
}

// Reserve moves usable balance into reserve
func (p *Protocol) Reserve(sm protocol.StateManager, who address.Address, amount *big.Int) error {
	acct, err := loadAccount(sm, who)
	if err != nil {
		return err
	}
	if err := acct.Reserve(amount); err != nil {
		return errors.Wrapf(err, "failed to reserve for %s", who.String())
	}
	return storeAccount(sm, who, acct)
}

// SetLock sets the staking lock of an account
func (p *Protocol) SetLock(sm protocol.StateManager, who address.Address, amount *big.Int) error {
	acct, exists, err := p.loadExisting(sm, who)
	if err != nil {
		return err
	}
	if !exists {
		return errors.Wrapf(ErrDeadAccount, "cannot lock %s", who.String())
	}
	acct.Locked = new(big.Int).Set(amount)
	return storeAccount(sm, who, acct)
}

// RemoveLock removes the staking lock of an account
func (p *Protocol) RemoveLock(sm protocol.StateManager, who address.Address) error {
	acct, exists, err := p.loadExisting(sm, who)
	if err != nil || !exists {
		return err
	}
	acct.Locked = new(big.Int)
	return p.storeOrReap(sm, who, acct)
}

// Slash burns up to amount from the account, ignoring the lock, and returns the amount actually slashed
func (p *Protocol) Slash(sm protocol.StateManager, who address.Address, amount *big.Int) (*big.Int, error) {
	acct, exists, err := p.loadExisting(sm, who)
	if err != nil {
		return nil, err
	}
	if !exists {
		return new(big.Int), nil
	}
	slashed := acct.Slash(amount)
	if err := p.storeOrReap(sm, who, acct); err != nil {
		return nil, err
	}
	if err := p.adjustIssuance(sm, new(big.Int).Neg(slashed)); err != nil {
		return nil, err
	}
	return slashed, nil
}

// DepositIntoExisting mints amount into an existing account
func (p *Protocol) DepositIntoExisting(sm protocol.StateManager, who address.Address, amount *big.Int) error {
	acct, exists, err := p.loadExisting(sm, who)
	if err != nil {
		return err
	}
	if !exists {
		return errors.Wrapf(ErrDeadAccount, "cannot deposit into %s", who.String())
	}
	return p.deposit(sm, who, acct, amount)
}

// DepositCreating mints amount into an account, creating it. A new account below the existential deposit is
// silently not created.
func (p *Protocol) DepositCreating(sm protocol.StateManager, who address.Address, amount *big.Int) error {
	acct, exists, err := p.loadExisting(sm, who)
	if err != nil {
		return err
	}
	if !exists && amount.Cmp(p.existentialDeposit) < 0 {
		return nil
	}
	return p.deposit(sm, who, acct, amount)
}

// Issue mints amount into the treasury
func (p *Protocol) Issue(sm protocol.StateManager, amount *big.Int) error {
	if amount.Sign() <= 0 {
		return nil
	}
	acct, err := loadAccount(sm, p.treasury)
	if err != nil {
		return err
	}
	return p.deposit(sm, p.treasury, acct, amount)
}

func (p *Protocol) deposit(sm protocol.StateManager, who address.Address, acct *Account, amount *big.Int) error {
	if err := acct.AddBalance(amount); err != nil {
		return err
	}
	if err := storeAccount(sm, who, acct); err != nil {
		return err
	}
	return p.adjustIssuance(sm, amount)
}

func (p *Protocol) adjustIssuance(sm protocol.StateManager, delta *big.Int) error {
	total, err := p.TotalIssuance(sm)
	if err != nil {
		return err
	}
	total = new(big.Int).Add(total, delta)
	if total.Sign() < 0 {
		total.SetInt64(0)
	}
	return putIssuance(sm, total)
}

// storeOrReap removes an account that fell below the existential deposit and burns the dust
func (p *Protocol) storeOrReap(sm protocol.StateManager, who address.Address, acct *Account) error {
	total := acct.Total()
	if total.Cmp(p.existentialDeposit) >= 0 || acct.Locked.Sign() > 0 {
		return storeAccount(sm, who, acct)
	}
	if _, err := sm.DelState(protocol.NamespaceOption(_accountNamespace), protocol.KeyOption(who.Bytes())); err != nil {
		return errors.Wrapf(err, "failed to reap account %s", who.String())
	}
	log.Logger("account").Debug("Reaped account", zap.String("account", who.String()), zap.String("dust", total.String()))
	return p.adjustIssuance(sm, total.Neg(total))
}

func (p *Protocol) loadExisting(sr protocol.StateReader, who address.Address) (*Account, bool, error) {
	acct := NewAccount()
	_, err := sr.State(acct, protocol.NamespaceOption(_accountNamespace), protocol.KeyOption(who.Bytes()))
	switch errors.Cause(err) {
	case nil:
		return acct, true, nil
	case state.ErrStateNotExist:
		return NewAccount(), false, nil
	default:
		return nil, false, errors.Wrapf(err, "failed to load account %s", who.String())
	}
}

func loadAccount(sr protocol.StateReader, who address.Address) (*Account, error) {
	acct := NewAccount()
	_, err := sr.State(acct, protocol.NamespaceOption(_accountNamespace), protocol.KeyOption(who.Bytes()))
	switch errors.Cause(err) {
	case nil:
		return acct, nil
	case state.ErrStateNotExist:
		return NewAccount(), nil
	default:
		return nil, errors.Wrapf(err, "failed to load account %s", who.String())
	}
}

func storeAccount(sm protocol.StateManager, who address.Address, acct *Account) error {
	if _, err := sm.PutState(acct, protocol.NamespaceOption(_accountNamespace), protocol.KeyOption(who.Bytes())); err != nil {
		return errors.Wrapf(err, "failed to store account %s", who.String())
	}
	return nil
}

func putIssuance(sm protocol.StateManager, total *big.Int) error {
	_, err := sm.PutState(&issuance{Value: total}, protocol.NamespaceOption(_accountNamespace), protocol.KeyOption(_issuanceKey))
	return err
}
