// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package action

import (
	"math/big"
	"time"

	"github.com/iotexproject/go-pkgs/hash"
	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"
)

// Transfer moves free balance of the caller to the recipient
type Transfer struct {
	recipient address.Address
	amount    *big.Int
}

// NewTransfer returns a Transfer instance
func NewTransfer(recipient address.Address, amount *big.Int) *Transfer {
	return &Transfer{recipient: recipient, amount: copyAmount(amount)}
}

// Recipient returns the recipient
func (t *Transfer) Recipient() address.Address { return t.recipient }

// Amount returns the amount to transfer
func (t *Transfer) Amount() *big.Int { return t.amount }

// SanityCheck validates the variables in the action
func (t *Transfer) SanityCheck() error {
	if err := checkAddress(t.recipient); err != nil {
		return err
	}
	return checkAmount(t.amount)
}

// RegisterDID links accounts to a new identity. Requires the governance origin.
type RegisterDID struct {
	did      hash.Hash256
	accounts []address.Address
}

// NewRegisterDID returns a RegisterDID instance
func NewRegisterDID(did hash.Hash256, accounts []address.Address) *RegisterDID {
	return &RegisterDID{did: did, accounts: append([]address.Address(nil), accounts...)}
}

// DID returns the identity
func (r *RegisterDID) DID() hash.Hash256 { return r.did }

// Accounts returns the linked accounts
func (r *RegisterDID) Accounts() []address.Address { return r.accounts }

// SanityCheck validates the variables in the action
func (r *RegisterDID) SanityCheck() error {
	if err := checkIdentity(r.did); err != nil {
		return err
	}
	if len(r.accounts) == 0 {
		return errors.Wrap(ErrEmptyList, "no accounts")
	}
	for _, a := range r.accounts {
		if err := checkAddress(a); err != nil {
			return err
		}
	}
	return nil
}

// AddCDDClaim attaches a due diligence claim to an identity. A zero expiry never expires.
type AddCDDClaim struct {
	did    hash.Hash256
	expiry time.Time
}

// NewAddCDDClaim returns an AddCDDClaim instance
func NewAddCDDClaim(did hash.Hash256, expiry time.Time) *AddCDDClaim {
	return &AddCDDClaim{did: did, expiry: expiry}
}

// DID returns the identity
func (a *AddCDDClaim) DID() hash.Hash256 { return a.did }

// Expiry returns when the claim stops being valid
func (a *AddCDDClaim) Expiry() time.Time { return a.expiry }

// SanityCheck validates the variables in the action
func (a *AddCDDClaim) SanityCheck() error { return checkIdentity(a.did) }

// RevokeCDDClaim removes the due diligence claim of an identity
type RevokeCDDClaim struct {
	did hash.Hash256
}

// NewRevokeCDDClaim returns a RevokeCDDClaim instance
func NewRevokeCDDClaim(did hash.Hash256) *RevokeCDDClaim { return &RevokeCDDClaim{did: did} }

// DID returns the identity
func (r *RevokeCDDClaim) DID() hash.Hash256 { return r.did }

// SanityCheck validates the variables in the action
func (r *RevokeCDDClaim) SanityCheck() error { return checkIdentity(r.did) }

// SetKeys queues session keys of the caller for the next session
type SetKeys struct {
	keys []byte
}

// NewSetKeys returns a SetKeys instance
func NewSetKeys(keys []byte) *SetKeys { return &SetKeys{keys: append([]byte(nil), keys...)} }

// Keys returns the opaque session keys
func (s *SetKeys) Keys() []byte { return s.keys }

// SanityCheck validates the variables in the action
func (s *SetKeys) SanityCheck() error {
	if len(s.keys) == 0 {
		return errors.New("empty session keys")
	}
	return nil
}
