// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package slashing

import (
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"

	"github.com/iotexproject/iotex-npos/pkg/perbill"
)

type (
	// Individual is an amount tied to an account
	Individual struct {
		Who   address.Address
		Value *big.Int
	}

	// Exposure is the stake behind a validator in the era an offence was committed
	Exposure struct {
		Own    *big.Int
		Total  *big.Int
		Others []Individual
	}

	// UnappliedSlash is a slash computed but not yet taken from the balances
	UnappliedSlash struct {
		Validator address.Address
		Own       *big.Int
		Others    []Individual
		Reporters []address.Address
		// Payout is the reporters' reward
		Payout *big.Int
	}

	// Queue holds the unapplied slashes of one era, in the order they were reported
	Queue []*UnappliedSlash

	individualRLP struct {
		Who   []byte
		Value *big.Int
	}

	unappliedRLP struct {
		Validator []byte
		Own       *big.Int
		Others    []individualRLP
		Reporters [][]byte
		Payout    *big.Int
	}

	validatorSlash struct {
		Fraction perbill.Perbill
		Amount   *big.Int
	}

	nominatorSlash struct {
		Amount *big.Int
	}
)

// Serialize serializes the queue into bytes
func (q Queue) Serialize() ([]byte, error) {
	out := make([]unappliedRLP, 0, len(q))
	for _, u := range q {
		r := unappliedRLP{
			Validator: u.Validator.Bytes(),
			Own:       u.Own,
			Payout:    u.Payout,
		}
		for _, o := range u.Others {
			r.Others = append(r.Others, individualRLP{Who: o.Who.Bytes(), Value: o.Value})
		}
		for _, rep := range u.Reporters {
			r.Reporters = append(r.Reporters, rep.Bytes())
		}
		out = append(out, r)
	}
	return rlp.EncodeToBytes(out)
}

// Deserialize deserializes bytes into the queue
func (q *Queue) Deserialize(data []byte) error {
	var in []unappliedRLP
	if err := rlp.DecodeBytes(data, &in); err != nil {
		return errors.Wrap(err, "failed to decode unapplied slashes")
	}
	res := make(Queue, 0, len(in))
	for _, r := range in {
		v, err := address.FromBytes(r.Validator)
		if err != nil {
			return err
		}
		u := &UnappliedSlash{Validator: v, Own: r.Own, Payout: r.Payout}
		for _, o := range r.Others {
			who, err := address.FromBytes(o.Who)
			if err != nil {
				return err
			}
			u.Others = append(u.Others, Individual{Who: who, Value: o.Value})
		}
		for _, b := range r.Reporters {
			rep, err := address.FromBytes(b)
			if err != nil {
				return err
			}
			u.Reporters = append(u.Reporters, rep)
		}
		res = append(res, u)
	}
	*q = res
	return nil
}
