// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package staking

import (
	"context"
	"strconv"
	"strings"

	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"

	"github.com/iotexproject/iotex-npos/action/protocol"
)

// ReadState reads the staking state. Methods:
//
//	"Ledger" controller: serialized ledger
//	"Exposure" era stash: serialized exposure
//	"CurrentEra", "ValidatorCount": decimal numbers
//	"ActiveEra": index and start in milliseconds as "index:start"
//	"ElectionStatus": "open" or "closed"
//	"QueuedScore": serialized score
//	"Validators", "Nominators": comma separated addresses
func (p *Protocol) ReadState(ctx context.Context, sr protocol.StateReader, method []byte, args ...[]byte) ([]byte, error) {
	switch string(method) {
	case "Ledger":
		if len(args) != 1 {
			return nil, errors.Errorf("invalid number of arguments %d", len(args))
		}
		controller, err := address.FromString(string(args[0]))
		if err != nil {
			return nil, err
		}
		l, err := p.controllerLedger(sr, controller)
		if err != nil {
			return nil, err
		}
		return l.Serialize()
	case "Exposure":
		if len(args) != 2 {
			return nil, errors.Errorf("invalid number of arguments %d", len(args))
		}
		era, err := strconv.ParseUint(string(args[0]), 10, 32)
		if err != nil {
			return nil, err
		}
		stash, err := address.FromString(string(args[1]))
		if err != nil {
			return nil, err
		}
		e, err := p.cachedExposure(sr, uint32(era), stash)
		if err != nil {
			return nil, err
		}
		return e.Serialize()
	case "CurrentEra":
		era, ok, err := p.CurrentEra(sr)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.New("no era planned yet")
		}
		return []byte(strconv.FormatUint(uint64(era), 10)), nil
	case "ActiveEra":
		active, ok, err := p.ActiveEra(sr)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.New("no active era")
		}
		return []byte(strconv.FormatUint(uint64(active.Index), 10) + ":" + strconv.FormatUint(active.Start, 10)), nil
	case "ValidatorCount":
		count, err := p.ValidatorCount(sr)
		if err != nil {
			return nil, err
		}
		return []byte(strconv.FormatUint(uint64(count), 10)), nil
	case "ElectionStatus":
		status, err := p.ElectionStatus(sr)
		if err != nil {
			return nil, err
		}
		if status.Open {
			return []byte("open"), nil
		}
		return []byte("closed"), nil
	case "QueuedScore":
		score, ok, err := p.QueuedScore(sr)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.New("no queued solution")
		}
		return score.Serialize()
	case "Validators", "Nominators":
		var (
			addrs []address.Address
			err   error
		)
		if string(method) == "Validators" {
			addrs, err = p.Validators(sr)
		} else {
			addrs, err = p.Nominators(sr)
		}
		if err != nil {
			return nil, err
		}
		return []byte(strings.Join(addrStrings(addrs), ",")), nil
	default:
		return nil, errors.Wrapf(protocol.ErrUnimplemented, "unknown method %s", method)
	}
}

// cachedExposure serves exposures of eras that already started from the cache, they no longer change
func (p *Protocol) cachedExposure(sr protocol.StateReader, era uint32, stash address.Address) (*Exposure, error) {
	active, ok, err := p.ActiveEra(sr)
	if err != nil {
		return nil, err
	}
	final := ok && era < active.Index
	key := strconv.FormatUint(uint64(era), 10) + "/" + stash.String()
	if final {
		if e, ok := p.exposureCache.Get(key); ok {
			return e, nil
		}
	}
	e, err := p.ErasStakers(sr, era, stash)
	if err != nil {
		return nil, err
	}
	if final {
		p.exposureCache.Add(key, e)
	}
	return e, nil
}
