// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package protocol

import (
	"github.com/iotexproject/go-pkgs/hash"
	"github.com/pkg/errors"

	"github.com/iotexproject/iotex-npos/state"
)

type (
	// StateConfig addresses a record, or with Prefix a range of records, inside one namespace
	StateConfig struct {
		Namespace string
		Key       []byte
		Prefix    []byte
	}

	// StateOption sets parameter for access state
	StateOption func(*StateConfig) error

	// StateReader is the read side of the staking state. Heights are the committed block the read is based on.
	StateReader interface {
		Height() (uint64, error)
		State(interface{}, ...StateOption) (uint64, error)
		States(...StateOption) (uint64, state.Iterator, error)
	}

	// StateManager is the working set an action or block hook mutates. Snapshot and Revert bracket a single
	// action so that a rejection leaves no trace.
	StateManager interface {
		StateReader
		Snapshot() int
		Revert(int) error
		PutState(interface{}, ...StateOption) (uint64, error)
		DelState(...StateOption) (uint64, error)
	}
)

// NamespaceOption creates an option for given namespace
func NamespaceOption(ns string) StateOption {
	return func(sc *StateConfig) error {
		sc.Namespace = ns
		return nil
	}
}

// KeyOption sets the key of the record
func KeyOption(key []byte) StateOption {
	return func(cfg *StateConfig) error {
		cfg.Key = cloneBytes(key)
		return nil
	}
}

// HashKeyOption sets a hash160 key, e.g. the hash of an account
func HashKeyOption(key hash.Hash160) StateOption {
	return KeyOption(key[:])
}

// PrefixOption restricts States to the keys starting with prefix
func PrefixOption(prefix []byte) StateOption {
	return func(cfg *StateConfig) error {
		cfg.Prefix = cloneBytes(prefix)
		return nil
	}
}

// CreateStateConfig applies the options in order
func CreateStateConfig(opts ...StateOption) (*StateConfig, error) {
	cfg := &StateConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, errors.Wrap(err, "failed to execute state option")
		}
	}
	return cfg, nil
}

func cloneBytes(b []byte) []byte {
	return append(make([]byte, 0, len(b)), b...)
}
