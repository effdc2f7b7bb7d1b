// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package db

import "github.com/pkg/errors"

var (
	// ErrEmptyDBPath is the error when db path is empty
	ErrEmptyDBPath = errors.New("empty db path")
)

// CreateKVStore creates db from config
func CreateKVStore(cfg Config) (KVStore, error) {
	if cfg.Backend == BackendInMemDB {
		return NewMemKVStore(), nil
	}
	if len(cfg.DbPath) == 0 {
		return nil, ErrEmptyDBPath
	}
	switch cfg.Backend {
	case BackendPebble:
		return NewPebbleDB(cfg), nil
	case BackendBolt, "":
		return NewBoltDB(cfg), nil
	case BackendLevel:
		return NewLevelDB(cfg), nil
	default:
		return nil, errors.Errorf("unsupported db backend %s", cfg.Backend)
	}
}
