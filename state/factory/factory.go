// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

// Package factory hosts the committed state of the chain and hands out per block working sets
package factory

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/iotexproject/iotex-npos/action/protocol"
	"github.com/iotexproject/iotex-npos/db"
	"github.com/iotexproject/iotex-npos/pkg/log"
	"github.com/iotexproject/iotex-npos/pkg/util/byteutil"
	"github.com/iotexproject/iotex-npos/state"
)

const (
	// SystemNamespace holds the bookkeeping of the factory itself
	SystemNamespace = "System"
	// CurrentHeightKey indicates the key of current factory height in underlying DB
	CurrentHeightKey = "currentHeight"
)

var _stateDBMtc = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "npos_state_db",
		Help: "Working set operations of the state factory.",
	},
	[]string{"type"},
)

func init() {
	prometheus.MustRegister(_stateDBMtc)
}

// StateDB owns the committed state
type StateDB struct {
	mutex              sync.RWMutex
	dao                db.KVStore
	currentChainHeight uint64
	initialized        bool
}

// NewStateDB creates a state factory over the kv store
func NewStateDB(kv db.KVStore) *StateDB {
	return &StateDB{dao: kv}
}

// Start starts the underlying store and loads the committed height
func (sdb *StateDB) Start(ctx context.Context) error {
	if err := sdb.dao.Start(ctx); err != nil {
		return err
	}
	h, err := sdb.dao.Get(SystemNamespace, []byte(CurrentHeightKey))
	switch errors.Cause(err) {
	case nil:
		sdb.currentChainHeight = byteutil.BytesToUint64BigEndian(h)
		sdb.initialized = true
	case db.ErrNotExist:
		sdb.currentChainHeight = 0
	default:
		return errors.Wrap(err, "failed to load the height of the state db")
	}
	log.L().Info("State db started", zap.Uint64("height", sdb.currentChainHeight))
	return nil
}

// Stop stops the underlying store
func (sdb *StateDB) Stop(ctx context.Context) error {
	return sdb.dao.Stop(ctx)
}

// Height returns the height of the last committed block
func (sdb *StateDB) Height() (uint64, error) {
	sdb.mutex.RLock()
	defer sdb.mutex.RUnlock()
	return sdb.currentChainHeight, nil
}

// NewWorkingSet returns a working set for the next block
func (sdb *StateDB) NewWorkingSet() *WorkingSet {
	sdb.mutex.RLock()
	defer sdb.mutex.RUnlock()
	_stateDBMtc.WithLabelValues("newWorkingSet").Inc()
	return newWorkingSet(sdb.currentChainHeight+1, sdb.dao)
}

// Initialized returns whether the genesis states were committed
func (sdb *StateDB) Initialized() bool {
	sdb.mutex.RLock()
	defer sdb.mutex.RUnlock()
	return sdb.initialized
}

// NewGenesisWorkingSet returns the working set the genesis states are created in
func (sdb *StateDB) NewGenesisWorkingSet() (*WorkingSet, error) {
	sdb.mutex.RLock()
	defer sdb.mutex.RUnlock()
	if sdb.initialized {
		return nil, errors.New("genesis states already committed")
	}
	return newWorkingSet(0, sdb.dao), nil
}

// Commit persists the changes of the working set
func (sdb *StateDB) Commit(ws *WorkingSet) error {
	sdb.mutex.Lock()
	defer sdb.mutex.Unlock()
	genesis := ws.height == 0 && !sdb.initialized
	if !genesis && ws.height != sdb.currentChainHeight+1 {
		return errors.Errorf(
			"invalid working set height %d, state db is at %d",
			ws.height,
			sdb.currentChainHeight,
		)
	}
	if err := ws.finalize(); err != nil {
		return err
	}
	if err := sdb.dao.WriteBatch(ws.cb); err != nil {
		return errors.Wrap(err, "failed to commit working set")
	}
	ws.cb.Clear()
	sdb.currentChainHeight = ws.height
	sdb.initialized = true
	_stateDBMtc.WithLabelValues("commit").Inc()
	return nil
}

// State reads a committed state
func (sdb *StateDB) State(s interface{}, opts ...protocol.StateOption) (uint64, error) {
	return sdb.reader().State(s, opts...)
}

// States reads committed states by prefix
func (sdb *StateDB) States(opts ...protocol.StateOption) (uint64, state.Iterator, error) {
	return sdb.reader().States(opts...)
}

// reader is a never committed working set at the current height
func (sdb *StateDB) reader() *WorkingSet {
	sdb.mutex.RLock()
	defer sdb.mutex.RUnlock()
	return newWorkingSet(sdb.currentChainHeight, sdb.dao)
}
