// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package factory

import (
	"bytes"
	"sort"

	"github.com/pkg/errors"

	"github.com/iotexproject/iotex-npos/action/protocol"
	"github.com/iotexproject/iotex-npos/db"
	"github.com/iotexproject/iotex-npos/db/batch"
	"github.com/iotexproject/iotex-npos/pkg/util/byteutil"
	"github.com/iotexproject/iotex-npos/state"
)

// WorkingSet tracks the pending changes of one block in a cached batch on top of the committed store
type WorkingSet struct {
	height    uint64
	cb        batch.CachedBatch
	dao       db.KVStore
	finalized bool
}

var _ protocol.StateManager = (*WorkingSet)(nil)

func newWorkingSet(height uint64, kv db.KVStore) *WorkingSet {
	return &WorkingSet{
		height: height,
		cb:     batch.NewCachedBatch(),
		dao:    kv,
	}
}

// Height returns the height of the block being worked on
func (ws *WorkingSet) Height() (uint64, error) {
	return ws.height, nil
}

// Snapshot takes a snapshot of the pending changes
func (ws *WorkingSet) Snapshot() int {
	return ws.cb.Snapshot()
}

// Revert drops the changes made after the snapshot
func (ws *WorkingSet) Revert(snapshot int) error {
	return ws.cb.Revert(snapshot)
}

// State pulls a state from the working set
func (ws *WorkingSet) State(s interface{}, opts ...protocol.StateOption) (uint64, error) {
	cfg, err := protocol.CreateStateConfig(opts...)
	if err != nil {
		return 0, err
	}
	if len(cfg.Key) == 0 {
		return ws.height, errors.New("missing state key")
	}
	data, err := ws.get(cfg.Namespace, cfg.Key)
	if err != nil {
		return ws.height, err
	}
	return ws.height, state.Deserialize(s, data)
}

// States returns the states of a namespace whose key has the configured prefix, in key order
func (ws *WorkingSet) States(opts ...protocol.StateOption) (uint64, state.Iterator, error) {
	cfg, err := protocol.CreateStateConfig(opts...)
	if err != nil {
		return 0, nil, err
	}
	merged := map[string][]byte{}
	var cond db.Condition
	if len(cfg.Prefix) > 0 {
		cond = db.PrefixCondition(cfg.Prefix)
	}
	keys, values, err := ws.dao.Filter(cfg.Namespace, cond, cfg.Prefix, nil)
	if err != nil {
		return ws.height, nil, err
	}
	for i := range keys {
		merged[string(keys[i])] = values[i]
	}
	if err := ws.cb.Range(cfg.Namespace, cfg.Prefix, func(k, v []byte, deleted bool) error {
		if deleted {
			delete(merged, string(k))
		} else {
			merged[string(k)] = v
		}
		return nil
	}); err != nil {
		return ws.height, nil, err
	}
	sortedKeys := make([][]byte, 0, len(merged))
	for k := range merged {
		sortedKeys = append(sortedKeys, []byte(k))
	}
	sort.Slice(sortedKeys, func(i, j int) bool { return bytes.Compare(sortedKeys[i], sortedKeys[j]) < 0 })
	sortedValues := make([][]byte, len(sortedKeys))
	for i, k := range sortedKeys {
		sortedValues[i] = merged[string(k)]
	}
	iter, err := state.NewIterator(sortedKeys, sortedValues)
	return ws.height, iter, err
}

// PutState puts a state into the working set
func (ws *WorkingSet) PutState(s interface{}, opts ...protocol.StateOption) (uint64, error) {
	if ws.finalized {
		return ws.height, errors.New("cannot write to a finalized working set")
	}
	cfg, err := protocol.CreateStateConfig(opts...)
	if err != nil {
		return 0, err
	}
	data, err := state.Serialize(s)
	if err != nil {
		return ws.height, errors.Wrapf(err, "failed to convert state to bytes for key %x", cfg.Key)
	}
	ws.cb.Put(cfg.Namespace, cfg.Key, data, "failed to put state of key %x", cfg.Key)
	return ws.height, nil
}

// DelState deletes a state from the working set
func (ws *WorkingSet) DelState(opts ...protocol.StateOption) (uint64, error) {
	if ws.finalized {
		return ws.height, errors.New("cannot write to a finalized working set")
	}
	cfg, err := protocol.CreateStateConfig(opts...)
	if err != nil {
		return 0, err
	}
	ws.cb.Delete(cfg.Namespace, cfg.Key, "failed to delete state of key %x", cfg.Key)
	return ws.height, nil
}

func (ws *WorkingSet) get(ns string, key []byte) ([]byte, error) {
	data, err := ws.cb.Get(ns, key)
	switch errors.Cause(err) {
	case nil:
		return data, nil
	case batch.ErrAlreadyDeleted:
		return nil, errors.Wrapf(state.ErrStateNotExist, "key %x in %s was deleted", key, ns)
	}
	data, err = ws.dao.Get(ns, key)
	if errors.Cause(err) == db.ErrNotExist {
		return nil, errors.Wrapf(state.ErrStateNotExist, "failed to get state of key %x in %s", key, ns)
	}
	return data, err
}

// finalize stamps the height into the batch, no further change is accepted afterwards
func (ws *WorkingSet) finalize() error {
	if ws.finalized {
		return errors.New("cannot finalize a working set twice")
	}
	ws.cb.Put(SystemNamespace, []byte(CurrentHeightKey), byteutil.Uint64ToBytesBigEndian(ws.height), "failed to store height %d", ws.height)
	ws.cb.ResetSnapshots()
	ws.finalized = true
	return nil
}
