// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package batch

import (
	"sync"

	"github.com/pkg/errors"
)

type (
	// CachedBatch derives from Batch interface
	// A local cache is added to provide fast retrieval of pending Put/Delete entries
	CachedBatch interface {
		KVStoreBatch
		// Get gets a record by (namespace, key)
		Get(string, []byte) ([]byte, error)
		// Range visits pending records of a namespace with the given key prefix
		Range(string, []byte, func(key, value []byte, deleted bool) error) error
		// Snapshot takes a snapshot of current cached batch
		Snapshot() int
		// Revert sets the cached batch to the state at the given snapshot
		Revert(int) error
		// ResetSnapshots drops all saved snapshots
		ResetSnapshots()
	}

	// cachedBatch implements the CachedBatch interface
	cachedBatch struct {
		lock sync.RWMutex
		KVStoreBatch
		cache     KVStoreCache
		tag       int // latest snapshot + 1
		snapshots map[int]snapshot
	}

	snapshot struct {
		batch KVStoreBatch
		cache KVStoreCache
	}
)

// NewCachedBatch returns a new cached batch buffer
func NewCachedBatch() CachedBatch {
	return &cachedBatch{
		KVStoreBatch: NewBatch(),
		cache:        NewKVCache(),
		snapshots:    make(map[int]snapshot),
	}
}

// Lock locks the batch
func (cb *cachedBatch) Lock() {
	cb.lock.Lock()
}

// Unlock unlocks the batch
func (cb *cachedBatch) Unlock() {
	cb.lock.Unlock()
}

// ClearAndUnlock clears the write queue and unlocks the batch
func (cb *cachedBatch) ClearAndUnlock() {
	defer cb.lock.Unlock()
	cb.clear()
}

// Put inserts a <key, value> record
func (cb *cachedBatch) Put(namespace string, key, value []byte, errorFormat string, errorArgs ...interface{}) {
	cb.lock.Lock()
	defer cb.lock.Unlock()
	cb.cache.Write(namespace, key, value)
	cb.KVStoreBatch.Put(namespace, key, value, errorFormat, errorArgs...)
}

// Delete deletes a record
func (cb *cachedBatch) Delete(namespace string, key []byte, errorFormat string, errorArgs ...interface{}) {
	cb.lock.Lock()
	defer cb.lock.Unlock()
	cb.cache.Evict(namespace, key)
	cb.KVStoreBatch.Delete(namespace, key, errorFormat, errorArgs...)
}

// Clear clear the cached batch buffer
func (cb *cachedBatch) Clear() {
	cb.lock.Lock()
	defer cb.lock.Unlock()
	cb.clear()
}

// Get retrieves a record
func (cb *cachedBatch) Get(namespace string, key []byte) ([]byte, error) {
	cb.lock.RLock()
	defer cb.lock.RUnlock()
	return cb.cache.Read(namespace, key)
}

// Range visits pending records with the given prefix
func (cb *cachedBatch) Range(namespace string, prefix []byte, fn func(key, value []byte, deleted bool) error) error {
	cb.lock.RLock()
	defer cb.lock.RUnlock()
	return cb.cache.Range(namespace, prefix, fn)
}

// Snapshot takes a snapshot of current cached batch
func (cb *cachedBatch) Snapshot() int {
	cb.lock.Lock()
	defer cb.lock.Unlock()
	defer func() { cb.tag++ }()
	cb.snapshots[cb.tag] = snapshot{
		batch: cb.KVStoreBatch.CloneBatch(),
		cache: cb.cache.Clone(),
	}
	return cb.tag
}

// Revert sets the cached batch to the state at the given snapshot
func (cb *cachedBatch) Revert(sid int) error {
	cb.lock.Lock()
	defer cb.lock.Unlock()
	s, ok := cb.snapshots[sid]
	if !ok {
		return errors.Wrapf(ErrInvalidSnapshot, "invalid snapshot number = %d", sid)
	}
	// later snapshots are no longer reachable
	for tag := range cb.snapshots {
		if tag > sid {
			delete(cb.snapshots, tag)
		}
	}
	cb.KVStoreBatch = s.batch.CloneBatch()
	cb.cache = s.cache.Clone()
	return nil
}

// ResetSnapshots drops all saved snapshots
func (cb *cachedBatch) ResetSnapshots() {
	cb.lock.Lock()
	defer cb.lock.Unlock()
	cb.tag = 0
	cb.snapshots = make(map[int]snapshot)
}

// CloneBatch clones the write queue only
func (cb *cachedBatch) CloneBatch() KVStoreBatch {
	cb.lock.RLock()
	defer cb.lock.RUnlock()
	return cb.KVStoreBatch.CloneBatch()
}

func (cb *cachedBatch) clear() {
	cb.cache.Clear()
	cb.KVStoreBatch.Clear()
	cb.tag = 0
	cb.snapshots = make(map[int]snapshot)
}
