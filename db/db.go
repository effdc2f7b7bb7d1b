// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package db

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/iotexproject/iotex-npos/db/batch"
	"github.com/iotexproject/iotex-npos/pkg/lifecycle"
)

var (
	// ErrBucketNotExist indicates certain bucket does not exist in db
	ErrBucketNotExist = errors.New("bucket not exist in DB")
	// ErrNotExist indicates certain item does not exist in the database
	ErrNotExist = errors.New("not exist in DB")
	// ErrIO indicates the generic error of DB I/O operation
	ErrIO = errors.New("DB I/O operation error")
	// ErrInvalid indicates an invalid input
	ErrInvalid = errors.New("invalid input")
	// ErrDBNotStarted indicates the db is used before Start or after Stop
	ErrDBNotStarted = errors.New("db has not started")
)

type (
	// Condition defines a condition on <k, v> pair
	Condition func(k, v []byte) bool

	// KVStore is the interface of KV store.
	KVStore interface {
		lifecycle.StartStopper

		// Put insert or update a record identified by (namespace, key)
		Put(string, []byte, []byte) error
		// Get gets a record by (namespace, key)
		Get(string, []byte) ([]byte, error)
		// Delete deletes a record by (namespace, key)
		Delete(string, []byte) error
		// WriteBatch commits a batch
		WriteBatch(batch.KVStoreBatch) error
		// Filter returns <k, v> pairs of a namespace whose key is in [minKey, maxKey] and meet the condition,
		// in key order. An empty maxKey means no upper bound.
		Filter(string, Condition, []byte, []byte) ([][]byte, [][]byte, error)
	}
)

// PrefixCondition returns a condition selecting keys with the given prefix
func PrefixCondition(prefix []byte) Condition {
	return func(k, _ []byte) bool {
		return bytes.HasPrefix(k, prefix)
	}
}

// memKVStore is the in-memory implementation of KVStore for testing purpose
type memKVStore struct {
	lifecycle.Readiness
	mutex sync.RWMutex
	data  map[string]map[string][]byte
}

// NewMemKVStore instantiates an in-memory KV store
func NewMemKVStore() KVStore {
	return &memKVStore{
		data: make(map[string]map[string][]byte),
	}
}

func (m *memKVStore) Start(_ context.Context) error { return m.TurnOn() }

func (m *memKVStore) Stop(_ context.Context) error { return m.TurnOff() }

// Put inserts a <key, value> record
func (m *memKVStore) Put(namespace string, key, value []byte) error {
	if !m.IsReady() {
		return ErrDBNotStarted
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.put(namespace, key, value)
	return nil
}

// Get retrieves a record
func (m *memKVStore) Get(namespace string, key []byte) ([]byte, error) {
	if !m.IsReady() {
		return nil, ErrDBNotStarted
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	ns, ok := m.data[namespace]
	if !ok {
		return nil, errors.Wrapf(ErrNotExist, "namespace = %s doesn't exist", namespace)
	}
	value, ok := ns[string(key)]
	if !ok {
		return nil, errors.Wrapf(ErrNotExist, "key = %x doesn't exist", key)
	}
	v := make([]byte, len(value))
	copy(v, value)
	return v, nil
}

// Delete deletes a record
func (m *memKVStore) Delete(namespace string, key []byte) error {
	if !m.IsReady() {
		return ErrDBNotStarted
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if ns, ok := m.data[namespace]; ok {
		delete(ns, string(key))
	}
	return nil
}

// WriteBatch commits a batch
func (m *memKVStore) WriteBatch(b batch.KVStoreBatch) error {
	if !m.IsReady() {
		return ErrDBNotStarted
	}
	b.Lock()
	defer b.ClearAndUnlock()
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for i := 0; i < b.Size(); i++ {
		write, err := b.Entry(i)
		if err != nil {
			return err
		}
		switch write.WriteType() {
		case batch.Put:
			m.put(write.Namespace(), write.Key(), write.Value())
		case batch.Delete:
			if ns, ok := m.data[write.Namespace()]; ok {
				delete(ns, string(write.Key()))
			}
		}
	}
	return nil
}

// Filter returns <k, v> pairs in a bucket that meet the condition
func (m *memKVStore) Filter(namespace string, cond Condition, minKey, maxKey []byte) ([][]byte, [][]byte, error) {
	if !m.IsReady() {
		return nil, nil, ErrDBNotStarted
	}
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	ns, ok := m.data[namespace]
	if !ok {
		return nil, nil, nil
	}
	sorted := make([]string, 0, len(ns))
	for k := range ns {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	var keys, values [][]byte
	for _, k := range sorted {
		key := []byte(k)
		if bytes.Compare(key, minKey) < 0 {
			continue
		}
		if len(maxKey) > 0 && bytes.Compare(key, maxKey) > 0 {
			break
		}
		if cond != nil && !cond(key, ns[k]) {
			continue
		}
		value := make([]byte, len(ns[k]))
		copy(value, ns[k])
		keys = append(keys, key)
		values = append(values, value)
	}
	return keys, values, nil
}

func (m *memKVStore) put(namespace string, key, value []byte) {
	if _, ok := m.data[namespace]; !ok {
		m.data[namespace] = make(map[string][]byte)
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.data[namespace][string(key)] = v
}
