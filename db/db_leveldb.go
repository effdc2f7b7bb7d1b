// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package db

import (
	"bytes"
	"context"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/iotexproject/iotex-npos/db/batch"
	"github.com/iotexproject/iotex-npos/pkg/lifecycle"
)

var (
	_writeOpt = opt.WriteOptions{}
	_readOpt  = opt.ReadOptions{}
	_scanOpt  = opt.ReadOptions{DontFillCache: true}
)

// LevelDB is KVStore implementation based on goleveldb, sharing the namespaced key layout of PebbleDB
type LevelDB struct {
	lifecycle.Readiness
	db     *leveldb.DB
	path   string
	config Config
}

// NewLevelDB creates a new LevelDB instance
func NewLevelDB(cfg Config) *LevelDB {
	return &LevelDB{
		path:   cfg.DbPath,
		config: cfg,
	}
}

// Start opens the DB (creates new file if not existing yet)
func (l *LevelDB) Start(_ context.Context) error {
	db, err := leveldb.OpenFile(l.path, &opt.Options{
		OpenFilesCacheCapacity: l.config.LevelDBHandles,
		BlockCacheCapacity:     l.config.LevelDBCacheMB * opt.MiB,
		ReadOnly:               l.config.ReadOnly,
	})
	if err != nil {
		return errors.Wrap(ErrIO, err.Error())
	}
	l.db = db
	return l.TurnOn()
}

// Stop closes the DB
func (l *LevelDB) Stop(_ context.Context) error {
	if err := l.TurnOff(); err != nil {
		return err
	}
	if err := l.db.Close(); err != nil {
		return errors.Wrap(ErrIO, err.Error())
	}
	return nil
}

// Get retrieves a record
func (l *LevelDB) Get(ns string, key []byte) ([]byte, error) {
	if !l.IsReady() {
		return nil, ErrDBNotStarted
	}
	v, err := l.db.Get(nsKey(ns, key), &_readOpt)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, errors.Wrapf(ErrNotExist, "ns %s key = %x doesn't exist", ns, key)
		}
		return nil, errors.Wrap(ErrIO, err.Error())
	}
	return v, nil
}

// Put inserts a <key, value> record
func (l *LevelDB) Put(ns string, key, value []byte) error {
	if !l.IsReady() {
		return ErrDBNotStarted
	}
	if err := l.db.Put(nsKey(ns, key), value, &_writeOpt); err != nil {
		return errors.Wrap(ErrIO, err.Error())
	}
	return nil
}

// Delete deletes a record
func (l *LevelDB) Delete(ns string, key []byte) error {
	if !l.IsReady() {
		return ErrDBNotStarted
	}
	if err := l.db.Delete(nsKey(ns, key), &_writeOpt); err != nil {
		return errors.Wrap(ErrIO, err.Error())
	}
	return nil
}

// WriteBatch commits a batch
func (l *LevelDB) WriteBatch(kvsb batch.KVStoreBatch) error {
	if !l.IsReady() {
		return ErrDBNotStarted
	}
	kvsb.Lock()
	lb := new(leveldb.Batch)
	for i := 0; i < kvsb.Size(); i++ {
		write, err := kvsb.Entry(i)
		if err != nil {
			kvsb.Unlock()
			return err
		}
		switch write.WriteType() {
		case batch.Put:
			lb.Put(nsKey(write.Namespace(), write.Key()), write.Value())
		case batch.Delete:
			lb.Delete(nsKey(write.Namespace(), write.Key()))
		}
	}
	if err := l.db.Write(lb, &_writeOpt); err != nil {
		kvsb.Unlock()
		return errors.Wrap(ErrIO, err.Error())
	}
	kvsb.ClearAndUnlock()
	return nil
}

// Filter returns <k, v> pair in a bucket that meet the condition
func (l *LevelDB) Filter(ns string, cond Condition, minKey, maxKey []byte) ([][]byte, [][]byte, error) {
	if !l.IsReady() {
		return nil, nil, ErrDBNotStarted
	}
	r := &util.Range{Start: nsKey(ns, minKey), Limit: nsUpperBound(ns)}
	iter := l.db.NewIterator(r, &_scanOpt)
	defer iter.Release()

	var keys, vals [][]byte
	for iter.Next() {
		k := iter.Key()[_prefixLength:]
		if len(maxKey) > 0 && bytes.Compare(k, maxKey) > 0 {
			break
		}
		v := iter.Value()
		if cond != nil && !cond(k, v) {
			continue
		}
		keys = append(keys, append([]byte{}, k...))
		vals = append(vals, append([]byte{}, v...))
	}
	if err := iter.Error(); err != nil {
		return nil, nil, errors.Wrap(ErrIO, err.Error())
	}
	return keys, vals, nil
}
