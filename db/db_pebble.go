// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package db

import (
	"bytes"
	"context"
	"syscall"

	"github.com/cockroachdb/pebble"
	"github.com/iotexproject/go-pkgs/hash"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/iotexproject/iotex-npos/db/batch"
	"github.com/iotexproject/iotex-npos/pkg/lifecycle"
	"github.com/iotexproject/iotex-npos/pkg/log"
)

// every namespace owns the keys starting with the first bytes of its hash
const _prefixLength = 8

var _pebbledbMtc = prometheus.NewCounterVec(prometheus.CounterOpts{
	Name: "npos_pebbledb_metrics",
	Help: "pebbledb metrics.",
}, []string{"method"})

func init() {
	prometheus.MustRegister(_pebbledbMtc)
}

// PebbleDB is KVStore implementation based on pebble DB
type PebbleDB struct {
	lifecycle.Readiness
	db     *pebble.DB
	config Config
}

// NewPebbleDB creates a new PebbleDB instance
func NewPebbleDB(cfg Config) *PebbleDB {
	return &PebbleDB{config: cfg}
}

// Start opens the DB (creates new file if not existing yet)
func (b *PebbleDB) Start(_ context.Context) error {
	comparer := *pebble.DefaultComparer
	comparer.Split = func(k []byte) int {
		if len(k) < _prefixLength {
			return len(k)
		}
		return _prefixLength
	}
	db, err := pebble.Open(b.config.DbPath, &pebble.Options{
		Comparer:           &comparer,
		FormatMajorVersion: pebble.FormatPrePebblev1MarkedCompacted,
		ReadOnly:           b.config.ReadOnly,
	})
	if err != nil {
		return errors.Wrap(ErrIO, err.Error())
	}
	b.db = db
	return b.TurnOn()
}

// Stop closes the DB
func (b *PebbleDB) Stop(_ context.Context) error {
	if err := b.TurnOff(); err != nil {
		return err
	}
	if err := b.db.Close(); err != nil {
		return errors.Wrap(ErrIO, err.Error())
	}
	return nil
}

// Get retrieves a record
func (b *PebbleDB) Get(ns string, key []byte) ([]byte, error) {
	if !b.IsReady() {
		return nil, ErrDBNotStarted
	}
	_pebbledbMtc.WithLabelValues("get").Inc()
	v, closer, err := b.db.Get(nsKey(ns, key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, errors.Wrapf(ErrNotExist, "ns %s key = %x doesn't exist", ns, key)
	}
	if err != nil {
		return nil, err
	}
	val := append([]byte{}, v...)
	return val, closer.Close()
}

// Put inserts a <key, value> record
func (b *PebbleDB) Put(ns string, key, value []byte) error {
	return b.write("put", func() error { return b.db.Set(nsKey(ns, key), value, nil) })
}

// Delete deletes a record
func (b *PebbleDB) Delete(ns string, key []byte) error {
	if key == nil {
		return errors.Wrap(ErrInvalid, "delete whole ns not supported by PebbleDB")
	}
	return b.write("delete", func() error { return b.db.Delete(nsKey(ns, key), nil) })
}

// WriteBatch commits a batch, only the last write of a key is kept
func (b *PebbleDB) WriteBatch(kvsb batch.KVStoreBatch) error {
	kvsb.Lock()
	err := b.write("writeBatch", func() error {
		pb, err := b.toPebbleBatch(kvsb)
		if err != nil {
			return err
		}
		return pb.Commit(nil)
	})
	if err != nil {
		kvsb.Unlock()
		return err
	}
	kvsb.ClearAndUnlock()
	return nil
}

func (b *PebbleDB) write(method string, fn func() error) error {
	if !b.IsReady() {
		return ErrDBNotStarted
	}
	_pebbledbMtc.WithLabelValues(method).Inc()
	err := fn()
	if err == nil {
		return nil
	}
	if errors.Is(err, syscall.ENOSPC) {
		log.Logger("db").Fatal("Pebble is out of disk space.", zap.String("method", method), zap.Error(err))
	}
	return errors.Wrap(ErrIO, err.Error())
}

func (b *PebbleDB) toPebbleBatch(kvsb batch.KVStoreBatch) (*pebble.Batch, error) {
	last := make(map[string]int, kvsb.Size())
	writes := make([]*batch.WriteInfo, kvsb.Size())
	for i := range writes {
		write, err := kvsb.Entry(i)
		if err != nil {
			return nil, err
		}
		writes[i] = write
		last[string(nsKey(write.Namespace(), write.Key()))] = i
	}
	pb := b.db.NewBatch()
	for i, write := range writes {
		k := nsKey(write.Namespace(), write.Key())
		if last[string(k)] != i {
			continue
		}
		var err error
		if write.WriteType() == batch.Delete {
			err = pb.Delete(k, nil)
		} else {
			err = pb.Set(k, write.Value(), nil)
		}
		if err != nil {
			return nil, err
		}
	}
	return pb, nil
}

// Filter returns <k, v> pair in a bucket that meet the condition
func (b *PebbleDB) Filter(ns string, cond Condition, minKey []byte, maxKey []byte) ([][]byte, [][]byte, error) {
	if !b.IsReady() {
		return nil, nil, ErrDBNotStarted
	}
	iter, err := b.db.NewIter(&pebble.IterOptions{
		LowerBound: nsKey(ns, minKey),
		UpperBound: nsUpperBound(ns),
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create iterator")
	}
	defer func() {
		if e := iter.Close(); e != nil {
			log.Logger("db").Error("Failed to close iterator", zap.Error(e))
		}
	}()

	var keys, vals [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		k, v := iter.Key()[_prefixLength:], iter.Value()
		if len(maxKey) > 0 && bytes.Compare(k, maxKey) > 0 {
			break
		}
		if cond != nil && !cond(k, v) {
			continue
		}
		keys = append(keys, append([]byte{}, k...))
		vals = append(vals, append([]byte{}, v...))
	}
	return keys, vals, nil
}

func nsKey(ns string, key []byte) []byte {
	h := hash.Hash160b([]byte(ns))
	nk := make([]byte, _prefixLength, _prefixLength+len(key))
	copy(nk, h[:_prefixLength])
	return append(nk, key...)
}

// nsUpperBound is the first key after the namespace, nil if the prefix is all 0xff
func nsUpperBound(ns string) []byte {
	bound := nsKey(ns, nil)
	for i := len(bound) - 1; i >= 0; i-- {
		if bound[i] < 0xff {
			bound[i]++
			return bound[:i+1]
		}
	}
	return nil
}
