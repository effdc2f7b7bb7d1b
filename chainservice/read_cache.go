// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package chainservice

import (
	"time"

	"github.com/iotexproject/go-pkgs/cache/ttl"
	"github.com/iotexproject/go-pkgs/hash"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/iotexproject/iotex-npos/pkg/log"
	"github.com/iotexproject/iotex-npos/pkg/util/byteutil"
)

type (
	// ReadKey identifies a ReadState call on the state committed at Height
	ReadKey struct {
		Protocol string
		Height   uint64
		Method   []byte
		Args     [][]byte
	}

	// ReadCache keeps ReadState results, it is cleared whenever a block is committed
	ReadCache struct {
		total, hit atomic.Uint64
		c          *ttl.Cache
	}
)

// Hash hashes the length prefixed fields of the key
func (k *ReadKey) Hash() hash.Hash160 {
	b := byteutil.Uint64ToBytesBigEndian(k.Height)
	for _, field := range append([][]byte{[]byte(k.Protocol), k.Method}, k.Args...) {
		b = append(b, byteutil.Uint32ToBytesBigEndian(uint32(len(field)))...)
		b = append(b, field...)
	}
	return hash.Hash160b(b)
}

// NewReadCache returns a new read cache, entries also expire after expiry if it is positive
func NewReadCache(expiry time.Duration) *ReadCache {
	c, _ := ttl.NewCache()
	if expiry > 0 {
		c, _ = ttl.NewCache(ttl.AutoExpireOption(expiry))
	}
	return &ReadCache{c: c}
}

// Get returns the cached result of key
func (rc *ReadCache) Get(key hash.Hash160) ([]byte, bool) {
	total := rc.total.Inc()
	d, ok := rc.c.Get(key)
	if !ok {
		return nil, false
	}
	if hit := rc.hit.Inc(); hit%100 == 0 {
		log.Logger("chainservice").Debug("Read cache hit", zap.Uint64("total", total), zap.Uint64("hit", hit))
	}
	return d.([]byte), true
}

// Put caches the result of key
func (rc *ReadCache) Put(key hash.Hash160, value []byte) {
	rc.c.Set(key, value)
}

// Clear drops every entry
func (rc *ReadCache) Clear() {
	rc.c.Reset()
}
