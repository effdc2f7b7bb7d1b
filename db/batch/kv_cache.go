// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package batch

import (
	"bytes"
	"sort"
)

type (
	// KVStoreCache is a local cache of batched <k, v> for fast query
	KVStoreCache interface {
		// Read retrieves a record
		Read(namespace string, key []byte) ([]byte, error)
		// Write puts a record into cache
		Write(namespace string, key, value []byte)
		// Evict marks a record as deleted
		Evict(namespace string, key []byte)
		// Range visits the cached records of a namespace whose key has the prefix, in key order
		Range(namespace string, prefix []byte, fn func(key, value []byte, deleted bool) error) error
		// Clear clear the cache
		Clear()
		// Clone clones the cache
		Clone() KVStoreCache
	}

	node struct {
		value   []byte
		deleted bool
	}

	// kvCache implements KVStoreCache interface
	kvCache struct {
		cache map[string]map[string]*node
	}
)

// NewKVCache returns a KVStoreCache
func NewKVCache() KVStoreCache {
	return &kvCache{
		cache: make(map[string]map[string]*node),
	}
}

func (c *kvCache) Read(namespace string, key []byte) ([]byte, error) {
	if ns, ok := c.cache[namespace]; ok {
		if n, ok := ns[string(key)]; ok {
			if n.deleted {
				return nil, ErrAlreadyDeleted
			}
			return n.value, nil
		}
	}
	return nil, ErrNotExist
}

func (c *kvCache) Write(namespace string, key, value []byte) {
	c.set(namespace, key, &node{value: value})
}

func (c *kvCache) Evict(namespace string, key []byte) {
	c.set(namespace, key, &node{deleted: true})
}

func (c *kvCache) Range(namespace string, prefix []byte, fn func(key, value []byte, deleted bool) error) error {
	ns, ok := c.cache[namespace]
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(ns))
	for k := range ns {
		if bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		n := ns[k]
		if err := fn([]byte(k), n.value, n.deleted); err != nil {
			return err
		}
	}
	return nil
}

func (c *kvCache) Clear() {
	c.cache = make(map[string]map[string]*node)
}

func (c *kvCache) Clone() KVStoreCache {
	clone := make(map[string]map[string]*node, len(c.cache))
	for ns, kv := range c.cache {
		m := make(map[string]*node, len(kv))
		for k, n := range kv {
			m[k] = n
		}
		clone[ns] = m
	}
	return &kvCache{cache: clone}
}

func (c *kvCache) set(namespace string, key []byte, n *node) {
	if _, ok := c.cache[namespace]; !ok {
		c.cache[namespace] = make(map[string]*node)
	}
	c.cache[namespace][string(key)] = n
}
