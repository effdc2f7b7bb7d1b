// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package state

import (
	"github.com/pkg/errors"
)

// Iterator errors
var (
	ErrEndOfIterator  = errors.New("no more states in the iterator")
	ErrMissingValue   = errors.New("state value is missing")
	ErrLengthMismatch = errors.New("number of keys and states differ")
)

// Iterator walks a prefix scan of the state, e.g. every ledger or every exposure of an era
type Iterator interface {
	// Size returns the number of states
	Size() int
	// Next decodes the next state into s and returns its key
	Next(s interface{}) ([]byte, error)
}

type entry struct {
	key   []byte
	value []byte
}

type sliceIterator struct {
	entries []entry
	pos     int
}

// NewIterator pairs keys with their serialized states, in the given order
func NewIterator(keys [][]byte, states [][]byte) (Iterator, error) {
	if len(keys) != len(states) {
		return nil, errors.Wrapf(ErrLengthMismatch, "%d keys, %d states", len(keys), len(states))
	}
	entries := make([]entry, len(keys))
	for i := range keys {
		entries[i] = entry{key: keys[i], value: states[i]}
	}
	return &sliceIterator{entries: entries}, nil
}

func (it *sliceIterator) Size() int { return len(it.entries) }

func (it *sliceIterator) Next(s interface{}) ([]byte, error) {
	if it.pos == len(it.entries) {
		return nil, ErrEndOfIterator
	}
	e := it.entries[it.pos]
	it.pos++
	if e.value == nil {
		return e.key, errors.Wrapf(ErrMissingValue, "key %x", e.key)
	}
	return e.key, Deserialize(s, e.value)
}
