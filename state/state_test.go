// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package state

import (
	"math/big"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	Name  string
	Value *big.Int
	Eras  []uint32
}

type testSerializer struct {
	payload []byte
}

func (s *testSerializer) Serialize() ([]byte, error) { return append([]byte("x"), s.payload...), nil }

func (s *testSerializer) Deserialize(data []byte) error {
	if len(data) == 0 || data[0] != 'x' {
		return errors.New("bad payload")
	}
	s.payload = data[1:]
	return nil
}

func TestSerializeRLP(t *testing.T) {
	r := require.New(t)

	rec := testRecord{Name: "alice", Value: big.NewInt(1000), Eras: []uint32{1, 2, 3}}
	data, err := Serialize(&rec)
	r.NoError(err)

	var out testRecord
	r.NoError(Deserialize(&out, data))
	r.Equal(rec.Name, out.Name)
	r.Zero(rec.Value.Cmp(out.Value))
	r.Equal(rec.Eras, out.Eras)

	var wrong []uint32
	r.ErrorIs(Deserialize(&wrong, data), ErrStateDeserialization)

	_, err = Serialize(map[string]int{"a": 1})
	r.ErrorIs(err, ErrStateSerialization)
}

func TestSerializeCustom(t *testing.T) {
	r := require.New(t)

	data, err := Serialize(&testSerializer{payload: []byte("abc")})
	r.NoError(err)
	r.Equal([]byte("xabc"), data)

	var s testSerializer
	r.NoError(Deserialize(&s, data))
	r.Equal([]byte("abc"), s.payload)
	r.Error(Deserialize(&s, []byte("y")))
}

func TestIterator(t *testing.T) {
	r := require.New(t)

	values := []uint64{4, 3, 2, 1}
	keys := make([][]byte, len(values))
	states := make([][]byte, len(values))
	for i, v := range values {
		keys[i] = []byte{byte(i)}
		data, err := Serialize(v)
		r.NoError(err)
		states[i] = data
	}
	_, err := NewIterator(keys[:1], states)
	r.Equal(ErrLengthMismatch, errors.Cause(err))

	iter, err := NewIterator(keys, states)
	r.NoError(err)
	r.Equal(len(states), iter.Size())
	for i, v := range values {
		var got uint64
		key, err := iter.Next(&got)
		r.NoError(err)
		r.Equal(keys[i], key)
		r.Equal(v, got)
	}
	var none uint64
	_, err = iter.Next(&none)
	r.Equal(ErrEndOfIterator, err)

	iter, err = NewIterator([][]byte{{1}}, [][]byte{nil})
	r.NoError(err)
	_, err = iter.Next(&none)
	r.Equal(ErrMissingValue, errors.Cause(err))
}
