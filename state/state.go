// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package state

import (
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
)

var (
	// ErrStateNotExist is the error that the state does not exist
	ErrStateNotExist = errors.New("state does not exist")
	// ErrStateSerialization is the error that the state marshaling is failed
	ErrStateSerialization = errors.New("failed to marshal state")
	// ErrStateDeserialization is the error that the state un-marshaling is failed
	ErrStateDeserialization = errors.New("failed to unmarshal state")
)

// Serializer has Serialize method to serialize struct to binary data.
type Serializer interface {
	Serialize() ([]byte, error)
}

// Deserializer has Deserialize method to deserialize binary data to struct.
type Deserializer interface {
	Deserialize(data []byte) error
}

// Serialize check if input is Serializer, if it is, use the input's Serialize method, otherwise use rlp.
func Serialize(d interface{}) ([]byte, error) {
	if s, ok := d.(Serializer); ok {
		return s.Serialize()
	}
	data, err := rlp.EncodeToBytes(d)
	if err != nil {
		return nil, errors.Wrapf(ErrStateSerialization, "%T: %v", d, err)
	}
	return data, nil
}

// Deserialize check if output is Deserializer, if it is, use the output's Deserialize method, otherwise use rlp.
func Deserialize(x interface{}, data []byte) error {
	if s, ok := x.(Deserializer); ok {
		return s.Deserialize(data)
	}
	if err := rlp.DecodeBytes(data, x); err != nil {
		return errors.Wrapf(ErrStateDeserialization, "%T: %v", x, err)
	}
	return nil
}
