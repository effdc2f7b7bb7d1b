// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package byteutil

import (
	"encoding/binary"
)

// Uint32ToBytesBigEndian converts a uint32 to 4 bytes in big-endian, so that keys sort by value
func Uint32ToBytesBigEndian(value uint32) []byte {
	bytes := make([]byte, 4)
	binary.BigEndian.PutUint32(bytes, value)
	return bytes
}

// Uint64ToBytesBigEndian converts a uint64 to 8 bytes in big-endian
func Uint64ToBytesBigEndian(value uint64) []byte {
	bytes := make([]byte, 8)
	binary.BigEndian.PutUint64(bytes, value)
	return bytes
}

// BytesToUint32BigEndian converts 4 bytes in big-endian to uint32
func BytesToUint32BigEndian(value []byte) uint32 {
	return binary.BigEndian.Uint32(value)
}

// BytesToUint64BigEndian converts 8 bytes in big-endian to uint64
func BytesToUint64BigEndian(value []byte) uint64 {
	return binary.BigEndian.Uint64(value)
}

// Concat joins the parts into a new key
func Concat(parts ...[]byte) []byte {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	key := make([]byte, 0, n)
	for _, p := range parts {
		key = append(key, p...)
	}
	return key
}

// Must is a helper wraps a call to a function returing ([]byte, error) and panics if the error is not nil.
func Must(d []byte, err error) []byte {
	if err != nil {
		panic(err)
	}
	return d
}
