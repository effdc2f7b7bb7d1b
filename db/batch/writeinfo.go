// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package batch

import "fmt"

// WriteType is the kind of a staged write
type WriteType uint8

// Write kinds
const (
	Put WriteType = iota
	Delete
)

func (t WriteType) String() string {
	if t == Delete {
		return "delete"
	}
	return "put"
}

// WriteInfo is one staged write. errorFormat and errorArgs describe the record for the error returned when the
// write fails to persist, e.g. "failed to put ledger of %s".
type WriteInfo struct {
	writeType   WriteType
	namespace   string
	key         []byte
	value       []byte
	errorFormat string
	errorArgs   []interface{}
}

// NewWriteInfo creates a write info
func NewWriteInfo(writeType WriteType, namespace string, key, value []byte, errorFormat string, errorArgs ...interface{}) *WriteInfo {
	return &WriteInfo{writeType, namespace, key, value, errorFormat, errorArgs}
}

func (wi *WriteInfo) Namespace() string { return wi.namespace }

func (wi *WriteInfo) WriteType() WriteType { return wi.writeType }

// Key returns a copy of the key
func (wi *WriteInfo) Key() []byte { return append([]byte(nil), wi.key...) }

// Value returns a copy of the value, nil for a delete
func (wi *WriteInfo) Value() []byte {
	if wi.writeType == Delete {
		return nil
	}
	return append([]byte{}, wi.value...)
}

func (wi *WriteInfo) ErrorFormat() string { return wi.errorFormat }

func (wi *WriteInfo) ErrorArgs() []interface{} { return wi.errorArgs }

func (wi *WriteInfo) String() string {
	return fmt.Sprintf("%s %s/%x", wi.writeType, wi.namespace, wi.key)
}
