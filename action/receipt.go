// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package action

const (
	// FailureReceiptStatus is the status that the action was rejected
	FailureReceiptStatus = uint64(0)
	// SuccessReceiptStatus is the status that the action was applied
	SuccessReceiptStatus = uint64(1)
)

type (
	// Event is a typed notification emitted by a protocol
	Event interface {
		Topic() string
	}

	// Log stores an event emitted while handling an action or a block hook
	Log struct {
		Address     string
		BlockHeight uint64
		Event       Event
	}

	// Receipt represents the result of an action
	Receipt struct {
		Status      uint64
		BlockHeight uint64
		// ErrorCode is the machine readable rejection reason, zero on success
		ErrorCode       uint32
		ContractAddress string
		logs            []*Log
	}
)

// AddLogs adds logs to receipt
func (receipt *Receipt) AddLogs(logs ...*Log) *Receipt {
	receipt.logs = append(receipt.logs, logs...)
	return receipt
}

// Logs returns the logs of the receipt
func (receipt *Receipt) Logs() []*Log {
	return receipt.logs
}

// Succeeded returns true if the action was applied
func (receipt *Receipt) Succeeded() bool {
	return receipt.Status == SuccessReceiptStatus
}
