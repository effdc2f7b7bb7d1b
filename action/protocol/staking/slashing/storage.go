// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package slashing

import (
	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"

	"github.com/iotexproject/iotex-npos/action/protocol"
	"github.com/iotexproject/iotex-npos/pkg/util/byteutil"
	"github.com/iotexproject/iotex-npos/state"
)

const (
	_slashingNamespace = "Slashing"

	_spansTag          = 's'
	_spanRecordTag     = 'p'
	_validatorSlashTag = 'v'
	_nominatorSlashTag = 'n'
)

// ErrIncorrectSlashingSpans is the error that the caller under-estimated the number of slashing spans of a stash
var ErrIncorrectSlashingSpans = errors.New("incorrect number of slashing spans")

// rawState keeps the stored bytes as is, used to walk keys under a prefix
type rawState []byte

func (r *rawState) Deserialize(data []byte) error {
	*r = append((*r)[:0], data...)
	return nil
}

func spansKey(stash address.Address) []byte {
	return byteutil.Concat([]byte{_spansTag}, stash.Bytes())
}

func spanRecordKey(stash address.Address, index uint32) []byte {
	return byteutil.Concat([]byte{_spanRecordTag}, stash.Bytes(), byteutil.Uint32ToBytesBigEndian(index))
}

func eraKey(tag byte, era uint32, stash address.Address) []byte {
	return byteutil.Concat([]byte{tag}, byteutil.Uint32ToBytesBigEndian(era), stash.Bytes())
}

func getState(sr protocol.StateReader, s interface{}, key []byte) (bool, error) {
	_, err := sr.State(s, protocol.NamespaceOption(_slashingNamespace), protocol.KeyOption(key))
	switch errors.Cause(err) {
	case nil:
		return true, nil
	case state.ErrStateNotExist:
		return false, nil
	default:
		return false, err
	}
}

func putState(sm protocol.StateManager, s interface{}, key []byte) error {
	_, err := sm.PutState(s, protocol.NamespaceOption(_slashingNamespace), protocol.KeyOption(key))
	return err
}

func delState(sm protocol.StateManager, key []byte) error {
	_, err := sm.DelState(protocol.NamespaceOption(_slashingNamespace), protocol.KeyOption(key))
	return err
}

func delPrefix(sm protocol.StateManager, prefix []byte) error {
	_, iter, err := sm.States(protocol.NamespaceOption(_slashingNamespace), protocol.PrefixOption(prefix))
	if err != nil {
		return err
	}
	keys := make([][]byte, 0, iter.Size())
	for i := 0; i < iter.Size(); i++ {
		var raw rawState
		key, err := iter.Next(&raw)
		if err != nil {
			return err
		}
		keys = append(keys, key)
	}
	for _, key := range keys {
		if err := delState(sm, key); err != nil {
			return err
		}
	}
	return nil
}

// SpansOf returns the slashing spans of a stash, false if it was never slashed
func SpansOf(sr protocol.StateReader, stash address.Address) (*Spans, bool, error) {
	spans := &Spans{}
	ok, err := getState(sr, spans, spansKey(stash))
	if err != nil || !ok {
		return nil, false, err
	}
	return spans, true, nil
}

// SpanRecordOf returns the record of a span, zero if nothing was slashed in it
func SpanRecordOf(sr protocol.StateReader, stash address.Address, index uint32) (*SpanRecord, error) {
	rec := newSpanRecord()
	if _, err := getState(sr, rec, spanRecordKey(stash, index)); err != nil {
		return nil, err
	}
	return rec, nil
}

// LastNonzeroSlash returns the latest era a stash was slashed a non-zero amount for, zero if never
func LastNonzeroSlash(sr protocol.StateReader, stash address.Address) (uint32, error) {
	spans, ok, err := SpansOf(sr, stash)
	if err != nil || !ok {
		return 0, err
	}
	return spans.LastNonzeroSlash, nil
}

// ClearEraMetadata removes the per era slash records once the era leaves the bonding window
func ClearEraMetadata(sm protocol.StateManager, era uint32) error {
	for _, tag := range []byte{_validatorSlashTag, _nominatorSlashTag} {
		if err := delPrefix(sm, byteutil.Concat([]byte{tag}, byteutil.Uint32ToBytesBigEndian(era))); err != nil {
			return errors.Wrapf(err, "failed to clear slashes of era %d", era)
		}
	}
	return nil
}

// ClearStashMetadata removes the spans of a stash being reaped. The caller must name at least as many spans as
// the stash has.
func ClearStashMetadata(sm protocol.StateManager, stash address.Address, numSlashingSpans uint32) error {
	spans, ok, err := SpansOf(sm, stash)
	if err != nil || !ok {
		return err
	}
	if numSlashingSpans < spans.Count() {
		return errors.Wrapf(ErrIncorrectSlashingSpans, "stash %s has %d spans", stash.String(), spans.Count())
	}
	if err := delState(sm, spansKey(stash)); err != nil {
		return err
	}
	for _, span := range spans.Iter() {
		if err := delState(sm, spanRecordKey(stash, span.Index)); err != nil {
			return err
		}
	}
	return nil
}
