// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package staking

import (
	"math/big"

	"github.com/iotexproject/go-pkgs/hash"
	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"

	"github.com/iotexproject/iotex-npos/action"
	"github.com/iotexproject/iotex-npos/action/protocol"
	"github.com/iotexproject/iotex-npos/action/protocol/staking/slashing"
	"github.com/iotexproject/iotex-npos/election"
	"github.com/iotexproject/iotex-npos/pkg/perbill"
	"github.com/iotexproject/iotex-npos/pkg/util/byteutil"
	"github.com/iotexproject/iotex-npos/state"
)

const (
	_stakingNamespace = "Staking"

	_ledgerTag       = 'L'
	_bondedTag       = 'B'
	_payeeTag        = 'P'
	_validatorsTag   = 'V'
	_nominatorsTag   = 'N'
	_erasStakersTag  = 'E'
	_erasClippedTag  = 'C'
	_erasPrefsTag    = 'F'
	_erasRewardTag   = 'R'
	_erasPointsTag   = 'O'
	_erasTotalTag    = 'T'
	_erasStartTag    = 'S'
	_unappliedTag    = 'U'
	_permissionedTag = 'I'
	_scheduledTag    = 'D'
	_globalTag       = 'g'
)

// singleton keys
var (
	_validatorCountKey        = globalKey("validatorCount")
	_minimumValidatorCountKey = globalKey("minimumValidatorCount")
	_invulnerablesKey         = globalKey("invulnerables")
	_currentEraKey            = globalKey("currentEra")
	_activeEraKey             = globalKey("activeEra")
	_forceEraKey              = globalKey("forceEra")
	_earliestUnappliedKey     = globalKey("earliestUnapplied")
	_bondedErasKey            = globalKey("bondedEras")
	_electionStatusKey        = globalKey("electionStatus")
	_isCurrentSessionFinalKey = globalKey("isCurrentSessionFinal")
	_historyDepthKey          = globalKey("historyDepth")
	_offendingValidatorsKey   = globalKey("offendingValidators")
	_commissionCapKey         = globalKey("commissionCap")
	_minBondThresholdKey      = globalKey("minBondThreshold")
	_slashingSwitchKey        = globalKey("slashingSwitch")
	_snapshotValidatorsKey    = globalKey("snapshotValidators")
	_snapshotNominatorsKey    = globalKey("snapshotNominators")
	_queuedElectedKey         = globalKey("queuedElected")
	_queuedScoreKey           = globalKey("queuedScore")
)

// rawState keeps the stored bytes as is, used to walk keys under a prefix
type rawState []byte

func (r *rawState) Deserialize(data []byte) error {
	*r = append((*r)[:0], data...)
	return nil
}

func globalKey(name string) []byte {
	return byteutil.Concat([]byte{_globalTag}, []byte(name))
}

func accountKey(tag byte, addr address.Address) []byte {
	return byteutil.Concat([]byte{tag}, addr.Bytes())
}

func eraPrefix(tag byte, era uint32) []byte {
	return byteutil.Concat([]byte{tag}, byteutil.Uint32ToBytesBigEndian(era))
}

func eraAccountKey(tag byte, era uint32, addr address.Address) []byte {
	return byteutil.Concat(eraPrefix(tag, era), addr.Bytes())
}

func permissionedKey(id hash.Hash256) []byte {
	return byteutil.Concat([]byte{_permissionedTag}, id[:])
}

func scheduledKey(height uint64) []byte {
	return byteutil.Concat([]byte{_scheduledTag}, byteutil.Uint64ToBytesBigEndian(height))
}

func getItem(sr protocol.StateReader, s interface{}, key []byte) (bool, error) {
	_, err := sr.State(s, protocol.NamespaceOption(_stakingNamespace), protocol.KeyOption(key))
	switch errors.Cause(err) {
	case nil:
		return true, nil
	case state.ErrStateNotExist:
		return false, nil
	default:
		return false, err
	}
}

func putItem(sm protocol.StateManager, s interface{}, key []byte) error {
	_, err := sm.PutState(s, protocol.NamespaceOption(_stakingNamespace), protocol.KeyOption(key))
	return err
}

func delItem(sm protocol.StateManager, key []byte) error {
	_, err := sm.DelState(protocol.NamespaceOption(_stakingNamespace), protocol.KeyOption(key))
	return err
}

// keysWithPrefix returns the keys under a prefix in ascending order
func keysWithPrefix(sr protocol.StateReader, prefix []byte) ([][]byte, error) {
	_, iter, err := sr.States(protocol.NamespaceOption(_stakingNamespace), protocol.PrefixOption(prefix))
	if err != nil {
		return nil, err
	}
	keys := make([][]byte, 0, iter.Size())
	for i := 0; i < iter.Size(); i++ {
		var raw rawState
		key, err := iter.Next(&raw)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func delPrefix(sm protocol.StateManager, prefix []byte) error {
	keys, err := keysWithPrefix(sm, prefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := delItem(sm, k); err != nil {
			return err
		}
	}
	return nil
}

// accountsWithPrefix returns the accounts keyed under a tag, in key order
func accountsWithPrefix(sr protocol.StateReader, prefix []byte) ([]address.Address, error) {
	keys, err := keysWithPrefix(sr, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]address.Address, 0, len(keys))
	for _, k := range keys {
		a, err := address.FromBytes(k[len(prefix):])
		if err != nil {
			return nil, errors.Wrapf(err, "invalid account key %x", k)
		}
		out = append(out, a)
	}
	return out, nil
}

func getUint32(sr protocol.StateReader, key []byte) (uint32, bool, error) {
	var v uint32
	ok, err := getItem(sr, &v, key)
	return v, ok, err
}

func getBig(sr protocol.StateReader, key []byte) (*big.Int, error) {
	v := new(big.Int)
	if _, err := getItem(sr, v, key); err != nil {
		return nil, err
	}
	return v, nil
}

func getBool(sr protocol.StateReader, key []byte) (bool, error) {
	var v bool
	_, err := getItem(sr, &v, key)
	return v, err
}

// ledger is keyed by controller

func (p *Protocol) ledger(sr protocol.StateReader, controller address.Address) (*Ledger, bool, error) {
	l := &Ledger{}
	ok, err := getItem(sr, l, accountKey(_ledgerTag, controller))
	if err != nil || !ok {
		return nil, false, err
	}
	return l, true, nil
}

// Ledger returns the ledger a controller manages
func (p *Protocol) Ledger(sr protocol.StateReader, controller address.Address) (*Ledger, bool, error) {
	return p.ledger(sr, controller)
}

func (p *Protocol) bonded(sr protocol.StateReader, stash address.Address) (address.Address, bool, error) {
	var b []byte
	ok, err := getItem(sr, &b, accountKey(_bondedTag, stash))
	if err != nil || !ok {
		return nil, false, err
	}
	controller, err := address.FromBytes(b)
	if err != nil {
		return nil, false, err
	}
	return controller, true, nil
}

// Bonded returns the controller of a stash
func (p *Protocol) Bonded(sr protocol.StateReader, stash address.Address) (address.Address, bool, error) {
	return p.bonded(sr, stash)
}

func (p *Protocol) putBonded(sm protocol.StateManager, stash, controller address.Address) error {
	b := controller.Bytes()
	return putItem(sm, &b, accountKey(_bondedTag, stash))
}

func (p *Protocol) payee(sr protocol.StateReader, stash address.Address) (action.RewardDestination, error) {
	pe := &payee{}
	ok, err := getItem(sr, pe, accountKey(_payeeTag, stash))
	if err != nil || !ok {
		return action.StakedPayee(), err
	}
	return pe.RewardDestination, nil
}

func (p *Protocol) putPayee(sm protocol.StateManager, stash address.Address, dest action.RewardDestination) error {
	return putItem(sm, &payee{dest}, accountKey(_payeeTag, stash))
}

func (p *Protocol) validatorPrefs(sr protocol.StateReader, stash address.Address) (*ValidatorPrefs, bool, error) {
	prefs := &ValidatorPrefs{}
	ok, err := getItem(sr, prefs, accountKey(_validatorsTag, stash))
	if err != nil || !ok {
		return nil, false, err
	}
	return prefs, true, nil
}

func (p *Protocol) nominations(sr protocol.StateReader, stash address.Address) (*Nominations, bool, error) {
	n := &Nominations{}
	ok, err := getItem(sr, n, accountKey(_nominatorsTag, stash))
	if err != nil || !ok {
		return nil, false, err
	}
	return n, true, nil
}

// Validators returns the stashes that intend to validate, in key order
func (p *Protocol) Validators(sr protocol.StateReader) ([]address.Address, error) {
	return accountsWithPrefix(sr, []byte{_validatorsTag})
}

// Nominators returns the stashes that nominate, in key order
func (p *Protocol) Nominators(sr protocol.StateReader) ([]address.Address, error) {
	return accountsWithPrefix(sr, []byte{_nominatorsTag})
}

// per era records

func (p *Protocol) erasStakers(sr protocol.StateReader, era uint32, stash address.Address) (*Exposure, bool, error) {
	e := &Exposure{}
	ok, err := getItem(sr, e, eraAccountKey(_erasStakersTag, era, stash))
	if err != nil || !ok {
		return NewExposure(), false, err
	}
	return e, true, nil
}

// ErasStakers returns the exposure of a validator in an era, empty if it was not elected
func (p *Protocol) ErasStakers(sr protocol.StateReader, era uint32, stash address.Address) (*Exposure, error) {
	e, _, err := p.erasStakers(sr, era, stash)
	return e, err
}

// ErasStakersClipped returns the exposure of a validator in an era keeping only the rewarded nominators
func (p *Protocol) ErasStakersClipped(sr protocol.StateReader, era uint32, stash address.Address) (*Exposure, error) {
	e := &Exposure{}
	ok, err := getItem(sr, e, eraAccountKey(_erasClippedTag, era, stash))
	if err != nil || !ok {
		return NewExposure(), err
	}
	return e, nil
}

// ErasValidatorPrefs returns the preferences of a validator in an era
func (p *Protocol) ErasValidatorPrefs(sr protocol.StateReader, era uint32, stash address.Address) (*ValidatorPrefs, error) {
	prefs := &ValidatorPrefs{}
	if _, err := getItem(sr, prefs, eraAccountKey(_erasPrefsTag, era, stash)); err != nil {
		return nil, err
	}
	return prefs, nil
}

// ErasValidatorReward returns the total payout of an era, false if the era did not end yet
func (p *Protocol) ErasValidatorReward(sr protocol.StateReader, era uint32) (*big.Int, bool, error) {
	v := new(big.Int)
	ok, err := getItem(sr, v, eraPrefix(_erasRewardTag, era))
	return v, ok, err
}

// ErasRewardPoints returns the points validators earned in an era
func (p *Protocol) ErasRewardPoints(sr protocol.StateReader, era uint32) (*EraRewardPoints, error) {
	pts := NewEraRewardPoints()
	if _, err := getItem(sr, pts, eraPrefix(_erasPointsTag, era)); err != nil {
		return nil, err
	}
	return pts, nil
}

// ErasTotalStake returns the total stake exposed in an era
func (p *Protocol) ErasTotalStake(sr protocol.StateReader, era uint32) (*big.Int, error) {
	return getBig(sr, eraPrefix(_erasTotalTag, era))
}

func (p *Protocol) erasStartSessionIndex(sr protocol.StateReader, era uint32) (uint32, bool, error) {
	return getUint32(sr, eraPrefix(_erasStartTag, era))
}

func (p *Protocol) unappliedSlashes(sr protocol.StateReader, era uint32) (slashing.Queue, error) {
	var q slashing.Queue
	if _, err := getItem(sr, &q, eraPrefix(_unappliedTag, era)); err != nil {
		return nil, err
	}
	return q, nil
}

// UnappliedSlashes returns the slashes deferred in an era
func (p *Protocol) UnappliedSlashes(sr protocol.StateReader, era uint32) (slashing.Queue, error) {
	return p.unappliedSlashes(sr, era)
}

func (p *Protocol) putUnappliedSlashes(sm protocol.StateManager, era uint32, q slashing.Queue) error {
	if len(q) == 0 {
		return delItem(sm, eraPrefix(_unappliedTag, era))
	}
	return putItem(sm, &q, eraPrefix(_unappliedTag, era))
}

// permissioned identities

// PermissionedIdentity returns the prefs of a permissioned identity
func (p *Protocol) PermissionedIdentity(sr protocol.StateReader, id hash.Hash256) (*PermissionedIdentityPrefs, bool, error) {
	prefs := &PermissionedIdentityPrefs{}
	ok, err := getItem(sr, prefs, permissionedKey(id))
	if err != nil || !ok {
		return nil, false, err
	}
	return prefs, true, nil
}

func (p *Protocol) putPermissioned(sm protocol.StateManager, id hash.Hash256, prefs *PermissionedIdentityPrefs) error {
	return putItem(sm, prefs, permissionedKey(id))
}

// singletons

// ValidatorCount returns the ideal number of validators
func (p *Protocol) ValidatorCount(sr protocol.StateReader) (uint32, error) {
	v, _, err := getUint32(sr, _validatorCountKey)
	return v, err
}

func (p *Protocol) minimumValidatorCount(sr protocol.StateReader) (uint32, error) {
	v, _, err := getUint32(sr, _minimumValidatorCountKey)
	return v, err
}

// CurrentEra returns the latest planned era, false before the first election
func (p *Protocol) CurrentEra(sr protocol.StateReader) (uint32, bool, error) {
	return getUint32(sr, _currentEraKey)
}

// ActiveEra returns the era whose validators produce blocks
func (p *Protocol) ActiveEra(sr protocol.StateReader) (*ActiveEraInfo, bool, error) {
	info := &ActiveEraInfo{}
	ok, err := getItem(sr, info, _activeEraKey)
	if err != nil || !ok {
		return nil, false, err
	}
	return info, true, nil
}

// ForceEra returns the forcing mode
func (p *Protocol) ForceEra(sr protocol.StateReader) (Forcing, error) {
	var f uint8
	_, err := getItem(sr, &f, _forceEraKey)
	return Forcing(f), err
}

func (p *Protocol) putForceEra(sm protocol.StateManager, f Forcing) error {
	v := uint8(f)
	return putItem(sm, &v, _forceEraKey)
}

func (p *Protocol) invulnerables(sr protocol.StateReader) ([]address.Address, error) {
	var l addrList
	_, err := getItem(sr, &l, _invulnerablesKey)
	return l, err
}

func (p *Protocol) bondedEras(sr protocol.StateReader) (bondedEraList, error) {
	var l bondedEraList
	_, err := getItem(sr, &l, _bondedErasKey)
	return l, err
}

// ElectionStatus returns whether the window for off-chain solutions is open
func (p *Protocol) ElectionStatus(sr protocol.StateReader) (*ElectionStatus, error) {
	s := &ElectionStatus{}
	if _, err := getItem(sr, s, _electionStatusKey); err != nil {
		return nil, err
	}
	return s, nil
}

// HistoryDepth returns the number of eras whose rewards can be claimed
func (p *Protocol) HistoryDepth(sr protocol.StateReader) (uint32, error) {
	v, _, err := getUint32(sr, _historyDepthKey)
	return v, err
}

func (p *Protocol) offendingValidators(sr protocol.StateReader) (offendingList, error) {
	var l offendingList
	_, err := getItem(sr, &l, _offendingValidatorsKey)
	return l, err
}

// CommissionCap returns the maximum commission of a validator
func (p *Protocol) CommissionCap(sr protocol.StateReader) (perbill.Perbill, error) {
	var v perbill.Perbill
	_, err := getItem(sr, &v, _commissionCapKey)
	return v, err
}

// MinBondThreshold returns the minimum active stake of a validator
func (p *Protocol) MinBondThreshold(sr protocol.StateReader) (*big.Int, error) {
	return getBig(sr, _minBondThresholdKey)
}

// SlashingSwitch returns who gets slashed on offences
func (p *Protocol) SlashingSwitch(sr protocol.StateReader) (action.SlashingSwitch, error) {
	var v uint8
	_, err := getItem(sr, &v, _slashingSwitchKey)
	return action.SlashingSwitch(v), err
}

// Snapshot returns the validators and nominators the election window was opened with
func (p *Protocol) Snapshot(sr protocol.StateReader) ([]address.Address, []address.Address, bool, error) {
	var validators, nominators addrList
	ok, err := getItem(sr, &validators, _snapshotValidatorsKey)
	if err != nil || !ok {
		return nil, nil, false, err
	}
	if _, err := getItem(sr, &nominators, _snapshotNominatorsKey); err != nil {
		return nil, nil, false, err
	}
	return validators, nominators, true, nil
}

func (p *Protocol) killSnapshot(sm protocol.StateManager) error {
	if err := delItem(sm, _snapshotValidatorsKey); err != nil {
		return err
	}
	return delItem(sm, _snapshotNominatorsKey)
}

// QueuedScore returns the score of the queued solution
func (p *Protocol) QueuedScore(sr protocol.StateReader) (*election.Score, bool, error) {
	s := &election.Score{}
	ok, err := getItem(sr, s, _queuedScoreKey)
	if err != nil || !ok {
		return nil, false, err
	}
	return s, true, nil
}

func (p *Protocol) queuedElected(sr protocol.StateReader) (*ElectionResult, bool, error) {
	r := &ElectionResult{}
	ok, err := getItem(sr, r, _queuedElectedKey)
	if err != nil || !ok {
		return nil, false, err
	}
	return r, true, nil
}

func (p *Protocol) scheduledPayouts(sr protocol.StateReader, height uint64) (scheduledList, error) {
	var l scheduledList
	_, err := getItem(sr, &l, scheduledKey(height))
	return l, err
}

// writers

func putUint32(sm protocol.StateManager, key []byte, v uint32) error {
	return putItem(sm, &v, key)
}

func putBool(sm protocol.StateManager, key []byte, v bool) error {
	return putItem(sm, &v, key)
}

func (p *Protocol) putLedger(sm protocol.StateManager, controller address.Address, l *Ledger) error {
	return putItem(sm, l, accountKey(_ledgerTag, controller))
}

func (p *Protocol) putValidatorPrefs(sm protocol.StateManager, stash address.Address, prefs *ValidatorPrefs) error {
	return putItem(sm, prefs, accountKey(_validatorsTag, stash))
}

func (p *Protocol) putNominations(sm protocol.StateManager, stash address.Address, n *Nominations) error {
	return putItem(sm, n, accountKey(_nominatorsTag, stash))
}

func (p *Protocol) putValidatorCount(sm protocol.StateManager, count uint32) error {
	return putUint32(sm, _validatorCountKey, count)
}

func (p *Protocol) putCurrentEra(sm protocol.StateManager, era uint32) error {
	return putUint32(sm, _currentEraKey, era)
}

func (p *Protocol) putActiveEra(sm protocol.StateManager, info *ActiveEraInfo) error {
	return putItem(sm, info, _activeEraKey)
}

func (p *Protocol) putInvulnerables(sm protocol.StateManager, addrs []address.Address) error {
	l := addrList(addrs)
	return putItem(sm, &l, _invulnerablesKey)
}

func (p *Protocol) putBondedEras(sm protocol.StateManager, l bondedEraList) error {
	return putItem(sm, &l, _bondedErasKey)
}

func (p *Protocol) putElectionStatus(sm protocol.StateManager, s *ElectionStatus) error {
	return putItem(sm, s, _electionStatusKey)
}

func (p *Protocol) isCurrentSessionFinal(sr protocol.StateReader) (bool, error) {
	return getBool(sr, _isCurrentSessionFinalKey)
}

func (p *Protocol) putIsCurrentSessionFinal(sm protocol.StateManager, v bool) error {
	return putBool(sm, _isCurrentSessionFinalKey, v)
}

func (p *Protocol) putHistoryDepth(sm protocol.StateManager, depth uint32) error {
	return putUint32(sm, _historyDepthKey, depth)
}

func (p *Protocol) putOffendingValidators(sm protocol.StateManager, l offendingList) error {
	if len(l) == 0 {
		return delItem(sm, _offendingValidatorsKey)
	}
	return putItem(sm, l, _offendingValidatorsKey)
}

func (p *Protocol) putCommissionCap(sm protocol.StateManager, v perbill.Perbill) error {
	return putItem(sm, &v, _commissionCapKey)
}

func (p *Protocol) putMinBondThreshold(sm protocol.StateManager, v *big.Int) error {
	return putItem(sm, v, _minBondThresholdKey)
}

func (p *Protocol) putSlashingSwitch(sm protocol.StateManager, s action.SlashingSwitch) error {
	v := uint8(s)
	return putItem(sm, &v, _slashingSwitchKey)
}

func (p *Protocol) earliestUnappliedSlash(sr protocol.StateReader) (uint32, bool, error) {
	return getUint32(sr, _earliestUnappliedKey)
}

func (p *Protocol) putSnapshot(sm protocol.StateManager, validators, nominators []address.Address) error {
	v, n := addrList(validators), addrList(nominators)
	if err := putItem(sm, &v, _snapshotValidatorsKey); err != nil {
		return err
	}
	return putItem(sm, &n, _snapshotNominatorsKey)
}

func (p *Protocol) putQueued(sm protocol.StateManager, r *ElectionResult, score *election.Score) error {
	if err := putItem(sm, r, _queuedElectedKey); err != nil {
		return err
	}
	return putItem(sm, score, _queuedScoreKey)
}

func (p *Protocol) putScheduledPayouts(sm protocol.StateManager, height uint64, l scheduledList) error {
	if len(l) == 0 {
		return delItem(sm, scheduledKey(height))
	}
	return putItem(sm, l, scheduledKey(height))
}
