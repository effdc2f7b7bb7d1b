// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package staking

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/iotexproject/iotex-address/address"
	"github.com/pkg/errors"

	"github.com/iotexproject/iotex-npos/action"
	"github.com/iotexproject/iotex-npos/election"
	"github.com/iotexproject/iotex-npos/pkg/perbill"
)

// Forcing is the mode of era progression
type Forcing uint8

const (
	// NotForcing starts a new era every SessionsPerEra sessions
	NotForcing Forcing = iota
	// ForceNew starts a new era at the next session, then falls back to NotForcing
	ForceNew
	// ForceNone never starts a new era
	ForceNone
	// ForceAlways starts a new era at every session
	ForceAlways
)

func (f Forcing) String() string {
	switch f {
	case ForceNew:
		return "ForceNew"
	case ForceNone:
		return "ForceNone"
	case ForceAlways:
		return "ForceAlways"
	default:
		return "NotForcing"
	}
}

type (
	// UnlockChunk is an amount unbonding until an era
	UnlockChunk struct {
		Value *big.Int
		Era   uint32
	}

	// Ledger is the bonding state of a stash, keyed by its controller.
	// Active plus the unlocking values always equals Total.
	Ledger struct {
		Stash  address.Address
		Total  *big.Int
		Active *big.Int
		// Unlocking chunks are in the order they were scheduled
		Unlocking []UnlockChunk
		// ClaimedRewards is the sorted list of eras the rewards were paid out for
		ClaimedRewards []uint32
	}

	ledgerRLP struct {
		Stash          []byte
		Total          *big.Int
		Active         *big.Int
		Unlocking      []UnlockChunk
		ClaimedRewards []uint32
	}

	// ValidatorPrefs are the preferences of a validator
	ValidatorPrefs struct {
		Commission perbill.Perbill
		// Blocked validators accept no new nominations
		Blocked bool
	}

	// Nominations are the targets a nominator backs
	Nominations struct {
		Targets []address.Address
		// SubmittedIn is the era the nominations were submitted in
		SubmittedIn uint32
		Suppressed  bool
	}

	nominationsRLP struct {
		Targets     [][]byte
		SubmittedIn uint32
		Suppressed  bool
	}

	// IndividualExposure is the stake of one nominator behind a validator
	IndividualExposure struct {
		Who   address.Address
		Value *big.Int
	}

	// Exposure is the stake behind a validator in an era
	Exposure struct {
		Own    *big.Int
		Total  *big.Int
		Others []IndividualExposure
	}

	individualRLP struct {
		Who   []byte
		Value *big.Int
	}

	exposureRLP struct {
		Own    *big.Int
		Total  *big.Int
		Others []individualRLP
	}

	// EraRewardPoints are the points validators earned in an era
	EraRewardPoints struct {
		Total      uint32
		Individual map[string]uint32
	}

	pointRLP struct {
		Who    string
		Points uint32
	}

	eraRewardPointsRLP struct {
		Total      uint32
		Individual []pointRLP
	}

	// PermissionedIdentityPrefs bounds how many validators an identity runs
	PermissionedIdentityPrefs struct {
		IntendedCount uint32
		RunningCount  uint32
	}

	// ActiveEraInfo is the era whose validators are producing blocks
	ActiveEraInfo struct {
		Index uint32
		// Start is the unix time in milliseconds the era started at, set in the first block of the era
		Start    uint64
		HasStart bool
	}

	// ElectionStatus tells whether the window for off-chain solutions is open
	ElectionStatus struct {
		Open bool
		// Block the window opened at
		Block uint64
	}

	// BondedEra maps an era to the session it started in
	BondedEra struct {
		Era     uint32
		Session uint32
	}

	// ElectedExposure is a winner with its exposure
	ElectedExposure struct {
		Stash    address.Address
		Exposure *Exposure
	}

	// ElectionResult is a planned validator set
	ElectionResult struct {
		Elected []ElectedExposure
		Compute election.Compute
	}

	electedRLP struct {
		Stash    []byte
		Exposure exposureRLP
	}

	electionResultRLP struct {
		Elected []electedRLP
		Compute uint8
	}

	// OffendingValidator is a validator that offended in the active era
	OffendingValidator struct {
		Stash    address.Address
		Disabled bool
	}

	offendingRLP struct {
		Stash    []byte
		Disabled bool
	}

	offendingList []OffendingValidator

	// ScheduledPayout is a payout executed by the system at a block
	ScheduledPayout struct {
		Validator address.Address
		Era       uint32
	}

	scheduledRLP struct {
		Validator []byte
		Era       uint32
	}

	scheduledList []ScheduledPayout

	payeeRLP struct {
		Kind    uint8
		Account []byte
	}

	payee struct {
		action.RewardDestination
	}

	addrList []address.Address

	bondedEraList []BondedEra
)

// NewLedger returns a ledger with the whole value active
func NewLedger(stash address.Address, value *big.Int) *Ledger {
	return &Ledger{
		Stash:  stash,
		Total:  new(big.Int).Set(value),
		Active: new(big.Int).Set(value),
	}
}

// Clone returns a deep copy of the ledger
func (l *Ledger) Clone() *Ledger {
	c := &Ledger{
		Stash:          l.Stash,
		Total:          new(big.Int).Set(l.Total),
		Active:         new(big.Int).Set(l.Active),
		ClaimedRewards: append([]uint32(nil), l.ClaimedRewards...),
	}
	for _, u := range l.Unlocking {
		c.Unlocking = append(c.Unlocking, UnlockChunk{Value: new(big.Int).Set(u.Value), Era: u.Era})
	}
	return c
}

// Serialize serializes the ledger into bytes
func (l *Ledger) Serialize() ([]byte, error) {
	return rlp.EncodeToBytes(&ledgerRLP{
		Stash:          l.Stash.Bytes(),
		Total:          l.Total,
		Active:         l.Active,
		Unlocking:      l.Unlocking,
		ClaimedRewards: l.ClaimedRewards,
	})
}

// Deserialize deserializes bytes into the ledger
func (l *Ledger) Deserialize(data []byte) error {
	var r ledgerRLP
	if err := rlp.DecodeBytes(data, &r); err != nil {
		return errors.Wrap(err, "failed to decode ledger")
	}
	stash, err := address.FromBytes(r.Stash)
	if err != nil {
		return err
	}
	l.Stash = stash
	l.Total = nonNil(r.Total)
	l.Active = nonNil(r.Active)
	l.Unlocking = r.Unlocking
	for i := range l.Unlocking {
		l.Unlocking[i].Value = nonNil(l.Unlocking[i].Value)
	}
	l.ClaimedRewards = r.ClaimedRewards
	return nil
}

// Serialize serializes the nominations into bytes
func (n *Nominations) Serialize() ([]byte, error) {
	return rlp.EncodeToBytes(&nominationsRLP{
		Targets:     addrList(n.Targets).bytes(),
		SubmittedIn: n.SubmittedIn,
		Suppressed:  n.Suppressed,
	})
}

// Deserialize deserializes bytes into the nominations
func (n *Nominations) Deserialize(data []byte) error {
	var r nominationsRLP
	if err := rlp.DecodeBytes(data, &r); err != nil {
		return errors.Wrap(err, "failed to decode nominations")
	}
	targets, err := addrsFromBytes(r.Targets)
	if err != nil {
		return err
	}
	n.Targets = targets
	n.SubmittedIn = r.SubmittedIn
	n.Suppressed = r.Suppressed
	return nil
}

// NewExposure returns an empty exposure
func NewExposure() *Exposure {
	return &Exposure{Own: new(big.Int), Total: new(big.Int)}
}

// Clone returns a deep copy of the exposure
func (e *Exposure) Clone() *Exposure {
	c := &Exposure{Own: new(big.Int).Set(e.Own), Total: new(big.Int).Set(e.Total)}
	for _, o := range e.Others {
		c.Others = append(c.Others, IndividualExposure{Who: o.Who, Value: new(big.Int).Set(o.Value)})
	}
	return c
}

// Clipped keeps the largest max nominators, sorted by value descending. The total is not changed.
func (e *Exposure) Clipped(max uint32) *Exposure {
	c := e.Clone()
	if uint32(len(c.Others)) <= max {
		return c
	}
	sort.SliceStable(c.Others, func(i, j int) bool { return c.Others[i].Value.Cmp(c.Others[j].Value) > 0 })
	c.Others = c.Others[:max]
	return c
}

func (e *Exposure) toRLP() exposureRLP {
	r := exposureRLP{Own: e.Own, Total: e.Total}
	for _, o := range e.Others {
		r.Others = append(r.Others, individualRLP{Who: o.Who.Bytes(), Value: o.Value})
	}
	return r
}

func (e *Exposure) fromRLP(r *exposureRLP) error {
	e.Own = nonNil(r.Own)
	e.Total = nonNil(r.Total)
	e.Others = nil
	for _, o := range r.Others {
		who, err := address.FromBytes(o.Who)
		if err != nil {
			return err
		}
		e.Others = append(e.Others, IndividualExposure{Who: who, Value: nonNil(o.Value)})
	}
	return nil
}

// Serialize serializes the exposure into bytes
func (e *Exposure) Serialize() ([]byte, error) {
	r := e.toRLP()
	return rlp.EncodeToBytes(&r)
}

// Deserialize deserializes bytes into the exposure
func (e *Exposure) Deserialize(data []byte) error {
	var r exposureRLP
	if err := rlp.DecodeBytes(data, &r); err != nil {
		return errors.Wrap(err, "failed to decode exposure")
	}
	return e.fromRLP(&r)
}

// NewEraRewardPoints returns empty points
func NewEraRewardPoints() *EraRewardPoints {
	return &EraRewardPoints{Individual: map[string]uint32{}}
}

// Add adds points to a validator
func (p *EraRewardPoints) Add(who address.Address, points uint32) {
	p.Individual[who.String()] += points
	p.Total += points
}

// Of returns the points of a validator
func (p *EraRewardPoints) Of(who address.Address) uint32 {
	return p.Individual[who.String()]
}

// Serialize serializes the points into bytes, sorted by account
func (p *EraRewardPoints) Serialize() ([]byte, error) {
	r := eraRewardPointsRLP{Total: p.Total}
	for who, pts := range p.Individual {
		r.Individual = append(r.Individual, pointRLP{Who: who, Points: pts})
	}
	sort.Slice(r.Individual, func(i, j int) bool { return r.Individual[i].Who < r.Individual[j].Who })
	return rlp.EncodeToBytes(&r)
}

// Deserialize deserializes bytes into the points
func (p *EraRewardPoints) Deserialize(data []byte) error {
	var r eraRewardPointsRLP
	if err := rlp.DecodeBytes(data, &r); err != nil {
		return errors.Wrap(err, "failed to decode reward points")
	}
	p.Total = r.Total
	p.Individual = make(map[string]uint32, len(r.Individual))
	for _, i := range r.Individual {
		p.Individual[i.Who] = i.Points
	}
	return nil
}

// Winners returns the elected stashes
func (r *ElectionResult) Winners() []address.Address {
	out := make([]address.Address, len(r.Elected))
	for i, e := range r.Elected {
		out[i] = e.Stash
	}
	return out
}

// Serialize serializes the result into bytes
func (r *ElectionResult) Serialize() ([]byte, error) {
	out := electionResultRLP{Compute: uint8(r.Compute)}
	for _, e := range r.Elected {
		out.Elected = append(out.Elected, electedRLP{Stash: e.Stash.Bytes(), Exposure: e.Exposure.toRLP()})
	}
	return rlp.EncodeToBytes(&out)
}

// Deserialize deserializes bytes into the result
func (r *ElectionResult) Deserialize(data []byte) error {
	var in electionResultRLP
	if err := rlp.DecodeBytes(data, &in); err != nil {
		return errors.Wrap(err, "failed to decode election result")
	}
	r.Compute = election.Compute(in.Compute)
	r.Elected = nil
	for i := range in.Elected {
		stash, err := address.FromBytes(in.Elected[i].Stash)
		if err != nil {
			return err
		}
		exp := &Exposure{}
		if err := exp.fromRLP(&in.Elected[i].Exposure); err != nil {
			return err
		}
		r.Elected = append(r.Elected, ElectedExposure{Stash: stash, Exposure: exp})
	}
	return nil
}

func (l offendingList) Serialize() ([]byte, error) {
	out := make([]offendingRLP, 0, len(l))
	for _, o := range l {
		out = append(out, offendingRLP{Stash: o.Stash.Bytes(), Disabled: o.Disabled})
	}
	return rlp.EncodeToBytes(out)
}

func (l *offendingList) Deserialize(data []byte) error {
	var in []offendingRLP
	if err := rlp.DecodeBytes(data, &in); err != nil {
		return errors.Wrap(err, "failed to decode offending validators")
	}
	res := make(offendingList, 0, len(in))
	for _, o := range in {
		stash, err := address.FromBytes(o.Stash)
		if err != nil {
			return err
		}
		res = append(res, OffendingValidator{Stash: stash, Disabled: o.Disabled})
	}
	*l = res
	return nil
}

func (l scheduledList) Serialize() ([]byte, error) {
	out := make([]scheduledRLP, 0, len(l))
	for _, s := range l {
		out = append(out, scheduledRLP{Validator: s.Validator.Bytes(), Era: s.Era})
	}
	return rlp.EncodeToBytes(out)
}

func (l *scheduledList) Deserialize(data []byte) error {
	var in []scheduledRLP
	if err := rlp.DecodeBytes(data, &in); err != nil {
		return errors.Wrap(err, "failed to decode scheduled payouts")
	}
	res := make(scheduledList, 0, len(in))
	for _, s := range in {
		v, err := address.FromBytes(s.Validator)
		if err != nil {
			return err
		}
		res = append(res, ScheduledPayout{Validator: v, Era: s.Era})
	}
	*l = res
	return nil
}

func (p *payee) Serialize() ([]byte, error) {
	r := payeeRLP{Kind: uint8(p.Kind)}
	if p.Account != nil {
		r.Account = p.Account.Bytes()
	}
	return rlp.EncodeToBytes(&r)
}

func (p *payee) Deserialize(data []byte) error {
	var r payeeRLP
	if err := rlp.DecodeBytes(data, &r); err != nil {
		return errors.Wrap(err, "failed to decode payee")
	}
	p.Kind = action.PayeeKind(r.Kind)
	p.Account = nil
	if len(r.Account) > 0 {
		acct, err := address.FromBytes(r.Account)
		if err != nil {
			return err
		}
		p.Account = acct
	}
	return nil
}

func (l addrList) bytes() [][]byte {
	out := make([][]byte, len(l))
	for i, a := range l {
		out[i] = a.Bytes()
	}
	return out
}

func (l addrList) Serialize() ([]byte, error) {
	return rlp.EncodeToBytes(l.bytes())
}

func (l *addrList) Deserialize(data []byte) error {
	var in [][]byte
	if err := rlp.DecodeBytes(data, &in); err != nil {
		return errors.Wrap(err, "failed to decode addresses")
	}
	addrs, err := addrsFromBytes(in)
	if err != nil {
		return err
	}
	*l = addrs
	return nil
}

func (l bondedEraList) Serialize() ([]byte, error) {
	return rlp.EncodeToBytes([]BondedEra(l))
}

func (l *bondedEraList) Deserialize(data []byte) error {
	var in []BondedEra
	if err := rlp.DecodeBytes(data, &in); err != nil {
		return errors.Wrap(err, "failed to decode bonded eras")
	}
	*l = in
	return nil
}

func addrsFromBytes(in [][]byte) ([]address.Address, error) {
	out := make([]address.Address, 0, len(in))
	for _, b := range in {
		a, err := address.FromBytes(b)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}
