// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package staking

import (
	"math/big"
	"sort"
)

// ConsolidateUnlocked drops the chunks that matured by the current era and returns the ledger
func (l *Ledger) ConsolidateUnlocked(currentEra uint32) *Ledger {
	kept := l.Unlocking[:0]
	for _, chunk := range l.Unlocking {
		if chunk.Era > currentEra {
			kept = append(kept, chunk)
			continue
		}
		l.Total.Sub(l.Total, chunk.Value)
	}
	l.Unlocking = kept
	return l
}

// Rebond moves up to value from the unlocking chunks back to active, most recently scheduled first. At most one chunk
// is split.
func (l *Ledger) Rebond(value *big.Int) *Ledger {
	remaining := new(big.Int).Set(value)
	for len(l.Unlocking) > 0 && remaining.Sign() > 0 {
		last := &l.Unlocking[len(l.Unlocking)-1]
		if last.Value.Cmp(remaining) <= 0 {
			l.Active.Add(l.Active, last.Value)
			remaining.Sub(remaining, last.Value)
			l.Unlocking = l.Unlocking[:len(l.Unlocking)-1]
			continue
		}
		l.Active.Add(l.Active, remaining)
		last.Value = new(big.Int).Sub(last.Value, remaining)
		remaining.SetInt64(0)
	}
	return l
}

// Slash takes up to value off the ledger, active balance first and then the unlocking chunks in order. A balance
// left at or below the minimum balance is swept along without counting against the value. It returns the amount
// taken off.
func (l *Ledger) Slash(value, minimumBalance *big.Int) *big.Int {
	preTotal := new(big.Int).Set(l.Total)
	remaining := new(big.Int).Set(value)

	slashOutOf := func(target *big.Int) {
		s := minBig(remaining, target)
		if s.Sign() == 0 {
			return
		}
		target.Sub(target, s)
		remaining.Sub(remaining, s)
		if target.Cmp(minimumBalance) <= 0 {
			s.Add(s, target)
			target.SetInt64(0)
		}
		l.Total.Sub(l.Total, s)
	}

	slashOutOf(l.Active)
	for i := range l.Unlocking {
		if remaining.Sign() == 0 {
			break
		}
		slashOutOf(l.Unlocking[i].Value)
	}
	kept := l.Unlocking[:0]
	for _, chunk := range l.Unlocking {
		if chunk.Value.Sign() > 0 {
			kept = append(kept, chunk)
		}
	}
	l.Unlocking = kept
	return preTotal.Sub(preTotal, l.Total)
}

// HasClaimed returns whether the rewards of an era were paid out
func (l *Ledger) HasClaimed(era uint32) bool {
	i := sort.Search(len(l.ClaimedRewards), func(i int) bool { return l.ClaimedRewards[i] >= era })
	return i < len(l.ClaimedRewards) && l.ClaimedRewards[i] == era
}

// Claim records the rewards of an era as paid out, forgetting eras older than the history
func (l *Ledger) Claim(era, oldest uint32) {
	kept := l.ClaimedRewards[:0]
	for _, e := range l.ClaimedRewards {
		if e >= oldest {
			kept = append(kept, e)
		}
	}
	i := sort.Search(len(kept), func(i int) bool { return kept[i] >= era })
	if i < len(kept) && kept[i] == era {
		l.ClaimedRewards = kept
		return
	}
	kept = append(kept, 0)
	copy(kept[i+1:], kept[i:])
	kept[i] = era
	l.ClaimedRewards = kept
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) < 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}

func saturatingSub(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int)
	}
	return new(big.Int).Sub(a, b)
}
