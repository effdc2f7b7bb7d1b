// Copyright (c) 2024 IoTeX Foundation
// This source code is provided 'as is' and no warranties are given as to title or non-infringement, merchantability
// or fitness for purpose and, to the extent permitted by law, all liability for your use of the code is disclaimed.
// This source code is governed by Apache License 2.0 that can be found in the LICENSE file.

package slashing

import (
	"math/big"
)

type (
	// Spans tracks the slashing spans of a stash. A span starts whenever the stash is chilled for an offence, and
	// within one span only the largest slash is applied.
	Spans struct {
		SpanIndex uint32
		// LastStart is the era the current span started at
		LastStart uint32
		// LastNonzeroSlash is the latest era a non-zero slash was recorded for
		LastNonzeroSlash uint32
		// Prior holds the lengths of the closed spans, most recent first
		Prior []uint32
	}

	// Span is one slashing span of a stash
	Span struct {
		Index  uint32
		Start  uint32
		Length uint32
		// Open is true for the current span, whose length is unbounded
		Open bool
	}

	// SpanRecord is what has been slashed and paid out to reporters within one span
	SpanRecord struct {
		Slashed *big.Int
		PaidOut *big.Int
	}
)

// NewSpans creates the spans of a stash that was never slashed
func NewSpans(windowStart uint32) *Spans {
	return &Spans{LastStart: windowStart}
}

// EndSpan ends the current span and starts a new one at era now+1. It returns false if the current span started
// later than that, in which case nothing changes.
func (s *Spans) EndSpan(now uint32) bool {
	next := now + 1
	if next <= s.LastStart {
		return false
	}
	s.Prior = append([]uint32{next - s.LastStart}, s.Prior...)
	s.LastStart = next
	s.SpanIndex++
	return true
}

// Iter returns the spans from the current one backwards
func (s *Spans) Iter() []Span {
	spans := make([]Span, 0, len(s.Prior)+1)
	spans = append(spans, Span{Index: s.SpanIndex, Start: s.LastStart, Open: true})
	start, index := s.LastStart, s.SpanIndex
	for _, length := range s.Prior {
		start -= length
		index--
		spans = append(spans, Span{Index: index, Start: start, Length: length})
	}
	return spans
}

// Count returns the number of spans, the current one included
func (s *Spans) Count() uint32 {
	return uint32(len(s.Prior)) + 1
}

// EraSpan returns the span containing the era
func (s *Spans) EraSpan(era uint32) (Span, bool) {
	for _, span := range s.Iter() {
		if span.Contains(era) {
			return span, true
		}
	}
	return Span{}, false
}

// Prune drops the closed spans that ended before the window start and returns the index range [from, to) of the
// dropped span records
func (s *Spans) Prune(windowStart uint32) (uint32, uint32, bool) {
	var (
		from, to uint32
		pruned   bool
	)
	for i, span := range s.Iter()[1:] {
		if span.Start+span.Length <= windowStart {
			from = s.SpanIndex - uint32(len(s.Prior))
			s.Prior = s.Prior[:i]
			to = s.SpanIndex - uint32(len(s.Prior))
			pruned = true
			break
		}
	}
	if windowStart > s.LastStart {
		s.LastStart = windowStart
	}
	return from, to, pruned
}

// Contains returns whether the era falls into the span
func (sp Span) Contains(era uint32) bool {
	return sp.Start <= era && (sp.Open || sp.Start+sp.Length > era)
}

func newSpanRecord() *SpanRecord {
	return &SpanRecord{Slashed: new(big.Int), PaidOut: new(big.Int)}
}
