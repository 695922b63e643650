// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workloads

import (
	"math/rand/v2"

	"github.com/AleutianAI/pairbench/services/harness/eval"
)

// Names of the failure-rate variants.
const (
	NameUncheckedLookup = "Unchecked Lookup"
	NameCheckedLookup   = "Checked Lookup"
)

// Payload is the value a NullableSource hands out.
type Payload struct {
	Value int
}

// NullableSource yields a payload or nothing, with a fixed probability of
// nothing.
//
// Description:
//
//	Draws come from a seeded PCG generator, so two sources built with the
//	same probability and seed produce the same sequence. Next and
//	NextOptional consume the generator identically.
//
// Thread Safety: Not safe for concurrent use.
type NullableSource struct {
	rng     *rand.Rand
	pAbsent float64
	payload Payload
}

// NewNullableSource creates a source that is empty with probability pAbsent.
// pAbsent is clamped to [0, 1].
func NewNullableSource(pAbsent float64, seed uint64) *NullableSource {
	switch {
	case pAbsent < 0:
		pAbsent = 0
	case pAbsent > 1:
		pAbsent = 1
	}
	return &NullableSource{
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		pAbsent: pAbsent,
	}
}

// AbsentProbability returns the configured probability of an empty draw.
func (s *NullableSource) AbsentProbability() float64 {
	return s.pAbsent
}

// Next returns a payload, or nil for an empty draw.
func (s *NullableSource) Next() *Payload {
	if s.rng.Float64() < s.pAbsent {
		return nil
	}
	s.payload.Value = s.rng.IntN(1000)
	return &s.payload
}

// NextOptional is Next with absence encoded in the result type.
func (s *NullableSource) NextOptional() eval.Optional[Payload] {
	p := s.Next()
	if p == nil {
		return eval.None[Payload]()
	}
	return eval.Some(*p)
}

var lookupSink int

// UncheckedLookup dereferences every draw without a presence check. An empty
// draw surfaces as a runtime nil pointer dereference.
func UncheckedLookup(src *NullableSource) func() error {
	return func() error {
		p := src.Next()
		lookupSink += p.Value
		return nil
	}
}

// CheckedLookup inspects every draw before use and skips empty ones.
func CheckedLookup(src *NullableSource) func() error {
	return func() error {
		if v, ok := src.NextOptional().Get(); ok {
			lookupSink += v.Value
		}
		return nil
	}
}

// UnwrapLookup unwraps every draw unconditionally. An empty draw panics with
// an absent-value failure.
func UnwrapLookup(src *NullableSource) func() error {
	return func() error {
		lookupSink += src.NextOptional().MustGet().Value
		return nil
	}
}
