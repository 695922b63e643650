// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package eval

import (
	"time"
)

// -----------------------------------------------------------------------------
// Variant pairs
// -----------------------------------------------------------------------------

// Pair is the type-erased view of a VariantPair used by the scenario runner.
//
// Description:
//
//	RunCandidate and RunBaseline execute n calls of the respective variant
//	and return a checksum folded from every result. The loop lives in the
//	generic implementation so the runner adds no per-call dispatch.
type Pair interface {
	ScenarioName() string
	RunCandidate(n int) uint64
	RunBaseline(n int) uint64
}

// VariantPair is a named baseline/candidate pair sharing one signature.
//
// Description:
//
//	Both variants must have identical observable behavior and be
//	deterministic enough that equal input sequences yield comparable work.
//	Input maps the iteration index to the call argument; Digest folds a
//	result into the checksum that keeps the calls from being optimized away.
//
// Thread Safety: Immutable after creation. Variants themselves are called
// from a single goroutine.
//
// Example:
//
//	pair := eval.VariantPair[int, int]{
//	    Name:      "Simple Arithmetic",
//	    Candidate: addInline,
//	    Baseline:  addCall,
//	    Input:     func(i int) int { return i },
//	    Digest:    func(v int) uint64 { return uint64(v) },
//	}
type VariantPair[In, Out any] struct {
	Name      string
	Candidate func(In) Out
	Baseline  func(In) Out
	Input     func(i int) In
	Digest    func(Out) uint64
}

// NewIntPair builds the common int -> int pair with identity input and digest.
func NewIntPair(name string, candidate, baseline func(int) int) *VariantPair[int, int] {
	return &VariantPair[int, int]{
		Name:      name,
		Candidate: candidate,
		Baseline:  baseline,
		Input:     func(i int) int { return i },
		Digest:    func(v int) uint64 { return uint64(v) },
	}
}

// ScenarioName returns the pair's name, or "" for a nil pair.
func (p *VariantPair[In, Out]) ScenarioName() string {
	if p == nil {
		return ""
	}
	return p.Name
}

// RunCandidate executes n candidate calls and returns the checksum.
func (p *VariantPair[In, Out]) RunCandidate(n int) uint64 {
	return p.run(p.Candidate, n)
}

// RunBaseline executes n baseline calls and returns the checksum.
func (p *VariantPair[In, Out]) RunBaseline(n int) uint64 {
	return p.run(p.Baseline, n)
}

// Valid reports whether every callable is set.
func (p *VariantPair[In, Out]) Valid() bool {
	return p != nil && p.Candidate != nil && p.Baseline != nil && p.Input != nil && p.Digest != nil
}

func (p *VariantPair[In, Out]) run(fn func(In) Out, n int) uint64 {
	var acc uint64
	for i := 0; i < n; i++ {
		acc += p.Digest(fn(p.Input(i)))
	}
	return acc
}

// AllocationPair compares the heap footprint of two constructions.
//
// Description:
//
//	Each variant builds its structure and returns it; the runner keeps the
//	returned value alive until after the post-measurement heap sample.
type AllocationPair struct {
	Name      string
	Candidate func() any
	Baseline  func() any
}

// -----------------------------------------------------------------------------
// Optional
// -----------------------------------------------------------------------------

// Optional is a value that may be absent.
//
// The zero value is an empty Optional.
type Optional[T any] struct {
	value T
	ok    bool
}

// Some wraps a present value.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, ok: true}
}

// None returns an empty Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.ok
}

// IsPresent reports whether a value is held.
func (o Optional[T]) IsPresent() bool {
	return o.ok
}

// MustGet returns the value or panics with an *ExpectedFailure of kind
// FailureAbsentValue.
func (o Optional[T]) MustGet() T {
	if !o.ok {
		panic(&ExpectedFailure{Kind: FailureAbsentValue})
	}
	return o.value
}

// -----------------------------------------------------------------------------
// Memory
// -----------------------------------------------------------------------------

// MemorySample is one reading of the runtime's allocation counters.
//
// HeapUsedBytes is the live-heap estimate (MemStats.HeapAlloc). It is
// approximate: reclamation before the read is best-effort.
type MemorySample struct {
	HeapUsedBytes   uint64
	TotalAllocBytes uint64
	Mallocs         uint64
	NumGC           uint32
	PauseTotal      time.Duration
	Timestamp       time.Time
}

// MemoryDelta is the difference between two MemorySamples.
type MemoryDelta struct {
	// HeapBytes is the change in live heap; negative when the heap shrank.
	HeapBytes int64

	// AllocatedBytes is the cumulative bytes allocated in between.
	AllocatedBytes uint64

	// Objects is the number of heap objects allocated in between.
	Objects uint64

	// GCCycles is the number of completed collections in between.
	GCCycles uint32

	// GCPause is the total stop-the-world pause in between.
	GCPause time.Duration

	// Elapsed is the wall time between the two samples.
	Elapsed time.Duration
}

// Delta computes after minus before.
func Delta(before, after MemorySample) MemoryDelta {
	d := MemoryDelta{
		HeapBytes: int64(after.HeapUsedBytes) - int64(before.HeapUsedBytes),
		Elapsed:   after.Timestamp.Sub(before.Timestamp),
	}
	if after.TotalAllocBytes > before.TotalAllocBytes {
		d.AllocatedBytes = after.TotalAllocBytes - before.TotalAllocBytes
	}
	if after.Mallocs > before.Mallocs {
		d.Objects = after.Mallocs - before.Mallocs
	}
	if after.NumGC > before.NumGC {
		d.GCCycles = after.NumGC - before.NumGC
	}
	if after.PauseTotal > before.PauseTotal {
		d.GCPause = after.PauseTotal - before.PauseTotal
	}
	return d
}

// RateMBPerSecond is the allocation rate over the delta's wall time.
//
// Uses AllocatedBytes; returns 0 when no time elapsed.
func (d MemoryDelta) RateMBPerSecond() float64 {
	if d.Elapsed <= 0 {
		return 0
	}
	return float64(d.AllocatedBytes) / bytesPerMB / d.Elapsed.Seconds()
}

const bytesPerMB = 1024 * 1024

// BytesToMB converts a signed byte count to mebibytes.
func BytesToMB(b int64) float64 {
	return float64(b) / bytesPerMB
}
