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

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Entries
// -----------------------------------------------------------------------------

// Family groups result entries that share a report layout.
type Family string

const (
	FamilyTiming     Family = "timing"
	FamilyAllocation Family = "allocation"
	FamilyThroughput Family = "throughput"
	FamilyFailure    Family = "failure"
	FamilyChurn      Family = "churn"
	FamilyFailed     Family = "failed"
)

// Entry is one element of a ResultSet.
type Entry interface {
	ScenarioName() string
	Family() Family
}

// TimingResult is the outcome of one paired timing scenario.
//
// Description:
//
//	Created once per scenario by the scenario runner and immutable
//	afterwards. The candidate is always measured first.
//
// Thread Safety: Immutable after creation.
type TimingResult struct {
	Name       string
	Iterations int

	// Warmup is the number of discarded calls made to each variant before
	// its measured pass.
	Warmup int

	CandidateTimeNanos int64
	BaselineTimeNanos  int64

	// RelativeImprovementPercent is baseline/candidate*100 - 100.
	RelativeImprovementPercent float64

	CandidateChecksum uint64
	BaselineChecksum  uint64
}

// ScenarioName implements Entry.
func (r TimingResult) ScenarioName() string { return r.Name }

// Family implements Entry.
func (r TimingResult) Family() Family { return FamilyTiming }

// CandidateNanosPerCall is the candidate time divided by Iterations, or 0
// when no iterations were recorded.
func (r TimingResult) CandidateNanosPerCall() float64 {
	return perCall(r.CandidateTimeNanos, r.Iterations)
}

// BaselineNanosPerCall is the baseline time divided by Iterations.
func (r TimingResult) BaselineNanosPerCall() float64 {
	return perCall(r.BaselineTimeNanos, r.Iterations)
}

func perCall(nanos int64, iterations int) float64 {
	if iterations <= 0 {
		return 0
	}
	return float64(nanos) / float64(iterations)
}

// ChecksumsMatch reports whether both variants folded to the same checksum.
func (r TimingResult) ChecksumsMatch() bool {
	return r.CandidateChecksum == r.BaselineChecksum
}

// RelativeImprovementPercent computes (baseline/candidate)*100 - 100.
//
// Description:
//
//	Positive values mean the candidate was faster. A non-positive
//	candidate time has no meaningful ratio and yields 0.
//
// Inputs:
//   - baselineNanos: Baseline elapsed time.
//   - candidateNanos: Candidate elapsed time.
//
// Outputs:
//   - float64: The relative improvement in percent.
func RelativeImprovementPercent(baselineNanos, candidateNanos int64) float64 {
	if candidateNanos <= 0 {
		return 0
	}
	return float64(baselineNanos)/float64(candidateNanos)*100 - 100
}

// AllocationResult is the heap footprint comparison of an AllocationPair.
//
// Memory figures are best-effort estimates; see MemorySample.
type AllocationResult struct {
	Name      string
	Candidate MemoryDelta
	Baseline  MemoryDelta
}

// ScenarioName implements Entry.
func (r AllocationResult) ScenarioName() string { return r.Name }

// Family implements Entry.
func (r AllocationResult) Family() Family { return FamilyAllocation }

// ThroughputResult is the outcome of one concurrency stress run.
type ThroughputResult struct {
	Name         string
	Workers      int
	OpsPerWorker int
	PoolSize     int

	TotalOperations        int64
	ElapsedMillis          float64
	OperationsPerSecond    float64
	PerOperationCostMillis float64
}

// ScenarioName implements Entry.
func (r ThroughputResult) ScenarioName() string { return r.Name }

// Family implements Entry.
func (r ThroughputResult) Family() Family { return FamilyThroughput }

// FailureStats is the outcome of one failure-rate run.
type FailureStats struct {
	Name string
	Mode Mode
	Kind FailureKind

	TotalCalls   int64
	FailureCount int64
	Elapsed      time.Duration

	FailureRatePercent float64
	FailuresPerMinute  float64
}

// ScenarioName implements Entry.
func (r FailureStats) ScenarioName() string { return r.Name }

// Family implements Entry.
func (r FailureStats) Family() Family { return FamilyFailure }

// NewFailureStats derives the rate fields from the raw tallies.
func NewFailureStats(name string, mode Mode, kind FailureKind, total, failures int64, elapsed time.Duration) FailureStats {
	s := FailureStats{
		Name:         name,
		Mode:         mode,
		Kind:         kind,
		TotalCalls:   total,
		FailureCount: failures,
		Elapsed:      elapsed,
	}
	if total > 0 {
		s.FailureRatePercent = float64(failures) / float64(total) * 100
	}
	if elapsed > 0 {
		s.FailuresPerMinute = float64(failures) / elapsed.Minutes()
	}
	return s
}

// ChurnResult is the outcome of a garbage-collection pressure run.
type ChurnResult struct {
	Name           string
	ObjectsCreated int64
	Elapsed        time.Duration
	Memory         MemoryDelta
}

// ScenarioName implements Entry.
func (r ChurnResult) ScenarioName() string { return r.Name }

// Family implements Entry.
func (r ChurnResult) Family() Family { return FamilyChurn }

// FailedResult records a scenario that did not produce a measurement.
type FailedResult struct {
	Name string

	// Intended is the family the scenario would have produced.
	Intended Family

	Err error
}

// ScenarioName implements Entry.
func (r FailedResult) ScenarioName() string { return r.Name }

// Family implements Entry.
func (r FailedResult) Family() Family { return FamilyFailed }

// -----------------------------------------------------------------------------
// ResultSet
// -----------------------------------------------------------------------------

// ResultSet is the insertion-ordered collection of one run's entries.
//
// Description:
//
//	Produced once per process run and owned by the suite; runners return
//	their results and only the owner appends. Never persisted.
//
// Thread Safety: Not safe for concurrent mutation. The owner appends from
// a single goroutine.
type ResultSet struct {
	RunID     uuid.UUID
	StartedAt time.Time

	entries []Entry
}

// NewResultSet creates an empty ResultSet with a fresh run identifier.
func NewResultSet() *ResultSet {
	return &ResultSet{
		RunID:     uuid.New(),
		StartedAt: time.Now(),
	}
}

// Append adds an entry at the end. Nil entries are ignored.
func (s *ResultSet) Append(e Entry) {
	if e == nil {
		return
	}
	s.entries = append(s.entries, e)
}

// Entries returns a copy of the entries in insertion order.
func (s *ResultSet) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of entries.
func (s *ResultSet) Len() int {
	return len(s.entries)
}

// Failed returns the failed entries in insertion order.
func (s *ResultSet) Failed() []FailedResult {
	var out []FailedResult
	for _, e := range s.entries {
		if f, ok := e.(FailedResult); ok {
			out = append(out, f)
		}
	}
	return out
}
