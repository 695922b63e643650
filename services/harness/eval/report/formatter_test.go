// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/pairbench/services/harness/eval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mb = 1024 * 1024

func goldenSet() *eval.ResultSet {
	set := eval.NewResultSet()
	set.Append(eval.TimingResult{Name: "Simple Arithmetic", Iterations: 10_000_000, CandidateTimeNanos: 12_345_678, BaselineTimeNanos: 24_691_356, RelativeImprovementPercent: 100})
	set.Append(eval.TimingResult{Name: "Calls Within Loops", Iterations: 1000, CandidateTimeNanos: 1000, BaselineTimeNanos: 1500, RelativeImprovementPercent: 50})
	set.Append(eval.AllocationResult{
		Name:      "Closure Allocation",
		Candidate: eval.MemoryDelta{HeapBytes: 8 * mb, AllocatedBytes: 8 * mb, Elapsed: 500 * time.Millisecond},
		Baseline:  eval.MemoryDelta{HeapBytes: 24 * mb, AllocatedBytes: 24 * mb, Elapsed: 2 * time.Second},
	})
	set.Append(eval.ThroughputResult{
		Name:                   "Atomic Increment",
		TotalOperations:        10_000_000,
		ElapsedMillis:          2500,
		OperationsPerSecond:    4_000_000,
		PerOperationCostMillis: 0.00025,
	})
	set.Append(eval.NewFailureStats("Unchecked Lookup", eval.ModeUnchecked, eval.FailureNilDereference, 1000, 500, time.Minute))
	set.Append(eval.NewFailureStats("Checked Lookup", eval.ModeChecked, eval.FailureNone, 2000, 0, time.Minute))
	set.Append(eval.ChurnResult{
		Name:           "String Churn",
		ObjectsCreated: 1_234_567,
		Memory:         eval.MemoryDelta{AllocatedBytes: 100 * mb, GCCycles: 42, GCPause: 2500 * time.Microsecond},
	})
	set.Append(eval.FailedResult{
		Name:     "A Scenario With A Long Name",
		Intended: eval.FamilyTiming,
		Err:      eval.NewConfigurationError("iterations", 0, "must be positive"),
	})
	set.Append(eval.TimingResult{Name: "Generic Function", Iterations: 4, CandidateTimeNanos: 10, BaselineTimeNanos: 5, RelativeImprovementPercent: -50})
	return set
}

func TestFormatter_Render_Golden(t *testing.T) {
	want, err := os.ReadFile(filepath.Join("testdata", "report.golden"))
	require.NoError(t, err)

	got := NewFormatter().Render(goldenSet())
	assert.Equal(t, string(want), got)
}

func TestFormatter_Render_Idempotent(t *testing.T) {
	set := goldenSet()
	f := NewFormatter()

	first := f.Render(set)
	second := f.Render(set)
	assert.Equal(t, first, second)
	assert.Equal(t, 9, set.Len(), "Render must not mutate the set")
}

func TestFormatter_Render_Empty(t *testing.T) {
	f := NewFormatter()
	assert.Equal(t, CompletionMarker+"\n", f.Render(nil))
	assert.Equal(t, CompletionMarker+"\n", f.Render(eval.NewResultSet()))
}

func TestFormatter_Render_ColumnsConsistent(t *testing.T) {
	out := NewFormatter().Render(goldenSet())
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Equal(t, CompletionMarker, lines[len(lines)-1])

	// Every non-free table row has the same name-column width.
	for _, line := range lines {
		if !strings.HasPrefix(line, "| ") {
			continue
		}
		assert.Equal(t, "|", line[30:31], "line %q", line)
	}
}

func TestFormatter_Render_MinimumNameWidth(t *testing.T) {
	set := eval.NewResultSet()
	set.Append(eval.TimingResult{Name: "short", CandidateTimeNanos: 1, BaselineTimeNanos: 1})
	out := NewFormatter().Render(set)
	assert.Contains(t, out, "| short                |")
}

func TestFormatter_Write(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(WithValueWidth(0)).Write(&buf, goldenSet()))
	assert.True(t, strings.HasSuffix(buf.String(), CompletionMarker+"\n"))

	narrow := NewFormatter(WithValueWidth(12)).Render(goldenSet())
	assert.Contains(t, narrow, "|   12,345,678 |")
}
