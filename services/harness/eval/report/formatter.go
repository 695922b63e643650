// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report renders a result set as fixed-width text tables.
package report

import (
	"io"
	"strings"
	"unicode/utf8"

	"github.com/AleutianAI/pairbench/services/harness/eval"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// CompletionMarker is the last line of every report.
const CompletionMarker = "Benchmark suite completed"

const (
	// DefaultNameWidth is the minimum width of the scenario column.
	DefaultNameWidth = 20

	// DefaultValueWidth is the width of every value column.
	DefaultValueWidth = 20
)

// Option configures a Formatter.
type Option func(*Formatter)

// WithLanguage selects the locale used for grouping separators.
func WithLanguage(tag language.Tag) Option {
	return func(f *Formatter) {
		f.lang = tag
	}
}

// WithValueWidth sets the value column width. Non-positive values are ignored.
func WithValueWidth(w int) Option {
	return func(f *Formatter) {
		if w > 0 {
			f.valueWidth = w
		}
	}
}

// Formatter renders result sets.
//
// Description:
//
//	Consecutive entries of the same family share one table; a new table
//	starts whenever the family changes, so invocation order is preserved.
//	Scenario names are left-aligned in a column as wide as the longest
//	name in the set (at least DefaultNameWidth). Values are right-aligned
//	with grouping separators; fractional quantities get two decimals and
//	counts none.
//
// Thread Safety: Safe for concurrent use. Render allocates its own printer.
type Formatter struct {
	lang       language.Tag
	nameWidth  int
	valueWidth int
}

// NewFormatter creates a formatter using English grouping.
func NewFormatter(opts ...Option) *Formatter {
	f := &Formatter{
		lang:       language.English,
		nameWidth:  DefaultNameWidth,
		valueWidth: DefaultValueWidth,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Render returns the report for set. It never mutates set, and rendering
// the same set twice yields identical text.
//
// Inputs:
//   - set: The results. A nil set renders only the completion marker.
//
// Outputs:
//   - string: The report, newline-terminated.
func (f *Formatter) Render(set *eval.ResultSet) string {
	var b strings.Builder
	f.render(&b, set)
	return b.String()
}

// Write renders set to w.
func (f *Formatter) Write(w io.Writer, set *eval.ResultSet) error {
	_, err := io.WriteString(w, f.Render(set))
	return err
}

func (f *Formatter) render(b *strings.Builder, set *eval.ResultSet) {
	var entries []eval.Entry
	if set != nil {
		entries = set.Entries()
	}

	nameWidth := f.nameWidth
	for _, e := range entries {
		if n := utf8.RuneCountInString(e.ScenarioName()); n > nameWidth {
			nameWidth = n
		}
	}

	t := &table{
		b:          b,
		printer:    message.NewPrinter(f.lang),
		nameWidth:  nameWidth,
		valueWidth: f.valueWidth,
	}

	var current eval.Family
	for i, e := range entries {
		if i == 0 || e.Family() != current {
			if i > 0 {
				b.WriteByte('\n')
			}
			current = e.Family()
			t.header(layoutFor(current))
		}
		t.row(e)
	}
	if len(entries) > 0 {
		b.WriteByte('\n')
	}
	b.WriteString(CompletionMarker)
	b.WriteByte('\n')
}

// layout describes one family's table.
type layout struct {
	title   string
	columns []string

	// freeLast leaves the last column unpadded and left-aligned.
	freeLast bool
}

var layouts = map[eval.Family]layout{
	eval.FamilyTiming: {
		title:   "Timing (candidate vs baseline)",
		columns: []string{"Candidate (ns)", "Baseline (ns)", "Improvement (%)", "Candidate/call (ns)", "Baseline/call (ns)"},
	},
	eval.FamilyAllocation: {
		title:   "Allocation",
		columns: []string{"Candidate heap (MB)", "Baseline heap (MB)", "Candidate (MB/s)", "Baseline (MB/s)"},
	},
	eval.FamilyThroughput: {
		title:   "Concurrent throughput",
		columns: []string{"Operations", "Elapsed (ms)", "Ops/sec", "Cost/op (ns)"},
	},
	eval.FamilyFailure: {
		title:   "Failure rate",
		columns: []string{"Mode", "Calls", "Failures", "Failure rate (%)", "Failures/min"},
	},
	eval.FamilyChurn: {
		title:   "Allocation churn",
		columns: []string{"Objects", "Allocated (MB)", "GC cycles", "GC pause (ms)"},
	},
	eval.FamilyFailed: {
		title:    "Failed scenarios",
		columns:  []string{"Family", "Error"},
		freeLast: true,
	},
}

func layoutFor(f eval.Family) layout {
	if l, ok := layouts[f]; ok {
		return l
	}
	return layout{title: string(f)}
}

type table struct {
	b          *strings.Builder
	printer    *message.Printer
	nameWidth  int
	valueWidth int
	layout     layout
}

func (t *table) header(l layout) {
	t.layout = l
	t.b.WriteString(l.title)
	t.b.WriteByte('\n')
	t.line("Scenario", l.columns)

	t.b.WriteString("|")
	t.b.WriteString(strings.Repeat("-", t.nameWidth+2))
	for i := range l.columns {
		if l.freeLast && i == len(l.columns)-1 {
			t.b.WriteString("|-------")
			break
		}
		t.b.WriteString("|")
		t.b.WriteString(strings.Repeat("-", t.valueWidth+2))
	}
	if !l.freeLast {
		t.b.WriteString("|")
	}
	t.b.WriteByte('\n')
}

func (t *table) row(e eval.Entry) {
	t.line(e.ScenarioName(), t.values(e))
}

func (t *table) line(name string, values []string) {
	t.b.WriteString("| ")
	t.b.WriteString(padRight(name, t.nameWidth))
	t.b.WriteString(" |")
	for i, v := range values {
		if t.layout.freeLast && i == len(values)-1 {
			t.b.WriteString(" ")
			t.b.WriteString(v)
			t.b.WriteByte('\n')
			return
		}
		t.b.WriteString(" ")
		t.b.WriteString(padLeft(v, t.valueWidth))
		t.b.WriteString(" |")
	}
	t.b.WriteByte('\n')
}

func (t *table) values(e eval.Entry) []string {
	switch r := e.(type) {
	case eval.TimingResult:
		return []string{
			t.integer(r.CandidateTimeNanos),
			t.integer(r.BaselineTimeNanos),
			t.decimal(r.RelativeImprovementPercent),
			t.decimal(r.CandidateNanosPerCall()),
			t.decimal(r.BaselineNanosPerCall()),
		}
	case eval.AllocationResult:
		return []string{
			t.decimal(eval.BytesToMB(r.Candidate.HeapBytes)),
			t.decimal(eval.BytesToMB(r.Baseline.HeapBytes)),
			t.decimal(r.Candidate.RateMBPerSecond()),
			t.decimal(r.Baseline.RateMBPerSecond()),
		}
	case eval.ThroughputResult:
		return []string{
			t.integer(r.TotalOperations),
			t.decimal(r.ElapsedMillis),
			t.decimal(r.OperationsPerSecond),
			t.decimal(r.PerOperationCostMillis * 1e6),
		}
	case eval.FailureStats:
		return []string{
			r.Mode.String(),
			t.integer(r.TotalCalls),
			t.integer(r.FailureCount),
			t.decimal(r.FailureRatePercent),
			t.decimal(r.FailuresPerMinute),
		}
	case eval.ChurnResult:
		return []string{
			t.integer(r.ObjectsCreated),
			t.decimal(eval.BytesToMB(int64(r.Memory.AllocatedBytes))),
			t.integer(int64(r.Memory.GCCycles)),
			t.decimal(float64(r.Memory.GCPause.Microseconds()) / 1000),
		}
	case eval.FailedResult:
		msg := "unknown error"
		if r.Err != nil {
			msg = r.Err.Error()
		}
		return []string{string(r.Intended), msg}
	}
	return nil
}

func (t *table) integer(v int64) string {
	return t.printer.Sprintf("%d", v)
}

func (t *table) decimal(v float64) string {
	return t.printer.Sprintf("%.2f", v)
}

func padRight(s string, w int) string {
	if n := utf8.RuneCountInString(s); n < w {
		return s + strings.Repeat(" ", w-n)
	}
	return s
}

func padLeft(s string, w int) string {
	if n := utf8.RuneCountInString(s); n < w {
		return strings.Repeat(" ", w-n) + s
	}
	return s
}
