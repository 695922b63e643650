// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/AleutianAI/pairbench/pkg/ux"
	"github.com/AleutianAI/pairbench/services/harness/eval"
	"github.com/AleutianAI/pairbench/services/harness/eval/telemetry"
)

// fdWriter is satisfied by *os.File.
type fdWriter interface {
	io.Writer
	Fd() uintptr
}

// newStatus returns status output on stderr when stdout is a terminal, and
// nil otherwise so piped reports carry no decoration anywhere.
func newStatus(stdout, stderr io.Writer, noColor bool) *ux.Output {
	f, ok := stdout.(fdWriter)
	if !ok || !ux.IsTerminal(f.Fd()) {
		return nil
	}
	return ux.NewOutput(stderr, ux.DetectPersonality(f.Fd(), noColor))
}

// statusSink prints one status line per recorded entry.
type statusSink struct {
	telemetry.NoOpSink

	out   *ux.Output
	total int

	mu   sync.Mutex
	seen int
}

func newStatusSink(out *ux.Output, total int) *statusSink {
	return &statusSink{out: out, total: total}
}

func (s *statusSink) RecordEntry(_ context.Context, entry eval.Entry) error {
	if entry == nil {
		return telemetry.ErrNilData
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seen++
	s.out.Step(s.seen, s.total, entry.ScenarioName())
	if entry.Family() != eval.FamilyFailed {
		s.out.Success(fmt.Sprintf("%s (%s)", entry.ScenarioName(), entry.Family()))
	}
	return nil
}

func (s *statusSink) RecordError(_ context.Context, data *telemetry.ErrorData) error {
	if data == nil {
		return telemetry.ErrNilData
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.out.Error(fmt.Sprintf("%s: %s", data.Scenario, data.Message))
	return nil
}
