// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package probe

import (
	"runtime"
	"time"

	"github.com/AleutianAI/pairbench/services/harness/eval"
)

// DefaultGrace is the settle window after a forced collection.
const DefaultGrace = 500 * time.Millisecond

// MemoryProbe samples the runtime's allocation counters.
//
// Description:
//
//	Sample reads runtime.MemStats; Settle forces a collection and then
//	blocks for the grace window so background sweeping and finalizers can
//	run before the next sample. Reclamation is best-effort, so deltas
//	derived from two samples are approximate, never exact.
//
// Thread Safety: Safe for concurrent use. ReadMemStats stops the world
// briefly; do not sample inside a timed block.
type MemoryProbe struct {
	grace time.Duration
}

// NewMemoryProbe creates a probe with the given settle window.
//
// Inputs:
//   - grace: Time Settle blocks after the collection. Negative values are
//     treated as zero.
//
// Outputs:
//   - *MemoryProbe: The probe. Never nil.
func NewMemoryProbe(grace time.Duration) *MemoryProbe {
	if grace < 0 {
		grace = 0
	}
	return &MemoryProbe{grace: grace}
}

// Grace returns the configured settle window.
func (p *MemoryProbe) Grace() time.Duration {
	return p.grace
}

// Sample reads the current allocation counters.
func (p *MemoryProbe) Sample() eval.MemorySample {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return eval.MemorySample{
		HeapUsedBytes:   ms.HeapAlloc,
		TotalAllocBytes: ms.TotalAlloc,
		Mallocs:         ms.Mallocs,
		NumGC:           ms.NumGC,
		PauseTotal:      time.Duration(ms.PauseTotalNs),
		Timestamp:       time.Now(),
	}
}

// Settle requests a collection and blocks for the grace window.
//
// Not cancellable: the caller is blocked for the full window.
func (p *MemoryProbe) Settle() {
	runtime.GC()
	if p.grace > 0 {
		time.Sleep(p.grace)
	}
}

// SettledSample is Settle followed by Sample.
func (p *MemoryProbe) SettledSample() eval.MemorySample {
	p.Settle()
	return p.Sample()
}
