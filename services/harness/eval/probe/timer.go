// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package probe provides the timing and memory instruments used by the runners.
package probe

import (
	"time"
)

// Measure runs block once and returns its elapsed time.
//
// Description:
//
//	Uses the monotonic reading carried by time.Now, so wall-clock
//	adjustments during the block do not affect the result. The only
//	overhead is two clock reads around the call.
//
// Inputs:
//   - block: The code to time. Must not be nil.
//
// Outputs:
//   - time.Duration: Elapsed time, never negative.
//
// Example:
//
//	elapsed := probe.Measure(func() { sum = pair.RunCandidate(n) })
func Measure(block func()) time.Duration {
	start := time.Now()
	block()
	return time.Since(start)
}

// MeasureNanos is Measure expressed in nanoseconds.
func MeasureNanos(block func()) int64 {
	return Measure(block).Nanoseconds()
}

// Stopwatch tracks elapsed time against the monotonic clock.
//
// The zero value is not started; use Start.
type Stopwatch struct {
	start time.Time
}

// Start returns a running Stopwatch.
func Start() Stopwatch {
	return Stopwatch{start: time.Now()}
}

// Elapsed returns the time since Start.
func (s Stopwatch) Elapsed() time.Duration {
	return time.Since(s.start)
}

// Reached reports whether at least d has elapsed.
func (s Stopwatch) Reached(d time.Duration) bool {
	return time.Since(s.start) >= d
}
