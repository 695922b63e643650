// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package eval holds the shared vocabulary of the paired-variant harness.

# Overview

A benchmark compares two implementations of the same behavior: a baseline and
a candidate. The runners in the sub-packages measure them and hand back
immutable result values; the suite appends those values to a single ResultSet
which the report package renders once at the end of the run.

# Architecture

	┌──────────────────────────────────────────────────────────────────────┐
	│                               Suite                                  │
	│   owns the ResultSet, runs the plan in a fixed order                 │
	├──────────────────────────────────────────────────────────────────────┤
	│                                                                      │
	│  ┌────────────┐  ┌────────────┐  ┌────────────┐  ┌────────────┐      │
	│  │  scenario  │  │   stress   │  │  failure   │  │   churn    │      │
	│  │  Runner    │  │   Runner   │  │  Counter   │  │   Runner   │      │
	│  └─────┬──────┘  └─────┬──────┘  └─────┬──────┘  └─────┬──────┘      │
	│        │               │               │               │             │
	│        └───────────────┴───────┬───────┴───────────────┘             │
	│                                ▼                                     │
	│                     ┌─────────────────────┐                          │
	│                     │ probe: Timer,       │                          │
	│                     │ MemoryProbe         │                          │
	│                     └─────────────────────┘                          │
	│                                                                      │
	│   ResultSet ──► report.Formatter ──► stdout                          │
	│             └─► telemetry.Sink (Prometheus, OpenTelemetry)           │
	└──────────────────────────────────────────────────────────────────────┘

# Errors

Three kinds of failure are distinguished:

  - ConfigurationError: invalid iteration, duration or worker input. Returned
    before any measurement starts.
  - MeasurementFailure: an unexpected error or panic inside a measured block.
    Aborts that scenario only.
  - ExpectedFailure: the designated failure kind that the failure counter
    tallies. It is recovered locally and never escapes.

# Memory figures

All memory numbers come from runtime.ReadMemStats after a forced collection.
They are best-effort estimates of live allocation, never exact.
*/
package eval
