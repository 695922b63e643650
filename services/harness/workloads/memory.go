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
	"strconv"

	"github.com/AleutianAI/pairbench/services/harness/eval"
)

// NameClosureAllocation is the report name of the closure allocation pair.
const NameClosureAllocation = "Closure Allocation"

// NameStringChurn is the report name of the string churn workload.
const NameStringChurn = "String Churn"

func constantOne() int { return 1 }

// ClosureAllocation builds n function values two ways.
//
// The candidate stores a reference to a top-level function, which needs no
// per-element allocation; the baseline stores a closure capturing the index,
// which allocates one closure object per element.
func ClosureAllocation(n int) (eval.AllocationPair, error) {
	if n <= 0 {
		return eval.AllocationPair{}, eval.NewConfigurationError("iterations", n, "must be positive")
	}
	return eval.AllocationPair{
		Name: NameClosureAllocation,
		Candidate: func() any {
			fns := make([]func() int, n)
			for i := range fns {
				fns[i] = constantOne
			}
			return fns
		},
		Baseline: func() any {
			fns := make([]func() int, n)
			for i := range fns {
				fns[i] = func() int { return i }
			}
			return fns
		},
	}, nil
}

var churnSink string

// StringChurn returns a workload that creates batch short-lived strings per
// call and reports how many it created.
//
// Not safe for concurrent use.
func StringChurn(batch int) func() int64 {
	if batch <= 0 {
		batch = 1
	}
	round := 0
	return func() int64 {
		prefix := "Object-" + strconv.Itoa(round) + "-"
		for j := 0; j < batch; j++ {
			churnSink = prefix + strconv.Itoa(j)
		}
		round++
		return int64(batch)
	}
}
