// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package suite

import (
	"slices"

	"github.com/AleutianAI/pairbench/services/harness/eval"
	"github.com/AleutianAI/pairbench/services/harness/eval/churn"
	"github.com/AleutianAI/pairbench/services/harness/eval/failure"
	"github.com/AleutianAI/pairbench/services/harness/eval/stress"
	"github.com/AleutianAI/pairbench/services/harness/workloads"
)

// Workload identifiers accepted in Scenario.Workload.
const (
	WorkloadSimpleArithmetic  = "simple_arithmetic"
	WorkloadHigherOrder       = "higher_order"
	WorkloadCallsInLoop       = "calls_in_loop"
	WorkloadNestedCalls       = "nested_calls"
	WorkloadComplexCondition  = "complex_condition"
	WorkloadGenericCall       = "generic_call"
	WorkloadClosureAllocation = "closure_allocation"
	WorkloadAtomicIncrement   = "atomic_increment"
	WorkloadNullableLookup    = "nullable_lookup"
	WorkloadOptionalUnwrap    = "optional_unwrap"
	WorkloadStringChurn       = "string_churn"
)

var timingWorkloads = map[string]func() *eval.VariantPair[int, int]{
	WorkloadSimpleArithmetic: workloads.SimpleArithmetic,
	WorkloadHigherOrder:      workloads.HigherOrder,
	WorkloadCallsInLoop:      workloads.CallsInLoop,
	WorkloadNestedCalls:      workloads.NestedCalls,
	WorkloadComplexCondition: workloads.ComplexCondition,
	WorkloadGenericCall:      workloads.GenericCall,
}

// Workloads returns the workload identifiers available for kind, sorted.
func Workloads(kind Kind) []string {
	var ids []string
	switch kind {
	case KindTiming:
		for id := range timingWorkloads {
			ids = append(ids, id)
		}
		slices.Sort(ids)
	case KindAllocation:
		ids = []string{WorkloadClosureAllocation}
	case KindThroughput:
		ids = []string{WorkloadAtomicIncrement}
	case KindFailure:
		ids = []string{WorkloadNullableLookup, WorkloadOptionalUnwrap}
	case KindChurn:
		ids = []string{WorkloadStringChurn}
	}
	return ids
}

func unknownWorkload(sc Scenario) error {
	return eval.NewConfigurationError("workload", sc.Workload, "not available for kind "+string(sc.Kind))
}

func timingPair(sc Scenario) (*eval.VariantPair[int, int], error) {
	build, ok := timingWorkloads[sc.Workload]
	if !ok {
		return nil, unknownWorkload(sc)
	}
	pair := build()
	pair.Name = sc.Name
	return pair, nil
}

func allocationPair(sc Scenario) (eval.AllocationPair, error) {
	if sc.Workload != WorkloadClosureAllocation {
		return eval.AllocationPair{}, unknownWorkload(sc)
	}
	pair, err := workloads.ClosureAllocation(sc.Iterations)
	if err != nil {
		return eval.AllocationPair{}, err
	}
	pair.Name = sc.Name
	return pair, nil
}

func stressOperation(sc Scenario) (stress.Operation, error) {
	if sc.Workload != WorkloadAtomicIncrement {
		return nil, unknownWorkload(sc)
	}
	return stress.Increment, nil
}

// failureVariant builds the variant for sc. The nullable lookup dereferences
// directly in unchecked mode and goes through Optional in checked mode.
func failureVariant(sc Scenario) (failure.Variant, error) {
	src := workloads.NewNullableSource(sc.AbsentProbability, sc.Seed)
	v := failure.Variant{Name: sc.Name, Mode: sc.Mode}

	switch sc.Workload {
	case WorkloadNullableLookup:
		if sc.Mode == eval.ModeChecked {
			v.Call = workloads.CheckedLookup(src)
		} else {
			v.Kind = eval.FailureNilDereference
			v.Call = workloads.UncheckedLookup(src)
		}
	case WorkloadOptionalUnwrap:
		if sc.Mode == eval.ModeChecked {
			v.Call = workloads.CheckedLookup(src)
		} else {
			v.Kind = eval.FailureAbsentValue
			v.Call = workloads.UnwrapLookup(src)
		}
	default:
		return failure.Variant{}, unknownWorkload(sc)
	}
	return v, nil
}

func churnWorkload(sc Scenario) (churn.Workload, error) {
	if sc.Workload != WorkloadStringChurn {
		return nil, unknownWorkload(sc)
	}
	if sc.Batch <= 0 {
		return nil, eval.NewConfigurationError("batch", sc.Batch, "must be positive")
	}
	return workloads.StringChurn(sc.Batch), nil
}
