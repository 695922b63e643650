// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package workloads holds the interchangeable bodies plugged into the harness.
//
// The timing pairs compare a function the compiler can inline (candidate)
// with the same body marked //go:noinline (baseline). Both variants of a
// pair compute identical results.
package workloads

import (
	"cmp"

	"github.com/AleutianAI/pairbench/services/harness/eval"
)

// Scenario names as they appear in the report.
const (
	NameSimpleArithmetic = "Simple Arithmetic"
	NameHigherOrder      = "Higher-Order Func"
	NameCallsInLoop      = "Calls Within Loops"
	NameNestedCalls      = "Nested Calls"
	NameComplexCondition = "Complex Condition"
	NameGenericCall      = "Generic Function"
)

// innerLoopCalls is the number of calls each CallsInLoop iteration makes.
const innerLoopCalls = 10

// SimpleArithmetic adds two integers.
func SimpleArithmetic() *eval.VariantPair[int, int] {
	return eval.NewIntPair(NameSimpleArithmetic,
		func(i int) int { return addInline(i, i+1) },
		func(i int) int { return addCall(i, i+1) },
	)
}

// HigherOrder applies a function argument.
func HigherOrder() *eval.VariantPair[int, int] {
	return eval.NewIntPair(NameHigherOrder,
		func(i int) int { return applyInline(i, double) },
		func(i int) int { return applyCall(i, double) },
	)
}

// CallsInLoop makes innerLoopCalls calls per iteration.
func CallsInLoop() *eval.VariantPair[int, int] {
	return eval.NewIntPair(NameCallsInLoop,
		func(i int) int {
			acc := 0
			for j := 0; j < innerLoopCalls; j++ {
				acc += addInline(i, j)
			}
			return acc
		},
		func(i int) int {
			acc := 0
			for j := 0; j < innerLoopCalls; j++ {
				acc += addCall(i, j)
			}
			return acc
		},
	)
}

// NestedCalls chains three calls.
func NestedCalls() *eval.VariantPair[int, int] {
	return eval.NewIntPair(NameNestedCalls, outerInline, outerCall)
}

// ComplexCondition branches on divisibility.
func ComplexCondition() *eval.VariantPair[int, int] {
	return eval.NewIntPair(NameComplexCondition, conditionInline, conditionCall)
}

// GenericCall calls a type-parameterized function.
func GenericCall() *eval.VariantPair[int, int] {
	return eval.NewIntPair(NameGenericCall,
		func(i int) int { return maxInline(i, i^0x55) },
		func(i int) int { return maxCall(i, i^0x55) },
	)
}

func double(x int) int { return x * 2 }

func addInline(a, b int) int { return a + b }

//go:noinline
func addCall(a, b int) int { return a + b }

func applyInline(v int, f func(int) int) int { return f(v) }

//go:noinline
func applyCall(v int, f func(int) int) int { return f(v) }

func innerInline(x int) int  { return x + 3 }
func middleInline(x int) int { return innerInline(x) * 2 }
func outerInline(x int) int  { return middleInline(x) + 1 }

//go:noinline
func innerCall(x int) int { return x + 3 }

//go:noinline
func middleCall(x int) int { return innerCall(x) * 2 }

//go:noinline
func outerCall(x int) int { return middleCall(x) + 1 }

func conditionInline(x int) int {
	if x%2 == 0 {
		if x%3 == 0 {
			return x * 2
		}
		if x%5 == 0 {
			return x * 3
		}
		return x + 1
	}
	if x%3 == 0 {
		return x / 3
	}
	if x%5 == 0 {
		return x / 5
	}
	return x - 1
}

//go:noinline
func conditionCall(x int) int {
	if x%2 == 0 {
		if x%3 == 0 {
			return x * 2
		}
		if x%5 == 0 {
			return x * 3
		}
		return x + 1
	}
	if x%3 == 0 {
		return x / 3
	}
	if x%5 == 0 {
		return x / 5
	}
	return x - 1
}

func maxInline[T cmp.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}

//go:noinline
func maxCall[T cmp.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}
