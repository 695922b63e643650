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
	"errors"
	"testing"

	"github.com/AleutianAI/pairbench/services/harness/eval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimingPairs_VariantsAgree(t *testing.T) {
	pairs := []*eval.VariantPair[int, int]{
		SimpleArithmetic(),
		HigherOrder(),
		CallsInLoop(),
		NestedCalls(),
		ComplexCondition(),
		GenericCall(),
	}

	seen := make(map[string]bool)
	for _, p := range pairs {
		t.Run(p.Name, func(t *testing.T) {
			require.True(t, p.Valid())
			assert.False(t, seen[p.Name], "duplicate name")
			seen[p.Name] = true

			for _, n := range []int{0, 1, 17, 1000} {
				assert.Equal(t, p.RunCandidate(n), p.RunBaseline(n), "n=%d", n)
			}
		})
	}
}

func TestComplexCondition_Branches(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{6, 12},
		{10, 30},
		{4, 5},
		{9, 3},
		{25, 5},
		{7, 6},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, conditionInline(tt.in), "in=%d", tt.in)
		assert.Equal(t, tt.want, conditionCall(tt.in), "in=%d", tt.in)
	}
}

func TestClosureAllocation(t *testing.T) {
	pair, err := ClosureAllocation(64)
	require.NoError(t, err)
	assert.Equal(t, NameClosureAllocation, pair.Name)

	candidate, ok := pair.Candidate().([]func() int)
	require.True(t, ok)
	baseline, ok := pair.Baseline().([]func() int)
	require.True(t, ok)
	require.Len(t, candidate, 64)
	require.Len(t, baseline, 64)
	assert.Equal(t, 1, candidate[10]())
	assert.Equal(t, 10, baseline[10]())

	_, err = ClosureAllocation(0)
	assert.True(t, errors.Is(err, eval.ErrConfiguration))
}

func TestStringChurn(t *testing.T) {
	work := StringChurn(250)
	assert.Equal(t, int64(250), work())
	assert.Equal(t, int64(250), work())

	assert.Equal(t, int64(1), StringChurn(0)())
}

func TestNullableSource(t *testing.T) {
	t.Run("deterministic for a seed", func(t *testing.T) {
		a := NewNullableSource(0.3, 99)
		b := NewNullableSource(0.3, 99)
		for i := 0; i < 1000; i++ {
			pa, pb := a.Next(), b.Next()
			require.Equal(t, pa == nil, pb == nil, "draw %d", i)
			if pa != nil {
				require.Equal(t, pa.Value, pb.Value)
			}
		}
	})

	t.Run("probability is clamped", func(t *testing.T) {
		assert.Equal(t, 0.0, NewNullableSource(-1, 1).AbsentProbability())
		assert.Equal(t, 1.0, NewNullableSource(2, 1).AbsentProbability())

		never := NewNullableSource(0, 1)
		always := NewNullableSource(1, 1)
		for i := 0; i < 100; i++ {
			assert.NotNil(t, never.Next())
			assert.Nil(t, always.Next())
			assert.False(t, NewNullableSource(1, uint64(i)).NextOptional().IsPresent())
		}
	})

	t.Run("lookups", func(t *testing.T) {
		assert.NoError(t, CheckedLookup(NewNullableSource(1, 1))())
		assert.NoError(t, UncheckedLookup(NewNullableSource(0, 1))())

		assert.Panics(t, func() { _ = UncheckedLookup(NewNullableSource(1, 1))() })

		defer func() {
			kind, ok := eval.ClassifyPanic(recover())
			assert.True(t, ok)
			assert.Equal(t, eval.FailureAbsentValue, kind)
		}()
		_ = UnwrapLookup(NewNullableSource(1, 1))()
	})
}
