// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package eval

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestConfigurationError(t *testing.T) {
	err := NewConfigurationError("iterations", 0, "must be positive")

	if !errors.Is(err, ErrConfiguration) {
		t.Error("ConfigurationError should match ErrConfiguration")
	}
	if errors.Is(err, ErrMeasurement) {
		t.Error("ConfigurationError should not match ErrMeasurement")
	}
	if got := err.Error(); got != "invalid iterations 0: must be positive" {
		t.Errorf("Error() = %q", got)
	}

	wrapped := fmt.Errorf("running scenario: %w", err)
	var ce *ConfigurationError
	if !errors.As(wrapped, &ce) {
		t.Fatal("errors.As should find ConfigurationError through wrapping")
	}
	if ce.Field != "iterations" {
		t.Errorf("Field = %q, want iterations", ce.Field)
	}
}

func TestMeasurementFailure(t *testing.T) {
	cause := errors.New("boom")
	err := NewMeasurementFailure("stress", "worker", cause)

	if !errors.Is(err, ErrMeasurement) {
		t.Error("MeasurementFailure should match ErrMeasurement")
	}
	if !errors.Is(err, cause) {
		t.Error("MeasurementFailure should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), `"stress"`) || !strings.Contains(err.Error(), "worker") {
		t.Errorf("Error() = %q, want scenario and phase", err.Error())
	}
}

func TestFailureKind_String(t *testing.T) {
	tests := []struct {
		kind FailureKind
		want string
	}{
		{FailureNone, "none"},
		{FailureNilDereference, "nil_dereference"},
		{FailureIndexOutOfRange, "index_out_of_range"},
		{FailureAbsentValue, "absent_value"},
		{FailureKind(42), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.kind.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			if tt.want == "unknown" {
				return
			}
			parsed, ok := ParseFailureKind(tt.want)
			if !ok || parsed != tt.kind {
				t.Errorf("ParseFailureKind(%q) = %v, %v", tt.want, parsed, ok)
			}
		})
	}
}

func TestParseMode(t *testing.T) {
	if m, ok := ParseMode("Checked"); !ok || m != ModeChecked {
		t.Errorf("ParseMode(Checked) = %v, %v", m, ok)
	}
	if m, ok := ParseMode("unchecked"); !ok || m != ModeUnchecked {
		t.Errorf("ParseMode(unchecked) = %v, %v", m, ok)
	}
	if _, ok := ParseMode("sometimes"); ok {
		t.Error("ParseMode should reject unknown modes")
	}
}

func recoverFrom(fn func()) (r any) {
	defer func() { r = recover() }()
	fn()
	return nil
}

func TestClassifyPanic(t *testing.T) {
	t.Run("nil dereference", func(t *testing.T) {
		var p *struct{ v int }
		r := recoverFrom(func() { _ = p.v })
		kind, ok := ClassifyPanic(r)
		if !ok || kind != FailureNilDereference {
			t.Errorf("ClassifyPanic = %v, %v; want nil_dereference", kind, ok)
		}
	})

	t.Run("index out of range", func(t *testing.T) {
		s := []int{1}
		i := 3
		r := recoverFrom(func() { _ = s[i] })
		kind, ok := ClassifyPanic(r)
		if !ok || kind != FailureIndexOutOfRange {
			t.Errorf("ClassifyPanic = %v, %v; want index_out_of_range", kind, ok)
		}
	})

	t.Run("expected failure", func(t *testing.T) {
		r := recoverFrom(func() { None[int]().MustGet() })
		kind, ok := ClassifyPanic(r)
		if !ok || kind != FailureAbsentValue {
			t.Errorf("ClassifyPanic = %v, %v; want absent_value", kind, ok)
		}
	})

	t.Run("wrapped expected failure error", func(t *testing.T) {
		err := fmt.Errorf("lookup: %w", &ExpectedFailure{Kind: FailureAbsentValue})
		kind, ok := ClassifyPanic(err)
		if !ok || kind != FailureAbsentValue {
			t.Errorf("ClassifyPanic = %v, %v; want absent_value", kind, ok)
		}
	})

	t.Run("unrelated panic", func(t *testing.T) {
		if _, ok := ClassifyPanic("something else"); ok {
			t.Error("string panic should not classify")
		}
		if _, ok := ClassifyPanic(nil); ok {
			t.Error("nil should not classify")
		}
	})
}
