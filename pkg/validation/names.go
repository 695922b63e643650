// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for names that end up in
// report tables, metric labels and span attributes.
//
// Scenario names are printed inside pipe-delimited report rows, so a name
// containing '|' or a line break would corrupt the report layout.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxScenarioNameLength is the longest accepted scenario name, in runes.
const MaxScenarioNameLength = 64

// workloadPattern matches catalog workload identifiers.
// Allows: lowercase letters, digits, underscores; must start with a letter.
var workloadPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// ValidateScenarioName validates a scenario name for use in the report.
//
// Valid names:
//   - 1-64 runes
//   - Start with a letter or digit
//   - Printable runes only (no tabs, newlines or other control characters)
//   - No '|' (the report column separator)
//
// Example:
//
//	if err := validation.ValidateScenarioName(name); err != nil {
//	    return fmt.Errorf("invalid scenario: %w", err)
//	}
func ValidateScenarioName(name string) error {
	if name == "" {
		return fmt.Errorf("scenario name cannot be empty")
	}
	if n := utf8.RuneCountInString(name); n > MaxScenarioNameLength {
		return fmt.Errorf("scenario name %q is %d runes long (max %d)", name, n, MaxScenarioNameLength)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("scenario name %q is not valid UTF-8", name)
	}

	first, _ := utf8.DecodeRuneInString(name)
	if !unicode.IsLetter(first) && !unicode.IsDigit(first) {
		return fmt.Errorf("scenario name %q must start with a letter or digit", name)
	}
	for _, r := range name {
		if r == '|' {
			return fmt.Errorf("scenario name %q must not contain '|'", name)
		}
		if !unicode.IsPrint(r) {
			return fmt.Errorf("scenario name %q contains a non-printable character %U", name, r)
		}
	}
	return nil
}

// ValidateWorkloadID validates a catalog workload identifier such as
// "simple_arithmetic".
func ValidateWorkloadID(id string) error {
	if id == "" {
		return fmt.Errorf("workload cannot be empty")
	}
	if !workloadPattern.MatchString(id) {
		return fmt.Errorf("invalid workload format: %q (must be lowercase letters, digits or underscores)", id)
	}
	return nil
}

// SanitizeScenarioNames trims and collapses whitespace in each name, drops
// empty entries and validates the rest.
//
// Use this for names typed on the command line:
//
//	names, err := validation.SanitizeScenarioNames(onlyFlag)
//	if err != nil {
//	    return err
//	}
func SanitizeScenarioNames(names []string) ([]string, error) {
	var out, invalid []string
	for _, n := range names {
		normalized := strings.Join(strings.Fields(n), " ")
		if normalized == "" {
			continue
		}
		if err := ValidateScenarioName(normalized); err != nil {
			invalid = append(invalid, n)
			continue
		}
		out = append(out, normalized)
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("invalid scenario names: %q", invalid)
	}
	return out, nil
}
