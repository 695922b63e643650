// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/AleutianAI/pairbench/pkg/validation"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrInvalidPlan is returned when a plan fails validation.
var ErrInvalidPlan = errors.New("invalid plan")

var planValidate *validator.Validate

func init() {
	planValidate = validator.New()
	_ = planValidate.RegisterValidation("duration", validateDuration)
	_ = planValidate.RegisterValidation("scenario_name", func(fl validator.FieldLevel) bool {
		return validation.ValidateScenarioName(fl.Field().String()) == nil
	})
	_ = planValidate.RegisterValidation("workload_id", func(fl validator.FieldLevel) bool {
		return validation.ValidateWorkloadID(fl.Field().String()) == nil
	})
}

// validateDuration accepts strings time.ParseDuration understands.
func validateDuration(fl validator.FieldLevel) bool {
	_, err := time.ParseDuration(fl.Field().String())
	return err == nil
}

// Validate checks the structural rules: names present, unique and safe to
// print, known kinds and modes, parseable durations, probabilities within
// [0, 1].
func (p Plan) Validate() error {
	if err := planValidate.Struct(p); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]error, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Errorf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("%w: %w", ErrInvalidPlan, errors.Join(msgs...))
		}
		return fmt.Errorf("%w: %w", ErrInvalidPlan, err)
	}
	return nil
}

// Load reads a plan from path.
//
// Description:
//
//	An empty path returns DefaultPlan without touching the filesystem.
//	Unknown YAML keys are rejected.
//
// Inputs:
//   - path: YAML file, or "".
//
// Outputs:
//   - Plan: The validated plan.
//   - error: Read, parse or ErrInvalidPlan errors.
func Load(path string) (Plan, error) {
	if path == "" {
		return DefaultPlan(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("failed to read the plan file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML plan.
func Parse(data []byte) (Plan, error) {
	var p Plan
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return Plan{}, fmt.Errorf("%w: empty document", ErrInvalidPlan)
		}
		return Plan{}, fmt.Errorf("failed to parse the plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}
	return p, nil
}

// Marshal encodes p as YAML.
func Marshal(p Plan) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("failed to marshal the plan: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
