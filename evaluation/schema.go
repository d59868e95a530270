// Copyright 2025 The AgentDash Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package evaluation

import (
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/mitchellh/mapstructure"
)

// ParameterSchema returns the JSON schema describing the recognized
// evaluation parameters. It is the single user-facing validation boundary:
// requests with non-boolean flags, a non-numeric threshold or a non-array
// evaluation_params are rejected here, before any run record is created.
func ParameterSchema() *jsonschema.Schema {
	selectors := make([]any, 0, len(AllFieldSelectors()))
	for _, f := range AllFieldSelectors() {
		selectors = append(selectors, string(f))
	}

	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"threshold": {
				Type:        "number",
				Description: "Pass/fail cutoff applied to scores after scoring.",
				Minimum:     floatPtr(0),
				Maximum:     floatPtr(1),
			},
			"strict_mode":              {Type: "boolean"},
			"should_consider_ordering": {Type: "boolean"},
			"should_exact_match":       {Type: "boolean"},
			"evaluation_params": {
				Type:  "array",
				Items: &jsonschema.Schema{Type: "string", Enum: selectors},
			},
			"include_reason": {Type: "boolean"},
			"verbose_mode":   {Type: "boolean"},
			"batch_size":     {Type: "integer", Minimum: floatPtr(1)},
			"async_mode":     {Type: "boolean"},
			"temperature":    {Type: "number", Minimum: floatPtr(0)},
			"max_tokens":     {Type: "integer", Minimum: floatPtr(1)},
			"model":          {Type: "string"},
		},
	}
}

var resolveParameterSchema = sync.OnceValues(func() (*jsonschema.Resolved, error) {
	return ParameterSchema().Resolve(nil)
})

// ValidateParameters checks a loosely-typed parameter map against
// ParameterSchema. Violations are reported as ErrInvalidInput.
func ValidateParameters(raw map[string]any) error {
	resolved, err := resolveParameterSchema()
	if err != nil {
		return fmt.Errorf("failed to resolve parameter schema: %w", err)
	}
	if err := resolved.Validate(raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// DecodeParameters validates and decodes a loosely-typed parameter map into
// Parameters, starting from DefaultParameters for anything left unset.
func DecodeParameters(raw map[string]any) (Parameters, error) {
	params := DefaultParameters()
	if raw == nil {
		return params, nil
	}
	if err := ValidateParameters(raw); err != nil {
		return params, err
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  &params,
	})
	if err != nil {
		return params, fmt.Errorf("failed to build parameter decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return params, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return params, nil
}

func floatPtr(f float64) *float64 {
	return &f
}
