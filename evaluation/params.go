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

// FieldSelector names a ToolCall field that participates in equality during
// deterministic matching. Tool names always participate.
type FieldSelector string

const (
	FieldInputParameters FieldSelector = "INPUT_PARAMETERS"
	FieldOutput          FieldSelector = "OUTPUT"
)

// AllFieldSelectors returns every recognized field selector.
func AllFieldSelectors() []FieldSelector {
	return []FieldSelector{FieldInputParameters, FieldOutput}
}

// Parameters is the recognized configuration surface of an evaluation run.
//
// Threshold, StrictMode, ShouldConsiderOrdering, ShouldExactMatch and
// EvaluationParams drive the deterministic matcher and pass/fail counting.
// The remaining knobs only affect LLM-judged methods and are inert for the
// matcher.
type Parameters struct {
	// Threshold is the pass/fail cutoff applied to scores after scoring,
	// never during it. StrictMode forces the effective value to 1.0.
	Threshold  float64 `json:"threshold"`
	StrictMode bool    `json:"strict_mode"`

	// ShouldConsiderOrdering switches from set comparison to positional
	// comparison of the two tool call sequences.
	ShouldConsiderOrdering bool `json:"should_consider_ordering"`

	// ShouldExactMatch requires the sequence lengths to match exactly;
	// extra or missing calls fail the item.
	ShouldExactMatch bool `json:"should_exact_match"`

	// EvaluationParams selects which ToolCall fields participate in
	// equality beyond the tool name.
	EvaluationParams []FieldSelector `json:"evaluation_params"`

	// Judge-only knobs.
	IncludeReason bool    `json:"include_reason"`
	VerboseMode   bool    `json:"verbose_mode"`
	BatchSize     int     `json:"batch_size"`
	AsyncMode     bool    `json:"async_mode"`
	Temperature   float64 `json:"temperature"`
	MaxTokens     int     `json:"max_tokens"`
	Model         string  `json:"model"`
}

// DefaultParameters returns the parameter values used when a request leaves
// them unset.
func DefaultParameters() Parameters {
	return Parameters{
		Threshold: 0.5,
		BatchSize: 10,
		MaxTokens: 1024,
	}
}

// EffectiveThreshold is the threshold actually applied when counting passed
// and failed items. Strict mode forces 1.0 regardless of the configured
// value; it never changes the comparison algorithm itself.
func (p Parameters) EffectiveThreshold() float64 {
	if p.StrictMode {
		return 1.0
	}
	return p.Threshold
}

// ComparesField reports whether the given ToolCall field participates in
// equality under these parameters.
func (p Parameters) ComparesField(f FieldSelector) bool {
	for _, sel := range p.EvaluationParams {
		if sel == f {
			return true
		}
	}
	return false
}

// MatchPolicy enumerates the cross-product of the matcher mode flags. The
// flags are resolved into a single policy at entry so matching is one
// dispatch instead of nested flag conditionals.
type MatchPolicy int

const (
	// PolicyBasic averages, over the expected sequence, whether each
	// expected tool was called at all.
	PolicyBasic MatchPolicy = iota

	// PolicyExactUnordered requires the two sequences to be equal as
	// multisets of call signatures.
	PolicyExactUnordered

	// PolicyOrderedPartial compares pairwise by position and scores the
	// fraction of matching positions.
	PolicyOrderedPartial

	// PolicyOrderedExact compares pairwise by position; any mismatch or
	// length difference zeroes the item.
	PolicyOrderedExact
)

// String returns a human-readable policy name.
func (mp MatchPolicy) String() string {
	switch mp {
	case PolicyBasic:
		return "basic"
	case PolicyExactUnordered:
		return "exact_unordered"
	case PolicyOrderedPartial:
		return "ordered_partial"
	case PolicyOrderedExact:
		return "ordered_exact"
	default:
		return "unknown"
	}
}

// Policy resolves the mode flags into the matching policy.
func (p Parameters) Policy() MatchPolicy {
	switch {
	case p.ShouldConsiderOrdering && p.ShouldExactMatch:
		return PolicyOrderedExact
	case p.ShouldConsiderOrdering:
		return PolicyOrderedPartial
	case p.ShouldExactMatch:
		return PolicyExactUnordered
	default:
		return PolicyBasic
	}
}
