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

// Package matcher implements the deterministic tool-call comparison used by
// the TOOL_CORRECTNESS evaluation methods.
//
// The mode flags of the evaluation parameters resolve into one of four
// matching policies (see evaluation.MatchPolicy); Score dispatches on that
// policy. The matcher is pure CPU work: it never calls out, never blocks and
// never returns an error for a single item.
package matcher

import (
	"fmt"

	"github.com/agentdash/evalengine/evaluation"
	"github.com/agentdash/evalengine/internal/deepequal"
)

// Result is the outcome of matching one item. Score is in [0, 1] and Reason
// names the fraction of expected tools matched; the dashboard and the
// judge-parity error messages both rely on the reason wording.
type Result struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Score compares the actual tool call sequence against the expected one
// under the given parameters. Nil slices are treated as empty. Strict mode
// does not change the comparison; it only raises the downstream pass/fail
// threshold.
func Score(actual, expected []evaluation.ToolCall, params evaluation.Parameters) Result {
	if len(actual) == 0 && len(expected) == 0 {
		return Result{Score: 1.0, Reason: "Perfect match: no tools expected and none were called."}
	}

	if params.ShouldExactMatch && len(actual) != len(expected) {
		return Result{
			Score: 0.0,
			Reason: fmt.Sprintf("Exact match failed: %d tool calls expected, %d were made.",
				len(expected), len(actual)),
		}
	}

	switch params.Policy() {
	case evaluation.PolicyOrderedExact:
		return scoreOrderedExact(actual, expected, params)
	case evaluation.PolicyOrderedPartial:
		return scoreOrderedPartial(actual, expected, params)
	case evaluation.PolicyExactUnordered:
		return scoreExactUnordered(actual, expected, params)
	default:
		return scoreBasic(actual, expected, params)
	}
}

// scoreOrderedExact walks both sequences pairwise. Lengths are already equal
// here (the exact-length gate runs first); a single mismatched position
// zeroes the whole item.
func scoreOrderedExact(actual, expected []evaluation.ToolCall, params evaluation.Parameters) Result {
	matched := 0
	firstMismatch := -1
	for i := range expected {
		if callsMatch(actual[i], expected[i], params) {
			matched++
		} else if firstMismatch < 0 {
			firstMismatch = i
		}
	}
	if firstMismatch >= 0 {
		return Result{
			Score: 0.0,
			Reason: fmt.Sprintf("Order mismatch: %d/%d expected tools were called correctly; first mismatch at position %d.",
				matched, len(expected), firstMismatch),
		}
	}
	return Result{
		Score:  1.0,
		Reason: fmt.Sprintf("Perfect match: %d/%d expected tools were called correctly in order.", matched, len(expected)),
	}
}

// scoreOrderedPartial compares pairwise by position and scores the fraction
// of positions that match, over the longer of the two sequences.
func scoreOrderedPartial(actual, expected []evaluation.ToolCall, params evaluation.Parameters) Result {
	limit := len(expected)
	if len(actual) < limit {
		limit = len(actual)
	}
	matched := 0
	for i := 0; i < limit; i++ {
		if callsMatch(actual[i], expected[i], params) {
			matched++
		}
	}

	denom := len(actual)
	if len(expected) > denom {
		denom = len(expected)
	}
	if denom < 1 {
		denom = 1
	}

	return Result{
		Score:  float64(matched) / float64(denom),
		Reason: fractionReason(matched, denom),
	}
}

// scoreExactUnordered treats both sequences as multisets of call signatures.
// Lengths are already equal here, so a complete pairing means the multisets
// are equal.
func scoreExactUnordered(actual, expected []evaluation.ToolCall, params evaluation.Parameters) Result {
	used := make([]bool, len(actual))
	matched := 0
	for _, exp := range expected {
		for i, act := range actual {
			if !used[i] && callsMatch(act, exp, params) {
				used[i] = true
				matched++
				break
			}
		}
	}
	if matched == len(expected) {
		return Result{
			Score:  1.0,
			Reason: fmt.Sprintf("Perfect match: %d/%d expected tools were called correctly.", matched, len(expected)),
		}
	}
	return Result{Score: 0.0, Reason: fractionReason(matched, len(expected))}
}

// scoreBasic checks, for each expected tool, whether any actual call matches
// it, and averages over the expected sequence. Unexpected calls with nothing
// expected score zero.
func scoreBasic(actual, expected []evaluation.ToolCall, params evaluation.Parameters) Result {
	if len(expected) == 0 {
		return Result{
			Score:  0.0,
			Reason: fmt.Sprintf("Unexpected tool calls: no tools were expected but %d were made.", len(actual)),
		}
	}

	matched := 0
	for _, exp := range expected {
		for _, act := range actual {
			if callsMatch(act, exp, params) {
				matched++
				break
			}
		}
	}

	return Result{
		Score:  float64(matched) / float64(len(expected)),
		Reason: fractionReason(matched, len(expected)),
	}
}

// callsMatch reports whether one actual call satisfies one expected call:
// names must be equal, plus deep equality on every field the parameters
// flag for comparison.
func callsMatch(actual, expected evaluation.ToolCall, params evaluation.Parameters) bool {
	if actual.Name != expected.Name {
		return false
	}
	if params.ComparesField(evaluation.FieldInputParameters) &&
		!deepequal.Equal(actual.InputParameters, expected.InputParameters) {
		return false
	}
	if params.ComparesField(evaluation.FieldOutput) &&
		!deepequal.Equal(actual.Output, expected.Output) {
		return false
	}
	return true
}

func fractionReason(matched, total int) string {
	switch {
	case total > 0 && matched == total:
		return fmt.Sprintf("Perfect match: %d/%d expected tools were called correctly.", matched, total)
	case matched == 0:
		return fmt.Sprintf("No match: 0/%d expected tools were called correctly.", total)
	default:
		return fmt.Sprintf("Partial match: %d/%d expected tools were called correctly.", matched, total)
	}
}
