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

// ToolCall is the canonical representation of one tool invocation attributed
// to an agent during a logged interaction. Values are immutable and compared
// by value.
type ToolCall struct {
	Name            string         `json:"name"`
	InputParameters map[string]any `json:"input_parameters,omitempty"`
	Output          any            `json:"output,omitempty"`
}

// ParseToolCalls converts a loosely-typed value from storage metadata into a
// tool call slice. Anything that is not an array of objects degrades to an
// empty slice; individual entries that are not objects are skipped. Scoring
// must never fail because a record carries misshapen metadata.
func ParseToolCalls(v any) []ToolCall {
	raw, ok := asSlice(v)
	if !ok {
		return []ToolCall{}
	}

	calls := make([]ToolCall, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}

		call := ToolCall{}
		if name, ok := m["name"].(string); ok {
			call.Name = name
		}
		if params, ok := m["input_parameters"].(map[string]any); ok {
			call.InputParameters = params
		}
		if out, ok := m["output"]; ok {
			call.Output = out
		}
		calls = append(calls, call)
	}
	return calls
}

// asSlice accepts the shapes a JSON-ish storage layer may hand us for an
// array field.
func asSlice(v any) ([]any, bool) {
	switch s := v.(type) {
	case []any:
		return s, true
	case []map[string]any:
		out := make([]any, len(s))
		for i, m := range s {
			out[i] = m
		}
		return out, true
	case []ToolCall:
		out := make([]any, len(s))
		for i, c := range s {
			m := map[string]any{"name": c.Name}
			if c.InputParameters != nil {
				m["input_parameters"] = c.InputParameters
			}
			if c.Output != nil {
				m["output"] = c.Output
			}
			out[i] = m
		}
		return out, true
	default:
		return nil, false
	}
}
