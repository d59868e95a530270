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
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseToolCalls(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []ToolCall
	}{
		{
			name: "array of objects",
			in: []any{
				map[string]any{"name": "search", "input_parameters": map[string]any{"q": "go"}},
				map[string]any{"name": "fetch", "output": "body"},
			},
			want: []ToolCall{
				{Name: "search", InputParameters: map[string]any{"q": "go"}},
				{Name: "fetch", Output: "body"},
			},
		},
		{
			name: "non-object entries skipped",
			in:   []any{"oops", map[string]any{"name": "search"}, 42},
			want: []ToolCall{{Name: "search"}},
		},
		{name: "nil input", in: nil, want: []ToolCall{}},
		{name: "string input", in: "search", want: []ToolCall{}},
		{name: "object input", in: map[string]any{"name": "search"}, want: []ToolCall{}},
		{name: "empty array", in: []any{}, want: []ToolCall{}},
		{
			name: "typed map slice",
			in:   []map[string]any{{"name": "search"}},
			want: []ToolCall{{Name: "search"}},
		},
		{
			name: "missing name tolerated",
			in:   []any{map[string]any{"input_parameters": map[string]any{"q": "go"}}},
			want: []ToolCall{{InputParameters: map[string]any{"q": "go"}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseToolCalls(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseToolCalls mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNormalizeItem(t *testing.T) {
	item := NormalizeItem("dp-1", KindDataPoint, map[string]any{
		"tool_calls":     []any{map[string]any{"name": "search"}},
		"expected_tools": []any{map[string]any{"name": "search"}, map[string]any{"name": "fetch"}},
		"request":        "user question",
		"response":       "agent answer",
	})

	if item.ID != "dp-1" || item.Kind != KindDataPoint {
		t.Errorf("identity fields wrong: %+v", item)
	}
	if item.Malformed {
		t.Errorf("well-formed metadata flagged malformed: %q", item.MalformedReason)
	}
	if len(item.Actual) != 1 || len(item.Expected) != 2 {
		t.Errorf("Actual/Expected lengths = %d/%d, want 1/2", len(item.Actual), len(item.Expected))
	}
	if item.Request != "user question" || item.Response != "agent answer" {
		t.Errorf("transcript fields wrong: %v / %v", item.Request, item.Response)
	}
}

func TestNormalizeItem_Malformed(t *testing.T) {
	tests := []struct {
		name     string
		metadata map[string]any
	}{
		{name: "nil metadata", metadata: nil},
		{name: "tool_calls not array", metadata: map[string]any{"tool_calls": "search"}},
		{name: "expected_tools not array", metadata: map[string]any{"expected_tools": 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := NormalizeItem("dp-1", KindLog, tt.metadata)
			if !item.Malformed {
				t.Error("item should be flagged malformed")
			}
			if item.MalformedReason == "" {
				t.Error("MalformedReason should name the problem")
			}
			// Normalization always yields empty slices, never nil, so
			// scoring can proceed without nil checks.
			if item.Actual == nil || item.Expected == nil {
				t.Error("tool call slices must be non-nil")
			}
			if len(item.Actual) != 0 || len(item.Expected) != 0 {
				t.Errorf("malformed fields should normalize to empty, got %d/%d",
					len(item.Actual), len(item.Expected))
			}
		})
	}
}

func TestNormalizeItem_AbsentFieldsNotMalformed(t *testing.T) {
	item := NormalizeItem("dp-1", KindDataPoint, map[string]any{"request": "hi"})
	if item.Malformed {
		t.Error("absent tool call fields are empty, not malformed")
	}
	if len(item.Actual) != 0 || len(item.Expected) != 0 {
		t.Error("absent fields should normalize to empty slices")
	}
}
