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

// ItemKind distinguishes the two storage-side record kinds that can be
// evaluated. Their evaluation-relevant fields are equivalent, so both
// normalize into the same Item type.
type ItemKind string

const (
	KindDataPoint ItemKind = "DATA_POINT"
	KindLog       ItemKind = "LOG"
)

// Item is one evaluatable record after ingestion normalization. The scoring
// core only ever sees Items, never raw storage metadata, which keeps the
// matcher total and side-effect-free.
type Item struct {
	ID   string   `json:"id"`
	Kind ItemKind `json:"kind"`

	// Actual is the sequence of tools the agent actually called.
	Actual []ToolCall `json:"actual_tool_calls"`

	// Expected is the ground-truth sequence the item should have produced.
	Expected []ToolCall `json:"expected_tool_calls"`

	// Request and Response carry the raw interaction bodies. They are only
	// consumed by the LLM judge when building its prompt.
	Request  any `json:"request,omitempty"`
	Response any `json:"response,omitempty"`

	// Malformed marks items whose metadata could not be fully interpreted.
	// Their tool call slices have been normalized to empty; scoring proceeds.
	Malformed       bool   `json:"malformed,omitempty"`
	MalformedReason string `json:"malformed_reason,omitempty"`

	// Metadata is the untouched storage-side metadata map.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Metadata keys recognized during normalization.
const (
	metaToolCalls     = "tool_calls"
	metaExpectedTools = "expected_tools"
	metaRequest       = "request"
	metaResponse      = "response"
)

// NormalizeItem builds an Item from raw storage metadata. Absent or invalid
// array fields are treated as empty rather than rejected; the Malformed flag
// records that degradation so reports can surface it.
func NormalizeItem(id string, kind ItemKind, metadata map[string]any) Item {
	item := Item{
		ID:       id,
		Kind:     kind,
		Actual:   []ToolCall{},
		Expected: []ToolCall{},
		Metadata: metadata,
	}
	if metadata == nil {
		item.Malformed = true
		item.MalformedReason = "missing metadata"
		return item
	}

	item.Actual = ParseToolCalls(metadata[metaToolCalls])
	item.Expected = ParseToolCalls(metadata[metaExpectedTools])
	item.Request = metadata[metaRequest]
	item.Response = metadata[metaResponse]

	if v, ok := metadata[metaToolCalls]; ok {
		if _, valid := asSlice(v); !valid {
			item.Malformed = true
			item.MalformedReason = "tool_calls is not an array"
		}
	}
	if v, ok := metadata[metaExpectedTools]; ok {
		if _, valid := asSlice(v); !valid {
			item.Malformed = true
			item.MalformedReason = "expected_tools is not an array"
		}
	}
	return item
}
