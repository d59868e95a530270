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

package judge

import (
	"encoding/json"
	"fmt"
	"strings"
)

// verdict is the constrained JSON payload the judge must produce.
type verdict struct {
	Score     *float64            `json:"score"`
	Reasoning string              `json:"reasoning"`
	PerTool   []PerToolAssessment `json:"perTool,omitempty"`
}

// parseVerdict extracts and validates the judge's JSON payload from the
// reply text. Judges occasionally wrap the object in markdown fences or
// surrounding prose; everything outside the outermost object is ignored.
func parseVerdict(text string) (*verdict, error) {
	raw := extractJSONObject(text)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in judge reply")
	}

	var v verdict
	dec := json.NewDecoder(strings.NewReader(raw))
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid judge payload: %w", err)
	}

	if v.Score == nil {
		return nil, fmt.Errorf("judge payload missing score")
	}
	if *v.Score < 0 || *v.Score > 1 {
		return nil, fmt.Errorf("judge score %v outside [0,1]", *v.Score)
	}
	if v.Reasoning == "" {
		return nil, fmt.Errorf("judge payload missing reasoning")
	}
	return &v, nil
}

// extractJSONObject returns the outermost {...} span of the text, stripping
// markdown code fences first.
func extractJSONObject(text string) string {
	text = strings.TrimSpace(text)
	if after, ok := strings.CutPrefix(text, "```json"); ok {
		text = after
	} else if after, ok := strings.CutPrefix(text, "```"); ok {
		text = after
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
