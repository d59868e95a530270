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

	"github.com/agentdash/evalengine/evaluation"
)

// systemPrompt identifies the judge role. It is sent as the system message
// of every judge request.
const systemPrompt = `You are an expert evaluator for agentic systems. You assess whether an AI agent invoked its tools with correct arguments, given the interaction transcript and the declared tool calls. You respond with JSON only, never with prose outside the JSON object.`

// buildPrompt constructs the user message for one item: the interaction
// bodies, the declared tool calls and ground truth, plus the response
// contract the parser expects.
func buildPrompt(item evaluation.Item, params evaluation.Parameters) string {
	var b strings.Builder

	b.WriteString("Evaluate the following agent interaction.\n\n")

	b.WriteString("**Request:**\n")
	b.WriteString(asPromptJSON(item.Request))
	b.WriteString("\n\n**Response:**\n")
	b.WriteString(asPromptJSON(item.Response))

	b.WriteString("\n\n**Tools actually called:**\n")
	b.WriteString(asPromptJSON(item.Actual))
	b.WriteString("\n\n**Tools expected (ground truth):**\n")
	b.WriteString(asPromptJSON(item.Expected))

	b.WriteString("\n\n**Task:** Judge whether each tool was invoked with correct arguments and whether the overall tool usage satisfies the ground truth.\n\n")

	b.WriteString("Respond with a single JSON object of this exact shape:\n")
	b.WriteString("{\"score\": <number between 0 and 1>, \"reasoning\": \"<one paragraph>\"")
	if params.VerboseMode || params.IncludeReason {
		b.WriteString(", \"perTool\": [{\"tool\": \"<name>\", \"correct\": <boolean>, \"reasoning\": \"<why>\"}]")
	}
	b.WriteString("}\n")

	return b.String()
}

// asPromptJSON renders a value for prompt embedding. Unserializable values
// degrade to a placeholder rather than failing the judge call.
func asPromptJSON(v any) string {
	if v == nil {
		return "null"
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("<unserializable: %T>", v)
	}
	return string(data)
}
