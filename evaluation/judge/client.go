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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Wire types for the judge responses endpoint.

type responsesRequest struct {
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Input       []message `json:"input"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responsesReply struct {
	Output []outputItem `json:"output"`
}

type outputItem struct {
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text"`
}

// callJudge POSTs one evaluation prompt to the responses endpoint and
// returns the reply text. A non-2xx status is an error carrying the
// response body, so the caller can surface it as errorDetails.
func (j *Judge) callJudge(ctx context.Context, req responsesRequest) (string, int, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(req); err != nil {
		return "", 0, fmt.Errorf("failed to encode request: %w", err)
	}

	url := j.baseURL + "/responses"
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, &buf)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if j.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+j.apiKey)
	}

	resp, err := j.httpClient.Do(httpReq)
	if err != nil {
		return "", 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", resp.StatusCode, fmt.Errorf("judge API error (status %d): %s", resp.StatusCode, string(body))
	}

	var reply responsesReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return "", resp.StatusCode, fmt.Errorf("malformed judge reply: %w", err)
	}

	for _, out := range reply.Output {
		for _, part := range out.Content {
			if part.Text != "" {
				return part.Text, resp.StatusCode, nil
			}
		}
	}
	return "", resp.StatusCode, fmt.Errorf("judge reply contained no text output")
}
