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

import "time"

// Method identifies an evaluation method.
type Method string

const (
	// MethodToolCorrectness deterministically matches the tool calls of
	// dataset data points against ground truth.
	MethodToolCorrectness Method = "TOOL_CORRECTNESS"

	// MethodArgumentCorrectness grades data point tool arguments with an
	// LLM judge.
	MethodArgumentCorrectness Method = "ARGUMENT_CORRECTNESS"

	// MethodLogToolCorrectness is MethodToolCorrectness over dataset logs.
	MethodLogToolCorrectness Method = "LOG_TOOL_CORRECTNESS"

	// MethodLogArgumentCorrectness is MethodArgumentCorrectness over
	// dataset logs.
	MethodLogArgumentCorrectness Method = "LOG_ARGUMENT_CORRECTNESS"
)

// AllMethods returns every supported evaluation method.
func AllMethods() []Method {
	return []Method{
		MethodToolCorrectness,
		MethodArgumentCorrectness,
		MethodLogToolCorrectness,
		MethodLogArgumentCorrectness,
	}
}

// String returns the string representation of the method.
func (m Method) String() string {
	return string(m)
}

// Valid reports whether m is a supported method.
func (m Method) Valid() bool {
	switch m {
	case MethodToolCorrectness,
		MethodArgumentCorrectness,
		MethodLogToolCorrectness,
		MethodLogArgumentCorrectness:
		return true
	default:
		return false
	}
}

// UsesJudge returns true if the method is graded by the LLM judge rather
// than the deterministic matcher.
func (m Method) UsesJudge() bool {
	switch m {
	case MethodArgumentCorrectness,
		MethodLogArgumentCorrectness:
		return true
	default:
		return false
	}
}

// UsesLogs returns true if the method evaluates dataset logs rather than
// data points.
func (m Method) UsesLogs() bool {
	switch m {
	case MethodLogToolCorrectness,
		MethodLogArgumentCorrectness:
		return true
	default:
		return false
	}
}

// ItemKind returns the storage record kind the method evaluates.
func (m Method) ItemKind() ItemKind {
	if m.UsesLogs() {
		return KindLog
	}
	return KindDataPoint
}

// RunStatus represents the lifecycle state of an evaluation run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "PENDING"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
)

// Terminal reports whether the status is final. No code path transitions out
// of a terminal status.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// ScoreRecord is the per-item evaluation outcome. Scores are in [0, 1].
type ScoreRecord struct {
	ItemID   string         `json:"item_id"`
	Score    float64        `json:"score"`
	Reason   string         `json:"reason,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RunResults carries the per-item scores of a run plus derived aggregates.
// A FAILED run instead carries Error, a human-readable failure description.
type RunResults struct {
	AverageScore   float64       `json:"average_score"`
	EvaluatedItems int           `json:"evaluated_items"`
	PassedCount    int           `json:"passed_count"`
	FailedCount    int           `json:"failed_count"`
	ThresholdUsed  float64       `json:"threshold_used"`
	Scores         []ScoreRecord `json:"scores,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// EvaluationRun is the durable record tracking one execution of an
// evaluation method over a dataset. The orchestrator owns the record
// exclusively while the run is in flight; the storage connector is the
// durable owner across process boundaries.
type EvaluationRun struct {
	ID          string         `json:"id"`
	DatasetID   string         `json:"dataset_id"`
	AgentID     string         `json:"agent_id"`
	Method      Method         `json:"evaluation_method"`
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Status      RunStatus      `json:"status"`
	Results     *RunResults    `json:"results,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// ItemOutput is the persisted per-item evaluation output. One is written for
// every evaluated item, fallback-scored items included.
type ItemOutput struct {
	ID        string         `json:"id"`
	RunID     string         `json:"run_id"`
	ItemID    string         `json:"item_id"`
	Score     float64        `json:"score"`
	Reason    string         `json:"reason,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Request describes one evaluation to execute. It is produced by the
// dashboard layer and consumed by the orchestrator.
type Request struct {
	AgentID     string     `json:"agent_id"`
	DatasetID   string     `json:"dataset_id"`
	Method      Method     `json:"evaluation_method"`
	Parameters  Parameters `json:"parameters"`
	Name        string     `json:"name,omitempty"`
	Description string     `json:"description,omitempty"`
}
