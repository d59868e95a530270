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

// Package evaluation defines the core types of the agent evaluation engine.
//
// The engine scores recorded agent interactions against ground truth. Each
// evaluatable item carries the sequence of tool calls the agent actually made
// and the sequence it was expected to make; an evaluation method decides how
// the two are compared.
//
// # Core Concepts
//
// Item: one evaluatable record (a dataset data point or a captured log),
// normalized so that malformed storage-side metadata can never crash scoring.
//
// Parameters: the configuration surface of a run (threshold, strict mode,
// ordering and exact-match flags, judge model knobs).
//
// EvaluationRun: the durable record of one engine invocation, with lifecycle
// PENDING -> RUNNING -> {COMPLETED, FAILED}. Terminal states are final.
//
// Connector: the narrow storage interface the engine consumes. Persistence is
// an external collaborator; implementations live in evaluation/storage.
//
// # Evaluation Methods
//
// Two method families exist, each available for both storage record kinds:
//
//   - TOOL_CORRECTNESS / LOG_TOOL_CORRECTNESS: deterministic tool-call
//     matching (evaluation/matcher). No LLM required.
//   - ARGUMENT_CORRECTNESS / LOG_ARGUMENT_CORRECTNESS: LLM-as-Judge grading
//     (evaluation/judge) with a neutral 0.5 fallback when the judge call or
//     its response parsing fails.
//
// # Parameter Validation
//
// ParameterSchema and ValidateParameters form the only user-facing input
// validation boundary. Invalid parameter maps fail fast, before any run
// record is created:
//
//	if err := evaluation.ValidateParameters(raw); err != nil {
//	    return err
//	}
//	params, err := evaluation.DecodeParameters(raw)
//
// # Running an Evaluation
//
//	store := storage.NewMemoryConnector()
//	r := runner.New(store, runner.WithJudge(judgeClient))
//	run, err := r.Evaluate(ctx, &evaluation.Request{
//	    AgentID:   "agent-1",
//	    DatasetID: "dataset-1",
//	    Method:    evaluation.MethodToolCorrectness,
//	    Parameters: evaluation.DefaultParameters(),
//	})
package evaluation
