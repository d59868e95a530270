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

// Package telemetry emits structured OpenTelemetry events for the
// evaluation engine: run lifecycle transitions, per-item persistence
// trouble and judge traffic. Events go through the global logger provider,
// so the embedding application decides where they end up.
package telemetry

import (
	"context"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/agentdash/evalengine"

// Judge prompt/response content is not logged by default. Set the following
// env variable to enable logging of judge message content.
// AGENTDASH_CAPTURE_JUDGE_CONTENT=true
var elideJudgeContent = !isEnvVarTrue("AGENTDASH_CAPTURE_JUDGE_CONTENT")

const elidedContent = "<elided>"

var logger = global.GetLoggerProvider().Logger(scopeName)

// Tracer returns the engine tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(scopeName)
}

// LogRunTransition records a run lifecycle transition.
func LogRunTransition(ctx context.Context, runID string, status string) {
	record := log.Record{}
	record.SetEventName("eval.run.transition")
	record.SetBody(log.MapValue(
		log.String("run_id", runID),
		log.String("status", status),
	))
	logger.Emit(ctx, record)
}

// LogItemRecovered records a per-item failure that was absorbed with a
// fallback score instead of aborting the run.
func LogItemRecovered(ctx context.Context, runID, itemID, errType, detail string) {
	record := log.Record{}
	record.SetEventName("eval.item.recovered")
	record.SetBody(log.MapValue(
		log.String("run_id", runID),
		log.String("item_id", itemID),
		log.String("error_type", errType),
		log.String("error_details", detail),
	))
	logger.Emit(ctx, record)
}

// LogOutputWriteFailed records a per-item output persistence failure. These
// are logged and otherwise swallowed so output-store flakiness cannot starve
// the aggregate.
func LogOutputWriteFailed(ctx context.Context, runID, itemID string, err error) {
	record := log.Record{}
	record.SetEventName("eval.output.write_failed")
	record.SetBody(log.MapValue(
		log.String("run_id", runID),
		log.String("item_id", itemID),
		log.String("error", err.Error()),
	))
	logger.Emit(ctx, record)
}

// LogJudgeCall records one judge endpoint round trip. Prompt and reply text
// are elided unless content capture is enabled.
func LogJudgeCall(ctx context.Context, model string, prompt, reply string, statusCode int) {
	record := log.Record{}
	record.SetEventName("eval.judge.call")
	record.SetBody(log.MapValue(
		log.String("model", model),
		log.Int("status_code", statusCode),
		log.String("prompt", judgeContent(prompt)),
		log.String("reply", judgeContent(reply)),
	))
	logger.Emit(ctx, record)
}

func judgeContent(s string) string {
	if elideJudgeContent {
		return elidedContent
	}
	return s
}

func isEnvVarTrue(name string) bool {
	val, ok := os.LookupEnv(name)
	if !ok {
		return false
	}
	val = strings.ToLower(val)
	return val == "true" || val == "1"
}
