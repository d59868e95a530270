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

// Package runner orchestrates evaluation runs.
//
// One Evaluate call owns one run record for its whole lifetime and drives it
// through PENDING -> RUNNING -> {COMPLETED, FAILED}. The error taxonomy is
// strict: run creation, item fetch and finalization failures are fatal and
// propagate to the caller (fetch and finalization failures are recorded on
// the run first, best-effort); everything per-item is recovered into the
// run's own result data, so a run can complete despite individual item
// trouble.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/agentdash/evalengine/evaluation"
	"github.com/agentdash/evalengine/evaluation/judge"
	"github.com/agentdash/evalengine/evaluation/matcher"
	"github.com/agentdash/evalengine/internal/telemetry"
)

// Error classifications recorded in per-item metadata and failed-run
// results.
const (
	errorTypeScoring   = "scoring_error"
	errorTypeCancelled = "cancelled"
)

// Runner executes evaluation requests against a storage connector.
type Runner struct {
	store  evaluation.Connector
	judge  *judge.Judge
	tracer trace.Tracer
}

// Option configures a Runner.
type Option func(*Runner)

// WithJudge wires the LLM judge used by the ARGUMENT_CORRECTNESS method
// family. Runs restricted to deterministic methods do not need one.
func WithJudge(j *judge.Judge) Option {
	return func(r *Runner) { r.judge = j }
}

// New creates a Runner bound to a storage connector. The connector and the
// judge are injected here; the runner keeps no global state.
func New(store evaluation.Connector, opts ...Option) *Runner {
	r := &Runner{
		store:  store,
		tracer: telemetry.Tracer(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Evaluate executes one evaluation run and returns the finalized record,
// re-read through the connector so storage-side derived fields are
// authoritative.
func (r *Runner) Evaluate(ctx context.Context, req *evaluation.Request) (*evaluation.EvaluationRun, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", evaluation.ErrInvalidInput)
	}
	if !req.Method.Valid() {
		return nil, fmt.Errorf("%w: unknown evaluation method %q", evaluation.ErrInvalidInput, req.Method)
	}
	if req.Method.UsesJudge() && r.judge == nil {
		return nil, fmt.Errorf("%w: method %s requires a judge", evaluation.ErrInvalidInput, req.Method)
	}

	ctx, span := r.tracer.Start(ctx, "runner.Evaluate",
		trace.WithAttributes(
			attribute.String("eval.method", req.Method.String()),
			attribute.String("eval.dataset_id", req.DatasetID),
			attribute.String("eval.agent_id", req.AgentID),
		))
	defer span.End()

	// Create. A failure here propagates unmodified: no run record exists
	// yet, so there is nothing to roll back.
	run, err := r.store.CreateEvaluationRun(ctx, &evaluation.EvaluationRun{
		ID:          uuid.NewString(),
		DatasetID:   req.DatasetID,
		AgentID:     req.AgentID,
		Method:      req.Method,
		Name:        req.Name,
		Description: req.Description,
		Status:      evaluation.RunStatusPending,
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("eval.run_id", run.ID))
	telemetry.LogRunTransition(ctx, run.ID, string(evaluation.RunStatusPending))

	if err := r.transition(ctx, run.ID, evaluation.RunStatusRunning); err != nil {
		r.failRun(ctx, run.ID, err.Error())
		return nil, err
	}

	items, err := r.fetchItems(ctx, req)
	if err != nil {
		// Record the failure on the run, best-effort, then surface the
		// original error. A failing FAILED-write must not mask it.
		r.failRun(ctx, run.ID, err.Error())
		return nil, err
	}

	scores, err := r.scoreItems(ctx, run.ID, items, req)
	if err != nil {
		r.failRun(ctx, run.ID, err.Error())
		return nil, err
	}

	r.persistOutputs(ctx, run.ID, req.Method, scores)

	results := aggregate(scores, req.Parameters)

	if err := ctx.Err(); err != nil {
		r.failRun(ctx, run.ID, fmt.Sprintf("%s: %v", errorTypeCancelled, err))
		return nil, err
	}

	// Finalize. Mirrors the fetch-failure policy: fatal to the caller,
	// recorded as FAILED best-effort.
	now := time.Now()
	completed := evaluation.RunStatusCompleted
	if _, err := r.store.UpdateEvaluationRun(ctx, run.ID, evaluation.RunUpdate{
		Status:      &completed,
		Results:     results,
		CompletedAt: &now,
	}); err != nil {
		r.failRun(ctx, run.ID, err.Error())
		return nil, err
	}
	telemetry.LogRunTransition(ctx, run.ID, string(evaluation.RunStatusCompleted))

	// Re-read rather than trusting the local aggregate, so storage-side
	// derived fields are authoritative.
	runs, err := r.store.GetEvaluationRuns(ctx, evaluation.RunFilter{ID: run.ID})
	if err != nil || len(runs) == 0 {
		return nil, fmt.Errorf("run %s completed but could not be re-read: %w", run.ID, err)
	}
	return &runs[0], nil
}

func (r *Runner) fetchItems(ctx context.Context, req *evaluation.Request) ([]evaluation.Item, error) {
	if req.Method.UsesLogs() {
		return r.store.GetDatasetLogs(ctx, req.DatasetID, evaluation.QueryOptions{})
	}
	return r.store.GetDataPoints(ctx, req.DatasetID, evaluation.QueryOptions{})
}

// scoreItems scores every fetched item, preserving fetch order in the
// returned slice. When async mode is on, scoring runs on a bounded worker
// pool; the aggregate is a commutative reduction over per-item scores, so
// parallel execution is safe as long as item identity is preserved.
func (r *Runner) scoreItems(ctx context.Context, runID string, items []evaluation.Item, req *evaluation.Request) ([]evaluation.ScoreRecord, error) {
	scores := make([]evaluation.ScoreRecord, len(items))

	if req.Parameters.AsyncMode && req.Parameters.BatchSize > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(req.Parameters.BatchSize)
		for i, item := range items {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				scores[i] = r.scoreItem(gctx, runID, item, req)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("%s: %w", errorTypeCancelled, err)
		}
		return scores, nil
	}

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%s: %w", errorTypeCancelled, err)
		}
		scores[i] = r.scoreItem(ctx, runID, item, req)
	}
	return scores, nil
}

// scoreItem scores a single item. It never lets a failure escape: a panic
// from a scorer degrades to the neutral fallback score with the failure
// recorded in the score metadata, so one bad item cannot abort the run.
func (r *Runner) scoreItem(ctx context.Context, runID string, item evaluation.Item, req *evaluation.Request) (record evaluation.ScoreRecord) {
	defer func() {
		if rec := recover(); rec != nil {
			detail := fmt.Sprintf("%v", rec)
			telemetry.LogItemRecovered(ctx, runID, item.ID, errorTypeScoring, detail)
			record = evaluation.ScoreRecord{
				ItemID: item.ID,
				Score:  judge.FallbackScore,
				Reason: "Scoring failed; neutral fallback score applied.",
				Metadata: map[string]any{
					"fallback":     true,
					"errorType":    errorTypeScoring,
					"errorDetails": detail,
				},
			}
		}
	}()

	if req.Method.UsesJudge() {
		res := r.judge.Evaluate(ctx, item, req.Parameters)
		record = evaluation.ScoreRecord{
			ItemID:   item.ID,
			Score:    res.Score,
			Reason:   res.Reasoning,
			Metadata: res.Metadata,
		}
		if len(res.PerTool) > 0 {
			if record.Metadata == nil {
				record.Metadata = map[string]any{}
			}
			record.Metadata["perTool"] = res.PerTool
		}
		if res.Fallback() {
			errType, _ := res.Metadata["errorType"].(string)
			detail, _ := res.Metadata["errorDetails"].(string)
			telemetry.LogItemRecovered(ctx, runID, item.ID, errType, detail)
		}
		return record
	}

	m := matcher.Score(item.Actual, item.Expected, req.Parameters)
	return evaluation.ScoreRecord{
		ItemID: item.ID,
		Score:  m.Score,
		Reason: m.Reason,
	}
}

// persistOutputs writes one output per scored item, in fetch order. A
// failed write is logged and swallowed: output-persistence flakiness must
// not starve the aggregate or abort the loop.
func (r *Runner) persistOutputs(ctx context.Context, runID string, method evaluation.Method, scores []evaluation.ScoreRecord) {
	for _, s := range scores {
		output := &evaluation.ItemOutput{
			ID:       uuid.NewString(),
			RunID:    runID,
			ItemID:   s.ItemID,
			Score:    s.Score,
			Reason:   s.Reason,
			Metadata: s.Metadata,
		}
		var err error
		if method.UsesLogs() {
			_, err = r.store.CreateLogOutput(ctx, output)
		} else {
			_, err = r.store.CreateDataPointOutput(ctx, output)
		}
		if err != nil {
			telemetry.LogOutputWriteFailed(ctx, runID, s.ItemID, err)
		}
	}
}

// aggregate derives run-level statistics from the per-item scores. An empty
// run averages to 0, not NaN.
func aggregate(scores []evaluation.ScoreRecord, params evaluation.Parameters) *evaluation.RunResults {
	threshold := params.EffectiveThreshold()
	results := &evaluation.RunResults{
		EvaluatedItems: len(scores),
		ThresholdUsed:  threshold,
		Scores:         scores,
	}

	if len(scores) == 0 {
		return results
	}

	total := 0.0
	for _, s := range scores {
		total += s.Score
		if s.Score >= threshold {
			results.PassedCount++
		}
	}
	results.AverageScore = total / float64(len(scores))
	results.FailedCount = results.EvaluatedItems - results.PassedCount
	return results
}

func (r *Runner) transition(ctx context.Context, id string, status evaluation.RunStatus) error {
	if _, err := r.store.UpdateEvaluationRun(ctx, id, evaluation.RunUpdate{Status: &status}); err != nil {
		return fmt.Errorf("failed to transition run %s to %s: %w", id, status, err)
	}
	telemetry.LogRunTransition(ctx, id, string(status))
	return nil
}

// failRun transitions a run to FAILED with a human-readable error, best
// effort: a failing write here must never mask the error that caused the
// failure. The write uses a detached context so cancellation of the run
// does not also cancel its own failure record.
func (r *Runner) failRun(ctx context.Context, id string, message string) {
	failed := evaluation.RunStatusFailed
	now := time.Now()
	_, err := r.store.UpdateEvaluationRun(context.WithoutCancel(ctx), id, evaluation.RunUpdate{
		Status:      &failed,
		Results:     &evaluation.RunResults{Error: message},
		CompletedAt: &now,
	})
	if err == nil {
		telemetry.LogRunTransition(ctx, id, string(evaluation.RunStatusFailed))
	}
}
