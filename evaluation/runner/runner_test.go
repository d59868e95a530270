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

package runner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agentdash/evalengine/evaluation"
	"github.com/agentdash/evalengine/evaluation/judge"
	"github.com/agentdash/evalengine/evaluation/storage"
)

// faultConnector wraps a MemoryConnector and lets individual operations be
// forced to fail.
type faultConnector struct {
	*storage.MemoryConnector

	createRunErr  error
	fetchErr      error
	updateErr     error
	updateErrOn   evaluation.RunStatus
	outputErr     error
	failedUpdates int
}

func (f *faultConnector) CreateEvaluationRun(ctx context.Context, run *evaluation.EvaluationRun) (*evaluation.EvaluationRun, error) {
	if f.createRunErr != nil {
		return nil, f.createRunErr
	}
	return f.MemoryConnector.CreateEvaluationRun(ctx, run)
}

func (f *faultConnector) UpdateEvaluationRun(ctx context.Context, id string, update evaluation.RunUpdate) (*evaluation.EvaluationRun, error) {
	if f.updateErr != nil && update.Status != nil && *update.Status == f.updateErrOn {
		f.failedUpdates++
		return nil, f.updateErr
	}
	return f.MemoryConnector.UpdateEvaluationRun(ctx, id, update)
}

func (f *faultConnector) GetDataPoints(ctx context.Context, datasetID string, opts evaluation.QueryOptions) ([]evaluation.Item, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.MemoryConnector.GetDataPoints(ctx, datasetID, opts)
}

func (f *faultConnector) GetDatasetLogs(ctx context.Context, datasetID string, opts evaluation.QueryOptions) ([]evaluation.Item, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.MemoryConnector.GetDatasetLogs(ctx, datasetID, opts)
}

func (f *faultConnector) CreateDataPointOutput(ctx context.Context, output *evaluation.ItemOutput) (*evaluation.ItemOutput, error) {
	if f.outputErr != nil {
		return nil, f.outputErr
	}
	return f.MemoryConnector.CreateDataPointOutput(ctx, output)
}

func dataPoint(id string, actual, expected []map[string]any) evaluation.Item {
	meta := map[string]any{}
	if actual != nil {
		calls := make([]any, 0, len(actual))
		for _, c := range actual {
			calls = append(calls, c)
		}
		meta["tool_calls"] = calls
	}
	if expected != nil {
		calls := make([]any, 0, len(expected))
		for _, c := range expected {
			calls = append(calls, c)
		}
		meta["expected_tools"] = calls
	}
	return evaluation.NormalizeItem(id, evaluation.KindDataPoint, meta)
}

func toolCallMeta(name string) map[string]any {
	return map[string]any{"name": name, "input_parameters": map[string]any{}}
}

func basicRequest(datasetID string) *evaluation.Request {
	return &evaluation.Request{
		AgentID:    "agent-1",
		DatasetID:  datasetID,
		Method:     evaluation.MethodToolCorrectness,
		Parameters: evaluation.DefaultParameters(),
	}
}

func TestEvaluate_CompletesRun(t *testing.T) {
	store := storage.NewMemoryConnector()
	store.SeedDataPoints("ds-1",
		dataPoint("dp-1", []map[string]any{toolCallMeta("search")}, []map[string]any{toolCallMeta("search")}),
		dataPoint("dp-2", []map[string]any{toolCallMeta("fetch")}, []map[string]any{toolCallMeta("search")}),
		dataPoint("dp-3", nil, []map[string]any{toolCallMeta("search")}),
	)

	run, err := New(store).Evaluate(context.Background(), basicRequest("ds-1"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if run.Status != evaluation.RunStatusCompleted {
		t.Errorf("Status = %v, want COMPLETED", run.Status)
	}
	if run.CompletedAt == nil {
		t.Error("CompletedAt should be set")
	}
	if run.Results == nil {
		t.Fatal("Results should be set")
	}

	res := run.Results
	if res.EvaluatedItems != 3 {
		t.Errorf("EvaluatedItems = %d, want 3", res.EvaluatedItems)
	}
	if len(res.Scores) != res.EvaluatedItems {
		t.Errorf("len(Scores) = %d, want EvaluatedItems %d", len(res.Scores), res.EvaluatedItems)
	}
	if want := 1.0 / 3.0; math.Abs(res.AverageScore-want) > 1e-9 {
		t.Errorf("AverageScore = %v, want %v", res.AverageScore, want)
	}
	if res.PassedCount != 1 || res.FailedCount != 2 {
		t.Errorf("PassedCount/FailedCount = %d/%d, want 1/2", res.PassedCount, res.FailedCount)
	}
	if res.ThresholdUsed != 0.5 {
		t.Errorf("ThresholdUsed = %v, want 0.5", res.ThresholdUsed)
	}

	// AverageScore is the mean of the persisted per-item scores.
	total := 0.0
	for _, s := range res.Scores {
		total += s.Score
	}
	if math.Abs(res.AverageScore-total/float64(len(res.Scores))) > 1e-9 {
		t.Error("AverageScore must equal the mean of Scores")
	}

	outputs := store.DataPointOutputs()
	if len(outputs) != 3 {
		t.Fatalf("persisted outputs = %d, want 3", len(outputs))
	}
	for i, want := range []string{"dp-1", "dp-2", "dp-3"} {
		if outputs[i].ItemID != want {
			t.Errorf("output[%d].ItemID = %q, want %q (fetch order must be preserved)", i, outputs[i].ItemID, want)
		}
		if outputs[i].RunID != run.ID {
			t.Errorf("output[%d].RunID = %q, want %q", i, outputs[i].RunID, run.ID)
		}
	}
}

func TestEvaluate_EmptyDataset(t *testing.T) {
	store := storage.NewMemoryConnector()

	run, err := New(store).Evaluate(context.Background(), basicRequest("empty-ds"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if run.Status != evaluation.RunStatusCompleted {
		t.Errorf("Status = %v, want COMPLETED", run.Status)
	}
	if run.Results.EvaluatedItems != 0 || run.Results.AverageScore != 0 {
		t.Errorf("empty dataset results = %+v, want zeroes", run.Results)
	}
}

func TestEvaluate_StrictModeThreshold(t *testing.T) {
	store := storage.NewMemoryConnector()
	store.SeedDataPoints("ds-1",
		dataPoint("dp-1", []map[string]any{toolCallMeta("search")}, []map[string]any{toolCallMeta("search")}),
		dataPoint("dp-2", []map[string]any{toolCallMeta("search")}, []map[string]any{toolCallMeta("search"), toolCallMeta("fetch")}),
	)

	req := basicRequest("ds-1")
	req.Parameters.StrictMode = true
	req.Parameters.Threshold = 0.2

	run, err := New(store).Evaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if run.Results.ThresholdUsed != 1.0 {
		t.Errorf("ThresholdUsed = %v, want 1.0 under strict mode", run.Results.ThresholdUsed)
	}
	// dp-1 scores 1.0, dp-2 scores 0.5; only the perfect item passes.
	if run.Results.PassedCount != 1 || run.Results.FailedCount != 1 {
		t.Errorf("PassedCount/FailedCount = %d/%d, want 1/1", run.Results.PassedCount, run.Results.FailedCount)
	}
}

func TestEvaluate_InvalidRequests(t *testing.T) {
	store := storage.NewMemoryConnector()
	r := New(store)

	tests := []struct {
		name string
		req  *evaluation.Request
	}{
		{name: "nil request", req: nil},
		{name: "unknown method", req: &evaluation.Request{Method: "VIBES"}},
		{
			name: "judge method without judge",
			req:  &evaluation.Request{Method: evaluation.MethodArgumentCorrectness},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Evaluate(context.Background(), tt.req)
			if !errors.Is(err, evaluation.ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}

	// Rejected requests must not leave run records behind.
	runs, err := store.GetEvaluationRuns(context.Background(), evaluation.RunFilter{})
	if err != nil {
		t.Fatalf("GetEvaluationRuns: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("found %d runs after rejected requests, want 0", len(runs))
	}
}

func TestEvaluate_CreateFailurePropagates(t *testing.T) {
	createErr := errors.New("storage unavailable")
	store := &faultConnector{MemoryConnector: storage.NewMemoryConnector(), createRunErr: createErr}

	_, err := New(store).Evaluate(context.Background(), basicRequest("ds-1"))
	if !errors.Is(err, createErr) {
		t.Errorf("err = %v, want the create error unmodified", err)
	}
}

func TestEvaluate_FetchFailureFailsRun(t *testing.T) {
	fetchErr := errors.New("dataset table locked")
	store := &faultConnector{MemoryConnector: storage.NewMemoryConnector(), fetchErr: fetchErr}

	_, err := New(store).Evaluate(context.Background(), basicRequest("ds-1"))
	if !errors.Is(err, fetchErr) {
		t.Fatalf("err = %v, want the fetch error", err)
	}

	runs, gerr := store.GetEvaluationRuns(context.Background(), evaluation.RunFilter{})
	if gerr != nil || len(runs) != 1 {
		t.Fatalf("runs = %v (err %v), want exactly one", runs, gerr)
	}
	run := runs[0]
	if run.Status != evaluation.RunStatusFailed {
		t.Errorf("Status = %v, want FAILED", run.Status)
	}
	if run.Results == nil || run.Results.Error != fetchErr.Error() {
		t.Errorf("Results.Error = %+v, want the fetch error message", run.Results)
	}
	if run.CompletedAt == nil {
		t.Error("failed runs still get a completion timestamp")
	}
}

func TestEvaluate_FinalizeFailureFailsRun(t *testing.T) {
	store := &faultConnector{
		MemoryConnector: storage.NewMemoryConnector(),
		updateErr:       errors.New("write conflict"),
		updateErrOn:     evaluation.RunStatusCompleted,
	}
	store.SeedDataPoints("ds-1",
		dataPoint("dp-1", []map[string]any{toolCallMeta("search")}, []map[string]any{toolCallMeta("search")}),
	)

	_, err := New(store).Evaluate(context.Background(), basicRequest("ds-1"))
	if err == nil || !strings.Contains(err.Error(), "write conflict") {
		t.Fatalf("err = %v, want the finalize error", err)
	}

	runs, gerr := store.GetEvaluationRuns(context.Background(), evaluation.RunFilter{})
	if gerr != nil || len(runs) != 1 {
		t.Fatalf("runs = %v (err %v), want exactly one", runs, gerr)
	}
	if runs[0].Status != evaluation.RunStatusFailed {
		t.Errorf("Status = %v, want FAILED after finalize failure", runs[0].Status)
	}
}

func TestEvaluate_OutputWriteFailureDoesNotAbort(t *testing.T) {
	store := &faultConnector{
		MemoryConnector: storage.NewMemoryConnector(),
		outputErr:       errors.New("outputs table full"),
	}
	store.SeedDataPoints("ds-1",
		dataPoint("dp-1", []map[string]any{toolCallMeta("search")}, []map[string]any{toolCallMeta("search")}),
	)

	run, err := New(store).Evaluate(context.Background(), basicRequest("ds-1"))
	if err != nil {
		t.Fatalf("Evaluate: %v (output write failures must be swallowed)", err)
	}
	if run.Status != evaluation.RunStatusCompleted {
		t.Errorf("Status = %v, want COMPLETED", run.Status)
	}
	if run.Results.EvaluatedItems != 1 {
		t.Errorf("EvaluatedItems = %d, want 1", run.Results.EvaluatedItems)
	}
}

func TestEvaluate_Cancellation(t *testing.T) {
	store := storage.NewMemoryConnector()
	store.SeedDataPoints("ds-1",
		dataPoint("dp-1", []map[string]any{toolCallMeta("search")}, []map[string]any{toolCallMeta("search")}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(store).Evaluate(ctx, basicRequest("ds-1"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	// The failure record must land despite the cancelled context.
	runs, gerr := store.GetEvaluationRuns(context.Background(), evaluation.RunFilter{})
	if gerr != nil || len(runs) != 1 {
		t.Fatalf("runs = %v (err %v), want exactly one", runs, gerr)
	}
	run := runs[0]
	if run.Status != evaluation.RunStatusFailed {
		t.Errorf("Status = %v, want FAILED", run.Status)
	}
	if run.Results == nil || !strings.Contains(run.Results.Error, "cancelled") {
		t.Errorf("Results = %+v, want a cancelled error", run.Results)
	}
}

func TestEvaluate_AsyncModePreservesOrder(t *testing.T) {
	store := storage.NewMemoryConnector()
	var items []evaluation.Item
	for i := 0; i < 20; i++ {
		items = append(items, dataPoint(
			fmt.Sprintf("dp-%02d", i),
			[]map[string]any{toolCallMeta("search")},
			[]map[string]any{toolCallMeta("search")},
		))
	}
	store.SeedDataPoints("ds-1", items...)

	req := basicRequest("ds-1")
	req.Parameters.AsyncMode = true
	req.Parameters.BatchSize = 4

	run, err := New(store).Evaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if run.Results.EvaluatedItems != 20 || run.Results.PassedCount != 20 {
		t.Fatalf("results = %+v, want 20 evaluated and passed", run.Results)
	}
	for i, s := range run.Results.Scores {
		if want := fmt.Sprintf("dp-%02d", i); s.ItemID != want {
			t.Errorf("Scores[%d].ItemID = %q, want %q", i, s.ItemID, want)
		}
	}
}

func TestEvaluate_MalformedItemStillScored(t *testing.T) {
	store := storage.NewMemoryConnector()
	store.SeedDataPoints("ds-1",
		evaluation.NormalizeItem("dp-bad", evaluation.KindDataPoint, map[string]any{
			"tool_calls": "not an array",
		}),
		dataPoint("dp-good", []map[string]any{toolCallMeta("search")}, []map[string]any{toolCallMeta("search")}),
	)

	run, err := New(store).Evaluate(context.Background(), basicRequest("ds-1"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if run.Results.EvaluatedItems != 2 {
		t.Errorf("EvaluatedItems = %d, want 2 (malformed items still count)", run.Results.EvaluatedItems)
	}
	// Malformed metadata normalizes to empty sequences: empty expected
	// versus empty actual is a perfect match.
	if run.Results.Scores[0].Score != 1.0 {
		t.Errorf("malformed item score = %v, want 1.0", run.Results.Scores[0].Score)
	}
}

func TestEvaluate_JudgeMethodEndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"output":[{"content":[{"text":"{\"score\":0.75,\"reasoning\":\"mostly right\"}"}]}]}`)
	}))
	defer srv.Close()

	store := storage.NewMemoryConnector()
	store.SeedDataPoints("ds-1",
		dataPoint("dp-1", []map[string]any{toolCallMeta("search")}, []map[string]any{toolCallMeta("search")}),
	)

	req := basicRequest("ds-1")
	req.Method = evaluation.MethodArgumentCorrectness

	r := New(store, WithJudge(judge.New(judge.Config{BaseURL: srv.URL, Model: "judge-model"})))
	run, err := r.Evaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if run.Results.Scores[0].Score != 0.75 {
		t.Errorf("judge score = %v, want 0.75", run.Results.Scores[0].Score)
	}
	if run.Results.Scores[0].Reason != "mostly right" {
		t.Errorf("judge reason = %q", run.Results.Scores[0].Reason)
	}
}

func TestEvaluate_JudgeFallbackKeepsRunAlive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	store := storage.NewMemoryConnector()
	store.SeedDataPoints("ds-1",
		dataPoint("dp-1", []map[string]any{toolCallMeta("search")}, []map[string]any{toolCallMeta("search")}),
		dataPoint("dp-2", []map[string]any{toolCallMeta("fetch")}, []map[string]any{toolCallMeta("fetch")}),
	)

	req := basicRequest("ds-1")
	req.Method = evaluation.MethodArgumentCorrectness

	r := New(store, WithJudge(judge.New(judge.Config{BaseURL: srv.URL, Model: "judge-model"})))
	run, err := r.Evaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("Evaluate: %v (judge failures must not fail the run)", err)
	}
	if run.Status != evaluation.RunStatusCompleted {
		t.Errorf("Status = %v, want COMPLETED", run.Status)
	}
	for i, s := range run.Results.Scores {
		if s.Score != judge.FallbackScore {
			t.Errorf("Scores[%d].Score = %v, want fallback %v", i, s.Score, judge.FallbackScore)
		}
		if fallback, _ := s.Metadata["fallback"].(bool); !fallback {
			t.Errorf("Scores[%d] should be marked as fallback", i)
		}
	}
}

func TestEvaluate_LogMethodUsesLogStorage(t *testing.T) {
	store := storage.NewMemoryConnector()
	store.SeedLogs("ds-1",
		evaluation.NormalizeItem("log-1", evaluation.KindLog, map[string]any{
			"tool_calls":     []any{toolCallMeta("search")},
			"expected_tools": []any{toolCallMeta("search")},
		}),
	)

	req := basicRequest("ds-1")
	req.Method = evaluation.MethodLogToolCorrectness

	run, err := New(store).Evaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if run.Results.EvaluatedItems != 1 {
		t.Errorf("EvaluatedItems = %d, want 1", run.Results.EvaluatedItems)
	}
	if got := len(store.LogOutputs()); got != 1 {
		t.Errorf("log outputs = %d, want 1", got)
	}
	if got := len(store.DataPointOutputs()); got != 0 {
		t.Errorf("data point outputs = %d, want 0", got)
	}
}
