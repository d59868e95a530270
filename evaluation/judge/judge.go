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

// Package judge implements the LLM-as-Judge evaluator for argument
// correctness and the other LLM-graded methods.
//
// The judge builds a structured prompt from one evaluatable item, POSTs it
// to an external responses endpoint and parses the constrained JSON verdict
// out of the reply. Failures never escape this package: transport errors,
// non-2xx statuses and malformed payloads all degrade to the neutral
// fallback score with the failure classified in the result metadata, so the
// orchestrator still counts the item as evaluated.
package judge

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentdash/evalengine/evaluation"
	"github.com/agentdash/evalengine/internal/telemetry"
)

// FallbackScore is the neutral score substituted when the judge call or its
// response parsing cannot complete.
const FallbackScore = 0.5

// Failure classifications recorded in result metadata.
const (
	ErrorTypeAPI   = "api_error"
	ErrorTypeParse = "parse_error"
)

const defaultCacheSize = 256

// PerToolAssessment is the judge's optional per-tool breakdown.
type PerToolAssessment struct {
	Tool      string `json:"tool"`
	Correct   bool   `json:"correct"`
	Reasoning string `json:"reasoning,omitempty"`
}

// Result is one judged item. Metadata carries the fallback marker and
// failure classification when the judge could not complete.
type Result struct {
	Score     float64             `json:"score"`
	Reasoning string              `json:"reasoning"`
	PerTool   []PerToolAssessment `json:"perTool,omitempty"`
	Metadata  map[string]any      `json:"metadata,omitempty"`
}

// Fallback reports whether this result carries the neutral fallback score.
func (r *Result) Fallback() bool {
	if r.Metadata == nil {
		return false
	}
	fallback, _ := r.Metadata["fallback"].(bool)
	return fallback
}

// Config configures a Judge.
type Config struct {
	// BaseURL of the judge responses endpoint, without the /responses
	// suffix.
	BaseURL string

	// APIKey is sent as a bearer token when non-empty.
	APIKey string

	// Model used when the run parameters leave model unset.
	Model string

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client

	// CacheSize bounds the verdict cache. Zero uses a default; negative
	// disables caching.
	CacheSize int
}

// Judge evaluates items by delegating to an external judge model.
type Judge struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	cache      *lru.Cache[string, Result]
	tracer     trace.Tracer
}

// New creates a Judge. The cache keys on model plus prompt, so re-running a
// dataset against an unchanged judge configuration does not re-bill
// identical items.
func New(cfg Config) *Judge {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	j := &Judge{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: client,
		tracer:     telemetry.Tracer(),
	}

	size := cfg.CacheSize
	if size == 0 {
		size = defaultCacheSize
	}
	if size > 0 {
		// lru.New only fails on a non-positive size.
		j.cache, _ = lru.New[string, Result](size)
	}
	return j
}

// Evaluate judges one item. It always returns a result: a recovered failure
// surfaces as the fallback score with errorType and errorDetails in the
// metadata, never as an error to the caller.
func (j *Judge) Evaluate(ctx context.Context, item evaluation.Item, params evaluation.Parameters) *Result {
	model := params.Model
	if model == "" {
		model = j.model
	}

	ctx, span := j.tracer.Start(ctx, "judge.Evaluate",
		trace.WithAttributes(
			attribute.String("eval.item_id", item.ID),
			attribute.String("gen_ai.request.model", model),
		))
	defer span.End()

	prompt := buildPrompt(item, params)

	key := cacheKey(model, prompt)
	if j.cache != nil {
		if cached, ok := j.cache.Get(key); ok {
			span.SetAttributes(attribute.Bool("eval.judge.cache_hit", true))
			return &cached
		}
	}

	text, statusCode, err := j.callJudge(ctx, responsesRequest{
		Model:       model,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
		Input: []message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
	})
	telemetry.LogJudgeCall(ctx, model, prompt, text, statusCode)
	if err != nil {
		errType := ErrorTypeAPI
		if statusCode >= 200 && statusCode < 300 {
			// The endpoint answered; its payload did not.
			errType = ErrorTypeParse
		}
		return fallbackResult(errType, err.Error())
	}

	v, err := parseVerdict(text)
	if err != nil {
		return fallbackResult(ErrorTypeParse, err.Error())
	}

	result := &Result{
		Score:     *v.Score,
		Reasoning: v.Reasoning,
		PerTool:   v.PerTool,
	}
	if j.cache != nil {
		j.cache.Add(key, *result)
	}
	return result
}

func fallbackResult(errType, details string) *Result {
	return &Result{
		Score:     FallbackScore,
		Reasoning: "Judge evaluation could not complete; neutral fallback score applied.",
		Metadata: map[string]any{
			"fallback":     true,
			"errorType":    errType,
			"errorDetails": details,
		},
	}
}

func cacheKey(model, prompt string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + prompt))
	return hex.EncodeToString(sum[:])
}
