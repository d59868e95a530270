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

// Package storage provides Connector implementations for the evaluation
// engine: an in-memory connector for testing and development, and a
// SQLite-backed connector for local persistence.
package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentdash/evalengine/evaluation"
)

// MemoryConnector is an in-memory storage connector. It is suitable for
// tests and dry runs; nothing survives the process.
type MemoryConnector struct {
	mu sync.RWMutex

	runs     map[string]*evaluation.EvaluationRun
	runOrder []string

	// dataPoints and logs map datasetID -> items in insertion order.
	dataPoints map[string][]evaluation.Item
	logs       map[string][]evaluation.Item

	dataPointOutputs []evaluation.ItemOutput
	logOutputs       []evaluation.ItemOutput
}

// NewMemoryConnector creates an empty in-memory connector.
func NewMemoryConnector() *MemoryConnector {
	return &MemoryConnector{
		runs:       make(map[string]*evaluation.EvaluationRun),
		dataPoints: make(map[string][]evaluation.Item),
		logs:       make(map[string][]evaluation.Item),
	}
}

// SeedDataPoints adds data points to a dataset. Intended for tests and the
// CLI's dry-run mode.
func (m *MemoryConnector) SeedDataPoints(datasetID string, items ...evaluation.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dataPoints[datasetID] = append(m.dataPoints[datasetID], items...)
}

// SeedLogs adds logs to a dataset.
func (m *MemoryConnector) SeedLogs(datasetID string, items ...evaluation.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[datasetID] = append(m.logs[datasetID], items...)
}

// DataPointOutputs returns the persisted data point outputs in write order.
func (m *MemoryConnector) DataPointOutputs() []evaluation.ItemOutput {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]evaluation.ItemOutput, len(m.dataPointOutputs))
	copy(out, m.dataPointOutputs)
	return out
}

// LogOutputs returns the persisted log outputs in write order.
func (m *MemoryConnector) LogOutputs() []evaluation.ItemOutput {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]evaluation.ItemOutput, len(m.logOutputs))
	copy(out, m.logOutputs)
	return out
}

// CreateEvaluationRun persists a new run record.
func (m *MemoryConnector) CreateEvaluationRun(ctx context.Context, run *evaluation.EvaluationRun) (*evaluation.EvaluationRun, error) {
	if run == nil {
		return nil, evaluation.ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *run
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if _, exists := m.runs[stored.ID]; exists {
		return nil, evaluation.ErrAlreadyExists
	}
	now := time.Now()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	m.runs[stored.ID] = &stored
	m.runOrder = append(m.runOrder, stored.ID)

	copied := stored
	return &copied, nil
}

// UpdateEvaluationRun applies a partial update to a run.
func (m *MemoryConnector) UpdateEvaluationRun(ctx context.Context, id string, update evaluation.RunUpdate) (*evaluation.EvaluationRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, exists := m.runs[id]
	if !exists {
		return nil, evaluation.ErrNotFound
	}

	if update.Status != nil {
		run.Status = *update.Status
	}
	if update.Results != nil {
		results := *update.Results
		run.Results = &results
	}
	if update.CompletedAt != nil {
		completed := *update.CompletedAt
		run.CompletedAt = &completed
	}
	run.UpdatedAt = time.Now()

	copied := *run
	return &copied, nil
}

// GetEvaluationRuns returns the runs matching the filter, in creation
// order.
func (m *MemoryConnector) GetEvaluationRuns(ctx context.Context, filter evaluation.RunFilter) ([]evaluation.EvaluationRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]evaluation.EvaluationRun, 0, len(m.runOrder))
	for _, id := range m.runOrder {
		run := m.runs[id]
		if filter.ID != "" && run.ID != filter.ID {
			continue
		}
		if filter.DatasetID != "" && run.DatasetID != filter.DatasetID {
			continue
		}
		if filter.AgentID != "" && run.AgentID != filter.AgentID {
			continue
		}
		matched = append(matched, *run)
	}
	return matched, nil
}

// GetDataPoints returns the data points of a dataset in insertion order.
func (m *MemoryConnector) GetDataPoints(ctx context.Context, datasetID string, opts evaluation.QueryOptions) ([]evaluation.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return page(m.dataPoints[datasetID], opts), nil
}

// GetDatasetLogs returns the logs of a dataset in insertion order.
func (m *MemoryConnector) GetDatasetLogs(ctx context.Context, datasetID string, opts evaluation.QueryOptions) ([]evaluation.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return page(m.logs[datasetID], opts), nil
}

// CreateDataPointOutput persists one per-data-point output.
func (m *MemoryConnector) CreateDataPointOutput(ctx context.Context, output *evaluation.ItemOutput) (*evaluation.ItemOutput, error) {
	return m.appendOutput(output, &m.dataPointOutputs)
}

// CreateLogOutput persists one per-log output.
func (m *MemoryConnector) CreateLogOutput(ctx context.Context, output *evaluation.ItemOutput) (*evaluation.ItemOutput, error) {
	return m.appendOutput(output, &m.logOutputs)
}

func (m *MemoryConnector) appendOutput(output *evaluation.ItemOutput, dest *[]evaluation.ItemOutput) (*evaluation.ItemOutput, error) {
	if output == nil {
		return nil, evaluation.ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *output
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.CreatedAt = time.Now()
	*dest = append(*dest, stored)

	copied := stored
	return &copied, nil
}

func page(items []evaluation.Item, opts evaluation.QueryOptions) []evaluation.Item {
	if opts.Offset >= len(items) {
		return []evaluation.Item{}
	}
	items = items[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	out := make([]evaluation.Item, len(items))
	copy(out, items)
	return out
}
