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

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = errors.New("evaluation: not found")

	// ErrAlreadyExists indicates the resource already exists.
	ErrAlreadyExists = errors.New("evaluation: already exists")

	// ErrInvalidInput indicates invalid input parameters.
	ErrInvalidInput = errors.New("evaluation: invalid input")
)

// RunUpdate is a partial update to an evaluation run. Nil fields are left
// untouched by the connector.
type RunUpdate struct {
	Status      *RunStatus
	Results     *RunResults
	CompletedAt *time.Time
}

// RunFilter narrows GetEvaluationRuns. Zero-valued fields match everything.
type RunFilter struct {
	ID        string
	DatasetID string
	AgentID   string
}

// QueryOptions controls item retrieval paging. A zero Limit means no limit.
type QueryOptions struct {
	Limit  int
	Offset int
}

// Connector defines the storage operations the engine consumes. The engine
// never implements persistence itself; implementations live in
// evaluation/storage or in the surrounding application.
type Connector interface {
	// CreateEvaluationRun persists a new run record and returns it with
	// storage-assigned fields (ID, timestamps) populated.
	CreateEvaluationRun(ctx context.Context, run *EvaluationRun) (*EvaluationRun, error)

	// UpdateEvaluationRun applies a partial update to an existing run.
	UpdateEvaluationRun(ctx context.Context, id string, update RunUpdate) (*EvaluationRun, error)

	// GetEvaluationRuns returns the runs matching the filter.
	GetEvaluationRuns(ctx context.Context, filter RunFilter) ([]EvaluationRun, error)

	// GetDataPoints returns the normalized data points of a dataset.
	GetDataPoints(ctx context.Context, datasetID string, opts QueryOptions) ([]Item, error)

	// GetDatasetLogs returns the normalized logs of a dataset.
	GetDatasetLogs(ctx context.Context, datasetID string, opts QueryOptions) ([]Item, error)

	// CreateDataPointOutput persists one per-data-point evaluation output.
	CreateDataPointOutput(ctx context.Context, output *ItemOutput) (*ItemOutput, error)

	// CreateLogOutput persists one per-log evaluation output.
	CreateLogOutput(ctx context.Context, output *ItemOutput) (*ItemOutput, error)
}
