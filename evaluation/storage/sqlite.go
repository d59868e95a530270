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

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agentdash/evalengine/evaluation"
)

// runRecord is the persisted form of an evaluation run.
type runRecord struct {
	ID          string `gorm:"primaryKey"`
	DatasetID   string `gorm:"index"`
	AgentID     string `gorm:"index"`
	Method      string
	Name        string
	Description string
	Status      string
	Results     RawJSON
	Metadata    JSONMap
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

func (runRecord) TableName() string { return "evaluation_runs" }

// itemRecord is one evaluatable dataset record (data point or log). The
// metadata column keeps the loosely-typed storage shape; normalization
// happens on read.
type itemRecord struct {
	ID        string `gorm:"primaryKey"`
	DatasetID string `gorm:"index"`
	Kind      string `gorm:"index"`
	Metadata  JSONMap
	CreatedAt time.Time
}

func (itemRecord) TableName() string { return "evaluation_items" }

// outputRecord is one persisted per-item evaluation output.
type outputRecord struct {
	ID        string `gorm:"primaryKey"`
	RunID     string `gorm:"index"`
	ItemID    string
	Kind      string
	Score     float64
	Reason    string
	Metadata  JSONMap
	CreatedAt time.Time
}

func (outputRecord) TableName() string { return "evaluation_outputs" }

// SQLiteConnector persists runs, items and outputs in a SQLite database.
// It is the durable owner of run records across process boundaries.
type SQLiteConnector struct {
	db *gorm.DB
}

// NewSQLiteConnector opens (or creates) a SQLite database at path and
// migrates the engine's tables. Use ":memory:" for an ephemeral database.
func NewSQLiteConnector(path string) (*SQLiteConnector, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.AutoMigrate(&runRecord{}, &itemRecord{}, &outputRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &SQLiteConnector{db: db}, nil
}

// SaveItem stores one evaluatable record for later retrieval. The dashboard
// layer normally owns dataset ingestion; this is here for the CLI and tests.
func (s *SQLiteConnector) SaveItem(ctx context.Context, datasetID string, kind evaluation.ItemKind, id string, metadata map[string]any) error {
	if id == "" {
		id = uuid.NewString()
	}
	rec := itemRecord{
		ID:        id,
		DatasetID: datasetID,
		Kind:      string(kind),
		Metadata:  JSONMap(metadata),
		CreatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

// CreateEvaluationRun persists a new run record.
func (s *SQLiteConnector) CreateEvaluationRun(ctx context.Context, run *evaluation.EvaluationRun) (*evaluation.EvaluationRun, error) {
	if run == nil {
		return nil, evaluation.ErrInvalidInput
	}

	rec, err := toRunRecord(run)
	if err != nil {
		return nil, err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, evaluation.ErrAlreadyExists
		}
		return nil, fmt.Errorf("failed to create evaluation run: %w", err)
	}
	return fromRunRecord(rec)
}

// UpdateEvaluationRun applies a partial update to a run.
func (s *SQLiteConnector) UpdateEvaluationRun(ctx context.Context, id string, update evaluation.RunUpdate) (*evaluation.EvaluationRun, error) {
	var rec runRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, evaluation.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load evaluation run: %w", err)
	}

	if update.Status != nil {
		rec.Status = string(*update.Status)
	}
	if update.Results != nil {
		data, err := json.Marshal(update.Results)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal results: %w", err)
		}
		rec.Results = RawJSON(data)
	}
	if update.CompletedAt != nil {
		completed := *update.CompletedAt
		rec.CompletedAt = &completed
	}
	rec.UpdatedAt = time.Now()

	if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return nil, fmt.Errorf("failed to update evaluation run: %w", err)
	}
	return fromRunRecord(&rec)
}

// GetEvaluationRuns returns the runs matching the filter, in creation
// order.
func (s *SQLiteConnector) GetEvaluationRuns(ctx context.Context, filter evaluation.RunFilter) ([]evaluation.EvaluationRun, error) {
	// rowid keeps insertion order even when timestamps collide.
	q := s.db.WithContext(ctx).Model(&runRecord{}).Order("rowid")
	if filter.ID != "" {
		q = q.Where("id = ?", filter.ID)
	}
	if filter.DatasetID != "" {
		q = q.Where("dataset_id = ?", filter.DatasetID)
	}
	if filter.AgentID != "" {
		q = q.Where("agent_id = ?", filter.AgentID)
	}

	var recs []runRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list evaluation runs: %w", err)
	}

	runs := make([]evaluation.EvaluationRun, 0, len(recs))
	for i := range recs {
		run, err := fromRunRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, nil
}

// GetDataPoints returns the normalized data points of a dataset.
func (s *SQLiteConnector) GetDataPoints(ctx context.Context, datasetID string, opts evaluation.QueryOptions) ([]evaluation.Item, error) {
	return s.getItems(ctx, datasetID, evaluation.KindDataPoint, opts)
}

// GetDatasetLogs returns the normalized logs of a dataset.
func (s *SQLiteConnector) GetDatasetLogs(ctx context.Context, datasetID string, opts evaluation.QueryOptions) ([]evaluation.Item, error) {
	return s.getItems(ctx, datasetID, evaluation.KindLog, opts)
}

func (s *SQLiteConnector) getItems(ctx context.Context, datasetID string, kind evaluation.ItemKind, opts evaluation.QueryOptions) ([]evaluation.Item, error) {
	q := s.db.WithContext(ctx).
		Where("dataset_id = ? AND kind = ?", datasetID, string(kind)).
		Order("rowid")
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}

	var recs []itemRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	items := make([]evaluation.Item, 0, len(recs))
	for _, rec := range recs {
		items = append(items, evaluation.NormalizeItem(rec.ID, kind, map[string]any(rec.Metadata)))
	}
	return items, nil
}

// CreateDataPointOutput persists one per-data-point output.
func (s *SQLiteConnector) CreateDataPointOutput(ctx context.Context, output *evaluation.ItemOutput) (*evaluation.ItemOutput, error) {
	return s.createOutput(ctx, output, evaluation.KindDataPoint)
}

// CreateLogOutput persists one per-log output.
func (s *SQLiteConnector) CreateLogOutput(ctx context.Context, output *evaluation.ItemOutput) (*evaluation.ItemOutput, error) {
	return s.createOutput(ctx, output, evaluation.KindLog)
}

func (s *SQLiteConnector) createOutput(ctx context.Context, output *evaluation.ItemOutput, kind evaluation.ItemKind) (*evaluation.ItemOutput, error) {
	if output == nil {
		return nil, evaluation.ErrInvalidInput
	}

	rec := outputRecord{
		ID:        output.ID,
		RunID:     output.RunID,
		ItemID:    output.ItemID,
		Kind:      string(kind),
		Score:     output.Score,
		Reason:    output.Reason,
		Metadata:  JSONMap(output.Metadata),
		CreatedAt: time.Now(),
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("failed to create output: %w", err)
	}

	stored := *output
	stored.ID = rec.ID
	stored.CreatedAt = rec.CreatedAt
	return &stored, nil
}

func toRunRecord(run *evaluation.EvaluationRun) (*runRecord, error) {
	rec := &runRecord{
		ID:          run.ID,
		DatasetID:   run.DatasetID,
		AgentID:     run.AgentID,
		Method:      string(run.Method),
		Name:        run.Name,
		Description: run.Description,
		Status:      string(run.Status),
		Metadata:    JSONMap(run.Metadata),
		CreatedAt:   run.CreatedAt,
		UpdatedAt:   run.UpdatedAt,
		CompletedAt: run.CompletedAt,
	}
	if run.Results != nil {
		data, err := json.Marshal(run.Results)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal results: %w", err)
		}
		rec.Results = RawJSON(data)
	}
	return rec, nil
}

func fromRunRecord(rec *runRecord) (*evaluation.EvaluationRun, error) {
	run := &evaluation.EvaluationRun{
		ID:          rec.ID,
		DatasetID:   rec.DatasetID,
		AgentID:     rec.AgentID,
		Method:      evaluation.Method(rec.Method),
		Name:        rec.Name,
		Description: rec.Description,
		Status:      evaluation.RunStatus(rec.Status),
		Metadata:    map[string]any(rec.Metadata),
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
		CompletedAt: rec.CompletedAt,
	}
	if len(rec.Results) > 0 {
		var results evaluation.RunResults
		if err := json.Unmarshal(rec.Results, &results); err != nil {
			return nil, fmt.Errorf("failed to unmarshal results: %w", err)
		}
		run.Results = &results
	}
	return run, nil
}
