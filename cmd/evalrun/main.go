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

// Command evalrun runs one evaluation from a YAML request file against a
// SQLite-backed dataset and prints the finalized run as JSON.
//
// Example request file:
//
//	agent_id: support-agent
//	dataset_id: regression-set-1
//	evaluation_method: TOOL_CORRECTNESS
//	name: nightly tool correctness
//	parameters:
//	  threshold: 0.8
//	  should_consider_ordering: true
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/agentdash/evalengine/evaluation"
	"github.com/agentdash/evalengine/evaluation/judge"
	"github.com/agentdash/evalengine/evaluation/runner"
	"github.com/agentdash/evalengine/evaluation/storage"
	"github.com/agentdash/evalengine/internal/telemetry"
)

type evalrunFlags struct {
	requestPath string
	dbPath      string
	judgeURL    string
	judgeKey    string
	judgeModel  string
}

var flags evalrunFlags

// requestFile is the YAML shape of a run request. Parameters stay
// loosely typed so they pass through schema validation the same way a
// dashboard payload would.
type requestFile struct {
	AgentID     string         `yaml:"agent_id"`
	DatasetID   string         `yaml:"dataset_id"`
	Method      string         `yaml:"evaluation_method"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Parameters  map[string]any `yaml:"parameters"`
}

var rootCmd = &cobra.Command{
	Use:   "evalrun",
	Short: "Runs one agent evaluation and prints the finalized run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.Flags().StringVarP(&flags.requestPath, "request", "r", "", "Path to the YAML request file (required)")
	rootCmd.Flags().StringVarP(&flags.dbPath, "db", "d", "evalengine.db", "Path to the SQLite database")
	rootCmd.Flags().StringVar(&flags.judgeURL, "judge-url", os.Getenv("AGENTDASH_JUDGE_URL"), "Base URL of the LLM judge API")
	rootCmd.Flags().StringVar(&flags.judgeKey, "judge-key", os.Getenv("AGENTDASH_JUDGE_API_KEY"), "API key for the LLM judge")
	rootCmd.Flags().StringVar(&flags.judgeModel, "judge-model", "gpt-4o-mini", "Default judge model")
	_ = rootCmd.MarkFlagRequired("request")
}

func run(ctx context.Context) error {
	req, err := loadRequest(flags.requestPath)
	if err != nil {
		return err
	}

	// Exporters engage only when the OTEL_EXPORTER_OTLP_* environment
	// variables are set.
	providers, err := telemetry.Setup(ctx, "evalengine")
	if err != nil {
		return err
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintln(os.Stderr, "telemetry shutdown:", err)
		}
	}()

	store, err := storage.NewSQLiteConnector(flags.dbPath)
	if err != nil {
		return err
	}

	opts := []runner.Option{}
	if req.Method.UsesJudge() {
		if flags.judgeURL == "" {
			return fmt.Errorf("method %s needs a judge, set --judge-url", req.Method)
		}
		opts = append(opts, runner.WithJudge(judge.New(judge.Config{
			BaseURL: flags.judgeURL,
			APIKey:  flags.judgeKey,
			Model:   flags.judgeModel,
		})))
	}

	finished, err := runner.New(store, opts...).Evaluate(ctx, req)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(finished, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if finished.Results != nil && finished.Results.FailedCount > 0 {
		os.Exit(1)
	}
	return nil
}

func loadRequest(path string) (*evaluation.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request file: %w", err)
	}

	var file requestFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse request file: %w", err)
	}

	if err := evaluation.ValidateParameters(file.Parameters); err != nil {
		return nil, err
	}
	params, err := evaluation.DecodeParameters(file.Parameters)
	if err != nil {
		return nil, err
	}

	return &evaluation.Request{
		AgentID:     file.AgentID,
		DatasetID:   file.DatasetID,
		Method:      evaluation.Method(file.Method),
		Parameters:  params,
		Name:        file.Name,
		Description: file.Description,
	}, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
