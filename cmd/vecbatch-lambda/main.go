// Copyright 2025 Poiesic Systems
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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/poiesic/vecbatch"
	"github.com/poiesic/vecbatch/ai"
	"github.com/poiesic/vecbatch/ingestion"
	"github.com/poiesic/vecbatch/source"
	"github.com/poiesic/vecbatch/storage/opensearch"
)

// Response is returned to the invoker.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

type opener func(ctx context.Context, event *ingestion.EventPayload) (*vecbatch.Database, error)

type handler struct {
	open   opener
	logger *slog.Logger
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	h := &handler{open: openDatabase, logger: logger}
	lambda.Start(h.Handle)
}

// openDatabase connects to the OpenSearch domain named by the event with
// SigV4 signing and embeds through Bedrock in the event's region.
func openDatabase(ctx context.Context, event *ingestion.EventPayload) (*vecbatch.Database, error) {
	aiCfg := ai.DefaultBedrockConfig()
	aiCfg.Region = event.Region
	aiCfg.Dimension = event.Dimension

	return vecbatch.NewDatabase(ctx, "",
		vecbatch.WithAIConfig(aiCfg),
		vecbatch.WithDatabaseLogger(slog.Default()),
		vecbatch.WithOpenSearch(opensearch.Config{
			Endpoint:       event.OpenSearchEndpoint,
			SigningService: opensearch.SigningServiceFor(event.OpenSearchEndpoint),
			Region:         event.Region,
			Timeout:        opensearch.DefaultTimeout,
		}),
	)
}

// Handle runs one ingestion. Failures are reported in the response body
// with status 500 rather than as invocation errors, so the event is not
// retried by the platform.
func (h *handler) Handle(ctx context.Context, event ingestion.EventPayload) (Response, error) {
	logger := h.logger.With("index", event.IndexName, "source", event.SourceRef())

	report, err := h.ingest(ctx, &event)
	if err != nil {
		logger.Error("ingest failed", "err", err)
		return respond(http.StatusInternalServerError, map[string]any{
			"error":   err.Error(),
			"message": "Ingest operation failed",
		}), nil
	}

	body := map[string]any{
		"run_id":            report.RunID,
		"s3_uri":            event.SourceRef(),
		"index_name":        report.Index,
		"rows_processed":    report.RowsProcessed,
		"rows_failed":       report.RowsFailed,
		"batches":           report.Batches,
		"failed_batches":    report.Failed,
		"documents_indexed": report.DocumentsIndexed,
		"documents_failed":  report.DocumentsFailed,
		"duration_seconds":  report.Duration.Seconds(),
	}
	if report.Failed > 0 {
		body["message"] = "Ingest operation finished with failed batches"
		body["failed_ranges"] = report.FailedRanges()
		body["failure_ratio"] = report.FailureRatio()
		logger.Warn("ingest finished with failed batches", "failed", report.Failed, "ratio", report.FailureRatio())
		return respond(http.StatusInternalServerError, body), nil
	}
	body["message"] = "Ingest operation completed successfully"
	logger.Info("ingest completed", "rows", report.RowsProcessed, "duration", report.Duration)
	return respond(http.StatusOK, body), nil
}

func (h *handler) ingest(ctx context.Context, event *ingestion.EventPayload) (*ingestion.Report, error) {
	cfg, err := event.ToConfig()
	if err != nil {
		return nil, err
	}

	src, err := source.Open(ctx, event.SourceRef(), source.Options{Region: event.Region})
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", event.SourceRef(), err)
	}

	db, err := h.open(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if cfg.CreateIndex && cfg.Dimension == 0 {
		if cfg.Dimension, err = db.EmbeddingDimension(ctx); err != nil {
			return nil, err
		}
	}

	pipeline, err := db.NewIngestionPipeline(src, cfg)
	if err != nil {
		return nil, err
	}
	return pipeline.Run(ctx)
}

func respond(status int, body map[string]any) Response {
	data, err := json.Marshal(body)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"error":%q}`, err.Error()))
	}
	return Response{StatusCode: status, Body: string(data)}
}
