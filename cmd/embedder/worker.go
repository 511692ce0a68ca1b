package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/bcgov/epic-search-embedder/internal/config"
	"github.com/bcgov/epic-search-embedder/internal/events"
	"github.com/bcgov/epic-search-embedder/internal/gcpclient"
	"github.com/bcgov/epic-search-embedder/internal/imageanalysis"
	"github.com/bcgov/epic-search-embedder/internal/model"
	"github.com/bcgov/epic-search-embedder/internal/ocr"
	"github.com/bcgov/epic-search-embedder/internal/pipeline"
	"github.com/bcgov/epic-search-embedder/internal/repair"
	"github.com/bcgov/epic-search-embedder/internal/repository"
	"github.com/bcgov/epic-search-embedder/internal/service"
)

// runWorker builds the Document Processor's full dependency set, processes
// exactly one DocumentTask read as JSON from stdin, and writes the resulting
// WorkerResult as JSON to stdout. It is the `<binary> worker` side of the
// dispatcher's os/exec self-reinvocation (SPEC_FULL.md §12.8); it always
// returns 0 unless it cannot even reach the point of producing a
// WorkerResult, since internal/pipeline.Process already folds every
// processing failure into that result rather than a Go error.
func runWorker(args []string) int {
	ctx := context.Background()

	var task model.DocumentTask
	if err := json.NewDecoder(os.Stdin).Decode(&task); err != nil {
		slog.Error("worker: decode task from stdin", "error", err)
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("worker: load config", "error", err)
		return 1
	}

	deps, cleanup, err := buildPipelineDependencies(ctx, cfg)
	if err != nil {
		slog.Error("worker: build dependencies", "error", err)
		return 1
	}
	defer cleanup()

	proc := pipeline.New(deps)
	result := proc.Process(ctx, task, 0)

	if err := json.NewEncoder(os.Stdout).Encode(result); err != nil {
		slog.Error("worker: encode result to stdout", "error", err)
		return 1
	}
	return 0
}

// buildPipelineDependencies wires every collaborator a worker process needs
// for exactly one document: its own small connection pool (spec §9), the
// GCS/Document AI/Vertex AI adapters, and the pure-Go services built on top
// of them. The returned cleanup func stops the completion-event publisher
// and closes the pool; the storage, embedding and Document AI clients are
// not closed by it.
func buildPipelineDependencies(ctx context.Context, cfg *config.Config) (pipeline.Dependencies, func(), error) {
	pool, err := repository.NewWorkerPool(ctx, cfg.DatabaseURL, repository.WorkerPoolConfig{
		WorkerID:           fmt.Sprintf("%d", os.Getpid()),
		MaxConns:           int32(cfg.WorkerPoolMaxConns),
		StatementTimeoutMs: cfg.WorkerStatementTimeoutMs,
		LockTimeoutMs:      cfg.WorkerLockTimeoutMs,
	})
	if err != nil {
		return pipeline.Dependencies{}, nil, fmt.Errorf("open worker pool: %w", err)
	}

	storage, err := gcpclient.NewStorageAdapter(ctx)
	if err != nil {
		pool.Close()
		return pipeline.Dependencies{}, nil, fmt.Errorf("open storage adapter: %w", err)
	}

	embeddingAdapter, err := gcpclient.NewEmbeddingAdapter(ctx, cfg.GCPProject, cfg.EmbeddingLocation, cfg.EmbeddingModel)
	if err != nil {
		pool.Close()
		return pipeline.Dependencies{}, nil, fmt.Errorf("open embedding adapter: %w", err)
	}

	var docAI ocr.DocAIClient
	if cfg.OCRProvider == "documentai" {
		docAI, err = gcpclient.NewDocumentAIAdapter(ctx, cfg.GCPProject, cfg.DocAILocation, cfg.DocAIProcessorID)
		if err != nil {
			pool.Close()
			return pipeline.Dependencies{}, nil, fmt.Errorf("open document ai adapter: %w", err)
		}
	}
	ocrProvider, err := ocr.NewProvider(cfg.OCRProvider, 300, "eng", os.TempDir(), docAI)
	if err != nil {
		pool.Close()
		return pipeline.Dependencies{}, nil, fmt.Errorf("build ocr provider: %w", err)
	}

	var imageProvider imageanalysis.Provider
	if cfg.ImageAnalysisEnabled && cfg.AzureVisionEndpoint != "" && cfg.AzureVisionKey != "" {
		imageProvider = imageanalysis.NewAzureVisionProvider(cfg.AzureVisionEndpoint, cfg.AzureVisionKey, cfg.ImageAnalysisConfidenceThreshold)
	}

	tagExtractor, err := service.NewTagExtractorService(ctx, embeddingAdapter, 0)
	if err != nil {
		pool.Close()
		return pipeline.Dependencies{}, nil, fmt.Errorf("build tag extractor: %w", err)
	}

	publisher, err := events.New(ctx, cfg.GCPProject, cfg.PubSubTopic)
	if err != nil {
		slog.Warn("worker: completion event publisher unavailable, continuing without it", "error", err)
		publisher = nil
	}

	projects := repository.NewProjectRepo(pool)
	docs := repository.NewDocumentRepo(pool)
	chunks := repository.NewChunkRepo(pool)
	logs := repository.NewProcessingLogRepo(pool)
	repairSvc := repair.New(logs, docs, chunks)

	deps := pipeline.Dependencies{
		Storage:   storage,
		Extractor: service.NewExtractorService(),
		Validator: service.NewValidatorService(ocrProvider, imageProvider),
		Chunker:   service.NewChunkerService(cfg.ChunkSizeTokens, float64(cfg.ChunkOverlapPercent)/100),
		Embedder:  service.NewEmbedderService(embeddingAdapter, cfg.EmbeddingDimensions),
		Tags:      tagExtractor,
		Keywords:  service.NewKeywordExtractorService(cfg.KeywordVariant),
		Projects:  projects,
		Documents: docs,
		Repair:    repairSvc,
		Events:    publisher,
		Bucket:    cfg.GCSBucketName,
		TempDir:   os.TempDir(),
	}

	cleanup := func() {
		publisher.Stop()
		pool.Close()
	}
	return deps, cleanup, nil
}
