// Package pipeline implements the Document Processor (C11): the eleven-step
// sequence of spec §4.4 run inside the `worker` subcommand subprocess for
// exactly one DocumentTask, grounded on the original `loader.py`'s
// `load_data`/`chunk_and_embed_pages` and `pdf_validation.py`.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bcgov/epic-search-embedder/internal/events"
	"github.com/bcgov/epic-search-embedder/internal/gcpclient"
	"github.com/bcgov/epic-search-embedder/internal/model"
	"github.com/bcgov/epic-search-embedder/internal/repair"
	"github.com/bcgov/epic-search-embedder/internal/repository"
	"github.com/bcgov/epic-search-embedder/internal/service"
)

// Dependencies are the collaborators a Processor needs; all are safe to
// build once per worker process and reuse across its single document.
type Dependencies struct {
	Storage   *gcpclient.StorageAdapter
	Extractor *service.ExtractorService
	Validator *service.ValidatorService
	Chunker   *service.ChunkerService
	Embedder  *service.EmbedderService
	Tags      *service.TagExtractorService
	Keywords  *service.KeywordExtractorService
	Projects  *repository.ProjectRepo
	Documents *repository.DocumentRepo
	Repair    *repair.Service
	Events    *events.Publisher // optional; nil disables completion events
	Bucket    string
	TempDir   string
}

// Processor runs the Document Processor sequence for one DocumentTask.
type Processor struct {
	deps Dependencies
}

// New creates a Processor.
func New(deps Dependencies) *Processor {
	return &Processor{deps: deps}
}

// Process runs the full sequence of spec §4.4 for one task and returns the
// WorkerResult the `worker` subcommand writes to stdout. It never returns an
// error: every failure path is captured as a ProcessingLog row and reflected
// in the returned WorkerResult, matching the worker-boundary contract of
// §4.4's final paragraph ("propagate nothing further than the worker
// boundary").
func (p *Processor) Process(ctx context.Context, task model.DocumentTask, pageCap int) model.WorkerResult {
	stages := map[string]int64{}
	docID := task.CatalogDoc.ID
	projectID := task.ProjectID

	// Step 1: pre-filter by key.
	decision := service.Prefilter(task.ObjectKey)
	if decision.ShouldSkip {
		return p.skip(ctx, task, decision.SkipReason, stages)
	}

	// Step 2: optional pre-cleanup for a retry run.
	if task.IsRetry {
		if err := p.deps.Repair.CleanupDocumentForRetry(ctx, projectID, docID); err != nil {
			return p.fail(ctx, task, fmt.Errorf("pre-cleanup for retry: %w", err), stages)
		}
	}

	// Step 3: fetch payload to a temp file.
	fetchStart := time.Now()
	localPath, err := p.fetch(ctx, task.ObjectKey)
	stages["fetch_ms"] = time.Since(fetchStart).Milliseconds()
	if err != nil {
		return p.fail(ctx, task, fmt.Errorf("fetch: %w", err), stages)
	}
	defer os.Remove(localPath) // step 11: unconditional temp-file cleanup

	byteCount, _ := fileSize(localPath)

	// Step 4: validate and obtain the page sequence.
	validateStart := time.Now()
	outcome, extractionMethod, ocrMetrics, err := p.validateAndExtract(ctx, task.ObjectKey, localPath)
	stages["validate_ms"] = time.Since(validateStart).Milliseconds()
	if err != nil {
		return p.fail(ctx, task, fmt.Errorf("validate: %w", err), stages)
	}
	if outcome.Kind == service.Skip {
		return p.skip(ctx, task, outcome.Reason, stages)
	}
	if outcome.Kind == service.Failure {
		return p.fail(ctx, task, fmt.Errorf("validation failed: %s", outcome.Reason), stages)
	}

	pages := outcome.Pages
	if len(pages) == 0 {
		return p.skip(ctx, task, "no_readable_text", stages)
	}

	// Step 5: page-cap enforcement.
	if pageCap > 0 && len(pages) > pageCap {
		return p.skip(ctx, task, "page_cap_exceeded", stages)
	}

	// Step 6: chunk and embed.
	chunkStart := time.Now()
	rawChunks, err := p.deps.Chunker.Chunk(ctx, pages)
	if err != nil {
		return p.fail(ctx, task, fmt.Errorf("chunk: %w", err), stages)
	}
	texts := make([]string, len(rawChunks))
	for i, c := range rawChunks {
		texts[i] = c.Content
	}
	vectors, err := p.deps.Embedder.Embed(ctx, texts)
	if err != nil {
		return p.fail(ctx, task, fmt.Errorf("embed chunks: %w", err), stages)
	}
	stages["chunk_embed_ms"] = time.Since(chunkStart).Milliseconds()

	tagInputs := make([]service.ChunkTagInput, len(rawChunks))
	for i, c := range rawChunks {
		tagInputs[i] = service.ChunkTagInput{ChunkID: int64(i), Text: c.Content, Embedding: vectors[i]}
	}

	// Step 7: keyword extraction.
	keywordStart := time.Now()
	chunkKeywords, docKeywords := p.deps.Keywords.ExtractForChunks(tagInputs)
	stages["keywords_ms"] = time.Since(keywordStart).Milliseconds()

	// Step 8: tag extraction.
	tagStart := time.Now()
	chunkTags, err := p.deps.Tags.ExtractForChunks(ctx, tagInputs)
	if err != nil {
		return p.fail(ctx, task, fmt.Errorf("extract tags: %w", err), stages)
	}
	stages["tags_ms"] = time.Since(tagStart).Milliseconds()
	docTags := service.DocumentTags(chunkTags)

	var baseMeta map[string]string
	_ = json.Unmarshal(task.BaseMetadata, &baseMeta)

	var headingSet []string
	seenHeadings := map[string]struct{}{}
	chunks := make([]model.DocumentChunk, len(rawChunks))
	for i, raw := range rawChunks {
		for _, h := range raw.Headings {
			if h == "" {
				continue
			}
			if _, ok := seenHeadings[h]; !ok {
				seenHeadings[h] = struct{}{}
				headingSet = append(headingSet, h)
			}
		}
		meta := model.ChunkMetadata{
			PageNumber:   raw.PageNumber,
			Headings:     raw.Headings,
			S3Key:        task.ObjectKey,
			Tags:         chunkTags[i].Tags,
			Keywords:     chunkKeywords[i].Keywords,
			DocumentName: baseMeta["document_name"],
			ProjectID:    projectID,
		}
		metaJSON, _ := json.Marshal(meta)
		chunks[i] = model.DocumentChunk{
			DocumentID: docID,
			ProjectID:  projectID,
			Content:    raw.Content,
			Metadata:   metaJSON,
			Embedding:  vectors[i],
		}
	}

	// Step 9: document-level embedding.
	docEmbedStart := time.Now()
	docText := strings.Join(append(append(append([]string{}, docTags...), docKeywords...), headingSet...), " ")
	if name := baseMeta["document_name"]; name != "" {
		docText = name + " " + docText
	}
	if docText == "" {
		docText = task.ObjectKey
	}
	docVector, err := p.deps.Embedder.EmbedOne(ctx, docText)
	if err != nil {
		return p.fail(ctx, task, fmt.Errorf("embed document: %w", err), stages)
	}
	stages["document_embed_ms"] = time.Since(docEmbedStart).Milliseconds()

	// Step 10: persist.
	persistStart := time.Now()
	if err := p.deps.Projects.Upsert(ctx, model.Project{ProjectID: projectID, ProjectName: task.ProjectName, CreatedAt: time.Now()}); err != nil {
		return p.fail(ctx, task, fmt.Errorf("upsert project: %w", err), stages)
	}

	docMetaJSON, _ := json.Marshal(baseMeta)
	doc := model.Document{
		DocumentID: docID,
		ProjectID:  projectID,
		Tags:       docTags,
		Keywords:   docKeywords,
		Headings:   headingSet,
		Metadata:   docMetaJSON,
		Embedding:  docVector,
		CreatedAt:  time.Now(),
	}

	metrics := model.ProcessingMetrics{
		DocumentInfo:   model.DocumentInfoMetrics{DocumentName: baseMeta["document_name"]},
		ExtractionKind: extractionMethod,
		OCRProcessing:  ocrMetrics,
		PageCount:      len(pages),
		ByteCount:      byteCount,
		StageTimingsMs: stages,
	}
	metricsJSON, _ := json.Marshal(metrics)
	log := model.ProcessingLog{
		ProjectID:   projectID,
		DocumentID:  docID,
		Status:      model.StatusSuccess,
		ProcessedAt: time.Now(),
		Metrics:     metricsJSON,
	}

	if err := p.deps.Documents.PersistSuccess(ctx, doc, chunks, log); err != nil {
		return p.fail(ctx, task, fmt.Errorf("persist: %w", err), stages)
	}
	stages["persist_ms"] = time.Since(persistStart).Milliseconds()

	p.deps.Events.Publish(ctx, events.CompletionEvent{ProjectID: projectID, DocumentID: docID, Status: model.StatusSuccess})
	return model.WorkerResult{ProjectID: projectID, DocumentID: docID, Status: model.StatusSuccess, PageCount: len(pages)}
}

// fetch downloads the object to a worker-scoped temp file (step 3).
func (p *Processor) fetch(ctx context.Context, objectKey string) (string, error) {
	dir := p.deps.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	ext := filepath.Ext(objectKey)
	localPath := filepath.Join(dir, uuid.NewString()+ext)
	if err := p.deps.Storage.DownloadToFile(ctx, p.deps.Bucket, objectKey, localPath); err != nil {
		return "", err
	}
	return localPath, nil
}

// validateAndExtract implements step 4, branching by file type per §4.5.
func (p *Processor) validateAndExtract(ctx context.Context, objectKey, localPath string) (service.ValidationOutcome, string, *model.OCRMetrics, error) {
	switch service.ClassifyFile(objectKey) {
	case service.FileTypePDF:
		doc, err := p.deps.Extractor.LoadPDFDoc(ctx, localPath)
		if err != nil {
			return service.ValidationOutcome{}, "", nil, fmt.Errorf("load pdf: %w", err)
		}
		outcome := p.deps.Validator.ValidatePDF(ctx, objectKey, doc, localPath, "", "application/pdf")
		if outcome.Kind != service.Proceed {
			return outcome, "", nil, nil
		}
		if outcome.Pages != nil {
			return outcome, "ocr", ocrMetricsFrom(outcome), nil
		}
		if pages, err := p.deps.Extractor.ExtractPDFMarkdown(ctx, localPath); err == nil {
			return service.ValidationOutcome{Kind: service.Proceed, Pages: pages}, "native_pdf_markdown", nil, nil
		}
		pages, err := p.deps.Extractor.ExtractPDFNative(ctx, localPath)
		if err != nil {
			return service.ValidationOutcome{}, "", nil, fmt.Errorf("extract native pdf: %w", err)
		}
		return service.ValidationOutcome{Kind: service.Proceed, Pages: pages}, "native_pdf", nil, nil

	case service.FileTypeImage:
		outcome := p.deps.Validator.ValidateImage(ctx, localPath, "", mimeTypeFor(objectKey), objectKey)
		return outcome, "ocr", ocrMetricsFrom(outcome), nil

	case service.FileTypeWord:
		data, err := os.ReadFile(localPath)
		if err != nil {
			return service.ValidationOutcome{}, "", nil, fmt.Errorf("read word file: %w", err)
		}
		pages, err := p.deps.Extractor.ExtractWord(data)
		if err != nil {
			return service.ValidationOutcome{}, "", nil, fmt.Errorf("extract word: %w", err)
		}
		return service.ValidationOutcome{Kind: service.Proceed, Pages: pages}, "docx", nil, nil

	case service.FileTypeText:
		data, err := os.ReadFile(localPath)
		if err != nil {
			return service.ValidationOutcome{}, "", nil, fmt.Errorf("read text file: %w", err)
		}
		pages := p.deps.Extractor.ExtractPlainText(data)
		return service.ValidationOutcome{Kind: service.Proceed, Pages: pages}, "plain_text", nil, nil

	default:
		return service.ValidationOutcome{Kind: service.Skip, Reason: "unsupported_file_type"}, "", nil, nil
	}
}

func ocrMetricsFrom(outcome service.ValidationOutcome) *model.OCRMetrics {
	if outcome.Kind != service.Proceed || len(outcome.Pages) == 0 {
		return nil
	}
	method, _ := outcome.Pages[0].Metadata["extraction_method"]
	return &model.OCRMetrics{
		Method:         method,
		Attempted:      true,
		Successful:     true,
		PagesProcessed: len(outcome.Pages),
	}
}

func mimeTypeFor(objectKey string) string {
	switch strings.ToLower(filepath.Ext(objectKey)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".bmp":
		return "image/bmp"
	case ".gif":
		return "image/gif"
	default:
		return "application/octet-stream"
	}
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (p *Processor) skip(ctx context.Context, task model.DocumentTask, reason string, stages map[string]int64) model.WorkerResult {
	metrics, _ := json.Marshal(model.ProcessingMetrics{SkipReason: reason, StageTimingsMs: stages})
	log := model.ProcessingLog{
		ProjectID:   task.ProjectID,
		DocumentID:  task.CatalogDoc.ID,
		Status:      model.StatusSkipped,
		ProcessedAt: time.Now(),
		Metrics:     metrics,
	}
	if err := p.deps.Documents.PersistSkip(ctx, log); err != nil {
		return model.WorkerResult{ProjectID: task.ProjectID, DocumentID: task.CatalogDoc.ID, Status: model.StatusFailure, Error: err.Error()}
	}
	p.deps.Events.Publish(ctx, events.CompletionEvent{ProjectID: task.ProjectID, DocumentID: task.CatalogDoc.ID, Status: model.StatusSkipped})
	return model.WorkerResult{ProjectID: task.ProjectID, DocumentID: task.CatalogDoc.ID, Status: model.StatusSkipped}
}

func (p *Processor) fail(ctx context.Context, task model.DocumentTask, cause error, stages map[string]int64) model.WorkerResult {
	metrics, _ := json.Marshal(model.ProcessingMetrics{Error: cause.Error(), StageTimingsMs: stages})
	log := model.ProcessingLog{
		ProjectID:   task.ProjectID,
		DocumentID:  task.CatalogDoc.ID,
		Status:      model.StatusFailure,
		ProcessedAt: time.Now(),
		Metrics:     metrics,
	}
	_ = p.deps.Documents.PersistFailure(ctx, log)
	p.deps.Events.Publish(ctx, events.CompletionEvent{ProjectID: task.ProjectID, DocumentID: task.CatalogDoc.ID, Status: model.StatusFailure})
	return model.WorkerResult{ProjectID: task.ProjectID, DocumentID: task.CatalogDoc.ID, Status: model.StatusFailure, Error: cause.Error()}
}
