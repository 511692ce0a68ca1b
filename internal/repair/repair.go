// Package repair implements the Repair Service (C12): it finds documents
// left in an inconsistent state by interrupted or partially-failed
// processing runs, and cleans them up so they can be safely reprocessed.
package repair

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bcgov/epic-search-embedder/internal/model"
	"github.com/bcgov/epic-search-embedder/internal/repository"
)

// analyzeBatchSize bounds how many rows each repair query fetches per call.
// Repair runs are offline/batch operations, not paginated API responses, so
// this is generous compared to the catalog client's page size.
const analyzeBatchSize = 5000

// Category names an inconsistency between a document's chunks, its document
// row, and its processing log.
type Category string

const (
	CategoryPartialFailure         Category = "partial_failure"
	CategoryIncompleteProcessing   Category = "incomplete_processing"
	CategoryOrphanedChunks         Category = "orphaned_chunks"
	CategoryInconsistentSuccess    Category = "inconsistent_success"
	CategoryMissingDocumentRecords Category = "missing_document_records"
)

// Candidate is one document flagged by Analyze, with enough identity to
// either clean it up or queue it for reprocessing.
type Candidate struct {
	ProjectID  string
	DocumentID string
	Category   Category
	ChunkCount int
}

// Analysis groups every inconsistency Analyze found by category, mirroring
// the report the Python original prints for operator review before a
// --repair run.
type Analysis struct {
	PartialFailures        []Candidate
	IncompleteProcessing   []Candidate
	OrphanedChunks         []Candidate
	InconsistentSuccess    []Candidate
	MissingDocumentRecords []Candidate
}

// Total returns the number of flagged documents across every category.
func (a Analysis) Total() int {
	return len(a.PartialFailures) + len(a.IncompleteProcessing) + len(a.OrphanedChunks) +
		len(a.InconsistentSuccess) + len(a.MissingDocumentRecords)
}

// CleanupSummary reports what a cleanup operation actually removed.
type CleanupSummary struct {
	DocumentsCleaned int64
	ChunksDeleted    int64
	DocumentsDeleted int64
	LogsDeleted      int64
}

// Service analyzes and repairs document-state inconsistencies across the
// documents, document_chunks and processing_logs tables.
type Service struct {
	logs   *repository.ProcessingLogRepo
	docs   *repository.DocumentRepo
	chunks *repository.ChunkRepo
}

// New creates a Service.
func New(logs *repository.ProcessingLogRepo, docs *repository.DocumentRepo, chunks *repository.ChunkRepo) *Service {
	return &Service{logs: logs, docs: docs, chunks: chunks}
}

// Analyze scans for every repair category, optionally scoped to a single
// project (empty string scans every project).
func (s *Service) Analyze(ctx context.Context, projectID string) (Analysis, error) {
	partial, err := s.logs.FindPartialFailures(ctx, analyzeBatchSize, 0)
	if err != nil {
		return Analysis{}, fmt.Errorf("repair.Analyze: partial failures: %w", err)
	}
	incomplete, err := s.logs.FindIncompleteProcessing(ctx, analyzeBatchSize, 0)
	if err != nil {
		return Analysis{}, fmt.Errorf("repair.Analyze: incomplete processing: %w", err)
	}
	orphaned, err := s.chunks.FindOrphaned(ctx, analyzeBatchSize, 0)
	if err != nil {
		return Analysis{}, fmt.Errorf("repair.Analyze: orphaned chunks: %w", err)
	}
	inconsistent, err := s.logs.FindInconsistentSuccess(ctx, analyzeBatchSize, 0)
	if err != nil {
		return Analysis{}, fmt.Errorf("repair.Analyze: inconsistent success: %w", err)
	}
	missing, err := s.logs.FindMissingDocumentRecords(ctx, analyzeBatchSize, 0)
	if err != nil {
		return Analysis{}, fmt.Errorf("repair.Analyze: missing document records: %w", err)
	}

	var a Analysis
	for _, ref := range partial {
		if projectID != "" && ref.ProjectID != projectID {
			continue
		}
		a.PartialFailures = append(a.PartialFailures, Candidate{ProjectID: ref.ProjectID, DocumentID: ref.DocumentID, Category: CategoryPartialFailure})
	}
	for _, d := range incomplete {
		if projectID != "" && d.ProjectID != projectID {
			continue
		}
		a.IncompleteProcessing = append(a.IncompleteProcessing, Candidate{ProjectID: d.ProjectID, DocumentID: d.DocumentID, Category: CategoryIncompleteProcessing, ChunkCount: d.ChunkCount})
	}
	for _, o := range orphaned {
		if projectID != "" && o.ProjectID != projectID {
			continue
		}
		a.OrphanedChunks = append(a.OrphanedChunks, Candidate{ProjectID: o.ProjectID, DocumentID: o.DocumentID, Category: CategoryOrphanedChunks, ChunkCount: o.ChunkCount})
	}
	for _, ref := range inconsistent {
		if projectID != "" && ref.ProjectID != projectID {
			continue
		}
		a.InconsistentSuccess = append(a.InconsistentSuccess, Candidate{ProjectID: ref.ProjectID, DocumentID: ref.DocumentID, Category: CategoryInconsistentSuccess})
	}
	for _, ref := range missing {
		if projectID != "" && ref.ProjectID != projectID {
			continue
		}
		a.MissingDocumentRecords = append(a.MissingDocumentRecords, Candidate{ProjectID: ref.ProjectID, DocumentID: ref.DocumentID, Category: CategoryMissingDocumentRecords})
	}
	return a, nil
}

// CandidatesForProcessing flattens the categories that warrant a cleanup +
// reprocess cycle. Orphaned chunks and missing document records are
// informational only — cleaning them up removes dangling rows, but there
// is no source document state worth re-running the pipeline over.
func CandidatesForProcessing(a Analysis) []Candidate {
	out := make([]Candidate, 0, len(a.PartialFailures)+len(a.IncompleteProcessing)+len(a.InconsistentSuccess))
	out = append(out, a.PartialFailures...)
	out = append(out, a.IncompleteProcessing...)
	out = append(out, a.InconsistentSuccess...)
	return out
}

// CleanupDocument removes all data for a document — chunks, document row
// and processing logs — ahead of a full reprocessing attempt. Runs on the
// Repair Service's dedicated connection (spec.md:224) with a transient
// connection-error retry.
func (s *Service) CleanupDocument(ctx context.Context, projectID, documentID string) error {
	_, err := withConnRetry(ctx, "repair.CleanupDocument", func() (struct{}, error) {
		return struct{}{}, s.docs.DeleteDocument(ctx, projectID, documentID)
	})
	if err != nil {
		return fmt.Errorf("repair.CleanupDocument: %w", err)
	}
	return nil
}

// CleanupDocumentForRetry removes a document's chunks and document row but
// preserves its processing log history, for retry-failed/retry-skipped
// runs where the prior outcome should stay visible until the retry
// succeeds or fails in its own right.
func (s *Service) CleanupDocumentForRetry(ctx context.Context, projectID, documentID string) error {
	_, err := withConnRetry(ctx, "repair.CleanupDocumentForRetry", func() (struct{}, error) {
		_, _, err := s.docs.DeleteDocumentContent(ctx, projectID, documentID)
		return struct{}{}, err
	})
	if err != nil {
		return fmt.Errorf("repair.CleanupDocumentForRetry: %w", err)
	}
	return nil
}

// CleanupProject removes every document, chunk and log row for a project —
// a full reset ahead of reprocessing it from scratch.
func (s *Service) CleanupProject(ctx context.Context, projectID string) (CleanupSummary, error) {
	deleted, err := withConnRetry(ctx, "repair.CleanupProject", func() (int64, error) {
		return s.docs.DeleteProjectData(ctx, projectID)
	})
	if err != nil {
		return CleanupSummary{}, fmt.Errorf("repair.CleanupProject: %w", err)
	}
	slog.Info("repair: project reset complete", "project_id", projectID, "document_rows_deleted", deleted)
	return CleanupSummary{DocumentsDeleted: deleted}, nil
}

// BulkCleanupByStatus finds every document whose latest processing log has
// the given status and deletes its chunks, document row and logs in one
// batched sweep, optionally scoped to a set of project IDs. Used by the
// upfront --retry-failed cleanup pass (spec §4.9), which
// clears content before the queue is built so workers never race cleanup
// against in-flight processing of the same document.
func (s *Service) BulkCleanupByStatus(ctx context.Context, status model.ProcessingStatus, projectIDs []string) (CleanupSummary, error) {
	refs, err := s.logs.FindByStatus(ctx, status, projectIDs)
	if err != nil {
		return CleanupSummary{}, fmt.Errorf("repair.BulkCleanupByStatus: %w", err)
	}
	return s.bulkDelete(ctx, refsToDocumentIDs(refs))
}

// BulkCleanupRepairCandidates analyzes the database and deletes every
// document flagged by CandidatesForProcessing in one batched sweep, ahead
// of a --repair run queuing them for reprocessing. It returns the exact
// candidates it deleted, since a second Analyze call after cleanup would
// find nothing — the processing_logs rows the analysis depends on are gone
// along with the chunks and document rows.
func (s *Service) BulkCleanupRepairCandidates(ctx context.Context, projectID string) (CleanupSummary, []Candidate, error) {
	analysis, err := s.Analyze(ctx, projectID)
	if err != nil {
		return CleanupSummary{}, nil, fmt.Errorf("repair.BulkCleanupRepairCandidates: %w", err)
	}
	candidates := CandidatesForProcessing(analysis)
	if len(candidates) == 0 {
		slog.Info("repair: no repair candidates found, database is consistent")
		return CleanupSummary{}, nil, nil
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.DocumentID
	}
	summary, err := s.bulkDelete(ctx, ids)
	if err != nil {
		return summary, nil, err
	}
	return summary, candidates, nil
}

func (s *Service) bulkDelete(ctx context.Context, documentIDs []string) (CleanupSummary, error) {
	if len(documentIDs) == 0 {
		return CleanupSummary{}, nil
	}

	const batchSize = 100
	var summary CleanupSummary
	for i := 0; i < len(documentIDs); i += batchSize {
		end := i + batchSize
		if end > len(documentIDs) {
			end = len(documentIDs)
		}
		batch := documentIDs[i:end]

		type batchResult struct {
			chunksDeleted, docsDeleted, logsDeleted int64
		}
		br, err := withConnRetry(ctx, "repair.bulkDelete", func() (batchResult, error) {
			chunksDeleted, docsDeleted, logsDeleted, err := s.docs.DeleteByDocumentIDs(ctx, batch)
			return batchResult{chunksDeleted, docsDeleted, logsDeleted}, err
		})
		if err != nil {
			return summary, fmt.Errorf("repair.bulkDelete: batch %d: %w", i/batchSize, err)
		}
		chunksDeleted, docsDeleted, logsDeleted := br.chunksDeleted, br.docsDeleted, br.logsDeleted
		summary.DocumentsCleaned += int64(len(batch))
		summary.ChunksDeleted += chunksDeleted
		summary.DocumentsDeleted += docsDeleted
		summary.LogsDeleted += logsDeleted

		slog.Info("repair: bulk cleanup batch complete",
			"batch", i/batchSize+1, "documents", len(batch),
			"chunks_deleted", chunksDeleted, "documents_deleted", docsDeleted, "logs_deleted", logsDeleted)
	}
	return summary, nil
}

func refsToDocumentIDs(refs []repository.LogRef) []string {
	ids := make([]string, len(refs))
	for i, r := range refs {
		ids[i] = r.DocumentID
	}
	return ids
}
