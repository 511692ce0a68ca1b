package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bcgov/epic-search-embedder/internal/model"
)

// ProcessingLogRepo answers processing-log queries used by the Work Queue
// Builder (C13) and the Repair Service (C12).
type ProcessingLogRepo struct {
	pool *pgxpool.Pool
}

// NewProcessingLogRepo creates a ProcessingLogRepo.
func NewProcessingLogRepo(pool *pgxpool.Pool) *ProcessingLogRepo {
	return &ProcessingLogRepo{pool: pool}
}

// Latest returns the most recent processing log row for a document, or
// pgx.ErrNoRows if the document has never been processed.
func (r *ProcessingLogRepo) Latest(ctx context.Context, projectID, documentID string) (*model.ProcessingLog, error) {
	var l model.ProcessingLog
	var status string
	err := r.pool.QueryRow(ctx, `
		SELECT id, project_id, document_id, status, processed_at, metrics
		FROM processing_logs
		WHERE project_id = $1 AND document_id = $2
		ORDER BY processed_at DESC LIMIT 1`,
		projectID, documentID,
	).Scan(&l.ID, &l.ProjectID, &l.DocumentID, &status, &l.ProcessedAt, &l.Metrics)
	if err != nil {
		return nil, err
	}
	l.Status = model.ProcessingStatus(status)
	return &l, nil
}

// FindByProjectAndStatus returns the most recent log row per document for a
// project, filtered to documents whose latest status matches, for driving
// retry-failed / retry-skipped processing modes (spec §4.1).
func (r *ProcessingLogRepo) FindByProjectAndStatus(ctx context.Context, projectID string, status model.ProcessingStatus) ([]model.ProcessingLog, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (document_id) id, project_id, document_id, status, processed_at, metrics
		FROM processing_logs
		WHERE project_id = $1
		ORDER BY document_id, processed_at DESC`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("repository.FindByProjectAndStatus: %w", err)
	}
	defer rows.Close()

	var result []model.ProcessingLog
	for rows.Next() {
		var l model.ProcessingLog
		var s string
		if err := rows.Scan(&l.ID, &l.ProjectID, &l.DocumentID, &s, &l.ProcessedAt, &l.Metrics); err != nil {
			return nil, fmt.Errorf("repository.FindByProjectAndStatus: scan: %w", err)
		}
		l.Status = model.ProcessingStatus(s)
		if l.Status == status {
			result = append(result, l)
		}
	}
	return result, nil
}

// FindByStatus returns the (project_id, document_id) of every document
// whose most recent processing log has the given status, optionally scoped
// to a set of project IDs (all projects if empty) — the query behind the
// bulk_cleanup_failed_documents / bulk_cleanup_skipped_documents upfront
// sweeps (spec §4.9).
func (r *ProcessingLogRepo) FindByStatus(ctx context.Context, status model.ProcessingStatus, projectIDs []string) ([]LogRef, error) {
	var rows pgx.Rows
	var err error
	if len(projectIDs) == 0 {
		rows, err = r.pool.Query(ctx, `
			WITH latest AS (
				SELECT DISTINCT ON (project_id, document_id) project_id, document_id, status, processed_at
				FROM processing_logs
				ORDER BY project_id, document_id, processed_at DESC
			)
			SELECT project_id, document_id, processed_at FROM latest WHERE status = $1
			ORDER BY project_id, document_id`, string(status))
	} else {
		rows, err = r.pool.Query(ctx, `
			WITH latest AS (
				SELECT DISTINCT ON (project_id, document_id) project_id, document_id, status, processed_at
				FROM processing_logs
				WHERE project_id = ANY($2)
				ORDER BY project_id, document_id, processed_at DESC
			)
			SELECT project_id, document_id, processed_at FROM latest WHERE status = $1
			ORDER BY project_id, document_id`, string(status), projectIDs)
	}
	if err != nil {
		return nil, fmt.Errorf("repository.FindByStatus: %w", err)
	}
	defer rows.Close()

	var result []LogRef
	for rows.Next() {
		var ref LogRef
		if err := rows.Scan(&ref.ProjectID, &ref.DocumentID, &ref.ProcessedAt); err != nil {
			return nil, fmt.Errorf("repository.FindByStatus: scan: %w", err)
		}
		result = append(result, ref)
	}
	return result, nil
}

// LogRef identifies a document by the project/document pair its latest
// processing log row refers to.
type LogRef struct {
	ProjectID   string
	DocumentID  string
	ProcessedAt time.Time
}

// FindPartialFailures returns documents whose latest log is "failure" but
// which still have chunk rows — a retry that wrote chunks before the step
// that failed, or a concurrent worker crash between chunk insert and log
// write. Mirrors the "partial_failures" repair category.
func (r *ProcessingLogRepo) FindPartialFailures(ctx context.Context, limit, offset int) ([]LogRef, error) {
	rows, err := r.pool.Query(ctx, `
		WITH latest AS (
			SELECT DISTINCT ON (project_id, document_id) project_id, document_id, status, processed_at
			FROM processing_logs
			ORDER BY project_id, document_id, processed_at DESC
		)
		SELECT DISTINCT l.project_id, l.document_id, l.processed_at
		FROM latest l
		JOIN document_chunks dc ON dc.project_id = l.project_id AND dc.document_id = l.document_id
		WHERE l.status = 'failure'
		ORDER BY l.project_id, l.document_id
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("repository.FindPartialFailures: %w", err)
	}
	defer rows.Close()

	var result []LogRef
	for rows.Next() {
		var ref LogRef
		if err := rows.Scan(&ref.ProjectID, &ref.DocumentID, &ref.ProcessedAt); err != nil {
			return nil, fmt.Errorf("repository.FindPartialFailures: scan: %w", err)
		}
		result = append(result, ref)
	}
	return result, nil
}

// ChunkOnlyDocument is a (project_id, document_id) pair that has chunk rows
// but no processing_logs row at all — chunks written by a run that crashed
// or was killed before it could log an outcome.
type ChunkOnlyDocument struct {
	ProjectID  string
	DocumentID string
	ChunkCount int
}

// FindIncompleteProcessing returns documents with chunk rows but no
// processing_logs row whatsoever. Mirrors the "incomplete_processing"
// repair category.
func (r *ProcessingLogRepo) FindIncompleteProcessing(ctx context.Context, limit, offset int) ([]ChunkOnlyDocument, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT dc.project_id, dc.document_id, count(*)
		FROM document_chunks dc
		LEFT JOIN processing_logs pl ON pl.project_id = dc.project_id AND pl.document_id = dc.document_id
		WHERE pl.document_id IS NULL
		GROUP BY dc.project_id, dc.document_id
		ORDER BY dc.project_id, dc.document_id
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("repository.FindIncompleteProcessing: %w", err)
	}
	defer rows.Close()

	var result []ChunkOnlyDocument
	for rows.Next() {
		var d ChunkOnlyDocument
		if err := rows.Scan(&d.ProjectID, &d.DocumentID, &d.ChunkCount); err != nil {
			return nil, fmt.Errorf("repository.FindIncompleteProcessing: scan: %w", err)
		}
		result = append(result, d)
	}
	return result, nil
}

// FindInconsistentSuccess returns documents whose latest log is "success"
// but which have zero chunk rows — a run that logged success before the
// chunk-write step, or chunks deleted out-of-band afterward. Mirrors the
// "inconsistent_success" repair category.
func (r *ProcessingLogRepo) FindInconsistentSuccess(ctx context.Context, limit, offset int) ([]LogRef, error) {
	rows, err := r.pool.Query(ctx, `
		WITH latest AS (
			SELECT DISTINCT ON (project_id, document_id) project_id, document_id, status, processed_at
			FROM processing_logs
			ORDER BY project_id, document_id, processed_at DESC
		)
		SELECT l.project_id, l.document_id, l.processed_at
		FROM latest l
		LEFT JOIN document_chunks dc ON dc.project_id = l.project_id AND dc.document_id = l.document_id
		WHERE l.status = 'success'
		GROUP BY l.project_id, l.document_id, l.processed_at
		HAVING count(dc.*) = 0
		ORDER BY l.project_id, l.document_id
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("repository.FindInconsistentSuccess: %w", err)
	}
	defer rows.Close()

	var result []LogRef
	for rows.Next() {
		var ref LogRef
		if err := rows.Scan(&ref.ProjectID, &ref.DocumentID, &ref.ProcessedAt); err != nil {
			return nil, fmt.Errorf("repository.FindInconsistentSuccess: scan: %w", err)
		}
		result = append(result, ref)
	}
	return result, nil
}

// FindMissingDocumentRecords returns documents whose latest log is
// "success" but which have no document row at all — the document insert
// was rolled back or the row was deleted out-of-band after a successful
// run. Mirrors the "missing_document_records" repair category.
func (r *ProcessingLogRepo) FindMissingDocumentRecords(ctx context.Context, limit, offset int) ([]LogRef, error) {
	rows, err := r.pool.Query(ctx, `
		WITH latest AS (
			SELECT DISTINCT ON (project_id, document_id) project_id, document_id, status, processed_at
			FROM processing_logs
			ORDER BY project_id, document_id, processed_at DESC
		)
		SELECT l.project_id, l.document_id, l.processed_at
		FROM latest l
		LEFT JOIN documents d ON d.project_id = l.project_id AND d.document_id = l.document_id
		WHERE l.status = 'success' AND d.document_id IS NULL
		ORDER BY l.project_id, l.document_id
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("repository.FindMissingDocumentRecords: %w", err)
	}
	defer rows.Close()

	var result []LogRef
	for rows.Next() {
		var ref LogRef
		if err := rows.Scan(&ref.ProjectID, &ref.DocumentID, &ref.ProcessedAt); err != nil {
			return nil, fmt.Errorf("repository.FindMissingDocumentRecords: scan: %w", err)
		}
		result = append(result, ref)
	}
	return result, nil
}

// DeleteLogs removes all processing_log rows for a document, used when the
// Repair Service clears a document for reprocessing.
func (r *ProcessingLogRepo) DeleteLogs(ctx context.Context, projectID, documentID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM processing_logs WHERE project_id = $1 AND document_id = $2`, projectID, documentID)
	if err != nil {
		return fmt.Errorf("repository.DeleteLogs: %w", err)
	}
	return nil
}
