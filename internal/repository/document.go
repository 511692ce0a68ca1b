package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bcgov/epic-search-embedder/internal/model"
)

// ProjectRepo persists Project rows (C10, spec §3).
type ProjectRepo struct {
	pool *pgxpool.Pool
}

// NewProjectRepo creates a ProjectRepo.
func NewProjectRepo(pool *pgxpool.Pool) *ProjectRepo {
	return &ProjectRepo{pool: pool}
}

// Upsert inserts a project or is a no-op if it already exists. A project is
// a stable container; the embedder never updates its name or metadata once
// created.
func (r *ProjectRepo) Upsert(ctx context.Context, p model.Project) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO projects (project_id, project_name, metadata, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (project_id) DO NOTHING`,
		p.ProjectID, p.ProjectName, nullableJSON(p.Metadata), p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository.ProjectRepo.Upsert: %w", err)
	}
	return nil
}

// DocumentRepo persists Document, DocumentChunk and ProcessingLog rows as a
// single atomic unit per spec §4.4 step 10 and §4.8.
type DocumentRepo struct {
	pool *pgxpool.Pool
}

// NewDocumentRepo creates a DocumentRepo.
func NewDocumentRepo(pool *pgxpool.Pool) *DocumentRepo {
	return &DocumentRepo{pool: pool}
}

// PersistSuccess writes the Document, its chunks and a success ProcessingLog
// row in one transaction. Any prior rows for (ProjectID, DocumentID) are
// replaced so a retry of a previously-failed document leaves no duplicates.
func (r *DocumentRepo) PersistSuccess(ctx context.Context, doc model.Document, chunks []model.DocumentChunk, log model.ProcessingLog) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository.PersistSuccess: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1 AND project_id = $2`, doc.DocumentID, doc.ProjectID); err != nil {
		return fmt.Errorf("repository.PersistSuccess: clear chunks: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE document_id = $1 AND project_id = $2`, doc.DocumentID, doc.ProjectID); err != nil {
		return fmt.Errorf("repository.PersistSuccess: clear document: %w", err)
	}

	if err := insertDocument(ctx, tx, doc); err != nil {
		return err
	}
	if err := insertChunks(ctx, tx, chunks); err != nil {
		return err
	}
	if err := insertProcessingLog(ctx, tx, log); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository.PersistSuccess: commit: %w", err)
	}
	return nil
}

// PersistFailure records a failure ProcessingLog row without touching any
// document/chunk rows (partial writes from the failed attempt, if any, are
// left for the Repair Service to reconcile).
func (r *DocumentRepo) PersistFailure(ctx context.Context, log model.ProcessingLog) error {
	if err := insertProcessingLog(ctx, r.pool, log); err != nil {
		return fmt.Errorf("repository.PersistFailure: %w", err)
	}
	return nil
}

// PersistSkip records a skip ProcessingLog row (unsupported file type,
// pre-flight validation rejection, etc).
func (r *DocumentRepo) PersistSkip(ctx context.Context, log model.ProcessingLog) error {
	if err := insertProcessingLog(ctx, r.pool, log); err != nil {
		return fmt.Errorf("repository.PersistSkip: %w", err)
	}
	return nil
}

// DeleteDocument removes a document, its chunks, and all processing log rows
// for it. Used by the Repair Service's per-document and reset cleanups.
func (r *DocumentRepo) DeleteDocument(ctx context.Context, projectID, documentID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("repository.DeleteDocument: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1 AND project_id = $2`, documentID, projectID); err != nil {
		return fmt.Errorf("repository.DeleteDocument: chunks: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE document_id = $1 AND project_id = $2`, documentID, projectID); err != nil {
		return fmt.Errorf("repository.DeleteDocument: document: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM processing_logs WHERE document_id = $1 AND project_id = $2`, documentID, projectID); err != nil {
		return fmt.Errorf("repository.DeleteDocument: logs: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository.DeleteDocument: commit: %w", err)
	}
	return nil
}

// DeleteDocumentContent removes a document's chunks and its document row but
// preserves processing_logs, so a retry-failed/retry-skipped run keeps its
// history while the content is rebuilt from scratch.
func (r *DocumentRepo) DeleteDocumentContent(ctx context.Context, projectID, documentID string) (chunksDeleted, documentsDeleted int64, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("repository.DeleteDocumentContent: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	chunkTag, err := tx.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1 AND project_id = $2`, documentID, projectID)
	if err != nil {
		return 0, 0, fmt.Errorf("repository.DeleteDocumentContent: chunks: %w", err)
	}
	docTag, err := tx.Exec(ctx, `DELETE FROM documents WHERE document_id = $1 AND project_id = $2`, documentID, projectID)
	if err != nil {
		return 0, 0, fmt.Errorf("repository.DeleteDocumentContent: document: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("repository.DeleteDocumentContent: commit: %w", err)
	}
	return chunkTag.RowsAffected(), docTag.RowsAffected(), nil
}

// DeleteByDocumentIDs bulk-removes chunks, document rows and processing logs
// for a batch of document IDs in one transaction — the fan-in used by the
// Repair Service's bulk cleanup operations (spec §4.9), which the Python
// original runs as one DELETE...IN(...) per table per batch rather than a
// per-document round trip.
func (r *DocumentRepo) DeleteByDocumentIDs(ctx context.Context, documentIDs []string) (chunksDeleted, documentsDeleted, logsDeleted int64, err error) {
	if len(documentIDs) == 0 {
		return 0, 0, 0, nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("repository.DeleteByDocumentIDs: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	chunkTag, err := tx.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = ANY($1)`, documentIDs)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("repository.DeleteByDocumentIDs: chunks: %w", err)
	}
	docTag, err := tx.Exec(ctx, `DELETE FROM documents WHERE document_id = ANY($1)`, documentIDs)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("repository.DeleteByDocumentIDs: documents: %w", err)
	}
	logTag, err := tx.Exec(ctx, `DELETE FROM processing_logs WHERE document_id = ANY($1)`, documentIDs)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("repository.DeleteByDocumentIDs: logs: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, 0, fmt.Errorf("repository.DeleteByDocumentIDs: commit: %w", err)
	}
	return chunkTag.RowsAffected(), docTag.RowsAffected(), logTag.RowsAffected(), nil
}

// DeleteProjectData removes every document, chunk and log row for a project.
// Used by the Repair Service's full project reset.
func (r *DocumentRepo) DeleteProjectData(ctx context.Context, projectID string) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("repository.DeleteProjectData: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM document_chunks WHERE project_id = $1`, projectID); err != nil {
		return 0, fmt.Errorf("repository.DeleteProjectData: chunks: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM documents WHERE project_id = $1`, projectID)
	if err != nil {
		return 0, fmt.Errorf("repository.DeleteProjectData: documents: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM processing_logs WHERE project_id = $1`, projectID); err != nil {
		return 0, fmt.Errorf("repository.DeleteProjectData: logs: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("repository.DeleteProjectData: commit: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetDocument fetches a document by id, or pgx.ErrNoRows if absent.
func (r *DocumentRepo) GetDocument(ctx context.Context, projectID, documentID string) (*model.Document, error) {
	var d model.Document
	err := r.pool.QueryRow(ctx, `
		SELECT document_id, project_id, tags, keywords, headings, metadata, created_at
		FROM documents WHERE document_id = $1 AND project_id = $2`,
		documentID, projectID,
	).Scan(&d.DocumentID, &d.ProjectID, &d.Tags, &d.Keywords, &d.Headings, &d.Metadata, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CountChunks returns the number of chunks stored for a document.
func (r *DocumentRepo) CountChunks(ctx context.Context, projectID, documentID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM document_chunks WHERE document_id = $1 AND project_id = $2`, documentID, projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("repository.CountChunks: %w", err)
	}
	return count, nil
}

func insertDocument(ctx context.Context, exec pgxExecutor, doc model.Document) error {
	_, err := exec.Exec(ctx, `
		INSERT INTO documents (document_id, project_id, tags, keywords, headings, metadata, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		doc.DocumentID, doc.ProjectID, doc.Tags, doc.Keywords, doc.Headings,
		nullableJSON(doc.Metadata), vectorOf(doc.Embedding), doc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository.insertDocument: %w", err)
	}
	return nil
}

func insertChunks(ctx context.Context, exec pgxExecutor, chunks []model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	now := time.Now().UTC()

	for _, c := range chunks {
		batch.Queue(`
			INSERT INTO document_chunks (document_id, project_id, content, metadata, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			c.DocumentID, c.ProjectID, c.Content, nullableJSON(c.Metadata), vectorOf(c.Embedding), now,
		)
	}

	br := exec.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < len(chunks); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("repository.insertChunks: chunk %d: %w", i, err)
		}
	}
	return nil
}

func insertProcessingLog(ctx context.Context, exec pgxExecutor, log model.ProcessingLog) error {
	processedAt := log.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now().UTC()
	}
	_, err := exec.Exec(ctx, `
		INSERT INTO processing_logs (project_id, document_id, status, processed_at, metrics)
		VALUES ($1, $2, $3, $4, $5)`,
		log.ProjectID, log.DocumentID, string(log.Status), processedAt, nullableJSON(log.Metrics),
	)
	if err != nil {
		return fmt.Errorf("repository.insertProcessingLog: %w", err)
	}
	return nil
}

// pgxExecutor is satisfied by both *pgxpool.Pool and pgx.Tx, letting the
// insert helpers run either standalone or inside a transaction.
type pgxExecutor interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}
