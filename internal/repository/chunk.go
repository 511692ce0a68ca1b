package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ChunkRepo answers chunk-level queries needed by the Repair Service (C12)
// that don't belong on DocumentRepo's per-document transaction path.
type ChunkRepo struct {
	pool *pgxpool.Pool
}

// NewChunkRepo creates a ChunkRepo.
func NewChunkRepo(pool *pgxpool.Pool) *ChunkRepo {
	return &ChunkRepo{pool: pool}
}

// OrphanedChunk identifies a document_id with chunks but no owning document
// row — the "orphaned_chunks" repair category.
type OrphanedChunk struct {
	ProjectID  string
	DocumentID string
	ChunkCount int
}

// FindOrphaned returns every (project_id, document_id) pair that has chunk
// rows but no matching document row, in batches of limit starting at offset.
func (r *ChunkRepo) FindOrphaned(ctx context.Context, limit, offset int) ([]OrphanedChunk, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT dc.project_id, dc.document_id, count(*)
		FROM document_chunks dc
		LEFT JOIN documents d ON d.document_id = dc.document_id AND d.project_id = dc.project_id
		WHERE d.document_id IS NULL
		GROUP BY dc.project_id, dc.document_id
		ORDER BY dc.project_id, dc.document_id
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("repository.FindOrphaned: %w", err)
	}
	defer rows.Close()

	var result []OrphanedChunk
	for rows.Next() {
		var oc OrphanedChunk
		if err := rows.Scan(&oc.ProjectID, &oc.DocumentID, &oc.ChunkCount); err != nil {
			return nil, fmt.Errorf("repository.FindOrphaned: scan: %w", err)
		}
		result = append(result, oc)
	}
	return result, nil
}

// DeleteOrphaned removes chunk rows for a document_id that has no owning
// document row.
func (r *ChunkRepo) DeleteOrphaned(ctx context.Context, projectID, documentID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM document_chunks dc
		USING (SELECT 1) x
		WHERE dc.project_id = $1 AND dc.document_id = $2
			AND NOT EXISTS (
				SELECT 1 FROM documents d WHERE d.document_id = dc.document_id AND d.project_id = dc.project_id
			)`, projectID, documentID)
	if err != nil {
		return 0, fmt.Errorf("repository.DeleteOrphaned: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountByDocumentID returns the number of chunks for a document.
func (r *ChunkRepo) CountByDocumentID(ctx context.Context, projectID, documentID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM document_chunks WHERE document_id = $1 AND project_id = $2`, documentID, projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("repository.CountByDocumentID: %w", err)
	}
	return count, nil
}
