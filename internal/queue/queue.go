// Package queue implements the Work Queue Builder (C13): it walks the
// catalog project-by-project and document-by-document, joins each
// document against its processing-log history, and emits the
// DocumentTask stream the Dispatcher (C14) hands to workers.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/bcgov/epic-search-embedder/internal/catalog"
	"github.com/bcgov/epic-search-embedder/internal/model"
	"github.com/bcgov/epic-search-embedder/internal/repair"
	"github.com/bcgov/epic-search-embedder/internal/repository"
)

// Mode selects which documents the builder includes, mirroring the mode
// flags on the CLI (spec §4.1, §6.5).
type Mode struct {
	RetryFailed  bool
	RetrySkipped bool
	Repair       bool
	Reset        bool
}

func (m Mode) retryCombined() bool { return m.RetryFailed && m.RetrySkipped }

// Builder produces the ordered DocumentTask stream for a run.
type Builder struct {
	catalog *catalog.Client
	logs    *repository.ProcessingLogRepo
	repair  *repair.Service
	docPage int
}

// New creates a Builder. docPageSize bounds each catalog document-list page.
func New(catalogClient *catalog.Client, logs *repository.ProcessingLogRepo, repairSvc *repair.Service, docPageSize int) *Builder {
	if docPageSize <= 0 {
		docPageSize = 100
	}
	return &Builder{catalog: catalogClient, logs: logs, repair: repairSvc, docPage: docPageSize}
}

// BuildForProject runs any required upfront cleanup for a single project and
// returns its DocumentTask queue in catalog order, per spec §4.1.
func (b *Builder) BuildForProject(ctx context.Context, project model.Project, mode Mode) ([]model.DocumentTask, error) {
	if mode.Reset {
		return b.buildReset(ctx, project)
	}
	if mode.Repair {
		return b.buildRepair(ctx, project)
	}
	if mode.RetryFailed || mode.RetrySkipped {
		return b.buildRetry(ctx, project, mode)
	}
	return b.buildNormal(ctx, project)
}

// buildNormal includes documents with no log at all, or no terminal log —
// i.e. excludes anything whose most recent status is success, failure or
// skipped.
func (b *Builder) buildNormal(ctx context.Context, project model.Project) ([]model.DocumentTask, error) {
	docs, err := b.listAllDocuments(ctx, project.ProjectID)
	if err != nil {
		return nil, err
	}

	var tasks []model.DocumentTask
	for _, doc := range docs {
		if doc.ID == "" || doc.InternalURL == "" {
			continue
		}
		_, err := b.logs.Latest(ctx, project.ProjectID, doc.ID)
		if err == nil {
			continue // a terminal log already exists; normal mode never re-queues it
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("queue.buildNormal: %w", err)
		}
		tasks = append(tasks, b.toTask(project, doc, false))
	}
	return tasks, nil
}

// buildRetry pre-cleans the relevant category (failed only; skipped
// documents have no persisted content to clean) then queues the documents
// that cleanup removed together with documents whose latest log matches the
// requested status(es).
func (b *Builder) buildRetry(ctx context.Context, project model.Project, mode Mode) ([]model.DocumentTask, error) {
	cleanedIDs := map[string]bool{}
	if mode.RetryFailed {
		refs, err := b.logs.FindByStatus(ctx, model.StatusFailure, []string{project.ProjectID})
		if err != nil {
			return nil, fmt.Errorf("queue.buildRetry: find failed documents: %w", err)
		}
		for _, ref := range refs {
			cleanedIDs[ref.DocumentID] = true
		}
		summary, err := b.repair.BulkCleanupByStatus(ctx, model.StatusFailure, []string{project.ProjectID})
		if err != nil {
			return nil, fmt.Errorf("queue.buildRetry: cleanup failed documents: %w", err)
		}
		slog.Info("queue: pre-cleaned failed documents", "project_id", project.ProjectID, "documents", summary.DocumentsCleaned)
	}

	wantStatuses := map[model.ProcessingStatus]bool{}
	if mode.RetryFailed {
		wantStatuses[model.StatusFailure] = true
	}
	if mode.RetrySkipped {
		wantStatuses[model.StatusSkipped] = true
	}

	docs, err := b.listAllDocuments(ctx, project.ProjectID)
	if err != nil {
		return nil, err
	}

	var tasks []model.DocumentTask
	for _, doc := range docs {
		if doc.ID == "" || doc.InternalURL == "" {
			continue
		}
		if cleanedIDs[doc.ID] {
			tasks = append(tasks, b.toTask(project, doc, true))
			continue
		}
		log, err := b.logs.Latest(ctx, project.ProjectID, doc.ID)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("queue.buildRetry: %w", err)
		}
		if wantStatuses[log.Status] {
			tasks = append(tasks, b.toTask(project, doc, true))
		}
	}
	return tasks, nil
}

// buildRepair pre-cleans every inconsistent document found by the Repair
// Service's analysis, then queues exactly those documents for reprocessing.
func (b *Builder) buildRepair(ctx context.Context, project model.Project) ([]model.DocumentTask, error) {
	summary, candidates, err := b.repair.BulkCleanupRepairCandidates(ctx, project.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("queue.buildRepair: %w", err)
	}
	if summary.DocumentsCleaned == 0 {
		slog.Info("queue: no repair candidates for project", "project_id", project.ProjectID)
		return nil, nil
	}

	candidateIDs := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		candidateIDs[c.DocumentID] = true
	}

	docs, err := b.listAllDocuments(ctx, project.ProjectID)
	if err != nil {
		return nil, err
	}

	var tasks []model.DocumentTask
	for _, doc := range docs {
		if candidateIDs[doc.ID] && doc.InternalURL != "" {
			tasks = append(tasks, b.toTask(project, doc, true))
		}
	}
	return tasks, nil
}

// buildReset wipes every document, chunk and log row for the project, then
// queues every document the catalog currently lists for it.
func (b *Builder) buildReset(ctx context.Context, project model.Project) ([]model.DocumentTask, error) {
	summary, err := b.repair.CleanupProject(ctx, project.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("queue.buildReset: %w", err)
	}
	slog.Info("queue: project reset", "project_id", project.ProjectID, "documents_deleted", summary.DocumentsDeleted)

	docs, err := b.listAllDocuments(ctx, project.ProjectID)
	if err != nil {
		return nil, err
	}
	tasks := make([]model.DocumentTask, 0, len(docs))
	for _, doc := range docs {
		if doc.InternalURL == "" {
			continue
		}
		tasks = append(tasks, b.toTask(project, doc, false))
	}
	return tasks, nil
}

func (b *Builder) listAllDocuments(ctx context.Context, projectID string) ([]model.CatalogDoc, error) {
	var all []model.CatalogDoc
	page := 1
	for {
		docs, err := b.catalog.ListDocuments(ctx, projectID, page, b.docPage)
		if err != nil {
			return nil, fmt.Errorf("queue.listAllDocuments: %w", err)
		}
		if len(docs) == 0 {
			break
		}
		all = append(all, docs...)
		if len(docs) < b.docPage {
			break
		}
		page++
	}
	return all, nil
}

// toTask builds a DocumentTask from a catalog document. Callers are
// expected to have already filtered out documents with no object key
// (mirrors the original's `if not s3_key: continue` guard).
func (b *Builder) toTask(project model.Project, doc model.CatalogDoc, isRetry bool) model.DocumentTask {
	meta, _ := json.Marshal(map[string]string{
		"project_id":        project.ProjectID,
		"project_name":      project.ProjectName,
		"proponent_name":    doc.ProponentName,
		"document_name":     doc.Name,
		"doc_internal_name": lastPathSegment(doc.InternalURL),
		"created_at":        doc.DocumentDate,
		"document_id":       doc.ID,
	})
	return model.DocumentTask{
		ProjectID:    project.ProjectID,
		ProjectName:  project.ProjectName,
		ObjectKey:    doc.InternalURL,
		BaseMetadata: meta,
		CatalogDoc:   doc,
		IsRetry:      isRetry,
	}
}

func lastPathSegment(s string) string {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return s[i+1:]
		}
	}
	return s
}
