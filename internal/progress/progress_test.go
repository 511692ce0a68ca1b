package progress

import (
	"context"
	"testing"
	"time"

	"github.com/bcgov/epic-search-embedder/internal/model"
)

func TestStartFinishDocument_UpdatesCounters(t *testing.T) {
	tr := New(WithSummaryInterval(time.Hour))
	tr.Start(context.Background(), 1, 2)
	defer tr.Stop("test complete")

	task := model.DocumentTask{CatalogDoc: model.CatalogDoc{ID: "d1", Name: "report.pdf"}}
	tr.StartDocument(0, task)

	tr.mu.Lock()
	if _, ok := tr.active[0]; !ok {
		t.Fatal("StartDocument did not register the active worker")
	}
	tr.mu.Unlock()

	tr.FinishDocumentWithStats(0, model.StatusSuccess, 5, 1.2)

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if _, ok := tr.active[0]; ok {
		t.Error("FinishDocument did not clear the active worker")
	}
	if tr.processedDocs != 1 {
		t.Errorf("processedDocs = %d, want 1", tr.processedDocs)
	}
	if tr.totalPages != 5 {
		t.Errorf("totalPages = %d, want 5", tr.totalPages)
	}
}

func TestFinishDocument_CountsFailureAndSkip(t *testing.T) {
	tr := New(WithSummaryInterval(time.Hour))
	tr.Start(context.Background(), 1, 2)
	defer tr.Stop("test complete")

	tr.FinishDocument(0, model.StatusFailure)
	tr.FinishDocument(1, model.StatusSkipped)

	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.failedDocs != 1 {
		t.Errorf("failedDocs = %d, want 1", tr.failedDocs)
	}
	if tr.skippedDocs != 1 {
		t.Errorf("skippedDocs = %d, want 1", tr.skippedDocs)
	}
}

func TestStop_IsIdempotent(t *testing.T) {
	tr := New(WithSummaryInterval(time.Hour))
	tr.Start(context.Background(), 1, 1)
	tr.Stop("first")
	tr.Stop("second") // must not panic on double-close of stopCh
}

func TestActiveDocumentsSummary_FormatsEachField(t *testing.T) {
	active := map[int]activeDocument{
		0: {name: "a.pdf", pages: 3, hasPages: true},
		1: {name: "b.pdf", sizeMB: 2.5, hasSizeMB: true},
		2: {name: "c.pdf"},
	}
	summary := activeDocumentsSummary(active)
	if summary == "" {
		t.Fatal("activeDocumentsSummary returned empty string for non-empty input")
	}
}
