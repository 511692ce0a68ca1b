package queue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/bcgov/epic-search-embedder/internal/catalog"
	"github.com/bcgov/epic-search-embedder/internal/model"
	"github.com/bcgov/epic-search-embedder/internal/repair"
	"github.com/bcgov/epic-search-embedder/internal/repository"
)

func TestLastPathSegment(t *testing.T) {
	cases := map[string]string{
		"projects/abc/docs/file.pdf": "file.pdf",
		"file.pdf":                   "file.pdf",
		"":                           "",
	}
	for in, want := range cases {
		if got := lastPathSegment(in); got != want {
			t.Errorf("lastPathSegment(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestToTask_BuildsMetadataAndObjectKey(t *testing.T) {
	b := &Builder{}
	project := model.Project{ProjectID: "p1", ProjectName: "Test Project"}
	doc := model.CatalogDoc{ID: "d1", InternalURL: "projects/p1/docs/report.pdf", Name: "Report", ProponentName: "Acme"}

	task := b.toTask(project, doc, true)
	if task.ObjectKey != doc.InternalURL {
		t.Errorf("ObjectKey = %q, want %q", task.ObjectKey, doc.InternalURL)
	}
	if !task.IsRetry {
		t.Error("IsRetry = false, want true")
	}

	var meta map[string]string
	if err := json.Unmarshal(task.BaseMetadata, &meta); err != nil {
		t.Fatalf("unmarshal base metadata: %v", err)
	}
	if meta["doc_internal_name"] != "report.pdf" {
		t.Errorf("doc_internal_name = %q, want report.pdf", meta["doc_internal_name"])
	}
	if meta["project_name"] != "Test Project" {
		t.Errorf("project_name = %q, want Test Project", meta["project_name"])
	}
}

// mockCatalogServer serves a fixed document list for one project, matching
// the catalog's `[{"searchResults": [...], "totalCount": N}]` envelope.
func mockCatalogServer(t *testing.T, docs []map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("pageNum")
		var results []map[string]any
		if page == "1" {
			results = docs
		}
		envelope := []map[string]any{{"searchResults": results, "totalCount": len(docs)}}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(envelope)
	}))
}

// setupQueueDB builds a Builder wired to a live database, skipping when
// none is configured — this exercises the normal/retry/repair/reset modes
// against the real processing_logs join.
func setupQueueDB(t *testing.T, srv *httptest.Server) (*Builder, *repository.ProcessingLogRepo) {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := repository.NewPool(ctx, dbURL, 5)
	if err != nil {
		t.Fatalf("NewPool() error: %v", err)
	}
	t.Cleanup(pool.Close)

	logs := repository.NewProcessingLogRepo(pool)
	docs := repository.NewDocumentRepo(pool)
	chunks := repository.NewChunkRepo(pool)
	repairSvc := repair.New(logs, docs, chunks)
	client := catalog.NewClient(srv.URL, 50)

	return New(client, logs, repairSvc, 50), logs
}

func TestBuildForProject_NormalModeIncludesUnprocessedDocument(t *testing.T) {
	srv := mockCatalogServer(t, []map[string]any{
		{"_id": "queue-test-doc-1", "internalURL": "projects/q/docs/new.pdf", "displayName": "New Doc"},
	})
	defer srv.Close()

	b, _ := setupQueueDB(t, srv)
	project := model.Project{ProjectID: "queue-test-project-1", ProjectName: "Queue Test"}

	tasks, err := b.BuildForProject(context.Background(), project, Mode{})
	if err != nil {
		t.Fatalf("BuildForProject() error: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("len(tasks) = %d, want 1 (document has no processing log)", len(tasks))
	}
	if tasks[0].ObjectKey != "projects/q/docs/new.pdf" {
		t.Errorf("ObjectKey = %q, want projects/q/docs/new.pdf", tasks[0].ObjectKey)
	}
}
