package repair

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/bcgov/epic-search-embedder/internal/model"
	"github.com/bcgov/epic-search-embedder/internal/repository"
)

func TestCandidatesForProcessing_CombinesReprocessableCategories(t *testing.T) {
	a := Analysis{
		PartialFailures:        []Candidate{{DocumentID: "a"}},
		IncompleteProcessing:   []Candidate{{DocumentID: "b"}},
		OrphanedChunks:         []Candidate{{DocumentID: "c"}},
		InconsistentSuccess:    []Candidate{{DocumentID: "d"}},
		MissingDocumentRecords: []Candidate{{DocumentID: "e"}},
	}
	got := CandidatesForProcessing(a)
	if len(got) != 3 {
		t.Fatalf("len(CandidatesForProcessing()) = %d, want 3", len(got))
	}
	ids := map[string]bool{}
	for _, c := range got {
		ids[c.DocumentID] = true
	}
	for _, want := range []string{"a", "b", "d"} {
		if !ids[want] {
			t.Errorf("expected candidate %q in reprocessing set", want)
		}
	}
	for _, exclude := range []string{"c", "e"} {
		if ids[exclude] {
			t.Errorf("informational-only candidate %q should not be queued for reprocessing", exclude)
		}
	}
}

func TestAnalysis_Total(t *testing.T) {
	a := Analysis{
		PartialFailures:      []Candidate{{}, {}},
		IncompleteProcessing: []Candidate{{}},
	}
	if got := a.Total(); got != 3 {
		t.Errorf("Total() = %d, want 3", got)
	}
}

// setupRepairDB connects to a live database for integration coverage of the
// SQL-backed repair queries, skipping when none is configured.
func setupRepairDB(t *testing.T) *Service {
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

	return New(repository.NewProcessingLogRepo(pool), repository.NewDocumentRepo(pool), repository.NewChunkRepo(pool))
}

func TestAnalyze_NoCandidatesOnEmptyDatabase(t *testing.T) {
	svc := setupRepairDB(t)
	a, err := svc.Analyze(context.Background(), "repair-test-project-does-not-exist")
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if a.Total() != 0 {
		t.Errorf("Total() = %d, want 0 for a project with no data", a.Total())
	}
}

func TestBulkCleanupByStatus_NoMatchingDocuments(t *testing.T) {
	svc := setupRepairDB(t)
	summary, err := svc.BulkCleanupByStatus(context.Background(), model.StatusFailure, []string{"repair-test-project-does-not-exist"})
	if err != nil {
		t.Fatalf("BulkCleanupByStatus() error: %v", err)
	}
	if summary.DocumentsCleaned != 0 {
		t.Errorf("DocumentsCleaned = %d, want 0", summary.DocumentsCleaned)
	}
}
