package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func mockCatalogServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
}

func TestListProjects_ParsesResults(t *testing.T) {
	srv := mockCatalogServer(t, `[{"searchResults":[
		{"_id":"p1","name":"Project One","proponent":{"name":"Acme Co"}},
		{"_id":"p2","name":"Project Two","proponent":{"name":"Beta Inc"}}
	],"totalCount":2}]`)
	defer srv.Close()

	client := NewClient(srv.URL, 50)
	projects, err := client.ListProjects(context.Background(), 1, 50)
	if err != nil {
		t.Fatalf("ListProjects() error: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("len(projects) = %d, want 2", len(projects))
	}
	if projects[0].ProjectID != "p1" || projects[0].ProjectName != "Project One" {
		t.Errorf("unexpected project[0]: %+v", projects[0])
	}
}

func TestCountProjects_ReadsTotalCount(t *testing.T) {
	srv := mockCatalogServer(t, `[{"searchResults":[],"totalCount":42}]`)
	defer srv.Close()

	client := NewClient(srv.URL, 50)
	total, err := client.CountProjects(context.Background())
	if err != nil {
		t.Fatalf("CountProjects() error: %v", err)
	}
	if total != 42 {
		t.Errorf("total = %d, want 42", total)
	}
}

func TestGetProjectByID_NotFound(t *testing.T) {
	srv := mockCatalogServer(t, `[{"searchResults":[],"totalCount":0}]`)
	defer srv.Close()

	client := NewClient(srv.URL, 50)
	project, err := client.GetProjectByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetProjectByID() error: %v", err)
	}
	if project != nil {
		t.Errorf("expected nil project, got %+v", project)
	}
}

func TestListDocuments_ParsesResults(t *testing.T) {
	srv := mockCatalogServer(t, `[{"searchResults":[
		{"_id":"d1","internalURL":"docs/d1.pdf","displayName":"Report.pdf","internalSize":"1024","fileSize":"1024","type":"t1","documentDate":"2024-01-01","project":{"proponent":{"name":"Acme Co"}}}
	],"totalCount":1}]`)
	defer srv.Close()

	client := NewClient(srv.URL, 50)
	docs, err := client.ListDocuments(context.Background(), "p1", 1, 50)
	if err != nil {
		t.Fatalf("ListDocuments() error: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("len(docs) = %d, want 1", len(docs))
	}
	if docs[0].ID != "d1" || docs[0].InternalURL != "docs/d1.pdf" || docs[0].ProponentName != "Acme Co" {
		t.Errorf("unexpected doc[0]: %+v", docs[0])
	}
}

func TestCountDocuments_ReadsTotalCount(t *testing.T) {
	srv := mockCatalogServer(t, `[{"searchResults":[],"totalCount":7}]`)
	defer srv.Close()

	client := NewClient(srv.URL, 50)
	total, err := client.CountDocuments(context.Background(), "p1")
	if err != nil {
		t.Fatalf("CountDocuments() error: %v", err)
	}
	if total != 7 {
		t.Errorf("total = %d, want 7", total)
	}
}

func TestSearch_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, 50)
	_, err := client.CountProjects(context.Background())
	if err == nil {
		t.Fatal("expected error for non-200 status")
	}
}
