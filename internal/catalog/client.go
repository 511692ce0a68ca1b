// Package catalog implements the Catalog Client (C1): a paginated REST
// client over the EAO document catalog that the Work Queue Builder (C13)
// walks to discover projects and their documents.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/bcgov/epic-search-embedder/internal/model"
)

// Client is a paginated HTTP client against the catalog's search API.
type Client struct {
	baseURL    string
	pageSize   int
	httpClient *http.Client
}

// NewClient creates a catalog Client. baseURL is the search endpoint root
// (e.g. "https://projects.eao.gov.bc.ca/api/search"); pageSize bounds each
// page request (spec §6.1).
func NewClient(baseURL string, pageSize int) *Client {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Client{
		baseURL:  baseURL,
		pageSize: pageSize,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// searchResponse mirrors the catalog's `[{"searchResults": [...], "totalCount": N}]` envelope.
type searchResponse struct {
	SearchResults []json.RawMessage `json:"searchResults"`
	TotalCount    int               `json:"totalCount"`
}

// rawProject is the catalog's wire shape for a project search result.
type rawProject struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Proponent struct {
		Name string `json:"name"`
	} `json:"proponent"`
}

// ListProjects returns one page of projects (spec §6.1 list_projects).
func (c *Client) ListProjects(ctx context.Context, page, pageSize int) ([]model.Project, error) {
	if pageSize <= 0 {
		pageSize = c.pageSize
	}
	results, _, err := c.search(ctx, url.Values{
		"dataset":           {"Project"},
		"projectLegislation": {"default"},
		"sortBy":            {"+name"},
		"populate":          {"true"},
		"pageNum":           {fmt.Sprintf("%d", page)},
		"pageSize":          {fmt.Sprintf("%d", pageSize)},
	})
	if err != nil {
		return nil, fmt.Errorf("catalog.ListProjects: %w", err)
	}

	projects := make([]model.Project, 0, len(results))
	for _, raw := range results {
		var rp rawProject
		if err := json.Unmarshal(raw, &rp); err != nil {
			return nil, fmt.Errorf("catalog.ListProjects: decode: %w", err)
		}
		meta, _ := json.Marshal(map[string]string{"proponent_name": rp.Proponent.Name})
		projects = append(projects, model.Project{
			ProjectID:   rp.ID,
			ProjectName: rp.Name,
			Metadata:    meta,
		})
	}
	return projects, nil
}

// CountProjects returns the total number of projects in the catalog.
func (c *Client) CountProjects(ctx context.Context) (int, error) {
	_, total, err := c.search(ctx, url.Values{
		"dataset":  {"Project"},
		"pageNum":  {"1"},
		"pageSize": {"1"},
	})
	if err != nil {
		return 0, fmt.Errorf("catalog.CountProjects: %w", err)
	}
	return total, nil
}

// GetProjectByID fetches one project, or nil if not found.
func (c *Client) GetProjectByID(ctx context.Context, id string) (*model.Project, error) {
	results, _, err := c.search(ctx, url.Values{
		"dataset": {"Project"},
		"_id":     {id},
	})
	if err != nil {
		return nil, fmt.Errorf("catalog.GetProjectByID: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	var rp rawProject
	if err := json.Unmarshal(results[0], &rp); err != nil {
		return nil, fmt.Errorf("catalog.GetProjectByID: decode: %w", err)
	}
	meta, _ := json.Marshal(map[string]string{"proponent_name": rp.Proponent.Name})
	return &model.Project{ProjectID: rp.ID, ProjectName: rp.Name, Metadata: meta}, nil
}

// rawDocument is the catalog's wire shape for a document search result.
type rawDocument struct {
	ID           string `json:"_id"`
	InternalURL  string `json:"internalURL"`
	Name         string `json:"displayName"`
	InternalSize string `json:"internalSize"`
	FileSize     string `json:"fileSize"`
	Type         string `json:"type"`
	DocumentDate string `json:"documentDate"`
	Project      struct {
		Proponent struct {
			Name string `json:"name"`
		} `json:"proponent"`
	} `json:"project"`
}

// ListDocuments returns one page of documents for a project (spec §6.1 list_documents).
func (c *Client) ListDocuments(ctx context.Context, projectID string, page, pageSize int) ([]model.CatalogDoc, error) {
	if pageSize <= 0 {
		pageSize = c.pageSize
	}
	results, _, err := c.search(ctx, url.Values{
		"dataset":           {"Document"},
		"project":           {projectID},
		"projectLegislation": {"default"},
		"sortBy":            {"-datePosted", "+displayName"},
		"populate":          {"true"},
		"pageNum":           {fmt.Sprintf("%d", page)},
		"pageSize":          {fmt.Sprintf("%d", pageSize)},
	})
	if err != nil {
		return nil, fmt.Errorf("catalog.ListDocuments: %w", err)
	}

	docs := make([]model.CatalogDoc, 0, len(results))
	for _, raw := range results {
		var rd rawDocument
		if err := json.Unmarshal(raw, &rd); err != nil {
			return nil, fmt.Errorf("catalog.ListDocuments: decode: %w", err)
		}
		docs = append(docs, model.CatalogDoc{
			ID:             rd.ID,
			InternalURL:    rd.InternalURL,
			Name:           rd.Name,
			InternalSize:   rd.InternalSize,
			FileSize:       rd.FileSize,
			DocumentTypeID: rd.Type,
			DocumentDate:   rd.DocumentDate,
			ProponentName:  rd.Project.Proponent.Name,
		})
	}
	return docs, nil
}

// CountDocuments returns the total number of documents for a project.
func (c *Client) CountDocuments(ctx context.Context, projectID string) (int, error) {
	_, total, err := c.search(ctx, url.Values{
		"dataset":  {"Document"},
		"project":  {projectID},
		"pageNum":  {"1"},
		"pageSize": {"1"},
	})
	if err != nil {
		return 0, fmt.Errorf("catalog.CountDocuments: %w", err)
	}
	return total, nil
}

func (c *Client) search(ctx context.Context, params url.Values) ([]json.RawMessage, int, error) {
	reqURL := c.baseURL + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("catalog.search: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("catalog.search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("catalog.search: status %d", resp.StatusCode)
	}

	var envelope []searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, 0, fmt.Errorf("catalog.search: decode: %w", err)
	}
	if len(envelope) == 0 {
		return nil, 0, nil
	}
	return envelope[0].SearchResults, envelope[0].TotalCount, nil
}
