package gcpclient

import (
	"context"
	"fmt"
	"log/slog"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// DocAIResult is the per-page text Document AI extracted from a scanned PDF,
// the cloud provider side of the OCR Gateway (C4, §6.4).
type DocAIResult struct {
	Pages []DocAIPage
}

// DocAIPage is one page of OCR'd text.
type DocAIPage struct {
	PageNumber int
	Text       string
}

// DocumentAIAdapter wraps the Document AI OCR processor API.
type DocumentAIAdapter struct {
	client    *documentai.DocumentProcessorClient
	project   string
	location  string
	processor string
}

// NewDocumentAIAdapter creates a new Document AI client.
// location is typically "us" or "eu" for Document AI (multi-region).
func NewDocumentAIAdapter(ctx context.Context, project, location, processor string) (*DocumentAIAdapter, error) {
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", location)
	client, err := documentai.NewDocumentProcessorClient(ctx, option.WithEndpoint(endpoint))
	if err != nil {
		return nil, fmt.Errorf("gcpclient.NewDocumentAIAdapter: %w", err)
	}

	return &DocumentAIAdapter{
		client:    client,
		project:   project,
		location:  location,
		processor: processor,
	}, nil
}

// ProcessDocument sends a GCS-resident scanned PDF to Document AI for OCR
// and returns its text broken down per page.
func (a *DocumentAIAdapter) ProcessDocument(ctx context.Context, gcsURI string, mimeType string) (*DocAIResult, error) {
	req := &documentaipb.ProcessRequest{
		Name: a.processor,
		Source: &documentaipb.ProcessRequest_GcsDocument{
			GcsDocument: &documentaipb.GcsDocument{
				GcsUri:   gcsURI,
				MimeType: mimeType,
			},
		},
	}

	resp, err := withRetry(ctx, "DocumentAI.ProcessDocument", func() (*documentaipb.ProcessResponse, error) {
		return a.client.ProcessDocument(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("gcpclient.ProcessDocument: %w", err)
	}

	if resp.Document == nil {
		return nil, fmt.Errorf("gcpclient.ProcessDocument: nil document in response")
	}

	text := resp.Document.Text
	result := &DocAIResult{}
	for i, page := range resp.Document.Pages {
		result.Pages = append(result.Pages, DocAIPage{
			PageNumber: i + 1,
			Text:       sliceLayoutText(text, page),
		})
	}

	slog.Info("document ai ocr complete", "pages", len(result.Pages), "chars", len(text))
	return result, nil
}

// sliceLayoutText extracts the substring a page's layout covers out of the
// document's full concatenated text, per Document AI's TextAnchor convention.
func sliceLayoutText(fullText string, page *documentaipb.Document_Page) string {
	layout := page.GetLayout()
	if layout == nil || layout.TextAnchor == nil {
		return ""
	}
	var out []byte
	for _, seg := range layout.TextAnchor.TextSegments {
		start := seg.GetStartIndex()
		end := seg.GetEndIndex()
		if start < 0 || end > int64(len(fullText)) || start >= end {
			continue
		}
		out = append(out, fullText[start:end]...)
	}
	return string(out)
}

// HealthCheck verifies the Document AI connection by listing processors.
func (a *DocumentAIAdapter) HealthCheck(ctx context.Context) error {
	parent := fmt.Sprintf("projects/%s/locations/%s", a.project, a.location)
	req := &documentaipb.ListProcessorsRequest{
		Parent: parent,
	}

	iter := a.client.ListProcessors(ctx, req)
	_, err := iter.Next()
	if err != nil && err != iterator.Done {
		return fmt.Errorf("gcpclient.DocumentAI.HealthCheck: %w", err)
	}

	slog.Info("document ai health check passed", "project", a.project, "location", a.location)
	return nil
}

// Close releases the underlying gRPC connection.
func (a *DocumentAIAdapter) Close() {
	a.client.Close()
}
