package ocr

import (
	"context"
	"fmt"

	"github.com/bcgov/epic-search-embedder/internal/gcpclient"
)

// DocAIClient is the subset of gcpclient.DocumentAIAdapter this provider needs.
type DocAIClient interface {
	ProcessDocument(ctx context.Context, gcsURI, mimeType string) (*gcpclient.DocAIResult, error)
}

// DocumentAIProvider is the cloud OCR backend, backed by Document AI.
type DocumentAIProvider struct {
	client DocAIClient
}

func NewDocumentAIProvider(client DocAIClient) *DocumentAIProvider {
	return &DocumentAIProvider{client: client}
}

func (p *DocumentAIProvider) Name() string { return "documentai" }

// ExtractText POSTs the GCS-resident document to Document AI (retry/backoff
// is handled inside gcpclient.DocumentAIAdapter) and returns its pages.
func (p *DocumentAIProvider) ExtractText(ctx context.Context, in Input) ([]Page, error) {
	if in.GCSURI == "" {
		return nil, fmt.Errorf("ocr.DocumentAIProvider: GCSURI is required")
	}
	result, err := p.client.ProcessDocument(ctx, in.GCSURI, in.MimeType)
	if err != nil {
		return nil, fmt.Errorf("ocr.DocumentAIProvider: %w", err)
	}
	pages := make([]Page, 0, len(result.Pages))
	for _, dp := range result.Pages {
		pages = append(pages, Page{PageNumber: dp.PageNumber, Text: dp.Text})
	}
	return pages, nil
}
