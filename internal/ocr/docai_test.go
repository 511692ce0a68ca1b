package ocr

import (
	"context"
	"fmt"
	"testing"

	"github.com/bcgov/epic-search-embedder/internal/gcpclient"
)

type fakeDocAIClient struct {
	result *gcpclient.DocAIResult
	err    error
}

func (f *fakeDocAIClient) ProcessDocument(ctx context.Context, gcsURI, mimeType string) (*gcpclient.DocAIResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &gcpclient.DocAIResult{Pages: []gcpclient.DocAIPage{{PageNumber: 1, Text: "hello"}}}, nil
}

func TestDocumentAIProvider_ExtractText(t *testing.T) {
	p := NewDocumentAIProvider(&fakeDocAIClient{})
	pages, err := p.ExtractText(context.Background(), Input{GCSURI: "gs://bucket/doc.pdf", MimeType: "application/pdf"})
	if err != nil {
		t.Fatalf("ExtractText() error: %v", err)
	}
	if len(pages) != 1 || pages[0].Text != "hello" {
		t.Errorf("pages = %+v, want one page with text %q", pages, "hello")
	}
}

func TestDocumentAIProvider_RequiresGCSURI(t *testing.T) {
	p := NewDocumentAIProvider(&fakeDocAIClient{})
	_, err := p.ExtractText(context.Background(), Input{LocalPath: "/tmp/doc.pdf"})
	if err == nil {
		t.Fatal("expected error when GCSURI is empty")
	}
}

func TestDocumentAIProvider_PropagatesClientError(t *testing.T) {
	p := NewDocumentAIProvider(&fakeDocAIClient{err: fmt.Errorf("quota exceeded")})
	_, err := p.ExtractText(context.Background(), Input{GCSURI: "gs://bucket/doc.pdf"})
	if err == nil {
		t.Fatal("expected error propagated from client")
	}
}
