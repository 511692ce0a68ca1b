// Package ocr implements the OCR Gateway (C4, spec §6.4): a pair of
// interchangeable providers that turn a scanned, image-only PDF into
// per-page text, selected at startup by config.OCRProvider.
package ocr

import "context"

// Page is one page of OCR-extracted text.
type Page struct {
	PageNumber int
	Text       string
}

// Input is the payload handed to a Provider. LocalPath is required by the
// local-CPU provider; GCSURI/MimeType are required by the cloud provider,
// which processes the object in place rather than re-uploading it.
type Input struct {
	LocalPath string
	GCSURI    string
	MimeType  string
}

// Provider extracts text from a scanned PDF. Implementations are the
// local-CPU Tesseract provider and the cloud Document AI provider.
type Provider interface {
	ExtractText(ctx context.Context, in Input) ([]Page, error)
	Name() string
}
