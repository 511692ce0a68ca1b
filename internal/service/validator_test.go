package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bcgov/epic-search-embedder/internal/imageanalysis"
	"github.com/bcgov/epic-search-embedder/internal/ocr"
)

type fakePDFDoc struct {
	pageCount int
	creator   string
	producer  string
	firstPage string
}

func (f fakePDFDoc) PageCount() int                       { return f.pageCount }
func (f fakePDFDoc) Metadata() (creator, producer string) { return f.creator, f.producer }
func (f fakePDFDoc) FirstPageText() string                { return f.firstPage }

type fakeOCRProvider struct {
	pages []ocr.Page
	err   error
}

func (f *fakeOCRProvider) Name() string { return "fake" }
func (f *fakeOCRProvider) ExtractText(ctx context.Context, in ocr.Input) ([]ocr.Page, error) {
	return f.pages, f.err
}

type fakeImageAnalysisProvider struct {
	result imageanalysis.Result
	err    error
}

func (f *fakeImageAnalysisProvider) Analyze(ctx context.Context, localPath, objectKey string) (imageanalysis.Result, error) {
	return f.result, f.err
}

func TestValidatePDF_NonPDFExtension(t *testing.T) {
	v := NewValidatorService(nil, nil)
	outcome := v.ValidatePDF(context.Background(), "file.txt", fakePDFDoc{pageCount: 1}, "", "", "")
	if outcome.Kind != Failure || outcome.Reason != "precheck_failed" {
		t.Errorf("outcome = %+v, want Failure/precheck_failed", outcome)
	}
}

func TestValidatePDF_ZeroPages(t *testing.T) {
	v := NewValidatorService(nil, nil)
	outcome := v.ValidatePDF(context.Background(), "file.pdf", fakePDFDoc{pageCount: 0}, "", "", "")
	if outcome.Kind != Failure || outcome.Reason != "precheck_failed" {
		t.Errorf("outcome = %+v, want Failure/precheck_failed", outcome)
	}
}

func TestValidatePDF_EmptyTextNoOCR_Skipped(t *testing.T) {
	v := NewValidatorService(nil, nil)
	outcome := v.ValidatePDF(context.Background(), "file.pdf", fakePDFDoc{pageCount: 1, firstPage: ""}, "", "", "")
	if outcome.Kind != Skip || outcome.Reason != "scanned_or_image_pdf" {
		t.Errorf("outcome = %+v, want Skip/scanned_or_image_pdf", outcome)
	}
}

func TestValidatePDF_EmptyTextWithOCR_Proceeds(t *testing.T) {
	v := NewValidatorService(&fakeOCRProvider{pages: []ocr.Page{{PageNumber: 1, Text: "hello"}}}, nil)
	outcome := v.ValidatePDF(context.Background(), "file.pdf", fakePDFDoc{pageCount: 1, firstPage: ""}, "/tmp/f.pdf", "gs://b/f.pdf", "application/pdf")
	if outcome.Kind != Proceed || len(outcome.Pages) != 1 {
		t.Errorf("outcome = %+v, want Proceed with 1 page", outcome)
	}
}

func TestValidatePDF_EmptyTextOCRFails_Failure(t *testing.T) {
	v := NewValidatorService(&fakeOCRProvider{err: fmt.Errorf("ocr broke")}, nil)
	outcome := v.ValidatePDF(context.Background(), "file.pdf", fakePDFDoc{pageCount: 1, firstPage: ""}, "/tmp/f.pdf", "gs://b/f.pdf", "application/pdf")
	if outcome.Kind != Failure || outcome.Reason != "ocr_failed" {
		t.Errorf("outcome = %+v, want Failure/ocr_failed", outcome)
	}
}

func TestValidatePDF_ScanningDeviceMinimalText(t *testing.T) {
	v := NewValidatorService(&fakeOCRProvider{pages: []ocr.Page{{PageNumber: 1, Text: "better text"}}}, nil)
	outcome := v.ValidatePDF(context.Background(), "file.pdf", fakePDFDoc{pageCount: 1, producer: "Xerox WorkCentre", firstPage: "short"}, "/tmp/f.pdf", "gs://b/f.pdf", "application/pdf")
	if outcome.Kind != Proceed {
		t.Errorf("outcome = %+v, want Proceed via OCR", outcome)
	}
}

func TestValidatePDF_ScanningDeviceQualityFallback(t *testing.T) {
	longText := ""
	for i := 0; i < 300; i++ {
		longText += "x"
	}
	v := NewValidatorService(&fakeOCRProvider{err: fmt.Errorf("ocr broke")}, nil)
	outcome := v.ValidatePDF(context.Background(), "file.pdf", fakePDFDoc{pageCount: 1, producer: "Canon scanner", firstPage: longText}, "/tmp/f.pdf", "gs://b/f.pdf", "application/pdf")
	if outcome.Kind != Proceed {
		t.Errorf("outcome = %+v, want Proceed (fall back to native extraction)", outcome)
	}
}

func TestValidatePDF_OrdinaryDocumentProceedsNative(t *testing.T) {
	v := NewValidatorService(nil, nil)
	longText := ""
	for i := 0; i < 300; i++ {
		longText += "x"
	}
	outcome := v.ValidatePDF(context.Background(), "file.pdf", fakePDFDoc{pageCount: 1, firstPage: longText}, "", "", "")
	if outcome.Kind != Proceed {
		t.Errorf("outcome = %+v, want Proceed", outcome)
	}
}

func TestValidateImage_OCRSucceeds(t *testing.T) {
	v := NewValidatorService(&fakeOCRProvider{pages: []ocr.Page{{PageNumber: 1, Text: "caption text"}}}, nil)
	outcome := v.ValidateImage(context.Background(), "/tmp/img.png", "gs://b/img.png", "image/png", "proj/img.png")
	if outcome.Kind != Proceed || len(outcome.Pages) != 1 {
		t.Errorf("outcome = %+v, want Proceed with 1 page", outcome)
	}
}

func TestValidateImage_NoOCRNoImageAnalysis_Skipped(t *testing.T) {
	v := NewValidatorService(nil, nil)
	outcome := v.ValidateImage(context.Background(), "/tmp/img.png", "gs://b/img.png", "image/png", "proj/img.png")
	if outcome.Kind != Skip || outcome.Reason != "ocr_failed" {
		t.Errorf("outcome = %+v, want Skip/ocr_failed", outcome)
	}
}

func TestValidateImage_OCRFailsImageAnalysisSucceeds_Proceeds(t *testing.T) {
	analysis := &fakeImageAnalysisProvider{result: imageanalysis.Result{
		Description:    "a mountain landscape",
		Tags:           []string{"mountain", "sky"},
		Keywords:       []string{"mountain", "sky", "image of mountain"},
		SearchableText: "Visual content description: a mountain landscape",
	}}
	v := NewValidatorService(&fakeOCRProvider{err: fmt.Errorf("ocr broke")}, analysis)
	outcome := v.ValidateImage(context.Background(), "/tmp/img.png", "gs://b/img.png", "image/png", "proj/img.png")
	if outcome.Kind != Proceed || len(outcome.Pages) != 1 {
		t.Fatalf("outcome = %+v, want Proceed with 1 synthetic page", outcome)
	}
	if outcome.Pages[0].Metadata["extraction_method"] != "image_analysis_azure" {
		t.Errorf("extraction_method = %q, want image_analysis_azure", outcome.Pages[0].Metadata["extraction_method"])
	}
}

func TestValidateImage_ImageTooSmall_Skipped(t *testing.T) {
	analysis := &fakeImageAnalysisProvider{err: fmt.Errorf("%w (49x49)", imageanalysis.ErrImageTooSmall)}
	v := NewValidatorService(nil, analysis)
	outcome := v.ValidateImage(context.Background(), "/tmp/img.png", "gs://b/img.png", "image/png", "proj/img.png")
	if outcome.Kind != Skip {
		t.Fatalf("outcome = %+v, want Skip", outcome)
	}
}
