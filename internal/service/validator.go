package service

import (
	"context"
	"strings"

	"github.com/bcgov/epic-search-embedder/internal/imageanalysis"
	"github.com/bcgov/epic-search-embedder/internal/model"
	"github.com/bcgov/epic-search-embedder/internal/ocr"
)

// ValidationKind is the closed set of outcomes the Validator can produce,
// replacing the original's exception-driven control flow (C4, spec §4.5).
type ValidationKind int

const (
	// Proceed means pages is the page sequence to hand to the extractor/chunker.
	Proceed ValidationKind = iota
	// Skip means the document is not processable; not an error.
	Skip
	// Failure means validation itself failed (unexpected error).
	Failure
)

// ValidationOutcome is the Validator's single return value; exactly one of
// its three Kind branches is meaningful at a time.
type ValidationOutcome struct {
	Kind   ValidationKind
	Pages  []model.Page
	Reason string
}

// scannedIndicators are creator/producer substrings associated with
// scanning hardware/software, a signal that a PDF is likely image-only.
var scannedIndicators = []string{
	"hp digital sending device", "scanner", "scan", "xerox", "canon", "epson", "ricoh",
}

// minExtractableChars is the native-text length below which a scanning-device
// PDF is still routed to OCR rather than trusted as-is.
const minExtractableChars = 200

// PDFDoc abstracts the subset of a PDF library's API the Validator needs,
// so it can be exercised without a real PDF renderer.
type PDFDoc interface {
	PageCount() int
	Metadata() (creator, producer string)
	FirstPageText() string
}

// ValidatorService implements the Validator & OCR Gateway (C4).
type ValidatorService struct {
	ocrProvider   ocr.Provider           // nil disables OCR entirely
	imageAnalysis imageanalysis.Provider // nil disables the image-analysis fallback
}

// NewValidatorService creates a ValidatorService. A nil ocrProvider means
// OCR is unavailable; scanned PDFs are skipped rather than OCR'd. A nil
// imageAnalysis means an image with no OCR text is skipped rather than
// falling back to a visual-content description.
func NewValidatorService(ocrProvider ocr.Provider, imageAnalysis imageanalysis.Provider) *ValidatorService {
	return &ValidatorService{ocrProvider: ocrProvider, imageAnalysis: imageAnalysis}
}

// ValidatePDF implements the scanned-PDF detection and OCR-gateway logic of
// pdf_validation.py: minimal-text, scanning-device-minimal-text, and
// scanning-device-quality-improvement branches, each attempting OCR when
// available and falling back per spec §4.5's decision table.
func (v *ValidatorService) ValidatePDF(ctx context.Context, objectKey string, doc PDFDoc, localPath, gcsURI, mimeType string) ValidationOutcome {
	if !strings.HasSuffix(strings.ToLower(objectKey), ".pdf") {
		return ValidationOutcome{Kind: Failure, Reason: "precheck_failed"}
	}
	if doc.PageCount() == 0 {
		return ValidationOutcome{Kind: Failure, Reason: "precheck_failed"}
	}

	creator, producer := doc.Metadata()
	firstPageText := strings.TrimSpace(doc.FirstPageText())
	likelyScanned := isLikelyScanned(creator, producer)

	// Primary: no extractable text at all — classic scanned-document signature.
	if firstPageText == "" || firstPageText == "-----" {
		return v.attemptOCR(ctx, localPath, gcsURI, mimeType, true)
	}

	// Secondary: scanning device with minimal text.
	if likelyScanned && len(firstPageText) < minExtractableChars {
		return v.attemptOCR(ctx, localPath, gcsURI, mimeType, true)
	}

	// Tertiary: scanning device with usable text — OCR preferred for quality,
	// but native extraction is an acceptable fallback on OCR failure.
	if likelyScanned {
		outcome := v.attemptOCR(ctx, localPath, gcsURI, mimeType, false)
		if outcome.Kind == Proceed {
			return outcome
		}
		// Fall through to native extraction.
	}

	return ValidationOutcome{Kind: Proceed, Pages: nil} // caller uses native extractor
}

// attemptOCR invokes the configured OCR provider. required=true means OCR
// unavailability or failure is itself terminal (scanned_or_image_pdf /
// ocr_failed); required=false means failure just signals "fall back".
func (v *ValidatorService) attemptOCR(ctx context.Context, localPath, gcsURI, mimeType string, required bool) ValidationOutcome {
	if v.ocrProvider == nil {
		if required {
			return ValidationOutcome{Kind: Skip, Reason: "scanned_or_image_pdf"}
		}
		return ValidationOutcome{Kind: Failure, Reason: "ocr_unavailable_fallback"}
	}

	pages, err := v.ocrProvider.ExtractText(ctx, ocr.Input{LocalPath: localPath, GCSURI: gcsURI, MimeType: mimeType})
	if err != nil {
		if required {
			return ValidationOutcome{Kind: Failure, Reason: "ocr_failed"}
		}
		return ValidationOutcome{Kind: Failure, Reason: "ocr_failed_fallback"}
	}

	if !anyPageHasText(pages) {
		if required {
			return ValidationOutcome{Kind: Failure, Reason: "ocr_failed"}
		}
		return ValidationOutcome{Kind: Failure, Reason: "ocr_empty_fallback"}
	}

	modelPages := make([]model.Page, 0, len(pages))
	for _, p := range pages {
		modelPages = append(modelPages, model.Page{
			Text:       p.Text,
			PageNumber: p.PageNumber,
			Metadata:   map[string]string{"extraction_method": "ocr_" + v.ocrProvider.Name()},
		})
	}
	return ValidationOutcome{Kind: Proceed, Pages: modelPages}
}

// ValidateImage implements the image-file branch of §4.5: OCR is attempted
// first, producing a single-page sequence on success. When OCR is
// unavailable or finds no text, the image-analysis provider (Azure
// Computer Vision) is tried as a fallback, producing a synthetic
// description+tags+keywords page on success or a categorized skip reason
// (e.g. "image_too_small" for §8's 49x49 boundary case) on failure.
func (v *ValidatorService) ValidateImage(ctx context.Context, localPath, gcsURI, mimeType, objectKey string) ValidationOutcome {
	if v.ocrProvider != nil {
		pages, err := v.ocrProvider.ExtractText(ctx, ocr.Input{LocalPath: localPath, GCSURI: gcsURI, MimeType: mimeType})
		if err == nil && anyPageHasText(pages) {
			modelPages := make([]model.Page, 0, len(pages))
			for _, p := range pages {
				modelPages = append(modelPages, model.Page{
					Text:       p.Text,
					PageNumber: p.PageNumber,
					Metadata:   map[string]string{"extraction_method": "ocr_" + v.ocrProvider.Name()},
				})
			}
			return ValidationOutcome{Kind: Proceed, Pages: modelPages}
		}
	}

	return v.attemptImageAnalysis(ctx, localPath, objectKey)
}

// attemptImageAnalysis is the fallback §4.5 describes for an image OCR
// could not read: a visual-content description, or a categorized skip
// reason when the provider is unavailable or the image is rejected.
func (v *ValidatorService) attemptImageAnalysis(ctx context.Context, localPath, objectKey string) ValidationOutcome {
	if v.imageAnalysis == nil {
		return ValidationOutcome{Kind: Skip, Reason: "ocr_failed"}
	}

	result, err := v.imageAnalysis.Analyze(ctx, localPath, objectKey)
	if err != nil {
		if reason := imageanalysis.Reason(err); reason != "" {
			return ValidationOutcome{Kind: Skip, Reason: reason}
		}
		return ValidationOutcome{Kind: Skip, Reason: "ocr_failed"}
	}

	return ValidationOutcome{Kind: Proceed, Pages: []model.Page{{
		Text:       result.SearchableText,
		PageNumber: 1,
		Metadata: map[string]string{
			"extraction_method": "image_analysis_azure",
			"image_tags":        strings.Join(result.Tags, ","),
			"image_keywords":    strings.Join(result.Keywords, ","),
		},
	}}}
}

func isLikelyScanned(creator, producer string) bool {
	creator = strings.ToLower(creator)
	producer = strings.ToLower(producer)
	for _, indicator := range scannedIndicators {
		if strings.Contains(creator, indicator) || strings.Contains(producer, indicator) {
			return true
		}
	}
	return false
}

func anyPageHasText(pages []ocr.Page) bool {
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			return true
		}
	}
	return false
}
