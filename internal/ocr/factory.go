package ocr

import "fmt"

// NewProvider selects a concrete Provider by name (config.OCRProvider),
// mirroring ocr_factory.py's provider switch.
func NewProvider(name string, tesseractDPI int, tesseractLanguage, scratchDir string, docAI DocAIClient) (Provider, error) {
	switch name {
	case "", "tesseract":
		return NewTesseractProvider(tesseractDPI, tesseractLanguage, scratchDir), nil
	case "documentai":
		if docAI == nil {
			return nil, fmt.Errorf("ocr.NewProvider: documentai provider selected but no client configured")
		}
		return NewDocumentAIProvider(docAI), nil
	default:
		return nil, fmt.Errorf("ocr.NewProvider: unknown provider %q", name)
	}
}
