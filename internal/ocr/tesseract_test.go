package ocr

import (
	"context"
	"testing"
)

func TestTesseractProvider_Name(t *testing.T) {
	p := NewTesseractProvider(300, "eng", "")
	if p.Name() != "tesseract" {
		t.Errorf("Name() = %q, want %q", p.Name(), "tesseract")
	}
}

func TestTesseractProvider_DefaultsApplied(t *testing.T) {
	p := NewTesseractProvider(0, "", "")
	if p.dpi != 300 {
		t.Errorf("dpi = %d, want 300", p.dpi)
	}
	if p.language != "eng" {
		t.Errorf("language = %q, want %q", p.language, "eng")
	}
}

// Requires `tesseract` and `pdftoppm` on PATH; skipped in sandboxes without them.
func TestTesseractProvider_ExtractText_MissingFile(t *testing.T) {
	if !Available() {
		t.Skip("tesseract/pdftoppm not installed")
	}
	p := NewTesseractProvider(300, "eng", t.TempDir())
	_, err := p.ExtractText(context.Background(), Input{LocalPath: "/nonexistent/missing.pdf"})
	if err == nil {
		t.Fatal("expected error for nonexistent input file")
	}
}
