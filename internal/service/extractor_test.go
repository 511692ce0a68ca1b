package service

import (
	"context"
	"os/exec"
	"testing"
)

func popplerAvailable() bool {
	_, err1 := exec.LookPath("pdftotext")
	_, err2 := exec.LookPath("pdfinfo")
	return err1 == nil && err2 == nil
}

func TestExtractPlainText(t *testing.T) {
	pages := NewExtractorService().ExtractPlainText([]byte("hello world"))
	if len(pages) != 1 || pages[0].Text != "hello world" || pages[0].PageNumber != 1 {
		t.Errorf("ExtractPlainText() = %+v", pages)
	}
	if pages[0].Metadata["extraction_method"] != "plain_text" {
		t.Errorf("extraction_method = %q, want plain_text", pages[0].Metadata["extraction_method"])
	}
}

func TestExtractWord_InvalidData(t *testing.T) {
	_, err := NewExtractorService().ExtractWord([]byte("not a zip"))
	if err == nil {
		t.Fatal("expected error for non-docx bytes")
	}
}

func TestExtractPDFNative_RequiresPoppler(t *testing.T) {
	if !popplerAvailable() {
		t.Skip("pdftotext/pdfinfo not installed")
	}
	_, err := NewExtractorService().ExtractPDFNative(context.Background(), "/nonexistent/missing.pdf")
	if err == nil {
		t.Fatal("expected error for nonexistent PDF")
	}
}

func TestLoadPDFDoc_RequiresPoppler(t *testing.T) {
	if !popplerAvailable() {
		t.Skip("pdftotext/pdfinfo not installed")
	}
	_, err := NewExtractorService().LoadPDFDoc(context.Background(), "/nonexistent/missing.pdf")
	if err == nil {
		t.Fatal("expected error for nonexistent PDF")
	}
}
