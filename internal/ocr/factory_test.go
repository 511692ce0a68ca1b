package ocr

import "testing"

func TestNewProvider_DefaultsToTesseract(t *testing.T) {
	p, err := NewProvider("", 300, "eng", "", nil)
	if err != nil {
		t.Fatalf("NewProvider() error: %v", err)
	}
	if p.Name() != "tesseract" {
		t.Errorf("Name() = %q, want %q", p.Name(), "tesseract")
	}
}

func TestNewProvider_DocumentAIRequiresClient(t *testing.T) {
	_, err := NewProvider("documentai", 300, "eng", "", nil)
	if err == nil {
		t.Fatal("expected error when documentai provider has no client")
	}
}

func TestNewProvider_DocumentAIWithClient(t *testing.T) {
	p, err := NewProvider("documentai", 300, "eng", "", &fakeDocAIClient{})
	if err != nil {
		t.Fatalf("NewProvider() error: %v", err)
	}
	if p.Name() != "documentai" {
		t.Errorf("Name() = %q, want %q", p.Name(), "documentai")
	}
}

func TestNewProvider_UnknownName(t *testing.T) {
	_, err := NewProvider("azure", 300, "eng", "", nil)
	if err == nil {
		t.Fatal("expected error for unknown provider name")
	}
}
