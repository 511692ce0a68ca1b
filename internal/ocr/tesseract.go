package ocr

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// maxPixelsPerPage is a per-page pixel budget of 50Mi pixels (~200MB at 4
// bytes/pixel). ExtractText does not consult it: every page is rendered at
// the configured DPI, with no per-page memory check or DPI reduction.
const maxPixelsPerPage = 50 * 1024 * 1024

// TesseractProvider renders PDF pages to images with pdftoppm and OCRs each
// with the tesseract binary. No pure-Go binding for either tool exists in
// the pack, so both are invoked via os/exec.
type TesseractProvider struct {
	dpi      int
	language string
	scratch  string
}

// NewTesseractProvider creates a local-CPU OCR provider. scratchDir holds
// the rendered page images for the lifetime of one ExtractText call.
func NewTesseractProvider(dpi int, language, scratchDir string) *TesseractProvider {
	if dpi <= 0 {
		dpi = 300
	}
	if language == "" {
		language = "eng"
	}
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	return &TesseractProvider{dpi: dpi, language: language, scratch: scratchDir}
}

func (p *TesseractProvider) Name() string { return "tesseract" }

// ExtractText rasterizes in.LocalPath at the configured DPI and OCRs each
// page independently; a single page's OCR failure yields an empty page
// rather than failing the whole document (spec §6.4).
func (p *TesseractProvider) ExtractText(ctx context.Context, in Input) ([]Page, error) {
	workDir, err := os.MkdirTemp(p.scratch, "ocr-tesseract-*")
	if err != nil {
		return nil, fmt.Errorf("ocr.TesseractProvider: create scratch dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	dpi := p.dpi
	imagePrefix := filepath.Join(workDir, "page")
	cmd := exec.CommandContext(ctx, "pdftoppm", "-r", fmt.Sprintf("%d", dpi), "-png", in.LocalPath, imagePrefix)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ocr.TesseractProvider: pdftoppm: %w (%s)", err, stderr.String())
	}

	images, err := filepath.Glob(imagePrefix + "*.png")
	if err != nil {
		return nil, fmt.Errorf("ocr.TesseractProvider: glob rendered pages: %w", err)
	}
	sort.Strings(images)

	pages := make([]Page, 0, len(images))
	for i, imgPath := range images {
		pageNum := i + 1
		text, err := p.ocrImage(ctx, imgPath)
		if err != nil {
			slog.Warn("tesseract ocr failed for page, returning empty page", "page", pageNum, "error", err)
			pages = append(pages, Page{PageNumber: pageNum, Text: ""})
			continue
		}
		pages = append(pages, Page{PageNumber: pageNum, Text: strings.TrimSpace(text)})
	}

	slog.Info("tesseract ocr complete", "pages", len(pages), "dpi", dpi)
	return pages, nil
}

func (p *TesseractProvider) ocrImage(ctx context.Context, imgPath string) (string, error) {
	cmd := exec.CommandContext(ctx, "tesseract", imgPath, "stdout", "--oem", "3", "--psm", "1", "-l", p.language)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("tesseract: %w (%s)", err, stderr.String())
	}
	return stdout.String(), nil
}

// Available reports whether the tesseract and pdftoppm binaries are on PATH.
func Available() bool {
	if _, err := exec.LookPath("tesseract"); err != nil {
		return false
	}
	if _, err := exec.LookPath("pdftoppm"); err != nil {
		return false
	}
	return true
}
