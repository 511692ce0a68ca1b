package service

import (
	"bufio"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/bcgov/epic-search-embedder/internal/model"
)

// minMeaningfulMarkdownChars is the non-formatting character floor below
// which markdown-aware extraction is treated as a failure and the caller
// falls back to plain native extraction (markdown_reader.py's
// "Insufficient meaningful content" threshold).
const minMeaningfulMarkdownChars = 10

// ExtractorService produces the canonical page-sequence representation
// (C5, spec §6 glossary "page sequence") for every supported file type
// other than the scanned/OCR branches the Validator already handles.
type ExtractorService struct{}

func NewExtractorService() *ExtractorService { return &ExtractorService{} }

// ExtractPDFNative splits a PDF's native text per page using pdftotext
// (poppler-utils), the same external-tool family as the Tesseract OCR
// provider's pdftoppm dependency; no pure-Go PDF text extractor exists in
// the pack.
func (e *ExtractorService) ExtractPDFNative(ctx context.Context, localPath string) ([]model.Page, error) {
	cmd := exec.CommandContext(ctx, "pdftotext", "-layout", localPath, "-")
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("service.ExtractPDFNative: pdftotext: %w (%s)", err, stderr.String())
	}

	rawPages := strings.Split(stdout.String(), "\f") // pdftotext emits form-feed between pages
	pages := make([]model.Page, 0, len(rawPages))
	for i, text := range rawPages {
		text = strings.TrimRight(text, "\n")
		if i == len(rawPages)-1 && strings.TrimSpace(text) == "" {
			continue // trailing empty page after the final form-feed
		}
		pages = append(pages, model.Page{
			Text:       text,
			PageNumber: i + 1,
			Metadata:   map[string]string{"extraction_method": "native_pdf"},
		})
	}
	return pages, nil
}

// ExtractPDFMarkdown is the markdown-aware extraction attempted before
// ExtractPDFNative (spec §4.5 item 5, grounded on markdown_reader.py's
// pymupdf4llm.to_markdown path). No pure-Go equivalent of pymupdf4llm exists
// in the pack, so headings are reconstructed from pdftohtml's per-run font
// sizes instead: runs noticeably larger than the document's dominant body
// size become literal "#"-prefixed lines the chunker's heading stack already
// recognizes. Returns an error — triggering the native fallback — on a
// pdftohtml failure or on degenerate output (fewer than
// minMeaningfulMarkdownChars non-formatting characters total).
func (e *ExtractorService) ExtractPDFMarkdown(ctx context.Context, localPath string) ([]model.Page, error) {
	xmlPages, err := runPdftohtmlXML(ctx, localPath)
	if err != nil {
		return nil, fmt.Errorf("service.ExtractPDFMarkdown: %w", err)
	}
	if len(xmlPages) == 0 {
		return nil, fmt.Errorf("service.ExtractPDFMarkdown: no pages returned")
	}

	bodySize := dominantFontSize(xmlPages)
	headingLevels := headingLevelsBySize(xmlPages, bodySize)

	pages := make([]model.Page, 0, len(xmlPages))
	meaningfulChars := 0
	for _, xp := range xmlPages {
		md := renderMarkdownPage(xp, headingLevels)
		meaningfulChars += countMeaningfulChars(md)
		pages = append(pages, model.Page{
			Text:       md,
			PageNumber: xp.Number,
			Metadata:   map[string]string{"extraction_method": "native_pdf_markdown"},
		})
	}

	if meaningfulChars < minMeaningfulMarkdownChars {
		return nil, fmt.Errorf("service.ExtractPDFMarkdown: degenerate output (%d meaningful chars)", meaningfulChars)
	}
	return pages, nil
}

type xmlFontspec struct {
	ID   string `xml:"id,attr"`
	Size int    `xml:"size,attr"`
}

type xmlText struct {
	Font string `xml:"font,attr"`
	Text string `xml:",chardata"`
}

type xmlPage struct {
	Number int           `xml:"number,attr"`
	Fonts  []xmlFontspec `xml:"fontspec"`
	Texts  []xmlText     `xml:"text"`
}

type xmlDoc struct {
	XMLName xml.Name  `xml:"pdf2xml"`
	Pages   []xmlPage `xml:"page"`
}

// runPdftohtmlXML runs poppler's pdftohtml in XML mode, the same tool
// family ExtractPDFNative and LoadPDFDoc already depend on, exposing the
// per-run font size metadata plain pdftotext discards.
func runPdftohtmlXML(ctx context.Context, localPath string) ([]xmlPage, error) {
	cmd := exec.CommandContext(ctx, "pdftohtml", "-xml", "-i", "-stdout", localPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftohtml: %w (%s)", err, stderr.String())
	}

	var doc xmlDoc
	if err := xml.Unmarshal(stdout.Bytes(), &doc); err != nil {
		return nil, fmt.Errorf("parse pdftohtml xml: %w", err)
	}
	return doc.Pages, nil
}

// dominantFontSize returns the font size carrying the most characters
// across the document, treated as the body-text size.
func dominantFontSize(pages []xmlPage) int {
	sizeByFontID := map[string]int{}
	for _, p := range pages {
		for _, f := range p.Fonts {
			sizeByFontID[f.ID] = f.Size
		}
	}

	charsBySize := map[int]int{}
	for _, p := range pages {
		for _, t := range p.Texts {
			charsBySize[sizeByFontID[t.Font]] += len(t.Text)
		}
	}

	body, best := 0, -1
	for size, chars := range charsBySize {
		if chars > best {
			body, best = size, chars
		}
	}
	return body
}

// headingLevelsBySize maps font sizes strictly larger than bodySize to
// heading levels 1-6, the largest size becoming H1, mirroring how
// pymupdf4llm infers heading rank from relative font size.
func headingLevelsBySize(pages []xmlPage, bodySize int) map[int]int {
	sizeByFontID := map[string]int{}
	seen := map[int]struct{}{}
	for _, p := range pages {
		for _, f := range p.Fonts {
			sizeByFontID[f.ID] = f.Size
		}
	}
	for _, p := range pages {
		for _, t := range p.Texts {
			if size := sizeByFontID[t.Font]; size > bodySize {
				seen[size] = struct{}{}
			}
		}
	}

	sizes := make([]int, 0, len(seen))
	for size := range seen {
		sizes = append(sizes, size)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(sizes)))

	levels := map[int]int{}
	for i, size := range sizes {
		if i >= 6 {
			break
		}
		levels[size] = i + 1
	}
	return levels
}

// renderMarkdownPage joins one page's text runs into paragraphs, prefixing
// heading-sized runs with the markdown syntax internal/service/chunker.go's
// extractHeading recognizes.
func renderMarkdownPage(p xmlPage, headingLevels map[int]int) string {
	sizeByFontID := map[string]int{}
	for _, f := range p.Fonts {
		sizeByFontID[f.ID] = f.Size
	}

	var lines []string
	for _, t := range p.Texts {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		if level, ok := headingLevels[sizeByFontID[t.Font]]; ok {
			text = strings.Repeat("#", level) + " " + text
		}
		lines = append(lines, text)
	}
	return strings.Join(lines, "\n\n")
}

// countMeaningfulChars counts characters that aren't pure formatting
// (dashes, markdown heading markers, or whitespace), the same signal
// markdown_reader.py uses to detect a degenerate pymupdf4llm result.
func countMeaningfulChars(text string) int {
	count := 0
	for _, r := range text {
		switch r {
		case '-', '#', '\n', '\r', ' ', '\t':
			continue
		default:
			count++
		}
	}
	return count
}

// ExtractWord converts a .docx file's body text into a single-page sequence.
func (e *ExtractorService) ExtractWord(data []byte) ([]model.Page, error) {
	text, err := extractDocxText(data)
	if err != nil {
		return nil, fmt.Errorf("service.ExtractWord: %w", err)
	}
	return []model.Page{{
		Text:       text,
		PageNumber: 1,
		Metadata:   map[string]string{"extraction_method": "docx"},
	}}, nil
}

// ExtractPlainText wraps a plain-text/markdown/CSV file as a single page.
func (e *ExtractorService) ExtractPlainText(data []byte) []model.Page {
	return []model.Page{{
		Text:       string(data),
		PageNumber: 1,
		Metadata:   map[string]string{"extraction_method": "plain_text"},
	}}
}

// popplerPDFDoc adapts pdfinfo's output to the Validator's PDFDoc
// interface, avoiding any PDF-rendering library dependency.
type popplerPDFDoc struct {
	pageCount int
	creator   string
	producer  string
	firstPage string
}

func (d popplerPDFDoc) PageCount() int                      { return d.pageCount }
func (d popplerPDFDoc) Metadata() (creator, producer string) { return d.creator, d.producer }
func (d popplerPDFDoc) FirstPageText() string               { return d.firstPage }

// LoadPDFDoc reads a PDF's page count and metadata via pdfinfo, and its
// first page's native text via pdftotext, for the Validator's precheck.
func (e *ExtractorService) LoadPDFDoc(ctx context.Context, localPath string) (PDFDoc, error) {
	info, err := runPdfinfo(ctx, localPath)
	if err != nil {
		return nil, fmt.Errorf("service.LoadPDFDoc: %w", err)
	}

	cmd := exec.CommandContext(ctx, "pdftotext", "-layout", "-f", "1", "-l", "1", localPath, "-")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	firstPageText := ""
	if err := cmd.Run(); err == nil {
		firstPageText = strings.TrimSpace(stdout.String())
	}

	return popplerPDFDoc{
		pageCount: info.pages,
		creator:   info.creator,
		producer:  info.producer,
		firstPage: firstPageText,
	}, nil
}

type pdfinfoResult struct {
	pages    int
	creator  string
	producer string
}

func runPdfinfo(ctx context.Context, localPath string) (pdfinfoResult, error) {
	cmd := exec.CommandContext(ctx, "pdfinfo", localPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return pdfinfoResult{}, fmt.Errorf("pdfinfo: %w (%s)", err, stderr.String())
	}

	var result pdfinfoResult
	scanner := bufio.NewScanner(&stdout)
	for scanner.Scan() {
		line := scanner.Text()
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "Pages":
			if n, err := strconv.Atoi(value); err == nil {
				result.pages = n
			}
		case "Creator":
			result.creator = value
		case "Producer":
			result.producer = value
		}
	}
	return result, nil
}
