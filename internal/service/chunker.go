package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/bcgov/epic-search-embedder/internal/model"
)

// ChunkerService splits markdown pages into bounded, heading-aware chunks (C6).
type ChunkerService struct {
	chunkSize  int     // target tokens per chunk (default 768)
	overlapPct float64 // overlap between adjacent chunks (default 0.20)
}

// NewChunkerService creates a ChunkerService with the given parameters.
func NewChunkerService(chunkSize int, overlapPct float64) *ChunkerService {
	if chunkSize <= 0 {
		chunkSize = 768
	}
	if overlapPct <= 0 || overlapPct >= 1 {
		overlapPct = 0.20
	}
	return &ChunkerService{
		chunkSize:  chunkSize,
		overlapPct: overlapPct,
	}
}

// RawChunk is an intermediate chunk, before embedding/tagging/keyword extraction.
type RawChunk struct {
	Content    string
	PageNumber int
	Headings   []string
}

// Chunk splits a sequence of pages into overlapping, heading-aware chunks.
// Implements C6 of the component table.
func (s *ChunkerService) Chunk(ctx context.Context, pages []model.Page) ([]RawChunk, error) {
	var segments []segment
	headingStack := []string{}

	for _, page := range pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		paragraphs := splitParagraphs(page.Text)
		pageSegments := s.buildSegments(paragraphs, page.PageNumber, &headingStack)
		segments = append(segments, pageSegments...)
	}

	if len(segments) == 0 {
		return nil, fmt.Errorf("service.Chunk: no content after splitting")
	}

	overlapped := s.applyOverlap(segments)

	chunks := make([]RawChunk, 0, len(overlapped))
	for _, seg := range overlapped {
		content := strings.TrimSpace(seg.content)
		if content == "" {
			continue
		}
		chunks = append(chunks, RawChunk{
			Content:    content,
			PageNumber: seg.pageNumber,
			Headings:   seg.headings,
		})
	}

	return chunks, nil
}

type segment struct {
	content    string
	headings   []string
	pageNumber int
}

// buildSegments merges small paragraphs and splits large ones to fit chunkSize,
// threading a running heading stack (H1..H6) through each emitted segment.
func (s *ChunkerService) buildSegments(paragraphs []string, pageNumber int, headingStack *[]string) []segment {
	var segments []segment
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			segments = append(segments, segment{
				content:    current.String(),
				headings:   append([]string(nil), (*headingStack)...),
				pageNumber: pageNumber,
			})
			current.Reset()
		}
	}

	for _, para := range paragraphs {
		if level, title := extractHeading(para); level > 0 {
			updateHeadingStack(headingStack, level, title)
			continue
		}

		paraTokens := estimateTokens(para)
		currentTokens := estimateTokens(current.String())

		if currentTokens > 0 && currentTokens+paraTokens > s.chunkSize {
			flush()
		}

		if paraTokens > s.chunkSize {
			flush()
			for _, sub := range splitLargeParagraph(para, s.chunkSize) {
				segments = append(segments, segment{
					content:    sub,
					headings:   append([]string(nil), (*headingStack)...),
					pageNumber: pageNumber,
				})
			}
			continue
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}

	flush()
	return segments
}

// applyOverlap duplicates the last overlapPct of each chunk as prefix of the next.
func (s *ChunkerService) applyOverlap(segments []segment) []segment {
	if len(segments) <= 1 {
		return segments
	}

	result := make([]segment, len(segments))
	result[0] = segments[0]

	for i := 1; i < len(segments); i++ {
		prevContent := segments[i-1].content
		overlapWords := int(math.Ceil(float64(wordCount(prevContent)) * s.overlapPct))
		tail := lastNWords(prevContent, overlapWords)

		if tail != "" {
			result[i] = segment{
				content:    tail + "\n\n" + segments[i].content,
				headings:   segments[i].headings,
				pageNumber: segments[i].pageNumber,
			}
		} else {
			result[i] = segments[i]
		}
	}

	return result
}

// splitParagraphs splits text on double newlines into paragraphs,
// filtering out empty/whitespace-only entries.
func splitParagraphs(text string) []string {
	raw := strings.Split(text, "\n\n")
	var result []string
	for _, p := range raw {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// splitLargeParagraph splits a paragraph that exceeds chunkSize into
// sentence-boundary-aware sub-chunks.
func splitLargeParagraph(para string, chunkSize int) []string {
	sentences := splitSentences(para)
	var chunks []string
	var current strings.Builder

	for _, sent := range sentences {
		sentTokens := estimateTokens(sent)
		currentTokens := estimateTokens(current.String())

		if currentTokens > 0 && currentTokens+sentTokens > chunkSize {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sent)
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}

	if len(chunks) == 0 && len(para) > 0 {
		chunks = splitByWords(para, chunkSize)
	}

	return chunks
}

// splitSentences does a basic sentence split on ". ", "! ", "? ".
func splitSentences(text string) []string {
	var sentences []string
	current := strings.Builder{}

	for i, r := range text {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(text) && text[i+1] == ' ' {
			sentences = append(sentences, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if current.Len() > 0 {
		sentences = append(sentences, strings.TrimSpace(current.String()))
	}
	return sentences
}

// splitByWords splits text into chunks of approximately chunkSize tokens by word count.
func splitByWords(text string, chunkSize int) []string {
	words := strings.Fields(text)
	wordsPerChunk := int(float64(chunkSize) / 1.3)
	if wordsPerChunk <= 0 {
		wordsPerChunk = 1
	}

	var chunks []string
	for i := 0; i < len(words); i += wordsPerChunk {
		end := i + wordsPerChunk
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
	}
	return chunks
}

// extractHeading detects a markdown-style header (# Title .. ###### Title)
// and returns its level (1-6) and title, or (0, "") if para isn't a header.
func extractHeading(para string) (int, string) {
	trimmed := strings.TrimSpace(para)
	level := 0
	for level < len(trimmed) && level < 6 && trimmed[level] == '#' {
		level++
	}
	if level == 0 || level >= len(trimmed) || trimmed[level] != ' ' {
		return 0, ""
	}
	title := strings.TrimSpace(trimmed[level:])
	if title == "" {
		return 0, ""
	}
	return level, title
}

// updateHeadingStack replaces the stack entry at level-1, truncating deeper levels.
func updateHeadingStack(stack *[]string, level int, title string) {
	s := *stack
	for len(s) < level {
		s = append(s, "")
	}
	s = s[:level]
	s[level-1] = title
	*stack = s
}

// estimateTokens approximates token count as words * 1.3.
func estimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	return int(math.Ceil(float64(words) * 1.3))
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

// lastNWords returns the last n words of text.
func lastNWords(text string, n int) string {
	words := strings.Fields(text)
	if n >= len(words) {
		return text
	}
	return strings.Join(words[len(words)-n:], " ")
}
