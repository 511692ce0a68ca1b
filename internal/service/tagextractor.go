package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"
)

// defaultTagSimilarityThreshold is the cosine-similarity cutoff for a
// semantic tag match (spec §4.6).
const defaultTagSimilarityThreshold = 0.6

// TagExtractorService identifies relevant tags in chunk content by explicit
// substring match and by embedding cosine similarity against a fixed
// vocabulary (C8).
type TagExtractorService struct {
	embedder      EmbeddingClient
	threshold     float64
	tagEmbeddings [][]float32
}

// NewTagExtractorService embeds the tag vocabulary once up front; the
// resulting TagExtractorService is safe for concurrent use across workers.
func NewTagExtractorService(ctx context.Context, embedder EmbeddingClient, threshold float64) (*TagExtractorService, error) {
	if threshold <= 0 {
		threshold = defaultTagSimilarityThreshold
	}
	vectors, err := embedder.EmbedTexts(ctx, tagVocabulary)
	if err != nil {
		return nil, fmt.Errorf("service.NewTagExtractorService: embed tag vocabulary: %w", err)
	}
	if len(vectors) != len(tagVocabulary) {
		return nil, fmt.Errorf("service.NewTagExtractorService: got %d tag embeddings for %d tags", len(vectors), len(tagVocabulary))
	}
	return &TagExtractorService{embedder: embedder, threshold: threshold, tagEmbeddings: vectors}, nil
}

// ExtractTags returns the union of explicit and semantic tag matches for
// one chunk's text and embedding.
func (s *TagExtractorService) ExtractTags(text string, embedding []float32) []string {
	matched := make(map[string]struct{})

	textLower := strings.ToLower(text)
	for _, tag := range tagVocabulary {
		if strings.Contains(textLower, strings.ToLower(tag)) {
			matched[tag] = struct{}{}
		}
	}

	if embedding != nil {
		for i, tagVec := range s.tagEmbeddings {
			if cosineSimilarity(tagVec, embedding) > s.threshold {
				matched[tagVocabulary[i]] = struct{}{}
			}
		}
	}

	tags := make([]string, 0, len(matched))
	for tag := range matched {
		tags = append(tags, tag)
	}
	return tags
}

// ChunkTagInput pairs a chunk's content with its embedding for batch extraction.
type ChunkTagInput struct {
	ChunkID   int64
	Text      string
	Embedding []float32
}

// ChunkTagResult is one chunk's matched tags.
type ChunkTagResult struct {
	ChunkID int64
	Tags    []string
}

// ExtractForChunks processes many chunks concurrently, mirroring the
// ThreadPoolExecutor fan-out of the original tag extractor.
func (s *TagExtractorService) ExtractForChunks(ctx context.Context, chunks []ChunkTagInput) ([]ChunkTagResult, error) {
	results := make([]ChunkTagResult, len(chunks))
	g, _ := errgroup.WithContext(ctx)
	for i, c := range chunks {
		i, c := i, c
		g.Go(func() error {
			results[i] = ChunkTagResult{ChunkID: c.ChunkID, Tags: s.ExtractTags(c.Text, c.Embedding)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("service.ExtractForChunks: %w", err)
	}
	return results, nil
}

// DocumentTags aggregates the union of every chunk's tags into the
// document-level tag set (spec §4.4 step: tag/keyword extraction).
func DocumentTags(chunkResults []ChunkTagResult) []string {
	seen := make(map[string]struct{})
	for _, r := range chunkResults {
		for _, tag := range r.Tags {
			seen[tag] = struct{}{}
		}
	}
	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	return tags
}

// cosineSimilarity computes cosine similarity between two equal-length vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
