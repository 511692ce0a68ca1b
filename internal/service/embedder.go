package service

import (
	"context"
	"fmt"
	"math"
)

// maxBatchSize is the max texts per Vertex AI embedding API call.
const maxBatchSize = 250

// EmbeddingClient abstracts the Vertex AI embedding API for testability (C7).
type EmbeddingClient interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedderService generates batched, L2-normalized vector embeddings.
// Implements C7: a pure function text -> vector(D), batched internally.
type EmbedderService struct {
	client     EmbeddingClient
	dimensions int
}

// NewEmbedderService creates an EmbedderService. dimensions is the
// process-wide configured embedding dimensionality (spec §3 invariant 5).
func NewEmbedderService(client EmbeddingClient, dimensions int) *EmbedderService {
	if dimensions <= 0 {
		dimensions = 768
	}
	return &EmbedderService{client: client, dimensions: dimensions}
}

// Embed generates embeddings for a slice of texts, batching as needed.
// Returns one D-dim L2-normalized vector per input text.
func (s *EmbedderService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("service.Embed: no texts provided")
	}

	allVectors := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[i:end]

		vectors, err := s.client.EmbedTexts(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("service.Embed: batch %d-%d: %w", i, end, err)
		}

		for j, vec := range vectors {
			if len(vec) != s.dimensions {
				return nil, fmt.Errorf("service.Embed: vector %d has %d dimensions, want %d", i+j, len(vec), s.dimensions)
			}
			vectors[j] = l2Normalize(vec)
		}

		allVectors = append(allVectors, vectors...)
	}

	if len(allVectors) != len(texts) {
		return nil, fmt.Errorf("service.Embed: got %d vectors for %d texts", len(allVectors), len(texts))
	}

	return allVectors, nil
}

// EmbedOne embeds a single text, used for document-level embedding (spec §4.4 step 9).
func (s *EmbedderService) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("service.EmbedOne: %w", err)
	}
	return vectors[0], nil
}

// l2Normalize normalizes a vector to unit length (L2 norm = 1).
func l2Normalize(vec []float32) []float32 {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return vec
	}

	result := make([]float32, len(vec))
	for i, v := range vec {
		result[i] = float32(float64(v) / norm)
	}
	return result
}
