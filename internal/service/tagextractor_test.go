package service

import (
	"context"
	"testing"
)

// fakeEmbeddingClient returns a deterministic one-hot embedding per text, so
// cosine similarity is exactly 1 for strings that hash to the same index
// (identical strings always do) and 0 otherwise.
type fakeEmbeddingClient struct {
	dims int
}

func (f *fakeEmbeddingClient) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vec := make([]float32, f.dims)
		idx := hashToIndex(t, f.dims)
		vec[idx] = 1
		vectors[i] = vec
	}
	return vectors, nil
}

func hashToIndex(s string, dims int) int {
	var h int
	for _, c := range s {
		h = h*31 + int(c)
	}
	if h < 0 {
		h = -h
	}
	return h % dims
}

func TestTagExtractor_ExplicitMatch(t *testing.T) {
	svc, err := NewTagExtractorService(context.Background(), &fakeEmbeddingClient{dims: 16}, 0.6)
	if err != nil {
		t.Fatalf("NewTagExtractorService() error: %v", err)
	}
	tags := svc.ExtractTags("this document discusses AirQuality and Wildlife impacts", nil)
	if !containsTag(tags, "AirQuality") || !containsTag(tags, "Wildlife") {
		t.Errorf("ExtractTags() = %v, want AirQuality and Wildlife", tags)
	}
}

func TestTagExtractor_SemanticMatch(t *testing.T) {
	client := &fakeEmbeddingClient{dims: 16}
	svc, err := NewTagExtractorService(context.Background(), client, 0.6)
	if err != nil {
		t.Fatalf("NewTagExtractorService() error: %v", err)
	}
	// Use the same embedding as "Noise" would produce, simulating a chunk
	// whose vector is semantically identical to the tag's.
	vectors, _ := client.EmbedTexts(context.Background(), []string{"Noise"})
	tags := svc.ExtractTags("unrelated text with no substring overlap", vectors[0])
	if !containsTag(tags, "Noise") {
		t.Errorf("ExtractTags() = %v, want semantic match on Noise", tags)
	}
}

func TestTagExtractor_NoMatch(t *testing.T) {
	svc, err := NewTagExtractorService(context.Background(), &fakeEmbeddingClient{dims: 16}, 0.6)
	if err != nil {
		t.Fatalf("NewTagExtractorService() error: %v", err)
	}
	tags := svc.ExtractTags("completely unrelated filler content", nil)
	if len(tags) != 0 {
		t.Errorf("ExtractTags() = %v, want no matches", tags)
	}
}

func TestExtractForChunks_ConcurrentAggregation(t *testing.T) {
	svc, err := NewTagExtractorService(context.Background(), &fakeEmbeddingClient{dims: 16}, 0.6)
	if err != nil {
		t.Fatalf("NewTagExtractorService() error: %v", err)
	}
	chunks := []ChunkTagInput{
		{ChunkID: 1, Text: "AirQuality concerns"},
		{ChunkID: 2, Text: "Wildlife habitat"},
	}
	results, err := svc.ExtractForChunks(context.Background(), chunks)
	if err != nil {
		t.Fatalf("ExtractForChunks() error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	docTags := DocumentTags(results)
	if !containsTag(docTags, "AirQuality") || !containsTag(docTags, "Wildlife") {
		t.Errorf("DocumentTags() = %v, want AirQuality and Wildlife", docTags)
	}
}

func containsTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}
