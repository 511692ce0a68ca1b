package service

import "testing"

func TestNewKeywordExtractorService_DefaultsToStandard(t *testing.T) {
	s := NewKeywordExtractorService("bogus")
	if s.params.ngramMax != 3 || s.params.keywordsPerChunk != 5 {
		t.Errorf("params = %+v, want standard defaults", s.params)
	}
}

func TestExtractForChunks_EmptyInput(t *testing.T) {
	s := NewKeywordExtractorService("standard")
	results, docKeywords := s.ExtractForChunks(nil)
	if results != nil || docKeywords != nil {
		t.Errorf("expected nil results for empty input, got %v, %v", results, docKeywords)
	}
}

func TestExtractForChunks_ProducesKeywords(t *testing.T) {
	s := NewKeywordExtractorService("standard")
	chunks := []ChunkTagInput{
		{ChunkID: 1, Text: "groundwater quality monitoring occurs near the watershed boundary groundwater quality"},
		{ChunkID: 2, Text: "wildlife habitat assessment covers caribou migration corridors wildlife habitat"},
	}
	results, docKeywords := s.ExtractForChunks(chunks)
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if len(results[0].Keywords) == 0 {
		t.Errorf("expected chunk 0 to have keywords, got none")
	}
	if len(docKeywords) == 0 {
		t.Errorf("expected document-level keywords, got none")
	}
}

func TestExtractForChunks_FiltersStopwordsAndDomainTerms(t *testing.T) {
	s := NewKeywordExtractorService("standard")
	chunks := []ChunkTagInput{
		{ChunkID: 1, Text: "the report will describe the project assessment and the document section"},
	}
	results, _ := s.ExtractForChunks(chunks)
	for _, kw := range results[0].Keywords {
		if kw == "project" || kw == "report" || kw == "the" || kw == "document" {
			t.Errorf("keyword %q should have been filtered as a stopword/domain term", kw)
		}
	}
}

func TestExtractTerms_RespectsNgramMax(t *testing.T) {
	s := NewKeywordExtractorService("fast") // ngramMax = 2
	terms := s.extractTerms("groundwater quality monitoring program")
	for _, term := range terms {
		wordCount := 1
		for _, c := range term {
			if c == ' ' {
				wordCount++
			}
		}
		if wordCount > 2 {
			t.Errorf("term %q has %d words, want <= 2 for fast variant", term, wordCount)
		}
	}
}
