package service

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// KeywordVariant selects one of three keyword-extraction tunings, all
// sharing the same TF-IDF-style n-gram scorer but trading quality for
// speed (C9, spec §4.6 / §12.3).
type KeywordVariant string

const (
	KeywordVariantStandard   KeywordVariant = "standard"
	KeywordVariantFast       KeywordVariant = "fast"
	KeywordVariantSimplified KeywordVariant = "simplified"
)

type variantParams struct {
	ngramMax           int
	keywordsPerChunk   int
	minScore           float64
	documentKeywordCap int
}

var variantParamsByName = map[KeywordVariant]variantParams{
	KeywordVariantStandard:   {ngramMax: 3, keywordsPerChunk: 5, minScore: 0.15, documentKeywordCap: 15},
	KeywordVariantFast:       {ngramMax: 2, keywordsPerChunk: 5, minScore: 0.10, documentKeywordCap: 20},
	KeywordVariantSimplified: {ngramMax: 3, keywordsPerChunk: 5, minScore: 0.10, documentKeywordCap: 25},
}

var tokenPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9]*`)

// KeywordExtractorService extracts per-chunk and document-level keywords
// using term-frequency/inverse-document-frequency scoring over a
// document's own chunks as the corpus.
type KeywordExtractorService struct {
	params variantParams
}

// NewKeywordExtractorService selects extraction parameters by variant name,
// defaulting to "standard" for an unrecognized or empty name.
func NewKeywordExtractorService(variant string) *KeywordExtractorService {
	p, ok := variantParamsByName[KeywordVariant(variant)]
	if !ok {
		p = variantParamsByName[KeywordVariantStandard]
	}
	return &KeywordExtractorService{params: p}
}

// ChunkKeywordResult is one chunk's extracted keyword list.
type ChunkKeywordResult struct {
	ChunkID  int64
	Keywords []string
}

// ExtractForChunks scores every chunk's content against the document's own
// chunks as the TF-IDF corpus, returning per-chunk keywords plus the
// document-level union capped and ranked by cross-chunk frequency.
func (s *KeywordExtractorService) ExtractForChunks(chunks []ChunkTagInput) ([]ChunkKeywordResult, []string) {
	if len(chunks) == 0 {
		return nil, nil
	}

	chunkTerms := make([]map[string]int, len(chunks))
	docFreq := make(map[string]int)
	for i, c := range chunks {
		terms := s.extractTerms(c.Text)
		counts := make(map[string]int, len(terms))
		for _, t := range terms {
			counts[t]++
		}
		chunkTerms[i] = counts
		for t := range counts {
			docFreq[t]++
		}
	}

	n := float64(len(chunks))
	results := make([]ChunkKeywordResult, len(chunks))
	frequency := make(map[string]int)

	for i, c := range chunks {
		counts := chunkTerms[i]
		weights := make(map[string]float64, len(counts))
		var norm float64
		for term, cnt := range counts {
			idf := math.Log((1+n)/(1+float64(docFreq[term]))) + 1 // +1 keeps single-chunk documents (idf=0) scorable
			weights[term] = float64(cnt) * idf
			norm += weights[term] * weights[term]
		}
		norm = math.Sqrt(norm)

		type scored struct {
			term  string
			score float64
		}
		var candidates []scored
		for term, w := range weights {
			score := w / norm // L2-normalized TF-IDF weight, as TfidfVectorizer computes it
			if score >= s.params.minScore {
				candidates = append(candidates, scored{term: term, score: score})
			}
		}
		sort.Slice(candidates, func(a, b int) bool { return candidates[a].score > candidates[b].score })

		keywords := make([]string, 0, s.params.keywordsPerChunk)
		for _, cand := range candidates {
			if len(keywords) >= s.params.keywordsPerChunk {
				break
			}
			keywords = append(keywords, cand.term)
			frequency[cand.term]++
		}
		results[i] = ChunkKeywordResult{ChunkID: c.ChunkID, Keywords: keywords}
	}

	type freqEntry struct {
		term string
		freq int
	}
	entries := make([]freqEntry, 0, len(frequency))
	for term, freq := range frequency {
		entries = append(entries, freqEntry{term: term, freq: freq})
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].freq > entries[b].freq })

	docKeywords := make([]string, 0, s.params.documentKeywordCap)
	for _, e := range entries {
		if len(docKeywords) >= s.params.documentKeywordCap {
			break
		}
		docKeywords = append(docKeywords, e.term)
	}

	return results, docKeywords
}

// extractTerms tokenizes text into lowercase 1..ngramMax word n-grams,
// dropping stopwords, digit-only tokens, and terms outside a sane length.
func (s *KeywordExtractorService) extractTerms(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	words := make([]string, 0, len(raw))
	for _, w := range raw {
		if len(w) <= 2 || len(w) >= 50 || isStopword(w) {
			continue
		}
		words = append(words, w)
	}

	var terms []string
	for n := 1; n <= s.params.ngramMax; n++ {
		for i := 0; i+n <= len(words); i++ {
			terms = append(terms, strings.Join(words[i:i+n], " "))
		}
	}
	return terms
}
