// Package imageanalysis implements the image-analysis fallback the
// Validator falls back to when OCR finds no readable text on a pure image
// (spec §4.5's Image branch): an Azure Computer Vision description, tag and
// keyword synthesis, grounded on the original's image_analysis.py.
package imageanalysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"
)

// minDimensionPixels is Azure Computer Vision's documented minimum image
// dimension; below it the API rejects the request outright.
const minDimensionPixels = 50

// ErrImageTooSmall means the image's dimensions are below Azure Computer
// Vision's minimum before any request is even sent (spec §8's literal
// 49x49 boundary case).
var ErrImageTooSmall = errors.New("imageanalysis: image below minimum 50x50px dimension")

// Result is the synthetic page content the Validator builds from a
// successful analysis: description, tags and a derived keyword set, the Go
// analogue of image_analysis.py's analysis_result dict.
type Result struct {
	Description    string
	Tags           []string
	Objects        []string
	Categories     []string
	Confidence     float64
	SearchableText string
	Keywords       []string
}

// Provider analyzes a local image file and returns descriptive content, or
// an error. ValidatorService skips with the error's Reason when it carries
// one, and with a generic "ocr_failed" skip otherwise.
type Provider interface {
	Analyze(ctx context.Context, localPath, objectKey string) (Result, error)
}

// AzureVisionProvider calls Azure Computer Vision's v3.2 analyze endpoint.
type AzureVisionProvider struct {
	endpoint            string
	key                 string
	confidenceThreshold float64
	httpClient          *http.Client
}

// NewAzureVisionProvider creates an AzureVisionProvider. endpoint and key
// are required; confidenceThreshold filters tags/objects/categories below
// it, mirroring IMAGE_ANALYSIS_CONFIDENCE_THRESHOLD.
func NewAzureVisionProvider(endpoint, key string, confidenceThreshold float64) *AzureVisionProvider {
	return &AzureVisionProvider{
		endpoint:            strings.TrimRight(endpoint, "/"),
		key:                 key,
		confidenceThreshold: confidenceThreshold,
		httpClient:          &http.Client{Timeout: 30 * time.Second},
	}
}

// azureCaption, azureTag, azureObject, azureCategory and azureResponse
// mirror the subset of Azure Computer Vision's v3.2 analyze response the
// original extracts from (description/captions, tags, objects, categories).
type azureCaption struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type azureDescription struct {
	Captions []azureCaption `json:"captions"`
}

type azureTag struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

type azureObject struct {
	Object     string  `json:"object"`
	Confidence float64 `json:"confidence"`
}

type azureCategory struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

type azureResponse struct {
	Description azureDescription `json:"description"`
	Tags        []azureTag       `json:"tags"`
	Objects     []azureObject    `json:"objects"`
	Categories  []azureCategory  `json:"categories"`
}

// azureErrorEnvelope unwraps Azure's {"error": {"message": "..."}} body on
// a non-2xx response.
type azureErrorEnvelope struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// categorizedError is a Provider failure with a spec §7-style skip reason
// attached, so the Validator can surface it instead of a generic
// "ocr_failed".
type categorizedError struct {
	reason string
	err    error
}

func (e *categorizedError) Error() string { return e.err.Error() }
func (e *categorizedError) Unwrap() error { return e.err }

// Reason returns the skip reason a categorizedError carries, or "" for any
// other error.
func Reason(err error) string {
	var ce *categorizedError
	if errors.As(err, &ce) {
		return ce.reason
	}
	return ""
}

// Analyze checks the image's dimensions, sends it to Azure Computer Vision,
// and synthesizes a searchable Result from the description/tags/objects it
// returns.
func (p *AzureVisionProvider) Analyze(ctx context.Context, localPath, objectKey string) (Result, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return Result{}, fmt.Errorf("imageanalysis.Analyze: read image: %w", err)
	}

	if width, height, ok := decodeDimensions(data); ok && (width < minDimensionPixels || height < minDimensionPixels) {
		return Result{}, &categorizedError{reason: "image_too_small", err: fmt.Errorf("%w (%dx%d)", ErrImageTooSmall, width, height)}
	}

	reqURL := fmt.Sprintf("%s/vision/v3.2/analyze?%s", p.endpoint, url.Values{
		"visualFeatures": {"Description,Tags,Objects,Categories"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("imageanalysis.Analyze: build request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", p.key)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("imageanalysis.Analyze: request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	switch resp.StatusCode {
	case http.StatusOK:
		// fall through to decode below
	case http.StatusBadRequest:
		return Result{}, &categorizedError{reason: "azure_validation_failed", err: fmt.Errorf("azure rejected image %s: %s", objectKey, azureErrorMessage(body))}
	case http.StatusForbidden:
		return Result{}, &categorizedError{reason: "azure_permission_denied", err: fmt.Errorf("azure permission denied for %s", objectKey)}
	case http.StatusTooManyRequests:
		return Result{}, &categorizedError{reason: "azure_rate_limited", err: fmt.Errorf("azure rate limited for %s", objectKey)}
	default:
		return Result{}, fmt.Errorf("imageanalysis.Analyze: unexpected status %d: %s", resp.StatusCode, azureErrorMessage(body))
	}

	var parsed azureResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Result{}, fmt.Errorf("imageanalysis.Analyze: decode response: %w", err)
	}

	var description string
	var confidence float64
	if len(parsed.Description.Captions) > 0 {
		description = parsed.Description.Captions[0].Text
		confidence = parsed.Description.Captions[0].Confidence
	}

	tags := filterByConfidence(parsed.Tags, p.confidenceThreshold, func(t azureTag) (string, float64) { return t.Name, t.Confidence })
	objects := filterByConfidence(parsed.Objects, p.confidenceThreshold, func(o azureObject) (string, float64) { return o.Object, o.Confidence })
	categories := filterByConfidence(parsed.Categories, p.confidenceThreshold, func(c azureCategory) (string, float64) { return c.Name, c.Score })

	return Result{
		Description:    description,
		Tags:           tags,
		Objects:        objects,
		Categories:     categories,
		Confidence:     confidence,
		SearchableText: generateSearchableText(objectKey, description, tags, objects, categories),
		Keywords:       generateKeywords(description, tags, objects),
	}, nil
}

func decodeDimensions(data []byte) (width, height int, ok bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}

func azureErrorMessage(body []byte) string {
	if len(body) == 0 {
		return "empty response body"
	}
	var env azureErrorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error.Message == "" {
		return string(body)
	}
	return env.Error.Message
}

func filterByConfidence[T any](items []T, threshold float64, extract func(T) (string, float64)) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		name, score := extract(item)
		if score > threshold {
			out = append(out, name)
		}
	}
	return out
}

// generateSearchableText mirrors _generate_searchable_text: a pipe-joined
// summary of the visual content description, tags and objects for the
// synthetic page's body text.
func generateSearchableText(objectKey, description string, tags, objects, categories []string) string {
	parts := []string{fmt.Sprintf("Visual content description: %s", description)}
	if len(tags) > 0 {
		parts = append(parts, fmt.Sprintf("Visual elements: %s", strings.Join(tags, ", ")))
	}
	if len(objects) > 0 {
		parts = append(parts, fmt.Sprintf("Detected objects: %s", strings.Join(objects, ", ")))
	}
	if len(categories) > 0 {
		parts = append(parts, fmt.Sprintf("Content categories: %s", strings.Join(categories, ", ")))
	}
	parts = append(parts, "Content type: digital image analyzed with azure_computer_vision")
	return strings.Join(parts, " | ")
}

// generateKeywords mirrors generate_image_keywords's base-image, tag- and
// object-derived keyword variants, bounded to the description's distinct
// words rather than the original's unbounded per-word combinatorics.
func generateKeywords(description string, tags, objects []string) []string {
	set := map[string]struct{}{
		"image": {}, "picture": {}, "photo": {}, "visual": {}, "graphic": {},
	}
	for _, word := range strings.Fields(strings.ToLower(description)) {
		if len(word) <= 3 {
			continue
		}
		set[word] = struct{}{}
		set["image of "+word] = struct{}{}
	}
	for _, tag := range tags {
		tag = strings.ToLower(tag)
		set[tag] = struct{}{}
		set[tag+" image"] = struct{}{}
	}
	for _, obj := range objects {
		obj = strings.ToLower(obj)
		set[obj] = struct{}{}
		set["image containing "+obj] = struct{}{}
	}

	keywords := make([]string, 0, len(set))
	for k := range set {
		keywords = append(keywords, k)
	}
	sort.Strings(keywords)
	return keywords
}
