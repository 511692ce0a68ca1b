// Package model defines the persisted entities of the ingestion pipeline:
// Project, Document, DocumentChunk, and ProcessingLog (spec §3).
package model

import (
	"encoding/json"
	"time"
)

// ProcessingStatus is the terminal status of a single processing attempt.
type ProcessingStatus string

const (
	StatusSuccess ProcessingStatus = "success"
	StatusFailure ProcessingStatus = "failure"
	StatusSkipped ProcessingStatus = "skipped"
)

// Project is upserted by the Document Processor before any of its documents
// are processed. Never deleted by the pipeline.
type Project struct {
	ProjectID   string          `json:"projectId"`
	ProjectName string          `json:"projectName"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Document is the row created on successful ingestion of one file.
// Deleted by the Repair Service on repair/reset/bulk-retry-failed.
type Document struct {
	DocumentID string          `json:"documentId"`
	ProjectID  string          `json:"projectId"`
	Tags       []string        `json:"tags"`
	Keywords   []string        `json:"keywords"`
	Headings   []string        `json:"headings"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	Embedding  []float32       `json:"-"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// DocumentChunk is one bounded, embedded substring of a Document's text.
type DocumentChunk struct {
	ID          int64           `json:"id,omitempty"`
	DocumentID  string          `json:"documentId"`
	ProjectID   string          `json:"projectId"`
	Content     string          `json:"content"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	Embedding   []float32       `json:"-"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// ChunkMetadata is the shape marshaled into DocumentChunk.Metadata.
type ChunkMetadata struct {
	PageNumber int      `json:"page_number"`
	Headings   []string `json:"headings"`
	S3Key      string   `json:"s3_key"`
	Tags       []string `json:"tags,omitempty"`
	Keywords   []string `json:"keywords,omitempty"`
	// Base metadata fields copied forward from the owning Document.
	DocumentName string `json:"document_name,omitempty"`
	ProjectID    string `json:"project_id,omitempty"`
}

// ProcessingLog records the outcome of one terminal processing attempt.
// The most recent row per (ProjectID, DocumentID) is the current status.
type ProcessingLog struct {
	ID          int64            `json:"id,omitempty"`
	ProjectID   string           `json:"projectId"`
	DocumentID  string           `json:"documentId"`
	Status      ProcessingStatus `json:"status"`
	ProcessedAt time.Time        `json:"processedAt"`
	Metrics     json.RawMessage  `json:"metrics,omitempty"`
}

// ProcessingMetrics is the shape marshaled into ProcessingLog.Metrics.
type ProcessingMetrics struct {
	DocumentInfo   DocumentInfoMetrics `json:"document_info"`
	SkipReason     string              `json:"skip_reason,omitempty"`
	Error          string              `json:"error,omitempty"`
	OCRProcessing  *OCRMetrics         `json:"ocr_processing,omitempty"`
	ExtractionKind string              `json:"extraction_method,omitempty"`
	PageCount      int                 `json:"page_count,omitempty"`
	ByteCount      int64               `json:"byte_count,omitempty"`
	StageTimingsMs map[string]int64    `json:"stage_timings_ms,omitempty"`
}

// DocumentInfoMetrics carries identifying info for repair/analysis queries.
type DocumentInfoMetrics struct {
	DocumentName string `json:"document_name"`
}

// OCRMetrics records the OCR gateway's decision trail for one document.
type OCRMetrics struct {
	Provider        string `json:"provider,omitempty"`
	Method          string `json:"method,omitempty"`
	Attempted       bool   `json:"ocr_attempted"`
	Successful      bool   `json:"ocr_successful"`
	PagesProcessed  int    `json:"pages_processed"`
	FailureClass    string `json:"failure_class,omitempty"`
	FailureMessage  string `json:"failure_message,omitempty"`
}

// CatalogDoc is a document record as returned by the Catalog Client (§6.1).
type CatalogDoc struct {
	ID              string `json:"_id"`
	InternalURL     string `json:"internalURL"`
	Name            string `json:"name"`
	InternalSize    string `json:"internalSize"`
	FileSize        string `json:"fileSize"`
	DocumentTypeID  string `json:"type"`
	DocumentDate    string `json:"documentDate"`
	ProponentName   string `json:"-"`
}

// DocumentTask is one unit of work produced by the Work Queue Builder (C13)
// and consumed by the Document Processor (C11).
type DocumentTask struct {
	ProjectID    string          `json:"projectId"`
	ProjectName  string          `json:"projectName"`
	ObjectKey    string          `json:"objectKey"`
	BaseMetadata json.RawMessage `json:"baseMetadata"`
	CatalogDoc   CatalogDoc      `json:"catalogDoc"`
	IsRetry      bool            `json:"isRetry"`
}

// Page is the canonical intermediate representation produced by the
// Validator & OCR Gateway (C4) and consumed by the Chunker (C6).
type Page struct {
	Text       string            `json:"text"`
	PageNumber int               `json:"page_number"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// WorkerResult is the JSON envelope a worker subprocess writes to stdout
// after running the Document Processor (C11) sequence for one DocumentTask,
// read back by the Dispatcher (C14) via cmd.Wait().
type WorkerResult struct {
	ProjectID  string           `json:"projectId"`
	DocumentID string           `json:"documentId"`
	Status     ProcessingStatus `json:"status"`
	PageCount  int              `json:"pageCount,omitempty"`
	Error      string           `json:"error,omitempty"`
}
