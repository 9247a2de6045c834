package models

import (
	"errors"
	"strings"
	"time"
)

// TextBlock is one typed, ordered unit of extracted text. Type is a coarse
// content category (heading, paragraph, list item, table, error); order within
// a document is the only positional signal retained across extraction
// strategies.
type TextBlock struct {
	Type     string            `json:"type"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// BlockTypeError marks a block that carries an extraction failure message
// instead of document text. It flows downstream like any other block.
const BlockTypeError = "error"

// ExtractedDocument is the structured result of one extraction run. It is
// written once to the extracted-text bucket at {source}/{document_id}.json;
// re-extraction overwrites the object, it never patches it.
type ExtractedDocument struct {
	TenantID       string      `json:"tenant_id"`
	DocumentID     string      `json:"document_id"`
	Source         string      `json:"source"` // "file" or "url"
	StructuredText []TextBlock `json:"structured_text"`
	OriginLocator  string      `json:"origin_locator"`
}

// Document is the registry row created when a submission is accepted.
// Status moves submitted -> extracted -> chunked; stages update it
// best-effort and never read it to make decisions.
type Document struct {
	ID          string    `db:"id" json:"id"`
	TenantID    string    `db:"tenant_id" json:"tenant_id"`
	FileName    string    `db:"file_name" json:"file_name"`
	SourceType  string    `db:"source_type" json:"source_type"` // "file" or "url"
	Locator     string    `db:"locator" json:"locator"`         // uploads-bucket key or original URL
	ArtifactURL string    `db:"artifact_url" json:"artifact_url"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

const (
	StatusSubmitted = "submitted"
	StatusExtracted = "extracted"
	StatusChunked   = "chunked"
)

// IngestionEvent announces one accepted submission to the extraction stage.
// Locator is the uploads-bucket key for files and the submitted URL for URLs.
type IngestionEvent struct {
	Type       string `json:"type"` // "file" or "url"
	TenantID   string `json:"tenant_id"`
	DocumentID string `json:"document_id"`
	Locator    string `json:"locator"`
	Filename   string `json:"filename,omitempty"`
}

func (e *IngestionEvent) Validate() error {
	if e.Type == "" {
		return errors.New("ingestion event: missing type")
	}
	if e.TenantID == "" {
		return errors.New("ingestion event: missing tenant_id")
	}
	if e.DocumentID == "" {
		return errors.New("ingestion event: missing document_id")
	}
	if e.Locator == "" {
		return errors.New("ingestion event: missing locator")
	}
	return nil
}

// ExtractionComplete carries the structured text of one extracted document to
// the chunking stage. Text is the flattened form; consumers fall back to
// flattening StructuredText themselves when it is absent. ChunkSize and
// ChunkOverlap are optional per-document overrides of the chunker defaults.
type ExtractionComplete struct {
	DocumentID           string      `json:"document_id"`
	TenantID             string      `json:"tenant_id"`
	Source               string      `json:"source"`
	StructuredText       []TextBlock `json:"structured_text,omitempty"`
	Text                 string      `json:"text,omitempty"`
	Filename             string      `json:"filename,omitempty"`
	ExtractedArtifactURL string      `json:"extracted_artifact_url,omitempty"`
	ChunkSize            int         `json:"chunk_size,omitempty"`
	ChunkOverlap         int         `json:"chunk_overlap,omitempty"`
}

func (e *ExtractionComplete) Validate() error {
	if e.TenantID == "" {
		return errors.New("extraction-complete event: missing tenant_id")
	}
	if e.DocumentID == "" {
		return errors.New("extraction-complete event: missing document_id")
	}
	return nil
}

// FlattenedText returns the text the chunker should operate on: the
// pre-flattened Text when present, otherwise the ordered concatenation of
// StructuredText blocks.
func (e *ExtractionComplete) FlattenedText() string {
	if e.Text != "" {
		return e.Text
	}
	return FlattenBlocks(e.StructuredText)
}

// FlattenBlocks joins block texts in order. Chunk offsets refer to this
// flattened string, so the join rule must stay stable.
func FlattenBlocks(blocks []TextBlock) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.Text == "" {
			continue
		}
		parts = append(parts, b.Text)
	}
	return strings.Join(parts, "\n\n")
}

// Chunk is one window of the flattened document text, published to the
// embedding topic. StartOffset/EndOffset are character offsets into the
// flattened text; ChunkIndex is the zero-based position within one chunking
// run. Chunks are ephemeral: published once, never persisted here.
type Chunk struct {
	ChunkID     string `json:"chunk_id"`
	TenantID    string `json:"tenant_id"`
	DocumentID  string `json:"document_id"`
	ChunkText   string `json:"chunk_text"`
	ChunkIndex  int    `json:"chunk_index"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
}

// URLExtraction is the result of the URL fallback chain. Error is empty on
// success; ErrorKind distinguishes retriable network failures from permanent
// extraction failures.
type URLExtraction struct {
	URL      string      `json:"url"`
	Sections []TextBlock `json:"sections,omitempty"`
	Error    string      `json:"error,omitempty"`
	ErrKind  string      `json:"-"`
}

const (
	URLErrTimeout    = "timeout"
	URLErrNetwork    = "network"
	URLErrExtraction = "extraction"
)
