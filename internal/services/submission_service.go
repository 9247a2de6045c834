package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/quarrylabs/quarry/internal/config"
	"github.com/quarrylabs/quarry/internal/core"
	extractionengine "github.com/quarrylabs/quarry/internal/core/extraction_engine"
	"github.com/quarrylabs/quarry/internal/models"
)

// SubmissionService accepts new documents into the pipeline. Acceptance and
// extraction are separate guarantees: the receipt's artifact URL is computed
// here but only resolves once the extraction stage has written the artifact.
type SubmissionService struct {
	db  core.DbClient
	obj core.ObjectClient
	pub core.EventPublisher
	cfg *config.Config
}

type SubmissionReceipt struct {
	Status               string `json:"status"`
	DocumentID           string `json:"document_id"`
	ExpectedExtractedURL string `json:"expected_extracted_url"`
}

func NewSubmissionService(db core.DbClient, obj core.ObjectClient, pub core.EventPublisher, cfg *config.Config) *SubmissionService {
	return &SubmissionService{db: db, obj: obj, pub: pub, cfg: cfg}
}

// SubmitFile stores the raw upload, records the document and hands it to the
// extraction stage.
func (s *SubmissionService) SubmitFile(ctx context.Context, tenantID, filename string, data []byte, contentType string) (*SubmissionReceipt, error) {
	docID := uuid.NewString()
	key := uploadKey(tenantID, docID, filename)

	if _, err := s.obj.UploadFile(ctx, s.cfg.UploadsBucket, key, data, contentType); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	artifactURL := s.obj.PublicURL(s.cfg.ExtractedBucket, ArtifactKey("file", docID))

	now := time.Now()
	doc := &models.Document{
		ID:          docID,
		TenantID:    tenantID,
		FileName:    filename,
		SourceType:  "file",
		Locator:     key,
		ArtifactURL: artifactURL,
		Status:      models.StatusSubmitted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.CreateDocument(ctx, doc); err != nil {
		s.discardUpload(ctx, key)
		return nil, fmt.Errorf("record document: %w", err)
	}

	ev := &models.IngestionEvent{
		Type:       "file",
		TenantID:   tenantID,
		DocumentID: docID,
		Locator:    key,
		Filename:   filename,
	}
	if err := s.pub.Publish(ctx, s.cfg.IngestionTopic, ev); err != nil {
		s.discardUpload(ctx, key)
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}

	return &SubmissionReceipt{Status: "success", DocumentID: docID, ExpectedExtractedURL: artifactURL}, nil
}

// SubmitURL records a URL submission and hands it to the extraction stage.
// Nothing is fetched here; the extraction stage owns the fallback chain.
func (s *SubmissionService) SubmitURL(ctx context.Context, tenantID, rawURL string) (*SubmissionReceipt, error) {
	docID := uuid.NewString()
	normalized := extractionengine.NormalizeURL(rawURL)

	artifactURL := s.obj.PublicURL(s.cfg.ExtractedBucket, ArtifactKey("url", docID))

	now := time.Now()
	doc := &models.Document{
		ID:          docID,
		TenantID:    tenantID,
		SourceType:  "url",
		Locator:     normalized,
		ArtifactURL: artifactURL,
		Status:      models.StatusSubmitted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("record document: %w", err)
	}

	ev := &models.IngestionEvent{
		Type:       "url",
		TenantID:   tenantID,
		DocumentID: docID,
		Locator:    normalized,
	}
	if err := s.pub.Publish(ctx, s.cfg.IngestionTopic, ev); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}

	return &SubmissionReceipt{Status: "success", DocumentID: docID, ExpectedExtractedURL: artifactURL}, nil
}

func (s *SubmissionService) ListByTenant(ctx context.Context, tenantID string) ([]models.Document, error) {
	return s.db.ListDocumentsByTenant(ctx, tenantID)
}

// GetByID returns the registry row, nil when the document is unknown. This is
// how submitters observe the submitted -> extracted -> chunked progression.
func (s *SubmissionService) GetByID(ctx context.Context, id string) (*models.Document, error) {
	return s.db.GetDocumentByID(ctx, id)
}

// OpenArtifact streams the extracted artifact for a document. The registry
// row comes back alongside so callers can report the document's status when
// the artifact has not been written yet.
func (s *SubmissionService) OpenArtifact(ctx context.Context, id string) (io.ReadCloser, *models.Document, error) {
	doc, err := s.db.GetDocumentByID(ctx, id)
	if err != nil || doc == nil {
		return nil, nil, err
	}
	rc, err := s.obj.GetObjectReader(ctx, s.cfg.ExtractedBucket, ArtifactKey(doc.SourceType, doc.ID))
	if err != nil {
		return nil, doc, fmt.Errorf("open artifact for %s: %w", id, err)
	}
	return rc, doc, nil
}

// discardUpload removes an upload that never made it into the pipeline, so a
// failed submission leaves no orphaned object behind.
func (s *SubmissionService) discardUpload(ctx context.Context, key string) {
	if err := s.obj.DeleteFile(ctx, s.cfg.UploadsBucket, key); err != nil {
		log.Printf("submission: discard upload %s: %v", key, err)
	}
}

// uploadKey creates the uploads-bucket layout {tenant_id}/{document_id}_{filename}.
func uploadKey(tenantID, docID, filename string) string {
	// Sanitize filename to prevent path traversal or invalid characters
	filename = filepath.Base(strings.TrimSpace(filename))
	filename = strings.ReplaceAll(filename, " ", "_")
	return fmt.Sprintf("%s/%s_%s", tenantID, docID, filename)
}
