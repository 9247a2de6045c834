package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/quarrylabs/quarry/internal/config"
	"github.com/quarrylabs/quarry/internal/core"
	"github.com/quarrylabs/quarry/internal/models"
)

// PDFExtractor is the file-bytes extraction capability the stage consumes.
type PDFExtractor interface {
	Extract(data []byte) []models.TextBlock
}

// URLFetcher is the URL extraction capability the stage consumes.
type URLFetcher interface {
	Extract(ctx context.Context, url string) models.URLExtraction
}

// ExtractionService is the extraction stage: one ingestion event in, one
// extracted artifact persisted, one extraction-complete event out. Handlers
// may see the same event more than once; the artifact write is an overwrite
// of a key unique to the document, so duplicates converge on the same state.
type ExtractionService struct {
	db  core.DbClient
	obj core.ObjectClient
	pub core.EventPublisher
	pdf PDFExtractor
	url URLFetcher
	cfg *config.Config
}

func NewExtractionService(db core.DbClient, obj core.ObjectClient, pub core.EventPublisher, pdf PDFExtractor, url URLFetcher, cfg *config.Config) *ExtractionService {
	return &ExtractionService{db: db, obj: obj, pub: pub, pdf: pdf, url: url, cfg: cfg}
}

// HandleMessage is the subscription entry point.
func (s *ExtractionService) HandleMessage(ctx context.Context, data []byte) error {
	var ev models.IngestionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("%w: decode ingestion event: %v", core.ErrMalformed, err)
	}
	return s.HandleIngestionEvent(ctx, &ev)
}

func (s *ExtractionService) HandleIngestionEvent(ctx context.Context, ev *models.IngestionEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrMalformed, err)
	}

	var blocks []models.TextBlock
	switch ev.Type {
	case "file":
		data, err := s.obj.GetFile(ctx, s.cfg.UploadsBucket, ev.Locator)
		if err != nil {
			return fmt.Errorf("%w: download %s: %v", core.ErrTransient, ev.Locator, err)
		}
		blocks = s.pdf.Extract(data)

	case "url":
		res := s.url.Extract(ctx, ev.Locator)
		switch res.ErrKind {
		case models.URLErrTimeout, models.URLErrNetwork:
			// retriable: let the broker redeliver
			return fmt.Errorf("%w: fetch %s: %s", core.ErrTransient, ev.Locator, res.Error)
		}
		if res.Error != "" {
			blocks = []models.TextBlock{{Type: models.BlockTypeError, Text: res.Error}}
		} else {
			blocks = res.Sections
		}

	default:
		return fmt.Errorf("%w: ingestion type %q", core.ErrUnsupported, ev.Type)
	}

	doc := &models.ExtractedDocument{
		TenantID:       ev.TenantID,
		DocumentID:     ev.DocumentID,
		Source:         ev.Type,
		StructuredText: blocks,
		OriginLocator:  ev.Locator,
	}

	artifactURL, err := s.persistArtifact(ctx, doc)
	if err != nil {
		return fmt.Errorf("%w: persist artifact for %s: %v", core.ErrTransient, ev.DocumentID, err)
	}

	if err := s.db.UpdateDocumentStatus(ctx, ev.DocumentID, models.StatusExtracted); err != nil {
		log.Printf("extractor: status update for %s: %v", ev.DocumentID, err)
	}

	out := &models.ExtractionComplete{
		DocumentID:           ev.DocumentID,
		TenantID:             ev.TenantID,
		Source:               ev.Type,
		StructuredText:       blocks,
		Text:                 models.FlattenBlocks(blocks),
		Filename:             ev.Filename,
		ExtractedArtifactURL: artifactURL,
	}
	if err := s.pub.Publish(ctx, s.cfg.ExtractionTopic, out); err != nil {
		return fmt.Errorf("%w: publish extraction-complete for %s: %v", core.ErrTransient, ev.DocumentID, err)
	}

	log.Printf("extractor: document %s extracted (%d blocks)", ev.DocumentID, len(blocks))
	return nil
}

func (s *ExtractionService) persistArtifact(ctx context.Context, doc *models.ExtractedDocument) (string, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	key := ArtifactKey(doc.Source, doc.DocumentID)
	return s.obj.UploadFile(ctx, s.cfg.ExtractedBucket, key, body, "application/json")
}

// ArtifactKey is the storage layout for extracted artifacts. The submission
// API predicts public URLs from the same layout before the artifact exists.
func ArtifactKey(source, documentID string) string {
	return fmt.Sprintf("%s/%s.json", source, documentID)
}
