package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrylabs/quarry/internal/config"
	"github.com/quarrylabs/quarry/internal/core"
	"github.com/quarrylabs/quarry/internal/models"
)

func testConfig() *config.Config {
	return &config.Config{
		UploadsBucket:   "raw-uploads",
		ExtractedBucket: "extracted-text",
		IngestionTopic:  "ingestion-request",
		ExtractionTopic: "extraction-topic",
		EmbeddingTopic:  "embedding-topic",
		ChunkSize:       1000,
		ChunkOverlap:    200,
	}
}

func TestHandleIngestionEvent_File(t *testing.T) {
	cfg := testConfig()
	obj := newFakeObjectClient()
	pub := &fakePublisher{}
	dbc := newFakeDB()

	_, err := obj.UploadFile(context.Background(), cfg.UploadsBucket, "tenant-1/doc-1_report.pdf", []byte("%PDF-1.4 ..."), "application/pdf")
	require.NoError(t, err)

	blocks := []models.TextBlock{
		{Type: "heading", Text: "Report"},
		{Type: "paragraph", Text: "Quarterly results."},
	}
	svc := NewExtractionService(dbc, obj, pub, &stubPDFExtractor{blocks: blocks}, &stubURLFetcher{}, cfg)

	ev := &models.IngestionEvent{
		Type:       "file",
		TenantID:   "tenant-1",
		DocumentID: "doc-1",
		Locator:    "tenant-1/doc-1_report.pdf",
		Filename:   "report.pdf",
	}
	require.NoError(t, svc.HandleIngestionEvent(context.Background(), ev))

	// artifact persisted at {source}/{document_id}.json
	raw, err := obj.GetFile(context.Background(), cfg.ExtractedBucket, "file/doc-1.json")
	require.NoError(t, err)
	var artifact models.ExtractedDocument
	require.NoError(t, json.Unmarshal(raw, &artifact))
	assert.Equal(t, "tenant-1", artifact.TenantID)
	assert.Equal(t, "doc-1", artifact.DocumentID)
	assert.Equal(t, "file", artifact.Source)
	assert.Equal(t, blocks, artifact.StructuredText)

	events := pub.published(cfg.ExtractionTopic)
	require.Len(t, events, 1)
	out := events[0].Payload.(*models.ExtractionComplete)
	assert.Equal(t, "tenant-1", out.TenantID)
	assert.Equal(t, "doc-1", out.DocumentID)
	assert.Equal(t, "report.pdf", out.Filename)
	assert.Equal(t, "Report\n\nQuarterly results.", out.Text)
	assert.Contains(t, out.ExtractedArtifactURL, "file/doc-1.json")

	assert.Equal(t, models.StatusExtracted, dbc.status("doc-1"))
}

func TestHandleIngestionEvent_URL(t *testing.T) {
	cfg := testConfig()
	pub := &fakePublisher{}

	fetcher := &stubURLFetcher{result: models.URLExtraction{
		URL:      "https://example.com/a",
		Sections: []models.TextBlock{{Type: "p", Text: "Article body."}},
	}}
	svc := NewExtractionService(newFakeDB(), newFakeObjectClient(), pub, &stubPDFExtractor{}, fetcher, cfg)

	ev := &models.IngestionEvent{Type: "url", TenantID: "tenant-1", DocumentID: "doc-2", Locator: "https://example.com/a"}
	require.NoError(t, svc.HandleIngestionEvent(context.Background(), ev))

	events := pub.published(cfg.ExtractionTopic)
	require.Len(t, events, 1)
	out := events[0].Payload.(*models.ExtractionComplete)
	assert.Equal(t, "url", out.Source)
	assert.Equal(t, "Article body.", out.Text)
}

func TestHandleIngestionEvent_URLExtractionFailureFlowsDownstream(t *testing.T) {
	cfg := testConfig()
	obj := newFakeObjectClient()
	pub := &fakePublisher{}

	fetcher := &stubURLFetcher{result: models.URLExtraction{
		URL:     "https://example.com/a",
		Error:   "no visible text in page",
		ErrKind: models.URLErrExtraction,
	}}
	svc := NewExtractionService(newFakeDB(), obj, pub, &stubPDFExtractor{}, fetcher, cfg)

	ev := &models.IngestionEvent{Type: "url", TenantID: "tenant-1", DocumentID: "doc-3", Locator: "https://example.com/a"}
	require.NoError(t, svc.HandleIngestionEvent(context.Background(), ev))

	events := pub.published(cfg.ExtractionTopic)
	require.Len(t, events, 1)
	out := events[0].Payload.(*models.ExtractionComplete)
	require.Len(t, out.StructuredText, 1)
	assert.Equal(t, models.BlockTypeError, out.StructuredText[0].Type)
	assert.Contains(t, out.StructuredText[0].Text, "no visible text")
}

func TestHandleIngestionEvent_URLNetworkFailureIsTransient(t *testing.T) {
	cfg := testConfig()
	pub := &fakePublisher{}

	fetcher := &stubURLFetcher{result: models.URLExtraction{
		Error:   "dial tcp: connection refused",
		ErrKind: models.URLErrNetwork,
	}}
	svc := NewExtractionService(newFakeDB(), newFakeObjectClient(), pub, &stubPDFExtractor{}, fetcher, cfg)

	ev := &models.IngestionEvent{Type: "url", TenantID: "tenant-1", DocumentID: "doc-4", Locator: "example.com"}
	err := svc.HandleIngestionEvent(context.Background(), ev)
	assert.ErrorIs(t, err, core.ErrTransient)
	assert.Empty(t, pub.published(cfg.ExtractionTopic))
}

func TestHandleMessage_MissingTenantDropped(t *testing.T) {
	cfg := testConfig()
	obj := newFakeObjectClient()
	pub := &fakePublisher{}
	svc := NewExtractionService(newFakeDB(), obj, pub, &stubPDFExtractor{}, &stubURLFetcher{}, cfg)

	msg := []byte(`{"type":"file","document_id":"doc-1","locator":"tenant-1/doc-1_x.pdf"}`)
	err := svc.HandleMessage(context.Background(), msg)

	assert.ErrorIs(t, err, core.ErrMalformed)
	assert.Empty(t, pub.events)
	assert.Empty(t, obj.objects)
}

func TestHandleMessage_UndecodablePayloadDropped(t *testing.T) {
	svc := NewExtractionService(newFakeDB(), newFakeObjectClient(), &fakePublisher{}, &stubPDFExtractor{}, &stubURLFetcher{}, testConfig())

	err := svc.HandleMessage(context.Background(), []byte("not json"))
	assert.ErrorIs(t, err, core.ErrMalformed)
}

func TestHandleIngestionEvent_UnsupportedType(t *testing.T) {
	svc := NewExtractionService(newFakeDB(), newFakeObjectClient(), &fakePublisher{}, &stubPDFExtractor{}, &stubURLFetcher{}, testConfig())

	ev := &models.IngestionEvent{Type: "carrier-pigeon", TenantID: "t", DocumentID: "d", Locator: "l"}
	err := svc.HandleIngestionEvent(context.Background(), ev)
	assert.ErrorIs(t, err, core.ErrUnsupported)
}

func TestHandleIngestionEvent_DownloadFailureIsTransient(t *testing.T) {
	cfg := testConfig()
	obj := newFakeObjectClient()
	obj.getErr = errors.New("connection reset")
	pub := &fakePublisher{}
	svc := NewExtractionService(newFakeDB(), obj, pub, &stubPDFExtractor{}, &stubURLFetcher{}, cfg)

	ev := &models.IngestionEvent{Type: "file", TenantID: "t", DocumentID: "d", Locator: "t/d_x.pdf"}
	err := svc.HandleIngestionEvent(context.Background(), ev)

	assert.ErrorIs(t, err, core.ErrTransient)
	assert.Empty(t, pub.events)
}

func TestHandleIngestionEvent_PublishFailureIsTransient(t *testing.T) {
	cfg := testConfig()
	obj := newFakeObjectClient()
	_, _ = obj.UploadFile(context.Background(), cfg.UploadsBucket, "t/d_x.pdf", []byte("pdf"), "application/pdf")
	pub := &fakePublisher{err: errors.New("broker unavailable")}

	svc := NewExtractionService(newFakeDB(), obj, pub, &stubPDFExtractor{blocks: []models.TextBlock{{Type: "Text", Text: "body"}}}, &stubURLFetcher{}, cfg)

	ev := &models.IngestionEvent{Type: "file", TenantID: "t", DocumentID: "d", Locator: "t/d_x.pdf"}
	err := svc.HandleIngestionEvent(context.Background(), ev)
	assert.ErrorIs(t, err, core.ErrTransient)
}

// Redelivery overwrites the same artifact key and republishes; no divergent
// state is produced.
func TestHandleIngestionEvent_DuplicateDeliveryConverges(t *testing.T) {
	cfg := testConfig()
	obj := newFakeObjectClient()
	pub := &fakePublisher{}
	_, _ = obj.UploadFile(context.Background(), cfg.UploadsBucket, "t/d_x.pdf", []byte("pdf"), "application/pdf")

	svc := NewExtractionService(newFakeDB(), obj, pub, &stubPDFExtractor{blocks: []models.TextBlock{{Type: "Text", Text: "body"}}}, &stubURLFetcher{}, cfg)

	ev := &models.IngestionEvent{Type: "file", TenantID: "t", DocumentID: "d", Locator: "t/d_x.pdf"}
	require.NoError(t, svc.HandleIngestionEvent(context.Background(), ev))
	first, _ := obj.GetFile(context.Background(), cfg.ExtractedBucket, "file/d.json")

	require.NoError(t, svc.HandleIngestionEvent(context.Background(), ev))
	second, _ := obj.GetFile(context.Background(), cfg.ExtractedBucket, "file/d.json")

	assert.Equal(t, first, second)
	assert.Len(t, pub.published(cfg.ExtractionTopic), 2)
}
