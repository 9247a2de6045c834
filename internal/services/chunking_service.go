package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/quarrylabs/quarry/internal/config"
	"github.com/quarrylabs/quarry/internal/core"
	chunkingengine "github.com/quarrylabs/quarry/internal/core/chunking_engine"
	"github.com/quarrylabs/quarry/internal/models"
)

// ChunkingService is the chunking stage: one extraction-complete event in,
// zero or more chunk events out on the embedding topic. Chunk IDs are
// deterministic, so redelivered events re-emit identical chunks.
type ChunkingService struct {
	db  core.DbClient
	pub core.EventPublisher
	cfg *config.Config
}

func NewChunkingService(db core.DbClient, pub core.EventPublisher, cfg *config.Config) *ChunkingService {
	return &ChunkingService{db: db, pub: pub, cfg: cfg}
}

// HandleMessage is the subscription entry point.
func (s *ChunkingService) HandleMessage(ctx context.Context, data []byte) error {
	var ev models.ExtractionComplete
	if err := json.Unmarshal(data, &ev); err != nil {
		return fmt.Errorf("%w: decode extraction-complete event: %v", core.ErrMalformed, err)
	}
	return s.HandleExtractionComplete(ctx, &ev)
}

func (s *ChunkingService) HandleExtractionComplete(ctx context.Context, ev *models.ExtractionComplete) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrMalformed, err)
	}

	size, overlap := s.cfg.ChunkSize, s.cfg.ChunkOverlap
	if ev.ChunkSize > 0 {
		size = ev.ChunkSize
	}
	if ev.ChunkOverlap > 0 {
		overlap = ev.ChunkOverlap
	}

	chunks, err := chunkingengine.ChunkText(ev.FlattenedText(), size, overlap, ev.TenantID, ev.DocumentID)
	if err != nil {
		// bad parameters never loop; drop the message
		return fmt.Errorf("%w: chunk document %s: %v", core.ErrMalformed, ev.DocumentID, err)
	}

	if err := s.publishChunks(ctx, chunks); err != nil {
		return fmt.Errorf("%w: publish chunks for %s: %v", core.ErrTransient, ev.DocumentID, err)
	}

	if err := s.db.UpdateDocumentStatus(ctx, ev.DocumentID, models.StatusChunked); err != nil {
		log.Printf("chunker: status update for %s: %v", ev.DocumentID, err)
	}

	log.Printf("chunker: published %d chunks for document %s", len(chunks), ev.DocumentID)
	return nil
}

// publishChunks fans the chunk events out with bounded concurrency. Ordering
// on the topic is not guaranteed either way; chunk_index carries the order.
func (s *ChunkingService) publishChunks(ctx context.Context, chunks []models.Chunk) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, c := range chunks {
		g.Go(func() error {
			return s.pub.Publish(gctx, s.cfg.EmbeddingTopic, c)
		})
	}
	return g.Wait()
}
