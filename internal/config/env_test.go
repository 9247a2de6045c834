package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/quarry")
	t.Setenv("GCP_PROJECT", "quarry-test")

	cfg := LoadConfig()

	assert.Equal(t, "quarry-uploads", cfg.UploadsBucket)
	assert.Equal(t, "quarry-extracted-text", cfg.ExtractedBucket)
	assert.Equal(t, "ingestion-request", cfg.IngestionTopic)
	assert.Equal(t, "extractor-sub", cfg.ExtractorSubscription)
	assert.Equal(t, "extraction-topic", cfg.ExtractionTopic)
	assert.Equal(t, "chunker-sub", cfg.ChunkerSubscription)
	assert.Equal(t, "embedding-topic", cfg.EmbeddingTopic)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "512")
	assert.Equal(t, 512, getEnvInt("CHUNK_SIZE", 1000))

	t.Setenv("CHUNK_SIZE", "not-a-number")
	assert.Equal(t, 1000, getEnvInt("CHUNK_SIZE", 1000))

	assert.Equal(t, 7, getEnvInt("QUARRY_UNSET_KEY", 7))
}
