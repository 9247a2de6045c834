package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string

	// Raw uploads and extracted artifacts live in separate buckets.
	UploadsBucket   string
	ExtractedBucket string

	GCPProject            string
	CredentialsPath       string
	IngestionTopic        string
	ExtractorSubscription string
	ExtractionTopic       string
	ChunkerSubscription   string
	EmbeddingTopic        string

	// Chunking defaults; extraction-complete messages may override per document.
	ChunkSize    int
	ChunkOverlap int

	// Consumed by the transport layer only; core logic never retries.
	MaxRetries int

	Port string
}

// LoadConfig loads the environment variables and return config
func LoadConfig() *Config {

	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),

		UploadsBucket:   getEnv("UPLOADS_BUCKET", "quarry-uploads"),
		ExtractedBucket: getEnv("EXTRACTED_TEXT_BUCKET", "quarry-extracted-text"),

		GCPProject:            getEnv("GCP_PROJECT", ""),
		CredentialsPath:       getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
		IngestionTopic:        getEnv("PUBSUB_TOPIC", "ingestion-request"),
		ExtractorSubscription: getEnv("SUBSCRIPTION_NAME", "extractor-sub"),
		ExtractionTopic:       getEnv("PUBSUB_EXTRACTION_TOPIC", "extraction-topic"),
		ChunkerSubscription:   getEnv("CHUNKER_SUBSCRIPTION", "chunker-sub"),
		EmbeddingTopic:        getEnv("PUBSUB_EMBEDDING_TOPIC", "embedding-topic"),

		ChunkSize:    getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),
		MaxRetries:   getEnvInt("MAX_RETRIES", 3),

		Port: getEnv("PORT", "8080"),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL not set")
	}
	if cfg.GCPProject == "" {
		log.Fatal("GCP_PROJECT not set")
	}

	return cfg
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("WARN: %s=%q not an int, using default %d", key, v, def)
		return def
	}
	return n
}
