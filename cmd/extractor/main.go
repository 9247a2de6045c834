package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/quarrylabs/quarry/internal/config"
	db "github.com/quarrylabs/quarry/internal/core/database"
	extractionengine "github.com/quarrylabs/quarry/internal/core/extraction_engine"
	objectclient "github.com/quarrylabs/quarry/internal/core/object-client"
	pubsubclient "github.com/quarrylabs/quarry/internal/core/pubsub-client"
	"github.com/quarrylabs/quarry/internal/services"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle SIGINT/SIGTERM for graceful shutdown
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		<-c
		cancel()
	}()

	cfg := config.LoadConfig()

	dbClient, err := db.NewDatabaseClient(ctx, cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer dbClient.Close()

	objClient, err := objectclient.NewS3Client(ctx, cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}

	broker, err := pubsubclient.NewPubSubClient(ctx, cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer broker.Close()

	svc := services.NewExtractionService(
		dbClient,
		objClient,
		broker,
		extractionengine.NewPDFExtractor(),
		extractionengine.NewURLExtractor(),
		cfg,
	)

	log.Printf("Extractor consuming from %s", cfg.ExtractorSubscription)
	if err := broker.Receive(ctx, cfg.ExtractorSubscription, svc.HandleMessage); err != nil && ctx.Err() == nil {
		log.Fatalf("receive: %v", err)
	}
	log.Println("shutting down...")
}
