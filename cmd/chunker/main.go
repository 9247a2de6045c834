package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/quarrylabs/quarry/internal/config"
	db "github.com/quarrylabs/quarry/internal/core/database"
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

	broker, err := pubsubclient.NewPubSubClient(ctx, cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer broker.Close()

	svc := services.NewChunkingService(dbClient, broker, cfg)

	log.Printf("Chunker consuming from %s", cfg.ChunkerSubscription)
	if err := broker.Receive(ctx, cfg.ChunkerSubscription, svc.HandleMessage); err != nil && ctx.Err() == nil {
		log.Fatalf("receive: %v", err)
	}
	log.Println("shutting down...")
}
