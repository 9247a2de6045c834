package app

import (
	"context"
	"log"
	"time"

	"github.com/quarrylabs/quarry/internal/api/handlers"
	"github.com/quarrylabs/quarry/internal/config"
	"github.com/quarrylabs/quarry/internal/core"
	db "github.com/quarrylabs/quarry/internal/core/database"
	extractionengine "github.com/quarrylabs/quarry/internal/core/extraction_engine"
	objectclient "github.com/quarrylabs/quarry/internal/core/object-client"
	pubsubclient "github.com/quarrylabs/quarry/internal/core/pubsub-client"
	"github.com/quarrylabs/quarry/internal/services"
)

// App owns the ingestion API's collaborators. The extraction and chunking
// stages are separate binaries; see cmd/extractor and cmd/chunker.
type App struct {
	DBClient     core.DbClient
	ObjectClient core.ObjectClient
	Broker       *pubsubclient.PubSubClient
	Server       *Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Database initialized and ready.")

	objClient, err := objectclient.NewS3Client(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Object client initialized and ready.")

	broker, err := pubsubclient.NewPubSubClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Broker client initialized and ready.")

	submissions := services.NewSubmissionService(dbClient, objClient, broker, cfg)
	ingestion := handlers.NewIngestionHandler(
		submissions,
		extractionengine.NewPDFExtractor(),
		extractionengine.NewURLExtractor(),
	)

	server := NewServer(cfg, ingestion)

	return &App{DBClient: dbClient, ObjectClient: objClient, Broker: broker, Server: server}, nil
}

func (a *App) Close() {
	if a.Broker != nil {
		_ = a.Broker.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
