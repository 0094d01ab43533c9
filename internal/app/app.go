package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/verdicta-io/verdicta/internal/config"
	"github.com/verdicta-io/verdicta/internal/core"
	db "github.com/verdicta-io/verdicta/internal/core/database"
	"github.com/verdicta-io/verdicta/internal/core/embed"
	"github.com/verdicta-io/verdicta/internal/core/extract"
	"github.com/verdicta-io/verdicta/internal/core/llm"
	objectclient "github.com/verdicta-io/verdicta/internal/core/object-client"
	"github.com/verdicta-io/verdicta/internal/core/pipeline"
	"github.com/verdicta-io/verdicta/internal/core/queue"
	"github.com/verdicta-io/verdicta/internal/core/search"
	"github.com/verdicta-io/verdicta/internal/services"
)

type App struct {
	DBClient *db.DatabaseClient
	Queue    *queue.IngestQueue
	Server   *Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("Database initialized and ready.")

	var files core.FileStore
	if cfg.StorageDir != "" {
		files, err = objectclient.NewLocalClient(cfg.StorageDir)
	} else {
		files, err = objectclient.NewS3Client(appCtx, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize file storage: %w", err)
	}
	log.Println("File storage initialized and ready.")

	geminiEmbedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder: %w", err)
	}

	geminiOCR, err := llm.NewGeminiOCR(appCtx, cfg.AIAPIKey, cfg.OCRModel)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the OCR engine: %w", err)
	}

	embedder := embed.NewGenerator(geminiEmbedder, cfg.EmbedDim, cfg.MaxEmbedChars, cfg.MinEmbedLen)
	extractor := extract.NewExtractor(geminiOCR, cfg.MinEmbeddedTextLen)

	pipe := pipeline.New(dbClient, files, extractor, embedder)
	ingestQueue := queue.NewIngestQueue(dbClient, pipe)
	ingestQueue.Start(ctx)

	engine := search.NewEngine(dbClient, dbClient, embedder, cfg.LexicalWeight, cfg.SemanticWeight)
	docService := services.NewDocumentService(dbClient, files, ingestQueue, pipe)

	server := NewServer(cfg, docService, engine, ingestQueue)

	return &App{DBClient: dbClient, Queue: ingestQueue, Server: server}, nil
}

func (a *App) Close() {
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
