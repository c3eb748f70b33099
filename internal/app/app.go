package app

import (
	"context"
	"fmt"
	"time"

	"github.com/docforge/docforge/internal/config"
	"github.com/docforge/docforge/internal/core"
	db "github.com/docforge/docforge/internal/core/database"
	"github.com/docforge/docforge/internal/core/ingestion"
	"github.com/docforge/docforge/internal/core/llm"
	objectclient "github.com/docforge/docforge/internal/core/object-client"
	"github.com/docforge/docforge/internal/logger"
	"github.com/docforge/docforge/internal/services"
)

// App owns every long-lived component: database, object storage, the
// ingestion pipeline with its worker pool, the sweeper and the HTTP server.
type App struct {
	Log      *logger.Logger
	DBClient core.DbClient
	Pipeline *ingestion.Pipeline
	Sweeper  *services.Sweeper
	Server   *Server

	cancel context.CancelFunc
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := logger.New(cfg.AppEnv)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	initCtx, cancelInit := context.WithTimeout(ctx, 5*time.Minute)
	defer cancelInit()

	dbClient, err := db.NewDatabaseClient(initCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	log.Info("database initialized and ready")

	var objClient core.ObjectClient
	if cfg.CloudStorage {
		objClient, err = objectclient.NewS3Client(initCtx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("init object client: %w", err)
		}
		log.Info("object client initialized and ready", "bucket", cfg.BucketName)
	}

	embedProvider, err := llm.NewGeminiEmbedder(initCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}
	summarizer, err := llm.NewGeminiSummarizer(initCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		return nil, fmt.Errorf("init summarizer: %w", err)
	}
	media, err := llm.NewGeminiMediaDescriber(initCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		return nil, fmt.Errorf("init media describer: %w", err)
	}

	ingCfg := ingestion.DefaultConfig()
	ingCfg.QueueSize = cfg.QueueSize
	ingCfg.Workers = cfg.QueueWorkers

	placement := services.NewPlacementService(cfg.DocumentRoot, objClient, log)
	quota := services.NewQuotaService(dbClient)
	jobs := services.NewJobService(dbClient, log)
	documents := services.NewDocumentService(dbClient, log)
	users := services.NewUserService(dbClient)

	extractor := ingestion.NewDocconvExtractor(log, ingCfg)
	embedder := ingestion.NewEmbedder(dbClient, embedProvider, log, ingCfg)
	pipeline := ingestion.NewPipeline(
		dbClient, extractor, embedder, summarizer, media,
		quota, jobs, placement, log, ingCfg,
	)

	// When an upload server is configured this node only relays jobs;
	// otherwise the local pipeline does the work.
	var runner ingestion.Runner = pipeline
	if cfg.UploadServerURL != "" {
		runner = ingestion.NewRemoteRunner(cfg.UploadServerURL, cfg.JWTSecret, log)
		log.Info("relaying ingestion jobs", "target", cfg.UploadServerURL)
	}

	sweeper := services.NewSweeper(dbClient, placement, log, cfg.SweepInterval)

	runCtx, cancel := context.WithCancel(ctx)
	if cfg.UploadServerURL == "" {
		pipeline.Start(runCtx)
	}
	sweeper.Start(runCtx)

	server := NewServer(cfg, log, dbClient, users, documents, jobs, placement, pipeline, runner, embedder)

	return &App{
		Log:      log,
		DBClient: dbClient,
		Pipeline: pipeline,
		Sweeper:  sweeper,
		Server:   server,
		cancel:   cancel,
	}, nil
}

func (a *App) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
