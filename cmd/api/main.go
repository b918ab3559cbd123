package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/evidence-agent/backend/internal/api/handlers"
	"github.com/evidence-agent/backend/internal/cache/redis"
	"github.com/evidence-agent/backend/internal/evaluation"
	"github.com/evidence-agent/backend/internal/ingestion"
	"github.com/evidence-agent/backend/internal/llm"
	"github.com/evidence-agent/backend/internal/metrics"
	"github.com/evidence-agent/backend/internal/middleware/ratelimit"
	"github.com/evidence-agent/backend/internal/middleware/security"
	"github.com/evidence-agent/backend/internal/middleware/validation"
	"github.com/evidence-agent/backend/internal/pipeline"
	"github.com/evidence-agent/backend/internal/storage/sqlite"
	"github.com/evidence-agent/backend/internal/vector"
	"github.com/evidence-agent/backend/internal/vector/flat"
	"github.com/evidence-agent/backend/internal/vector/milvus"
	"github.com/evidence-agent/backend/pkg/config"
	appLogger "github.com/evidence-agent/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Evidence Agent API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	index, err := newVectorIndex(cfg.Vector)
	if err != nil {
		appLogger.Fatal("Failed to create vector index", zap.Error(err))
	}
	defer index.Close()

	llmService, err := llm.New(cfg.LLM)
	if err != nil {
		appLogger.Fatal("Failed to create LLM service", zap.Error(err))
	}

	var cacheClient *redis.Client
	if cfg.Redis.Enabled {
		cacheClient, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, continuing without cache", zap.Error(err))
			cacheClient = nil
		} else {
			defer cacheClient.Close()
		}
	}

	if cacheClient != nil {
		llmService = llm.NewCachedService(llmService, cacheClient)
	}

	pipe := pipeline.New(llmService, index, cfg.Pipeline)
	processor := ingestion.NewProcessor(sqliteClient, index, llmService, cacheClient,
		cfg.Ingestion.MaxChunkSize, cfg.Ingestion.ChunkOverlap)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.Headers(security.Config{}))

	limiter := ratelimit.New(ratelimit.Config{Logger: appLogger.GetLogger()})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	app.Use(validation.Middleware(validation.Config{Logger: appLogger.GetLogger()}))

	queryHandler := handlers.NewQueryHandler(pipe, sqliteClient, cacheClient)
	documentHandler := handlers.NewDocumentHandler(processor, sqliteClient, cfg.Ingestion.UploadDir)
	healthHandler := handlers.NewHealthHandler(llmService, index, sqliteClient, cacheClient)
	wsHandler := handlers.NewWebSocketHandler(pipe, sqliteClient)
	evaluationHandler := handlers.NewEvaluationHandler(sqliteClient, evaluation.NewEvaluator(llmService))

	api := app.Group("/api/v1")

	api.Post("/query", queryHandler.HandleQuery)
	api.Get("/query/history", queryHandler.GetQueryHistory)
	api.Get("/answers/:id", queryHandler.GetAnswer)
	api.Get("/answers/:id/evaluation", evaluationHandler.EvaluateAnswer)
	api.Post("/feedback", queryHandler.SubmitFeedback)

	api.Post("/documents", documentHandler.UploadDocument)
	api.Get("/documents", documentHandler.ListDocuments)
	api.Delete("/documents/:id", documentHandler.DeleteDocument)

	api.Get("/health", healthHandler.Health)
	api.Get("/ready", healthHandler.Ready)

	app.Get("/metrics", metrics.MetricsHandler())

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/query", websocket.New(wsHandler.HandleConnection))

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}

func newVectorIndex(cfg config.VectorConfig) (vector.Index, error) {
	switch cfg.Provider {
	case "milvus":
		return milvus.New(context.Background(), cfg.Endpoint, cfg.CollectionName, cfg.Dimension)
	case "flat", "":
		return flat.New(cfg.IndexPath)
	default:
		return nil, fmt.Errorf("unknown vector provider: %s", cfg.Provider)
	}
}
