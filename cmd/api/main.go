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

	"github.com/book-tutor/backend/internal/analytics"
	"github.com/book-tutor/backend/internal/api/handlers"
	"github.com/book-tutor/backend/internal/cache/redis"
	"github.com/book-tutor/backend/internal/index"
	"github.com/book-tutor/backend/internal/library"
	"github.com/book-tutor/backend/internal/llm"
	"github.com/book-tutor/backend/internal/metrics"
	"github.com/book-tutor/backend/internal/middleware/ratelimit"
	"github.com/book-tutor/backend/internal/middleware/security"
	"github.com/book-tutor/backend/internal/middleware/validation"
	"github.com/book-tutor/backend/internal/ranking"
	"github.com/book-tutor/backend/internal/retrieval"
	"github.com/book-tutor/backend/internal/safety"
	"github.com/book-tutor/backend/internal/storage/sqlite"
	"github.com/book-tutor/backend/internal/tutor"
	"github.com/book-tutor/backend/internal/vector/milvus"
	"github.com/book-tutor/backend/pkg/config"
	appLogger "github.com/book-tutor/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting Book Tutor API Server")

	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	err = sqliteClient.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	milvusClient, err := milvus.NewClient(
		cfg.Milvus.Endpoint,
		cfg.Milvus.CollectionName,
		cfg.Milvus.VectorDim,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
	}
	defer milvusClient.Close()

	err = milvusClient.CreateCollection(context.Background())
	if err != nil {
		appLogger.Fatal("Failed to create collection", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, caching disabled", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	var embeddingCache llm.EmbeddingCache
	if redisClient != nil {
		embeddingCache = redisClient
	}

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.EmbeddingModel,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
		embeddingCache,
	)

	source := library.NewSource(cfg.Library.NovelsDir, cfg.Library.MaxPages)
	builder := index.NewBuilder(source, sqliteClient, milvusClient, llmClient, cfg.Index.ChunkSize, cfg.Index.ChunkOverlap)
	retriever := retrieval.NewRetriever(llmClient, milvusClient, cfg.Retrieval.TopK)
	ranker := ranking.NewRanker(cfg.Ranking.Strategy, llmClient, llmClient)
	passageFilter := safety.NewPassageFilter(cfg.Safety.ToxicityThreshold)
	responseFilter := safety.NewResponseFilter(llmClient)
	synthesizer := tutor.NewSynthesizer(llmClient)

	var turnCache tutor.TurnCache
	if redisClient != nil {
		turnCache = redisClient
	}

	bookTutor := tutor.New(builder, retriever, ranker, passageFilter, responseFilter, synthesizer, sqliteClient, turnCache, tutor.Config{
		TopN:              cfg.Ranking.TopN,
		EvidenceThreshold: cfg.Ranking.EvidenceThreshold,
		SummaryMaxChunks:  cfg.Tutor.SummaryMaxChunks,
		PassageCharLimit:  cfg.Tutor.PassageCharLimit,
	})

	reporter := analytics.NewReporter(sqliteClient)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Student-ID",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{}))

	limiter := ratelimit.New(ratelimit.Config{Logger: appLogger.GetLogger()})
	defer limiter.Stop()
	app.Use(limiter.Middleware())

	app.Use(validation.Middleware(validation.Config{Logger: appLogger.GetLogger()}))

	askHandler := handlers.NewAskHandler(bookTutor)
	documentHandler := handlers.NewDocumentHandler(builder)
	statsHandler := handlers.NewStatsHandler(reporter)
	feedbackHandler := handlers.NewFeedbackHandler(sqliteClient)
	wsHandler := handlers.NewWebSocketHandler(bookTutor)

	api := app.Group("/api/v1")

	api.Post("/ask", askHandler.HandleAsk)
	api.Post("/documents", documentHandler.WarmDocument)
	api.Get("/logs/stats", statsHandler.GetLogStats)
	api.Post("/feedback", feedbackHandler.SubmitFeedback)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/tutor", websocket.New(wsHandler.HandleConnection))

	app.Get("/metrics", metrics.MetricsHandler())

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	api.Get("/ready", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ready",
		})
	})

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
