package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/grantdesk/backend/internal/api/handlers"
	"github.com/grantdesk/backend/internal/auth"
	redisCache "github.com/grantdesk/backend/internal/cache/redis"
	"github.com/grantdesk/backend/internal/chat"
	"github.com/grantdesk/backend/internal/deadline"
	"github.com/grantdesk/backend/internal/ingestion"
	"github.com/grantdesk/backend/internal/knowledge"
	"github.com/grantdesk/backend/internal/llm"
	"github.com/grantdesk/backend/internal/metrics"
	"github.com/grantdesk/backend/internal/middleware/ratelimit"
	"github.com/grantdesk/backend/internal/middleware/security"
	"github.com/grantdesk/backend/internal/middleware/validation"
	"github.com/grantdesk/backend/internal/project"
	"github.com/grantdesk/backend/internal/search/web"
	"github.com/grantdesk/backend/internal/storage/sqlite"
	"github.com/grantdesk/backend/pkg/config"
	appLogger "github.com/grantdesk/backend/pkg/logger"
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

	appLogger.Info("Starting GrantDesk API Server")

	metrics.Init()

	store, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer store.Close()

	err = store.InitSchema()
	if err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	if err := store.DeleteExpiredSessions(); err != nil {
		appLogger.Warn("Failed to sweep expired sessions", zap.Error(err))
	}

	var cache *redisCache.Client
	if cfg.Redis.Enabled {
		cache, err = redisCache.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Redis unavailable, continuing without cache", zap.Error(err))
			cache = nil
		} else {
			defer cache.Close()
		}
	}
	cacheTTL := time.Duration(cfg.Redis.CacheTTL) * time.Second

	llmClient := llm.NewClient(
		cfg.LLM.APIKey,
		cfg.LLM.Model,
		cfg.LLM.Temperature,
		cfg.LLM.MaxTokens,
	)

	authService := auth.NewService(store, time.Duration(cfg.Auth.SessionTTLHours)*time.Hour)
	processor := ingestion.NewProcessor(store)
	orchestrator := chat.NewOrchestrator(store, llmClient, cfg.LLM.ContextBudget, cfg.LLM.FallbackMessage)
	library := knowledge.NewLibrary(store, cache, cacheTTL)
	projectService := project.NewService(store)

	regexExtractor := deadline.NewRegexExtractor(cfg.Deadline.MaxMentions, cfg.Deadline.LabelMaxLen)
	var extractor deadline.Extractor = regexExtractor
	if cfg.Deadline.UseModel {
		extractor = deadline.NewModelExtractor(llmClient, regexExtractor)
	}
	detector := deadline.NewDetector(store, extractor)

	webClient := web.NewClient(
		cfg.Search.SerpAPIKey,
		time.Duration(cfg.Search.TimeoutSec)*time.Second,
		cache,
		cacheTTL,
	)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, DELETE, OPTIONS",
		AllowCredentials: true,
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		AllowedOrigins: []string{"http://localhost:3000"},
		IsDevelopment:  cfg.Logging.Level == "debug",
	}))
	app.Use(validation.Middleware(validation.Config{
		Logger: appLogger.GetLogger(),
	}))

	rl := ratelimit.New(ratelimit.Config{
		MaxRequestsPerMinute: 120,
		Logger:               appLogger.GetLogger(),
	})
	defer rl.Stop()

	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		route := c.Route().Path
		metrics.RequestDuration.WithLabelValues(route, c.Method()).Observe(time.Since(start).Seconds())
		metrics.RequestTotal.WithLabelValues(route, c.Method(), strconv.Itoa(c.Response().StatusCode())).Inc()
		return err
	})

	authHandler := handlers.NewAuthHandler(authService)
	chatHandler := handlers.NewChatHandler(orchestrator)
	documentHandler := handlers.NewDocumentHandler(processor, orchestrator)
	knowledgeHandler := handlers.NewKnowledgeHandler(library, processor)
	projectHandler := handlers.NewProjectHandler(projectService, detector)
	cronHandler := handlers.NewCronHandler(detector, cfg.Auth.CronToken, cfg.Deadline.WindowDays)
	searchHandler := handlers.NewSearchHandler(webClient, cfg.Search.MaxResults)

	api := app.Group("/api/v1")

	// Public auth endpoints are limited per client IP; the session is not
	// resolved yet at this point.
	api.Post("/auth/login", rl.Middleware(), authHandler.Login)
	api.Post("/auth/logout", rl.Middleware(), authHandler.Logout)

	// Everything session-scoped runs the limiter after session resolution so
	// the bucket key is the user id, not the shared IP.
	private := api.Group("", authService.RequireSession(), rl.Middleware())

	private.Get("/auth/me", authHandler.Me)
	private.Put("/user/settings", authHandler.UpdateSettings)

	chats := private.Group("/chats")
	chats.Get("/", chatHandler.ListChats)
	chats.Post("/", chatHandler.CreateChat)
	chats.Get("/:id", chatHandler.GetChat)
	chats.Get("/:id/messages", chatHandler.ListMessages)
	chats.Post("/:id/messages", chatHandler.PostMessage)
	chats.Post("/:id/analyze", chatHandler.Analyze)
	chats.Get("/:id/documents", documentHandler.ListDocuments)
	chats.Put("/:id/documents", documentHandler.UpdateActiveDocuments)
	chats.Post("/:id/documents/upload", documentHandler.UploadDocument)
	chats.Post("/:id/documents/activate", documentHandler.ActivateDocuments)

	private.Post("/documents/text", documentHandler.IngestText)

	kn := private.Group("/knowledge")
	kn.Get("/categories", knowledgeHandler.ListCategories)
	kn.Post("/categories", auth.RequireAdmin(), knowledgeHandler.CreateCategory)
	kn.Post("/categories/:id/verify-password", knowledgeHandler.VerifyPassword)
	kn.Get("/documents", knowledgeHandler.ListDocuments)
	kn.Post("/documents", auth.RequireAdmin(), knowledgeHandler.CreateDocument)
	kn.Post("/documents/upload", auth.RequireAdmin(), knowledgeHandler.UploadDocument)
	kn.Get("/documents/:id", knowledgeHandler.GetDocument)

	projects := private.Group("/projects")
	projects.Get("/", projectHandler.ListProjects)
	projects.Post("/", projectHandler.CreateProject)
	projects.Post("/generate-from-document", projectHandler.DetectDeadlines)
	projects.Get("/:id", projectHandler.GetProject)
	projects.Put("/:id", projectHandler.UpdateProject)
	projects.Delete("/:id", projectHandler.DeleteProject)

	private.Put("/tasks/:id", projectHandler.UpdateTask)
	private.Put("/milestones/:id", projectHandler.UpdateMilestone)
	private.Post("/detect-deadlines", projectHandler.DetectDeadlines)

	api.Get("/cron/check-deadlines", cronHandler.CheckDeadlines)

	private.Post("/web-search", searchHandler.WebSearch)
	private.Post("/web-fetch", searchHandler.WebFetch)

	api.Get("/metrics", metrics.MetricsHandler())

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
