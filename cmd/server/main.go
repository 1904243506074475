package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/meetscribe/api/internal/auth"
	"github.com/meetscribe/api/internal/capture"
	"github.com/meetscribe/api/internal/config"
	"github.com/meetscribe/api/internal/encode"
	"github.com/meetscribe/api/internal/fanout"
	"github.com/meetscribe/api/internal/handler"
	"github.com/meetscribe/api/internal/middleware"
	"github.com/meetscribe/api/internal/model"
	"github.com/meetscribe/api/internal/queue"
	"github.com/meetscribe/api/internal/service"
	"github.com/meetscribe/api/internal/storage"
	"github.com/meetscribe/api/internal/store"
	ws "github.com/meetscribe/api/internal/websocket"
	"github.com/meetscribe/api/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	// Test Redis connection
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: Redis not available: %v", err)
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	// Initialize Asynq client
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	// Initialize validator
	validate := validator.New()

	// Initialize record stores and object storage
	stores := store.NewRedis(redisClient)
	storageClient, err := storage.NewR2Client(&cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	// Initialize WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Initialize event fan-out
	fanoutService := fanout.NewService(stores.Destinations, stores.Deliveries, fanout.Options{
		Timeout:        cfg.Webhook.Timeout,
		DefaultRetries: cfg.Webhook.DefaultRetries,
		BackoffBase:    cfg.Webhook.BackoffBase,
	}, hub)
	defer fanoutService.Close()

	// Initialize queue client and services
	queueClient := queue.NewClient(asynqClient, validate)
	sessionService := service.NewSessionService(stores.Sessions, stores.Artifacts, queueClient, cfg.Capture.MaxAttempts, cfg.Capture.MaxDuration)
	destinationService := service.NewDestinationService(stores.Destinations, stores.Deliveries)
	artifactService := service.NewArtifactService(stores.Artifacts, storageClient)

	// Initialize handlers
	sessionHandler := handler.NewSessionHandler(sessionService, validate)
	destinationHandler := handler.NewDestinationHandler(destinationService, validate)
	artifactHandler := handler.NewArtifactHandler(artifactService)

	// Initialize JWKS verifier (optional - falls back to the HMAC secret)
	var jwksVerifier *auth.JWKSVerifier
	if cfg.OIDC.Issuer != "" {
		jwksVerifier, err = auth.NewJWKSVerifier(&cfg.OIDC)
		if err != nil {
			log.Printf("Warning: JWKS verifier not initialized: %v", err)
		} else {
			defer jwksVerifier.Close()
		}
	}

	// Initialize middleware (with fallback support)
	var authMiddleware *middleware.AuthMiddleware
	if jwksVerifier != nil && cfg.JWT.Secret != "" {
		authMiddleware = middleware.NewAuthMiddlewareWithFallback(jwksVerifier, cfg.JWT.Secret)
	} else if jwksVerifier != nil {
		authMiddleware = middleware.NewAuthMiddleware(jwksVerifier)
	} else {
		authMiddleware = middleware.NewLegacyAuthMiddleware(cfg.JWT.Secret)
	}
	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    1 * 1024 * 1024, // 1MB, the API carries no media
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// API routes
	api := app.Group("/api", authMiddleware.Authenticate())

	// Session routes
	sessions := api.Group("/sessions")
	sessions.Post("/", rateLimiter.SessionLimit(cfg.RateLimit.SessionsPerHour), sessionHandler.Create)
	sessions.Get("/:sessionId", sessionHandler.Get)
	sessions.Get("/:sessionId/artifact", sessionHandler.Artifact)

	// Destination routes
	destinations := api.Group("/destinations", rateLimiter.DestinationLimit(cfg.RateLimit.DestinationsPerHour))
	destinations.Post("/", destinationHandler.Create)
	destinations.Get("/", destinationHandler.List)
	destinations.Get("/:destinationId", destinationHandler.Get)
	destinations.Patch("/:destinationId", destinationHandler.Update)
	destinations.Delete("/:destinationId", destinationHandler.Delete)
	destinations.Get("/:destinationId/deliveries", destinationHandler.Deliveries)

	// Artifact routes
	artifacts := api.Group("/artifacts")
	artifacts.Get("/:artifactId", artifactHandler.Get)
	artifacts.Get("/:artifactId/download", artifactHandler.Download)

	// WebSocket routes. Browsers cannot set headers on upgrade requests,
	// so the token rides in the query string and is checked before the
	// protocol switch.
	app.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		orgID, err := authMiddleware.ValidateToken(c.Query("token"))
		if err != nil {
			return fiber.ErrUnauthorized
		}
		c.Locals("orgId", orgID)
		return c.Next()
	})

	app.Get("/ws/sessions/:sessionId", websocket.New(func(c *websocket.Conn) {
		hub.HandleConnection(c, c.Params("sessionId"))
	}))

	// Start Asynq worker server
	go startWorkerServer(cfg, redisOpt, stores, storageClient, queueClient, fanoutService, hub)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func startWorkerServer(cfg *config.Config, redisOpt asynq.RedisClientOpt, stores *store.Stores, storageClient storage.Client, queueClient *queue.Client, fanoutService *fanout.Service, hub *ws.Hub) {
	srv := queue.NewServer(redisOpt, queue.ServerOptions{
		Concurrency: map[string]int{
			queue.QueueCapture:   cfg.Capture.Concurrency,
			queue.QueueTranscode: cfg.Encode.Concurrency,
		},
		Backoff: queue.Backoff{
			Base: cfg.Capture.RetryBackoffBase,
			Cap:  cfg.Capture.RetryBackoffCap,
		},
	})

	engine := capture.NewExecEngine(cfg.Capture.EngineCommand)
	encoder := encode.NewFFmpeg(cfg.Encode.FFmpegPath, cfg.Encode.FFprobePath)

	captureWorker := worker.NewCaptureWorker(stores.Sessions, stores.Artifacts, storageClient, queueClient, fanoutService, engine, hub, worker.CaptureOptions{
		WorkDir:              cfg.Capture.WorkDir,
		RosterPollInterval:   cfg.Capture.RosterPollInterval,
		TransientRoster:      cfg.Capture.TransientRoster,
		ChunkInterval:        cfg.Stream.ChunkInterval,
		MaxChunkBytes:        cfg.Stream.MaxChunkBytes,
		OutputFormat:         cfg.Capture.OutputFormat,
		TranscodeMaxAttempts: cfg.Encode.MaxAttempts,
		TranscodeTimeout:     cfg.Encode.MaxDuration,
		DefaultQuality:       model.QualityProfile(cfg.Encode.DefaultQuality),
	})
	transcodeWorker := worker.NewTranscodeWorker(stores.Sessions, stores.Artifacts, storageClient, fanoutService, encoder, hub, worker.TranscodeOptions{
		StagingDir:     cfg.Encode.StagingDir,
		DefaultQuality: model.QualityProfile(cfg.Encode.DefaultQuality),
	})

	mux := asynq.NewServeMux()
	mux.Use(queue.Instrument(nil))
	mux.HandleFunc(queue.TaskTypeCapture, captureWorker.ProcessTask)
	mux.HandleFunc(queue.TaskTypeTranscode, transcodeWorker.ProcessTask)

	if err := srv.Run(mux); err != nil {
		log.Printf("Asynq worker error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    "SERVICE_ERROR",
			"message": message,
		},
	})
}
