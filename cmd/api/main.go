package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docintake/internal/async"
	"docintake/internal/audit"
	"docintake/internal/config"
	"docintake/internal/database"
	"docintake/internal/database/migration"
	"docintake/internal/extract"
	handlers "docintake/internal/http/handler"
	"docintake/internal/http/middleware"
	"docintake/internal/otel"
	"docintake/internal/repository/postgres"
	"docintake/internal/service"
	"docintake/internal/storage"
)

func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	loc := time.UTC

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing is a no-op when OTEL_SDK_DISABLED=true.
	shutdownTracing, err := otel.Init(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	// Initialize PostgreSQL connection (with pooling via database/sql)
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := migration.EnsureMigrated(ctx, db, loc, cfg.Database.Host); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// Initialize reusable S3-compatible object storage client (MinIO-supported)
	objStore, err := storage.NewMinIO(cfg.MinIO)
	if err != nil {
		log.Fatalf("failed to initialize object storage: %v", err)
	}

	extractor, err := extract.NewHTTPProvider(cfg.Extractor, logger)
	if err != nil {
		log.Fatalf("failed to initialize extraction provider: %v", err)
	}

	// Initialize repositories and services
	docRepo := postgres.NewDocumentPostgres(db)
	fieldRepo := postgres.NewFieldPostgres(db)
	auditRepo := postgres.NewAuditPostgres(db)

	auditor := audit.NewRecorder(auditRepo, logger)
	docSvc := service.NewDocumentService(
		objStore, docRepo, fieldRepo, extractor, auditor,
		service.NewOwnerAuthorizer(), logger,
		service.Options{
			ProcessTimeout: time.Duration(cfg.Extractor.TimeoutSec) * time.Second,
			MaxRetries:     cfg.Processing.MaxRetries,
		},
	)

	queue := async.NewQueue(docSvc, logger,
		async.WithWorkers(cfg.Processing.Workers),
		async.WithQueueSize(cfg.Processing.QueueSize),
		async.WithJobTimeout(time.Duration(cfg.Processing.JobTimeoutSec)*time.Second),
	)

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(),
	})

	// Register global middleware
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.Logger(loc))
	app.Use(otelfiber.Middleware())

	promMiddleware, err := middleware.NewPrometheusMiddleware(prometheus.DefaultRegisterer)
	if err != nil {
		log.Fatalf("failed to register prometheus metrics: %v", err)
	}
	app.Use(promMiddleware.Handler())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Register HTTP routes with injected service
	handlers.RegisterRoutes(app, db, docSvc, queue, auditRepo, cfg.Processing.AutoProcess)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")

		drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		queue.Shutdown(drainCtx)

		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("server shutdown", "error", err)
		}
	}()

	addr := ":" + cfg.Port

	if err := app.Listen(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
