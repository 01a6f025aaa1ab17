package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"skate-match-system/config"
	"skate-match-system/handlers"
	"skate-match-system/middleware"
	"skate-match-system/services"
	"skate-match-system/store"
	"skate-match-system/telemetry"
	"skate-match-system/utils"
	"skate-match-system/workers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "skate-match-system", cfg.OTelEndpoint)
	if err != nil {
		log.Fatal("failed to set up tracing: ", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	st := openStore(cfg)

	matchService := services.NewMatchService(st, services.Options{
		Word:           cfg.Word(),
		ReplyWindow:    cfg.ReplyWindow,
		MaxAttempts:    cfg.CommitMaxAttempts,
		BackoffInitial: cfg.BackoffInitial,
		BackoffMax:     cfg.BackoffMax,
	})
	statsService := services.NewStatsService(st)

	var notifier services.Notifier = services.LogNotifier{}
	if cfg.PushServiceURL != "" {
		notifier = services.NewPushClient(cfg.PushServiceURL, cfg.ServiceToken)
	}
	publisher := services.NewPublisher(services.NewDispatcher(notifier), statsService)

	h := &handlers.MatchHandler{
		Matches:       matchService,
		Stats:         statsService,
		Publisher:     publisher,
		MaxVideoBytes: cfg.MaxVideoBytes,
	}
	if cfg.IdentityServiceURL != "" {
		h.Identity = services.NewIdentityClient(cfg.IdentityServiceURL, cfg.ServiceToken)
	}

	app := fiber.New(fiber.Config{
		BodyLimit: int(cfg.MaxVideoBytes) + 1024*1024,
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed
	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken))

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID, Retry-After",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	if cfg.R2.Enabled() {
		bucket, err := utils.NewR2Bucket(ctx, cfg.R2)
		if err != nil {
			log.Fatal("failed to initialize R2 client: ", err)
		}
		h.Videos = bucket
	} else {
		if err := os.MkdirAll(cfg.UploadDir, os.ModePerm); err != nil {
			log.Fatal("failed to ensure upload dir: ", err)
		}
		h.Videos = utils.LocalDisk{Dir: cfg.UploadDir, BaseURL: strings.TrimRight(cfg.PublicBaseURL, "/") + "/uploads"}
		app.Static("/uploads", cfg.UploadDir)
		log.Println("⚠️  R2 not configured, storing videos on local disk")
	}

	handlers.SetupMatchRoutes(app, h)

	if cfg.SweepEnabled {
		sweeper := workers.NewDeadlineSweeper(matchService, publisher, cfg.SweepInterval, cfg.SweepBatchSize)
		if err := sweeper.Start(ctx); err != nil {
			log.Fatal("failed to start deadline sweeper: ", err)
		}
	}

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", cfg.Port)
	log.Printf("✅ CORS configured for origins: %s", strings.Join(cfg.AllowedOrigins, ","))

	<-ctx.Done()
	log.Println("Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Server shutdown: %v", err)
	}
}

func openStore(cfg config.Config) store.Store {
	if cfg.DatabaseDriver == "memory" {
		log.Println("⚠️  Using in-memory store, matches will not survive a restart")
		return store.NewMemoryStore()
	}

	db, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to database: ", err)
	}
	if cfg.AutoMigrate {
		if err := store.Migrate(db); err != nil {
			log.Fatal("failed to migrate database: ", err)
		}
	}
	return store.NewGormStore(db)
}
