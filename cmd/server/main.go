package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Webizinnovation/ServiceAppBack/internal/config"
	"github.com/Webizinnovation/ServiceAppBack/internal/database"
	"github.com/Webizinnovation/ServiceAppBack/internal/notify"
	"github.com/Webizinnovation/ServiceAppBack/internal/routes"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// 1. Load Config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zlog, err := buildLogger(cfg.AppEnv)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() {
		_ = zlog.Sync()
	}()

	// 2. Connect to Database
	if cfg.DBUrl == "" {
		zlog.Fatal("DB_URL is required")
	}
	if err := database.ConnectDB(cfg.DBUrl); err != nil {
		zlog.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.CloseDB()

	// 3. Change-notification bus: Redis when configured, in-process
	// otherwise (single instance only).
	var bus notify.Bus
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			zlog.Fatal("Failed to parse REDIS_URL", zap.Error(err))
		}
		bus = notify.NewRedisBus(redis.NewClient(opts), zlog.Named("notify"))
	} else {
		zlog.Warn("REDIS_URL not set, using in-process change notifications")
		bus = notify.NewMemoryBus()
	}

	// 4. Setup Fiber
	app := fiber.New()

	app.Use(cors.New())
	app.Use(logger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})
	registry := routes.RegisterRoutes(app, routes.Deps{
		Config: cfg,
		DB:     database.DB,
		Bus:    bus,
		Logger: zlog,
	})

	// 5. Start Server
	go func() {
		zlog.Info("Server starting", zap.String("port", cfg.Port))
		if err := app.Listen(":" + cfg.Port); err != nil {
			zlog.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("Shutting down")
	registry.Close()
	_ = app.Shutdown()
}

func buildLogger(appEnv string) (*zap.Logger, error) {
	if appEnv == "development" || appEnv == "test" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
