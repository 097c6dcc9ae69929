package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/civicfix/verification-service/internal/config"
	"github.com/civicfix/verification-service/internal/duplicate"
	"github.com/civicfix/verification-service/internal/fetch"
	"github.com/civicfix/verification-service/internal/verification"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// .env is optional; real deployments set environment variables directly.
	if err := godotenv.Load(); err == nil {
		logger.Info("Loaded environment from .env file")
	}

	// Load configuration
	cfg, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	// Connect to database
	logger.Info("Connecting to database",
		zap.String("host", cfg.Database.Host),
		zap.String("db", cfg.Database.DBName))
	db, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Fingerprint index: redis when configured, in-process memory otherwise.
	var index duplicate.Index
	if cfg.Redis.URL != "" {
		redisIndex, err := duplicate.NewRedisIndex(cfg.Redis.URL, cfg.Verification.DuplicateThreshold)
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		index = redisIndex
		logger.Info("Using redis fingerprint index")
	} else {
		index = duplicate.NewMemoryIndex(cfg.Verification.DuplicateThreshold)
		logger.Info("Using in-memory fingerprint index")
	}

	// Image sources: HTTP always, S3 for s3:// URLs when credentials resolve.
	source := &fetch.Router{
		HTTP: fetch.NewHTTPSource(cfg.Verification.DownloadTimeout, cfg.Verification.MaxImageSizeMB<<20),
	}
	if s3Source, err := fetch.NewS3Source(context.Background(), os.Getenv("AWS_REGION")); err != nil {
		logger.Warn("S3 source unavailable, s3:// URLs will fail", zap.Error(err))
	} else {
		source.S3 = s3Source
	}

	repo := verification.NewPostgresRepository(db)

	engine, err := verification.NewEngine(context.Background(), cfg, source, index, repo, logger)
	if err != nil {
		logger.Fatal("Failed to build verification engine", zap.Error(err))
	}

	// Scheduled eviction keeps the fingerprint index from growing without
	// bound when a TTL is configured.
	var scheduler *cron.Cron
	if ttl := cfg.Verification.FingerprintTTL; ttl > 0 {
		scheduler = cron.New()
		_, err := scheduler.AddFunc("@hourly", func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			removed, err := index.Prune(ctx, time.Now().Add(-ttl))
			if err != nil {
				logger.Error("Fingerprint eviction failed", zap.Error(err))
				return
			}
			if removed > 0 {
				logger.Info("Evicted expired fingerprints", zap.Int("removed", removed))
			}
		})
		if err != nil {
			logger.Fatal("Failed to schedule fingerprint eviction", zap.Error(err))
		}
		scheduler.Start()
		logger.Info("Fingerprint eviction scheduled", zap.Duration("ttl", ttl))
	}

	handler := verification.NewHandler(engine, logger)

	// Setup Router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// CORS Middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-API-Key, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Register Routes
	api := router.Group("/api/v1")
	api.Use(verification.APIKeyMiddleware(cfg.Security.APIKey))
	{
		handler.RegisterRoutes(api)
	}

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"service":   "verification-service",
			"timestamp": time.Now().UTC(),
		})
	})
	router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service": "CivicFix Image Verification Service",
			"version": "1.0.0",
		})
	})

	// Start Server
	srv := &http.Server{
		Addr:    cfg.Server.GetServerAddr(),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", cfg.Server.GetServerAddr()))

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	if scheduler != nil {
		scheduler.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exiting")
}
