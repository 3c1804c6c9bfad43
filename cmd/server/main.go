// Package main provides the entry point for the livechat-hours server.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kneutral-org/livechat-hours/internal/agent"
	"github.com/kneutral-org/livechat-hours/internal/api"
	"github.com/kneutral-org/livechat-hours/internal/businesshour"
	"github.com/kneutral-org/livechat-hours/internal/config"
	"github.com/kneutral-org/livechat-hours/internal/engine"
	"github.com/kneutral-org/livechat-hours/internal/lock"
	"github.com/kneutral-org/livechat-hours/internal/logging"
	"github.com/kneutral-org/livechat-hours/internal/metrics"
	"github.com/kneutral-org/livechat-hours/internal/middleware"
	"github.com/kneutral-org/livechat-hours/internal/scheduler"
)

const leaderLockKey = "livechat-hours:leader"

func main() {
	// .env is optional, real deployments use the environment directly
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.NewLogger("livechat-hours", cfg.LogLevel)

	// Wire stores, Postgres when configured, in-memory otherwise
	var (
		hourStore  businesshour.Store
		agentStore agent.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to open database")
		}
		defer db.Close()

		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create connection pool")
		}
		defer pool.Close()

		hourStore = businesshour.NewPostgresStore(db)
		agentStore = agent.NewPostgresStore(pool)
		logger.Info().Msg("using postgres stores")
	} else {
		hourStore = businesshour.NewInMemoryStore()
		agentStore = agent.NewInMemoryStore()
		logger.Warn().Msg("DATABASE_URL not set, using in-memory stores")
	}

	// Select the engine variant
	var eng engine.Engine
	switch cfg.EngineType {
	case config.EngineSingle:
		eng = engine.NewSingleEngine(hourStore, agentStore, logger)
	default:
		eng = engine.NewMultiEngine(hourStore, agentStore, logger)
	}
	logger.Info().Str("engineType", cfg.EngineType).Msg("business hour engine ready")

	// Leader election keeps only one instance reconciling when Redis is
	// available. Without Redis every instance reconciles, which is safe
	// but wasteful.
	sched, stopLeader := newScheduler(cfg, eng, logger)
	sched.Start()
	defer stopLeader()
	defer sched.Stop()

	if err := sched.Refresh(context.Background()); err != nil {
		logger.Warn().Err(err).Msg("initial trigger refresh failed")
	}

	// Setup Gin router
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.RequestLogger(logger))
	router.Use(metricsMiddleware())

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	metrics.RegisterMetricsEndpoint(router)

	// API v1 routes
	apiV1 := router.Group("/api/v1")
	apiV1.Use(middleware.PayloadLimitErrorHandler(logger))
	apiV1.Use(middleware.PayloadLimit(cfg.AdminMaxPayloadSize, logger))

	handler := api.NewHandler(eng, agentStore, sched, logger)
	handler.RegisterRoutes(apiV1)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().Str("port", cfg.Port).Msg("starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server exited properly")
}

// newScheduler builds the reconciliation scheduler, leader-gated through
// Redis when REDIS_ADDR is configured. The returned function stops the
// leader elector, if any.
func newScheduler(cfg *config.Config, eng engine.Engine, logger zerolog.Logger) (*scheduler.Scheduler, func()) {
	var opts []scheduler.Option
	stop := func() {}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})

		leaderLock := lock.NewRedisLock(client, leaderLockKey, cfg.LeaderLockTTL, uuid.NewString())
		elector := lock.NewLeaderElector(leaderLock, cfg.LeaderLockTTL/3, logger)
		elector.Start(context.Background())

		opts = append(opts, scheduler.WithLeaderGate(elector.IsLeader))
		stop = func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			elector.Stop(ctx)
			_ = client.Close()
		}
		logger.Info().Str("redisAddr", cfg.RedisAddr).Msg("leader election enabled")
	}

	return scheduler.NewScheduler(eng, cfg.ReconcileInterval, logger, opts...), stop
}

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := fmt.Sprintf("%d", c.Writer.Status())
		metrics.RecordHTTPRequest(c.Request.Method, path, status)
		metrics.RecordHTTPRequestDuration(c.Request.Method, path, time.Since(start).Seconds())
	}
}
