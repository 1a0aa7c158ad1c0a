package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/gradesync-api/api/swagger"
	"github.com/noah-isme/gradesync-api/internal/handler"
	internalmiddleware "github.com/noah-isme/gradesync-api/internal/middleware"
	"github.com/noah-isme/gradesync-api/internal/models"
	"github.com/noah-isme/gradesync-api/internal/repository"
	"github.com/noah-isme/gradesync-api/internal/service"
	"github.com/noah-isme/gradesync-api/pkg/cache"
	"github.com/noah-isme/gradesync-api/pkg/config"
	"github.com/noah-isme/gradesync-api/pkg/database"
	"github.com/noah-isme/gradesync-api/pkg/jobs"
	"github.com/noah-isme/gradesync-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/gradesync-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/gradesync-api/pkg/middleware/requestid"
)

// @title GradeSync API
// @version 0.1.0
// @description Grade entry sessions with bulk operations, partial-failure saves and an offline queue.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	metrics := service.NewMetricsService()
	validate := validator.New()

	var redisClient *redis.Client
	if cfg.GradesCache.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("grades cache disabled, redis unavailable", zap.Error(err))
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	gradeCache := service.NewGradeCache(
		cacheRepo,
		metrics,
		cfg.GradesCache.TTL,
		logr,
		cfg.GradesCache.Enabled && redisClient != nil,
	)

	queueStore, closeStore, err := openQueueStore(ctx, cfg, metrics, logr)
	if err != nil {
		logr.Fatal("failed to open offline queue", zap.Error(err))
	}
	defer closeStore()

	gradeAPI := repository.NewGradeAPIClient(repository.GradeAPIClientConfig{
		BaseURL:   cfg.GradeAPI.BaseURL,
		Token:     cfg.GradeAPI.Token,
		Timeout:   cfg.GradeAPI.Timeout,
		HealthURL: cfg.GradeAPI.HealthURL,
		RateLimit: cfg.GradeAPI.RateLimit,
		RateBurst: cfg.GradeAPI.RateBurst,
	}, nil, metrics, logr)

	offlineQueue := service.NewOfflineQueue(queueStore, cfg.Grading.StartOnline, metrics, logr)
	reconciler := service.NewSaveReconciler(gradeAPI, offlineQueue, cfg.Grading.SaveConcurrency, metrics, logr)
	applier := service.NewBulkOperationApplier(cfg.Grading.ClampScores, logr)
	sessions := service.NewGradingSessionService(
		gradeAPI,
		gradeCache,
		applier,
		reconciler,
		offlineQueue,
		validate,
		metrics,
		logr,
		service.GradingSessionConfig{ClampScores: cfg.Grading.ClampScores},
	)

	flushQueue := jobs.NewQueue("offline-flush", sessions.HandleFlushJob, jobs.QueueConfig{
		Workers:    cfg.OfflineQueue.FlushWorkers,
		MaxRetries: cfg.OfflineQueue.FlushRetries,
		RetryDelay: cfg.OfflineQueue.FlushRetryDelay,
		Logger:     logr,
	})
	flushQueue.Start(ctx)
	defer flushQueue.Stop()
	sessions.UseDispatcher(flushQueue)

	monitor := service.NewConnectivityMonitor(gradeAPI, sessions, cfg.GradeAPI.ProbeInterval, logr)
	go monitor.Run(ctx)

	authService := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(internalmiddleware.Metrics(metrics))

	metricsHandler := handler.NewMetricsHandler(metrics)
	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.GET("/metrics/snapshot", metricsHandler.Snapshot)
	registerGradingRoutes(api, handler.NewGradingSessionHandler(sessions), authService)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "queue_backend", cfg.OfflineQueue.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func registerGradingRoutes(api *gin.RouterGroup, h *handler.GradingSessionHandler, auth *service.AuthService) {
	grading := api.Group("/grading")
	grading.Use(internalmiddleware.JWT(auth))
	grading.Use(internalmiddleware.RequireRoles(models.RoleTeacher, models.RoleAdmin, models.RoleSuperAdmin))

	grading.POST("/sessions", h.Open)
	grading.GET("/sessions", h.List)
	grading.GET("/sessions/:id", h.Get)
	grading.DELETE("/sessions/:id", h.Close)
	grading.PUT("/sessions/:id/grades", h.UpsertGrade)
	grading.POST("/sessions/:id/bulk", h.ApplyBulk)
	grading.POST("/sessions/:id/save", h.Save)
	grading.POST("/sessions/:id/reset", h.Reset)
	grading.GET("/sessions/:id/statistics", h.Statistics)
	grading.GET("/sessions/:id/export", h.Export)

	grading.GET("/connectivity", h.Connectivity)
	grading.POST("/connectivity", h.SetConnectivity)
	grading.GET("/offline-queue", h.OfflineQueue)
	grading.POST("/offline-queue/flush", h.Flush)
}

func openQueueStore(ctx context.Context, cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) (service.OfflineQueueStore, func(), error) {
	if cfg.OfflineQueue.Backend != config.QueueBackendPostgres {
		return repository.NewMemoryOfflineQueueRepository(), func() {}, nil
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	store := repository.NewOfflineQueueRepository(db, metrics)
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	logr.Info("offline queue backed by postgres", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.Name))
	return store, closeDB(db, logr), nil
}

func closeDB(db *sqlx.DB, logr *zap.Logger) func() {
	return func() {
		if err := db.Close(); err != nil {
			logr.Warn("failed to close database", zap.Error(err))
		}
	}
}
