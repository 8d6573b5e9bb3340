package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/edusight/edusight-api/api/swagger"
	"github.com/edusight/edusight-api/internal/handler"
	internalmiddleware "github.com/edusight/edusight-api/internal/middleware"
	"github.com/edusight/edusight-api/internal/models"
	"github.com/edusight/edusight-api/internal/repository"
	"github.com/edusight/edusight-api/internal/service"
	"github.com/edusight/edusight-api/pkg/cache"
	"github.com/edusight/edusight-api/pkg/config"
	"github.com/edusight/edusight-api/pkg/database"
	"github.com/edusight/edusight-api/pkg/logger"
	corsmiddleware "github.com/edusight/edusight-api/pkg/middleware/cors"
	reqidmiddleware "github.com/edusight/edusight-api/pkg/middleware/requestid"
	"github.com/edusight/edusight-api/pkg/storage"
)

// @title EduSight API
// @version 1.0.0
// @description Permission-scoped natural-language analytics over student activity data
// @BasePath /api/v1
// @schemes http

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

	metrics := service.NewMetricsService()
	validate := validator.New()

	permission, err := service.NewPermissionService(logr)
	if err != nil {
		logr.Fatal("failed to seed permission registry", zap.Error(err))
	}

	authSvc := service.NewAuthService(permission, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})

	classifier := service.NewClassifierService(logr, cfg.Query.MaxQueryLength)

	var loader repository.SnapshotLoader
	if cfg.Snapshot.UseDatabase {
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close() //nolint:errcheck
		loader = repository.NewSQLSnapshotLoader(db)
	} else {
		loader = repository.NewCSVSnapshotLoader(cfg.Snapshot.ActivityFile, cfg.Snapshot.QuizScheduleFile, logr)
	}

	snapshots := repository.NewSnapshotRepository(loader, metrics, logr)
	if _, err := snapshots.Reload(); err != nil {
		logr.Warn("initial snapshot load failed, starting empty", zap.Error(err))
	}

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, dashboard cache disabled", zap.Error(err))
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, cfg.Dashboard.CacheEnabled && redisClient != nil)

	queries := service.NewQueryService(snapshots, permission, classifier, metrics, logr, cfg.Query.DefaultLimit)
	dashboard := service.NewDashboardService(snapshots, permission, cacheSvc, logr, cfg.Dashboard.CacheTTL)

	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Fatal("failed to init export storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exports := service.NewExportService(queries, permission, store, signer, validate, logr)

	go sweepExpiredExports(store, 2*cfg.Exports.SignedURLTTL, logr)

	authHandler := handler.NewAuthHandler(authSvc, permission)
	queryHandler := handler.NewQueryHandler(queries, classifier)
	exportHandler := handler.NewExportHandler(exports)
	dashboardHandler := handler.NewDashboardHandler(dashboard, snapshots, cacheSvc, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		snap := snapshots.Current()
		c.JSON(http.StatusOK, gin.H{
			"status":             "ready",
			"activity_rows":      len(snap.Activity),
			"quiz_schedule_rows": len(snap.QuizSchedule),
			"cache_enabled":      cacheSvc.Enabled(),
		})
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/exports/download", exportHandler.Download)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(authSvc))
	secured.GET("/auth/me", authHandler.Me)
	secured.GET("/accounts", internalmiddleware.RequireRoles(models.RoleSuperAdmin), authHandler.Accounts)
	secured.POST("/query", queryHandler.Execute)
	secured.GET("/query/suggestions", queryHandler.Suggestions)
	secured.GET("/query/context", queryHandler.Context)
	secured.DELETE("/query/context", queryHandler.ClearContext)
	secured.POST("/query/export", exportHandler.Export)
	secured.GET("/dashboard", dashboardHandler.Overview)
	secured.POST("/admin/snapshot/reload", internalmiddleware.RequireRoles(models.RoleSuperAdmin), dashboardHandler.ReloadSnapshot)

	addr := fmt.Sprintf(":%d", cfg.Port)
	runServer(r, addr, logr, cfg.Env)
}

// sweepExpiredExports periodically deletes export files whose download
// tokens can no longer be valid.
func sweepExpiredExports(store *storage.LocalStorage, ttl time.Duration, logr *zap.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		deleted, err := store.CleanupOlderThan(ttl)
		if err != nil {
			logr.Warn("export cleanup failed", zap.Error(err))
			continue
		}
		if len(deleted) > 0 {
			logr.Info("expired exports removed", zap.Int("count", len(deleted)))
		}
	}
}

func runServer(r *gin.Engine, addr string, logr *zap.Logger, env string) {
	logr.Sugar().Infow("server starting", "addr", addr, "env", env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
