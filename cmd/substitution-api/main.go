package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-substitution-api/api/swagger"
	"github.com/noah-isme/sma-substitution-api/internal/handler"
	"github.com/noah-isme/sma-substitution-api/internal/middleware"
	"github.com/noah-isme/sma-substitution-api/internal/repository"
	"github.com/noah-isme/sma-substitution-api/internal/service"
	"github.com/noah-isme/sma-substitution-api/pkg/cache"
	"github.com/noah-isme/sma-substitution-api/pkg/config"
	"github.com/noah-isme/sma-substitution-api/pkg/database"
	"github.com/noah-isme/sma-substitution-api/pkg/export"
	"github.com/noah-isme/sma-substitution-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-substitution-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-substitution-api/pkg/middleware/requestid"
)

const shutdownTimeout = 15 * time.Second

// @title SMA Substitution API
// @version 1.0.0
// @description Substitute teacher recommendation and offer workflow
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Sugar().Fatalw("server stopped with error", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, cfg.Database.MigrationTable); err != nil {
			return err
		}
		logr.Info("database migrations applied")
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching and notifications disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	validate := validator.New()

	teacherRepo := repository.NewTeacherRepository(db)
	scheduleRepo := repository.NewScheduleRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	leaveRepo := repository.NewLeaveRepository(db)
	offerRepo := repository.NewSubstitutionRepository(db)

	classifier, err := subjectClassifier(cfg.Substitution)
	if err != nil {
		return err
	}
	scorer, err := service.NewCandidateScorer(service.ScoringConfigFrom(cfg.Substitution), classifier)
	if err != nil {
		return fmt.Errorf("scoring config: %w", err)
	}

	cacheSvc := newCacheService(redisClient, metricsSvc, cfg.Substitution.CacheTTL, logr)
	availability := service.NewAvailabilityEvaluator(teacherRepo, scheduleRepo, attendanceRepo, logr)
	recommender := service.NewSubstituteRecommender(
		teacherRepo,
		scheduleRepo,
		availability,
		scorer,
		cacheSvc,
		metricsSvc,
		validate,
		logr,
		service.RecommenderOptions{
			MaxResults:         cfg.Substitution.MaxResults,
			ExcludeUnavailable: !cfg.Substitution.IncludeUnavailable,
			CacheTTL:           cfg.Substitution.CacheTTL,
		},
	)

	notifier := newNotificationService(redisClient, metricsSvc, logr, cfg.Notifications)
	notifier.Start(ctx)
	defer notifier.Stop()

	substitutions := service.NewSubstitutionService(offerRepo, leaveRepo, teacherRepo, scheduleRepo, notifier, recommender, metricsSvc, validate, logr)
	roster := service.NewRosterService(offerRepo, &export.CSVExporter{WithBOM: true}, export.NewPDFExporter(), validate, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc, cfg.Metrics.Path, "/health", "/ready"))

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	handler.RegisterRoutes(r, handler.RouterDeps{
		APIPrefix:    cfg.APIPrefix,
		MetricsPath:  metricsPath,
		Tokens:       service.NewTokenVerifier(cfg.JWT.Secret, cfg.JWT.Issuer),
		Substitution: handler.NewSubstitutionHandler(recommender, substitutions, roster),
		Metrics:      handler.NewMetricsHandler(metricsSvc, db),
		Logger:       logr,
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", server.Addr, "env", cfg.Env)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		_ = server.Close()
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logr.Info("server stopped")
	return nil
}

func subjectClassifier(cfg config.SubstitutionConfig) (service.SubjectCompatibilityClassifier, error) {
	if cfg.SubjectFamilies == "" {
		return service.NewFamilyTableClassifier(service.DefaultSubjectFamilies()), nil
	}
	families, err := service.ParseSubjectFamilies(cfg.SubjectFamilies)
	if err != nil {
		return nil, fmt.Errorf("subject families: %w", err)
	}
	return service.NewFamilyTableClassifier(families), nil
}

func newCacheService(client *redis.Client, metrics *service.MetricsService, ttl time.Duration, logr *zap.Logger) *service.CacheService {
	if client == nil {
		return service.NewCacheService(nil, metrics, ttl, logr, false)
	}
	return service.NewCacheService(repository.NewCacheRepository(client, logr), metrics, ttl, logr, true)
}

func newNotificationService(client *redis.Client, metrics *service.MetricsService, logr *zap.Logger, cfg config.NotificationConfig) *service.NotificationService {
	svcCfg := service.NotificationConfig{
		Enabled:    cfg.Enabled && client != nil,
		Workers:    cfg.Workers,
		Retries:    cfg.Retries,
		RetryDelay: cfg.RetryDelay,
	}
	if client == nil {
		return service.NewNotificationService(nil, metrics, logr, svcCfg)
	}
	return service.NewNotificationService(repository.NewNotificationRepository(client, cfg.ChannelPrefix), metrics, logr, svcCfg)
}
