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

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/drivematch-api/internal/handler"
	"github.com/noah-isme/drivematch-api/internal/repository"
	"github.com/noah-isme/drivematch-api/internal/service"
	"github.com/noah-isme/drivematch-api/pkg/cache"
	"github.com/noah-isme/drivematch-api/pkg/config"
	"github.com/noah-isme/drivematch-api/pkg/database"
	"github.com/noah-isme/drivematch-api/pkg/jobs"
	"github.com/noah-isme/drivematch-api/pkg/logger"
)

// @title DriveMatch API
// @version 1.0.0
// @description Student and instructor matching for driving schools
// @BasePath /api/v1
// @schemes http https
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

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	studentRepo := repository.NewStudentRepository(db)
	instructorRepo := repository.NewInstructorRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	runRepo := repository.NewMatchingRunRepository(db)
	performanceRepo := repository.NewPerformanceRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Performance.CacheTTL, logr, true)
	performanceSvc := service.NewPerformanceService(performanceRepo, cacheSvc, metricsSvc, validate, logr, service.PerformanceServiceConfig{
		Enabled:  cfg.Performance.Enabled,
		CacheTTL: cfg.Performance.CacheTTL,
	})

	queue := jobs.NewQueue("matching", jobs.QueueConfig{
		Workers:    cfg.Jobs.WorkerConcurrency,
		MaxRetries: cfg.Jobs.WorkerRetries,
		RetryDelay: cfg.Jobs.RetryDelay,
		Logger:     logr,
	})
	queue.Handle(service.JobTypePerformanceRefresh, performanceSvc.HandleRefreshJob)
	queue.Start(ctx)
	defer queue.Stop()

	engine := service.NewMatchingEngine(service.MatchingEngineConfig{
		TieBreak:   cfg.Matching.TieBreak,
		RandomSeed: cfg.Matching.RandomSeed,
	}, validate)
	matchingSvc := service.NewMatchingService(studentRepo, instructorRepo, runRepo, assignmentRepo, db, engine, queue, metricsSvc, validate, logr, service.MatchingServiceConfig{
		Enabled:      cfg.Matching.Enabled,
		MaxRosterLen: cfg.Matching.MaxRosterLen,
		PendingTTL:   cfg.Matching.PendingTTL,
	})

	archiver := service.NewRunArchiver(matchingSvc, service.RunArchiverConfig{
		Schedule: cfg.Matching.ArchiveCron,
		TTL:      cfg.Matching.PendingTTL,
	}, logr)
	if cfg.Matching.Enabled {
		if err := archiver.Start(ctx); err != nil {
			logr.Fatal("failed to start run archiver", zap.Error(err))
		}
		defer archiver.Stop()
	}

	tokens := service.NewTokenService(service.TokenConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})
	router := newRouter(cfg, logr, routerDeps{
		tokens:      tokens,
		metrics:     metricsSvc,
		matching:    handler.NewMatchingHandler(matchingSvc),
		performance: handler.NewPerformanceHandler(performanceSvc),
		probes: handler.NewMetricsHandler(metricsSvc, map[string]handler.Pinger{
			"postgres": db,
			"redis":    handler.PingerFunc(cacheRepo.Ping),
		}, logr),
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", server.Addr), zap.String("env", cfg.Env))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Error("server failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
