package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/match-predictor/internal/api"
	"github.com/stitts-dev/match-predictor/internal/api/middleware"
	"github.com/stitts-dev/match-predictor/internal/category"
	"github.com/stitts-dev/match-predictor/internal/dataset"
	"github.com/stitts-dev/match-predictor/internal/engine"
	"github.com/stitts-dev/match-predictor/internal/services"
	"github.com/stitts-dev/match-predictor/internal/websocket"
	"github.com/stitts-dev/match-predictor/pkg/config"
	"github.com/stitts-dev/match-predictor/pkg/database"
	"github.com/stitts-dev/match-predictor/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	log.WithFields(logrus.Fields{
		"env":  cfg.Env,
		"port": cfg.Port,
	}).Info("Starting match predictor")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// History is optional; predictions still work without a database.
	var history *services.HistoryService
	db, err := database.NewConnection(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		log.WithError(err).Warn("Database unavailable, prediction history disabled")
	} else {
		defer db.Close()
		history = services.NewHistoryService(db, log)
		if err := history.Migrate(); err != nil {
			log.WithError(err).Warn("History migration failed, prediction history disabled")
			history = nil
		}
	}

	cache := services.NewCacheService(nil)
	redisClient, err := services.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.WithError(err).Warn("Invalid Redis URL, shared cache disabled")
	} else {
		pingCtx, pingCancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.WithError(err).Warn("Redis unavailable, shared cache disabled")
			redisClient.Close()
		} else {
			defer redisClient.Close()
			cache = services.NewCacheService(redisClient)
		}
		pingCancel()
	}

	loader := dataset.NewLoader(dataset.Paths{
		Dataset1:         cfg.Dataset1Path,
		Dataset2:         cfg.Dataset2Path,
		Dataset2Fallback: cfg.Dataset2FallbackPath,
	}, log)
	datasets := dataset.NewStore(loader, cache, cfg.DatasetCacheTTL, log)

	taxonomy, err := category.DefaultTaxonomy()
	if err != nil {
		log.Fatalf("Failed to load team taxonomy: %v", err)
	}

	models := engine.LoadModels(map[int]string{
		category.EuropeanDataset: cfg.Model1Path,
		category.OtherDataset:    cfg.Model2Path,
	}, cfg.CircuitBreakerThreshold, cfg.CircuitBreakerTimeout, log)

	eng := engine.New(engine.Deps{
		Datasets: datasets,
		Index:    category.NewIndex(taxonomy),
		Models:   models,
	}, log)

	hub := websocket.NewHub(cfg.CorsOrigins, log)
	go hub.Run(ctx)

	predictions := services.NewPredictionService(eng, datasets, cache, history, hub, cfg.PredictionCacheTTL, log)

	var scheduler *services.Scheduler
	if cfg.EnableBackgroundJobs {
		scheduler = services.NewScheduler(datasets, history, predictions, services.SchedulerConfig{
			RefreshSchedule:     cfg.DatasetRefreshSchedule,
			CleanupSchedule:     cfg.CleanupSchedule,
			ArchiveAfter:        time.Duration(cfg.ArchiveAfterDays) * 24 * time.Hour,
			DeleteArchivedAfter: time.Duration(cfg.DeleteArchivedAfterDays) * 24 * time.Hour,
		}, log)
		if err := scheduler.Start(); err != nil {
			log.WithError(err).Error("Failed to start scheduler")
			scheduler = nil
		}
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
	go sweepLimiter(ctx, limiter, cfg.RateLimitWindow)

	router := api.NewRouter(api.Deps{
		Config:      cfg,
		Engine:      eng,
		Datasets:    datasets,
		Cache:       cache,
		Predictions: predictions,
		History:     history,
		Hub:         hub,
		RateLimiter: limiter,
		Logger:      log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	if scheduler != nil {
		scheduler.Stop()
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

func sweepLimiter(ctx context.Context, limiter *middleware.RateLimiter, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Sweep()
		}
	}
}
