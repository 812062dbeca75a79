// cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/andresuchdata/replenish/internal/api"
	"github.com/andresuchdata/replenish/internal/cache"
	"github.com/andresuchdata/replenish/internal/config"
	"github.com/andresuchdata/replenish/internal/provider"
	"github.com/andresuchdata/replenish/internal/repository/postgres"
	"github.com/andresuchdata/replenish/internal/service"
	"github.com/andresuchdata/replenish/internal/storage"
	"github.com/andresuchdata/replenish/pkg/logger"
)

func main() {
	cfg := config.Load()

	logger.SetLevel(cfg.Server.Mode)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := postgres.NewDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	threshold, err := decimal.NewFromString(cfg.Ordering.ConfidenceThreshold)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Invalid confidence threshold")
	}

	orderingRepo := postgres.NewOrderingRepository(db)
	poRepo := postgres.NewPurchaseOrderRepository(db)

	historyProvider := provider.NewOrderHistoryProvider(db.DB)
	onHandProvider := provider.NewInventoryProvider(db.DB)

	previewCache, err := cache.NewRecommendationPreviewCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Preview cache unavailable, continuing without it")
		previewCache = cache.NewNoopRecommendationPreviewCache()
	}

	var exports storage.ObjectStorage
	if cfg.Storage.Enabled {
		exports, err = storage.NewMinioClient(cfg.Storage)
		if err != nil {
			logger.Log.Fatal().Err(err).Msg("Failed to initialize object storage")
		}
	}

	genService := service.NewGenerationService(orderingRepo, historyProvider, onHandProvider, threshold)
	poService := service.NewPOService(poRepo, orderingRepo, genService, exports)

	router := api.NewRouter(&api.Services{
		POService:         poService,
		GenerationService: genService,
		PreviewCache:      previewCache,
	}, cfg.Server.AllowedOrigins)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	opsSrv := &http.Server{
		Addr:    ":" + cfg.Server.OpsPort,
		Handler: api.NewOpsRouter(db),
	}

	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	go func() {
		logger.Log.Info().Str("port", cfg.Server.OpsPort).Msg("Starting ops listener")
		if err := opsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start ops listener")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server forced to shutdown")
	}
	if err := opsSrv.Shutdown(ctx); err != nil {
		logger.Log.Error().Err(err).Msg("Ops listener forced to shutdown")
	}

	logger.Log.Info().Msg("Server exiting")
}
